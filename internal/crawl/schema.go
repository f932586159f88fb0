package crawl

import (
	"fmt"
	"strings"
)

// ListingType selects one of the three K-APT procurement listings.
type ListingType int

const (
	PrivateContract   ListingType = iota // 사업자 선정(수의계약) 결과 공개
	CompetitiveBid                       // 사업자 선정(경쟁입찰) 결과 공개
	NationalBidNotice                    // 전국 입찰공고
)

// ListingTypes in page_type_index order.
var ListingTypes = []ListingType{PrivateContract, CompetitiveBid, NationalBidNotice}

// ListingTypeFromIndex maps the page_type_index of a saved configuration.
func ListingTypeFromIndex(i int) (ListingType, error) {
	if i < 0 || i >= len(ListingTypes) {
		return 0, fmt.Errorf("unknown page type index %d", i)
	}
	return ListingTypes[i], nil
}

func (t ListingType) String() string {
	switch t {
	case PrivateContract:
		return "private_contract"
	case CompetitiveBid:
		return "competitive_bid"
	case NationalBidNotice:
		return "national_bid_notice"
	}
	return fmt.Sprintf("listing_type(%d)", int(t))
}

// Title is the operator-facing name of the listing.
func (t ListingType) Title() string {
	switch t {
	case PrivateContract:
		return "사업자 선정(수의계약) 결과 공개"
	case CompetitiveBid:
		return "사업자 선정(경쟁입찰) 결과 공개"
	default:
		return "전국 입찰공고"
	}
}

// DefaultURL is the listing entry point under base (e.g. https://www.k-apt.go.kr).
func (t ListingType) DefaultURL(base string) string {
	base = strings.TrimRight(base, "/")
	switch t {
	case PrivateContract:
		return base + "/bid/privateContractList.do"
	case CompetitiveBid:
		return base + "/bid/bidList.do?type=3"
	default:
		return base + "/bid/bidList.do"
	}
}

// DetailURL builds the detail page address for a listing row id.
func (t ListingType) DetailURL(base, id string) string {
	base = strings.TrimRight(base, "/")
	if t == PrivateContract {
		return base + "/bid/privateContractDetail.do?pcNum=" + id
	}
	return base + "/bid/bidDetail.do?bidNum=" + id
}

// SheetName is the worksheet title of the summary workbook.
func (t ListingType) SheetName() string {
	if t == PrivateContract {
		return "수의계약"
	}
	return "입찰공고"
}

// Field is a column name. The Korean label is the canonical value because it is
// both the header written to the workbook and the label matched on detail pages.
type Field string

// Record maps column to text value.
type Record map[Field]string

// Clone returns an independent copy.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Summary columns.
const (
	FieldSeq            Field = "순번"
	FieldComplexName    Field = "단지명"
	FieldContractor     Field = "계약업체"
	FieldContractTitle  Field = "계약명"
	FieldContractDate   Field = "계약일"
	FieldContractAmount Field = "계약금액"
	FieldContractPeriod Field = "계약기간"
	FieldBidKind        Field = "종류"
	FieldAwardMethod    Field = "낙찰방법"
	FieldBidTitle       Field = "입찰공고명"
	FieldBidDeadline    Field = "입찰마감일"
	FieldStatus         Field = "상태"
	FieldAnnounceDate   Field = "공고일"
	FieldDetailLink     Field = "상세정보링크"
)

// Detail fields shared by both detail layouts.
const (
	FieldManager         Field = "주택관리업자"
	FieldOfficeAddress   Field = "관리사무소 주소"
	FieldPhone           Field = "전화번호"
	FieldFax             Field = "팩스번호"
	FieldBuildings       Field = "동수"
	FieldHouseholds      Field = "세대수"
	FieldContractNo      Field = "계약번호"
	FieldContractorName  Field = "계약업체명"
	FieldRepresentative  Field = "업체대표자명"
	FieldContractorPhone Field = "업체전화번호"
	FieldBusinessRegNo   Field = "사업자등록번호"
	FieldContractorAddr  Field = "업체주소"
	FieldPlannedDate     Field = "계약(예정)일"
	FieldRegisteredAt    Field = "등록일"
	FieldCategory        Field = "분류"
	FieldPrivateReason   Field = "수의계약 체결사유"
)

// Detail fields specific to one layout.
const (
	FieldApartmentName    Field = "아파트명"
	FieldBidNo            Field = "입찰번호"
	FieldBidMethod        Field = "입찰방법"
	FieldSubmitDeadline   Field = "입찰서 제출 마감일"
	FieldBidSubject       Field = "입찰제목"
	FieldUrgent           Field = "긴급입찰여부"
	FieldBidType          Field = "입찰종류"
	FieldBidCategory      Field = "입찰분류"
	FieldCreditRating     Field = "신용평가등급확인서 제출여부"
	FieldSiteBriefing     Field = "현장설명"
	FieldTrackRecord      Field = "관리(공사용역) 실적증명서 제출여부"
	FieldBriefingAt       Field = "현장설명일시"
	FieldBriefingPlace    Field = "현장설명장소"
	FieldDocumentDeadline Field = "서류제출마감일"
	FieldBidBond          Field = "입찰보증금"
	FieldPaymentTerms     Field = "지급조건"
	FieldContent          Field = "내용"
)

// attachmentLabel is never a data field on bid detail pages.
const attachmentLabel = "파일첨부"

// FailedValue marks retained fields whose detail page could not be fetched.
const FailedValue = "FAILED"

// Schema describes the columns of one listing type.
type Schema struct {
	Type ListingType
	// Summary columns in output order.
	Summary []Field
	// MinCells is the shortest listing row that is parsed.
	MinCells int
	// Detail is every key ParseDetail returns.
	Detail []Field
	// Selectable is the subset of Detail offered to the operator for retention.
	Selectable []Field
	// DefaultRetained is preselected in the console.
	DefaultRetained []Field
	// Labels maps a normalised detail label to the field it fills. Only used for
	// the private contract layout.
	Labels map[string]Field
}

var privateContractDetail = []Field{
	FieldManager, FieldApartmentName, FieldOfficeAddress, FieldPhone, FieldFax,
	FieldBuildings, FieldHouseholds, FieldContractNo, FieldContractTitle, FieldContractorName,
	FieldRepresentative, FieldContractorPhone, FieldBusinessRegNo, FieldContractorAddr,
	FieldPlannedDate, FieldContractAmount, FieldContractPeriod, FieldRegisteredAt,
	FieldCategory, FieldPrivateReason,
}

var bidSelectable = []Field{
	FieldManager, FieldComplexName, FieldOfficeAddress, FieldPhone, FieldFax,
	FieldBuildings, FieldHouseholds, FieldBidNo, FieldBidMethod, FieldSubmitDeadline,
	FieldBidSubject, FieldUrgent, FieldBidType, FieldAwardMethod, FieldBidCategory,
	FieldCreditRating, FieldSiteBriefing, FieldTrackRecord, FieldBriefingAt,
	FieldBriefingPlace, FieldDocumentDeadline, FieldBidBond, FieldPaymentTerms, FieldContent,
}

// Bid detail pages of awarded notices also carry the contract result table.
var bidDetail = append(append([]Field{}, bidSelectable...),
	FieldContractNo, FieldContractTitle, FieldContractorName, FieldRepresentative,
	FieldContractorPhone, FieldBusinessRegNo, FieldContractorAddr, FieldPlannedDate,
	FieldContractPeriod, FieldContractAmount, FieldRegisteredAt, FieldCategory,
	FieldPrivateReason,
)

var bidSummary = []Field{
	FieldSeq, FieldBidKind, FieldAwardMethod, FieldBidTitle, FieldBidDeadline,
	FieldStatus, FieldComplexName, FieldAnnounceDate, FieldDetailLink,
}

var bidDefaultRetained = without(bidSelectable,
	FieldContent, FieldBriefingPlace, FieldCreditRating, FieldUrgent, FieldBriefingAt)

var schemas = map[ListingType]*Schema{
	PrivateContract: {
		Type: PrivateContract,
		Summary: []Field{
			FieldSeq, FieldComplexName, FieldContractor, FieldContractTitle, FieldContractDate,
			FieldContractAmount, FieldContractPeriod, FieldDetailLink,
		},
		MinCells:   7,
		Detail:     privateContractDetail,
		Selectable: privateContractDetail,
		DefaultRetained: []Field{
			FieldApartmentName, FieldPhone, FieldBuildings, FieldHouseholds, FieldContractTitle,
			FieldContractorName, FieldRepresentative, FieldContractorPhone, FieldContractAmount,
			FieldContractPeriod, FieldPrivateReason,
		},
		Labels: privateContractLabels(),
	},
	CompetitiveBid: {
		Type:            CompetitiveBid,
		Summary:         bidSummary,
		MinCells:        8,
		Detail:          bidDetail,
		Selectable:      bidSelectable,
		DefaultRetained: bidDefaultRetained,
	},
	NationalBidNotice: {
		Type:            NationalBidNotice,
		Summary:         bidSummary,
		MinCells:        8,
		Detail:          bidDetail,
		Selectable:      bidSelectable,
		DefaultRetained: bidDefaultRetained,
	},
}

// SchemaFor returns the schema of t. Unknown values fall back to the bid layout,
// matching how the listing pages treat every non-contract type.
func SchemaFor(t ListingType) *Schema {
	if s, ok := schemas[t]; ok {
		return s
	}
	return schemas[NationalBidNotice]
}

// IsSummary reports whether f is a summary column of the schema.
func (s *Schema) IsSummary(f Field) bool {
	for _, c := range s.Summary {
		if c == f {
			return true
		}
	}
	return false
}

func privateContractLabels() map[string]Field {
	labels := make(map[string]Field, len(privateContractDetail)+2)
	for _, f := range privateContractDetail {
		labels[string(f)] = f
	}
	labels["단지명"] = FieldApartmentName
	labels["분 류"] = FieldCategory
	return labels
}

func without(fields []Field, drop ...Field) []Field {
	skip := make(map[Field]struct{}, len(drop))
	for _, f := range drop {
		skip[f] = struct{}{}
	}
	out := make([]Field, 0, len(fields))
	for _, f := range fields {
		if _, ok := skip[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
