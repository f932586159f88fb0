package crawl

import (
	"github.com/PuerkitoBio/goquery"
)

// DefaultBaseURL is the host detail links are built against.
const DefaultBaseURL = "https://www.k-apt.go.kr"

func listingTableSelector(t ListingType) string {
	if t == PrivateContract {
		return "table.contTbl.txtC"
	}
	return "table#tblBidList"
}

// ParseRows extracts one summary record per listing row. Missing tables and
// short rows produce no records rather than errors.
func ParseRows(doc *goquery.Document, t ListingType, base string) []Record {
	schema := SchemaFor(t)
	var records []Record

	table := doc.Find(listingTableSelector(t)).First()
	if table.Length() == 0 {
		return records
	}
	tbody := table.Find("tbody").First()
	if tbody.Length() == 0 {
		return records
	}

	// Column order matches the summary schema up to, not including, the link.
	columns := schema.Summary[:len(schema.Summary)-1]

	tbody.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < schema.MinCells {
			return
		}

		rec := make(Record, len(schema.Summary))
		for i, col := range columns {
			rec[col] = strippedText(cells.Eq(i))
		}

		rec[FieldDetailLink] = ""
		if id := goViewID(cells.First().AttrOr("onclick", "")); id != "" {
			rec[FieldDetailLink] = t.DetailURL(base, id)
		}

		records = append(records, rec)
	})

	return records
}
