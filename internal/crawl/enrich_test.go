package crawl

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

// flakyFetcher fails the first n calls and then serves html.
type flakyFetcher struct {
	failures int
	html     string
	calls    int
}

func (f *flakyFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, transportError(rawURL, errors.New("connection reset"))
	}
	return parseUTF8(rawURL, []byte(f.html))
}

func summaryRecord(seq, link string) Record {
	return Record{
		FieldSeq:            seq,
		FieldComplexName:    "Sample Apt",
		FieldContractor:     "Acme Co.",
		FieldContractTitle:  "Cleaning",
		FieldContractDate:   "2024-01-02",
		FieldContractAmount: "1,000원",
		FieldContractPeriod: "12 months",
		FieldDetailLink:     link,
	}
}

func TestEnrich_AllAttemptsFail(t *testing.T) {
	f := &flakyFetcher{failures: 100}
	e := &Enricher{Fetcher: f}
	retained := []Field{FieldPhone, FieldRepresentative}

	var log []string
	set := e.Enrich(context.Background(), []Record{summaryRecord("1", "https://x/detail")}, retained, PrivateContract,
		SinkFunc(func(m string) { log = append(log, m) }))

	if f.calls != DefaultAttempts {
		t.Errorf("expected %d fetches, got %d", DefaultAttempts, f.calls)
	}
	if set.Failed != 1 || len(set.Records) != 1 {
		t.Fatalf("unexpected set: %+v", set)
	}
	rec := set.Records[0]
	for _, f := range retained {
		if rec[f] != FailedValue {
			t.Errorf("%s: expected FAILED, got %q", f, rec[f])
		}
	}
	if rec[FieldContractTitle] != "Cleaning" {
		t.Errorf("summary fields must survive a failure")
	}
	if n := strings.Count(strings.Join(log, "\n"), "[error]"); n != DefaultAttempts {
		t.Errorf("expected %d error lines, got %d", DefaultAttempts, n)
	}
}

func TestEnrich_SucceedsOnRetry(t *testing.T) {
	f := &flakyFetcher{failures: 1, html: privateDetailHTML}
	e := &Enricher{Fetcher: f, Attempts: 3}

	set := e.Enrich(context.Background(), []Record{summaryRecord("1", "https://x/detail")},
		[]Field{FieldPhone}, PrivateContract, Discard)

	if f.calls != 2 {
		t.Errorf("expected 2 fetches, got %d", f.calls)
	}
	if set.Failed != 0 {
		t.Errorf("expected no failures")
	}
	rec := set.Records[0]
	if rec[FieldPhone] != "02-123-4567" {
		t.Errorf("phone: got %q", rec[FieldPhone])
	}
	// Detail values overwrite summary values of the same name.
	if rec[FieldContractAmount] != "1,000,000원" {
		t.Errorf("amount: got %q", rec[FieldContractAmount])
	}
}

func TestEnrich_KeepsOrderAndPassesThroughMissingLinks(t *testing.T) {
	mock := &MockFetcher{Data: map[string]string{
		"https://x/a": privateDetailHTML,
		"https://x/c": privateDetailHTML,
	}}
	e := &Enricher{Fetcher: mock}
	input := []Record{summaryRecord("1", "https://x/a"), summaryRecord("2", ""), summaryRecord("3", "https://x/c")}

	set := e.Enrich(context.Background(), input, []Field{FieldPhone}, PrivateContract, nil)

	if len(set.Records) != 3 || set.Skipped != 1 {
		t.Fatalf("unexpected set: %+v", set)
	}
	for i, want := range []string{"1", "2", "3"} {
		if set.Records[i][FieldSeq] != want {
			t.Errorf("record %d: expected seq %s, got %s", i, want, set.Records[i][FieldSeq])
		}
	}
	if _, ok := set.Records[1][FieldPhone]; ok {
		t.Errorf("record without link must not gain detail fields")
	}
	if len(mock.Calls) != 2 {
		t.Errorf("expected 2 detail fetches, got %v", mock.Calls)
	}
	if _, ok := input[0][FieldPhone]; ok {
		t.Errorf("input records must not be modified")
	}
}

func TestProjectColumns(t *testing.T) {
	records := []Record{
		{FieldSeq: "1", FieldComplexName: "A", FieldDetailLink: "", FieldPhone: "1"},
		{FieldSeq: "2", FieldContractTitle: "B"},
	}
	retained := []Field{FieldContractTitle, FieldPhone, FieldFax}

	got := ProjectColumns(PrivateContract, retained, records)
	want := []Field{FieldSeq, FieldComplexName, FieldContractTitle, FieldDetailLink, FieldPhone}

	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
