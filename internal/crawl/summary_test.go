package crawl

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

const listURL = "https://www.k-apt.go.kr/bid/privateContractList.do"

func pageURL(n int) string {
	return fmt.Sprintf("%s?pageNo=%d", listURL, n)
}

func TestCrawlAllPages_SingleRowScenario(t *testing.T) {
	mock := &MockFetcher{Data: map[string]string{
		pageURL(1): privateContractPage(3, privateContractRow("1", "ABC123")),
		pageURL(2): privateContractPage(3),
		pageURL(3): privateContractPage(3),
	}}
	c := &Crawler{Fetcher: mock, Type: PrivateContract}

	rows := c.CrawlAllPages(context.Background(), listURL, 50, Discard)
	if len(rows) != 1 {
		t.Fatalf("expected 1 record, got %d", len(rows))
	}
	if got := rows[0][FieldDetailLink]; got != "https://www.k-apt.go.kr/bid/privateContractDetail.do?pcNum=ABC123" {
		t.Errorf("unexpected detail link %q", got)
	}
	if mock.callCount(pageURL(3)) != 1 {
		t.Errorf("expected page 3 to be fetched once")
	}
	if n := mock.callCount(pageURL(1)); n != 1 {
		t.Errorf("expected page 1 fetched once and reused, got %d calls", n)
	}
}

func TestCrawlAllPages_CapStopsFetching(t *testing.T) {
	mock := &MockFetcher{Data: map[string]string{
		pageURL(1): privateContractPage(3, privateContractRow("1", "a"), privateContractRow("2", "b")),
		pageURL(2): privateContractPage(3, privateContractRow("3", "c"), privateContractRow("4", "d")),
		pageURL(3): privateContractPage(3, privateContractRow("5", "e"), privateContractRow("6", "f")),
	}}
	c := &Crawler{Fetcher: mock, Type: PrivateContract}

	rows := c.CrawlAllPages(context.Background(), listURL, 3, Discard)
	if len(rows) != 3 {
		t.Fatalf("expected exactly 3 records, got %d", len(rows))
	}
	for i, want := range []string{"1", "2", "3"} {
		if rows[i][FieldSeq] != want {
			t.Errorf("row %d: expected seq %s, got %s", i, want, rows[i][FieldSeq])
		}
	}
	if n := mock.callCount(pageURL(3)); n != 0 {
		t.Errorf("expected page 3 never fetched, got %d calls", n)
	}
}

func TestCrawlAllPages_SkipsFailedPage(t *testing.T) {
	mock := &MockFetcher{Data: map[string]string{
		pageURL(1): privateContractPage(3, privateContractRow("1", "a")),
		pageURL(3): privateContractPage(3, privateContractRow("3", "c")),
	}}
	c := &Crawler{Fetcher: mock, Type: PrivateContract}

	var log []string
	rows := c.CrawlAllPages(context.Background(), listURL, 0, SinkFunc(func(m string) { log = append(log, m) }))
	if len(rows) != 2 || rows[0][FieldSeq] != "1" || rows[1][FieldSeq] != "3" {
		t.Fatalf("expected rows 1 and 3 in order, got %v", rows)
	}

	joined := strings.Join(log, "\n")
	if !strings.Contains(joined, "Failed to load page 2") {
		t.Errorf("expected skip notice for page 2, got:\n%s", joined)
	}
	if !strings.HasSuffix(joined, "Collected 2 records") {
		t.Errorf("expected final count last, got:\n%s", joined)
	}
}

func TestCrawlAllPages_FirstPageUnavailable(t *testing.T) {
	mock := &MockFetcher{Data: map[string]string{}}
	c := &Crawler{Fetcher: mock, Type: PrivateContract}

	if rows := c.CrawlAllPages(context.Background(), listURL, 10, nil); len(rows) != 0 {
		t.Fatalf("expected no records, got %v", rows)
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected a single attempt at page 1, got %v", mock.Calls)
	}
}
