package crawl

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// MockFetcher serves canned HTML keyed by the full request URL.
type MockFetcher struct {
	Data map[string]string

	mu    sync.Mutex
	Calls []string
}

func (m *MockFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	target, err := requestURL(rawURL, params)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, target)
	m.mu.Unlock()

	content, ok := m.Data[target]
	if !ok {
		return nil, statusError(target, 404)
	}
	return parseUTF8(target, []byte(content))
}

func (m *MockFetcher) callCount(target string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == target {
			n++
		}
	}
	return n
}

func mustDoc(html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		panic(err)
	}
	return doc
}
