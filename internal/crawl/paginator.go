package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/PuerkitoBio/goquery"
)

// PageParam is the query parameter K-APT listings use for the page number.
const PageParam = "pageNo"

// Paginator fetches numbered pages of one listing.
type Paginator struct {
	Fetcher Fetcher
}

// PageDocument fetches page pageNo of listingURL. Every other query parameter is
// passed through, repeated keys included. A nil document means the page is
// unavailable; the error says why and is only meant for logging.
func (p *Paginator) PageDocument(ctx context.Context, listingURL string, pageNo int) (*goquery.Document, error) {
	u, err := url.Parse(listingURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing URL: %w", err)
	}

	params := u.Query()
	params.Set(PageParam, strconv.Itoa(pageNo))

	base := url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}
	doc, err := p.Fetcher.Fetch(ctx, base.String(), params)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// LastPage reads the highest page number from the pagination control. A listing
// without one has a single page.
func LastPage(doc *goquery.Document) int {
	pagination := doc.Find("div.pagination").First()
	if pagination.Length() == 0 {
		return 1
	}

	if href, ok := pagination.Find("a.last").First().Attr("href"); ok {
		if n, ok := goListPage(href); ok {
			return n
		}
	}

	last := 0
	pagination.Find("a.page").Each(func(_ int, a *goquery.Selection) {
		if n, ok := goListPage(a.AttrOr("href", "")); ok && n > last {
			last = n
		}
	})
	if last == 0 {
		return 1
	}
	return last
}
