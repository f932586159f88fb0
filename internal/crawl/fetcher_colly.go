package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
)

// CollyFetcher implements Fetcher on top of a Colly collector. A fresh
// collector is built per request and never runs more than one request at a time.
type CollyFetcher struct {
	UserAgent      string
	RequestTimeout time.Duration
	DomainDelay    time.Duration
	// MaxBodySize bounds the page size; larger pages fail with ErrParse.
	MaxBodySize int
}

func NewCollyFetcher(timeout, delay time.Duration) *CollyFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &CollyFetcher{
		UserAgent:      DefaultUserAgent,
		RequestTimeout: timeout,
		DomainDelay:    delay,
		MaxBodySize:    DefaultMaxBodyBytes,
	}
}

func (f *CollyFetcher) bodyLimit() int {
	if f.MaxBodySize <= 0 {
		return DefaultMaxBodyBytes
	}
	return f.MaxBodySize
}

func (f *CollyFetcher) buildCollector() *colly.Collector {
	// One byte over the limit so an oversized page is detectable.
	c := colly.NewCollector(
		colly.UserAgent(f.UserAgent),
		colly.MaxBodySize(f.bodyLimit()+1),
		colly.AllowURLRevisit(),
	)

	c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       f.DomainDelay,
	})
	c.SetRequestTimeout(f.RequestTimeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
		r.ResponseCharacterEncoding = "UTF-8"
	})

	return c
}

func (f *CollyFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	target, err := requestURL(rawURL, params)
	if err != nil {
		return nil, transportError(rawURL, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, transportError(target, err)
	}

	c := f.buildCollector()

	var (
		doc      *goquery.Document
		fetchErr error
	)

	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode != http.StatusOK {
			fetchErr = statusError(target, r.StatusCode)
			return
		}
		if limit := f.bodyLimit(); len(r.Body) > limit {
			fetchErr = parseError(target, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit))
			return
		}
		doc, fetchErr = parseUTF8(target, r.Body)
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = statusError(target, r.StatusCode)
			return
		}
		fetchErr = transportError(target, err)
	})

	visitErr := c.Visit(target)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if visitErr != nil {
		return nil, transportError(target, fmt.Errorf("visit failed: %w", visitErr))
	}
	if doc == nil {
		return nil, transportError(target, fmt.Errorf("no response received"))
	}
	return doc, nil
}
