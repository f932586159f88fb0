package crawl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultMaxBodyBytes = 10 * 1024 * 1024
)

// errBodyTooLarge rejects pages that would otherwise be parsed truncated.
var errBodyTooLarge = errors.New("response body exceeds size limit")

// HTTPFetcher fetches pages with net/http and parses them with goquery.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	// Limiter spaces out requests when set.
	Limiter *rate.Limiter
	// MaxBodyBytes bounds the page size; larger pages fail with ErrParse.
	MaxBodyBytes int64
}

// WithDelay makes the fetcher wait at least delay between requests.
func (f *HTTPFetcher) WithDelay(delay time.Duration) *HTTPFetcher {
	if delay > 0 {
		f.Limiter = rate.NewLimiter(rate.Every(delay), 1)
	}
	return f
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &HTTPFetcher{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	target, err := requestURL(rawURL, params)
	if err != nil {
		return nil, transportError(rawURL, err)
	}

	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return nil, transportError(target, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, transportError(target, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("User-Agent", f.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, transportError(target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(target, resp.StatusCode)
	}

	limit := f.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, transportError(target, fmt.Errorf("failed to read body: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, parseError(target, fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit))
	}

	return parseUTF8(target, body)
}

// parseUTF8 decodes body as UTF-8 whatever the server declared; the K-APT pages
// label their charset inconsistently.
func parseUTF8(rawURL string, body []byte) (*goquery.Document, error) {
	text := strings.ToValidUTF8(string(body), "\uFFFD")
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader([]byte(text)))
	if err != nil {
		return nil, parseError(rawURL, err)
	}
	if u, err := url.Parse(rawURL); err == nil {
		doc.Url = u
	}
	return doc, nil
}
