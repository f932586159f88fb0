package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrTransport covers connection failures and timeouts.
	ErrTransport = errors.New("transport failure")
	// ErrStatus is returned for any HTTP status other than 200.
	ErrStatus = errors.New("unexpected status code")
	// ErrNotFound is a 404. It also matches ErrStatus.
	ErrNotFound = errors.New("not found")
	// ErrParse means the body could not be turned into a document.
	ErrParse = errors.New("unparsable document")
)

// FetchError describes why a document could not be produced for a URL.
type FetchError struct {
	URL        string
	StatusCode int
	Kind       error
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: %v: %d", e.URL, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %v: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Kind)
	}
}

func (e *FetchError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.StatusCode == 404 {
		errs = append(errs, ErrNotFound)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func statusError(rawURL string, code int) *FetchError {
	return &FetchError{URL: rawURL, StatusCode: code, Kind: ErrStatus}
}

func transportError(rawURL string, err error) *FetchError {
	return &FetchError{URL: rawURL, Kind: ErrTransport, Err: err}
}

func parseError(rawURL string, err error) *FetchError {
	return &FetchError{URL: rawURL, Kind: ErrParse, Err: err}
}

// Fetcher retrieves a URL and returns it as a parsed HTML document.
// params, when non-nil, replaces the query string of rawURL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error)
}

// ProgressSink receives human-readable progress lines in the order they are produced.
type ProgressSink interface {
	Progress(msg string)
}

// SinkFunc adapts a plain function to ProgressSink.
type SinkFunc func(msg string)

func (f SinkFunc) Progress(msg string) { f(msg) }

// Discard drops every message.
var Discard ProgressSink = SinkFunc(func(string) {})

func progressf(p ProgressSink, format string, args ...any) {
	if p == nil {
		return
	}
	p.Progress(fmt.Sprintf(format, args...))
}

// requestURL applies params to rawURL the way every engine issues the request.
func requestURL(rawURL string, params url.Values) (string, error) {
	if params == nil {
		return rawURL, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	u.RawQuery = params.Encode()
	return u.String(), nil
}
