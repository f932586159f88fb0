package crawl

import (
	"context"
)

// Crawler walks every page of one listing and collects summary records.
type Crawler struct {
	Fetcher Fetcher
	Type    ListingType
	// BaseURL is used to build detail links. Empty means DefaultBaseURL.
	BaseURL string
}

func (c *Crawler) base() string {
	if c.BaseURL == "" {
		return DefaultBaseURL
	}
	return c.BaseURL
}

// CrawlAllPages fetches pages 1..last of listingURL in order and returns at most
// itemCap records (itemCap <= 0 is uncapped). A page that cannot be loaded is
// skipped; only a missing first page ends the crawl with no records.
// Page 1 is fetched once, to find the last page, and its document is reused.
func (c *Crawler) CrawlAllPages(ctx context.Context, listingURL string, itemCap int, progress ProgressSink) []Record {
	pager := &Paginator{Fetcher: c.Fetcher}

	first, err := pager.PageDocument(ctx, listingURL, 1)
	if first == nil {
		progressf(progress, "Failed to load first page: %v", err)
		return nil
	}

	lastPage := LastPage(first)
	progressf(progress, "Last page: %d", lastPage)

	var all []Record
	for page := 1; page <= lastPage; page++ {
		progressf(progress, "Processing page %d/%d...", page, lastPage)

		doc := first
		if page > 1 {
			doc, err = pager.PageDocument(ctx, listingURL, page)
			if doc == nil {
				progressf(progress, "Failed to load page %d, skipping: %v", page, err)
				continue
			}
		}

		all = append(all, ParseRows(doc, c.Type, c.base())...)
		if itemCap > 0 && len(all) >= itemCap {
			all = all[:itemCap]
			break
		}
	}

	progressf(progress, "Collected %d records", len(all))
	return all
}
