package crawl

import (
	"context"
)

// DefaultAttempts bounds detail fetches per record.
const DefaultAttempts = 3

// MergedSet is the enrichment output: records plus the columns to write, in order.
type MergedSet struct {
	Columns []Field
	Records []Record
	// Failed counts records whose detail page never loaded.
	Failed int
	// Skipped counts records without a detail link.
	Skipped int
}

// Enricher fetches the detail page behind each summary record and merges it in.
type Enricher struct {
	Fetcher  Fetcher
	Attempts int
}

func (e *Enricher) attempts() int {
	if e.Attempts <= 0 {
		return DefaultAttempts
	}
	return e.Attempts
}

// fetchDetail is the failing variant of the fetch primitive: it surfaces every
// error so the caller can count attempts.
func (e *Enricher) fetchDetail(ctx context.Context, link string, t ListingType) (Record, error) {
	doc, err := e.Fetcher.Fetch(ctx, link, nil)
	if err != nil {
		return nil, err
	}
	return ParseDetail(doc, t), nil
}

// Enrich merges detail fields onto each summary record, in input order. A
// detail page that fails every attempt marks each retained field "FAILED"; it
// never stops the batch.
func (e *Enricher) Enrich(ctx context.Context, summaries []Record, retained []Field, t ListingType, progress ProgressSink) *MergedSet {
	total := len(summaries)
	progressf(progress, "Fetching details for %d records...", total)

	set := &MergedSet{Records: make([]Record, 0, total)}
	maxAttempts := e.attempts()

	for i, summary := range summaries {
		merged := summary.Clone()
		link := summary[FieldDetailLink]

		if link == "" {
			progressf(progress, "[%d/%d] No detail link, skipping", i+1, total)
			set.Skipped++
			set.Records = append(set.Records, merged)
			continue
		}

		progressf(progress, "[%d/%d] Fetching details: %s", i+1, total, link)

		var detail Record
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			d, err := e.fetchDetail(ctx, link, t)
			if err != nil {
				progressf(progress, "  [error] attempt %d/%d: %v", attempt, maxAttempts, err)
				continue
			}
			progressf(progress, "  [ok] attempt %d/%d", attempt, maxAttempts)
			detail = d
			break
		}

		if detail == nil {
			progressf(progress, "  [failed] giving up after %d attempts", maxAttempts)
			set.Failed++
			for _, f := range retained {
				merged[f] = FailedValue
			}
		} else {
			for f, v := range detail {
				merged[f] = v
			}
		}
		set.Records = append(set.Records, merged)
	}

	set.Columns = ProjectColumns(t, retained, set.Records)
	return set
}

// ProjectColumns returns the summary columns of t followed by the retained fields
// that are not summary columns, keeping only columns some record carries.
func ProjectColumns(t ListingType, retained []Field, records []Record) []Field {
	schema := SchemaFor(t)

	candidates := append([]Field{}, schema.Summary...)
	seen := make(map[Field]struct{}, len(candidates)+len(retained))
	for _, f := range candidates {
		seen[f] = struct{}{}
	}
	for _, f := range retained {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		candidates = append(candidates, f)
	}

	columns := make([]Field, 0, len(candidates))
	for _, f := range candidates {
		for _, rec := range records {
			if _, ok := rec[f]; ok {
				columns = append(columns, f)
				break
			}
		}
	}
	return columns
}
