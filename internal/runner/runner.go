// Package runner executes crawl jobs: one job per configuration, or every
// configuration in a folder in sequence.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/crawl"
	"github.com/david/kapt-crawler/internal/db"
	"github.com/david/kapt-crawler/internal/sheet"
)

// NoDataResult is reported when a crawl finds nothing to save.
const NoDataResult = "Done: no data"

// ErrSummaryMissing is returned by detail-only jobs whose workbook does not exist.
var ErrSummaryMissing = errors.New("summary workbook not found")

// RunRecorder persists run history. *db.Store implements it.
type RunRecorder interface {
	StartRun(ctx context.Context, r db.Run) error
	FinishRun(ctx context.Context, r db.Run) error
}

// Result is the outcome of one job.
type Result struct {
	// Message is the terminal line shown to the operator: an output path or NoDataResult.
	Message     string
	SummaryPath string
	DetailPath  string
	Items       int
	Failed      int
}

// OutputPath is the last file the job wrote, if any.
func (r Result) OutputPath() string {
	if r.DetailPath != "" {
		return r.DetailPath
	}
	return r.SummaryPath
}

type Runner struct {
	Settings *config.Settings
	Fetcher  crawl.Fetcher
	Recorder RunRecorder
	Log      logrus.FieldLogger
	Now      func() time.Time
}

// New builds a runner using the fetch engine named in settings. recorder may be nil.
func New(settings *config.Settings, recorder RunRecorder, log logrus.FieldLogger) *Runner {
	return &Runner{
		Settings: settings,
		Fetcher:  settings.NewFetcher(),
		Recorder: recorder,
		Log:      log,
		Now:      time.Now,
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

// Run executes job and reports progress lines in order. Structural absence on
// the site yields NoDataResult; only invalid jobs, missing input workbooks and
// failed saves return an error.
func (r *Runner) Run(ctx context.Context, job config.Job, progress crawl.ProgressSink) (Result, error) {
	if err := job.Validate(); err != nil {
		return Result{}, err
	}
	lt, _ := job.ListingType()
	if progress == nil {
		progress = crawl.Discard
	}

	run := db.Run{
		ID:          uuid.New().String(),
		ListingType: lt.String(),
		Mode:        job.Mode.String(),
		URL:         job.URL,
		StartedAt:   r.now(),
	}
	r.recordStart(ctx, run)

	var (
		res Result
		err error
	)
	switch job.Mode {
	case config.ModeSummaryPlusDetail:
		res, err = r.runSummary(ctx, job, lt, true, progress)
	case config.ModeSummaryOnly:
		res, err = r.runSummary(ctx, job, lt, false, progress)
	case config.ModeDetailOnly:
		res, err = r.runDetailOnly(ctx, job, lt, progress)
	}

	run.Status = db.StatusCompleted
	run.Items, run.Failed, run.OutputPath = res.Items, res.Failed, res.OutputPath()
	if err != nil {
		run.Status = db.StatusFailed
		run.Error = err.Error()
	}
	r.recordFinish(ctx, run)

	return res, err
}

func (r *Runner) runSummary(ctx context.Context, job config.Job, lt crawl.ListingType, withDetail bool, progress crawl.ProgressSink) (Result, error) {
	listingURL, substituted := config.ResolveListingURL(job.URL, lt, r.Settings.BaseURL)
	if substituted {
		progress.Progress(fmt.Sprintf("URL does not match %s, using the default listing URL: %s", lt.Title(), listingURL))
	}

	if withDetail {
		progress.Progress("[summary + detail] Starting crawl...")
	} else {
		progress.Progress("[summary only] Starting crawl...")
	}

	crawler := &crawl.Crawler{Fetcher: r.Fetcher, Type: lt, BaseURL: r.Settings.BaseURL}
	records := crawler.CrawlAllPages(ctx, listingURL, job.ExtractionCount, progress)
	if len(records) == 0 {
		progress.Progress("No data to save.")
		return Result{Message: NoDataResult}, nil
	}

	summaryPath, err := r.writeSummary(lt, records)
	if err != nil {
		return Result{}, err
	}
	progress.Progress(fmt.Sprintf("Summary crawl complete. Saved: %s", summaryPath))

	res := Result{Message: summaryPath, SummaryPath: summaryPath, Items: len(records)}
	if !withDetail {
		return res, nil
	}

	set, detailPath, err := r.enrichAndWrite(ctx, records, job.Retained(), lt, progress)
	if err != nil {
		return res, err
	}
	res.Message, res.DetailPath, res.Failed = detailPath, detailPath, set.Failed
	return res, nil
}

func (r *Runner) runDetailOnly(ctx context.Context, job config.Job, lt crawl.ListingType, progress crawl.ProgressSink) (Result, error) {
	path := job.SelectedExcelPath
	if path == "" {
		return Result{}, fmt.Errorf("%w: no workbook selected", ErrSummaryMissing)
	}
	if _, err := os.Stat(path); err != nil {
		progress.Progress(fmt.Sprintf("Workbook does not exist: %s", path))
		return Result{}, fmt.Errorf("%w: %s", ErrSummaryMissing, path)
	}

	progress.Progress("[workbook -> detail] Starting crawl...")
	_, records, err := sheet.Read(path)
	if err != nil {
		return Result{}, err
	}
	if len(records) == 0 {
		progress.Progress("No data to save.")
		return Result{Message: NoDataResult}, nil
	}

	set, detailPath, err := r.enrichAndWrite(ctx, records, job.Retained(), lt, progress)
	if err != nil {
		return Result{}, err
	}
	return Result{Message: detailPath, DetailPath: detailPath, Items: len(set.Records), Failed: set.Failed}, nil
}

func (r *Runner) writeSummary(lt crawl.ListingType, records []crawl.Record) (string, error) {
	out := r.Settings.Output
	path, err := sheet.UniquePath(out.SummaryDir, out.SummaryPrefix, r.now())
	if err != nil {
		return "", err
	}
	if err := sheet.Write(path, lt.SheetName(), crawl.SchemaFor(lt).Summary, records); err != nil {
		return "", err
	}
	return path, nil
}

func (r *Runner) enrichAndWrite(ctx context.Context, records []crawl.Record, retained []crawl.Field, lt crawl.ListingType, progress crawl.ProgressSink) (*crawl.MergedSet, string, error) {
	enricher := &crawl.Enricher{Fetcher: r.Fetcher, Attempts: r.Settings.Fetch.DetailAttempts}
	set := enricher.Enrich(ctx, records, retained, lt, progress)

	out := r.Settings.Output
	path, err := sheet.UniquePath(out.DetailDir, out.DetailPrefix, r.now())
	if err != nil {
		return set, "", err
	}
	if err := sheet.Write(path, sheet.MergedSheet, set.Columns, set.Records); err != nil {
		progress.Progress(fmt.Sprintf("Failed to save detail workbook: %v", err))
		return set, "", err
	}

	progress.Progress(fmt.Sprintf("Detail crawl complete: %d records (%d failed). Result: %s", len(set.Records), set.Failed, path))
	return set, path, nil
}

func (r *Runner) recordStart(ctx context.Context, run db.Run) {
	if r.Recorder == nil {
		return
	}
	if err := r.Recorder.StartRun(ctx, run); err != nil {
		r.warn(err, "Failed to record run start")
	}
}

func (r *Runner) recordFinish(ctx context.Context, run db.Run) {
	if r.Recorder == nil {
		return
	}
	completed := r.now()
	run.CompletedAt = &completed
	if err := r.Recorder.FinishRun(ctx, run); err != nil {
		r.warn(err, "Failed to record run result")
	}
}

func (r *Runner) warn(err error, msg string) {
	if r.Log != nil {
		r.Log.WithError(err).Warn(msg)
	}
}
