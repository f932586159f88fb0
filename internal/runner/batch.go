package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/crawl"
)

// BatchEntry is the outcome of one configuration file in a batch.
type BatchEntry struct {
	File   string
	Result Result
	Err    error
}

// BatchDone is reported after the last configuration of a batch.
const BatchDone = "All crawl jobs finished"

// RunFolder runs every *.json configuration in dir, one after another, in name
// order. A file that fails to load or to run is logged and skipped. The
// returned error is only set when dir itself cannot be listed.
func (r *Runner) RunFolder(ctx context.Context, dir string, progress crawl.ProgressSink) ([]BatchEntry, error) {
	if progress == nil {
		progress = crawl.Discard
	}

	files, err := jobFiles(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		progress.Progress("No JSON files in the selected folder.")
		return nil, nil
	}

	entries := make([]BatchEntry, 0, len(files))
	for _, path := range files {
		name := filepath.Base(path)
		entry := BatchEntry{File: name}

		job, err := config.LoadJob(path)
		if err != nil {
			progress.Progress(fmt.Sprintf("Failed to read %s: %v", name, err))
			entry.Err = err
			entries = append(entries, entry)
			continue
		}

		progress.Progress(fmt.Sprintf("Processing configuration: %s", name))
		entry.Result, entry.Err = r.Run(ctx, job, progress)
		if entry.Err != nil {
			progress.Progress(fmt.Sprintf("Crawl failed (%s): %v", name, entry.Err))
		} else {
			progress.Progress(fmt.Sprintf("Crawl complete (%s): result -> %s", name, entry.Result.Message))
		}
		entries = append(entries, entry)
	}

	progress.Progress(BatchDone)
	return entries, nil
}

func jobFiles(dir string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read batch folder: %w", err)
	}

	var files []string
	for _, e := range dirEntries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".json") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
