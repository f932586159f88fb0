package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/david/kapt-crawler/internal/crawl"
	"golang.org/x/text/encoding/korean"
)

// ErrUnreadableConfig is returned when a job file decodes in none of the
// supported encodings.
var ErrUnreadableConfig = errors.New("configuration file unreadable")

// Mode selects which stages a job runs.
type Mode int

const (
	ModeSummaryPlusDetail Mode = 1
	ModeSummaryOnly       Mode = 2
	ModeDetailOnly        Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeSummaryPlusDetail:
		return "summary_plus_detail"
	case ModeSummaryOnly:
		return "summary_only"
	case ModeDetailOnly:
		return "detail_only"
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

const DefaultExtractionCount = 50

// Job is one crawl configuration, in the JSON layout of saved favorites.
type Job struct {
	URL                   string   `json:"url"`
	ExtractionCount       int      `json:"extraction_count"`
	Mode                  Mode     `json:"mode"`
	PageTypeIndex         int      `json:"page_type_index"`
	SelectedExcelPath     string   `json:"selected_excel_path"`
	SelectedDetailColumns []string `json:"selected_detail_columns"`
	AutoExit              bool     `json:"auto_exit"`
}

// DefaultJob holds the values used for keys missing from a job file.
func DefaultJob() Job {
	return Job{
		ExtractionCount: DefaultExtractionCount,
		Mode:            ModeSummaryPlusDetail,
	}
}

func (j Job) ListingType() (crawl.ListingType, error) {
	return crawl.ListingTypeFromIndex(j.PageTypeIndex)
}

// Retained returns the selected detail columns as fields, in operator order.
func (j Job) Retained() []crawl.Field {
	out := make([]crawl.Field, 0, len(j.SelectedDetailColumns))
	for _, c := range j.SelectedDetailColumns {
		out = append(out, crawl.Field(c))
	}
	return out
}

// Validate checks the values a run depends on.
func (j Job) Validate() error {
	if _, err := j.ListingType(); err != nil {
		return err
	}
	switch j.Mode {
	case ModeSummaryPlusDetail, ModeSummaryOnly, ModeDetailOnly:
	default:
		return fmt.Errorf("unsupported mode %d", int(j.Mode))
	}
	return nil
}

type decoder struct {
	name   string
	decode func([]byte) ([]byte, error)
}

var jobEncodings = []decoder{
	{"utf-8", func(b []byte) ([]byte, error) {
		if !utf8.Valid(b) {
			return nil, errors.New("invalid utf-8")
		}
		return b, nil
	}},
	{"euc-kr", func(b []byte) ([]byte, error) {
		out, err := korean.EUCKR.NewDecoder().Bytes(b)
		if err != nil {
			return nil, err
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			return nil, errors.New("invalid euc-kr")
		}
		return out, nil
	}},
}

// LoadJob reads a job file, trying each supported encoding in turn. A missing
// file is reported as such; anything that parses in no encoding is
// ErrUnreadableConfig.
func LoadJob(path string) (Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Job{}, fmt.Errorf("read job config: %w", err)
	}

	names := make([]string, 0, len(jobEncodings))
	for _, enc := range jobEncodings {
		names = append(names, enc.name)

		text, err := enc.decode(data)
		if err != nil {
			continue
		}
		job := DefaultJob()
		if err := json.Unmarshal(text, &job); err != nil {
			continue
		}
		return job, nil
	}

	return Job{}, fmt.Errorf("%w: %s (supported encodings: %s)", ErrUnreadableConfig, path, strings.Join(names, ", "))
}

// ResolveListingURL returns the URL a job crawls. An empty URL, or one that
// does not belong to listing type t, is replaced by the default listing URL of
// t; substituted reports whether a non-empty URL was discarded.
func ResolveListingURL(raw string, t crawl.ListingType, base string) (resolved string, substituted bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return t.DefaultURL(base), false
	}
	if urlMatchesType(raw, t) {
		return raw, false
	}
	return t.DefaultURL(base), true
}

func urlMatchesType(raw string, t crawl.ListingType) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	switch t {
	case crawl.PrivateContract:
		return strings.HasSuffix(u.Path, "/privateContractList.do")
	case crawl.CompetitiveBid:
		return strings.HasSuffix(u.Path, "/bidList.do") && u.Query().Get("type") == "3"
	default:
		return strings.HasSuffix(u.Path, "/bidList.do") && u.Query().Get("type") != "3"
	}
}

const defaultFavorite = "default.json"

// SaveFavorite writes job as favorite_<timestamp>.json in dir and also as
// default.json, which the console loads on start. It returns the timestamped path.
func SaveFavorite(dir string, job Job, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create favorites dir: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(job); err != nil {
		return "", fmt.Errorf("encode favorite: %w", err)
	}

	path := filepath.Join(dir, "favorite_"+now.Format("20060102_150405")+".json")
	for _, p := range []string{path, filepath.Join(dir, defaultFavorite)} {
		if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
			return "", fmt.Errorf("write favorite: %w", err)
		}
	}
	return path, nil
}

// LoadDefaultFavorite loads default.json from dir. ok is false when there is none.
func LoadDefaultFavorite(dir string) (job Job, ok bool, err error) {
	job, err = LoadJob(filepath.Join(dir, defaultFavorite))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultJob(), false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	return job, true, nil
}
