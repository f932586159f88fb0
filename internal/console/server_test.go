package console

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/crawl"
	"github.com/david/kapt-crawler/internal/runner"
)

// gateFetcher blocks every fetch until release is closed, then reports a 404.
type gateFetcher struct {
	release chan struct{}
}

func (f *gateFetcher) Fetch(ctx context.Context, rawURL string, params url.Values) (*goquery.Document, error) {
	<-f.release
	return nil, &crawl.FetchError{URL: rawURL, StatusCode: 404, Kind: crawl.ErrStatus}
}

func newTestServer(t *testing.T) (*Server, *gateFetcher) {
	t.Helper()
	root := t.TempDir()
	settings := &config.Settings{
		BaseURL: crawl.DefaultBaseURL,
		Fetch:   config.FetchSettings{Engine: config.EngineHTTP, DetailAttempts: 3},
		Output: config.OutputSettings{
			SummaryDir: filepath.Join(root, "summary"), SummaryPrefix: "s",
			DetailDir: filepath.Join(root, "detail"), DetailPrefix: "d",
		},
		Console: config.ConsoleSettings{FavoritesDir: filepath.Join(root, "favorites")},
	}
	fetcher := &gateFetcher{release: make(chan struct{})}
	log := logrus.New()
	log.SetOutput(io.Discard)

	r := &runner.Runner{Settings: settings, Fetcher: fetcher, Log: log, Now: time.Now}
	s := NewServer(r, settings, log)
	s.ExitDelay = 0
	return s, fetcher
}

func do(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func waitForStatus(t *testing.T, s *Server, id string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		_, out := do(t, s, http.MethodGet, "/api/v1/crawl/"+id, "")
		if out["status"] != jobRunning {
			return out
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return nil
}

func TestIndexAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "/api/v1/crawl") {
		t.Errorf("unexpected index response %d", rec.Code)
	}
	rec, out := do(t, s, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || out["status"] != "ok" {
		t.Errorf("unexpected health response %d %v", rec.Code, out)
	}
}

func TestListingTypes(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/listing-types", nil)
	rec := httptest.NewRecorder()
	s.Echo.ServeHTTP(rec, req)

	var types []listingTypeInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &types); err != nil {
		t.Fatal(err)
	}
	if len(types) != 3 {
		t.Fatalf("expected 3 listing types, got %d", len(types))
	}
	if len(types[0].DetailFields) != 20 || len(types[0].DefaultRetained) != 11 {
		t.Errorf("unexpected private contract fields: %+v", types[0])
	}
	if len(types[1].DetailFields) != 24 || len(types[2].DefaultRetained) != 19 {
		t.Errorf("unexpected bid fields: %+v", types[1])
	}
	if types[1].DefaultURL != "https://www.k-apt.go.kr/bid/bidList.do?type=3" {
		t.Errorf("unexpected default url %s", types[1].DefaultURL)
	}
}

func TestCrawlLifecycle(t *testing.T) {
	s, fetcher := newTestServer(t)

	rec, out := do(t, s, http.MethodPost, "/api/v1/crawl", `{"mode": 2}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	id := out["job_id"].(string)

	rec, out = do(t, s, http.MethodPost, "/api/v1/crawl", `{"mode": 2}`)
	if rec.Code != http.StatusConflict || out["job_id"] != id {
		t.Fatalf("expected 409 for the running job, got %d %v", rec.Code, out)
	}
	rec, _ = do(t, s, http.MethodPost, "/api/v1/batch", `{"folder": "/tmp"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected batch to conflict too, got %d", rec.Code)
	}

	close(fetcher.release)
	final := waitForStatus(t, s, id)
	if final["status"] != jobCompleted || final["result"] != runner.NoDataResult {
		t.Fatalf("unexpected final status %v", final)
	}

	lines := final["lines"].([]interface{})
	if len(lines) == 0 || final["next"].(float64) != float64(len(lines)) {
		t.Fatalf("unexpected lines %v next=%v", lines, final["next"])
	}

	_, tail := do(t, s, http.MethodGet, "/api/v1/crawl/"+id+"?since=1", "")
	if got := len(tail["lines"].([]interface{})); got != len(lines)-1 {
		t.Errorf("since=1 should skip one line, got %d of %d", got, len(lines))
	}

	rec, _ = do(t, s, http.MethodPost, "/api/v1/crawl", `{"mode": 2}`)
	if rec.Code != http.StatusAccepted {
		t.Errorf("a finished job must not block the next one, got %d", rec.Code)
	}
}

func TestStartCrawl_Invalid(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct{ path, body string }{
		{"/api/v1/crawl", `{"mode": 9}`},
		{"/api/v1/crawl", `{"page_type_index": 5}`},
		{"/api/v1/crawl", `not json`},
		{"/api/v1/batch", `{"folder": "  "}`},
	}
	for _, tt := range tests {
		if rec, _ := do(t, s, http.MethodPost, tt.path, tt.body); rec.Code != http.StatusBadRequest {
			t.Errorf("%s %s: expected 400, got %d", tt.path, tt.body, rec.Code)
		}
	}

	if rec, _ := do(t, s, http.MethodGet, "/api/v1/crawl/nope", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func TestJobLinesAreSanitized(t *testing.T) {
	s, _ := newTestServer(t)
	job, _ := s.startJob("crawl", false)

	sink := s.sink(job)
	sink.Progress(`<script>alert(1)</script>Fetching <b>page</b> 1`)
	sink.Progress("second")

	_, out := do(t, s, http.MethodGet, "/api/v1/crawl/"+job.ID, "")
	lines := out["lines"].([]interface{})
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %v", lines)
	}
	first := lines[0].(string)
	if strings.Contains(first, "<script>") || strings.Contains(first, "<b>") || !strings.Contains(first, "Fetching page 1") {
		t.Errorf("line not sanitised: %q", first)
	}
	if lines[1] != "second" {
		t.Errorf("lines out of order: %v", lines)
	}
}

func TestAutoExit(t *testing.T) {
	s, fetcher := newTestServer(t)
	exited := make(chan struct{})
	s.OnExit = func() { close(exited) }
	close(fetcher.release)

	rec, _ := do(t, s, http.MethodPost, "/api/v1/crawl", `{"mode": 2, "auto_exit": true}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("console did not exit after an auto_exit job")
	}
}

func TestAutoExit_FailedJobKeepsConsoleOpen(t *testing.T) {
	s, _ := newTestServer(t)
	exited := make(chan struct{})
	s.OnExit = func() { close(exited) }

	missing := filepath.Join(t.TempDir(), "missing.xlsx")
	body := `{"mode": 3, "selected_excel_path": "` + filepath.ToSlash(missing) + `", "auto_exit": true}`
	rec, out := do(t, s, http.MethodPost, "/api/v1/crawl", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	final := waitForStatus(t, s, out["job_id"].(string))
	if final["status"] != jobFailed || final["error"] == nil {
		t.Fatalf("expected a failed job, got %v", final)
	}

	select {
	case <-exited:
		t.Fatal("console exited after a failed auto_exit job")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAutoExit_Batch(t *testing.T) {
	s, fetcher := newTestServer(t)
	exited := make(chan struct{})
	s.OnExit = func() { close(exited) }
	close(fetcher.release)

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "job.json"), []byte(`{"mode": 2}`), 0o644); err != nil {
		t.Fatal(err)
	}

	body := `{"folder": "` + filepath.ToSlash(dir) + `", "auto_exit": true}`
	rec, out := do(t, s, http.MethodPost, "/api/v1/batch", body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	final := waitForStatus(t, s, out["job_id"].(string))
	if final["status"] != jobCompleted || final["auto_exit"] != true {
		t.Fatalf("unexpected batch status %v", final)
	}

	select {
	case <-exited:
	case <-time.After(5 * time.Second):
		t.Fatal("console did not exit after an auto_exit batch")
	}
}

func TestFavorites(t *testing.T) {
	s, _ := newTestServer(t)

	_, out := do(t, s, http.MethodGet, "/api/v1/favorites", "")
	if out["saved"] != false {
		t.Fatalf("expected no saved favorite, got %v", out)
	}

	rec, out := do(t, s, http.MethodPost, "/api/v1/favorites",
		`{"url": "", "extraction_count": 7, "mode": 1, "page_type_index": 2, "selected_detail_columns": ["입찰번호"]}`)
	if rec.Code != http.StatusOK || !strings.Contains(out["path"].(string), "favorite_") {
		t.Fatalf("unexpected save response %d %v", rec.Code, out)
	}

	_, out = do(t, s, http.MethodGet, "/api/v1/favorites", "")
	job := out["job"].(map[string]interface{})
	if out["saved"] != true || job["extraction_count"].(float64) != 7 || job["page_type_index"].(float64) != 2 {
		t.Errorf("unexpected loaded favorite %v", out)
	}
}
