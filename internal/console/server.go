// Package console serves the interactive crawl console: a local web page that
// edits a job, runs it in the background and streams its progress.
package console

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sirupsen/logrus"

	"github.com/david/kapt-crawler/internal/config"
	"github.com/david/kapt-crawler/internal/crawl"
	"github.com/david/kapt-crawler/internal/logging"
	"github.com/david/kapt-crawler/internal/runner"
)

//go:embed web/index.html
var indexHTML []byte

// DefaultExitDelay leaves the page time to poll the final status before an
// auto_exit job stops the console.
const DefaultExitDelay = 3 * time.Second

const (
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

type Server struct {
	Echo     *echo.Echo
	Runner   *runner.Runner
	Settings *config.Settings
	Log      *logrus.Logger

	// OnExit is called once an auto_exit job has succeeded and ExitDelay passed.
	OnExit    func()
	ExitDelay time.Duration

	sanitizer *bluemonday.Policy

	// Background job tracking
	jobMu      sync.Mutex
	runningJob *backgroundJob
}

type backgroundJob struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`   // crawl, batch
	Status    string    `json:"status"` // running, completed, failed
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	AutoExit  bool      `json:"auto_exit"`
	lines     []string
}

func NewServer(r *runner.Runner, settings *config.Settings, log *logrus.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.WithFields(logging.Fields{"method": v.Method, "uri": v.URI, "status": v.Status}).Debug("request")
			return nil
		},
	}))

	s := &Server{
		Echo:      e,
		Runner:    r,
		Settings:  settings,
		Log:       log,
		ExitDelay: DefaultExitDelay,
		sanitizer: bluemonday.StrictPolicy(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/", s.handleIndex)
	s.Echo.GET("/health", s.handleHealth)

	api := s.Echo.Group("/api/v1")
	api.GET("/listing-types", s.handleListingTypes)
	api.POST("/crawl", s.handleStartCrawl)
	api.GET("/crawl/:id", s.handleJobStatus)
	api.POST("/batch", s.handleStartBatch)
	api.GET("/favorites", s.handleLoadFavorite)
	api.POST("/favorites", s.handleSaveFavorite)
}

// Start serves on addr until Close is called.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Close(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type listingTypeInfo struct {
	Index           int      `json:"index"`
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	DefaultURL      string   `json:"default_url"`
	SummaryColumns  []string `json:"summary_columns"`
	DetailFields    []string `json:"detail_fields"`
	DefaultRetained []string `json:"default_retained"`
}

func fieldNames(fields []crawl.Field) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = string(f)
	}
	return out
}

func (s *Server) handleListingTypes(c echo.Context) error {
	types := make([]listingTypeInfo, 0, len(crawl.ListingTypes))
	for i, lt := range crawl.ListingTypes {
		schema := crawl.SchemaFor(lt)
		types = append(types, listingTypeInfo{
			Index:           i,
			ID:              lt.String(),
			Title:           lt.Title(),
			DefaultURL:      lt.DefaultURL(s.Settings.BaseURL),
			SummaryColumns:  fieldNames(schema.Summary),
			DetailFields:    fieldNames(schema.Selectable),
			DefaultRetained: fieldNames(schema.DefaultRetained),
		})
	}
	return c.JSON(http.StatusOK, types)
}

// startJob registers a new job unless one is running. The returned job is nil
// when the caller must answer 409.
func (s *Server) startJob(kind string, autoExit bool) (*backgroundJob, *backgroundJob) {
	s.jobMu.Lock()
	defer s.jobMu.Unlock()

	if s.runningJob != nil && s.runningJob.Status == jobRunning {
		return nil, s.runningJob
	}
	job := &backgroundJob{
		ID:        uuid.New().String()[:8],
		Kind:      kind,
		Status:    jobRunning,
		StartedAt: time.Now(),
		AutoExit:  autoExit,
	}
	s.runningJob = job
	return job, nil
}

// sink appends progress lines to job in production order and mirrors them to the log.
func (s *Server) sink(job *backgroundJob) crawl.ProgressSink {
	logSink := logging.NewSink(s.Log, logging.Fields{"job": job.ID})
	return crawl.SinkFunc(func(msg string) {
		s.jobMu.Lock()
		job.lines = append(job.lines, msg)
		s.jobMu.Unlock()
		logSink.Progress(msg)
	})
}

func (s *Server) finishJob(job *backgroundJob, result any, err error) {
	s.jobMu.Lock()
	job.EndedAt = time.Now()
	if err != nil {
		job.Status = jobFailed
		job.Error = err.Error()
	} else {
		job.Status = jobCompleted
	}
	job.Result = result
	autoExit := job.AutoExit
	s.jobMu.Unlock()

	if err != nil {
		s.Log.Errorf("[%s-job %s] failed: %v", job.Kind, job.ID, err)
	} else {
		s.Log.Infof("[%s-job %s] completed", job.Kind, job.ID)
	}

	// A failed job keeps the console open so its error can be read.
	if autoExit && err == nil && s.OnExit != nil {
		time.AfterFunc(s.ExitDelay, s.OnExit)
	}
}

func conflict(c echo.Context, running *backgroundJob) error {
	return c.JSON(http.StatusConflict, map[string]interface{}{
		"error":  "A crawl job is already running",
		"job_id": running.ID,
	})
}

func (s *Server) handleStartCrawl(c echo.Context) error {
	job := config.DefaultJob()
	if err := c.Bind(&job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job: " + err.Error()})
	}
	if err := job.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	bg, running := s.startJob("crawl", job.AutoExit)
	if bg == nil {
		return conflict(c, running)
	}

	// The crawl outlives the request; it is never cancelled from here.
	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		res, err := s.Runner.Run(ctx, job, s.sink(bg))
		var result any
		if err == nil {
			result = res.Message
		}
		s.finishJob(bg, result, err)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Crawl job started",
		"job_id":  bg.ID,
		"poll":    fmt.Sprintf("/api/v1/crawl/%s", bg.ID),
	})
}

type batchRequest struct {
	Folder   string `json:"folder"`
	AutoExit bool   `json:"auto_exit"`
}

type batchItem struct {
	File   string `json:"file"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleStartBatch(c echo.Context) error {
	var req batchRequest
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Folder) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "folder is required"})
	}

	bg, running := s.startJob("batch", req.AutoExit)
	if bg == nil {
		return conflict(c, running)
	}

	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		entries, err := s.Runner.RunFolder(ctx, req.Folder, s.sink(bg))
		items := make([]batchItem, 0, len(entries))
		for _, e := range entries {
			item := batchItem{File: e.File, Result: e.Result.Message}
			if e.Err != nil {
				item.Error = e.Err.Error()
			}
			items = append(items, item)
		}
		s.finishJob(bg, items, err)
	}()

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"message": "Batch job started",
		"job_id":  bg.ID,
		"poll":    fmt.Sprintf("/api/v1/crawl/%s", bg.ID),
	})
}

func (s *Server) handleJobStatus(c echo.Context) error {
	queried := c.Param("id")
	since, _ := strconv.Atoi(c.QueryParam("since"))

	s.jobMu.Lock()
	job := s.runningJob
	if job == nil || job.ID != queried {
		s.jobMu.Unlock()
		return c.JSON(http.StatusNotFound, map[string]string{"error": "job not found"})
	}

	if since < 0 || since > len(job.lines) {
		since = len(job.lines)
	}
	lines := make([]string, 0, len(job.lines)-since)
	for _, l := range job.lines[since:] {
		lines = append(lines, s.sanitizer.Sanitize(l))
	}

	resp := map[string]interface{}{
		"id":         job.ID,
		"kind":       job.Kind,
		"status":     job.Status,
		"started_at": job.StartedAt,
		"auto_exit":  job.AutoExit,
		"lines":      lines,
		"next":       len(job.lines),
	}
	if !job.EndedAt.IsZero() {
		resp["ended_at"] = job.EndedAt
		resp["duration"] = job.EndedAt.Sub(job.StartedAt).Round(time.Millisecond).String()
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != "" {
		resp["error"] = job.Error
	}
	s.jobMu.Unlock()

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleLoadFavorite(c echo.Context) error {
	job, ok, err := config.LoadDefaultFavorite(s.Settings.Console.FavoritesDir)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"saved": ok,
		"job":   job,
	})
}

func (s *Server) handleSaveFavorite(c echo.Context) error {
	job := config.DefaultJob()
	if err := c.Bind(&job); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid job: " + err.Error()})
	}

	path, err := config.SaveFavorite(s.Settings.Console.FavoritesDir, job, time.Now())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"path": path})
}
