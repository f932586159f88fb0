package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() {
	s.pool.Close()
}

// Run is one row of crawl_runs.
type Run struct {
	ID          string
	ListingType string
	Mode        string
	URL         string
	Status      string
	Items       int
	Failed      int
	OutputPath  string
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// Duration is the run time so far, or the total once completed.
func (r Run) Duration(now time.Time) time.Duration {
	end := now
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(r.StartedAt).Round(time.Second)
}

// RunFilter narrows RecentRuns. Zero values mean no filter.
type RunFilter struct {
	ListingType string
	Status      string
	Limit       int
}

const runCols = `run_id, listing_type, mode, url, status, items, failed, output_path, error, started_at, completed_at`

func (s *Store) StartRun(ctx context.Context, r Run) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_runs (run_id, listing_type, mode, url, status, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, r.ID, r.ListingType, r.Mode, r.URL, StatusRunning, r.StartedAt)
	if err != nil {
		return fmt.Errorf("start run %s: %w", r.ID, err)
	}
	return nil
}

// FinishRun records the outcome of a run started with StartRun.
func (s *Store) FinishRun(ctx context.Context, r Run) error {
	completed := time.Now()
	if r.CompletedAt != nil {
		completed = *r.CompletedAt
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE crawl_runs
		SET status = $2, items = $3, failed = $4, output_path = $5, error = $6, completed_at = $7
		WHERE run_id = $1
	`, r.ID, r.Status, r.Items, r.Failed, r.OutputPath, r.Error, completed)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) RecentRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	sql, args := buildRecentRunsQuery(filter)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ListingType, &r.Mode, &r.URL, &r.Status, &r.Items, &r.Failed,
			&r.OutputPath, &r.Error, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func buildRecentRunsQuery(filter RunFilter) (string, []interface{}) {
	where := "WHERE 1=1"
	var args []interface{}
	argIdx := 1

	if filter.ListingType != "" {
		where += fmt.Sprintf(" AND listing_type = $%d", argIdx)
		args = append(args, filter.ListingType)
		argIdx++
	}
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	args = append(args, limit)

	sql := fmt.Sprintf("SELECT %s FROM crawl_runs %s ORDER BY started_at DESC LIMIT $%d", runCols, where, argIdx)
	return sql, args
}
