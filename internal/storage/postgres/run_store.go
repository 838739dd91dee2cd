package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

const (
	runColumns = `id, run_key, status, started_at, completed_at,
	total_modules, successful_modules, failed_modules, skipped_modules`

	createRun = `
INSERT INTO scraping_run (status, total_modules, run_key)
VALUES ($1, $2, $3)
RETURNING id, started_at`

	updateRunCounts = `
UPDATE scraping_run
SET successful_modules = $2, failed_modules = $3, skipped_modules = $4
WHERE id = $1 AND status = 'in_progress'`

	finishRun = `
UPDATE scraping_run
SET status = $2, completed_at = NOW(),
	successful_modules = $3, failed_modules = $4, skipped_modules = $5
WHERE id = $1 AND status = 'in_progress'`

	getRun = `SELECT ` + runColumns + ` FROM scraping_run WHERE id = $1`

	listRuns = `SELECT ` + runColumns + ` FROM scraping_run
WHERE ($1::text IS NULL OR status = $1)
ORDER BY id DESC
LIMIT $2 OFFSET $3`

	findActiveRun = `SELECT ` + runColumns + ` FROM scraping_run
WHERE status = 'in_progress'
ORDER BY id DESC
LIMIT 1`
)

// RunStore implements store.RunRepository using Postgres.
type RunStore struct {
	db DB
}

// NewRunStore builds a run store on db.
func NewRunStore(db DB) (*RunStore, error) {
	if db == nil {
		return nil, errors.New("pool is required")
	}
	return &RunStore{db: db}, nil
}

// Create inserts a new in_progress run.
func (s *RunStore) Create(ctx context.Context, key uuid.UUID, total int) (store.ScrapingRun, error) {
	run := store.ScrapingRun{Key: key, Status: store.RunInProgress, Total: total}
	err := s.db.QueryRow(ctx, createRun, string(store.RunInProgress), total, key).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return store.ScrapingRun{}, fmt.Errorf("create scraping run: %w", err)
	}
	return run, nil
}

// UpdateCounts stores intermediate counters.
func (s *RunStore) UpdateCounts(ctx context.Context, id int64, tally scraper.Tally) error {
	tag, err := s.db.Exec(ctx, updateRunCounts, id, tally.Successful, tally.Failed, tally.Skipped)
	if err != nil {
		return fmt.Errorf("update run counts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrRunNotActive
	}
	return nil
}

// Finish records the terminal status. Only one Finish per run can succeed.
func (s *RunStore) Finish(ctx context.Context, id int64, status store.RunStatus, tally scraper.Tally) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}
	tag, err := s.db.Exec(ctx, finishRun, id, string(status), tally.Successful, tally.Failed, tally.Skipped)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return store.ErrRunNotActive
	}
	return nil
}

// Get loads one run by id.
func (s *RunStore) Get(ctx context.Context, id int64) (store.ScrapingRun, error) {
	run, err := scanRun(s.db.QueryRow(ctx, getRun, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ScrapingRun{}, store.ErrNotFound
		}
		return store.ScrapingRun{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// List returns runs newest first.
func (s *RunStore) List(ctx context.Context, status *store.RunStatus, limit, offset int) ([]store.ScrapingRun, error) {
	var filter *string
	if status != nil {
		v := string(*status)
		filter = &v
	}
	rows, err := s.db.Query(ctx, listRuns, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []store.ScrapingRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// FindActive returns the newest in_progress run, or nil when none exists.
func (s *RunStore) FindActive(ctx context.Context) (*store.ScrapingRun, error) {
	run, err := scanRun(s.db.QueryRow(ctx, findActiveRun))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active run: %w", err)
	}
	return &run, nil
}

func scanRun(row pgx.Row) (store.ScrapingRun, error) {
	var (
		run    store.ScrapingRun
		status string
	)
	err := row.Scan(
		&run.ID,
		&run.Key,
		&status,
		&run.StartedAt,
		&run.CompletedAt,
		&run.Total,
		&run.Successful,
		&run.Failed,
		&run.Skipped,
	)
	if err != nil {
		return store.ScrapingRun{}, err
	}
	run.Status = store.RunStatus(status)
	return run, nil
}
