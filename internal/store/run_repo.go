package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

var (
	// ErrNotFound signals that the requested run does not exist.
	ErrNotFound = errors.New("scraping run not found")
	// ErrRunNotActive is returned when finishing a run that already left in_progress.
	ErrRunNotActive = errors.New("scraping run is not in progress")
)

// RunStatus mirrors the scraping_run.status column.
type RunStatus string

// Run statuses. A run moves from RunInProgress to exactly one terminal status.
const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunInProgress, RunCompleted, RunFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s ends a run.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ScrapingRun models one row of scraping_run.
type ScrapingRun struct {
	ID  int64
	Key uuid.UUID
	// Status is in_progress until Finish is called.
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time

	Total      int
	Successful int
	Failed     int
	Skipped    int
}

// Completed returns the number of items with a recorded outcome.
func (r ScrapingRun) Completed() int {
	return r.Successful + r.Failed + r.Skipped
}

// RunRepository persists the scraping run lifecycle.
type RunRepository interface {
	// Create inserts a new in_progress run for total items.
	Create(ctx context.Context, key uuid.UUID, total int) (ScrapingRun, error)
	// UpdateCounts records intermediate counters of an in_progress run.
	UpdateCounts(ctx context.Context, id int64, tally scraper.Tally) error
	// Finish moves an in_progress run to status. It returns ErrRunNotActive
	// when the run was already finished.
	Finish(ctx context.Context, id int64, status RunStatus, tally scraper.Tally) error
	// Get loads one run or returns ErrNotFound.
	Get(ctx context.Context, id int64) (ScrapingRun, error)
	// List returns runs newest first, optionally filtered by status.
	List(ctx context.Context, status *RunStatus, limit, offset int) ([]ScrapingRun, error)
	// FindActive returns the most recent in_progress run, or nil.
	FindActive(ctx context.Context) (*ScrapingRun, error)
}
