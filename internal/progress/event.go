package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// Kind denotes which milestone of a scraping run an Event reports.
type Kind string

// Supported event kinds. A run emits KindStarted once, then per module one
// KindProgress followed by exactly one outcome kind, then KindCompleted.
const (
	KindStarted       Kind = "started"
	KindProgress      Kind = "progress"
	KindModuleSuccess Kind = "module_success"
	KindModuleSkipped Kind = "module_skipped"
	KindModuleFailed  Kind = "module_failed"
	KindCompleted     Kind = "completed"
)

// Event captures one step of a scraping run.
type Event struct {
	// RunID is the scraping_run row id.
	RunID int64
	// RunKey is the run's external identifier.
	RunKey uuid.UUID
	// TS is the time the runner emitted the event.
	TS   time.Time
	Kind Kind

	// Number and Version identify the module for outcome events.
	Number  int
	Version int
	Title   string
	// Message is the skip reason or the failure text.
	Message string

	// Total is the number of modules scheduled for the run.
	Total int
	// Tally is the counter snapshot taken when the event was emitted.
	Tally scraper.Tally
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindStarted, KindProgress, KindCompleted:
	case KindModuleSuccess, KindModuleSkipped, KindModuleFailed:
		if e.Number <= 0 {
			return fmt.Errorf("%s requires a module number", e.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	t := e.Tally
	if t.Successful < 0 || t.Failed < 0 || t.Skipped < 0 {
		return errors.New("counters must be >= 0")
	}
	if t.Completed != t.Successful+t.Failed+t.Skipped {
		return fmt.Errorf("completed %d does not match outcome counters", t.Completed)
	}
	if e.Total < 0 || (e.Total > 0 && t.Completed > e.Total) {
		return fmt.Errorf("completed %d exceeds total %d", t.Completed, e.Total)
	}
	return nil
}

// Outcome reports whether the event is a per-module result.
func (e Event) Outcome() bool {
	switch e.Kind {
	case KindModuleSuccess, KindModuleSkipped, KindModuleFailed:
		return true
	default:
		return false
	}
}
