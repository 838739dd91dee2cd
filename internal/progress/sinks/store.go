package sinks

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/progress"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

// CountUpdater is the slice of store.RunRepository the sink needs.
type CountUpdater interface {
	UpdateCounts(ctx context.Context, id int64, tally scraper.Tally) error
}

// StoreSink mirrors progress counters into the scraping_run row so that
// run status reads stay current during a run. Only the newest Progress
// snapshot per run in a batch is written.
type StoreSink struct {
	repo   CountUpdater
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo CountUpdater, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

// Consume collapses Progress events per run and forwards the latest tally.
// A run that was already finished is not an error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	latest := make(map[int64]scraper.Tally)
	var order []int64
	for _, evt := range batch {
		if evt.Kind != progress.KindProgress || evt.RunID == 0 {
			continue
		}
		prev, seen := latest[evt.RunID]
		if !seen {
			order = append(order, evt.RunID)
		}
		if !seen || evt.Tally.Completed >= prev.Completed {
			latest[evt.RunID] = evt.Tally
		}
	}
	for _, runID := range order {
		err := s.repo.UpdateCounts(ctx, runID, latest[runID])
		switch {
		case err == nil:
		case errors.Is(err, store.ErrRunNotActive):
			s.logger.Debug("skipping counter update for finished run", zap.Int64("run_id", runID))
		default:
			return fmt.Errorf("update run counts: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
