package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

// RunStore implements store.RunRepository in memory.
type RunStore struct {
	mu   sync.RWMutex
	next int64
	runs map[int64]store.ScrapingRun
	now  func() time.Time
}

// NewRunStore builds an empty store. now defaults to time.Now.
func NewRunStore(now func() time.Time) *RunStore {
	if now == nil {
		now = time.Now
	}
	return &RunStore{runs: make(map[int64]store.ScrapingRun), now: now}
}

// Create inserts a new in_progress run.
func (s *RunStore) Create(_ context.Context, key uuid.UUID, total int) (store.ScrapingRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.Key == key {
			return store.ScrapingRun{}, fmt.Errorf("create scraping run: duplicate key %s", key)
		}
	}
	s.next++
	run := store.ScrapingRun{
		ID:        s.next,
		Key:       key,
		Status:    store.RunInProgress,
		StartedAt: s.now().UTC(),
		Total:     total,
	}
	s.runs[run.ID] = run
	return run, nil
}

// UpdateCounts stores intermediate counters of an in_progress run.
func (s *RunStore) UpdateCounts(_ context.Context, id int64, tally scraper.Tally) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != store.RunInProgress {
		return store.ErrRunNotActive
	}
	applyTally(&run, tally)
	s.runs[id] = run
	return nil
}

// Finish records the terminal status once.
func (s *RunStore) Finish(_ context.Context, id int64, status store.RunStatus, tally scraper.Tally) error {
	if !status.Terminal() {
		return fmt.Errorf("finish run: status %q is not terminal", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok || run.Status != store.RunInProgress {
		return store.ErrRunNotActive
	}
	now := s.now().UTC()
	run.Status = status
	run.CompletedAt = &now
	applyTally(&run, tally)
	s.runs[id] = run
	return nil
}

// Get loads one run.
func (s *RunStore) Get(_ context.Context, id int64) (store.ScrapingRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return store.ScrapingRun{}, store.ErrNotFound
	}
	return run, nil
}

// List returns runs newest first.
func (s *RunStore) List(_ context.Context, status *store.RunStatus, limit, offset int) ([]store.ScrapingRun, error) {
	s.mu.RLock()
	runs := make([]store.ScrapingRun, 0, len(s.runs))
	for _, r := range s.runs {
		if status == nil || r.Status == *status {
			runs = append(runs, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].ID > runs[j].ID })
	if offset >= len(runs) {
		return nil, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// FindActive returns the newest in_progress run, or nil.
func (s *RunStore) FindActive(ctx context.Context) (*store.ScrapingRun, error) {
	active := store.RunInProgress
	runs, err := s.List(ctx, &active, 1, 0)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func applyTally(run *store.ScrapingRun, tally scraper.Tally) {
	run.Successful = tally.Successful
	run.Failed = tally.Failed
	run.Skipped = tally.Skipped
}
