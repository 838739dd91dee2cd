package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// ErrDuplicateSnapshot mirrors the primary key violation of the module table.
var ErrDuplicateSnapshot = errors.New("module snapshot already exists")

type snapshotKey struct {
	id, version int
	runID       int64
}

// ModuleStore implements scraper.Persister in memory.
type ModuleStore struct {
	mu        sync.RWMutex
	snapshots map[snapshotKey]scraper.ModuleSnapshot
	order     []snapshotKey
}

// NewModuleStore builds an empty store.
func NewModuleStore() *ModuleStore {
	return &ModuleStore{snapshots: make(map[snapshotKey]scraper.ModuleSnapshot)}
}

// Persist stores a copy of snap. A snapshot is written once per run.
func (s *ModuleStore) Persist(ctx context.Context, snap *scraper.ModuleSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap == nil {
		return errors.New("persist module: nil snapshot")
	}
	key := snapshotKey{id: snap.Module.ID, version: snap.Module.Version, runID: snap.Module.RunID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snapshots[key]; exists {
		return fmt.Errorf("persist module %d v%d: %w", key.id, key.version, ErrDuplicateSnapshot)
	}
	s.snapshots[key] = *snap
	s.order = append(s.order, key)
	return nil
}

// Latest returns the snapshot of (id, version) from the highest run id.
func (s *ModuleStore) Latest(id, version int) (scraper.ModuleSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  scraper.ModuleSnapshot
		found bool
	)
	for key, snap := range s.snapshots {
		if key.id != id || key.version != version {
			continue
		}
		if !found || key.runID > best.Module.RunID {
			best, found = snap, true
		}
	}
	return best, found
}

// Snapshots returns every stored snapshot in insertion order.
func (s *ModuleStore) Snapshots() []scraper.ModuleSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scraper.ModuleSnapshot, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.snapshots[key])
	}
	return out
}
