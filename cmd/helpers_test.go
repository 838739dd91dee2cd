package cmd

import (
	"slices"
	"sync"
)

type safeInts struct {
	mu   sync.Mutex
	vals []int
}

func (s *safeInts) add(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals = append(s.vals, v)
}

func (s *safeInts) sorted() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.vals)
	slices.Sort(out)
	return out
}
