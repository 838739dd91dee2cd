package memory

import (
	"context"
	"fmt"
	"sync"
)

// Archive keeps archived pages in memory and returns memory:// URIs.
type Archive struct {
	mu    sync.RWMutex
	pages map[string][]byte
}

// NewArchive creates an empty archive.
func NewArchive() *Archive {
	return &Archive{pages: make(map[string][]byte)}
}

// PutPage stores a copy of body under key.
func (a *Archive) PutPage(_ context.Context, key string, body []byte) (string, error) {
	if key == "" {
		return "", fmt.Errorf("key is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pages[key] = append([]byte(nil), body...)
	return fmt.Sprintf("memory://%s", key), nil
}

// Page returns the stored body for key.
func (a *Archive) Page(key string) ([]byte, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	body, ok := a.pages[key]
	return body, ok
}

// Len returns the number of stored pages.
func (a *Archive) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.pages)
}
