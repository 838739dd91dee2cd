// Package uuid generates run keys.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates time-ordered UUIDv7 values.
type Generator struct{}

// New creates a new Generator.
func New() *Generator {
	return &Generator{}
}

// NewRunKey returns a UUIDv7 tagging one scraping run across logs, events
// and archived pages.
func (Generator) NewRunKey() (uuid.UUID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.Nil, fmt.Errorf("generate run key: %w", err)
	}
	return id, nil
}
