// Package storage holds what the page archive backends share. Concrete
// backends live in the local, gcs and memory subpackages.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "pages"

// PageKey builds the archive key <prefix>/<run_key>/<number>-v<version>.html.
func PageKey(prefix string, runKey uuid.UUID, number, version int) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return path.Join(prefix, runKey.String(), fmt.Sprintf("%d-v%d.html", number, version))
}

// Discard is a page archive that stores nothing.
type Discard struct{}

// PutPage drops body and returns an empty URI.
func (Discard) PutPage(context.Context, string, []byte) (string, error) {
	return "", nil
}
