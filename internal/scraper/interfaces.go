package scraper

import (
	"context"
	"time"
)

// Fetcher retrieves the raw body of a detail page. Implementations return
// ErrAuthRequired when the page sits behind an authentication wall.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Extractor turns a raw detail page into a ScrapedModule.
type Extractor interface {
	Extract(detailURL string, body []byte) (*ScrapedModule, error)
}

// Mapper resolves dimension rows and normalizes a ScrapedModule into the row
// graph of one module snapshot.
type Mapper interface {
	Map(ctx context.Context, runID int64, module *ScrapedModule) (*ModuleSnapshot, error)
}

// Persister commits one module snapshot atomically.
type Persister interface {
	Persist(ctx context.Context, snapshot *ModuleSnapshot) error
}

// PageArchive keeps a copy of fetched pages and returns the stored URI.
type PageArchive interface {
	PutPage(ctx context.Context, key string, body []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
