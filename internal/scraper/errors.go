package scraper

import "errors"

// ErrAuthRequired marks a detail page that redirected to a login wall. It is
// reported as a skipped item, never as a failure.
var ErrAuthRequired = errors.New("authentication required")
