// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/clock/system"
	"github.com/JakeFAU/moses-scraper/internal/metrics"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

const (
	defaultUserAgent = "moses-scraper/1.0"
	defaultTimeout   = 30 * time.Second
)

// authWallMarkers are path fragments of the single sign-on redirect targets.
var authWallMarkers = []string{"login", "shibboleth"}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	Retry     scraper.RetryPolicy
	// Transport overrides the HTTP transport; nil uses a pooled default.
	Transport http.RoundTripper
}

// Limiter delays requests to keep the portal load polite.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter installs a politeness limiter.
func WithLimiter(l Limiter) Option {
	return func(f *Fetcher) { f.limiter = l }
}

// WithSleeper replaces the backoff sleeper.
func WithSleeper(s scraper.Sleeper) Option {
	return func(f *Fetcher) { f.sleeper = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// Fetcher implements scraper.Fetcher on top of a Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       Limiter
	sleeper       scraper.Sleeper
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// page collects what the hooks observed for one visit.
type page struct {
	finalURL *url.URL
	status   int
	body     []byte
	err      error
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = scraper.NewRetryPolicy(cfg.Retry.MaxAttempts, cfg.Retry.Unit)
	}
	transport := cfg.Transport
	if transport == nil {
		transport = newHTTPTransport()
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	// Error statuses still carry a page; only transport failures are errors.
	c.ParseHTTPErrorResponse = true
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	f := &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		sleeper:       system.New(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads url, retrying transport failures with exponential backoff.
// A redirect onto the login wall yields scraper.ErrAuthRequired.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	for attempt := 1; ; attempt++ {
		body, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return body, nil
		}
		if errors.Is(err, scraper.ErrAuthRequired) {
			return nil, err
		}
		if !f.cfg.Retry.ShouldRetry(err, attempt) {
			metrics.ObserveFetch("error", 0, 0)
			return nil, fmt.Errorf("fetch %s after %d attempt(s): %w", rawURL, attempt, err)
		}
		wait := f.cfg.Retry.Backoff(attempt)
		metrics.ObserveFetch("retry", 0, 0)
		f.logger.Warn("fetch failed, backing off",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := f.sleeper.Sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("fetch backoff: %w", err)
		}
	}
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) ([]byte, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	collector := f.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true

	result := &page{}
	f.configureCollectorHooks(collector, result)
	if err := runCollector(ctx, collector, rawURL, result); err != nil {
		return nil, err
	}
	if isAuthWall(result.finalURL) {
		metrics.ObserveFetch("auth_wall", 0, time.Since(start))
		f.logger.Debug("auth wall detected", zap.String("url", rawURL), zap.Stringer("final_url", result.finalURL))
		return nil, scraper.ErrAuthRequired
	}
	metrics.ObserveFetch("ok", len(result.body), time.Since(start))
	if result.status >= http.StatusBadRequest {
		f.logger.Debug("detail page returned error status",
			zap.String("url", rawURL),
			zap.Int("status", result.status),
		)
	}
	return result.body, nil
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *page) {
	hooks.OnResponse(func(r *colly.Response) {
		if r.Request != nil {
			result.finalURL = r.Request.URL
		}
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		result.err = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, rawURL string, result *page) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if result.err != nil {
			return fmt.Errorf("colly response failed: %w", result.err)
		}
		return nil
	}
}

func isAuthWall(final *url.URL) bool {
	if final == nil {
		return false
	}
	path := strings.ToLower(final.Path)
	for _, marker := range authWallMarkers {
		if strings.Contains(path, marker) {
			return true
		}
	}
	return false
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
