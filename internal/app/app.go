// Package app initializes and holds long-lived application services, acting
// as the dependency container the CLI commands draw from.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	gcsstorage "cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/api"
	"github.com/JakeFAU/moses-scraper/internal/catalog"
	"github.com/JakeFAU/moses-scraper/internal/clock/system"
	"github.com/JakeFAU/moses-scraper/internal/config"
	"github.com/JakeFAU/moses-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/moses-scraper/internal/fetcher/colly"
	uuidgen "github.com/JakeFAU/moses-scraper/internal/id/uuid"
	"github.com/JakeFAU/moses-scraper/internal/logging"
	"github.com/JakeFAU/moses-scraper/internal/mapper"
	"github.com/JakeFAU/moses-scraper/internal/metrics"
	"github.com/JakeFAU/moses-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/moses-scraper/internal/progress"
	"github.com/JakeFAU/moses-scraper/internal/progress/sinks"
	"github.com/JakeFAU/moses-scraper/internal/runner"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/storage"
	"github.com/JakeFAU/moses-scraper/internal/storage/gcs"
	"github.com/JakeFAU/moses-scraper/internal/storage/local"
	"github.com/JakeFAU/moses-scraper/internal/storage/memory"
	"github.com/JakeFAU/moses-scraper/internal/storage/postgres"
	"github.com/JakeFAU/moses-scraper/internal/store"
)

// ErrRunActive is returned by Scrape when another run is still in progress.
var ErrRunActive = errors.New("another scraping run is in progress")

// ErrNoDatabase is returned by operations that need the postgres backend.
var ErrNoDatabase = errors.New("storage backend is not postgres")

const (
	finishTimeout   = 15 * time.Second
	shutdownTimeout = 5 * time.Second
)

// KeyGenerator creates run keys.
type KeyGenerator interface {
	NewRunKey() (uuid.UUID, error)
}

// Option customizes the App.
type Option func(*App)

// WithFetcher replaces the colly fetcher.
func WithFetcher(f scraper.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithRegisterer sets where progress collectors are registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(a *App) { a.registerer = reg }
}

// WithKeyGenerator replaces the UUIDv7 run key generator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(a *App) { a.keys = g }
}

// WithClock replaces the wall clock.
func WithClock(c scraper.Clock) Option {
	return func(a *App) { a.clock = c }
}

// App holds the shared services for one process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	pool    *pgxpool.Pool
	dims    mapper.DimensionResolver
	modules scraper.Persister
	runs    store.RunRepository
	archive scraper.PageArchive
	closers []func() error

	fetcher    scraper.Fetcher
	registerer prometheus.Registerer
	promSink   *sinks.PrometheusSink
	keys       KeyGenerator
	clock      scraper.Clock
}

// New builds the services selected by cfg. It fails fast when a backend
// cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:        cfg,
		logger:     logger,
		registerer: prometheus.DefaultRegisterer,
		keys:       uuidgen.New(),
		clock:      system.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	metrics.Init()

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openArchive(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if a.fetcher == nil {
		a.fetcher = a.newFetcher()
	}
	promSink, err := sinks.NewPrometheusSink(a.registerer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init progress metrics: %w", err)
	}
	a.promSink = promSink
	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.cfg.Storage.Backend {
	case config.BackendPostgres:
		a.logger.Info("connecting to postgres", zap.Int("max_conns", a.cfg.DB.MaxConns))
		pool, err := postgres.Open(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			MaxConns: int32(a.cfg.DB.MaxConns),
		})
		if err != nil {
			return fmt.Errorf("open postgres: %w", err)
		}
		a.pool = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		dims, err := postgres.NewDimensions(pool)
		if err != nil {
			return err
		}
		modules, err := postgres.NewModuleStore(pool)
		if err != nil {
			return err
		}
		runs, err := postgres.NewRunStore(pool)
		if err != nil {
			return err
		}
		a.dims, a.modules, a.runs = dims, modules, runs
	case config.BackendMemory, config.BackendNone:
		a.logger.Info("using in-memory storage; snapshots are discarded on exit")
		a.dims = memory.NewDimensions()
		a.modules = memory.NewModuleStore()
		a.runs = memory.NewRunStore(a.clock.Now)
	default:
		return fmt.Errorf("unknown storage backend: %s", a.cfg.Storage.Backend)
	}
	return nil
}

func (a *App) openArchive(ctx context.Context) error {
	switch a.cfg.Archive.Backend {
	case config.BackendNone, "":
		a.archive = storage.Discard{}
	case config.BackendLocal:
		archive, err := local.New(local.Config{BaseDir: a.cfg.Archive.BaseDir})
		if err != nil {
			return fmt.Errorf("open local archive: %w", err)
		}
		a.logger.Info("archiving pages locally", zap.String("base_dir", a.cfg.Archive.BaseDir))
		a.archive = archive
	case config.BackendGCS:
		client, err := gcsstorage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("create gcs client: %w", err)
		}
		archive, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Archive.GCSBucket})
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("open gcs archive: %w", err)
		}
		a.logger.Info("archiving pages to gcs", zap.String("bucket", a.cfg.Archive.GCSBucket))
		a.archive = archive
		a.closers = append(a.closers, archive.Close)
	default:
		return fmt.Errorf("unknown archive backend: %s", a.cfg.Archive.Backend)
	}
	return nil
}

func (a *App) newFetcher() scraper.Fetcher {
	sc := a.cfg.Scraper
	return collyfetcher.New(
		collyfetcher.Config{
			UserAgent: sc.UserAgent,
			Timeout:   sc.Timeout,
			Retry:     scraper.NewRetryPolicy(sc.MaxAttempts(), sc.BackoffUnit),
		},
		collyfetcher.WithLimiter(ratelimit.New(ratelimit.Config{RPS: sc.RequestsPerSecond})),
		collyfetcher.WithSleeper(system.New()),
		collyfetcher.WithLogger(a.logger),
	)
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Runs exposes the scraping run repository.
func (a *App) Runs() store.RunRepository {
	return a.runs
}

// Loader builds a catalog loader for the configured URL template.
func (a *App) Loader() (*catalog.Loader, error) {
	tmpl, err := catalog.NewURLTemplate(a.cfg.Scraper.URLTemplate)
	if err != nil {
		return nil, fmt.Errorf("url template: %w", err)
	}
	return catalog.NewLoader(tmpl, a.logger), nil
}

// Migrate applies the relational schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return ErrNoDatabase
	}
	return postgres.Migrate(ctx, a.pool)
}

// Scrape records a new scraping run, processes refs and finishes the run as
// completed, or as failed when the orchestration itself stopped early. With
// force unset it refuses to start while another run is in progress.
func (a *App) Scrape(ctx context.Context, refs []scraper.ModuleRef, force bool) (store.ScrapingRun, error) {
	active, err := a.runs.FindActive(ctx)
	if err != nil {
		return store.ScrapingRun{}, fmt.Errorf("find active run: %w", err)
	}
	if active != nil {
		if !force {
			return store.ScrapingRun{}, fmt.Errorf("%w (run %d started %s)",
				ErrRunActive, active.ID, active.StartedAt.Format(time.RFC3339))
		}
		a.logger.Warn("starting despite active run", zap.Int64("active_run_id", active.ID))
	}

	key, err := a.keys.NewRunKey()
	if err != nil {
		return store.ScrapingRun{}, err
	}
	created, err := a.runs.Create(ctx, key, len(refs))
	if err != nil {
		return store.ScrapingRun{}, fmt.Errorf("create run: %w", err)
	}
	logger := logging.ForRun(a.logger, created.ID, key.String())

	hub := progress.NewHub(progress.Config{
		BufferSize:   a.cfg.Progress.BufferSize,
		MaxBatchWait: a.cfg.Progress.MaxBatchWait,
		Logger:       logger,
	}, sinks.NewLogSink(logger), a.promSink, sinks.NewStoreSink(a.runs, logger))

	r := runner.New(
		runner.Config{Workers: a.cfg.Scraper.Workers},
		a.fetcher,
		extract.New(logger),
		mapper.New(a.dims,
			mapper.WithLogger(logger),
			mapper.WithLegacyDefaults(a.cfg.Mapping.LegacyDefaults),
		),
		a.modules,
		runner.WithArchive(a.archive, a.cfg.Archive.Prefix),
		runner.WithLogger(logger),
		runner.WithClock(a.clock),
	)
	tally, runErr := r.Run(ctx, runner.Run{
		ID:        created.ID,
		Key:       key,
		StartedAt: created.StartedAt,
		Total:     len(refs),
	}, refs, hub)

	// The run row must be finished even when ctx was canceled.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
	defer cancel()
	if err := hub.Close(finishCtx); err != nil {
		logger.Warn("progress hub close failed", zap.Error(err))
	}
	status := store.RunCompleted
	if runErr != nil {
		status = store.RunFailed
	}
	if err := a.runs.Finish(finishCtx, created.ID, status, tally); err != nil {
		return store.ScrapingRun{}, errors.Join(runErr, fmt.Errorf("finish run: %w", err))
	}
	final, err := a.runs.Get(finishCtx, created.ID)
	if err != nil {
		return store.ScrapingRun{}, errors.Join(runErr, fmt.Errorf("load finished run: %w", err))
	}
	return final, runErr
}

// Handler returns the ops HTTP handler.
func (a *App) Handler() http.Handler {
	var ready api.Pinger
	if a.pool != nil {
		ready = a.pool
	}
	return api.NewServer(a.runs, ready, a.logger).Handler()
}

// ServeOps runs the ops HTTP server until ctx ends.
func (a *App) ServeOps(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Server.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("ops server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown ops server: %w", err)
		}
		return nil
	}
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
