// Package runner drives catalog entries through fetch, extract, map and
// persist with a bounded number of concurrent workers, keeping the run
// counters and emitting the run's event stream.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/moses-scraper/internal/clock/system"
	"github.com/JakeFAU/moses-scraper/internal/metrics"
	"github.com/JakeFAU/moses-scraper/internal/progress"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
	"github.com/JakeFAU/moses-scraper/internal/storage"
)

// DefaultWorkers is the concurrency used when Config.Workers is not positive.
const DefaultWorkers = 4

// AuthRequiredReason is the skip message for pages behind a login wall.
const AuthRequiredReason = "Authentication required"

// Run identifies one scraping run. It is built once by the caller and
// carried unchanged through every event of the run.
type Run struct {
	ID        int64
	Key       uuid.UUID
	StartedAt time.Time
	Total     int
}

// Config controls Runner behavior.
type Config struct {
	Workers int
}

// Option customizes a Runner.
type Option func(*Runner)

// WithArchive stores every fetched page under prefix before extraction.
func WithArchive(archive scraper.PageArchive, prefix string) Option {
	return func(r *Runner) {
		r.archive = archive
		if prefix != "" {
			r.archivePrefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(clock scraper.Clock) Option {
	return func(r *Runner) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// Runner executes scraping runs. A Runner holds no per-run state and may be
// reused for consecutive runs.
type Runner struct {
	cfg       Config
	fetcher   scraper.Fetcher
	extractor scraper.Extractor
	mapper    scraper.Mapper
	persister scraper.Persister

	archive       scraper.PageArchive
	archivePrefix string
	clock         scraper.Clock
	logger        *zap.Logger
}

// New constructs a Runner.
func New(
	cfg Config,
	fetcher scraper.Fetcher,
	extractor scraper.Extractor,
	mapper scraper.Mapper,
	persister scraper.Persister,
	opts ...Option,
) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	r := &Runner{
		cfg:           cfg,
		fetcher:       fetcher,
		extractor:     extractor,
		mapper:        mapper,
		persister:     persister,
		archive:       storage.Discard{},
		archivePrefix: storage.DefaultPrefix,
		clock:         system.New(),
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// tracker owns the run counters. Events are emitted while holding mu so
// that each item's Progress and outcome events stay adjacent and every
// Progress snapshot is monotonic.
type tracker struct {
	mu    sync.Mutex
	tally scraper.Tally
	run   Run
	emit  progress.Emitter
	clock scraper.Clock
}

func (t *tracker) event(kind progress.Kind) progress.Event {
	return progress.Event{
		RunID:  t.run.ID,
		RunKey: t.run.Key,
		TS:     t.clock.Now(),
		Kind:   kind,
		Total:  t.run.Total,
		Tally:  t.tally,
	}
}

func (t *tracker) record(ref scraper.ModuleRef, res result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch res.kind {
	case progress.KindModuleSuccess:
		t.tally.Successful++
	case progress.KindModuleSkipped:
		t.tally.Skipped++
	default:
		t.tally.Failed++
	}
	t.tally.Completed++

	t.emit.Emit(t.event(progress.KindProgress))
	evt := t.event(res.kind)
	evt.Number = ref.Number
	evt.Version = ref.Version
	evt.Title = res.title
	evt.Message = res.message
	t.emit.Emit(evt)
}

func (t *tracker) finish() scraper.Tally {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emit.Emit(t.event(progress.KindCompleted))
	return t.tally
}

// Run processes refs with at most Config.Workers items in flight and
// returns the final tally. Item failures never abort the run. An error is
// returned only when ctx ends before every item was scheduled; the tally
// then covers the items that did run.
func (r *Runner) Run(
	ctx context.Context,
	run Run,
	refs []scraper.ModuleRef,
	emit progress.Emitter,
) (scraper.Tally, error) {
	if emit == nil {
		emit = progress.Discard
	}
	if run.Total == 0 {
		run.Total = len(refs)
	}
	t := &tracker{run: run, emit: emit, clock: r.clock}
	t.emit.Emit(t.event(progress.KindStarted))
	r.logger.Info("starting scraping run",
		zap.Int64("run_id", run.ID),
		zap.String("run_key", run.Key.String()),
		zap.Int("total", len(refs)),
		zap.Int("workers", r.cfg.Workers),
	)

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Workers)
	var scheduleErr error
	for _, ref := range refs {
		ref := ref
		if err := ctx.Err(); err != nil {
			scheduleErr = fmt.Errorf("schedule modules: %w", err)
			break
		}
		g.Go(func() error {
			metrics.IncActiveWorkers()
			defer metrics.DecActiveWorkers()
			t.record(ref, r.process(ctx, run, ref))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		scheduleErr = errors.Join(scheduleErr, fmt.Errorf("wait for workers: %w", err))
	}

	tally := t.finish()
	r.logger.Info("scraping run finished",
		zap.Int64("run_id", run.ID),
		zap.Int("successful", tally.Successful),
		zap.Int("failed", tally.Failed),
		zap.Int("skipped", tally.Skipped),
	)
	return tally, scheduleErr
}

type result struct {
	kind    progress.Kind
	title   string
	message string
}

func failed(format string, err error) result {
	return result{kind: progress.KindModuleFailed, message: fmt.Sprintf(format, err)}
}

// process runs the four stages of one item strictly in sequence.
func (r *Runner) process(ctx context.Context, run Run, ref scraper.ModuleRef) result {
	logger := r.logger.With(zap.Int("number", ref.Number), zap.Int("version", ref.Version))

	body, err := r.fetcher.Fetch(ctx, ref.URL)
	if errors.Is(err, scraper.ErrAuthRequired) {
		logger.Debug("detail page requires authentication")
		return result{kind: progress.KindModuleSkipped, title: ref.Title, message: AuthRequiredReason}
	}
	if err != nil {
		logger.Warn("fetch failed", zap.Error(err))
		return failed("fetch: %v", err)
	}

	key := storage.PageKey(r.archivePrefix, run.Key, ref.Number, ref.Version)
	if uri, err := r.archive.PutPage(ctx, key, body); err != nil {
		logger.Warn("archive page failed", zap.String("key", key), zap.Error(err))
	} else if uri != "" {
		logger.Debug("archived page", zap.String("uri", uri))
	}

	module, err := r.extractor.Extract(ref.URL, body)
	if err != nil {
		logger.Warn("extract failed", zap.Error(err))
		return failed("extract: %v", err)
	}
	snapshot, err := r.mapper.Map(ctx, run.ID, module)
	if err != nil {
		logger.Warn("map failed", zap.Error(err))
		return failed("map: %v", err)
	}
	if err := r.persister.Persist(ctx, snapshot); err != nil {
		logger.Warn("persist failed", zap.Error(err))
		return failed("persist: %v", err)
	}

	title := ref.Title
	if title == "" {
		title = module.Title
	}
	return result{kind: progress.KindModuleSuccess, title: title}
}
