package sinks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/moses-scraper/internal/progress"
)

// Module outcome label values.
const (
	outcomeSuccess = "success"
	outcomeSkipped = "skipped"
	outcomeFailed  = "failed"
)

// PrometheusSink exports run and module outcome metrics.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted prometheus.Counter
	runsActive    prometheus.Gauge
	runDuration   prometheus.Histogram

	modules        *prometheus.CounterVec
	modulesPlanned prometheus.Gauge
	modulesDone    prometheus.Gauge

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moses_runs_started_total",
			Help: "Total scraping runs that have started.",
		}),
		runsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moses_runs_completed_total",
			Help: "Total scraping runs that have finished all modules.",
		}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moses_runs_active",
			Help: "Scraping runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moses_run_duration_seconds",
			Help:    "Wall time per completed scraping run.",
			Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
		}),
		modules: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moses_modules_total",
			Help: "Processed modules partitioned by outcome.",
		}, []string{"outcome"}),
		modulesPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moses_run_modules_planned",
			Help: "Modules scheduled in the most recent run.",
		}),
		modulesDone: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "moses_run_modules_completed",
			Help: "Modules finished so far in the most recent run.",
		}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.modules,
		s.modulesPlanned,
		s.modulesDone,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Kind {
	case progress.KindStarted:
		s.runsStarted.Inc()
		s.modulesPlanned.Set(float64(evt.Total))
		s.modulesDone.Set(0)
		if s.tracker.start(evt.RunID, evt.TS) {
			s.runsActive.Inc()
		}
	case progress.KindProgress:
		s.modulesDone.Set(float64(evt.Tally.Completed))
	case progress.KindModuleSuccess:
		s.modules.WithLabelValues(outcomeSuccess).Inc()
	case progress.KindModuleSkipped:
		s.modules.WithLabelValues(outcomeSkipped).Inc()
	case progress.KindModuleFailed:
		s.modules.WithLabelValues(outcomeFailed).Inc()
	case progress.KindCompleted:
		s.runsCompleted.Inc()
		s.modulesDone.Set(float64(evt.Tally.Completed))
		if started, ok := s.tracker.complete(evt.RunID); ok {
			s.runsActive.Dec()
			if d := evt.TS.Sub(started); d > 0 {
				s.runDuration.Observe(d.Seconds())
			}
		}
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[int64]time.Time
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[int64]time.Time)}
}

func (t *runTracker) start(id int64, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = at
	return true
}

func (t *runTracker) complete(id int64) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	at, ok := t.running[id]
	if !ok {
		return time.Time{}, false
	}
	delete(t.running, id)
	return at, true
}
