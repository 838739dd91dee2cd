package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/moses-scraper/internal/progress"
	"github.com/JakeFAU/moses-scraper/internal/scraper"
)

// TestPrometheusSinkRecordsMetrics ensures counters and gauges follow a run.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	start := time.Now()
	batch := []progress.Event{
		{RunID: 1, TS: start, Kind: progress.KindStarted, Total: 3},
		{RunID: 1, TS: start, Kind: progress.KindProgress, Total: 3,
			Tally: scraper.Tally{Completed: 1, Successful: 1}},
		{RunID: 1, TS: start, Kind: progress.KindModuleSuccess, Number: 1, Version: 1},
		{RunID: 1, TS: start, Kind: progress.KindModuleSkipped, Number: 2, Version: 1},
		{RunID: 1, TS: start, Kind: progress.KindModuleFailed, Number: 3, Version: 1},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.modulesPlanned))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.modulesDone))

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: 1, TS: start.Add(90 * time.Second), Kind: progress.KindCompleted, Total: 3,
			Tally: scraper.Tally{Completed: 3, Successful: 1, Skipped: 1, Failed: 1}},
	}))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.modulesDone))
	for _, outcome := range []string{outcomeSuccess, outcomeSkipped, outcomeFailed} {
		require.InDelta(t, 1.0, testutil.ToFloat64(sink.modules.WithLabelValues(outcome)), 1e-9, outcome)
	}
	require.Equal(t, 1, testutil.CollectAndCount(sink.runDuration, "moses_run_duration_seconds"))
}

// TestPrometheusSinkDuplicateRegistration surfaces registry conflicts.
func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
