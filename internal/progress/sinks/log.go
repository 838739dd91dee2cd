package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/moses-scraper/internal/progress"
)

// LogSink writes run events as structured log lines.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch. Per-module successes and progress
// snapshots go to debug so a long run stays readable at info level.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.Int64("run_id", evt.RunID),
			zap.String("kind", string(evt.Kind)),
		}
		if evt.Outcome() {
			fields = append(fields,
				zap.Int("number", evt.Number),
				zap.Int("version", evt.Version),
			)
		}
		switch evt.Kind {
		case progress.KindStarted:
			s.logger.Info("scraping run started", append(fields, zap.Int("total", evt.Total))...)
		case progress.KindProgress:
			s.logger.Debug("scraping progress", append(fields,
				zap.Int("completed", evt.Tally.Completed),
				zap.Int("total", evt.Total),
			)...)
		case progress.KindModuleSuccess:
			s.logger.Debug("module persisted", append(fields, zap.String("title", evt.Title))...)
		case progress.KindModuleSkipped:
			s.logger.Info("module skipped", append(fields, zap.String("reason", evt.Message))...)
		case progress.KindModuleFailed:
			s.logger.Warn("module failed", append(fields, zap.String("error", evt.Message))...)
		case progress.KindCompleted:
			s.logger.Info("scraping run completed", append(fields,
				zap.Int("successful", evt.Tally.Successful),
				zap.Int("failed", evt.Tally.Failed),
				zap.Int("skipped", evt.Tally.Skipped),
			)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
