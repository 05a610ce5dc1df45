package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/paperchase/paperchase/internal/progress"
)

// LogSink emits structured logs for debugging run event streams. It is
// useful during development or audits where a durable store is unavailable.
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

// Consume logs each event in the batch using structured fields. Article
// events log at debug level to keep large runs readable.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		base := []zap.Field{
			zap.String("run_id", evt.RunID.String()),
			zap.Time("ts", evt.TS),
		}
		switch evt.Kind {
		case progress.KindArticle:
			s.logger.Debug("article", append(base,
				zap.String("publication", evt.Record.PublicationName),
				zap.String("page_id", evt.Record.PageID),
				zap.String("date", evt.Record.Date),
				zap.Int("match_count", int(evt.Record.MatchCount)),
			)...)
		case progress.KindProgress:
			s.logger.Info("progress", append(base,
				zap.Int("current", evt.Progress.Current),
				zap.Int("total", evt.Progress.Total),
				zap.Float64("percentage", evt.Progress.Percentage),
				zap.Duration("elapsed", evt.Progress.Stats.TimeElapsed),
				zap.Duration("avg_page_time", evt.Progress.Stats.AvgPageTime),
			)...)
		case progress.KindComplete:
			s.logger.Info("run complete", append(base,
				zap.Duration("elapsed", evt.Summary.TimeElapsed),
				zap.Int("batches", len(evt.Summary.PerBatchDurations)),
			)...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
