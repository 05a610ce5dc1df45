package sinks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/paperchase/paperchase/internal/progress"
	"github.com/paperchase/paperchase/internal/retrieval"
)

// RecordRepository persists article records and run completion markers. The
// Postgres implementation lives in internal/store/postgres.
type RecordRepository interface {
	InsertArticles(ctx context.Context, runID uuid.UUID, records []retrieval.EnrichedRecord) error
	MarkRunComplete(ctx context.Context, runID uuid.UUID, summary retrieval.Summary, at time.Time) error
}

// RecordStoreSink persists article events via a RecordRepository. Articles
// within a batch are grouped into a single insert to reduce write
// amplification.
type RecordStoreSink struct {
	repo   RecordRepository
	logger *zap.Logger
}

// NewRecordStoreSink constructs a RecordStoreSink for the repository.
func NewRecordStoreSink(repo RecordRepository, logger *zap.Logger) *RecordStoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStoreSink{repo: repo, logger: logger}
}

// Consume groups article records per run and forwards them, then applies
// any completion markers. It respects ctx deadlines and returns repository
// errors verbatim.
func (s *RecordStoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	articles := make(map[uuid.UUID][]retrieval.EnrichedRecord)
	for _, evt := range batch {
		if evt.Kind == progress.KindArticle {
			articles[evt.RunID] = append(articles[evt.RunID], *evt.Record)
		}
	}
	for runID, records := range articles {
		if err := s.repo.InsertArticles(ctx, runID, records); err != nil {
			return fmt.Errorf("insert articles: %w", err)
		}
	}
	for _, evt := range batch {
		if evt.Kind != progress.KindComplete {
			continue
		}
		if err := s.repo.MarkRunComplete(ctx, evt.RunID, *evt.Summary, evt.TS); err != nil {
			return fmt.Errorf("mark run complete: %w", err)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *RecordStoreSink) Close(context.Context) error {
	return nil
}
