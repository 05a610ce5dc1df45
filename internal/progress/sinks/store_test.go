package sinks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/paperchase/paperchase/internal/progress"
	"github.com/paperchase/paperchase/internal/retrieval"
)

// TestStatusSinkTracksRun folds a full run into the snapshot.
func TestStatusSinkTracksRun(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	_, ok := sink.Snapshot()
	require.False(t, ok)

	runID := uuid.New()
	now := time.Now().UTC()
	batch := []progress.Event{
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{MatchCount: 3},
		},
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{MatchCount: retrieval.Unresolved},
		},
		{
			RunID: runID, TS: now.Add(time.Second), Kind: progress.KindProgress,
			Progress: &retrieval.Progress{Current: 1, Total: 5, Percentage: 20},
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	status, ok := sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, runID, status.RunID)
	require.True(t, status.Running)
	require.Equal(t, 2, status.Articles)
	require.Equal(t, 1, status.Unresolved)
	require.Equal(t, 20.0, status.Progress.Percentage)
	require.Nil(t, status.Summary)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{
		RunID: runID, TS: now.Add(2 * time.Second), Kind: progress.KindComplete,
		Summary: &retrieval.Summary{TimeElapsed: 2 * time.Second},
	}}))

	status, ok = sink.Snapshot()
	require.True(t, ok)
	require.False(t, status.Running)
	require.NotNil(t, status.Summary)
	require.Equal(t, 2*time.Second, status.Summary.TimeElapsed)
}

// TestStatusSinkResetsOnNewRun drops the prior run's counters.
func TestStatusSinkResetsOnNewRun(t *testing.T) {
	t.Parallel()

	sink := NewStatusSink()
	first := uuid.New()
	second := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{
		RunID: first, TS: now, Kind: progress.KindArticle,
		Record: &retrieval.EnrichedRecord{MatchCount: 1},
	}}))
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{
		RunID: second, TS: now.Add(time.Minute), Kind: progress.KindArticle,
		Record: &retrieval.EnrichedRecord{MatchCount: 1},
	}}))

	status, ok := sink.Snapshot()
	require.True(t, ok)
	require.Equal(t, second, status.RunID)
	require.Equal(t, 1, status.Articles)
}

type fakeRecordRepo struct {
	fail      bool
	inserts   map[uuid.UUID][]retrieval.EnrichedRecord
	completes []uuid.UUID
}

func (f *fakeRecordRepo) InsertArticles(
	_ context.Context,
	runID uuid.UUID,
	records []retrieval.EnrichedRecord,
) error {
	if f.fail {
		return errors.New("insert failed")
	}
	if f.inserts == nil {
		f.inserts = make(map[uuid.UUID][]retrieval.EnrichedRecord)
	}
	f.inserts[runID] = append(f.inserts[runID], records...)
	return nil
}

func (f *fakeRecordRepo) MarkRunComplete(
	_ context.Context,
	runID uuid.UUID,
	_ retrieval.Summary,
	_ time.Time,
) error {
	if f.fail {
		return errors.New("complete failed")
	}
	f.completes = append(f.completes, runID)
	return nil
}

// TestRecordStoreSinkGroupsArticles ensures articles are batched into a
// single insert per run.
func TestRecordStoreSinkGroupsArticles(t *testing.T) {
	t.Parallel()

	repo := &fakeRecordRepo{}
	sink := NewRecordStoreSink(repo, nil)
	runID := uuid.New()
	now := time.Now().UTC()

	batch := []progress.Event{
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{RawRecord: retrieval.RawRecord{PageID: "pg-1"}, MatchCount: 2},
		},
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{RawRecord: retrieval.RawRecord{PageID: "pg-2"}, MatchCount: 1},
		},
		{
			RunID: runID, TS: now, Kind: progress.KindProgress,
			Progress: &retrieval.Progress{Current: 1, Total: 1, Percentage: 100},
		},
		{
			RunID: runID, TS: now.Add(time.Second), Kind: progress.KindComplete,
			Summary: &retrieval.Summary{TimeElapsed: time.Second},
		},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Len(t, repo.inserts[runID], 2)
	require.Equal(t, "pg-1", repo.inserts[runID][0].PageID)
	require.Equal(t, []uuid.UUID{runID}, repo.completes)
}

// TestRecordStoreSinkSurfacesErrors returns repository failures verbatim.
func TestRecordStoreSinkSurfacesErrors(t *testing.T) {
	t.Parallel()

	repo := &fakeRecordRepo{fail: true}
	sink := NewRecordStoreSink(repo, nil)
	err := sink.Consume(context.Background(), []progress.Event{{
		RunID: uuid.New(), TS: time.Now().UTC(), Kind: progress.KindArticle,
		Record: &retrieval.EnrichedRecord{MatchCount: 1},
	}})
	require.Error(t, err)
}
