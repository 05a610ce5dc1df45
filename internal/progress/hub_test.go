package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// captureSink records every event it consumes, in arrival order.
type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func articleEvent(runID uuid.UUID, pageID string) Event {
	return Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Kind:  KindArticle,
		Record: &retrieval.EnrichedRecord{
			RawRecord:  retrieval.RawRecord{PageID: pageID},
			MatchCount: 2,
		},
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{BufferSize: 8}, sink)
	runID := uuid.New()

	hub.Emit(articleEvent(runID, "pg-1"))
	hub.Emit(articleEvent(runID, "pg-2"))
	hub.Emit(Event{
		RunID:   runID,
		TS:      time.Now().UTC(),
		Kind:    KindComplete,
		Summary: &retrieval.Summary{TimeElapsed: time.Second},
	})
	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 3)
	require.Equal(t, "pg-1", events[0].Record.PageID)
	require.Equal(t, "pg-2", events[1].Record.PageID)
	require.Equal(t, KindComplete, events[2].Kind)
	require.True(t, sink.closed)
}

func TestHubDropsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Kind: KindArticle})
	hub.Emit(articleEvent(uuid.New(), "pg-ok"))
	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "pg-ok", events[0].Record.PageID)
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestHubFansOutToAllSinks(t *testing.T) {
	t.Parallel()

	first := &captureSink{}
	second := &captureSink{}
	hub := NewHub(Config{}, first, second)

	hub.Emit(articleEvent(uuid.New(), "pg-7"))
	require.NoError(t, hub.Close(context.Background()))

	require.Len(t, first.snapshot(), 1)
	require.Len(t, second.snapshot(), 1)
	require.True(t, first.closed)
	require.True(t, second.closed)
}

func TestBridgeStampsRunID(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	runID := uuid.New()
	bridge := NewBridge(runID, hub)

	bridge.Article(retrieval.EnrichedRecord{
		RawRecord:  retrieval.RawRecord{PageID: "pg-3"},
		MatchCount: retrieval.Unresolved,
	})
	bridge.Progress(retrieval.Progress{Current: 1, Total: 4, Percentage: 25})
	bridge.Complete(retrieval.Summary{TimeElapsed: 3 * time.Second})
	require.NoError(t, hub.Close(context.Background()))

	events := sink.snapshot()
	require.Len(t, events, 3)
	for _, evt := range events {
		require.Equal(t, runID, evt.RunID)
		require.False(t, evt.TS.IsZero())
	}
	require.Equal(t, KindArticle, events[0].Kind)
	require.Equal(t, retrieval.Unresolved, events[0].Record.MatchCount)
	require.Equal(t, KindProgress, events[1].Kind)
	require.Equal(t, 25.0, events[1].Progress.Percentage)
	require.Equal(t, KindComplete, events[2].Kind)
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	runID := uuid.New()
	ts := time.Now().UTC()

	cases := []struct {
		name string
		evt  Event
		ok   bool
	}{
		{"valid article", articleEvent(runID, "pg-1"), true},
		{"missing run id", Event{TS: ts, Kind: KindProgress, Progress: &retrieval.Progress{}}, false},
		{"missing timestamp", Event{RunID: runID, Kind: KindProgress, Progress: &retrieval.Progress{}}, false},
		{"article without record", Event{RunID: runID, TS: ts, Kind: KindArticle}, false},
		{"complete without summary", Event{RunID: runID, TS: ts, Kind: KindComplete}, false},
		{"unknown kind", Event{RunID: runID, TS: ts, Kind: Kind("BOGUS")}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.evt.Validate()
			if tc.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
