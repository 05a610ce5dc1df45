package retrieval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatsTrackerSnapshot(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	tracker := newStatsTracker(clock)

	now = now.Add(10 * time.Second)
	tracker.RecordBatch(4*time.Second, 2)  // 2s per page
	tracker.RecordBatch(12*time.Second, 3) // 4s per page

	snap := tracker.Snapshot()
	require.Equal(t, 10*time.Second, snap.TimeElapsed)
	require.Equal(t, 3*time.Second, snap.AvgPageTime)
	require.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, tracker.PerBatch())
}

func TestStatsTrackerEmpty(t *testing.T) {
	t.Parallel()

	tracker := NewStatsTracker()
	snap := tracker.Snapshot()
	require.Zero(t, snap.AvgPageTime)
	require.Empty(t, tracker.PerBatch())
}

func TestStatsTrackerIgnoresZeroTaskCount(t *testing.T) {
	t.Parallel()

	tracker := NewStatsTracker()
	tracker.RecordBatch(time.Second, 0)
	require.Empty(t, tracker.PerBatch())
}
