package retrieval

import "time"

// StatsTracker accumulates elapsed time and per-batch page timings for
// progress reporting. Pure bookkeeping; not safe for concurrent writers,
// which is fine because only the orchestrator records into it.
type StatsTracker struct {
	start   time.Time
	perPage []time.Duration
	now     func() time.Time
}

// NewStatsTracker starts the run clock.
func NewStatsTracker() *StatsTracker {
	return newStatsTracker(time.Now)
}

func newStatsTracker(now func() time.Time) *StatsTracker {
	return &StatsTracker{
		start: now(),
		now:   now,
	}
}

// RecordBatch appends the mean per-page duration for one batch of
// taskCount concurrent fetches.
func (s *StatsTracker) RecordBatch(d time.Duration, taskCount int) {
	if taskCount <= 0 {
		return
	}
	s.perPage = append(s.perPage, d/time.Duration(taskCount))
}

// Snapshot returns elapsed time since the run started and the running mean
// of all recorded per-page durations.
func (s *StatsTracker) Snapshot() ProgressStats {
	stats := ProgressStats{
		TimeElapsed: s.now().Sub(s.start),
	}
	if len(s.perPage) == 0 {
		return stats
	}
	var sum time.Duration
	for _, d := range s.perPage {
		sum += d
	}
	stats.AvgPageTime = sum / time.Duration(len(s.perPage))
	return stats
}

// PerBatch returns a copy of the recorded per-batch page durations.
func (s *StatsTracker) PerBatch() []time.Duration {
	return append([]time.Duration(nil), s.perPage...)
}
