package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperchase/paperchase/internal/progress"
	"github.com/paperchase/paperchase/internal/retrieval"
)

// RunStatus is the latest observable state of a retrieval run, as served by
// the status API.
type RunStatus struct {
	RunID      uuid.UUID          `json:"run_id"`
	Running    bool               `json:"running"`
	Articles   int                `json:"articles"`
	Unresolved int                `json:"unresolved"`
	Progress   retrieval.Progress `json:"progress"`
	Summary    *retrieval.Summary `json:"summary,omitempty"`
	UpdatedAt  time.Time          `json:"updated_at"`
}

// StatusSink keeps an in-memory snapshot of the most recent run state. It
// backs the HTTP status endpoint; reads never block the event stream.
type StatusSink struct {
	mu     sync.RWMutex
	status RunStatus
}

// NewStatusSink constructs an empty StatusSink.
func NewStatusSink() *StatusSink {
	return &StatusSink{}
}

// Consume folds the batch into the snapshot.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		if evt.RunID != s.status.RunID {
			s.status = RunStatus{RunID: evt.RunID, Running: true}
		}
		s.status.UpdatedAt = evt.TS
		switch evt.Kind {
		case progress.KindArticle:
			s.status.Articles++
			if !evt.Record.MatchCount.Resolved() {
				s.status.Unresolved++
			}
		case progress.KindProgress:
			s.status.Progress = *evt.Progress
		case progress.KindComplete:
			summary := *evt.Summary
			s.status.Summary = &summary
			s.status.Running = false
		}
	}
	return nil
}

// Snapshot returns a copy of the current run status and whether any run has
// been observed yet.
func (s *StatusSink) Snapshot() (RunStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.status.RunID != uuid.Nil
}

// Close implements the Sink interface; it performs no action.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
