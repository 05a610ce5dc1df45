// Package progress defines the signal stream a retrieval run emits and the
// hub that fans it out to sinks (logs, metrics, exporters, stores).
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// Kind denotes which of the three run signals an Event carries.
type Kind string

// The three signal kinds, in lifecycle order.
const (
	KindArticle  Kind = "ARTICLE"
	KindProgress Kind = "PROGRESS"
	KindComplete Kind = "COMPLETE"
)

// Event is one signal on the run's outbound stream. Exactly one of the
// payload pointers is set, matching Kind.
type Event struct {
	// RunID identifies the retrieval run that produced the event.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind selects the payload.
	Kind Kind

	Record   *retrieval.EnrichedRecord
	Progress *retrieval.Progress
	Summary  *retrieval.Summary
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindArticle:
		if e.Record == nil {
			return errors.New("article event requires a record")
		}
	case KindProgress:
		if e.Progress == nil {
			return errors.New("progress event requires a payload")
		}
	case KindComplete:
		if e.Summary == nil {
			return errors.New("complete event requires a summary")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}
