package progress

import (
	"time"

	"github.com/google/uuid"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// Bridge adapts the Hub to the retrieval.Emitter interface, stamping each
// signal with the run id and a UTC timestamp.
type Bridge struct {
	runID uuid.UUID
	hub   *Hub
	now   func() time.Time
}

// NewBridge builds a Bridge for one run.
func NewBridge(runID uuid.UUID, hub *Hub) *Bridge {
	return &Bridge{runID: runID, hub: hub, now: time.Now}
}

// Article publishes one enriched record.
func (b *Bridge) Article(rec retrieval.EnrichedRecord) {
	b.hub.Emit(Event{
		RunID:  b.runID,
		TS:     b.now().UTC(),
		Kind:   KindArticle,
		Record: &rec,
	})
}

// Progress publishes a progress snapshot.
func (b *Bridge) Progress(p retrieval.Progress) {
	b.hub.Emit(Event{
		RunID:    b.runID,
		TS:       b.now().UTC(),
		Kind:     KindProgress,
		Progress: &p,
	})
}

// Complete publishes the run summary.
func (b *Bridge) Complete(s retrieval.Summary) {
	b.hub.Emit(Event{
		RunID:   b.runID,
		TS:      b.now().UTC(),
		Kind:    KindComplete,
		Summary: &s,
	})
}
