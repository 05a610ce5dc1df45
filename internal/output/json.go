package output

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/paperchase/paperchase/internal/progress"
)

var _ progress.Sink = (*JSONExporter)(nil)

// jsonRecord is the NDJSON line shape. MatchCount is null when the hit
// lookup never resolved.
type jsonRecord struct {
	RunID       string    `json:"run_id"`
	Publication string    `json:"publication"`
	PageID      string    `json:"page_id"`
	PageNumber  string    `json:"page_number,omitempty"`
	Date        string    `json:"date,omitempty"`
	Location    string    `json:"location,omitempty"`
	MatchCount  *int      `json:"match_count"`
	ViewerURL   string    `json:"viewer_url,omitempty"`
	EmittedAt   time.Time `json:"emitted_at"`
}

// JSONExporter appends article records to an NDJSON file, one object per
// line.
type JSONExporter struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONExporter opens (or creates) the file at filePath for appending.
func NewJSONExporter(filePath string) (*JSONExporter, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open json export file: %w", err)
	}
	return &JSONExporter{file: f}, nil
}

// Consume appends one line per article event; other event kinds are
// ignored.
func (e *JSONExporter) Consume(_ context.Context, batch []progress.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, evt := range batch {
		if evt.Kind != progress.KindArticle {
			continue
		}
		data, err := json.Marshal(jsonLine(evt))
		if err != nil {
			return fmt.Errorf("marshal json record: %w", err)
		}
		if _, err := e.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write json record: %w", err)
		}
	}
	return nil
}

func jsonLine(evt progress.Event) jsonRecord {
	rec := evt.Record
	line := jsonRecord{
		RunID:       evt.RunID.String(),
		Publication: rec.PublicationName,
		PageID:      rec.PageID,
		PageNumber:  rec.PageNumber,
		Date:        rec.Date,
		Location:    rec.Location,
		ViewerURL:   rec.ViewerURL,
		EmittedAt:   evt.TS,
	}
	if rec.MatchCount.Resolved() {
		count := int(rec.MatchCount)
		line.MatchCount = &count
	}
	return line
}

// Close closes the underlying file.
func (e *JSONExporter) Close(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}
