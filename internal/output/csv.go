// Package output contains file exporters for article records: a CSV
// exporter for spreadsheet workflows and an NDJSON exporter for downstream
// tooling. Both implement the run event sink interface and consume article
// events only.
package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/paperchase/paperchase/internal/progress"
	"github.com/paperchase/paperchase/internal/retrieval"
)

var _ progress.Sink = (*CSVExporter)(nil)

// csvHeaders defines the CSV column order.
var csvHeaders = []string{
	"publication",
	"page_id",
	"page_number",
	"date",
	"location",
	"match_count",
	"viewer_url",
}

// unresolvedCell is written when a record's hit lookup never resolved.
const unresolvedCell = "unresolved"

// CSVExporter appends article records to a CSV file, writing the header
// row when the file is empty.
type CSVExporter struct {
	mu   sync.Mutex
	file *os.File
}

// NewCSVExporter opens (or creates) the file at filePath for appending.
func NewCSVExporter(filePath string) (*CSVExporter, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open csv export file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close() //nolint:errcheck,gosec // best effort on the error path
		return nil, fmt.Errorf("stat csv export file: %w", err)
	}
	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(csvHeaders); err != nil {
			f.Close() //nolint:errcheck,gosec // best effort on the error path
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close() //nolint:errcheck,gosec // best effort on the error path
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &CSVExporter{file: f}, nil
}

// Consume appends one row per article event; other event kinds are ignored.
func (e *CSVExporter) Consume(_ context.Context, batch []progress.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := csv.NewWriter(e.file)
	for _, evt := range batch {
		if evt.Kind != progress.KindArticle {
			continue
		}
		if err := w.Write(csvRow(*evt.Record)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv rows: %w", err)
	}
	return nil
}

func csvRow(rec retrieval.EnrichedRecord) []string {
	matches := unresolvedCell
	if rec.MatchCount.Resolved() {
		matches = strconv.Itoa(int(rec.MatchCount))
	}
	return []string{
		rec.PublicationName,
		rec.PageID,
		rec.PageNumber,
		rec.Date,
		rec.Location,
		matches,
		rec.ViewerURL,
	}
}

// Close flushes and closes the underlying file.
func (e *CSVExporter) Close(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.file.Close()
}
