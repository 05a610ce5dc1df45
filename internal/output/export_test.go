package output

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/paperchase/paperchase/internal/progress"
	"github.com/paperchase/paperchase/internal/retrieval"
)

func articleBatch(runID uuid.UUID) []progress.Event {
	now := time.Now().UTC()
	return []progress.Event{
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{
				RawRecord: retrieval.RawRecord{
					PublicationName: "The Daily Ledger",
					PageID:          "pg-1",
					PageNumber:      "4",
					Date:            "1923-05-14",
					Location:        "Albany, New York",
					ViewerURL:       "https://archive.example/image/pg-1",
				},
				MatchCount: 3,
			},
		},
		{
			RunID: runID, TS: now, Kind: progress.KindArticle,
			Record: &retrieval.EnrichedRecord{
				RawRecord: retrieval.RawRecord{
					PublicationName: "Evening Star",
					PageID:          "pg-2",
				},
				MatchCount: retrieval.Unresolved,
			},
		},
		{
			RunID: runID, TS: now, Kind: progress.KindProgress,
			Progress: &retrieval.Progress{Current: 1, Total: 1, Percentage: 100},
		},
	}
}

func TestCSVExporterWritesHeaderAndRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.csv")
	exporter, err := NewCSVExporter(path)
	require.NoError(t, err)

	runID := uuid.New()
	require.NoError(t, exporter.Consume(context.Background(), articleBatch(runID)))
	require.NoError(t, exporter.Close(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, csvHeaders, rows[0])
	require.Equal(t, []string{
		"The Daily Ledger", "pg-1", "4", "1923-05-14",
		"Albany, New York", "3", "https://archive.example/image/pg-1",
	}, rows[1])
	require.Equal(t, "unresolved", rows[2][5])
}

func TestCSVExporterAppendsWithoutDuplicateHeader(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.csv")
	runID := uuid.New()

	first, err := NewCSVExporter(path)
	require.NoError(t, err)
	require.NoError(t, first.Consume(context.Background(), articleBatch(runID)[:1]))
	require.NoError(t, first.Close(context.Background()))

	second, err := NewCSVExporter(path)
	require.NoError(t, err)
	require.NoError(t, second.Consume(context.Background(), articleBatch(runID)[:1]))
	require.NoError(t, second.Close(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, csvHeaders, rows[0])
}

func TestJSONExporterWritesNDJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "articles.ndjson")
	exporter, err := NewJSONExporter(path)
	require.NoError(t, err)

	runID := uuid.New()
	require.NoError(t, exporter.Consume(context.Background(), articleBatch(runID)))
	require.NoError(t, exporter.Close(context.Background()))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck // read-only

	var lines []jsonRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec jsonRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		lines = append(lines, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, lines, 2)
	require.Equal(t, runID.String(), lines[0].RunID)
	require.Equal(t, "The Daily Ledger", lines[0].Publication)
	require.NotNil(t, lines[0].MatchCount)
	require.Equal(t, 3, *lines[0].MatchCount)
	require.Nil(t, lines[1].MatchCount)
	require.Equal(t, "pg-2", lines[1].PageID)
}
