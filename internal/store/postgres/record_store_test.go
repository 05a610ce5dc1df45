package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/paperchase/paperchase/internal/retrieval"
)

func TestInsertArticlesInsertsRows(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "articles", "runs")
	require.NoError(t, err)

	runID := uuid.New()
	resolved := 4
	records := []retrieval.EnrichedRecord{
		{
			RawRecord: retrieval.RawRecord{
				PublicationName: "The Daily Ledger",
				PageID:          "pg-1",
				PageNumber:      "4",
				Date:            "1923-05-14",
				Location:        "Albany, New York",
				ViewerURL:       "https://archive.example/image/pg-1",
			},
			MatchCount: retrieval.MatchCount(resolved),
		},
		{
			RawRecord:  retrieval.RawRecord{PageID: "pg-2"},
			MatchCount: retrieval.Unresolved,
		},
	}

	mock.ExpectExec("INSERT INTO articles").
		WithArgs(
			runID,
			"The Daily Ledger",
			"pg-1",
			"4",
			"1923-05-14",
			"Albany, New York",
			&resolved,
			"https://archive.example/image/pg-1",
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO articles").
		WithArgs(runID, "", "pg-2", "", "", "", (*int)(nil), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.InsertArticles(context.Background(), runID, records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertArticlesRequiresRunID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "", "")
	require.NoError(t, err)

	err = store.InsertArticles(context.Background(), uuid.Nil, nil)
	require.Error(t, err)
}

func TestMarkRunCompleteUpserts(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewRecordStoreWithPool(mock, "articles", "runs")
	require.NoError(t, err)

	runID := uuid.New()
	at := time.Unix(1700000000, 0).UTC()
	summary := retrieval.Summary{
		TimeElapsed:       90 * time.Second,
		PerBatchDurations: []time.Duration{30 * time.Second, 60 * time.Second},
	}

	mock.ExpectExec("INSERT INTO runs").
		WithArgs(runID, at, int64(90000), 2).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.MarkRunComplete(context.Background(), runID, summary, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewRecordStoreRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewRecordStoreWithPool(mock, "articles; drop table", "runs")
	require.Error(t, err)
}
