package records

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/migrations"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateAndRetrieveRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	record := &models.Record{
		Path:     "/library/dune.epub",
		Filename: "dune.epub",
		Status:   models.RecordStatusSuggestionsFetched,
		OriginalParsed: &models.BookFields{
			Title:   "dune",
			Authors: []string{"Frank Herbert"},
		},
		SuggestedParsed: &models.BookFields{
			Title:     "Dune",
			Authors:   []string{"Frank Herbert"},
			ISBN:      "9780441172719",
			Publisher: "Ace Books",
			Genre:     "Science-Fiction",
			Tags:      []string{"science fiction", "desert planets"},
		},
		EditionsParsed: []models.Edition{
			{Title: "Dune", ISBN: "9780441172719", SourceKey: "/books/OL7504677M"},
		},
	}
	err := svc.CreateRecord(ctx, record)
	require.NoError(t, err)
	require.NotZero(t, record.ID)

	retrieved, err := svc.RetrieveRecord(ctx, RetrieveRecordOptions{ID: &record.ID})
	require.NoError(t, err)
	assert.Equal(t, "/library/dune.epub", retrieved.Path)
	require.NotNil(t, retrieved.OriginalParsed)
	assert.Equal(t, "dune", retrieved.OriginalParsed.Title)
	require.NotNil(t, retrieved.SuggestedParsed)
	assert.Equal(t, "Dune", retrieved.SuggestedParsed.Title)
	assert.Equal(t, []string{"science fiction", "desert planets"}, retrieved.SuggestedParsed.Tags)
	require.Len(t, retrieved.EditionsParsed, 1)
	assert.Equal(t, "/books/OL7504677M", retrieved.EditionsParsed[0].SourceKey)
}

func TestRetrieveRecord_ByPath(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	record := &models.Record{
		Path:     "/library/emma.epub",
		Filename: "emma.epub",
		Status:   models.RecordStatusNotStarted,
	}
	require.NoError(t, svc.CreateRecord(ctx, record))

	path := "/library/emma.epub"
	retrieved, err := svc.RetrieveRecord(ctx, RetrieveRecordOptions{Path: &path})
	require.NoError(t, err)
	assert.Equal(t, record.ID, retrieved.ID)

	missing := "/library/missing.epub"
	_, err = svc.RetrieveRecord(ctx, RetrieveRecordOptions{Path: &missing})
	require.Error(t, err)

	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "not_found", codeErr.Code)
}

func TestListRecords_FilterByStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for i, status := range []string{
		models.RecordStatusNotStarted,
		models.RecordStatusSuggestionsFetched,
		models.RecordStatusApplied,
	} {
		record := &models.Record{
			Path:     "/library/book-" + string(rune('a'+i)) + ".epub",
			Filename: "book.epub",
			Status:   status,
		}
		require.NoError(t, svc.CreateRecord(ctx, record))
	}

	records, total, err := svc.ListRecordsWithTotal(ctx, ListRecordsOptions{
		Statuses: []string{models.RecordStatusSuggestionsFetched},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, records, 1)
	assert.Equal(t, models.RecordStatusSuggestionsFetched, records[0].Status)
}

func TestUpdateRecord(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	record := &models.Record{
		Path:     "/library/solaris.epub",
		Filename: "solaris.epub",
		Status:   models.RecordStatusSuggestionsFetched,
		SuggestedParsed: &models.BookFields{
			Title: "Solaris",
		},
	}
	require.NoError(t, svc.CreateRecord(ctx, record))

	record.Accepted = true
	record.SuggestedParsed.Publisher = "Faber & Faber"
	err := svc.UpdateRecord(ctx, record, UpdateRecordOptions{
		Columns: []string{"accepted", "suggested"},
	})
	require.NoError(t, err)

	retrieved, err := svc.RetrieveRecord(ctx, RetrieveRecordOptions{ID: &record.ID})
	require.NoError(t, err)
	assert.True(t, retrieved.Accepted)
	require.NotNil(t, retrieved.SuggestedParsed)
	assert.Equal(t, "Faber & Faber", retrieved.SuggestedParsed.Publisher)
}

func TestCreateRecord_DuplicatePath(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	record := &models.Record{
		Path:     "/library/dup.epub",
		Filename: "dup.epub",
		Status:   models.RecordStatusNotStarted,
	}
	require.NoError(t, svc.CreateRecord(ctx, record))

	dup := &models.Record{
		Path:     "/library/dup.epub",
		Filename: "dup.epub",
		Status:   models.RecordStatusNotStarted,
	}
	err := svc.CreateRecord(ctx, dup)
	require.Error(t, err)
}
