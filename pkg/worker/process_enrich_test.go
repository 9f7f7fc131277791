package worker

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hondanabooks/hondana/internal/testgen"
	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/enrich"
	"github.com/hondanabooks/hondana/pkg/enricher"
	"github.com/hondanabooks/hondana/pkg/migrations"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/records"
	"github.com/hondanabooks/hondana/pkg/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type stubSuggester struct {
	suggestion enrich.Suggestion
}

func (s *stubSuggester) Aggregate(_ context.Context, _ sources.Query) enrich.Suggestion {
	return s.suggestion
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	// Each in-memory sqlite connection is its own database, so the pool
	// must stay at one connection.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func newTestWorker(t *testing.T, db *bun.DB) *Worker {
	t.Helper()

	cfg := &config.Config{
		BackupDirectory: t.TempDir(),
		WorkerProcesses: 1,
	}
	suggester := &stubSuggester{suggestion: enrich.Suggestion{
		Fields: models.BookFields{Title: "Suggested Title"},
	}}
	enrichService := enricher.NewService(cfg, db, suggester, nil)
	return New(cfg, db, enrichService)
}

func TestProcessEnrichJob_SingleFile(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db)
	ctx := context.Background()
	dir := t.TempDir()

	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title:   "Book",
		Authors: []string{"Author"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>Text.</p>"},
		},
	})

	job := &models.Job{
		ID:         1,
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusInProgress,
		DataParsed: &models.JobEnrichData{Path: path},
	}

	err := w.ProcessEnrichJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)

	record, err := records.NewService(db).RetrieveRecord(ctx, records.RetrieveRecordOptions{Path: &path})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusSuggestionsFetched, record.Status)
	assert.Equal(t, "Suggested Title", record.SuggestedParsed.Title)
}

func TestProcessEnrichJob_FolderWithCorruptFile(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db)
	ctx := context.Background()
	dir := t.TempDir()

	testgen.GenerateEPUB(t, dir, "a.epub", testgen.EPUBOptions{
		Title:   "Book A",
		Authors: []string{"Author"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>Text.</p>"},
		},
	})
	testgen.GenerateCorruptEPUB(t, dir, "broken.epub")
	testgen.GenerateEPUB(t, dir, "c.epub", testgen.EPUBOptions{
		Title:   "Book C",
		Authors: []string{"Author"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>Text.</p>"},
		},
	})

	job := &models.Job{
		ID:         1,
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusInProgress,
		DataParsed: &models.JobEnrichData{Path: dir},
	}

	// A corrupt file in the folder doesn't fail the job.
	err := w.ProcessEnrichJob(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, 100, job.Progress)

	list, total, err := records.NewService(db).ListRecordsWithTotal(ctx, records.ListRecordsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	for _, record := range list {
		assert.Equal(t, models.RecordStatusSuggestionsFetched, record.Status)
	}
}

func TestProcessEnrichJob_MissingPath(t *testing.T) {
	db := newTestDB(t)
	w := newTestWorker(t, db)
	ctx := context.Background()

	job := &models.Job{
		ID:         1,
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusInProgress,
		DataParsed: &models.JobEnrichData{Path: "/does/not/exist"},
	}

	err := w.ProcessEnrichJob(ctx, job)
	require.Error(t, err)
}
