package enricher

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/hondanabooks/hondana/internal/testgen"
	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/enrich"
	"github.com/hondanabooks/hondana/pkg/epub"
	"github.com/hondanabooks/hondana/pkg/errcodes"
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
	queries    []sources.Query
}

func (s *stubSuggester) Aggregate(_ context.Context, q sources.Query) enrich.Suggestion {
	s.queries = append(s.queries, q)
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

func newTestService(t *testing.T, db *bun.DB, suggester Suggester) *Service {
	t.Helper()

	cfg := &config.Config{
		BackupDirectory: t.TempDir(),
		WorkerProcesses: 1,
	}
	return NewService(cfg, db, suggester, nil)
}

func TestProcessFile(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	path := testgen.GenerateEPUB(t, dir, "dune.epub", testgen.EPUBOptions{
		Title:   "dune",
		Authors: []string{"Frank Herbert"},
		ISBN:    "9780441172719",
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>A beginning is a very delicate time.</p>"},
		},
	})

	suggester := &stubSuggester{suggestion: enrich.Suggestion{
		Fields: models.BookFields{
			Title:       "Dune",
			Authors:     []string{"Frank Herbert"},
			ISBN:        "9780441172719",
			Publisher:   "Ace Books",
			PublishDate: "1965",
			Genre:       "Science-Fiction",
			Tags:        []string{"science fiction"},
		},
		Editions: []models.Edition{{Title: "Dune", ISBN: "9780441172719"}},
	}}
	svc := newTestService(t, db, suggester)

	record, err := svc.ProcessFile(ctx, path)
	require.NoError(t, err)
	require.NotZero(t, record.ID)
	assert.Equal(t, models.RecordStatusSuggestionsFetched, record.Status)
	assert.Equal(t, "dune.epub", record.Filename)

	// The catalogs were queried with the file's declared metadata.
	require.Len(t, suggester.queries, 1)
	assert.Equal(t, "dune", suggester.queries[0].Title)
	assert.Equal(t, "9780441172719", suggester.queries[0].ISBN)

	require.NotNil(t, record.OriginalParsed)
	assert.Equal(t, "dune", record.OriginalParsed.Title)
	require.NotNil(t, record.SuggestedParsed)
	assert.Equal(t, "Dune", record.SuggestedParsed.Title)
	assert.Equal(t, "Ace Books", record.SuggestedParsed.Publisher)
	require.Len(t, record.EditionsParsed, 1)
}

func TestProcessFile_RerunReplacesRecord(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	path := testgen.GenerateEPUB(t, dir, "emma.epub", testgen.EPUBOptions{
		Title:   "Emma",
		Authors: []string{"Jane Austen"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>Emma Woodhouse, handsome, clever, and rich.</p>"},
		},
	})

	suggester := &stubSuggester{suggestion: enrich.Suggestion{
		Fields: models.BookFields{Title: "Emma", Publisher: "John Murray"},
	}}
	svc := newTestService(t, db, suggester)

	first, err := svc.ProcessFile(ctx, path)
	require.NoError(t, err)

	// Mark accepted, then re-run. The re-scan replaces the record with a
	// fresh one: new suggestions, acceptance dropped, original snapshot
	// re-read from the file.
	recordService := records.NewService(db)
	first.Accepted = true
	require.NoError(t, recordService.UpdateRecord(ctx, first, records.UpdateRecordOptions{
		Columns: []string{"accepted"},
	}))

	suggester.suggestion.Fields.Publisher = "Penguin Classics"
	second, err := svc.ProcessFile(ctx, path)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, second.Accepted)
	assert.Equal(t, "Penguin Classics", second.SuggestedParsed.Publisher)
	require.NotNil(t, second.OriginalParsed)
	assert.Equal(t, "Emma", second.OriginalParsed.Title)

	// The old record is gone; one record per path.
	_, total, err := recordService.ListRecordsWithTotal(ctx, records.ListRecordsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestProcessFolder_SkipsCorruptFiles(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	for _, name := range []string{"a.epub", "b.epub"} {
		testgen.GenerateEPUB(t, dir, name, testgen.EPUBOptions{
			Title:   "Book " + name,
			Authors: []string{"Author"},
			Chapters: []testgen.Chapter{
				{Title: "Chapter 1", Body: "<p>Text.</p>"},
			},
		})
	}
	testgen.GenerateCorruptEPUB(t, dir, "broken.epub")
	for _, name := range []string{"d.epub", "e.epub"} {
		testgen.GenerateEPUB(t, dir, name, testgen.EPUBOptions{
			Title:   "Book " + name,
			Authors: []string{"Author"},
			Chapters: []testgen.Chapter{
				{Title: "Chapter 1", Body: "<p>Text.</p>"},
			},
		})
	}

	suggester := &stubSuggester{}
	svc := newTestService(t, db, suggester)

	var calls int
	outcomes, err := svc.ProcessFolder(ctx, dir, func(done, total int) {
		calls++
		assert.Equal(t, 5, total)
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 5)
	assert.Equal(t, 5, calls)

	failed := 0
	for _, outcome := range outcomes {
		if filepath.Base(outcome.Path) == "broken.epub" {
			failed++
			require.Error(t, outcome.Err)
			var parseErr *epub.ParseError
			assert.ErrorAs(t, outcome.Err, &parseErr)
			assert.Nil(t, outcome.Record)
			continue
		}
		require.NoError(t, outcome.Err)
		require.NotNil(t, outcome.Record)
		assert.Equal(t, models.RecordStatusSuggestionsFetched, outcome.Record.Status)
	}
	assert.Equal(t, 1, failed)
}

func TestApply(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	path := testgen.GenerateEPUB(t, dir, "dune-scan.epub", testgen.EPUBOptions{
		Title:   "dune",
		Authors: []string{"Frank Herbert"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>A beginning is a very delicate time.</p>"},
		},
	})

	suggester := &stubSuggester{suggestion: enrich.Suggestion{
		Fields: models.BookFields{
			Title:       "Dune",
			Authors:     []string{"Frank Herbert"},
			ISBN:        "9780441172719",
			Publisher:   "Ace Books",
			PublishDate: "1965-08-01",
			Summary:     "A desert planet and its spice.",
			Genre:       "Science-Fiction",
			Tags:        []string{"Science Fiction"},
		},
	}}
	svc := newTestService(t, db, suggester)

	record, err := svc.ProcessFile(ctx, path)
	require.NoError(t, err)

	recordService := records.NewService(db)
	record.Accepted = true
	require.NoError(t, recordService.UpdateRecord(ctx, record, records.UpdateRecordOptions{
		Columns: []string{"accepted"},
	}))

	require.NoError(t, svc.Apply(ctx, record))

	// The file was renamed to the conventional filename.
	newPath := filepath.Join(dir, "1965 - Frank Herbert - Dune.epub")
	assert.Equal(t, newPath, record.Path)
	_, err = os.Stat(newPath)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// A backup of the untouched original exists.
	backups, err := os.ReadDir(svc.cfg.BackupDirectory)
	require.NoError(t, err)
	require.Len(t, backups, 1)
	assert.Contains(t, backups[0].Name(), "dune-scan.epub")

	// The rewritten file carries the suggested metadata.
	book, err := epub.Parse(newPath)
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Metadata.Title)
	assert.Equal(t, "9780441172719", book.Metadata.ISBN)
	assert.Equal(t, "Ace Books", book.Metadata.Publisher)
	assert.Equal(t, "A desert planet and its spice.", book.Metadata.Description)

	// The record reflects the new location and state.
	updated, err := recordService.RetrieveRecord(ctx, records.RetrieveRecordOptions{ID: &record.ID})
	require.NoError(t, err)
	assert.Equal(t, models.RecordStatusApplied, updated.Status)
	assert.Equal(t, "1965 - Frank Herbert - Dune.epub", updated.Filename)
}

func TestApply_RequiresAcceptance(t *testing.T) {
	db := newTestDB(t)
	dir := t.TempDir()
	ctx := context.Background()

	path := testgen.GenerateEPUB(t, dir, "book.epub", testgen.EPUBOptions{
		Title:   "Book",
		Authors: []string{"Author"},
		Chapters: []testgen.Chapter{
			{Title: "Chapter 1", Body: "<p>Text.</p>"},
		},
	})

	suggester := &stubSuggester{suggestion: enrich.Suggestion{
		Fields: models.BookFields{Title: "Book"},
	}}
	svc := newTestService(t, db, suggester)

	record, err := svc.ProcessFile(ctx, path)
	require.NoError(t, err)

	err = svc.Apply(ctx, record)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.Conflict("Record has not been accepted."))

	// Already-applied records can't be applied twice.
	record.Status = models.RecordStatusApplied
	err = svc.Apply(ctx, record)
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.Conflict("Record has no pending suggestions to apply."))
}
