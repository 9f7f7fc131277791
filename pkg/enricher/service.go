package enricher

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hondanabooks/hondana/pkg/config"
	"github.com/hondanabooks/hondana/pkg/covercache"
	"github.com/hondanabooks/hondana/pkg/enrich"
	"github.com/hondanabooks/hondana/pkg/epub"
	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/fileutils"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/records"
	"github.com/hondanabooks/hondana/pkg/sources"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/uptrace/bun"
)

// Suggester produces merged metadata suggestions for a book query.
type Suggester interface {
	Aggregate(ctx context.Context, q sources.Query) enrich.Suggestion
}

// FileOutcome is the per-file result of a batch run. Err is set when the
// file was skipped, most commonly because it could not be parsed.
type FileOutcome struct {
	Path   string
	Record *models.Record
	Err    error
}

// Service drives the enrichment flow: parse an EPUB, fetch suggestions for
// it, and later write accepted suggestions back into the file.
type Service struct {
	cfg           *config.Config
	recordService *records.Service
	suggester     Suggester
	covers        *covercache.Cache
}

func NewService(cfg *config.Config, db *bun.DB, suggester Suggester, covers *covercache.Cache) *Service {
	return &Service{
		cfg:           cfg,
		recordService: records.NewService(db),
		suggester:     suggester,
		covers:        covers,
	}
}

// ProcessFile parses one EPUB, queries the catalogs with whatever metadata
// the file declares, and stores the merged suggestions on the file's record.
// The original metadata snapshot is taken on first sight of a path and never
// overwritten by later runs.
func (svc *Service) ProcessFile(ctx context.Context, path string) (*models.Record, error) {
	book, err := epub.Parse(path)
	if err != nil {
		return nil, err
	}

	original := bookFieldsFromMetadata(book.Metadata)

	suggestion := svc.suggester.Aggregate(ctx, sources.Query{
		Title:   book.Metadata.Title,
		Authors: book.Metadata.Authors,
		ISBN:    book.Metadata.ISBN,
	})

	// A record's original snapshot is write-once. A re-scan of a known path
	// replaces the whole record with a fresh one, re-reading the snapshot
	// from whatever is on disk now.
	existing, err := svc.recordService.RetrieveRecord(ctx, records.RetrieveRecordOptions{
		Path: &path,
	})
	if err != nil && !errors.Is(err, errcodes.NotFound("Record")) {
		return nil, errors.WithStack(err)
	}
	if existing != nil {
		if err := svc.recordService.DeleteRecord(ctx, existing); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	record := &models.Record{
		Path:            path,
		Filename:        filepath.Base(path),
		Status:          models.RecordStatusSuggestionsFetched,
		OriginalParsed:  original,
		SuggestedParsed: &suggestion.Fields,
		EditionsParsed:  suggestion.Editions,
	}
	if err := svc.recordService.CreateRecord(ctx, record); err != nil {
		return nil, errors.WithStack(err)
	}

	return record, nil
}

// ProcessFolder walks a folder for EPUBs and processes each one. Files that
// fail, corrupt ones included, are reported in their outcome and never stop
// the rest of the batch. Files are worked on by a small pool of goroutines;
// outcomes come back in file order. onFile, when non-nil, is called after
// each file with the running completion count.
func (svc *Service) ProcessFolder(ctx context.Context, root string, onFile func(done, total int)) ([]FileOutcome, error) {
	log := logger.FromContext(ctx)

	paths, err := fileutils.FindEPUBs(root)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	outcomes := make([]FileOutcome, len(paths))
	indexes := make(chan int)

	workers := svc.cfg.WorkerProcesses
	if workers < 1 {
		workers = 1
	}

	var done int
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				path := paths[i]
				record, err := svc.ProcessFile(ctx, path)
				if err != nil {
					log.Err(err).Warn("skipping file", logger.Data{"path": path})
				}
				outcomes[i] = FileOutcome{Path: path, Record: record, Err: err}

				mu.Lock()
				done++
				if onFile != nil {
					onFile(done, len(paths))
				}
				mu.Unlock()
			}
		}()
	}

	for i := range paths {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return outcomes, nil
}

// Apply writes a record's accepted suggestions back into its EPUB. The
// original file is backed up first, then rebuilt in place, then renamed to
// the conventional "year - authors - title" filename. A failure before the
// rename leaves the record untouched so the run can be retried.
func (svc *Service) Apply(ctx context.Context, record *models.Record) error {
	log := logger.FromContext(ctx)

	if record.Status != models.RecordStatusSuggestionsFetched {
		return errcodes.Conflict("Record has no pending suggestions to apply.")
	}
	if !record.Accepted {
		return errcodes.Conflict("Record has not been accepted.")
	}
	if record.SuggestedParsed == nil {
		return errcodes.Conflict("Record has no suggested metadata.")
	}

	final := mergeFields(record.OriginalParsed, record.SuggestedParsed)

	backupPath, err := fileutils.BackupFile(record.Path, svc.cfg.BackupDirectory)
	if err != nil {
		return errors.WithStack(err)
	}
	log.Info("backed up file", logger.Data{"path": record.Path, "backup_path": backupPath})

	var coverData []byte
	var coverMediaType string
	if final.CoverURL != "" && svc.covers != nil {
		coverData, err = svc.covers.GetOrFetch(ctx, final.CoverURL)
		if err != nil {
			log.Err(err).Warn("cover download failed, keeping existing cover", logger.Data{
				"url": final.CoverURL,
			})
			coverData = nil
		} else {
			coverMediaType = mimetype.Detect(coverData).String()
		}
	}

	err = epub.Rebuild(record.Path, &epub.RebuildMetadata{
		Metadata: epub.Metadata{
			Title:       final.Title,
			Authors:     final.Authors,
			ISBN:        final.ISBN,
			Language:    final.Language,
			Publisher:   final.Publisher,
			PublishDate: final.PublishDate,
			Description: final.Summary,
			Subjects:    final.Tags,
		},
		CoverData:      coverData,
		CoverMediaType: coverMediaType,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	newPath := record.Path
	suggested := fileutils.SuggestedFilename(final.PublishDate, final.Authors, final.Title)
	if suggested != filepath.Base(record.Path) {
		newPath = fileutils.UniqueFilepath(filepath.Join(filepath.Dir(record.Path), suggested))
		if err := os.Rename(record.Path, newPath); err != nil {
			return errors.WithStack(err)
		}
		log.Info("renamed file", logger.Data{"from": record.Path, "to": newPath})
	}

	record.Path = newPath
	record.Filename = filepath.Base(newPath)
	record.Status = models.RecordStatusApplied
	err = svc.recordService.UpdateRecord(ctx, record, records.UpdateRecordOptions{
		Columns: []string{"path", "filename", "status"},
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// mergeFields fills any empty suggested field from the original snapshot so
// an incomplete suggestion never erases metadata the file already had.
func mergeFields(original, suggested *models.BookFields) models.BookFields {
	if suggested == nil {
		suggested = &models.BookFields{}
	}
	if original == nil {
		original = &models.BookFields{}
	}

	final := *suggested
	if final.Title == "" {
		final.Title = original.Title
	}
	if len(final.Authors) == 0 {
		final.Authors = original.Authors
	}
	if final.ISBN == "" {
		final.ISBN = original.ISBN
	}
	if final.Language == "" {
		final.Language = original.Language
	}
	if final.Publisher == "" {
		final.Publisher = original.Publisher
	}
	if final.PublishDate == "" {
		final.PublishDate = original.PublishDate
	}
	if final.Summary == "" {
		final.Summary = original.Summary
	}
	if len(final.Tags) == 0 {
		final.Tags = original.Tags
	}
	return final
}

func bookFieldsFromMetadata(meta epub.Metadata) *models.BookFields {
	return &models.BookFields{
		Title:       meta.Title,
		Authors:     meta.Authors,
		ISBN:        meta.ISBN,
		Language:    meta.Language,
		Publisher:   meta.Publisher,
		PublishDate: meta.PublishDate,
		Summary:     meta.Description,
		Tags:        meta.Subjects,
	}
}
