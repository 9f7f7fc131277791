package enrich

import (
	"context"
	"strings"
	"sync"

	"github.com/hondanabooks/hondana/pkg/covercache"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/hondanabooks/hondana/pkg/sources"
	"github.com/robinjoseph08/golib/logger"
)

// Suggestion is the merged answer of all catalogs for one book.
type Suggestion struct {
	Fields   models.BookFields
	Editions []models.Edition
}

// Aggregator fans a query out to the three catalogs and merges their
// answers under a fixed priority: Open Library outranks Google Books, which
// outranks Wikipedia. Wikipedia only ever contributes a summary.
type Aggregator struct {
	openLibrary sources.Client
	googleBooks sources.Client
	wikipedia   sources.Client
	covers      *covercache.Cache
}

func NewAggregator(openLibrary, googleBooks, wikipedia sources.Client, covers *covercache.Cache) *Aggregator {
	return &Aggregator{
		openLibrary: openLibrary,
		googleBooks: googleBooks,
		wikipedia:   wikipedia,
		covers:      covers,
	}
}

// Aggregate queries all catalogs concurrently, waits for every one of them
// (a lower-priority source only matters when a higher one came back empty,
// so there is no early return), and merges. A partial result is a valid
// result: missing fields stay empty rather than failing the aggregation.
func (a *Aggregator) Aggregate(ctx context.Context, q sources.Query) Suggestion {
	log := logger.FromContext(ctx)

	var ol, gb, wp sources.Result
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		ol = a.openLibrary.Query(ctx, q)
	}()
	go func() {
		defer wg.Done()
		gb = a.googleBooks.Query(ctx, q)
	}()
	go func() {
		defer wg.Done()
		wp = a.wikipedia.Query(ctx, q)
	}()
	wg.Wait()

	fields := models.BookFields{
		Title:   firstNonEmpty(ol.Title, gb.Title),
		ISBN:    firstNonEmpty(ol.ISBN, gb.ISBN),
		Summary: firstNonEmpty(ol.Description, gb.Description, wp.Description),
		// Cover and publication data only come from Open Library.
		Publisher:   ol.Publisher,
		PublishDate: ol.PublishDate,
		CoverURL:    ol.CoverURL,
		Tags:        mergeTags(ol.Tags, gb.Tags),
	}
	if len(ol.Authors) > 0 {
		fields.Authors = ol.Authors
	} else {
		fields.Authors = gb.Authors
	}

	fields.Genre = GenreFromTags(ol.Tags)
	if fields.Genre == "" {
		fields.Genre = GenreFromTags(gb.Tags)
	}
	if fields.Genre == "" {
		fields.Genre = ClassifyText(fields.Summary)
	}

	// Warm the cover cache now so an apply later is a disk read. A failed
	// download only costs the cover, not the suggestion.
	if fields.CoverURL != "" && a.covers != nil {
		if _, err := a.covers.GetOrFetch(ctx, fields.CoverURL); err != nil {
			log.Warn("cover download failed", logger.Data{"url": fields.CoverURL, "error": err.Error()})
			fields.CoverURL = ""
		}
	}

	return Suggestion{Fields: fields, Editions: ol.Editions}
}

// mergeTags unions tag lists in priority order, case-normalized for
// deduplication, keeping the casing and position of the first occurrence.
func mergeTags(lists ...[]string) []string {
	seen := map[string]bool{}
	var merged []string
	for _, list := range lists {
		for _, tag := range list {
			key := strings.ToLower(strings.TrimSpace(tag))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, strings.TrimSpace(tag))
		}
	}
	return merged
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
