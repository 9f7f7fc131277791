package sources

import (
	"context"

	"github.com/hondanabooks/hondana/pkg/models"
)

// Query carries the fields extracted from a book that a catalog can search
// by. ISBN takes precedence when a client supports identifier lookup.
type Query struct {
	Title   string
	Authors []string
	ISBN    string
}

// Result is the partial metadata one catalog returned. Any field may be
// empty; an entirely zero Result means the catalog had nothing.
type Result struct {
	Title       string
	Authors     []string
	ISBN        string
	Publisher   string
	PublishDate string
	Description string
	Tags        []string
	CoverURL    string
	Editions    []models.Edition
}

// Empty reports whether the catalog found nothing usable.
func (r Result) Empty() bool {
	return r.Title == "" && r.Description == "" && len(r.Tags) == 0 && r.CoverURL == "" && len(r.Editions) == 0
}

// Client queries one external catalog. Implementations never let an error
// escape: a missing page, no match, or exhausted retries all normalize to an
// empty Result, so one dead catalog can't fail an aggregation.
type Client interface {
	Name() string
	Query(ctx context.Context, q Query) Result
}
