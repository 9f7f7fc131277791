package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	RecordStatusNotStarted         = "not_started"
	RecordStatusSuggestionsFetched = "suggestions_fetched"
	RecordStatusApplied            = "applied"
)

// Record tracks one EPUB file through the enrichment flow: the metadata
// read from the file, the suggestions aggregated from the catalog sources,
// and whether those suggestions have been applied.
type Record struct {
	bun.BaseModel `bun:"table:records,alias:r"`

	ID              int         `bun:",pk,nullzero" json:"id"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	Path            string      `bun:",nullzero" json:"path"`
	Filename        string      `bun:",nullzero" json:"filename"`
	Status          string      `bun:",nullzero" json:"status"`
	Accepted        bool        `json:"accepted"`
	Note            *string     `json:"note,omitempty"`
	Original        string      `bun:",nullzero" json:"-"`
	OriginalParsed  *BookFields `bun:"-" json:"original"`
	Suggested       string      `bun:",nullzero" json:"-"`
	SuggestedParsed *BookFields `bun:"-" json:"suggested"`
	Editions        string      `bun:",nullzero" json:"-"`
	EditionsParsed  []Edition   `bun:"-" json:"editions"`
}

// BookFields is the set of metadata fields the enricher reads from and
// writes back to an EPUB.
type BookFields struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	ISBN        string   `json:"isbn,omitempty"`
	Language    string   `json:"language,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PublishDate string   `json:"publish_date,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Genre       string   `json:"genre,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
}

// Edition is an alternative edition of a book reported by a catalog source.
type Edition struct {
	Title       string   `json:"title"`
	Authors     []string `json:"authors,omitempty"`
	ISBN        string   `json:"isbn,omitempty"`
	Language    string   `json:"language,omitempty"`
	Publisher   string   `json:"publisher,omitempty"`
	PublishDate string   `json:"publish_date,omitempty"`
	SourceKey   string   `json:"source_key,omitempty"`
}

// UnmarshalData parses the JSON columns into their typed fields.
func (r *Record) UnmarshalData() error {
	if r.Original != "" {
		r.OriginalParsed = &BookFields{}
		if err := json.Unmarshal([]byte(r.Original), r.OriginalParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if r.Suggested != "" {
		r.SuggestedParsed = &BookFields{}
		if err := json.Unmarshal([]byte(r.Suggested), r.SuggestedParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	if r.Editions != "" {
		if err := json.Unmarshal([]byte(r.Editions), &r.EditionsParsed); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

// MarshalData serializes the typed fields back into the JSON columns.
func (r *Record) MarshalData() error {
	if r.OriginalParsed != nil {
		b, err := json.Marshal(r.OriginalParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		r.Original = string(b)
	}
	if r.SuggestedParsed != nil {
		b, err := json.Marshal(r.SuggestedParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		r.Suggested = string(b)
	}
	if r.EditionsParsed != nil {
		b, err := json.Marshal(r.EditionsParsed)
		if err != nil {
			return errors.WithStack(err)
		}
		r.Editions = string(b)
	}
	return nil
}
