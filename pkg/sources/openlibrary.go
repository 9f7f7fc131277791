package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/hondanabooks/hondana/pkg/fetch"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

const openLibrarySearchLimit = 20

// OpenLibrary is the richest catalog: identifier lookup first, title/author
// search as fallback, multiple candidate editions, and cover references.
type OpenLibrary struct {
	baseURL  string
	coverURL string
	client   *fetch.Client
}

func NewOpenLibrary(baseURL string, client *fetch.Client) *OpenLibrary {
	return &OpenLibrary{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		coverURL: "https://covers.openlibrary.org",
		client:   client,
	}
}

func (o *OpenLibrary) Name() string {
	return "openlibrary"
}

func (o *OpenLibrary) Query(ctx context.Context, q Query) Result {
	if q.ISBN != "" {
		if res := o.lookupByISBN(ctx, q.ISBN); !res.Empty() {
			return res
		}
	}
	if q.Title == "" {
		return Result{}
	}
	return o.searchByTitle(ctx, q)
}

type olBookData struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	PublishDate string `json:"publish_date"`
	Authors     []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Publishers []struct {
		Name string `json:"name"`
	} `json:"publishers"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	Cover struct {
		Large  string `json:"large"`
		Medium string `json:"medium"`
	} `json:"cover"`
}

func (o *OpenLibrary) lookupByISBN(ctx context.Context, isbn string) Result {
	log := logger.FromContext(ctx)

	bibkey := "ISBN:" + isbn
	body, err := o.client.Get(ctx, o.baseURL+"/api/books", url.Values{
		"bibkeys": {bibkey},
		"format":  {"json"},
		"jscmd":   {"data"},
	})
	if err != nil {
		log.Warn("openlibrary isbn lookup failed", logger.Data{"isbn": isbn, "error": err.Error()})
		return Result{}
	}

	data := map[string]olBookData{}
	if err := json.Unmarshal(body, &data); err != nil {
		log.Warn("openlibrary isbn response malformed", logger.Data{"isbn": isbn, "error": err.Error()})
		return Result{}
	}
	book, ok := data[bibkey]
	if !ok {
		return Result{}
	}

	res := Result{
		Title:       book.Title,
		ISBN:        isbn,
		PublishDate: book.PublishDate,
	}
	for _, a := range book.Authors {
		res.Authors = append(res.Authors, a.Name)
	}
	if len(book.Publishers) > 0 {
		res.Publisher = book.Publishers[0].Name
	}
	for _, s := range book.Subjects {
		res.Tags = append(res.Tags, s.Name)
	}
	if book.Cover.Large != "" {
		res.CoverURL = book.Cover.Large
	} else if book.Cover.Medium != "" {
		res.CoverURL = book.Cover.Medium
	}

	// The bibkeys payload has no description; follow the edition to its
	// work for one.
	if book.Key != "" {
		if workKey := o.workKeyForEdition(ctx, book.Key); workKey != "" {
			res.Description = o.workDescription(ctx, workKey)
		}
	}

	return res
}

type olSearchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorName       []string `json:"author_name"`
	FirstPublishYear int      `json:"first_publish_year"`
	CoverID          int      `json:"cover_i"`
	ISBN             []string `json:"isbn"`
	Publisher        []string `json:"publisher"`
	Language         []string `json:"language"`
}

func (o *OpenLibrary) searchByTitle(ctx context.Context, q Query) Result {
	log := logger.FromContext(ctx)

	params := url.Values{
		"title": {q.Title},
		"limit": {strconv.Itoa(openLibrarySearchLimit)},
	}
	if len(q.Authors) > 0 {
		params.Set("author", q.Authors[0])
	}

	body, err := o.client.Get(ctx, o.baseURL+"/search.json", params)
	if err != nil {
		log.Warn("openlibrary search failed", logger.Data{"title": q.Title, "error": err.Error()})
		return Result{}
	}

	var payload struct {
		Docs []olSearchDoc `json:"docs"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("openlibrary search response malformed", logger.Data{"title": q.Title, "error": err.Error()})
		return Result{}
	}
	if len(payload.Docs) == 0 {
		return Result{}
	}

	first := payload.Docs[0]
	res := Result{
		Title:   first.Title,
		Authors: first.AuthorName,
	}
	if first.FirstPublishYear > 0 {
		res.PublishDate = strconv.Itoa(first.FirstPublishYear)
	}
	if len(first.ISBN) > 0 {
		res.ISBN = first.ISBN[0]
	}
	if len(first.Publisher) > 0 {
		res.Publisher = first.Publisher[0]
	}
	if first.CoverID > 0 {
		res.CoverURL = fmt.Sprintf("%s/b/id/%d-L.jpg", o.coverURL, first.CoverID)
	}
	res.Description = o.workDescription(ctx, first.Key)

	for _, doc := range payload.Docs {
		edition := models.Edition{
			Title:     doc.Title,
			Authors:   doc.AuthorName,
			SourceKey: doc.Key,
		}
		if len(doc.ISBN) > 0 {
			edition.ISBN = doc.ISBN[0]
		}
		if len(doc.Publisher) > 0 {
			edition.Publisher = doc.Publisher[0]
		}
		if len(doc.Language) > 0 {
			edition.Language = doc.Language[0]
		}
		if doc.FirstPublishYear > 0 {
			edition.PublishDate = strconv.Itoa(doc.FirstPublishYear)
		}
		res.Editions = append(res.Editions, edition)
	}

	return res
}

// workKeyForEdition fetches an edition document and returns the key of the
// work it belongs to.
func (o *OpenLibrary) workKeyForEdition(ctx context.Context, editionKey string) string {
	body, err := o.client.Get(ctx, o.baseURL+editionKey+".json", nil)
	if err != nil {
		return ""
	}
	var edition struct {
		Works []struct {
			Key string `json:"key"`
		} `json:"works"`
	}
	if err := json.Unmarshal(body, &edition); err != nil || len(edition.Works) == 0 {
		return ""
	}
	return edition.Works[0].Key
}

// workDescription fetches a work document and returns its description. The
// field is either a bare string or a typed value object.
func (o *OpenLibrary) workDescription(ctx context.Context, workKey string) string {
	if workKey == "" {
		return ""
	}
	body, err := o.client.Get(ctx, o.baseURL+workKey+".json", nil)
	if err != nil {
		return ""
	}
	var work struct {
		Description json.RawMessage `json:"description"`
	}
	if err := json.Unmarshal(body, &work); err != nil || len(work.Description) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(work.Description, &s); err == nil {
		return s
	}
	var typed struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(work.Description, &typed); err == nil {
		return typed.Value
	}
	return ""
}
