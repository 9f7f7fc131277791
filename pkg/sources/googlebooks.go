package sources

import (
	"context"
	"net/url"
	"strings"

	"github.com/hondanabooks/hondana/pkg/fetch"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// GoogleBooks looks up a volume by identifier or title and contributes a
// description and category tags.
type GoogleBooks struct {
	baseURL string
	client  *fetch.Client
}

func NewGoogleBooks(baseURL string, client *fetch.Client) *GoogleBooks {
	return &GoogleBooks{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (g *GoogleBooks) Name() string {
	return "googlebooks"
}

func (g *GoogleBooks) Query(ctx context.Context, q Query) Result {
	log := logger.FromContext(ctx)

	search := ""
	switch {
	case q.ISBN != "":
		search = "isbn:" + q.ISBN
	case q.Title != "":
		search = `intitle:"` + q.Title + `"`
		if len(q.Authors) > 0 {
			search += ` inauthor:"` + q.Authors[0] + `"`
		}
	default:
		return Result{}
	}

	body, err := g.client.Get(ctx, g.baseURL+"/volumes", url.Values{"q": {search}})
	if err != nil {
		log.Warn("google books lookup failed", logger.Data{"q": search, "error": err.Error()})
		return Result{}
	}

	var payload struct {
		Items []struct {
			VolumeInfo struct {
				Title               string   `json:"title"`
				Authors             []string `json:"authors"`
				Publisher           string   `json:"publisher"`
				PublishedDate       string   `json:"publishedDate"`
				Description         string   `json:"description"`
				Categories          []string `json:"categories"`
				IndustryIdentifiers []struct {
					Type       string `json:"type"`
					Identifier string `json:"identifier"`
				} `json:"industryIdentifiers"`
			} `json:"volumeInfo"`
		} `json:"items"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("google books response malformed", logger.Data{"q": search, "error": err.Error()})
		return Result{}
	}
	if len(payload.Items) == 0 {
		return Result{}
	}

	info := payload.Items[0].VolumeInfo
	res := Result{
		Title:       info.Title,
		Authors:     info.Authors,
		Publisher:   info.Publisher,
		PublishDate: info.PublishedDate,
		Description: info.Description,
		Tags:        info.Categories,
	}
	for _, id := range info.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			res.ISBN = id.Identifier
			break
		}
	}

	return res
}
