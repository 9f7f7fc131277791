package sources

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/hondanabooks/hondana/pkg/fetch"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/segmentio/encoding/json"
)

// Wikipedia fetches a page summary by title. It is the last-resort
// description source; it contributes nothing else.
type Wikipedia struct {
	baseURL string
	client  *fetch.Client
}

func NewWikipedia(baseURL string, client *fetch.Client) *Wikipedia {
	return &Wikipedia{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (w *Wikipedia) Name() string {
	return "wikipedia"
}

func (w *Wikipedia) Query(ctx context.Context, q Query) Result {
	log := logger.FromContext(ctx)

	if q.Title == "" {
		return Result{}
	}

	title := url.PathEscape(strings.ReplaceAll(q.Title, " ", "_"))
	body, err := w.client.Get(ctx, w.baseURL+"/api/rest_v1/page/summary/"+title, nil)
	if err != nil {
		// No page for this title is "no result", not a failure.
		var re *fetch.RequestError
		if errors.As(err, &re) && re.StatusCode == http.StatusNotFound {
			return Result{}
		}
		log.Warn("wikipedia summary failed", logger.Data{"title": q.Title, "error": err.Error()})
		return Result{}
	}

	var payload struct {
		Extract string `json:"extract"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("wikipedia response malformed", logger.Data{"title": q.Title, "error": err.Error()})
		return Result{}
	}

	return Result{Description: payload.Extract}
}
