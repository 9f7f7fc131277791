package records

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Applier writes a record's accepted suggestions back into its EPUB file.
// It is implemented by the enricher and injected here to keep the HTTP
// layer free of file handling.
type Applier interface {
	Apply(ctx context.Context, record *models.Record) error
}

type handler struct {
	recordService *Service
	applier       Applier
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Record")
	}

	record, err := h.recordService.RetrieveRecord(ctx, RetrieveRecordOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListRecordsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	records, total, err := h.recordService.ListRecordsWithTotal(ctx, ListRecordsOptions{
		Limit:    &params.Limit,
		Offset:   &params.Offset,
		Statuses: params.Status,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Records []*models.Record `json:"records"`
		Total   int              `json:"total"`
	}{records, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Record")
	}

	params := UpdateRecordPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	record, err := h.recordService.RetrieveRecord(ctx, RetrieveRecordOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Keep track of what's been changed.
	opts := UpdateRecordOptions{Columns: []string{}}

	if params.Accepted != nil && *params.Accepted != record.Accepted {
		record.Accepted = *params.Accepted
		opts.Columns = append(opts.Columns, "accepted")
	}
	if params.Note != nil {
		record.Note = params.Note
		opts.Columns = append(opts.Columns, "note")
	}

	if suggested := applyOverrides(record.SuggestedParsed, params); suggested != nil {
		record.SuggestedParsed = suggested
		opts.Columns = append(opts.Columns, "suggested")
	}

	err = h.recordService.UpdateRecord(ctx, record, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload the model.
	record, err = h.recordService.RetrieveRecord(ctx, RetrieveRecordOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

func (h *handler) apply(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Record")
	}

	record, err := h.recordService.RetrieveRecord(ctx, RetrieveRecordOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.applier.Apply(ctx, record); err != nil {
		return errors.WithStack(err)
	}

	record, err = h.recordService.RetrieveRecord(ctx, RetrieveRecordOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, record))
}

// applyOverrides copies any provided field overrides onto the suggested
// metadata, returning nil when nothing was overridden.
func applyOverrides(suggested *models.BookFields, params UpdateRecordPayload) *models.BookFields {
	changed := false
	if suggested == nil {
		suggested = &models.BookFields{}
	}

	if params.Title != nil {
		suggested.Title = *params.Title
		changed = true
	}
	if params.Authors != nil {
		suggested.Authors = params.Authors
		changed = true
	}
	if params.ISBN != nil {
		suggested.ISBN = *params.ISBN
		changed = true
	}
	if params.Language != nil {
		suggested.Language = *params.Language
		changed = true
	}
	if params.Publisher != nil {
		suggested.Publisher = *params.Publisher
		changed = true
	}
	if params.PublishDate != nil {
		suggested.PublishDate = *params.PublishDate
		changed = true
	}
	if params.Summary != nil {
		suggested.Summary = *params.Summary
		changed = true
	}
	if params.Genre != nil {
		suggested.Genre = *params.Genre
		changed = true
	}
	if params.Tags != nil {
		suggested.Tags = params.Tags
		changed = true
	}

	if !changed {
		return nil
	}
	return suggested
}
