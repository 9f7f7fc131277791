package records

import (
	"context"
	"database/sql"
	"time"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

type RetrieveRecordOptions struct {
	ID   *int
	Path *string
}

type ListRecordsOptions struct {
	Limit    *int
	Offset   *int
	Statuses []string

	includeTotal bool
}

type UpdateRecordOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateRecord(ctx context.Context, record *models.Record) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = record.CreatedAt

	if err := record.MarshalData(); err != nil {
		return errors.WithStack(err)
	}

	_, err := svc.db.
		NewInsert().
		Model(record).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveRecord(ctx context.Context, opts RetrieveRecordOptions) (*models.Record, error) {
	record := &models.Record{}

	q := svc.db.
		NewSelect().
		Model(record)

	if opts.ID != nil {
		q = q.Where("r.id = ?", *opts.ID)
	}
	if opts.Path != nil {
		q = q.Where("r.path = ?", *opts.Path)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Record")
		}
		return nil, errors.WithStack(err)
	}

	if err := record.UnmarshalData(); err != nil {
		return nil, errors.WithStack(err)
	}

	return record, nil
}

func (svc *Service) ListRecords(ctx context.Context, opts ListRecordsOptions) ([]*models.Record, error) {
	r, _, err := svc.listRecordsWithTotal(ctx, opts)
	return r, errors.WithStack(err)
}

func (svc *Service) ListRecordsWithTotal(ctx context.Context, opts ListRecordsOptions) ([]*models.Record, int, error) {
	opts.includeTotal = true
	return svc.listRecordsWithTotal(ctx, opts)
}

func (svc *Service) listRecordsWithTotal(ctx context.Context, opts ListRecordsOptions) ([]*models.Record, int, error) {
	records := []*models.Record{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&records).
		Order("r.created_at ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Statuses != nil {
		q = q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			for _, s := range opts.Statuses {
				sq = sq.WhereOr("r.status = ?", s)
			}
			return sq
		})
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	for _, record := range records {
		if err := record.UnmarshalData(); err != nil {
			return nil, 0, errors.WithStack(err)
		}
	}

	return records, total, nil
}

func (svc *Service) DeleteRecord(ctx context.Context, record *models.Record) error {
	_, err := svc.db.
		NewDelete().
		Model(record).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) UpdateRecord(ctx context.Context, record *models.Record, opts UpdateRecordOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	if err := record.MarshalData(); err != nil {
		return errors.WithStack(err)
	}

	now := time.Now()
	record.UpdatedAt = now
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errcodes.NotFound("Record")
		}
		return errors.WithStack(err)
	}

	return nil
}
