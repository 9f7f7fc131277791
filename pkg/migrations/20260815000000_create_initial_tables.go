package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE jobs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				type TEXT NOT NULL,
				status TEXT NOT NULL,
				data TEXT,
				progress INTEGER NOT NULL DEFAULT 0,
				process_id TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_jobs_status ON jobs(status)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`
			CREATE TABLE records (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				path TEXT NOT NULL,
				filename TEXT NOT NULL,
				status TEXT NOT NULL,
				accepted BOOLEAN NOT NULL DEFAULT FALSE,
				note TEXT,
				original TEXT,
				suggested TEXT,
				editions TEXT
			)
		`)
		if err != nil {
			return errors.WithStack(err)
		}

		// A file is tracked by at most one record.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_records_path ON records(path)`)
		if err != nil {
			return errors.WithStack(err)
		}

		_, err = db.Exec(`CREATE INDEX ix_records_status ON records(status)`)
		return errors.WithStack(err)
	}

	down := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`DROP TABLE IF EXISTS records`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`DROP TABLE IF EXISTS jobs`)
		return errors.WithStack(err)
	}

	Migrations.MustRegister(up, down)
}
