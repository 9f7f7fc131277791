package jobs

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hondanabooks/hondana/pkg/errcodes"
	"github.com/hondanabooks/hondana/pkg/migrations"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateAndRetrieveJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &models.Job{
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobEnrichData{Path: "/library/book.epub"},
	}
	err := svc.CreateJob(ctx, job)
	require.NoError(t, err)
	require.NotZero(t, job.ID)
	assert.False(t, job.CreatedAt.IsZero())

	retrieved, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, models.JobTypeEnrich, retrieved.Type)
	assert.Equal(t, models.JobStatusPending, retrieved.Status)

	data, ok := retrieved.DataParsed.(*models.JobEnrichData)
	require.True(t, ok)
	assert.Equal(t, "/library/book.epub", data.Path)
}

func TestRetrieveJob_NotFound(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	id := 9999
	_, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &id})
	require.Error(t, err)

	var codeErr *errcodes.Error
	require.ErrorAs(t, err, &codeErr)
	assert.Equal(t, "not_found", codeErr.Code)
}

func TestListJobs_FilterByStatus(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	for _, status := range []string{
		models.JobStatusPending,
		models.JobStatusCompleted,
		models.JobStatusFailed,
	} {
		job := &models.Job{
			Type:       models.JobTypeEnrich,
			Status:     status,
			DataParsed: &models.JobEnrichData{Path: "/library"},
		}
		require.NoError(t, svc.CreateJob(ctx, job))
	}

	jobs, total, err := svc.ListJobsWithTotal(ctx, ListJobsOptions{
		Statuses: []string{models.JobStatusPending, models.JobStatusFailed},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, jobs, 2)
	assert.Equal(t, models.JobStatusPending, jobs[0].Status)
	assert.Equal(t, models.JobStatusFailed, jobs[1].Status)
}

func TestUpdateJob(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	job := &models.Job{
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobEnrichData{Path: "/library"},
	}
	require.NoError(t, svc.CreateJob(ctx, job))

	job.Status = models.JobStatusInProgress
	job.Progress = 40
	err := svc.UpdateJob(ctx, job, UpdateJobOptions{Columns: []string{"status", "progress"}})
	require.NoError(t, err)

	retrieved, err := svc.RetrieveJob(ctx, RetrieveJobOptions{ID: &job.ID})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusInProgress, retrieved.Status)
	assert.Equal(t, 40, retrieved.Progress)
}

func TestHasActiveJobByType(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db)
	ctx := context.Background()

	hasActive, err := svc.HasActiveJobByType(ctx, models.JobTypeEnrich)
	require.NoError(t, err)
	assert.False(t, hasActive)

	job := &models.Job{
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusCompleted,
		DataParsed: &models.JobEnrichData{Path: "/library"},
	}
	require.NoError(t, svc.CreateJob(ctx, job))

	hasActive, err = svc.HasActiveJobByType(ctx, models.JobTypeEnrich)
	require.NoError(t, err)
	assert.False(t, hasActive)

	job = &models.Job{
		Type:       models.JobTypeEnrich,
		Status:     models.JobStatusPending,
		DataParsed: &models.JobEnrichData{Path: "/library"},
	}
	require.NoError(t, svc.CreateJob(ctx, job))

	hasActive, err = svc.HasActiveJobByType(ctx, models.JobTypeEnrich)
	require.NoError(t, err)
	assert.True(t, hasActive)
}
