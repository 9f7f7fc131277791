package worker

import (
	"context"
	"os"

	"github.com/hondanabooks/hondana/pkg/jobs"
	"github.com/hondanabooks/hondana/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ProcessEnrichJob fetches suggestions for the job's path. A path pointing
// at a folder is walked for EPUBs and processed as a batch; files that fail
// are skipped and the batch keeps going, so the job only fails when the
// path itself is unusable.
func (w *Worker) ProcessEnrichJob(ctx context.Context, job *models.Job) error {
	log := logger.FromContext(ctx)

	data, ok := job.DataParsed.(*models.JobEnrichData)
	if !ok {
		return errors.New("unexpected data payload for enrich job")
	}

	log.Info("processing enrich job", logger.Data{"path": data.Path})

	info, err := os.Stat(data.Path)
	if err != nil {
		return errors.WithStack(err)
	}

	if !info.IsDir() {
		if _, err := w.enrichService.ProcessFile(ctx, data.Path); err != nil {
			return errors.WithStack(err)
		}
		w.updateProgress(ctx, job, 100)
		return nil
	}

	outcomes, err := w.enrichService.ProcessFolder(ctx, data.Path, func(done, total int) {
		w.updateProgress(ctx, job, done*100/total)
	})
	if err != nil {
		return errors.WithStack(err)
	}

	succeeded := 0
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			continue
		}
		succeeded++
	}

	log.Info("enrich job finished", logger.Data{
		"path":      data.Path,
		"succeeded": succeeded,
		"failed":    failed,
	})

	return nil
}

func (w *Worker) updateProgress(ctx context.Context, job *models.Job, progress int) {
	if progress == job.Progress {
		return
	}
	job.Progress = progress

	err := w.jobService.UpdateJob(ctx, job, jobs.UpdateJobOptions{
		Columns: []string{"progress"},
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Warn("update job progress error")
	}
}
