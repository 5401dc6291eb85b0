package contracts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/aldoetobex/rentify-backend/pkg/models"
)

// errStale means the contract left the job's target status.
var errStale = fmt.Errorf("%w: contract status changed", ErrConflict)

const (
	// A running job untouched for this long is assumed abandoned.
	staleAfter = 10 * time.Minute
	maxDelay   = time.Hour
)

type WorkerConfig struct {
	Concurrency  int
	MaxAttempts  int
	PollInterval time.Duration
	RetryDelay   time.Duration
	BatchSize    int
}

// Worker renders and stores contract PDFs queued by the service.
type Worker struct {
	svc *Service
	cfg WorkerConfig
	log logrus.FieldLogger
}

func NewWorker(svc *Service, cfg WorkerConfig) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 15 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 10 * time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 4 * cfg.Concurrency
	}
	return &Worker{svc: svc, cfg: cfg, log: svc.log.WithField("component", "pdf-worker")}
}

// Run processes jobs until ctx is cancelled. It wakes on the poll interval
// and whenever the service queues a job.
func (w *Worker) Run(ctx context.Context) error {
	w.log.WithFields(logrus.Fields{
		"concurrency":   w.cfg.Concurrency,
		"max_attempts":  w.cfg.MaxAttempts,
		"poll_interval": w.cfg.PollInterval.String(),
	}).Info("pdf worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.log.WithError(err).Error("pdf worker pass failed")
		}
		select {
		case <-ctx.Done():
			w.log.Info("pdf worker stopped")
			return nil
		case <-ticker.C:
		case <-w.svc.wake:
		}
	}
}

// RunOnce claims due jobs and processes them. It returns how many jobs it claimed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if err := w.requeueAbandoned(ctx); err != nil {
		return 0, err
	}
	jobs, err := w.claim(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			w.process(gctx, job)
			return nil
		})
	}
	return len(jobs), g.Wait()
}

func (w *Worker) requeueAbandoned(ctx context.Context) error {
	now := w.svc.now()
	res := w.svc.db.WithContext(ctx).Model(&models.PDFJob{}).
		Where("status = ? AND updated_at < ?", models.JobRunning, now.Add(-staleAfter)).
		Updates(map[string]any{"status": models.JobQueued, "next_run_at": now, "updated_at": now})
	if res.Error != nil {
		return fmt.Errorf("requeue abandoned jobs: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		w.log.WithField("jobs", res.RowsAffected).Warn("requeued abandoned pdf jobs")
	}
	return nil
}

// claim moves due jobs from queued to running. The conditional update makes
// each job go to exactly one worker.
func (w *Worker) claim(ctx context.Context) ([]models.PDFJob, error) {
	db := w.svc.db.WithContext(ctx)
	now := w.svc.now()

	var due []models.PDFJob
	if err := db.Where("status = ? AND next_run_at <= ?", models.JobQueued, now).
		Order("next_run_at ASC").Limit(w.cfg.BatchSize).
		Find(&due).Error; err != nil {
		return nil, fmt.Errorf("find due jobs: %w", err)
	}

	claimed := make([]models.PDFJob, 0, len(due))
	for _, job := range due {
		res := db.Model(&models.PDFJob{}).
			Where("id = ? AND status = ?", job.ID, models.JobQueued).
			Updates(map[string]any{
				"status":     models.JobRunning,
				"attempts":   gorm.Expr("attempts + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return claimed, fmt.Errorf("claim job %s: %w", job.ID, res.Error)
		}
		if res.RowsAffected == 1 {
			job.Status = models.JobRunning
			job.Attempts++
			claimed = append(claimed, job)
		}
	}
	return claimed, nil
}

func (w *Worker) process(ctx context.Context, job models.PDFJob) {
	log := w.log.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"contract_id": job.ContractID,
		"target":      job.TargetStatus,
		"attempt":     job.Attempts,
	})

	c, err := w.svc.load(ctx, job.ContractID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			w.finish(ctx, job, models.JobFailed, "contract not found")
			pdfJobsTotal.WithLabelValues("failed").Inc()
			log.Warn("pdf job dropped: contract not found")
			return
		}
		w.retry(ctx, log, job, err)
		return
	}
	if c.Status != job.TargetStatus {
		w.skip(ctx, log, job)
		return
	}

	data, err := w.svc.renderer.Render(c)
	if err != nil {
		w.retry(ctx, log, job, fmt.Errorf("render: %w", err))
		return
	}

	key := PDFKey(c.ID, job.TargetStatus)
	obj, err := w.svc.blob.Upload(ctx, key, bytes.NewReader(data), "application/pdf", int64(len(data)))
	if err != nil {
		w.retry(ctx, log, job, fmt.Errorf("upload: %w", err))
		return
	}

	_, err = w.svc.mutate(ctx, c.ID, func(tx *gorm.DB, cur *models.Contract) (*change, error) {
		if cur.Status != job.TargetStatus {
			return nil, errStale
		}
		ch := &change{}
		var existing int64
		if err := tx.Model(&models.ContractDocument{}).
			Where("contract_id = ? AND storage_key = ?", cur.ID, key).
			Count(&existing).Error; err != nil {
			return nil, fmt.Errorf("%w: check documents: %v", ErrInternal, err)
		}
		if existing == 0 {
			ch.documents = []models.ContractDocument{{
				Filename:    PDFFilename(cur.ID, job.TargetStatus),
				URL:         obj.URL,
				StorageKey:  key,
				ContentType: "application/pdf",
				Size:        int64(len(data)),
			}}
		}
		ch.record(models.ActionPDFGenerated, nil, key)
		return ch, nil
	})
	switch {
	case errors.Is(err, errStale):
		w.skip(ctx, log, job)
	case err != nil:
		w.retry(ctx, log, job, fmt.Errorf("record document: %w", err))
	default:
		w.finish(ctx, job, models.JobDone, "")
		pdfJobsTotal.WithLabelValues("done").Inc()
		log.WithField("key", key).Info("contract pdf stored")
	}
}

// skip closes a job whose contract left the target status and records
// pdf_skipped with the status the contract moved to.
func (w *Worker) skip(ctx context.Context, log logrus.FieldLogger, job models.PDFJob) {
	w.finish(ctx, job, models.JobDone, "")
	pdfJobsTotal.WithLabelValues("stale").Inc()

	var moved models.ContractStatus
	_, err := w.svc.mutate(ctx, job.ContractID, func(_ *gorm.DB, cur *models.Contract) (*change, error) {
		moved = cur.Status
		ch := &change{}
		ch.record(models.ActionPDFSkipped, nil, fmt.Sprintf("%s pdf skipped: contract is now %s", job.TargetStatus, cur.Status))
		return ch, nil
	})
	if err != nil {
		log.WithError(err).Error("failed to record pdf_skipped")
		return
	}
	log.WithField("status", moved).Info("pdf job skipped: contract moved on")
}

// retry requeues the job with exponential delay, or marks it failed and
// records pdf_failed on the contract once attempts are exhausted.
func (w *Worker) retry(ctx context.Context, log logrus.FieldLogger, job models.PDFJob, cause error) {
	if ctx.Err() != nil {
		// Shutting down: leave the job for requeueAbandoned.
		return
	}
	if job.Attempts >= w.cfg.MaxAttempts {
		w.finish(ctx, job, models.JobFailed, cause.Error())
		pdfJobsTotal.WithLabelValues("failed").Inc()
		log.WithError(cause).Error("pdf job failed permanently")

		_, err := w.svc.mutate(ctx, job.ContractID, func(_ *gorm.DB, _ *models.Contract) (*change, error) {
			ch := &change{}
			ch.record(models.ActionPDFFailed, nil, fmt.Sprintf("%s pdf failed after %d attempts: %v", job.TargetStatus, job.Attempts, cause))
			return ch, nil
		})
		if err != nil {
			log.WithError(err).Error("failed to record pdf_failed")
		}
		return
	}

	delay := w.backoffDelay(job.Attempts)
	now := w.svc.now()
	err := w.svc.db.WithContext(ctx).Model(&models.PDFJob{}).
		Where("id = ? AND status = ?", job.ID, models.JobRunning).
		Updates(map[string]any{
			"status":      models.JobQueued,
			"last_error":  cause.Error(),
			"next_run_at": now.Add(delay),
			"updated_at":  now,
		}).Error
	if err != nil {
		log.WithError(err).Error("failed to requeue pdf job")
		return
	}
	pdfJobsTotal.WithLabelValues("retry").Inc()
	log.WithError(cause).WithField("retry_in", delay.String()).Warn("pdf job will be retried")
}

func (w *Worker) backoffDelay(attempt int) time.Duration {
	d := w.cfg.RetryDelay
	for i := 1; i < attempt && d < maxDelay; i++ {
		d *= 2
	}
	return min(d, maxDelay)
}

func (w *Worker) finish(ctx context.Context, job models.PDFJob, status models.JobStatus, lastErr string) {
	err := w.svc.db.WithContext(ctx).Model(&models.PDFJob{}).
		Where("id = ? AND status = ?", job.ID, models.JobRunning).
		Updates(map[string]any{
			"status":     status,
			"last_error": lastErr,
			"updated_at": w.svc.now(),
		}).Error
	if err != nil {
		w.log.WithError(err).WithField("job_id", job.ID).Error("failed to update pdf job")
	}
}
