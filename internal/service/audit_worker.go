package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/course-scheduler/internal/models"
	"github.com/noah-isme/course-scheduler/pkg/jobs"
)

const auditJobType = "schedule_audit"

type auditRunner interface {
	Run(ctx context.Context, opts AuditOptions) (*models.BlockSectionReport, error)
}

// CacheInvalidator drops cached lookups that a sweep depends on.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AuditWorkerConfig controls the background sweep. When Invalidator is set,
// sweeps that write flags start from fresh curriculum data.
type AuditWorkerConfig struct {
	Interval    time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	Invalidator CacheInvalidator
}

// AuditWorker runs audit sweeps off the request path, either on demand or on
// a fixed interval.
type AuditWorker struct {
	runner      auditRunner
	queue       *jobs.Queue
	interval    time.Duration
	invalidator CacheInvalidator
	logger      *zap.Logger
}

// NewAuditWorker builds the worker around a single-worker queue so sweeps
// never overlap.
func NewAuditWorker(runner auditRunner, cfg AuditWorkerConfig, logger *zap.Logger) *AuditWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &AuditWorker{runner: runner, interval: cfg.Interval, invalidator: cfg.Invalidator, logger: logger}
	w.queue = jobs.NewQueue("schedule-audit", w.handle, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return w
}

// Start launches the queue and, when an interval is set, the periodic sweep.
func (w *AuditWorker) Start(ctx context.Context) {
	w.queue.Start(ctx)
	if w.interval > 0 {
		w.queue.Every(ctx, w.interval, func() jobs.Job {
			return newAuditJob(AuditOptions{UpdateFlags: true})
		})
	}
}

// Stop waits for the running sweep to finish.
func (w *AuditWorker) Stop() {
	w.queue.Stop()
}

// Enqueue schedules a sweep and returns its job id.
func (w *AuditWorker) Enqueue(opts AuditOptions) (string, error) {
	job := newAuditJob(opts)
	if err := w.queue.Enqueue(job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Status reports the state of a previously enqueued sweep.
func (w *AuditWorker) Status(jobID string) (jobs.State, bool) {
	return w.queue.State(jobID)
}

func (w *AuditWorker) handle(ctx context.Context, job jobs.Job) error {
	opts, ok := job.Payload.(AuditOptions)
	if !ok {
		return fmt.Errorf("unexpected payload %T for job %s", job.Payload, job.ID)
	}
	if opts.UpdateFlags && w.invalidator != nil {
		if err := w.invalidator.Invalidate(ctx); err != nil {
			w.logger.Warn("year level cache not flushed before sweep", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	report, err := w.runner.Run(ctx, opts)
	if err != nil {
		return err
	}
	w.logger.Info("audit job finished",
		zap.String("job_id", job.ID),
		zap.Int("block_section_conflicts", report.ConflictCount()),
		zap.Int("flags_updated", report.FlagsUpdated),
	)
	return nil
}

func newAuditJob(opts AuditOptions) jobs.Job {
	return jobs.Job{ID: uuid.NewString(), Type: auditJobType, Payload: opts}
}
