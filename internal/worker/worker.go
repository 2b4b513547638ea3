package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/mercato/internal/email"
	"github.com/dukerupert/mercato/internal/jobs"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often to check for new jobs
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// Queue name to process (empty string = all queues)
	Queue string

	// CleanupInterval is how often the abandoned cart job is scheduled.
	// Zero disables scheduling.
	CleanupInterval time.Duration

	// CartIdleTime is passed to the abandoned cart job.
	CartIdleTime time.Duration

	// ShutdownTimeout bounds how long Start waits for in-flight jobs.
	ShutdownTimeout time.Duration
}

// Worker processes background jobs
type Worker struct {
	config       Config
	queries      repository.Querier
	emailService *email.Service
	carts        jobs.CartAbandoner
	logger       *slog.Logger
	now          func() time.Time
	inflight     sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(
	queries repository.Querier,
	emailService *email.Service,
	carts jobs.CartAbandoner,
	config Config,
	logger *slog.Logger,
) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = 1 * time.Second
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 5
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = 30 * time.Second
	}

	return &Worker{
		config:       config,
		queries:      queries,
		emailService: emailService,
		carts:        carts,
		logger:       logger,
		now:          time.Now,
	}
}

// Start begins processing jobs until the context is cancelled. In-flight
// jobs are given ShutdownTimeout to finish on their own.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"worker_id", w.config.WorkerID,
		"queue", w.config.Queue,
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
	)

	// Jobs keep running past ctx cancellation until the drain deadline.
	jobCtx, cancelJobs := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelJobs()

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	var cleanup <-chan time.Time
	if w.config.CleanupInterval > 0 {
		cleanupTicker := time.NewTicker(w.config.CleanupInterval)
		defer cleanupTicker.Stop()
		cleanup = cleanupTicker.C
	}

	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down", "worker_id", w.config.WorkerID)
			w.drain(cancelJobs)
			return ctx.Err()

		case <-cleanup:
			if err := jobs.EnqueueCleanupAbandonedCarts(ctx, w.queries, w.config.CartIdleTime); err != nil {
				w.logger.Error("failed to schedule cart cleanup", "error", err)
			}

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				w.inflight.Add(1)
				go func() {
					defer w.inflight.Done()
					defer func() { <-sem }()
					w.claimAndProcess(jobCtx)
				}()
			default:
				// At max concurrency, skip this poll
			}
		}
	}
}

func (w *Worker) drain(cancelJobs context.CancelFunc) {
	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(w.config.ShutdownTimeout):
		w.logger.Warn("worker shutdown timed out, cancelling in-flight jobs",
			"worker_id", w.config.WorkerID,
			"timeout", w.config.ShutdownTimeout,
		)
		cancelJobs()
		<-done
	}
}

// claimAndProcess claims and processes a single job. It reports whether a
// job was claimed.
func (w *Worker) claimAndProcess(ctx context.Context) bool {
	job, err := w.queries.ClaimNextJob(ctx, repository.ClaimNextJobParams{
		WorkerID: pgtype.Text{String: w.config.WorkerID, Valid: true},
		Queue:    w.config.Queue,
	})
	if err != nil {
		if !repository.IsNotFound(err) {
			w.logger.Error("failed to claim job", "error", err)
		}
		return false
	}

	w.logger.Info("processing job",
		"job_id", job.ID,
		"job_type", job.JobType,
		"retry_count", job.RetryCount,
	)

	started := time.Now()
	err = w.processJob(ctx, &job)
	if telemetry.Business != nil {
		telemetry.Business.JobDuration.WithLabelValues(job.JobType).Observe(time.Since(started).Seconds())
	}
	if err != nil {
		w.logger.Error("job failed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.JobsFailed.WithLabelValues(job.JobType).Inc()
		}
		// Retries or marks the job failed depending on retry count.
		if _, ferr := w.queries.FailJob(ctx, repository.FailJobParams{
			ID:           job.ID,
			ErrorMessage: pgtype.Text{String: err.Error(), Valid: true},
		}); ferr != nil {
			w.logger.Error("failed to record job failure", "job_id", job.ID, "error", ferr)
		}
		return true
	}

	w.logger.Info("job completed",
		"job_id", job.ID,
		"job_type", job.JobType,
	)
	if telemetry.Business != nil {
		telemetry.Business.JobsProcessed.WithLabelValues(job.JobType).Inc()
	}

	if err := w.queries.CompleteJob(ctx, job.ID); err != nil {
		w.logger.Error("failed to complete job", "job_id", job.ID, "error", err)
	}
	return true
}

// processJob processes a single job. A panicking job fails like any other
// instead of taking the worker down.
func (w *Worker) processJob(ctx context.Context, job *repository.Job) (err error) {
	defer telemetry.Recover(ctx, &err)

	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch {
	case jobs.IsEmailJob(job.JobType):
		if w.emailService == nil {
			return fmt.Errorf("email service not configured")
		}
		return jobs.ProcessEmailJob(jobCtx, job, w.emailService, w.queries)

	case jobs.IsCleanupJob(job.JobType):
		result, err := jobs.ProcessCleanupJob(jobCtx, job, w.carts, w.now())
		if err != nil {
			return err
		}
		w.logger.Info("abandoned carts marked", "count", result.CartsAbandoned)
		if telemetry.Business != nil {
			telemetry.Business.CartsAbandoned.Add(float64(result.CartsAbandoned))
		}
		return nil
	}

	return fmt.Errorf("unknown job type: %s", job.JobType)
}
