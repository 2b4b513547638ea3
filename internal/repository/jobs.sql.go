package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const jobColumns = `id, job_type, queue, payload, status, priority, retry_count, max_retries,
       timeout_seconds, scheduled_at, worker_id, error_message, metadata,
       started_at, completed_at, created_at, updated_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var i Job
	err := row.Scan(
		&i.ID,
		&i.JobType,
		&i.Queue,
		&i.Payload,
		&i.Status,
		&i.Priority,
		&i.RetryCount,
		&i.MaxRetries,
		&i.TimeoutSeconds,
		&i.ScheduledAt,
		&i.WorkerID,
		&i.ErrorMessage,
		&i.Metadata,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const enqueueJob = `-- name: EnqueueJob :one
INSERT INTO jobs (
    job_type, queue, payload, priority, max_retries, scheduled_at, timeout_seconds, metadata
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8
)
RETURNING ` + jobColumns

type EnqueueJobParams struct {
	JobType        string    `json:"job_type"`
	Queue          string    `json:"queue"`
	Payload        []byte    `json:"payload"`
	Priority       int32     `json:"priority"`
	MaxRetries     int32     `json:"max_retries"`
	ScheduledAt    time.Time `json:"scheduled_at"`
	TimeoutSeconds int32     `json:"timeout_seconds"`
	Metadata       []byte    `json:"metadata"`
}

func (q *Queries) EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, enqueueJob,
		arg.JobType,
		arg.Queue,
		arg.Payload,
		arg.Priority,
		arg.MaxRetries,
		arg.ScheduledAt,
		arg.TimeoutSeconds,
		arg.Metadata,
	))
}

const claimNextJob = `-- name: ClaimNextJob :one
UPDATE jobs
SET status = 'running', worker_id = $1, started_at = now(), updated_at = now()
WHERE id = (
    SELECT id FROM jobs
    WHERE status = 'pending'
      AND scheduled_at <= now()
      AND ($2::text = '' OR queue = $2)
    ORDER BY priority, scheduled_at
    FOR UPDATE SKIP LOCKED
    LIMIT 1
)
RETURNING ` + jobColumns

type ClaimNextJobParams struct {
	WorkerID pgtype.Text `json:"worker_id"`
	Queue    string      `json:"queue"`
}

func (q *Queries) ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, claimNextJob, arg.WorkerID, arg.Queue))
}

const completeJob = `-- name: CompleteJob :exec
UPDATE jobs
SET status = 'completed', completed_at = now(), updated_at = now()
WHERE id = $1
`

func (q *Queries) CompleteJob(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, completeJob, id)
	return err
}

const failJob = `-- name: FailJob :one
UPDATE jobs
SET retry_count = retry_count + 1,
    status = CASE WHEN retry_count + 1 >= max_retries THEN 'failed' ELSE 'pending' END,
    scheduled_at = CASE
        WHEN retry_count + 1 >= max_retries THEN scheduled_at
        ELSE now() + make_interval(secs => power(2, retry_count + 1) * 30)
    END,
    error_message = $2,
    worker_id = NULL,
    updated_at = now()
WHERE id = $1
RETURNING ` + jobColumns

type FailJobParams struct {
	ID           uuid.UUID   `json:"id"`
	ErrorMessage pgtype.Text `json:"error_message"`
}

// FailJob reschedules with exponential backoff until max_retries is reached.
func (q *Queries) FailJob(ctx context.Context, arg FailJobParams) (Job, error) {
	return scanJob(q.db.QueryRow(ctx, failJob, arg.ID, arg.ErrorMessage))
}
