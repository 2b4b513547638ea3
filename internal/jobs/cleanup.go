package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/mercato/internal/repository"
)

// QueueCleanup holds maintenance jobs.
const QueueCleanup = "cleanup"

// Job type constants for cleanup jobs
const (
	JobTypeCleanupAbandonedCarts = "cleanup:abandoned_carts"
)

// DefaultCartIdleTime is how long an active cart may sit untouched before
// it is marked abandoned.
const DefaultCartIdleTime = 72 * time.Hour

// CleanupAbandonedCartsPayload represents the payload for a cart cleanup job.
type CleanupAbandonedCartsPayload struct {
	IdleSeconds int64 `json:"idle_seconds"`
}

// CartAbandoner is the slice of the cart service the cleanup job needs.
type CartAbandoner interface {
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}

// EnqueueCleanupAbandonedCarts enqueues a job that marks carts idle for
// longer than idle as abandoned. Zero uses DefaultCartIdleTime.
func EnqueueCleanupAbandonedCarts(ctx context.Context, q repository.Querier, idle time.Duration) error {
	if idle <= 0 {
		idle = DefaultCartIdleTime
	}

	payloadJSON, err := json.Marshal(CleanupAbandonedCartsPayload{IdleSeconds: int64(idle / time.Second)})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:        JobTypeCleanupAbandonedCarts,
		Queue:          QueueCleanup,
		Payload:        payloadJSON,
		Priority:       10, // Low priority - maintenance task
		MaxRetries:     1,  // Runs again at the next schedule anyway
		ScheduledAt:    time.Now(),
		TimeoutSeconds: 60,
		Metadata:       []byte("{}"),
	})

	return err
}

// CleanupResult holds the result of a cleanup operation
type CleanupResult struct {
	CartsAbandoned int64 `json:"carts_abandoned"`
}

// ProcessCleanupJob processes a cleanup job based on its type
func ProcessCleanupJob(ctx context.Context, job *repository.Job, carts CartAbandoner, now time.Time) (*CleanupResult, error) {
	switch job.JobType {
	case JobTypeCleanupAbandonedCarts:
		var payload CleanupAbandonedCartsPayload
		if len(job.Payload) > 0 {
			if err := json.Unmarshal(job.Payload, &payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal cleanup payload: %w", err)
			}
		}
		idle := time.Duration(payload.IdleSeconds) * time.Second
		if idle <= 0 {
			idle = DefaultCartIdleTime
		}

		n, err := carts.MarkAbandoned(ctx, now.Add(-idle))
		if err != nil {
			return nil, fmt.Errorf("failed to mark abandoned carts: %w", err)
		}
		return &CleanupResult{CartsAbandoned: n}, nil
	default:
		return nil, fmt.Errorf("unknown cleanup job type: %s", job.JobType)
	}
}

// IsCleanupJob checks if a job type is a cleanup job
func IsCleanupJob(jobType string) bool {
	switch jobType {
	case JobTypeCleanupAbandonedCarts:
		return true
	}
	return false
}
