package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/email"
	"github.com/dukerupert/mercato/internal/repository"
)

type fakeQuerier struct {
	repository.Querier
	enqueued  []repository.EnqueueJobParams
	customers map[uuid.UUID]repository.Customer
}

func (f *fakeQuerier) EnqueueJob(ctx context.Context, arg repository.EnqueueJobParams) (repository.Job, error) {
	f.enqueued = append(f.enqueued, arg)
	return repository.Job{ID: uuid.New(), JobType: arg.JobType, Queue: arg.Queue, Payload: arg.Payload}, nil
}

func (f *fakeQuerier) GetCustomer(ctx context.Context, id uuid.UUID) (repository.Customer, error) {
	c, ok := f.customers[id]
	if !ok {
		return repository.Customer{}, pgx.ErrNoRows
	}
	return c, nil
}

type captureSender struct {
	sent []*email.Email
}

func (c *captureSender) Send(ctx context.Context, e *email.Email) (string, error) {
	c.sent = append(c.sent, e)
	return "id", nil
}

func TestEnqueueOrderNotification(t *testing.T) {
	q := &fakeQuerier{}
	event := domain.OrderEvent{
		Type:          domain.EventPaymentConfirmed,
		OrderID:       uuid.New(),
		OrderNumber:   "ORD-AAAABBBBCCCC",
		CustomerEmail: "ada@example.com",
		TotalCents:    180000,
		Currency:      "NGN",
	}

	require.NoError(t, EnqueueOrderNotification(context.Background(), q, OrderNotificationPayload{OrderEvent: event}))
	require.Len(t, q.enqueued, 1)

	job := q.enqueued[0]
	assert.Equal(t, JobTypePaymentConfirmed, job.JobType)
	assert.Equal(t, QueueEmail, job.Queue)
	assert.Equal(t, int32(50), job.Priority)
	assert.Equal(t, int32(3), job.MaxRetries)
	assert.JSONEq(t, `{"order_number":"ORD-AAAABBBBCCCC"}`, string(job.Metadata))

	var decoded OrderNotificationPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, event.OrderNumber, decoded.OrderNumber)
	assert.Equal(t, event.TotalCents, decoded.TotalCents)
	assert.Equal(t, domain.EventPaymentConfirmed, decoded.Type)
}

func TestProcessEmailJob(t *testing.T) {
	customerID := uuid.New()
	q := &fakeQuerier{customers: map[uuid.UUID]repository.Customer{
		customerID: {ID: customerID, FirstName: "Ada", Email: "ada@example.com"},
	}}
	sender := &captureSender{}
	svc, err := email.NewService(sender, "orders@mercato.test", "Mercato")
	require.NoError(t, err)

	tests := []struct {
		name       string
		customerID uuid.UUID
		wantName   string
	}{
		{name: "known customer is greeted by name", customerID: customerID, wantName: "Hi Ada,"},
		{name: "unknown customer falls back", customerID: uuid.New(), wantName: "Hello,"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender.sent = nil
			payload, err := json.Marshal(OrderNotificationPayload{OrderEvent: domain.OrderEvent{
				Type:          domain.EventOrderPlaced,
				OrderNumber:   "ORD-1",
				CustomerID:    tt.customerID,
				CustomerEmail: "ada@example.com",
				Currency:      "NGN",
			}})
			require.NoError(t, err)

			job := &repository.Job{JobType: JobTypeOrderPlaced, Payload: payload}
			require.NoError(t, ProcessEmailJob(context.Background(), job, svc, q))
			require.Len(t, sender.sent, 1)
			assert.Contains(t, sender.sent[0].TextBody, tt.wantName)
		})
	}

	t.Run("rejects unknown job type", func(t *testing.T) {
		err := ProcessEmailJob(context.Background(), &repository.Job{JobType: "email:welcome"}, svc, q)
		assert.Error(t, err)
	})
}

type fakeCarts struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeCarts) MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestProcessCleanupJob(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("uses payload idle time", func(t *testing.T) {
		q := &fakeQuerier{}
		require.NoError(t, EnqueueCleanupAbandonedCarts(context.Background(), q, 24*time.Hour))
		require.Len(t, q.enqueued, 1)
		assert.Equal(t, QueueCleanup, q.enqueued[0].Queue)

		carts := &fakeCarts{n: 4}
		job := &repository.Job{JobType: JobTypeCleanupAbandonedCarts, Payload: q.enqueued[0].Payload}
		result, err := ProcessCleanupJob(context.Background(), job, carts, now)
		require.NoError(t, err)
		assert.Equal(t, int64(4), result.CartsAbandoned)
		assert.Equal(t, now.Add(-24*time.Hour), carts.cutoff)
	})

	t.Run("empty payload uses default", func(t *testing.T) {
		carts := &fakeCarts{}
		_, err := ProcessCleanupJob(context.Background(), &repository.Job{JobType: JobTypeCleanupAbandonedCarts}, carts, now)
		require.NoError(t, err)
		assert.Equal(t, now.Add(-DefaultCartIdleTime), carts.cutoff)
	})

	t.Run("propagates store errors", func(t *testing.T) {
		carts := &fakeCarts{err: errors.New("db gone")}
		_, err := ProcessCleanupJob(context.Background(), &repository.Job{JobType: JobTypeCleanupAbandonedCarts}, carts, now)
		assert.Error(t, err)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := ProcessCleanupJob(context.Background(), &repository.Job{JobType: "cleanup:tokens"}, &fakeCarts{}, now)
		assert.Error(t, err)
	})
}

func TestJobTypeClassification(t *testing.T) {
	assert.True(t, IsEmailJob(EmailJobType(domain.EventOrderRefunded)))
	assert.False(t, IsEmailJob(JobTypeCleanupAbandonedCarts))
	assert.True(t, IsCleanupJob(JobTypeCleanupAbandonedCarts))
	assert.False(t, IsCleanupJob(JobTypeOrderShipped))
}
