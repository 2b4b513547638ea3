package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/email"
	"github.com/dukerupert/mercato/internal/repository"
)

// QueueEmail is the queue all notification emails go through.
const QueueEmail = "email"

// Job type constants for email jobs
const (
	JobTypeOrderPlaced        = "email:" + string(domain.EventOrderPlaced)
	JobTypePaymentConfirmed   = "email:" + string(domain.EventPaymentConfirmed)
	JobTypePaymentFailed      = "email:" + string(domain.EventPaymentFailed)
	JobTypeOrderStatusUpdated = "email:" + string(domain.EventOrderStatusUpdated)
	JobTypeOrderShipped       = "email:" + string(domain.EventOrderShipped)
	JobTypeOrderCancelled     = "email:" + string(domain.EventOrderCancelled)
	JobTypeOrderRefunded      = "email:" + string(domain.EventOrderRefunded)
)

// EmailJobType returns the job type for an order event.
func EmailJobType(event domain.EventType) string {
	return "email:" + string(event)
}

// OrderNotificationPayload is the JSON payload of every email job.
type OrderNotificationPayload struct {
	domain.OrderEvent
	CustomerName string `json:"customer_name,omitempty"`
}

// EnqueueOrderNotification enqueues the email job for an order event.
func EnqueueOrderNotification(ctx context.Context, q repository.Querier, payload OrderNotificationPayload) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	metadata, err := json.Marshal(map[string]string{"order_number": payload.OrderNumber})
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	_, err = q.EnqueueJob(ctx, repository.EnqueueJobParams{
		JobType:        EmailJobType(payload.Type),
		Queue:          QueueEmail,
		Payload:        payloadJSON,
		Priority:       emailPriority(payload.Type),
		MaxRetries:     3,
		ScheduledAt:    time.Now(),
		TimeoutSeconds: 30,
		Metadata:       metadata,
	})

	return err
}

// Payment outcomes go out ahead of status chatter.
func emailPriority(event domain.EventType) int32 {
	switch event {
	case domain.EventPaymentConfirmed, domain.EventPaymentFailed:
		return 50
	case domain.EventOrderPlaced:
		return 40
	default:
		return 20
	}
}

// ProcessEmailJob renders and sends the email described by job.
func ProcessEmailJob(ctx context.Context, job *repository.Job, emailService *email.Service, q repository.Querier) error {
	if !IsEmailJob(job.JobType) {
		return fmt.Errorf("unknown email job type: %s", job.JobType)
	}

	var payload OrderNotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal order notification payload: %w", err)
	}

	if payload.CustomerName == "" && q != nil {
		customer, err := q.GetCustomer(ctx, payload.CustomerID)
		switch {
		case err == nil:
			payload.CustomerName = strings.TrimSpace(customer.FirstName)
		case !repository.IsNotFound(err):
			return fmt.Errorf("failed to load customer: %w", err)
		}
	}

	return emailService.SendOrderNotification(ctx, email.OrderNotificationEmail{
		Kind:           string(payload.Type),
		Email:          payload.CustomerEmail,
		CustomerName:   payload.CustomerName,
		OrderNumber:    payload.OrderNumber,
		Status:         payload.Status,
		PaymentStatus:  payload.PaymentStatus,
		TotalCents:     payload.TotalCents,
		Currency:       payload.Currency,
		Reason:         payload.Reason,
		TrackingNumber: payload.TrackingNumber,
		Carrier:        payload.Carrier,
	})
}

// IsEmailJob checks if a job type is an email job
func IsEmailJob(jobType string) bool {
	switch jobType {
	case JobTypeOrderPlaced,
		JobTypePaymentConfirmed,
		JobTypePaymentFailed,
		JobTypeOrderStatusUpdated,
		JobTypeOrderShipped,
		JobTypeOrderCancelled,
		JobTypeOrderRefunded:
		return true
	}
	return false
}
