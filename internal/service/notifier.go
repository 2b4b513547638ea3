package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/events"
	"github.com/dukerupert/mercato/internal/jobs"
	"github.com/dukerupert/mercato/internal/repository"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// Notifier fans an order event out to the email job queue and the event
// bus. Failures are logged and dropped.
type Notifier struct {
	queries   repository.Querier
	publisher events.Publisher
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. A nil publisher only enqueues email jobs.
func NewNotifier(queries repository.Querier, publisher events.Publisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{queries: queries, publisher: publisher, logger: logger}
}

var _ domain.Notifier = (*Notifier)(nil)

func (n *Notifier) Notify(ctx context.Context, event domain.OrderEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	// The caller's request may already be finishing.
	ctx = context.WithoutCancel(ctx)

	if n.queries != nil {
		err := jobs.EnqueueOrderNotification(ctx, n.queries, jobs.OrderNotificationPayload{OrderEvent: event})
		n.record(ctx, "jobs", event, err)
	}

	if n.publisher != nil {
		err := n.publisher.Publish(ctx, event)
		n.record(ctx, "nats", event, err)
	}
}

func (n *Notifier) record(ctx context.Context, sink string, event domain.OrderEvent, err error) {
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to deliver order event",
			"sink", sink,
			"event", event.Type,
			"order_number", event.OrderNumber,
			"error", err,
		)
		if telemetry.Business != nil {
			telemetry.Business.EventsDropped.WithLabelValues(sink, string(event.Type)).Inc()
		}
		return
	}
	if telemetry.Business != nil {
		telemetry.Business.EventsPublished.WithLabelValues(sink, string(event.Type)).Inc()
	}
}

// newOrderEvent builds the event for the current state of order.
func newOrderEvent(eventType domain.EventType, order repository.Order) domain.OrderEvent {
	event := domain.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		CustomerEmail: order.CustomerEmail,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		TotalCents:    order.TotalCents,
		Currency:      order.Currency,
		OccurredAt:    time.Now(),
	}
	if order.TrackingNumber.Valid {
		event.TrackingNumber = order.TrackingNumber.String
	}
	if order.Carrier.Valid {
		event.Carrier = order.Carrier.String
	}
	if order.CancellationReason.Valid {
		event.Reason = order.CancellationReason.String
	}
	return event
}

// nopNotifier drops every event.
type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.OrderEvent) {}
