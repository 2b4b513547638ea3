package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType names an order state change delivered to the notification sink.
type EventType string

const (
	EventOrderPlaced        EventType = "order_placed"
	EventPaymentConfirmed   EventType = "payment_confirmed"
	EventPaymentFailed      EventType = "payment_failed"
	EventOrderStatusUpdated EventType = "order_status_updated"
	EventOrderShipped       EventType = "order_shipped"
	EventOrderCancelled     EventType = "order_cancelled"
	EventOrderRefunded      EventType = "order_refunded"
)

// OrderEvent is the payload of every notification.
type OrderEvent struct {
	Type           EventType `json:"type"`
	OrderID        uuid.UUID `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	CustomerID     uuid.UUID `json:"customer_id"`
	CustomerEmail  string    `json:"customer_email"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	TotalCents     int64     `json:"total_cents"`
	Currency       string    `json:"currency"`
	Reason         string    `json:"reason,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Notifier delivers order events fire-and-forget. Implementations log
// their own failures; a notification can never undo a committed change.
type Notifier interface {
	Notify(ctx context.Context, event OrderEvent)
}
