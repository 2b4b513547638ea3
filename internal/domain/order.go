package domain

import (
	"context"
	"time"

	"github.com/dukerupert/mercato/internal/repository"
)

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderConfirmed  OrderStatus = "confirmed"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
	OrderRefunded   OrderStatus = "refunded"
)

// PaymentStatus is shared by payments and the order's payment_status column.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentSuccessful PaymentStatus = "successful"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
)

// Allowed order status transitions. Terminal states have no entry.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderProcessing, OrderCancelled},
	OrderConfirmed:  {OrderProcessing, OrderShipped, OrderCancelled, OrderRefunded},
	OrderProcessing: {OrderShipped, OrderCancelled, OrderRefunded},
	OrderShipped:    {OrderDelivered, OrderRefunded},
	OrderDelivered:  {OrderRefunded},
}

// ParseOrderStatus validates a status name.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch status := OrderStatus(s); status {
	case OrderPending, OrderConfirmed, OrderProcessing, OrderShipped,
		OrderDelivered, OrderCancelled, OrderRefunded:
		return status, nil
	}
	return "", Errorf(EINVALID, "order.parse_status", "unknown order status %q", s)
}

// CanTransitionTo reports whether the status may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further status change is possible.
// Delivered orders can still be refunded.
func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

// CustomerCancellable reports whether the owner may cancel an order in
// this status.
func (s OrderStatus) CustomerCancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// StockHeld reports whether an order in this state still holds its
// inventory reservation. A reservation is released exactly once, when the
// order is cancelled or refunded or its payment fails.
func StockHeld(status OrderStatus, payment PaymentStatus) bool {
	if status == OrderCancelled || status == OrderRefunded {
		return false
	}
	return payment != PaymentFailed
}

// OrderHoldsStock is StockHeld for a stored order row.
func OrderHoldsStock(o repository.Order) bool {
	return StockHeld(OrderStatus(o.Status), PaymentStatus(o.PaymentStatus))
}

// OrderDetail aggregates an order with its items and payment.
type OrderDetail struct {
	Order           repository.Order       `json:"order"`
	Items           []repository.OrderItem `json:"items"`
	Payment         *repository.Payment    `json:"payment,omitempty"`
	ShippingAddress Address                `json:"shipping_address"`
	BillingAddress  Address                `json:"billing_address"`
}

// TrackingStep is one reached milestone in an order's timeline.
type TrackingStep struct {
	Status    string    `json:"status"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderTracking is the customer-facing progress view of an order.
type OrderTracking struct {
	OrderNumber       string         `json:"order_number"`
	Status            string         `json:"status"`
	PaymentStatus     string         `json:"payment_status"`
	FulfillmentStatus string         `json:"fulfillment_status"`
	TrackingNumber    string         `json:"tracking_number,omitempty"`
	Carrier           string         `json:"carrier,omitempty"`
	Timeline          []TrackingStep `json:"timeline"`
}

// ListOrdersParams filters an order listing.
type ListOrdersParams struct {
	Status string
	Limit  int32
	Offset int32
}

// UpdateStatusParams is an admin status change.
type UpdateStatusParams struct {
	Status    OrderStatus
	AdminNote string
	Reason    string
}

// UpdateShippingParams records shipment details.
type UpdateShippingParams struct {
	TrackingNumber string
	Carrier        string
}

// RefundParams describes an admin refund. A zero Amount refunds the full
// payment. Cancel lands the order in cancelled instead of refunded.
type RefundParams struct {
	Amount    int64
	Reason    string
	AdminNote string
	Cancel    bool
}

// OrderService is the read side of the order ledger.
type OrderService interface {
	// GetOrder returns an order the actor owns, or any order for admins.
	GetOrder(ctx context.Context, actor Actor, orderNumber string) (*OrderDetail, error)

	ListOrders(ctx context.Context, actor Actor, params ListOrdersParams) ([]repository.Order, error)

	// TrackOrder returns the timeline of reached states with tracking info.
	TrackOrder(ctx context.Context, actor Actor, orderNumber string) (*OrderTracking, error)
}

// AdminOrderService drives orders through fulfillment. Cancellation and
// refund reuse the inventory release path of the checkout orchestrator.
type AdminOrderService interface {
	UpdateStatus(ctx context.Context, actor Actor, orderNumber string, params UpdateStatusParams) (*OrderDetail, error)
	UpdateShipping(ctx context.Context, actor Actor, orderNumber string, params UpdateShippingParams) (*OrderDetail, error)
	Refund(ctx context.Context, actor Actor, orderNumber string, params RefundParams) (*OrderDetail, error)
}
