package domain

import (
	"context"

	"github.com/dukerupert/mercato/internal/repository"
)

// PreviewParams prices the actor's cart without side effects.
type PreviewParams struct {
	ShippingAddress *Address
	PromoCode       string
}

// CheckoutPreview is the priced cart.
type CheckoutPreview struct {
	Items  []CartLine   `json:"items"`
	Totals OrderTotals  `json:"totals"`
	Promo  *PromoResult `json:"promo,omitempty"`
}

// CheckoutParams converts the actor's cart into an order.
type CheckoutParams struct {
	ShippingAddress Address
	BillingAddress  *Address
	PromoCode       string
	PaymentMethod   string
	Gateway         string
	CustomerNote    string
	CallbackURL     string
}

// PaymentInit is what a shopper needs to complete payment.
type PaymentInit struct {
	Reference        string `json:"reference"`
	Gateway          string `json:"gateway"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Initialized      bool   `json:"initialized"`
}

// CheckoutResult is a placed order. When Payment.Initialized is false the
// gateway could not be reached; the order stays pending and can be retried.
type CheckoutResult struct {
	Order   repository.Order       `json:"order"`
	Items   []repository.OrderItem `json:"items"`
	Payment PaymentInit            `json:"payment"`
}

// PaymentOutcome is the result of verifying a payment reference.
type PaymentOutcome struct {
	Reference     string `json:"reference"`
	OrderNumber   string `json:"order_number"`
	PaymentStatus string `json:"payment_status"`
	OrderStatus   string `json:"order_status"`
	Successful    bool   `json:"successful"`
	// AlreadyProcessed is set when the payment had reached a final state
	// before this call and nothing was changed.
	AlreadyProcessed bool `json:"already_processed"`
}

// CheckoutService is the orchestrator that takes a cart through order
// creation, payment and reversal.
type CheckoutService interface {
	Preview(ctx context.Context, actor Actor, params PreviewParams) (*CheckoutPreview, error)

	// ProcessCheckout reserves stock and writes the order, items, payment and
	// cart retirement in one transaction, then initializes payment.
	ProcessCheckout(ctx context.Context, actor Actor, params CheckoutParams) (*CheckoutResult, error)

	// VerifyPayment is idempotent per transaction reference.
	VerifyPayment(ctx context.Context, reference string) (*PaymentOutcome, error)

	// ResolveReference maps a provider-assigned reference to our
	// transaction reference.
	ResolveReference(ctx context.Context, gateway, providerReference string) (string, error)

	RetryPayment(ctx context.Context, actor Actor, orderNumber string) (*PaymentInit, error)

	// CancelOrder releases the order's stock and voids its payment. A
	// payment that already succeeded is refunded in full.
	CancelOrder(ctx context.Context, actor Actor, orderNumber, reason string) (*OrderDetail, error)

	ProcessRefund(ctx context.Context, actor Actor, orderNumber string, params RefundParams) (*OrderDetail, error)
}
