// Package billing adapts external payment gateways to one contract the
// checkout orchestrator can drive without knowing which provider it talks to.
package billing

import (
	"context"
	"encoding/json"
)

// Gateway defines the capability every payment provider must implement.
type Gateway interface {
	// Name is the value stored in payments.gateway.
	Name() string

	// Initialize starts a payment and returns where to send the shopper.
	Initialize(ctx context.Context, params InitializeParams) (*Authorization, error)

	// Verify asks the provider for the current outcome of a payment.
	// A provider-reported decline is a Verification with StatusFailed, not
	// an error; errors mean the outcome is unknown and may be retried.
	Verify(ctx context.Context, params VerifyParams) (*Verification, error)
}

// Refunder is implemented by gateways that can refund through their API.
type Refunder interface {
	Refund(ctx context.Context, params RefundParams) (*Refund, error)
}

// WebhookVerifier checks that a webhook body was sent by the provider.
type WebhookVerifier interface {
	VerifyWebhookSignature(payload []byte, signature string) error
}

// InitializeParams contains parameters for starting a payment.
type InitializeParams struct {
	// Reference is our transaction reference and idempotency key.
	Reference string

	// AmountCents is the amount in the smallest currency unit (kobo for NGN).
	AmountCents int64

	// Currency code (ISO 4217), e.g. "NGN"
	Currency string

	CustomerEmail string
	CustomerName  string
	CustomerPhone string

	// CallbackURL is where the provider redirects the shopper afterwards.
	CallbackURL string

	Metadata map[string]string
}

// Authorization is the client-facing result of Initialize.
type Authorization struct {
	// AuthorizationURL is the hosted payment page. Empty for providers that
	// confirm on the client with ClientSecret instead.
	AuthorizationURL string

	// ClientSecret is set by providers that confirm payment client-side.
	ClientSecret string

	// ProviderReference is the provider's id for this payment, when it
	// differs from our reference.
	ProviderReference string
}

// VerifyParams identifies the payment to verify.
type VerifyParams struct {
	Reference         string
	ProviderReference string
}

// VerificationStatus is the provider-reported state of a payment.
type VerificationStatus string

const (
	StatusSuccess VerificationStatus = "success"
	StatusFailed  VerificationStatus = "failed"
	StatusPending VerificationStatus = "pending"
)

// Verification is the outcome reported by the provider.
type Verification struct {
	Status VerificationStatus

	// GatewayReference is the provider's transaction id.
	GatewayReference string

	AmountCents int64
	Currency    string

	Channel  string
	CardType string
	Last4    string
	Bank     string

	// Message is the provider's human-readable gateway response.
	Message string

	// Raw is the provider response body, kept for audit.
	Raw json.RawMessage
}

// Succeeded reports whether the provider confirmed payment.
func (v *Verification) Succeeded() bool {
	return v != nil && v.Status == StatusSuccess
}

// RefundParams contains parameters for creating a refund.
type RefundParams struct {
	Reference         string
	ProviderReference string
	GatewayReference  string
	AmountCents       int64
	Currency          string
	Reason            string
}

// Refund represents a payment refund.
type Refund struct {
	ID          string
	Status      string
	AmountCents int64
}
