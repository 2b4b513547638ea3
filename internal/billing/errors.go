package billing

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedGateway is returned when no gateway is registered under
	// a payment's gateway name.
	ErrUnsupportedGateway = errors.New("billing: unsupported gateway")

	// ErrGatewayUnavailable is returned when the provider cannot be reached
	// or answers with a server error.
	ErrGatewayUnavailable = errors.New("billing: gateway unavailable")

	// ErrInvalidAPIKey is returned when the provider rejects our credentials.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrTransactionNotFound is returned when the provider does not know the reference.
	ErrTransactionNotFound = errors.New("billing: transaction not found")

	// ErrInvalidWebhookSignature is returned when webhook signature verification fails.
	ErrInvalidWebhookSignature = errors.New("billing: invalid webhook signature")

	// ErrRefundNotSupported is returned by gateways that cannot refund via API.
	ErrRefundNotSupported = errors.New("billing: refunds not supported")
)

// ProviderError wraps an error response from a REST gateway.
type ProviderError struct {
	Gateway    string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Gateway, e.Message, e.StatusCode)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsTemporary returns true if the request may succeed when retried.
func (e *ProviderError) IsTemporary() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "card_declined")
	DeclineCode   string // Card decline reason (if applicable)
	Type          string // Stripe error type (e.g., "api_error")
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsDeclined returns true if error is due to card decline.
func (e *StripeError) IsDeclined() bool {
	return e.Code == "card_declined" || e.DeclineCode != ""
}

// IsTemporary returns true if error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == "rate_limit" || e.Type == "api_error" || e.Type == "api_connection_error"
}

// IsUnavailable reports whether err means the gateway could not give an answer.
func IsUnavailable(err error) bool {
	if errors.Is(err, ErrGatewayUnavailable) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsTemporary()
	}
	var se *StripeError
	if errors.As(err, &se) {
		return se.IsTemporary()
	}
	return false
}
