package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
)

// StripeSignatureHeader is the timestamped signature Stripe sends.
const StripeSignatureHeader = "Stripe-Signature"

// EventConstructor verifies and decodes a Stripe event.
// *billing.StripeGateway implements it.
type EventConstructor interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

// NewStripeHandler creates the handler for POST /webhooks/stripe.
//
// Stripe CLI testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger payment_intent.succeeded
func NewStripeHandler(events EventConstructor, checkout domain.CheckoutService) *Handler {
	return &Handler{
		gateway:         billing.GatewayStripe,
		signatureHeader: StripeSignatureHeader,
		checkout:        checkout,
		parse: func(payload []byte, signature string) (Event, error) {
			event, err := events.ConstructEvent(payload, signature)
			if err != nil {
				return Event{}, err
			}
			return stripeEvent(event)
		},
	}
}

func stripeEvent(event stripe.Event) (Event, error) {
	out := Event{ID: event.ID, Type: string(event.Type)}

	switch event.Type {
	case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return Event{}, fmt.Errorf("decode payment intent: %w", err)
		}
		out.Reference = pi.Metadata["transaction_reference"]
		out.ProviderReference = pi.ID
		out.Settles = true
	}
	return out, nil
}
