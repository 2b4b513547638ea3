package webhook

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
)

// PaystackSignatureHeader carries the HMAC-SHA512 of the raw body.
const PaystackSignatureHeader = "x-paystack-signature"

type paystackEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID        int64  `json:"id"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// NewPaystackHandler creates the handler for POST /webhooks/paystack.
// Charge events settle the payment named by data.reference.
func NewPaystackHandler(verifier billing.WebhookVerifier, checkout domain.CheckoutService) *Handler {
	return &Handler{
		gateway:         billing.GatewayPaystack,
		signatureHeader: PaystackSignatureHeader,
		checkout:        checkout,
		parse: func(payload []byte, signature string) (Event, error) {
			if err := verifier.VerifyWebhookSignature(payload, signature); err != nil {
				return Event{}, err
			}
			var evt paystackEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return Event{}, fmt.Errorf("decode paystack event: %w", err)
			}
			return Event{
				ID:        fmt.Sprint(evt.Data.ID),
				Type:      evt.Event,
				Reference: evt.Data.Reference,
				Settles:   strings.HasPrefix(evt.Event, "charge."),
			}, nil
		},
	}
}
