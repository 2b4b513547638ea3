package webhook

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
)

// FlutterwaveSignatureHeader carries the secret hash configured on the
// Flutterwave dashboard.
const FlutterwaveSignatureHeader = "verif-hash"

type flutterwaveEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID     int64  `json:"id"`
		TxRef  string `json:"tx_ref"`
		Status string `json:"status"`
	} `json:"data"`
}

// NewFlutterwaveHandler creates the handler for POST /webhooks/flutterwave.
func NewFlutterwaveHandler(verifier billing.WebhookVerifier, checkout domain.CheckoutService) *Handler {
	return &Handler{
		gateway:         billing.GatewayFlutterwave,
		signatureHeader: FlutterwaveSignatureHeader,
		checkout:        checkout,
		parse: func(payload []byte, signature string) (Event, error) {
			if err := verifier.VerifyWebhookSignature(payload, signature); err != nil {
				return Event{}, err
			}
			var evt flutterwaveEvent
			if err := json.Unmarshal(payload, &evt); err != nil {
				return Event{}, fmt.Errorf("decode flutterwave event: %w", err)
			}
			return Event{
				ID:        fmt.Sprint(evt.Data.ID),
				Type:      evt.Event,
				Reference: evt.Data.TxRef,
				Settles:   evt.Event == "charge.completed",
			}, nil
		},
	}
}
