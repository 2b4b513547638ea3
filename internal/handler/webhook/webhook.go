// Package webhook receives asynchronous payment notifications from the
// gateways and settles them through the checkout service.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// Event is the part of a gateway notification the pipeline acts on.
type Event struct {
	ID   string
	Type string

	// Reference is our transaction reference when the gateway echoes it.
	Reference string

	// ProviderReference is the gateway's own id, resolved to a
	// transaction reference when Reference is empty.
	ProviderReference string

	// Settles is set for events that may change a payment's status.
	Settles bool
}

// parseFunc authenticates a payload and decodes it. Errors wrapping
// billing.ErrInvalidWebhookSignature are answered with 401.
type parseFunc func(payload []byte, signature string) (Event, error)

// Handler is the shared receive loop for all gateways. Once the signature
// checks out the request is always acknowledged with 200 so the gateway
// stops retrying; processing failures are logged, counted and reported.
type Handler struct {
	gateway         string
	signatureHeader string
	parse           parseFunc
	checkout        domain.CheckoutService
}

// HandleWebhook handles POST /webhooks/{gateway}
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	logger := middleware.GetLogger(ctx).With("gateway", h.gateway)

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.failed("read_error")
		handler.ErrorResponse(w, r, domain.Invalid("webhook.read", "Error reading request body"))
		return
	}

	signature := r.Header.Get(h.signatureHeader)
	if signature == "" {
		h.failed("missing_signature")
		handler.ErrorResponse(w, r, domain.Unauthorized("webhook.verify", "Missing signature"))
		return
	}

	event, err := h.parse(payload, signature)
	if errors.Is(err, billing.ErrInvalidWebhookSignature) {
		logger.Warn("webhook signature rejected", "error", err)
		h.failed("invalid_signature")
		handler.ErrorResponse(w, r, domain.Unauthorized("webhook.verify", "Invalid signature"))
		return
	}
	if err != nil {
		logger.Error("webhook payload could not be decoded", "error", err, "bytes", len(payload))
		h.failed("malformed_payload")
		acknowledge(w)
		return
	}

	logger = logger.With("event_type", event.Type, "event_id", event.ID)
	if telemetry.Business != nil {
		telemetry.Business.WebhookReceived.WithLabelValues(h.gateway, event.Type).Inc()
	}
	defer func() {
		if telemetry.Business != nil {
			telemetry.Business.WebhookLatency.WithLabelValues(h.gateway).Observe(time.Since(start).Seconds())
		}
	}()

	if !event.Settles {
		logger.Debug("webhook event ignored")
		acknowledge(w)
		return
	}

	h.settle(ctx, logger, event)
	acknowledge(w)
}

func (h *Handler) settle(ctx context.Context, logger *slog.Logger, event Event) {
	reference := event.Reference
	if reference == "" && event.ProviderReference != "" {
		resolved, err := h.checkout.ResolveReference(ctx, h.gateway, event.ProviderReference)
		if err != nil {
			logger.Warn("webhook reference could not be resolved",
				"provider_reference", event.ProviderReference, "error", err)
			h.failed("unknown_reference")
			return
		}
		reference = resolved
	}
	if reference == "" {
		logger.Warn("webhook event carries no reference")
		h.failed("missing_reference")
		return
	}

	outcome, err := h.checkout.VerifyPayment(ctx, reference)
	if err != nil {
		if domain.IsCode(err, domain.ENOTFOUND) {
			logger.Warn("webhook for unknown payment", "reference", reference)
			h.failed("unknown_reference")
			return
		}
		logger.Error("webhook verification failed", "reference", reference, "error", err)
		h.failed("verification_failed")
		telemetry.CaptureErrorFromContext(ctx, err, map[string]interface{}{
			"gateway":    h.gateway,
			"event_type": event.Type,
			"reference":  reference,
		})
		return
	}

	logger.Info("webhook settled payment",
		"reference", outcome.Reference,
		"order_number", outcome.OrderNumber,
		"payment_status", outcome.PaymentStatus,
		"already_processed", outcome.AlreadyProcessed,
	)
}

func (h *Handler) failed(reason string) {
	if telemetry.Business != nil {
		telemetry.Business.WebhookFailed.WithLabelValues(h.gateway, reason).Inc()
	}
}

func acknowledge(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received": true}`))
}
