package api

import (
	"net/http"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// PaymentHandler settles payments when the shopper returns from a gateway.
// Verification is idempotent, so these endpoints need no authentication.
type PaymentHandler struct {
	checkout domain.CheckoutService
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(checkout domain.CheckoutService) *PaymentHandler {
	return &PaymentHandler{checkout: checkout}
}

type verifyRequest struct {
	Reference string `json:"reference" validate:"required,max=100"`
}

// Callback handles GET /api/v1/payments/callback. Paystack appends
// reference (and trxref), Flutterwave tx_ref, and Stripe payment_intent.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	reference := firstNonEmpty(q.Get("reference"), q.Get("trxref"), q.Get("tx_ref"))
	if reference == "" {
		if pi := q.Get("payment_intent"); pi != "" {
			resolved, err := h.checkout.ResolveReference(r.Context(), billing.GatewayStripe, pi)
			if err != nil {
				handler.ErrorResponse(w, r, err)
				return
			}
			reference = resolved
		}
	}
	if reference == "" {
		handler.ErrorResponse(w, r, domain.NewValidationError("", "reference", "is required"))
		return
	}

	h.verify(w, r, reference)
}

// Verify handles POST /api/v1/payments/verify
func (h *PaymentHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	h.verify(w, r, req.Reference)
}

func (h *PaymentHandler) verify(w http.ResponseWriter, r *http.Request, reference string) {
	outcome, err := h.checkout.VerifyPayment(r.Context(), reference)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, outcome)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
