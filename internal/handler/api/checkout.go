package api

import (
	"net/http"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// CheckoutHandler prices carts and turns them into orders.
type CheckoutHandler struct {
	checkout domain.CheckoutService
	// callbackURL is where gateways send the shopper after paying,
	// e.g. https://shop.example.com/api/v1/payments/callback
	callbackURL string
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout domain.CheckoutService, callbackURL string) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, callbackURL: callbackURL}
}

type previewRequest struct {
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
	PromoCode       string          `json:"promo_code,omitempty" validate:"max=50"`
}

type checkoutRequest struct {
	// Left nil, the checkout fails with a missing-address error rather than
	// one field error per address line.
	ShippingAddress *domain.Address `json:"shipping_address,omitempty"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	PromoCode       string          `json:"promo_code,omitempty" validate:"max=50"`
	PaymentMethod   string          `json:"payment_method,omitempty" validate:"max=50"`
	Gateway         string          `json:"gateway,omitempty" validate:"max=30"`
	CustomerNote    string          `json:"customer_note,omitempty" validate:"max=1000"`
}

// Preview handles POST /api/v1/checkout/preview
func (h *CheckoutHandler) Preview(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req previewRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	preview, err := h.checkout.Preview(r.Context(), actor, domain.PreviewParams{
		ShippingAddress: req.ShippingAddress,
		PromoCode:       req.PromoCode,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, preview)
}

// Checkout handles POST /api/v1/checkout. The order is created even when
// the gateway could not be reached; payment.initialized tells the client
// whether to redirect or retry the payment later.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	params := domain.CheckoutParams{
		BillingAddress: req.BillingAddress,
		PromoCode:      req.PromoCode,
		PaymentMethod:  req.PaymentMethod,
		Gateway:        req.Gateway,
		CustomerNote:   req.CustomerNote,
		CallbackURL:    h.callbackURL,
	}
	if req.ShippingAddress != nil {
		params.ShippingAddress = *req.ShippingAddress
	}

	result, err := h.checkout.ProcessCheckout(r.Context(), actor, params)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusCreated, result)
}
