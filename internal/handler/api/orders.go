package api

import (
	"net/http"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// OrderHandler serves the caller's orders. Admins see every order.
type OrderHandler struct {
	orders   domain.OrderService
	checkout domain.CheckoutService
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders domain.OrderService, checkout domain.CheckoutService) *OrderHandler {
	return &OrderHandler{orders: orders, checkout: checkout}
}

type cancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// List handles GET /api/v1/orders?status=&limit=&offset=
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	limit, err := queryInt32(r, "limit")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	offset, err := queryInt32(r, "offset")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), actor, domain.ListOrdersParams{
		Status: r.URL.Query().Get("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, orders)
}

// Get handles GET /api/v1/orders/{number}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	detail, err := h.orders.GetOrder(r.Context(), actor, r.PathValue("number"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, detail)
}

// Track handles GET /api/v1/orders/{number}/track
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	tracking, err := h.orders.TrackOrder(r.Context(), actor, r.PathValue("number"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, tracking)
}

// Cancel handles POST /api/v1/orders/{number}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.checkout.CancelOrder(r.Context(), actor, r.PathValue("number"), req.Reason)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, detail)
}

// RetryPayment handles POST /api/v1/orders/{number}/retry-payment
func (h *OrderHandler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	payment, err := h.checkout.RetryPayment(r.Context(), actor, r.PathValue("number"))
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, payment)
}
