package api

import (
	"net/http"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// AdminOrderHandler serves the admin order path. Routes are mounted
// behind middleware.RequireAdmin; the service checks the role again.
type AdminOrderHandler struct {
	admin domain.AdminOrderService
}

// NewAdminOrderHandler creates a new admin order handler
func NewAdminOrderHandler(admin domain.AdminOrderService) *AdminOrderHandler {
	return &AdminOrderHandler{admin: admin}
}

type updateStatusRequest struct {
	Status    string `json:"status" validate:"required,oneof=pending confirmed processing shipped delivered cancelled refunded"`
	AdminNote string `json:"admin_note,omitempty" validate:"max=1000"`
	Reason    string `json:"reason,omitempty" validate:"max=500"`
}

type updateShippingRequest struct {
	TrackingNumber string `json:"tracking_number" validate:"required,max=100"`
	Carrier        string `json:"carrier" validate:"required,max=100"`
}

type refundRequest struct {
	// Amount in minor units; zero refunds the full payment.
	Amount int64  `json:"amount" validate:"gte=0"`
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// UpdateStatus handles PATCH /api/v1/admin/orders/{number}/status
func (h *AdminOrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.admin.UpdateStatus(r.Context(), actor, r.PathValue("number"), domain.UpdateStatusParams{
		Status:    domain.OrderStatus(req.Status),
		AdminNote: req.AdminNote,
		Reason:    req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, detail)
}

// UpdateShipping handles PATCH /api/v1/admin/orders/{number}/shipping
func (h *AdminOrderHandler) UpdateShipping(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req updateShippingRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.admin.UpdateShipping(r.Context(), actor, r.PathValue("number"), domain.UpdateShippingParams{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, detail)
}

// Refund handles POST /api/v1/admin/orders/{number}/refund
func (h *AdminOrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req refundRequest
	if err := decodeOptional(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	detail, err := h.admin.Refund(r.Context(), actor, r.PathValue("number"), domain.RefundParams{
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, detail)
}
