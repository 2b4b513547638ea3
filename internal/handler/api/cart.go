package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// CartHandler serves the caller's active cart.
type CartHandler struct {
	carts domain.CartService
}

// NewCartHandler creates a new cart handler
func NewCartHandler(carts domain.CartService) *CartHandler {
	return &CartHandler{carts: carts}
}

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	VariantID string `json:"variant_id,omitempty" validate:"omitempty,uuid"`
	Quantity  int32  `json:"quantity" validate:"gte=1,lte=1000"`
}

type updateItemRequest struct {
	Quantity int32 `json:"quantity" validate:"gte=0,lte=1000"`
}

// Get handles GET /api/v1/cart
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(r.Context(), actor)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, view)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req addItemRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	unit := domain.UnitRef{ProductID: uuid.MustParse(req.ProductID)}
	if req.VariantID != "" {
		unit.VariantID = pgtype.UUID{Bytes: uuid.MustParse(req.VariantID), Valid: true}
	}

	view, err := h.carts.AddItem(r.Context(), actor, domain.AddCartItemParams{Unit: unit, Quantity: req.Quantity})
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, view)
}

// UpdateItem handles PATCH /api/v1/cart/items/{id}. A zero quantity
// removes the line.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	var req updateItemRequest
	if err := handler.Decode(r, &req); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.carts.UpdateItem(r.Context(), actor, itemID, req.Quantity)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, view)
}

// RemoveItem handles DELETE /api/v1/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	itemID, err := pathUUID(r, "id")
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}

	view, err := h.carts.RemoveItem(r.Context(), actor, itemID)
	if err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	handler.Data(w, r, http.StatusOK, view)
}

// Clear handles DELETE /api/v1/cart
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	if err := h.carts.Clear(r.Context(), actor); err != nil {
		handler.ErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
