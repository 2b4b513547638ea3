package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// CartStatus is the lifecycle of a cart.
type CartStatus string

const (
	CartActive    CartStatus = "active"
	CartAbandoned CartStatus = "abandoned"
	CartCompleted CartStatus = "completed"
)

// UnitRef identifies a sellable unit: a product, or one of its variants when
// VariantID is valid.
type UnitRef struct {
	ProductID uuid.UUID
	VariantID pgtype.UUID
}

// IsVariant reports whether the unit is a product variant.
func (u UnitRef) IsVariant() bool {
	return u.VariantID.Valid
}

func (u UnitRef) String() string {
	if u.VariantID.Valid {
		return u.ProductID.String() + "/" + uuid.UUID(u.VariantID.Bytes).String()
	}
	return u.ProductID.String()
}

// CartLine is one cart item with its current catalog state.
type CartLine struct {
	ID             uuid.UUID   `json:"id"`
	ProductID      uuid.UUID   `json:"product_id"`
	VariantID      pgtype.UUID `json:"variant_id"`
	CategoryID     pgtype.UUID `json:"category_id"`
	Sku            string      `json:"sku"`
	Name           string      `json:"name"`
	VariantName    string      `json:"variant_name,omitempty"`
	Quantity       int32       `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price"`
	LineTotalCents int64       `json:"line_total"`
	InStock        bool        `json:"in_stock"`
}

// Unit returns the sellable unit of the line.
func (l CartLine) Unit() UnitRef {
	return UnitRef{ProductID: l.ProductID, VariantID: l.VariantID}
}

// CartView is a cart with its lines and subtotal.
type CartView struct {
	ID             uuid.UUID  `json:"id"`
	Status         string     `json:"status"`
	Items          []CartLine `json:"items"`
	ItemCount      int32      `json:"item_count"`
	SubtotalCents  int64      `json:"subtotal"`
	Currency       string     `json:"currency"`
	LastActivityAt time.Time  `json:"last_activity_at"`
}

// AddCartItemParams adds a unit to the cart.
type AddCartItemParams struct {
	Unit     UnitRef
	Quantity int32
}

// CartService owns the mutable pre-purchase basket. Every operation acts on
// the actor's single active cart, which is created on first access.
type CartService interface {
	GetCart(ctx context.Context, actor Actor) (*CartView, error)

	// AddItem merges quantity into an existing line for the same unit and
	// refreshes the line's price snapshot.
	AddItem(ctx context.Context, actor Actor, params AddCartItemParams) (*CartView, error)

	// UpdateItem sets a line's quantity; zero removes the line.
	UpdateItem(ctx context.Context, actor Actor, itemID uuid.UUID, quantity int32) (*CartView, error)

	RemoveItem(ctx context.Context, actor Actor, itemID uuid.UUID) (*CartView, error)

	Clear(ctx context.Context, actor Actor) error

	// MarkAbandoned flags active carts idle since before cutoff.
	MarkAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}
