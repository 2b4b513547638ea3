package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cartColumns = `id, customer_id, status, last_activity_at, created_at, updated_at`

func scanCart(row interface{ Scan(...any) error }) (Cart, error) {
	var i Cart
	err := row.Scan(
		&i.ID,
		&i.CustomerID,
		&i.Status,
		&i.LastActivityAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getActiveCartByCustomer = `-- name: GetActiveCartByCustomer :one
SELECT ` + cartColumns + `
FROM carts
WHERE customer_id = $1 AND status = 'active'
`

func (q *Queries) GetActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCartByCustomer, customerID))
}

const getActiveCartByCustomerForUpdate = `-- name: GetActiveCartByCustomerForUpdate :one
SELECT ` + cartColumns + `
FROM carts
WHERE customer_id = $1 AND status = 'active'
FOR UPDATE
`

func (q *Queries) GetActiveCartByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, getActiveCartByCustomerForUpdate, customerID))
}

const createCart = `-- name: CreateCart :one
INSERT INTO carts (customer_id)
VALUES ($1)
ON CONFLICT (customer_id) WHERE status = 'active'
DO UPDATE SET updated_at = now()
RETURNING ` + cartColumns

// CreateCart returns the existing active cart when one raced in first.
func (q *Queries) CreateCart(ctx context.Context, customerID uuid.UUID) (Cart, error) {
	return scanCart(q.db.QueryRow(ctx, createCart, customerID))
}

const touchCart = `-- name: TouchCart :exec
UPDATE carts SET last_activity_at = now(), updated_at = now()
WHERE id = $1
`

func (q *Queries) TouchCart(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, touchCart, id)
	return err
}

const updateCartStatus = `-- name: UpdateCartStatus :exec
UPDATE carts SET status = $2, updated_at = now()
WHERE id = $1
`

type UpdateCartStatusParams struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

func (q *Queries) UpdateCartStatus(ctx context.Context, arg UpdateCartStatusParams) error {
	_, err := q.db.Exec(ctx, updateCartStatus, arg.ID, arg.Status)
	return err
}

const markAbandonedCarts = `-- name: MarkAbandonedCarts :execrows
UPDATE carts c
SET status = 'abandoned', updated_at = now()
WHERE c.status = 'active'
  AND c.last_activity_at < $1
  AND EXISTS (SELECT 1 FROM cart_items ci WHERE ci.cart_id = c.id)
`

func (q *Queries) MarkAbandonedCarts(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := q.db.Exec(ctx, markAbandonedCarts, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const cartItemColumns = `id, cart_id, product_id, variant_id, quantity, unit_price_cents, created_at, updated_at`

func scanCartItem(row interface{ Scan(...any) error }) (CartItem, error) {
	var i CartItem
	err := row.Scan(
		&i.ID,
		&i.CartID,
		&i.ProductID,
		&i.VariantID,
		&i.Quantity,
		&i.UnitPriceCents,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCartItemByUnit = `-- name: GetCartItemByUnit :one
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE cart_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
`

type GetCartItemByUnitParams struct {
	CartID    uuid.UUID   `json:"cart_id"`
	ProductID uuid.UUID   `json:"product_id"`
	VariantID pgtype.UUID `json:"variant_id"`
}

func (q *Queries) GetCartItemByUnit(ctx context.Context, arg GetCartItemByUnitParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItemByUnit, arg.CartID, arg.ProductID, arg.VariantID))
}

const getCartItem = `-- name: GetCartItem :one
SELECT ` + cartItemColumns + `
FROM cart_items
WHERE id = $1 AND cart_id = $2
`

type GetCartItemParams struct {
	ID     uuid.UUID `json:"id"`
	CartID uuid.UUID `json:"cart_id"`
}

func (q *Queries) GetCartItem(ctx context.Context, arg GetCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, getCartItem, arg.ID, arg.CartID))
}

const createCartItem = `-- name: CreateCartItem :one
INSERT INTO cart_items (cart_id, product_id, variant_id, quantity, unit_price_cents)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + cartItemColumns

type CreateCartItemParams struct {
	CartID         uuid.UUID   `json:"cart_id"`
	ProductID      uuid.UUID   `json:"product_id"`
	VariantID      pgtype.UUID `json:"variant_id"`
	Quantity       int32       `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
}

func (q *Queries) CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, createCartItem,
		arg.CartID,
		arg.ProductID,
		arg.VariantID,
		arg.Quantity,
		arg.UnitPriceCents,
	))
}

const updateCartItem = `-- name: UpdateCartItem :one
UPDATE cart_items
SET quantity = $2, unit_price_cents = $3, updated_at = now()
WHERE id = $1
RETURNING ` + cartItemColumns

type UpdateCartItemParams struct {
	ID             uuid.UUID `json:"id"`
	Quantity       int32     `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

func (q *Queries) UpdateCartItem(ctx context.Context, arg UpdateCartItemParams) (CartItem, error) {
	return scanCartItem(q.db.QueryRow(ctx, updateCartItem, arg.ID, arg.Quantity, arg.UnitPriceCents))
}

const deleteCartItem = `-- name: DeleteCartItem :execrows
DELETE FROM cart_items WHERE id = $1 AND cart_id = $2
`

type DeleteCartItemParams struct {
	ID     uuid.UUID `json:"id"`
	CartID uuid.UUID `json:"cart_id"`
}

func (q *Queries) DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteCartItem, arg.ID, arg.CartID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const clearCartItems = `-- name: ClearCartItems :exec
DELETE FROM cart_items WHERE cart_id = $1
`

func (q *Queries) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearCartItems, cartID)
	return err
}

const listCartItems = `-- name: ListCartItems :many
SELECT ci.id, ci.cart_id, ci.product_id, ci.variant_id, ci.quantity, ci.unit_price_cents,
       p.category_id,
       COALESCE(v.sku, p.sku),
       p.name,
       v.name,
       COALESCE(v.attributes, '{}'::jsonb),
       COALESCE(v.price_cents, p.price_cents),
       COALESCE(v.track_inventory, p.track_inventory),
       COALESCE(v.stock_quantity, p.stock_quantity)
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
LEFT JOIN product_variants v ON v.id = ci.variant_id
WHERE ci.cart_id = $1
ORDER BY ci.created_at, ci.id
`

func (q *Queries) ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItemDetail, error) {
	rows, err := q.db.Query(ctx, listCartItems, cartID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CartItemDetail
	for rows.Next() {
		var i CartItemDetail
		if err := rows.Scan(
			&i.ID,
			&i.CartID,
			&i.ProductID,
			&i.VariantID,
			&i.Quantity,
			&i.UnitPriceCents,
			&i.CategoryID,
			&i.Sku,
			&i.ProductName,
			&i.VariantName,
			&i.Attributes,
			&i.CurrentPriceCents,
			&i.TrackInventory,
			&i.StockQuantity,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
