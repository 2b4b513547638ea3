package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const getSellableUnit = `-- name: GetSellableUnit :one
SELECT p.id, v.id, p.category_id,
       COALESCE(v.sku, p.sku), p.name, v.name,
       COALESCE(v.attributes, '{}'::jsonb),
       COALESCE(v.price_cents, p.price_cents),
       COALESCE(v.track_inventory, p.track_inventory),
       COALESCE(v.stock_quantity, p.stock_quantity),
       COALESCE(v.stock_status, p.stock_status),
       p.is_active AND COALESCE(v.is_active, TRUE)
FROM products p
LEFT JOIN product_variants v ON v.id = $2 AND v.product_id = p.id
WHERE p.id = $1
  AND ($2::uuid IS NULL OR v.id IS NOT NULL)
`

type GetSellableUnitParams struct {
	ProductID uuid.UUID   `json:"product_id"`
	VariantID pgtype.UUID `json:"variant_id"`
}

func (q *Queries) GetSellableUnit(ctx context.Context, arg GetSellableUnitParams) (SellableUnit, error) {
	row := q.db.QueryRow(ctx, getSellableUnit, arg.ProductID, arg.VariantID)
	var i SellableUnit
	err := row.Scan(
		&i.ProductID,
		&i.VariantID,
		&i.CategoryID,
		&i.Sku,
		&i.Name,
		&i.VariantName,
		&i.Attributes,
		&i.PriceCents,
		&i.TrackInventory,
		&i.StockQuantity,
		&i.StockStatus,
		&i.IsActive,
	)
	return i, err
}

// Stock moves are conditional single-statement updates. The WHERE clause on
// reserve is the concurrency guard: zero affected rows means the unit could
// not cover the quantity at the moment the row lock was taken.

const reserveProductStock = `-- name: ReserveProductStock :execrows
UPDATE products
SET stock_quantity = CASE WHEN track_inventory THEN stock_quantity - $2 ELSE stock_quantity END,
    stock_status = CASE
        WHEN NOT track_inventory THEN stock_status
        WHEN stock_quantity - $2 > 0 THEN 'in_stock'
        ELSE 'out_of_stock'
    END,
    updated_at = now()
WHERE id = $1
  AND (NOT track_inventory OR stock_quantity >= $2)
`

type StockMoveParams struct {
	ID       uuid.UUID `json:"id"`
	Quantity int32     `json:"quantity"`
}

func (q *Queries) ReserveProductStock(ctx context.Context, arg StockMoveParams) (int64, error) {
	result, err := q.db.Exec(ctx, reserveProductStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const reserveVariantStock = `-- name: ReserveVariantStock :execrows
UPDATE product_variants
SET stock_quantity = CASE WHEN track_inventory THEN stock_quantity - $2 ELSE stock_quantity END,
    stock_status = CASE
        WHEN NOT track_inventory THEN stock_status
        WHEN stock_quantity - $2 > 0 THEN 'in_stock'
        ELSE 'out_of_stock'
    END,
    updated_at = now()
WHERE id = $1
  AND (NOT track_inventory OR stock_quantity >= $2)
`

func (q *Queries) ReserveVariantStock(ctx context.Context, arg StockMoveParams) (int64, error) {
	result, err := q.db.Exec(ctx, reserveVariantStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const releaseProductStock = `-- name: ReleaseProductStock :execrows
UPDATE products
SET stock_quantity = CASE WHEN track_inventory THEN stock_quantity + $2 ELSE stock_quantity END,
    stock_status = CASE
        WHEN track_inventory AND stock_status = 'out_of_stock' AND stock_quantity + $2 > 0 THEN 'in_stock'
        ELSE stock_status
    END,
    updated_at = now()
WHERE id = $1
`

func (q *Queries) ReleaseProductStock(ctx context.Context, arg StockMoveParams) (int64, error) {
	result, err := q.db.Exec(ctx, releaseProductStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const releaseVariantStock = `-- name: ReleaseVariantStock :execrows
UPDATE product_variants
SET stock_quantity = CASE WHEN track_inventory THEN stock_quantity + $2 ELSE stock_quantity END,
    stock_status = CASE
        WHEN track_inventory AND stock_status = 'out_of_stock' AND stock_quantity + $2 > 0 THEN 'in_stock'
        ELSE stock_status
    END,
    updated_at = now()
WHERE id = $1
`

func (q *Queries) ReleaseVariantStock(ctx context.Context, arg StockMoveParams) (int64, error) {
	result, err := q.db.Exec(ctx, releaseVariantStock, arg.ID, arg.Quantity)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const getCustomer = `-- name: GetCustomer :one
SELECT id, email, first_name, last_name, phone, created_at, updated_at
FROM customers
WHERE id = $1
`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, getCustomer, id)
	var i Customer
	err := row.Scan(
		&i.ID,
		&i.Email,
		&i.FirstName,
		&i.LastName,
		&i.Phone,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}
