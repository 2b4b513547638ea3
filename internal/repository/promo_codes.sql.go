package repository

import (
	"context"

	"github.com/google/uuid"
)

const promoCodeColumns = `id, code, description, discount_type, discount_value,
       min_order_amount_cents, max_discount_amount_cents,
       usage_limit, usage_limit_per_customer, usage_count, is_active,
       starts_at, expires_at, applicable_products, applicable_categories,
       created_at, updated_at`

func scanPromoCode(row interface{ Scan(...any) error }) (PromoCode, error) {
	var i PromoCode
	err := row.Scan(
		&i.ID,
		&i.Code,
		&i.Description,
		&i.DiscountType,
		&i.DiscountValue,
		&i.MinOrderAmountCents,
		&i.MaxDiscountAmountCents,
		&i.UsageLimit,
		&i.UsageLimitPerCustomer,
		&i.UsageCount,
		&i.IsActive,
		&i.StartsAt,
		&i.ExpiresAt,
		&i.ApplicableProducts,
		&i.ApplicableCategories,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getPromoCodeByCode = `-- name: GetPromoCodeByCode :one
SELECT ` + promoCodeColumns + `
FROM promo_codes
WHERE code = upper($1)
`

func (q *Queries) GetPromoCodeByCode(ctx context.Context, code string) (PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, getPromoCodeByCode, code))
}

const getPromoCodeByID = `-- name: GetPromoCodeByID :one
SELECT ` + promoCodeColumns + `
FROM promo_codes
WHERE id = $1
`

func (q *Queries) GetPromoCodeByID(ctx context.Context, id uuid.UUID) (PromoCode, error) {
	return scanPromoCode(q.db.QueryRow(ctx, getPromoCodeByID, id))
}

const incrementPromoUsage = `-- name: IncrementPromoUsage :execrows
UPDATE promo_codes
SET usage_count = usage_count + 1, updated_at = now()
WHERE id = $1
  AND (usage_limit IS NULL OR usage_count < usage_limit)
`

// IncrementPromoUsage returns 0 when the code is already at its global limit.
func (q *Queries) IncrementPromoUsage(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, incrementPromoUsage, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const countCustomerPromoUsage = `-- name: CountCustomerPromoUsage :one
SELECT count(*)
FROM orders
WHERE promo_code_id = $1
  AND customer_id = $2
  AND promo_committed_at IS NOT NULL
`

type CountCustomerPromoUsageParams struct {
	PromoCodeID uuid.UUID `json:"promo_code_id"`
	CustomerID  uuid.UUID `json:"customer_id"`
}

func (q *Queries) CountCustomerPromoUsage(ctx context.Context, arg CountCustomerPromoUsageParams) (int64, error) {
	row := q.db.QueryRow(ctx, countCustomerPromoUsage, arg.PromoCodeID, arg.CustomerID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
