package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, customer_id, customer_email, status, payment_status,
       fulfillment_status, currency, subtotal_cents, discount_cents, shipping_cents,
       tax_cents, total_cents, promo_code_id, promo_code, promo_committed_at,
       shipping_address, billing_address, customer_note, admin_note, cancellation_reason,
       tracking_number, carrier, confirmed_at, shipped_at, delivered_at, cancelled_at,
       refunded_at, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.OrderNumber,
		&i.CustomerID,
		&i.CustomerEmail,
		&i.Status,
		&i.PaymentStatus,
		&i.FulfillmentStatus,
		&i.Currency,
		&i.SubtotalCents,
		&i.DiscountCents,
		&i.ShippingCents,
		&i.TaxCents,
		&i.TotalCents,
		&i.PromoCodeID,
		&i.PromoCode,
		&i.PromoCommittedAt,
		&i.ShippingAddress,
		&i.BillingAddress,
		&i.CustomerNote,
		&i.AdminNote,
		&i.CancellationReason,
		&i.TrackingNumber,
		&i.Carrier,
		&i.ConfirmedAt,
		&i.ShippedAt,
		&i.DeliveredAt,
		&i.CancelledAt,
		&i.RefundedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    order_number, customer_id, customer_email, currency,
    subtotal_cents, discount_cents, shipping_cents, tax_cents, total_cents,
    promo_code_id, promo_code, shipping_address, billing_address, customer_note
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	OrderNumber     string      `json:"order_number"`
	CustomerID      uuid.UUID   `json:"customer_id"`
	CustomerEmail   string      `json:"customer_email"`
	Currency        string      `json:"currency"`
	SubtotalCents   int64       `json:"subtotal_cents"`
	DiscountCents   int64       `json:"discount_cents"`
	ShippingCents   int64       `json:"shipping_cents"`
	TaxCents        int64       `json:"tax_cents"`
	TotalCents      int64       `json:"total_cents"`
	PromoCodeID     pgtype.UUID `json:"promo_code_id"`
	PromoCode       pgtype.Text `json:"promo_code"`
	ShippingAddress []byte      `json:"shipping_address"`
	BillingAddress  []byte      `json:"billing_address"`
	CustomerNote    pgtype.Text `json:"customer_note"`
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber,
		arg.CustomerID,
		arg.CustomerEmail,
		arg.Currency,
		arg.SubtotalCents,
		arg.DiscountCents,
		arg.ShippingCents,
		arg.TaxCents,
		arg.TotalCents,
		arg.PromoCodeID,
		arg.PromoCode,
		arg.ShippingAddress,
		arg.BillingAddress,
		arg.CustomerNote,
	))
}

const getOrderByID = `-- name: GetOrderByID :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
`

func (q *Queries) GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByID, id))
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1
FOR UPDATE
`

// GetOrderForUpdate row-locks the order until the surrounding transaction ends.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const getOrderByNumber = `-- name: GetOrderByNumber :one
SELECT ` + orderColumns + `
FROM orders
WHERE order_number = $1
`

func (q *Queries) GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByNumber, orderNumber))
}

const listOrders = `-- name: ListOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::uuid IS NULL OR customer_id = $1)
  AND ($2::text IS NULL OR status = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`

type ListOrdersParams struct {
	CustomerID pgtype.UUID `json:"customer_id"`
	Status     pgtype.Text `json:"status"`
	Limit      int32       `json:"limit"`
	Offset     int32       `json:"offset"`
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.CustomerID, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateOrderStatus = `-- name: UpdateOrderStatus :one
UPDATE orders
SET status = $2,
    confirmed_at = CASE WHEN $2 = 'confirmed' THEN COALESCE(confirmed_at, now()) ELSE confirmed_at END,
    shipped_at   = CASE WHEN $2 = 'shipped'   THEN COALESCE(shipped_at, now())   ELSE shipped_at END,
    delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, now()) ELSE delivered_at END,
    cancelled_at = CASE WHEN $2 = 'cancelled' THEN COALESCE(cancelled_at, now()) ELSE cancelled_at END,
    refunded_at  = CASE WHEN $2 = 'refunded'  THEN COALESCE(refunded_at, now())  ELSE refunded_at END,
    fulfillment_status = CASE WHEN $2 IN ('shipped', 'delivered') THEN 'fulfilled' ELSE fulfillment_status END,
    admin_note = COALESCE($3, admin_note),
    cancellation_reason = COALESCE($4, cancellation_reason),
    updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderStatusParams struct {
	ID                 uuid.UUID   `json:"id"`
	Status             string      `json:"status"`
	AdminNote          pgtype.Text `json:"admin_note"`
	CancellationReason pgtype.Text `json:"cancellation_reason"`
}

// UpdateOrderStatus stamps the timestamp belonging to the new status once;
// repeating a status never moves its timestamp.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		arg.Status,
		arg.AdminNote,
		arg.CancellationReason,
	))
}

const updateOrderPaymentStatus = `-- name: UpdateOrderPaymentStatus :one
UPDATE orders
SET payment_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderPaymentStatusParams struct {
	ID            uuid.UUID `json:"id"`
	PaymentStatus string    `json:"payment_status"`
}

func (q *Queries) UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderPaymentStatus, arg.ID, arg.PaymentStatus))
}

const updateOrderShipping = `-- name: UpdateOrderShipping :one
UPDATE orders
SET tracking_number = $2, carrier = $3, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

type UpdateOrderShippingParams struct {
	ID             uuid.UUID   `json:"id"`
	TrackingNumber pgtype.Text `json:"tracking_number"`
	Carrier        pgtype.Text `json:"carrier"`
}

func (q *Queries) UpdateOrderShipping(ctx context.Context, arg UpdateOrderShippingParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderShipping, arg.ID, arg.TrackingNumber, arg.Carrier))
}

const markOrderPromoCommitted = `-- name: MarkOrderPromoCommitted :execrows
UPDATE orders
SET promo_committed_at = now(), updated_at = now()
WHERE id = $1 AND promo_committed_at IS NULL
`

func (q *Queries) MarkOrderPromoCommitted(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markOrderPromoCommitted, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const orderItemColumns = `id, order_id, product_id, variant_id, category_id, product_name, sku,
       variant_attributes, unit_price_cents, quantity, discount_cents, total_cents, created_at`

func scanOrderItem(row interface{ Scan(...any) error }) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.ProductID,
		&i.VariantID,
		&i.CategoryID,
		&i.ProductName,
		&i.Sku,
		&i.VariantAttributes,
		&i.UnitPriceCents,
		&i.Quantity,
		&i.DiscountCents,
		&i.TotalCents,
		&i.CreatedAt,
	)
	return i, err
}

const createOrderItem = `-- name: CreateOrderItem :one
INSERT INTO order_items (
    order_id, product_id, variant_id, category_id, product_name, sku,
    variant_attributes, unit_price_cents, quantity, discount_cents, total_cents
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
)
RETURNING ` + orderItemColumns

type CreateOrderItemParams struct {
	OrderID           uuid.UUID   `json:"order_id"`
	ProductID         uuid.UUID   `json:"product_id"`
	VariantID         pgtype.UUID `json:"variant_id"`
	CategoryID        pgtype.UUID `json:"category_id"`
	ProductName       string      `json:"product_name"`
	Sku               string      `json:"sku"`
	VariantAttributes []byte      `json:"variant_attributes"`
	UnitPriceCents    int64       `json:"unit_price_cents"`
	Quantity          int32       `json:"quantity"`
	DiscountCents     int64       `json:"discount_cents"`
	TotalCents        int64       `json:"total_cents"`
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	return scanOrderItem(q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID,
		arg.ProductID,
		arg.VariantID,
		arg.CategoryID,
		arg.ProductName,
		arg.Sku,
		arg.VariantAttributes,
		arg.UnitPriceCents,
		arg.Quantity,
		arg.DiscountCents,
		arg.TotalCents,
	))
}

const listOrderItems = `-- name: ListOrderItems :many
SELECT ` + orderItemColumns + `
FROM order_items
WHERE order_id = $1
ORDER BY created_at, id
`

func (q *Queries) ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItems, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OrderItem
	for rows.Next() {
		i, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
