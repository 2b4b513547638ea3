package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, transaction_reference, gateway, method, status,
       amount_cents, currency, authorization_url, provider_reference, gateway_reference,
       gateway_response, channel, card_type, card_last_four, bank_name,
       refund_reference, refund_amount_cents, paid_at, failed_at, refunded_at,
       created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }) (Payment, error) {
	var i Payment
	err := row.Scan(
		&i.ID,
		&i.OrderID,
		&i.TransactionReference,
		&i.Gateway,
		&i.Method,
		&i.Status,
		&i.AmountCents,
		&i.Currency,
		&i.AuthorizationUrl,
		&i.ProviderReference,
		&i.GatewayReference,
		&i.GatewayResponse,
		&i.Channel,
		&i.CardType,
		&i.CardLastFour,
		&i.BankName,
		&i.RefundReference,
		&i.RefundAmountCents,
		&i.PaidAt,
		&i.FailedAt,
		&i.RefundedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createPayment = `-- name: CreatePayment :one
INSERT INTO payments (
    order_id, transaction_reference, gateway, method, amount_cents, currency
) VALUES (
    $1, $2, $3, $4, $5, $6
)
RETURNING ` + paymentColumns

type CreatePaymentParams struct {
	OrderID              uuid.UUID `json:"order_id"`
	TransactionReference string    `json:"transaction_reference"`
	Gateway              string    `json:"gateway"`
	Method               string    `json:"method"`
	AmountCents          int64     `json:"amount_cents"`
	Currency             string    `json:"currency"`
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment,
		arg.OrderID,
		arg.TransactionReference,
		arg.Gateway,
		arg.Method,
		arg.AmountCents,
		arg.Currency,
	))
}

const getPaymentByReference = `-- name: GetPaymentByReference :one
SELECT ` + paymentColumns + `
FROM payments
WHERE transaction_reference = $1
`

func (q *Queries) GetPaymentByReference(ctx context.Context, reference string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByReference, reference))
}

const getPaymentByReferenceForUpdate = `-- name: GetPaymentByReferenceForUpdate :one
SELECT ` + paymentColumns + `
FROM payments
WHERE transaction_reference = $1
FOR UPDATE
`

func (q *Queries) GetPaymentByReferenceForUpdate(ctx context.Context, reference string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByReferenceForUpdate, reference))
}

const getPaymentByProviderReference = `-- name: GetPaymentByProviderReference :one
SELECT ` + paymentColumns + `
FROM payments
WHERE gateway = $1 AND (provider_reference = $2 OR gateway_reference = $2)
LIMIT 1
`

type GetPaymentByProviderReferenceParams struct {
	Gateway   string `json:"gateway"`
	Reference string `json:"reference"`
}

// GetPaymentByProviderReference resolves a provider-assigned reference (for
// example a Stripe PaymentIntent id) back to our payment row.
func (q *Queries) GetPaymentByProviderReference(ctx context.Context, arg GetPaymentByProviderReferenceParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByProviderReference, arg.Gateway, arg.Reference))
}

const getPaymentByOrderID = `-- name: GetPaymentByOrderID :one
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
`

func (q *Queries) GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByOrderID, orderID))
}

const setPaymentInitialized = `-- name: SetPaymentInitialized :one
UPDATE payments
SET authorization_url = $2,
    provider_reference = $3,
    status = CASE WHEN status = 'pending' THEN 'processing' ELSE status END,
    updated_at = now()
WHERE id = $1
RETURNING ` + paymentColumns

type SetPaymentInitializedParams struct {
	ID                uuid.UUID   `json:"id"`
	AuthorizationUrl  pgtype.Text `json:"authorization_url"`
	ProviderReference pgtype.Text `json:"provider_reference"`
}

func (q *Queries) SetPaymentInitialized(ctx context.Context, arg SetPaymentInitializedParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, setPaymentInitialized, arg.ID, arg.AuthorizationUrl, arg.ProviderReference))
}

const markPaymentSuccessful = `-- name: MarkPaymentSuccessful :one
UPDATE payments
SET status = 'successful',
    gateway_reference = $2,
    gateway_response = $3,
    channel = $4,
    card_type = $5,
    card_last_four = $6,
    bank_name = $7,
    paid_at = now(),
    updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing')
RETURNING ` + paymentColumns

type MarkPaymentSuccessfulParams struct {
	ID               uuid.UUID   `json:"id"`
	GatewayReference pgtype.Text `json:"gateway_reference"`
	GatewayResponse  []byte      `json:"gateway_response"`
	Channel          pgtype.Text `json:"channel"`
	CardType         pgtype.Text `json:"card_type"`
	CardLastFour     pgtype.Text `json:"card_last_four"`
	BankName         pgtype.Text `json:"bank_name"`
}

func (q *Queries) MarkPaymentSuccessful(ctx context.Context, arg MarkPaymentSuccessfulParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, markPaymentSuccessful,
		arg.ID,
		arg.GatewayReference,
		arg.GatewayResponse,
		arg.Channel,
		arg.CardType,
		arg.CardLastFour,
		arg.BankName,
	))
}

const markPaymentFailed = `-- name: MarkPaymentFailed :one
UPDATE payments
SET status = 'failed',
    gateway_response = $2,
    failed_at = now(),
    updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing')
RETURNING ` + paymentColumns

type MarkPaymentFailedParams struct {
	ID              uuid.UUID `json:"id"`
	GatewayResponse []byte    `json:"gateway_response"`
}

func (q *Queries) MarkPaymentFailed(ctx context.Context, arg MarkPaymentFailedParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, markPaymentFailed, arg.ID, arg.GatewayResponse))
}

const markPaymentCancelled = `-- name: MarkPaymentCancelled :execrows
UPDATE payments
SET status = 'cancelled', updated_at = now()
WHERE id = $1 AND status IN ('pending', 'processing')
`

func (q *Queries) MarkPaymentCancelled(ctx context.Context, id uuid.UUID) (int64, error) {
	result, err := q.db.Exec(ctx, markPaymentCancelled, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const markPaymentRefunded = `-- name: MarkPaymentRefunded :one
UPDATE payments
SET status = 'refunded',
    refund_reference = $2,
    refund_amount_cents = $3,
    refunded_at = now(),
    updated_at = now()
WHERE id = $1 AND status = 'successful'
RETURNING ` + paymentColumns

type MarkPaymentRefundedParams struct {
	ID                uuid.UUID `json:"id"`
	RefundReference   string    `json:"refund_reference"`
	RefundAmountCents int64     `json:"refund_amount_cents"`
}

func (q *Queries) MarkPaymentRefunded(ctx context.Context, arg MarkPaymentRefundedParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, markPaymentRefunded, arg.ID, arg.RefundReference, arg.RefundAmountCents))
}
