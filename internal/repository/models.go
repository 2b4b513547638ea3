package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID        uuid.UUID   `json:"id"`
	Email     string      `json:"email"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Phone     pgtype.Text `json:"phone"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SellableUnit is a product, or one of its variants when VariantID is valid,
// joined with the fields the cart and checkout need.
type SellableUnit struct {
	ProductID      uuid.UUID   `json:"product_id"`
	VariantID      pgtype.UUID `json:"variant_id"`
	CategoryID     pgtype.UUID `json:"category_id"`
	Sku            string      `json:"sku"`
	Name           string      `json:"name"`
	VariantName    pgtype.Text `json:"variant_name"`
	Attributes     []byte      `json:"attributes"`
	PriceCents     int64       `json:"price_cents"`
	TrackInventory bool        `json:"track_inventory"`
	StockQuantity  int32       `json:"stock_quantity"`
	StockStatus    string      `json:"stock_status"`
	IsActive       bool        `json:"is_active"`
}

type Cart struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Status         string    `json:"status"`
	LastActivityAt time.Time `json:"last_activity_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CartItem struct {
	ID             uuid.UUID   `json:"id"`
	CartID         uuid.UUID   `json:"cart_id"`
	ProductID      uuid.UUID   `json:"product_id"`
	VariantID      pgtype.UUID `json:"variant_id"`
	Quantity       int32       `json:"quantity"`
	UnitPriceCents int64       `json:"unit_price_cents"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// CartItemDetail is a cart line joined with its sellable unit.
type CartItemDetail struct {
	ID                uuid.UUID   `json:"id"`
	CartID            uuid.UUID   `json:"cart_id"`
	ProductID         uuid.UUID   `json:"product_id"`
	VariantID         pgtype.UUID `json:"variant_id"`
	Quantity          int32       `json:"quantity"`
	UnitPriceCents    int64       `json:"unit_price_cents"`
	CategoryID        pgtype.UUID `json:"category_id"`
	Sku               string      `json:"sku"`
	ProductName       string      `json:"product_name"`
	VariantName       pgtype.Text `json:"variant_name"`
	Attributes        []byte      `json:"attributes"`
	CurrentPriceCents int64       `json:"current_price_cents"`
	TrackInventory    bool        `json:"track_inventory"`
	StockQuantity     int32       `json:"stock_quantity"`
}

type PromoCode struct {
	ID                     uuid.UUID          `json:"id"`
	Code                   string             `json:"code"`
	Description            string             `json:"description"`
	DiscountType           string             `json:"discount_type"`
	DiscountValue          pgtype.Numeric     `json:"discount_value"`
	MinOrderAmountCents    pgtype.Int8        `json:"min_order_amount_cents"`
	MaxDiscountAmountCents pgtype.Int8        `json:"max_discount_amount_cents"`
	UsageLimit             pgtype.Int4        `json:"usage_limit"`
	UsageLimitPerCustomer  pgtype.Int4        `json:"usage_limit_per_customer"`
	UsageCount             int32              `json:"usage_count"`
	IsActive               bool               `json:"is_active"`
	StartsAt               pgtype.Timestamptz `json:"starts_at"`
	ExpiresAt              pgtype.Timestamptz `json:"expires_at"`
	ApplicableProducts     []pgtype.UUID      `json:"applicable_products"`
	ApplicableCategories   []pgtype.UUID      `json:"applicable_categories"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

type Order struct {
	ID                 uuid.UUID          `json:"id"`
	OrderNumber        string             `json:"order_number"`
	CustomerID         uuid.UUID          `json:"customer_id"`
	CustomerEmail      string             `json:"customer_email"`
	Status             string             `json:"status"`
	PaymentStatus      string             `json:"payment_status"`
	FulfillmentStatus  string             `json:"fulfillment_status"`
	Currency           string             `json:"currency"`
	SubtotalCents      int64              `json:"subtotal_cents"`
	DiscountCents      int64              `json:"discount_cents"`
	ShippingCents      int64              `json:"shipping_cents"`
	TaxCents           int64              `json:"tax_cents"`
	TotalCents         int64              `json:"total_cents"`
	PromoCodeID        pgtype.UUID        `json:"promo_code_id"`
	PromoCode          pgtype.Text        `json:"promo_code"`
	PromoCommittedAt   pgtype.Timestamptz `json:"promo_committed_at"`
	ShippingAddress    []byte             `json:"shipping_address"`
	BillingAddress     []byte             `json:"billing_address"`
	CustomerNote       pgtype.Text        `json:"customer_note"`
	AdminNote          pgtype.Text        `json:"admin_note"`
	CancellationReason pgtype.Text        `json:"cancellation_reason"`
	TrackingNumber     pgtype.Text        `json:"tracking_number"`
	Carrier            pgtype.Text        `json:"carrier"`
	ConfirmedAt        pgtype.Timestamptz `json:"confirmed_at"`
	ShippedAt          pgtype.Timestamptz `json:"shipped_at"`
	DeliveredAt        pgtype.Timestamptz `json:"delivered_at"`
	CancelledAt        pgtype.Timestamptz `json:"cancelled_at"`
	RefundedAt         pgtype.Timestamptz `json:"refunded_at"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

type OrderItem struct {
	ID                uuid.UUID   `json:"id"`
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
	CreatedAt         time.Time   `json:"created_at"`
}

type Payment struct {
	ID                   uuid.UUID          `json:"id"`
	OrderID              uuid.UUID          `json:"order_id"`
	TransactionReference string             `json:"transaction_reference"`
	Gateway              string             `json:"gateway"`
	Method               string             `json:"method"`
	Status               string             `json:"status"`
	AmountCents          int64              `json:"amount_cents"`
	Currency             string             `json:"currency"`
	AuthorizationUrl     pgtype.Text        `json:"authorization_url"`
	ProviderReference    pgtype.Text        `json:"provider_reference"`
	GatewayReference     pgtype.Text        `json:"gateway_reference"`
	GatewayResponse      []byte             `json:"gateway_response"`
	Channel              pgtype.Text        `json:"channel"`
	CardType             pgtype.Text        `json:"card_type"`
	CardLastFour         pgtype.Text        `json:"card_last_four"`
	BankName             pgtype.Text        `json:"bank_name"`
	RefundReference      pgtype.Text        `json:"refund_reference"`
	RefundAmountCents    pgtype.Int8        `json:"refund_amount_cents"`
	PaidAt               pgtype.Timestamptz `json:"paid_at"`
	FailedAt             pgtype.Timestamptz `json:"failed_at"`
	RefundedAt           pgtype.Timestamptz `json:"refunded_at"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

type Job struct {
	ID             uuid.UUID          `json:"id"`
	JobType        string             `json:"job_type"`
	Queue          string             `json:"queue"`
	Payload        []byte             `json:"payload"`
	Status         string             `json:"status"`
	Priority       int32              `json:"priority"`
	RetryCount     int32              `json:"retry_count"`
	MaxRetries     int32              `json:"max_retries"`
	TimeoutSeconds int32              `json:"timeout_seconds"`
	ScheduledAt    time.Time          `json:"scheduled_at"`
	WorkerID       pgtype.Text        `json:"worker_id"`
	ErrorMessage   pgtype.Text        `json:"error_message"`
	Metadata       []byte             `json:"metadata"`
	StartedAt      pgtype.Timestamptz `json:"started_at"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
