package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Querier interface {
	// catalog and inventory
	GetSellableUnit(ctx context.Context, arg GetSellableUnitParams) (SellableUnit, error)
	ReserveProductStock(ctx context.Context, arg StockMoveParams) (int64, error)
	ReserveVariantStock(ctx context.Context, arg StockMoveParams) (int64, error)
	ReleaseProductStock(ctx context.Context, arg StockMoveParams) (int64, error)
	ReleaseVariantStock(ctx context.Context, arg StockMoveParams) (int64, error)
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)

	// carts
	GetActiveCartByCustomer(ctx context.Context, customerID uuid.UUID) (Cart, error)
	GetActiveCartByCustomerForUpdate(ctx context.Context, customerID uuid.UUID) (Cart, error)
	CreateCart(ctx context.Context, customerID uuid.UUID) (Cart, error)
	TouchCart(ctx context.Context, id uuid.UUID) error
	UpdateCartStatus(ctx context.Context, arg UpdateCartStatusParams) error
	MarkAbandonedCarts(ctx context.Context, cutoff time.Time) (int64, error)
	GetCartItem(ctx context.Context, arg GetCartItemParams) (CartItem, error)
	GetCartItemByUnit(ctx context.Context, arg GetCartItemByUnitParams) (CartItem, error)
	CreateCartItem(ctx context.Context, arg CreateCartItemParams) (CartItem, error)
	UpdateCartItem(ctx context.Context, arg UpdateCartItemParams) (CartItem, error)
	DeleteCartItem(ctx context.Context, arg DeleteCartItemParams) (int64, error)
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error
	ListCartItems(ctx context.Context, cartID uuid.UUID) ([]CartItemDetail, error)

	// promo codes
	GetPromoCodeByCode(ctx context.Context, code string) (PromoCode, error)
	GetPromoCodeByID(ctx context.Context, id uuid.UUID) (PromoCode, error)
	IncrementPromoUsage(ctx context.Context, id uuid.UUID) (int64, error)
	CountCustomerPromoUsage(ctx context.Context, arg CountCustomerPromoUsageParams) (int64, error)

	// orders
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	GetOrderByID(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	GetOrderByNumber(ctx context.Context, orderNumber string) (Order, error)
	ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, arg UpdateOrderPaymentStatusParams) (Order, error)
	UpdateOrderShipping(ctx context.Context, arg UpdateOrderShippingParams) (Order, error)
	MarkOrderPromoCommitted(ctx context.Context, id uuid.UUID) (int64, error)
	CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)

	// payments
	CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (Payment, error)
	GetPaymentByReferenceForUpdate(ctx context.Context, reference string) (Payment, error)
	GetPaymentByProviderReference(ctx context.Context, arg GetPaymentByProviderReferenceParams) (Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID uuid.UUID) (Payment, error)
	SetPaymentInitialized(ctx context.Context, arg SetPaymentInitializedParams) (Payment, error)
	MarkPaymentSuccessful(ctx context.Context, arg MarkPaymentSuccessfulParams) (Payment, error)
	MarkPaymentFailed(ctx context.Context, arg MarkPaymentFailedParams) (Payment, error)
	MarkPaymentCancelled(ctx context.Context, id uuid.UUID) (int64, error)
	MarkPaymentRefunded(ctx context.Context, arg MarkPaymentRefundedParams) (Payment, error)

	// jobs
	EnqueueJob(ctx context.Context, arg EnqueueJobParams) (Job, error)
	ClaimNextJob(ctx context.Context, arg ClaimNextJobParams) (Job, error)
	CompleteJob(ctx context.Context, id uuid.UUID) error
	FailJob(ctx context.Context, arg FailJobParams) (Job, error)
}

var _ Querier = (*Queries)(nil)
