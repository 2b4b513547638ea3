package service

import (
	"fmt"

	"github.com/dukerupert/mercato/internal/domain"
)

// Cart errors
var (
	ErrCartNotFound     = domain.Errorf(domain.ENOTFOUND, "", "Cart not found")
	ErrCartItemNotFound = domain.Errorf(domain.ENOTFOUND, "", "Cart item not found")
	ErrUnitNotFound     = domain.Errorf(domain.ENOTFOUND, "", "Product not found")
	ErrUnitUnavailable  = domain.Errorf(domain.EINVALID, "", "Product is not available for purchase")
	ErrInvalidQuantity  = domain.Errorf(domain.EINVALID, "", "Quantity must be greater than 0")
)

// Checkout pipeline errors
var (
	ErrEmptyCart                 = domain.Errorf(domain.EINVALID, "", "Cart is empty")
	ErrInsufficientStock         = domain.Errorf(domain.ECONFLICT, "", "Insufficient stock for one or more items")
	ErrInvalidPromoCode          = domain.Errorf(domain.EINVALID, "", domain.PromoReasonNotFound)
	ErrMissingShippingAddress    = domain.Errorf(domain.EINVALID, "", "Shipping address is required")
	ErrOrderNotFound             = domain.Errorf(domain.ENOTFOUND, "", "Order not found")
	ErrOrderNotCancellable       = domain.Errorf(domain.ECONFLICT, "", "Order can no longer be cancelled")
	ErrInvalidStatusTransition   = domain.Errorf(domain.ECONFLICT, "", "Order cannot move to the requested status")
	ErrNoPaymentFound            = domain.Errorf(domain.ENOTFOUND, "", "No payment found")
	ErrPaymentNotRetryable       = domain.Errorf(domain.ECONFLICT, "", "Payment can no longer be retried; please check out again")
	ErrRefundExceedsPayment      = domain.Errorf(domain.EINVALID, "", "Refund amount exceeds the amount paid")
	ErrPaymentGatewayUnavailable = domain.Errorf(domain.EUNAVAILABLE, "", "Payment gateway unavailable")
	ErrPaymentVerificationFailed = domain.Errorf(domain.EUNAVAILABLE, "", "Payment could not be verified, please try again")
	ErrUnsupportedGateway        = domain.Errorf(domain.EINVALID, "", "Unsupported payment gateway")
	ErrAdminRequired             = domain.Errorf(domain.EFORBIDDEN, "", "Admin access required")
)

// InsufficientStockError names the line a reservation failed on.
type InsufficientStockError struct {
	UnitID    string
	Name      string
	Requested int32
	Available int32
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock for %s: requested %d, available %d", e.Name, e.Requested, e.Available)
}

// Unwrap exposes a conflict-coded domain error that in turn wraps
// ErrInsufficientStock, so both domain.ErrorCode and errors.Is work.
func (e *InsufficientStockError) Unwrap() error {
	return &domain.Error{Code: domain.ECONFLICT, Message: e.Error(), Err: ErrInsufficientStock}
}

// InvalidPromoCodeError carries the promo engine's rejection reason.
type InvalidPromoCodeError struct {
	Code   string
	Reason string
}

func (e *InvalidPromoCodeError) Error() string {
	return e.Reason
}

func (e *InvalidPromoCodeError) Unwrap() error {
	return &domain.Error{Code: domain.EINVALID, Message: e.Reason, Err: ErrInvalidPromoCode}
}
