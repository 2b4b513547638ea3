package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType is how a promo code prices its discount.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// Reasons a promo code is rejected. Validation stops at the first one.
const (
	PromoReasonNotFound        = "Invalid promo code"
	PromoReasonInactive        = "Promo code is inactive"
	PromoReasonNotStarted      = "Promo code is not active yet"
	PromoReasonExpired         = "Promo code has expired"
	PromoReasonUsageLimit      = "Promo code usage limit reached"
	PromoReasonCustomerLimit   = "You have reached the usage limit for this promo code"
	PromoReasonProducts        = "Promo code is not applicable to products in your cart"
	PromoReasonCategories      = "Promo code is not applicable to categories in your cart"
	promoReasonMinimumTemplate = "Minimum order amount of %s required"
)

// PromoCode is a discount code with its limits resolved into plain Go types.
// Nil pointers mean "no limit".
type PromoCode struct {
	ID                    uuid.UUID
	Code                  string
	DiscountType          DiscountType
	DiscountValue         decimal.Decimal
	MinOrderAmount        *int64
	MaxDiscountAmount     *int64
	UsageLimit            *int32
	UsageLimitPerCustomer *int32
	UsageCount            int32
	IsActive              bool
	StartsAt              *time.Time
	ExpiresAt             *time.Time
	ApplicableProducts    []uuid.UUID
	ApplicableCategories  []uuid.UUID
}

// PromoContext is what a code is validated against.
type PromoContext struct {
	CustomerID  uuid.UUID
	OrderAmount int64
	ProductIDs  []uuid.UUID
	CategoryIDs []uuid.UUID
	Currency    string
}

// PromoResult is the outcome of validating a code.
type PromoResult struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	DiscountAmount int64  `json:"discount_amount"`
	Reason         string `json:"reason,omitempty"`
}

// CheckAvailability runs the code-level checks: active flag, date window and
// global usage limit. It returns the rejection reason or "".
func (p PromoCode) CheckAvailability(now time.Time) string {
	if !p.IsActive {
		return PromoReasonInactive
	}
	if p.StartsAt != nil && now.Before(*p.StartsAt) {
		return PromoReasonNotStarted
	}
	if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
		return PromoReasonExpired
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return PromoReasonUsageLimit
	}
	return ""
}

// CheckCustomerUsage rejects a customer who already used the code as often
// as allowed.
func (p PromoCode) CheckCustomerUsage(used int64) string {
	if p.UsageLimitPerCustomer != nil && used >= int64(*p.UsageLimitPerCustomer) {
		return PromoReasonCustomerLimit
	}
	return ""
}

// CheckOrder runs the order-level checks: minimum amount, then product and
// category applicability. Empty applicability lists match everything.
func (p PromoCode) CheckOrder(pc PromoContext) string {
	if p.MinOrderAmount != nil && pc.OrderAmount < *p.MinOrderAmount {
		return fmt.Sprintf(promoReasonMinimumTemplate, FormatMoney(*p.MinOrderAmount, pc.Currency))
	}
	if len(p.ApplicableProducts) > 0 && !intersects(p.ApplicableProducts, pc.ProductIDs) {
		return PromoReasonProducts
	}
	if len(p.ApplicableCategories) > 0 && !intersects(p.ApplicableCategories, pc.CategoryIDs) {
		return PromoReasonCategories
	}
	return ""
}

// CalculateDiscount prices the discount for an order amount. Percentage
// discounts are capped by MaxDiscountAmount; no discount exceeds the amount.
func (p PromoCode) CalculateDiscount(orderAmount int64) int64 {
	if orderAmount <= 0 {
		return 0
	}

	var discount int64
	switch p.DiscountType {
	case DiscountPercentage:
		discount = Percentage(orderAmount, p.DiscountValue)
		if p.MaxDiscountAmount != nil && discount > *p.MaxDiscountAmount {
			discount = *p.MaxDiscountAmount
		}
	case DiscountFixed:
		discount = MajorToMinor(p.DiscountValue)
	}

	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount
}

func intersects(allowed, have []uuid.UUID) bool {
	set := make(map[uuid.UUID]struct{}, len(allowed))
	for _, id := range allowed {
		set[id] = struct{}{}
	}
	for _, id := range have {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
