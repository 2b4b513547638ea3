package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amounts are int64 minor units (kobo, cents) everywhere in the pipeline.
// Fractional arithmetic goes through decimal and is rounded exactly once.

var hundred = decimal.NewFromInt(100)

// Percentage returns pct percent of amount, rounded half-up to a minor unit.
func Percentage(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}

// MajorToMinor converts an amount in major units (naira, dollars) to minor
// units, rounding half-up.
func MajorToMinor(major decimal.Decimal) int64 {
	return major.Mul(hundred).Round(0).IntPart()
}

// MinorToMajor converts minor units to a decimal amount in major units.
func MinorToMajor(minor int64) decimal.Decimal {
	return decimal.New(minor, -2)
}

// FormatMoney renders an amount for people, e.g. "NGN 1,800.00".
func FormatMoney(minor int64, currency string) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := minor / 100
	frac := minor % 100

	digits := fmt.Sprintf("%d", whole)
	grouped := make([]byte, 0, len(digits)+len(digits)/3)
	for i := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digits[i])
	}
	return fmt.Sprintf("%s %s%s.%02d", currency, sign, grouped, frac)
}

// OrderTotals is the priced breakdown of an order. Total always equals
// Subtotal - Discount + Shipping + Tax.
type OrderTotals struct {
	Subtotal int64  `json:"subtotal"`
	Discount int64  `json:"discount_amount"`
	Shipping int64  `json:"shipping_fee"`
	Tax      int64  `json:"tax_amount"`
	Total    int64  `json:"total"`
	Currency string `json:"currency"`
}

// NewOrderTotals computes the total from its parts.
func NewOrderTotals(subtotal, discount, shipping, tax int64, currency string) OrderTotals {
	return OrderTotals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal - discount + shipping + tax,
		Currency: currency,
	}
}
