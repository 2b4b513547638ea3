package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// PercentageCalculator calculates tax using a single rate on
// (subtotal - discount + shipping), rounded half-up once.
type PercentageCalculator struct {
	rate decimal.Decimal // e.g., 0.075 for 7.5%
	name string
}

// NewPercentageCalculator creates a new percentage-based tax calculator.
func NewPercentageCalculator(rate decimal.Decimal, name string) (Calculator, error) {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidTaxRate
	}
	if name == "" {
		name = "VAT"
	}
	return &PercentageCalculator{rate: rate, name: name}, nil
}

// CalculateTax computes tax on the discounted subtotal plus shipping.
func (c *PercentageCalculator) CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error) {
	base := params.Subtotal() - params.DiscountCents + params.ShippingCents
	if base <= 0 || c.rate.IsZero() {
		return &TaxResult{TotalTaxCents: 0, Breakdown: []TaxBreakdown{}}, nil
	}

	amount := decimal.NewFromInt(base).Mul(c.rate).Round(0).IntPart()

	return &TaxResult{
		TotalTaxCents: amount,
		Breakdown: []TaxBreakdown{{
			Jurisdiction: "country",
			Name:         c.name,
			Rate:         c.rate,
			AmountCents:  amount,
		}},
	}, nil
}
