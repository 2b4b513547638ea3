// Package tax prices tax for a priced cart. Calculators are pure functions
// of address and lines; the checkout orchestrator treats them as an
// external pricing collaborator.
package tax

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Calculator defines the interface for tax calculation.
// Implementations: PercentageCalculator, NoTaxCalculator
type Calculator interface {
	// CalculateTax computes tax for order line items and shipping.
	// Returns tax amount in minor units.
	CalculateTax(ctx context.Context, params TaxParams) (*TaxResult, error)
}

// TaxParams contains all information needed for tax calculation.
type TaxParams struct {
	ShippingAddress Address
	LineItems       []LineItem
	// DiscountCents is subtracted from the taxable base.
	DiscountCents int64
	ShippingCents int64
}

// Address represents the destination for tax purposes.
type Address struct {
	City    string
	State   string
	Country string
}

// LineItem represents a single item being taxed.
type LineItem struct {
	ProductID   uuid.UUID
	Description string
	Quantity    int32
	UnitPrice   int64
	TotalPrice  int64
}

// TaxResult contains the calculated tax amount and breakdown.
type TaxResult struct {
	TotalTaxCents int64
	Breakdown     []TaxBreakdown
}

// TaxBreakdown represents tax for a single jurisdiction.
type TaxBreakdown struct {
	Jurisdiction string          // "country", "state"
	Name         string          // e.g., "VAT"
	Rate         decimal.Decimal // e.g., 0.075 for 7.5%
	AmountCents  int64
}

// Subtotal sums the line totals.
func (p TaxParams) Subtotal() int64 {
	var sum int64
	for _, item := range p.LineItems {
		sum += item.TotalPrice
	}
	return sum
}
