package service

import (
	"context"
	"fmt"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/shipping"
	"github.com/dukerupert/mercato/internal/tax"
)

// Pricer computes order totals from cart lines. It is a pure function of
// the lines, the discount and the destination.
type Pricer struct {
	shipping shipping.Calculator
	tax      tax.Calculator
	currency string
}

func NewPricer(shippingCalc shipping.Calculator, taxCalc tax.Calculator, currency string) *Pricer {
	if taxCalc == nil {
		taxCalc = tax.NewNoTaxCalculator()
	}
	if currency == "" {
		currency = "NGN"
	}
	return &Pricer{shipping: shippingCalc, tax: taxCalc, currency: currency}
}

// Currency is the currency every total is expressed in.
func (p *Pricer) Currency() string {
	return p.currency
}

// Subtotal sums price snapshot times quantity over the lines.
func Subtotal(lines []domain.CartLine) int64 {
	var subtotal int64
	for _, line := range lines {
		subtotal += line.UnitPriceCents * int64(line.Quantity)
	}
	return subtotal
}

// Totals prices the lines for dest. A nil dest ships for free.
func (p *Pricer) Totals(ctx context.Context, lines []domain.CartLine, discount int64, dest *domain.Address) (domain.OrderTotals, error) {
	subtotal := Subtotal(lines)

	var itemCount int32
	for _, line := range lines {
		itemCount += line.Quantity
	}

	var shippingCents int64
	if p.shipping != nil && dest != nil {
		quote, err := p.shipping.Quote(ctx, shipping.QuoteParams{
			Destination:   shipping.Address{City: dest.City, State: dest.State, Country: dest.Country},
			SubtotalCents: subtotal - discount,
			ItemCount:     itemCount,
		})
		if err != nil {
			return domain.OrderTotals{}, fmt.Errorf("failed to quote shipping: %w", err)
		}
		shippingCents = quote.CostCents
	}

	taxParams := tax.TaxParams{
		DiscountCents: discount,
		ShippingCents: shippingCents,
	}
	if dest != nil {
		taxParams.ShippingAddress = tax.Address{City: dest.City, State: dest.State, Country: dest.Country}
	}
	for _, line := range lines {
		taxParams.LineItems = append(taxParams.LineItems, tax.LineItem{
			ProductID:   line.ProductID,
			Description: line.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPriceCents,
			TotalPrice:  line.UnitPriceCents * int64(line.Quantity),
		})
	}
	taxResult, err := p.tax.CalculateTax(ctx, taxParams)
	if err != nil {
		return domain.OrderTotals{}, fmt.Errorf("failed to calculate tax: %w", err)
	}

	return domain.NewOrderTotals(subtotal, discount, shippingCents, taxResult.TotalTaxCents, p.currency), nil
}
