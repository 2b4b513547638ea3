package tax_test

import (
	"context"
	"testing"

	"github.com/dukerupert/mercato/internal/tax"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lagosParams(subtotal, discount, shipping int64) tax.TaxParams {
	return tax.TaxParams{
		ShippingAddress: tax.Address{City: "Ikeja", State: "Lagos", Country: "NG"},
		LineItems: []tax.LineItem{{
			ProductID:  uuid.New(),
			Quantity:   1,
			UnitPrice:  subtotal,
			TotalPrice: subtotal,
		}},
		DiscountCents: discount,
		ShippingCents: shipping,
	}
}

func TestNoTaxCalculator_ReturnsZeroTax(t *testing.T) {
	calc := tax.NewNoTaxCalculator()

	result, err := calc.CalculateTax(context.Background(), lagosParams(360000, 0, 200000))

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.TotalTaxCents)
	assert.Empty(t, result.Breakdown)
}

func TestPercentageCalculator_CalculateTax(t *testing.T) {
	tests := []struct {
		name     string
		rate     string
		subtotal int64
		discount int64
		shipping int64
		want     int64
	}{
		{"nigerian vat", "0.075", 200000, 0, 0, 15000},
		{"vat on shipping too", "0.075", 200000, 0, 200000, 30000},
		{"discount reduces base", "0.075", 200000, 20000, 0, 13500},
		{"rounds half up", "0.075", 1000, 0, 0, 75},
		{"rounds fraction up", "0.075", 1010, 0, 0, 76},
		{"zero rate", "0", 200000, 0, 0, 0},
		{"fully discounted", "0.075", 2000, 2000, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calc, err := tax.NewPercentageCalculator(decimal.RequireFromString(tt.rate), "")
			require.NoError(t, err)

			result, err := calc.CalculateTax(context.Background(), lagosParams(tt.subtotal, tt.discount, tt.shipping))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.TotalTaxCents)
		})
	}
}

func TestPercentageCalculator_Breakdown(t *testing.T) {
	calc, err := tax.NewPercentageCalculator(decimal.RequireFromString("0.075"), "")
	require.NoError(t, err)

	result, err := calc.CalculateTax(context.Background(), lagosParams(200000, 0, 0))
	require.NoError(t, err)

	require.Len(t, result.Breakdown, 1)
	assert.Equal(t, "country", result.Breakdown[0].Jurisdiction)
	assert.Equal(t, "VAT", result.Breakdown[0].Name)
	assert.True(t, result.Breakdown[0].Rate.Equal(decimal.RequireFromString("0.075")))
	assert.Equal(t, result.TotalTaxCents, result.Breakdown[0].AmountCents)
}

func TestNewPercentageCalculator_RejectsInvalidRates(t *testing.T) {
	_, err := tax.NewPercentageCalculator(decimal.NewFromInt(-1), "")
	assert.ErrorIs(t, err, tax.ErrInvalidTaxRate)

	_, err = tax.NewPercentageCalculator(decimal.RequireFromString("1.5"), "")
	assert.ErrorIs(t, err, tax.ErrInvalidTaxRate)
}

func TestPercentageCalculator_Idempotent(t *testing.T) {
	calc, err := tax.NewPercentageCalculator(decimal.RequireFromString("0.08"), "Sales Tax")
	require.NoError(t, err)

	params := lagosParams(5000, 0, 500)
	first, err := calc.CalculateTax(context.Background(), params)
	require.NoError(t, err)
	second, err := calc.CalculateTax(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first.TotalTaxCents, second.TotalTaxCents)
	assert.Equal(t, int64(440), first.TotalTaxCents)
}
