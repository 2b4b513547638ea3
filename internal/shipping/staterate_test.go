package shipping_test

import (
	"context"
	"testing"

	"github.com/dukerupert/mercato/internal/shipping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateRateCalculator_Quote(t *testing.T) {
	calc := shipping.NewStateRateCalculator(shipping.DefaultStateRates, 350000)

	tests := []struct {
		name  string
		state string
		want  int64
	}{
		{"lagos", "Lagos", 200000},
		{"abuja", "Abuja", 300000},
		{"port harcourt", "Port Harcourt", 250000},
		{"case and suffix insensitive", " lagos state ", 200000},
		{"other state uses default", "Kano", 350000},
		{"no destination", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := shipping.QuoteParams{SubtotalCents: 200000, ItemCount: 2}
			if tt.state != "" {
				params.Destination = shipping.Address{State: tt.state, Country: "NG"}
			}

			quote, err := calc.Quote(context.Background(), params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, quote.CostCents)
		})
	}
}

func TestStateRateCalculator_FreeAbove(t *testing.T) {
	calc := shipping.NewStateRateCalculator(shipping.DefaultStateRates, 350000)
	calc.FreeAboveCents = 5000000

	dest := shipping.Address{State: "Lagos", Country: "NG"}

	below, err := calc.Quote(context.Background(), shipping.QuoteParams{Destination: dest, SubtotalCents: 4999999})
	require.NoError(t, err)
	assert.Equal(t, int64(200000), below.CostCents)

	at, err := calc.Quote(context.Background(), shipping.QuoteParams{Destination: dest, SubtotalCents: 5000000})
	require.NoError(t, err)
	assert.Equal(t, int64(0), at.CostCents)
	assert.Equal(t, "Free Delivery", at.ServiceName)
}

func TestStateRateCalculator_IsPure(t *testing.T) {
	calc := shipping.NewStateRateCalculator(shipping.DefaultStateRates, 350000)
	params := shipping.QuoteParams{Destination: shipping.Address{State: "Abuja"}, SubtotalCents: 1000}

	first, err := calc.Quote(context.Background(), params)
	require.NoError(t, err)
	second, err := calc.Quote(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
