package shipping

import (
	"context"
	"strings"
)

// StateRate is the fee for one state, in minor units.
type StateRate struct {
	State     string
	CostCents int64
	DaysMin   int
	DaysMax   int
}

// DefaultStateRates are the built-in per-state fees.
var DefaultStateRates = []StateRate{
	{State: "Lagos", CostCents: 200000, DaysMin: 1, DaysMax: 2},
	{State: "Abuja", CostCents: 300000, DaysMin: 2, DaysMax: 4},
	{State: "Port Harcourt", CostCents: 250000, DaysMin: 2, DaysMax: 4},
}

// StateRateCalculator charges a fixed fee per destination state with a
// default for every other state. No destination means no fee yet.
type StateRateCalculator struct {
	rates       map[string]StateRate
	defaultCost int64
	// FreeAboveCents waives the fee when the subtotal reaches it. Zero disables.
	FreeAboveCents int64
}

// NewStateRateCalculator creates a calculator. State names match case-insensitively.
func NewStateRateCalculator(rates []StateRate, defaultCostCents int64) *StateRateCalculator {
	c := &StateRateCalculator{
		rates:       make(map[string]StateRate, len(rates)),
		defaultCost: defaultCostCents,
	}
	for _, r := range rates {
		c.rates[normalizeState(r.State)] = r
	}
	return c
}

func (c *StateRateCalculator) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if params.Destination.IsZero() || strings.TrimSpace(params.Destination.State) == "" {
		return &Quote{CostCents: 0, ServiceName: "Standard Delivery"}, nil
	}

	quote := &Quote{
		CostCents:        c.defaultCost,
		ServiceName:      "Standard Delivery",
		EstimatedDaysMin: 3,
		EstimatedDaysMax: 7,
	}
	if r, ok := c.rates[normalizeState(params.Destination.State)]; ok {
		quote.CostCents = r.CostCents
		quote.EstimatedDaysMin = r.DaysMin
		quote.EstimatedDaysMax = r.DaysMax
	}

	if c.FreeAboveCents > 0 && params.SubtotalCents >= c.FreeAboveCents {
		quote.CostCents = 0
		quote.ServiceName = "Free Delivery"
	}
	return quote, nil
}

func normalizeState(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.TrimSuffix(s, " state")
}
