package shipping

import "context"

// MockCalculator is a test implementation of Calculator.
type MockCalculator struct {
	QuoteFunc func(ctx context.Context, params QuoteParams) (*Quote, error)
	// CostCents is returned when QuoteFunc is nil.
	CostCents int64
}

// Quote delegates to the configured function or returns CostCents.
func (m *MockCalculator) Quote(ctx context.Context, params QuoteParams) (*Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, params)
	}
	return &Quote{CostCents: m.CostCents, ServiceName: "Mock Delivery"}, nil
}
