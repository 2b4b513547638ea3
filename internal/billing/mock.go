package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

const GatewayMock = "mock"

// MockGateway is a gateway for tests and local development.
// Simulates successful payment flows without calling any provider.
type MockGateway struct {
	// NameValue overrides the gateway name (default "mock").
	NameValue string

	// InitializeFunc allows customizing initialization behavior
	InitializeFunc func(ctx context.Context, params InitializeParams) (*Authorization, error)

	// VerifyFunc allows customizing verification behavior
	VerifyFunc func(ctx context.Context, params VerifyParams) (*Verification, error)

	// RefundFunc allows customizing refund behavior
	RefundFunc func(ctx context.Context, params RefundParams) (*Refund, error)

	mu sync.Mutex
	// Amounts records initialized amounts by reference for default Verify.
	Amounts map[string]int64
	// CallLog tracks method calls for test assertions
	CallLog []string
}

// NewMockGateway creates a mock gateway.
func NewMockGateway() *MockGateway {
	return &MockGateway{Amounts: make(map[string]int64)}
}

func (m *MockGateway) Name() string {
	if m.NameValue != "" {
		return m.NameValue
	}
	return GatewayMock
}

func (m *MockGateway) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}

// Calls returns a copy of the call log.
func (m *MockGateway) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

// Initialize returns a fake hosted page URL.
func (m *MockGateway) Initialize(ctx context.Context, params InitializeParams) (*Authorization, error) {
	m.record(fmt.Sprintf("Initialize(%s, %d)", params.Reference, params.AmountCents))

	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, params)
	}

	m.mu.Lock()
	if m.Amounts == nil {
		m.Amounts = make(map[string]int64)
	}
	m.Amounts[params.Reference] = params.AmountCents
	m.mu.Unlock()

	return &Authorization{
		AuthorizationURL:  "https://checkout.mock.local/pay/" + params.Reference,
		ProviderReference: "mock_" + uuid.NewString(),
	}, nil
}

// Verify reports success for the initialized amount by default.
func (m *MockGateway) Verify(ctx context.Context, params VerifyParams) (*Verification, error) {
	m.record(fmt.Sprintf("Verify(%s)", params.Reference))

	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, params)
	}

	m.mu.Lock()
	amount, ok := m.Amounts[params.Reference]
	m.mu.Unlock()
	if !ok {
		return nil, ErrTransactionNotFound
	}

	return &Verification{
		Status:           StatusSuccess,
		GatewayReference: "mock_tx_" + params.Reference,
		AmountCents:      amount,
		Channel:          "card",
		Message:          "Approved",
	}, nil
}

// Refund echoes the requested amount.
func (m *MockGateway) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	m.record(fmt.Sprintf("Refund(%s, %d)", params.Reference, params.AmountCents))

	if m.RefundFunc != nil {
		return m.RefundFunc(ctx, params)
	}

	return &Refund{
		ID:          "mock_rf_" + uuid.NewString(),
		Status:      "processed",
		AmountCents: params.AmountCents,
	}, nil
}

// VerifyWebhookSignature accepts any non-empty signature.
func (m *MockGateway) VerifyWebhookSignature(_ []byte, signature string) error {
	if signature == "" {
		return ErrInvalidWebhookSignature
	}
	return nil
}
