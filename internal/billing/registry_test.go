package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	paystack := &MockGateway{NameValue: GatewayPaystack}
	flutterwave := &MockGateway{NameValue: GatewayFlutterwave}

	r := NewRegistry(GatewayFlutterwave, paystack, flutterwave)

	assert.Equal(t, GatewayFlutterwave, r.Default())
	assert.Equal(t, []string{GatewayFlutterwave, GatewayPaystack}, r.Names())

	g, err := r.Get(GatewayPaystack)
	require.NoError(t, err)
	assert.Same(t, paystack, g)

	g, err = r.Resolve("")
	require.NoError(t, err)
	assert.Same(t, flutterwave, g)

	_, err = r.Get("paypal")
	assert.True(t, errors.Is(err, ErrUnsupportedGateway))
}

func TestRegistry_DefaultsToFirstGateway(t *testing.T) {
	r := NewRegistry("unknown", &MockGateway{NameValue: GatewayPaystack})
	assert.Equal(t, GatewayPaystack, r.Default())
}

func TestStripeError(t *testing.T) {
	declined := &StripeError{Message: "Your card was declined", Code: "card_declined", DeclineCode: "insufficient_funds"}
	assert.True(t, declined.IsDeclined())
	assert.False(t, declined.IsTemporary())
	assert.Contains(t, declined.Error(), "card_declined")

	apiErr := &StripeError{Message: "boom", Type: "api_error"}
	assert.True(t, apiErr.IsTemporary())
}

func TestIsUnavailable(t *testing.T) {
	assert.True(t, IsUnavailable(&ProviderError{Gateway: "paystack", StatusCode: 503, Err: ErrGatewayUnavailable}))
	assert.True(t, IsUnavailable(&ProviderError{Gateway: "paystack"}))
	assert.False(t, IsUnavailable(&ProviderError{Gateway: "paystack", StatusCode: 400}))
	assert.False(t, IsUnavailable(errors.New("other")))
}
