package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83/webhook"

	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/telemetry"
)

const (
	paystackSecret  = "sk_test_paystack"
	flutterwaveHash = "flw-secret-hash"
	stripeSecret    = "whsec_test"
)

// fakeCheckout records settled references. Only the webhook path is stubbed.
type fakeCheckout struct {
	domain.CheckoutService

	verified  []string
	providers map[string]string
	verifyErr error
}

func (f *fakeCheckout) VerifyPayment(ctx context.Context, reference string) (*domain.PaymentOutcome, error) {
	f.verified = append(f.verified, reference)
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &domain.PaymentOutcome{Reference: reference, OrderNumber: "ORD-1", PaymentStatus: "succeeded", Successful: true}, nil
}

func (f *fakeCheckout) ResolveReference(ctx context.Context, gateway, providerReference string) (string, error) {
	if ref, ok := f.providers[gateway+":"+providerReference]; ok {
		return ref, nil
	}
	return "", domain.Errorf(domain.ENOTFOUND, "", "No payment found")
}

func useBusinessMetrics(t *testing.T) {
	t.Helper()
	prev := telemetry.Business
	telemetry.Business = telemetry.NewBusinessMetrics("", prometheus.NewRegistry())
	t.Cleanup(func() { telemetry.Business = prev })
}

func post(h *Handler, header, signature, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/test", strings.NewReader(body))
	if signature != "" {
		req.Header.Set(header, signature)
	}
	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, req)
	return rec
}

func TestPaystackWebhook(t *testing.T) {
	gateway := billing.NewPaystackGateway(billing.PaystackConfig{SecretKey: paystackSecret})
	charge := `{"event":"charge.success","data":{"id":302961,"reference":"TXN-P1","status":"success"}}`

	tests := []struct {
		name         string
		body         string
		signature    string
		wantCode     int
		wantVerified []string
		wantFailure  string
	}{
		{
			name:         "signed charge settles",
			body:         charge,
			signature:    billing.SignPaystackPayload([]byte(charge), paystackSecret),
			wantCode:     http.StatusOK,
			wantVerified: []string{"TXN-P1"},
		},
		{
			name:        "tampered body",
			body:        strings.Replace(charge, "TXN-P1", "TXN-P2", 1),
			signature:   billing.SignPaystackPayload([]byte(charge), paystackSecret),
			wantCode:    http.StatusUnauthorized,
			wantFailure: "invalid_signature",
		},
		{
			name:        "missing signature",
			body:        charge,
			wantCode:    http.StatusUnauthorized,
			wantFailure: "missing_signature",
		},
		{
			name:      "non-charge event is acknowledged",
			body:      `{"event":"transfer.success","data":{"id":1,"reference":"TRF-1"}}`,
			signature: billing.SignPaystackPayload([]byte(`{"event":"transfer.success","data":{"id":1,"reference":"TRF-1"}}`), paystackSecret),
			wantCode:  http.StatusOK,
		},
		{
			name:        "signed but malformed",
			body:        `{"event":`,
			signature:   billing.SignPaystackPayload([]byte(`{"event":`), paystackSecret),
			wantCode:    http.StatusOK,
			wantFailure: "malformed_payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useBusinessMetrics(t)
			checkout := &fakeCheckout{}
			h := NewPaystackHandler(gateway, checkout)

			rec := post(h, PaystackSignatureHeader, tt.signature, tt.body)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantVerified, checkout.verified)
			if tt.wantCode == http.StatusOK {
				assert.JSONEq(t, `{"received": true}`, rec.Body.String())
			}
			if tt.wantFailure != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.Business.WebhookFailed.WithLabelValues(billing.GatewayPaystack, tt.wantFailure)))
			}
		})
	}
}

func TestPaystackWebhook_DuplicateDelivery(t *testing.T) {
	useBusinessMetrics(t)
	gateway := billing.NewPaystackGateway(billing.PaystackConfig{SecretKey: paystackSecret})
	checkout := &fakeCheckout{}
	h := NewPaystackHandler(gateway, checkout)
	body := `{"event":"charge.success","data":{"id":1,"reference":"TXN-P1"}}`
	sig := billing.SignPaystackPayload([]byte(body), paystackSecret)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(h, PaystackSignatureHeader, sig, body).Code)
	}
	assert.Equal(t, []string{"TXN-P1", "TXN-P1", "TXN-P1"}, checkout.verified)
	assert.Equal(t, 3.0, testutil.ToFloat64(telemetry.Business.WebhookReceived.WithLabelValues(billing.GatewayPaystack, "charge.success")))
}

func TestFlutterwaveWebhook(t *testing.T) {
	useBusinessMetrics(t)
	gateway := billing.NewFlutterwaveGateway(billing.FlutterwaveConfig{SecretKey: "FLWSECK_TEST", WebhookHash: flutterwaveHash})
	checkout := &fakeCheckout{}
	h := NewFlutterwaveHandler(gateway, checkout)
	body := `{"event":"charge.completed","data":{"id":285959875,"tx_ref":"TXN-F1","status":"successful"}}`

	rec := post(h, FlutterwaveSignatureHeader, "wrong-hash", body)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, checkout.verified)

	rec = post(h, FlutterwaveSignatureHeader, flutterwaveHash, body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"TXN-F1"}, checkout.verified)
}

func TestWebhook_VerificationFailureIsAcknowledged(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantFailure string
	}{
		{name: "unknown reference", err: domain.Errorf(domain.ENOTFOUND, "", "No payment found"), wantFailure: "unknown_reference"},
		{name: "gateway down", err: domain.Errorf(domain.EUNAVAILABLE, "", "Payment could not be verified"), wantFailure: "verification_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useBusinessMetrics(t)
			checkout := &fakeCheckout{verifyErr: tt.err}
			h := NewFlutterwaveHandler(billing.NewFlutterwaveGateway(billing.FlutterwaveConfig{WebhookHash: flutterwaveHash}), checkout)

			rec := post(h, FlutterwaveSignatureHeader, flutterwaveHash, `{"event":"charge.completed","data":{"id":1,"tx_ref":"TXN-F1"}}`)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.Business.WebhookFailed.WithLabelValues(billing.GatewayFlutterwave, tt.wantFailure)))
		})
	}
}

func signStripe(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    stripeSecret,
		Timestamp: time.Now(),
	})
	require.NotNil(t, signed)
	return signed.Header
}

func TestStripeWebhook(t *testing.T) {
	gateway := billing.NewStripeGateway(billing.StripeConfig{APIKey: "sk_test_123", WebhookSecret: stripeSecret})

	tests := []struct {
		name         string
		body         string
		providers    map[string]string
		wantVerified []string
	}{
		{
			name:         "reference from metadata",
			body:         `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent","metadata":{"transaction_reference":"TXN-S1"}}}}`,
			wantVerified: []string{"TXN-S1"},
		},
		{
			name:         "reference resolved from intent id",
			body:         `{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_2","object":"payment_intent"}}}`,
			providers:    map[string]string{"stripe:pi_2": "TXN-S2"},
			wantVerified: []string{"TXN-S2"},
		},
		{
			name: "unresolvable intent",
			body: `{"id":"evt_3","object":"event","type":"payment_intent.canceled","data":{"object":{"id":"pi_3","object":"payment_intent"}}}`,
		},
		{
			name: "unrelated event",
			body: `{"id":"evt_4","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useBusinessMetrics(t)
			checkout := &fakeCheckout{providers: tt.providers}
			h := NewStripeHandler(gateway, checkout)

			rec := post(h, StripeSignatureHeader, signStripe(t, tt.body), tt.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantVerified, checkout.verified)
		})
	}
}

func TestStripeWebhook_BadSignature(t *testing.T) {
	useBusinessMetrics(t)
	gateway := billing.NewStripeGateway(billing.StripeConfig{APIKey: "sk_test_123", WebhookSecret: stripeSecret})
	checkout := &fakeCheckout{}
	h := NewStripeHandler(gateway, checkout)
	body := `{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_1","object":"payment_intent"}}}`

	rec := post(h, StripeSignatureHeader, "t=1,v1=deadbeef", body)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, checkout.verified)
	assert.Equal(t, 1.0, testutil.ToFloat64(telemetry.Business.WebhookFailed.WithLabelValues(billing.GatewayStripe, "invalid_signature")))
}
