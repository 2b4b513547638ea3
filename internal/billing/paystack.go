package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

const (
	GatewayPaystack        = "paystack"
	defaultPaystackBaseURL = "https://api.paystack.co"
)

// PaystackConfig contains configuration for the Paystack gateway.
type PaystackConfig struct {
	SecretKey string
	BaseURL   string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
}

// PaystackGateway implements Gateway, Refunder and WebhookVerifier against
// the Paystack transactions API. Amounts are sent in kobo.
type PaystackGateway struct {
	client    restClient
	secretKey string
}

func NewPaystackGateway(cfg PaystackConfig) *PaystackGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultPaystackBaseURL
	}
	return &PaystackGateway{
		client:    newRESTClient(GatewayPaystack, baseURL, cfg.SecretKey, cfg.HTTPClient),
		secretKey: cfg.SecretKey,
	}
}

func (g *PaystackGateway) Name() string { return GatewayPaystack }

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Channel         string `json:"channel"`
	GatewayResponse string `json:"gateway_response"`
	Authorization   struct {
		CardType string `json:"card_type"`
		Last4    string `json:"last4"`
		Bank     string `json:"bank"`
	} `json:"authorization"`
}

func (g *PaystackGateway) Initialize(ctx context.Context, params InitializeParams) (*Authorization, error) {
	metadata := map[string]string{"transaction_reference": params.Reference}
	for k, v := range params.Metadata {
		metadata[k] = v
	}

	body := map[string]any{
		"email":     params.CustomerEmail,
		"amount":    params.AmountCents,
		"reference": params.Reference,
		"currency":  params.Currency,
		"metadata":  metadata,
	}
	if params.CallbackURL != "" {
		body["callback_url"] = params.CallbackURL
	}

	raw, err := g.client.do(ctx, http.MethodPost, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack: decode initialize response: %w", err)
	}
	if !env.Status {
		return nil, &ProviderError{Gateway: GatewayPaystack, StatusCode: http.StatusOK, Message: env.Message}
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("paystack: decode initialize data: %w", err)
	}

	return &Authorization{
		AuthorizationURL:  data.AuthorizationURL,
		ProviderReference: data.AccessCode,
	}, nil
}

func (g *PaystackGateway) Verify(ctx context.Context, params VerifyParams) (*Verification, error) {
	raw, err := g.client.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(params.Reference), nil)
	if err != nil {
		return nil, err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack: decode verify response: %w", err)
	}
	if !env.Status {
		return nil, &ProviderError{Gateway: GatewayPaystack, StatusCode: http.StatusOK, Message: env.Message}
	}

	var tx paystackTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("paystack: decode transaction: %w", err)
	}

	v := &Verification{
		Status:           paystackStatus(tx.Status),
		GatewayReference: strconv.FormatInt(tx.ID, 10),
		AmountCents:      tx.Amount,
		Currency:         tx.Currency,
		Channel:          tx.Channel,
		CardType:         tx.Authorization.CardType,
		Last4:            tx.Authorization.Last4,
		Bank:             tx.Authorization.Bank,
		Message:          tx.GatewayResponse,
		Raw:              json.RawMessage(raw),
	}
	return v, nil
}

// paystackStatus maps transaction statuses. "abandoned" and "ongoing" mean
// the shopper has not finished paying; only "failed" and "reversed" are
// treated as declines.
func paystackStatus(status string) VerificationStatus {
	switch status {
	case "success":
		return StatusSuccess
	case "failed", "reversed":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (g *PaystackGateway) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	body := map[string]any{"transaction": params.Reference}
	if params.AmountCents > 0 {
		body["amount"] = params.AmountCents
	}
	if params.Reason != "" {
		body["merchant_note"] = params.Reason
	}

	raw, err := g.client.do(ctx, http.MethodPost, "/refund", body)
	if err != nil {
		return nil, err
	}

	var env paystackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack: decode refund response: %w", err)
	}
	if !env.Status {
		return nil, &ProviderError{Gateway: GatewayPaystack, StatusCode: http.StatusOK, Message: env.Message}
	}

	var data struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("paystack: decode refund data: %w", err)
	}

	return &Refund{
		ID:          strconv.FormatInt(data.ID, 10),
		Status:      data.Status,
		AmountCents: data.Amount,
	}, nil
}

// VerifyWebhookSignature checks the x-paystack-signature header, an
// HMAC-SHA512 of the raw body keyed with the secret key.
func (g *PaystackGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	if signature == "" || g.secretKey == "" {
		return ErrInvalidWebhookSignature
	}
	expected := SignPaystackPayload(payload, g.secretKey)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidWebhookSignature
	}
	return nil
}

// SignPaystackPayload returns the signature Paystack would send for payload.
func SignPaystackPayload(payload []byte, secretKey string) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
