package billing

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	GatewayFlutterwave        = "flutterwave"
	defaultFlutterwaveBaseURL = "https://api.flutterwave.com/v3"
)

// FlutterwaveConfig contains configuration for the Flutterwave gateway.
type FlutterwaveConfig struct {
	SecretKey string
	// WebhookHash is the secret hash configured on the dashboard and echoed
	// back in the verif-hash header.
	WebhookHash string
	BaseURL     string
	HTTPClient  *http.Client
}

// FlutterwaveGateway implements Gateway, Refunder and WebhookVerifier
// against the Flutterwave v3 API. Flutterwave speaks major units, so
// amounts are converted with decimal at the boundary.
type FlutterwaveGateway struct {
	client      restClient
	webhookHash string
}

func NewFlutterwaveGateway(cfg FlutterwaveConfig) *FlutterwaveGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultFlutterwaveBaseURL
	}
	return &FlutterwaveGateway{
		client:      newRESTClient(GatewayFlutterwave, baseURL, cfg.SecretKey, cfg.HTTPClient),
		webhookHash: cfg.WebhookHash,
	}
}

func (g *FlutterwaveGateway) Name() string { return GatewayFlutterwave }

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type flutterwaveTransaction struct {
	ID              int64           `json:"id"`
	TxRef           string          `json:"tx_ref"`
	FlwRef          string          `json:"flw_ref"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Status          string          `json:"status"`
	PaymentType     string          `json:"payment_type"`
	ProcessorResult string          `json:"processor_response"`
	Card            struct {
		Type        string `json:"type"`
		Last4Digits string `json:"last_4digits"`
		Issuer      string `json:"issuer"`
	} `json:"card"`
}

func (g *FlutterwaveGateway) Initialize(ctx context.Context, params InitializeParams) (*Authorization, error) {
	meta := map[string]string{"transaction_reference": params.Reference}
	for k, v := range params.Metadata {
		meta[k] = v
	}

	body := map[string]any{
		"tx_ref":       params.Reference,
		"amount":       minorToMajorString(params.AmountCents),
		"currency":     params.Currency,
		"redirect_url": params.CallbackURL,
		"customer": map[string]string{
			"email":       params.CustomerEmail,
			"name":        params.CustomerName,
			"phonenumber": params.CustomerPhone,
		},
		"meta": meta,
	}

	raw, err := g.client.do(ctx, http.MethodPost, "/payments", body)
	if err != nil {
		return nil, err
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("flutterwave: decode payment response: %w", err)
	}
	if env.Status != "success" {
		return nil, &ProviderError{Gateway: GatewayFlutterwave, StatusCode: http.StatusOK, Message: env.Message}
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("flutterwave: decode payment data: %w", err)
	}

	return &Authorization{AuthorizationURL: data.Link}, nil
}

func (g *FlutterwaveGateway) Verify(ctx context.Context, params VerifyParams) (*Verification, error) {
	path := "/transactions/verify_by_reference?tx_ref=" + url.QueryEscape(params.Reference)
	raw, err := g.client.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("flutterwave: decode verify response: %w", err)
	}
	if env.Status != "success" {
		return nil, &ProviderError{Gateway: GatewayFlutterwave, StatusCode: http.StatusOK, Message: env.Message}
	}

	var tx flutterwaveTransaction
	if err := json.Unmarshal(env.Data, &tx); err != nil {
		return nil, fmt.Errorf("flutterwave: decode transaction: %w", err)
	}

	return &Verification{
		Status:           flutterwaveStatus(tx.Status),
		GatewayReference: strconv.FormatInt(tx.ID, 10),
		AmountCents:      tx.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
		Currency:         tx.Currency,
		Channel:          tx.PaymentType,
		CardType:         tx.Card.Type,
		Last4:            tx.Card.Last4Digits,
		Bank:             tx.Card.Issuer,
		Message:          tx.ProcessorResult,
		Raw:              json.RawMessage(raw),
	}, nil
}

func flutterwaveStatus(status string) VerificationStatus {
	switch strings.ToLower(status) {
	case "successful":
		return StatusSuccess
	case "failed":
		return StatusFailed
	default:
		return StatusPending
	}
}

// Refund refunds by Flutterwave transaction id, which is the gateway
// reference stored when the payment was verified.
func (g *FlutterwaveGateway) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	if params.GatewayReference == "" {
		return nil, fmt.Errorf("flutterwave: refund needs the transaction id: %w", ErrTransactionNotFound)
	}

	body := map[string]any{}
	if params.AmountCents > 0 {
		body["amount"] = minorToMajorString(params.AmountCents)
	}

	raw, err := g.client.do(ctx, http.MethodPost, "/transactions/"+url.PathEscape(params.GatewayReference)+"/refund", body)
	if err != nil {
		return nil, err
	}

	var env flutterwaveEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("flutterwave: decode refund response: %w", err)
	}
	if env.Status != "success" {
		return nil, &ProviderError{Gateway: GatewayFlutterwave, StatusCode: http.StatusOK, Message: env.Message}
	}

	var data struct {
		ID             int64           `json:"id"`
		Status         string          `json:"status"`
		AmountRefunded decimal.Decimal `json:"amount_refunded"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("flutterwave: decode refund data: %w", err)
	}

	return &Refund{
		ID:          strconv.FormatInt(data.ID, 10),
		Status:      data.Status,
		AmountCents: data.AmountRefunded.Mul(decimal.NewFromInt(100)).Round(0).IntPart(),
	}, nil
}

// VerifyWebhookSignature compares the verif-hash header with the
// configured secret hash.
func (g *FlutterwaveGateway) VerifyWebhookSignature(_ []byte, signature string) error {
	if signature == "" || g.webhookHash == "" {
		return ErrInvalidWebhookSignature
	}
	if subtle.ConstantTimeCompare([]byte(signature), []byte(g.webhookHash)) != 1 {
		return ErrInvalidWebhookSignature
	}
	return nil
}

func minorToMajorString(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
