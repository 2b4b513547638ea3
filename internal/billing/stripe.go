package billing

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/paymentintent"
	"github.com/stripe/stripe-go/v83/refund"
	"github.com/stripe/stripe-go/v83/webhook"
)

const GatewayStripe = "stripe"

// stripeAPI is the slice of the Stripe SDK the gateway uses.
type stripeAPI interface {
	NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	NewRefund(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeSDK struct{}

func (stripeSDK) NewPaymentIntent(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (stripeSDK) GetPaymentIntent(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Get(id, params)
}

func (stripeSDK) NewRefund(params *stripe.RefundParams) (*stripe.Refund, error) {
	return refund.New(params)
}

// StripeGateway implements Gateway with Stripe PaymentIntents. The shopper
// confirms on the client with the returned ClientSecret; the PaymentIntent
// id is the provider reference used for verification.
type StripeGateway struct {
	api           stripeAPI
	webhookSecret string
}

// NewStripeGateway sets the SDK's global key and returns a gateway.
func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	stripe.Key = cfg.APIKey
	return &StripeGateway{
		api:           stripeSDK{},
		webhookSecret: cfg.WebhookSecret,
	}
}

func (g *StripeGateway) Name() string { return GatewayStripe }

func (g *StripeGateway) Initialize(ctx context.Context, params InitializeParams) (*Authorization, error) {
	piParams := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(params.AmountCents),
		Currency: stripe.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if params.CustomerEmail != "" {
		piParams.ReceiptEmail = stripe.String(params.CustomerEmail)
	}
	piParams.Context = ctx
	piParams.SetIdempotencyKey(params.Reference)
	piParams.AddMetadata("transaction_reference", params.Reference)
	for k, v := range params.Metadata {
		piParams.AddMetadata(k, v)
	}

	pi, err := g.api.NewPaymentIntent(piParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &Authorization{
		ClientSecret:      pi.ClientSecret,
		ProviderReference: pi.ID,
	}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, params VerifyParams) (*Verification, error) {
	if params.ProviderReference == "" {
		return nil, ErrTransactionNotFound
	}

	getParams := &stripe.PaymentIntentParams{}
	getParams.Context = ctx
	pi, err := g.api.GetPaymentIntent(params.ProviderReference, getParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	raw, _ := json.Marshal(pi)
	v := &Verification{
		Status:           stripeStatus(pi),
		GatewayReference: pi.ID,
		AmountCents:      pi.Amount,
		Currency:         strings.ToUpper(string(pi.Currency)),
		Raw:              raw,
	}
	if len(pi.PaymentMethodTypes) > 0 {
		v.Channel = pi.PaymentMethodTypes[0]
	}
	if pi.LastPaymentError != nil {
		v.Message = pi.LastPaymentError.Msg
	}
	return v, nil
}

// stripeStatus treats a PaymentIntent that was canceled, or that fell back
// to requires_payment_method after a failed attempt, as declined.
func stripeStatus(pi *stripe.PaymentIntent) VerificationStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSuccess
	case stripe.PaymentIntentStatusCanceled:
		return StatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return StatusFailed
		}
	}
	return StatusPending
}

func (g *StripeGateway) Refund(ctx context.Context, params RefundParams) (*Refund, error) {
	paymentIntentID := params.ProviderReference
	if paymentIntentID == "" {
		paymentIntentID = params.GatewayReference
	}
	if paymentIntentID == "" {
		return nil, ErrTransactionNotFound
	}

	refundParams := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	if params.AmountCents > 0 {
		refundParams.Amount = stripe.Int64(params.AmountCents)
	}
	refundParams.Context = ctx
	refundParams.SetIdempotencyKey("refund-" + params.Reference)

	r, err := g.api.NewRefund(refundParams)
	if err != nil {
		return nil, wrapStripeError(err)
	}

	return &Refund{
		ID:          r.ID,
		Status:      string(r.Status),
		AmountCents: r.Amount,
	}, nil
}

// VerifyWebhookSignature checks the Stripe-Signature header.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signature string) error {
	_, err := g.ConstructEvent(payload, signature)
	return err
}

// ConstructEvent verifies the signature and decodes the event.
func (g *StripeGateway) ConstructEvent(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, errors.Join(ErrInvalidWebhookSignature, err)
	}
	return event, nil
}

// wrapStripeError converts SDK errors into *StripeError.
func wrapStripeError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &StripeError{
			Message:       stripeErr.Msg,
			Code:          string(stripeErr.Code),
			DeclineCode:   string(stripeErr.DeclineCode),
			Type:          string(stripeErr.Type),
			RequestID:     stripeErr.RequestID,
			OriginalError: err,
		}
	}
	return &StripeError{
		Message:       err.Error(),
		Type:          "api_connection_error",
		OriginalError: err,
	}
}
