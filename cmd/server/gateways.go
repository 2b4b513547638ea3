package main

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/mercato/internal"
	"github.com/dukerupert/mercato/internal/billing"
	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler/webhook"
	"github.com/dukerupert/mercato/internal/routes"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// webhookSources holds the configured gateways that can sign webhooks.
type webhookSources struct {
	paystack    *billing.PaystackGateway
	flutterwave *billing.FlutterwaveGateway
	stripe      *billing.StripeGateway
}

func (s webhookSources) deps(checkout domain.CheckoutService) routes.WebhookDeps {
	var deps routes.WebhookDeps
	if s.paystack != nil {
		deps.PaystackHandler = webhook.NewPaystackHandler(s.paystack, checkout)
	}
	if s.flutterwave != nil {
		deps.FlutterwaveHandler = webhook.NewFlutterwaveHandler(s.flutterwave, checkout)
	}
	if s.stripe != nil {
		deps.StripeHandler = webhook.NewStripeHandler(s.stripe, checkout)
	}
	return deps
}

// newGateways registers every gateway with a configured secret. Outside
// prod the mock gateway stands in when none is configured.
func newGateways(cfg *internal.Config, logger *slog.Logger) (*billing.Registry, webhookSources, error) {
	client := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &telemetry.HTTPTransport{},
	}

	var (
		gateways []billing.Gateway
		sources  webhookSources
	)
	p := cfg.Payments

	if p.Paystack.SecretKey != "" {
		sources.paystack = billing.NewPaystackGateway(billing.PaystackConfig{
			SecretKey:  p.Paystack.SecretKey,
			BaseURL:    p.Paystack.BaseURL,
			HTTPClient: client,
		})
		gateways = append(gateways, sources.paystack)
	}
	if p.Flutterwave.SecretKey != "" {
		sources.flutterwave = billing.NewFlutterwaveGateway(billing.FlutterwaveConfig{
			SecretKey:   p.Flutterwave.SecretKey,
			WebhookHash: p.Flutterwave.WebhookHash,
			BaseURL:     p.Flutterwave.BaseURL,
			HTTPClient:  client,
		})
		gateways = append(gateways, sources.flutterwave)
	}
	if p.Stripe.SecretKey != "" {
		stripeConfig := billing.StripeConfig{APIKey: p.Stripe.SecretKey, WebhookSecret: p.Stripe.WebhookSecret}
		if err := stripeConfig.Validate(); err != nil {
			return nil, webhookSources{}, err
		}
		sources.stripe = billing.NewStripeGateway(stripeConfig)
		gateways = append(gateways, sources.stripe)
		logger.Info("Stripe gateway enabled", "test_mode", stripeConfig.IsTestMode())
	}

	if len(gateways) == 0 {
		if cfg.Env == "prod" {
			return nil, webhookSources{}, errors.New("no payment gateway configured")
		}
		logger.Warn("No payment gateway configured, using the mock gateway")
		gateways = append(gateways, billing.NewMockGateway())
	}

	registry := billing.NewRegistry(p.DefaultGateway, gateways...)
	if registry.Default() != p.DefaultGateway {
		logger.Warn("DEFAULT_GATEWAY is not configured, falling back", "requested", p.DefaultGateway, "default", registry.Default())
	}
	return registry, sources, nil
}
