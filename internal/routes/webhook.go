package routes

import (
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/router"
)

// RegisterWebhookRoutes registers the gateway webhook routes.
//
// Note: Webhook routes do NOT have authentication middleware.
// Each webhook handler verifies the gateway's request signature.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	hooks := r.Group(middleware.MaxBodySize(middleware.WebhookMaxBodySize))

	if deps.PaystackHandler != nil {
		hooks.Post("/webhooks/paystack", deps.PaystackHandler.HandleWebhook)
	}
	if deps.FlutterwaveHandler != nil {
		hooks.Post("/webhooks/flutterwave", deps.FlutterwaveHandler.HandleWebhook)
	}
	if deps.StripeHandler != nil {
		hooks.Post("/webhooks/stripe", deps.StripeHandler.HandleWebhook)
	}
}
