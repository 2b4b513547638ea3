package routes

import (
	"context"
	"net/http"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler/api"
	"github.com/dukerupert/mercato/internal/handler/webhook"
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// APIDeps contains dependencies for the customer-facing API routes
type APIDeps struct {
	Verifier *middleware.TokenVerifier

	// Limits checkout and the public payment endpoints per caller.
	StrictLimiter *middleware.RateLimiter

	CartHandler     *api.CartHandler
	CheckoutHandler *api.CheckoutHandler
	OrderHandler    *api.OrderHandler
	PaymentHandler  *api.PaymentHandler
}

// AdminDeps contains dependencies for admin routes
type AdminDeps struct {
	Verifier     *middleware.TokenVerifier
	OrderHandler *api.AdminOrderHandler
}

// WebhookDeps contains dependencies for webhook routes. A nil handler
// leaves that gateway's route unregistered.
type WebhookDeps struct {
	PaystackHandler    *webhook.Handler
	FlutterwaveHandler *webhook.Handler
	StripeHandler      *webhook.Handler
}

// OpsDeps contains the health and metrics endpoints.
type OpsDeps struct {
	HealthHandler  http.Handler
	MetricsHandler http.Handler
}

// sentryUser tags captured errors with the authenticated caller.
func sentryUser(ctx context.Context) *telemetry.UserInfo {
	actor, ok := domain.ActorFromContext(ctx)
	if !ok {
		return nil
	}
	return &telemetry.UserInfo{ID: actor.CustomerID.String(), Role: string(actor.Role)}
}
