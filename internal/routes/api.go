package routes

import (
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/router"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// RegisterAPIRoutes registers the cart, checkout, order and payment routes.
// Everything except the payment callbacks requires a bearer token.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	authed := r.Group(
		middleware.Authenticate(deps.Verifier),
		telemetry.SentryContextMiddleware(sentryUser),
	)

	// Cart
	authed.Get("/api/v1/cart", deps.CartHandler.Get)
	authed.Delete("/api/v1/cart", deps.CartHandler.Clear)
	authed.Post("/api/v1/cart/items", deps.CartHandler.AddItem)
	authed.Patch("/api/v1/cart/items/{id}", deps.CartHandler.UpdateItem)
	authed.Delete("/api/v1/cart/items/{id}", deps.CartHandler.RemoveItem)

	// Checkout
	authed.Post("/api/v1/checkout/preview", deps.CheckoutHandler.Preview)
	authed.Post("/api/v1/checkout", deps.CheckoutHandler.Checkout, deps.StrictLimiter.Middleware)

	// Orders
	authed.Get("/api/v1/orders", deps.OrderHandler.List)
	authed.Get("/api/v1/orders/{number}", deps.OrderHandler.Get)
	authed.Get("/api/v1/orders/{number}/track", deps.OrderHandler.Track)
	authed.Post("/api/v1/orders/{number}/cancel", deps.OrderHandler.Cancel)
	authed.Post("/api/v1/orders/{number}/retry-payment", deps.OrderHandler.RetryPayment, deps.StrictLimiter.Middleware)

	// Payment returns are public; verification is idempotent
	public := r.Group(deps.StrictLimiter.Middleware)
	public.Get("/api/v1/payments/callback", deps.PaymentHandler.Callback)
	public.Post("/api/v1/payments/verify", deps.PaymentHandler.Verify)
}

// RegisterOpsRoutes registers unauthenticated operational endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Handle("GET", "/health", deps.HealthHandler)
	r.Handle("GET", "/metrics", deps.MetricsHandler)
}
