package routes

import (
	"github.com/dukerupert/mercato/internal/middleware"
	"github.com/dukerupert/mercato/internal/router"
	"github.com/dukerupert/mercato/internal/telemetry"
)

// RegisterAdminRoutes registers the admin order routes.
// All routes require a token carrying the admin role.
func RegisterAdminRoutes(r *router.Router, deps AdminDeps) {
	admin := r.Group(
		middleware.Authenticate(deps.Verifier),
		middleware.RequireAdmin,
		telemetry.SentryContextMiddleware(sentryUser),
	)

	admin.Patch("/api/v1/admin/orders/{number}/status", deps.OrderHandler.UpdateStatus)
	admin.Patch("/api/v1/admin/orders/{number}/shipping", deps.OrderHandler.UpdateShipping)
	admin.Post("/api/v1/admin/orders/{number}/refund", deps.OrderHandler.Refund)
}
