// Package domain provides core business types, errors and context helpers for
// the order pipeline.
//
// Services never look up the caller on their own: the transport layer resolves
// an Actor and passes it explicitly into every call that needs it. The context
// helpers below only carry the actor between middleware and handlers.
package domain

import (
	"context"

	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey int

const (
	actorContextKey contextKey = iota
	requestIDContextKey
)

// Role is the caller's authorization role.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Actor identifies who is calling a service operation.
type Actor struct {
	CustomerID uuid.UUID
	Role       Role
}

// IsAdmin reports whether the actor may use the admin order path.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanAccess reports whether the actor may read or act on a record owned by
// ownerID. Admins can access every record.
func (a Actor) CanAccess(ownerID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.CustomerID != uuid.Nil && a.CustomerID == ownerID
}

// --- Actor Context Helpers ---

// NewContextWithActor returns a new context with the actor attached.
func NewContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext retrieves the actor from context.
// The boolean is false if no actor is present.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(Actor)
	return actor, ok
}

// MustActor retrieves the actor from context, panicking if not present.
// Handlers behind the Authenticate middleware can rely on it; the panic is
// caught by the recovery middleware.
func MustActor(ctx context.Context) Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		panic("actor required in context but not found")
	}
	return actor
}

// --- Request ID Context Helpers ---

// NewContextWithRequestID returns a new context with the request ID attached.
func NewContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, requestID)
}

// RequestIDFromContext retrieves the request ID from context.
// Returns empty string if no request ID is present.
func RequestIDFromContext(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDContextKey).(string)
	return requestID
}
