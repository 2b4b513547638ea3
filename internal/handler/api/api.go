// Package api implements the JSON endpoints of the order pipeline: cart,
// checkout, orders, payment callbacks and the admin order path.
package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/handler"
)

// requireActor returns the authenticated caller or writes a 401.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := domain.ActorFromContext(r.Context())
	if !ok {
		handler.UnauthorizedResponse(w, r)
		return domain.Actor{}, false
	}
	return actor, true
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, domain.NewValidationError("", name, "must be a UUID")
	}
	return id, nil
}

func queryInt32(r *http.Request, name string) (int32, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError("", name, "must be a non-negative integer")
	}
	return int32(n), nil
}

// decodeOptional decodes a JSON body when one was sent.
func decodeOptional(r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return handler.Validate(dst)
	}
	return handler.Decode(r, dst)
}
