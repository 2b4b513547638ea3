package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/mercato/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier(testSecret, "mercato-test")
	want := domain.Actor{CustomerID: uuid.New(), Role: domain.RoleAdmin}

	token, err := v.Issue(want, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier(testSecret, "mercato-test")
	actor := domain.Actor{CustomerID: uuid.New(), Role: domain.RoleCustomer}

	sign := func(claims jwt.Claims, method jwt.SigningMethod, key interface{}) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := func() jwt.RegisteredClaims {
		return jwt.RegisteredClaims{
			Subject:   actor.CustomerID.String(),
			Issuer:    "mercato-test",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}
	}

	expired, err := v.Issue(actor, -time.Minute)
	require.NoError(t, err)
	otherIssuer, err := NewTokenVerifier(testSecret, "someone-else").Issue(actor, time.Hour)
	require.NoError(t, err)
	otherKey, err := NewTokenVerifier("another-secret-another-secret-00", "mercato-test").Issue(actor, time.Hour)
	require.NoError(t, err)

	noExpiry := valid()
	noExpiry.ExpiresAt = nil
	badSubject := valid()
	badSubject.Subject = "not-a-uuid"

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not.a.token"},
		{name: "expired", token: expired},
		{name: "wrong issuer", token: otherIssuer},
		{name: "wrong key", token: otherKey},
		{name: "no expiry", token: sign(&Claims{RegisteredClaims: noExpiry}, jwt.SigningMethodHS256, []byte(testSecret))},
		{name: "subject not a uuid", token: sign(&Claims{RegisteredClaims: badSubject}, jwt.SigningMethodHS256, []byte(testSecret))},
		{name: "unknown role", token: sign(&Claims{Role: "root", RegisteredClaims: valid()}, jwt.SigningMethodHS256, []byte(testSecret))},
		{name: "other algorithm", token: sign(&Claims{RegisteredClaims: valid()}, jwt.SigningMethodHS512, []byte(testSecret))},
		{name: "alg none", token: sign(&Claims{RegisteredClaims: valid()}, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenVerifier_DefaultsToCustomerRole(t *testing.T) {
	v := NewTokenVerifier(testSecret, "")
	id := uuid.New()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   id.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{CustomerID: id, Role: domain.RoleCustomer}, actor)
}

func TestAuthenticate(t *testing.T) {
	v := NewTokenVerifier(testSecret, "mercato-test")
	actor := domain.Actor{CustomerID: uuid.New(), Role: domain.RoleCustomer}
	token, err := v.Issue(actor, time.Hour)
	require.NoError(t, err)

	var seen domain.Actor
	h := Authenticate(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = domain.MustActor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "valid", header: "Bearer " + token, want: http.StatusNoContent},
		{name: "lowercase scheme", header: "bearer " + token, want: http.StatusNoContent},
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized},
		{name: "tampered", header: "Bearer " + token + "x", want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = domain.Actor{}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, actor, seen)
			} else {
				assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name  string
		actor *domain.Actor
		want  int
	}{
		{name: "anonymous", want: http.StatusUnauthorized},
		{name: "customer", actor: &domain.Actor{CustomerID: uuid.New(), Role: domain.RoleCustomer}, want: http.StatusForbidden},
		{name: "admin", actor: &domain.Actor{CustomerID: uuid.New(), Role: domain.RoleAdmin}, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/admin/orders/x/status", nil)
			if tt.actor != nil {
				req = req.WithContext(domain.NewContextWithActor(req.Context(), *tt.actor))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
