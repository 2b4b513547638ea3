package middleware

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP returns the caller's address, preferring the first
// X-Forwarded-For hop and X-Real-IP set by the reverse proxy.
//
// These headers can be spoofed when the app is reachable directly.
func GetClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
