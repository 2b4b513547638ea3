package service

import (
	"crypto/rand"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewOrderNumber returns "ORD-" followed by 12 base32 characters taken
// from a fresh UUID. Uniqueness is enforced by the orders table.
func NewOrderNumber() string {
	id := uuid.New()
	return "ORD-" + orderNumberEncoding.EncodeToString(id[:])[:12]
}

// NewTransactionReference returns a payment reference unique per attempt,
// e.g. TXN-9F2C4A1B7E3D-1767225600.
func NewTransactionReference(now time.Time) string {
	return fmt.Sprintf("TXN-%s-%d", randomHex(6), now.Unix())
}

// NewRefundReference returns a local reference for a refund the gateway
// did not number.
func NewRefundReference(now time.Time) string {
	return fmt.Sprintf("RFD-%s-%d", randomHex(4), now.Unix())
}

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand does not fail on supported platforms.
		u := uuid.New()
		copy(b, u[:])
	}
	return strings.ToUpper(hex.EncodeToString(b))
}
