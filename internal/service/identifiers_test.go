package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderNumber(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		n := NewOrderNumber()
		assert.Regexp(t, `^ORD-[A-Z2-7]{12}$`, n)
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
}

func TestNewTransactionReference(t *testing.T) {
	now := time.Unix(1767225600, 0)
	a := NewTransactionReference(now)
	b := NewTransactionReference(now)

	assert.Regexp(t, `^TXN-[0-9A-F]{12}-1767225600$`, a)
	assert.NotEqual(t, a, b, "references are unique per attempt")
}

func TestNewRefundReference(t *testing.T) {
	assert.Regexp(t, `^RFD-[0-9A-F]{8}-1767225600$`, NewRefundReference(time.Unix(1767225600, 0)))
}
