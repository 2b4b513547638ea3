// Package shipping prices delivery for a checkout. The fee is a pure
// function of the destination and the cart.
package shipping

import "context"

// Calculator prices shipping for a cart going to an address.
type Calculator interface {
	Quote(ctx context.Context, params QuoteParams) (*Quote, error)
}

// QuoteParams contains what a calculator may price on.
type QuoteParams struct {
	Destination   Address
	SubtotalCents int64
	ItemCount     int32
}

// Address is the destination for pricing purposes. A zero Address means
// the shopper has not chosen one yet.
type Address struct {
	City    string
	State   string
	Country string
}

// IsZero reports whether no destination was given.
func (a Address) IsZero() bool {
	return a == Address{}
}

// Quote is a priced shipping option.
type Quote struct {
	CostCents        int64
	ServiceName      string
	EstimatedDaysMin int
	EstimatedDaysMax int
}
