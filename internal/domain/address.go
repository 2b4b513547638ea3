package domain

import (
	"encoding/json"
	"strings"
)

// Address is a postal address snapshotted onto an order.
type Address struct {
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Phone      string `json:"phone" validate:"required,max=30"`
	Line1      string `json:"address_line_1" validate:"required,max=255"`
	Line2      string `json:"address_line_2,omitempty" validate:"max=255"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"required,max=100"`
	PostalCode string `json:"postal_code,omitempty" validate:"max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// IsZero reports whether no address was given.
func (a Address) IsZero() bool {
	return a == Address{}
}

// FullName joins first and last name.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// MarshalAddress encodes an address for a JSONB column.
func MarshalAddress(a Address) ([]byte, error) {
	return json.Marshal(a)
}

// UnmarshalAddress decodes a JSONB address column. Empty input yields the
// zero address.
func UnmarshalAddress(data []byte) (Address, error) {
	var a Address
	if len(data) == 0 {
		return a, nil
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return Address{}, err
	}
	return a, nil
}
