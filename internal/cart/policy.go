package cart

import (
	"errors"
	"fmt"
)

var ErrInvalidQuantity = errors.New("quantity must be a positive integer")

// QuantityPolicy decides what happens to a quantity below 1.
type QuantityPolicy int

const (
	// PolicyClamp turns anything below 1 into 1.
	PolicyClamp QuantityPolicy = iota
	// PolicyAsIs stores the value unchanged.
	PolicyAsIs
	// PolicyReject fails the operation with ErrInvalidQuantity.
	PolicyReject
)

func ParseQuantityPolicy(s string) (QuantityPolicy, error) {
	switch s {
	case "", "clamp":
		return PolicyClamp, nil
	case "as_is":
		return PolicyAsIs, nil
	case "reject":
		return PolicyReject, nil
	default:
		return 0, fmt.Errorf("quantity policy %q: want clamp, as_is or reject", s)
	}
}

func (p QuantityPolicy) String() string {
	switch p {
	case PolicyAsIs:
		return "as_is"
	case PolicyReject:
		return "reject"
	default:
		return "clamp"
	}
}

func (p QuantityPolicy) apply(q int) (int, error) {
	if q >= 1 {
		return q, nil
	}
	switch p {
	case PolicyAsIs:
		return q, nil
	case PolicyReject:
		return 0, fmt.Errorf("%w: got %d", ErrInvalidQuantity, q)
	default:
		return 1, nil
	}
}
