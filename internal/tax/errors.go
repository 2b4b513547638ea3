package tax

import "errors"

// ErrInvalidTaxRate is returned for rates outside [0, 1].
var ErrInvalidTaxRate = errors.New("tax: rate must be between 0 and 1")
