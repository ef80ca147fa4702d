package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidateAmount checks that v is a whole, non-negative number of base
// units (wei). field is used in the error message.
func ValidateAmount(field string, v decimal.Decimal) error {
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, field)
	}
	if !v.IsInteger() {
		return fmt.Errorf("%w: %s must be a whole number of base units", ErrInvalidInput, field)
	}
	return nil
}

// ParseAmount parses a decimal string and validates it with ValidateAmount.
func ParseAmount(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s is not a number", ErrInvalidInput, field)
	}
	if err := ValidateAmount(field, v); err != nil {
		return decimal.Zero, err
	}
	return v, nil
}
