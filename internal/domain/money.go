package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type Currency string

const CurrencyUSD Currency = "USD"

// minorUnitExp is the currency's minor-unit precision (cents).
const minorUnitExp = 2

// ParseAmount converts a client-supplied amount string ("10.00") into minor
// units. Anything that does not parse cleanly, carries sub-cent precision, or
// is not strictly positive fails with ErrInvalidAmount; amounts are never
// silently coerced to zero.
func ParseAmount(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("ParseAmount: %q: %w", s, ErrInvalidAmount)
	}
	if d.Exponent() < -minorUnitExp {
		return 0, fmt.Errorf("ParseAmount: %q has sub-cent precision: %w", s, ErrInvalidAmount)
	}
	minor := d.Shift(minorUnitExp)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("ParseAmount: %q: %w", s, ErrInvalidAmount)
	}
	if !minor.IsPositive() {
		return 0, fmt.Errorf("ParseAmount: %q must be greater than zero: %w", s, ErrInvalidAmount)
	}
	if !minor.BigInt().IsInt64() {
		return 0, fmt.Errorf("ParseAmount: %q overflows: %w", s, ErrInvalidAmount)
	}
	return minor.IntPart(), nil
}

// FormatAmount renders minor units as the decimal string the gateway wire
// format expects ("10.00").
func FormatAmount(minor int64) string {
	return decimal.New(minor, -minorUnitExp).StringFixed(minorUnitExp)
}
