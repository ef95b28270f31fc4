package api

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var errAmountPrecision = errors.New("amount supports up to 2 decimals")

// parseAmount converts a decimal string such as "12.50" into minor units.
// Zero is always rejected, negatives only when signed is false.
func parseAmount(s string, signed bool) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("amount required")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.New("invalid amount")
	}

	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, errAmountPrecision
	}

	if !cents.BigInt().IsInt64() {
		return 0, errors.New("amount out of range")
	}

	v := cents.IntPart()

	switch {
	case v == 0:
		return 0, errors.New("amount must not be zero")
	case v < 0 && !signed:
		return 0, errors.New("amount must be > 0")
	}

	return v, nil
}
