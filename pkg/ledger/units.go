package ledger

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// ParseUnits converts a whole-token amount such as "1.5" into smallest
// units (1.5 NFG = 1500000000000000000).
func ParseUnits(s string) (*uint256.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("parse token amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("token amount %q is negative", s)
	}
	scaled := d.Shift(TokenDecimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("token amount %q has more than %d decimal places", s, TokenDecimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, fmt.Errorf("token amount %q overflows 256 bits", s)
	}
	return v, nil
}

// FormatUnits renders smallest units as a whole-token decimal string
// without trailing zeros.
func FormatUnits(v *uint256.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v.ToBig(), -TokenDecimals).String()
}

// ParseAmount parses a smallest-unit integer written in decimal.
func ParseAmount(s string) (*uint256.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("amount is required")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return v, nil
}
