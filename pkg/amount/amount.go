package amount

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount marks input that is not a valid non-negative decimal.
var ErrInvalidAmount = errors.New("invalid amount")

// ToRaw converts a human decimal string into the token's smallest-unit
// integer string by shifting the decimal point right. Fractional digits
// beyond the token's precision are truncated, never rounded. All
// arithmetic is decimal; binary floating point would drift on-chain.
func ToRaw(value string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("%w: %q is negative", ErrInvalidAmount, value)
	}
	return d.Shift(decimals).Truncate(0).String(), nil
}

// ToDisplay converts a smallest-unit integer string back into a human
// decimal string, trimming trailing zeros.
func ToDisplay(raw string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return trimZeros(d.Shift(-decimals).String()), nil
}

// IsPositive reports whether value parses as a decimal strictly greater
// than zero. Malformed input counts as non-positive.
func IsPositive(value string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return false
	}
	return d.IsPositive()
}

func trimZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
