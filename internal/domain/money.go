/**
 * @description
 * Monetary values are stored as `int64` minor units (cents) to avoid
 * floating-point inaccuracies with financial data. ParseAmount and String
 * convert between the wire representation ("10.10") and minor units at the
 * API boundary; everything below the handlers works in cents.
 */

package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a monetary value in minor units (cents).
type Amount int64

// ErrMalformedAmount indicates an amount string that is not a plain decimal
// with at most two fractional digits.
var ErrMalformedAmount = errors.New("malformed amount")

// ParseAmount converts a decimal string such as "10.10" into cents.
// Negative values, exponents, currency symbols, and more than two decimal
// places are rejected.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return 0, ErrMalformedAmount
	}

	whole, frac := s, ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		whole, frac = s[:idx], s[idx+1:]
		if frac == "" {
			return 0, ErrMalformedAmount
		}
	}
	if whole == "" || len(frac) > 2 {
		return 0, ErrMalformedAmount
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, ErrMalformedAmount
	}

	cents := int64(0)
	if frac != "" {
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, ErrMalformedAmount
		}
		if len(frac) == 1 {
			cents *= 10
		}
	}

	if units > (1<<62)/100 {
		return 0, ErrMalformedAmount
	}
	return Amount(units*100 + cents), nil
}

// String renders the amount with exactly two decimal places.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// MarshalJSON encodes the amount as a decimal string so clients never see
// raw minor units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(a.String())), nil
}

// UnmarshalJSON accepts the same decimal strings ParseAmount accepts.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return ErrMalformedAmount
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
