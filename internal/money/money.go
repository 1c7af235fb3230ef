// Package money holds currency amounts as integer cents.
// Decimal text only exists at the HTTP boundary; everything inside the
// service adds and subtracts whole cents.
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Cents is an amount in the smallest currency unit (centavos).
type Cents int64

// Zero is the zero amount.
const Zero Cents = 0

var (
	hundred = decimal.NewFromInt(100)
	maxInt  = decimal.NewFromInt(math.MaxInt64)
	minInt  = decimal.NewFromInt(math.MinInt64)
)

// ErrOverflow is returned when a result does not fit in int64 cents.
var ErrOverflow = errors.New("amount out of range")

// ParseError is returned when a decimal string cannot be turned into cents.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

// Add returns c + other.
func (c Cents) Add(other Cents) Cents { return c + other }

// Sub returns c - other. The result may be negative.
func (c Cents) Sub(other Cents) Cents { return c - other }

// SubFloor returns c - other clamped at zero.
func (c Cents) SubFloor(other Cents) Cents {
	if other >= c {
		return 0
	}
	return c - other
}

// Mul multiplies by a quantity. Use MulChecked for unbounded input.
func (c Cents) Mul(qty int64) Cents { return c * Cents(qty) }

// AddChecked returns c + other, or ErrOverflow if the sum wraps.
func (c Cents) AddChecked(other Cents) (Cents, error) {
	r := c + other
	if (other > 0 && r < c) || (other < 0 && r > c) {
		return 0, ErrOverflow
	}
	return r, nil
}

// MulChecked returns c * qty, or ErrOverflow if the product wraps.
func (c Cents) MulChecked(qty int64) (Cents, error) {
	p := decimal.NewFromInt(int64(c)).Mul(decimal.NewFromInt(qty))
	if p.GreaterThan(maxInt) || p.LessThan(minInt) {
		return 0, ErrOverflow
	}
	return Cents(p.IntPart()), nil
}

// IsPositive reports whether c > 0.
func (c Cents) IsPositive() bool { return c > 0 }

// IsNegative reports whether c < 0.
func (c Cents) IsNegative() bool { return c < 0 }

// Int64 returns the raw number of cents.
func (c Cents) Int64() int64 { return int64(c) }

// String formats the amount as a decimal string, e.g. "42.50".
func (c Cents) String() string { return ToDecimalString(c) }

// MarshalJSON encodes the amount as a decimal string.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ToDecimalString(c) + `"`), nil
}

// UnmarshalJSON accepts a decimal string such as "42.50".
func (c *Cents) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &ParseError{Input: s, Reason: "amount must be a decimal string"}
	}
	v, err := FromDecimalString(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Sum adds all values, failing with ErrOverflow instead of wrapping.
func Sum(values ...Cents) (Cents, error) {
	var total Cents
	for _, v := range values {
		var err error
		if total, err = total.AddChecked(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}

// FromDecimalString parses "42.5", "42.50" or "42,50" into cents.
// At most two fractional digits are accepted.
func FromDecimalString(s string) (Cents, error) {
	raw := s
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &ParseError{Input: raw, Reason: "empty"}
	}
	// Brazilian terminals send a decimal comma; a string holding both
	// separators is ambiguous and rejected.
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			return 0, &ParseError{Input: raw, Reason: "ambiguous separators"}
		}
		s = strings.Replace(s, ",", ".", 1)
	}
	if strings.ContainsAny(s, "eE") {
		return 0, &ParseError{Input: raw, Reason: "exponent notation not allowed"}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, &ParseError{Input: raw, Reason: "not a number"}
	}

	scaled := d.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, &ParseError{Input: raw, Reason: "more than two decimal places"}
	}
	if scaled.GreaterThan(maxInt) || scaled.LessThan(minInt) {
		return 0, &ParseError{Input: raw, Reason: "out of range"}
	}
	return Cents(scaled.IntPart()), nil
}

// ToDecimalString formats cents with exactly two fractional digits.
func ToDecimalString(c Cents) string {
	return decimal.New(int64(c), -2).StringFixed(2)
}
