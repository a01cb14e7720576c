// Package money provides a fixed-point amount type for ledger balances.
package money

import (
	"bytes"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept on every amount.
const Scale = 2

// Money is an immutable fixed-point amount. The zero value is 0.
type Money struct {
	d decimal.Decimal
}

// Zero is the zero amount.
var Zero = Money{}

// New returns a whole-unit amount.
func New(units int64) Money {
	return Money{d: decimal.NewFromInt(units)}
}

// FromDecimal rounds d to Scale digits.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// Parse reads a decimal string such as "500000" or "12.50".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if !d.Equal(d.Round(Scale)) {
		return Zero, fmt.Errorf("parse amount %q: more than %d fractional digits", s, Scale)
	}
	return Money{d: d}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool    { return m.d.Equal(o.d) }
func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }
func (m Money) IsPositive() bool      { return m.d.IsPositive() }
func (m Money) IsNegative() bool      { return m.d.IsNegative() }
func (m Money) IsZero() bool          { return m.d.IsZero() }

// IsWhole reports whether the amount has no fractional part.
func (m Money) IsWhole() bool { return m.d.Equal(m.d.Truncate(0)) }

// Units returns the integer part, used by gateways that only take whole units.
func (m Money) Units() int64 { return m.d.IntPart() }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON encodes the amount as a bare JSON number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.String()), nil
}

// UnmarshalJSON accepts both numbers and quoted strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if string(b) == "null" || len(b) == 0 {
		*m = Zero
		return nil
	}
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns.
func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return fmt.Errorf("scan amount: %w", err)
	}
	m.d = d
	return nil
}

// Value implements driver.Valuer.
func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}
