// Package money provides the fixed-point monetary amount used across
// the ledger. Amounts carry two decimal places (whole cents); any
// division that does not distribute evenly must go through the
// installment splitter rather than being rounded here.
package money

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is an immutable currency value with cent precision.
type Amount struct {
	d decimal.Decimal
}

// Zero is the zero currency value.
var Zero = Amount{}

// FromCents builds an Amount from integer minor units.
func FromCents(cents int64) Amount {
	return Amount{d: decimal.New(cents, -2)}
}

// FromDecimal builds an Amount, rounding to cents.
func FromDecimal(d decimal.Decimal) Amount {
	return Amount{d: d.Round(2)}
}

// FromFloat builds an Amount from a float, rounding to cents. Prefer
// Parse or FromCents where exactness matters.
func FromFloat(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f).Round(2)}
}

// Parse is the single parse boundary for monetary input. It accepts
// plain decimal strings ("1234.56") as well as Brazilian-formatted
// values with an optional currency symbol ("R$ 1.234,56", "46,51").
func Parse(s string) (Amount, error) {
	raw := s
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.ReplaceAll(s, "\u00a0", "")
	s = strings.ReplaceAll(s, " ", "")
	if strings.Contains(s, ",") {
		// Brazilian format: "." groups thousands, "," marks decimals.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid monetary amount %q: %w", raw, err)
	}
	return Amount{d: d.Round(2)}, nil
}

// MustParse parses a monetary string and panics on error. Intended for
// tests where the input is known to be valid.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Cents returns the value in integer minor units.
func (a Amount) Cents() int64 {
	return a.d.Mul(decimal.New(100, 0)).IntPart()
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal {
	return a.d
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d)}
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	return Amount{d: a.d.Sub(b.d)}
}

// MulInt returns a * n.
func (a Amount) MulInt(n int64) Amount {
	return Amount{d: a.d.Mul(decimal.NewFromInt(n))}
}

// Equal reports whether two amounts are the same value.
func (a Amount) Equal(b Amount) bool {
	return a.d.Equal(b.d)
}

// IsNegative reports whether the amount is below zero.
func (a Amount) IsNegative() bool {
	return a.d.IsNegative()
}

// IsZero reports whether the amount is exactly zero.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

// String renders the amount with two decimal places, e.g. "1234.50".
func (a Amount) String() string {
	return a.d.StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid monetary JSON %s: %w", data, err)
	}
	a.d = d.Round(2)
	return nil
}

// Value implements driver.Valuer; amounts are stored as TEXT so no
// precision is lost.
func (a Amount) Value() (driver.Value, error) {
	return a.d.StringFixed(2), nil
}

// Scan implements sql.Scanner for TEXT columns.
func (a *Amount) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("invalid stored amount %q: %w", v, err)
		}
		a.d = d.Round(2)
		return nil
	case []byte:
		return a.Scan(string(v))
	case int64:
		a.d = decimal.NewFromInt(v)
		return nil
	case float64:
		a.d = decimal.NewFromFloat(v).Round(2)
		return nil
	case nil:
		a.d = decimal.Zero
		return nil
	default:
		return fmt.Errorf("cannot scan %T into money.Amount", src)
	}
}
