// Package format renders amounts, quantities and dates for display
// using Brazilian conventions ("R$ 1.234,56", "10.000", "02/01/2006").
package format

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/money"
)

// Currency renders an amount as "R$ 1.234,56". A nil amount renders as
// the zero-currency string; call sites pass unvalidated optional fields
// and must never panic here.
func Currency(a *money.Amount) string {
	if a == nil {
		return "R$ 0,00"
	}
	return "R$ " + numeric(a.Decimal())
}

// Quantity renders a miles quantity with thousands separators.
func Quantity(q int64) string {
	sign := ""
	if q < 0 {
		sign = "-"
		q = -q
	}
	return sign + groupThousands(fmt.Sprintf("%d", q))
}

// CostPerThousand renders an average cost per thousand miles.
func CostPerThousand(cpm decimal.Decimal) string {
	return "R$ " + numeric(cpm) + " / milheiro"
}

// Date renders a date in day/month/year order.
func Date(d dates.Date) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, int(d.Month), d.Year)
}

func numeric(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	parts := strings.SplitN(s, ".", 2)
	return sign + groupThousands(parts[0]) + "," + parts[1]
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var builder strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			builder.WriteByte('.')
		}
		builder.WriteRune(r)
	}
	return builder.String()
}
