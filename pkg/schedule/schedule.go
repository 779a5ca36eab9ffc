// Package schedule implements the billing-cycle resolver and the
// installment splitter. Everything here is pure: same inputs, same
// outputs, no I/O, no ambient state.
package schedule

import (
	"errors"
	"fmt"

	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/money"
)

var (
	// ErrInvalidInstallmentCount is returned when a plan asks for
	// fewer than one installment.
	ErrInvalidInstallmentCount = errors.New("installment count must be at least 1")

	// ErrInvalidAmount is returned for negative totals. Refunds and
	// credit notes are modeled as their own records, never as negative
	// installment plans.
	ErrInvalidAmount = errors.New("total amount must not be negative")

	// ErrInvalidCalendarDay is returned when a card cycle day falls
	// outside 1..31.
	ErrInvalidCalendarDay = errors.New("calendar day must be between 1 and 31")
)

// CardCycle is one credit card's billing rule: the statement closes on
// ClosingDay and is due on DueDay of each month.
type CardCycle struct {
	ClosingDay int `json:"closing_day"`
	DueDay     int `json:"due_day"`
}

// Validate checks both cycle days are in 1..31.
func (c CardCycle) Validate() error {
	if c.ClosingDay < 1 || c.ClosingDay > 31 {
		return fmt.Errorf("closing day %d: %w", c.ClosingDay, ErrInvalidCalendarDay)
	}
	if c.DueDay < 1 || c.DueDay > 31 {
		return fmt.Errorf("due day %d: %w", c.DueDay, ErrInvalidCalendarDay)
	}
	return nil
}

// FirstDueDate computes the due date of the first installment for a
// card purchase made on txDate.
//
// A purchase made on or after the statement closing day rolls into the
// next cycle; the closing day itself already belongs to the next cycle.
// The statement is paid on the due day of the month after the month it
// references, so the due date always lands one month past the
// statement month.
func FirstDueDate(txDate dates.Date, cycle CardCycle) (dates.Date, error) {
	if err := cycle.Validate(); err != nil {
		return dates.Date{}, err
	}
	closing := txDate.WithDay(cycle.ClosingDay)
	statementMonth := txDate
	if !txDate.Before(closing) {
		statementMonth = statementMonth.AddMonths(1)
	}
	return statementMonth.AddMonths(1).WithDay(cycle.DueDay), nil
}

// Installment is one row of an installment schedule.
type Installment struct {
	SequenceNumber int          `json:"sequence_number"`
	Amount         money.Amount `json:"amount"`
	DueDate        dates.Date   `json:"due_date"`
}

// Split divides total into count installments due monthly from anchor.
//
// The division happens in whole cents: every installment gets the
// floored share and the last one absorbs the remainder, so the amounts
// always sum to total exactly. Due dates preserve the anchor's day of
// month, clamping to the last valid day of shorter months.
func Split(total money.Amount, count int, anchor dates.Date) ([]Installment, error) {
	if count < 1 {
		return nil, fmt.Errorf("count %d: %w", count, ErrInvalidInstallmentCount)
	}
	if total.IsNegative() {
		return nil, fmt.Errorf("total %s: %w", total, ErrInvalidAmount)
	}

	totalCents := total.Cents()
	baseCents := totalCents / int64(count)

	installments := make([]Installment, count)
	for i := 0; i < count; i++ {
		cents := baseCents
		if i == count-1 {
			cents = totalCents - baseCents*int64(count-1)
		}
		installments[i] = Installment{
			SequenceNumber: i + 1,
			Amount:         money.FromCents(cents),
			DueDate:        anchor.AddMonths(i),
		}
	}
	return installments, nil
}
