package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/money"
)

// Card is one credit card used to finance mile purchases.
type Card struct {
	ID         uuid.UUID    `json:"id"`
	Name       string       `json:"name"`
	ClosingDay int          `json:"closing_day"` // Day of the month (1-31) the statement closes
	DueDay     int          `json:"due_day"`     // Day of the month (1-31) the statement is due
	Limit      money.Amount `json:"limit"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type TransactionType string

const (
	TransactionTypePurchase    TransactionType = "purchase"
	TransactionTypeSale        TransactionType = "sale"
	TransactionTypeBonus       TransactionType = "bonus"
	TransactionTypeTransferIn  TransactionType = "transfer_in"
	TransactionTypeTransferOut TransactionType = "transfer_out"
	TransactionTypeUse         TransactionType = "use"
	TransactionTypeExpire      TransactionType = "expire"
)

// Inflow reports whether the transaction type adds miles to a balance.
func (t TransactionType) Inflow() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeBonus, TransactionTypeTransferIn:
		return true
	}
	return false
}

// MileTransaction is one movement of miles on an (account, program)
// pair. Quantity is signed: negative for outflows.
type MileTransaction struct {
	ID         uuid.UUID       `json:"id"`
	AccountKey string          `json:"account_key"` // Link to external account record
	ProgramKey string          `json:"program_key"` // Loyalty program identifier
	Type       TransactionType `json:"type"`
	Quantity   int64           `json:"quantity"`
	TotalCost  *money.Amount   `json:"total_cost,omitempty"`
	SalePrice  *money.Amount   `json:"sale_price,omitempty"`
	CPF        string          `json:"cpf,omitempty"` // Document the miles were issued or used under
	Date       dates.Date      `json:"date"`
	CreatedAt  time.Time       `json:"created_at"`
}

type ScheduleKind string

const (
	ScheduleKindPayable    ScheduleKind = "payable"
	ScheduleKindReceivable ScheduleKind = "receivable"
)

// Schedule is the payable/receivable header an installment plan hangs
// off. Installment rows are written atomically alongside it.
type Schedule struct {
	ID                  uuid.UUID    `json:"id"`
	Kind                ScheduleKind `json:"kind"`
	Description         string       `json:"description"`
	TotalAmount         money.Amount `json:"total_amount"`
	InstallmentCount    int          `json:"installment_count"`
	LinkedTransactionID *uuid.UUID   `json:"linked_transaction_id,omitempty"`
	LinkedCardID        *uuid.UUID   `json:"linked_card_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

type InstallmentStatus string

const (
	InstallmentStatusPending InstallmentStatus = "pending"
	InstallmentStatusPaid    InstallmentStatus = "paid"
	InstallmentStatusOverdue InstallmentStatus = "overdue"
)

// Installment is one persisted row of an installment schedule.
type Installment struct {
	ID             uuid.UUID         `json:"id"`
	ParentID       uuid.UUID         `json:"parent_id"`
	SequenceNumber int               `json:"sequence_number"`
	Amount         money.Amount      `json:"amount"`
	DueDate        dates.Date        `json:"due_date"`
	Status         InstallmentStatus `json:"status"`
}

// MilesPosition is the read model for one (account, program) pair:
// current balance, total invested and the resulting average cost.
type MilesPosition struct {
	AccountKey             string          `json:"account_key"`
	ProgramKey             string          `json:"program_key"`
	BalanceQuantity        int64           `json:"balance_quantity"`
	TotalInvested          money.Amount    `json:"total_invested"`
	AverageCostPerThousand decimal.Decimal `json:"average_cost_per_thousand"`
}
