package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vportela/milesledger/pkg/cache"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/miles"
	"github.com/vportela/milesledger/pkg/models"
	"github.com/vportela/milesledger/pkg/money"
	"github.com/vportela/milesledger/pkg/schedule"
	"github.com/vportela/milesledger/pkg/store"
	"go.uber.org/zap"
)

var (
	// ErrInvalidQuantity is returned when a movement carries no miles.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidTransactionType is returned for unknown movement types.
	ErrInvalidTransactionType = errors.New("invalid transaction type")
)

// Ledger handles the business logic for mile transactions, installment
// schedules and positions.
type Ledger struct {
	storage store.Storage
	cache   cache.Cache // optional; nil disables position memoization
	logger  *zap.Logger
}

// NewLedger creates a new Ledger with a given Storage implementation.
// Cache and logger may be nil.
func NewLedger(s store.Storage, c cache.Cache, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		storage: s,
		cache:   c,
		logger:  logger,
	}
}

// PurchaseInput are the raw facts of a mile purchase collected at the
// boundary. Card is nil for purchases not financed by card.
type PurchaseInput struct {
	AccountKey       string
	ProgramKey       string
	Quantity         int64
	TotalCost        money.Amount
	Date             dates.Date
	CPF              string
	Description      string
	InstallmentCount int
	Card             *models.Card
}

// PurchaseResult bundles everything persisted for one purchase.
type PurchaseResult struct {
	Transaction  *models.MileTransaction `json:"transaction"`
	Schedule     *models.Schedule        `json:"schedule"`
	Installments []*models.Installment   `json:"installments"`
}

// RecordPurchase persists a purchase transaction and its payable
// installment schedule. When the purchase is financed by card, the
// first due date comes from the card's billing cycle; otherwise the
// schedule is anchored on the purchase date itself.
func (l *Ledger) RecordPurchase(input PurchaseInput) (*PurchaseResult, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if input.TotalCost.IsNegative() {
		return nil, schedule.ErrInvalidAmount
	}

	anchor := input.Date
	var linkedCard *uuid.UUID
	if input.Card != nil {
		cycle := schedule.CardCycle{ClosingDay: input.Card.ClosingDay, DueDay: input.Card.DueDay}
		due, err := schedule.FirstDueDate(input.Date, cycle)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve billing cycle: %w", err)
		}
		anchor = due
		linkedCard = &input.Card.ID
	}

	plan, err := schedule.Split(input.TotalCost, input.InstallmentCount, anchor)
	if err != nil {
		return nil, fmt.Errorf("failed to split installments: %w", err)
	}

	cost := input.TotalCost
	tx := &models.MileTransaction{
		ID:         uuid.New(),
		AccountKey: input.AccountKey,
		ProgramKey: input.ProgramKey,
		Type:       models.TransactionTypePurchase,
		Quantity:   input.Quantity,
		TotalCost:  &cost,
		CPF:        input.CPF,
		Date:       input.Date,
		CreatedAt:  time.Now(),
	}
	if err := l.storage.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to store purchase transaction: %w", err)
	}

	header, rows := l.buildSchedule(models.ScheduleKindPayable, input.Description, input.TotalCost, plan, &tx.ID, linkedCard)
	if err := l.storage.CreateSchedule(header, rows); err != nil {
		return nil, fmt.Errorf("failed to store payable schedule: %w", err)
	}

	l.invalidatePosition(input.AccountKey, input.ProgramKey)
	l.logger.Info("purchase recorded",
		zap.String("account", input.AccountKey),
		zap.String("program", input.ProgramKey),
		zap.Int64("quantity", input.Quantity),
		zap.String("total_cost", input.TotalCost.String()),
		zap.Int("installments", input.InstallmentCount),
	)

	return &PurchaseResult{Transaction: tx, Schedule: header, Installments: rows}, nil
}

// SaleInput are the raw facts of a mile sale.
type SaleInput struct {
	AccountKey       string
	ProgramKey       string
	Quantity         int64
	SalePrice        money.Amount
	Date             dates.Date
	CPF              string
	Description      string
	InstallmentCount int
}

// SaleResult bundles everything persisted for one sale.
type SaleResult struct {
	Transaction  *models.MileTransaction `json:"transaction"`
	Schedule     *models.Schedule        `json:"schedule"`
	Installments []*models.Installment   `json:"installments"`
}

// RecordSale persists a sale transaction and its receivable schedule,
// anchored on the sale date (client receivables have no card cycle).
func (l *Ledger) RecordSale(input SaleInput) (*SaleResult, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if input.SalePrice.IsNegative() {
		return nil, schedule.ErrInvalidAmount
	}

	plan, err := schedule.Split(input.SalePrice, input.InstallmentCount, input.Date)
	if err != nil {
		return nil, fmt.Errorf("failed to split installments: %w", err)
	}

	price := input.SalePrice
	tx := &models.MileTransaction{
		ID:         uuid.New(),
		AccountKey: input.AccountKey,
		ProgramKey: input.ProgramKey,
		Type:       models.TransactionTypeSale,
		Quantity:   -input.Quantity,
		SalePrice:  &price,
		CPF:        input.CPF,
		Date:       input.Date,
		CreatedAt:  time.Now(),
	}
	if err := l.storage.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to store sale transaction: %w", err)
	}

	header, rows := l.buildSchedule(models.ScheduleKindReceivable, input.Description, input.SalePrice, plan, &tx.ID, nil)
	if err := l.storage.CreateSchedule(header, rows); err != nil {
		return nil, fmt.Errorf("failed to store receivable schedule: %w", err)
	}

	l.invalidatePosition(input.AccountKey, input.ProgramKey)
	l.logger.Info("sale recorded",
		zap.String("account", input.AccountKey),
		zap.String("program", input.ProgramKey),
		zap.Int64("quantity", input.Quantity),
		zap.String("sale_price", input.SalePrice.String()),
	)

	return &SaleResult{Transaction: tx, Schedule: header, Installments: rows}, nil
}

// AdjustmentInput describes a movement with no money leg: bonuses,
// transfers between programs, redemptions and expirations.
type AdjustmentInput struct {
	AccountKey string
	ProgramKey string
	Type       models.TransactionType
	Quantity   int64
	Date       dates.Date
	CPF        string
}

// RecordAdjustment persists a bonus, transfer, use or expire movement.
// Quantity is supplied positive; the sign is derived from the type.
func (l *Ledger) RecordAdjustment(input AdjustmentInput) (*models.MileTransaction, error) {
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	switch input.Type {
	case models.TransactionTypeBonus, models.TransactionTypeTransferIn,
		models.TransactionTypeTransferOut, models.TransactionTypeUse,
		models.TransactionTypeExpire:
	default:
		return nil, fmt.Errorf("%s: %w", input.Type, ErrInvalidTransactionType)
	}

	qty := input.Quantity
	if !input.Type.Inflow() {
		qty = -qty
	}
	tx := &models.MileTransaction{
		ID:         uuid.New(),
		AccountKey: input.AccountKey,
		ProgramKey: input.ProgramKey,
		Type:       input.Type,
		Quantity:   qty,
		CPF:        input.CPF,
		Date:       input.Date,
		CreatedAt:  time.Now(),
	}
	if err := l.storage.CreateTransaction(tx); err != nil {
		return nil, fmt.Errorf("failed to store adjustment transaction: %w", err)
	}

	l.invalidatePosition(input.AccountKey, input.ProgramKey)
	return tx, nil
}

func (l *Ledger) buildSchedule(kind models.ScheduleKind, description string, total money.Amount, plan []schedule.Installment, linkedTx, linkedCard *uuid.UUID) (*models.Schedule, []*models.Installment) {
	header := &models.Schedule{
		ID:                  uuid.New(),
		Kind:                kind,
		Description:         description,
		TotalAmount:         total,
		InstallmentCount:    len(plan),
		LinkedTransactionID: linkedTx,
		LinkedCardID:        linkedCard,
		CreatedAt:           time.Now(),
	}
	rows := make([]*models.Installment, len(plan))
	for i, inst := range plan {
		rows[i] = &models.Installment{
			ID:             uuid.New(),
			ParentID:       header.ID,
			SequenceNumber: inst.SequenceNumber,
			Amount:         inst.Amount,
			DueDate:        inst.DueDate,
			Status:         models.InstallmentStatusPending,
		}
	}
	return header, rows
}

func positionKey(accountKey, programKey string) string {
	return "position:" + accountKey + ":" + programKey
}

func (l *Ledger) invalidatePosition(accountKey, programKey string) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Delete(positionKey(accountKey, programKey)); err != nil {
		l.logger.Warn("failed to invalidate cached position",
			zap.String("account", accountKey),
			zap.String("program", programKey),
			zap.Error(err),
		)
	}
}

// Position returns the current miles position of an (account, program)
// pair, using the cache when available.
func (l *Ledger) Position(accountKey, programKey string) (*models.MilesPosition, error) {
	key := positionKey(accountKey, programKey)
	if l.cache != nil {
		if raw, ok := l.cache.Get(key); ok {
			var pos models.MilesPosition
			if err := json.Unmarshal([]byte(raw), &pos); err == nil {
				return &pos, nil
			}
			// Corrupt cache entry; fall through and recompute.
		}
	}

	txs, err := l.storage.GetTransactionsForPosition(accountKey, programKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	pos := miles.BuildPosition(accountKey, programKey, txs)

	if l.cache != nil {
		if raw, err := json.Marshal(pos); err == nil {
			if err := l.cache.Set(key, string(raw)); err != nil {
				l.logger.Warn("failed to cache position", zap.Error(err))
			}
		}
	}
	return &pos, nil
}

// SaleQuote previews the profitability of selling quantity miles for
// saleValue against the pair's current average cost.
func (l *Ledger) SaleQuote(accountKey, programKey string, saleValue money.Amount, quantity int64) (*miles.ProfitBreakdown, error) {
	pos, err := l.Position(accountKey, programKey)
	if err != nil {
		return nil, err
	}
	breakdown := miles.SaleProfit(saleValue, quantity, pos.AverageCostPerThousand)
	return &breakdown, nil
}

// PayInstallment marks a pending or overdue installment as paid.
func (l *Ledger) PayInstallment(id uuid.UUID) (*models.Installment, error) {
	inst, err := l.storage.GetInstallment(id)
	if err != nil {
		return nil, err
	}
	if inst.Status == models.InstallmentStatusPaid {
		return nil, fmt.Errorf("installment already paid")
	}
	if err := l.storage.UpdateInstallmentStatus(id, models.InstallmentStatusPaid); err != nil {
		return nil, err
	}
	inst.Status = models.InstallmentStatusPaid
	return inst, nil
}

// MarkOverdue flips pending installments due strictly before today to
// overdue and returns how many were updated.
func (l *Ledger) MarkOverdue(today dates.Date) (int, error) {
	pending, err := l.storage.GetPendingInstallmentsBefore(today)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending installments: %w", err)
	}
	updated := 0
	for _, inst := range pending {
		if err := l.storage.UpdateInstallmentStatus(inst.ID, models.InstallmentStatusOverdue); err != nil {
			l.logger.Error("failed to mark installment overdue",
				zap.String("installment", inst.ID.String()),
				zap.Error(err),
			)
			continue
		}
		updated++
	}
	return updated, nil
}

// CreateCard registers a new credit card.
func (l *Ledger) CreateCard(name string, closingDay, dueDay int, limit money.Amount) (*models.Card, error) {
	cycle := schedule.CardCycle{ClosingDay: closingDay, DueDay: dueDay}
	if err := cycle.Validate(); err != nil {
		return nil, err
	}
	card := &models.Card{
		ID:         uuid.New(),
		Name:       name,
		ClosingDay: closingDay,
		DueDay:     dueDay,
		Limit:      limit,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := l.storage.CreateCard(card); err != nil {
		return nil, fmt.Errorf("failed to store card: %w", err)
	}
	return card, nil
}

// GetCard retrieves a card by its ID.
func (l *Ledger) GetCard(id uuid.UUID) (*models.Card, error) {
	return l.storage.GetCard(id)
}

// GetAllCards retrieves all cards.
func (l *Ledger) GetAllCards() ([]*models.Card, error) {
	return l.storage.GetAllCards()
}

// UpdateCard updates an existing card.
func (l *Ledger) UpdateCard(card *models.Card) error {
	cycle := schedule.CardCycle{ClosingDay: card.ClosingDay, DueDay: card.DueDay}
	if err := cycle.Validate(); err != nil {
		return err
	}
	card.UpdatedAt = time.Now()
	return l.storage.UpdateCard(card)
}

// DeleteCard deletes a card.
func (l *Ledger) DeleteCard(id uuid.UUID) error {
	return l.storage.DeleteCard(id)
}

// GetAllTransactions lists every recorded mile transaction.
func (l *Ledger) GetAllTransactions() ([]*models.MileTransaction, error) {
	return l.storage.GetAllTransactions()
}

// GetSchedule retrieves a schedule header.
func (l *Ledger) GetSchedule(id uuid.UUID) (*models.Schedule, error) {
	return l.storage.GetSchedule(id)
}

// GetInstallmentsForSchedule lists the installments of a schedule.
func (l *Ledger) GetInstallmentsForSchedule(id uuid.UUID) ([]*models.Installment, error) {
	return l.storage.GetInstallmentsForSchedule(id)
}
