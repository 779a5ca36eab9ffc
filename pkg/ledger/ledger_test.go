package ledger

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vportela/milesledger/pkg/cache"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/models"
	"github.com/vportela/milesledger/pkg/money"
	"github.com/vportela/milesledger/pkg/schedule"
)

// MockStore is a simple in-memory implementation of the Storage
// interface for testing.
type MockStore struct {
	cards        map[uuid.UUID]*models.Card
	transactions []*models.MileTransaction
	schedules    map[uuid.UUID]*models.Schedule
	installments map[uuid.UUID]*models.Installment
}

func NewMockStore() *MockStore {
	return &MockStore{
		cards:        make(map[uuid.UUID]*models.Card),
		transactions: []*models.MileTransaction{},
		schedules:    make(map[uuid.UUID]*models.Schedule),
		installments: make(map[uuid.UUID]*models.Installment),
	}
}

func (m *MockStore) CreateCard(card *models.Card) error {
	m.cards[card.ID] = card
	return nil
}

func (m *MockStore) GetCard(id uuid.UUID) (*models.Card, error) {
	card, ok := m.cards[id]
	if !ok {
		return nil, fmt.Errorf("card not found")
	}
	return card, nil
}

func (m *MockStore) UpdateCard(card *models.Card) error {
	m.cards[card.ID] = card
	return nil
}

func (m *MockStore) DeleteCard(id uuid.UUID) error {
	delete(m.cards, id)
	return nil
}

func (m *MockStore) GetAllCards() ([]*models.Card, error) {
	cards := []*models.Card{}
	for _, c := range m.cards {
		cards = append(cards, c)
	}
	return cards, nil
}

func (m *MockStore) CreateTransaction(tx *models.MileTransaction) error {
	m.transactions = append(m.transactions, tx)
	return nil
}

func (m *MockStore) GetAllTransactions() ([]*models.MileTransaction, error) {
	return m.transactions, nil
}

func (m *MockStore) GetTransactionsForPosition(accountKey, programKey string) ([]*models.MileTransaction, error) {
	txs := []*models.MileTransaction{}
	for _, tx := range m.transactions {
		if tx.AccountKey == accountKey && tx.ProgramKey == programKey {
			txs = append(txs, tx)
		}
	}
	return txs, nil
}

func (m *MockStore) CreateSchedule(sched *models.Schedule, installments []*models.Installment) error {
	m.schedules[sched.ID] = sched
	for _, inst := range installments {
		m.installments[inst.ID] = inst
	}
	return nil
}

func (m *MockStore) GetSchedule(id uuid.UUID) (*models.Schedule, error) {
	sched, ok := m.schedules[id]
	if !ok {
		return nil, fmt.Errorf("schedule not found")
	}
	return sched, nil
}

func (m *MockStore) GetInstallmentsForSchedule(parentID uuid.UUID) ([]*models.Installment, error) {
	installments := []*models.Installment{}
	for _, inst := range m.installments {
		if inst.ParentID == parentID {
			installments = append(installments, inst)
		}
	}
	return installments, nil
}

func (m *MockStore) GetInstallment(id uuid.UUID) (*models.Installment, error) {
	inst, ok := m.installments[id]
	if !ok {
		return nil, fmt.Errorf("installment not found")
	}
	return inst, nil
}

func (m *MockStore) UpdateInstallmentStatus(id uuid.UUID, status models.InstallmentStatus) error {
	inst, ok := m.installments[id]
	if !ok {
		return fmt.Errorf("installment not found")
	}
	inst.Status = status
	return nil
}

func (m *MockStore) GetPendingInstallmentsBefore(day dates.Date) ([]*models.Installment, error) {
	installments := []*models.Installment{}
	for _, inst := range m.installments {
		if inst.Status == models.InstallmentStatusPending && inst.DueDate.Before(day) {
			installments = append(installments, inst)
		}
	}
	return installments, nil
}

func (m *MockStore) Close() error {
	return nil
}

func testCard() *models.Card {
	return &models.Card{
		ID:         uuid.New(),
		Name:       "Platinum",
		ClosingDay: 20,
		DueDay:     27,
		Limit:      money.MustParse("20000.00"),
	}
}

func TestRecordPurchaseWithCard(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	result, err := l.RecordPurchase(PurchaseInput{
		AccountKey:       "acct1",
		ProgramKey:       "smiles",
		Quantity:         50000,
		TotalCost:        money.MustParse("1200.00"),
		Date:             dates.MustParse("2024-03-05"),
		CPF:              "111.222.333-44",
		Description:      "Compra Smiles 50k",
		InstallmentCount: 4,
		Card:             testCard(),
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	if result.Transaction.Type != models.TransactionTypePurchase {
		t.Errorf("Expected purchase transaction, got %s", result.Transaction.Type)
	}
	if result.Schedule.Kind != models.ScheduleKindPayable {
		t.Errorf("Expected payable schedule, got %s", result.Schedule.Kind)
	}
	if result.Schedule.LinkedCardID == nil {
		t.Error("Expected schedule linked to the card")
	}
	if len(result.Installments) != 4 {
		t.Fatalf("Expected 4 installments, got %d", len(result.Installments))
	}

	expectedDue := []string{"2024-04-27", "2024-05-27", "2024-06-27", "2024-07-27"}
	sum := money.Zero
	for i, inst := range result.Installments {
		if inst.SequenceNumber != i+1 {
			t.Errorf("Expected sequence %d, got %d", i+1, inst.SequenceNumber)
		}
		if !inst.Amount.Equal(money.MustParse("300.00")) {
			t.Errorf("Installment %d: expected 300.00, got %s", i+1, inst.Amount)
		}
		if inst.DueDate.String() != expectedDue[i] {
			t.Errorf("Installment %d: expected due %s, got %s", i+1, expectedDue[i], inst.DueDate)
		}
		if inst.Status != models.InstallmentStatusPending {
			t.Errorf("Installment %d: expected pending, got %s", i+1, inst.Status)
		}
		sum = sum.Add(inst.Amount)
	}
	if !sum.Equal(result.Schedule.TotalAmount) {
		t.Errorf("Installments sum %s does not match total %s", sum, result.Schedule.TotalAmount)
	}
}

func TestRecordPurchaseWithoutCard(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	result, err := l.RecordPurchase(PurchaseInput{
		AccountKey:       "acct1",
		ProgramKey:       "smiles",
		Quantity:         10000,
		TotalCost:        money.MustParse("170.00"),
		Date:             dates.MustParse("2024-03-05"),
		InstallmentCount: 1,
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	// No card: the schedule anchors on the purchase date itself.
	if got := result.Installments[0].DueDate.String(); got != "2024-03-05" {
		t.Errorf("Expected due 2024-03-05, got %s", got)
	}
	if result.Schedule.LinkedCardID != nil {
		t.Error("Expected no linked card")
	}
}

func TestRecordPurchaseValidation(t *testing.T) {
	l := NewLedger(NewMockStore(), nil, nil)

	_, err := l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 0, TotalCost: money.MustParse("100.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 1,
	})
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("Expected ErrInvalidQuantity, got %v", err)
	}

	_, err = l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 1000, TotalCost: money.MustParse("-100.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 1,
	})
	if !errors.Is(err, schedule.ErrInvalidAmount) {
		t.Errorf("Expected ErrInvalidAmount, got %v", err)
	}

	_, err = l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 1000, TotalCost: money.MustParse("100.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 0,
	})
	if !errors.Is(err, schedule.ErrInvalidInstallmentCount) {
		t.Errorf("Expected ErrInvalidInstallmentCount, got %v", err)
	}
}

func TestRecordSale(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	result, err := l.RecordSale(SaleInput{
		AccountKey:       "acct1",
		ProgramKey:       "smiles",
		Quantity:         20000,
		SalePrice:        money.MustParse("500.00"),
		Date:             dates.MustParse("2024-04-10"),
		Description:      "Venda cliente X",
		InstallmentCount: 2,
	})
	if err != nil {
		t.Fatalf("Failed to record sale: %v", err)
	}

	if result.Transaction.Quantity != -20000 {
		t.Errorf("Expected quantity -20000, got %d", result.Transaction.Quantity)
	}
	if result.Schedule.Kind != models.ScheduleKindReceivable {
		t.Errorf("Expected receivable schedule, got %s", result.Schedule.Kind)
	}
	if got := result.Installments[0].DueDate.String(); got != "2024-04-10" {
		t.Errorf("Expected first due on sale date, got %s", got)
	}
	if got := result.Installments[1].DueDate.String(); got != "2024-05-10" {
		t.Errorf("Expected second due one month later, got %s", got)
	}
}

func TestRecordAdjustment(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	tx, err := l.RecordAdjustment(AdjustmentInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Type: models.TransactionTypeBonus, Quantity: 5000,
		Date: dates.MustParse("2024-03-10"),
	})
	if err != nil {
		t.Fatalf("Failed to record bonus: %v", err)
	}
	if tx.Quantity != 5000 {
		t.Errorf("Expected quantity 5000, got %d", tx.Quantity)
	}

	tx, err = l.RecordAdjustment(AdjustmentInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Type: models.TransactionTypeUse, Quantity: 2000,
		Date: dates.MustParse("2024-03-11"),
	})
	if err != nil {
		t.Fatalf("Failed to record use: %v", err)
	}
	if tx.Quantity != -2000 {
		t.Errorf("Expected quantity -2000, got %d", tx.Quantity)
	}

	_, err = l.RecordAdjustment(AdjustmentInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Type: models.TransactionTypePurchase, Quantity: 1000,
		Date: dates.MustParse("2024-03-12"),
	})
	if !errors.Is(err, ErrInvalidTransactionType) {
		t.Errorf("Expected ErrInvalidTransactionType for purchase adjustment, got %v", err)
	}
}

func TestPositionUsesCacheAndInvalidation(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, cache.NewMemoryCache(), nil)

	_, err := l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 10000, TotalCost: money.MustParse("170.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 1,
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	pos, err := l.Position("acct1", "smiles")
	if err != nil {
		t.Fatalf("Failed to get position: %v", err)
	}
	if pos.BalanceQuantity != 10000 {
		t.Errorf("Expected balance 10000, got %d", pos.BalanceQuantity)
	}
	if !pos.AverageCostPerThousand.Equal(decimal.NewFromInt(17)) {
		t.Errorf("Expected average CPM 17, got %s", pos.AverageCostPerThousand)
	}

	// A second read must hit the cache and agree with the first.
	cached, err := l.Position("acct1", "smiles")
	if err != nil {
		t.Fatalf("Failed to get cached position: %v", err)
	}
	if cached.BalanceQuantity != pos.BalanceQuantity {
		t.Errorf("Cached position diverged: %d vs %d", cached.BalanceQuantity, pos.BalanceQuantity)
	}

	// A new sale invalidates the cache; the next read reflects it.
	_, err = l.RecordSale(SaleInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 4000, SalePrice: money.MustParse("120.00"),
		Date: dates.MustParse("2024-04-01"), InstallmentCount: 1,
	})
	if err != nil {
		t.Fatalf("Failed to record sale: %v", err)
	}

	pos, err = l.Position("acct1", "smiles")
	if err != nil {
		t.Fatalf("Failed to get position after sale: %v", err)
	}
	if pos.BalanceQuantity != 6000 {
		t.Errorf("Expected balance 6000 after sale, got %d", pos.BalanceQuantity)
	}
}

func TestSaleQuote(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	_, err := l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 10000, TotalCost: money.MustParse("170.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 1,
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	quote, err := l.SaleQuote("acct1", "smiles", money.MustParse("250.00"), 10000)
	if err != nil {
		t.Fatalf("Failed to quote sale: %v", err)
	}
	if !quote.Profit.Equal(money.MustParse("80.00")) {
		t.Errorf("Expected profit 80.00, got %s", quote.Profit)
	}
}

func TestPayInstallment(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	result, err := l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 10000, TotalCost: money.MustParse("300.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 3,
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	first := result.Installments[0]
	paid, err := l.PayInstallment(first.ID)
	if err != nil {
		t.Fatalf("Failed to pay installment: %v", err)
	}
	if paid.Status != models.InstallmentStatusPaid {
		t.Errorf("Expected paid status, got %s", paid.Status)
	}

	if _, err := l.PayInstallment(first.ID); err == nil {
		t.Error("Expected error paying an already-paid installment")
	}
}

func TestMarkOverdue(t *testing.T) {
	store := NewMockStore()
	l := NewLedger(store, nil, nil)

	result, err := l.RecordPurchase(PurchaseInput{
		AccountKey: "acct1", ProgramKey: "smiles",
		Quantity: 10000, TotalCost: money.MustParse("300.00"),
		Date: dates.MustParse("2024-03-05"), InstallmentCount: 3,
	})
	if err != nil {
		t.Fatalf("Failed to record purchase: %v", err)
	}

	// Due dates are 2024-03-05, 04-05, 05-05; two are past 2024-04-10.
	updated, err := l.MarkOverdue(dates.MustParse("2024-04-10"))
	if err != nil {
		t.Fatalf("Failed to sweep overdue: %v", err)
	}
	if updated != 2 {
		t.Errorf("Expected 2 installments marked overdue, got %d", updated)
	}

	overdue := 0
	for _, inst := range result.Installments {
		got, _ := store.GetInstallment(inst.ID)
		if got.Status == models.InstallmentStatusOverdue {
			overdue++
		}
	}
	if overdue != 2 {
		t.Errorf("Expected 2 overdue installments in store, got %d", overdue)
	}
}

func TestCreateCardValidation(t *testing.T) {
	l := NewLedger(NewMockStore(), nil, nil)

	if _, err := l.CreateCard("Gold", 0, 10, money.Zero); !errors.Is(err, schedule.ErrInvalidCalendarDay) {
		t.Errorf("Expected ErrInvalidCalendarDay, got %v", err)
	}
	card, err := l.CreateCard("Gold", 20, 27, money.MustParse("15000.00"))
	if err != nil {
		t.Fatalf("Failed to create card: %v", err)
	}
	if card.ClosingDay != 20 || card.DueDay != 27 {
		t.Errorf("Unexpected cycle on created card: %d/%d", card.ClosingDay, card.DueDay)
	}
}
