package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/models"
	"github.com/vportela/milesledger/pkg/money"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// Decimal and date fields are stored as TEXT so no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS cards (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		closing_day INTEGER NOT NULL,
		due_day INTEGER NOT NULL,
		credit_limit TEXT NOT NULL DEFAULT '0',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS mile_transactions (
		id TEXT PRIMARY KEY,
		account_key TEXT NOT NULL,
		program_key TEXT NOT NULL,
		type TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		total_cost TEXT,
		sale_price TEXT,
		cpf TEXT NOT NULL DEFAULT '',
		tx_date TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		description TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		installment_count INTEGER NOT NULL,
		linked_transaction_id TEXT,
		linked_card_id TEXT,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(linked_transaction_id) REFERENCES mile_transactions(id),
		FOREIGN KEY(linked_card_id) REFERENCES cards(id)
	);
	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL,
		sequence_number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		due_date TEXT NOT NULL,
		status TEXT NOT NULL,
		FOREIGN KEY(parent_id) REFERENCES schedules(id)
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_position
		ON mile_transactions(account_key, program_key);
	CREATE INDEX IF NOT EXISTS idx_installments_due
		ON installments(status, due_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateCard inserts a new card into the database.
func (s *SQLiteStore) CreateCard(card *models.Card) error {
	_, err := s.db.Exec(
		`INSERT INTO cards (id, name, closing_day, due_day, credit_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		card.ID.String(), card.Name, card.ClosingDay, card.DueDay, card.Limit, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	return nil
}

// GetCard retrieves a card by its ID.
func (s *SQLiteStore) GetCard(id uuid.UUID) (*models.Card, error) {
	row := s.db.QueryRow(
		`SELECT id, name, closing_day, due_day, credit_limit, created_at, updated_at FROM cards WHERE id = ?`,
		id.String(),
	)
	card, err := scanCard(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("card not found")
		}
		return nil, fmt.Errorf("failed to get card: %w", err)
	}
	return card, nil
}

// UpdateCard updates an existing card in the database.
func (s *SQLiteStore) UpdateCard(card *models.Card) error {
	result, err := s.db.Exec(
		`UPDATE cards SET name = ?, closing_day = ?, due_day = ?, credit_limit = ?, updated_at = ? WHERE id = ?`,
		card.Name, card.ClosingDay, card.DueDay, card.Limit, card.UpdatedAt, card.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("card not found")
	}
	return nil
}

// DeleteCard removes a card from the database.
func (s *SQLiteStore) DeleteCard(id uuid.UUID) error {
	result, err := s.db.Exec(`DELETE FROM cards WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("card not found")
	}
	return nil
}

// GetAllCards retrieves all cards.
func (s *SQLiteStore) GetAllCards() ([]*models.Card, error) {
	rows, err := s.db.Query(`SELECT id, name, closing_day, due_day, credit_limit, created_at, updated_at FROM cards`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all cards: %w", err)
	}
	defer rows.Close()

	var cards []*models.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return cards, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCard(row rowScanner) (*models.Card, error) {
	var card models.Card
	var idStr string
	var created, updated time.Time
	if err := row.Scan(&idStr, &card.Name, &card.ClosingDay, &card.DueDay, &card.Limit, &created, &updated); err != nil {
		return nil, err
	}
	card.ID = uuid.MustParse(idStr)
	card.CreatedAt = created
	card.UpdatedAt = updated
	return &card, nil
}

// CreateTransaction inserts a new mile transaction into the database.
func (s *SQLiteStore) CreateTransaction(tx *models.MileTransaction) error {
	_, err := s.db.Exec(
		`INSERT INTO mile_transactions (id, account_key, program_key, type, quantity, total_cost, sale_price, cpf, tx_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID.String(), tx.AccountKey, tx.ProgramKey, string(tx.Type), tx.Quantity,
		nullAmount(tx.TotalCost), nullAmount(tx.SalePrice), tx.CPF, tx.Date, tx.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func nullAmount(a *money.Amount) interface{} {
	if a == nil {
		return nil
	}
	return a.String()
}

// GetAllTransactions retrieves all mile transactions ordered by date.
func (s *SQLiteStore) GetAllTransactions() ([]*models.MileTransaction, error) {
	rows, err := s.db.Query(
		`SELECT id, account_key, program_key, type, quantity, total_cost, sale_price, cpf, tx_date, created_at
		FROM mile_transactions ORDER BY tx_date ASC, created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get all transactions: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// GetTransactionsForPosition retrieves the transactions of one
// (account, program) pair in chronological order.
func (s *SQLiteStore) GetTransactionsForPosition(accountKey, programKey string) ([]*models.MileTransaction, error) {
	rows, err := s.db.Query(
		`SELECT id, account_key, program_key, type, quantity, total_cost, sale_price, cpf, tx_date, created_at
		FROM mile_transactions WHERE account_key = ? AND program_key = ?
		ORDER BY tx_date ASC, created_at ASC`,
		accountKey, programKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions for %s/%s: %w", accountKey, programKey, err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*models.MileTransaction, error) {
	var txs []*models.MileTransaction
	for rows.Next() {
		var tx models.MileTransaction
		var idStr, typeStr string
		var totalCost, salePrice sql.NullString
		var created time.Time
		if err := rows.Scan(&idStr, &tx.AccountKey, &tx.ProgramKey, &typeStr, &tx.Quantity,
			&totalCost, &salePrice, &tx.CPF, &tx.Date, &created); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		tx.ID = uuid.MustParse(idStr)
		tx.Type = models.TransactionType(typeStr)
		tx.CreatedAt = created
		if totalCost.Valid {
			a, err := money.Parse(totalCost.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse stored total cost: %w", err)
			}
			tx.TotalCost = &a
		}
		if salePrice.Valid {
			a, err := money.Parse(salePrice.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse stored sale price: %w", err)
			}
			tx.SalePrice = &a
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return txs, nil
}

// CreateSchedule inserts the schedule header and all installment rows
// within a single database transaction.
func (s *SQLiteStore) CreateSchedule(schedule *models.Schedule, installments []*models.Installment) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	var linkedTx, linkedCard interface{}
	if schedule.LinkedTransactionID != nil {
		linkedTx = schedule.LinkedTransactionID.String()
	}
	if schedule.LinkedCardID != nil {
		linkedCard = schedule.LinkedCardID.String()
	}

	_, err = dbTx.Exec(
		`INSERT INTO schedules (id, kind, description, total_amount, installment_count, linked_transaction_id, linked_card_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		schedule.ID.String(), string(schedule.Kind), schedule.Description, schedule.TotalAmount,
		schedule.InstallmentCount, linkedTx, linkedCard, schedule.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	for _, inst := range installments {
		_, err = dbTx.Exec(
			`INSERT INTO installments (id, parent_id, sequence_number, amount, due_date, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			inst.ID.String(), inst.ParentID.String(), inst.SequenceNumber, inst.Amount, inst.DueDate, string(inst.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to create installment %d: %w", inst.SequenceNumber, err)
		}
	}

	return dbTx.Commit()
}

// GetSchedule retrieves a schedule header by its ID.
func (s *SQLiteStore) GetSchedule(id uuid.UUID) (*models.Schedule, error) {
	var schedule models.Schedule
	var idStr, kindStr string
	var linkedTx, linkedCard sql.NullString
	var created time.Time

	row := s.db.QueryRow(
		`SELECT id, kind, description, total_amount, installment_count, linked_transaction_id, linked_card_id, created_at
		FROM schedules WHERE id = ?`,
		id.String(),
	)
	err := row.Scan(&idStr, &kindStr, &schedule.Description, &schedule.TotalAmount,
		&schedule.InstallmentCount, &linkedTx, &linkedCard, &created)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("schedule not found")
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	schedule.ID = uuid.MustParse(idStr)
	schedule.Kind = models.ScheduleKind(kindStr)
	schedule.CreatedAt = created
	if linkedTx.Valid {
		parsed := uuid.MustParse(linkedTx.String)
		schedule.LinkedTransactionID = &parsed
	}
	if linkedCard.Valid {
		parsed := uuid.MustParse(linkedCard.String)
		schedule.LinkedCardID = &parsed
	}
	return &schedule, nil
}

// GetInstallmentsForSchedule retrieves all installments of a schedule
// in sequence order.
func (s *SQLiteStore) GetInstallmentsForSchedule(parentID uuid.UUID) ([]*models.Installment, error) {
	rows, err := s.db.Query(
		`SELECT id, parent_id, sequence_number, amount, due_date, status
		FROM installments WHERE parent_id = ? ORDER BY sequence_number ASC`,
		parentID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get installments for schedule %s: %w", parentID, err)
	}
	defer rows.Close()

	return scanInstallments(rows)
}

// GetInstallment retrieves a single installment row.
func (s *SQLiteStore) GetInstallment(id uuid.UUID) (*models.Installment, error) {
	row := s.db.QueryRow(
		`SELECT id, parent_id, sequence_number, amount, due_date, status FROM installments WHERE id = ?`,
		id.String(),
	)
	inst, err := scanInstallment(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("installment not found")
		}
		return nil, fmt.Errorf("failed to get installment: %w", err)
	}
	return inst, nil
}

// UpdateInstallmentStatus sets the status of one installment.
func (s *SQLiteStore) UpdateInstallmentStatus(id uuid.UUID, status models.InstallmentStatus) error {
	result, err := s.db.Exec(`UPDATE installments SET status = ? WHERE id = ?`, string(status), id.String())
	if err != nil {
		return fmt.Errorf("failed to update installment status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("installment not found")
	}
	return nil
}

// GetPendingInstallmentsBefore retrieves pending installments whose due
// date is strictly before the given day.
func (s *SQLiteStore) GetPendingInstallmentsBefore(day dates.Date) ([]*models.Installment, error) {
	rows, err := s.db.Query(
		`SELECT id, parent_id, sequence_number, amount, due_date, status
		FROM installments WHERE status = ? AND due_date < ? ORDER BY due_date ASC`,
		string(models.InstallmentStatusPending), day.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending installments: %w", err)
	}
	defer rows.Close()

	return scanInstallments(rows)
}

func scanInstallments(rows *sql.Rows) ([]*models.Installment, error) {
	var installments []*models.Installment
	for rows.Next() {
		inst, err := scanInstallment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan installment row: %w", err)
		}
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return installments, nil
}

func scanInstallment(row rowScanner) (*models.Installment, error) {
	var inst models.Installment
	var idStr, parentStr, statusStr string
	if err := row.Scan(&idStr, &parentStr, &inst.SequenceNumber, &inst.Amount, &inst.DueDate, &statusStr); err != nil {
		return nil, err
	}
	inst.ID = uuid.MustParse(idStr)
	inst.ParentID = uuid.MustParse(parentStr)
	inst.Status = models.InstallmentStatus(statusStr)
	return &inst, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
