package store

import (
	"github.com/google/uuid"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/models"
)

// Storage defines the interface for database operations on cards, mile
// transactions and installment schedules.
type Storage interface {
	CreateCard(card *models.Card) error
	GetCard(id uuid.UUID) (*models.Card, error)
	UpdateCard(card *models.Card) error
	DeleteCard(id uuid.UUID) error
	GetAllCards() ([]*models.Card, error)

	CreateTransaction(tx *models.MileTransaction) error
	GetAllTransactions() ([]*models.MileTransaction, error)
	GetTransactionsForPosition(accountKey, programKey string) ([]*models.MileTransaction, error)

	// CreateSchedule persists the header and all installment rows in a
	// single database transaction; the batch is never written partially.
	CreateSchedule(schedule *models.Schedule, installments []*models.Installment) error
	GetSchedule(id uuid.UUID) (*models.Schedule, error)
	GetInstallmentsForSchedule(parentID uuid.UUID) ([]*models.Installment, error)
	GetInstallment(id uuid.UUID) (*models.Installment, error)
	UpdateInstallmentStatus(id uuid.UUID, status models.InstallmentStatus) error
	GetPendingInstallmentsBefore(day dates.Date) ([]*models.Installment, error)

	Close() error
}
