package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/vportela/milesledger/pkg/cache"
	"github.com/vportela/milesledger/pkg/config"
	"github.com/vportela/milesledger/pkg/dates"
	"github.com/vportela/milesledger/pkg/ledger"
	"github.com/vportela/milesledger/pkg/models"
	"github.com/vportela/milesledger/pkg/money"
	"github.com/vportela/milesledger/pkg/schedule"
	"github.com/vportela/milesledger/pkg/store"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
}

func NewServer(s store.Storage, c cache.Cache, logger *zap.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s, c, logger),
		storage: s,
		logger:  logger,
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps the value-level error taxonomy onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidInstallmentCount),
		errors.Is(err, schedule.ErrInvalidAmount),
		errors.Is(err, schedule.ErrInvalidCalendarDay),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidTransactionType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case err.Error() == "card not found",
		err.Error() == "schedule not found",
		err.Error() == "installment not found":
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) createCardHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string       `json:"name"`
		ClosingDay int          `json:"closing_day"`
		DueDay     int          `json:"due_day"`
		Limit      money.Amount `json:"limit"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	card, err := s.ledger.CreateCard(req.Name, req.ClosingDay, req.DueDay, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, card)
}

func (s *Server) getCardHandler(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}

	card, err := s.ledger.GetCard(cardID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) listCardsHandler(w http.ResponseWriter, r *http.Request) {
	cards, err := s.ledger.GetAllCards()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cards)
}

func (s *Server) updateCardHandler(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}

	var card models.Card
	if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	card.ID = cardID // Ensure ID from URL is used

	if err := s.ledger.UpdateCard(&card); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, card)
}

func (s *Server) deleteCardHandler(w http.ResponseWriter, r *http.Request) {
	cardID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid card ID", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeleteCard(cardID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createPurchaseHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountKey       string       `json:"account_key"`
		ProgramKey       string       `json:"program_key"`
		Quantity         int64        `json:"quantity"`
		TotalCost        money.Amount `json:"total_cost"`
		Date             dates.Date   `json:"date"`
		CPF              string       `json:"cpf"`
		Description      string       `json:"description"`
		InstallmentCount int          `json:"installment_count"`
		CardID           *uuid.UUID   `json:"card_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	input := ledger.PurchaseInput{
		AccountKey:       req.AccountKey,
		ProgramKey:       req.ProgramKey,
		Quantity:         req.Quantity,
		TotalCost:        req.TotalCost,
		Date:             req.Date,
		CPF:              req.CPF,
		Description:      req.Description,
		InstallmentCount: req.InstallmentCount,
	}
	if req.CardID != nil {
		card, err := s.ledger.GetCard(*req.CardID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		input.Card = card
	}

	result, err := s.ledger.RecordPurchase(input)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) createSaleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountKey       string       `json:"account_key"`
		ProgramKey       string       `json:"program_key"`
		Quantity         int64        `json:"quantity"`
		SalePrice        money.Amount `json:"sale_price"`
		Date             dates.Date   `json:"date"`
		CPF              string       `json:"cpf"`
		Description      string       `json:"description"`
		InstallmentCount int          `json:"installment_count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := s.ledger.RecordSale(ledger.SaleInput{
		AccountKey:       req.AccountKey,
		ProgramKey:       req.ProgramKey,
		Quantity:         req.Quantity,
		SalePrice:        req.SalePrice,
		Date:             req.Date,
		CPF:              req.CPF,
		Description:      req.Description,
		InstallmentCount: req.InstallmentCount,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, result)
}

func (s *Server) createAdjustmentHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountKey string     `json:"account_key"`
		ProgramKey string     `json:"program_key"`
		Type       string     `json:"type"`
		Quantity   int64      `json:"quantity"`
		Date       dates.Date `json:"date"`
		CPF        string     `json:"cpf"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := s.ledger.RecordAdjustment(ledger.AdjustmentInput{
		AccountKey: req.AccountKey,
		ProgramKey: req.ProgramKey,
		Type:       models.TransactionType(req.Type),
		Quantity:   req.Quantity,
		Date:       req.Date,
		CPF:        req.CPF,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) listTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	txs, err := s.ledger.GetAllTransactions()
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, txs)
}

func (s *Server) getPositionHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	pos, err := s.ledger.Position(vars["account"], vars["program"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pos)
}

func (s *Server) saleQuoteHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountKey string       `json:"account_key"`
		ProgramKey string       `json:"program_key"`
		SaleValue  money.Amount `json:"sale_value"`
		Quantity   int64        `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	quote, err := s.ledger.SaleQuote(req.AccountKey, req.ProgramKey, req.SaleValue, req.Quantity)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) getScheduleInstallmentsHandler(w http.ResponseWriter, r *http.Request) {
	scheduleID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid schedule ID", http.StatusBadRequest)
		return
	}

	if _, err := s.ledger.GetSchedule(scheduleID); err != nil {
		s.writeError(w, err)
		return
	}
	installments, err := s.ledger.GetInstallmentsForSchedule(scheduleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, installments)
}

func (s *Server) payInstallmentHandler(w http.ResponseWriter, r *http.Request) {
	installmentID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid installment ID", http.StatusBadRequest)
		return
	}

	inst, err := s.ledger.PayInstallment(installmentID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/cards", s.listCardsHandler).Methods("GET")
	router.HandleFunc("/cards", s.createCardHandler).Methods("POST")
	router.HandleFunc("/cards/{id}", s.getCardHandler).Methods("GET")
	router.HandleFunc("/cards/{id}", s.updateCardHandler).Methods("PUT")
	router.HandleFunc("/cards/{id}", s.deleteCardHandler).Methods("DELETE")

	router.HandleFunc("/purchases", s.createPurchaseHandler).Methods("POST")
	router.HandleFunc("/sales", s.createSaleHandler).Methods("POST")
	router.HandleFunc("/sales/quote", s.saleQuoteHandler).Methods("POST")
	router.HandleFunc("/adjustments", s.createAdjustmentHandler).Methods("POST")
	router.HandleFunc("/transactions", s.listTransactionsHandler).Methods("GET")

	router.HandleFunc("/positions/{account}/{program}", s.getPositionHandler).Methods("GET")

	router.HandleFunc("/schedules/{id}/installments", s.getScheduleInstallmentsHandler).Methods("GET")
	router.HandleFunc("/installments/{id}/pay", s.payInstallmentHandler).Methods("POST")

	return router
}

// initializeLogger creates a zap logger based on configuration.
func initializeLogger(loggingConfig config.LoggingConfig) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch loggingConfig.Level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "", "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", loggingConfig.Level)
	}

	var zapConfig zap.Config
	switch loggingConfig.Format {
	case "console":
		zapConfig = zap.NewDevelopmentConfig()
	case "", "json":
		zapConfig = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", loggingConfig.Format)
	}
	zapConfig.Level = zap.NewAtomicLevelAt(zapLevel)

	return zapConfig.Build()
}

func main() {
	configLocation := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	conf, err := config.Load(*configLocation)
	if err != nil {
		fmt.Printf("failed to load configuration at %s: %v\n", *configLocation, err)
		return
	}

	logger, err := initializeLogger(conf.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	sqliteStore, err := store.NewSQLiteStore(conf.DatabasePath)
	if err != nil {
		logger.Fatal("failed to initialize SQLite store", zap.Error(err))
	}
	defer sqliteStore.Close()

	var positionCache cache.Cache
	if conf.RedisAddr != "" {
		positionCache = cache.NewRedisCache(conf.RedisAddr)
		logger.Info("using redis position cache", zap.String("addr", conf.RedisAddr))
	} else {
		positionCache = cache.NewMemoryCache()
	}

	server := NewServer(sqliteStore, positionCache, logger)

	// Sweep pending installments past their due date into overdue.
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			updated, err := server.ledger.MarkOverdue(dates.Today())
			if err != nil {
				logger.Error("overdue sweep failed", zap.Error(err))
				continue
			}
			if updated > 0 {
				logger.Info("overdue sweep complete", zap.Int("updated", updated))
			}
		}
	}()

	logger.Info("server starting", zap.String("addr", conf.ListenAddr))
	if err := http.ListenAndServe(conf.ListenAddr, server.routes()); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
