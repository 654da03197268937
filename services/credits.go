package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/go-chi/chi/v5"
)

// CreditService moves credits through the ledger. The balance check and the
// ledger append happen in one database transaction, so the balance can never
// go negative; callers get repository.ErrInsufficientCredits instead.
type CreditService struct {
	store LedgerStore
}

func NewCreditService(store LedgerStore) *CreditService {
	return &CreditService{store: store}
}

// Reserve takes one credit before an analysis runs
func (s *CreditService) Reserve(ctx context.Context, userID, referenceID string) (*models.CreditTransaction, error) {
	txn, err := s.store.ApplyCreditDelta(ctx, userID, -1, models.CreditReasonAnalysis, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to reserve credit: %w", err)
	}
	slog.Info("Credit reserved", "user_id", userID, "reference_id", referenceID, "balance", txn.BalanceAfter)
	return txn, nil
}

// Refund returns the credit of a failed analysis
func (s *CreditService) Refund(ctx context.Context, userID, referenceID string) (*models.CreditTransaction, error) {
	txn, err := s.store.ApplyCreditDelta(ctx, userID, 1, models.CreditReasonRefund, referenceID)
	if err != nil {
		slog.Error("Failed to refund credit", "error", err, "user_id", userID, "reference_id", referenceID)
		return nil, fmt.Errorf("failed to refund credit: %w", err)
	}
	slog.Info("Credit refunded", "user_id", userID, "reference_id", referenceID, "balance", txn.BalanceAfter)
	return txn, nil
}

func (s *CreditService) Grant(ctx context.Context, userID string, amount int, reason, referenceID string) (*models.CreditTransaction, error) {
	txn, err := s.store.ApplyCreditDelta(ctx, userID, amount, reason, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to grant credits: %w", err)
	}
	slog.Info("Credits granted", "user_id", userID, "amount", amount, "reason", reason, "balance", txn.BalanceAfter)
	return txn, nil
}

func (s *CreditService) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	return s.store.ListCreditTransactions(ctx, userID, limit)
}

type CreditEndpoints struct {
	credits *CreditService
}

func NewCreditEndpoints(credits *CreditService) *CreditEndpoints {
	return &CreditEndpoints{credits: credits}
}

func (e *CreditEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/credits", func(r chi.Router) {
		r.Get("/", e.BalanceHandler)
		r.Get("/history", e.HistoryHandler)
	})
}

func (e *CreditEndpoints) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits": user.Credits,
	})
}

func (e *CreditEndpoints) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	limit := queryInt(r, "limit", 50, 1, 200)
	history, err := e.credits.History(r.Context(), user.ID, limit)
	if err != nil {
		http.Error(w, "Failed to get credit history", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credits":      user.Credits,
		"transactions": history,
		"count":        len(history),
	})
}

// queryInt reads an integer query parameter clamped to [min, max]
func queryInt(r *http.Request, name string, def, min, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
