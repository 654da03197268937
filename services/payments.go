package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var (
	ErrPaymentNotCompleted = errors.New("payment not completed")
	ErrCheckoutExpired     = errors.New("checkout session expired")
	ErrPaymentsUnavailable = errors.New("payments are not configured")
)

type PaymentService struct {
	store      PaymentStore
	gateway    CheckoutGateway
	notifier   *Notifier
	metrics    *Metrics
	successURL string
	cancelURL  string
}

func NewPaymentService(store PaymentStore, gateway CheckoutGateway, notifier *Notifier, metrics *Metrics, cfg StripeConfig) *PaymentService {
	return &PaymentService{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		metrics:    metrics,
		successURL: cfg.SuccessURL,
		cancelURL:  cfg.CancelURL,
	}
}

func (s *PaymentService) Packages(ctx context.Context) ([]models.CreditPackage, error) {
	return s.store.ListActivePackages(ctx)
}

// Checkout opens a hosted checkout session and records a pending purchase
func (s *PaymentService) Checkout(ctx context.Context, user *models.User, packageID string) (*models.Purchase, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsUnavailable
	}

	pkg, err := s.store.GetPackage(ctx, packageID)
	if err != nil {
		return nil, fmt.Errorf("failed to get package: %w", err)
	}
	if pkg == nil {
		return nil, fmt.Errorf("package %w", ErrNotFound)
	}

	purchaseID := uuid.New().String()
	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		PurchaseID: purchaseID,
		UserID:     user.ID,
		Email:      user.Email,
		Package:    pkg,
		SuccessURL: s.successURL,
		CancelURL:  s.cancelURL,
	})
	if err != nil {
		return nil, err
	}

	purchase := &models.Purchase{
		ID:              purchaseID,
		UserID:          user.ID,
		PackageID:       pkg.ID,
		Credits:         pkg.Credits,
		AmountCents:     pkg.PriceCents,
		Currency:        pkg.Currency,
		Status:          models.PurchaseStatusPending,
		StripeSessionID: session.ID,
		CheckoutURL:     session.URL,
	}
	if err := s.store.CreatePurchase(ctx, purchase); err != nil {
		return nil, fmt.Errorf("failed to store purchase: %w", err)
	}

	slog.Info("Checkout started", "purchase_id", purchase.ID, "user_id", user.ID, "package_id", pkg.ID, "session_id", session.ID)
	return purchase, nil
}

type ConfirmResult struct {
	Purchase *models.Purchase `json:"purchase"`
	Credited bool             `json:"credited"`
	Credits  int              `json:"credits"`
}

// Confirm checks the session with Stripe and credits the purchase once.
// Confirming an already paid purchase returns it without crediting again.
func (s *PaymentService) Confirm(ctx context.Context, user *models.User, sessionID string) (*ConfirmResult, error) {
	purchase, err := s.store.GetPurchaseBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase: %w", err)
	}
	if purchase == nil || purchase.UserID != user.ID {
		return nil, fmt.Errorf("purchase %w", ErrNotFound)
	}

	switch purchase.Status {
	case models.PurchaseStatusPaid:
		return &ConfirmResult{Purchase: purchase, Credits: user.Credits}, nil
	case models.PurchaseStatusExpired, models.PurchaseStatusFailed:
		return nil, ErrCheckoutExpired
	}

	if s.gateway == nil {
		return nil, ErrPaymentsUnavailable
	}
	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if session.Expired() {
		if err := s.store.UpdatePurchaseStatus(ctx, purchase.ID, models.PurchaseStatusExpired); err != nil {
			return nil, fmt.Errorf("failed to expire purchase: %w", err)
		}
		return nil, ErrCheckoutExpired
	}
	if !session.Paid() {
		return nil, ErrPaymentNotCompleted
	}
	if session.AmountTotal != purchase.AmountCents {
		slog.Warn("Checkout amount differs from purchase", "purchase_id", purchase.ID,
			"expected_cents", purchase.AmountCents, "paid_cents", session.AmountTotal)
	}

	credited, err := s.store.CompletePurchase(ctx, purchase.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to complete purchase: %w", err)
	}

	if purchase, err = s.store.GetPurchaseBySession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to reload purchase: %w", err)
	}
	balance := user.Credits
	if fresh, err := s.store.GetUserByID(ctx, user.ID); err == nil && fresh != nil {
		balance = fresh.Credits
	}

	if credited {
		s.metrics.PurchaseCompleted()
		s.notifier.PurchaseReceipt(user, purchase, balance)
		slog.Info("Purchase completed", "purchase_id", purchase.ID, "user_id", user.ID, "credits", purchase.Credits, "balance", balance)
	}
	return &ConfirmResult{Purchase: purchase, Credited: credited, Credits: balance}, nil
}

func (s *PaymentService) Purchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	return s.store.ListPurchases(ctx, userID)
}

type PaymentEndpoints struct {
	payments *PaymentService
}

type CheckoutRequestBody struct {
	PackageID string `json:"package_id" validate:"required,uuid"`
}

type ConfirmRequestBody struct {
	SessionID string `json:"session_id" validate:"required"`
}

func NewPaymentEndpoints(payments *PaymentService) *PaymentEndpoints {
	return &PaymentEndpoints{payments: payments}
}

// RegisterPublicRoutes mounts the routes that need no authentication
func (e *PaymentEndpoints) RegisterPublicRoutes(r chi.Router) {
	r.Get("/payments/packages", e.PackagesHandler)
}

func (e *PaymentEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/payments/checkout", e.CheckoutHandler)
	r.Post("/payments/confirm", e.ConfirmHandler)
	r.Get("/payments/purchases", e.PurchasesHandler)
}

func (e *PaymentEndpoints) PackagesHandler(w http.ResponseWriter, r *http.Request) {
	packages, err := e.payments.Packages(r.Context())
	if err != nil {
		http.Error(w, "Failed to list packages", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"packages": packages,
		"count":    len(packages),
	})
}

func writePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, ErrCheckoutExpired):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrPaymentNotCompleted):
		http.Error(w, err.Error(), http.StatusPaymentRequired)
	case errors.Is(err, ErrPaymentsUnavailable):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		slog.Error("Payment request failed", "error", err)
		http.Error(w, "Payment request failed", http.StatusBadGateway)
	}
}

func (e *PaymentEndpoints) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CheckoutRequestBody
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	purchase, err := e.payments.Checkout(r.Context(), user, req.PackageID)
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"purchase_id":  purchase.ID,
		"session_id":   purchase.StripeSessionID,
		"checkout_url": purchase.CheckoutURL,
	})
}

func (e *PaymentEndpoints) ConfirmHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req ConfirmRequestBody
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := e.payments.Confirm(r.Context(), user, req.SessionID)
	if err != nil {
		writePaymentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *PaymentEndpoints) PurchasesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	purchases, err := e.payments.Purchases(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to list purchases", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"purchases": purchases,
		"count":     len(purchases),
	})
}
