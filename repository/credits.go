package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"gorm.io/gorm"
)

var ErrInsufficientCredits = errors.New("insufficient credits")

// ApplyCreditDelta changes the user's balance by delta and appends a ledger
// entry in the same transaction. The balance can never go below zero.
func (r *GORMRepository) ApplyCreditDelta(ctx context.Context, userID string, delta int, reason, referenceID string) (*models.CreditTransaction, error) {
	var entry *models.CreditTransaction
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = applyCreditDelta(tx, userID, delta, reason, referenceID)
		return err
	})
	if err != nil {
		if !errors.Is(err, ErrInsufficientCredits) {
			slog.Error("Failed to apply credit delta", "error", err, "user_id", userID, "delta", delta, "reason", reason)
		}
		return nil, err
	}
	slog.Info("Credits updated", "user_id", userID, "delta", delta, "reason", reason, "balance", entry.BalanceAfter)
	return entry, nil
}

func applyCreditDelta(tx *gorm.DB, userID string, delta int, reason, referenceID string) (*models.CreditTransaction, error) {
	res := tx.Model(&models.User{}).
		Where("id = ? AND credits + ? >= 0", userID, delta).
		Update("credits", gorm.Expr("credits + ?", delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientCredits
	}

	var balance int
	if err := tx.Model(&models.User{}).Where("id = ?", userID).Select("credits").Scan(&balance).Error; err != nil {
		return nil, err
	}

	entry := &models.CreditTransaction{
		UserID:       userID,
		Delta:        delta,
		Reason:       reason,
		ReferenceID:  referenceID,
		BalanceAfter: balance,
	}
	if err := tx.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *GORMRepository) ListCreditTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	var entries []models.CreditTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		slog.Error("Failed to list credit transactions", "error", err, "user_id", userID)
		return nil, err
	}
	return entries, nil
}

// Package operations
func (r *GORMRepository) ListActivePackages(ctx context.Context) ([]models.CreditPackage, error) {
	var packages []models.CreditPackage
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("price_cents").Find(&packages).Error; err != nil {
		slog.Error("Failed to list credit packages", "error", err)
		return nil, err
	}
	return packages, nil
}

func (r *GORMRepository) GetPackage(ctx context.Context, id string) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	if err := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&pkg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get credit package", "error", err, "package_id", id)
		return nil, err
	}
	return &pkg, nil
}

// UpsertPackage creates the package when no package with the same name exists
func (r *GORMRepository) UpsertPackage(ctx context.Context, pkg *models.CreditPackage) error {
	err := r.db.WithContext(ctx).Where(models.CreditPackage{Name: pkg.Name}).FirstOrCreate(pkg).Error
	if err != nil {
		slog.Error("Failed to upsert credit package", "error", err, "name", pkg.Name)
		return err
	}
	return nil
}

// Purchase operations
func (r *GORMRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		slog.Error("Failed to create purchase", "error", err, "user_id", purchase.UserID)
		return err
	}
	slog.Info("Purchase created", "purchase_id", purchase.ID, "user_id", purchase.UserID, "session_id", purchase.StripeSessionID)
	return nil
}

func (r *GORMRepository) GetPurchaseBySession(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get purchase by session", "error", err, "session_id", sessionID)
		return nil, err
	}
	return &purchase, nil
}

func (r *GORMRepository) ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Preload("Package").Order("created_at DESC").Find(&purchases).Error
	if err != nil {
		slog.Error("Failed to list purchases", "error", err, "user_id", userID)
		return nil, err
	}
	return purchases, nil
}

// CompletePurchase flips a pending purchase to paid and credits the user in one
// transaction. It reports false when the purchase was not pending, so a
// repeated confirmation never credits twice.
func (r *GORMRepository) CompletePurchase(ctx context.Context, purchaseID string) (bool, error) {
	completed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.Purchase{}).
			Where("id = ? AND status = ?", purchaseID, models.PurchaseStatusPending).
			Updates(map[string]interface{}{"status": models.PurchaseStatusPaid, "paid_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		var purchase models.Purchase
		if err := tx.Where("id = ?", purchaseID).First(&purchase).Error; err != nil {
			return err
		}
		if _, err := applyCreditDelta(tx, purchase.UserID, purchase.Credits, models.CreditReasonPurchase, purchase.ID); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		slog.Error("Failed to complete purchase", "error", err, "purchase_id", purchaseID)
		return false, err
	}
	return completed, nil
}

func (r *GORMRepository) UpdatePurchaseStatus(ctx context.Context, purchaseID, status string) error {
	err := r.db.WithContext(ctx).Model(&models.Purchase{}).
		Where("id = ? AND status = ?", purchaseID, models.PurchaseStatusPending).
		Update("status", status).Error
	if err != nil {
		slog.Error("Failed to update purchase status", "error", err, "purchase_id", purchaseID, "status", status)
		return err
	}
	return nil
}
