package models

import (
	"time"

	"gorm.io/gorm"
)

// Credit ledger reasons
const (
	CreditReasonSignupBonus = "signup_bonus"
	CreditReasonPurchase    = "purchase"
	CreditReasonAnalysis    = "analysis"
	CreditReasonRefund      = "refund"
	CreditReasonAdminGrant  = "admin_grant"
)

// Purchase statuses
const (
	PurchaseStatusPending = "pending"
	PurchaseStatusPaid    = "paid"
	PurchaseStatusExpired = "expired"
	PurchaseStatusFailed  = "failed"
)

// CreditTransaction is an append-only ledger entry. BalanceAfter is the user's
// balance once Delta was applied.
type CreditTransaction struct {
	ID           string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID       string    `gorm:"type:uuid;not null;index" json:"user_id"`
	Delta        int       `gorm:"not null" json:"delta"`
	Reason       string    `gorm:"size:50;not null" json:"reason"`
	ReferenceID  string    `gorm:"size:255;index" json:"reference_id,omitempty"`
	BalanceAfter int       `gorm:"not null" json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name        string         `gorm:"uniqueIndex;not null" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	Credits     int            `gorm:"not null" json:"credits"`
	PriceCents  int64          `gorm:"not null" json:"price_cents"`
	Currency    string         `gorm:"size:3;not null" json:"currency"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

type Purchase struct {
	ID              string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string     `gorm:"type:uuid;not null;index" json:"user_id"`
	PackageID       string     `gorm:"type:uuid;not null;index" json:"package_id"`
	Credits         int        `gorm:"not null" json:"credits"`
	AmountCents     int64      `gorm:"not null" json:"amount_cents"`
	Currency        string     `gorm:"size:3;not null" json:"currency"`
	Status          string     `gorm:"not null;default:'pending';check:status IN ('pending', 'paid', 'expired', 'failed')" json:"status"`
	StripeSessionID string     `gorm:"uniqueIndex" json:"stripe_session_id"`
	CheckoutURL     string     `gorm:"type:text" json:"checkout_url,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Package CreditPackage `gorm:"foreignKey:PackageID" json:"package,omitempty"`
}
