package services

import (
	"context"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
)

// The interfaces below are the slices of *repository.GORMRepository each
// service needs. Lookups return (nil, nil) when the record does not exist.

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type TokenStore interface {
	CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error
	GetRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	CreatePermanentToken(ctx context.Context, token *models.PermanentToken) error
	GetPermanentToken(ctx context.Context, token string) (*models.PermanentToken, error)
	DeleteAllUserTokens(ctx context.Context, userID string) error
	CreatePasswordResetToken(ctx context.Context, token *models.PasswordResetToken) error
	GetValidPasswordResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	ResetPassword(ctx context.Context, tokenID, userID, passwordHash string) (bool, error)
}

type LedgerStore interface {
	ApplyCreditDelta(ctx context.Context, userID string, delta int, reason, referenceID string) (*models.CreditTransaction, error)
	ListCreditTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)
}

type AuthStore interface {
	UserStore
	TokenStore
	LedgerStore
}

type UsageStore interface {
	CreateAIUsageLog(ctx context.Context, entry *models.AIUsageLog) error
}

type AnalysisStore interface {
	CreateAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error
	GetAnalysis(ctx context.Context, analysisID, userID string) (*models.ResumeAnalysis, error)
	ListAnalyses(ctx context.Context, userID string) ([]models.ResumeAnalysis, error)
	UpdateAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error
	CreateCoverLetter(ctx context.Context, letter *models.CoverLetter) error
	ListCoverLetters(ctx context.Context, analysisID, userID string) ([]models.CoverLetter, error)
	GetCoverLetter(ctx context.Context, letterID, userID string) (*models.CoverLetter, error)
	GetJobSite(ctx context.Context, id string) (*models.JobSite, error)
}

type PaymentStore interface {
	ListActivePackages(ctx context.Context) ([]models.CreditPackage, error)
	GetPackage(ctx context.Context, id string) (*models.CreditPackage, error)
	CreatePurchase(ctx context.Context, purchase *models.Purchase) error
	GetPurchaseBySession(ctx context.Context, sessionID string) (*models.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error)
	CompletePurchase(ctx context.Context, purchaseID string) (bool, error)
	UpdatePurchaseStatus(ctx context.Context, purchaseID, status string) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type InterviewStore interface {
	CreateSimulation(ctx context.Context, simulation *models.InterviewSimulation) error
	GetSimulation(ctx context.Context, simulationID, userID string) (*models.InterviewSimulation, error)
	ListSimulations(ctx context.Context, userID string) ([]models.InterviewSimulation, error)
	AnswerQuestion(ctx context.Context, question *models.InterviewQuestion) (bool, error)
	CompleteSimulation(ctx context.Context, simulation *models.InterviewSimulation) (bool, error)
	GetAnalysis(ctx context.Context, analysisID, userID string) (*models.ResumeAnalysis, error)
}

type JobSiteStore interface {
	ListJobSites(ctx context.Context, activeOnly bool) ([]models.JobSite, error)
	GetJobSite(ctx context.Context, id string) (*models.JobSite, error)
	CreateJobSite(ctx context.Context, site *models.JobSite) error
	UpdateJobSite(ctx context.Context, site *models.JobSite) error
	DeleteJobSite(ctx context.Context, id string) error
}

type JobStore interface {
	JobSiteStore
	CreateFoundJobs(ctx context.Context, jobs []models.FoundJob) error
	ListFoundJobs(ctx context.Context, userID string, limit int) ([]models.FoundJob, error)
	GetAnalysis(ctx context.Context, analysisID, userID string) (*models.ResumeAnalysis, error)
}

type AdminStore interface {
	JobSiteStore
	LedgerStore
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, int64, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type StatsStore interface {
	Totals(ctx context.Context) (*repository.Totals, error)
	UsageByProvider(ctx context.Context, since time.Time) ([]repository.ProviderUsage, error)
	DailyAnalyses(ctx context.Context, days int) ([]repository.DailyCount, error)
}

// Store is everything the server needs from the primary database
type Store interface {
	AuthStore
	UsageStore
	AnalysisStore
	PaymentStore
	InterviewStore
	JobStore
	AdminStore
}

var (
	_ Store          = (*repository.GORMRepository)(nil)
	_ AuthStore      = (*repository.GORMRepository)(nil)
	_ UsageStore     = (*repository.GORMRepository)(nil)
	_ AnalysisStore  = (*repository.GORMRepository)(nil)
	_ PaymentStore   = (*repository.GORMRepository)(nil)
	_ InterviewStore = (*repository.GORMRepository)(nil)
	_ JobStore       = (*repository.GORMRepository)(nil)
	_ AdminStore     = (*repository.GORMRepository)(nil)
	_ StatsStore     = (*repository.StatsRepository)(nil)
)
