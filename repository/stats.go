package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository runs the admin dashboard aggregates directly on pgx. The
// tables are the ones created by GORMRepository.AutoMigrate.
type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

type Totals struct {
	Users               int64 `json:"users"`
	Analyses            int64 `json:"analyses"`
	FailedAnalyses      int64 `json:"failed_analyses"`
	CompletedInterviews int64 `json:"completed_interviews"`
	PaidPurchases       int64 `json:"paid_purchases"`
	RevenueCents        int64 `json:"revenue_cents"`
	CreditsSold         int64 `json:"credits_sold"`
	CreditsConsumed     int64 `json:"credits_consumed"`
}

type ProviderUsage struct {
	Provider         string  `json:"provider"`
	Requests         int64   `json:"requests"`
	Failures         int64   `json:"failures"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
}

type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int64     `json:"count"`
}

const totalsQuery = `
SELECT
	(SELECT count(*) FROM users WHERE deleted_at IS NULL),
	(SELECT count(*) FROM resume_analyses WHERE deleted_at IS NULL AND status = 'completed'),
	(SELECT count(*) FROM resume_analyses WHERE deleted_at IS NULL AND status = 'failed'),
	(SELECT count(*) FROM interview_simulations WHERE deleted_at IS NULL AND status = 'completed'),
	(SELECT count(*) FROM purchases WHERE status = 'paid'),
	(SELECT coalesce(sum(amount_cents), 0) FROM purchases WHERE status = 'paid'),
	(SELECT coalesce(sum(credits), 0) FROM purchases WHERE status = 'paid'),
	(SELECT coalesce(-sum(delta), 0) FROM credit_transactions WHERE reason IN ('analysis', 'refund'))`

func (r *StatsRepository) Totals(ctx context.Context) (*Totals, error) {
	var t Totals
	err := r.pool.QueryRow(ctx, totalsQuery).Scan(
		&t.Users,
		&t.Analyses,
		&t.FailedAnalyses,
		&t.CompletedInterviews,
		&t.PaidPurchases,
		&t.RevenueCents,
		&t.CreditsSold,
		&t.CreditsConsumed,
	)
	if err != nil {
		slog.Error("Failed to query totals", "error", err)
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	return &t, nil
}

const usageByProviderQuery = `
SELECT provider,
	count(*),
	count(*) FILTER (WHERE NOT success),
	coalesce(sum(prompt_tokens), 0),
	coalesce(sum(completion_tokens), 0),
	coalesce(sum(estimated_cost_usd), 0)::float8,
	coalesce(avg(latency_ms), 0)::float8
FROM ai_usage_logs
WHERE created_at >= $1
GROUP BY provider
ORDER BY provider`

func (r *StatsRepository) UsageByProvider(ctx context.Context, since time.Time) ([]ProviderUsage, error) {
	rows, err := r.pool.Query(ctx, usageByProviderQuery, since)
	if err != nil {
		slog.Error("Failed to query AI usage", "error", err)
		return nil, fmt.Errorf("failed to query ai usage: %w", err)
	}
	usage, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ProviderUsage, error) {
		var u ProviderUsage
		err := row.Scan(&u.Provider, &u.Requests, &u.Failures, &u.PromptTokens, &u.CompletionTokens, &u.EstimatedCostUSD, &u.AvgLatencyMs)
		return u, err
	})
	if err != nil {
		slog.Error("Failed to scan AI usage", "error", err)
		return nil, fmt.Errorf("failed to scan ai usage: %w", err)
	}
	return usage, nil
}

const dailyAnalysesQuery = `
SELECT d::date, count(a.id)
FROM generate_series($1::date, current_date, interval '1 day') AS d
LEFT JOIN resume_analyses a
	ON a.created_at::date = d::date AND a.deleted_at IS NULL AND a.status = 'completed'
GROUP BY d
ORDER BY d`

// DailyAnalyses returns one row per day for the last days days, zero-filled.
func (r *StatsRepository) DailyAnalyses(ctx context.Context, days int) ([]DailyCount, error) {
	if days < 1 {
		days = 1
	}
	since := time.Now().UTC().AddDate(0, 0, -(days - 1))
	rows, err := r.pool.Query(ctx, dailyAnalysesQuery, since)
	if err != nil {
		slog.Error("Failed to query daily analyses", "error", err)
		return nil, fmt.Errorf("failed to query daily analyses: %w", err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (DailyCount, error) {
		var c DailyCount
		err := row.Scan(&c.Day, &c.Count)
		return c, err
	})
	if err != nil {
		slog.Error("Failed to scan daily analyses", "error", err)
		return nil, fmt.Errorf("failed to scan daily analyses: %w", err)
	}
	return counts, nil
}

// Ping reports whether the database is reachable
func (r *StatsRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
