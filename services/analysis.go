package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/google/uuid"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrAnalysisNotCompleted = errors.New("analysis did not complete")
)

type AnalyzeRequest struct {
	FileName       string
	ResumeText     string
	JobSiteID      string
	TargetRole     string
	JobDescription string
	Language       string
}

// AnalysisService runs résumé analyses and the artifacts derived from them
type AnalysisService struct {
	store          AnalysisStore
	credits        *CreditService
	ai             *AIService
	notifier       *Notifier
	metrics        *Metrics
	maxResumeChars int
}

func NewAnalysisService(store AnalysisStore, credits *CreditService, ai *AIService, notifier *Notifier, metrics *Metrics, maxResumeChars int) *AnalysisService {
	return &AnalysisService{
		store:          store,
		credits:        credits,
		ai:             ai,
		notifier:       notifier,
		metrics:        metrics,
		maxResumeChars: maxResumeChars,
	}
}

// Analyze charges one credit and asks the AI for an assessment. When every
// provider fails the credit is refunded, a failed analysis is stored and
// returned together with an error wrapping ErrAllProvidersFailed. The int is
// the user's balance afterwards.
func (s *AnalysisService) Analyze(ctx context.Context, user *models.User, req AnalyzeRequest) (*models.ResumeAnalysis, int, error) {
	text := TruncateText(NormalizeText(req.ResumeText), s.maxResumeChars)
	if text == "" {
		return nil, user.Credits, ErrEmptyResume
	}

	language := req.Language
	if language == "" {
		language = DefaultLanguage
	}

	analysis := &models.ResumeAnalysis{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		FileName:       req.FileName,
		ResumeText:     text,
		TargetRole:     strings.TrimSpace(req.TargetRole),
		JobDescription: strings.TrimSpace(req.JobDescription),
		Language:       language,
	}

	var site *models.JobSite
	if req.JobSiteID != "" {
		var err error
		site, err = s.store.GetJobSite(ctx, req.JobSiteID)
		if err != nil {
			return nil, user.Credits, fmt.Errorf("failed to get job site: %w", err)
		}
		if site == nil || !site.IsActive {
			return nil, user.Credits, fmt.Errorf("job site %w", ErrNotFound)
		}
		analysis.JobSiteID = &site.ID
	}

	reservation, err := s.credits.Reserve(ctx, user.ID, analysis.ID)
	if err != nil {
		return nil, user.Credits, err
	}
	balance := reservation.BalanceAfter

	var result AnalysisResult
	prompt := BuildAnalysisPrompt(AnalysisInput{
		ResumeText:     text,
		TargetRole:     analysis.TargetRole,
		JobDescription: analysis.JobDescription,
		Language:       language,
		JobSite:        site,
	})
	completion, aiErr := s.ai.GenerateJSON(ctx, user.ID, models.FeatureAnalysis, prompt, &result)
	if aiErr != nil {
		balance = s.refund(ctx, user.ID, analysis.ID, balance)
		analysis.Status = models.AnalysisStatusFailed
		analysis.ErrorMessage = aiErr.Error()
		if err := s.store.CreateAnalysis(context.WithoutCancel(ctx), analysis); err != nil {
			slog.Error("Failed to store failed analysis", "error", err, "analysis_id", analysis.ID)
		}
		return analysis, balance, fmt.Errorf("failed to analyze resume: %w", aiErr)
	}

	applyAnalysisResult(analysis, &result)
	analysis.Status = models.AnalysisStatusCompleted
	analysis.Provider = completion.Provider
	analysis.Model = completion.Model

	if err := s.store.CreateAnalysis(ctx, analysis); err != nil {
		balance = s.refund(ctx, user.ID, analysis.ID, balance)
		return nil, balance, fmt.Errorf("failed to store analysis: %w", err)
	}

	s.metrics.CreditConsumed()
	user.Credits = balance
	s.notifier.AnalysisCompleted(user, analysis)

	slog.Info("Resume analyzed", "analysis_id", analysis.ID, "user_id", user.ID, "score", analysis.Score, "provider", analysis.Provider)
	return analysis, balance, nil
}

func (s *AnalysisService) refund(ctx context.Context, userID, analysisID string, balance int) int {
	txn, err := s.credits.Refund(context.WithoutCancel(ctx), userID, analysisID)
	if err != nil {
		return balance
	}
	return txn.BalanceAfter
}

func applyAnalysisResult(analysis *models.ResumeAnalysis, result *AnalysisResult) {
	analysis.Score = clampScore(result.Score, 100)
	analysis.Summary = strings.TrimSpace(result.Summary)
	analysis.Strengths = cleanList(result.Strengths)
	analysis.Weaknesses = cleanList(result.Weaknesses)
	analysis.Suggestions = cleanList(result.Suggestions)
	analysis.Keywords = cleanList(result.Keywords)
}

// clampScore bounds score to [0, max] and rounds to two decimals
func clampScore(score, max float64) float64 {
	if math.IsNaN(score) || score < 0 {
		return 0
	}
	if score > max {
		return max
	}
	return math.Round(score*100) / 100
}

// cleanList trims items and drops empty ones and duplicates
func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		key := strings.ToLower(item)
		if item == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, item)
	}
	return out
}

func (s *AnalysisService) Get(ctx context.Context, userID, analysisID string) (*models.ResumeAnalysis, error) {
	analysis, err := s.store.GetAnalysis(ctx, analysisID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	if analysis == nil {
		return nil, ErrNotFound
	}
	return analysis, nil
}

func (s *AnalysisService) List(ctx context.Context, userID string) ([]models.ResumeAnalysis, error) {
	return s.store.ListAnalyses(ctx, userID)
}

func (s *AnalysisService) completed(ctx context.Context, userID, analysisID string) (*models.ResumeAnalysis, error) {
	analysis, err := s.Get(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}
	if analysis.Status != models.AnalysisStatusCompleted {
		return nil, ErrAnalysisNotCompleted
	}
	return analysis, nil
}

// Improve rewrites the résumé. An existing rewrite is returned as is unless
// force is set.
func (s *AnalysisService) Improve(ctx context.Context, userID, analysisID string, force bool) (*models.ResumeAnalysis, error) {
	analysis, err := s.completed(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}
	if analysis.ImprovedResume != "" && !force {
		return analysis, nil
	}

	completion, err := s.ai.Generate(ctx, userID, models.FeatureImprove, BuildImprovePrompt(analysis))
	if err != nil {
		return nil, fmt.Errorf("failed to improve resume: %w", err)
	}

	now := time.Now()
	analysis.ImprovedResume = stripCodeFence(completion.Text)
	analysis.ImprovedAt = &now
	if err := s.store.UpdateAnalysis(ctx, analysis); err != nil {
		return nil, fmt.Errorf("failed to store improved resume: %w", err)
	}

	slog.Info("Resume improved", "analysis_id", analysis.ID, "user_id", userID, "provider", completion.Provider)
	return analysis, nil
}

func (s *AnalysisService) CreateCoverLetter(ctx context.Context, userID, analysisID string, in CoverLetterInput) (*models.CoverLetter, error) {
	analysis, err := s.completed(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}

	completion, err := s.ai.Generate(ctx, userID, models.FeatureCoverLetter, BuildCoverLetterPrompt(analysis, in))
	if err != nil {
		return nil, fmt.Errorf("failed to write cover letter: %w", err)
	}

	letter := &models.CoverLetter{
		UserID:      userID,
		AnalysisID:  analysis.ID,
		CompanyName: in.CompanyName,
		JobTitle:    in.JobTitle,
		Content:     stripCodeFence(completion.Text),
		Provider:    completion.Provider,
		Model:       completion.Model,
	}
	if err := s.store.CreateCoverLetter(ctx, letter); err != nil {
		return nil, fmt.Errorf("failed to store cover letter: %w", err)
	}
	return letter, nil
}

func (s *AnalysisService) ListCoverLetters(ctx context.Context, userID, analysisID string) ([]models.CoverLetter, error) {
	if _, err := s.Get(ctx, userID, analysisID); err != nil {
		return nil, err
	}
	return s.store.ListCoverLetters(ctx, analysisID, userID)
}

func (s *AnalysisService) GetCoverLetter(ctx context.Context, userID, letterID string) (*models.CoverLetter, error) {
	letter, err := s.store.GetCoverLetter(ctx, letterID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cover letter: %w", err)
	}
	if letter == nil {
		return nil, ErrNotFound
	}
	return letter, nil
}

// stripCodeFence removes a Markdown fence wrapped around plain-text output
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.Index(text, "\n"); i >= 0 {
		text = text[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}
