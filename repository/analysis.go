package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) CreateAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error {
	if err := r.db.WithContext(ctx).Create(analysis).Error; err != nil {
		slog.Error("Failed to create analysis", "error", err, "user_id", analysis.UserID)
		return err
	}
	slog.Info("Analysis created", "analysis_id", analysis.ID, "user_id", analysis.UserID, "status", analysis.Status)
	return nil
}

// GetAnalysis returns the analysis only when it belongs to userID
func (r *GORMRepository) GetAnalysis(ctx context.Context, analysisID, userID string) (*models.ResumeAnalysis, error) {
	var analysis models.ResumeAnalysis
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", analysisID, userID).
		Preload("JobSite").
		First(&analysis).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get analysis", "error", err, "analysis_id", analysisID, "user_id", userID)
		return nil, err
	}
	return &analysis, nil
}

func (r *GORMRepository) ListAnalyses(ctx context.Context, userID string) ([]models.ResumeAnalysis, error) {
	var analyses []models.ResumeAnalysis
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&analyses).Error
	if err != nil {
		slog.Error("Failed to list analyses", "error", err, "user_id", userID)
		return nil, err
	}
	return analyses, nil
}

func (r *GORMRepository) UpdateAnalysis(ctx context.Context, analysis *models.ResumeAnalysis) error {
	if err := r.db.WithContext(ctx).Omit("JobSite", "CoverLetters").Save(analysis).Error; err != nil {
		slog.Error("Failed to update analysis", "error", err, "analysis_id", analysis.ID)
		return err
	}
	return nil
}

// Cover letter operations
func (r *GORMRepository) CreateCoverLetter(ctx context.Context, letter *models.CoverLetter) error {
	if err := r.db.WithContext(ctx).Create(letter).Error; err != nil {
		slog.Error("Failed to create cover letter", "error", err, "analysis_id", letter.AnalysisID)
		return err
	}
	slog.Info("Cover letter created", "cover_letter_id", letter.ID, "analysis_id", letter.AnalysisID)
	return nil
}

func (r *GORMRepository) ListCoverLetters(ctx context.Context, analysisID, userID string) ([]models.CoverLetter, error) {
	var letters []models.CoverLetter
	err := r.db.WithContext(ctx).
		Where("analysis_id = ? AND user_id = ?", analysisID, userID).
		Order("created_at DESC").
		Find(&letters).Error
	if err != nil {
		slog.Error("Failed to list cover letters", "error", err, "analysis_id", analysisID)
		return nil, err
	}
	return letters, nil
}

func (r *GORMRepository) GetCoverLetter(ctx context.Context, letterID, userID string) (*models.CoverLetter, error) {
	var letter models.CoverLetter
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", letterID, userID).First(&letter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get cover letter", "error", err, "cover_letter_id", letterID)
		return nil, err
	}
	return &letter, nil
}

// AI usage
func (r *GORMRepository) CreateAIUsageLog(ctx context.Context, entry *models.AIUsageLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		slog.Error("Failed to create AI usage log", "error", err, "provider", entry.Provider, "feature", entry.Feature)
		return err
	}
	return nil
}
