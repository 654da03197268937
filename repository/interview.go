package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"gorm.io/gorm"
)

// CreateSimulation stores the simulation together with its questions
func (r *GORMRepository) CreateSimulation(ctx context.Context, simulation *models.InterviewSimulation) error {
	if err := r.db.WithContext(ctx).Create(simulation).Error; err != nil {
		slog.Error("Failed to create interview simulation", "error", err, "user_id", simulation.UserID)
		return err
	}
	slog.Info("Interview simulation created", "simulation_id", simulation.ID, "user_id", simulation.UserID, "questions", len(simulation.Questions))
	return nil
}

func (r *GORMRepository) GetSimulation(ctx context.Context, simulationID, userID string) (*models.InterviewSimulation, error) {
	var simulation models.InterviewSimulation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", simulationID, userID).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("position")
		}).
		First(&simulation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get interview simulation", "error", err, "simulation_id", simulationID, "user_id", userID)
		return nil, err
	}
	return &simulation, nil
}

func (r *GORMRepository) ListSimulations(ctx context.Context, userID string) ([]models.InterviewSimulation, error) {
	var simulations []models.InterviewSimulation
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&simulations).Error
	if err != nil {
		slog.Error("Failed to list interview simulations", "error", err, "user_id", userID)
		return nil, err
	}
	return simulations, nil
}

// AnswerQuestion records the answer only while the question is still open and
// reports whether this call recorded it.
func (r *GORMRepository) AnswerQuestion(ctx context.Context, question *models.InterviewQuestion) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InterviewQuestion{}).
		Where("id = ? AND answered_at IS NULL", question.ID).
		Updates(map[string]interface{}{
			"answer":      question.Answer,
			"score":       question.Score,
			"feedback":    question.Feedback,
			"answered_at": question.AnsweredAt,
		})
	if result.Error != nil {
		slog.Error("Failed to answer interview question", "error", result.Error, "question_id", question.ID)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompleteSimulation flips an active simulation to completed and reports
// whether this call performed the transition.
func (r *GORMRepository) CompleteSimulation(ctx context.Context, simulation *models.InterviewSimulation) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InterviewSimulation{}).
		Where("id = ? AND status = ?", simulation.ID, models.SimulationStatusActive).
		Updates(map[string]interface{}{
			"status":        models.SimulationStatusCompleted,
			"overall_score": simulation.OverallScore,
			"feedback":      simulation.Feedback,
			"completed_at":  simulation.CompletedAt,
		})
	if result.Error != nil {
		slog.Error("Failed to complete interview simulation", "error", result.Error, "simulation_id", simulation.ID)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
