package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"gorm.io/gorm"
)

func (r *GORMRepository) ListJobSites(ctx context.Context, activeOnly bool) ([]models.JobSite, error) {
	var sites []models.JobSite
	query := r.db.WithContext(ctx).Order("name")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&sites).Error; err != nil {
		slog.Error("Failed to list job sites", "error", err)
		return nil, err
	}
	return sites, nil
}

func (r *GORMRepository) GetJobSite(ctx context.Context, id string) (*models.JobSite, error) {
	var site models.JobSite
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get job site", "error", err, "job_site_id", id)
		return nil, err
	}
	return &site, nil
}

func (r *GORMRepository) GetJobSiteBySlug(ctx context.Context, slug string) (*models.JobSite, error) {
	var site models.JobSite
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&site).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.Error("Failed to get job site by slug", "error", err, "slug", slug)
		return nil, err
	}
	return &site, nil
}

func (r *GORMRepository) CreateJobSite(ctx context.Context, site *models.JobSite) error {
	if err := r.db.WithContext(ctx).Create(site).Error; err != nil {
		slog.Error("Failed to create job site", "error", err, "slug", site.Slug)
		return err
	}
	slog.Info("Job site created", "job_site_id", site.ID, "slug", site.Slug)
	return nil
}

func (r *GORMRepository) UpdateJobSite(ctx context.Context, site *models.JobSite) error {
	if err := r.db.WithContext(ctx).Save(site).Error; err != nil {
		slog.Error("Failed to update job site", "error", err, "job_site_id", site.ID)
		return err
	}
	return nil
}

func (r *GORMRepository) DeleteJobSite(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.JobSite{}).Error; err != nil {
		slog.Error("Failed to delete job site", "error", err, "job_site_id", id)
		return err
	}
	slog.Info("Job site deleted", "job_site_id", id)
	return nil
}

// Found job operations
func (r *GORMRepository) CreateFoundJobs(ctx context.Context, jobs []models.FoundJob) error {
	if len(jobs) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(jobs, 100).Error; err != nil {
		slog.Error("Failed to create found jobs", "error", err, "count", len(jobs))
		return err
	}
	return nil
}

func (r *GORMRepository) ListFoundJobs(ctx context.Context, userID string, limit int) ([]models.FoundJob, error) {
	var jobs []models.FoundJob
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, match_score DESC").
		Limit(limit).
		Find(&jobs).Error
	if err != nil {
		slog.Error("Failed to list found jobs", "error", err, "user_id", userID)
		return nil, err
	}
	return jobs, nil
}
