package services

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
)

// AdminEndpoints serves the back office. Every route expects the auth
// middleware and RequireAdmin in front of it.
type AdminEndpoints struct {
	store AdminStore
	stats StatsStore
}

type GrantCreditsRequest struct {
	Amount int    `json:"amount" validate:"required,min=-1000,max=1000"`
	Reason string `json:"reason" validate:"required,max=200"`
}

type JobSiteRequest struct {
	Name              string   `json:"name" validate:"required,max=255"`
	Slug              string   `json:"slug" validate:"required,max=100"`
	BaseURL           string   `json:"base_url" validate:"required,url"`
	SearchURLTemplate string   `json:"search_url_template" validate:"required,max=1000,contains={keywords}"`
	Keywords          []string `json:"keywords" validate:"max=50,dive,max=100"`
	Characteristics   string   `json:"characteristics" validate:"max=5000"`
	ScrapeEnabled     bool     `json:"scrape_enabled"`
	ResultSelector    string   `json:"result_selector" validate:"required_if=ScrapeEnabled true,max=255"`
	TitleSelector     string   `json:"title_selector" validate:"required_if=ScrapeEnabled true,max=255"`
	CompanySelector   string   `json:"company_selector" validate:"max=255"`
	LocationSelector  string   `json:"location_selector" validate:"max=255"`
	LinkSelector      string   `json:"link_selector" validate:"max=255"`
	IsActive          *bool    `json:"is_active"`
}

func NewAdminEndpoints(store AdminStore, stats StatsStore) *AdminEndpoints {
	return &AdminEndpoints{store: store, stats: stats}
}

func (e *AdminEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", e.StatsHandler)
		r.Get("/users", e.ListUsersHandler)
		r.Post("/users/{id}/credits", e.GrantCreditsHandler)
		r.Get("/job-sites", e.ListJobSitesHandler)
		r.Post("/job-sites", e.CreateJobSiteHandler)
		r.Put("/job-sites/{id}", e.UpdateJobSiteHandler)
		r.Delete("/job-sites/{id}", e.DeleteJobSiteHandler)
	})
}

func (e *AdminEndpoints) StatsHandler(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 30, 1, 365)
	ctx := r.Context()

	totals, err := e.stats.Totals(ctx)
	if err != nil {
		slog.Error("Failed to load totals", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	usage, err := e.stats.UsageByProvider(ctx, time.Now().AddDate(0, 0, -days))
	if err != nil {
		slog.Error("Failed to load provider usage", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}
	daily, err := e.stats.DailyAnalyses(ctx, days)
	if err != nil {
		slog.Error("Failed to load daily analyses", "error", err)
		http.Error(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"days":           days,
		"totals":         totals,
		"providers":      usage,
		"daily_analyses": daily,
	})
}

func (e *AdminEndpoints) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1, 200)
	offset := queryInt(r, "offset", 0, 0, 1<<30)

	users, total, err := e.store.ListUsers(r.Context(), limit, offset)
	if err != nil {
		slog.Error("Failed to list users", "error", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users":  users,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (e *AdminEndpoints) GrantCreditsHandler(w http.ResponseWriter, r *http.Request) {
	admin, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req GrantCreditsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userID := chi.URLParam(r, "id")
	user, err := e.store.GetUserByID(r.Context(), userID)
	if err != nil {
		slog.Error("Failed to get user", "error", err, "user_id", userID)
		http.Error(w, "Failed to grant credits", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	reference := TruncateText("admin:"+admin.ID+": "+strings.TrimSpace(req.Reason), 255)
	entry, err := e.store.ApplyCreditDelta(r.Context(), user.ID, req.Amount, models.CreditReasonAdminGrant, reference)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientCredits) {
			http.Error(w, "Balance cannot go below zero", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to grant credits", http.StatusInternalServerError)
		return
	}

	slog.Info("Admin credit grant", "admin_id", admin.ID, "user_id", user.ID, "amount", req.Amount)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transaction": entry,
		"credits":     entry.BalanceAfter,
	})
}

func (e *AdminEndpoints) ListJobSitesHandler(w http.ResponseWriter, r *http.Request) {
	sites, err := e.store.ListJobSites(r.Context(), false)
	if err != nil {
		http.Error(w, "Failed to list job sites", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sites": sites,
		"count": len(sites),
	})
}

func (e *AdminEndpoints) CreateJobSiteHandler(w http.ResponseWriter, r *http.Request) {
	var req JobSiteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	site := &models.JobSite{IsActive: true}
	req.apply(site)
	active := site.IsActive
	if err := e.store.CreateJobSite(r.Context(), site); err != nil {
		http.Error(w, "Failed to create job site", http.StatusInternalServerError)
		return
	}
	// gorm skips zero values that have a column default on insert
	if !active {
		site.IsActive = false
		if err := e.store.UpdateJobSite(r.Context(), site); err != nil {
			http.Error(w, "Failed to create job site", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"site":    site,
		"message": "Job site created successfully",
	})
}

func (e *AdminEndpoints) UpdateJobSiteHandler(w http.ResponseWriter, r *http.Request) {
	var req JobSiteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	site, err := e.store.GetJobSite(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Failed to update job site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "Job site not found", http.StatusNotFound)
		return
	}

	req.apply(site)
	if err := e.store.UpdateJobSite(r.Context(), site); err != nil {
		http.Error(w, "Failed to update job site", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"site":    site,
		"message": "Job site updated successfully",
	})
}

func (e *AdminEndpoints) DeleteJobSiteHandler(w http.ResponseWriter, r *http.Request) {
	siteID := chi.URLParam(r, "id")
	site, err := e.store.GetJobSite(r.Context(), siteID)
	if err != nil {
		http.Error(w, "Failed to delete job site", http.StatusInternalServerError)
		return
	}
	if site == nil {
		http.Error(w, "Job site not found", http.StatusNotFound)
		return
	}

	if err := e.store.DeleteJobSite(r.Context(), siteID); err != nil {
		http.Error(w, "Failed to delete job site", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req JobSiteRequest) apply(site *models.JobSite) {
	site.Name = strings.TrimSpace(req.Name)
	site.Slug = strings.ToLower(strings.TrimSpace(req.Slug))
	site.BaseURL = strings.TrimSpace(req.BaseURL)
	site.SearchURLTemplate = strings.TrimSpace(req.SearchURLTemplate)
	site.Keywords = cleanKeywords(req.Keywords)
	site.Characteristics = strings.TrimSpace(req.Characteristics)
	site.ScrapeEnabled = req.ScrapeEnabled
	site.ResultSelector = req.ResultSelector
	site.TitleSelector = req.TitleSelector
	site.CompanySelector = req.CompanySelector
	site.LocationSelector = req.LocationSelector
	site.LinkSelector = req.LinkSelector
	if req.IsActive != nil {
		site.IsActive = *req.IsActive
	}
}
