package services

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type JobSearchEndpoints struct {
	jobs *JobSearchService
}

type JobSearchBody struct {
	AnalysisID string   `json:"analysis_id" validate:"omitempty,uuid"`
	Keywords   []string `json:"keywords" validate:"max=20,dive,max=100"`
	Location   string   `json:"location" validate:"max=255"`
	SiteIDs    []string `json:"site_ids" validate:"max=20,dive,uuid"`
}

func NewJobSearchEndpoints(jobs *JobSearchService) *JobSearchEndpoints {
	return &JobSearchEndpoints{jobs: jobs}
}

func (e *JobSearchEndpoints) RegisterPublicRoutes(r chi.Router) {
	r.Get("/job-sites", e.SitesHandler)
}

func (e *JobSearchEndpoints) RegisterRoutes(r chi.Router) {
	r.Post("/jobs/search", e.SearchHandler)
	r.Get("/jobs/found", e.FoundHandler)
}

func (e *JobSearchEndpoints) SitesHandler(w http.ResponseWriter, r *http.Request) {
	sites, err := e.jobs.Sites(r.Context())
	if err != nil {
		slog.Error("Failed to list job sites", "error", err)
		http.Error(w, "Failed to list job sites", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sites": sites,
		"count": len(sites),
	})
}

func (e *JobSearchEndpoints) SearchHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req JobSearchBody
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := e.jobs.Search(r.Context(), user.ID, JobSearchRequest{
		AnalysisID: req.AnalysisID,
		Keywords:   req.Keywords,
		Location:   req.Location,
		SiteIDs:    req.SiteIDs,
	})
	if err != nil {
		if errors.Is(err, ErrNoKeywords) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeServiceError(w, err, "Failed to search jobs")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (e *JobSearchEndpoints) FoundHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	jobs, err := e.jobs.Found(r.Context(), user.ID, queryInt(r, "limit", 50, 1, 200))
	if err != nil {
		slog.Error("Failed to list found jobs", "error", err)
		http.Error(w, "Failed to list found jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}
