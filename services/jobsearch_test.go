package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const boardHTML = `<html><body>
<div class="job"><h2> Desenvolvedor   Go </h2><span class="company">Acme</span><span class="location">São Paulo</span><a href="/vagas/1">ver</a></div>
<div class="job"><h2>Analista de Dados</h2><span class="company">Beta</span><a href="https://jobs.example.com/2">ver</a></div>
<div class="job"><h2>Desenvolvedor Go e PostgreSQL</h2><a href="/vagas/3">ver</a></div>
<div class="job"><span class="company">Sem título</span></div>
</body></html>`

type jobBoard struct {
	*httptest.Server
	mu         sync.Mutex
	queries    []string
	userAgents []string
}

func newJobBoard(t *testing.T) *jobBoard {
	t.Helper()
	b := &jobBoard{}
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.Query().Get("q"))
		b.userAgents = append(b.userAgents, r.UserAgent())
		b.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, boardHTML)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

type jobFixture struct {
	store    *memStore
	service  *JobSearchService
	board    *jobBoard
	alpha    *models.JobSite
	broken   *models.JobSite
	linkedin *models.JobSite
	inactive *models.JobSite
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	store := newMemStore()
	board := newJobBoard(t)
	f := &jobFixture{
		store:   store,
		service: NewJobSearchService(store, JobSearchConfig{RequestsPerSecond: 1000}),
		board:   board,
		alpha: &models.JobSite{
			Name: "Alpha Board", Slug: "alpha", BaseURL: board.URL,
			SearchURLTemplate: board.URL + "/search?q={keywords}&l={location}",
			ScrapeEnabled:     true, IsActive: true,
			ResultSelector: "div.job", TitleSelector: "h2", CompanySelector: ".company",
			LocationSelector: ".location", LinkSelector: "a",
		},
		broken: &models.JobSite{
			Name: "Broken Board", Slug: "broken", BaseURL: board.URL,
			SearchURLTemplate: board.URL + "/broken?q={keywords}",
			ScrapeEnabled:     true, IsActive: true,
			ResultSelector: "div.job", TitleSelector: "h2",
		},
		linkedin: &models.JobSite{
			Name: "LinkedIn", Slug: "linkedin", BaseURL: "https://www.linkedin.com",
			SearchURLTemplate: "https://www.linkedin.com/jobs/search/?keywords={keywords}&location={location}",
			IsActive:          true,
		},
		inactive: &models.JobSite{
			Name: "Old Board", Slug: "old", BaseURL: board.URL,
			SearchURLTemplate: board.URL + "/search?q={keywords}",
			ScrapeEnabled:     true, IsActive: false,
			ResultSelector: "div.job", TitleSelector: "h2",
		},
	}
	for _, site := range []*models.JobSite{f.alpha, f.broken, f.linkedin, f.inactive} {
		if err := store.CreateJobSite(context.Background(), site); err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestSearchAllActiveSites(t *testing.T) {
	f := newJobFixture(t)
	user := f.store.addUser("dev@example.com", 0, models.RoleUser)

	result, err := f.service.Search(context.Background(), user.ID, JobSearchRequest{
		Keywords: []string{"Go", " PostgreSQL ", "go"},
		Location: "São Paulo",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !reflect.DeepEqual(result.Keywords, []string{"Go", "PostgreSQL"}) {
		t.Errorf("keywords = %v", result.Keywords)
	}

	wantTitles := []string{"Desenvolvedor Go e PostgreSQL", "Desenvolvedor Go", "Analista de Dados"}
	wantScores := []float64{100, 50, 0}
	if len(result.Jobs) != len(wantTitles) {
		t.Fatalf("expected %d jobs, got %d: %+v", len(wantTitles), len(result.Jobs), result.Jobs)
	}
	for i, job := range result.Jobs {
		if job.Title != wantTitles[i] || job.MatchScore != wantScores[i] {
			t.Errorf("job %d = %q (%v), expected %q (%v)", i, job.Title, job.MatchScore, wantTitles[i], wantScores[i])
		}
		if job.JobSiteID != f.alpha.ID || job.UserID != user.ID {
			t.Errorf("job %d has wrong owner or site", i)
		}
	}
	if result.Jobs[0].URL != f.board.URL+"/vagas/3" {
		t.Errorf("relative link not resolved: %q", result.Jobs[0].URL)
	}
	if result.Jobs[2].URL != "https://jobs.example.com/2" {
		t.Errorf("absolute link changed: %q", result.Jobs[2].URL)
	}
	if result.Jobs[1].Company != "Acme" || result.Jobs[1].Location != "São Paulo" {
		t.Errorf("unexpected company/location %+v", result.Jobs[1])
	}

	if !reflect.DeepEqual(result.Errors, map[string]string{"broken": "unexpected status 500"}) {
		t.Errorf("errors = %v", result.Errors)
	}

	if len(result.Sites) != 3 {
		t.Fatalf("expected 3 active sites, got %+v", result.Sites)
	}
	linkedin := result.Sites[2]
	if linkedin.Scraped || linkedin.URL != "https://www.linkedin.com/jobs/search/?keywords=Go+PostgreSQL&location=S%C3%A3o+Paulo" {
		t.Errorf("unexpected link %+v", linkedin)
	}
	if result.Sites[0].Found != 3 || !result.Sites[0].Scraped {
		t.Errorf("unexpected alpha summary %+v", result.Sites[0])
	}

	if len(f.board.queries) != 1 || f.board.queries[0] != "Go PostgreSQL" {
		t.Errorf("board queries = %v", f.board.queries)
	}
	if f.board.userAgents[0] != jobSearchUserAgent {
		t.Errorf("user agent = %q", f.board.userAgents[0])
	}

	found, err := f.service.Found(context.Background(), user.ID, 10)
	if err != nil || len(found) != 3 {
		t.Errorf("expected 3 stored jobs, got %d (%v)", len(found), err)
	}
}

func TestSearchUsesAnalysisKeywords(t *testing.T) {
	f := newJobFixture(t)
	user := f.store.addUser("dev@example.com", 0, models.RoleUser)
	f.store.analyses["a1"] = &models.ResumeAnalysis{ID: "a1", UserID: user.ID, Keywords: []string{"PostgreSQL"}}

	result, err := f.service.Search(context.Background(), user.ID, JobSearchRequest{
		AnalysisID: "a1",
		SiteIDs:    []string{f.alpha.ID, f.inactive.ID, "missing"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if !reflect.DeepEqual(result.Keywords, []string{"PostgreSQL"}) {
		t.Errorf("keywords = %v", result.Keywords)
	}
	if len(result.Sites) != 1 || result.Sites[0].SiteID != f.alpha.ID {
		t.Errorf("sites = %+v", result.Sites)
	}
	if len(result.Errors) != 2 || result.Errors[f.inactive.ID] == "" || result.Errors["missing"] == "" {
		t.Errorf("errors = %v", result.Errors)
	}
	for _, job := range result.Jobs {
		if job.AnalysisID == nil || *job.AnalysisID != "a1" {
			t.Fatalf("job not linked to analysis: %+v", job)
		}
	}
	if result.Jobs[0].MatchScore != 100 {
		t.Errorf("best match score = %v", result.Jobs[0].MatchScore)
	}
}

func TestSearchErrors(t *testing.T) {
	f := newJobFixture(t)
	user := f.store.addUser("dev@example.com", 0, models.RoleUser)
	other := f.store.addUser("other@example.com", 0, models.RoleUser)
	f.store.analyses["empty"] = &models.ResumeAnalysis{ID: "empty", UserID: user.ID}

	tests := []struct {
		name    string
		userID  string
		req     JobSearchRequest
		wantErr error
	}{
		{name: "No keywords", userID: user.ID, req: JobSearchRequest{Keywords: []string{" ", ""}}, wantErr: ErrNoKeywords},
		{name: "Analysis without keywords", userID: user.ID, req: JobSearchRequest{AnalysisID: "empty"}, wantErr: ErrNoKeywords},
		{name: "Other user's analysis", userID: other.ID, req: JobSearchRequest{AnalysisID: "empty", Keywords: []string{"Go"}}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Search(context.Background(), tt.userID, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
	if len(f.board.queries) != 0 {
		t.Error("no site should be queried")
	}
}

func TestMatchKeywords(t *testing.T) {
	tests := []struct {
		name          string
		keywords      []string
		texts         []string
		expected      []string
		expectedScore float64
	}{
		{name: "Whole words only", keywords: []string{"Go"}, texts: []string{"Google Cloud Engineer"}, expected: []string{}, expectedScore: 0},
		{name: "Case insensitive", keywords: []string{"go"}, texts: []string{"Desenvolvedor Go/Python"}, expected: []string{"go"}, expectedScore: 100},
		{name: "Accents", keywords: []string{"São Paulo"}, texts: []string{"Backend", "vaga em SÃO PAULO"}, expected: []string{"São Paulo"}, expectedScore: 100},
		{name: "Symbols", keywords: []string{"C++", "Rust"}, texts: []string{"Experiência com C++ e Java"}, expected: []string{"C++"}, expectedScore: 50},
		{name: "Duplicates ignored", keywords: []string{"Go", "GO", " "}, texts: []string{"go"}, expected: []string{"Go"}, expectedScore: 100},
		{name: "Rounded share", keywords: []string{"Go", "Java", "Kotlin"}, texts: []string{"Java developer"}, expected: []string{"Java"}, expectedScore: 33},
		{name: "No keywords", keywords: nil, texts: []string{"anything"}, expected: []string{}, expectedScore: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matched, score := MatchKeywords(tt.keywords, tt.texts...)
			if !reflect.DeepEqual(matched, tt.expected) {
				t.Errorf("matched = %v, expected %v", matched, tt.expected)
			}
			if score != tt.expectedScore {
				t.Errorf("score = %v, expected %v", score, tt.expectedScore)
			}
		})
	}
}

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		template string
		keywords []string
		location string
		expected string
	}{
		{"https://br.indeed.com/jobs?q={keywords}&l={location}", []string{"Go", "AWS"}, "Rio de Janeiro", "https://br.indeed.com/jobs?q=Go+AWS&l=Rio+de+Janeiro"},
		{"https://portal.gupy.io/job-search/term={keywords}", []string{"C#"}, "", "https://portal.gupy.io/job-search/term=C%23"},
		{"https://example.com/{keywords}?where={location}", []string{"dados"}, " ", "https://example.com/dados?where="},
	}

	for _, tt := range tests {
		if got := BuildSearchURL(tt.template, tt.keywords, tt.location); got != tt.expected {
			t.Errorf("BuildSearchURL(%q) = %q, expected %q", tt.template, got, tt.expected)
		}
	}
}

func TestJobSearchHandlers(t *testing.T) {
	f := newJobFixture(t)
	user := f.store.addUser("dev@example.com", 0, models.RoleUser)

	r := chi.NewRouter()
	endpoints := NewJobSearchEndpoints(f.service)
	endpoints.RegisterPublicRoutes(r)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(ContextWithUser(req.Context(), user)))
			})
		})
		endpoints.RegisterRoutes(r)
	})

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{name: "Public site list", method: http.MethodGet, path: "/job-sites", expected: http.StatusOK},
		{name: "Search", method: http.MethodPost, path: "/jobs/search", body: `{"keywords":["Go"],"site_ids":["` + f.alpha.ID + `"]}`, expected: http.StatusOK},
		{name: "Search without keywords", method: http.MethodPost, path: "/jobs/search", body: `{}`, expected: http.StatusBadRequest},
		{name: "Search with invalid site id", method: http.MethodPost, path: "/jobs/search", body: `{"keywords":["Go"],"site_ids":["nope"]}`, expected: http.StatusBadRequest},
		{name: "Search unknown analysis", method: http.MethodPost, path: "/jobs/search", body: `{"analysis_id":"6f1c3a52-1d2b-4a53-9a6b-0c6f1f7e2d11"}`, expected: http.StatusNotFound},
		{name: "Found jobs", method: http.MethodGet, path: "/jobs/found?limit=500", expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("status = %d, expected %d: %s", rec.Code, tt.expected, rec.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/job-sites", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Count != 3 {
		t.Errorf("expected 3 active sites, got %d (%v)", body.Count, err)
	}
}
