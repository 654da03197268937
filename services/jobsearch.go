package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const (
	jobSearchUserAgent = "CurriculoProIA-JobSearch/1.0 (+https://curriculoproia.com.br)"
	maxJobsPerSite     = 50
	maxSearchKeywords  = 20
)

var ErrNoKeywords = errors.New("at least one keyword is required")

type JobSearchRequest struct {
	AnalysisID string
	Keywords   []string
	Location   string
	SiteIDs    []string
}

// SiteLink is the board's own search page, useful when a site is not scraped.
type SiteLink struct {
	SiteID   string `json:"site_id"`
	SiteName string `json:"site_name"`
	URL      string `json:"url"`
	Scraped  bool   `json:"scraped"`
	Found    int    `json:"found"`
}

type JobSearchResult struct {
	Keywords []string          `json:"keywords"`
	Jobs     []models.FoundJob `json:"jobs"`
	Sites    []SiteLink        `json:"sites"`
	Errors   map[string]string `json:"errors,omitempty"`
}

type scrapedJob struct {
	Title    string
	Company  string
	Location string
	URL      string
}

type JobSearchService struct {
	store      JobStore
	httpClient *http.Client
	rps        float64
}

func NewJobSearchService(store JobStore, cfg JobSearchConfig) *JobSearchService {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	return &JobSearchService{
		store:      store,
		httpClient: &http.Client{Timeout: timeout},
		rps:        rps,
	}
}

func (s *JobSearchService) Sites(ctx context.Context) ([]models.JobSite, error) {
	return s.store.ListJobSites(ctx, true)
}

func (s *JobSearchService) Found(ctx context.Context, userID string, limit int) ([]models.FoundJob, error) {
	return s.store.ListFoundJobs(ctx, userID, limit)
}

// Search queries every selected active site. A failing site is reported in
// Errors and never fails the search as a whole.
func (s *JobSearchService) Search(ctx context.Context, userID string, req JobSearchRequest) (*JobSearchResult, error) {
	keywords := cleanKeywords(req.Keywords)
	var analysisID *string
	if req.AnalysisID != "" {
		analysis, err := s.store.GetAnalysis(ctx, req.AnalysisID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get analysis: %w", err)
		}
		if analysis == nil {
			return nil, fmt.Errorf("analysis %w", ErrNotFound)
		}
		analysisID = &analysis.ID
		if len(keywords) == 0 {
			keywords = cleanKeywords(analysis.Keywords)
		}
	}
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}

	sites, errs, err := s.selectSites(ctx, req.SiteIDs)
	if err != nil {
		return nil, err
	}

	result := &JobSearchResult{Keywords: keywords, Jobs: []models.FoundJob{}, Errors: errs}
	limiter := rate.NewLimiter(rate.Limit(s.rps), 1)

	for _, site := range sites {
		searchURL := BuildSearchURL(site.SearchURLTemplate, keywords, req.Location)
		link := SiteLink{SiteID: site.ID, SiteName: site.Name, URL: searchURL, Scraped: site.ScrapeEnabled}

		if site.ScrapeEnabled {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("job search interrupted: %w", err)
			}
			scraped, err := s.scrape(ctx, site, searchURL)
			if err != nil {
				slog.Warn("Job site search failed", "site", site.Slug, "error", err)
				result.Errors[site.Slug] = err.Error()
			}
			for _, job := range scraped {
				matched, score := MatchKeywords(keywords, job.Title, job.Company, job.Location)
				result.Jobs = append(result.Jobs, models.FoundJob{
					UserID:          userID,
					AnalysisID:      analysisID,
					JobSiteID:       site.ID,
					Title:           job.Title,
					Company:         job.Company,
					Location:        job.Location,
					URL:             job.URL,
					MatchScore:      score,
					MatchedKeywords: matched,
				})
			}
			link.Found = len(scraped)
		}
		result.Sites = append(result.Sites, link)
	}

	sort.SliceStable(result.Jobs, func(i, j int) bool {
		return result.Jobs[i].MatchScore > result.Jobs[j].MatchScore
	})

	if len(result.Jobs) > 0 {
		if err := s.store.CreateFoundJobs(ctx, result.Jobs); err != nil {
			return nil, fmt.Errorf("failed to store found jobs: %w", err)
		}
	}
	if len(result.Errors) == 0 {
		result.Errors = nil
	}

	slog.Info("Job search finished", "user_id", userID, "sites", len(result.Sites), "jobs", len(result.Jobs))
	return result, nil
}

func (s *JobSearchService) selectSites(ctx context.Context, ids []string) ([]models.JobSite, map[string]string, error) {
	errs := map[string]string{}
	if len(ids) == 0 {
		sites, err := s.store.ListJobSites(ctx, true)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to list job sites: %w", err)
		}
		return sites, errs, nil
	}

	var sites []models.JobSite
	seen := map[string]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		site, err := s.store.GetJobSite(ctx, id)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get job site: %w", err)
		}
		if site == nil || !site.IsActive {
			errs[id] = "job site not found or inactive"
			continue
		}
		sites = append(sites, *site)
	}
	return sites, errs, nil
}

func (s *JobSearchService) scrape(ctx context.Context, site models.JobSite, searchURL string) ([]scrapedJob, error) {
	if site.ResultSelector == "" || site.TitleSelector == "" {
		return nil, errors.New("site has no result selectors")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid search url: %w", err)
	}
	req.Header.Set("User-Agent", jobSearchUserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	base, _ := url.Parse(site.BaseURL)
	var jobs []scrapedJob
	doc.Find(site.ResultSelector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		title := selectionText(sel, site.TitleSelector)
		if title == "" {
			return true
		}
		jobs = append(jobs, scrapedJob{
			Title:    title,
			Company:  selectionText(sel, site.CompanySelector),
			Location: selectionText(sel, site.LocationSelector),
			URL:      resolveLink(base, selectionHref(sel, site.LinkSelector)),
		})
		return len(jobs) < maxJobsPerSite
	})
	return jobs, nil
}

func selectionText(sel *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(sel.Find(selector).First().Text()), " ")
}

func selectionHref(sel *goquery.Selection, selector string) string {
	if selector != "" {
		sel = sel.Find(selector).First()
	}
	href, _ := sel.Attr("href")
	return strings.TrimSpace(href)
}

func resolveLink(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil || ref.IsAbs() {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

// BuildSearchURL fills the {keywords} and {location} placeholders with
// query-escaped values.
func BuildSearchURL(template string, keywords []string, location string) string {
	r := strings.NewReplacer(
		"{keywords}", url.QueryEscape(strings.Join(keywords, " ")),
		"{location}", url.QueryEscape(strings.TrimSpace(location)),
	)
	return r.Replace(template)
}

// MatchKeywords reports which keywords appear as whole words in any of the
// texts, ignoring case, and the share matched as a 0-100 score.
func MatchKeywords(keywords []string, texts ...string) ([]string, float64) {
	keywords = cleanKeywords(keywords)
	matched := []string{}
	if len(keywords) == 0 {
		return matched, 0
	}

	haystack := strings.ToLower(strings.Join(texts, " \n "))
	for _, kw := range keywords {
		if containsWord(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched, math.Round(float64(len(matched)) / float64(len(keywords)) * 100)
}

func containsWord(haystack, word string) bool {
	if word == "" {
		return false
	}
	offset := 0
	for {
		i := strings.Index(haystack[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)

		before, _ := utf8.DecodeLastRuneInString(haystack[:start])
		after, _ := utf8.DecodeRuneInString(haystack[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(haystack) || !isWordRune(after)) {
			return true
		}
		_, size := utf8.DecodeRuneInString(haystack[start:])
		offset = start + size
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := map[string]bool{}
	for _, kw := range keywords {
		kw = strings.Join(strings.Fields(kw), " ")
		key := strings.ToLower(kw)
		if kw == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, kw)
		if len(out) == maxSearchKeywords {
			break
		}
	}
	return out
}
