package models

import (
	"time"

	"gorm.io/gorm"
)

// JobSite describes a job board. Keywords and Characteristics tailor the
// analysis prompt; the URL template and selectors drive job search.
type JobSite struct {
	ID                string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name              string         `gorm:"not null" json:"name"`
	Slug              string         `gorm:"uniqueIndex;not null" json:"slug"`
	BaseURL           string         `gorm:"size:500;not null" json:"base_url"`
	SearchURLTemplate string         `gorm:"size:1000;not null" json:"search_url_template"` // {keywords} and {location} placeholders
	Keywords          []string       `gorm:"serializer:json" json:"keywords"`
	Characteristics   string         `gorm:"type:text" json:"characteristics,omitempty"`
	ScrapeEnabled     bool           `gorm:"default:false" json:"scrape_enabled"`
	ResultSelector    string         `gorm:"size:255" json:"result_selector,omitempty"`
	TitleSelector     string         `gorm:"size:255" json:"title_selector,omitempty"`
	CompanySelector   string         `gorm:"size:255" json:"company_selector,omitempty"`
	LocationSelector  string         `gorm:"size:255" json:"location_selector,omitempty"`
	LinkSelector      string         `gorm:"size:255" json:"link_selector,omitempty"`
	IsActive          bool           `gorm:"default:true" json:"is_active"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

type FoundJob struct {
	ID              string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          string    `gorm:"type:uuid;not null;index" json:"user_id"`
	AnalysisID      *string   `gorm:"type:uuid;index" json:"analysis_id,omitempty"`
	JobSiteID       string    `gorm:"type:uuid;not null;index" json:"job_site_id"`
	Title           string    `gorm:"size:500;not null" json:"title"`
	Company         string    `gorm:"size:255" json:"company,omitempty"`
	Location        string    `gorm:"size:255" json:"location,omitempty"`
	URL             string    `gorm:"type:text" json:"url"`
	MatchScore      float64   `gorm:"type:decimal(5,2)" json:"match_score"`
	MatchedKeywords []string  `gorm:"serializer:json" json:"matched_keywords"`
	CreatedAt       time.Time `json:"created_at"`
}
