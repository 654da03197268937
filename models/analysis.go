package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	AnalysisStatusCompleted = "completed"
	AnalysisStatusFailed    = "failed"
)

// AI features recorded in usage logs
const (
	FeatureAnalysis            = "analysis"
	FeatureImprove             = "improve"
	FeatureCoverLetter         = "cover_letter"
	FeatureInterviewQuestions  = "interview_questions"
	FeatureInterviewEvaluation = "interview_evaluation"
)

// ResumeAnalysis is the AI assessment of one uploaded résumé. Each completed
// analysis consumed exactly one credit.
type ResumeAnalysis struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string         `gorm:"type:uuid;not null;index" json:"user_id"`
	FileName       string         `gorm:"size:255" json:"file_name"`
	ResumeText     string         `gorm:"type:text;not null" json:"-"`
	JobSiteID      *string        `gorm:"type:uuid;index" json:"job_site_id,omitempty"`
	TargetRole     string         `gorm:"size:255" json:"target_role,omitempty"`
	JobDescription string         `gorm:"type:text" json:"job_description,omitempty"`
	Language       string         `gorm:"size:10;default:'pt-BR'" json:"language"`
	Status         string         `gorm:"not null;check:status IN ('completed', 'failed')" json:"status"`
	ErrorMessage   string         `gorm:"type:text" json:"error_message,omitempty"`
	Provider       string         `gorm:"size:50" json:"provider,omitempty"`
	Model          string         `gorm:"size:100" json:"model,omitempty"`
	Score          float64        `gorm:"type:decimal(5,2)" json:"score"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Strengths      []string       `gorm:"serializer:json" json:"strengths"`
	Weaknesses     []string       `gorm:"serializer:json" json:"weaknesses"`
	Suggestions    []string       `gorm:"serializer:json" json:"suggestions"`
	Keywords       []string       `gorm:"serializer:json" json:"keywords"`
	ImprovedResume string         `gorm:"type:text" json:"improved_resume,omitempty"`
	ImprovedAt     *time.Time     `json:"improved_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	JobSite      *JobSite      `gorm:"foreignKey:JobSiteID" json:"job_site,omitempty"`
	CoverLetters []CoverLetter `gorm:"foreignKey:AnalysisID" json:"cover_letters,omitempty"`
}

type CoverLetter struct {
	ID          string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID      string         `gorm:"type:uuid;not null;index" json:"user_id"`
	AnalysisID  string         `gorm:"type:uuid;not null;index" json:"analysis_id"`
	CompanyName string         `gorm:"size:255;not null" json:"company_name"`
	JobTitle    string         `gorm:"size:255;not null" json:"job_title"`
	Content     string         `gorm:"type:text;not null" json:"content"`
	Provider    string         `gorm:"size:50" json:"provider"`
	Model       string         `gorm:"size:100" json:"model"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// AIUsageLog records every provider call, successful or not.
type AIUsageLog struct {
	ID               string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID           *string   `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Feature          string    `gorm:"size:50;not null;index" json:"feature"`
	Provider         string    `gorm:"size:50;not null;index" json:"provider"`
	Model            string    `gorm:"size:100" json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	EstimatedCostUSD float64   `gorm:"type:decimal(12,6)" json:"estimated_cost_usd"`
	LatencyMs        int64     `json:"latency_ms"`
	Success          bool      `gorm:"not null" json:"success"`
	ErrorMessage     string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}
