package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	SimulationStatusActive    = "active"
	SimulationStatusCompleted = "completed"
)

// InterviewSimulation is a mock interview generated from a résumé and a target job
type InterviewSimulation struct {
	ID             string         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID         string         `gorm:"type:uuid;not null;index" json:"user_id"`
	AnalysisID     *string        `gorm:"type:uuid;index" json:"analysis_id,omitempty"`
	JobTitle       string         `gorm:"size:255;not null" json:"job_title"`
	JobDescription string         `gorm:"type:text" json:"job_description,omitempty"`
	Language       string         `gorm:"size:10;default:'pt-BR'" json:"language"`
	Status         string         `gorm:"not null;default:'active';check:status IN ('active', 'completed')" json:"status"`
	OverallScore   float64        `gorm:"type:decimal(5,2)" json:"overall_score"` // 0.00 to 100.00
	Feedback       string         `gorm:"type:text" json:"feedback,omitempty"`
	StartedAt      time.Time      `gorm:"not null" json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	Questions []InterviewQuestion `gorm:"foreignKey:SimulationID" json:"questions,omitempty"`
}

// NextQuestion returns the first unanswered question in position order, or nil.
// Questions must already be sorted by Position.
func (s *InterviewSimulation) NextQuestion() *InterviewQuestion {
	for i := range s.Questions {
		if !s.Questions[i].Answered() {
			return &s.Questions[i]
		}
	}
	return nil
}

type InterviewQuestion struct {
	ID           string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	SimulationID string     `gorm:"type:uuid;not null;index" json:"simulation_id"`
	Position     int        `gorm:"not null" json:"position"`
	Category     string     `gorm:"size:100" json:"category"`
	Question     string     `gorm:"type:text;not null" json:"question"`
	Answer       string     `gorm:"type:text" json:"answer,omitempty"`
	Score        float64    `gorm:"type:decimal(4,2)" json:"score"` // 0.00 to 10.00
	Feedback     string     `gorm:"type:text" json:"feedback,omitempty"`
	AnsweredAt   *time.Time `json:"answered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (q *InterviewQuestion) Answered() bool {
	return q.AnsweredAt != nil
}
