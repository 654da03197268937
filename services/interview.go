package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const (
	DefaultQuestionCount = 5
	MaxQuestionCount     = 10
)

var (
	ErrSimulationCompleted = errors.New("interview simulation already completed")
	ErrQuestionAnswered    = errors.New("question already answered")
)

type StartInterviewRequest struct {
	AnalysisID     string
	JobTitle       string
	JobDescription string
	QuestionCount  int
	Language       string
}

type AnswerResult struct {
	Question   *models.InterviewQuestion   `json:"question"`
	Next       *models.InterviewQuestion   `json:"next_question,omitempty"`
	Completed  bool                        `json:"completed"`
	Simulation *models.InterviewSimulation `json:"simulation,omitempty"`
}

type InterviewService struct {
	store InterviewStore
	ai    *AIService
}

func NewInterviewService(store InterviewStore, ai *AIService) *InterviewService {
	return &InterviewService{store: store, ai: ai}
}

// Start generates the questions of a new simulation. Interviews cost no credits.
func (s *InterviewService) Start(ctx context.Context, userID string, req StartInterviewRequest) (*models.InterviewSimulation, error) {
	count := req.QuestionCount
	if count <= 0 {
		count = DefaultQuestionCount
	}
	if count > MaxQuestionCount {
		count = MaxQuestionCount
	}

	simulation := &models.InterviewSimulation{
		UserID:         userID,
		JobTitle:       strings.TrimSpace(req.JobTitle),
		JobDescription: strings.TrimSpace(req.JobDescription),
		Language:       req.Language,
		Status:         models.SimulationStatusActive,
		StartedAt:      time.Now(),
	}

	var resumeText string
	if req.AnalysisID != "" {
		analysis, err := s.store.GetAnalysis(ctx, req.AnalysisID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to get analysis: %w", err)
		}
		if analysis == nil {
			return nil, fmt.Errorf("analysis %w", ErrNotFound)
		}
		resumeText = analysis.ResumeText
		if analysis.ImprovedResume != "" {
			resumeText = analysis.ImprovedResume
		}
		if simulation.Language == "" {
			simulation.Language = analysis.Language
		}
		simulation.AnalysisID = &analysis.ID
	}
	if simulation.Language == "" {
		simulation.Language = DefaultLanguage
	}

	var result QuestionsResult
	prompt := BuildInterviewQuestionsPrompt(simulation.JobTitle, simulation.JobDescription, resumeText, simulation.Language, count)
	if _, err := s.ai.GenerateJSON(ctx, userID, models.FeatureInterviewQuestions, prompt, &result); err != nil {
		return nil, fmt.Errorf("failed to generate questions: %w", err)
	}

	for _, q := range result.Questions {
		text := strings.TrimSpace(q.Question)
		if text == "" {
			continue
		}
		simulation.Questions = append(simulation.Questions, models.InterviewQuestion{
			Position: len(simulation.Questions) + 1,
			Category: strings.TrimSpace(q.Category),
			Question: text,
		})
		if len(simulation.Questions) == count {
			break
		}
	}
	if len(simulation.Questions) == 0 {
		return nil, fmt.Errorf("%w: no questions returned", ErrAllProvidersFailed)
	}

	if err := s.store.CreateSimulation(ctx, simulation); err != nil {
		return nil, fmt.Errorf("failed to store simulation: %w", err)
	}
	return simulation, nil
}

func (s *InterviewService) Get(ctx context.Context, userID, simulationID string) (*models.InterviewSimulation, error) {
	simulation, err := s.store.GetSimulation(ctx, simulationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get simulation: %w", err)
	}
	if simulation == nil {
		return nil, ErrNotFound
	}
	return simulation, nil
}

func (s *InterviewService) List(ctx context.Context, userID string) ([]models.InterviewSimulation, error) {
	return s.store.ListSimulations(ctx, userID)
}

// Answer evaluates the answer to one question. Answering the last open
// question completes the simulation.
func (s *InterviewService) Answer(ctx context.Context, userID, simulationID, questionID, answer string) (*AnswerResult, error) {
	simulation, err := s.Get(ctx, userID, simulationID)
	if err != nil {
		return nil, err
	}
	if simulation.Status == models.SimulationStatusCompleted {
		return nil, ErrSimulationCompleted
	}

	var question *models.InterviewQuestion
	for i := range simulation.Questions {
		if simulation.Questions[i].ID == questionID {
			question = &simulation.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, fmt.Errorf("question %w", ErrNotFound)
	}
	if question.Answered() {
		return nil, ErrQuestionAnswered
	}

	answer = strings.TrimSpace(answer)
	var eval EvaluationResult
	prompt := BuildAnswerEvaluationPrompt(simulation.JobTitle, question, answer, simulation.Language)
	if _, err := s.ai.GenerateJSON(ctx, userID, models.FeatureInterviewEvaluation, prompt, &eval); err != nil {
		return nil, fmt.Errorf("failed to evaluate answer: %w", err)
	}

	now := time.Now()
	question.Answer = answer
	question.Score = clampScore(eval.Score, 10)
	question.Feedback = strings.TrimSpace(eval.Feedback)
	question.AnsweredAt = &now
	answered, err := s.store.AnswerQuestion(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to store answer: %w", err)
	}
	if !answered {
		return nil, ErrQuestionAnswered
	}

	// reload so answers stored by concurrent calls count as well
	simulation, err = s.Get(ctx, userID, simulationID)
	if err != nil {
		return nil, err
	}

	result := &AnswerResult{Question: question, Next: simulation.NextQuestion()}
	if result.Next == nil {
		completed, err := s.complete(ctx, userID, simulation)
		if err != nil {
			return nil, err
		}
		result.Completed = true
		result.Simulation = completed
	}
	return result, nil
}

// complete closes a simulation whose questions are all answered. When another
// call wins the transition, the stored simulation is returned instead.
func (s *InterviewService) complete(ctx context.Context, userID string, simulation *models.InterviewSimulation) (*models.InterviewSimulation, error) {
	if simulation.Status == models.SimulationStatusCompleted {
		return simulation, nil
	}
	simulation.OverallScore = OverallScore(simulation.Questions)

	var wrapUp WrapUpResult
	prompt := BuildWrapUpPrompt(simulation, simulation.Language)
	if _, err := s.ai.GenerateJSON(ctx, userID, models.FeatureInterviewEvaluation, prompt, &wrapUp); err != nil || strings.TrimSpace(wrapUp.Feedback) == "" {
		slog.Warn("Using default interview feedback", "simulation_id", simulation.ID, "error", err)
		simulation.Feedback = defaultInterviewFeedback(simulation.OverallScore)
	} else {
		simulation.Feedback = strings.TrimSpace(wrapUp.Feedback)
	}

	now := time.Now()
	simulation.CompletedAt = &now
	completed, err := s.store.CompleteSimulation(ctx, simulation)
	if err != nil {
		return nil, fmt.Errorf("failed to complete simulation: %w", err)
	}
	if !completed {
		slog.Info("Interview simulation already completed", "simulation_id", simulation.ID)
		return s.Get(ctx, userID, simulation.ID)
	}
	simulation.Status = models.SimulationStatusCompleted

	slog.Info("Interview simulation completed", "simulation_id", simulation.ID, "user_id", userID, "score", simulation.OverallScore)
	return simulation, nil
}

// OverallScore is the mean answered score scaled from 0-10 to 0-100
func OverallScore(questions []models.InterviewQuestion) float64 {
	var sum float64
	var n int
	for _, q := range questions {
		if q.Answered() {
			sum += q.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*10*100) / 100
}

func defaultInterviewFeedback(score float64) string {
	switch {
	case score >= 80:
		return "Excelente desempenho. Suas respostas foram claras e bem fundamentadas. Continue praticando com exemplos concretos de resultados."
	case score >= 60:
		return "Bom desempenho. Estruture melhor algumas respostas usando o método STAR (situação, tarefa, ação, resultado) e traga mais números."
	case score >= 40:
		return "Desempenho regular. Prepare exemplos específicos da sua experiência e relacione cada resposta aos requisitos da vaga."
	default:
		return "Há bastante espaço para evolução. Revise a descrição da vaga, prepare histórias sobre sua experiência e pratique respostas em voz alta."
	}
}
