package services

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type InterviewEndpoints struct {
	interviews *InterviewService
}

type StartInterviewBody struct {
	AnalysisID     string `json:"analysis_id" validate:"omitempty,uuid"`
	JobTitle       string `json:"job_title" validate:"required,max=255"`
	JobDescription string `json:"job_description" validate:"max=10000"`
	QuestionCount  int    `json:"question_count" validate:"omitempty,min=1,max=10"`
	Language       string `json:"language" validate:"omitempty,oneof=pt-BR pt en en-US es"`
}

type AnswerBody struct {
	Answer string `json:"answer" validate:"required,max=10000"`
}

func NewInterviewEndpoints(interviews *InterviewService) *InterviewEndpoints {
	return &InterviewEndpoints{interviews: interviews}
}

func (e *InterviewEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/interviews", func(r chi.Router) {
		r.Post("/", e.StartHandler)
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
		r.Post("/{id}/questions/{qid}/answer", e.AnswerHandler)
	})
}

func writeInterviewError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrSimulationCompleted), errors.Is(err, ErrQuestionAnswered):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		writeServiceError(w, err, fallback)
	}
}

func (e *InterviewEndpoints) StartHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req StartInterviewBody
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	simulation, err := e.interviews.Start(r.Context(), user.ID, StartInterviewRequest{
		AnalysisID:     req.AnalysisID,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		QuestionCount:  req.QuestionCount,
		Language:       req.Language,
	})
	if err != nil {
		writeInterviewError(w, err, "Failed to start interview")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"simulation": simulation,
	})
}

func (e *InterviewEndpoints) ListHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	simulations, err := e.interviews.List(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to list interviews", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulations": simulations,
		"count":       len(simulations),
	})
}

func (e *InterviewEndpoints) GetHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	simulation, err := e.interviews.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeInterviewError(w, err, "Failed to get interview")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulation": simulation,
	})
}

func (e *InterviewEndpoints) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req AnswerBody
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := e.interviews.Answer(r.Context(), user.ID, chi.URLParam(r, "id"), chi.URLParam(r, "qid"), req.Answer)
	if err != nil {
		writeInterviewError(w, err, "Failed to evaluate answer")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
