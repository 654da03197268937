package services

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
	"github.com/go-chi/chi/v5"
)

type AnalysisEndpoints struct {
	analyses *AnalysisService
}

// AnalysisForm holds the non-file multipart fields of POST /analyses
type AnalysisForm struct {
	JobSiteID      string `json:"job_site_id" validate:"omitempty,uuid"`
	TargetRole     string `json:"target_role" validate:"max=255"`
	JobDescription string `json:"job_description" validate:"max=10000"`
	Language       string `json:"language" validate:"omitempty,oneof=pt-BR pt en en-US es"`
}

type CoverLetterRequest struct {
	CompanyName    string `json:"company_name" validate:"required,max=255"`
	JobTitle       string `json:"job_title" validate:"required,max=255"`
	JobDescription string `json:"job_description" validate:"max=10000"`
	Tone           string `json:"tone" validate:"omitempty,oneof=professional friendly formal enthusiastic"`
}

func NewAnalysisEndpoints(analyses *AnalysisService) *AnalysisEndpoints {
	return &AnalysisEndpoints{analyses: analyses}
}

func (e *AnalysisEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/analyses", func(r chi.Router) {
		r.Post("/", e.CreateAnalysisHandler)
		r.Get("/", e.ListAnalysesHandler)
		r.Get("/{id}", e.GetAnalysisHandler)
		r.Post("/{id}/improve", e.ImproveHandler)
		r.Get("/{id}/improved.pdf", e.ImprovedPDFHandler)
		r.Get("/{id}/report.pdf", e.ReportPDFHandler)
		r.Post("/{id}/cover-letters", e.CreateCoverLetterHandler)
		r.Get("/{id}/cover-letters", e.ListCoverLettersHandler)
	})
	r.Get("/cover-letters/{id}/pdf", e.CoverLetterPDFHandler)
}

// readResumeUpload returns the file name and raw text of the upload, taken
// from the "file" part or, when absent, the "resume_text" field.
func readResumeUpload(r *http.Request) (string, string, int, error) {
	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		text := r.FormValue("resume_text")
		if text == "" {
			return "", "", http.StatusBadRequest, errors.New("file or resume_text is required")
		}
		return "resume.txt", text, 0, nil
	}
	if err != nil {
		return "", "", http.StatusBadRequest, errors.New("invalid multipart upload")
	}
	defer file.Close()

	if header.Size > MaxResumeFileSize {
		return "", "", http.StatusRequestEntityTooLarge, errors.New("file exceeds 5 MB")
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxResumeFileSize+1))
	if err != nil {
		return "", "", http.StatusBadRequest, errors.New("failed to read upload")
	}
	if len(data) > MaxResumeFileSize {
		return "", "", http.StatusRequestEntityTooLarge, errors.New("file exceeds 5 MB")
	}

	text, err := ExtractResumeText(header.Filename, data)
	if err != nil {
		if errors.Is(err, ErrUnsupportedFile) {
			return "", "", http.StatusUnsupportedMediaType, err
		}
		slog.Warn("Failed to extract resume text", "error", err, "file_name", header.Filename)
		return "", "", http.StatusUnprocessableEntity, errors.New("could not read the PDF file")
	}
	return header.Filename, text, 0, nil
}

func (e *AnalysisEndpoints) CreateAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxResumeFileSize+1<<20)
	if err := r.ParseMultipartForm(MaxResumeFileSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "file exceeds 5 MB", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Expected multipart/form-data", http.StatusBadRequest)
		return
	}

	form := AnalysisForm{
		JobSiteID:      r.FormValue("job_site_id"),
		TargetRole:     r.FormValue("target_role"),
		JobDescription: r.FormValue("job_description"),
		Language:       r.FormValue("language"),
	}
	if err := validateStruct(&form); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fileName, text, status, err := readResumeUpload(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	analysis, balance, err := e.analyses.Analyze(r.Context(), user, AnalyzeRequest{
		FileName:       fileName,
		ResumeText:     text,
		JobSiteID:      form.JobSiteID,
		TargetRole:     form.TargetRole,
		JobDescription: form.JobDescription,
		Language:       form.Language,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyResume):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, repository.ErrInsufficientCredits):
			writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
				"error":   "insufficient credits",
				"credits": balance,
			})
		case errors.Is(err, ErrNotFound):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, ErrAllProvidersFailed):
			resp := map[string]interface{}{
				"error":           "the AI service is unavailable, your credit was refunded",
				"credit_refunded": true,
				"credits":         balance,
			}
			if analysis != nil {
				resp["analysis_id"] = analysis.ID
			}
			writeJSON(w, http.StatusBadGateway, resp)
		default:
			slog.Error("Failed to analyze resume", "error", err, "user_id", user.ID)
			http.Error(w, "Failed to analyze resume", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"analysis": analysis,
		"credits":  balance,
	})
}

func (e *AnalysisEndpoints) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	analyses, err := e.analyses.List(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Failed to list analyses", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// writeServiceError maps the shared service sentinels to status codes
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, ErrAnalysisNotCompleted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ErrAllProvidersFailed):
		http.Error(w, "The AI service is unavailable, try again later", http.StatusBadGateway)
	default:
		slog.Error(fallback, "error", err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func (e *AnalysisEndpoints) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	analysis, err := e.analyses.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get analysis")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis": analysis,
	})
}

func (e *AnalysisEndpoints) ImproveHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	analysis, err := e.analyses.Improve(r.Context(), user.ID, chi.URLParam(r, "id"), force)
	if err != nil {
		writeServiceError(w, err, "Failed to improve resume")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"analysis_id":     analysis.ID,
		"improved_resume": analysis.ImprovedResume,
		"improved_at":     analysis.ImprovedAt,
	})
}

func writePDF(w http.ResponseWriter, fileName string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (e *AnalysisEndpoints) ImprovedPDFHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	analysis, err := e.analyses.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get analysis")
		return
	}
	if analysis.ImprovedResume == "" {
		http.Error(w, "Resume has not been improved yet", http.StatusNotFound)
		return
	}

	data, err := RenderResumePDF("Currículo", analysis.ImprovedResume)
	if err != nil {
		slog.Error("Failed to render improved resume", "error", err, "analysis_id", analysis.ID)
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
		return
	}
	writePDF(w, pdfFileName("curriculo", *analysis.ImprovedAt), data)
}

func (e *AnalysisEndpoints) ReportPDFHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	analysis, err := e.analyses.completed(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get analysis")
		return
	}

	data, err := RenderAnalysisReportPDF(analysis)
	if err != nil {
		slog.Error("Failed to render analysis report", "error", err, "analysis_id", analysis.ID)
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
		return
	}
	writePDF(w, pdfFileName("analise", analysis.CreatedAt), data)
}

func (e *AnalysisEndpoints) CreateCoverLetterHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	var req CoverLetterRequest
	if err := decodeAndValidate(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	letter, err := e.analyses.CreateCoverLetter(r.Context(), user.ID, chi.URLParam(r, "id"), CoverLetterInput{
		CompanyName:    req.CompanyName,
		JobTitle:       req.JobTitle,
		JobDescription: req.JobDescription,
		Tone:           req.Tone,
	})
	if err != nil {
		writeServiceError(w, err, "Failed to create cover letter")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"cover_letter": letter,
	})
}

func (e *AnalysisEndpoints) ListCoverLettersHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	letters, err := e.analyses.ListCoverLetters(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to list cover letters")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"cover_letters": letters,
		"count":         len(letters),
	})
}

func (e *AnalysisEndpoints) CoverLetterPDFHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		http.Error(w, "User not found in context", http.StatusInternalServerError)
		return
	}

	letter, err := e.analyses.GetCoverLetter(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err, "Failed to get cover letter")
		return
	}

	data, err := RenderCoverLetterPDF(letter)
	if err != nil {
		slog.Error("Failed to render cover letter", "error", err, "cover_letter_id", letter.ID)
		http.Error(w, "Failed to render PDF", http.StatusInternalServerError)
		return
	}
	writePDF(w, pdfFileName("carta", letter.CreatedAt), data)
}
