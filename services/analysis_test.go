package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
)

const sampleResume = `MARIA SILVA
Desenvolvedora Backend

EXPERIÊNCIA
Empresa X - 2019 a 2024
- Construiu APIs em Go atendendo 2 milhões de requisições por dia
`

const sampleAnalysisJSON = `{"score": 78.456, "summary": " Bom currículo ",
"strengths": ["Go", " go ", ""], "weaknesses": ["Sem resumo"],
"suggestions": ["Adicionar métricas"], "keywords": ["Go", "APIs"]}`

type analysisFixture struct {
	store    *memStore
	service  *AnalysisService
	provider *fakeProvider
	mailer   *recordingMailer
	notifier *Notifier
	metrics  *Metrics
}

func newAnalysisFixture(responses ...fakeResponse) *analysisFixture {
	store := newMemStore()
	notifier, mailer := newTestNotifier()
	metrics := NewMetrics()
	provider := newFakeProvider(ProviderGemini, responses...)
	ai := NewAIService([]AIProvider{provider}, ProviderGemini, store, metrics, time.Second)
	return &analysisFixture{
		store:    store,
		service:  NewAnalysisService(store, NewCreditService(store), ai, notifier, metrics, 20000),
		provider: provider,
		mailer:   mailer,
		notifier: notifier,
		metrics:  metrics,
	}
}

func TestAnalyzeConsumesOneCredit(t *testing.T) {
	f := newAnalysisFixture(fakeResponse{text: sampleAnalysisJSON})
	user := f.store.addUser("maria@example.com", 2, models.RoleUser)

	analysis, balance, err := f.service.Analyze(context.Background(), user, AnalyzeRequest{
		FileName:   "cv.txt",
		ResumeText: sampleResume,
		TargetRole: "Backend Developer",
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if balance != 1 || f.store.balance(user.ID) != 1 {
		t.Errorf("balance = %d, expected 1", balance)
	}
	if got := f.store.ledgerReasons(user.ID); !reflect.DeepEqual(got, []string{models.CreditReasonAnalysis}) {
		t.Errorf("ledger = %v", got)
	}
	if analysis.Status != models.AnalysisStatusCompleted || analysis.Provider != ProviderGemini {
		t.Errorf("unexpected analysis %+v", analysis)
	}
	if analysis.Score != 78.46 || analysis.Summary != "Bom currículo" {
		t.Errorf("score/summary not normalized: %v %q", analysis.Score, analysis.Summary)
	}
	if !reflect.DeepEqual(analysis.Strengths, []string{"Go"}) {
		t.Errorf("strengths = %v", analysis.Strengths)
	}
	if analysis.Language != DefaultLanguage {
		t.Errorf("language = %q", analysis.Language)
	}
	if _, ok := f.store.analyses[analysis.ID]; !ok {
		t.Error("analysis not stored")
	}
	if got := testutil.ToFloat64(f.metrics.creditsConsumed); got != 1 {
		t.Errorf("credits consumed = %v", got)
	}

	f.notifier.Wait()
	if len(f.mailer.sent()) != 1 {
		t.Errorf("expected completion email")
	}
}

func TestAnalyzeRefundsWhenAIFails(t *testing.T) {
	f := newAnalysisFixture(fakeResponse{err: errors.New("upstream down")})
	user := f.store.addUser("joao@example.com", 1, models.RoleUser)

	analysis, balance, err := f.service.Analyze(context.Background(), user, AnalyzeRequest{ResumeText: sampleResume})
	if !errors.Is(err, ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if balance != 1 || f.store.balance(user.ID) != 1 {
		t.Errorf("credit not refunded, balance %d", balance)
	}
	want := []string{models.CreditReasonAnalysis, models.CreditReasonRefund}
	if got := f.store.ledgerReasons(user.ID); !reflect.DeepEqual(got, want) {
		t.Errorf("ledger = %v, expected %v", got, want)
	}
	if analysis == nil || analysis.Status != models.AnalysisStatusFailed || analysis.ErrorMessage == "" {
		t.Fatalf("expected a failed analysis, got %+v", analysis)
	}
	if stored := f.store.analyses[analysis.ID]; stored == nil || stored.Status != models.AnalysisStatusFailed {
		t.Error("failed analysis not stored")
	}
	if got := testutil.ToFloat64(f.metrics.creditsConsumed); got != 0 {
		t.Errorf("credits consumed = %v", got)
	}
}

func TestAnalyzeRefundsWhenStoreFails(t *testing.T) {
	f := newAnalysisFixture(fakeResponse{text: sampleAnalysisJSON})
	f.store.failAnalysis = errors.New("disk full")
	user := f.store.addUser("ana@example.com", 1, models.RoleUser)

	if _, balance, err := f.service.Analyze(context.Background(), user, AnalyzeRequest{ResumeText: sampleResume}); err == nil || balance != 1 {
		t.Errorf("expected error and refund, got balance %d err %v", balance, err)
	}
}

func TestAnalyzeRejectsBeforeCharging(t *testing.T) {
	inactive := &models.JobSite{ID: "site-off", Name: "Off", Slug: "off", IsActive: false}

	tests := []struct {
		name    string
		credits int
		req     AnalyzeRequest
		wantErr error
	}{
		{name: "No credits", credits: 0, req: AnalyzeRequest{ResumeText: sampleResume}, wantErr: repository.ErrInsufficientCredits},
		{name: "Empty resume", credits: 1, req: AnalyzeRequest{ResumeText: " \n\t "}, wantErr: ErrEmptyResume},
		{name: "Unknown job site", credits: 1, req: AnalyzeRequest{ResumeText: sampleResume, JobSiteID: "missing"}, wantErr: ErrNotFound},
		{name: "Inactive job site", credits: 1, req: AnalyzeRequest{ResumeText: sampleResume, JobSiteID: inactive.ID}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(fakeResponse{text: sampleAnalysisJSON})
			f.store.sites[inactive.ID] = inactive
			user := f.store.addUser("x@example.com", tt.credits, models.RoleUser)

			_, balance, err := f.service.Analyze(context.Background(), user, tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if balance != tt.credits || f.store.balance(user.ID) != tt.credits {
				t.Errorf("balance changed to %d", balance)
			}
			if f.provider.calls() != 0 {
				t.Error("AI should not be called")
			}
		})
	}
}

func TestImproveReusesExistingRewrite(t *testing.T) {
	f := newAnalysisFixture(fakeResponse{text: "```\nMARIA SILVA\nResumo melhorado\n```"})
	user := f.store.addUser("m@example.com", 0, models.RoleUser)
	f.store.analyses["a1"] = &models.ResumeAnalysis{ID: "a1", UserID: user.ID, ResumeText: sampleResume, Status: models.AnalysisStatusCompleted}

	analysis, err := f.service.Improve(context.Background(), user.ID, "a1", false)
	if err != nil {
		t.Fatalf("Improve failed: %v", err)
	}
	if analysis.ImprovedResume != "MARIA SILVA\nResumo melhorado" || analysis.ImprovedAt == nil {
		t.Errorf("unexpected rewrite %q", analysis.ImprovedResume)
	}

	if _, err := f.service.Improve(context.Background(), user.ID, "a1", false); err != nil {
		t.Fatal(err)
	}
	if f.provider.calls() != 1 {
		t.Errorf("expected cached rewrite, provider called %d times", f.provider.calls())
	}

	if _, err := f.service.Improve(context.Background(), user.ID, "a1", true); err != nil {
		t.Fatal(err)
	}
	if f.provider.calls() != 2 {
		t.Errorf("force should regenerate, provider called %d times", f.provider.calls())
	}
}

func TestDerivedArtifactsNeedCompletedAnalysis(t *testing.T) {
	f := newAnalysisFixture(fakeResponse{text: "Prezados,"})
	user := f.store.addUser("m@example.com", 0, models.RoleUser)
	f.store.analyses["failed"] = &models.ResumeAnalysis{ID: "failed", UserID: user.ID, Status: models.AnalysisStatusFailed}

	ctx := context.Background()
	if _, err := f.service.Improve(ctx, user.ID, "failed", false); !errors.Is(err, ErrAnalysisNotCompleted) {
		t.Errorf("Improve: expected ErrAnalysisNotCompleted, got %v", err)
	}
	if _, err := f.service.CreateCoverLetter(ctx, user.ID, "failed", CoverLetterInput{CompanyName: "ACME", JobTitle: "Dev"}); !errors.Is(err, ErrAnalysisNotCompleted) {
		t.Errorf("CreateCoverLetter: expected ErrAnalysisNotCompleted, got %v", err)
	}
	if _, err := f.service.Get(ctx, "someone-else", "failed"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other users must not see the analysis, got %v", err)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		name     string
		score    float64
		max      float64
		expected float64
	}{
		{name: "Within range", score: 55.556, max: 100, expected: 55.56},
		{name: "Negative", score: -3, max: 100, expected: 0},
		{name: "Above max", score: 12, max: 10, expected: 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := clampScore(tt.score, tt.max); got != tt.expected {
				t.Errorf("clampScore(%v, %v) = %v, expected %v", tt.score, tt.max, got, tt.expected)
			}
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		text     string
		expected string
	}{
		{"plain text", "plain text"},
		{"```markdown\nBody\n```", "Body"},
		{"  ```\nA\nB\n```  ", "A\nB"},
	}

	for _, tt := range tests {
		if got := stripCodeFence(tt.text); got != tt.expected {
			t.Errorf("stripCodeFence(%q) = %q, expected %q", tt.text, got, tt.expected)
		}
	}
}

func multipartBody(t *testing.T, fields map[string]string, fileName string, file []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileName != "" {
		part, err := w.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(file)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, w.FormDataContentType()
}

func TestCreateAnalysisHandler(t *testing.T) {
	tests := []struct {
		name      string
		credits   int
		response  fakeResponse
		fields    map[string]string
		fileName  string
		file      []byte
		expected  int
		checkBody func(t *testing.T, body map[string]interface{})
	}{
		{
			name:     "Text upload",
			credits:  1,
			response: fakeResponse{text: sampleAnalysisJSON},
			fileName: "cv.txt",
			file:     []byte(sampleResume),
			expected: http.StatusCreated,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				if body["credits"] != float64(0) {
					t.Errorf("credits = %v", body["credits"])
				}
			},
		},
		{
			name:     "Pasted text",
			credits:  1,
			response: fakeResponse{text: sampleAnalysisJSON},
			fields:   map[string]string{"resume_text": sampleResume, "language": "en"},
			expected: http.StatusCreated,
		},
		{
			name:     "No credits",
			credits:  0,
			response: fakeResponse{text: sampleAnalysisJSON},
			fields:   map[string]string{"resume_text": sampleResume},
			expected: http.StatusPaymentRequired,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				if body["credits"] != float64(0) {
					t.Errorf("credits = %v", body["credits"])
				}
			},
		},
		{
			name:     "Unsupported file",
			credits:  1,
			fileName: "cv.docx",
			file:     []byte("PK..."),
			expected: http.StatusUnsupportedMediaType,
		},
		{
			name:     "PDF without header",
			credits:  1,
			fileName: "cv.pdf",
			file:     []byte("hello"),
			expected: http.StatusUnsupportedMediaType,
		},
		{
			name:     "Broken PDF",
			credits:  1,
			fileName: "cv.pdf",
			file:     []byte("%PDF-1.4\nnot really a pdf"),
			expected: http.StatusUnprocessableEntity,
		},
		{
			name:     "Missing resume",
			credits:  1,
			fields:   map[string]string{"target_role": "Dev"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "Invalid language",
			credits:  1,
			fields:   map[string]string{"resume_text": sampleResume, "language": "klingon"},
			expected: http.StatusBadRequest,
		},
		{
			name:     "AI failure refunds",
			credits:  1,
			response: fakeResponse{err: errors.New("down")},
			fields:   map[string]string{"resume_text": sampleResume},
			expected: http.StatusBadGateway,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				if body["credit_refunded"] != true || body["credits"] != float64(1) || body["analysis_id"] == nil {
					t.Errorf("unexpected body %v", body)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAnalysisFixture(tt.response)
			user := f.store.addUser("h@example.com", tt.credits, models.RoleUser)

			r := chi.NewRouter()
			r.Use(func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
					next.ServeHTTP(w, req.WithContext(ContextWithUser(req.Context(), user)))
				})
			})
			NewAnalysisEndpoints(f.service).RegisterRoutes(r)

			body, contentType := multipartBody(t, tt.fields, tt.fileName, tt.file)
			req := httptest.NewRequest(http.MethodPost, "/analyses", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.expected {
				t.Fatalf("status = %d, expected %d: %s", rec.Code, tt.expected, rec.Body.String())
			}
			if tt.checkBody != nil {
				var decoded map[string]interface{}
				if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
					t.Fatalf("invalid JSON body: %v", err)
				}
				tt.checkBody(t, decoded)
			}
		})
	}
}
