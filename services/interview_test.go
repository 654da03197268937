package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const twoQuestionsJSON = `{"questions": [
{"category": "behavioral", "question": "Fale sobre um conflito no time."},
{"category": "technical", "question": "  "},
{"category": "technical", "question": "Como você escalaria uma API em Go?"},
{"category": "situational", "question": "O que faria com um deploy quebrado?"}]}`

func newInterviewService(store *memStore, responses ...fakeResponse) (*InterviewService, *fakeProvider) {
	provider := newFakeProvider(ProviderOpenAI, responses...)
	ai := NewAIService([]AIProvider{provider}, ProviderOpenAI, store, nil, time.Second)
	return NewInterviewService(store, ai), provider
}

func TestOverallScore(t *testing.T) {
	answered := func(score float64) models.InterviewQuestion {
		now := time.Now()
		return models.InterviewQuestion{Score: score, AnsweredAt: &now}
	}

	tests := []struct {
		name      string
		questions []models.InterviewQuestion
		expected  float64
	}{
		{name: "No answers", questions: []models.InterviewQuestion{{Score: 9}}, expected: 0},
		{name: "Single answer", questions: []models.InterviewQuestion{answered(7)}, expected: 70},
		{name: "Unanswered ignored", questions: []models.InterviewQuestion{answered(8), answered(6.5), {Score: 10}}, expected: 72.5},
		{name: "Rounded", questions: []models.InterviewQuestion{answered(7), answered(8), answered(8)}, expected: 76.67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OverallScore(tt.questions); got != tt.expected {
				t.Errorf("OverallScore() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestStartInterview(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	store.analyses["a1"] = &models.ResumeAnalysis{
		ID: "a1", UserID: user.ID, Language: "en",
		ResumeText: "original text", ImprovedResume: "improved text",
	}
	service, provider := newInterviewService(store, fakeResponse{text: twoQuestionsJSON})

	simulation, err := service.Start(context.Background(), user.ID, StartInterviewRequest{
		AnalysisID:    "a1",
		JobTitle:      " Backend Developer ",
		QuestionCount: 2,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if len(simulation.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(simulation.Questions))
	}
	if q := simulation.Questions[1]; q.Position != 2 || q.Question != "Como você escalaria uma API em Go?" {
		t.Errorf("blank questions must be skipped, got %+v", q)
	}
	if simulation.Language != "en" || simulation.JobTitle != "Backend Developer" {
		t.Errorf("unexpected simulation %+v", simulation)
	}
	if simulation.Status != models.SimulationStatusActive || simulation.AnalysisID == nil {
		t.Errorf("unexpected status or analysis link")
	}
	if prompt := provider.prompts[0].User; !strings.Contains(prompt, "improved text") || strings.Contains(prompt, "original text") {
		t.Error("questions should be based on the improved résumé")
	}
	if _, ok := store.simulations[simulation.ID]; !ok {
		t.Error("simulation not stored")
	}
}

func TestStartInterviewClampsQuestionCount(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"questions": [`)
	for i := 0; i < 12; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"category": "technical", "question": "Pergunta %d"}`, i+1)
	}
	b.WriteString("]}")

	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	service, provider := newInterviewService(store, fakeResponse{text: b.String()})

	simulation, err := service.Start(context.Background(), user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 50})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(simulation.Questions) != MaxQuestionCount {
		t.Errorf("expected %d questions, got %d", MaxQuestionCount, len(simulation.Questions))
	}
	if !strings.Contains(provider.prompts[0].User, "Prepare 10 interview questions") {
		t.Errorf("prompt did not ask for 10 questions: %q", provider.prompts[0].User)
	}
	if simulation.Language != DefaultLanguage {
		t.Errorf("language = %q", simulation.Language)
	}
}

func TestStartInterviewErrors(t *testing.T) {
	tests := []struct {
		name     string
		response fakeResponse
		req      StartInterviewRequest
		wantErr  error
	}{
		{name: "No questions", response: fakeResponse{text: `{"questions": []}`}, req: StartInterviewRequest{JobTitle: "Dev"}, wantErr: ErrAllProvidersFailed},
		{name: "Provider down", response: fakeResponse{err: errors.New("down")}, req: StartInterviewRequest{JobTitle: "Dev"}, wantErr: ErrAllProvidersFailed},
		{name: "Unknown analysis", response: fakeResponse{text: twoQuestionsJSON}, req: StartInterviewRequest{JobTitle: "Dev", AnalysisID: "missing"}, wantErr: ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			user := store.addUser("c@example.com", 0, models.RoleUser)
			service, _ := newInterviewService(store, tt.response)

			if _, err := service.Start(context.Background(), user.ID, tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if len(store.simulations) != 0 {
				t.Error("nothing should be stored")
			}
		})
	}
}

func TestAnswerUntilCompleted(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	service, _ := newInterviewService(store,
		fakeResponse{text: twoQuestionsJSON},
		fakeResponse{text: `{"score": 8, "feedback": "Boa resposta"}`},
		fakeResponse{text: `{"score": 6.5, "feedback": "Faltaram exemplos"}`},
		fakeResponse{text: `{"feedback": "Bom desempenho geral"}`},
	)
	ctx := context.Background()

	simulation, err := service.Start(ctx, user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	first, second := simulation.Questions[0], simulation.Questions[1]

	result, err := service.Answer(ctx, user.ID, simulation.ID, first.ID, "  Resolvi conversando.  ")
	if err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if result.Completed || result.Next == nil || result.Next.ID != second.ID {
		t.Fatalf("expected the second question next, got %+v", result)
	}
	if result.Question.Score != 8 || result.Question.Answer != "Resolvi conversando." || result.Question.Feedback != "Boa resposta" {
		t.Errorf("unexpected evaluation %+v", result.Question)
	}

	if _, err := service.Answer(ctx, user.ID, simulation.ID, first.ID, "again"); !errors.Is(err, ErrQuestionAnswered) {
		t.Errorf("expected ErrQuestionAnswered, got %v", err)
	}
	if _, err := service.Answer(ctx, user.ID, simulation.ID, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	result, err = service.Answer(ctx, user.ID, simulation.ID, second.ID, "Faria rollback.")
	if err != nil {
		t.Fatalf("second answer failed: %v", err)
	}
	if !result.Completed || result.Next != nil || result.Simulation == nil {
		t.Fatalf("expected completion, got %+v", result)
	}
	if result.Simulation.OverallScore != 72.5 || result.Simulation.Feedback != "Bom desempenho geral" {
		t.Errorf("unexpected wrap-up %v %q", result.Simulation.OverallScore, result.Simulation.Feedback)
	}

	stored, err := service.Get(ctx, user.ID, simulation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.SimulationStatusCompleted || stored.CompletedAt == nil {
		t.Errorf("simulation not completed: %+v", stored)
	}
	if _, err := service.Answer(ctx, user.ID, simulation.ID, second.ID, "x"); !errors.Is(err, ErrSimulationCompleted) {
		t.Errorf("expected ErrSimulationCompleted, got %v", err)
	}
}

// gatedProvider holds every call at a gate once closed, so concurrent
// answers overlap inside the AI call.
type gatedProvider struct {
	*fakeProvider
	mu      sync.Mutex
	closed  bool
	arrived chan struct{}
	release chan struct{}
}

func newGatedProvider(responses ...fakeResponse) *gatedProvider {
	return &gatedProvider{
		fakeProvider: newFakeProvider(ProviderOpenAI, responses...),
		arrived:      make(chan struct{}, 8),
		release:      make(chan struct{}),
	}
}

func (p *gatedProvider) setClosed(closed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = closed
}

func (p *gatedProvider) Generate(ctx context.Context, prompt Prompt) (*Completion, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.arrived <- struct{}{}
		<-p.release
	}
	return p.fakeProvider.Generate(ctx, prompt)
}

type answerOutcome struct {
	result *AnswerResult
	err    error
}

// answerConcurrently sends the answers at once and lets the evaluations
// finish only after every call reached the provider.
func answerConcurrently(t *testing.T, service *InterviewService, provider *gatedProvider, userID, simulationID string, questionIDs ...string) []answerOutcome {
	t.Helper()
	provider.setClosed(true)

	outcomes := make([]answerOutcome, len(questionIDs))
	var wg sync.WaitGroup
	for i, id := range questionIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			result, err := service.Answer(context.Background(), userID, simulationID, id, "Resposta")
			outcomes[i] = answerOutcome{result: result, err: err}
		}(i, id)
	}
	for range questionIDs {
		select {
		case <-provider.arrived:
		case <-time.After(2 * time.Second):
			t.Fatal("answers did not reach the provider")
		}
	}
	provider.setClosed(false)
	close(provider.release)
	wg.Wait()
	return outcomes
}

func TestConcurrentAnswersCompleteSimulation(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	provider := newGatedProvider(
		fakeResponse{text: twoQuestionsJSON},
		fakeResponse{text: `{"score": 7, "feedback": "Ok"}`},
		fakeResponse{text: `{"score": 7, "feedback": "Ok"}`},
		fakeResponse{text: `{"feedback": "Fim"}`},
	)
	ai := NewAIService([]AIProvider{provider}, ProviderOpenAI, store, nil, 5*time.Second)
	service := NewInterviewService(store, ai)

	simulation, err := service.Start(context.Background(), user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 2})
	if err != nil {
		t.Fatal(err)
	}

	outcomes := answerConcurrently(t, service, provider, user.ID, simulation.ID,
		simulation.Questions[0].ID, simulation.Questions[1].ID)

	completed := 0
	for _, o := range outcomes {
		if o.err != nil {
			t.Fatalf("answer failed: %v", o.err)
		}
		if o.result.Completed {
			completed++
			if o.result.Simulation.Status != models.SimulationStatusCompleted {
				t.Errorf("completed result carries status %q", o.result.Simulation.Status)
			}
		}
	}
	if completed == 0 {
		t.Fatal("no answer completed the simulation")
	}

	stored, err := service.Get(context.Background(), user.ID, simulation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.SimulationStatusCompleted || stored.NextQuestion() != nil {
		t.Fatalf("expected a completed simulation, got status %q", stored.Status)
	}
	if stored.OverallScore != 70 || stored.Feedback != "Fim" {
		t.Errorf("unexpected result %v %q", stored.OverallScore, stored.Feedback)
	}
}

func TestConcurrentAnswersToSameQuestion(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	provider := newGatedProvider(
		fakeResponse{text: twoQuestionsJSON},
		fakeResponse{text: `{"score": 5, "feedback": "Ok"}`},
	)
	ai := NewAIService([]AIProvider{provider}, ProviderOpenAI, store, nil, 5*time.Second)
	service := NewInterviewService(store, ai)

	simulation, err := service.Start(context.Background(), user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 2})
	if err != nil {
		t.Fatal(err)
	}
	first := simulation.Questions[0].ID

	outcomes := answerConcurrently(t, service, provider, user.ID, simulation.ID, first, first)

	var accepted, rejected int
	for _, o := range outcomes {
		switch {
		case o.err == nil:
			accepted++
		case errors.Is(o.err, ErrQuestionAnswered):
			rejected++
		default:
			t.Fatalf("unexpected error %v", o.err)
		}
	}
	if accepted != 1 || rejected != 1 {
		t.Errorf("accepted %d and rejected %d answers, expected one each", accepted, rejected)
	}
}

func TestCompletionFallsBackToDefaultFeedback(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	service, _ := newInterviewService(store,
		fakeResponse{text: `{"questions": [{"category": "technical", "question": "Explique goroutines."}]}`},
		fakeResponse{text: `{"score": 9, "feedback": "Excelente"}`},
		fakeResponse{text: "sem json"},
	)
	ctx := context.Background()

	simulation, err := service.Start(ctx, user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	result, err := service.Answer(ctx, user.ID, simulation.ID, simulation.Questions[0].ID, "São threads leves.")
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if !result.Completed || result.Simulation.Feedback != defaultInterviewFeedback(90) {
		t.Errorf("expected default feedback, got %q", result.Simulation.Feedback)
	}
}

func TestInterviewHandlers(t *testing.T) {
	store := newMemStore()
	user := store.addUser("c@example.com", 0, models.RoleUser)
	service, _ := newInterviewService(store,
		fakeResponse{text: `{"questions": [{"category": "technical", "question": "Explique channels."}]}`},
		fakeResponse{text: `{"score": 7, "feedback": "Ok"}`},
		fakeResponse{text: `{"feedback": "Fim"}`},
	)
	simulation, err := service.Start(context.Background(), user.ID, StartInterviewRequest{JobTitle: "Dev", QuestionCount: 1})
	if err != nil {
		t.Fatal(err)
	}
	questionPath := "/interviews/" + simulation.ID + "/questions/" + simulation.Questions[0].ID + "/answer"

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(ContextWithUser(req.Context(), user)))
		})
	})
	NewInterviewEndpoints(service).RegisterRoutes(r)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		expected int
	}{
		{name: "Start without title", method: http.MethodPost, path: "/interviews", body: `{"question_count": 3}`, expected: http.StatusBadRequest},
		{name: "Start with bad language", method: http.MethodPost, path: "/interviews", body: `{"job_title": "Dev", "language": "xx"}`, expected: http.StatusBadRequest},
		{name: "List", method: http.MethodGet, path: "/interviews", expected: http.StatusOK},
		{name: "Get", method: http.MethodGet, path: "/interviews/" + simulation.ID, expected: http.StatusOK},
		{name: "Get unknown", method: http.MethodGet, path: "/interviews/unknown", expected: http.StatusNotFound},
		{name: "Empty answer", method: http.MethodPost, path: questionPath, body: `{"answer": ""}`, expected: http.StatusBadRequest},
		{name: "Answer", method: http.MethodPost, path: questionPath, body: `{"answer": "Comunicação entre goroutines."}`, expected: http.StatusOK},
		{name: "Answer completed interview", method: http.MethodPost, path: questionPath, body: `{"answer": "de novo"}`, expected: http.StatusConflict},
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
}
