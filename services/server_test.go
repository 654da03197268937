package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
	ws "github.com/FranciscoJunior65/curriuloproia-sub000/websocket"
)

type fakeStats struct {
	pingErr error
}

func (s *fakeStats) Totals(ctx context.Context) (*repository.Totals, error) {
	return &repository.Totals{}, nil
}

func (s *fakeStats) UsageByProvider(ctx context.Context, since time.Time) ([]repository.ProviderUsage, error) {
	return nil, nil
}

func (s *fakeStats) DailyAnalyses(ctx context.Context, days int) ([]repository.DailyCount, error) {
	return nil, nil
}

func (s *fakeStats) Ping(ctx context.Context) error {
	return s.pingErr
}

func testConfig() *Config {
	return &Config{
		Server:    ServerConfig{PublicURL: "http://app.test"},
		JWT:       JWTConfig{Secret: "test-secret"},
		AI:        AIConfig{PrimaryProvider: ProviderOpenAI, Timeout: time.Second, MaxResumeChars: 20000},
		CORS:      CORSConfig{AllowedOrigins: []string{"http://app.test"}},
		WebSocket: WebSocketConfig{AllowedOrigins: "http://app.test"},
		Credits:   CreditsConfig{SignupBonus: 1},
		JobSearch: JobSearchConfig{RequestsPerSecond: 1000},
	}
}

// signupToken creates an account through the auth service and returns its
// access token.
func signupToken(t *testing.T, s *Server, store *memStore, email, role string) string {
	t.Helper()
	resp, err := s.authService.Signup(context.Background(), email, "s3cret-pass", "Test")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	store.mu.Lock()
	store.users[resp.User.ID].Role = role
	store.mu.Unlock()
	return resp.AccessToken
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins string
		requestOrigin  string
		expected       bool
	}{
		{
			name:           "Allowed origin - exact match",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://localhost",
			expected:       true,
		},
		{
			name:           "Allowed origin - second in list",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Disallowed origin",
			allowedOrigins: "http://localhost,http://example.com",
			requestOrigin:  "http://malicious.com",
			expected:       false,
		},
		{
			name:           "Empty allowed origins - deny all",
			allowedOrigins: "",
			requestOrigin:  "http://localhost",
			expected:       false,
		},
		{
			name:           "Origin with whitespace in config",
			allowedOrigins: "http://localhost, http://example.com",
			requestOrigin:  "http://example.com",
			expected:       true,
		},
		{
			name:           "Port mismatch - deny",
			allowedOrigins: "http://localhost:5173",
			requestOrigin:  "http://localhost:8080",
			expected:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/ws", nil)
			req.Header.Set("Origin", tt.requestOrigin)

			if result := checkOrigin(req, tt.allowedOrigins); result != tt.expected {
				t.Errorf("checkOrigin() = %v, expected %v for origin %s with allowed origins %s",
					result, tt.expected, tt.requestOrigin, tt.allowedOrigins)
			}
		})
	}
}

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name           string
		stats          StatsStore
		providers      []AIProvider
		expectedStatus string
		expectedDB     string
	}{
		{name: "Healthy", stats: &fakeStats{}, providers: []AIProvider{newFakeProvider(ProviderOpenAI)}, expectedStatus: "ok", expectedDB: "up"},
		{name: "Database down", stats: &fakeStats{pingErr: errors.New("refused")}, providers: []AIProvider{newFakeProvider(ProviderOpenAI)}, expectedStatus: "degraded", expectedDB: "down"},
		{name: "No AI providers", stats: &fakeStats{}, expectedStatus: "degraded", expectedDB: "up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewServer(testConfig(), newMemStore(), tt.stats, tt.providers)

			rec := httptest.NewRecorder()
			server.SetupRoutes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status code = %d", rec.Code)
			}

			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body["status"] != tt.expectedStatus || body["database"] != tt.expectedDB {
				t.Errorf("unexpected health %v", body)
			}
		})
	}
}

func TestRouteProtection(t *testing.T) {
	store := newMemStore()
	server := NewServer(testConfig(), store, &fakeStats{}, nil)
	router := server.SetupRoutes()

	userToken := signupToken(t, server, store, "user@example.com", models.RoleUser)
	adminToken := signupToken(t, server, store, "admin@example.com", models.RoleAdmin)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		body     string
		expected int
	}{
		{name: "API index", method: http.MethodGet, path: "/api/v1/", expected: http.StatusOK},
		{name: "Metrics", method: http.MethodGet, path: "/metrics", expected: http.StatusOK},
		{name: "Public packages", method: http.MethodGet, path: "/api/v1/payments/packages", expected: http.StatusOK},
		{name: "Public job sites", method: http.MethodGet, path: "/api/v1/job-sites", expected: http.StatusOK},
		{name: "Credits without token", method: http.MethodGet, path: "/api/v1/credits", expected: http.StatusUnauthorized},
		{name: "Credits with bad token", method: http.MethodGet, path: "/api/v1/credits", token: "nope", expected: http.StatusUnauthorized},
		{name: "Credits", method: http.MethodGet, path: "/api/v1/credits", token: userToken, expected: http.StatusOK},
		{name: "Analyses", method: http.MethodGet, path: "/api/v1/analyses", token: userToken, expected: http.StatusOK},
		{name: "Interviews", method: http.MethodGet, path: "/api/v1/interviews", token: userToken, expected: http.StatusOK},
		{name: "Checkout without Stripe", method: http.MethodPost, path: "/api/v1/payments/checkout", token: userToken,
			body: `{"package_id":"6f1c3a52-1d2b-4a53-9a6b-0c6f1f7e2d11"}`, expected: http.StatusServiceUnavailable},
		{name: "WebSocket without simulation", method: http.MethodGet, path: "/api/v1/ws", token: userToken, expected: http.StatusBadRequest},
		{name: "Admin as user", method: http.MethodGet, path: "/api/v1/admin/users", token: userToken, expected: http.StatusForbidden},
		{name: "Admin without token", method: http.MethodGet, path: "/api/v1/admin/users", expected: http.StatusUnauthorized},
		{name: "Admin users", method: http.MethodGet, path: "/api/v1/admin/users", token: adminToken, expected: http.StatusOK},
		{name: "Admin stats", method: http.MethodGet, path: "/api/v1/admin/stats", token: adminToken, expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != tt.expected {
				t.Errorf("status = %d, expected %d: %s", rec.Code, tt.expected, rec.Body.String())
			}
		})
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) ws.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var event ws.Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("failed to read event: %v", err)
	}
	return event
}

func TestLiveInterviewOverWebSocket(t *testing.T) {
	store := newMemStore()
	provider := newFakeProvider(ProviderOpenAI,
		fakeResponse{text: `{"questions": [{"category": "technical", "question": "O que é um channel?"}]}`},
		fakeResponse{text: `{"score": 9, "feedback": "Resposta precisa"}`},
		fakeResponse{text: `{"feedback": "Ótima entrevista"}`},
	)
	server := NewServer(testConfig(), store, &fakeStats{}, []AIProvider{provider})
	srv := httptest.NewServer(server.SetupRoutes())
	defer srv.Close()

	token := signupToken(t, server, store, "live@example.com", models.RoleUser)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/interviews", strings.NewReader(`{"job_title":"Backend Go","question_count":1}`))
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var started struct {
		Simulation models.InterviewSimulation `json:"simulation"`
	}
	json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || started.Simulation.ID == "" {
		t.Fatalf("failed to start interview: %d", resp.StatusCode)
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/ws?simulation_id=" + started.Simulation.ID
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	header.Set("Origin", "http://evil.test")
	if _, resp, err := websocket.DefaultDialer.Dial(wsURL, header); err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin should be rejected, got %v", err)
	}

	header.Set("Origin", "http://app.test")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	if event := readEvent(t, conn); event.Type != "question" || event.Content != "O que é um channel?" {
		t.Fatalf("expected first question, got %+v", event)
	}

	if err := conn.WriteJSON(ws.Message{Type: "unknown"}); err != nil {
		t.Fatal(err)
	}
	if event := readEvent(t, conn); event.Type != "error" {
		t.Errorf("expected error event, got %+v", event)
	}

	if err := conn.WriteJSON(ws.Message{Type: "answer", Content: "Um canal tipado entre goroutines."}); err != nil {
		t.Fatal(err)
	}
	if event := readEvent(t, conn); event.Type != "evaluation" || event.Content != "Resposta precisa" {
		t.Errorf("expected evaluation, got %+v", event)
	}
	event := readEvent(t, conn)
	if event.Type != "completed" || event.Content != "Ótima entrevista" || event.SimulationID != started.Simulation.ID {
		t.Errorf("expected completion, got %+v", event)
	}

	if err := conn.WriteJSON(ws.Message{Type: "end_session"}); err != nil {
		t.Fatal(err)
	}
	if event := readEvent(t, conn); event.Type != "end_session" {
		t.Errorf("expected end_session, got %+v", event)
	}

	stored, err := server.interviewEndpoints.interviews.Get(context.Background(), started.Simulation.UserID, started.Simulation.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != models.SimulationStatusCompleted || stored.OverallScore != 90 {
		t.Errorf("unexpected stored simulation: %q %v", stored.Status, stored.OverallScore)
	}
}
