package services

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	ws "github.com/FranciscoJunior65/curriuloproia-sub000/websocket"
)

// Pinger reports database liveness for /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server holds all server dependencies
type Server struct {
	config   *Config
	db       Pinger
	metrics  *Metrics
	notifier *Notifier
	ai       *AIService
	wsHub    *ws.Hub

	authService        *AuthService
	authEndpoints      *AuthEndpoints
	creditEndpoints    *CreditEndpoints
	analysisEndpoints  *AnalysisEndpoints
	paymentEndpoints   *PaymentEndpoints
	interviewEndpoints *InterviewEndpoints
	jobEndpoints       *JobSearchEndpoints
	adminEndpoints     *AdminEndpoints
	websocketHandler   *WebSocketHandler
}

// NewServer wires every service on top of the stores. providers may be
// empty, in which case AI features answer 502.
func NewServer(config *Config, repo Store, stats StatsStore, providers []AIProvider) *Server {
	metrics := NewMetrics()
	notifier := NewNotifier(NewMailer(config.SMTP), config.Server.PublicURL)

	var gateway CheckoutGateway
	if config.Stripe.SecretKey != "" {
		gateway = NewStripeGateway(config.Stripe.SecretKey)
		slog.Info("Stripe checkout enabled")
	} else {
		slog.Warn("STRIPE_SECRET_KEY not configured, payments disabled")
	}

	ai := NewAIService(providers, config.AI.PrimaryProvider, repo, metrics, config.AI.Timeout)
	credits := NewCreditService(repo)
	authService := NewAuthService(repo, notifier, config)
	interviews := NewInterviewService(repo, ai)

	hub := ws.NewHub()
	go hub.Run()

	server := &Server{
		config:             config,
		metrics:            metrics,
		notifier:           notifier,
		ai:                 ai,
		wsHub:              hub,
		authService:        authService,
		authEndpoints:      NewAuthEndpoints(authService),
		creditEndpoints:    NewCreditEndpoints(credits),
		analysisEndpoints:  NewAnalysisEndpoints(NewAnalysisService(repo, credits, ai, notifier, metrics, config.AI.MaxResumeChars)),
		paymentEndpoints:   NewPaymentEndpoints(NewPaymentService(repo, gateway, notifier, metrics, config.Stripe)),
		interviewEndpoints: NewInterviewEndpoints(interviews),
		jobEndpoints:       NewJobSearchEndpoints(NewJobSearchService(repo, config.JobSearch)),
		adminEndpoints:     NewAdminEndpoints(repo, stats),
		websocketHandler:   NewWebSocketHandler(interviews, hub, config.WebSocket.AllowedOrigins),
	}
	if pinger, ok := stats.(Pinger); ok {
		server.db = pinger
	}
	return server
}

// SetupRoutes configures all HTTP routes
func (s *Server) SetupRoutes() *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.healthHandler)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.apiV1Handler)

		s.authEndpoints.RegisterRoutes(r)
		s.paymentEndpoints.RegisterPublicRoutes(r)
		s.jobEndpoints.RegisterPublicRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			s.creditEndpoints.RegisterRoutes(r)
			s.analysisEndpoints.RegisterRoutes(r)
			s.paymentEndpoints.RegisterRoutes(r)
			s.interviewEndpoints.RegisterRoutes(r)
			s.jobEndpoints.RegisterRoutes(r)
			r.Method(http.MethodGet, "/ws", s.websocketHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.authService.Middleware)
			r.Use(RequireAdmin)
			s.adminEndpoints.RegisterRoutes(r)
		})
	})

	return r
}

// Start serves until SIGINT/SIGTERM, then drains requests and pending emails.
func (s *Server) Start() {
	port := s.config.Server.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		slog.Info("Starting server", "port", port, "ai_providers", s.ai.Providers())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	s.notifier.Wait()

	slog.Info("Server exited")
}

// checkOrigin validates the origin of WebSocket connections to prevent CSRF attacks
func checkOrigin(r *http.Request, allowedOriginsStr string) bool {
	origin := r.Header.Get("Origin")

	// If no allowed origins are configured, deny all requests for security
	if allowedOriginsStr == "" {
		slog.Warn("WebSocket connection rejected: no allowed origins configured", "origin", origin)
		return false
	}

	for _, allowed := range strings.Split(allowedOriginsStr, ",") {
		if strings.TrimSpace(allowed) == origin {
			slog.Info("WebSocket connection accepted", "origin", origin)
			return true
		}
	}

	slog.Warn("WebSocket connection rejected: origin not allowed", "origin", origin, "allowed_origins", allowedOriginsStr)
	return false
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "not configured"

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			slog.Error("Database ping failed", "error", err)
			dbStatus = "down"
			status = "degraded"
		} else {
			dbStatus = "up"
		}
	}

	aiStatus := "up"
	if len(s.ai.Providers()) == 0 {
		aiStatus = "not configured"
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            status,
		"database":          dbStatus,
		"ai":                aiStatus,
		"ai_providers":      s.ai.Providers(),
		"websocket_clients": s.wsHub.Count(),
	})
}

func (s *Server) apiV1Handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "CurriculoPro IA API v1",
		"version": "1.0.0",
	})
}
