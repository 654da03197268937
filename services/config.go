package services

import (
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	AI        AIConfig
	Stripe    StripeConfig
	SMTP      SMTPConfig
	CORS      CORSConfig
	WebSocket WebSocketConfig
	Credits   CreditsConfig
	Admin     AdminConfig
	JobSearch JobSearchConfig
}

type ServerConfig struct {
	Port        string
	Environment string
	PublicURL   string
}

type DatabaseConfig struct {
	URL          string
	Seed         bool
	LogLevel     string
	MaxIdleConns int
	MaxOpenConns int
}

type JWTConfig struct {
	Secret string
}

type AIConfig struct {
	OpenAIAPIKey    string
	OpenAIModel     string
	GeminiAPIKey    string
	GeminiModel     string
	PrimaryProvider string
	Timeout         time.Duration
	MaxResumeChars  int
}

type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type WebSocketConfig struct {
	AllowedOrigins string
}

type CreditsConfig struct {
	SignupBonus int
}

type AdminConfig struct {
	Email    string
	Password string
}

type JobSearchConfig struct {
	RequestsPerSecond float64
	Timeout           time.Duration
}

// IsProduction reports whether cookies must be marked Secure
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// LoadConfig loads configuration from environment variables and config files
func LoadConfig() *Config {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.environment", "development")
	viper.SetDefault("server.public_url", "http://localhost:5173")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.seed", "true")
	viper.SetDefault("database.log_level", "silent")
	viper.SetDefault("database.max_idle_conns", "10")
	viper.SetDefault("database.max_open_conns", "100")
	viper.SetDefault("jwt.secret", "")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("gemini.api_key", "")
	viper.SetDefault("gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.primary_provider", ProviderOpenAI)
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("ai.max_resume_chars", "20000")
	viper.SetDefault("stripe.secret_key", "")
	viper.SetDefault("stripe.currency", "brl")
	viper.SetDefault("stripe.success_url", "http://localhost:5173/payment/success?session_id={CHECKOUT_SESSION_ID}")
	viper.SetDefault("stripe.cancel_url", "http://localhost:5173/payment/cancel")
	viper.SetDefault("smtp.host", "")
	viper.SetDefault("smtp.port", "587")
	viper.SetDefault("smtp.username", "")
	viper.SetDefault("smtp.password", "")
	viper.SetDefault("smtp.from", "CurriculoPro IA <no-reply@curriculopro.ia>")
	viper.SetDefault("cors.allowed_origins", "http://localhost:5173")
	viper.SetDefault("websocket.allowed_origins", "")
	viper.SetDefault("credits.signup_bonus", "1")
	viper.SetDefault("admin.email", "")
	viper.SetDefault("admin.password", "")
	viper.SetDefault("jobsearch.requests_per_second", "1")
	viper.SetDefault("jobsearch.timeout", "15s")

	// Map environment variables to config keys
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.environment", "ENVIRONMENT")
	viper.BindEnv("server.public_url", "PUBLIC_URL")
	viper.BindEnv("database.url", "DATABASE_URL")
	viper.BindEnv("database.seed", "DATABASE_SEED")
	viper.BindEnv("database.log_level", "DATABASE_LOG_LEVEL")
	viper.BindEnv("database.max_idle_conns", "DATABASE_MAX_IDLE_CONNS")
	viper.BindEnv("database.max_open_conns", "DATABASE_MAX_OPEN_CONNS")
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	viper.BindEnv("openai.model", "OPENAI_MODEL")
	viper.BindEnv("gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("gemini.model", "GEMINI_MODEL")
	viper.BindEnv("ai.primary_provider", "AI_PRIMARY_PROVIDER")
	viper.BindEnv("ai.timeout", "AI_TIMEOUT")
	viper.BindEnv("ai.max_resume_chars", "AI_MAX_RESUME_CHARS")
	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.currency", "STRIPE_CURRENCY")
	viper.BindEnv("stripe.success_url", "STRIPE_SUCCESS_URL")
	viper.BindEnv("stripe.cancel_url", "STRIPE_CANCEL_URL")
	viper.BindEnv("smtp.host", "SMTP_HOST")
	viper.BindEnv("smtp.port", "SMTP_PORT")
	viper.BindEnv("smtp.username", "SMTP_USERNAME")
	viper.BindEnv("smtp.password", "SMTP_PASSWORD")
	viper.BindEnv("smtp.from", "SMTP_FROM")
	viper.BindEnv("cors.allowed_origins", "CORS_ALLOWED_ORIGINS")
	viper.BindEnv("websocket.allowed_origins", "WEBSOCKET_ALLOWED_ORIGINS")
	viper.BindEnv("credits.signup_bonus", "CREDITS_SIGNUP_BONUS")
	viper.BindEnv("admin.email", "ADMIN_EMAIL")
	viper.BindEnv("admin.password", "ADMIN_PASSWORD")
	viper.BindEnv("jobsearch.requests_per_second", "JOBSEARCH_REQUESTS_PER_SECOND")
	viper.BindEnv("jobsearch.timeout", "JOBSEARCH_TIMEOUT")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("Config file not found, using defaults and environment variables")
		} else {
			slog.Error("Error reading config file", "error", err)
		}
	}

	return &Config{
		Server: ServerConfig{
			Port:        viper.GetString("server.port"),
			Environment: viper.GetString("server.environment"),
			PublicURL:   strings.TrimRight(viper.GetString("server.public_url"), "/"),
		},
		Database: DatabaseConfig{
			URL:          viper.GetString("database.url"),
			Seed:         viper.GetBool("database.seed"),
			LogLevel:     viper.GetString("database.log_level"),
			MaxIdleConns: viper.GetInt("database.max_idle_conns"),
			MaxOpenConns: viper.GetInt("database.max_open_conns"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("jwt.secret"),
		},
		AI: AIConfig{
			OpenAIAPIKey:    viper.GetString("openai.api_key"),
			OpenAIModel:     viper.GetString("openai.model"),
			GeminiAPIKey:    viper.GetString("gemini.api_key"),
			GeminiModel:     viper.GetString("gemini.model"),
			PrimaryProvider: strings.ToLower(viper.GetString("ai.primary_provider")),
			Timeout:         viper.GetDuration("ai.timeout"),
			MaxResumeChars:  viper.GetInt("ai.max_resume_chars"),
		},
		Stripe: StripeConfig{
			SecretKey:  viper.GetString("stripe.secret_key"),
			Currency:   strings.ToLower(viper.GetString("stripe.currency")),
			SuccessURL: viper.GetString("stripe.success_url"),
			CancelURL:  viper.GetString("stripe.cancel_url"),
		},
		SMTP: SMTPConfig{
			Host:     viper.GetString("smtp.host"),
			Port:     viper.GetInt("smtp.port"),
			Username: viper.GetString("smtp.username"),
			Password: viper.GetString("smtp.password"),
			From:     viper.GetString("smtp.from"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(viper.GetString("cors.allowed_origins")),
		},
		WebSocket: WebSocketConfig{
			AllowedOrigins: viper.GetString("websocket.allowed_origins"),
		},
		Credits: CreditsConfig{
			SignupBonus: viper.GetInt("credits.signup_bonus"),
		},
		Admin: AdminConfig{
			Email:    viper.GetString("admin.email"),
			Password: viper.GetString("admin.password"),
		},
		JobSearch: JobSearchConfig{
			RequestsPerSecond: viper.GetFloat64("jobsearch.requests_per_second"),
			Timeout:           viper.GetDuration("jobsearch.timeout"),
		},
	}
}

// splitList parses a comma separated list, dropping empty entries
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
