package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
	"github.com/FranciscoJunior65/curriuloproia-sub000/services"
)

func main() {
	// Setup structured logging with JSON format
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	config := services.LoadConfig()
	if config.Database.URL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	if config.JWT.Secret == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(config.Database.URL), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(config.Database.LogLevel)),
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	sqlDB, err := db.DB()
	if err != nil {
		slog.Error("Failed to get database handle", "error", err)
		os.Exit(1)
	}
	sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	defer sqlDB.Close()

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, config.Database.URL)
	if err != nil {
		slog.Error("Failed to create pgx pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	slog.Info("Connected to database")

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	if config.Database.Seed {
		seedCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := services.NewDatabaseSeeder(repo, config).SeedDatabase(seedCtx)
		cancel()
		if err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	server := services.NewServer(config, repo, repository.NewStatsRepository(pool), aiProviders(ctx, config.AI))
	server.Start()
}

// aiProviders registers a provider for every configured API key
func aiProviders(ctx context.Context, cfg services.AIConfig) []services.AIProvider {
	var providers []services.AIProvider

	if cfg.OpenAIAPIKey != "" {
		openAI, err := services.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			slog.Error("Failed to initialize OpenAI provider", "error", err)
		} else {
			providers = append(providers, openAI)
			slog.Info("OpenAI provider initialized", "model", cfg.OpenAIModel)
		}
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := services.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini provider", "error", err)
		} else {
			providers = append(providers, gemini)
			slog.Info("Gemini provider initialized", "model", gemini.Model())
		}
	}

	if len(providers) == 0 {
		slog.Warn("No AI provider configured, set OPENAI_API_KEY or GEMINI_API_KEY")
	}
	return providers
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}
