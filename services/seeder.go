package services

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/FranciscoJunior65/curriuloproia-sub000/repository"
)

type SeedStore interface {
	UpsertPackage(ctx context.Context, pkg *models.CreditPackage) error
	GetJobSiteBySlug(ctx context.Context, slug string) (*models.JobSite, error)
	CreateJobSite(ctx context.Context, site *models.JobSite) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

var _ SeedStore = (*repository.GORMRepository)(nil)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	store    SeedStore
	currency string
	admin    AdminConfig
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(store SeedStore, cfg *Config) *DatabaseSeeder {
	return &DatabaseSeeder{store: store, currency: cfg.Stripe.Currency, admin: cfg.Admin}
}

// SeedDatabase seeds the database with initial data (idempotent)
func (s *DatabaseSeeder) SeedDatabase(ctx context.Context) error {
	for _, pkg := range defaultPackages(s.currency) {
		if err := s.store.UpsertPackage(ctx, &pkg); err != nil {
			return fmt.Errorf("failed to seed package %q: %w", pkg.Name, err)
		}
	}

	for _, site := range defaultJobSites() {
		if err := s.seedJobSite(ctx, site); err != nil {
			slog.Error("Failed to seed job site", "slug", site.Slug, "error", err)
		}
	}

	if s.admin.Email != "" && s.admin.Password != "" {
		if err := s.seedAdmin(ctx); err != nil {
			return err
		}
	}

	slog.Info("Database seeding completed successfully")
	return nil
}

func (s *DatabaseSeeder) seedJobSite(ctx context.Context, site models.JobSite) error {
	existing, err := s.store.GetJobSiteBySlug(ctx, site.Slug)
	if err != nil {
		return err
	}
	if existing != nil {
		slog.Debug("Job site already exists, skipping", "slug", site.Slug)
		return nil
	}
	return s.store.CreateJobSite(ctx, &site)
}

// seedAdmin creates the configured admin once; an existing account is left as is.
func (s *DatabaseSeeder) seedAdmin(ctx context.Context) error {
	email := normalizeEmail(s.admin.Email)
	existing, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if existing != nil {
		if !existing.IsAdmin() {
			slog.Warn("Configured admin email belongs to a regular user", "email", email)
		}
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(s.admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := &models.User{
		Email:    email,
		Password: string(hashedPassword),
		FullName: "Administrador",
		Role:     models.RoleAdmin,
	}
	if err := s.store.CreateUser(ctx, admin); err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}
	slog.Info("Admin user seeded", "email", email)
	return nil
}

func defaultPackages(currency string) []models.CreditPackage {
	if currency == "" {
		currency = "brl"
	}
	return []models.CreditPackage{
		{
			Name:        "Básico",
			Description: "1 análise de currículo com IA",
			Credits:     1,
			PriceCents:  990,
			Currency:    currency,
			IsActive:    true,
		},
		{
			Name:        "Profissional",
			Description: "5 análises de currículo com IA",
			Credits:     5,
			PriceCents:  3990,
			Currency:    currency,
			IsActive:    true,
		},
		{
			Name:        "Premium",
			Description: "10 análises de currículo com IA",
			Credits:     10,
			PriceCents:  6990,
			Currency:    currency,
			IsActive:    true,
		},
	}
}

func defaultJobSites() []models.JobSite {
	return []models.JobSite{
		{
			Name:              "LinkedIn",
			Slug:              "linkedin",
			BaseURL:           "https://www.linkedin.com",
			SearchURLTemplate: "https://www.linkedin.com/jobs/search/?keywords={keywords}&location={location}",
			Keywords:          []string{"liderança", "resultados", "colaboração", "inglês"},
			Characteristics:   "Recrutadores leem o resumo e as conquistas primeiro. Valorize um título claro, resultados mensuráveis e palavras-chave de competências.",
			IsActive:          true,
		},
		{
			Name:              "Indeed",
			Slug:              "indeed",
			BaseURL:           "https://br.indeed.com",
			SearchURLTemplate: "https://br.indeed.com/jobs?q={keywords}&l={location}",
			Keywords:          []string{"experiência", "disponibilidade", "certificações"},
			Characteristics:   "Filtros automáticos por palavras-chave. Currículo objetivo, com cargos e datas bem definidos, tende a ter melhor desempenho.",
			ScrapeEnabled:     true,
			ResultSelector:    "div.job_seen_beacon",
			TitleSelector:     "h2.jobTitle span",
			CompanySelector:   "[data-testid=company-name]",
			LocationSelector:  "[data-testid=text-location]",
			LinkSelector:      "h2.jobTitle a",
			IsActive:          true,
		},
		{
			Name:              "Gupy",
			Slug:              "gupy",
			BaseURL:           "https://portal.gupy.io",
			SearchURLTemplate: "https://portal.gupy.io/job-search/term={keywords}",
			Keywords:          []string{"competências", "formação", "projetos"},
			Characteristics:   "ATS com triagem por aderência à vaga. Use os mesmos termos da descrição da vaga e evite tabelas e colunas.",
			IsActive:          true,
		},
		{
			Name:              "Catho",
			Slug:              "catho",
			BaseURL:           "https://www.catho.com.br",
			SearchURLTemplate: "https://www.catho.com.br/vagas/?q={keywords}&where={location}",
			Keywords:          []string{"objetivo profissional", "pretensão salarial", "cursos"},
			Characteristics:   "Recrutadores brasileiros esperam objetivo profissional, formação e cursos complementares em destaque.",
			IsActive:          true,
		},
	}
}
