package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var (
	ErrAllProvidersFailed = errors.New("all AI providers failed")
	errEmptyCompletion    = errors.New("provider returned an empty completion")
)

// Prompt is a single system + user exchange
type Prompt struct {
	System      string
	User        string
	JSON        bool // ask the provider for a JSON object response
	Temperature float64
	MaxTokens   int
}

type Completion struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// AIProvider is one LLM backend
type AIProvider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt Prompt) (*Completion, error)
}

// AIService calls the configured providers in order until one succeeds.
// Every attempt is recorded as an AIUsageLog row.
type AIService struct {
	providers []AIProvider
	usage     UsageStore
	metrics   *Metrics
	timeout   time.Duration
}

// NewAIService orders providers so the one named primary is tried first;
// the rest keep their relative order.
func NewAIService(providers []AIProvider, primary string, usage UsageStore, metrics *Metrics, timeout time.Duration) *AIService {
	ordered := make([]AIProvider, 0, len(providers))
	for _, p := range providers {
		if p.Name() == primary {
			ordered = append(ordered, p)
		}
	}
	for _, p := range providers {
		if p.Name() != primary {
			ordered = append(ordered, p)
		}
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &AIService{
		providers: ordered,
		usage:     usage,
		metrics:   metrics,
		timeout:   timeout,
	}
}

// Providers returns the provider names in call order
func (s *AIService) Providers() []string {
	names := make([]string, len(s.providers))
	for i, p := range s.providers {
		names[i] = p.Name()
	}
	return names
}

// Generate returns the first non-empty completion
func (s *AIService) Generate(ctx context.Context, userID, feature string, prompt Prompt) (*Completion, error) {
	return s.generate(ctx, userID, feature, prompt, nil)
}

// GenerateJSON is Generate followed by ParseJSONResponse into v, which must
// be a non-nil pointer. A response that does not parse counts as a provider
// failure and the next provider is tried. Each response is decoded into a
// fresh value, so v only ever holds the accepted provider's output.
func (s *AIService) GenerateJSON(ctx context.Context, userID, feature string, prompt Prompt, v any) (*Completion, error) {
	target := reflect.ValueOf(v)
	if target.Kind() != reflect.Pointer || target.IsNil() {
		return nil, fmt.Errorf("GenerateJSON needs a non-nil pointer, got %T", v)
	}

	prompt.JSON = true
	var decoded reflect.Value
	completion, err := s.generate(ctx, userID, feature, prompt, func(text string) error {
		fresh := reflect.New(target.Elem().Type())
		if err := ParseJSONResponse(text, fresh.Interface()); err != nil {
			return err
		}
		decoded = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	target.Elem().Set(decoded.Elem())
	return completion, nil
}

func (s *AIService) generate(ctx context.Context, userID, feature string, prompt Prompt, accept func(string) error) (*Completion, error) {
	if len(s.providers) == 0 {
		return nil, fmt.Errorf("%w: no providers configured", ErrAllProvidersFailed)
	}

	var lastErr error
	for _, provider := range s.providers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, err)
		}

		start := time.Now()
		completion, err := s.call(ctx, provider, prompt)
		if err == nil && accept != nil {
			err = accept(completion.Text)
		}
		latency := time.Since(start)

		entry := &models.AIUsageLog{
			Feature:   feature,
			Provider:  provider.Name(),
			Model:     provider.Model(),
			LatencyMs: latency.Milliseconds(),
			Success:   err == nil,
		}
		if userID != "" {
			entry.UserID = &userID
		}
		if completion != nil {
			entry.PromptTokens = completion.PromptTokens
			entry.CompletionTokens = completion.CompletionTokens
			entry.EstimatedCostUSD = EstimateCostUSD(provider.Model(), completion.PromptTokens, completion.CompletionTokens)
		}
		if err != nil {
			entry.ErrorMessage = err.Error()
		}
		s.record(ctx, entry)

		if err == nil {
			slog.Info("AI completion", "provider", provider.Name(), "model", provider.Model(), "feature", feature,
				"latency_ms", entry.LatencyMs, "prompt_tokens", entry.PromptTokens, "completion_tokens", entry.CompletionTokens)
			return completion, nil
		}

		slog.Warn("AI provider failed, trying next", "provider", provider.Name(), "feature", feature, "error", err)
		lastErr = fmt.Errorf("%s: %w", provider.Name(), err)
	}

	slog.Error("All AI providers failed", "feature", feature, "error", lastErr)
	return nil, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

func (s *AIService) call(ctx context.Context, provider AIProvider, prompt Prompt) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	completion, err := provider.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	if completion == nil || strings.TrimSpace(completion.Text) == "" {
		return completion, errEmptyCompletion
	}
	completion.Provider = provider.Name()
	completion.Model = provider.Model()
	if completion.PromptTokens == 0 {
		completion.PromptTokens = EstimateTokens(prompt.System) + EstimateTokens(prompt.User)
	}
	if completion.CompletionTokens == 0 {
		completion.CompletionTokens = EstimateTokens(completion.Text)
	}
	return completion, nil
}

func (s *AIService) record(ctx context.Context, entry *models.AIUsageLog) {
	s.metrics.ObserveAI(entry.Provider, entry.Feature, entry.Success, entry.PromptTokens, entry.CompletionTokens)
	if s.usage == nil {
		return
	}
	// Usage rows are written even when the request context was cancelled
	if err := s.usage.CreateAIUsageLog(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("Failed to record AI usage", "error", err, "provider", entry.Provider)
	}
}

// ParseJSONResponse extracts the outermost JSON object from an LLM response,
// tolerating Markdown code fences and surrounding prose.
func ParseJSONResponse(text string, v any) error {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```JSON")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return errors.New("no JSON object in response")
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to decode JSON response: %w", err)
	}
	return nil
}
