package services

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter loads the BPE encoding on first use. Loading can fail when
// the encoding file cannot be downloaded; counts then fall back to an
// estimate of four bytes per token.
type tokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	load func() (*tiktoken.Tiktoken, error)
}

var defaultTokenCounter = &tokenCounter{
	load: func() (*tiktoken.Tiktoken, error) {
		return tiktoken.GetEncoding("cl100k_base")
	},
}

func (c *tokenCounter) count(text string) int {
	if text == "" {
		return 0
	}
	c.once.Do(func() {
		enc, err := c.load()
		if err != nil {
			slog.Warn("Token encoding unavailable, using length estimate", "error", err)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return approxTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

func approxTokens(text string) int {
	return (len(text) + 3) / 4
}

// EstimateTokens counts tokens with the cl100k_base encoding
func EstimateTokens(text string) int {
	return defaultTokenCounter.count(text)
}

// USD per one million tokens
type modelPrice struct {
	Input  float64
	Output float64
}

var modelPrices = map[string]modelPrice{
	"gpt-4o-mini":      {Input: 0.15, Output: 0.60},
	"gpt-4o":           {Input: 2.50, Output: 10.00},
	"gpt-4.1-mini":     {Input: 0.40, Output: 1.60},
	"gpt-4.1-nano":     {Input: 0.10, Output: 0.40},
	"gpt-4.1":          {Input: 2.00, Output: 8.00},
	"gpt-3.5-turbo":    {Input: 0.50, Output: 1.50},
	"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
	"gemini-2.5-pro":   {Input: 1.25, Output: 10.00},
	"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
	"gemini-1.5-flash": {Input: 0.075, Output: 0.30},
}

var defaultModelPrice = modelPrice{Input: 1.00, Output: 4.00}

// priceFor matches the longest known model name prefix, so dated snapshots
// like gpt-4o-mini-2024-07-18 use their family price.
func priceFor(model string) modelPrice {
	model = strings.ToLower(model)
	if p, ok := modelPrices[model]; ok {
		return p
	}
	best, bestLen := defaultModelPrice, 0
	for name, p := range modelPrices {
		if strings.HasPrefix(model, name) && len(name) > bestLen {
			best, bestLen = p, len(name)
		}
	}
	return best
}

func EstimateCostUSD(model string, promptTokens, completionTokens int) float64 {
	p := priceFor(model)
	return (float64(promptTokens)*p.Input + float64(completionTokens)*p.Output) / 1_000_000
}
