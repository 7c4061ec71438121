package service

import (
	"unicode/utf8"

	"github.com/cloo-solutions/bokai/internal/domain"
)

// CostConfig prices remote generation. Prices are per 1000 tokens in the
// provider currency; CurrencyFactor converts to the reporting currency.
type CostConfig struct {
	InputPer1K     float64
	OutputPer1K    float64
	CurrencyFactor float64
}

func DefaultCostConfig() CostConfig {
	return CostConfig{InputPer1K: 0.002, OutputPer1K: 0.002, CurrencyFactor: 4.5}
}

// Accountant attaches confidence and cost to a response.
type Accountant struct {
	cfg CostConfig
}

func NewAccountant(cfg CostConfig) *Accountant {
	if cfg.CurrencyFactor == 0 {
		cfg.CurrencyFactor = 1
	}
	return &Accountant{cfg: cfg}
}

// Confidence is the top retrieval score on generated routes and zero on
// fallback.
func (a *Accountant) Confidence(route domain.Route, retrieval domain.RetrievalResult) float64 {
	if route == domain.RouteFallback {
		return 0
	}
	return retrieval.TopScore()
}

// Cost prices a generation. Local generation is free. When the provider
// reported no usage, tokens are estimated from the prompt and completion.
func (a *Accountant) Cost(route domain.Route, usage *domain.TokenUsage, prompt, completion string) float64 {
	if route != domain.RouteRemote {
		return 0
	}
	if usage == nil {
		usage = &domain.TokenUsage{
			PromptTokens:     EstimateTokens(prompt),
			CompletionTokens: EstimateTokens(completion),
		}
	}
	input := float64(usage.PromptTokens) / 1000 * a.cfg.InputPer1K
	output := float64(usage.CompletionTokens) / 1000 * a.cfg.OutputPer1K
	return (input + output) * a.cfg.CurrencyFactor
}

// EstimateTokens approximates a token count at four characters per token.
func EstimateTokens(s string) int {
	n := utf8.RuneCountInString(s)
	return (n + 3) / 4
}
