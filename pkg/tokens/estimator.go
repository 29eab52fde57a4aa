// Package tokens provides character-based token estimation for admission
// checks.
//
// Callers that already know their token estimate pass it directly; for
// those that only have the prompt text, the estimator predicts usage with
// provider-specific characters-per-token ratios. Character-based
// estimation stays within a few percent of real tokenizers for typical
// prompts and costs well under a millisecond, which is all a reservation
// estimate needs; the budget records actual usage afterward anyway.
package tokens

import "strings"

// DefaultCharsPerToken is the fallback ratio for providers without a
// configured ratio. Four characters per token is a good approximation
// for GPT-family tokenizers on English text.
const DefaultCharsPerToken = 4.0

// DefaultRatios maps provider names to characters-per-token ratios.
var DefaultRatios = map[string]float64{
	"openai":    4.0,
	"anthropic": 3.5,
	"cohere":    4.0,
}

// Estimator predicts token counts from prompt text.
type Estimator struct {
	ratios map[string]float64
}

// NewEstimator creates an estimator with the given provider ratios.
// Nil uses DefaultRatios.
func NewEstimator(ratios map[string]float64) *Estimator {
	if ratios == nil {
		ratios = DefaultRatios
	}
	return &Estimator{ratios: ratios}
}

// EstimateText estimates the token count of text for a provider.
// Empty text estimates to 0; any non-empty text estimates to at least 1.
func (e *Estimator) EstimateText(text, provider string) int64 {
	if text == "" {
		return 0
	}

	tokens := float64(len(text)) / e.charsPerToken(provider)
	if tokens < 1.0 {
		return 1
	}
	return int64(tokens + 0.5)
}

// charsPerToken resolves the ratio for a provider: exact match first,
// then prefix match (so "openai-azure" inherits "openai"), then the
// default.
func (e *Estimator) charsPerToken(provider string) float64 {
	provider = strings.ToLower(provider)

	if ratio, ok := e.ratios[provider]; ok {
		return ratio
	}
	for name, ratio := range e.ratios {
		if strings.HasPrefix(provider, name) {
			return ratio
		}
	}
	return DefaultCharsPerToken
}
