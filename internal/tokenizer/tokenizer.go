// Package tokenizer estimates token counts so prompts fit a model's budget.
package tokenizer

import (
	"strings"
	"unicode/utf8"
)

const (
	// ClaudeContextWindow is the input window of current Claude models.
	ClaudeContextWindow = 200000

	// DefaultMaxTokens is the budget used for unknown models.
	DefaultMaxTokens = 8000

	// DefaultResponseReserve is kept free for the model's answer.
	DefaultResponseReserve = 512
)

// Estimator approximates token counts from character counts.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator returns an estimator using ~4 characters per token.
func NewEstimator() *Estimator {
	return &Estimator{charsPerToken: 4.0}
}

// NewEstimatorForModel returns an estimator tuned for model.
func NewEstimatorForModel(model string) *Estimator {
	e := NewEstimator()
	if strings.Contains(model, "claude") {
		e.charsPerToken = 3.5
	}
	return e
}

// EstimateTokens estimates the token count of text.
func (e *Estimator) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	charCount := utf8.RuneCountInString(text)
	estimate := float64(charCount) / e.charsPerToken

	// punctuation-heavy text costs more tokens
	if isCodeLike(text) {
		estimate *= 1.3
	}
	if countWhitespace(text)/float64(charCount) > 0.3 {
		estimate *= 0.9
	}

	n := int(estimate)
	if n == 0 {
		n = 1
	}
	return n
}

func isCodeLike(text string) bool {
	indicators := []string{
		"func ", "def ", "class ", "return ", "import ",
		"{", "}", "(", ")", "[", "]",
		"=>", "->", "::", "//", "/*",
	}

	lower := strings.ToLower(text)
	count := 0
	for _, ind := range indicators {
		if strings.Contains(lower, ind) {
			count++
		}
	}
	return count >= 3
}

func countWhitespace(text string) float64 {
	count := 0
	for _, r := range text {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			count++
		}
	}
	return float64(count)
}

// Budget tracks how many input tokens are left for a single request.
// It is not safe for concurrent use.
type Budget struct {
	maxTokens       int
	responseReserve int
	used            int
}

// NewBudget creates a budget of maxTokens with responseReserve held back.
// Non-positive arguments take the package defaults.
func NewBudget(maxTokens, responseReserve int) *Budget {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if responseReserve <= 0 {
		responseReserve = DefaultResponseReserve
	}
	return &Budget{maxTokens: maxTokens, responseReserve: responseReserve}
}

// Available returns the tokens still usable for input.
func (b *Budget) Available() int {
	return b.maxTokens - b.responseReserve - b.used
}

// Use marks tokens as spent.
func (b *Budget) Use(tokens int) {
	b.used += tokens
}

// CanFit reports whether tokens more would stay within budget.
func (b *Budget) CanFit(tokens int) bool {
	return tokens <= b.Available()
}

// Reset clears spent tokens.
func (b *Budget) Reset() {
	b.used = 0
}

// ContextWindow returns the input window for model.
func ContextWindow(model string) int {
	if strings.HasPrefix(model, "claude") {
		return ClaudeContextWindow
	}
	return DefaultMaxTokens
}
