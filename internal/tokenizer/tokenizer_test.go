package tokenizer

import (
	"strings"
	"testing"
)

func TestEstimateTokens(t *testing.T) {
	e := NewEstimator()

	tests := []struct {
		name     string
		input    string
		minToken int
		maxToken int
	}{
		{
			name:     "empty string",
			input:    "",
			minToken: 0,
			maxToken: 0,
		},
		{
			name:     "single char",
			input:    "x",
			minToken: 1,
			maxToken: 1,
		},
		{
			name:     "simple text",
			input:    "Hello, world!",
			minToken: 2,
			maxToken: 10,
		},
		{
			name:     "code snippet",
			input:    "def save(self): return repository.save(self.user)",
			minToken: 10,
			maxToken: 25,
		},
		{
			name:     "finding lines",
			input:    strings.Repeat("- [error] app/db.py:12 Potential SQL injection (sql_injection)\n", 10),
			minToken: 120,
			maxToken: 240,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := e.EstimateTokens(tt.input)
			if tokens < tt.minToken || tokens > tt.maxToken {
				t.Errorf("EstimateTokens() = %d, want between %d and %d", tokens, tt.minToken, tt.maxToken)
			}
		})
	}
}

func TestEstimatorForModel(t *testing.T) {
	text := "Potential SQL injection vulnerability in app/db.py"

	claude := NewEstimatorForModel("claude-3-5-haiku-20241022").EstimateTokens(text)
	other := NewEstimatorForModel("unknown-model").EstimateTokens(text)

	if claude <= other {
		t.Errorf("claude estimate %d should exceed default estimate %d", claude, other)
	}
}

func TestBudget(t *testing.T) {
	b := NewBudget(1000, 200)

	if b.Available() != 800 {
		t.Errorf("Available() = %d, want 800", b.Available())
	}

	b.Use(300)
	if b.Available() != 500 {
		t.Errorf("Available() after Use = %d, want 500", b.Available())
	}

	if !b.CanFit(400) {
		t.Error("CanFit(400) should return true")
	}

	if b.CanFit(600) {
		t.Error("CanFit(600) should return false")
	}

	b.Reset()
	if b.Available() != 800 {
		t.Errorf("Available() after Reset = %d, want 800", b.Available())
	}
}

func TestBudgetDefaults(t *testing.T) {
	b := NewBudget(0, 0)
	if want := DefaultMaxTokens - DefaultResponseReserve; b.Available() != want {
		t.Errorf("Available() = %d, want %d", b.Available(), want)
	}
}

func TestContextWindow(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		{"claude-3-5-haiku-20241022", ClaudeContextWindow},
		{"claude-sonnet-4-20250514", ClaudeContextWindow},
		{"unknown", DefaultMaxTokens},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			if got := ContextWindow(tt.model); got != tt.expected {
				t.Errorf("ContextWindow(%s) = %d, want %d", tt.model, got, tt.expected)
			}
		})
	}
}
