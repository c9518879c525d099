package summary

import (
	"context"
	"fmt"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
)

// Provider names accepted by New.
const (
	ProviderTemplate  = "template"
	ProviderAnthropic = "anthropic"
)

// Summarizer writes the summary of a review.
type Summarizer interface {
	Summarize(ctx context.Context, prc *model.PRContext, issues []model.Issue) (string, error)
}

// Options selects and configures a summarizer.
type Options struct {
	Provider  string
	Model     string
	APIKey    string
	MaxTokens int
}

// New builds the summarizer named by opts.Provider. The anthropic provider
// without an API key degrades to the template with a warning.
func New(opts Options, log *logger.Logger) (Summarizer, error) {
	switch opts.Provider {
	case "", ProviderTemplate:
		return NewTemplate(), nil
	case ProviderAnthropic:
		if opts.APIKey == "" {
			log.Warn("summary provider %q has no API key, using template summaries", opts.Provider)
			return NewTemplate(), nil
		}
		return NewAnthropic(opts.APIKey, opts.Model, opts.MaxTokens, log), nil
	default:
		return nil, fmt.Errorf("unknown summary provider: %s", opts.Provider)
	}
}
