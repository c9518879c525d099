package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/tokenizer"
)

const (
	DefaultModel     = "claude-3-5-haiku-20241022"
	DefaultMaxTokens = 512

	// DefaultPromptBudget is the estimated input token budget of a prompt.
	DefaultPromptBudget = 4000
)

// Anthropic asks Claude to write the summary. Empty model output falls
// back to the template.
type Anthropic struct {
	client       anthropic.Client
	model        string
	maxTokens    int64
	promptBudget int
	estimator    *tokenizer.Estimator
	log          *logger.Logger
}

// NewAnthropic creates an LLM summarizer. Extra request options are passed
// to the SDK client.
func NewAnthropic(apiKey, model string, maxTokens int, log *logger.Logger, opts ...option.RequestOption) *Anthropic {
	if model == "" {
		model = DefaultModel
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:       anthropic.NewClient(opts...),
		model:        model,
		maxTokens:    int64(maxTokens),
		promptBudget: DefaultPromptBudget,
		estimator:    tokenizer.NewEstimatorForModel(model),
		log:          log.WithPrefix("SUMMARY"),
	}
}

// WithPromptBudget sets the estimated input tokens a prompt may use.
func (a *Anthropic) WithPromptBudget(tokens int) *Anthropic {
	if tokens > 0 {
		a.promptBudget = tokens
	}
	return a
}

func (a *Anthropic) newBudget() *tokenizer.Budget {
	input := a.promptBudget
	if window := tokenizer.ContextWindow(a.model) - int(a.maxTokens); input > window {
		input = window
	}
	return tokenizer.NewBudget(input+int(a.maxTokens), int(a.maxTokens))
}

// Summarize calls the Messages API once.
func (a *Anthropic) Summarize(ctx context.Context, prc *model.PRContext, issues []model.Issue) (string, error) {
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(prc, issues, a.estimator, a.newBudget()))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	out := strings.TrimSpace(text.String())
	if out == "" {
		a.log.Warn("empty summary from %s, using template", a.model)
		return Render(prc, issues), nil
	}
	a.log.Debug("summary for %s: %d input / %d output tokens", prc.Ref(), resp.Usage.InputTokens, resp.Usage.OutputTokens)
	return out, nil
}

// buildPrompt lists findings most severe first until budget runs out.
func buildPrompt(prc *model.PRContext, issues []model.Issue, est *tokenizer.Estimator, budget *tokenizer.Budget) string {
	var sb strings.Builder

	sb.WriteString("You are reviewing a pull request. Write a short summary (at most five sentences) ")
	sb.WriteString("of the findings below for the PR author. Mention the most serious problems first. ")
	sb.WriteString("Do not invent findings that are not listed.\n\n")

	fmt.Fprintf(&sb, "Pull request: %s\n", prc.Ref())
	if prc.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", prc.Title)
	}
	fmt.Fprintf(&sb, "Files reviewed: %d\n", len(prc.DiffContent))
	fmt.Fprintf(&sb, "Overview: %s\n\n", Render(prc, issues))
	budget.Use(est.EstimateTokens(sb.String()))

	if prc.Description != nil {
		if desc := plainDescription(*prc.Description); desc != "" {
			block := "Description:\n" + desc + "\n\n"
			if n := est.EstimateTokens(block); budget.CanFit(n) {
				sb.WriteString(block)
				budget.Use(n)
			}
		}
	}

	if len(issues) == 0 {
		sb.WriteString("No issues were found.\n")
		return sb.String()
	}

	sb.WriteString("Findings:\n")
	sorted := model.SortIssues(issues)
	for i, issue := range sorted {
		loc := issue.FilePath
		if issue.LineNumber != nil {
			loc = fmt.Sprintf("%s:%d", loc, *issue.LineNumber)
		}
		line := fmt.Sprintf("- [%s] %s %s (%s)\n", issue.Severity, loc, issue.Message, issue.RuleName)
		n := est.EstimateTokens(line)
		if !budget.CanFit(n) {
			fmt.Fprintf(&sb, "... and %d more\n", len(sorted)-i)
			break
		}
		sb.WriteString(line)
		budget.Use(n)
	}
	return sb.String()
}
