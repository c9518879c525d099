package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/JNZader/prreviewer/internal/model"
)

// TextReporter prints a colored, human readable report for terminals.
// Color is disabled automatically when output is not a TTY.
type TextReporter struct{}

func (r *TextReporter) Format() string { return "text" }

func (r *TextReporter) Generate(result *model.ReviewResult) (string, error) {
	return generate(r, result)
}

func (r *TextReporter) Write(result *model.ReviewResult, w io.Writer) error {
	bold := color.New(color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", bold("Review of"), result.Repository)
	if result.Summary != "" {
		fmt.Fprintf(&sb, "%s\n", result.Summary)
	}
	sb.WriteString("\n")

	for _, group := range groupByFile(result.Issues) {
		name := group.path
		if name == "" {
			name = "(general)"
		}
		fmt.Fprintf(&sb, "%s\n", bold(name))
		for _, issue := range group.issues {
			loc := "-"
			if line := issue.Line(); line > 0 {
				loc = fmt.Sprintf("%d", line)
			}
			fmt.Fprintf(&sb, "  %5s  %s %s %s\n",
				loc, severityColor(issue.Severity)(fmt.Sprintf("%-10s", issue.Severity)),
				issue.Message, gray("["+issue.RuleName+"]"))
			if fix := issue.Fix(); fix != "" {
				fmt.Fprintf(&sb, "         %s %s\n", gray("fix:"), fix)
			}
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "%d issues in %d files", len(result.Issues), result.TotalFilesReviewed)
	if result.ReviewTime > 0 {
		fmt.Fprintf(&sb, " (%.2fs)", result.ReviewTime)
	}
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func severityColor(sev model.Severity) func(a ...interface{}) string {
	switch sev {
	case model.SeverityError:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case model.SeverityWarning:
		return color.New(color.FgYellow).SprintFunc()
	case model.SeveritySuggestion:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.FgBlue).SprintFunc()
	}
}
