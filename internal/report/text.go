package report

import (
	"fmt"
	"strings"

	"github.com/JNZader/prreviewer/internal/model"
)

// DefaultTruncateLength is the length Truncate is used with for inline
// review comments.
const DefaultTruncateLength = 1000

// SeverityEmoji returns the marker used in markdown comments.
func SeverityEmoji(sev model.Severity) string {
	switch sev {
	case model.SeverityError:
		return "🔴"
	case model.SeverityWarning:
		return "🟡"
	case model.SeveritySuggestion:
		return "💡"
	default:
		return "ℹ️"
	}
}

// FormatIssueComment renders a single issue as a GitHub comment body.
func FormatIssueComment(issue model.Issue) string {
	parts := []string{fmt.Sprintf("%s **%s**: %s",
		SeverityEmoji(issue.Severity), strings.ToUpper(string(issue.Severity)), issue.Message)}

	if snippet := issue.Snippet(); snippet != "" {
		parts = append(parts, "\nRelevant code:", "```\n"+snippet+"\n```")
	}
	if fix := issue.Fix(); fix != "" {
		parts = append(parts, "\n💡 **Suggestion**:", fix)
	}
	return strings.Join(parts, "\n")
}

// Truncate shortens text to at most max runes, cutting back to the last
// space, and appends "...". Text that fits is returned unchanged.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx >= 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
