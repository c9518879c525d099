package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/prreviewer/internal/model"
)

// MarkdownReporter generates Markdown reports. The output is what gets
// posted as the pull request review body.
type MarkdownReporter struct {
	// Prioritize orders issues by severity instead of detection order.
	Prioritize bool
}

func (r *MarkdownReporter) Format() string { return "markdown" }

func (r *MarkdownReporter) Generate(result *model.ReviewResult) (string, error) {
	return generate(r, result)
}

func (r *MarkdownReporter) Write(result *model.ReviewResult, w io.Writer) error {
	var sb strings.Builder

	sb.WriteString("# Code Review Report\n\n")

	if result.Summary != "" {
		sb.WriteString(result.Summary)
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Files Reviewed:** %d\n", result.TotalFilesReviewed)
	fmt.Fprintf(&sb, "- **Total Issues:** %d\n", len(result.Issues))
	for _, sev := range model.Severities {
		if n := result.Stats[model.SeverityStatKey(sev)]; n > 0 {
			fmt.Fprintf(&sb, "- %s %s: %d\n", SeverityEmoji(sev), sev, n)
		}
	}
	if result.ReviewTime > 0 {
		fmt.Fprintf(&sb, "- **Duration:** %.2fs\n", result.ReviewTime)
	}
	sb.WriteString("\n")

	if len(result.Issues) == 0 {
		sb.WriteString("No issues found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	sb.WriteString("## Issues\n\n")

	issues := result.Issues
	if r.Prioritize {
		issues = model.SortIssues(issues)
	}
	for _, group := range groupByFile(issues) {
		name := group.path
		if name == "" {
			name = "General"
		}
		fmt.Fprintf(&sb, "### %s\n\n", name)
		for _, issue := range group.issues {
			writeIssue(&sb, issue)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeIssue(sb *strings.Builder, issue model.Issue) {
	if line := issue.Line(); line > 0 {
		fmt.Fprintf(sb, "**Line %d** `%s`\n\n", line, issue.RuleName)
	} else {
		fmt.Fprintf(sb, "`%s`\n\n", issue.RuleName)
	}
	sb.WriteString(FormatIssueComment(issue))
	sb.WriteString("\n\n---\n\n")
}

type fileGroup struct {
	path   string
	issues []model.Issue
}

// groupByFile keeps files in first-seen order.
func groupByFile(issues []model.Issue) []fileGroup {
	var groups []fileGroup
	index := make(map[string]int)
	for _, issue := range issues {
		i, ok := index[issue.FilePath]
		if !ok {
			i = len(groups)
			index[issue.FilePath] = i
			groups = append(groups, fileGroup{path: issue.FilePath})
		}
		groups[i].issues = append(groups[i].issues, issue)
	}
	return groups
}
