// Package model defines the records shared by the review pipeline:
// issues, pull request context and review results.
package model

import (
	"fmt"
	"sort"
	"strings"
)

// Severity indicates the importance of an issue.
type Severity string

const (
	SeverityError      Severity = "error"
	SeverityWarning    Severity = "warning"
	SeverityInfo       Severity = "info"
	SeveritySuggestion Severity = "suggestion"
)

// Severities lists every severity from most to least important.
var Severities = []Severity{SeverityError, SeverityWarning, SeverityInfo, SeveritySuggestion}

// Rank orders severities: error > warning > info > suggestion.
// Unknown values rank below suggestion.
func (s Severity) Rank() int {
	switch s {
	case SeverityError:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	case SeveritySuggestion:
		return 0
	default:
		return -1
	}
}

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	return s.Rank() >= 0
}

// ParseSeverity converts a string into a Severity (case-insensitive).
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Source identifies which part of the pipeline produced an issue.
type Source string

const (
	SourceLocal Source = "local"
	SourceMCP   Source = "mcp"
)

// Issue is a single finding. Issues are created once and never modified.
type Issue struct {
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	FilePath     string   `json:"file_path"`
	LineNumber   *int     `json:"line_number,omitempty"`
	CodeSnippet  *string  `json:"code_snippet,omitempty"`
	RuleName     string   `json:"rule_name"`
	SuggestedFix *string  `json:"suggested_fix,omitempty"`
	Source       Source   `json:"source,omitempty"`
}

// Line returns the line number or 0 when the issue is file-level.
func (i Issue) Line() int {
	if i.LineNumber == nil {
		return 0
	}
	return *i.LineNumber
}

// Snippet returns the code snippet or "".
func (i Issue) Snippet() string {
	if i.CodeSnippet == nil {
		return ""
	}
	return *i.CodeSnippet
}

// Fix returns the suggested fix or "".
func (i Issue) Fix() string {
	if i.SuggestedFix == nil {
		return ""
	}
	return *i.SuggestedFix
}

// Int returns a pointer to n.
func Int(n int) *int { return &n }

// String returns a pointer to s.
func String(s string) *string { return &s }

// OptionalString returns nil for "" and a pointer otherwise.
func OptionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// SortIssues returns a copy of issues ordered by severity (highest first),
// then file path, then line. The input is not modified.
func SortIssues(issues []Issue) []Issue {
	sorted := make([]Issue, len(issues))
	copy(sorted, issues)
	sort.SliceStable(sorted, func(a, b int) bool {
		ra, rb := sorted[a].Severity.Rank(), sorted[b].Severity.Rank()
		if ra != rb {
			return ra > rb
		}
		if sorted[a].FilePath != sorted[b].FilePath {
			return sorted[a].FilePath < sorted[b].FilePath
		}
		return sorted[a].Line() < sorted[b].Line()
	})
	return sorted
}

// CountBySeverity counts issues per severity.
func CountBySeverity(issues []Issue) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, issue := range issues {
		counts[issue.Severity]++
	}
	return counts
}

// CountByFile counts issues per file path.
func CountByFile(issues []Issue) map[string]int {
	counts := make(map[string]int)
	for _, issue := range issues {
		counts[issue.FilePath]++
	}
	return counts
}
