// Package analyzer implements the regex-based checks run over each changed
// file. Every analyzer is a pure function of (path, text, catalog): it keeps
// no state between calls and is safe for concurrent use.
package analyzer

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Analyzer inspects one file and reports issues.
type Analyzer interface {
	// Name identifies the analyzer category.
	Name() string

	// Analyze scans the text of one file.
	Analyze(filePath, text string) ([]model.Issue, error)
}

// Category names, in the order the review engine runs them.
const (
	CategoryArchitecture = "architecture"
	CategoryStyle        = "style"
	CategorySecurity     = "security"
)

// All builds the three analyzers in scan order.
func All(cat *rules.Catalog, log *logger.Logger) []Analyzer {
	return []Analyzer{
		NewArchitecture(cat, log),
		NewStyle(cat, log),
		NewSecurity(cat, log),
	}
}

// splitLines splits text at "\r\n" and at every single line boundary:
// \n \r \v \f, the file/group/record separators \x1c-\x1e, NEL, and the
// Unicode line and paragraph separators. A trailing terminator does not
// add an empty line.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i, r := range text {
		if i < start {
			continue
		}
		if !isLineBreak(r) {
			continue
		}
		lines = append(lines, text[start:i])
		start = i + utf8.RuneLen(r)
		if r == '\r' && start < len(text) && text[start] == '\n' {
			start++
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isLineBreak(r rune) bool {
	switch r {
	case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
		return true
	}
	return false
}

// lineAt returns the 1-based line of a byte offset: newlines before it + 1.
func lineAt(text string, offset int) int {
	return strings.Count(text[:offset], "\n") + 1
}

// indentWidth counts leading whitespace characters.
func indentWidth(line string) int {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	return utf8.RuneCountInString(line) - utf8.RuneCountInString(trimmed)
}

func newIssue(sev model.Severity, filePath, ruleName, message string) model.Issue {
	return model.Issue{
		Severity: sev,
		Message:  message,
		FilePath: filePath,
		RuleName: ruleName,
		Source:   model.SourceLocal,
	}
}
