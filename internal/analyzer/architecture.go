package analyzer

import (
	"strings"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

// ArchitectureAnalyzer reports layering, dependency and pattern violations.
type ArchitectureAnalyzer struct {
	rules []rules.ArchitectureRule
	log   *logger.Logger
}

// NewArchitecture creates an architecture analyzer over the catalog's rules.
func NewArchitecture(cat *rules.Catalog, log *logger.Logger) *ArchitectureAnalyzer {
	return &ArchitectureAnalyzer{
		rules: cat.Architecture,
		log:   log.WithPrefix("ARCH"),
	}
}

func (a *ArchitectureAnalyzer) Name() string { return CategoryArchitecture }

// Analyze emits one error per (rule, matching line). Rules whose scope does
// not match the path are skipped without reading the text.
func (a *ArchitectureAnalyzer) Analyze(filePath, text string) ([]model.Issue, error) {
	var issues []model.Issue
	var lines []string

	for _, rule := range a.rules {
		if !rule.AppliesTo(filePath) {
			continue
		}
		if lines == nil {
			lines = splitLines(text)
		}

		for i, line := range lines {
			if !rule.Pattern.MatchString(line) {
				continue
			}
			issue := newIssue(model.SeverityError, filePath, rule.Name, rule.Message)
			issue.LineNumber = model.Int(i + 1)
			issue.CodeSnippet = model.String(strings.TrimSpace(line))
			issue.SuggestedFix = model.OptionalString(rule.SuggestedFix)
			issues = append(issues, issue)
		}
	}

	if len(issues) > 0 {
		a.log.Debug("%s: %d architecture violations", filePath, len(issues))
	}
	return issues, nil
}
