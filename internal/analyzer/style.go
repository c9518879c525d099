package analyzer

import (
	"fmt"
	"regexp"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Rule names emitted by the style analyzer.
const (
	RuleMaxMethodLength  = "max_method_length"
	RuleNamingConvention = "naming_convention"
	RuleMaxNestingDepth  = "max_nesting_depth"
)

// methodDecl is a language-agnostic heuristic for a method declaration line.
var methodDecl = regexp.MustCompile(`(def|function|public|private|protected)\s+\w+\s*\([^)]*\)\s*\{?`)

type namingConvention struct {
	kind    string
	pattern *regexp.Regexp
}

// namingConventions are scanned over the whole text, in this order.
var namingConventions = []namingConvention{
	{"class", regexp.MustCompile(`class\s+([a-z][a-zA-Z0-9]*)`)},
	{"method", regexp.MustCompile(`(def|function)\s+([A-Z][a-zA-Z0-9]*)`)},
	{"variable", regexp.MustCompile(`([A-Z][a-zA-Z0-9]*)\s*=`)},
}

// StyleAnalyzer checks method length, naming conventions and nesting depth.
type StyleAnalyzer struct {
	maxMethodLength int
	maxNestingDepth int
	log             *logger.Logger
}

// NewStyle creates a style analyzer using the catalog's thresholds.
func NewStyle(cat *rules.Catalog, log *logger.Logger) *StyleAnalyzer {
	return &StyleAnalyzer{
		maxMethodLength: cat.Standards.MaxMethodLength,
		maxNestingDepth: cat.Standards.MaxNestingDepth,
		log:             log.WithPrefix("STYLE"),
	}
}

func (s *StyleAnalyzer) Name() string { return CategoryStyle }

// Analyze runs the three style checks. The checks are independent, so a
// single line can produce several issues.
func (s *StyleAnalyzer) Analyze(filePath, text string) ([]model.Issue, error) {
	lines := splitLines(text)

	var issues []model.Issue
	issues = append(issues, s.checkMethodLength(filePath, lines)...)
	issues = append(issues, s.checkNaming(filePath, text)...)
	issues = append(issues, s.checkNesting(filePath, lines)...)

	if len(issues) > 0 {
		s.log.Debug("%s: %d style issues", filePath, len(issues))
	}
	return issues, nil
}

// checkMethodLength measures each method from its declaration up to the next
// declaration. A method still open at the end of the file is never reported.
func (s *StyleAnalyzer) checkMethodLength(filePath string, lines []string) []model.Issue {
	var issues []model.Issue
	inMethod := false
	count := 0

	for i, line := range lines {
		lineNo := i + 1
		if methodDecl.MatchString(line) {
			if inMethod && count > s.maxMethodLength {
				issue := newIssue(model.SeverityWarning, filePath, RuleMaxMethodLength,
					fmt.Sprintf("Method exceeds maximum length of %d lines", s.maxMethodLength))
				issue.LineNumber = model.Int(lineNo - count)
				issue.SuggestedFix = model.String("Consider breaking down the method into smaller functions")
				issues = append(issues, issue)
			}
			inMethod = true
			count = 1
		} else if inMethod {
			count++
		}
	}
	return issues
}

func (s *StyleAnalyzer) checkNaming(filePath, text string) []model.Issue {
	var issues []model.Issue
	for _, conv := range namingConventions {
		for _, loc := range conv.pattern.FindAllStringIndex(text, -1) {
			issue := newIssue(model.SeverityWarning, filePath, RuleNamingConvention,
				fmt.Sprintf("Invalid %s name convention", conv.kind))
			issue.LineNumber = model.Int(lineAt(text, loc[0]))
			issue.SuggestedFix = model.String(fmt.Sprintf("Follow %s naming convention", conv.kind))
			issues = append(issues, issue)
		}
	}
	return issues
}

// checkNesting approximates nesting depth as indentation width / 4.
func (s *StyleAnalyzer) checkNesting(filePath string, lines []string) []model.Issue {
	var issues []model.Issue
	for i, line := range lines {
		depth := indentWidth(line) / 4
		if depth <= s.maxNestingDepth {
			continue
		}
		issue := newIssue(model.SeverityWarning, filePath, RuleMaxNestingDepth,
			fmt.Sprintf("Code nesting depth exceeds maximum of %d", s.maxNestingDepth))
		issue.LineNumber = model.Int(i + 1)
		issue.SuggestedFix = model.String("Consider restructuring to reduce nesting")
		issues = append(issues, issue)
	}
	return issues
}
