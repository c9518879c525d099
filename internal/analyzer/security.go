package analyzer

import (
	"fmt"
	"strings"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Rule names emitted by the security analyzer.
const (
	RuleSQLInjection         = "sql_injection"
	RuleHardcodedSecret      = "hardcoded_secret"
	RuleInsecureConfigPrefix = "insecure_config_"
)

// SecurityAnalyzer looks for SQL injection, hardcoded secrets and insecure
// configuration. All scans run over the whole text.
type SecurityAnalyzer struct {
	checks rules.SecurityCatalog
	log    *logger.Logger
}

// NewSecurity creates a security analyzer over the catalog's checks.
func NewSecurity(cat *rules.Catalog, log *logger.Logger) *SecurityAnalyzer {
	return &SecurityAnalyzer{
		checks: cat.Security,
		log:    log.WithPrefix("SECURITY"),
	}
}

func (s *SecurityAnalyzer) Name() string { return CategorySecurity }

// Analyze runs the SQL, secret and configuration scans in that order.
func (s *SecurityAnalyzer) Analyze(filePath, text string) ([]model.Issue, error) {
	var issues []model.Issue
	issues = append(issues, s.checkSQLInjection(filePath, text)...)
	issues = append(issues, s.checkSecrets(filePath, text)...)
	issues = append(issues, s.checkInsecureConfigs(filePath, text)...)

	if len(issues) > 0 {
		s.log.Debug("%s: %d security findings", filePath, len(issues))
	}
	return issues, nil
}

func (s *SecurityAnalyzer) checkSQLInjection(filePath, text string) []model.Issue {
	var issues []model.Issue
	for _, re := range s.checks.SQLInjection {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			issue := newIssue(model.SeverityError, filePath, RuleSQLInjection,
				"Potential SQL injection vulnerability detected")
			issue.LineNumber = model.Int(lineAt(text, loc[0]))
			issue.CodeSnippet = model.String(text[loc[0]:loc[1]])
			issue.SuggestedFix = model.String("Use parameterized queries or an ORM")
			issues = append(issues, issue)
		}
	}
	return issues
}

func (s *SecurityAnalyzer) checkSecrets(filePath, text string) []model.Issue {
	var issues []model.Issue
	for _, check := range s.checks.Secrets {
		for _, m := range check.Pattern.FindAllStringSubmatchIndex(text, -1) {
			match := text[m[0]:m[1]]
			snippet := match
			if m[2] >= 0 {
				snippet = RedactSecret(match, text[m[2]:m[3]])
			}
			issue := newIssue(model.SeverityError, filePath, RuleHardcodedSecret,
				fmt.Sprintf("Hardcoded %s detected", check.Type))
			issue.LineNumber = model.Int(lineAt(text, m[0]))
			issue.CodeSnippet = model.String(snippet)
			issue.SuggestedFix = model.String("Use environment variables or a secure secret management system")
			issues = append(issues, issue)
		}
	}
	return issues
}

func (s *SecurityAnalyzer) checkInsecureConfigs(filePath, text string) []model.Issue {
	var issues []model.Issue
	for _, check := range s.checks.InsecureConfigs {
		for _, loc := range check.Pattern.FindAllStringIndex(text, -1) {
			issue := newIssue(model.SeverityError, filePath, RuleInsecureConfigPrefix+check.Name, check.Message)
			issue.LineNumber = model.Int(lineAt(text, loc[0]))
			issue.CodeSnippet = model.String(text[loc[0]:loc[1]])
			issue.SuggestedFix = model.OptionalString(check.SuggestedFix)
			issues = append(issues, issue)
		}
	}
	return issues
}

// RedactSecret replaces every occurrence of secret in match with asterisks
// of the same length, leaving the surrounding text visible.
func RedactSecret(match, secret string) string {
	if secret == "" {
		return match
	}
	return strings.ReplaceAll(match, secret, strings.Repeat("*", len(secret)))
}
