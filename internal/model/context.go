package model

import (
	"fmt"
	"time"
)

// PRContext is everything the analyzers need to know about a pull request.
// DiffContent maps a changed file path to its text; binary or unreadable
// files are listed in FilesChanged but absent from DiffContent.
type PRContext struct {
	PRNumber     int               `json:"pr_number"`
	Repository   string            `json:"repository"`
	BaseBranch   string            `json:"base_branch"`
	HeadBranch   string            `json:"head_branch"`
	HeadSHA      string            `json:"head_sha,omitempty"`
	Author       string            `json:"author"`
	Title        string            `json:"title"`
	Description  *string           `json:"description,omitempty"`
	FilesChanged []string          `json:"files_changed"`
	DiffContent  map[string]string `json:"diff_content"`
}

// Validate checks that every DiffContent key is one of FilesChanged.
func (c *PRContext) Validate() error {
	changed := make(map[string]struct{}, len(c.FilesChanged))
	for _, f := range c.FilesChanged {
		changed[f] = struct{}{}
	}
	for path := range c.DiffContent {
		if _, ok := changed[path]; !ok {
			return fmt.Errorf("diff content for %q is not in files_changed", path)
		}
	}
	return nil
}

// ScanOrder returns the DiffContent keys in FilesChanged order.
// Paths listed twice in FilesChanged are returned once.
func (c *PRContext) ScanOrder() []string {
	order := make([]string, 0, len(c.DiffContent))
	seen := make(map[string]bool, len(c.DiffContent))
	for _, path := range c.FilesChanged {
		if seen[path] {
			continue
		}
		if _, ok := c.DiffContent[path]; ok {
			order = append(order, path)
			seen[path] = true
		}
	}
	return order
}

// Ref returns "owner/repo#N".
func (c *PRContext) Ref() string {
	return fmt.Sprintf("%s#%d", c.Repository, c.PRNumber)
}

// ReviewResult is the outcome of a complete review.
type ReviewResult struct {
	ID                 string         `json:"id"`
	Repository         string         `json:"repository"`
	PRNumber           int            `json:"pr_number"`
	HeadSHA            string         `json:"head_sha,omitempty"`
	Issues             []Issue        `json:"issues"`
	Summary            string         `json:"summary"`
	ReviewTime         float64        `json:"review_time"`
	TotalFilesReviewed int            `json:"total_files_reviewed"`
	Stats              map[string]int `json:"stats"`
}

// Stat keys reported in ReviewResult.Stats.
const (
	StatMCPIssues       = "mcp_issues"
	StatLocalIssues     = "local_issues"
	StatFilesAnalyzed   = "files_analyzed"
	StatFilesWithIssues = "files_with_issues"
)

// SeverityStatKey returns the Stats key holding the count for sev.
func SeverityStatKey(sev Severity) string {
	return "severity_" + string(sev)
}

// AgentStats are process-wide review statistics.
type AgentStats struct {
	PRsReviewed   int     `json:"prs_reviewed"`
	IssuesFound   int     `json:"issues_found"`
	ReviewTimeAvg float64 `json:"review_time_avg"`
	SuccessRate   float64 `json:"success_rate"`
}

// PRRef identifies a pull request awaiting review.
type PRRef struct {
	Repository string    `json:"repository"`
	Number     int       `json:"number"`
	HeadSHA    string    `json:"head_sha,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

func (r PRRef) String() string {
	return fmt.Sprintf("%s#%d", r.Repository, r.Number)
}
