package history

import "time"

// Review is one stored review run.
type Review struct {
	ID             string    `json:"id"`
	Repository     string    `json:"repository"`
	PRNumber       int       `json:"pr_number"`
	HeadSHA        string    `json:"head_sha,omitempty"`
	Summary        string    `json:"summary"`
	FilesReviewed  int       `json:"files_reviewed"`
	IssueCount     int       `json:"issue_count"`
	ReviewTime     float64   `json:"review_time"`
	PostedReviewID int64     `json:"posted_review_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IssueRecord is a stored issue together with the pull request it was
// reported on.
type IssueRecord struct {
	ID         int64     `json:"id"`
	ReviewID   string    `json:"review_id"`
	Repository string    `json:"repository"`
	PRNumber   int       `json:"pr_number"`
	FilePath   string    `json:"file_path"`
	Line       int       `json:"line,omitempty"`
	Severity   string    `json:"severity"`
	RuleName   string    `json:"rule_name"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListQuery filters Recent.
type ListQuery struct {
	Repository string
	PRNumber   int
	Limit      int
}

// SearchQuery filters Search. Text is an FTS5 match expression over issue
// messages and suggestions.
type SearchQuery struct {
	Text       string
	Repository string
	Severity   string
	Rule       string
	Limit      int
}

// Stats are aggregate counts over the whole history.
type Stats struct {
	TotalReviews int64            `json:"total_reviews"`
	TotalIssues  int64            `json:"total_issues"`
	BySeverity   map[string]int64 `json:"by_severity"`
	ByRule       map[string]int64 `json:"by_rule"`
	TopFiles     map[string]int64 `json:"top_files"`
}

const defaultLimit = 20
