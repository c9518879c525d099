package review

import "github.com/JNZader/prreviewer/internal/model"

// Counts breaks an issue list down by source, severity and file.
type Counts struct {
	Total           int                    `json:"total"`
	BySource        map[model.Source]int   `json:"by_source"`
	BySeverity      map[model.Severity]int `json:"by_severity"`
	FilesWithIssues int                    `json:"files_with_issues"`
}

// Summarize counts issues. Every known severity is present in BySeverity,
// even when zero. Issues without a file path do not count towards
// FilesWithIssues.
func Summarize(issues []model.Issue) Counts {
	c := Counts{
		Total:      len(issues),
		BySource:   make(map[model.Source]int),
		BySeverity: make(map[model.Severity]int, len(model.Severities)),
	}
	for _, sev := range model.Severities {
		c.BySeverity[sev] = 0
	}
	for _, issue := range issues {
		c.BySource[issue.Source]++
		c.BySeverity[issue.Severity]++
	}
	for path := range model.CountByFile(issues) {
		if path != "" {
			c.FilesWithIssues++
		}
	}
	return c
}

// BuildStats produces the ReviewResult.Stats map. remoteCount is the number
// of leading issues that came from the remote service.
func BuildStats(all []model.Issue, remoteCount, filesAnalyzed int) map[string]int {
	counts := Summarize(all)

	stats := map[string]int{
		model.StatMCPIssues:       remoteCount,
		model.StatLocalIssues:     len(all) - remoteCount,
		model.StatFilesAnalyzed:   filesAnalyzed,
		model.StatFilesWithIssues: counts.FilesWithIssues,
	}
	for sev, n := range counts.BySeverity {
		stats[model.SeverityStatKey(sev)] = n
	}
	return stats
}
