// Package summary produces the natural language summary attached to a
// review.
package summary

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/JNZader/prreviewer/internal/model"
)

// Template builds a deterministic summary from issue counts.
type Template struct{}

// NewTemplate creates a template summarizer.
func NewTemplate() *Template {
	return &Template{}
}

// Summarize never fails.
func (t *Template) Summarize(_ context.Context, prc *model.PRContext, issues []model.Issue) (string, error) {
	return Render(prc, issues), nil
}

// Render formats the summary text.
func Render(prc *model.PRContext, issues []model.Issue) string {
	files := len(prc.DiffContent)
	if len(issues) == 0 {
		return fmt.Sprintf("Reviewed %s in %s: no issues found.", plural(files, "file"), prc.Ref())
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Reviewed %s in %s: found %s", plural(files, "file"), prc.Ref(), plural(len(issues), "issue"))

	bySeverity := model.CountBySeverity(issues)
	var parts []string
	for _, sev := range model.Severities {
		if n := bySeverity[sev]; n > 0 {
			parts = append(parts, plural(n, string(sev)))
		}
	}
	if len(parts) > 0 {
		fmt.Fprintf(&sb, " (%s)", strings.Join(parts, ", "))
	}
	sb.WriteString(".")

	var remote int
	for _, issue := range issues {
		if issue.Source == model.SourceMCP {
			remote++
		}
	}
	if remote > 0 {
		fmt.Fprintf(&sb, " %d from remote analysis, %d from local checks.", remote, len(issues)-remote)
	}

	if worst := mostAffected(issues, 3); len(worst) > 0 {
		fmt.Fprintf(&sb, " Most affected: %s.", strings.Join(worst, ", "))
	}
	return sb.String()
}

// mostAffected returns up to n "path (count)" entries, highest count first.
func mostAffected(issues []model.Issue, n int) []string {
	counts := model.CountByFile(issues)
	delete(counts, "")

	paths := make([]string, 0, len(counts))
	for p := range counts {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool {
		if counts[paths[i]] != counts[paths[j]] {
			return counts[paths[i]] > counts[paths[j]]
		}
		return paths[i] < paths[j]
	})

	if len(paths) > n {
		paths = paths[:n]
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = fmt.Sprintf("%s (%d)", p, counts[p])
	}
	return out
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
