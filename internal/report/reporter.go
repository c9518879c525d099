// Package report renders review results as markdown, JSON, SARIF or
// colored terminal text.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/JNZader/prreviewer/internal/model"
)

// Reporter defines the interface for generating review reports.
type Reporter interface {
	// Generate creates a report from a review result.
	Generate(result *model.ReviewResult) (string, error)

	// Write writes the report to a writer.
	Write(result *model.ReviewResult, w io.Writer) error

	// Format returns the format name.
	Format() string
}

// NewReporter creates a reporter for the given format.
func NewReporter(format string) (Reporter, error) {
	switch strings.ToLower(format) {
	case "markdown", "md":
		return &MarkdownReporter{}, nil
	case "json":
		return &JSONReporter{Indent: true}, nil
	case "sarif":
		return &SARIFReporter{}, nil
	case "text", "":
		return &TextReporter{}, nil
	default:
		return nil, fmt.Errorf("unknown format: %s", format)
	}
}

// AvailableFormats returns the list of supported formats.
func AvailableFormats() []string {
	return []string{"text", "markdown", "json", "sarif"}
}

// generate renders through Write into a string.
func generate(r Reporter, result *model.ReviewResult) (string, error) {
	var sb strings.Builder
	if err := r.Write(result, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}
