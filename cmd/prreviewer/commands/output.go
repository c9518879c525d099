package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// WriteOutput writes the report to outputPath, or to w when no path is given.
func WriteOutput(w io.Writer, content, outputPath string) error {
	if outputPath == "" {
		_, err := io.WriteString(w, content)
		return err
	}

	dir := filepath.Dir(outputPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Report written to: %s\n", outputPath)
	return nil
}

// DetectFormatFromPath infers the output format from file extension.
func DetectFormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".sarif":
		return "sarif"
	case ".md", ".markdown":
		return "markdown"
	case ".txt":
		return "text"
	default:
		return ""
	}
}
