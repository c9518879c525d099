package report

import (
	"encoding/json"
	"io"
	"strings"

	"github.com/JNZader/prreviewer/internal/model"
)

// JSONReporter emits the review result as JSON. HTML characters in
// snippets are left unescaped.
type JSONReporter struct {
	Indent bool
}

func (r *JSONReporter) Format() string { return "json" }

func (r *JSONReporter) Generate(result *model.ReviewResult) (string, error) {
	var sb strings.Builder
	if err := r.Write(result, &sb); err != nil {
		return "", err
	}
	return strings.TrimSuffix(sb.String(), "\n"), nil
}

func (r *JSONReporter) Write(result *model.ReviewResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if r.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(result)
}
