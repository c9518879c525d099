package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/JNZader/prreviewer/internal/model"
)

func sampleResult() *model.ReviewResult {
	return &model.ReviewResult{
		ID:         "r1",
		Repository: "acme/api",
		PRNumber:   7,
		Summary:    "Reviewed 2 files.",
		Issues: []model.Issue{
			{
				Severity: model.SeverityInfo, Message: "Consider tests", FilePath: "",
				RuleName: "mcp_analysis", Source: model.SourceMCP,
			},
			{
				Severity: model.SeverityWarning, Message: "Method too long", FilePath: "a.py",
				LineNumber: model.Int(3), RuleName: "max_method_length", Source: model.SourceLocal,
				SuggestedFix: model.String("Split it"),
			},
			{
				Severity: model.SeverityError, Message: "Hardcoded api_key detected", FilePath: "b.py",
				LineNumber: model.Int(1), CodeSnippet: model.String(`api_key = "****"`),
				RuleName: "hardcoded_secret", Source: model.SourceLocal,
			},
		},
		TotalFilesReviewed: 2,
		Stats: map[string]int{
			"severity_error": 1, "severity_warning": 1, "severity_info": 1,
		},
	}
}

func TestNewReporter(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"markdown", "markdown"},
		{"md", "markdown"},
		{"json", "json"},
		{"SARIF", "sarif"},
		{"text", "text"},
		{"", "text"},
	}
	for _, tt := range tests {
		r, err := NewReporter(tt.format)
		if err != nil {
			t.Fatalf("NewReporter(%q) error = %v", tt.format, err)
		}
		if r.Format() != tt.want {
			t.Errorf("NewReporter(%q).Format() = %q, want %q", tt.format, r.Format(), tt.want)
		}
	}

	if _, err := NewReporter("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestFormatIssueComment(t *testing.T) {
	issue := model.Issue{
		Severity:     model.SeverityError,
		Message:      "Potential SQL injection vulnerability",
		CodeSnippet:  model.String(`execute("x %s")`),
		SuggestedFix: model.String("Use parameterized queries"),
	}
	want := "🔴 **ERROR**: Potential SQL injection vulnerability\n" +
		"\nRelevant code:\n" +
		"```\nexecute(\"x %s\")\n```\n" +
		"\n💡 **Suggestion**:\n" +
		"Use parameterized queries"
	if got := FormatIssueComment(issue); got != want {
		t.Errorf("FormatIssueComment() =\n%s\nwant\n%s", got, want)
	}

	bare := FormatIssueComment(model.Issue{Severity: model.SeverityWarning, Message: "m"})
	if bare != "🟡 **WARNING**: m" {
		t.Errorf("bare comment = %q", bare)
	}
}

func TestSeverityEmoji(t *testing.T) {
	tests := map[model.Severity]string{
		model.SeverityError:      "🔴",
		model.SeverityWarning:    "🟡",
		model.SeverityInfo:       "ℹ️",
		model.SeveritySuggestion: "💡",
		model.Severity("other"):  "ℹ️",
	}
	for sev, want := range tests {
		if got := SeverityEmoji(sev); got != want {
			t.Errorf("SeverityEmoji(%q) = %q, want %q", sev, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"fits", "short text", 20, "short text"},
		{"exact", "abcde", 5, "abcde"},
		{"word boundary", "the quick brown fox", 12, "the quick..."},
		{"no space", "abcdefghij", 4, "abcd..."},
		{"runes", "ääää ääää", 6, "ääää..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.text, tt.max); got != tt.want {
				t.Errorf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkdownReporter(t *testing.T) {
	out, err := (&MarkdownReporter{}).Generate(sampleResult())
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	for _, want := range []string{
		"# Code Review Report",
		"Reviewed 2 files.",
		"- **Files Reviewed:** 2",
		"- **Total Issues:** 3",
		"### General",
		"### a.py",
		"**Line 3** `max_method_length`",
		"🔴 **ERROR**: Hardcoded api_key detected",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q\n%s", want, out)
		}
	}

	// detection order unless prioritized
	if strings.Index(out, "### a.py") > strings.Index(out, "### b.py") {
		t.Error("expected a.py before b.py")
	}
	prio, _ := (&MarkdownReporter{Prioritize: true}).Generate(sampleResult())
	if strings.Index(prio, "### b.py") > strings.Index(prio, "### a.py") {
		t.Error("expected error file first when prioritized")
	}
}

func TestMarkdownNoIssues(t *testing.T) {
	out, err := (&MarkdownReporter{}).Generate(&model.ReviewResult{Repository: "acme/api"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No issues found.") {
		t.Errorf("expected no issues message, got\n%s", out)
	}
	if strings.Contains(out, "## Issues") {
		t.Error("unexpected issues section")
	}
}

func TestJSONReporter(t *testing.T) {
	out, err := (&JSONReporter{}).Generate(sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.ReviewResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(decoded.Issues) != 3 || decoded.Issues[1].Line() != 3 {
		t.Errorf("decoded issues = %+v", decoded.Issues)
	}
	if strings.Contains(out, "\n  ") {
		t.Error("compact output should not be indented")
	}
}

func TestSARIFReporter(t *testing.T) {
	out, err := (&SARIFReporter{ToolVersion: "1.2.3"}).Generate(sampleResult())
	if err != nil {
		t.Fatal(err)
	}

	var log sarifLog
	if err := json.Unmarshal([]byte(out), &log); err != nil {
		t.Fatalf("invalid sarif: %v", err)
	}
	if log.Version != "2.1.0" || len(log.Runs) != 1 {
		t.Fatalf("unexpected envelope: %+v", log)
	}
	run := log.Runs[0]
	if run.Tool.Driver.Name != "prreviewer" || run.Tool.Driver.Version != "1.2.3" {
		t.Errorf("driver = %+v", run.Tool.Driver)
	}
	if len(run.Tool.Driver.Rules) != 3 || len(run.Results) != 3 {
		t.Fatalf("rules=%d results=%d", len(run.Tool.Driver.Rules), len(run.Results))
	}

	general := run.Results[0]
	if general.Level != "note" || len(general.Locations) != 0 {
		t.Errorf("general result = %+v", general)
	}
	secret := run.Results[2]
	if secret.Level != "error" || secret.RuleIndex != 2 {
		t.Errorf("secret result = %+v", secret)
	}
	region := secret.Locations[0].PhysicalLocation.Region
	if region == nil || region.StartLine != 1 || region.Snippet == nil {
		t.Errorf("region = %+v", region)
	}
	if run.Tool.Driver.Rules[1].Help == nil || run.Tool.Driver.Rules[1].Help.Text != "Split it" {
		t.Errorf("rule help = %+v", run.Tool.Driver.Rules[1])
	}
}

func TestSARIFEmptyResults(t *testing.T) {
	out, err := (&SARIFReporter{}).Generate(&model.ReviewResult{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"results": []`) {
		t.Errorf("expected empty results array\n%s", out)
	}
	if !strings.Contains(out, `"version": "dev"`) {
		t.Errorf("expected dev version\n%s", out)
	}
}

func TestTextReporter(t *testing.T) {
	color.NoColor = true

	out, err := (&TextReporter{}).Generate(sampleResult())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Review of acme/api",
		"(general)",
		"a.py",
		"Method too long [max_method_length]",
		"fix: Split it",
		"3 issues in 2 files",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q\n%s", want, out)
		}
	}
}
