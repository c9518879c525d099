package report

import (
	"encoding/json"
	"io"

	"github.com/JNZader/prreviewer/internal/model"
)

const (
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
	sarifVersion = "2.1.0"
	toolName     = "prreviewer"
)

// SARIFReporter generates SARIF 2.1.0 reports.
type SARIFReporter struct {
	// ToolVersion is reported as the driver version; empty means "dev".
	ToolVersion string
}

func (r *SARIFReporter) Format() string { return "sarif" }

type sarifLog struct {
	Schema  string     `json:"$schema"`
	Version string     `json:"version"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string      `json:"name"`
	Version string      `json:"version"`
	Rules   []sarifRule `json:"rules,omitempty"`
}

type sarifRule struct {
	ID               string        `json:"id"`
	ShortDescription sarifMessage  `json:"shortDescription"`
	Help             *sarifMessage `json:"help,omitempty"`
}

type sarifResult struct {
	RuleID     string            `json:"ruleId"`
	RuleIndex  int               `json:"ruleIndex"`
	Level      string            `json:"level"`
	Message    sarifMessage      `json:"message"`
	Locations  []sarifLocation   `json:"locations,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int           `json:"startLine"`
	Snippet   *sarifMessage `json:"snippet,omitempty"`
}

func (r *SARIFReporter) Generate(result *model.ReviewResult) (string, error) {
	data, err := json.MarshalIndent(r.build(result), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *SARIFReporter) Write(result *model.ReviewResult, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r.build(result))
}

func (r *SARIFReporter) build(result *model.ReviewResult) *sarifLog {
	version := r.ToolVersion
	if version == "" {
		version = "dev"
	}
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: toolName, Version: version}},
		Results: []sarifResult{},
	}

	ruleIndex := make(map[string]int)
	for _, issue := range result.Issues {
		idx, ok := ruleIndex[issue.RuleName]
		if !ok {
			idx = len(run.Tool.Driver.Rules)
			ruleIndex[issue.RuleName] = idx
			rule := sarifRule{ID: issue.RuleName, ShortDescription: sarifMessage{Text: issue.Message}}
			if fix := issue.Fix(); fix != "" {
				rule.Help = &sarifMessage{Text: fix}
			}
			run.Tool.Driver.Rules = append(run.Tool.Driver.Rules, rule)
		}

		res := sarifResult{
			RuleID:    issue.RuleName,
			RuleIndex: idx,
			Level:     sarifLevel(issue.Severity),
			Message:   sarifMessage{Text: issue.Message},
		}
		if issue.Source != "" {
			res.Properties = map[string]string{"source": string(issue.Source)}
		}
		if issue.FilePath != "" {
			loc := sarifLocation{PhysicalLocation: sarifPhysical{ArtifactLocation: sarifArtifact{URI: issue.FilePath}}}
			if line := issue.Line(); line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: line}
				if snippet := issue.Snippet(); snippet != "" {
					loc.PhysicalLocation.Region.Snippet = &sarifMessage{Text: snippet}
				}
			}
			res.Locations = append(res.Locations, loc)
		}
		run.Results = append(run.Results, res)
	}

	return &sarifLog{Schema: sarifSchema, Version: sarifVersion, Runs: []sarifRun{run}}
}

func sarifLevel(sev model.Severity) string {
	switch sev {
	case model.SeverityError:
		return "error"
	case model.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}
