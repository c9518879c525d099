package mcp

import (
	"context"
	"fmt"
	"sort"

	"github.com/JNZader/prreviewer/internal/local"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/report"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Reviewer runs a complete review.
type Reviewer interface {
	Review(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error)
}

// FileContexter looks up what the remote analysis service knows about a
// file. *Client implements it.
type FileContexter interface {
	FileContext(ctx context.Context, repo, path string) (map[string]interface{}, error)
}

// Tools are the dependencies of the review tools. Context is optional.
type Tools struct {
	Reviewer Reviewer
	Source   *local.Source
	Catalog  *rules.Catalog
	Context  FileContexter
}

// RegisterReviewTools registers review_diff, review_files and list_rules,
// plus file_context when t.Context is set.
func RegisterReviewTools(s *Server, t Tools) {
	formatProp := map[string]interface{}{
		"type":        "string",
		"description": "Output format: json or markdown",
		"enum":        []string{"json", "markdown"},
		"default":     "json",
	}

	s.RegisterTool(&Tool{
		Name:        "review_diff",
		Description: "Review a unified diff with the architecture, style and security rules.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"diff": map[string]interface{}{
					"type":        "string",
					"description": "Unified diff text (git diff output)",
				},
				"name": map[string]interface{}{
					"type":        "string",
					"description": "Name used as the repository in the result",
				},
				"format": formatProp,
			},
			"required": []string{"diff"},
		},
	}, t.handleReviewDiff)

	s.RegisterTool(&Tool{
		Name:        "review_files",
		Description: "Review whole files given as a map of path to content.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"files": map[string]interface{}{
					"type":                 "object",
					"additionalProperties": map[string]interface{}{"type": "string"},
					"description":          "File path to file content",
				},
				"format": formatProp,
			},
			"required": []string{"files"},
		},
	}, t.handleReviewFiles)

	s.RegisterTool(&Tool{
		Name:        "list_rules",
		Description: "List the architecture rules and coding standards in effect.",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}, t.handleListRules)

	if t.Context == nil {
		return
	}
	s.RegisterTool(&Tool{
		Name:        "file_context",
		Description: "Ask the remote analysis service for context about a repository file.",
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"repository": map[string]interface{}{
					"type":        "string",
					"description": "Repository (owner/name)",
				},
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path within the repository",
				},
			},
			"required": []string{"repository", "path"},
		},
	}, t.handleFileContext)
}

func (t Tools) handleFileContext(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	repo, _ := params["repository"].(string)
	path, _ := params["path"].(string)
	if repo == "" || path == "" {
		return nil, fmt.Errorf("repository and path are required")
	}
	return t.Context.FileContext(ctx, repo, path)
}

func (t Tools) handleReviewDiff(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	diff, _ := params["diff"].(string)
	if diff == "" {
		return nil, fmt.Errorf("diff is required")
	}
	name, _ := params["name"].(string)
	if name == "" {
		name = "diff"
	}

	prc, err := t.Source.FromDiff(name, diff)
	if err != nil {
		return nil, err
	}
	return t.review(ctx, prc, params)
}

func (t Tools) handleReviewFiles(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	files, ok := params["files"].(map[string]interface{})
	if !ok || len(files) == 0 {
		return nil, fmt.Errorf("files must be a non-empty object")
	}

	prc := &model.PRContext{
		Repository:  "local/files",
		HeadBranch:  "HEAD",
		Title:       "review_files",
		DiffContent: make(map[string]string, len(files)),
	}
	for _, path := range sortedPaths(files) {
		content, ok := files[path].(string)
		if !ok {
			return nil, fmt.Errorf("content of %s must be a string", path)
		}
		if t.Source.Ignored(path) {
			continue
		}
		prc.FilesChanged = append(prc.FilesChanged, path)
		prc.DiffContent[path] = content
	}
	return t.review(ctx, prc, params)
}

func (t Tools) review(ctx context.Context, prc *model.PRContext, params map[string]interface{}) (interface{}, error) {
	result, err := t.Reviewer.Review(ctx, prc)
	if err != nil {
		return nil, err
	}
	if format, _ := params["format"].(string); format == "markdown" {
		return (&report.MarkdownReporter{Prioritize: true}).Generate(result)
	}
	return result, nil
}

type ruleInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Scope   string `json:"scope,omitempty"`
}

func (t Tools) handleListRules(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	out := struct {
		Architecture []ruleInfo           `json:"architecture"`
		Standards    rules.CodingStandards `json:"coding_standards"`
	}{Standards: t.Catalog.Standards}

	for _, r := range t.Catalog.Architecture {
		info := ruleInfo{Name: r.Name, Kind: string(r.Kind), Message: r.Message}
		if r.Scope != nil {
			info.Scope = r.Scope.String()
		}
		out.Architecture = append(out.Architecture, info)
	}
	return out, nil
}

func sortedPaths(files map[string]interface{}) []string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
