// Package mcp talks to the remote analysis service and serves the local
// review engine as Model Context Protocol tools.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
)

// DefaultRule names issues the service returns without a rule.
const DefaultRule = "mcp_analysis"

const maxErrorBody = 512

// Options configure a Client.
type Options struct {
	// Endpoint is the service base URL; empty disables the client.
	Endpoint string
	Token    string
	Timeout  time.Duration

	// BatchSize splits large pull requests into several requests of at
	// most BatchSize files; <= 0 sends everything at once.
	BatchSize int
	Retry     RetryConfig

	// MaxRequests per Window; zero disables rate limiting.
	MaxRequests int
	Window      time.Duration

	HTTPClient *http.Client
}

// OptionsFromConfig maps the application config onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Endpoint:  cfg.MCP.Endpoint,
		Token:     cfg.GitHub.Token,
		Timeout:   cfg.MCP.Timeout,
		BatchSize: cfg.MCP.BatchSize,
		Retry: RetryConfig{
			MaxAttempts:  cfg.MCP.Retry.MaxAttempts,
			InitialDelay: cfg.MCP.Retry.InitialDelay,
			MaxDelay:     cfg.MCP.Retry.MaxDelay,
			Multiplier:   2.0,
		},
	}
	if cfg.Performance.RateLimiting.Enabled {
		opts.MaxRequests = cfg.Performance.RateLimiting.MaxRequests
		opts.Window = cfg.Performance.RateLimiting.Window
	}
	return opts
}

// Client calls the remote analysis service.
type Client struct {
	endpoint  string
	token     string
	batchSize int
	retry     RetryConfig
	http      *http.Client
	limiter   *rate.Limiter
	log       *logger.Logger
}

// NewClient creates a client. A client with no endpoint is disabled and
// reports no issues.
func NewClient(opts Options, log *logger.Logger) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	c := &Client{
		endpoint:  strings.TrimRight(opts.Endpoint, "/"),
		token:     opts.Token,
		batchSize: opts.BatchSize,
		retry:     opts.Retry,
		http:      httpClient,
		log:       log.WithPrefix("MCP"),
	}
	if opts.MaxRequests > 0 && opts.Window > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.Window/time.Duration(opts.MaxRequests)), opts.MaxRequests)
	}
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

type analyzeRequest struct {
	Repository  string            `json:"repository"`
	PullRequest int               `json:"pull_request"`
	Files       []string          `json:"files"`
	DiffContent map[string]string `json:"diff_content"`
}

type analyzeResponse struct {
	Issues []remoteIssue `json:"issues"`
}

type remoteIssue struct {
	Severity   string  `json:"severity"`
	Message    string  `json:"message"`
	File       string  `json:"file"`
	Line       *int    `json:"line"`
	Code       *string `json:"code"`
	Rule       string  `json:"rule"`
	Suggestion *string `json:"suggestion"`
}

// AnalyzePullRequest sends the pull request to {endpoint}/analyze/pr and
// returns the reported issues with Source set to mcp.
func (c *Client) AnalyzePullRequest(ctx context.Context, prc *model.PRContext) ([]model.Issue, error) {
	if !c.Enabled() {
		return nil, nil
	}

	reqs := c.batches(prc)
	found := make([][]remoteIssue, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := withRetry(gctx, c.retry, c.log, func() (*analyzeResponse, error) {
				var out analyzeResponse
				if err := c.do(gctx, http.MethodPost, "/analyze/pr", nil, req, &out); err != nil {
					return nil, err
				}
				return &out, nil
			})
			if err != nil {
				return err
			}
			found[i] = resp.Issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var issues []model.Issue
	for _, batch := range found {
		for _, ri := range batch {
			issues = append(issues, c.convert(ri))
		}
	}

	c.log.Debug("%s: %d remote issues", prc.Ref(), len(issues))
	return issues, nil
}

// batches splits the changed files into request sized groups. A pull
// request without files still produces one request.
func (c *Client) batches(prc *model.PRContext) []analyzeRequest {
	files := prc.FilesChanged
	size := c.batchSize
	if size <= 0 || size > len(files) {
		size = len(files)
	}
	if size == 0 {
		return []analyzeRequest{newRequest(prc, []string{})}
	}

	var out []analyzeRequest
	for start := 0; start < len(files); start += size {
		out = append(out, newRequest(prc, files[start:min(start+size, len(files))]))
	}
	return out
}

func newRequest(prc *model.PRContext, files []string) analyzeRequest {
	req := analyzeRequest{
		Repository:  prc.Repository,
		PullRequest: prc.PRNumber,
		Files:       files,
		DiffContent: make(map[string]string, len(files)),
	}
	for _, f := range files {
		if text, ok := prc.DiffContent[f]; ok {
			req.DiffContent[f] = text
		}
	}
	return req
}

func (c *Client) convert(ri remoteIssue) model.Issue {
	sev, err := model.ParseSeverity(ri.Severity)
	if err != nil {
		if ri.Severity != "" {
			c.log.Debug("unknown severity %q from remote, using info", ri.Severity)
		}
		sev = model.SeverityInfo
	}
	rule := ri.Rule
	if rule == "" {
		rule = DefaultRule
	}
	return model.Issue{
		Severity:     sev,
		Message:      ri.Message,
		FilePath:     ri.File,
		LineNumber:   ri.Line,
		CodeSnippet:  ri.Code,
		RuleName:     rule,
		SuggestedFix: ri.Suggestion,
		Source:       model.SourceMCP,
	}
}

// FileContext asks the service for context about one file of a
// repository. The response shape is defined by the service.
func (c *Client) FileContext(ctx context.Context, repo, path string) (map[string]interface{}, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("remote analysis is disabled")
	}
	query := url.Values{"path": {path}, "repository": {repo}}
	return withRetry(ctx, c.retry, c.log, func() (map[string]interface{}, error) {
		out := map[string]interface{}{}
		if err := c.do(ctx, http.MethodGet, "/context/file", query, nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding MCP response: %w", err)
	}
	return nil
}
