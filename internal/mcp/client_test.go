package mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
)

func testContext() *model.PRContext {
	return &model.PRContext{
		PRNumber:     12,
		Repository:   "acme/api",
		FilesChanged: []string{"a.py", "b.py", "logo.png"},
		DiffContent:  map[string]string{"a.py": "x = 1\n", "b.py": "y = 2\n"},
	}
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestAnalyzePullRequest(t *testing.T) {
	var got analyzeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze/pr", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_, _ = io.WriteString(w, `{"issues": [
			{"severity": "warning", "message": "m1", "file": "a.py", "line": 3, "code": "x", "rule": "r1", "suggestion": "fix"},
			{"severity": "critical", "message": "m2"},
			{"message": "m3", "file": "b.py"}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL + "/", Token: "tok", Retry: fastRetry()}, logger.Nop())
	issues, err := c.AnalyzePullRequest(context.Background(), testContext())
	require.NoError(t, err)

	assert.Equal(t, "acme/api", got.Repository)
	assert.Equal(t, 12, got.PullRequest)
	assert.Equal(t, []string{"a.py", "b.py", "logo.png"}, got.Files)
	assert.Len(t, got.DiffContent, 2)

	require.Len(t, issues, 3)
	assert.Equal(t, model.SeverityWarning, issues[0].Severity)
	assert.Equal(t, 3, issues[0].Line())
	assert.Equal(t, "x", issues[0].Snippet())
	assert.Equal(t, "fix", issues[0].Fix())
	assert.Equal(t, "r1", issues[0].RuleName)

	assert.Equal(t, model.SeverityInfo, issues[1].Severity)
	assert.Equal(t, DefaultRule, issues[1].RuleName)
	assert.Nil(t, issues[1].LineNumber)

	for _, issue := range issues {
		assert.Equal(t, model.SourceMCP, issue.Source)
	}
}

func TestAnalyzePullRequestBatches(t *testing.T) {
	var mu sync.Mutex
	var batches [][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		batches = append(batches, req.Files)
		mu.Unlock()
		for path := range req.DiffContent {
			assert.Contains(t, req.Files, path)
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"issues": []map[string]string{{"severity": "info", "message": "batch", "file": req.Files[0]}},
		})
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, BatchSize: 2, Retry: fastRetry()}, logger.Nop())
	issues, err := c.AnalyzePullRequest(context.Background(), testContext())
	require.NoError(t, err)

	assert.ElementsMatch(t, [][]string{{"a.py", "b.py"}, {"logo.png"}}, batches)
	require.Len(t, issues, 2)
	assert.Equal(t, "a.py", issues[0].FilePath)
	assert.Equal(t, "logo.png", issues[1].FilePath)
}

func TestAnalyzePullRequestEmptyContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []interface{}{}, req["files"])
		_, _ = io.WriteString(w, `{}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Retry: fastRetry()}, logger.Nop())
	issues, err := c.AnalyzePullRequest(context.Background(), &model.PRContext{Repository: "acme/api"})
	require.NoError(t, err)
	assert.Empty(t, issues)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnalyzePullRequestRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"issues": []}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Retry: fastRetry()}, logger.Nop())
	_, err := c.AnalyzePullRequest(context.Background(), testContext())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAnalyzePullRequestFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCalls int32
	}{
		{"client error is not retried", http.StatusBadRequest, 1},
		{"server error exhausts attempts", http.StatusBadGateway, 3},
		{"request timeout is retried", http.StatusRequestTimeout, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, "nope")
			}))
			defer srv.Close()

			c := NewClient(Options{Endpoint: srv.URL, Retry: fastRetry()}, logger.Nop())
			_, err := c.AnalyzePullRequest(context.Background(), testContext())
			require.Error(t, err)

			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, "nope", statusErr.Body)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestAnalyzePullRequestBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "{not json")
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Retry: fastRetry()}, logger.Nop())
	_, err := c.AnalyzePullRequest(context.Background(), testContext())
	assert.ErrorContains(t, err, "decoding MCP response")
}

func TestDisabledClient(t *testing.T) {
	c := NewClient(Options{}, logger.Nop())
	assert.False(t, c.Enabled())

	issues, err := c.AnalyzePullRequest(context.Background(), testContext())
	assert.NoError(t, err)
	assert.Nil(t, issues)

	_, err = c.FileContext(context.Background(), "acme/api", "a.py")
	assert.Error(t, err)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}

func TestFileContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/context/file", r.URL.Path)
		assert.Equal(t, "a.py", r.URL.Query().Get("path"))
		assert.Equal(t, "acme/api", r.URL.Query().Get("repository"))
		_, _ = io.WriteString(w, `{"language": "python"}`)
	}))
	defer srv.Close()

	c := NewClient(Options{Endpoint: srv.URL, Retry: fastRetry()}, logger.Nop())
	ctxInfo, err := c.FileContext(context.Background(), "acme/api", "a.py")
	require.NoError(t, err)
	assert.Equal(t, "python", ctxInfo["language"])
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.True(t, IsRetryableError(&StatusError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryableError(&StatusError{StatusCode: http.StatusNotFound}))
	assert.False(t, IsRetryableError(io.ErrUnexpectedEOF))
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{http.StatusRequestTimeout, true},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusNotImplemented, true},
		{http.StatusBadGateway, true},
		{599, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
		{http.StatusNotFound, false},
		{http.StatusUnprocessableEntity, false},
	}
	for _, tt := range tests {
		if got := IsRetryableStatusCode(tt.code); got != tt.want {
			t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestJitteredDelay(t *testing.T) {
	base := 100 * time.Millisecond
	seen := make(map[time.Duration]bool)
	for i := 0; i < 200; i++ {
		d := jittered(base)
		require.GreaterOrEqual(t, d, base/2)
		require.LessOrEqual(t, d, base)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "delays should vary")
	assert.Equal(t, time.Duration(0), jittered(0))
}

func TestRetryDelay(t *testing.T) {
	cfg := RetryConfig{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, cfg.delay(1))
	assert.Equal(t, 2*time.Second, cfg.delay(2))
	assert.Equal(t, 3*time.Second, cfg.delay(3))
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MCP.Endpoint = "http://mcp.local"
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "http://mcp.local", opts.Endpoint)
	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, 3, opts.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, opts.Timeout)
}
