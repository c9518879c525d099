// Package config handles all configuration management for prreviewer.
//
// Configuration is loaded from multiple sources in order of precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (PRREVIEWER_*, plus GITHUB_TOKEN,
//    GITHUB_WEBHOOK_SECRET and ANTHROPIC_API_KEY)
// 3. Configuration file (.prreviewer.yaml)
// 4. Default values (lowest priority)
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/JNZader/prreviewer/internal/logger"
)

// Config is the main configuration structure for prreviewer.
type Config struct {
	// Environment is a free-form deployment name (development, production, ...)
	Environment string `mapstructure:"environment" yaml:"environment"`

	// ReviewTimeout bounds a single pull request review
	ReviewTimeout time.Duration `mapstructure:"review_timeout" yaml:"review_timeout"`

	// MaxFiles is the maximum number of files fetched per pull request
	MaxFiles int `mapstructure:"max_files" yaml:"max_files"`

	// ConcurrentReviews is the number of reviews run in parallel
	ConcurrentReviews int `mapstructure:"concurrent_reviews" yaml:"concurrent_reviews"`

	PollingInterval    time.Duration `mapstructure:"polling_interval" yaml:"polling_interval"`
	ErrorRetryInterval time.Duration `mapstructure:"error_retry_interval" yaml:"error_retry_interval"`

	// MonitoredRepositories are "owner/name" pairs. An empty list disables
	// polling and accepts webhooks from any repository.
	MonitoredRepositories []string `mapstructure:"monitored_repositories" yaml:"monitored_repositories"`

	Server      ServerConfig      `mapstructure:"server" yaml:"server"`
	GitHub      GitHubConfig      `mapstructure:"github" yaml:"github"`
	MCP         MCPConfig         `mapstructure:"mcp" yaml:"mcp"`
	Summary     SummaryConfig     `mapstructure:"summary" yaml:"summary"`
	Analysis    AnalysisConfig    `mapstructure:"analysis" yaml:"analysis"`
	Performance PerformanceConfig `mapstructure:"performance" yaml:"performance"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
	Rules       RulesConfig       `mapstructure:"rules" yaml:"rules"`
	History     HistoryConfig     `mapstructure:"history" yaml:"history"`
}

// ServerConfig configures the webhook HTTP server.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// GitHubConfig configures access to the GitHub API.
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url" yaml:"api_url"`

	// Token should be set via GITHUB_TOKEN, not the config file
	Token string `mapstructure:"token" yaml:"token"`

	WebhookSecret string   `mapstructure:"webhook_secret" yaml:"webhook_secret"`
	WebhookEvents []string `mapstructure:"webhook_events" yaml:"webhook_events"`

	// ContentMode selects what the analyzers see: "raw" fetches whole files
	// at the head commit, "patch" uses the diff hunks.
	ContentMode string `mapstructure:"content_mode" yaml:"content_mode"`
}

// Content modes.
const (
	ContentRaw   = "raw"
	ContentPatch = "patch"
)

// MCPConfig configures the remote analysis service. An empty endpoint
// disables it.
type MCPConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	BatchSize int           `mapstructure:"batch_size" yaml:"batch_size"`
	Retry     RetryConfig   `mapstructure:"retry" yaml:"retry"`
}

// RetryConfig configures exponential backoff.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// SummaryConfig selects how review summaries are written.
type SummaryConfig struct {
	// Provider is "template" or "anthropic"
	Provider  string `mapstructure:"provider" yaml:"provider"`
	Model     string `mapstructure:"model" yaml:"model"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	MaxTokens int    `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// AnalysisConfig configures which files are analyzed.
type AnalysisConfig struct {
	// IgnorePatterns are globs matched against the whole file path
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns"`

	// Prioritization sorts posted issues by severity
	Prioritization bool `mapstructure:"prioritization" yaml:"prioritization"`
}

// PerformanceConfig groups caching and rate limiting.
type PerformanceConfig struct {
	Cache        CacheConfig     `mapstructure:"cache" yaml:"cache"`
	RateLimiting RateLimitConfig `mapstructure:"rate_limiting" yaml:"rate_limiting"`
}

// CacheConfig configures the review result cache.
type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" yaml:"ttl"`
	MaxSize int           `mapstructure:"max_size" yaml:"max_size"`

	// Backend is "memory" (LRU) or "badger" (persistent, stored in Dir)
	Backend string `mapstructure:"backend" yaml:"backend"`
	Dir     string `mapstructure:"dir" yaml:"dir"`
}

// Cache backends.
const (
	CacheMemory = "memory"
	CacheBadger = "badger"
)

// RateLimitConfig limits outbound API requests to MaxRequests per Window.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxRequests int           `mapstructure:"max_requests" yaml:"max_requests"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file"`
}

// HistoryConfig locates the SQLite review history. An empty path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// RulesConfig points at a custom rule document. Empty uses the built-in rules.
type RulesConfig struct {
	File string `mapstructure:"file" yaml:"file"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.ReviewTimeout <= 0 {
		return &ValidationError{Field: "review_timeout", Message: "must be positive"}
	}
	if c.MaxFiles <= 0 {
		return &ValidationError{Field: "max_files", Message: "must be positive"}
	}
	if c.ConcurrentReviews <= 0 {
		return &ValidationError{Field: "concurrent_reviews", Message: "must be positive"}
	}
	if c.PollingInterval <= 0 {
		return &ValidationError{Field: "polling_interval", Message: "must be positive"}
	}
	if c.ErrorRetryInterval <= 0 {
		return &ValidationError{Field: "error_retry_interval", Message: "must be positive"}
	}

	for _, repo := range c.MonitoredRepositories {
		if !validRepoName(repo) {
			return &ValidationError{Field: "monitored_repositories", Message: fmt.Sprintf("invalid repository %q, want owner/name", repo)}
		}
	}

	if c.GitHub.ContentMode != ContentRaw && c.GitHub.ContentMode != ContentPatch {
		return &ValidationError{Field: "github.content_mode", Message: "invalid mode, must be one of: raw, patch"}
	}

	if c.MCP.Endpoint != "" {
		if c.MCP.Timeout <= 0 {
			return &ValidationError{Field: "mcp.timeout", Message: "must be positive"}
		}
		if c.MCP.Retry.MaxAttempts < 1 {
			return &ValidationError{Field: "mcp.retry.max_attempts", Message: "must be at least 1"}
		}
		if c.MCP.Retry.MaxDelay < c.MCP.Retry.InitialDelay {
			return &ValidationError{Field: "mcp.retry.max_delay", Message: "must not be below initial_delay"}
		}
	}

	validProviders := map[string]bool{"template": true, "anthropic": true}
	if !validProviders[c.Summary.Provider] {
		return &ValidationError{Field: "summary.provider", Message: "invalid provider, must be one of: template, anthropic"}
	}

	if cc := c.Performance.Cache; cc.Enabled {
		switch cc.Backend {
		case CacheMemory:
			if cc.MaxSize <= 0 {
				return &ValidationError{Field: "performance.cache.max_size", Message: "must be positive when the cache is enabled"}
			}
		case CacheBadger:
			if cc.Dir == "" {
				return &ValidationError{Field: "performance.cache.dir", Message: "required by the badger backend"}
			}
		default:
			return &ValidationError{Field: "performance.cache.backend", Message: "invalid backend, must be one of: memory, badger"}
		}
	}
	if rl := c.Performance.RateLimiting; rl.Enabled && (rl.MaxRequests <= 0 || rl.Window <= 0) {
		return &ValidationError{Field: "performance.rate_limiting", Message: "max_requests and window must be positive when enabled"}
	}

	if _, err := logger.ParseLevel(c.Logging.Level); err != nil {
		return &ValidationError{Field: "logging.level", Message: err.Error()}
	}

	return nil
}

func validRepoName(repo string) bool {
	owner, name, ok := strings.Cut(repo, "/")
	return ok && owner != "" && name != "" && !strings.Contains(name, "/")
}

// Redacted returns a copy safe to print, with credentials masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.MonitoredRepositories = append([]string(nil), c.MonitoredRepositories...)
	out.GitHub.Token = redact(c.GitHub.Token)
	out.GitHub.WebhookSecret = redact(c.GitHub.WebhookSecret)
	out.Summary.APIKey = redact(c.Summary.APIKey)
	return &out
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "********"
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "config validation error: " + e.Field + ": " + e.Message
}
