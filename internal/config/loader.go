package config

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	configName = ".prreviewer"
	envPrefix  = "PRREVIEWER"
)

// wellKnownEnv maps config keys to conventional unprefixed variables. The
// prefixed variable still wins when both are set.
var wellKnownEnv = map[string]string{
	"github.token":          "GITHUB_TOKEN",
	"github.webhook_secret": "GITHUB_WEBHOOK_SECRET",
	"summary.api_key":       "ANTHROPIC_API_KEY",
}

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("$HOME")
	v.AddConfigPath("/etc/prreviewer")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range wellKnownEnv {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	return &Loader{v: v}
}

// SetConfigFile sets a specific config file to use.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
	l.v.SetConfigFile(path)
}

// Load loads the configuration from all sources.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.setDefaults(cfg)

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	hooks := mapstructure.ComposeDecodeHookFunc(
		secondsHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := l.v.Unmarshal(cfg, viper.DecodeHook(hooks)); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	normalize(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key with viper so that environment variables
// are seen by Unmarshal.
func (l *Loader) setDefaults(cfg *Config) {
	l.v.SetDefault("environment", cfg.Environment)
	l.v.SetDefault("review_timeout", cfg.ReviewTimeout)
	l.v.SetDefault("max_files", cfg.MaxFiles)
	l.v.SetDefault("concurrent_reviews", cfg.ConcurrentReviews)
	l.v.SetDefault("polling_interval", cfg.PollingInterval)
	l.v.SetDefault("error_retry_interval", cfg.ErrorRetryInterval)
	l.v.SetDefault("monitored_repositories", cleanList(cfg.MonitoredRepositories))

	l.v.SetDefault("server.addr", cfg.Server.Addr)

	l.v.SetDefault("github.api_url", cfg.GitHub.APIURL)
	l.v.SetDefault("github.token", cfg.GitHub.Token)
	l.v.SetDefault("github.webhook_secret", cfg.GitHub.WebhookSecret)
	l.v.SetDefault("github.webhook_events", cfg.GitHub.WebhookEvents)
	l.v.SetDefault("github.content_mode", cfg.GitHub.ContentMode)

	l.v.SetDefault("mcp.endpoint", cfg.MCP.Endpoint)
	l.v.SetDefault("mcp.timeout", cfg.MCP.Timeout)
	l.v.SetDefault("mcp.batch_size", cfg.MCP.BatchSize)
	l.v.SetDefault("mcp.retry.max_attempts", cfg.MCP.Retry.MaxAttempts)
	l.v.SetDefault("mcp.retry.initial_delay", cfg.MCP.Retry.InitialDelay)
	l.v.SetDefault("mcp.retry.max_delay", cfg.MCP.Retry.MaxDelay)

	l.v.SetDefault("summary.provider", cfg.Summary.Provider)
	l.v.SetDefault("summary.model", cfg.Summary.Model)
	l.v.SetDefault("summary.api_key", cfg.Summary.APIKey)
	l.v.SetDefault("summary.max_tokens", cfg.Summary.MaxTokens)

	l.v.SetDefault("analysis.ignore_patterns", cfg.Analysis.IgnorePatterns)
	l.v.SetDefault("analysis.prioritization", cfg.Analysis.Prioritization)

	l.v.SetDefault("performance.cache.enabled", cfg.Performance.Cache.Enabled)
	l.v.SetDefault("performance.cache.ttl", cfg.Performance.Cache.TTL)
	l.v.SetDefault("performance.cache.max_size", cfg.Performance.Cache.MaxSize)
	l.v.SetDefault("performance.cache.backend", cfg.Performance.Cache.Backend)
	l.v.SetDefault("performance.cache.dir", cfg.Performance.Cache.Dir)
	l.v.SetDefault("performance.rate_limiting.enabled", cfg.Performance.RateLimiting.Enabled)
	l.v.SetDefault("performance.rate_limiting.max_requests", cfg.Performance.RateLimiting.MaxRequests)
	l.v.SetDefault("performance.rate_limiting.window", cfg.Performance.RateLimiting.Window)

	l.v.SetDefault("logging.level", cfg.Logging.Level)
	l.v.SetDefault("logging.file", cfg.Logging.File)

	l.v.SetDefault("rules.file", cfg.Rules.File)
	l.v.SetDefault("history.path", cfg.History.Path)
}

var durationType = reflect.TypeOf(time.Duration(0))

// secondsHook reads bare numbers as seconds when decoding a duration, so
// "review_timeout: 300" means five minutes.
func secondsHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		if to != durationType || from == durationType {
			return data, nil
		}

		var secs float64
		switch v := data.(type) {
		case int:
			secs = float64(v)
		case int64:
			secs = float64(v)
		case float64:
			secs = v
		case string:
			n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return data, nil
			}
			secs = n
		default:
			return data, nil
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// normalize trims list entries and drops empty ones. Lists may arrive as a
// single comma separated string from the environment.
func normalize(cfg *Config) {
	cfg.MonitoredRepositories = cleanList(cfg.MonitoredRepositories)
	cfg.GitHub.WebhookEvents = cleanList(cfg.GitHub.WebhookEvents)
	cfg.Analysis.IgnorePatterns = cleanList(cfg.Analysis.IgnorePatterns)
	cfg.GitHub.ContentMode = strings.ToLower(strings.TrimSpace(cfg.GitHub.ContentMode))
	cfg.Summary.Provider = strings.ToLower(strings.TrimSpace(cfg.Summary.Provider))
	cfg.Performance.Cache.Backend = strings.ToLower(strings.TrimSpace(cfg.Performance.Cache.Backend))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ConfigFileUsed returns the path of the config file used, if any.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}
