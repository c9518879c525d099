package config

import "time"

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Environment:        "development",
		ReviewTimeout:      5 * time.Minute,
		MaxFiles:           100,
		ConcurrentReviews:  5,
		PollingInterval:    time.Minute,
		ErrorRetryInterval: 5 * time.Minute,
		Server:             ServerConfig{Addr: ":8000"},
		GitHub:             defaultGitHubConfig(),
		MCP:                defaultMCPConfig(),
		Summary:            SummaryConfig{Provider: "template", MaxTokens: 512},
		Analysis: AnalysisConfig{
			IgnorePatterns: DefaultIgnorePatterns(),
			Prioritization: true,
		},
		Performance: defaultPerformanceConfig(),
		Logging:     LoggingConfig{Level: "info"},
	}
}

func defaultGitHubConfig() GitHubConfig {
	return GitHubConfig{
		APIURL:        "https://api.github.com/",
		WebhookEvents: []string{"pull_request", "pull_request_review"},
		ContentMode:   ContentRaw,
	}
}

func defaultMCPConfig() MCPConfig {
	return MCPConfig{
		Timeout:   30 * time.Second,
		BatchSize: 10,
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
	}
}

func defaultPerformanceConfig() PerformanceConfig {
	return PerformanceConfig{
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
			MaxSize: 1000,
			Backend: CacheMemory,
			Dir:     ".prreviewer/cache",
		},
		RateLimiting: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 100,
			Window:      time.Minute,
		},
	}
}

// DefaultIgnorePatterns returns the default file patterns to skip.
func DefaultIgnorePatterns() []string {
	return []string{
		"*/test/*",
		"*/generated/*",
		"*/migrations/*",
		"*/vendor/*",
	}
}
