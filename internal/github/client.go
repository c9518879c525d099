// Package github fetches pull requests from GitHub and posts reviews back.
package github

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v71/github"
	"golang.org/x/time/rate"

	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Options configure a Client.
type Options struct {
	// APIURL is the REST endpoint; empty means api.github.com.
	APIURL string
	Token  string

	// ContentMode is config.ContentRaw or config.ContentPatch.
	ContentMode string

	// MaxFiles caps the files taken from one pull request; <= 0 means no cap.
	MaxFiles       int
	IgnorePatterns []string

	// MaxRequests per Window; zero disables client side rate limiting.
	MaxRequests int
	Window      time.Duration

	// HTTPClient is used as the base transport; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// OptionsFromConfig maps the application config onto client options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		APIURL:         cfg.GitHub.APIURL,
		Token:          cfg.GitHub.Token,
		ContentMode:    cfg.GitHub.ContentMode,
		MaxFiles:       cfg.MaxFiles,
		IgnorePatterns: cfg.Analysis.IgnorePatterns,
	}
	if cfg.Performance.RateLimiting.Enabled {
		opts.MaxRequests = cfg.Performance.RateLimiting.MaxRequests
		opts.Window = cfg.Performance.RateLimiting.Window
	}
	return opts
}

// Client wraps the GitHub REST API.
type Client struct {
	gh   *gh.Client
	opts Options
	log  *logger.Logger
}

// NewClient creates a client.
func NewClient(opts Options, log *logger.Logger) (*Client, error) {
	base := opts.HTTPClient
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.MaxRequests > 0 && opts.Window > 0 {
		transport = &limitedTransport{
			next:    transport,
			limiter: rate.NewLimiter(rate.Every(opts.Window/time.Duration(opts.MaxRequests)), opts.MaxRequests),
		}
	}
	httpClient := &http.Client{Transport: transport, Timeout: base.Timeout}

	client := gh.NewClient(httpClient)
	if opts.Token != "" {
		client = client.WithAuthToken(opts.Token)
	}
	if opts.APIURL != "" {
		u, err := url.Parse(opts.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url %q: %w", opts.APIURL, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	if opts.ContentMode == "" {
		opts.ContentMode = config.ContentRaw
	}

	return &Client{gh: client, opts: opts, log: log.WithPrefix("GITHUB")}, nil
}

// Ignored reports whether path matches an ignore pattern.
func (c *Client) Ignored(path string) bool {
	for _, p := range c.opts.IgnorePatterns {
		if rules.MatchGlob(p, path) {
			return true
		}
	}
	return false
}

// limitedTransport waits for the limiter before each request.
type limitedTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	return t.next.RoundTrip(req)
}

// SplitRepo splits "owner/name".
func SplitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/name", repo)
	}
	return owner, name, nil
}

// IsNotFound reports whether err is a GitHub 404.
func IsNotFound(err error) bool {
	var ghErr *gh.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
