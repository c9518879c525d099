package commands

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/agent"
	"github.com/JNZader/prreviewer/internal/cache"
	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/github"
	"github.com/JNZader/prreviewer/internal/history"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/profiler"
	"github.com/JNZader/prreviewer/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server and the review agent",
	Long: `Start the review agent and the webhook HTTP server.

The agent polls monitored_repositories every polling_interval and reviews
pull requests whose head commit has not been reviewed yet. GitHub webhooks
posted to /webhook queue reviews immediately.

Endpoints:
  POST /webhook   GitHub webhook receiver
  GET  /health    liveness probe
  GET  /status    agent statistics
  GET  /metrics   Prometheus metrics

Examples:
  # Serve on the configured address
  prreviewer serve

  # Review without posting anything back
  prreviewer serve --dry-run --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().Bool("dry-run", false, "review pull requests without posting results")
	serveCmd.Flags().String("pprof-addr", "", "serve pprof endpoints on this address (e.g. localhost:6060)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if pprofAddr, _ := cmd.Flags().GetString("pprof-addr"); pprofAddr != "" {
		prof, err := profiler.Start(profiler.Config{HTTPAddr: pprofAddr}, appLog)
		if err != nil {
			return err
		}
		defer prof.Stop() //nolint:errcheck
	}

	a, err := newApp(cfg, appLog)
	if err != nil {
		return err
	}

	client, err := github.NewClient(github.OptionsFromConfig(cfg), a.log)
	if err != nil {
		return err
	}
	if cfg.GitHub.Token == "" {
		a.log.Warn("no GitHub token configured, API requests are unauthenticated")
	}

	var poster agent.Poster = client
	if dryRun {
		poster = nil
		a.log.Info("dry run, reviews will not be posted")
	}

	resultCache, err := newCache(cfg.Performance.Cache, a.log)
	if err != nil {
		return err
	}
	if closer, ok := resultCache.(io.Closer); ok {
		defer closer.Close() //nolint:errcheck
	}

	ag := agent.New(agent.OptionsFromConfig(cfg), client, poster, a.reviewer, resultCache, a.collector, a.log)
	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer store.Close()
		ag.UseHistory(store)
	}
	if err := ag.Start(ctx); err != nil {
		return err
	}
	defer ag.Stop()

	handler := webhook.NewHandler(webhook.Options{
		Secret:       cfg.GitHub.WebhookSecret,
		Events:       cfg.GitHub.WebhookEvents,
		Repositories: cfg.MonitoredRepositories,
	}, ag, a.collector, a.log)
	mux := webhook.NewMux(handler, func() interface{} { return ag.Status() }, a.collector)

	a.log.Info("environment %s, %d monitored repositories", cfg.Environment, len(cfg.MonitoredRepositories))
	if err := webhook.Serve(ctx, cfg.Server.Addr, mux, a.log); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// newCache builds the configured result cache, or nil when caching is
// disabled. A badger cache must be closed by the caller.
func newCache(cfg config.CacheConfig, log *logger.Logger) (cache.Cache, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.Backend == config.CacheBadger {
		c, err := cache.NewBadgerCache(cfg.Dir, cfg.TTL, log)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return cache.NewLRUCache(cfg.MaxSize, cfg.TTL), nil
}
