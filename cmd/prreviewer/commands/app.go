package commands

import (
	"fmt"

	"github.com/JNZader/prreviewer/internal/analyzer"
	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/local"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/mcp"
	"github.com/JNZader/prreviewer/internal/metrics"
	"github.com/JNZader/prreviewer/internal/review"
	"github.com/JNZader/prreviewer/internal/rules"
	"github.com/JNZader/prreviewer/internal/summary"
)

// app holds the components shared by the review, serve and mcp-serve
// commands.
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	catalog   *rules.Catalog
	collector *metrics.Collector
	reviewer  review.Reviewer
	source    *local.Source

	// remote is nil when no MCP endpoint is configured.
	remote *mcp.Client
}

// newApp loads the rule catalog and assembles the review engine.
func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	loader := rules.NewLoader(cfg.Rules.File)
	catalog, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading rules from %s: %w", loader.Source(), err)
	}
	log.Debug("loaded %d architecture rules from %s", len(catalog.Architecture), loader.Source())

	summarizer, err := summary.New(summary.Options{
		Provider:  cfg.Summary.Provider,
		Model:     cfg.Summary.Model,
		APIKey:    cfg.Summary.APIKey,
		MaxTokens: cfg.Summary.MaxTokens,
	}, log)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()

	var (
		remote       review.Remote
		remoteClient *mcp.Client
	)
	if client := mcp.NewClient(mcp.OptionsFromConfig(cfg), log); client.Enabled() {
		remoteClient = client
		remote = review.NewInstrumentedRemote(client, collector)
	}

	engine := review.NewEngine(analyzer.All(catalog, log), remote, summarizer, log)

	return &app{
		cfg:       cfg,
		log:       log,
		catalog:   catalog,
		collector: collector,
		reviewer:  review.NewInstrumentedEngine(engine, collector),
		source:    local.NewSource(cfg.Analysis.IgnorePatterns, cfg.MaxFiles, log),
		remote:    remoteClient,
	}, nil
}
