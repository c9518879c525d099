// Package commands contains all CLI commands for prreviewer.
//
// Each command is defined in its own file and registered in init().
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/logger"
)

var (
	// cfgFile holds the path to the config file (from --config flag)
	cfgFile string

	verbose bool
	quiet   bool

	// Loaded by PersistentPreRunE for every command.
	appConfig *config.Config
	appLog    = logger.Nop()
	closeLog  = func() error { return nil }
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "prreviewer",
	Short: "Automated pull request review assistant",
	Long: `prreviewer scans pull requests with a catalog of architecture, style and
security rules and posts the findings back as a review.

Examples:
  # Run the webhook server and poll monitored repositories
  prreviewer serve

  # Review a GitHub pull request and print the result
  prreviewer review --repo octo/app --pr 42

  # Review a local diff
  git diff main | prreviewer review --diff -

  # List the configured rules
  prreviewer rules list`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if errors.Is(err, ErrIssuesFound) {
		return 2
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is .prreviewer.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log errors only")
}

// initialize loads the configuration and opens the logger.
func initialize() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.SetConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	switch {
	case quiet:
		cfg.Logging.Level = "error"
	case verbose:
		cfg.Logging.Level = "debug"
	}

	log, closeFn, err := logger.Open(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return err
	}
	if used := loader.ConfigFileUsed(); used != "" {
		log.Debug("using config file %s", used)
	}

	appConfig, appLog, closeLog = cfg, log, closeFn
	return nil
}
