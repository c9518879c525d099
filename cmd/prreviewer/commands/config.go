package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/JNZader/prreviewer/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `View and validate prreviewer configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Display the effective configuration, including values from the
config file, environment variables and defaults. Credentials are masked.

Examples:
  # Show config in YAML format
  prreviewer config show

  # Show config as JSON
  prreviewer config show --json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate the configuration",
	Long: `Validate the effective configuration, or the given file on top of
the defaults and environment.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			if _, err := config.LoadFromFile(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: configuration is valid\n", args[0])
			return nil
		}
		// Loading already validated it.
		fmt.Fprintln(cmd.OutOrStdout(), "configuration is valid")
		return nil
	},
}

var configShowJSON bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configValidateCmd)

	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output as JSON")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	masked := appConfig.Redacted()

	var (
		data []byte
		err  error
	)
	if configShowJSON {
		data, err = json.MarshalIndent(masked, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(masked)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
