package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp-serve",
	Short: "Serve the review engine as MCP tools over stdio",
	Long: `Start a Model Context Protocol server that speaks JSON-RPC 2.0 on
stdin/stdout, one message per line. Logs go to stderr.

Tools:
  review_diff    review a unified diff
  review_files   review a map of file path to content
  list_rules     list the configured rules
  file_context   context for a file from the remote analysis service
                 (only when mcp.endpoint is set)

Example .mcp.json entry:
  {
    "mcpServers": {
      "prreviewer": {"type": "stdio", "command": "prreviewer", "args": ["mcp-serve"]}
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appConfig, appLog)
	if err != nil {
		return err
	}

	server := mcp.NewServer("prreviewer", Version, a.log)
	tools := mcp.Tools{
		Reviewer: a.reviewer,
		Source:   a.source,
		Catalog:  a.catalog,
	}
	if a.remote != nil {
		tools.Context = a.remote
	}
	mcp.RegisterReviewTools(server, tools)

	a.log.Info("MCP server ready on stdio")
	return server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}
