package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse the review history",
	Long: `Query the SQLite review history written by "prreviewer serve" when
history.path is configured.

Examples:
  # Last reviews of a repository
  prreviewer history list --repo octo/app

  # Full-text search over issue messages
  prreviewer history search "sql injection" --severity error

  # Aggregate counts
  prreviewer history stats --json`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent reviews",
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historySearchCmd = &cobra.Command{
	Use:   "search [text]",
	Short: "Search stored issues",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistorySearch,
}

var historyStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate issue counts",
	Args:  cobra.NoArgs,
	RunE:  runHistoryStats,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historySearchCmd, historyStatsCmd)

	historyCmd.PersistentFlags().String("db", "", "history database (overrides history.path)")
	historyCmd.PersistentFlags().Bool("json", false, "output as JSON")
	historyCmd.PersistentFlags().Int("limit", 20, "maximum number of rows")
	historyCmd.PersistentFlags().String("repo", "", "only this repository (owner/name)")

	historyListCmd.Flags().Int("pr", 0, "only this pull request")
	historySearchCmd.Flags().String("severity", "", "only this severity")
	historySearchCmd.Flags().String("rule", "", "only this rule")
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	if path == "" {
		path = appConfig.History.Path
	}
	if path == "" {
		return nil, fmt.Errorf("no history database: set history.path or pass --db")
	}
	return history.Open(path)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	repo, _ := cmd.Flags().GetString("repo")
	pr, _ := cmd.Flags().GetInt("pr")
	limit, _ := cmd.Flags().GetInt("limit")
	reviews, err := store.Recent(cmd.Context(), history.ListQuery{Repository: repo, PRNumber: pr, Limit: limit})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, reviews)
	}
	if len(reviews) == 0 {
		fmt.Fprintln(out, "No reviews recorded.")
		return nil
	}
	for _, r := range reviews {
		fmt.Fprintf(out, "%s  %s#%d  %-8s  %3d issues  %2d files  %.2fs\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04"), r.Repository, r.PRNumber,
			shortSHA(r.HeadSHA), r.IssueCount, r.FilesReviewed, r.ReviewTime)
	}
	return nil
}

func runHistorySearch(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	q := history.SearchQuery{}
	if len(args) == 1 {
		q.Text = args[0]
	}
	q.Repository, _ = cmd.Flags().GetString("repo")
	q.Severity, _ = cmd.Flags().GetString("severity")
	q.Rule, _ = cmd.Flags().GetString("rule")
	q.Limit, _ = cmd.Flags().GetInt("limit")

	issues, err := store.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, issues)
	}
	if len(issues) == 0 {
		fmt.Fprintln(out, "No matching issues.")
		return nil
	}
	for _, i := range issues {
		loc := i.FilePath
		if i.Line > 0 {
			loc = fmt.Sprintf("%s:%d", loc, i.Line)
		}
		fmt.Fprintf(out, "%s#%d  %-10s %s  %s [%s]\n", i.Repository, i.PRNumber, i.Severity, loc, i.Message, i.RuleName)
	}
	return nil
}

func runHistoryStats(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, stats)
	}
	fmt.Fprintf(out, "Reviews: %d\nIssues:  %d\n", stats.TotalReviews, stats.TotalIssues)
	printCounts(out, "By severity", stats.BySeverity)
	printCounts(out, "By rule", stats.ByRule)
	printCounts(out, "Top files", stats.TopFiles)
	return nil
}

func printCounts(w io.Writer, title string, counts map[string]int64) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	fmt.Fprintf(w, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-40s %d\n", k, counts[k])
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	if sha == "" {
		return strings.Repeat("-", 7)
	}
	return sha
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
