package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JNZader/prreviewer/internal/github"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/profiler"
	"github.com/JNZader/prreviewer/internal/report"
)

// ErrIssuesFound is returned by review when --fail-on is met.
var ErrIssuesFound = errors.New("issues at or above the --fail-on severity were found")

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a pull request, a diff or a directory",
	Long: `Run the rule catalog over one change set and print the result.

Exactly one source must be given:
  --repo and --pr   a GitHub pull request
  --diff FILE       a unified diff ("-" reads stdin)
  --dir DIR         every file under a directory
  --git-base REF    the current branch of the working repository against REF
  --staged          the staged changes of the working repository

Examples:
  # Review a pull request and post the findings to it
  prreviewer review --repo octo/app --pr 42 --post

  # Review the current branch against main as SARIF
  prreviewer review --git-base main --format sarif -o review.sarif

  # Fail a CI job on errors
  git diff origin/main | prreviewer review --diff - --fail-on error`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	addReviewFlags(reviewCmd)
}

func addReviewFlags(cmd *cobra.Command) {
	cmd.Flags().String("repo", "", "GitHub repository (owner/name)")
	cmd.Flags().Int("pr", 0, "pull request number")
	cmd.Flags().Bool("post", false, "post the review to the pull request")
	cmd.Flags().String("diff", "", "review a unified diff file, - for stdin")
	cmd.Flags().String("dir", "", "review every file under a directory")
	cmd.Flags().String("git-base", "", "review the current branch against a base ref")
	cmd.Flags().Bool("staged", false, "review the staged changes")

	cmd.Flags().StringP("format", "f", "text", "output format ("+strings.Join(report.AvailableFormats(), ", ")+")")
	cmd.Flags().StringP("output", "o", "", "write the report to a file")
	cmd.Flags().String("cpuprofile", "", "write a CPU profile to file")
	cmd.Flags().String("memprofile", "", "write a heap profile to file")
	cmd.Flags().String("fail-on", "", "exit with status 2 when an issue of this severity or worse is found (error, warning, info, suggestion)")
}

func runReview(cmd *cobra.Command, args []string) error {
	if err := validateReviewFlags(cmd); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cpuProfile, _ := cmd.Flags().GetString("cpuprofile")
	memProfile, _ := cmd.Flags().GetString("memprofile")
	prof, err := profiler.Start(profiler.Config{CPUProfile: cpuProfile, MemProfile: memProfile}, appLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := prof.Stop(); err != nil {
			appLog.Warn("profiler: %v", err)
		}
	}()

	a, err := newApp(appConfig, appLog)
	if err != nil {
		return err
	}

	prc, gh, err := loadContext(ctx, cmd, a)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.ReviewTimeout)
	defer cancel()

	result, err := a.reviewer.Review(ctx, prc)
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	if post, _ := cmd.Flags().GetBool("post"); post {
		id, err := gh.PostReview(ctx, result, a.cfg.Analysis.Prioritization)
		if err != nil {
			return fmt.Errorf("posting review: %w", err)
		}
		a.log.Info("posted review %d to %s", id, prc.Ref())
	}

	if err := writeReport(cmd, result); err != nil {
		return err
	}

	if failOn, _ := cmd.Flags().GetString("fail-on"); failOn != "" {
		threshold, _ := model.ParseSeverity(failOn)
		if hasIssuesAtLeast(result.Issues, threshold) {
			return ErrIssuesFound
		}
	}
	return nil
}

// loadContext builds the review input from whichever source flag is set.
// The GitHub client is returned for pull request reviews only.
func loadContext(ctx context.Context, cmd *cobra.Command, a *app) (*model.PRContext, *github.Client, error) {
	flags := cmd.Flags()

	if repo, _ := flags.GetString("repo"); repo != "" {
		number, _ := flags.GetInt("pr")
		client, err := github.NewClient(github.OptionsFromConfig(a.cfg), a.log)
		if err != nil {
			return nil, nil, err
		}
		prc, err := client.FetchPRContext(ctx, repo, number)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching %s#%d: %w", repo, number, err)
		}
		return prc, client, nil
	}

	if path, _ := flags.GetString("diff"); path != "" {
		text, name, err := readDiff(cmd.InOrStdin(), path)
		if err != nil {
			return nil, nil, err
		}
		prc, err := a.source.FromDiff(name, text)
		return prc, nil, err
	}

	if dir, _ := flags.GetString("dir"); dir != "" {
		prc, err := a.source.FromDir(dir)
		return prc, nil, err
	}

	if staged, _ := flags.GetBool("staged"); staged {
		prc, err := a.source.FromStaged(ctx, ".")
		return prc, nil, err
	}

	base, _ := flags.GetString("git-base")
	prc, err := a.source.FromGit(ctx, ".", base)
	return prc, nil, err
}

func readDiff(stdin io.Reader, path string) (text, name string, err error) {
	var data []byte
	if path == "-" {
		data, err = io.ReadAll(stdin)
		name = "stdin"
	} else {
		data, err = os.ReadFile(path)
		name = path
	}
	if err != nil {
		return "", "", fmt.Errorf("reading diff: %w", err)
	}
	return string(data), name, nil
}

func validateReviewFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	repo, _ := flags.GetString("repo")
	pr, _ := flags.GetInt("pr")
	diff, _ := flags.GetString("diff")
	dir, _ := flags.GetString("dir")
	base, _ := flags.GetString("git-base")
	staged, _ := flags.GetBool("staged")
	post, _ := flags.GetBool("post")

	modeCount := 0
	for _, set := range []bool{repo != "" || pr != 0, diff != "", dir != "", base != "", staged} {
		if set {
			modeCount++
		}
	}
	if modeCount == 0 {
		return fmt.Errorf("must specify a source: --repo/--pr, --diff, --dir, --git-base or --staged")
	}
	if modeCount > 1 {
		return fmt.Errorf("only one source allowed at a time")
	}

	if (repo != "") != (pr > 0) {
		return fmt.Errorf("--repo and a positive --pr must be given together")
	}
	if repo != "" {
		if _, _, err := github.SplitRepo(repo); err != nil {
			return err
		}
	}
	if post && repo == "" {
		return fmt.Errorf("--post requires --repo and --pr")
	}

	if _, err := report.NewReporter(outputFormat(cmd)); err != nil {
		return fmt.Errorf("invalid format: %w", err)
	}

	if failOn, _ := flags.GetString("fail-on"); failOn != "" {
		if _, err := model.ParseSeverity(failOn); err != nil {
			return fmt.Errorf("invalid --fail-on: %w", err)
		}
	}
	return nil
}

// outputFormat returns --format, or the format implied by the --output
// extension when --format was not given.
func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("format")
	if cmd.Flags().Changed("format") {
		return format
	}
	output, _ := cmd.Flags().GetString("output")
	if detected := DetectFormatFromPath(output); detected != "" {
		return detected
	}
	return format
}

func writeReport(cmd *cobra.Command, result *model.ReviewResult) error {
	reporter, err := report.NewReporter(outputFormat(cmd))
	if err != nil {
		return err
	}
	if md, ok := reporter.(*report.MarkdownReporter); ok {
		md.Prioritize = appConfig.Analysis.Prioritization
	}
	content, err := reporter.Generate(result)
	if err != nil {
		return fmt.Errorf("rendering report: %w", err)
	}
	output, _ := cmd.Flags().GetString("output")
	return WriteOutput(cmd.OutOrStdout(), content, output)
}

// hasIssuesAtLeast reports whether any issue is as severe as threshold.
func hasIssuesAtLeast(issues []model.Issue, threshold model.Severity) bool {
	for _, issue := range issues {
		if issue.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}
