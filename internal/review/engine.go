// Package review runs the analyzers over a pull request and assembles the
// final review result.
package review

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JNZader/prreviewer/internal/analyzer"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
)

// Remote is an external analysis service consulted before the local scan.
type Remote interface {
	AnalyzePullRequest(ctx context.Context, prc *model.PRContext) ([]model.Issue, error)
}

// Summarizer turns the final issue list into a human readable summary.
type Summarizer interface {
	Summarize(ctx context.Context, prc *model.PRContext, issues []model.Issue) (string, error)
}

// Collaborator names used in CollaboratorFailure.
const (
	CollaboratorRemote     = "remote analysis"
	CollaboratorSummarizer = "summarizer"
)

// Engine orchestrates a review.
type Engine struct {
	analyzers  []analyzer.Analyzer
	remote     Remote
	summarizer Summarizer
	log        *logger.Logger
}

// NewEngine creates a review engine. A nil remote contributes no issues.
func NewEngine(analyzers []analyzer.Analyzer, remote Remote, summarizer Summarizer, log *logger.Logger) *Engine {
	return &Engine{
		analyzers:  analyzers,
		remote:     remote,
		summarizer: summarizer,
		log:        log.WithPrefix("REVIEW"),
	}
}

// Scan runs every analyzer over every file with content. Analyzers run
// concurrently, but the result is ordered by analyzer and then by file in
// PRContext.ScanOrder order, so it is identical from run to run.
func (e *Engine) Scan(ctx context.Context, prc *model.PRContext) ([]model.Issue, error) {
	files := prc.ScanOrder()
	results := make([][]model.Issue, len(e.analyzers))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range e.analyzers {
		g.Go(func() error {
			issues, err := e.runAnalyzer(gctx, a, prc, files)
			if err != nil {
				return err
			}
			results[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	issues := make([]model.Issue, 0, total)
	for _, r := range results {
		issues = append(issues, r...)
	}
	return issues, nil
}

func (e *Engine) runAnalyzer(ctx context.Context, a analyzer.Analyzer, prc *model.PRContext, files []string) (issues []model.Issue, err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("analyzer %s panicked on %s: %v\n%s", a.Name(), current, r, debug.Stack())
			issues = nil
			err = &ScanFailure{Analyzer: a.Name(), File: current, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current = path
		found, err := a.Analyze(path, prc.DiffContent[path])
		if err != nil {
			return nil, &ScanFailure{Analyzer: a.Name(), File: path, Err: err}
		}
		issues = append(issues, found...)
	}
	return issues, nil
}

// Review consults the remote service, scans locally, and assembles the
// result. Remote issues come first. ReviewTime is left for the caller.
func (e *Engine) Review(ctx context.Context, prc *model.PRContext) (*model.ReviewResult, error) {
	if prc == nil {
		return nil, errors.New("review: nil pull request context")
	}
	if err := prc.Validate(); err != nil {
		return nil, fmt.Errorf("review %s: %w", prc.Ref(), err)
	}

	log := e.log.WithFields(map[string]interface{}{"repo": prc.Repository, "pr": prc.PRNumber})
	log.Info("reviewing %d files", len(prc.DiffContent))

	var remote []model.Issue
	if e.remote != nil {
		found, err := e.remote.AnalyzePullRequest(ctx, prc)
		if err != nil {
			return nil, &CollaboratorFailure{Collaborator: CollaboratorRemote, Err: err}
		}
		remote = found
	}

	local, err := e.Scan(ctx, prc)
	if err != nil {
		return nil, err
	}

	all := make([]model.Issue, 0, len(remote)+len(local))
	all = append(all, remote...)
	all = append(all, local...)

	var summary string
	if e.summarizer != nil {
		summary, err = e.summarizer.Summarize(ctx, prc, all)
		if err != nil {
			return nil, &CollaboratorFailure{Collaborator: CollaboratorSummarizer, Err: err}
		}
	}

	result := &model.ReviewResult{
		ID:                 uuid.NewString(),
		Repository:         prc.Repository,
		PRNumber:           prc.PRNumber,
		HeadSHA:            prc.HeadSHA,
		Issues:             all,
		Summary:            summary,
		TotalFilesReviewed: len(prc.DiffContent),
		Stats:              BuildStats(all, len(remote), len(prc.DiffContent)),
	}

	log.Info("found %d issues (%d remote, %d local)", len(all), len(remote), len(local))
	return result, nil
}
