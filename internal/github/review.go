package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v71/github"

	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/report"
)

const (
	// MaxInlineComments caps the line comments attached to one review.
	MaxInlineComments = 30

	// maxReviewBody stays under the API limit of 65536 characters.
	maxReviewBody = 65000

	reviewEventComment = "COMMENT"
)

// PostReview publishes result as a COMMENT review on the pull request. The
// body is the markdown report and issues with a line number become inline
// comments. When GitHub rejects the inline comments (lines outside the
// diff) the review is posted again with the body only.
func (c *Client) PostReview(ctx context.Context, result *model.ReviewResult, prioritize bool) (int64, error) {
	owner, name, err := SplitRepo(result.Repository)
	if err != nil {
		return 0, err
	}

	body, err := (&report.MarkdownReporter{Prioritize: prioritize}).Generate(result)
	if err != nil {
		return 0, fmt.Errorf("rendering review: %w", err)
	}

	req := &gh.PullRequestReviewRequest{
		Body:     gh.Ptr(report.Truncate(body, maxReviewBody)),
		Event:    gh.Ptr(reviewEventComment),
		Comments: inlineComments(result.Issues, prioritize),
	}
	if result.HeadSHA != "" {
		req.CommitID = gh.Ptr(result.HeadSHA)
	}

	review, _, err := c.gh.PullRequests.CreateReview(ctx, owner, name, result.PRNumber, req)
	if err != nil && len(req.Comments) > 0 && isUnprocessable(err) {
		c.log.Warn("%s#%d: inline comments rejected, posting summary only: %v", result.Repository, result.PRNumber, err)
		req.Comments = nil
		review, _, err = c.gh.PullRequests.CreateReview(ctx, owner, name, result.PRNumber, req)
	}
	if err != nil {
		return 0, fmt.Errorf("posting review to %s#%d: %w", result.Repository, result.PRNumber, err)
	}

	c.log.Info("posted review %d to %s#%d with %d inline comments",
		review.GetID(), result.Repository, result.PRNumber, len(req.Comments))
	return review.GetID(), nil
}

func inlineComments(issues []model.Issue, prioritize bool) []*gh.DraftReviewComment {
	if prioritize {
		issues = model.SortIssues(issues)
	}
	var comments []*gh.DraftReviewComment
	for _, issue := range issues {
		if issue.FilePath == "" || issue.Line() <= 0 {
			continue
		}
		if len(comments) == MaxInlineComments {
			break
		}
		comments = append(comments, &gh.DraftReviewComment{
			Path: gh.Ptr(issue.FilePath),
			Line: gh.Ptr(issue.Line()),
			Side: gh.Ptr("RIGHT"),
			Body: gh.Ptr(report.Truncate(report.FormatIssueComment(issue), report.DefaultTruncateLength)),
		})
	}
	return comments
}

func isUnprocessable(err error) bool {
	var ghErr *gh.ErrorResponse
	return errors.As(err, &ghErr) && ghErr.Response != nil &&
		ghErr.Response.StatusCode == http.StatusUnprocessableEntity
}
