package github

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	gh "github.com/google/go-github/v71/github"

	"github.com/JNZader/prreviewer/internal/config"
	"github.com/JNZader/prreviewer/internal/git"
	"github.com/JNZader/prreviewer/internal/model"
)

const perPage = 100

// FetchPRContext loads a pull request and the text of its changed files.
// Removed and ignored files are left out. Files without a patch (binary or
// too large) or with non-text content are listed as changed but have no
// content. Failing to read a file fails the whole fetch.
func (c *Client) FetchPRContext(ctx context.Context, repo string, number int) (*model.PRContext, error) {
	owner, name, err := SplitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, _, err := c.gh.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("fetching %s#%d: %w", repo, number, err)
	}

	prc := &model.PRContext{
		PRNumber:    number,
		Repository:  repo,
		BaseBranch:  pr.GetBase().GetRef(),
		HeadBranch:  pr.GetHead().GetRef(),
		HeadSHA:     pr.GetHead().GetSHA(),
		Author:      pr.GetUser().GetLogin(),
		Title:       pr.GetTitle(),
		Description: pr.Body,
		DiffContent: make(map[string]string),
	}

	files, err := c.listFiles(ctx, owner, name, number)
	if err != nil {
		return nil, fmt.Errorf("listing files of %s#%d: %w", repo, number, err)
	}

	for _, f := range files {
		path := f.GetFilename()
		if f.GetStatus() == "removed" {
			continue
		}
		if c.Ignored(path) {
			c.log.Debug("ignoring %s", path)
			continue
		}
		if c.opts.MaxFiles > 0 && len(prc.FilesChanged) >= c.opts.MaxFiles {
			c.log.Warn("%s: file limit of %d reached, %d files not reviewed",
				prc.Ref(), c.opts.MaxFiles, len(files)-len(prc.FilesChanged))
			break
		}

		prc.FilesChanged = append(prc.FilesChanged, path)
		if f.GetPatch() == "" {
			continue
		}

		text, ok, err := c.fileText(ctx, owner, name, prc.HeadSHA, f)
		if err != nil {
			return nil, fmt.Errorf("reading %s in %s: %w", path, prc.Ref(), err)
		}
		if ok {
			prc.DiffContent[path] = text
		}
	}

	c.log.Debug("%s: %d files changed, %d with content", prc.Ref(), len(prc.FilesChanged), len(prc.DiffContent))
	return prc, nil
}

func (c *Client) listFiles(ctx context.Context, owner, name string, number int) ([]*gh.CommitFile, error) {
	var all []*gh.CommitFile
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, name, number, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

// fileText returns the whole file at ref, or the new side of its patch in
// patch mode. ok is false for content that is not text.
func (c *Client) fileText(ctx context.Context, owner, name, ref string, f *gh.CommitFile) (string, bool, error) {
	if c.opts.ContentMode == config.ContentPatch {
		return git.ParsePatch(f.GetFilename(), f.GetPatch()).SparseText(), true, nil
	}

	fc, _, _, err := c.gh.Repositories.GetContents(ctx, owner, name, f.GetFilename(),
		&gh.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		return "", false, err
	}
	if fc == nil {
		return "", false, fmt.Errorf("%s is not a file", f.GetFilename())
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", false, err
	}
	if !isText(content) {
		return "", false, nil
	}
	return content, true, nil
}

func isText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// ListPendingReviews lists the open pull requests of each repository, most
// recently updated first. Repositories that do not exist or are not
// visible are logged and skipped.
func (c *Client) ListPendingReviews(ctx context.Context, repos []string) ([]model.PRRef, error) {
	var refs []model.PRRef
	for _, repo := range repos {
		owner, name, err := SplitRepo(repo)
		if err != nil {
			c.log.Warn("skipping %v", err)
			continue
		}

		opts := &gh.PullRequestListOptions{
			State:       "open",
			Sort:        "updated",
			Direction:   "desc",
			ListOptions: gh.ListOptions{PerPage: perPage},
		}
		for {
			prs, resp, err := c.gh.PullRequests.List(ctx, owner, name, opts)
			if err != nil {
				if IsNotFound(err) {
					c.log.Warn("repository %s not found, skipping", repo)
					break
				}
				return refs, fmt.Errorf("listing pull requests of %s: %w", repo, err)
			}
			for _, pr := range prs {
				refs = append(refs, model.PRRef{
					Repository: repo,
					Number:     pr.GetNumber(),
					HeadSHA:    pr.GetHead().GetSHA(),
					UpdatedAt:  pr.GetUpdatedAt().Time,
				})
			}
			if resp.NextPage == 0 {
				break
			}
			opts.Page = resp.NextPage
		}
	}
	return refs, nil
}
