// Package local builds pull request contexts from the local filesystem, so
// that the same review can run without GitHub.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/JNZader/prreviewer/internal/git"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

// Source reads changes from disk.
type Source struct {
	ignore   []string
	maxFiles int
	log      *logger.Logger
}

// NewSource creates a local source. Paths matching any ignore glob are
// skipped; maxFiles <= 0 means no limit.
func NewSource(ignore []string, maxFiles int, log *logger.Logger) *Source {
	return &Source{
		ignore:   ignore,
		maxFiles: maxFiles,
		log:      log.WithPrefix("LOCAL"),
	}
}

// Ignored reports whether path matches an ignore pattern.
func (s *Source) Ignored(path string) bool {
	for _, p := range s.ignore {
		if rules.MatchGlob(p, path) {
			return true
		}
	}
	return false
}

// FromDir treats every text file under dir as changed. Paths are relative
// to dir with forward slashes, in lexical order.
func (s *Source) FromDir(dir string) (*model.PRContext, error) {
	prc := newContext(filepath.Base(filepath.Clean(dir)))

	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	for _, rel := range paths {
		if s.Ignored(rel) {
			continue
		}
		if s.full(prc) {
			s.log.Warn("file limit of %d reached, skipping the rest", s.maxFiles)
			break
		}
		prc.FilesChanged = append(prc.FilesChanged, rel)

		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		if text, ok := decodeText(data); ok {
			prc.DiffContent[rel] = text
		}
	}
	return prc, nil
}

// FromDiff parses a unified diff. Analyzers see the new side of each hunk
// at its real line numbers.
func (s *Source) FromDiff(name string, diffText string) (*model.PRContext, error) {
	d, err := git.ParseDiff(diffText)
	if err != nil {
		return nil, fmt.Errorf("parsing diff: %w", err)
	}

	prc := newContext(name)
	for i := range d.Files {
		f := &d.Files[i]
		if !s.include(prc, f) {
			continue
		}
		prc.FilesChanged = append(prc.FilesChanged, f.Path)
		if !f.IsBinary {
			prc.DiffContent[f.Path] = f.SparseText()
		}
	}
	return prc, nil
}

// FromGit reviews the current branch of the repository at path against
// base. Analyzers see whole files from the working tree.
func (s *Source) FromGit(ctx context.Context, path, base string) (*model.PRContext, error) {
	repo, err := git.NewRepo(ctx, path)
	if err != nil {
		return nil, err
	}
	d, err := repo.BranchDiff(ctx, base)
	if err != nil {
		return nil, err
	}

	prc, err := s.fromRepo(ctx, repo, d)
	if err != nil {
		return nil, err
	}
	prc.BaseBranch = base
	prc.Title = fmt.Sprintf("%s into %s", prc.HeadBranch, base)
	return prc, nil
}

// FromStaged reviews the changes staged in the index of the repository at
// path.
func (s *Source) FromStaged(ctx context.Context, path string) (*model.PRContext, error) {
	repo, err := git.NewRepo(ctx, path)
	if err != nil {
		return nil, err
	}
	d, err := repo.StagedDiff(ctx)
	if err != nil {
		return nil, err
	}

	prc, err := s.fromRepo(ctx, repo, d)
	if err != nil {
		return nil, err
	}
	prc.BaseBranch = prc.HeadBranch
	prc.Title = "staged changes on " + prc.HeadBranch
	return prc, nil
}

func (s *Source) fromRepo(ctx context.Context, repo *git.Repo, d *git.Diff) (*model.PRContext, error) {
	prc := newContext(filepath.Base(repo.Path()))
	var err error
	if prc.HeadBranch, err = repo.CurrentBranch(ctx); err != nil {
		return nil, err
	}
	if prc.HeadSHA, err = repo.HeadSHA(ctx); err != nil {
		return nil, err
	}
	prc.Author = repo.Author(ctx)

	for i := range d.Files {
		f := &d.Files[i]
		if !s.include(prc, f) {
			continue
		}
		prc.FilesChanged = append(prc.FilesChanged, f.Path)
		if f.IsBinary {
			continue
		}
		data, err := os.ReadFile(filepath.Join(repo.Path(), filepath.FromSlash(f.Path)))
		if err != nil {
			s.log.Warn("reading %s: %v", f.Path, err)
			continue
		}
		if text, ok := decodeText(data); ok {
			prc.DiffContent[f.Path] = text
		}
	}
	return prc, nil
}

func (s *Source) include(prc *model.PRContext, f *git.FileDiff) bool {
	if f.Status == git.FileDeleted || s.Ignored(f.Path) {
		return false
	}
	if s.full(prc) {
		s.log.Warn("file limit of %d reached, skipping %s", s.maxFiles, f.Path)
		return false
	}
	return true
}

func (s *Source) full(prc *model.PRContext) bool {
	return s.maxFiles > 0 && len(prc.FilesChanged) >= s.maxFiles
}

func newContext(name string) *model.PRContext {
	return &model.PRContext{
		Repository:  "local/" + name,
		HeadBranch:  "HEAD",
		Title:       "local review",
		DiffContent: make(map[string]string),
	}
}

// decodeText rejects content that looks binary.
func decodeText(data []byte) (string, bool) {
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
