// Package history keeps a SQLite log of completed reviews. The agent uses
// it to skip pull requests already reviewed at their current head across
// restarts, and the history command searches it.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JNZader/prreviewer/internal/model"
)

// Store provides SQLite-based review history storage.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Workers record concurrently; a single connection serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reviews (
			id TEXT PRIMARY KEY,
			repository TEXT NOT NULL,
			pr_number INTEGER NOT NULL,
			head_sha TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			files_reviewed INTEGER NOT NULL DEFAULT 0,
			issue_count INTEGER NOT NULL DEFAULT 0,
			review_time REAL NOT NULL DEFAULT 0,
			posted_review_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS issues (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			review_id TEXT NOT NULL REFERENCES reviews(id),
			file_path TEXT NOT NULL DEFAULT '',
			line INTEGER NOT NULL DEFAULT 0,
			severity TEXT NOT NULL,
			rule_name TEXT NOT NULL,
			message TEXT NOT NULL,
			suggestion TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL
		)`,

		`CREATE VIRTUAL TABLE IF NOT EXISTS issues_fts USING fts5(
			message,
			suggestion,
			content='issues',
			content_rowid='id'
		)`,

		`CREATE TRIGGER IF NOT EXISTS issues_ai AFTER INSERT ON issues BEGIN
			INSERT INTO issues_fts(rowid, message, suggestion)
			VALUES (new.id, new.message, new.suggestion);
		END`,

		`CREATE TRIGGER IF NOT EXISTS issues_ad AFTER DELETE ON issues BEGIN
			INSERT INTO issues_fts(issues_fts, rowid, message, suggestion)
			VALUES ('delete', old.id, old.message, old.suggestion);
		END`,

		`CREATE INDEX IF NOT EXISTS idx_reviews_pr ON reviews(repository, pr_number, head_sha)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_created ON reviews(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_review ON issues(review_id)`,
		`CREATE INDEX IF NOT EXISTS idx_issues_severity ON issues(severity)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Record stores a review and its issues in one transaction. postedID is
// the id of the GitHub review, or 0 when nothing was posted.
func (s *Store) Record(ctx context.Context, result *model.ReviewResult, postedID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO reviews (
		id, repository, pr_number, head_sha, summary, files_reviewed,
		issue_count, review_time, posted_review_id, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.Repository, result.PRNumber, result.HeadSHA, result.Summary,
		result.TotalFilesReviewed, len(result.Issues), result.ReviewTime, postedID, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("inserting review: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO issues (
		review_id, file_path, line, severity, rule_name, message, suggestion, source
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, issue := range result.Issues {
		if _, err := stmt.ExecContext(ctx,
			result.ID, issue.FilePath, issue.Line(), string(issue.Severity),
			issue.RuleName, issue.Message, issue.Fix(), string(issue.Source),
		); err != nil {
			return fmt.Errorf("inserting issue: %w", err)
		}
	}

	return tx.Commit()
}

// Reviewed reports whether a review of repo#number at headSHA is stored.
// An empty headSHA is never considered reviewed.
func (s *Store) Reviewed(ctx context.Context, repo string, number int, headSHA string) (bool, error) {
	if headSHA == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE repository = ? AND pr_number = ? AND head_sha = ?`,
		repo, number, headSHA,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying reviews: %w", err)
	}
	return n > 0, nil
}

// Recent lists reviews, newest first.
func (s *Store) Recent(ctx context.Context, q ListQuery) ([]Review, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if q.Repository != "" {
		conditions = append(conditions, "repository = ?")
		args = append(args, q.Repository)
	}
	if q.PRNumber > 0 {
		conditions = append(conditions, "pr_number = ?")
		args = append(args, q.PRNumber)
	}

	query := `SELECT id, repository, pr_number, head_sha, summary, files_reviewed,
		issue_count, review_time, posted_review_id, created_at FROM reviews`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying reviews: %w", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.Repository, &r.PRNumber, &r.HeadSHA, &r.Summary,
			&r.FilesReviewed, &r.IssueCount, &r.ReviewTime, &r.PostedReviewID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning review: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Search finds stored issues, newest first.
func (s *Store) Search(ctx context.Context, q SearchQuery) ([]IssueRecord, error) {
	var (
		conditions []string
		args       []interface{}
	)
	if q.Text != "" {
		conditions = append(conditions, "i.id IN (SELECT rowid FROM issues_fts WHERE issues_fts MATCH ?)")
		args = append(args, q.Text)
	}
	if q.Repository != "" {
		conditions = append(conditions, "r.repository = ?")
		args = append(args, q.Repository)
	}
	if q.Severity != "" {
		conditions = append(conditions, "i.severity = ?")
		args = append(args, q.Severity)
	}
	if q.Rule != "" {
		conditions = append(conditions, "i.rule_name = ?")
		args = append(args, q.Rule)
	}

	query := `SELECT i.id, i.review_id, r.repository, r.pr_number, i.file_path, i.line,
		i.severity, i.rule_name, i.message, i.suggestion, i.source, r.created_at
		FROM issues i JOIN reviews r ON r.id = i.review_id`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.rowid DESC, i.id LIMIT ?"
	args = append(args, limit(q.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}
	defer rows.Close()

	var out []IssueRecord
	for rows.Next() {
		var r IssueRecord
		if err := rows.Scan(&r.ID, &r.ReviewID, &r.Repository, &r.PRNumber, &r.FilePath, &r.Line,
			&r.Severity, &r.RuleName, &r.Message, &r.Suggestion, &r.Source, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning issue: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Stats returns aggregate statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&stats.TotalReviews); err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM issues`).Scan(&stats.TotalIssues); err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}

	var err error
	if stats.BySeverity, err = s.countBy(ctx, `SELECT severity, COUNT(*) FROM issues GROUP BY severity`); err != nil {
		return nil, err
	}
	if stats.ByRule, err = s.countBy(ctx, `SELECT rule_name, COUNT(*) FROM issues GROUP BY rule_name`); err != nil {
		return nil, err
	}
	if stats.TopFiles, err = s.countBy(ctx, `SELECT file_path, COUNT(*) AS cnt FROM issues
		WHERE file_path != '' GROUP BY file_path ORDER BY cnt DESC LIMIT 10`); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) countBy(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var count int64
		if err := rows.Scan(&key, &count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		out[key] = count
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func limit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}
