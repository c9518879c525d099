package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/JNZader/prreviewer/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleResult(id, repo string, number int, head string) *model.ReviewResult {
	return &model.ReviewResult{
		ID:                 id,
		Repository:         repo,
		PRNumber:           number,
		HeadSHA:            head,
		Summary:            "2 issues",
		ReviewTime:         0.5,
		TotalFilesReviewed: 2,
		Issues: []model.Issue{
			{
				Severity:     model.SeverityError,
				Message:      "Potential SQL injection vulnerability",
				FilePath:     "app/db.py",
				LineNumber:   model.Int(12),
				RuleName:     "sql_injection",
				SuggestedFix: model.String("Use parameterized queries"),
				Source:       model.SourceLocal,
			},
			{
				Severity: model.SeverityWarning,
				Message:  "Direct database access in controller layer",
				FilePath: "app/controller/users.py",
				RuleName: "no_db_in_controller",
				Source:   model.SourceLocal,
			},
		},
	}
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestRecordAndReviewed(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, sampleResult("r1", "acme/api", 7, "abc"), 99); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		repo   string
		number int
		head   string
		want   bool
	}{
		{"acme/api", 7, "abc", true},
		{"acme/api", 7, "def", false},
		{"acme/api", 8, "abc", false},
		{"acme/web", 7, "abc", false},
		{"acme/api", 7, "", false},
	}
	for _, tt := range tests {
		got, err := store.Reviewed(ctx, tt.repo, tt.number, tt.head)
		if err != nil {
			t.Fatalf("Reviewed() error = %v", err)
		}
		if got != tt.want {
			t.Errorf("Reviewed(%s#%d@%s) = %v, want %v", tt.repo, tt.number, tt.head, got, tt.want)
		}
	}
}

func TestRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	for _, r := range []*model.ReviewResult{
		sampleResult("r1", "acme/api", 1, "a"),
		sampleResult("r2", "acme/api", 2, "b"),
		sampleResult("r3", "acme/web", 3, "c"),
	} {
		if err := store.Record(ctx, r, 0); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	all, err := store.Recent(ctx, ListQuery{})
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Recent() returned %d reviews, want 3", len(all))
	}
	if all[0].ID != "r3" {
		t.Errorf("newest review first, got %s", all[0].ID)
	}
	if all[0].IssueCount != 2 || all[0].FilesReviewed != 2 {
		t.Errorf("unexpected counts: %+v", all[0])
	}

	api, err := store.Recent(ctx, ListQuery{Repository: "acme/api", Limit: 1})
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(api) != 1 || api[0].Repository != "acme/api" {
		t.Errorf("Recent(acme/api, 1) = %+v", api)
	}
}

func TestSearch(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleResult("r1", "acme/api", 7, "abc"), 0); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	tests := []struct {
		name  string
		query SearchQuery
		want  int
	}{
		{"full text", SearchQuery{Text: "injection"}, 1},
		{"suggestion text", SearchQuery{Text: "parameterized"}, 1},
		{"severity", SearchQuery{Severity: "warning"}, 1},
		{"rule", SearchQuery{Rule: "sql_injection"}, 1},
		{"repository", SearchQuery{Repository: "acme/api"}, 2},
		{"other repository", SearchQuery{Repository: "acme/web"}, 0},
		{"no match", SearchQuery{Text: "nonexistent"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Search(ctx, tt.query)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(got) != tt.want {
				t.Errorf("Search() returned %d issues, want %d", len(got), tt.want)
			}
		})
	}

	got, _ := store.Search(ctx, SearchQuery{Rule: "sql_injection"})
	if len(got) == 1 {
		rec := got[0]
		if rec.Line != 12 || rec.Suggestion != "Use parameterized queries" || rec.PRNumber != 7 {
			t.Errorf("unexpected record: %+v", rec)
		}
	}
}

func TestStats(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, r := range []*model.ReviewResult{
		sampleResult("r1", "acme/api", 1, "a"),
		sampleResult("r2", "acme/api", 2, "b"),
	} {
		if err := store.Record(ctx, r, 0); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.TotalReviews != 2 || stats.TotalIssues != 4 {
		t.Errorf("totals = %d reviews, %d issues", stats.TotalReviews, stats.TotalIssues)
	}
	if stats.BySeverity["error"] != 2 || stats.ByRule["no_db_in_controller"] != 2 {
		t.Errorf("unexpected breakdown: %+v", stats)
	}
	if stats.TopFiles["app/db.py"] != 2 {
		t.Errorf("TopFiles = %v", stats.TopFiles)
	}
}

func TestRecordDuplicateIDFails(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Record(ctx, sampleResult("r1", "acme/api", 1, "a"), 0); err != nil {
		t.Fatal(err)
	}
	if err := store.Record(ctx, sampleResult("r1", "acme/api", 1, "a"), 0); err == nil {
		t.Error("expected an error for a duplicate review id")
	}

	// The failed transaction must not leave orphan issues behind.
	stats, _ := store.Stats(ctx)
	if stats.TotalIssues != 2 {
		t.Errorf("TotalIssues = %d, want 2", stats.TotalIssues)
	}
}
