package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/prreviewer/internal/local"
	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

type fakeReviewer struct {
	got *model.PRContext
	err error
}

func (f *fakeReviewer) Review(_ context.Context, prc *model.PRContext) (*model.ReviewResult, error) {
	f.got = prc
	if f.err != nil {
		return nil, f.err
	}
	return &model.ReviewResult{
		Repository:         prc.Repository,
		TotalFilesReviewed: len(prc.DiffContent),
		Issues: []model.Issue{{
			Severity: model.SeverityWarning, Message: "found", FilePath: "a.py",
			LineNumber: model.Int(1), RuleName: "r",
		}},
	}, nil
}

func newTestServer(t *testing.T, rev Reviewer) *Server {
	t.Helper()
	cat, err := rules.LoadDefault()
	require.NoError(t, err)

	s := NewServer("prreviewer", "test", logger.Nop())
	RegisterReviewTools(s, Tools{
		Reviewer: rev,
		Source:   local.NewSource([]string{"*/vendor/*"}, 0, logger.Nop()),
		Catalog:  cat,
	})
	return s
}

// roundTrip sends each request line and decodes every response line.
func roundTrip(t *testing.T, s *Server, lines ...string) []JSONRPCResponse {
	t.Helper()
	var out strings.Builder
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out))

	var responses []JSONRPCResponse
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	scanner.Buffer(make([]byte, 1<<20), 1<<20)
	for scanner.Scan() {
		var resp JSONRPCResponse
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	return responses
}

func toolText(t *testing.T, resp JSONRPCResponse) (string, bool) {
	t.Helper()
	result, ok := resp.Result.(map[string]interface{})
	require.True(t, ok, "result = %#v", resp.Result)
	content := result["content"].([]interface{})
	text := content[0].(map[string]interface{})["text"].(string)
	isErr, _ := result["isError"].(bool)
	return text, isErr
}

func TestServerInitializeAndList(t *testing.T) {
	s := newTestServer(t, &fakeReviewer{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"ping"}`,
	)
	require.Len(t, responses, 3)

	info := responses[0].Result.(map[string]interface{})
	assert.Equal(t, protocolVersion, info["protocolVersion"])
	assert.Equal(t, "prreviewer", info["serverInfo"].(map[string]interface{})["name"])

	tools := responses[1].Result.(map[string]interface{})["tools"].([]interface{})
	var names []string
	for _, tool := range tools {
		names = append(names, tool.(map[string]interface{})["name"].(string))
	}
	assert.Equal(t, []string{"list_rules", "review_diff", "review_files"}, names)
}

func TestServerErrors(t *testing.T) {
	s := newTestServer(t, &fakeReviewer{})
	responses := roundTrip(t, s,
		`not json`,
		`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"nope"}}`,
	)
	require.Len(t, responses, 3)
	assert.Equal(t, -32700, responses[0].Error.Code)
	assert.Equal(t, -32601, responses[1].Error.Code)
	assert.Equal(t, -32602, responses[2].Error.Code)
}

func TestReviewDiffTool(t *testing.T) {
	rev := &fakeReviewer{}
	s := newTestServer(t, rev)

	diff := "diff --git a/a.py b/a.py\\n--- a/a.py\\n+++ b/a.py\\n@@ -1 +1 @@\\n-x\\n+y = 1\\n"
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"review_diff","arguments":{"diff":"`+diff+`","name":"demo"}}}`,
	)
	require.Len(t, responses, 1)

	text, isErr := toolText(t, responses[0])
	assert.False(t, isErr)

	var result model.ReviewResult
	require.NoError(t, json.Unmarshal([]byte(text), &result))
	assert.Equal(t, "local/demo", result.Repository)
	assert.Equal(t, "y = 1\n", rev.got.DiffContent["a.py"])
}

func TestReviewFilesTool(t *testing.T) {
	rev := &fakeReviewer{}
	s := newTestServer(t, rev)

	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"review_files","arguments":{"format":"markdown","files":{"b.py":"b","a.py":"a","lib/vendor/x.py":"v"}}}}`,
	)
	text, isErr := toolText(t, responses[0])
	assert.False(t, isErr)
	assert.Contains(t, text, "# Code Review Report")
	assert.Equal(t, []string{"a.py", "b.py"}, rev.got.FilesChanged)
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t, &fakeReviewer{err: errors.New("boom")})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"review_diff","arguments":{}}}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"review_files","arguments":{"files":{"a.py":"x"}}}}`,
	)
	require.Len(t, responses, 2)

	text, isErr := toolText(t, responses[0])
	assert.True(t, isErr)
	assert.Contains(t, text, "diff is required")

	text, isErr = toolText(t, responses[1])
	assert.True(t, isErr)
	assert.Contains(t, text, "boom")
}

func TestListRulesTool(t *testing.T) {
	s := newTestServer(t, &fakeReviewer{})
	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_rules"}}`,
	)
	text, _ := toolText(t, responses[0])
	assert.Contains(t, text, `"no_db_in_controller"`)
	assert.Contains(t, text, `"max_method_length": 50`)
}

type fakeContexter struct{ repo, path string }

func (f *fakeContexter) FileContext(_ context.Context, repo, path string) (map[string]interface{}, error) {
	f.repo, f.path = repo, path
	return map[string]interface{}{"owners": []string{"team-api"}}, nil
}

func TestFileContextTool(t *testing.T) {
	cat, err := rules.LoadDefault()
	require.NoError(t, err)

	fc := &fakeContexter{}
	s := NewServer("prreviewer", "test", logger.Nop())
	RegisterReviewTools(s, Tools{
		Reviewer: &fakeReviewer{},
		Source:   local.NewSource(nil, 0, logger.Nop()),
		Catalog:  cat,
		Context:  fc,
	})

	responses := roundTrip(t, s,
		`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"file_context","arguments":{"repository":"acme/api","path":"app/db.py"}}}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"file_context","arguments":{"path":"app/db.py"}}}`,
	)
	require.Len(t, responses, 3)

	tools := responses[0].Result.(map[string]interface{})["tools"].([]interface{})
	assert.Len(t, tools, 4)

	text, isErr := toolText(t, responses[1])
	assert.False(t, isErr)
	assert.Contains(t, text, "team-api")
	assert.Equal(t, "acme/api", fc.repo)
	assert.Equal(t, "app/db.py", fc.path)

	text, isErr = toolText(t, responses[2])
	assert.True(t, isErr)
	assert.Contains(t, text, "repository and path are required")
}
