package analyzer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JNZader/prreviewer/internal/logger"
	"github.com/JNZader/prreviewer/internal/model"
	"github.com/JNZader/prreviewer/internal/rules"
)

func defaultCatalog(t *testing.T) *rules.Catalog {
	t.Helper()
	cat, err := rules.LoadDefault()
	require.NoError(t, err)
	return cat
}

func catalogFrom(t *testing.T, doc string) *rules.Catalog {
	t.Helper()
	cat, err := rules.Load([]byte(doc))
	require.NoError(t, err)
	return cat
}

func TestSplitLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"single", "a", []string{"a"}},
		{"trailing newline", "a\nb\n", []string{"a", "b"}},
		{"crlf", "a\r\nb\r\n", []string{"a", "b"}},
		{"bare cr", "a\rb", []string{"a", "b"}},
		{"blank lines kept", "a\n\nb", []string{"a", "", "b"}},
		{"only newline", "\n", []string{""}},
		{"cr then blank lf", "a\r\r\nb", []string{"a", "", "b"}},
		{"vertical tab and form feed", "a\vb\fc", []string{"a", "b", "c"}},
		{"separators", "a\x1cb\x1dc\x1ed", []string{"a", "b", "c", "d"}},
		{"next line", "a\u0085b", []string{"a", "b"}},
		{"unicode separators", "a\u2028b\u2029", []string{"a", "b"}},
		{"multibyte text kept", "é\u2028ü", []string{"é", "ü"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitLines(tt.in))
		})
	}
}

func TestLineAt(t *testing.T) {
	text := "one\ntwo\nthree"
	assert.Equal(t, 1, lineAt(text, 0))
	assert.Equal(t, 2, lineAt(text, 4))
	assert.Equal(t, 3, lineAt(text, strings.Index(text, "three")))
}

func TestArchitectureScopedRule(t *testing.T) {
	a := NewArchitecture(defaultCatalog(t), logger.Nop())
	text := "def index():\n    users = repository.find_all()\n"

	issues, err := a.Analyze("app/controller/users.py", text)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, model.SeverityError, got.Severity)
	assert.Equal(t, "no_db_in_controller", got.RuleName)
	assert.Equal(t, "Direct database access in controller layer", got.Message)
	assert.Equal(t, 2, got.Line())
	assert.Equal(t, "users = repository.find_all()", got.Snippet())
	assert.Equal(t, "Move data access into a service or repository layer", got.Fix())
	assert.Equal(t, model.SourceLocal, got.Source)

	issues, err = a.Analyze("app/models/users.py", text)
	require.NoError(t, err)
	assert.Empty(t, issues, "scope must exclude paths outside the controller layer")
}

func TestArchitectureUniversalRule(t *testing.T) {
	a := NewArchitecture(defaultCatalog(t), logger.Nop())

	for _, path := range []string{"a.py", "deep/nested/path/b.java", "c"} {
		issues, err := a.Analyze(path, "class A:\n    @staticmethod\n    def f(): pass\n")
		require.NoError(t, err)
		require.Len(t, issues, 1, path)
		assert.Equal(t, "no_static_utils", issues[0].RuleName)
		assert.Equal(t, 2, issues[0].Line())
		assert.Nil(t, issues[0].SuggestedFix)
	}
}

func TestArchitectureOneIssuePerMatchingLine(t *testing.T) {
	cat := catalogFrom(t, `
architecture:
  pattern_violations:
    - name: no_print
      pattern: 'print\('
      message: Use the logger
coding_standards:
  max_method_length: 50
  max_nesting_depth: 4
`)
	a := NewArchitecture(cat, logger.Nop())

	issues, err := a.Analyze("x.py", "print(1); print(2)\nok\n  print(3)\n")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 1, issues[0].Line())
	assert.Equal(t, 3, issues[1].Line())
	assert.Equal(t, "print(3)", issues[1].Snippet())
}

func TestStyleNestingDepth(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	text := "x\n" + strings.Repeat(" ", 16) + "four\n" + strings.Repeat(" ", 20) + "five\n"
	issues, err := s.Analyze("a.py", text)
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleMaxNestingDepth, issues[0].RuleName)
	assert.Equal(t, "Code nesting depth exceeds maximum of 4", issues[0].Message)
	assert.Equal(t, 3, issues[0].Line())
	assert.Equal(t, "Consider restructuring to reduce nesting", issues[0].Fix())
	assert.Nil(t, issues[0].CodeSnippet)
}

func TestStyleNestingCountsTabsAsOne(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	issues, err := s.Analyze("a.go", strings.Repeat("\t", 19)+"x\n")
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestStyleMethodLength(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	var b strings.Builder
	b.WriteString("def first():\n")
	for i := 0; i < 50; i++ {
		b.WriteString("  x\n")
	}
	b.WriteString("def second():\n")
	b.WriteString("  y\n")

	issues, err := s.Analyze("m.py", b.String())
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, RuleMaxMethodLength, issues[0].RuleName)
	assert.Equal(t, model.SeverityWarning, issues[0].Severity)
	assert.Equal(t, "Method exceeds maximum length of 50 lines", issues[0].Message)
	assert.Equal(t, 1, issues[0].Line())
	assert.Equal(t, "Consider breaking down the method into smaller functions", issues[0].Fix())
}

func TestStyleMethodLengthNotFlushedAtEOF(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	text := "def only():\n" + strings.Repeat("  x\n", 60)
	issues, err := s.Analyze("m.py", text)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestStyleMethodExactlyAtLimit(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	// 1 declaration + 49 body lines = 50, which is allowed.
	text := "def a():\n" + strings.Repeat("  x\n", 49) + "def b():\n"
	issues, err := s.Analyze("m.py", text)
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestStyleNaming(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	text := "class widget:\n    pass\ndef Build():\n    pass\n"
	issues, err := s.Analyze("n.py", text)
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "Invalid class name convention", issues[0].Message)
	assert.Equal(t, "Follow class naming convention", issues[0].Fix())
	assert.Equal(t, 1, issues[0].Line())

	assert.Equal(t, "Invalid method name convention", issues[1].Message)
	assert.Equal(t, 3, issues[1].Line())
	for _, issue := range issues {
		assert.Equal(t, RuleNamingConvention, issue.RuleName)
		assert.Equal(t, model.SeverityWarning, issue.Severity)
	}
}

func TestStyleNamingVariable(t *testing.T) {
	s := NewStyle(defaultCatalog(t), logger.Nop())

	issues, err := s.Analyze("v.py", "ok = 1\nCount = 2\n")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, "Invalid variable name convention", issues[0].Message)
	assert.Equal(t, 2, issues[0].Line())
}

func TestSecretRedaction(t *testing.T) {
	sec := NewSecurity(defaultCatalog(t), logger.Nop())

	issues, err := sec.Analyze("settings.py", `api_key = "abcdef0123456789"`)
	require.NoError(t, err)
	require.Len(t, issues, 1)

	got := issues[0]
	assert.Equal(t, RuleHardcodedSecret, got.RuleName)
	assert.Equal(t, "Hardcoded api_key detected", got.Message)
	assert.Equal(t, 1, got.Line())
	assert.Equal(t, `api_key = "`+strings.Repeat("*", 16)+`"`, got.Snippet())
	assert.NotContains(t, got.Snippet(), "abcdef0123456789")
	assert.Equal(t, "Use environment variables or a secure secret management system", got.Fix())
}

func TestSQLInjection(t *testing.T) {
	sec := NewSecurity(defaultCatalog(t), logger.Nop())

	text := "rows = []\ncursor.execute(\"SELECT * FROM users WHERE id = %s\" % uid)\n"
	issues, err := sec.Analyze("db.py", text)
	require.NoError(t, err)
	require.NotEmpty(t, issues)

	got := issues[0]
	assert.Equal(t, RuleSQLInjection, got.RuleName)
	assert.Equal(t, "Potential SQL injection vulnerability detected", got.Message)
	assert.Equal(t, 2, got.Line())
	assert.True(t, strings.HasPrefix(got.Snippet(), "execute("))
	assert.Equal(t, "Use parameterized queries or an ORM", got.Fix())
}

func TestInsecureConfigs(t *testing.T) {
	sec := NewSecurity(defaultCatalog(t), logger.Nop())

	tests := []struct {
		text string
		rule string
	}{
		{"DEBUG = True", "insecure_config_debug_mode"},
		{"requests.get(url, verify=False)", "insecure_config_ssl_verify"},
		{`origins = "*"`, "insecure_config_cors_all"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			issues, err := sec.Analyze("cfg.py", tt.text)
			require.NoError(t, err)

			var found bool
			for _, issue := range issues {
				if issue.RuleName == tt.rule {
					found = true
					assert.Equal(t, model.SeverityError, issue.Severity)
					assert.NotEmpty(t, issue.Message)
				}
			}
			assert.True(t, found, "expected %s in %+v", tt.rule, issues)
		})
	}
}

func TestAnalyzersAreIdempotent(t *testing.T) {
	cat := defaultCatalog(t)
	text := "class widget:\n" + strings.Repeat(" ", 24) + `token = "abcdefgh1234"` + "\nDEBUG = True\n"

	for _, a := range All(cat, logger.Nop()) {
		first, err := a.Analyze("app/controller/x.py", text)
		require.NoError(t, err)
		second, err := a.Analyze("app/controller/x.py", text)
		require.NoError(t, err)
		assert.Equal(t, first, second, a.Name())
	}
}

func TestAllOrder(t *testing.T) {
	var names []string
	for _, a := range All(defaultCatalog(t), logger.Nop()) {
		names = append(names, a.Name())
	}
	assert.Equal(t, []string{CategoryArchitecture, CategoryStyle, CategorySecurity}, names)
}

func TestRedactSecret(t *testing.T) {
	assert.Equal(t, `k="****"`, RedactSecret(`k="abcd"`, "abcd"))
	assert.Equal(t, "unchanged", RedactSecret("unchanged", ""))
}
