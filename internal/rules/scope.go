package rules

import (
	"regexp"
	"strings"
)

const (
	regexPrefix = "re:"
	globPrefix  = "glob:"
)

// CompileScope turns a scope into a regexp that must match at the start of
// a path. An empty scope returns nil, meaning "every path".
//
// A "re:" or "glob:" prefix picks the syntax. Without one, a scope is a
// glob when it has a '*' or '?' that cannot be a regex quantifier, as in
// "*/controller/*" or "app/*.py"; every other scope is a regex, so
// ".*/controller/.*" and "src/.*" keep their regex meaning. In a glob '*'
// matches any run of characters (including '/') and '?' matches one.
func CompileScope(scope string) (*regexp.Regexp, error) {
	scope = strings.TrimSpace(scope)
	switch {
	case strings.HasPrefix(scope, regexPrefix):
		return compileRegexScope(strings.TrimPrefix(scope, regexPrefix))
	case strings.HasPrefix(scope, globPrefix):
		return compileGlobScope(strings.TrimPrefix(scope, globPrefix))
	case isGlob(scope):
		return compileGlobScope(scope)
	default:
		return compileRegexScope(scope)
	}
}

func compileRegexScope(expr string) (*regexp.Regexp, error) {
	if expr = strings.TrimSpace(expr); expr == "" {
		return nil, nil
	}
	return regexp.Compile(`^(?:` + expr + `)`)
}

func compileGlobScope(glob string) (*regexp.Regexp, error) {
	if glob = strings.TrimSpace(glob); glob == "" {
		return nil, nil
	}
	return regexp.Compile(`^` + globToRegex(glob))
}

// isGlob reports whether s has a wildcard where a regex quantifier would
// make no sense: at the start, or after a plain character such as '/' or
// a letter. Wildcards after '.', ')', ']', '}', another quantifier or an
// escape sequence like `\d` are regex syntax, as is the "(?" group prefix.
func isGlob(s string) bool {
	escaped := false
	var prev rune
	for i, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '*' || r == '?':
			if i == 0 {
				return true
			}
			if r == '?' && prev == '(' {
				break
			}
			if !strings.ContainsRune(".)]}*?+", prev) && !escapedAt(s, i) {
				return true
			}
		}
		prev = r
	}
	return false
}

// escapedAt reports whether the character before byte offset i is itself
// escaped by a backslash, as in `\.*`.
func escapedAt(s string, i int) bool {
	if i < 2 {
		return false
	}
	backslashes := 0
	for j := i - 2; j >= 0 && s[j] == '\\'; j-- {
		backslashes++
	}
	return backslashes%2 == 1
}

func globToRegex(glob string) string {
	var b strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// MatchGlob reports whether the whole path matches a glob pattern.
func MatchGlob(pattern, path string) bool {
	re, err := regexp.Compile(`^` + globToRegex(pattern) + `$`)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}
