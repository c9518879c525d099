package rules

import "fmt"

// ConfigError reports a malformed rule definition.
type ConfigError struct {
	Rule    string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Rule == "" {
		return fmt.Sprintf("rule config error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("rule config error: rule %q: %s: %s", e.Rule, e.Field, e.Message)
}

// PatternError reports a pattern or scope that does not compile.
type PatternError struct {
	Rule    string
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("rule %q: invalid pattern %q: %v", e.Rule, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}
