package rules

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind distinguishes the three families of architecture rules.
type Kind string

const (
	KindLayerViolation   Kind = "layer_violation"
	KindDependencyRule   Kind = "dependency_rule"
	KindPatternViolation Kind = "pattern_violation"
)

// Catalog is the compiled, read-only rule set. It is safe for concurrent use.
type Catalog struct {
	Architecture []ArchitectureRule
	Security     SecurityCatalog
	Standards    CodingStandards
}

// ArchitectureRule is a compiled architecture rule.
type ArchitectureRule struct {
	Name         string
	Kind         Kind
	Message      string
	SuggestedFix string
	Pattern      *regexp.Regexp
	// Scope is nil when the rule applies to every file.
	Scope *regexp.Regexp
}

// AppliesTo reports whether the rule's scope matches path.
func (r ArchitectureRule) AppliesTo(path string) bool {
	return r.Scope == nil || r.Scope.MatchString(path)
}

// SecurityCatalog holds the compiled security checks.
type SecurityCatalog struct {
	SQLInjection    []*regexp.Regexp
	Secrets         []SecretCheck
	InsecureConfigs []ConfigCheck
}

// SecretCheck is a compiled, case-insensitive secret pattern.
type SecretCheck struct {
	Type    string
	Pattern *regexp.Regexp
}

// ConfigCheck is a compiled, case-insensitive insecure configuration check.
type ConfigCheck struct {
	Name         string
	Message      string
	SuggestedFix string
	Pattern      *regexp.Regexp
}

// Compile validates the definition and compiles every pattern.
func (d *Definition) Compile() (*Catalog, error) {
	if err := d.validateStandards(); err != nil {
		return nil, err
	}

	cat := &Catalog{Standards: d.CodingStandards}

	groups := []struct {
		kind  Kind
		rules []RuleDef
	}{
		{KindLayerViolation, d.Architecture.LayerViolations},
		{KindDependencyRule, d.Architecture.DependencyRules},
		{KindPatternViolation, d.Architecture.PatternViolations},
	}

	seen := make(map[string]bool)
	for _, g := range groups {
		for _, def := range g.rules {
			rule, err := compileArchitectureRule(g.kind, def)
			if err != nil {
				return nil, err
			}
			if seen[rule.Name] {
				return nil, &ConfigError{Rule: rule.Name, Field: "name", Message: "duplicate rule name"}
			}
			seen[rule.Name] = true
			cat.Architecture = append(cat.Architecture, rule)
		}
	}

	sec, err := compileSecurity(d.Security)
	if err != nil {
		return nil, err
	}
	cat.Security = sec

	return cat, nil
}

func (d *Definition) validateStandards() error {
	if d.CodingStandards.MaxMethodLength <= 0 {
		return &ConfigError{Field: "coding_standards.max_method_length", Message: "must be positive"}
	}
	if d.CodingStandards.MaxNestingDepth <= 0 {
		return &ConfigError{Field: "coding_standards.max_nesting_depth", Message: "must be positive"}
	}
	return nil
}

func compileArchitectureRule(kind Kind, def RuleDef) (ArchitectureRule, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return ArchitectureRule{}, &ConfigError{Field: "architecture." + string(kind) + ".name", Message: "name is required"}
	}
	if def.Pattern == "" {
		return ArchitectureRule{}, &ConfigError{Rule: name, Field: "pattern", Message: "pattern is required"}
	}
	if def.Message == "" {
		return ArchitectureRule{}, &ConfigError{Rule: name, Field: "message", Message: "message is required"}
	}

	pattern, err := regexp.Compile(def.Pattern)
	if err != nil {
		return ArchitectureRule{}, &PatternError{Rule: name, Pattern: def.Pattern, Err: err}
	}

	scope, err := CompileScope(def.Scope)
	if err != nil {
		return ArchitectureRule{}, &PatternError{Rule: name, Pattern: def.Scope, Err: err}
	}

	return ArchitectureRule{
		Name:         name,
		Kind:         kind,
		Message:      def.Message,
		SuggestedFix: def.SuggestedFix,
		Pattern:      pattern,
		Scope:        scope,
	}, nil
}

func compileSecurity(s SecurityRules) (SecurityCatalog, error) {
	var out SecurityCatalog

	for i, p := range s.SQLInjectionPatterns {
		name := fmt.Sprintf("sql_injection[%d]", i)
		if p == "" {
			return out, &ConfigError{Rule: name, Field: "pattern", Message: "pattern is required"}
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return out, &PatternError{Rule: name, Pattern: p, Err: err}
		}
		out.SQLInjection = append(out.SQLInjection, re)
	}

	for _, sp := range s.SecretPatterns {
		if sp.Type == "" {
			return out, &ConfigError{Field: "security.secret_patterns.type", Message: "type is required"}
		}
		if sp.Pattern == "" {
			return out, &ConfigError{Rule: sp.Type, Field: "pattern", Message: "pattern is required"}
		}
		re, err := regexp.Compile("(?i)" + sp.Pattern)
		if err != nil {
			return out, &PatternError{Rule: sp.Type, Pattern: sp.Pattern, Err: err}
		}
		if re.NumSubexp() < 1 {
			return out, &ConfigError{Rule: sp.Type, Field: "pattern", Message: "pattern must capture the secret value in group 1"}
		}
		out.Secrets = append(out.Secrets, SecretCheck{Type: sp.Type, Pattern: re})
	}

	for _, ic := range s.InsecureConfigs {
		if ic.Name == "" {
			return out, &ConfigError{Field: "security.insecure_configs.name", Message: "name is required"}
		}
		if ic.Pattern == "" {
			return out, &ConfigError{Rule: ic.Name, Field: "pattern", Message: "pattern is required"}
		}
		if ic.Message == "" {
			return out, &ConfigError{Rule: ic.Name, Field: "message", Message: "message is required"}
		}
		re, err := regexp.Compile("(?i)" + ic.Pattern)
		if err != nil {
			return out, &PatternError{Rule: ic.Name, Pattern: ic.Pattern, Err: err}
		}
		out.InsecureConfigs = append(out.InsecureConfigs, ConfigCheck{
			Name:         ic.Name,
			Message:      ic.Message,
			SuggestedFix: ic.SuggestedFix,
			Pattern:      re,
		})
	}

	return out, nil
}

// RuleNames lists the architecture rule names in evaluation order.
func (c *Catalog) RuleNames() []string {
	names := make([]string, 0, len(c.Architecture))
	for _, r := range c.Architecture {
		names = append(names, r.Name)
	}
	return names
}
