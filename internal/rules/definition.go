// Package rules loads and compiles the rule catalog used by the analyzers.
//
// A rule document is YAML with three categories (architecture, security,
// coding_standards). It is validated and compiled once into an immutable
// Catalog; there is no API to patch individual rules.
package rules

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is the on-disk shape of a rule document.
type Definition struct {
	Architecture    ArchitectureRules `yaml:"architecture" json:"architecture"`
	Security        SecurityRules     `yaml:"security" json:"security"`
	CodingStandards CodingStandards   `yaml:"coding_standards" json:"coding_standards"`
}

// ArchitectureRules groups the architecture rules by kind.
type ArchitectureRules struct {
	LayerViolations   []RuleDef `yaml:"layer_violations" json:"layer_violations"`
	DependencyRules   []RuleDef `yaml:"dependency_rules" json:"dependency_rules"`
	PatternViolations []RuleDef `yaml:"pattern_violations" json:"pattern_violations"`
}

// RuleDef is a single architecture rule as written in the document.
type RuleDef struct {
	Name         string `yaml:"name" json:"name"`
	Pattern      string `yaml:"pattern" json:"pattern"`
	Scope        string `yaml:"scope,omitempty" json:"scope,omitempty"`
	Message      string `yaml:"message" json:"message"`
	SuggestedFix string `yaml:"suggested_fix,omitempty" json:"suggested_fix,omitempty"`
}

// SecurityRules configures the security analyzer.
type SecurityRules struct {
	SQLInjectionPatterns []string       `yaml:"sql_injection_patterns" json:"sql_injection_patterns"`
	SecretPatterns       SecretPatterns `yaml:"secret_patterns" json:"secret_patterns"`
	InsecureConfigs      InsecureConfigs `yaml:"insecure_configs" json:"insecure_configs"`
}

// SecretPattern matches a hardcoded secret. Group 1 must capture the value.
type SecretPattern struct {
	Type    string `yaml:"type" json:"type"`
	Pattern string `yaml:"pattern" json:"pattern"`
}

// InsecureConfig is a named insecure configuration check.
type InsecureConfig struct {
	Name         string `yaml:"name" json:"name"`
	Pattern      string `yaml:"pattern" json:"pattern"`
	Message      string `yaml:"message" json:"message"`
	SuggestedFix string `yaml:"suggested_fix,omitempty" json:"suggested_fix,omitempty"`
}

// CodingStandards holds the thresholds used by the style analyzer.
type CodingStandards struct {
	MaxMethodLength int `yaml:"max_method_length" json:"max_method_length"`
	MaxNestingDepth int `yaml:"max_nesting_depth" json:"max_nesting_depth"`
}

// SecretPatterns keeps document order. It accepts either a list of
// {type, pattern} entries or a mapping of type to pattern.
type SecretPatterns []SecretPattern

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *SecretPatterns) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []SecretPattern
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	case yaml.MappingNode:
		out := make([]SecretPattern, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var pattern string
			if err := node.Content[i+1].Decode(&pattern); err != nil {
				return fmt.Errorf("secret pattern %q: %w", node.Content[i].Value, err)
			}
			out = append(out, SecretPattern{Type: node.Content[i].Value, Pattern: pattern})
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: secret_patterns must be a list or a mapping", node.Line)
	}
}

// InsecureConfigs keeps document order. It accepts either a list of
// entries with a name field or a mapping of name to entry.
type InsecureConfigs []InsecureConfig

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *InsecureConfigs) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []InsecureConfig
		if err := node.Decode(&list); err != nil {
			return err
		}
		*c = list
		return nil
	case yaml.MappingNode:
		out := make([]InsecureConfig, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var entry InsecureConfig
			if err := node.Content[i+1].Decode(&entry); err != nil {
				return fmt.Errorf("insecure config %q: %w", node.Content[i].Value, err)
			}
			entry.Name = node.Content[i].Value
			out = append(out, entry)
		}
		*c = out
		return nil
	default:
		return fmt.Errorf("line %d: insecure_configs must be a list or a mapping", node.Line)
	}
}
