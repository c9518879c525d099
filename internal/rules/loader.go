package rules

import (
	"bytes"
	"embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/*.yaml
var embeddedRules embed.FS

const defaultRulesFile = "defaults/default.yaml"

// Loader loads the rule catalog from a file, falling back to the
// embedded defaults when no path is configured.
type Loader struct {
	path string
}

// NewLoader creates a new rule loader. An empty path selects the defaults.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads, validates and compiles the catalog.
func (l *Loader) Load() (*Catalog, error) {
	if l.path == "" {
		return LoadDefault()
	}
	return LoadFile(l.path)
}

// Source describes where the catalog comes from.
func (l *Loader) Source() string {
	if l.path == "" {
		return "embedded:" + defaultRulesFile
	}
	return l.path
}

// LoadDefault compiles the embedded default catalog.
func LoadDefault() (*Catalog, error) {
	data, err := DefaultDocument()
	if err != nil {
		return nil, err
	}
	return Load(data)
}

// DefaultDocument returns the raw embedded default rule document.
func DefaultDocument() ([]byte, error) {
	data, err := embeddedRules.ReadFile(defaultRulesFile)
	if err != nil {
		return nil, fmt.Errorf("reading embedded rules: %w", err)
	}
	return data, nil
}

// LoadFile reads and compiles a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	cat, err := Load(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cat, nil
}

// Load parses and compiles a catalog from a YAML document.
func Load(data []byte) (*Catalog, error) {
	def, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return def.Compile()
}

// Parse decodes a rule document without compiling it. Documents may nest
// the categories under a top-level "rules" key, as the service config does.
func Parse(data []byte) (*Definition, error) {
	var wrapper struct {
		Rules *Definition `yaml:"rules"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, &ConfigError{Field: "document", Message: err.Error()}
	}
	if wrapper.Rules != nil {
		return wrapper.Rules, nil
	}

	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&def); err != nil {
		return nil, &ConfigError{Field: "document", Message: err.Error()}
	}
	return &def, nil
}
