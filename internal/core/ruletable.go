package core

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRuleTable []byte

// CategoryRules is one category of the static rule table with its ordered patterns
type CategoryRules struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Patterns    []string `yaml:"patterns"`
}

// RuleTable is the hand-authored, versioned category -> pattern mapping.
// Declaration order is significant: it is the match priority.
type RuleTable struct {
	Version    string          `yaml:"version"`
	Categories []CategoryRules `yaml:"categories"`
}

// DefaultRuleTable returns the built-in rule table
func DefaultRuleTable() (*RuleTable, error) {
	return ParseRuleTable(defaultRuleTable)
}

// LoadRuleTable reads a rule table from a YAML file
func LoadRuleTable(path string) (*RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule table: %w", err)
	}
	return ParseRuleTable(data)
}

// ParseRuleTable decodes and validates a YAML rule table
func ParseRuleTable(data []byte) (*RuleTable, error) {
	var t RuleTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse rule table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks category names are unique and every pattern compiles
func (t *RuleTable) Validate() error {
	if len(t.Categories) == 0 {
		return fmt.Errorf("rule table %q declares no categories", t.Version)
	}
	seen := make(map[string]bool, len(t.Categories))
	for _, c := range t.Categories {
		if c.Name == "" {
			return fmt.Errorf("rule table %q has a category without a name", t.Version)
		}
		if c.Name == CategoryUnclassified {
			return fmt.Errorf("category name %q is reserved", c.Name)
		}
		if seen[c.Name] {
			return fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
		for _, p := range c.Patterns {
			if _, err := compilePattern(p, 0); err != nil {
				return fmt.Errorf("category %s: invalid pattern %q: %w", c.Name, p, err)
			}
		}
	}
	return nil
}

// CategoryNames returns the category names in declaration order
func (t *RuleTable) CategoryNames() []string {
	names := make([]string, len(t.Categories))
	for i, c := range t.Categories {
		names[i] = c.Name
	}
	return names
}

// HasCategory reports whether name is a declared category
func (t *RuleTable) HasCategory(name string) bool {
	for _, c := range t.Categories {
		if c.Name == name {
			return true
		}
	}
	return false
}
