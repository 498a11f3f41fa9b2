// Package risk evaluates configurable rule predicates over a normalized idea
// and its criterion scores, producing a set of risk flags.
package risk

import (
	_ "embed"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-scorer/internal/model"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Condition is one predicate over a field. Field is a normalized field name
// or "score.<criterion>".
type Condition struct {
	Field string `yaml:"field"`
	Op    string `yaml:"op"`
	Value any    `yaml:"value"`
}

// Rule raises Flag when every All condition holds and, if Any is non-empty,
// at least one Any condition holds.
type Rule struct {
	Flag        string         `yaml:"flag"`
	Severity    model.Severity `yaml:"severity,omitempty"`
	Description string         `yaml:"description,omitempty"`
	All         []Condition    `yaml:"all,omitempty"`
	Any         []Condition    `yaml:"any,omitempty"`
}

// RuleFile is the on-disk shape of a rule file.
type RuleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Parse decodes and compiles a YAML rule file. known is passed to Compile.
func Parse(data []byte, known func(string) bool) (*Engine, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, model.NewConfigError("risk: parse rules: %v", err)
	}
	return Compile(rf.Rules, known)
}

// LoadFile reads and compiles a rule file.
func LoadFile(path string, known func(string) bool) (*Engine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: read rules %s", path)
	}
	eng, err := Parse(data, known)
	if err != nil {
		return nil, eris.Wrapf(err, "risk: load %s", path)
	}
	return eng, nil
}

// Default compiles the built-in rule set.
func Default(known func(string) bool) (*Engine, error) {
	return Parse(defaultRules, known)
}

// DefaultRules returns the built-in rule file contents.
func DefaultRules() []byte {
	out := make([]byte, len(defaultRules))
	copy(out, defaultRules)
	return out
}
