package risk

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
)

const scorePrefix = "score."

type predicate func(n *model.NormalizedIdea, s model.CriterionScores) bool

type compiledRule struct {
	flag     string
	severity model.Severity
	all      []predicate
	any      []predicate
}

func (r compiledRule) matches(n *model.NormalizedIdea, s model.CriterionScores) bool {
	for _, p := range r.all {
		if !p(n, s) {
			return false
		}
	}
	if len(r.any) == 0 {
		return true
	}
	for _, p := range r.any {
		if p(n, s) {
			return true
		}
	}
	return false
}

// Engine holds a compiled rule set. It is immutable and safe for concurrent
// use.
type Engine struct {
	rules []compiledRule
}

// Compile validates rules and turns them into predicates. Unknown flags,
// fields, operators, severities or ill-typed values fail with a ConfigError.
// known reports which criteria a score.<criterion> field may name; nil
// accepts any.
func Compile(rules []Rule, known func(string) bool) (*Engine, error) {
	var errs []string
	eng := &Engine{rules: make([]compiledRule, 0, len(rules))}

	for i, r := range rules {
		where := fmt.Sprintf("rule %d (%s)", i+1, r.Flag)
		if !slices.Contains(model.FlagVocabulary, r.Flag) {
			errs = append(errs, where+": unknown flag")
		}
		if r.Severity != "" && r.Severity.Rank() == 0 {
			errs = append(errs, fmt.Sprintf("%s: unknown severity %q", where, r.Severity))
		}
		if len(r.All) == 0 && len(r.Any) == 0 {
			errs = append(errs, where+": no conditions")
		}

		cr := compiledRule{flag: r.Flag, severity: r.Severity}
		for _, c := range r.All {
			p, err := compileCondition(c, known)
			if err != nil {
				errs = append(errs, where+": "+err.Error())
				continue
			}
			cr.all = append(cr.all, p)
		}
		for _, c := range r.Any {
			p, err := compileCondition(c, known)
			if err != nil {
				errs = append(errs, where+": "+err.Error())
				continue
			}
			cr.any = append(cr.any, p)
		}
		eng.rules = append(eng.rules, cr)
	}

	if len(errs) > 0 {
		return nil, model.NewConfigError("risk: %s", strings.Join(errs, "; "))
	}
	return eng, nil
}

// Len returns the number of compiled rules.
func (e *Engine) Len() int { return len(e.rules) }

// Evaluate runs every rule against the idea. The result is a set: one entry
// per flag name carrying the highest severity any matching rule assigned,
// sorted by name.
func (e *Engine) Evaluate(n *model.NormalizedIdea, scores model.CriterionScores) []model.RiskFlag {
	raised := make(map[string]model.Severity)
	for _, r := range e.rules {
		if !r.matches(n, scores) {
			continue
		}
		if cur, ok := raised[r.flag]; !ok || r.severity.Rank() > cur.Rank() {
			raised[r.flag] = r.severity
		}
	}

	flags := make([]model.RiskFlag, 0, len(raised))
	for name, sev := range raised {
		flags = append(flags, model.RiskFlag{Name: name, Severity: sev})
	}
	model.SortFlags(flags)
	return flags
}

// compileCondition resolves the field accessor and builds the comparison.
func compileCondition(c Condition, known func(string) bool) (predicate, error) {
	get, kind, err := accessor(c.Field, known)
	if err != nil {
		return nil, err
	}

	switch c.Op {
	case "gt", "gte", "lt", "lte":
		if kind != kindNumber {
			return nil, eris.Errorf("%s: op %s needs a numeric field", c.Field, c.Op)
		}
		want, ok := toFloat(c.Value)
		if !ok {
			return nil, eris.Errorf("%s: op %s needs a numeric value", c.Field, c.Op)
		}
		cmp := numericOps[c.Op]
		return func(n *model.NormalizedIdea, s model.CriterionScores) bool {
			v, ok := get(n, s)
			if !ok {
				return false
			}
			f, _ := v.(float64)
			return cmp(f, want)
		}, nil

	case "eq", "ne":
		eq, err := equality(c.Field, kind, c.Value)
		if err != nil {
			return nil, err
		}
		negate := c.Op == "ne"
		return func(n *model.NormalizedIdea, s model.CriterionScores) bool {
			v, ok := get(n, s)
			if !ok {
				return false
			}
			return eq(v) != negate
		}, nil

	case "in":
		list, ok := c.Value.([]any)
		if !ok || len(list) == 0 {
			return nil, eris.Errorf("%s: op in needs a non-empty list", c.Field)
		}
		eqs := make([]func(any) bool, 0, len(list))
		for _, item := range list {
			eq, err := equality(c.Field, kind, item)
			if err != nil {
				return nil, err
			}
			eqs = append(eqs, eq)
		}
		return func(n *model.NormalizedIdea, s model.CriterionScores) bool {
			v, ok := get(n, s)
			if !ok {
				return false
			}
			for _, eq := range eqs {
				if eq(v) {
					return true
				}
			}
			return false
		}, nil

	case "contains":
		if kind != kindString {
			return nil, eris.Errorf("%s: op contains needs a text field", c.Field)
		}
		sub, ok := c.Value.(string)
		if !ok || sub == "" {
			return nil, eris.Errorf("%s: op contains needs a text value", c.Field)
		}
		sub = strings.ToLower(sub)
		return func(n *model.NormalizedIdea, s model.CriterionScores) bool {
			v, ok := get(n, s)
			if !ok {
				return false
			}
			str, _ := v.(string)
			return strings.Contains(strings.ToLower(str), sub)
		}, nil

	case "imputed":
		if strings.HasPrefix(c.Field, scorePrefix) {
			return nil, eris.Errorf("%s: op imputed applies to idea fields only", c.Field)
		}
		want, ok := c.Value.(bool)
		if !ok {
			return nil, eris.Errorf("%s: op imputed needs true or false", c.Field)
		}
		field := c.Field
		return func(n *model.NormalizedIdea, _ model.CriterionScores) bool {
			return n.IsImputed(field) == want
		}, nil
	}

	return nil, eris.Errorf("%s: unknown op %q", c.Field, c.Op)
}

var numericOps = map[string]func(a, b float64) bool{
	"gt":  func(a, b float64) bool { return a > b },
	"gte": func(a, b float64) bool { return a >= b },
	"lt":  func(a, b float64) bool { return a < b },
	"lte": func(a, b float64) bool { return a <= b },
}

type valueKind int

const (
	kindNumber valueKind = iota
	kindString
	kindBool
)

type getter func(n *model.NormalizedIdea, s model.CriterionScores) (any, bool)

// accessor returns a getter for field and the kind of value it yields.
func accessor(field string, known func(string) bool) (getter, valueKind, error) {
	if crit, ok := strings.CutPrefix(field, scorePrefix); ok {
		if crit == "" {
			return nil, 0, eris.Errorf("%s: empty criterion name", field)
		}
		if known != nil && !known(crit) {
			return nil, 0, eris.Errorf("unknown field %q: no criterion %q", field, crit)
		}
		return func(_ *model.NormalizedIdea, s model.CriterionScores) (any, bool) {
			v, ok := s[crit]
			return v, ok
		}, kindNumber, nil
	}

	var blank model.NormalizedIdea
	zero, ok := blank.Field(field)
	if !ok {
		return nil, 0, eris.Errorf("unknown field %q", field)
	}
	kind := kindString
	switch zero.(type) {
	case float64:
		kind = kindNumber
	case bool:
		kind = kindBool
	}
	return func(n *model.NormalizedIdea, _ model.CriterionScores) (any, bool) {
		return n.Field(field)
	}, kind, nil
}

// equality builds a comparison against want for a field of the given kind.
// Text compares case-insensitively.
func equality(field string, kind valueKind, want any) (func(any) bool, error) {
	switch kind {
	case kindNumber:
		f, ok := toFloat(want)
		if !ok {
			return nil, eris.Errorf("%s: expected a numeric value, got %v", field, want)
		}
		return func(v any) bool {
			g, _ := v.(float64)
			return g == f
		}, nil
	case kindBool:
		b, ok := want.(bool)
		if !ok {
			return nil, eris.Errorf("%s: expected true or false, got %v", field, want)
		}
		return func(v any) bool {
			g, _ := v.(bool)
			return g == b
		}, nil
	default:
		var s string
		switch w := want.(type) {
		case string:
			s = w
		case bool:
			// YAML reads bare yes/no as booleans.
			s = map[bool]string{true: "yes", false: "no"}[w]
		default:
			return nil, eris.Errorf("%s: expected a text value, got %v", field, want)
		}
		return func(v any) bool {
			g, _ := v.(string)
			return strings.EqualFold(g, s)
		}, nil
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
