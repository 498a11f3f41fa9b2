// Package weights validates criterion weight configurations and combines
// sub-scores into one overall score.
package weights

import (
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/idea-scorer/internal/model"
)

// Total is the value every weight configuration must sum to.
const Total = 100.0

// sumPrecision absorbs binary representation error when comparing the sum.
const sumPrecision = 1e9

// Config is a validated, immutable mapping of criterion name to weight.
type Config struct {
	weights map[string]float64
	names   []string
}

// NewConfig validates raw weights against the set of known criteria. It
// fails with a ConfigError when the map is empty, a weight is outside
// [0,100], a criterion has no scorer, or the weights do not sum to 100.
func NewConfig(raw map[string]float64, known func(name string) bool) (Config, error) {
	if len(raw) == 0 {
		return Config{}, model.NewConfigError("weights: no criteria configured")
	}

	var errs []string
	names := make([]string, 0, len(raw))
	sum := 0.0
	for name, w := range raw {
		names = append(names, name)
		sum += w
	}
	sort.Strings(names)

	for _, name := range names {
		w := raw[name]
		if math.IsNaN(w) || w < 0 || w > Total {
			errs = append(errs, "weight for "+name+" must be within [0,100]")
		}
		if known != nil && !known(name) {
			errs = append(errs, "no scorer registered for criterion "+name)
		}
	}

	if rounded := math.Round(sum*sumPrecision) / sumPrecision; rounded != Total {
		errs = append(errs, "weights sum to "+strconv.FormatFloat(sum, 'f', -1, 64)+", want 100")
	}

	if len(errs) > 0 {
		return Config{}, model.NewConfigError("weights: %s", strings.Join(errs, "; "))
	}

	copied := make(map[string]float64, len(raw))
	for k, v := range raw {
		copied[k] = v
	}
	return Config{weights: copied, names: names}, nil
}

// DefaultWeights returns the built-in weighting, which sums to 100.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"market_business_model":       35,
		"competitive_landscape":       15,
		"execution_team":              20,
		"risk_factors":                10,
		"network_platform_risks":      10,
		"social_environmental_impact": 10,
	}
}

// Default validates the built-in weighting against known.
func Default(known func(string) bool) (Config, error) {
	return NewConfig(DefaultWeights(), known)
}

// weightFile is the on-disk shape of a weight file.
type weightFile struct {
	Weights map[string]float64 `yaml:"weights"`
}

// LoadFile reads weights from a YAML file. Both a top-level "weights:" key
// and a bare criterion map are accepted.
func LoadFile(path string, known func(string) bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, eris.Wrapf(err, "weights: read %s", path)
	}

	var wf weightFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return Config{}, model.NewConfigError("weights: parse %s: %v", path, err)
	}
	raw := wf.Weights
	if len(raw) == 0 {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, model.NewConfigError("weights: parse %s: %v", path, err)
		}
	}
	return NewConfig(raw, known)
}

// Names returns the configured criteria in sorted order.
func (c Config) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Weight returns the weight of a criterion.
func (c Config) Weight(name string) (float64, bool) {
	w, ok := c.weights[name]
	return w, ok
}

// Map returns a copy of the weights.
func (c Config) Map() map[string]float64 {
	out := make(map[string]float64, len(c.weights))
	for k, v := range c.weights {
		out[k] = v
	}
	return out
}

// IsZero reports whether c was never constructed through NewConfig.
func (c Config) IsZero() bool { return len(c.weights) == 0 }

// Aggregate combines sub-scores into an overall score in [0,100]:
// round-half-even of the weighted sum over the configured criteria. A
// criterion missing from scores contributes zero.
func Aggregate(scores model.CriterionScores, cfg Config) int {
	total := 0.0
	for _, name := range cfg.names {
		total += cfg.weights[name] / Total * scores[name]
	}
	// Snap float noise before the half-even tie break.
	total = math.Round(total*sumPrecision) / sumPrecision
	out := int(math.RoundToEven(total))
	if out < 0 {
		return 0
	}
	if out > 100 {
		return 100
	}
	return out
}
