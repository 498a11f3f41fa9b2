package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/idea-scorer/internal/model"
)

// amountPattern matches a number with an optional unit suffix, e.g.
// "$2.5B", "300k", "5 million", "1,200".
var amountPattern = regexp.MustCompile(`^([+-]?[0-9]*\.?[0-9]+(?:e[+-]?[0-9]+)?)\s*([a-z]*)$`)

// unitMultipliers scale a suffixed amount to plain USD.
var unitMultipliers = map[string]float64{
	"":         0,
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"mn":       1e6,
	"mil":      1e6,
	"million":  1e6,
	"b":        1e9,
	"bn":       1e9,
	"billion":  1e9,
	"t":        1e12,
	"tn":       1e12,
	"trillion": 1e12,
}

// ratingWords maps textual ratings onto the 0-10 scale.
var ratingWords = map[string]float64{
	"none":        0,
	"very low":    1,
	"minimal":     1,
	"low":         2,
	"limited":     3,
	"some":        4,
	"moderate":    5,
	"medium":      5,
	"average":     5,
	"high":        8,
	"strong":      8,
	"significant": 8,
	"very high":   9,
	"intense":     9,
	"extensive":   9,
	"extreme":     10,
	"saturated":   10,
}

var trueWords = map[string]bool{
	"yes": true, "y": true, "true": true, "t": true, "1": true,
	"high": true, "strong": true, "positive": true,
}

var falseWords = map[string]bool{
	"no": true, "n": true, "false": true, "f": true, "0": true,
	"low": true, "weak": true, "negative": true, "none": true,
}

// cleanNumeric strips currency symbols, thousands separators, percent signs
// and surrounding whitespace, and lower-cases the rest.
func cleanNumeric(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("$", "", ",", "", "%", "", "usd", "", "_", "").Replace(s)
	return strings.TrimSpace(s)
}

// parseNumber coerces a raw value to a float. Non-numeric input reports false.
func parseNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(cleanNumeric(x), 64)
		if err != nil {
			return 0, false
		}
		return finite(f)
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseAmount parses a monetary value. The returned multiplier is zero when
// no unit suffix was present.
func parseAmount(v any) (value, multiplier float64, ok bool) {
	if s, isStr := v.(string); isStr {
		m := amountPattern.FindStringSubmatch(cleanNumeric(s))
		if m == nil {
			return 0, 0, false
		}
		mult, known := unitMultipliers[m[2]]
		if !known {
			return 0, 0, false
		}
		f, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, 0, false
		}
		f, ok = finite(f)
		return f, mult, ok
	}
	f, ok := parseNumber(v)
	return f, 0, ok
}

// parseMarketSize returns a market size in USD millions. Bare numbers are
// taken to already be in millions.
func parseMarketSize(v any) (float64, bool) {
	f, mult, ok := parseAmount(v)
	if !ok || f < 0 {
		return 0, false
	}
	if mult == 0 {
		return f, true
	}
	return f * mult / 1e6, true
}

// parseUSD returns a plain USD amount.
func parseUSD(v any) (float64, bool) {
	f, mult, ok := parseAmount(v)
	if !ok || f < 0 {
		return 0, false
	}
	if mult == 0 {
		return f, true
	}
	return f * mult, true
}

// parseRating coerces a 0-10 rating. Out-of-range values count as missing.
func parseRating(v any) (float64, bool) {
	if s, isStr := v.(string); isStr {
		if r, ok := ratingWords[wordsOnly(s)]; ok {
			return r, true
		}
		s = strings.TrimSpace(s)
		if i := strings.Index(s, "/"); i > 0 {
			s = s[:i]
		}
		v = s
	}
	f, ok := parseNumber(v)
	if !ok || f < 0 || f > 10 {
		return 0, false
	}
	return f, true
}

// parseTristate coerces yes/no style answers.
func parseTristate(v any) model.Tristate {
	switch x := v.(type) {
	case bool:
		if x {
			return model.Yes
		}
		return model.No
	case float64:
		if x == 1 {
			return model.Yes
		}
		if x == 0 {
			return model.No
		}
	case int:
		if x == 1 {
			return model.Yes
		}
		if x == 0 {
			return model.No
		}
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if trueWords[s] {
			return model.Yes
		}
		if falseWords[s] {
			return model.No
		}
	}
	return model.Unknown
}

// parseText returns the trimmed string form of a raw value.
func parseText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

// standardIndustry canonicalises free-text industry labels.
func standardIndustry(s string) (string, bool) {
	if strings.TrimSpace(s) == "" {
		return "", false
	}
	if canon, ok := longestMatch(s, industryKeywords); ok {
		return canon, true
	}
	return strings.ReplaceAll(wordsOnly(s), " ", "_"), true
}

// standardBusinessModel derives the business model enum from free text.
func standardBusinessModel(s string) (model.BusinessModel, bool) {
	if strings.TrimSpace(s) == "" {
		return model.BusinessModelOther, false
	}
	switch bm := model.BusinessModel(strings.ToUpper(strings.TrimSpace(s))); bm {
	case model.BusinessModelB2B, model.BusinessModelB2C, model.BusinessModelB2B2C,
		model.BusinessModelMarketplace, model.BusinessModelPlatform, model.BusinessModelOther:
		return bm, true
	}
	if canon, ok := longestMatch(s, businessModelKeywords); ok {
		return model.BusinessModel(canon), true
	}
	return model.BusinessModelOther, true
}
