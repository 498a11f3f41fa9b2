package explain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/sells-group/idea-scorer/internal/model"
)

type fingerprintInput struct {
	Idea    model.NormalizedIdea  `json:"idea"`
	Score   int                   `json:"score"`
	Scores  model.CriterionScores `json:"scores"`
	Weights map[string]float64    `json:"weights"`
	Flags   []model.RiskFlag      `json:"flags"`
}

// Fingerprint addresses an explanation by everything the prompt quotes: idea
// content, overall and criterion scores, weights and flag set. Row position
// and identifier are not content, so the same idea re-uploaded in another
// batch maps to the same fingerprint.
func Fingerprint(r Request) string {
	in := fingerprintInput{Score: r.Score, Scores: r.Scores, Weights: r.Weights}
	if in.Scores == nil {
		in.Scores = model.CriterionScores{}
	}
	if in.Weights == nil {
		in.Weights = map[string]float64{}
	}
	if r.Idea != nil {
		in.Idea = *r.Idea
		in.Idea.Imputed = slices.Clone(r.Idea.Imputed)
		slices.Sort(in.Idea.Imputed)
	}
	in.Idea.ID = ""
	in.Idea.Row = 0

	in.Flags = slices.Clone(r.Flags)
	if in.Flags == nil {
		in.Flags = []model.RiskFlag{}
	}
	model.SortFlags(in.Flags)

	// Struct fields marshal in declaration order and map keys sorted.
	data, err := json.Marshal(in)
	if err != nil {
		// Only non-finite floats fail to marshal.
		data = fmt.Appendf(nil, "%#v", in)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
