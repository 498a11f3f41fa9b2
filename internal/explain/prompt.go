package explain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sells-group/idea-scorer/internal/model"
)

const systemPrompt = `You are an expert business analyst writing assessments of startup ideas for investors.
You receive an idea, its overall score out of 100, the criterion sub-scores with their weights, and any structural risk flags.
Explain why the idea received its score, name its main strengths and weaknesses based on the criterion scores, and give concrete recommendations for improvement.
Treat fields marked as estimated with caution: they were filled from batch medians, not reported by the founder.
Be balanced and specific. Write plain prose of at most four short paragraphs, without headings.`

// BuildPrompt renders the explanation prompt for one idea. The output is
// deterministic for a given request.
func BuildPrompt(r Request) Prompt {
	var b strings.Builder
	n := r.Idea
	if n == nil {
		n = &model.NormalizedIdea{}
	}

	fmt.Fprintf(&b, "Business idea: %s\n", n.Name)
	fmt.Fprintf(&b, "Industry: %s\n", n.Industry)
	fmt.Fprintf(&b, "Business model: %s\n", n.BusinessModel)
	if n.TargetMarket != "" {
		fmt.Fprintf(&b, "Target market: %s\n", n.TargetMarket)
	}
	if n.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", n.Description)
	}
	if n.ProblemStatement != "" {
		fmt.Fprintf(&b, "Problem: %s\n", n.ProblemStatement)
	}
	fmt.Fprintf(&b, "Market size (USD millions): TAM %s, SAM %s, SOM %s\n",
		num(n.MarketSizeTAM), num(n.MarketSizeSAM), num(n.MarketSizeSOM))

	fmt.Fprintf(&b, "\nTotal score: %d/100 (%s potential)\n", r.Score, model.TierFor(r.Score))

	b.WriteString("\nCriterion scores:\n")
	for _, name := range r.Scores.Names() {
		if w, ok := r.Weights[name]; ok {
			fmt.Fprintf(&b, "- %s: %s/100 (weight %s%%)\n", name, num(r.Scores[name]), num(w))
		} else {
			fmt.Fprintf(&b, "- %s: %s/100\n", name, num(r.Scores[name]))
		}
	}

	b.WriteString("\nRisk flags:\n")
	if len(r.Flags) == 0 {
		b.WriteString("- none identified\n")
	}
	flags := append([]model.RiskFlag(nil), r.Flags...)
	model.SortFlags(flags)
	for _, f := range flags {
		if f.Severity != "" {
			fmt.Fprintf(&b, "- %s (%s)\n", f.Name, f.Severity)
		} else {
			fmt.Fprintf(&b, "- %s\n", f.Name)
		}
	}

	if len(n.Imputed) > 0 {
		est := append([]string(nil), n.Imputed...)
		sort.Strings(est)
		fmt.Fprintf(&b, "\nEstimated fields: %s\n", strings.Join(est, ", "))
	}

	return Prompt{System: systemPrompt, User: b.String()}
}

func num(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
