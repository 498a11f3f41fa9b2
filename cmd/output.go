package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/store"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatCSV   = "csv"
)

func validFormat(f string) bool {
	switch f {
	case formatTable, formatJSON, formatCSV:
		return true
	}
	return false
}

// writeBatch renders a finished batch in leaderboard order.
func writeBatch(w io.Writer, b *model.Batch, format string) error {
	ideas := byRank(b.Ideas)
	switch format {
	case formatJSON:
		out := *b
		out.Ideas = ideas
		return writeJSON(w, out)
	case formatCSV:
		return writeIdeasCSV(w, ideas)
	default:
		formatIdeasTable(w, ideas)
		formatBatchFooter(w, b)
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode json")
}

func byRank(ideas []model.ScoredIdea) []model.ScoredIdea {
	out := append([]model.ScoredIdea(nil), ideas...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

func flagList(flags []model.RiskFlag) string {
	if len(flags) == 0 {
		return "-"
	}
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = f.Name
		if f.Severity != "" {
			parts[i] += "(" + string(f.Severity) + ")"
		}
	}
	return strings.Join(parts, ",")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatIdeasTable writes a tabular leaderboard to out.
func formatIdeasTable(out io.Writer, ideas []model.ScoredIdea) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "RANK\tSCORE\tTIER\tNAME\tINDUSTRY\tMODEL\tFLAGS\tEXPLANATION")
	for _, s := range ideas {
		expl := string(s.ExplanationStatus)
		if s.Explanation != nil {
			expl = truncate(*s.Explanation, 60)
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.Rank, s.Score, s.Tier, truncate(s.Name, 40), s.Industry, s.BusinessModel, flagList(s.RiskFlags), expl)
	}
	_ = w.Flush()
}

// formatBatchFooter writes the batch id, counts and score distribution.
func formatBatchFooter(out io.Writer, b *model.Batch) {
	_, _ = fmt.Fprintf(out, "\nbatch %s: %d ideas, %d rejected, %d without explanation\n",
		b.ID, len(b.Ideas), len(b.Rejected), b.Degraded())
	for _, r := range b.Rejected {
		_, _ = fmt.Fprintf(out, "  row %d: %s\n", r.Row, r.Reason)
	}
	if len(b.Ideas) == 0 {
		return
	}
	scores := make(stats.Float64Data, len(b.Ideas))
	for i, s := range b.Ideas {
		scores[i] = float64(s.Score)
	}
	mean, _ := scores.Mean()
	median, _ := scores.Median()
	sd, _ := scores.StandardDeviation()
	_, _ = fmt.Fprintf(out, "scores: mean %.1f, median %.1f, stddev %.1f\n", mean, median, sd)
}

// writeIdeasCSV writes one row per idea with a column per criterion.
func writeIdeasCSV(out io.Writer, ideas []model.ScoredIdea) error {
	criteria := criterionNames(ideas)
	w := csv.NewWriter(out)

	header := []string{"rank", "score", "tier", "id", "name", "industry", "business_model"}
	header = append(header, criteria...)
	header = append(header, "risk_flags", "explanation_status", "explanation", "imputed")
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "write csv header")
	}

	for _, s := range ideas {
		rec := []string{
			strconv.Itoa(s.Rank), strconv.Itoa(s.Score), string(s.Tier),
			s.ID, s.Name, s.Industry, string(s.BusinessModel),
		}
		for _, c := range criteria {
			rec = append(rec, strconv.FormatFloat(s.CriterionScores[c], 'f', -1, 64))
		}
		expl := ""
		if s.Explanation != nil {
			expl = *s.Explanation
		}
		flags := make([]string, len(s.RiskFlags))
		for i, f := range s.RiskFlags {
			flags[i] = f.Name
		}
		rec = append(rec, strings.Join(flags, ";"), string(s.ExplanationStatus), expl, strings.Join(s.Imputed, ";"))
		if err := w.Write(rec); err != nil {
			return eris.Wrap(err, "write csv row")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "flush csv")
}

func criterionNames(ideas []model.ScoredIdea) []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range ideas {
		for _, n := range s.CriterionScores.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

// formatBatchesList writes a tabular list of stored batches to out.
func formatBatchesList(out io.Writer, batches []store.BatchSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATE\tIDEAS\tREJECTED\tDEGRADED\tTOP\tCREATED")
	for _, b := range batches {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			b.ID[:min(8, len(b.ID))], b.Source, b.State, b.Ideas, b.Rejected, b.Degraded, b.TopScore,
			b.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}

// formatStoredIdeas writes stored ideas, prefixed by their batch, to out.
func formatStoredIdeas(out io.Writer, ideas []store.StoredIdea) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "BATCH\tRANK\tSCORE\tTIER\tNAME\tINDUSTRY\tFLAGS")
	for _, s := range ideas {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			s.BatchID[:min(8, len(s.BatchID))], s.Rank, s.Score, s.Tier, truncate(s.Name, 40), s.Industry, flagList(s.RiskFlags))
	}
	_ = w.Flush()
}
