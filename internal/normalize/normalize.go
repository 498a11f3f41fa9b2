// Package normalize turns raw uploaded rows into canonical idea records,
// coercing types and imputing missing values over the whole batch.
package normalize

import (
	"fmt"
	"slices"
	"sort"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
)

// IndustryUnknown is the industry assigned when none was given.
const IndustryUnknown = "unknown"

// minTextLen is the shortest description or problem statement that is not
// treated as a data quality problem.
const minTextLen = 5

type numericKind int

const (
	kindScale numericKind = iota
	kindMarket
	kindUSD
)

type numericField struct {
	name  string
	kind  numericKind
	parse func(any) (float64, bool)
	set   func(*model.NormalizedIdea, float64)
}

// numericFields are imputed to the batch median when missing.
var numericFields = []numericField{
	{FieldMarketSizeTAM, kindMarket, parseMarketSize, func(n *model.NormalizedIdea, v float64) { n.MarketSizeTAM = v }},
	{FieldMarketSizeSAM, kindMarket, parseMarketSize, func(n *model.NormalizedIdea, v float64) { n.MarketSizeSAM = v }},
	{FieldMarketSizeSOM, kindMarket, parseMarketSize, func(n *model.NormalizedIdea, v float64) { n.MarketSizeSOM = v }},
	{FieldCompetitionLevel, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.CompetitionLevel = v }},
	{FieldFoundingTeamExperience, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.FoundingTeamExperience = v }},
	{FieldProductComplexity, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.ProductComplexity = v }},
	{FieldRegulatoryRisk, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.RegulatoryRisk = v }},
	{FieldSocialImpact, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.SocialImpact = v }},
	{FieldEnvironmentalImpact, kindScale, parseRating, func(n *model.NormalizedIdea, v float64) { n.EnvironmentalImpact = v }},
	{FieldEstimatedCAC, kindUSD, parseUSD, func(n *model.NormalizedIdea, v float64) { n.EstimatedCAC = v }},
	{FieldEstimatedLTV, kindUSD, parseUSD, func(n *model.NormalizedIdea, v float64) { n.EstimatedLTV = v }},
}

// Options holds the neutral values used when a numeric field has no data
// anywhere in the batch.
type Options struct {
	// ScaleDefault applies to 0-10 ratings.
	ScaleDefault float64
	// MonetaryDefault applies to market sizes and unit economics.
	MonetaryDefault float64
	// FieldDefaults overrides the neutral value per canonical field.
	FieldDefaults map[string]float64
}

// DefaultOptions returns 5 for ratings and 0 for monetary fields.
func DefaultOptions() Options {
	return Options{ScaleDefault: 5, MonetaryDefault: 0}
}

func (o Options) neutral(f numericField) float64 {
	if v, ok := o.FieldDefaults[f.name]; ok {
		return v
	}
	if f.kind == kindScale {
		return o.ScaleDefault
	}
	return o.MonetaryDefault
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Ideas    []model.NormalizedIdea
	Rejected []model.RowError
}

type parsedRow struct {
	idea    model.NormalizedIdea
	values  map[string]float64
	imputed []string
}

// Normalize parses every record, computes batch medians for the numeric
// fields, then fills each row's gaps. Rows without a name or identifier are
// returned in Result.Rejected. An empty batch, or one where every row is
// rejected, fails with a batch-level ValidationError.
func Normalize(raw []model.RawIdeaRecord, opts Options) (*Result, error) {
	if len(raw) == 0 {
		return nil, eris.Wrap(model.NewBatchValidationError("batch is empty"), "normalize")
	}

	res := &Result{}
	rows := make([]parsedRow, 0, len(raw))
	for i, rec := range raw {
		row := i + 1
		p, err := parseRecord(rec, row)
		if err != nil {
			res.Rejected = append(res.Rejected, model.RowError{Row: row, Reason: err.Reason})
			continue
		}
		rows = append(rows, p)
	}
	if len(rows) == 0 {
		return nil, eris.Wrap(
			model.NewBatchValidationError(fmt.Sprintf("all %d rows rejected: no usable name or identifier", len(raw))),
			"normalize",
		)
	}

	// Barrier: medians need the whole batch before any row is completed.
	fill := make(map[string]float64, len(numericFields))
	var defaulted []string
	for _, f := range numericFields {
		var vals stats.Float64Data
		for _, r := range rows {
			if v, ok := r.values[f.name]; ok {
				vals = append(vals, v)
			}
		}
		if len(vals) == 0 {
			fill[f.name] = opts.neutral(f)
			defaulted = append(defaulted, f.name)
			continue
		}
		med, err := stats.Median(vals)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: median of %s", f.name)
		}
		fill[f.name] = med
	}

	res.Ideas = make([]model.NormalizedIdea, len(rows))
	for i := range rows {
		res.Ideas[i] = complete(rows[i], fill, defaulted)
	}
	return res, nil
}

// parseRecord coerces the recognised columns of one record. Unknown columns
// are ignored; when two columns map to the same field the first non-blank
// one wins.
func parseRecord(rec model.RawIdeaRecord, row int) (parsedRow, *model.ValidationError) {
	byField := make(map[string]any)
	for _, f := range rec.Fields {
		name, ok := CanonicalField(f.Column)
		if !ok || f.Value == nil {
			continue
		}
		if s, isStr := f.Value.(string); isStr && parseText(s) == "" {
			continue
		}
		if _, seen := byField[name]; !seen {
			byField[name] = f.Value
		}
	}

	p := parsedRow{values: make(map[string]float64)}
	n := &p.idea
	n.Row = row
	n.ID = parseText(byField[FieldID])
	n.Name = parseText(byField[FieldName])
	if n.ID == "" && n.Name == "" {
		return p, &model.ValidationError{Row: row, Reason: "missing name or identifier"}
	}
	if n.Name == "" {
		n.Name = n.ID
	}
	if n.ID == "" {
		n.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("idea-scorer:%d:%s", row, n.Name))).String()
	}

	n.Description = parseText(byField[FieldDescription])
	n.ProblemStatement = parseText(byField[FieldProblemStatement])
	n.TargetMarket = parseText(byField[FieldTargetMarket])

	if ind, ok := standardIndustry(parseText(byField[FieldIndustry])); ok {
		n.Industry = ind
	} else {
		n.Industry = IndustryUnknown
		p.imputed = append(p.imputed, FieldIndustry)
	}

	bmText := parseText(byField[FieldBusinessModel])
	n.RevenueModel = wordsOnly(bmText)
	bm, ok := standardBusinessModel(bmText)
	n.BusinessModel = bm
	if !ok {
		p.imputed = append(p.imputed, FieldBusinessModel)
	}

	for _, f := range numericFields {
		if v, ok := f.parse(byField[f.name]); ok {
			p.values[f.name] = v
		}
	}

	tristates := []struct {
		name string
		dst  *model.Tristate
	}{
		{FieldHasNetworkEffects, &n.HasNetworkEffects},
		{FieldHasPublicCustomers, &n.HasPublicCustomers},
		{FieldHasRecurringRevenue, &n.HasRecurringRevenue},
		{FieldHasIPPatents, &n.HasIPPatents},
	}
	for _, ts := range tristates {
		*ts.dst = parseTristate(byField[ts.name])
		if !ts.dst.Known() {
			p.imputed = append(p.imputed, ts.name)
		}
	}

	return p, nil
}

// complete applies the batch fill values and derived fields to one row.
// defaulted names the fields no row reported.
func complete(p parsedRow, fill map[string]float64, defaulted []string) model.NormalizedIdea {
	n := p.idea
	imputed := p.imputed
	numericImputed := 0
	for _, f := range numericFields {
		v, ok := p.values[f.name]
		if !ok {
			v = fill[f.name]
			imputed = append(imputed, f.name)
			numericImputed++
		}
		f.set(&n, v)
	}

	cacImputed := !has(p.values, FieldEstimatedCAC)
	ltvImputed := !has(p.values, FieldEstimatedLTV)
	if n.EstimatedCAC > 0 {
		n.LTVCACRatio = n.EstimatedLTV / n.EstimatedCAC
	}
	if n.EstimatedCAC <= 0 || cacImputed || ltvImputed {
		imputed = append(imputed, FieldLTVCACRatio)
	}

	n.DataQualityIssues = shortText(n.Description) || shortText(n.ProblemStatement) ||
		numericImputed*2 > len(numericFields)

	sort.Strings(imputed)
	n.Imputed = imputed
	if len(defaulted) > 0 {
		n.Defaulted = slices.Sorted(slices.Values(defaulted))
	}
	return n
}

func has(m map[string]float64, k string) bool {
	_, ok := m[k]
	return ok
}

// shortText reports a text field that was given but is too short to be
// meaningful.
func shortText(s string) bool {
	return s != "" && utf8.RuneCountInString(s) < minTextLen
}
