package quantity

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/MrWong99/sitescope/pkg/types"
)

// classHint maps context keywords to the measurement class they suggest.
type classHint struct {
	class types.MeasurementClass
	re    *regexp.Regexp
}

var classHints = []classHint{
	{types.ClassLinear, KeywordRE([]string{"wall", "length", "long", "perimeter", "trim", "baseboard", "fence", "pipe", "run", "running", "linear", "gutter", "railing", "edge", "casing"})},
	{types.ClassSquare, KeywordRE([]string{"floor*", "area", "room", "ceiling", "roof*", "tile", "carpet*", "paint*", "siding", "drywall", "deck*", "patio", "sod"})},
	{types.ClassCubic, KeywordRE([]string{"concrete", "gravel", "fill", "excavat*", "dirt", "soil", "volume", "deep", "mulch"})},
	{types.ClassWeight, KeywordRE([]string{"pound", "weight", "rebar", "ton", "heavy"})},
	{types.ClassCount, KeywordRE([]string{"each", "pieces", "count"})},
}

var (
	// bulkRE marks materials sold by the cubic yard.
	bulkRE = KeywordRE([]string{"concrete", "gravel", "fill", "backfill", "dirt", "soil", "topsoil", "mulch", "sand", "excavat*", "pour*"})
	// rollRE marks materials sold by the square yard.
	rollRE = KeywordRE([]string{"carpet*", "sod", "turf", "fabric"})
)

// mismatchAmbiguities turns every failed validation into a dimension_mismatch
// ambiguity with the calculated and the stated reading.
func mismatchAmbiguities(qs []types.NormalizedQuantity, vs []types.DimensionValidation) []types.QuantityAmbiguity {
	byID := make(map[string]types.NormalizedQuantity, len(qs))
	for _, q := range qs {
		byID[q.ID] = q
	}

	var out []types.QuantityAmbiguity
	for _, v := range vs {
		if v.ValidationLevel != types.LevelFail {
			continue
		}
		statedID := v.QuantityIDs[len(v.QuantityIDs)-1]
		stated := byID[statedID]

		dimConf := stated.Confidence
		if len(v.QuantityIDs) > 1 {
			var sum float64
			for _, id := range v.QuantityIDs[:len(v.QuantityIDs)-1] {
				sum += byID[id].Confidence
			}
			dimConf = sum / float64(len(v.QuantityIDs)-1)
		}

		out = append(out, types.QuantityAmbiguity{
			Type:        types.AmbiguityDimensionMismatch,
			Severity:    types.SeverityHigh,
			AffectedIDs: slices.Clone(v.QuantityIDs),
			Interpretations: []types.Interpretation{
				{
					Value:      v.CalculatedTotal,
					Unit:       v.ProvidedUnit,
					Class:      stated.Class(),
					Confidence: dimConf,
					Reasoning:  fmt.Sprintf("Trust the calculation from the measured dimensions (%s)", joinNumbers(v.Dimensions)),
				},
				{
					Value:      v.ProvidedTotal,
					Unit:       v.ProvidedUnit,
					Class:      stated.Class(),
					Confidence: stated.Confidence,
					Reasoning:  fmt.Sprintf("Trust the stated total %q", stated.Token.RawText),
				},
			},
			RecommendedAction: fmt.Sprintf("Deviation of %.1f%% exceeds the %.0f%% tolerance; confirm which value to price",
				v.Deviation*100, v.Tolerance*100),
			RequiresUserConfirmation: true,
			Detail: types.DimensionMismatch{
				ValidationID:    v.ID,
				Kind:            v.Kind,
				CalculatedTotal: v.CalculatedTotal,
				ProvidedTotal:   v.ProvidedTotal,
				Unit:            v.ProvidedUnit,
				Deviation:       v.Deviation,
				Tolerance:       v.Tolerance,
			},
		})
	}
	return out
}

// unitAmbiguities flags unknown units and units that read as two classes.
func (n *Normalizer) unitAmbiguities(qs []types.NormalizedQuantity) []types.QuantityAmbiguity {
	var out []types.QuantityAmbiguity
	for _, q := range qs {
		if !q.Class().IsValid() {
			continue
		}
		if !q.UnitRecognized {
			out = append(out, unknownUnitAmbiguity(q))
			continue
		}
		if a, ok := n.yardAmbiguity(q); ok {
			out = append(out, a)
		}
	}
	return out
}

func unknownUnitAmbiguity(q types.NormalizedQuantity) types.QuantityAmbiguity {
	ctx := q.Token.Context
	if ctx == "" {
		ctx = q.Token.RawText
	}

	var (
		classes  []types.MeasurementClass
		keywords []string
	)
	for _, h := range classHints {
		found := h.re.FindAllString(ctx, -1)
		if len(found) == 0 {
			continue
		}
		classes = append(classes, h.class)
		for _, k := range found {
			k = strings.ToLower(k)
			if !slices.Contains(keywords, k) {
				keywords = append(keywords, k)
			}
		}
	}

	recorded := types.Interpretation{
		Value:      q.NormalizedValue,
		Unit:       q.CanonicalUnit,
		Class:      q.Class(),
		Confidence: q.Confidence,
		Reasoning:  fmt.Sprintf("Keep %q as recorded, read as %s", q.Token.Unit, q.CanonicalUnit),
	}

	if len(classes) == 0 {
		return types.QuantityAmbiguity{
			Type:                     types.AmbiguityMissingContext,
			Severity:                 types.SeverityMedium,
			AffectedIDs:              []string{q.ID},
			Interpretations:          []types.Interpretation{recorded},
			RecommendedAction:        fmt.Sprintf("Describe what %q measures and restate it in a known unit", q.Token.RawText),
			RequiresUserConfirmation: true,
			Detail:                   types.MissingContext{Unit: q.Token.Unit, Context: q.Token.Context},
		}
	}

	interps := make([]types.Interpretation, 0, len(classes)+1)
	for _, c := range classes {
		conf := 0.5
		if c == q.Class() {
			conf = math.Max(conf, q.Confidence)
		}
		interps = append(interps, types.Interpretation{
			Value:      q.Token.Value,
			Unit:       CanonicalUnit(c),
			Class:      c,
			Confidence: conf,
			Reasoning:  fmt.Sprintf("Context %q suggests a %s measurement", ctx, c),
		})
	}
	if !slices.Contains(classes, q.Class()) {
		interps = append(interps, recorded)
	}

	severity, confirm := types.SeverityMedium, true
	if len(classes) == 1 && classes[0] == q.Class() {
		severity, confirm = types.SeverityLow, false
	}

	return types.QuantityAmbiguity{
		Type:                     types.AmbiguityUnitUnclear,
		Severity:                 severity,
		AffectedIDs:              []string{q.ID},
		Interpretations:          interps,
		RecommendedAction:        fmt.Sprintf("Confirm the unit of %q", q.Token.RawText),
		RequiresUserConfirmation: confirm,
		Detail: types.UnitUnclear{
			Unit:             q.Token.Unit,
			SuggestedClasses: classes,
			MatchedKeywords:  keywords,
		},
	}
}

// yardAmbiguity flags "yards" recorded as a length next to a material that
// is sold by the cubic or square yard.
func (n *Normalizer) yardAmbiguity(q types.NormalizedQuantity) (types.QuantityAmbiguity, bool) {
	u, _ := n.units.Lookup(q.Token.Unit)
	if u.Label != "yd" || q.Class() != types.ClassLinear {
		return types.QuantityAmbiguity{}, false
	}

	var alt types.Interpretation
	switch ctx := q.Token.Context; {
	case bulkRE.MatchString(ctx):
		alt = types.Interpretation{
			Value:      q.Token.Value * 27,
			Unit:       UnitCubicFeet,
			Class:      types.ClassCubic,
			Confidence: 0.75,
			Reasoning:  fmt.Sprintf("Bulk material in %q is ordered in cubic yards", ctx),
		}
	case rollRE.MatchString(ctx):
		alt = types.Interpretation{
			Value:      q.Token.Value * 9,
			Unit:       UnitSquareFeet,
			Class:      types.ClassSquare,
			Confidence: 0.7,
			Reasoning:  fmt.Sprintf("Roll goods in %q are sold by the square yard", ctx),
		}
	default:
		return types.QuantityAmbiguity{}, false
	}

	return types.QuantityAmbiguity{
		Type:        types.AmbiguityMultipleInterpretations,
		Severity:    types.SeverityHigh,
		AffectedIDs: []string{q.ID},
		Interpretations: []types.Interpretation{
			alt,
			{
				Value:      q.NormalizedValue,
				Unit:       q.CanonicalUnit,
				Class:      types.ClassLinear,
				Confidence: q.Confidence,
				Reasoning:  "Linear yards as recorded",
			},
		},
		RecommendedAction:        fmt.Sprintf("Confirm whether %q means %s or linear yards", q.Token.RawText, alt.Class),
		RequiresUserConfirmation: true,
		Detail: types.MultipleInterpretations{
			Unit:         q.Token.Unit,
			Recorded:     types.ClassLinear,
			Alternatives: []types.MeasurementClass{alt.Class},
		},
	}, true
}

// duplicate marks a quantity that restates another and is left out of
// aggregation.
type duplicate struct {
	of   int
	note string
}

// restatements compares quantities of the same class that describe the same
// thing. Values within the duplicate threshold are duplicates and values
// further apart than the conflict threshold are conflicting_values
// ambiguities; in both cases the lower-confidence quantity is excluded from
// aggregation. Values in between may be two separate extents, so both are
// aggregated and a low-severity conflict asks the user to confirm.
func (n *Normalizer) restatements(qs []types.NormalizedQuantity, vs []types.DimensionValidation) ([]types.QuantityAmbiguity, map[int]duplicate) {
	groups := n.proximityGroups(qs)
	index := make(map[string]int, len(qs))
	for i, q := range qs {
		index[q.ID] = i
	}

	// Quantities checked together are dimensions of one extent, not
	// restatements of each other, except a dimension phrase and the stated
	// total it was checked against.
	partners := map[[2]int]bool{}
	restates := map[[2]int]bool{}
	for _, v := range vs {
		if v.Kind == types.KindDirect {
			continue
		}
		ids := v.QuantityIDs
		for a := range ids {
			for b := a + 1; b < len(ids); b++ {
				i, j := index[ids[a]], index[ids[b]]
				key := [2]int{min(i, j), max(i, j)}
				partners[key] = true
				stated := b == len(ids)-1
				if stated && v.Kind != types.KindLinearTotal && qs[i].Class() == qs[j].Class() {
					restates[key] = true
				}
			}
		}
	}

	var (
		out  []types.QuantityAmbiguity
		dups = map[int]duplicate{}
	)
	for i := range qs {
		for j := i + 1; j < len(qs); j++ {
			if _, gone := dups[i]; gone {
				break
			}
			if _, gone := dups[j]; gone {
				continue
			}
			a, b := qs[i], qs[j]
			if a.Class() != b.Class() || !a.Class().IsValid() ||
				a.ValidationStatus == types.StatusError || b.ValidationStatus == types.StatusError {
				continue
			}

			key := [2]int{i, j}
			keep, drop := i, j
			if b.Confidence > a.Confidence {
				keep, drop = j, i
			}

			if restates[key] {
				dups[drop] = duplicate{of: keep, note: fmt.Sprintf("%s restates %s and was counted once", qs[drop].ID, qs[keep].ID)}
				continue
			}
			if partners[key] {
				continue
			}

			sameGroup := groups[i] == groups[j] && a.Class() != types.ClassLinear
			if !sameGroup && !n.similarContext(a, b) {
				continue
			}

			spread := relativeDifference(a.NormalizedValue, b.NormalizedValue)
			switch {
			case spread <= n.settings.DuplicateThreshold+epsilon:
				dups[drop] = duplicate{of: keep, note: fmt.Sprintf("%s restates %s and was counted once", qs[drop].ID, qs[keep].ID)}
			case spread <= n.settings.ConflictThreshold+epsilon:
				out = append(out, conflictAmbiguity(a, b, spread, types.SeverityLow))
			default:
				dups[drop] = duplicate{of: keep, note: fmt.Sprintf("%s conflicts with %s; %s was counted pending confirmation",
					qs[drop].ID, qs[keep].ID, qs[keep].ID)}
				out = append(out, conflictAmbiguity(a, b, spread, conflictSeverity(a.NormalizedValue, b.NormalizedValue, spread)))
			}
		}
	}
	return out, dups
}

func conflictAmbiguity(a, b types.NormalizedQuantity, spread float64, severity types.Severity) types.QuantityAmbiguity {
	pair := []types.NormalizedQuantity{a, b}
	slices.SortStableFunc(pair, func(x, y types.NormalizedQuantity) int {
		switch {
		case x.Confidence > y.Confidence:
			return -1
		case x.Confidence < y.Confidence:
			return 1
		}
		return 0
	})
	interps := make([]types.Interpretation, 0, 2)
	for _, q := range pair {
		interps = append(interps, types.Interpretation{
			Value:      q.NormalizedValue,
			Unit:       q.CanonicalUnit,
			Class:      q.Class(),
			Confidence: q.Confidence,
			Reasoning:  fmt.Sprintf("Stated as %q", q.Token.RawText),
		})
	}
	return types.QuantityAmbiguity{
		Type:                     types.AmbiguityConflictingValues,
		Severity:                 severity,
		AffectedIDs:              []string{a.ID, b.ID},
		Interpretations:          interps,
		RecommendedAction:        fmt.Sprintf("Values differ by %.1f%%; confirm which measurement is correct", spread*100),
		RequiresUserConfirmation: true,
		Detail: types.ConflictingValues{
			Class:  a.Class(),
			Unit:   a.CanonicalUnit,
			Values: []float64{a.NormalizedValue, b.NormalizedValue},
			Spread: spread,
		},
	}
}

// conflictSeverity grades a conflict by how far apart the values are.
func conflictSeverity(a, b, spread float64) types.Severity {
	lo, hi := math.Min(a, b), math.Max(a, b)
	switch {
	case lo > 0 && hi >= 2*lo:
		return types.SeverityCritical
	case spread > 0.25:
		return types.SeverityHigh
	}
	return types.SeverityMedium
}

// similarContext reports whether two quantities are described by the same
// words and do not measure different extents.
func (n *Normalizer) similarContext(a, b types.NormalizedQuantity) bool {
	ra, rb := tokenRole(a.Token), tokenRole(b.Token)
	if ra != "" && rb != "" && ra != rb {
		return false
	}
	if a.Token.Context != "" && a.Token.Context == b.Token.Context {
		return true
	}
	return jaccard(contentWords(a.Token.Context), contentWords(b.Token.Context)) >= n.settings.SimilarContext-epsilon
}

// tokenRole is the dimension role named right after the token ("20 feet
// long") or, failing that, right before it ("a width of 12 feet").
func tokenRole(t types.MeasurementToken) string {
	ctx := t.Context
	i := strings.Index(ctx, t.RawText)
	if i < 0 {
		return dimensionRole(ctx)
	}
	after := strings.Fields(ctx[i+len(t.RawText):])
	if r := dimensionRole(strings.Join(after[:min(2, len(after))], " ")); r != "" {
		return r
	}
	before := strings.Fields(ctx[:i])
	return dimensionRole(strings.Join(before[max(0, len(before)-3):], " "))
}

func relativeDifference(a, b float64) float64 {
	hi := math.Max(math.Abs(a), math.Abs(b))
	if hi == 0 {
		return 0
	}
	return math.Abs(a-b) / hi
}

func joinNumbers(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = types.FormatNumber(v)
	}
	return strings.Join(parts, " × ")
}
