package quantity

import (
	"fmt"
	"math"
	"regexp"
	"slices"

	"github.com/MrWong99/sitescope/pkg/types"
)

// epsilon absorbs floating-point noise at tolerance boundaries.
const epsilon = 1e-9

var totalRE = regexp.MustCompile(`(?i)\b(?:total|totals|perimeter|altogether|combined|in all)\b`)

// proximityGroups assigns every quantity a group number. Two quantities are
// in the same group when they share a non-empty context string or when their
// context windows overlap in the narration. Group numbers are the index of
// the first member.
func (n *Normalizer) proximityGroups(qs []types.NormalizedQuantity) []int {
	parent := make([]int, len(qs))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	for i := range qs {
		for j := i + 1; j < len(qs); j++ {
			if n.near(qs[i].Token, qs[j].Token) {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[max(ri, rj)] = min(ri, rj)
				}
			}
		}
	}

	groups := make([]int, len(qs))
	for i := range qs {
		groups[i] = find(i)
	}
	return groups
}

// near reports whether a and b share a non-empty context string or their
// context windows overlap in the narration.
func (n *Normalizer) near(a, b types.MeasurementToken) bool {
	if a.Context != "" && a.Context == b.Context {
		return true
	}
	w := n.settings.ContextWindow
	return a.HasSpan() && b.HasSpan() && a.Start-w < b.End+w && b.Start-w < a.End+w
}

// validateDimensions runs the group checks followed by the direct checks.
// narration is used to find the trade each quantity belongs to.
func (n *Normalizer) validateDimensions(qs []types.NormalizedQuantity, narration string) []types.DimensionValidation {
	groups := n.proximityGroups(qs)
	trades := make(map[string]types.Trade, len(qs))
	for _, q := range qs {
		trades[q.ID] = n.Tag(q, narration).Category
	}
	var out []types.DimensionValidation

	seen := map[int]bool{}
	for _, g := range groups {
		if seen[g] {
			continue
		}
		seen[g] = true

		var members []types.NormalizedQuantity
		for i, q := range qs {
			if groups[i] == g && q.ValidationStatus != types.StatusError {
				members = append(members, q)
			}
		}
		if len(members) < 2 {
			continue
		}
		out = append(out, n.groupChecks(members, trades)...)
	}

	for _, q := range qs {
		if v, ok := n.directCheck(q); ok {
			out = append(out, v)
		}
	}

	for i := range out {
		out[i].ID = fmt.Sprintf("v%d", i+1)
	}
	if out == nil {
		out = []types.DimensionValidation{}
	}
	return out
}

// groupChecks compares implied totals against stated ones within a group.
// A stated area or volume only draws on members next to it in the narration,
// and no check mixes quantities of two different trades.
func (n *Normalizer) groupChecks(members []types.NormalizedQuantity, trades map[string]types.Trade) []types.DimensionValidation {
	tol := n.settings.Tolerances
	var (
		linear, square            []types.NormalizedQuantity
		phraseSquare, phraseCubic []types.NormalizedQuantity
		statedSquare, statedCubic []types.NormalizedQuantity
		cubic                     int
		out                       []types.DimensionValidation
	)
	for _, q := range members {
		switch q.Class() {
		case types.ClassLinear:
			linear = append(linear, q)
		case types.ClassSquare:
			square = append(square, q)
			if len(q.Token.Dimensions) == 2 {
				phraseSquare = append(phraseSquare, q)
			} else {
				statedSquare = append(statedSquare, q)
			}
		case types.ClassCubic:
			cubic++
			if len(q.Token.Dimensions) == 3 {
				phraseCubic = append(phraseCubic, q)
			} else {
				statedCubic = append(statedCubic, q)
			}
		}
	}

	sameTrade := func(a, b types.NormalizedQuantity) bool {
		ta, tb := trades[a.ID], trades[b.ID]
		return ta == tb || ta == types.TradeGeneral || tb == types.TradeGeneral
	}
	supporting := func(qs []types.NormalizedQuantity, stated types.NormalizedQuantity) []types.NormalizedQuantity {
		var out []types.NormalizedQuantity
		for _, q := range qs {
			if q.ID != stated.ID && n.near(q.Token, stated.Token) && sameTrade(q, stated) {
				out = append(out, q)
			}
		}
		return out
	}

	// Two lengths against a stated area.
	if len(statedSquare) > 0 {
		stated := statedSquare[0]
		if dims := supporting(linear, stated); len(dims) >= 2 {
			dims = dims[:2]
			out = append(out, n.check(types.KindArea, dims, values(dims), product(dims), stated, tol.Area))
		} else if phrases := supporting(phraseSquare, stated); len(phrases) > 0 {
			if dims, ok := n.phraseDimensions(phrases[0]); ok {
				out = append(out, n.check(types.KindArea, phrases[:1], dims, prod(dims), stated, tol.Area))
			}
		}
	}

	// Three lengths, or an area and a depth, against a stated volume.
	if len(statedCubic) > 0 {
		stated := statedCubic[0]
		lengths := supporting(linear, stated)
		areas := supporting(square, stated)
		phrases := supporting(phraseCubic, stated)
		switch {
		case len(lengths) >= 3:
			dims := lengths[:3]
			out = append(out, n.check(types.KindVolume, dims, values(dims), product(dims), stated, tol.Volume))
		case len(areas) > 0 && len(lengths) > 0:
			depth := slices.MinFunc(lengths, func(a, b types.NormalizedQuantity) int {
				switch {
				case a.NormalizedValue < b.NormalizedValue:
					return -1
				case a.NormalizedValue > b.NormalizedValue:
					return 1
				}
				return 0
			})
			area := areas[0]
			dims := []types.NormalizedQuantity{area, depth}
			out = append(out, n.check(types.KindAreaDepth, dims, values(dims),
				area.NormalizedValue*depth.NormalizedValue, stated, tol.Volume))
		case len(phrases) > 0:
			if dims, ok := n.phraseDimensions(phrases[0]); ok {
				out = append(out, n.check(types.KindVolume, phrases[:1], dims, prod(dims), stated, tol.Volume))
			}
		}
	}

	// Linear runs against a stated total or perimeter. A list of runs may
	// chain past the total's own window, so only the trade is matched.
	if len(square) == 0 && cubic == 0 && len(linear) >= 3 && mentionsTotal(linear) {
		total := linear[len(linear)-1]
		var runs []types.NormalizedQuantity
		for _, q := range linear[:len(linear)-1] {
			if sameTrade(q, total) {
				runs = append(runs, q)
			}
		}
		if len(runs) >= 2 {
			var sum float64
			for _, q := range runs {
				sum += q.NormalizedValue
			}
			out = append(out, n.check(types.KindLinearTotal, runs, values(runs), sum, total, tol.Linear))
		}
	}
	return out
}

// directCheck recomputes the product of a dimension phrase ("20 by 30 feet")
// and compares it with the quantity's own normalized value.
func (n *Normalizer) directCheck(q types.NormalizedQuantity) (types.DimensionValidation, bool) {
	want := 0
	switch q.Class() {
	case types.ClassSquare:
		want = 2
	case types.ClassCubic:
		want = 3
	}
	if want == 0 || len(q.Token.Dimensions) != want || !q.UnitRecognized || q.ValidationStatus == types.StatusError {
		return types.DimensionValidation{}, false
	}
	dims, ok := n.phraseDimensions(q)
	if !ok {
		return types.DimensionValidation{}, false
	}
	return n.check(types.KindDirect, nil, dims, prod(dims), q, n.settings.Tolerances.Direct), true
}

// phraseDimensions converts the factors of a dimension phrase to feet.
func (n *Normalizer) phraseDimensions(q types.NormalizedQuantity) ([]float64, bool) {
	u, ok := n.units.Lookup(q.Token.DimensionUnit)
	if !ok || u.Class != types.ClassLinear {
		return nil, false
	}
	dims := make([]float64, len(q.Token.Dimensions))
	for i, d := range q.Token.Dimensions {
		dims[i] = d * u.Factor
	}
	return dims, true
}

// check builds one validation. sources are the quantities the dimensions came
// from; stated is the quantity whose value is being verified.
func (n *Normalizer) check(kind types.ValidationKind, sources []types.NormalizedQuantity, dims []float64,
	calculated float64, stated types.NormalizedQuantity, tolerance float64) types.DimensionValidation {
	ids := make([]string, 0, len(sources)+1)
	for _, s := range sources {
		ids = append(ids, s.ID)
	}
	ids = append(ids, stated.ID)

	provided := stated.NormalizedValue
	dev := deviation(calculated, provided)
	level := grade(dev, tolerance)

	v := types.DimensionValidation{
		Kind:            kind,
		QuantityIDs:     ids,
		Dimensions:      dims,
		CalculatedTotal: calculated,
		ProvidedTotal:   provided,
		ProvidedUnit:    stated.CanonicalUnit,
		Match:           level == types.LevelPass,
		Tolerance:       tolerance,
		Deviation:       dev,
		ValidationLevel: level,
		Recommendations: []string{},
	}
	switch level {
	case types.LevelWarning:
		v.Recommendations = append(v.Recommendations, fmt.Sprintf(
			"Calculated %s %s differs from stated %s %s by %.1f%%; verify the measurements",
			types.FormatNumber(calculated), stated.CanonicalUnit, types.FormatNumber(provided), stated.CanonicalUnit, dev*100))
	case types.LevelFail:
		v.Recommendations = append(v.Recommendations,
			fmt.Sprintf("Confirm whether the dimensions (%s %s) or the stated total (%s %s) are correct",
				types.FormatNumber(calculated), stated.CanonicalUnit, types.FormatNumber(provided), stated.CanonicalUnit),
			"Re-measure on site before pricing")
	}
	return v
}

// deviation is |calculated - provided| relative to calculated, or to
// provided when nothing was calculated.
func deviation(calculated, provided float64) float64 {
	diff := math.Abs(calculated - provided)
	switch {
	case calculated != 0:
		return diff / math.Abs(calculated)
	case provided != 0:
		return diff / math.Abs(provided)
	}
	return 0
}

// grade is pass within tolerance, warning within twice the tolerance and
// fail beyond.
func grade(dev, tolerance float64) types.ValidationLevel {
	switch {
	case dev <= tolerance+epsilon:
		return types.LevelPass
	case dev < 2*tolerance-epsilon:
		return types.LevelWarning
	}
	return types.LevelFail
}

func mentionsTotal(qs []types.NormalizedQuantity) bool {
	for _, q := range qs {
		if totalRE.MatchString(q.Token.Context) {
			return true
		}
	}
	return false
}

func values(qs []types.NormalizedQuantity) []float64 {
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = q.NormalizedValue
	}
	return out
}

func product(qs []types.NormalizedQuantity) float64 {
	return prod(values(qs))
}

func prod(vs []float64) float64 {
	p := 1.0
	for _, v := range vs {
		p *= v
	}
	return p
}
