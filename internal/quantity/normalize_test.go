package quantity_test

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/MrWong99/sitescope/internal/measure"
	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func token(id, raw string, value float64, unit string, class types.MeasurementClass, ctx string) types.MeasurementToken {
	return types.MeasurementToken{
		ID:         id,
		RawText:    raw,
		Value:      value,
		Unit:       unit,
		Type:       class,
		Confidence: 0.9,
		Context:    ctx,
	}
}

func TestNormalizeToken_UnitRoundTrip(t *testing.T) {
	t.Parallel()

	n := quantity.New()
	for _, u := range quantity.DefaultUnits {
		for _, name := range append([]string{u.Label}, u.Aliases...) {
			tok := token("t", "7.5 "+name, 7.5, name, u.Class, "")
			q := n.NormalizeToken("q1", tok)
			if !q.UnitRecognized {
				t.Errorf("unit %q: not recognised", name)
				continue
			}
			if q.CanonicalUnit != quantity.CanonicalUnit(u.Class) {
				t.Errorf("unit %q: canonical=%q, want %q", name, q.CanonicalUnit, quantity.CanonicalUnit(u.Class))
			}
			back, ok := n.Denormalize(q.NormalizedValue, name)
			if !ok || !almostEqual(back, 7.5) {
				t.Errorf("unit %q: round trip gave %v (ok=%v), want 7.5", name, back, ok)
			}
		}
	}
}

func TestNormalizeToken_Conversions(t *testing.T) {
	t.Parallel()

	n := quantity.New()
	tests := []struct {
		unit  string
		class types.MeasurementClass
		value float64
		want  float64
	}{
		{"yd", types.ClassLinear, 3, 9},
		{"in", types.ClassLinear, 18, 1.5},
		{"cu yd", types.ClassCubic, 10, 270},
		{"sq yd", types.ClassSquare, 2, 18},
		{"square", types.ClassSquare, 24, 2400},
		{"ton", types.ClassWeight, 1.5, 3000},
		{"outlets", types.ClassCount, 3, 3},
	}
	for _, tc := range tests {
		q := n.NormalizeToken("q1", token("t", "", tc.value, tc.unit, tc.class, ""))
		if !almostEqual(q.NormalizedValue, tc.want) {
			t.Errorf("%v %s: normalized=%v, want %v", tc.value, tc.unit, q.NormalizedValue, tc.want)
		}
		if q.ValidationStatus != types.StatusValid {
			t.Errorf("%v %s: status=%q, want valid (%v)", tc.value, tc.unit, q.ValidationStatus, q.ValidationNotes)
		}
	}
}

func TestNormalizeToken_UnknownUnit(t *testing.T) {
	t.Parallel()

	n := quantity.New()
	tok := token("t1", "10 zorp", 10, "zorp", types.ClassLinear, "")
	q := n.NormalizeToken("q1", tok)

	if q.ConversionFactor != 1 {
		t.Errorf("ConversionFactor=%v, want 1", q.ConversionFactor)
	}
	if q.NormalizedValue != 10 {
		t.Errorf("NormalizedValue=%v, want 10", q.NormalizedValue)
	}
	if q.ValidationStatus != types.StatusWarning {
		t.Errorf("ValidationStatus=%q, want warning", q.ValidationStatus)
	}
	if q.UnitRecognized {
		t.Error("UnitRecognized=true, want false")
	}
	found := false
	for _, note := range q.ValidationNotes {
		if strings.Contains(note, "Unknown unit") {
			found = true
		}
	}
	if !found {
		t.Errorf("ValidationNotes=%v, want a note containing %q", q.ValidationNotes, "Unknown unit")
	}
	if want := 0.9 - quantity.DefaultSettings().UnknownUnitPenalty; !almostEqual(q.Confidence, want) {
		t.Errorf("Confidence=%v, want %v", q.Confidence, want)
	}
}

func TestNormalizeToken_Status(t *testing.T) {
	t.Parallel()

	n := quantity.New()

	zero := n.NormalizeToken("q1", token("t", "0 feet", 0, "ft", types.ClassLinear, ""))
	if zero.ValidationStatus != types.StatusError {
		t.Errorf("zero value status=%q, want error", zero.ValidationStatus)
	}

	huge := n.NormalizeToken("q2", token("t", "200000 sq ft", 200000, "sq ft", types.ClassSquare, ""))
	if huge.ValidationStatus != types.StatusWarning {
		t.Errorf("huge value status=%q, want warning", huge.ValidationStatus)
	}

	metric := n.NormalizeToken("q3", token("t", "5 m", 5, "m", types.ClassLinear, ""))
	if want := 0.9 - quantity.DefaultSettings().MultiStepPenalty; !almostEqual(metric.Confidence, want) {
		t.Errorf("metric confidence=%v, want %v", metric.Confidence, want)
	}
}

func livingRoom(area float64) []types.MeasurementToken {
	ctx := "living room 20 feet by 15 feet, about 300 square feet"
	return []types.MeasurementToken{
		token("t1", "20 feet", 20, "ft", types.ClassLinear, ctx),
		token("t2", "15 feet", 15, "ft", types.ClassLinear, ctx),
		token("t3", "300 square feet", area, "sq ft", types.ClassSquare, ctx),
	}
}

func TestNormalize_DimensionPass(t *testing.T) {
	t.Parallel()

	res := quantity.New().Normalize(livingRoom(300), "")

	if len(res.DimensionValidations) != 1 {
		t.Fatalf("got %d validations, want 1: %+v", len(res.DimensionValidations), res.DimensionValidations)
	}
	v := res.DimensionValidations[0]
	if v.Kind != types.KindArea || v.ValidationLevel != types.LevelPass || !v.Match {
		t.Errorf("validation=%+v, want passing area check", v)
	}
	if v.Deviation != 0 || v.CalculatedTotal != 300 || v.ProvidedTotal != 300 {
		t.Errorf("calculated=%v provided=%v deviation=%v", v.CalculatedTotal, v.ProvidedTotal, v.Deviation)
	}
	if len(res.Ambiguities) != 0 {
		t.Errorf("ambiguities=%+v, want none", res.Ambiguities)
	}
}

func TestNormalize_DimensionFail(t *testing.T) {
	t.Parallel()

	res := quantity.New().Normalize(livingRoom(330), "")

	if len(res.DimensionValidations) != 1 {
		t.Fatalf("got %d validations, want 1", len(res.DimensionValidations))
	}
	v := res.DimensionValidations[0]
	if v.ValidationLevel != types.LevelFail || v.Match {
		t.Errorf("level=%q match=%v, want fail", v.ValidationLevel, v.Match)
	}
	if !almostEqual(v.Deviation, 0.1) {
		t.Errorf("deviation=%v, want 0.1", v.Deviation)
	}

	if len(res.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1: %+v", len(res.Ambiguities), res.Ambiguities)
	}
	a := res.Ambiguities[0]
	if a.Type != types.AmbiguityDimensionMismatch || a.Severity != types.SeverityHigh || !a.RequiresUserConfirmation {
		t.Errorf("ambiguity=%+v, want high dimension_mismatch requiring confirmation", a)
	}
	if len(a.Interpretations) != 2 {
		t.Fatalf("got %d interpretations, want 2", len(a.Interpretations))
	}
	if a.Interpretations[0].Value != 300 || a.Interpretations[1].Value != 330 {
		t.Errorf("interpretations=%+v, want calculated 300 then stated 330", a.Interpretations)
	}
	if _, ok := a.Detail.(types.DimensionMismatch); !ok {
		t.Errorf("Detail=%T, want types.DimensionMismatch", a.Detail)
	}
	if res.QualityMetrics.ValidationErrorCount != 1 {
		t.Errorf("ValidationErrorCount=%v, want 1", res.QualityMetrics.ValidationErrorCount)
	}
}

func TestNormalize_DimensionWarning(t *testing.T) {
	t.Parallel()

	res := quantity.New().Normalize(livingRoom(320), "")
	if got := res.DimensionValidations[0].ValidationLevel; got != types.LevelWarning {
		t.Errorf("level=%q, want warning for 6.7%% deviation", got)
	}
	if len(res.Ambiguities) != 0 {
		t.Errorf("ambiguities=%+v, want none for a warning", res.Ambiguities)
	}
}

func TestNormalize_AreaTimesDepth(t *testing.T) {
	t.Parallel()

	ctx := "pour 4 inch slab 24 by 24 feet, 7 cubic yards"
	tokens := []types.MeasurementToken{
		token("t1", "4 inch", 4, "in", types.ClassLinear, ctx),
		{ID: "t2", RawText: "24 by 24 feet", Value: 576, Unit: "sq ft", Type: types.ClassSquare,
			Confidence: 0.9, Context: ctx, Dimensions: []float64{24, 24}, DimensionUnit: "ft"},
		token("t3", "7 cubic yards", 7, "cu yd", types.ClassCubic, ctx),
	}
	res := quantity.New().Normalize(tokens, "")

	var kinds []types.ValidationKind
	for _, v := range res.DimensionValidations {
		kinds = append(kinds, v.Kind)
		if v.ValidationLevel != types.LevelPass {
			t.Errorf("%s check level=%q (deviation %v), want pass", v.Kind, v.ValidationLevel, v.Deviation)
		}
	}
	if !reflect.DeepEqual(kinds, []types.ValidationKind{types.KindAreaDepth, types.KindDirect}) {
		t.Errorf("kinds=%v, want [area_depth direct]", kinds)
	}
}

func TestNormalize_LinearTotal(t *testing.T) {
	t.Parallel()

	ctx := "fence runs of 40, 30 and 30 feet, 102 feet total"
	tokens := []types.MeasurementToken{
		token("t1", "40 feet", 40, "ft", types.ClassLinear, ctx),
		token("t2", "30 feet", 30, "ft", types.ClassLinear, ctx),
		token("t3", "30 feet", 30, "ft", types.ClassLinear, ctx),
		token("t4", "102 feet", 102, "ft", types.ClassLinear, ctx),
	}
	res := quantity.New().Normalize(tokens, "")
	if len(res.DimensionValidations) != 1 {
		t.Fatalf("got %d validations, want 1", len(res.DimensionValidations))
	}
	v := res.DimensionValidations[0]
	if v.Kind != types.KindLinearTotal || v.CalculatedTotal != 100 || v.ValidationLevel != types.LevelPass {
		t.Errorf("validation=%+v, want passing linear_total of 100", v)
	}
}

func TestNormalize_UnknownUnitAmbiguities(t *testing.T) {
	t.Parallel()

	n := quantity.New()

	bare := n.Normalize([]types.MeasurementToken{token("t1", "10 zorp", 10, "zorp", types.ClassLinear, "")}, "")
	if len(bare.Ambiguities) != 1 || bare.Ambiguities[0].Type != types.AmbiguityMissingContext {
		t.Fatalf("ambiguities=%+v, want one missing_context", bare.Ambiguities)
	}

	hinted := n.Normalize([]types.MeasurementToken{
		token("t1", "10 zorp", 10, "zorp", types.ClassLinear, "10 zorp along the wall"),
	}, "")
	if len(hinted.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1", len(hinted.Ambiguities))
	}
	a := hinted.Ambiguities[0]
	if a.Type != types.AmbiguityUnitUnclear {
		t.Fatalf("type=%q, want unit_unclear", a.Type)
	}
	detail, ok := a.Detail.(types.UnitUnclear)
	if !ok || len(detail.SuggestedClasses) != 1 || detail.SuggestedClasses[0] != types.ClassLinear {
		t.Errorf("detail=%+v, want linear suggestion", a.Detail)
	}
	if a.Severity != types.SeverityLow || a.RequiresUserConfirmation {
		t.Errorf("severity=%q confirm=%v, want low without confirmation", a.Severity, a.RequiresUserConfirmation)
	}

	crossed := n.Normalize([]types.MeasurementToken{
		token("t1", "10 zorp", 10, "zorp", types.ClassLinear, "10 zorp of floor area"),
	}, "")
	b := crossed.Ambiguities[0]
	if b.Severity != types.SeverityMedium || !b.RequiresUserConfirmation || len(b.Interpretations) != 2 {
		t.Errorf("ambiguity=%+v, want medium with square and recorded readings", b)
	}
}

func TestNormalize_YardsOfConcrete(t *testing.T) {
	t.Parallel()

	tok := token("t1", "10 yards", 10, "yd", types.ClassLinear, "pour 10 yards of concrete")
	res := quantity.New().Normalize([]types.MeasurementToken{tok}, "")

	if len(res.Ambiguities) != 1 {
		t.Fatalf("got %d ambiguities, want 1", len(res.Ambiguities))
	}
	a := res.Ambiguities[0]
	if a.Type != types.AmbiguityMultipleInterpretations || !a.RequiresUserConfirmation {
		t.Errorf("ambiguity=%+v, want multiple_interpretations", a)
	}
	if a.Interpretations[0].Class != types.ClassCubic || a.Interpretations[0].Value != 270 {
		t.Errorf("first interpretation=%+v, want 270 cu ft", a.Interpretations[0])
	}
}

func TestNormalize_Restatements(t *testing.T) {
	t.Parallel()

	n := quantity.New()
	mk := func(value float64) []types.MeasurementToken {
		a := token("t1", "200 square feet", 200, "sq ft", types.ClassSquare, "kitchen floor tile 200 square feet")
		a.Confidence = 0.95
		b := token("t2", "x square feet", value, "sq ft", types.ClassSquare, "kitchen floor tile x square feet")
		return []types.MeasurementToken{a, b}
	}

	tests := []struct {
		name       string
		value      float64
		ambiguity  bool
		severity   types.Severity
		total      float64
		sources    int
		notePrefix string
	}{
		{name: "duplicate", value: 203, total: 200, sources: 1, notePrefix: "q2 restates q1"},
		{name: "minor difference", value: 210, ambiguity: true, severity: types.SeverityLow, total: 410, sources: 2},
		{name: "conflict", value: 260, ambiguity: true, severity: types.SeverityMedium, total: 200, sources: 1, notePrefix: "q2 conflicts with q1"},
		{name: "wild conflict", value: 450, ambiguity: true, severity: types.SeverityCritical, total: 200, sources: 1, notePrefix: "q2 conflicts with q1"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			res := n.Normalize(mk(tc.value), "")
			if got := len(res.Ambiguities); (got == 1) != tc.ambiguity || got > 1 {
				t.Fatalf("got %d ambiguities, want ambiguity=%v: %+v", got, tc.ambiguity, res.Ambiguities)
			}
			if tc.ambiguity {
				a := res.Ambiguities[0]
				if a.Type != types.AmbiguityConflictingValues || a.Severity != tc.severity {
					t.Errorf("ambiguity type=%q severity=%q, want conflicting_values %q", a.Type, a.Severity, tc.severity)
				}
				if a.Interpretations[0].Value != 200 {
					t.Errorf("first interpretation=%v, want the higher-confidence 200", a.Interpretations[0].Value)
				}
			}
			if len(res.AggregatedItems) != 1 {
				t.Fatalf("got %d items, want 1", len(res.AggregatedItems))
			}
			item := res.AggregatedItems[0]
			if item.TotalQuantity != tc.total || len(item.SourceItems) != tc.sources {
				t.Errorf("item total=%v sources=%d, want %v from %d", item.TotalQuantity, len(item.SourceItems), tc.total, tc.sources)
			}
			if item.Category != types.TradeTile {
				t.Errorf("category=%q, want Tile", item.Category)
			}
			if tc.notePrefix == "" {
				if len(item.Notes) != 0 {
					t.Errorf("notes=%v, want none", item.Notes)
				}
			} else if len(item.Notes) != 1 || !strings.HasPrefix(item.Notes[0], tc.notePrefix) {
				t.Errorf("notes=%v, want one starting with %q", item.Notes, tc.notePrefix)
			}
		})
	}
}

func TestNormalize_LengthAndWidthDoNotConflict(t *testing.T) {
	t.Parallel()

	tokens := []types.MeasurementToken{
		token("t1", "20 feet", 20, "ft", types.ClassLinear, "deck 20 feet long"),
		token("t2", "12 feet", 12, "ft", types.ClassLinear, "deck 12 feet wide"),
	}
	res := quantity.New().Normalize(tokens, "")
	if len(res.Ambiguities) != 0 {
		t.Errorf("ambiguities=%+v, want none", res.Ambiguities)
	}
	if len(res.AggregatedItems) != 1 || res.AggregatedItems[0].TotalQuantity != 32 {
		t.Errorf("items=%+v, want one linear item of 32", res.AggregatedItems)
	}
}

func TestNormalize_StatedAreaUsesNearbyDimensions(t *testing.T) {
	t.Parallel()

	spanned := func(id, raw string, value float64, unit string, class types.MeasurementClass, start int) types.MeasurementToken {
		tok := token(id, raw, value, unit, class, raw)
		tok.Start, tok.End = start, start+len(raw)
		return tok
	}
	drywall := "Hang drywall on the 8 foot walls, about 400 square feet, and run 12 feet of trim."

	tests := []struct {
		name      string
		tokens    []types.MeasurementToken
		narration string
	}{
		{
			name:      "length of another trade",
			tokens:    measure.New().Extract(drywall),
			narration: drywall,
		},
		{
			// Each window overlaps the next but the first never reaches the area.
			name: "chained windows",
			tokens: []types.MeasurementToken{
				spanned("t1", "10 feet", 10, "ft", types.ClassLinear, 0),
				spanned("t2", "12 feet", 12, "ft", types.ClassLinear, 30),
				spanned("t3", "144 square feet", 144, "sq ft", types.ClassSquare, 60),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res := quantity.New().Normalize(tt.tokens, tt.narration)
			for _, v := range res.DimensionValidations {
				if v.Kind == types.KindArea {
					t.Errorf("area check from %v (calculated %v, provided %v)", v.QuantityIDs, v.CalculatedTotal, v.ProvidedTotal)
				}
			}
			for _, a := range res.Ambiguities {
				if a.Type == types.AmbiguityDimensionMismatch {
					t.Errorf("unexpected dimension mismatch over %v", a.AffectedIDs)
				}
			}
		})
	}
}

const narration = "Install hardwood flooring in the living room that's about 20 by 15 feet. " +
	"Also frame a new wall using 2x4 studs, 25 linear feet. The bathroom needs 3 new outlets."

func TestNormalize_EndToEndAggregation(t *testing.T) {
	t.Parallel()

	tokens := measure.New().Extract(narration)
	res := quantity.New().Normalize(tokens, narration)

	want := []struct {
		category types.Trade
		class    types.MeasurementClass
		total    float64
		unit     string
	}{
		{types.TradeFlooring, types.ClassSquare, 300, quantity.UnitSquareFeet},
		{types.TradeFraming, types.ClassLinear, 25, quantity.UnitFeet},
		{types.TradeElectrical, types.ClassCount, 3, quantity.UnitEach},
	}
	if len(res.AggregatedItems) != len(want) {
		t.Fatalf("got %d items, want %d: %+v", len(res.AggregatedItems), len(want), res.AggregatedItems)
	}
	for i, w := range want {
		it := res.AggregatedItems[i]
		if it.Category != w.category || it.Class != w.class || !almostEqual(it.TotalQuantity, w.total) || it.Unit != w.unit {
			t.Errorf("item %d = %s %s %v %s, want %s %s %v %s", i,
				it.Category, it.Class, it.TotalQuantity, it.Unit, w.category, w.class, w.total, w.unit)
		}
	}

	if len(res.Ambiguities) != 0 {
		t.Errorf("ambiguities=%+v, want none", res.Ambiguities)
	}
	if len(res.DimensionValidations) != 1 || res.DimensionValidations[0].Kind != types.KindDirect ||
		res.DimensionValidations[0].ValidationLevel != types.LevelPass {
		t.Errorf("validations=%+v, want one passing direct check", res.DimensionValidations)
	}
	if res.QualityMetrics.NormalizationSuccessRate != 1 {
		t.Errorf("NormalizationSuccessRate=%v, want 1", res.QualityMetrics.NormalizationSuccessRate)
	}
}

func TestNormalize_AggregationConservation(t *testing.T) {
	t.Parallel()

	text := "Alt 2: tile 120 square feet and 80 square feet in the finished basement. " +
		"Run 40 linear feet of baseboard, 35 linear feet of baseboard. 10 zorp near the door."
	tokens := measure.New().Extract(text)
	tokens = append(tokens, token("x1", "10 zorp", 10, "zorp", types.ClassLinear, "10 zorp near the door"))
	res := quantity.New().Normalize(tokens, text)

	for _, it := range res.AggregatedItems {
		if len(it.SourceItems) == 0 {
			t.Errorf("item %s has no sources", it.ID)
		}
		var sum float64
		for _, s := range it.SourceItems {
			sum += s.Quantity
		}
		if sum != it.TotalQuantity {
			t.Errorf("item %s: total=%v, sum of sources=%v", it.ID, it.TotalQuantity, sum)
		}
	}

	var tile *types.AggregatedItem
	for i := range res.AggregatedItems {
		if res.AggregatedItems[i].Category == types.TradeTile {
			tile = &res.AggregatedItems[i]
		}
	}
	if tile == nil {
		t.Fatalf("no Tile item in %+v", res.AggregatedItems)
	}
	if tile.BidAlternate != "Alt 2" || tile.Phase != "finish" {
		t.Errorf("tile phase=%q alt=%q, want finish / Alt 2", tile.Phase, tile.BidAlternate)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	t.Parallel()

	n := quantity.New()
	tokens := append(measure.New().Extract(narration), livingRoom(330)...)
	snapshot := append([]types.MeasurementToken(nil), tokens...)

	first := n.Normalize(tokens, narration)
	second := n.Normalize(tokens, narration)

	if !reflect.DeepEqual(first, second) {
		t.Error("Normalize is not idempotent")
	}
	if !reflect.DeepEqual(tokens, snapshot) {
		t.Error("Normalize mutated its input")
	}
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	res := quantity.New().Normalize(nil, "")
	if res.NormalizedQuantities == nil || res.DimensionValidations == nil || res.Ambiguities == nil || res.AggregatedItems == nil {
		t.Errorf("result has nil slices: %+v", res)
	}
	if res.QualityMetrics != (types.QualityMetrics{}) {
		t.Errorf("metrics=%+v, want zero", res.QualityMetrics)
	}
}

func TestWithSettings(t *testing.T) {
	t.Parallel()

	s := quantity.DefaultSettings()
	s.Tolerances.Area = 0.15
	res := quantity.New(quantity.WithSettings(s)).Normalize(livingRoom(330), "")
	if got := res.DimensionValidations[0].ValidationLevel; got != types.LevelPass {
		t.Errorf("level=%q with 15%% area tolerance, want pass", got)
	}
}
