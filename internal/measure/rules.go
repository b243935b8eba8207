package measure

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

// numberPattern matches an integer, a decimal, a number with thousands
// separators or a simple fraction such as 3/4.
const numberPattern = `(\d+/\d+|\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?|\.\d+)`

// quantityRule recognises "<number> <unit>" for one unit.
type quantityRule struct {
	name       string
	class      types.MeasurementClass
	unit       string
	confidence float64
	re         *regexp.Regexp
}

// ruleSpec is the uncompiled form of a quantityRule. Units is a regex
// alternation matched directly after the number.
type ruleSpec struct {
	name       string
	class      types.MeasurementClass
	unit       string
	confidence float64
	units      string
}

// defaultRules is ordered from most to least specific. When two rules match
// at the same offset the longer match is kept.
var defaultRules = []ruleSpec{
	{name: "linear_feet", class: types.ClassLinear, unit: "linear ft", confidence: 0.95,
		units: `(?:linear|lineal|lin\.?)\s*(?:feet|foot|ft)\b|lf\b`},
	{name: "square_feet", class: types.ClassSquare, unit: "sq ft", confidence: 0.95,
		units: `(?:square|sq\.?)\s*(?:feet|foot|ft)\b|sqft\b|sf\b|ft2\b|ft²`},
	{name: "square_yards", class: types.ClassSquare, unit: "sq yd", confidence: 0.95,
		units: `(?:square|sq\.?)\s*(?:yards|yard|yd)\b`},
	{name: "square_meters", class: types.ClassSquare, unit: "sq m", confidence: 0.9,
		units: `(?:square|sq\.?)\s*(?:meters|meter|metres|metre|m)\b|m2\b|m²`},
	{name: "square_inches", class: types.ClassSquare, unit: "sq in", confidence: 0.9,
		units: `(?:square|sq\.?)\s*(?:inches|inch|in)\b`},
	{name: "roofing_squares", class: types.ClassSquare, unit: "square", confidence: 0.8,
		units: `squares?\b`},
	{name: "cubic_yards", class: types.ClassCubic, unit: "cu yd", confidence: 0.95,
		units: `(?:cubic|cu\.?)\s*(?:yards|yard|yds|yd)\b|cy\b|yd3\b|yd³`},
	{name: "cubic_feet", class: types.ClassCubic, unit: "cu ft", confidence: 0.95,
		units: `(?:cubic|cu\.?)\s*(?:feet|foot|ft)\b|cf\b|ft3\b|ft³`},
	{name: "cubic_meters", class: types.ClassCubic, unit: "cu m", confidence: 0.9,
		units: `(?:cubic|cu\.?)\s*(?:meters|meter|metres|metre|m)\b|m3\b|m³`},
	{name: "feet", class: types.ClassLinear, unit: "ft", confidence: 0.9,
		units: `(?:feet|foot|ft)\b|'`},
	{name: "inches", class: types.ClassLinear, unit: "in", confidence: 0.9,
		units: `(?:inches|inch)\b|in\.|"`},
	{name: "yards", class: types.ClassLinear, unit: "yd", confidence: 0.6,
		units: `(?:yards|yard|yds|yd)\b`},
	{name: "meters", class: types.ClassLinear, unit: "m", confidence: 0.85,
		units: `(?:meters|meter|metres|metre)\b|m\b`},
	{name: "centimeters", class: types.ClassLinear, unit: "cm", confidence: 0.85,
		units: `(?:centimeters|centimeter|cm)\b`},
	{name: "millimeters", class: types.ClassLinear, unit: "mm", confidence: 0.85,
		units: `(?:millimeters|millimeter|mm)\b`},
	{name: "pounds", class: types.ClassWeight, unit: "lb", confidence: 0.9,
		units: `(?:pounds|pound|lbs|lb)\b`},
	{name: "tons", class: types.ClassWeight, unit: "ton", confidence: 0.85,
		units: `tons?\b`},
	{name: "kilograms", class: types.ClassWeight, unit: "kg", confidence: 0.85,
		units: `(?:kilograms|kilogram|kgs|kg)\b`},
	{name: "ounces", class: types.ClassWeight, unit: "oz", confidence: 0.85,
		units: `(?:ounces|ounce|oz)\b`},
	{name: "each", class: types.ClassCount, unit: "each", confidence: 0.85,
		units: `(?:each|ea|pcs|pieces|piece|units)\b`},
}

func compileRules(specs []ruleSpec) []quantityRule {
	rules := make([]quantityRule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, quantityRule{
			name:       s.name,
			class:      s.class,
			unit:       s.unit,
			confidence: s.confidence,
			re:         regexp.MustCompile(`(?i)\b` + numberPattern + `\s*(?:` + s.units + `)`),
		})
	}
	return rules
}

// dimensionUnitPattern matches the unit of one factor of a dimension phrase.
const dimensionUnitPattern = `((?:feet|foot|ft|inches|inch|yards|yard|yds|yd|meters|meter|metres|metre|m)\b|in\.|'|")`

// separatorPattern joins the factors of a dimension phrase.
const separatorPattern = `\s*(x|X|×|\*|by)\s*`

var (
	// dimension3RE matches "10 by 12 by 8 feet" and "10' x 12' x 8'".
	dimension3RE = regexp.MustCompile(`(?i)\b` +
		numberPattern + `\s*` + dimensionUnitPattern + `?` + separatorPattern +
		numberPattern + `\s*` + dimensionUnitPattern + `?` + separatorPattern +
		numberPattern + `(?:\s*` + dimensionUnitPattern + `)?`)

	// dimension2RE matches "20 by 30 feet", "20x30" and "20 feet by 30 feet".
	dimension2RE = regexp.MustCompile(`(?i)\b` +
		numberPattern + `\s*` + dimensionUnitPattern + `?` + separatorPattern +
		numberPattern + `(?:\s*` + dimensionUnitPattern + `)?`)
)

// countRE builds the count-noun rule: a number, up to two modifier words and
// a noun ("3 new GFCI outlets").
func countRE(nouns []string) *regexp.Regexp {
	forms := make([]string, 0, len(nouns)*2)
	for _, n := range nouns {
		forms = append(forms, regexp.QuoteMeta(quantity.Pluralize(n)), regexp.QuoteMeta(n))
	}
	return regexp.MustCompile(`(?i)\b` + numberPattern + `\s+((?:[a-z][a-z-]*\s+){0,2}?)(` + strings.Join(forms, "|") + `)\b`)
}

// modifierStop lists words that cannot sit between a number and the noun it
// counts. "3 feet of outlets" is a length, not three outlets.
var modifierStop = map[string]struct{}{
	"of": {}, "by": {}, "x": {}, "and": {}, "or": {}, "to": {}, "per": {},
	"feet": {}, "foot": {}, "ft": {}, "inch": {}, "inches": {}, "yard": {},
	"yards": {}, "square": {}, "cubic": {}, "linear": {}, "sq": {}, "cu": {},
	"lf": {}, "sf": {}, "pounds": {}, "lbs": {}, "tons": {}, "meters": {},
	"more": {}, "less": {}, "than": {}, "the": {},
}

// lumberNounRE matches a lumber or sheet noun within the two words that
// follow a size.
var lumberNounRE = regexp.MustCompile(`(?i)^\s+(?:[a-z-]+\s+)?(?:studs?|lumber|joists?|boards?|sheets?|plywood|osb|posts?|rafters?|plates?|beams?|blocking|framing)\b`)

// nominalSize reports whether the bare pair a×b at text[start:end] names a
// lumber or sheet size such as 2x4 or 4x8 rather than an area. A nominal pair
// is a size when written compactly ("2x4") or followed by a lumber noun
// ("2 by 4 studs"); "6 by 8 closet" stays an area.
func nominalSize(text string, start, end int, a, b float64) bool {
	if !nominalLumber(a, b) {
		return false
	}
	if !strings.ContainsFunc(text[start:end], unicode.IsSpace) {
		return true
	}
	return lumberNounRE.MatchString(text[end:])
}

func nominalLumber(a, b float64) bool {
	switch a {
	case 1, 2, 4, 6:
	default:
		return false
	}
	switch b {
	case 2, 3, 4, 6, 8, 10, 12:
		return true
	}
	return false
}
