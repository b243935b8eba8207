// Package measure implements the measurement extractor: it scans corrected
// narration for measurement phrases and returns typed [types.MeasurementToken]
// values in text order.
//
// Recognised phrases, tried from the most to the least structured:
//
//   - dimension phrases with three factors ("10 by 12 by 8 feet"), one cubic
//     token whose value is the product;
//   - dimension phrases with two factors ("20 by 30 feet", "20x30",
//     "20' x 30'"), one square token; a bare pair defaults to square feet
//     with reduced confidence;
//   - "<number> <unit>" for every unit in the rule table;
//   - "<number> [modifier [modifier]] <noun>" for countable nouns.
//
// Nominal lumber and sheet sizes ("2x4", "2 by 4 studs", "4 x 8 sheets") are
// not areas and produce no token; the same numbers without a lumber noun
// ("6 by 8 closet") are a bare area. A quantity lying wholly inside a dimension phrase is
// part of that phrase. Other overlapping matches are kept as separate tokens;
// de-duplication belongs to the normalizer.
package measure

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

const (
	defaultContextWindow = 20

	confidenceExplicitDimension = 0.9
	confidenceMixedDimension    = 0.85
	confidenceBareDimension     = 0.7
	confidenceCountNoun         = 0.85
	confidenceModifiedCountNoun = 0.8
)

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithContextWindow sets how many characters either side of a match are kept
// as the token context. Non-positive values are ignored. Default: 20.
func WithContextWindow(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.window = n
		}
	}
}

// WithCountNouns replaces the nouns recognised by the count rule. Empty
// slices are ignored.
func WithCountNouns(nouns []string) Option {
	return func(e *Extractor) {
		if len(nouns) > 0 {
			e.nouns = nouns
		}
	}
}

// Extractor finds measurement phrases in narration. It is read-only after
// construction and safe for concurrent use.
type Extractor struct {
	window int
	nouns  []string
	rules  []quantityRule
	count  *regexp.Regexp
}

// New returns an [Extractor] with the built-in rule table.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		window: defaultContextWindow,
		nouns:  quantity.DefaultCountNouns,
	}
	for _, o := range opts {
		o(e)
	}
	e.rules = compileRules(defaultRules)
	e.count = countRE(e.nouns)
	return e
}

// candidate is a token before IDs and context are assigned.
type candidate struct {
	start, end int
	value      float64
	unit       string
	class      types.MeasurementClass
	confidence float64
	dims       []float64
	dimUnit    string
}

type span struct{ start, end int }

func (s span) contains(start, end int) bool {
	return start >= s.start && end <= s.end
}

// Extract returns every measurement in text, ordered by position. IDs are
// assigned in that order as "m1", "m2", ...
func (e *Extractor) Extract(text string) []types.MeasurementToken {
	if strings.TrimSpace(text) == "" {
		return []types.MeasurementToken{}
	}

	var (
		found    []candidate
		phrases  []span // dimension phrases, including skipped lumber sizes
		inPhrase = func(start, end int) bool {
			for _, p := range phrases {
				if p.contains(start, end) || (start >= p.start && start < p.end) {
					return true
				}
			}
			return false
		}
	)

	for _, re := range []*regexp.Regexp{dimension3RE, dimension2RE} {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			if inPhrase(m[0], m[1]) {
				continue
			}
			phrases = append(phrases, span{m[0], m[1]})
			if c, ok := parseDimension(text, m); ok {
				found = append(found, c)
			}
		}
	}

	var singles []candidate
	for _, r := range e.rules {
		for _, m := range r.re.FindAllStringSubmatchIndex(text, -1) {
			if inPhrase(m[0], m[1]) {
				continue
			}
			v, ok := parseNumber(text[m[2]:m[3]])
			if !ok {
				continue
			}
			singles = append(singles, candidate{
				start: m[0], end: m[1],
				value: v, unit: r.unit, class: r.class, confidence: r.confidence,
			})
		}
	}
	for _, m := range e.count.FindAllStringSubmatchIndex(text, -1) {
		if inPhrase(m[0], m[1]) {
			continue
		}
		modifiers := strings.Fields(strings.ToLower(text[m[4]:m[5]]))
		if slices.ContainsFunc(modifiers, isStopModifier) {
			continue
		}
		v, ok := parseNumber(text[m[2]:m[3]])
		if !ok {
			continue
		}
		conf := confidenceCountNoun
		if len(modifiers) > 0 {
			conf = confidenceModifiedCountNoun
		}
		singles = append(singles, candidate{
			start: m[0], end: m[1],
			value: v, unit: strings.ToLower(text[m[6]:m[7]]), class: types.ClassCount, confidence: conf,
		})
	}
	found = append(found, dropNested(singles)...)

	slices.SortStableFunc(found, func(a, b candidate) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end, a.end)
	})

	tokens := make([]types.MeasurementToken, 0, len(found))
	for i, c := range found {
		tokens = append(tokens, types.MeasurementToken{
			ID:            fmt.Sprintf("m%d", i+1),
			RawText:       text[c.start:c.end],
			Start:         c.start,
			End:           c.end,
			Value:         c.value,
			Unit:          c.unit,
			Type:          c.class,
			Confidence:    c.confidence,
			Context:       contextWindow(text, c.start, c.end, e.window),
			Dimensions:    c.dims,
			DimensionUnit: c.dimUnit,
		})
	}
	return tokens
}

// dropNested removes single-quantity matches that lie wholly inside a longer
// match. At equal start offsets the longer match wins.
func dropNested(cs []candidate) []candidate {
	slices.SortStableFunc(cs, func(a, b candidate) int {
		if c := cmp.Compare(a.start, b.start); c != 0 {
			return c
		}
		return cmp.Compare(b.end, a.end)
	})
	kept := make([]candidate, 0, len(cs))
	for _, c := range cs {
		nested := slices.ContainsFunc(kept, func(k candidate) bool {
			return c.start >= k.start && c.end <= k.end
		})
		if !nested {
			kept = append(kept, c)
		}
	}
	return kept
}

func isStopModifier(w string) bool {
	_, ok := modifierStop[w]
	return ok
}

// dimensionUnits maps spoken factor units to a label and a factor to feet.
var dimensionUnits = map[string]struct {
	label  string
	toFeet float64
}{
	"feet": {"ft", 1}, "foot": {"ft", 1}, "ft": {"ft", 1}, "'": {"ft", 1},
	"inches": {"in", 1.0 / 12}, "inch": {"in", 1.0 / 12}, "in.": {"in", 1.0 / 12}, `"`: {"in", 1.0 / 12},
	"yards": {"yd", 3}, "yard": {"yd", 3}, "yds": {"yd", 3}, "yd": {"yd", 3},
	"meters": {"m", 3.28084}, "meter": {"m", 3.28084}, "metres": {"m", 3.28084}, "metre": {"m", 3.28084}, "m": {"m", 3.28084},
}

// parseDimension turns a dimension2RE or dimension3RE submatch into a
// candidate. Groups come in (number, unit, separator) triples with the last
// factor carrying no separator.
func parseDimension(text string, m []int) (candidate, bool) {
	group := func(i int) string {
		if m[2*i] < 0 {
			return ""
		}
		return text[m[2*i]:m[2*i+1]]
	}

	var (
		values []float64
		units  []string
	)
	for g := 1; 2*g < len(m); g += 3 {
		v, ok := parseNumber(group(g))
		if !ok {
			return candidate{}, false
		}
		values = append(values, v)
		units = append(units, strings.ToLower(group(g+1)))
	}

	c := candidate{start: m[0], end: m[1], class: types.ClassSquare}
	if len(values) == 3 {
		c.class = types.ClassCubic
	}

	labels := make([]string, len(units))
	distinct := map[string]struct{}{}
	for i, u := range units {
		if u == "" {
			continue
		}
		labels[i] = dimensionUnits[u].label
		distinct[labels[i]] = struct{}{}
	}

	switch len(distinct) {
	case 0:
		if len(values) == 2 && nominalSize(text, m[0], m[1], values[0], values[1]) {
			return candidate{}, false
		}
		c.dims = values
		c.dimUnit = "ft"
		c.confidence = confidenceBareDimension
	case 1:
		for l := range distinct {
			c.dimUnit = l
		}
		c.dims = values
		c.confidence = confidenceExplicitDimension
	default:
		// Mixed units: bring every factor to feet. A factor without its own
		// unit takes the next unit to its right, else the previous one.
		c.dims = make([]float64, len(values))
		for i, v := range values {
			c.dims[i] = v * dimensionUnits[nearestUnit(units, i)].toFeet
		}
		c.dimUnit = "ft"
		c.confidence = confidenceMixedDimension
	}

	c.value = 1
	for _, d := range c.dims {
		c.value *= d
	}
	if c.class == types.ClassCubic {
		c.unit = "cu " + c.dimUnit
	} else {
		c.unit = "sq " + c.dimUnit
	}
	return c, true
}

func nearestUnit(units []string, i int) string {
	for j := i; j < len(units); j++ {
		if units[j] != "" {
			return units[j]
		}
	}
	for j := i - 1; j >= 0; j-- {
		if units[j] != "" {
			return units[j]
		}
	}
	return "ft"
}

// parseNumber parses integers, decimals, "1,200" and "3/4".
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if num, den, ok := strings.Cut(s, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 0, false
		}
		return n / d, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// contextWindow returns up to window bytes either side of [start,end),
// widened to rune boundaries and trimmed of surrounding space.
func contextWindow(text string, start, end, window int) string {
	from := max(0, start-window)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	to := min(len(text), end+window)
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return strings.TrimSpace(text[from:to])
}
