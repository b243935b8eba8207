package quantity

import (
	"regexp"
	"strings"

	"github.com/MrWong99/sitescope/pkg/types"
)

// CategoryRule maps a trade to the keywords that indicate it. Keywords are
// matched as described by [KeywordRE].
type CategoryRule struct {
	Trade    types.Trade `yaml:"trade"`
	Keywords []string    `yaml:"keywords"`
}

// DefaultCategoryRules is the built-in trade keyword table, in trade
// sequence order. Earlier rules win ties.
var DefaultCategoryRules = []CategoryRule{
	{Trade: types.TradeDemolition, Keywords: []string{"demo", "demoed", "demolish*", "demolition", "tear out", "tear-out", "rip out", "remov*", "gut", "gutted", "gutting"}},
	{Trade: types.TradeExcavation, Keywords: []string{"excavat*", "dig", "digging", "trench", "trenching", "grading", "backfill*"}},
	{Trade: types.TradeConcrete, Keywords: []string{"concrete", "slab", "footing", "foundation", "pour", "poured", "pouring", "sidewalk", "driveway"}},
	{Trade: types.TradeMasonry, Keywords: []string{"brick*", "masonry", "block wall", "cmu", "stone", "mortar", "chimney", "paver"}},
	{Trade: types.TradeFraming, Keywords: []string{"fram*", "stud", "joist", "rafter", "header", "beam", "2x4", "2x6", "truss"}},
	{Trade: types.TradeRoofing, Keywords: []string{"roof*", "shingle", "flashing", "gutter", "drip edge", "ridge vent"}},
	{Trade: types.TradeWindowsDoors, Keywords: []string{"window", "door", "skylight", "slider"}},
	{Trade: types.TradeSiding, Keywords: []string{"siding", "soffit", "fascia", "stucco", "house wrap"}},
	{Trade: types.TradePlumbing, Keywords: []string{"plumb*", "pipe", "piping", "sink", "toilet", "faucet", "shower", "tub", "drain", "water heater", "pex"}},
	{Trade: types.TradeElectrical, Keywords: []string{"electric*", "outlet", "receptacle", "switch", "wiring", "wire", "wired", "circuit", "breaker", "gfci", "romex", "light", "lighting", "sconce", "recessed can"}},
	{Trade: types.TradeHVAC, Keywords: []string{"hvac", "duct", "ductwork", "furnace", "air condition*", "heat pump", "thermostat", "mini split", "register"}},
	{Trade: types.TradeInsulation, Keywords: []string{"insulat*", "batt", "spray foam", "vapor barrier", "r-13", "r-19"}},
	{Trade: types.TradeDrywall, Keywords: []string{"drywall", "sheetrock", "gypsum", "plaster*", "mud and tape", "skim coat"}},
	{Trade: types.TradeTile, Keywords: []string{"tile", "tiled", "tiling", "grout*", "backsplash", "thinset"}},
	{Trade: types.TradeFlooring, Keywords: []string{"floor*", "hardwood", "laminate", "carpet*", "lvp", "vinyl plank", "underlayment"}},
	{Trade: types.TradeCabinetry, Keywords: []string{"cabinet*", "countertop", "vanity", "vanities"}},
	{Trade: types.TradePainting, Keywords: []string{"paint*", "primer", "prime", "primed", "priming", "stain", "stained", "staining"}},
	{Trade: types.TradeTrim, Keywords: []string{"trim", "trimming", "baseboard", "casing", "crown", "molding", "moulding", "wainscoting", "shiplap"}},
	{Trade: types.TradeCleanup, Keywords: []string{"clean*", "haul*", "dumpster", "debris", "disposal"}},
}

// keywordMatcher is a compiled CategoryRule.
type keywordMatcher struct {
	trade types.Trade
	re    *regexp.Regexp
}

// CategoryMatcher finds trade keywords in text. It is read-only after
// construction and safe for concurrent use.
type CategoryMatcher struct {
	rules []keywordMatcher
}

// NewCategoryMatcher compiles rules. Rules without keywords are skipped.
func NewCategoryMatcher(rules []CategoryRule) *CategoryMatcher {
	m := &CategoryMatcher{rules: make([]keywordMatcher, 0, len(rules))}
	for _, r := range rules {
		if len(r.Keywords) == 0 {
			continue
		}
		m.rules = append(m.rules, keywordMatcher{trade: r.Trade, re: KeywordRE(r.Keywords)})
	}
	return m
}

// KeywordRE compiles keywords into one case-insensitive pattern. A keyword
// matches a whole word or phrase and its plural in "s" or "es", so "stud"
// matches "studs" but not "studio". A keyword ending in "*" is a stem that
// matches any word it begins: "fram*" matches "frame" and "framing".
func KeywordRE(keywords []string) *regexp.Regexp {
	alts := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		suffix := `(?:e?s)?\b`
		if stem, ok := strings.CutSuffix(k, "*"); ok {
			k, suffix = stem, `[a-z]*`
		}
		words := strings.Fields(k)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		alts = append(alts, strings.Join(words, `[\s-]+`)+suffix)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)`)
}

// KeywordHit is one keyword occurrence.
type KeywordHit struct {
	Trade   types.Trade
	Keyword string
	Start   int
	End     int
}

// Find returns every keyword occurrence in text, grouped by rule order and
// then by position.
func (m *CategoryMatcher) Find(text string) []KeywordHit {
	var hits []KeywordHit
	for _, r := range m.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			hits = append(hits, KeywordHit{
				Trade:   r.trade,
				Keyword: strings.ToLower(text[loc[0]:loc[1]]),
				Start:   loc[0],
				End:     loc[1],
			})
		}
	}
	return hits
}

// Trades returns the distinct trades mentioned in text in rule order.
func (m *CategoryMatcher) Trades(text string) []types.Trade {
	var out []types.Trade
	for _, r := range m.rules {
		if r.re.MatchString(text) {
			out = append(out, r.trade)
		}
	}
	return out
}

// Nearest returns the trade whose keyword lies closest to pos in text. Ties
// go to the earlier rule. When pos is negative the first matching rule wins.
// ok is false when text mentions no trade.
func (m *CategoryMatcher) Nearest(text string, pos int) (types.Trade, bool) {
	best := types.Trade("")
	bestDist := -1
	for _, h := range m.Find(text) {
		if pos < 0 {
			return h.Trade, true
		}
		d := distance(pos, h.Start, h.End)
		if bestDist < 0 || d < bestDist {
			best, bestDist = h.Trade, d
		}
	}
	return best, bestDist >= 0
}

// distance is the gap between pos and the span [start,end); zero inside it.
func distance(pos, start, end int) int {
	switch {
	case pos < start:
		return start - pos
	case pos >= end:
		return pos - end + 1
	}
	return 0
}
