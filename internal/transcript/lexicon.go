package transcript

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// LexiconEntry maps a misheard or spoken phrase to its written form.
type LexiconEntry struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// DefaultLexicon is the built-in construction dictionary. Phrases are matched
// as whole words, case-insensitively; spaces in From also match hyphens.
var DefaultLexicon = []LexiconEntry{
	// Dimensional lumber. These run before spoken numbers so that
	// "two by four" becomes a nominal size rather than a 2 by 4 area.
	{From: "two by fours", To: "2x4s"},
	{From: "two by four", To: "2x4"},
	{From: "to by four", To: "2x4"},
	{From: "too by four", To: "2x4"},
	{From: "two by sixes", To: "2x6s"},
	{From: "two by six", To: "2x6"},
	{From: "two by eights", To: "2x8s"},
	{From: "two by eight", To: "2x8"},
	{From: "two by tens", To: "2x10s"},
	{From: "two by ten", To: "2x10"},
	{From: "two by twelves", To: "2x12s"},
	{From: "two by twelve", To: "2x12"},
	{From: "four by fours", To: "4x4s"},
	{From: "four by four", To: "4x4"},
	{From: "six by six", To: "6x6"},
	{From: "one by six", To: "1x6"},

	// Sheet goods and fractional thicknesses.
	{From: "five eighths inch", To: `5/8"`},
	{From: "five eighth inch", To: `5/8"`},
	{From: "five eighths", To: `5/8"`},
	{From: "five eighth", To: `5/8"`},
	{From: "three quarter inch", To: `3/4"`},
	{From: "three quarters inch", To: `3/4"`},

	// Split or misheard trade words.
	{From: "dry wall", To: "drywall"},
	{From: "sheet rock", To: "sheetrock"},
	{From: "ply wood", To: "plywood"},
	{From: "sub floor", To: "subfloor"},
	{From: "base boards", To: "baseboards"},
	{From: "base board", To: "baseboard"},
	{From: "back splash", To: "backsplash"},
	{From: "counter tops", To: "countertops"},
	{From: "counter top", To: "countertop"},
	{From: "wains coating", To: "wainscoting"},
	{From: "ship lap", To: "shiplap"},
	{From: "under layment", To: "underlayment"},
	{From: "thin set", To: "thinset"},
	{From: "soffet", To: "soffit"},
	{From: "facia", To: "fascia"},
	{From: "roamex", To: "romex"},
	{From: "h vac", To: "HVAC"},
	{From: "h v a c", To: "HVAC"},
	{From: "g f c i", To: "GFCI"},
	{From: "gfi", To: "GFCI"},
	{From: "p v c", To: "PVC"},
	{From: "l v p", To: "LVP"},
	{From: "o s b", To: "OSB"},
	{From: "lineal feet", To: "linear feet"},
	{From: "lineal foot", To: "linear foot"},
	{From: "square footage", To: "square feet"},
}

// lexiconRule is one compiled [LexiconEntry].
type lexiconRule struct {
	re *regexp.Regexp
	to string
}

// Lexicon is a compiled, ordered set of phrase replacements. It is read-only
// after construction and safe for concurrent use.
type Lexicon struct {
	rules []lexiconRule
}

// NewLexicon compiles entries. Longer phrases are applied first so that
// "five eighths inch" wins over "five eighths". Entries with an empty From
// are rejected.
func NewLexicon(entries []LexiconEntry) (*Lexicon, error) {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b LexiconEntry) int {
		return cmp.Compare(len(b.From), len(a.From))
	})

	l := &Lexicon{rules: make([]lexiconRule, 0, len(sorted))}
	for i, e := range sorted {
		from := strings.TrimSpace(e.From)
		if from == "" {
			return nil, fmt.Errorf("transcript: lexicon entry %d has empty from", i)
		}
		words := strings.Fields(from)
		for j, w := range words {
			words[j] = regexp.QuoteMeta(w)
		}
		pattern := `(?i)\b` + strings.Join(words, `[\s-]+`) + `\b`
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("transcript: lexicon entry %q: %w", e.From, err)
		}
		l.rules = append(l.rules, lexiconRule{re: re, to: e.To})
	}
	return l, nil
}

// MustLexicon is [NewLexicon] that panics on error. Intended for the
// built-in dictionary.
func MustLexicon(entries []LexiconEntry) *Lexicon {
	l, err := NewLexicon(entries)
	if err != nil {
		panic(err)
	}
	return l
}

// Apply runs every rule over text and returns the result along with one
// [Correction] per replaced occurrence.
func (l *Lexicon) Apply(text string) (string, []Correction) {
	var corrections []Correction
	for _, r := range l.rules {
		text = r.re.ReplaceAllStringFunc(text, func(m string) string {
			if m == r.to {
				return m
			}
			corrections = append(corrections, Correction{
				Original:   m,
				Corrected:  r.to,
				Confidence: 1,
				Method:     MethodLexicon,
			})
			return r.to
		})
	}
	return text, corrections
}

// Len returns the number of compiled rules.
func (l *Lexicon) Len() int {
	return len(l.rules)
}
