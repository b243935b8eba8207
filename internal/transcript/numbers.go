package transcript

import (
	"cmp"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// numberWord classifies one spoken cardinal word.
type numberWord struct {
	value int
	kind  numberKind
}

type numberKind int

const (
	kindOnes numberKind = iota // zero..nine
	kindTeen                   // ten..nineteen
	kindTens                   // twenty..ninety
	kindHundred
	kindThousand
)

var numberWords = map[string]numberWord{
	"zero": {0, kindOnes}, "one": {1, kindOnes}, "two": {2, kindOnes},
	"three": {3, kindOnes}, "four": {4, kindOnes}, "five": {5, kindOnes},
	"six": {6, kindOnes}, "seven": {7, kindOnes}, "eight": {8, kindOnes},
	"nine": {9, kindOnes},
	"ten": {10, kindTeen}, "eleven": {11, kindTeen}, "twelve": {12, kindTeen},
	"thirteen": {13, kindTeen}, "fourteen": {14, kindTeen}, "fifteen": {15, kindTeen},
	"sixteen": {16, kindTeen}, "seventeen": {17, kindTeen}, "eighteen": {18, kindTeen},
	"nineteen": {19, kindTeen},
	"twenty": {20, kindTens}, "thirty": {30, kindTens}, "forty": {40, kindTens},
	"fifty": {50, kindTens}, "sixty": {60, kindTens}, "seventy": {70, kindTens},
	"eighty": {80, kindTens}, "ninety": {90, kindTens},
	"hundred": {100, kindHundred}, "thousand": {1000, kindThousand},
}

// numberRunRE matches a run of spoken number words joined by spaces or
// hyphens, with an optional "and" after hundred/thousand.
var numberRunRE = func() *regexp.Regexp {
	alts := make([]string, 0, len(numberWords))
	for w := range numberWords {
		alts = append(alts, w)
	}
	// Longest first so "fourteen" is not read as "four" + "teen".
	slices.SortFunc(alts, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	word := `(?:` + strings.Join(alts, "|") + `)`
	return regexp.MustCompile(`(?i)\b` + word + `(?:(?:[\s-]+and)?[\s-]+` + word + `)*\b`)
}()

var (
	// halfRE folds "2 and a half" into "2.5".
	halfRE = regexp.MustCompile(`(?i)\b(\d+)\s+and\s+a\s+half\b`)
	// pointRE folds "2 point 5" into "2.5".
	pointRE = regexp.MustCompile(`(?i)\b(\d+)\s+point\s+(\d+)\b`)
)

// ConvertNumbers rewrites spoken cardinal numbers as digits and returns the
// rewritten text with one [Correction] per rewritten run. Digits already
// present in text are never modified.
func ConvertNumbers(text string) (string, []Correction) {
	var corrections []Correction

	text = numberRunRE.ReplaceAllStringFunc(text, func(m string) string {
		out := spellRun(m)
		if out == m {
			return m
		}
		corrections = append(corrections, Correction{Original: m, Corrected: out, Confidence: 1, Method: MethodNumber})
		return out
	})

	text = halfRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := halfRE.FindStringSubmatch(m)
		out := sub[1] + ".5"
		corrections = append(corrections, Correction{Original: m, Corrected: out, Confidence: 1, Method: MethodNumber})
		return out
	})

	text = pointRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := pointRE.FindStringSubmatch(m)
		out := sub[1] + "." + sub[2]
		corrections = append(corrections, Correction{Original: m, Corrected: out, Confidence: 1, Method: MethodNumber})
		return out
	})

	return text, corrections
}

// spellRun converts one matched run. A run may hold several numbers
// ("two three" is 2 3); each is split where the next word cannot extend the
// current number.
func spellRun(run string) string {
	fields := strings.FieldsFunc(run, func(r rune) bool { return r == ' ' || r == '-' || r == '\t' || r == '\n' })

	var (
		out     []string
		total   int
		current int
		last    = numberKind(-1)
		started bool
		sawAnd  bool
	)
	flush := func() {
		if started {
			out = append(out, strconv.Itoa(total+current))
		}
		total, current, last, started = 0, 0, numberKind(-1), false
	}

	for _, f := range fields {
		lower := strings.ToLower(f)
		if lower == "and" {
			sawAnd = true
			continue
		}
		w := numberWords[lower]
		if started && !extends(last, w.kind) {
			flush()
			if sawAnd {
				out = append(out, "and")
			}
		}
		sawAnd = false
		switch w.kind {
		case kindOnes, kindTeen, kindTens:
			current += w.value
		case kindHundred:
			if current == 0 {
				current = 1
			}
			current *= 100
		case kindThousand:
			if current == 0 {
				current = 1
			}
			total += current * 1000
			current = 0
		}
		last = w.kind
		started = true
	}
	flush()
	return strings.Join(out, " ")
}

// extends reports whether a word of kind next can continue a number whose
// previous word was of kind last.
func extends(last, next numberKind) bool {
	switch next {
	case kindOnes:
		return last == kindTens || last == kindHundred || last == kindThousand
	case kindTeen, kindTens:
		return last == kindHundred || last == kindThousand
	case kindHundred:
		return last == kindOnes || last == kindTeen || last == kindTens
	case kindThousand:
		return last != kindThousand
	}
	return false
}
