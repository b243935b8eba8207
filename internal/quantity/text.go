package quantity

import (
	"strings"
	"unicode"
)

// SentenceAt returns the sentence of text that contains byte offset pos and
// the offset of that sentence within text.
func SentenceAt(text string, pos int) (string, int) {
	if pos < 0 || pos > len(text) {
		return "", 0
	}
	start := 0
	for i := pos - 1; i >= 0; i-- {
		if isSentenceEnd(text, i) {
			start = i + 1
			break
		}
	}
	end := len(text)
	for i := pos; i < len(text); i++ {
		if isSentenceEnd(text, i) {
			end = i + 1
			break
		}
	}
	return text[start:end], start
}

// isSentenceEnd reports whether text[i] terminates a sentence. A period
// between digits ("2.5") does not.
func isSentenceEnd(text string, i int) bool {
	switch text[i] {
	case '!', '?', '\n', ';':
		return true
	case '.':
		if i+1 < len(text) && text[i+1] >= '0' && text[i+1] <= '9' {
			return false
		}
		return i+1 == len(text) || text[i+1] == ' ' || text[i+1] == '\n'
	}
	return false
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "is": {}, "it": {},
	"that": {}, "that's": {}, "this": {}, "about": {}, "by": {}, "x": {},
	"feet": {}, "foot": {}, "ft": {}, "square": {}, "cubic": {}, "linear": {},
	"inches": {}, "inch": {}, "yards": {}, "sq": {}, "cu": {}, "we": {},
	"need": {}, "needs": {}, "also": {}, "new": {}, "be": {}, "are": {},
}

// contentWords returns the distinct lowercase non-numeric words of s that
// carry meaning.
func contentWords(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'")
		if len(w) < 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// jaccard is |a∩b| / |a∪b|, or 0 when both are empty.
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// dimensionRole classifies which extent a context describes. Two
// measurements with different roles are a length and a width, not a
// restatement.
func dimensionRole(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		switch w {
		case "long", "length", "lengths":
			return "length"
		case "wide", "width", "widths":
			return "width"
		case "high", "height", "tall":
			return "height"
		case "deep", "depth", "thick", "thickness":
			return "depth"
		}
	}
	return ""
}
