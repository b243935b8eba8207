// Package phonetic implements the [transcript.PhoneticMatcher] interface using
// Double Metaphone phonetic encoding combined with Jaro-Winkler string
// similarity for ranked candidate selection.
//
// The matcher resolves misheard trade vocabulary ("sheet rok", "joyst",
// "facia") to the canonical spelling from a construction vocabulary:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the input and of every vocabulary term. A term whose codes
//     overlap the input's codes becomes a phonetic candidate.
//
//  2. Jaro-Winkler ranking: among phonetic candidates the term with the
//     highest Jaro-Winkler similarity wins, provided the score clears the
//     phonetic threshold. Without any phonetic candidate, a pure Jaro-Winkler
//     pass with the stricter fuzzy threshold is tried.
//
// Plural input ("joysts") is matched on its singular stem and the plural
// suffix is carried over to the corrected term.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.85
	defaultFuzzyThreshold    = 0.92
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched term to be accepted. Default: 0.85.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.phoneticThreshold = threshold
		}
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic candidate exists. Default: 0.92.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		if threshold > 0 {
			m.fuzzyThreshold = threshold
		}
	}
}

// Matcher is a phonetic vocabulary matcher. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with opts.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// term is one prepared vocabulary entry.
type term struct {
	original string
	lower    string
	tokens   []string
	letters  int
	codes    map[string]struct{}
}

// Vocabulary is a precomputed set of terms. Build it once with
// [PrepareVocabulary] and share it across calls.
type Vocabulary struct {
	terms    []term
	exact    map[string]string
	maxWords int
}

// PrepareVocabulary computes phonetic codes for every term once.
func PrepareVocabulary(words []string) *Vocabulary {
	v := &Vocabulary{exact: make(map[string]string, len(words)), maxWords: 1}
	for _, w := range words {
		lower := strings.ToLower(strings.TrimSpace(w))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		v.terms = append(v.terms, term{
			original: strings.TrimSpace(w),
			lower:    lower,
			tokens:   tokens,
			letters:  len(strings.Join(tokens, "")),
			codes:    codesForTokens(tokens),
		})
		v.exact[lower] = strings.TrimSpace(w)
		if len(tokens) > v.maxWords {
			v.maxWords = len(tokens)
		}
	}
	return v
}

// MaxWords returns the word count of the longest term.
func (v *Vocabulary) MaxWords() int {
	if v == nil {
		return 0
	}
	return v.maxWords
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	if v == nil {
		return 0
	}
	return len(v.terms)
}

// Contains reports whether word, or its singular stem, is already a
// vocabulary term.
func (v *Vocabulary) Contains(word string) bool {
	if v == nil {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(word))
	if _, ok := v.exact[lower]; ok {
		return true
	}
	stem, _ := splitPlural(lower)
	_, ok := v.exact[stem]
	return ok
}

// Match attempts to find the term from vocabulary most phonetically similar
// to word. It prepares the vocabulary on every call; use [Matcher.MatchPrepared]
// on hot paths.
//
// When matched is false, corrected equals word unchanged and confidence is 0.
func (m *Matcher) Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool) {
	return m.MatchPrepared(word, PrepareVocabulary(vocabulary))
}

// MatchPrepared is [Matcher.Match] against a prepared [Vocabulary].
func (m *Matcher) MatchPrepared(word string, v *Vocabulary) (corrected string, confidence float64, matched bool) {
	if v.Len() == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	lower := strings.ToLower(strings.TrimSpace(word))
	stem, suffix := splitPlural(lower)
	inputTokens := strings.Fields(stem)
	inputCodes := codesForTokens(inputTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}
	var best candidate

	inputLen := len(strings.Join(inputTokens, ""))

	for _, t := range v.terms {
		if !comparableLength(inputLen, t.letters) {
			continue
		}
		jw := bestJWScore(inputTokens, t.tokens, stem, t.lower)
		if codesOverlap(inputCodes, t.codes) {
			if jw >= m.phoneticThreshold && (!best.phonetic || jw > best.score) {
				best = candidate{term: t.original, score: jw, phonetic: true}
			}
			continue
		}
		if !best.phonetic && jw >= m.fuzzyThreshold && jw > best.score {
			best = candidate{term: t.original, score: jw}
		}
	}

	if best.term == "" {
		return word, 0, false
	}
	if suffix != "" && !strings.HasSuffix(strings.ToLower(best.term), suffix) {
		return best.term + suffix, best.score, true
	}
	return best.term, best.score, true
}

// comparableLength reports whether an input of n letters is close enough in
// length to a term of m letters to be a mishearing of it. A window that
// swallowed a neighbouring word is rejected here.
func comparableLength(n, m int) bool {
	diff := n - m
	if diff < 0 {
		diff = -diff
	}
	return diff <= max(2, m/4)
}

// splitPlural strips a trailing plural "s" from words longer than four
// letters.
func splitPlural(word string) (stem, suffix string) {
	if len(word) > 4 && strings.HasSuffix(word, "s") && !strings.HasSuffix(word, "ss") {
		return word[:len(word)-1], "s"
	}
	return word, ""
}

// codesForTokens returns the union of all Double Metaphone codes for tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore is the highest Jaro-Winkler similarity across the full strings,
// the space-stripped strings ("sheet rok" vs "sheetrock") and, for
// multi-word terms, the best token pair.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	// A single input word against a single-word term is already covered by
	// the full-string score; pairwise scoring only helps multi-word terms.
	if len(termTokens) > 1 && len(inputTokens) == len(termTokens) {
		var sum float64
		for i := range inputTokens {
			sum += matchr.JaroWinkler(inputTokens[i], termTokens[i], false)
		}
		if s := sum / float64(len(termTokens)); s > score {
			score = s
		}
	}

	return score
}
