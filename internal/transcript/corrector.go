package transcript

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/MrWong99/sitescope/internal/transcript/phonetic"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// minPhoneticLetters is the shortest word the phonetic stage will touch.
// Shorter words collide with too many unrelated terms.
const minPhoneticLetters = 4

// DefaultVocabulary is the trade vocabulary offered to the phonetic stage
// when none is configured.
var DefaultVocabulary = []string{
	"sheetrock", "drywall", "joist", "rafter", "soffit", "fascia", "stucco",
	"wainscoting", "backsplash", "subfloor", "baseboard", "plywood", "romex",
	"conduit", "flashing", "underlayment", "grout", "thinset", "shiplap",
	"rebar", "gypsum", "drip edge", "vapor barrier", "ridge vent",
}

// asciiFolder maps typographic characters left after NFKC folding to the
// ASCII forms the extractor understands. Double primes come first so they
// are not read as two single primes.
var asciiFolder = strings.NewReplacer(
	"′′", `"`,
	"″", `"`,
	"′", "'",
	"’", "'",
	"‘", "'",
	"“", `"`,
	"”", `"`,
	"⁄", "/",
	"×", "x",
)

// PipelineOption is a functional option for configuring a [CorrectionPipeline].
type PipelineOption func(*CorrectionPipeline)

// WithLexicon replaces the built-in dictionary. A nil lexicon disables the
// lexicon stage.
func WithLexicon(l *Lexicon) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.lexicon = l
	}
}

// WithSpokenNumbers toggles the spoken-number stage. Default: enabled.
func WithSpokenNumbers(enabled bool) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.numbers = enabled
	}
}

// WithPhoneticMatcher attaches a [PhoneticMatcher] as the last correction
// stage, matching against vocabulary (or [DefaultVocabulary] when empty).
// When nil (the default), the phonetic stage is skipped entirely.
func WithPhoneticMatcher(m PhoneticMatcher, vocabulary []string) PipelineOption {
	return func(p *CorrectionPipeline) {
		p.phonetic = m
		if len(vocabulary) == 0 {
			vocabulary = DefaultVocabulary
		}
		p.vocabulary = append([]string(nil), vocabulary...)
		p.prepared = phonetic.PrepareVocabulary(p.vocabulary)
	}
}

// CorrectionPipeline is the staged terminology corrector implementation of
// [Pipeline]. It is read-only after construction and safe for concurrent use.
type CorrectionPipeline struct {
	lexicon    *Lexicon
	numbers    bool
	phonetic   PhoneticMatcher
	vocabulary []string
	prepared   *phonetic.Vocabulary
}

// Ensure CorrectionPipeline satisfies the Pipeline interface at compile time.
var _ Pipeline = (*CorrectionPipeline)(nil)

// NewPipeline constructs a [CorrectionPipeline]. By default the built-in
// lexicon and spoken-number stages are active and the phonetic stage is off.
func NewPipeline(opts ...PipelineOption) *CorrectionPipeline {
	p := &CorrectionPipeline{
		lexicon: MustLexicon(DefaultLexicon),
		numbers: true,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Correct returns the corrected form of text. It is total and deterministic.
func (p *CorrectionPipeline) Correct(text string) string {
	return p.CorrectTranscript(stt.Transcript{Text: text}).Corrected
}

// CorrectTranscript applies every configured stage to t.Text.
//
// Pipeline flow:
//  1. NFKC folding and typographic-to-ASCII replacement.
//  2. Lexicon phrase replacement.
//  3. Spoken numbers to digits.
//  4. Phonetic vocabulary alignment, when a matcher is configured.
func (p *CorrectionPipeline) CorrectTranscript(t stt.Transcript) *CorrectedTranscript {
	result := &CorrectedTranscript{
		Original:    t,
		Corrections: []Correction{},
	}

	working := fold(t.Text)

	if p.lexicon != nil {
		var cs []Correction
		working, cs = p.lexicon.Apply(working)
		result.Corrections = append(result.Corrections, cs...)
	}

	if p.numbers {
		var cs []Correction
		working, cs = ConvertNumbers(working)
		result.Corrections = append(result.Corrections, cs...)
	}

	if p.phonetic != nil && p.prepared.Len() > 0 {
		var cs []Correction
		working, cs = p.applyPhonetic(working)
		result.Corrections = append(result.Corrections, cs...)
	}

	result.Corrected = working
	return result
}

// fold applies Unicode compatibility folding. Text that is already plain
// ASCII is returned untouched.
func fold(text string) string {
	ascii := true
	for i := 0; i < len(text); i++ {
		if text[i] >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return text
	}
	return asciiFolder.Replace(norm.NFKC.String(text))
}

// applyPhonetic runs the phonetic stage over text.
//
// At each token position, n-gram windows from the longest vocabulary term
// down to one word are tried and the longest match wins. Windows containing
// digits, words that are already vocabulary terms, and words shorter than
// [minPhoneticLetters] are never rewritten. Text without any match is
// returned byte-for-byte unchanged.
func (p *CorrectionPipeline) applyPhonetic(text string) (string, []Correction) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return text, nil
	}

	matchFn := func(window string) (string, float64, bool) {
		return p.phonetic.Match(window, p.vocabulary)
	}
	if pm, ok := p.phonetic.(*phonetic.Matcher); ok {
		matchFn = func(window string) (string, float64, bool) {
			return pm.MatchPrepared(window, p.prepared)
		}
	}

	maxWords := p.prepared.MaxWords()
	var (
		output      []string
		corrections []Correction
	)

	i := 0
	for i < len(tokens) {
		maxN := min(maxWords, len(tokens)-i)

		matched := false
		for n := maxN; n >= 1; n-- {
			lead, core, trail := trimWindow(tokens[i : i+n])
			if !eligible(core) || p.prepared.Contains(core) {
				continue
			}
			term, conf, ok := matchFn(core)
			if !ok || strings.EqualFold(term, core) {
				continue
			}
			output = append(output, lead+term+trail)
			corrections = append(corrections, Correction{
				Original:   core,
				Corrected:  term,
				Confidence: conf,
				Method:     MethodPhonetic,
			})
			i += n
			matched = true
			break
		}

		if !matched {
			output = append(output, tokens[i])
			i++
		}
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(output, " "), corrections
}

// trimWindow joins a token window and splits off leading and trailing
// punctuation so "sheetrok," is matched as "sheetrok".
func trimWindow(tokens []string) (lead, core, trail string) {
	joined := strings.Join(tokens, " ")
	start := strings.IndexFunc(joined, isWordRune)
	if start < 0 {
		return joined, "", ""
	}
	end := strings.LastIndexFunc(joined, isWordRune)
	_, size := firstRune(joined[end:])
	return joined[:start], joined[start : end+size], joined[end+size:]
}

func firstRune(s string) (rune, int) {
	for i, r := range s {
		if i > 0 {
			return r, i
		}
	}
	return 0, len(s)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// eligible reports whether a window may be phonetically rewritten.
func eligible(window string) bool {
	letters := 0
	for _, r := range window {
		switch {
		case unicode.IsDigit(r):
			return false
		case unicode.IsLetter(r):
			letters++
		case r == ' ' || r == '-' || r == '\'':
		default:
			return false
		}
	}
	return letters >= minPhoneticLetters
}
