// Package transcript implements the terminology corrector that cleans raw
// site narration before measurements are extracted from it.
//
// Speech-to-text output mangles construction vocabulary: "dry wall",
// "two by four", "five eighth", "twenty-five linear feet". The [Pipeline]
// applies deterministic correction stages in order:
//
//  1. Unicode folding: NFKC normalisation, curly quotes and primes to ASCII,
//     fraction slashes to "/".
//  2. Lexicon: whole-word, case-insensitive phrase replacements from a fixed
//     construction dictionary ([DefaultLexicon]).
//  3. Spoken numbers: "twenty-five" to "25", "two and a half" to "2.5".
//  4. Phonetic vocabulary (optional): misheard trade terms resolved with a
//     [PhoneticMatcher].
//
// Every stage is total: it never fails and never touches digits that were
// already in the text. Each [Correction] records which stage produced a
// substitution so callers can audit or display the changes.
//
// Implementations of both interfaces must be safe for concurrent use.
package transcript

import (
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

// Correction methods.
const (
	MethodLexicon  = "lexicon"
	MethodNumber   = "number"
	MethodPhonetic = "phonetic"
)

// Correction captures a single substitution made by the pipeline.
type Correction struct {
	// Original is the text as it appeared before the stage ran.
	Original string `json:"original"`

	// Corrected is the replacement.
	Corrected string `json:"corrected"`

	// Confidence is the pipeline's confidence in this substitution (0.0–1.0).
	// Lexicon and number substitutions are exact and always 1.
	Confidence float64 `json:"confidence"`

	// Method is one of [MethodLexicon], [MethodNumber] or [MethodPhonetic].
	Method string `json:"method"`
}

// CorrectedTranscript is the output of [Pipeline.CorrectTranscript].
type CorrectedTranscript struct {
	// Original is the transcript as received from the narration source.
	Original stt.Transcript `json:"original"`

	// Corrected is the full corrected narration text.
	Corrected string `json:"corrected"`

	// Corrections is the ordered list of substitutions. An empty (non-nil)
	// slice means no corrections were necessary.
	Corrections []Correction `json:"corrections"`
}

// Corrector is the minimal contract of the terminology corrector: a total,
// deterministic text-to-text function.
type Corrector interface {
	Correct(text string) string
}

// Pipeline is a [Corrector] that also reports what it changed.
type Pipeline interface {
	Corrector

	// CorrectTranscript corrects t.Text and returns the corrected text with
	// an itemised record of every substitution. It never returns nil.
	CorrectTranscript(t stt.Transcript) *CorrectedTranscript
}

// PhoneticMatcher resolves a word or short phrase to a known vocabulary term
// based on pronunciation similarity.
//
// Implementations must be safe for concurrent use.
type PhoneticMatcher interface {
	// Match returns the best vocabulary term for word. When matched is false,
	// corrected must equal word unchanged and confidence must be 0.
	Match(word string, vocabulary []string) (corrected string, confidence float64, matched bool)
}
