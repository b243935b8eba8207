package stt

import "time"

// Transcript is one recognition result. Narration submitted as plain text is
// represented as a Transcript with only Text set.
type Transcript struct {
	// Text is the recognised narration.
	Text string `json:"text"`

	// IsFinal distinguishes authoritative results from interim partials.
	IsFinal bool `json:"isFinal,omitempty"`

	// Confidence is the recogniser's overall confidence (0.0–1.0). Zero means
	// the source did not report one.
	Confidence float64 `json:"confidence,omitempty"`

	// Words carries per-word detail when the service provides it.
	Words []WordDetail `json:"words,omitempty"`

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration `json:"timestamp,omitempty"`

	// Duration is the length of the utterance.
	Duration time.Duration `json:"duration,omitempty"`
}

// WordDetail holds per-word recognition metadata.
type WordDetail struct {
	Word       string        `json:"word"`
	Start      time.Duration `json:"start"`
	End        time.Duration `json:"end"`
	Confidence float64       `json:"confidence"`
}

// KeywordBoost raises the recognition probability of a vocabulary term.
type KeywordBoost struct {
	// Keyword is the term to boost (e.g. "sheetrock").
	Keyword string `json:"keyword" yaml:"keyword"`

	// Boost is the intensity of the boost on the service's own scale.
	Boost float64 `json:"boost" yaml:"boost"`
}
