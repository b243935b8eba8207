// Package types defines the shared data model used across all sitescope packages.
//
// These types form the lingua franca between the terminology corrector, the
// measurement extractor, the quantity normalizer, the scope organizer and the
// export layer. Every value is created fresh per pipeline run and is never
// mutated after another stage has read it: stages build new values instead of
// patching old ones.
//
// JSON field names are part of the export contract consumed by pricing and UI
// collaborators and must not be renamed.
package types

import "fmt"

// MeasurementClass is the physical kind of a measurement. It determines which
// units are valid and which canonical unit a value is normalized to.
type MeasurementClass string

const (
	ClassLinear MeasurementClass = "linear"
	ClassSquare MeasurementClass = "square"
	ClassCubic  MeasurementClass = "cubic"
	ClassCount  MeasurementClass = "count"
	ClassWeight MeasurementClass = "weight"
)

// Classes lists every measurement class in a stable order.
var Classes = []MeasurementClass{ClassLinear, ClassSquare, ClassCubic, ClassCount, ClassWeight}

// IsValid reports whether c is a recognised measurement class.
func (c MeasurementClass) IsValid() bool {
	switch c {
	case ClassLinear, ClassSquare, ClassCubic, ClassCount, ClassWeight:
		return true
	}
	return false
}

// Rank orders the geometric classes by dimensionality: linear < square < cubic.
// Count and weight have no dimensional rank and return 0.
func (c MeasurementClass) Rank() int {
	switch c {
	case ClassLinear:
		return 1
	case ClassSquare:
		return 2
	case ClassCubic:
		return 3
	}
	return 0
}

// MeasurementToken is one recognised quantity in narration text. Tokens are
// produced by the extractor and are immutable afterwards.
type MeasurementToken struct {
	// ID uniquely identifies the token within one pipeline run (e.g. "m1").
	ID string `json:"id"`

	// RawText is the exact narration span the token was parsed from.
	RawText string `json:"rawText"`

	// Start and End are the byte offsets of RawText in the narration. Both are
	// zero for tokens that were not produced from a narration string.
	Start int `json:"start"`
	End   int `json:"end"`

	// Value is the parsed numeric value in Unit.
	Value float64 `json:"value"`

	// Unit is the unit string as recognised in the narration (e.g. "linear feet").
	Unit string `json:"unit"`

	// Type is the measurement class.
	Type MeasurementClass `json:"type"`

	// Confidence in [0,1] reflects how explicit the phrase was.
	Confidence float64 `json:"confidence"`

	// Context is the surrounding narration window.
	Context string `json:"context,omitempty"`

	// Dimensions holds the individual factors of a dimension phrase such as
	// "20 by 30 feet", expressed in DimensionUnit. Empty for single quantities.
	Dimensions    []float64 `json:"dimensions,omitempty"`
	DimensionUnit string    `json:"dimensionUnit,omitempty"`
}

// HasSpan reports whether the token carries narration offsets.
func (t MeasurementToken) HasSpan() bool {
	return t.End > t.Start
}

// String renders the token as "raw → value unit (type)".
func (t MeasurementToken) String() string {
	return fmt.Sprintf("%s → %s %s (%s)", t.RawText, FormatNumber(t.Value), t.Unit, t.Type)
}

// FormatNumber renders v without trailing zeros, rounded to two decimals.
func FormatNumber(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	for len(s) > 0 && s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	if s == "-0" {
		return "0"
	}
	return s
}
