// Package quantity implements the quantity normalizer: it converts extracted
// measurement tokens to canonical units, cross-validates dimensions, flags
// ambiguities for human review and aggregates related measurements into
// priced-ready line items.
//
// A [Normalizer] is a pure function over its inputs and the tables it was
// built with. Unrecognised units, implausible values and disagreeing
// restatements are never errors: they lower confidence and surface as notes,
// [types.DimensionValidation] levels or [types.QuantityAmbiguity] records.
package quantity

import (
	"fmt"
	"math"

	"github.com/MrWong99/sitescope/pkg/types"
)

// Tolerances are the relative deviations accepted by dimension checks.
type Tolerances struct {
	// Linear applies to linear runs reconciled against a stated total.
	Linear float64 `yaml:"linear"`
	// Area applies to two lengths checked against a stated area.
	Area float64 `yaml:"area"`
	// Volume applies to checks against a stated volume.
	Volume float64 `yaml:"volume"`
	// Direct applies to a dimension phrase checked against its own product.
	Direct float64 `yaml:"direct"`
}

// Settings are the tunable constants of the normalizer.
type Settings struct {
	Tolerances Tolerances `yaml:"tolerances"`

	// UnknownUnitPenalty is subtracted from the confidence of a quantity
	// whose unit is not in the conversion table.
	UnknownUnitPenalty float64 `yaml:"unknown_unit_penalty"`

	// MultiStepPenalty is subtracted once per conversion hop beyond the first.
	MultiStepPenalty float64 `yaml:"multi_step_penalty"`

	// LargeValueThreshold marks canonical values above it as implausible.
	LargeValueThreshold float64 `yaml:"large_value_threshold"`

	// ConflictThreshold is the relative difference above which two
	// restatements of the same quantity conflict.
	ConflictThreshold float64 `yaml:"conflict_threshold"`

	// DuplicateThreshold is the relative difference at or below which two
	// restatements are the same quantity and are counted once.
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`

	// ContextWindow is the character radius around a token used to decide
	// whether two tokens describe the same extent.
	ContextWindow int `yaml:"context_window"`

	// SimilarContext is the minimum Jaccard similarity of the content words
	// of two contexts for their quantities to be compared as restatements.
	SimilarContext float64 `yaml:"similar_context"`
}

// DefaultSettings returns the built-in constants.
func DefaultSettings() Settings {
	return Settings{
		Tolerances: Tolerances{
			Linear: 0.02,
			Area:   0.05,
			Volume: 0.10,
			Direct: 0.01,
		},
		UnknownUnitPenalty:  0.3,
		MultiStepPenalty:    0.05,
		LargeValueThreshold: 100000,
		ConflictThreshold:   0.10,
		DuplicateThreshold:  0.02,
		ContextWindow:       20,
		SimilarContext:      0.6,
	}
}

// Option is a functional option for configuring a [Normalizer].
type Option func(*Normalizer)

// WithSettings replaces the tunable constants.
func WithSettings(s Settings) Option {
	return func(n *Normalizer) {
		n.settings = s
	}
}

// WithUnitTable replaces the conversion table.
func WithUnitTable(t *UnitTable) Option {
	return func(n *Normalizer) {
		if t != nil {
			n.units = t
		}
	}
}

// WithCategoryRules replaces the trade keyword table used for aggregation.
func WithCategoryRules(rules []CategoryRule) Option {
	return func(n *Normalizer) {
		n.categories = NewCategoryMatcher(rules)
	}
}

// Normalizer turns measurement tokens into a [types.QuantityNormalizationResult].
// It is read-only after construction and safe for concurrent use.
type Normalizer struct {
	settings   Settings
	units      *UnitTable
	categories *CategoryMatcher
}

// New returns a [Normalizer] over the built-in tables.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		settings:   DefaultSettings(),
		units:      DefaultUnitTable(),
		categories: NewCategoryMatcher(DefaultCategoryRules),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Settings returns the constants n was built with.
func (n *Normalizer) Settings() Settings {
	return n.settings
}

// Normalize converts, validates, disambiguates and aggregates tokens.
// narration is the text the tokens were extracted from and may be empty; it
// sharpens category, phase and bid-alternate inference. tokens is not
// modified.
func (n *Normalizer) Normalize(tokens []types.MeasurementToken, narration string) types.QuantityNormalizationResult {
	quantities := make([]types.NormalizedQuantity, 0, len(tokens))
	for i, tok := range tokens {
		quantities = append(quantities, n.NormalizeToken(fmt.Sprintf("q%d", i+1), tok))
	}

	validations := n.validateDimensions(quantities, narration)

	var ambiguities []types.QuantityAmbiguity
	ambiguities = append(ambiguities, mismatchAmbiguities(quantities, validations)...)
	ambiguities = append(ambiguities, n.unitAmbiguities(quantities)...)
	conflicts, duplicates := n.restatements(quantities, validations)
	ambiguities = append(ambiguities, conflicts...)
	for i := range ambiguities {
		ambiguities[i].ID = fmt.Sprintf("amb%d", i+1)
	}
	if ambiguities == nil {
		ambiguities = []types.QuantityAmbiguity{}
	}

	items := n.aggregate(quantities, duplicates, narration)

	return types.QuantityNormalizationResult{
		NormalizedQuantities: quantities,
		DimensionValidations: validations,
		Ambiguities:          ambiguities,
		AggregatedItems:      items,
		QualityMetrics:       qualityMetrics(quantities, validations, ambiguities, items),
	}
}

// NormalizeToken converts a single token to the canonical unit of its class.
func (n *Normalizer) NormalizeToken(id string, tok types.MeasurementToken) types.NormalizedQuantity {
	q := types.NormalizedQuantity{
		ID:               id,
		Token:            tok,
		ValidationStatus: types.StatusValid,
		ValidationNotes:  []string{},
		Confidence:       tok.Confidence,
	}

	canonical := CanonicalUnit(tok.Type)
	if canonical == "" {
		q.NormalizedValue = tok.Value
		q.CanonicalUnit = tok.Unit
		q.ConversionFactor = 1
		q.ConversionTrail = fmt.Sprintf("%s %s (no conversion)", types.FormatNumber(tok.Value), tok.Unit)
		q.ValidationStatus = types.StatusError
		q.ValidationNotes = append(q.ValidationNotes, fmt.Sprintf("Unknown measurement class %q", tok.Type))
		q.Confidence = clamp01(q.Confidence - n.settings.UnknownUnitPenalty)
		return q
	}
	q.CanonicalUnit = canonical

	unit, ok := n.units.Lookup(tok.Unit)
	switch {
	case !ok:
		q.ConversionFactor = 1
		q.NormalizedValue = tok.Value
		q.ConversionTrail = fmt.Sprintf("%s %s × 1 = %s %s (unknown unit, no conversion)",
			types.FormatNumber(tok.Value), tok.Unit, types.FormatNumber(q.NormalizedValue), canonical)
		q.ValidationNotes = append(q.ValidationNotes, fmt.Sprintf("Unknown unit %q; assumed %s", tok.Unit, canonical))
		q.Confidence -= n.settings.UnknownUnitPenalty
	case unit.Class != tok.Type:
		q.ConversionFactor = 1
		q.NormalizedValue = tok.Value
		q.ConversionTrail = fmt.Sprintf("%s %s × 1 = %s %s (unit class mismatch, no conversion)",
			types.FormatNumber(tok.Value), tok.Unit, types.FormatNumber(q.NormalizedValue), canonical)
		q.ValidationNotes = append(q.ValidationNotes,
			fmt.Sprintf("Unknown unit %q for a %s measurement (it is a %s unit)", tok.Unit, tok.Type, unit.Class))
		q.Confidence -= n.settings.UnknownUnitPenalty
		ok = false
	default:
		q.UnitRecognized = true
		q.ConversionFactor = unit.Factor
		q.NormalizedValue = tok.Value * unit.Factor
		if unit.Factor == 1 {
			q.ConversionTrail = fmt.Sprintf("%s %s (canonical)", types.FormatNumber(tok.Value), canonical)
		} else {
			q.ConversionTrail = fmt.Sprintf("%s %s × %s = %s %s",
				types.FormatNumber(tok.Value), unit.Label, formatFactor(unit.Factor),
				types.FormatNumber(q.NormalizedValue), canonical)
		}
		if unit.Steps > 1 {
			q.Confidence -= n.settings.MultiStepPenalty * float64(unit.Steps-1)
			q.ValidationNotes = append(q.ValidationNotes,
				fmt.Sprintf("Converted from %s in %d steps", unit.Label, unit.Steps))
		}
	}
	q.Confidence = clamp01(q.Confidence)

	if q.NormalizedValue > n.settings.LargeValueThreshold {
		q.ValidationNotes = append(q.ValidationNotes, fmt.Sprintf("Value %s %s exceeds the plausibility threshold of %s",
			types.FormatNumber(q.NormalizedValue), canonical, types.FormatNumber(n.settings.LargeValueThreshold)))
	}
	switch {
	case q.NormalizedValue <= 0:
		q.ValidationStatus = types.StatusError
		q.ValidationNotes = append(q.ValidationNotes, "Value must be greater than zero")
	case !ok || q.NormalizedValue > n.settings.LargeValueThreshold:
		q.ValidationStatus = types.StatusWarning
	}
	return q
}

// Denormalize converts a canonical value back to unit. ok is false when unit
// is not in the table.
func (n *Normalizer) Denormalize(value float64, unit string) (float64, bool) {
	u, ok := n.units.Lookup(unit)
	if !ok || u.Factor == 0 {
		return 0, false
	}
	return value / u.Factor, true
}

func qualityMetrics(qs []types.NormalizedQuantity, vs []types.DimensionValidation,
	as []types.QuantityAmbiguity, items []types.AggregatedItem) types.QualityMetrics {
	m := types.QualityMetrics{AmbiguityCount: len(as)}

	if len(qs) > 0 {
		var conf float64
		valid := 0
		for _, q := range qs {
			conf += q.Confidence
			if q.ValidationStatus == types.StatusValid {
				valid++
			}
		}
		m.OverallConfidence = conf / float64(len(qs))
		m.NormalizationSuccessRate = float64(valid) / float64(len(qs))
	}
	if len(vs) > 0 {
		failed := 0
		for _, v := range vs {
			if v.ValidationLevel == types.LevelFail {
				failed++
			}
		}
		m.ValidationErrorCount = float64(failed) / float64(len(vs))
	}
	if len(items) > 0 {
		var conf float64
		for _, it := range items {
			conf += it.Confidence
		}
		m.CompletenessScore = conf / float64(len(items))
	}
	return m
}

func formatFactor(f float64) string {
	if f < 0.01 {
		return fmt.Sprintf("%.6g", f)
	}
	return fmt.Sprintf("%.4g", f)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
