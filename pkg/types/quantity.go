package types

// ValidationStatus is the per-quantity outcome of unit normalization.
type ValidationStatus string

const (
	StatusValid   ValidationStatus = "valid"
	StatusWarning ValidationStatus = "warning"
	StatusError   ValidationStatus = "error"
)

// NormalizedQuantity is one [MeasurementToken] converted to the canonical unit
// of its class. It always traces back to exactly one token.
type NormalizedQuantity struct {
	ID    string           `json:"id"`
	Token MeasurementToken `json:"token"`

	NormalizedValue  float64 `json:"normalizedValue"`
	CanonicalUnit    string  `json:"canonicalUnit"`
	ConversionFactor float64 `json:"conversionFactor"`

	// ConversionTrail is a human-readable account of the conversion, e.g.
	// "3 yd × 3 = 9 ft".
	ConversionTrail string `json:"conversionTrail"`

	ValidationStatus ValidationStatus `json:"validationStatus"`
	ValidationNotes  []string         `json:"validationNotes"`

	// Confidence is the token confidence after unit penalties.
	Confidence float64 `json:"confidence"`

	// UnitRecognized is false when the token unit was not in the conversion
	// table and a factor of 1 was applied.
	UnitRecognized bool `json:"unitRecognized"`
}

// Class is shorthand for q.Token.Type.
func (q NormalizedQuantity) Class() MeasurementClass {
	return q.Token.Type
}

// ValidationLevel grades a [DimensionValidation].
type ValidationLevel string

const (
	LevelPass    ValidationLevel = "pass"
	LevelWarning ValidationLevel = "warning"
	LevelFail    ValidationLevel = "fail"
)

// ValidationKind names the relationship a [DimensionValidation] checked.
type ValidationKind string

const (
	// KindArea checks two linear quantities against a stated area.
	KindArea ValidationKind = "area"
	// KindVolume checks three linear quantities against a stated volume.
	KindVolume ValidationKind = "volume"
	// KindAreaDepth checks an area times a depth against a stated volume.
	KindAreaDepth ValidationKind = "area_depth"
	// KindLinearTotal checks several linear runs against a stated total.
	KindLinearTotal ValidationKind = "linear_total"
	// KindDirect checks a dimension phrase against its own product.
	KindDirect ValidationKind = "direct"
)

// DimensionValidation is a cross-check among quantities believed to describe
// the same physical extent. It is derived data, regenerated on every run.
type DimensionValidation struct {
	ID   string         `json:"id"`
	Kind ValidationKind `json:"kind"`

	// QuantityIDs lists the dimension quantities followed by the stated
	// quantity (when one exists).
	QuantityIDs []string `json:"quantityIds"`

	// Dimensions are the implied factors in canonical units.
	Dimensions []float64 `json:"dimensions"`

	CalculatedTotal float64 `json:"calculatedTotal"`
	ProvidedTotal   float64 `json:"providedTotal"`
	ProvidedUnit    string  `json:"providedUnit"`

	Match           bool            `json:"match"`
	Tolerance       float64         `json:"tolerance"`
	Deviation       float64         `json:"deviation"`
	ValidationLevel ValidationLevel `json:"validationLevel"`
	Recommendations []string        `json:"recommendations"`
}

// AmbiguityType classifies a [QuantityAmbiguity].
type AmbiguityType string

const (
	AmbiguityUnitUnclear             AmbiguityType = "unit_unclear"
	AmbiguityDimensionMismatch       AmbiguityType = "dimension_mismatch"
	AmbiguityMultipleInterpretations AmbiguityType = "multiple_interpretations"
	AmbiguityMissingContext          AmbiguityType = "missing_context"
	AmbiguityConflictingValues       AmbiguityType = "conflicting_values"
)

// Severity grades how much an ambiguity can move downstream totals.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Interpretation is one candidate reading of an ambiguous quantity.
type Interpretation struct {
	Value      float64          `json:"value"`
	Unit       string           `json:"unit"`
	Class      MeasurementClass `json:"class,omitempty"`
	Confidence float64          `json:"confidence"`
	Reasoning  string           `json:"reasoning"`
}

// AmbiguityDetail is the kind-specific payload of a [QuantityAmbiguity]. The
// concrete types are [UnitUnclear], [DimensionMismatch],
// [MultipleInterpretations], [MissingContext] and [ConflictingValues].
type AmbiguityDetail interface {
	AmbiguityType() AmbiguityType
}

// UnitUnclear is the detail for a unit that is not in the conversion table.
type UnitUnclear struct {
	Unit             string             `json:"unit"`
	SuggestedClasses []MeasurementClass `json:"suggestedClasses"`
	MatchedKeywords  []string           `json:"matchedKeywords"`
}

// AmbiguityType implements [AmbiguityDetail].
func (UnitUnclear) AmbiguityType() AmbiguityType { return AmbiguityUnitUnclear }

// DimensionMismatch is the detail for a failed [DimensionValidation].
type DimensionMismatch struct {
	ValidationID    string         `json:"validationId"`
	Kind            ValidationKind `json:"kind"`
	CalculatedTotal float64        `json:"calculatedTotal"`
	ProvidedTotal   float64        `json:"providedTotal"`
	Unit            string         `json:"unit"`
	Deviation       float64        `json:"deviation"`
	Tolerance       float64        `json:"tolerance"`
}

// AmbiguityType implements [AmbiguityDetail].
func (DimensionMismatch) AmbiguityType() AmbiguityType { return AmbiguityDimensionMismatch }

// MultipleInterpretations is the detail for a unit that reads as two
// different measurement classes in its context ("10 yards of concrete").
type MultipleInterpretations struct {
	Unit         string             `json:"unit"`
	Recorded     MeasurementClass   `json:"recorded"`
	Alternatives []MeasurementClass `json:"alternatives"`
}

// AmbiguityType implements [AmbiguityDetail].
func (MultipleInterpretations) AmbiguityType() AmbiguityType {
	return AmbiguityMultipleInterpretations
}

// MissingContext is the detail for an unknown unit with no contextual hint.
type MissingContext struct {
	Unit    string `json:"unit"`
	Context string `json:"context"`
}

// AmbiguityType implements [AmbiguityDetail].
func (MissingContext) AmbiguityType() AmbiguityType { return AmbiguityMissingContext }

// ConflictingValues is the detail for restatements that disagree.
type ConflictingValues struct {
	Class MeasurementClass `json:"class"`
	Unit  string           `json:"unit"`
	// Values are the normalized values in the order of AffectedIDs.
	Values []float64 `json:"values"`
	// Spread is (max-min)/max.
	Spread float64 `json:"spread"`
}

// AmbiguityType implements [AmbiguityDetail].
func (ConflictingValues) AmbiguityType() AmbiguityType { return AmbiguityConflictingValues }

// QuantityAmbiguity is a decision point that the pipeline refuses to resolve
// on its own.
type QuantityAmbiguity struct {
	ID          string        `json:"id"`
	Type        AmbiguityType `json:"type"`
	Severity    Severity      `json:"severity"`
	AffectedIDs []string      `json:"affectedIds"`

	// Interpretations are ordered from most to least likely.
	Interpretations []Interpretation `json:"interpretations"`

	RecommendedAction        string `json:"recommendedAction"`
	RequiresUserConfirmation bool   `json:"requiresUserConfirmation"`

	Detail AmbiguityDetail `json:"detail"`
}

// SourceContribution records how much one normalized quantity contributed to
// an [AggregatedItem].
type SourceContribution struct {
	QuantityID string  `json:"quantityId"`
	Quantity   float64 `json:"quantity"`
}

// AggregatedItem is one de-duplicated, categorised quantity ready for pricing.
// TotalQuantity always equals the sum of SourceItems quantities and every item
// has at least one source.
type AggregatedItem struct {
	ID            string               `json:"id"`
	Description   string               `json:"description"`
	Category      Trade                `json:"category"`
	Class         MeasurementClass     `json:"class"`
	TotalQuantity float64              `json:"totalQuantity"`
	Unit          string               `json:"unit"`
	Phase         string               `json:"phase,omitempty"`
	BidAlternate  string               `json:"bidAlternate,omitempty"`
	SourceItems   []SourceContribution `json:"sourceItems"`
	Confidence    float64              `json:"confidence"`
	Notes         []string             `json:"notes"`
}

// QualityMetrics summarise a normalization run.
type QualityMetrics struct {
	OverallConfidence        float64 `json:"overallConfidence"`
	NormalizationSuccessRate float64 `json:"normalizationSuccessRate"`
	// ValidationErrorCount is the fraction of dimension validations that failed.
	ValidationErrorCount float64 `json:"validationErrorCount"`
	AmbiguityCount       int     `json:"ambiguityCount"`
	CompletenessScore    float64 `json:"completenessScore"`
}

// QuantityNormalizationResult bundles everything the normalizer produces.
type QuantityNormalizationResult struct {
	NormalizedQuantities []NormalizedQuantity  `json:"normalizedQuantities"`
	DimensionValidations []DimensionValidation `json:"dimensionValidations"`
	Ambiguities          []QuantityAmbiguity   `json:"ambiguities"`
	AggregatedItems      []AggregatedItem      `json:"aggregatedItems"`
	QualityMetrics       QualityMetrics        `json:"qualityMetrics"`
}
