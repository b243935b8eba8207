package types

import "time"

// Trade is a construction discipline. The set is closed: every value is one
// of the constants below, so switches over Trade can be exhaustive.
type Trade string

const (
	TradeDemolition   Trade = "Demolition"
	TradeExcavation   Trade = "Excavation"
	TradeConcrete     Trade = "Concrete"
	TradeMasonry      Trade = "Masonry"
	TradeFraming      Trade = "Framing"
	TradeRoofing      Trade = "Roofing"
	TradeWindowsDoors Trade = "Windows & Doors"
	TradeSiding       Trade = "Siding"
	TradePlumbing     Trade = "Plumbing"
	TradeElectrical   Trade = "Electrical"
	TradeHVAC         Trade = "HVAC"
	TradeInsulation   Trade = "Insulation"
	TradeDrywall      Trade = "Drywall"
	TradeTile         Trade = "Tile"
	TradeFlooring     Trade = "Flooring"
	TradeCabinetry    Trade = "Cabinetry"
	TradePainting     Trade = "Painting"
	TradeTrim         Trade = "Trim & Finish Carpentry"
	TradeCleanup      Trade = "Cleanup"

	// TradeGeneral is the category for quantities no trade rule claimed. It
	// is never reported as a work category.
	TradeGeneral Trade = "General"
)

// Trades lists the nineteen work trades in canonical sequence order.
var Trades = []Trade{
	TradeDemolition, TradeExcavation, TradeConcrete, TradeMasonry, TradeFraming,
	TradeRoofing, TradeWindowsDoors, TradeSiding, TradePlumbing, TradeElectrical,
	TradeHVAC, TradeInsulation, TradeDrywall, TradeTile, TradeFlooring,
	TradeCabinetry, TradePainting, TradeTrim, TradeCleanup,
}

// IsValid reports whether t is one of the nineteen trades or [TradeGeneral].
func (t Trade) IsValid() bool {
	if t == TradeGeneral {
		return true
	}
	for _, v := range Trades {
		if v == t {
			return true
		}
	}
	return false
}

// Priority ranks a [ScopeItem].
type Priority string

const (
	PriorityRequired    Priority = "required"
	PriorityRecommended Priority = "recommended"
	PriorityOptional    Priority = "optional"
)

// RiskLevel grades a [WorkCategory].
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// SkillLevel is the base labour skill a trade needs.
type SkillLevel string

const (
	SkillUnskilled   SkillLevel = "unskilled"
	SkillSemiSkilled SkillLevel = "semi-skilled"
	SkillSkilled     SkillLevel = "skilled"
	SkillSpecialist  SkillLevel = "specialist"
)

// ScopeItem is a single described unit of work within a trade.
type ScopeItem struct {
	Description string   `json:"description"`
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Priority    Priority `json:"priority"`
	Notes       []string `json:"notes"`

	// MeasurementIDs lists the tokens attached to this item; the first one
	// supplied Quantity and Unit.
	MeasurementIDs []string `json:"measurementIds,omitempty"`
}

// HasQuantity reports whether a measurement was attached to the item.
func (s ScopeItem) HasQuantity() bool {
	return s.Quantity != nil
}

// WorkCategory is one trade's bucket of work.
type WorkCategory struct {
	Trade             Trade       `json:"trade"`
	Items             []ScopeItem `json:"items"`
	SequenceOrder     int         `json:"sequenceOrder"`
	Prerequisites     []Trade     `json:"prerequisites"`
	EstimatedDuration string      `json:"estimatedDuration"`
	RiskLevel         RiskLevel   `json:"riskLevel"`
}

// MaterialSpec is a material named in the narration.
type MaterialSpec struct {
	Name          string   `json:"name"`
	Trade         Trade    `json:"trade"`
	Specification string   `json:"specification"`
	Quantity      *float64 `json:"quantity,omitempty"`
	Unit          string   `json:"unit,omitempty"`
}

// LaborRequirement is the labour estimate for one trade.
type LaborRequirement struct {
	Trade          Trade      `json:"trade"`
	SkillLevel     SkillLevel `json:"skillLevel"`
	EstimatedHours float64    `json:"estimatedHours"`
	CrewSize       int        `json:"crewSize"`
	Licensing      []string   `json:"licensing"`
}

// OrganizedScope is the top-level result of one narration capture. A new
// capture produces a new OrganizedScope; existing ones are never updated.
type OrganizedScope struct {
	ProjectSummary        string             `json:"projectSummary"`
	WorkCategories        []WorkCategory     `json:"workCategories"`
	MaterialSpecs         []MaterialSpec     `json:"materialSpecs"`
	LaborRequirements     []LaborRequirement `json:"laborRequirements"`
	SpecialConsiderations []string           `json:"specialConsiderations"`
	EstimatedTimeline     string             `json:"estimatedTimeline"`
	Confidence            float64            `json:"confidence"`
}

// Category returns the work category for trade t, if present.
func (s OrganizedScope) Category(t Trade) (WorkCategory, bool) {
	for _, c := range s.WorkCategories {
		if c.Trade == t {
			return c, true
		}
	}
	return WorkCategory{}, false
}

// ScopeAnalysisResult is what the scope organizer returns.
type ScopeAnalysisResult struct {
	Scope          OrganizedScope `json:"organizedScope"`
	Suggestions    []string       `json:"suggestions"`
	Warnings       []string       `json:"warnings"`
	Confidence     float64        `json:"confidence"`
	ProcessingTime time.Duration  `json:"processingTime"`
}
