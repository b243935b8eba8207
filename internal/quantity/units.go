package quantity

import (
	"strings"

	"github.com/MrWong99/sitescope/pkg/types"
)

// Canonical units, one per measurement class.
const (
	UnitFeet       = "ft"
	UnitSquareFeet = "sq ft"
	UnitCubicFeet  = "cu ft"
	UnitEach       = "each"
	UnitPounds     = "lb"
)

// CanonicalUnit returns the canonical unit of class c, or "" for an invalid
// class.
func CanonicalUnit(c types.MeasurementClass) string {
	switch c {
	case types.ClassLinear:
		return UnitFeet
	case types.ClassSquare:
		return UnitSquareFeet
	case types.ClassCubic:
		return UnitCubicFeet
	case types.ClassCount:
		return UnitEach
	case types.ClassWeight:
		return UnitPounds
	}
	return ""
}

// Unit is one entry of the conversion table.
type Unit struct {
	// Label is the short display form ("yd", "sq m").
	Label string `yaml:"label"`

	Class types.MeasurementClass `yaml:"class"`

	// Factor converts a value in this unit to the canonical unit of Class.
	Factor float64 `yaml:"factor"`

	// Steps is the number of conversion hops to the canonical unit. Metric
	// units reach the imperial canonical unit through an intermediate and
	// count as two.
	Steps int `yaml:"steps"`

	// Aliases are additional spellings that resolve to this unit.
	Aliases []string `yaml:"aliases"`
}

// DefaultUnits is the built-in conversion table.
var DefaultUnits = []Unit{
	{Label: UnitFeet, Class: types.ClassLinear, Factor: 1, Aliases: []string{"feet", "foot", "'", "linear ft", "linear feet", "linear foot", "lf", "lin ft"}},
	{Label: "in", Class: types.ClassLinear, Factor: 1.0 / 12, Steps: 1, Aliases: []string{"inch", "inches", `"`}},
	{Label: "yd", Class: types.ClassLinear, Factor: 3, Steps: 1, Aliases: []string{"yard", "yards", "yds"}},
	{Label: "mi", Class: types.ClassLinear, Factor: 5280, Steps: 1, Aliases: []string{"mile", "miles"}},
	{Label: "m", Class: types.ClassLinear, Factor: 3.28084, Steps: 2, Aliases: []string{"meter", "meters", "metre", "metres"}},
	{Label: "cm", Class: types.ClassLinear, Factor: 0.0328084, Steps: 2, Aliases: []string{"centimeter", "centimeters"}},
	{Label: "mm", Class: types.ClassLinear, Factor: 0.00328084, Steps: 2, Aliases: []string{"millimeter", "millimeters"}},

	{Label: UnitSquareFeet, Class: types.ClassSquare, Factor: 1, Aliases: []string{"square feet", "square foot", "sq. ft", "sqft", "sf", "ft2", "ft²"}},
	{Label: "sq in", Class: types.ClassSquare, Factor: 1.0 / 144, Steps: 1, Aliases: []string{"square inch", "square inches"}},
	{Label: "sq yd", Class: types.ClassSquare, Factor: 9, Steps: 1, Aliases: []string{"square yard", "square yards", "sy"}},
	{Label: "square", Class: types.ClassSquare, Factor: 100, Steps: 1, Aliases: []string{"squares", "roofing square"}},
	{Label: "acre", Class: types.ClassSquare, Factor: 43560, Steps: 1, Aliases: []string{"acres"}},
	{Label: "sq m", Class: types.ClassSquare, Factor: 10.7639, Steps: 2, Aliases: []string{"square meter", "square meters", "square metre", "m2", "m²"}},

	{Label: UnitCubicFeet, Class: types.ClassCubic, Factor: 1, Aliases: []string{"cubic feet", "cubic foot", "cf", "ft3", "ft³"}},
	{Label: "cu in", Class: types.ClassCubic, Factor: 1.0 / 1728, Steps: 1, Aliases: []string{"cubic inch", "cubic inches"}},
	{Label: "cu yd", Class: types.ClassCubic, Factor: 27, Steps: 1, Aliases: []string{"cubic yard", "cubic yards", "cy", "yd3", "yd³"}},
	{Label: "cu m", Class: types.ClassCubic, Factor: 35.3147, Steps: 2, Aliases: []string{"cubic meter", "cubic meters", "m3", "m³"}},

	{Label: UnitEach, Class: types.ClassCount, Factor: 1, Aliases: []string{"ea", "pcs", "pc", "piece", "pieces", "unit", "units", "count"}},

	{Label: UnitPounds, Class: types.ClassWeight, Factor: 1, Aliases: []string{"lbs", "pound", "pounds", "#"}},
	{Label: "oz", Class: types.ClassWeight, Factor: 1.0 / 16, Steps: 1, Aliases: []string{"ounce", "ounces"}},
	{Label: "ton", Class: types.ClassWeight, Factor: 2000, Steps: 1, Aliases: []string{"tons"}},
	{Label: "kg", Class: types.ClassWeight, Factor: 2.20462, Steps: 2, Aliases: []string{"kgs", "kilogram", "kilograms"}},
}

// DefaultCountNouns are the nouns a bare number may count ("3 outlets").
// Singular forms only; plurals are derived.
var DefaultCountNouns = []string{
	"outlet", "receptacle", "switch", "fixture", "light", "can", "sconce",
	"fan", "window", "door", "skylight", "stud", "joist", "rafter", "truss",
	"post", "beam", "header", "sheet", "panel", "board", "bag", "bundle",
	"sink", "toilet", "faucet", "vanity", "tub", "shower", "cabinet",
	"drawer", "vent", "register", "box", "breaker", "circuit", "appliance",
	"detector", "hinge", "pallet",
}

// UnitTable resolves unit strings to conversion entries. It is read-only
// after construction and safe for concurrent use.
type UnitTable struct {
	units map[string]Unit
	nouns map[string]string
	list  []string
}

// NewUnitTable builds a table from units and count nouns.
func NewUnitTable(units []Unit, countNouns []string) *UnitTable {
	t := &UnitTable{
		units: make(map[string]Unit, len(units)*4),
		nouns: make(map[string]string, len(countNouns)*2),
	}
	for _, u := range units {
		t.units[foldUnit(u.Label)] = u
		for _, a := range u.Aliases {
			t.units[foldUnit(a)] = u
		}
	}
	for _, n := range countNouns {
		n = foldUnit(n)
		if n == "" {
			continue
		}
		t.nouns[n] = n
		t.nouns[Pluralize(n)] = n
		t.list = append(t.list, n)
	}
	return t
}

// DefaultUnitTable returns a table over [DefaultUnits] and [DefaultCountNouns].
func DefaultUnitTable() *UnitTable {
	return NewUnitTable(DefaultUnits, DefaultCountNouns)
}

// Lookup resolves unit. Count nouns resolve to [UnitEach] with factor 1.
func (t *UnitTable) Lookup(unit string) (Unit, bool) {
	key := foldUnit(unit)
	if u, ok := t.units[key]; ok {
		return u, true
	}
	if _, ok := t.nouns[key]; ok {
		return Unit{Label: UnitEach, Class: types.ClassCount, Factor: 1}, true
	}
	return Unit{}, false
}

// CountNouns returns the singular count nouns in table order.
func (t *UnitTable) CountNouns() []string {
	return append([]string(nil), t.list...)
}

// Pluralize returns the regular English plural of a count noun.
func Pluralize(noun string) string {
	switch {
	case strings.HasSuffix(noun, "y") && len(noun) > 1 && !strings.ContainsRune("aeiou", rune(noun[len(noun)-2])):
		return noun[:len(noun)-1] + "ies"
	case strings.HasSuffix(noun, "s"), strings.HasSuffix(noun, "x"),
		strings.HasSuffix(noun, "ch"), strings.HasSuffix(noun, "sh"):
		return noun + "es"
	}
	return noun + "s"
}

func foldUnit(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, ".")
	return strings.Join(strings.Fields(s), " ")
}
