package scope

import (
	"slices"

	"github.com/MrWong99/sitescope/pkg/types"
)

// unsequenced is the sequence order of a trade without a profile. Such trades
// sort after every profiled trade.
const unsequenced = 1000

// ItemRule describes one kind of work a trade performs. Pattern is a regular
// expression evaluated case-insensitively against the narration.
type ItemRule struct {
	Description string `yaml:"description"`
	Pattern     string `yaml:"pattern"`
}

// TradeProfile holds the fixed per-trade constants the organizer needs.
type TradeProfile struct {
	Trade         types.Trade      `yaml:"trade"`
	Sequence      int              `yaml:"sequence"`
	Prerequisites []types.Trade    `yaml:"prerequisites"`
	Skill         types.SkillLevel `yaml:"skill"`

	// BaseHours is the labour per scope item before the complexity
	// multiplier.
	BaseHours float64  `yaml:"base_hours"`
	BaseCrew  int      `yaml:"base_crew"`
	Licensing []string `yaml:"licensing"`

	Items []ItemRule `yaml:"items"`
}

// Advisory maps narration keywords to a special consideration.
type Advisory struct {
	Pattern string `yaml:"pattern"`
	Message string `yaml:"message"`
}

// MaterialRule recognises a material specification. The matched text becomes
// the specification.
type MaterialRule struct {
	Name    string      `yaml:"name"`
	Trade   types.Trade `yaml:"trade"`
	Pattern string      `yaml:"pattern"`
}

// Tables is the static reference data of the organizer. Values are copied at
// construction and never modified afterwards.
type Tables struct {
	Profiles   []TradeProfile `yaml:"profiles"`
	Advisories []Advisory     `yaml:"advisories"`
	Materials  []MaterialRule `yaml:"materials"`

	// HighRisk trades are always high risk; MediumRisk trades are at least
	// medium.
	HighRisk   []types.Trade `yaml:"high_risk"`
	MediumRisk []types.Trade `yaml:"medium_risk"`

	// CommonTrades are suggested when absent from a scope.
	CommonTrades []types.Trade `yaml:"common_trades"`
}

// removal is the verb prefix shared by the demolition item rules.
const removal = `\b(?:demo\w*|tear\s+(?:out|up|off)|rip\s+(?:out|up)|remov\w*)\b[^.;!?]*?`

// DefaultTables returns the built-in reference data.
func DefaultTables() Tables {
	return Tables{
		Profiles: []TradeProfile{
			{
				Trade:     types.TradeDemolition,
				Sequence:  1,
				Skill:     types.SkillUnskilled,
				BaseHours: 8,
				BaseCrew:  2,
				Items: []ItemRule{
					{"Demolish existing walls", removal + `\bwalls?\b`},
					{"Remove existing flooring", removal + `\b(?:floor\w*|carpet|tile)\b`},
					{"Remove cabinets and fixtures", removal + `\b(?:cabinets?|vanit(?:y|ies)|fixtures?|tubs?|toilets?)\b`},
					{"Gut interior to studs", `\bgut(?:s|ted|ting)?\b`},
				},
			},
			{
				Trade:         types.TradeExcavation,
				Sequence:      2,
				Prerequisites: []types.Trade{types.TradeDemolition},
				Skill:         types.SkillSpecialist,
				BaseHours:     16,
				BaseCrew:      2,
				Licensing:     []string{"Utility locate ticket"},
				Items: []ItemRule{
					{"Excavate and grade site", `\b(?:excavat\w*|grading|regrad\w*)\b`},
					{"Dig trenches", `\b(?:dig\w*|trench\w*)\b`},
					{"Backfill and compact", `\bbackfill\w*\b`},
				},
			},
			{
				Trade:         types.TradeConcrete,
				Sequence:      3,
				Prerequisites: []types.Trade{types.TradeExcavation},
				Skill:         types.SkillSkilled,
				BaseHours:     12,
				BaseCrew:      3,
				Items: []ItemRule{
					{"Form and pour concrete slab", `\bslabs?\b`},
					{"Form and pour footings", `\bfootings?\b`},
					{"Foundation work", `\bfoundations?\b`},
					{"Pour concrete flatwork", `\b(?:sidewalks?|driveways?)\b`},
				},
			},
			{
				Trade:         types.TradeMasonry,
				Sequence:      4,
				Prerequisites: []types.Trade{types.TradeConcrete},
				Skill:         types.SkillSkilled,
				BaseHours:     16,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Brick masonry", `\bbrick\w*\b`},
					{"Stone veneer", `\bstone\b`},
					{"Block wall", `\b(?:block\s+walls?|cmu)\b`},
					{"Chimney repair", `\bchimneys?\b`},
					{"Install pavers", `\bpavers?\b`},
				},
			},
			{
				Trade:         types.TradeFraming,
				Sequence:      5,
				Prerequisites: []types.Trade{types.TradeDemolition, types.TradeConcrete},
				Skill:         types.SkillSkilled,
				BaseHours:     16,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Frame walls", `\bfram\w*\b[^.;!?]*?\b(?:walls?|partitions?)\b|\bstud\s+walls?\b`},
					{"Install headers", `\bheaders?\b`},
					{"Install or sister joists", `\bjoists?\b`},
					{"Frame roof structure", `\b(?:rafters?|truss(?:es)?)\b`},
					{"Install structural beam", `\bbeams?\b`},
				},
			},
			{
				Trade:         types.TradeRoofing,
				Sequence:      6,
				Prerequisites: []types.Trade{types.TradeFraming},
				Skill:         types.SkillSkilled,
				BaseHours:     16,
				BaseCrew:      3,
				Licensing:     []string{"Roofing contractor license"},
				Items: []ItemRule{
					{"Replace roofing", `\b(?:shingles?|re-?roof\w*)\b`},
					{"Install flashing", `\bflashing\b`},
					{"Install gutters", `\bgutters?\b`},
					{"Install ridge vent and drip edge", `\b(?:ridge\s+vents?|drip\s+edge)\b`},
					{"Repair roof", `\brepair\w*\b[^.;!?]*?\broof\b|\broof\s+repairs?\b`},
				},
			},
			{
				Trade:         types.TradeWindowsDoors,
				Sequence:      7,
				Prerequisites: []types.Trade{types.TradeFraming},
				Skill:         types.SkillSkilled,
				BaseHours:     6,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Install windows", `\bwindows?\b`},
					{"Install doors", `\bdoors?\b`},
					{"Install skylights", `\bskylights?\b`},
				},
			},
			{
				Trade:         types.TradeSiding,
				Sequence:      8,
				Prerequisites: []types.Trade{types.TradeWindowsDoors, types.TradeRoofing},
				Skill:         types.SkillSemiSkilled,
				BaseHours:     12,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Install siding", `\bsiding\b`},
					{"Replace soffit and fascia", `\b(?:soffits?|fascia)\b`},
					{"Apply stucco", `\bstucco\b`},
				},
			},
			{
				Trade:         types.TradePlumbing,
				Sequence:      9,
				Prerequisites: []types.Trade{types.TradeFraming},
				Skill:         types.SkillSpecialist,
				BaseHours:     8,
				BaseCrew:      1,
				Licensing:     []string{"Licensed plumber", "Plumbing permit"},
				Items: []ItemRule{
					{"Install plumbing fixtures", `\b(?:sinks?|toilets?|faucets?|tubs?|showers?)\b`},
					{"Run supply and drain piping", `\b(?:pipes?|piping|pex|drains?)\b`},
					{"Install water heater", `\bwater[\s-]heaters?\b`},
				},
			},
			{
				Trade:         types.TradeElectrical,
				Sequence:      10,
				Prerequisites: []types.Trade{types.TradeFraming},
				Skill:         types.SkillSpecialist,
				BaseHours:     8,
				BaseCrew:      1,
				Licensing:     []string{"Licensed electrician", "Electrical permit"},
				Items: []ItemRule{
					{"Install outlets", `\b(?:outlets?|receptacles?)\b`},
					{"Install switches", `\bswitch(?:es)?\b`},
					{"Install light fixtures", `\b(?:lights?|lighting|sconces?|recessed\s+cans?)\b`},
					{"Run new wiring", `\b(?:wir(?:e|es|ing)|rewir\w*|romex|circuits?)\b`},
					{"Upgrade electrical panel", `\b(?:panel|breakers?|service\s+upgrade)\b`},
					{"Install GFCI protection", `\bgfci\b`},
				},
			},
			{
				Trade:         types.TradeHVAC,
				Sequence:      11,
				Prerequisites: []types.Trade{types.TradeFraming},
				Skill:         types.SkillSpecialist,
				BaseHours:     12,
				BaseCrew:      2,
				Licensing:     []string{"HVAC contractor license", "EPA 608 certification"},
				Items: []ItemRule{
					{"Install ductwork", `\bduct\w*\b`},
					{"Replace furnace", `\b(?:furnaces?|air\s+handlers?)\b`},
					{"Install cooling equipment", `\b(?:air\s+condition\w*|heat\s+pumps?|mini[\s-]splits?)\b`},
					{"Install thermostat", `\bthermostats?\b`},
					{"Install registers", `\bregisters?\b`},
				},
			},
			{
				Trade:         types.TradeInsulation,
				Sequence:      12,
				Prerequisites: []types.Trade{types.TradePlumbing, types.TradeElectrical, types.TradeHVAC},
				Skill:         types.SkillSemiSkilled,
				BaseHours:     6,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Install insulation", `\b(?:insulat\w*|batts?)\b`},
					{"Apply spray foam", `\bspray\s+foam\b`},
					{"Install vapor barrier", `\bvapor\s+barriers?\b`},
				},
			},
			{
				Trade:         types.TradeDrywall,
				Sequence:      13,
				Prerequisites: []types.Trade{types.TradeInsulation},
				Skill:         types.SkillSemiSkilled,
				BaseHours:     12,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Hang drywall", `\b(?:drywall|sheetrock|gypsum)\b`},
					{"Tape and finish drywall", `\b(?:tap(?:e|ing)|mud(?:ding)?|skim\s+coat\w*)\b`},
					{"Repair plaster", `\bplaster\w*\b`},
				},
			},
			{
				Trade:         types.TradeTile,
				Sequence:      14,
				Prerequisites: []types.Trade{types.TradeDrywall, types.TradePlumbing},
				Skill:         types.SkillSkilled,
				BaseHours:     12,
				BaseCrew:      1,
				Items: []ItemRule{
					{"Install tile", `\btil(?:e|es|ing)\b`},
					{"Install tile backsplash", `\bbacksplash\w*\b`},
					{"Grout and seal tile", `\bgrout\w*\b`},
				},
			},
			{
				Trade:         types.TradeFlooring,
				Sequence:      15,
				Prerequisites: []types.Trade{types.TradeDrywall},
				Skill:         types.SkillSkilled,
				BaseHours:     10,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Install hardwood flooring", `\bhardwood\b`},
					{"Install laminate flooring", `\blaminate\b`},
					{"Install vinyl plank flooring", `\b(?:lvp|vinyl\s+plank)\b`},
					{"Install carpet", `\bcarpet\w*\b`},
					{"Install underlayment", `\b(?:underlayment|subfloor\w*)\b`},
					{"Refinish floors", `\brefinish\w*\b[^.;!?]*?\bfloor\w*\b`},
				},
			},
			{
				Trade:         types.TradeCabinetry,
				Sequence:      16,
				Prerequisites: []types.Trade{types.TradeDrywall},
				Skill:         types.SkillSkilled,
				BaseHours:     10,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Install cabinets", `\bcabinets?\b`},
					{"Install countertops", `\bcountertops?\b`},
					{"Install vanity", `\bvanit(?:y|ies)\b`},
				},
			},
			{
				Trade:         types.TradePainting,
				Sequence:      17,
				Prerequisites: []types.Trade{types.TradeDrywall},
				Skill:         types.SkillSemiSkilled,
				BaseHours:     8,
				BaseCrew:      2,
				Items: []ItemRule{
					{"Paint surfaces", `\bpaint\w*\b`},
					{"Prime surfaces", `\bprim(?:e|er|ing)\b`},
					{"Apply stain", `\bstain\w*\b`},
				},
			},
			{
				Trade:         types.TradeTrim,
				Sequence:      18,
				Prerequisites: []types.Trade{types.TradeFlooring, types.TradePainting},
				Skill:         types.SkillSkilled,
				BaseHours:     8,
				BaseCrew:      1,
				Items: []ItemRule{
					{"Install baseboard", `\bbaseboards?\b`},
					{"Install door and window casing", `\bcasings?\b`},
					{"Install crown molding", `\bcrown\b`},
					{"Install wainscoting", `\b(?:wainscoting|shiplap)\b`},
					{"Install trim", `\btrim\b`},
				},
			},
			{
				Trade:     types.TradeCleanup,
				Sequence:  19,
				Skill:     types.SkillUnskilled,
				BaseHours: 4,
				BaseCrew:  1,
				Items: []ItemRule{
					{"Haul away debris", `\b(?:haul\w*|debris|disposal)\b`},
					{"Provide dumpster", `\bdumpsters?\b`},
					{"Final cleaning", `\bclean\w*\b`},
				},
			},
		},
		Advisories: []Advisory{
			{`\bpermits?\b`, "Building permits required; confirm requirements with the local jurisdiction"},
			{`\b(?:load[\s-]bearing|structural)\b`, "Structural changes require review by a licensed engineer"},
			{`\basbestos\b`, "Possible asbestos: test before demolition and use licensed abatement"},
			{`\blead\s+paint\b`, "Possible lead paint: follow lead-safe work practices"},
			{`\bmold\b`, "Mold present: remediate before closing walls"},
			{`\bhistoric\w*\b`, "Historic property: review preservation requirements before work starts"},
			{`\b(?:hoa|homeowners?\s+association)\b`, "HOA approval may be required"},
			{`\b(?:utilit(?:y|ies)|gas\s+lines?|power\s+lines?)\b`, "Locate and protect utilities before digging or cutting"},
			{`\b(?:access|crawl\s*space|attic|narrow|tight)\b`, "Limited site access may increase labor and equipment costs"},
		},
		Materials: []MaterialRule{
			{"Dimensional lumber", types.TradeFraming, `\b\d+x\d+s?\b(?:\s+(?:studs?|lumber|joists?|rafters?|headers?|boards?|posts?|plates?))?`},
			{"Sheathing", types.TradeFraming, `(?:\b\d+/\d+"?\s*)?\b(?:osb|plywood)\b`},
			{"Drywall", types.TradeDrywall, `(?:\b\d+/\d+"?\s*|\b(?:moisture|mold|fire)[\s-]resistant\s+)?\b(?:drywall|sheetrock|gypsum\s+board)\b`},
			{"Hardwood flooring", types.TradeFlooring, `\b(?:(?:oak|maple|hickory|walnut|engineered|solid)\s+)?hardwood\b`},
			{"Laminate flooring", types.TradeFlooring, `\blaminate\b`},
			{"Vinyl plank flooring", types.TradeFlooring, `\b(?:lvp|(?:luxury\s+)?vinyl\s+plank)\b`},
			{"Carpet", types.TradeFlooring, `\bcarpet\b`},
			{"Tile", types.TradeTile, `\b(?:(?:ceramic|porcelain|marble|subway|mosaic|slate)\s+)?tiles?\b`},
			{"Concrete", types.TradeConcrete, `(?:\b\d+(?:\.\d+)?\s*(?:inch|in\.?|")\s*)?\b(?:reinforced\s+)?concrete\b`},
			{"Shingles", types.TradeRoofing, `\b(?:(?:asphalt|architectural|3-tab|cedar|metal)\s+)?shingles?\b`},
			{"Insulation", types.TradeInsulation, `\b(?:r-?\d+\s+)?(?:batts?|spray\s+foam|blown[\s-]in|fiberglass|rigid\s+foam)\b(?:\s+insulation)?`},
			{"Electrical cable", types.TradeElectrical, `(?:\b\d+/\d+\s+)?\bromex\b|\b\d+[\s-]gauge\s+wire\b`},
			{"Pipe", types.TradePlumbing, `\b(?:pex|pvc|cpvc|abs|copper)\b(?:\s+(?:pipe|piping|lines?|supply))?`},
			{"Paint", types.TradePainting, `\b(?:(?:flat|eggshell|satin|semi-gloss|gloss|latex|oil[\s-]based)\s+)?(?:paint|primer)\b`},
			{"Trim stock", types.TradeTrim, `\b(?:(?:mdf|pine|oak|poplar)\s+)?(?:baseboards?|casing|crown\s+molding)\b`},
			{"Countertops", types.TradeCabinetry, `\b(?:(?:granite|quartz|butcher\s+block|marble)\s+)?countertops?\b`},
		},
		HighRisk: []types.Trade{
			types.TradeElectrical, types.TradePlumbing, types.TradeHVAC,
			types.TradeRoofing, types.TradeExcavation,
		},
		MediumRisk: []types.Trade{
			types.TradeFraming, types.TradeConcrete, types.TradeDemolition,
		},
		CommonTrades: []types.Trade{
			types.TradeElectrical, types.TradePlumbing, types.TradePainting,
		},
	}
}

// clone deep-copies t so callers cannot change an organizer after
// construction.
func (t Tables) clone() Tables {
	out := Tables{
		Profiles:     make([]TradeProfile, len(t.Profiles)),
		Advisories:   slices.Clone(t.Advisories),
		Materials:    slices.Clone(t.Materials),
		HighRisk:     slices.Clone(t.HighRisk),
		MediumRisk:   slices.Clone(t.MediumRisk),
		CommonTrades: slices.Clone(t.CommonTrades),
	}
	for i, p := range t.Profiles {
		p.Prerequisites = slices.Clone(p.Prerequisites)
		p.Licensing = slices.Clone(p.Licensing)
		p.Items = slices.Clone(p.Items)
		out.Profiles[i] = p
	}
	return out
}
