// Package scope implements the scope organizer: it classifies narration into
// construction trades, builds per-trade work items with attached
// measurements, and estimates sequencing, labour, risk and timeline.
//
// All reference data lives in [Tables] and is injected at construction, so an
// [Organizer] is a pure function of its inputs. The organizer never fails on
// uncertain narration; it returns a lower confidence and explanatory
// warnings instead.
package scope

import (
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

// DefaultAttachRadius is the default maximum distance, in bytes, between a
// scope item match and a measurement attached to it.
const DefaultAttachRadius = 120

// Option is a functional option for configuring an [Organizer].
type Option func(*Organizer)

// WithTables replaces the built-in reference data.
func WithTables(t Tables) Option {
	return func(o *Organizer) {
		o.tables = t.clone()
	}
}

// WithCategoryRules replaces the trade keyword table used to decide which
// trades the narration mentions.
func WithCategoryRules(rules []quantity.CategoryRule) Option {
	return func(o *Organizer) {
		o.categories = quantity.NewCategoryMatcher(rules)
	}
}

// WithAttachRadius sets the maximum distance between a scope item and an
// attached measurement. Non-positive values are ignored.
func WithAttachRadius(radius int) Option {
	return func(o *Organizer) {
		if radius > 0 {
			o.radius = radius
		}
	}
}

// WithClock overrides the time source used to measure processing time.
func WithClock(now func() time.Time) Option {
	return func(o *Organizer) {
		if now != nil {
			o.now = now
		}
	}
}

// Organizer turns narration and measurements into a
// [types.ScopeAnalysisResult]. It is read-only after construction and safe
// for concurrent use.
type Organizer struct {
	tables     Tables
	categories *quantity.CategoryMatcher
	radius     int
	now        func() time.Time

	profiles   map[types.Trade]*profile
	advisories []advisory
	materials  []material
}

// New returns an [Organizer]. It fails only when a table pattern does not
// compile.
func New(opts ...Option) (*Organizer, error) {
	o := &Organizer{
		tables:     DefaultTables(),
		categories: quantity.NewCategoryMatcher(quantity.DefaultCategoryRules),
		radius:     DefaultAttachRadius,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.compile(); err != nil {
		return nil, err
	}
	return o, nil
}

// MustNew is [New] that panics on error. Intended for the built-in tables.
func MustNew(opts ...Option) *Organizer {
	o, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return o
}

// Organize builds the organized scope for one narration capture. photos are
// references to site photos; only their count is used.
//
// Organize flow:
//  1. Trades are found by keyword.
//  2. Each found trade's item rules run over the narration; a trade without
//     a matching rule gets one generic item.
//  3. Measurements attach to the nearest item, preferring the same sentence.
//  4. Categories are sequenced, then labour, risk and duration are estimated.
//  5. Materials, special considerations, suggestions and warnings are
//     collected and the confidence is computed.
func (o *Organizer) Organize(narration string, tokens []types.MeasurementToken, photos []string) types.ScopeAnalysisResult {
	start := o.now()

	candidates := o.extractItems(narration)
	attached := o.attach(narration, tokens, candidates)
	categories := o.buildCategories(narration, candidates, attached)
	labor := o.laborRequirements(categories)
	materials := o.extractMaterials(narration, tokens)

	scope := types.OrganizedScope{
		WorkCategories:        categories,
		MaterialSpecs:         materials,
		LaborRequirements:     labor,
		SpecialConsiderations: o.specialConsiderations(narration),
		EstimatedTimeline:     timeline(labor),
	}

	used := 0
	for _, ids := range attached {
		used += len(ids)
	}

	suggestions := o.suggestions(categories, materials)
	warnings := o.warnings(categories)
	confidence := clamp01(0.5 +
		0.1*float64(len(categories)) +
		0.05*float64(used) +
		0.03*float64(len(materials)) -
		0.05*float64(len(warnings)))

	scope.Confidence = confidence
	scope.ProjectSummary = summary(categories, used, len(tokens), len(photos))

	return types.ScopeAnalysisResult{
		Scope:          scope,
		Suggestions:    suggestions,
		Warnings:       warnings,
		Confidence:     confidence,
		ProcessingTime: o.now().Sub(start),
	}
}

// AddWarnings returns a copy of res with warnings appended. Each warning
// lowers the confidence by the same amount as the organizer's own warnings.
func AddWarnings(res types.ScopeAnalysisResult, warnings ...string) types.ScopeAnalysisResult {
	if len(warnings) == 0 {
		return res
	}
	res.Warnings = append(slices.Clone(res.Warnings), warnings...)
	res.Confidence = clamp01(res.Confidence - 0.05*float64(len(warnings)))
	res.Scope.Confidence = res.Confidence
	return res
}

// profile is a compiled TradeProfile.
type profile struct {
	TradeProfile
	items []*regexp.Regexp
}

type advisory struct {
	re      *regexp.Regexp
	message string
}

type material struct {
	MaterialRule
	re *regexp.Regexp
}

func (o *Organizer) compile() error {
	o.profiles = make(map[types.Trade]*profile, len(o.tables.Profiles))
	for _, tp := range o.tables.Profiles {
		p := &profile{TradeProfile: tp}
		for _, r := range tp.Items {
			re, err := regexp.Compile(`(?i)` + r.Pattern)
			if err != nil {
				return fmt.Errorf("scope: item %q of %s: %w", r.Description, tp.Trade, err)
			}
			p.items = append(p.items, re)
		}
		o.profiles[tp.Trade] = p
	}
	for _, a := range o.tables.Advisories {
		re, err := regexp.Compile(`(?i)` + a.Pattern)
		if err != nil {
			return fmt.Errorf("scope: advisory %q: %w", a.Message, err)
		}
		o.advisories = append(o.advisories, advisory{re: re, message: a.Message})
	}
	for _, m := range o.tables.Materials {
		re, err := regexp.Compile(`(?i)` + m.Pattern)
		if err != nil {
			return fmt.Errorf("scope: material %q: %w", m.Name, err)
		}
		o.materials = append(o.materials, material{MaterialRule: m, re: re})
	}
	return nil
}

// sequence returns the sequence order of trade.
func (o *Organizer) sequence(trade types.Trade) int {
	if p, ok := o.profiles[trade]; ok && p.Sequence > 0 {
		return p.Sequence
	}
	return unsequenced
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
