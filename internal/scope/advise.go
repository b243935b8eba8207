package scope

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MrWong99/sitescope/pkg/types"
)

// Warning texts checked by callers.
const (
	WarningNoCategories    = "No work categories identified"
	WarningUnderQuantified = "Fewer than half of the work categories have measured quantities"
)

// specialConsiderations returns the advisory messages whose keywords appear
// in narration, in table order.
func (o *Organizer) specialConsiderations(narration string) []string {
	out := []string{}
	for _, a := range o.advisories {
		if a.re.MatchString(narration) && !slices.Contains(out, a.message) {
			out = append(out, a.message)
		}
	}
	return out
}

// suggestions flags common trades that were not mentioned and scopes with
// fewer material specifications than work categories.
func (o *Organizer) suggestions(categories []types.WorkCategory, materials []types.MaterialSpec) []string {
	out := []string{}
	if len(categories) == 0 {
		return out
	}
	for _, t := range o.tables.CommonTrades {
		if !slices.ContainsFunc(categories, func(c types.WorkCategory) bool { return c.Trade == t }) {
			out = append(out, fmt.Sprintf("No %s work mentioned; confirm whether any is needed", t))
		}
	}
	if len(materials) < len(categories) {
		out = append(out, fmt.Sprintf("Only %d material specifications for %d work categories; specify materials for each trade",
			len(materials), len(categories)))
	}
	return out
}

// warnings flags empty scopes, under-quantified scopes and scopes with many
// high-risk trades.
func (o *Organizer) warnings(categories []types.WorkCategory) []string {
	out := []string{}
	if len(categories) == 0 {
		return append(out, WarningNoCategories)
	}

	measured := 0
	var high []string
	for _, c := range categories {
		if slices.ContainsFunc(c.Items, types.ScopeItem.HasQuantity) {
			measured++
		}
		if c.RiskLevel == types.RiskHigh {
			high = append(high, string(c.Trade))
		}
	}
	if measured*2 < len(categories) {
		out = append(out, WarningUnderQuantified)
	}
	if len(high) > 2 {
		out = append(out, fmt.Sprintf("%d high-risk trades present (%s); plan inspections and phasing",
			len(high), strings.Join(high, ", ")))
	}
	return out
}

// summary is the one-paragraph project summary.
func summary(categories []types.WorkCategory, used, measurements, photos int) string {
	if len(categories) == 0 {
		return "No work categories identified from the narration."
	}
	names := make([]string, len(categories))
	items := 0
	for i, c := range categories {
		names[i] = string(c.Trade)
		items += len(c.Items)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Scope covers %d trades (%s) with %d work items. %d of %d measurements are attached to work items.",
		len(categories), strings.Join(names, ", "), items, used, measurements)
	if photos > 0 {
		fmt.Fprintf(&b, " %d site photos referenced.", photos)
	}
	return b.String()
}
