package scope

import (
	"math"
	"slices"

	"github.com/MrWong99/sitescope/pkg/types"
)

const (
	// complexItems is the item count above which a trade's hours are
	// multiplied by complexityFactor.
	complexItems     = 3
	complexityFactor = 1.5

	// itemsPerWorker sizes crews beyond the base crew.
	itemsPerWorker = 3

	hoursPerDay = 8

	// Defaults for trades without a profile.
	fallbackHours = 8
	fallbackCrew  = 1
)

// hours is the labour estimate for a category.
func (o *Organizer) hours(c types.WorkCategory) float64 {
	base := float64(fallbackHours)
	if p, ok := o.profiles[c.Trade]; ok && p.BaseHours > 0 {
		base = p.BaseHours
	}
	h := base * float64(len(c.Items))
	if len(c.Items) > complexItems {
		h *= complexityFactor
	}
	return h
}

// crew is the crew size for a category.
func (o *Organizer) crew(c types.WorkCategory) int {
	base := fallbackCrew
	if p, ok := o.profiles[c.Trade]; ok && p.BaseCrew > 0 {
		base = p.BaseCrew
	}
	return max(base, int(math.Ceil(float64(len(c.Items))/itemsPerWorker)))
}

// days is the working days a category takes with its crew.
func (o *Organizer) days(c types.WorkCategory) float64 {
	return o.hours(c) / float64(o.crew(c)*hoursPerDay)
}

// risk grades a category. Membership in the fixed sets wins; other trades
// become medium risk only with many items.
func (o *Organizer) risk(c types.WorkCategory) types.RiskLevel {
	switch {
	case slices.Contains(o.tables.HighRisk, c.Trade):
		return types.RiskHigh
	case slices.Contains(o.tables.MediumRisk, c.Trade):
		return types.RiskMedium
	case len(c.Items) > 5:
		return types.RiskMedium
	}
	return types.RiskLow
}

// laborRequirements returns one requirement per category, in category order.
func (o *Organizer) laborRequirements(categories []types.WorkCategory) []types.LaborRequirement {
	out := make([]types.LaborRequirement, 0, len(categories))
	for _, c := range categories {
		lr := types.LaborRequirement{
			Trade:          c.Trade,
			SkillLevel:     types.SkillSemiSkilled,
			EstimatedHours: o.hours(c),
			CrewSize:       o.crew(c),
			Licensing:      []string{},
		}
		if p, ok := o.profiles[c.Trade]; ok {
			if p.Skill != "" {
				lr.SkillLevel = p.Skill
			}
			lr.Licensing = append(lr.Licensing, p.Licensing...)
		}
		out = append(out, lr)
	}
	return out
}

// durationBucket names the duration of a single trade.
func durationBucket(days float64) string {
	switch {
	case days <= 1:
		return "1 day"
	case days <= 3:
		return "2-3 days"
	case days <= 5:
		return "1 week"
	case days <= 10:
		return "1-2 weeks"
	}
	return "2+ weeks"
}

// timeline names the overall duration, assuming trades work one after
// another.
func timeline(labor []types.LaborRequirement) string {
	if len(labor) == 0 {
		return "Undetermined"
	}
	var days float64
	for _, lr := range labor {
		days += lr.EstimatedHours / float64(max(1, lr.CrewSize)*hoursPerDay)
	}
	switch {
	case days <= 5:
		return "1 week or less"
	case days <= 10:
		return "1-2 weeks"
	case days <= 20:
		return "2-4 weeks"
	case days <= 40:
		return "1-2 months"
	}
	return "More than 2 months"
}
