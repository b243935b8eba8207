package scope

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/MrWong99/sitescope/internal/quantity"
	"github.com/MrWong99/sitescope/pkg/types"
)

// genericNote marks an item emitted for a trade without a specific match.
const genericNote = "Needs detailed specification"

var (
	optionalRE    = regexp.MustCompile(`(?i)\b(?:optional(?:ly)?|if\s+(?:the\s+)?budget\s+allows|nice\s+to\s+have|maybe|possibly|alternate)\b`)
	recommendedRE = regexp.MustCompile(`(?i)\b(?:should|recommend\w*|suggest\w*|would\s+be\s+(?:good|nice)|consider\w*)\b`)
)

// span is a byte range of the narration.
type span struct {
	start, end int
}

// candidate is one scope item before measurements are attached.
type candidate struct {
	trade       types.Trade
	description string
	matches     []span
	generic     bool
}

// extractItems runs the item rules of every trade the narration mentions.
// Candidates are ordered by trade sequence, then by rule order.
func (o *Organizer) extractItems(narration string) []candidate {
	trades := o.categories.Trades(narration)
	slices.SortStableFunc(trades, func(a, b types.Trade) int {
		return cmp.Compare(o.sequence(a), o.sequence(b))
	})

	var out []candidate
	for _, trade := range trades {
		found := false
		if p, ok := o.profiles[trade]; ok {
			for i, re := range p.items {
				locs := re.FindAllStringIndex(narration, -1)
				if len(locs) == 0 {
					continue
				}
				c := candidate{trade: trade, description: p.Items[i].Description}
				for _, l := range locs {
					c.matches = append(c.matches, span{l[0], l[1]})
				}
				out = append(out, c)
				found = true
			}
		}
		if found {
			continue
		}

		c := candidate{
			trade:       trade,
			description: string(trade) + " work",
			generic:     true,
		}
		for _, h := range o.categories.Find(narration) {
			if h.Trade == trade {
				c.matches = append(c.matches, span{h.Start, h.End})
			}
		}
		out = append(out, c)
	}
	return out
}

// locate finds tok in narration. Tokens without a usable span are looked up
// by their raw text.
func locate(narration string, tok types.MeasurementToken) (span, bool) {
	if tok.HasSpan() && tok.End <= len(narration) && narration[tok.Start:tok.End] == tok.RawText {
		return span{tok.Start, tok.End}, true
	}
	if tok.RawText == "" {
		return span{}, false
	}
	if i := strings.Index(narration, tok.RawText); i >= 0 {
		return span{i, i + len(tok.RawText)}, true
	}
	return span{}, false
}

// gap is the number of bytes between two spans; zero when they overlap.
func gap(a, b span) int {
	switch {
	case a.end <= b.start:
		return b.start - a.end
	case b.end <= a.start:
		return a.start - b.end
	}
	return 0
}

// attach assigns every locatable token to at most one candidate: the
// nearest match within the attach radius, preferring matches in the token's
// own sentence. The result maps candidate index to tokens in token order.
func (o *Organizer) attach(narration string, tokens []types.MeasurementToken, candidates []candidate) map[int][]types.MeasurementToken {
	out := map[int][]types.MeasurementToken{}
	for _, tok := range tokens {
		pos, ok := locate(narration, tok)
		if !ok {
			continue
		}
		_, sentence := quantity.SentenceAt(narration, pos.start)

		best, bestDist, bestSame := -1, 0, false
		for ci, c := range candidates {
			for _, m := range c.matches {
				d := gap(pos, m)
				if d > o.radius {
					continue
				}
				_, off := quantity.SentenceAt(narration, m.start)
				same := off == sentence
				better := best < 0 ||
					(same && !bestSame) ||
					(same == bestSame && d < bestDist)
				if better {
					best, bestDist, bestSame = ci, d, same
				}
			}
		}
		if best >= 0 {
			out[best] = append(out[best], tok)
		}
	}
	return out
}

// buildCategories turns candidates into sequenced work categories.
// The first attached measurement supplies an item's quantity.
func (o *Organizer) buildCategories(narration string, candidates []candidate, attached map[int][]types.MeasurementToken) []types.WorkCategory {
	var (
		out   []types.WorkCategory
		index = map[types.Trade]int{}
	)
	for ci, c := range candidates {
		item := types.ScopeItem{
			Description: c.description,
			Priority:    priority(narration, c.matches),
			Notes:       []string{},
		}
		for k, tok := range attached[ci] {
			item.MeasurementIDs = append(item.MeasurementIDs, tok.ID)
			if k == 0 {
				v := tok.Value
				item.Quantity = &v
				item.Unit = tok.Unit
				continue
			}
			item.Notes = append(item.Notes, "Also measured: "+tok.RawText)
		}
		if c.generic {
			item.Notes = append(item.Notes, genericNote)
		}

		i, ok := index[c.trade]
		if !ok {
			i = len(out)
			index[c.trade] = i
			out = append(out, types.WorkCategory{
				Trade:         c.trade,
				Items:         []types.ScopeItem{},
				SequenceOrder: o.sequence(c.trade),
				Prerequisites: []types.Trade{},
			})
			if p, ok := o.profiles[c.trade]; ok {
				out[i].Prerequisites = append(out[i].Prerequisites, p.Prerequisites...)
			}
		}
		out[i].Items = append(out[i].Items, item)
	}

	slices.SortStableFunc(out, func(a, b types.WorkCategory) int {
		return cmp.Compare(a.SequenceOrder, b.SequenceOrder)
	})
	for i := range out {
		out[i].RiskLevel = o.risk(out[i])
		out[i].EstimatedDuration = durationBucket(o.days(out[i]))
	}
	return out
}

// priority reads the wording of the sentence holding the first match.
func priority(narration string, matches []span) types.Priority {
	if len(matches) == 0 {
		return types.PriorityRequired
	}
	sentence, _ := quantity.SentenceAt(narration, matches[0].start)
	switch {
	case optionalRE.MatchString(sentence):
		return types.PriorityOptional
	case recommendedRE.MatchString(sentence):
		return types.PriorityRecommended
	}
	return types.PriorityRequired
}

// extractMaterials collects material specifications in rule order, then in
// narration order. A material takes the quantity of the nearest measurement
// in the same sentence.
func (o *Organizer) extractMaterials(narration string, tokens []types.MeasurementToken) []types.MaterialSpec {
	type located struct {
		tok types.MeasurementToken
		pos span
		off int
	}
	var placed []located
	for _, tok := range tokens {
		if pos, ok := locate(narration, tok); ok {
			_, off := quantity.SentenceAt(narration, pos.start)
			placed = append(placed, located{tok, pos, off})
		}
	}

	out := []types.MaterialSpec{}
	seen := map[string]bool{}
	for _, m := range o.materials {
		for _, loc := range m.re.FindAllStringIndex(narration, -1) {
			spec := strings.Join(strings.Fields(narration[loc[0]:loc[1]]), " ")
			key := m.Name + "\x00" + strings.ToLower(spec)
			if seen[key] {
				continue
			}
			seen[key] = true

			ms := types.MaterialSpec{Name: m.Name, Trade: m.Trade, Specification: spec}
			_, off := quantity.SentenceAt(narration, loc[0])
			best := -1
			for i, p := range placed {
				if p.off != off {
					continue
				}
				if best < 0 || gap(p.pos, span{loc[0], loc[1]}) < gap(placed[best].pos, span{loc[0], loc[1]}) {
					best = i
				}
			}
			if best >= 0 {
				v := placed[best].tok.Value
				ms.Quantity = &v
				ms.Unit = placed[best].tok.Unit
			}
			out = append(out, ms)
		}
	}
	return out
}
