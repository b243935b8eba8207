package quantity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/MrWong99/sitescope/pkg/types"
)

// phaseRule maps a phrase to a construction phase tag.
type phaseRule struct {
	phase string
	re    *regexp.Regexp
}

var phaseRules = []phaseRule{
	{"demolition", regexp.MustCompile(`(?i)\bdemo(?:lition)?\s+phase\b`)},
	{"foundation", regexp.MustCompile(`(?i)\bfoundation\b`)},
	{"framing", regexp.MustCompile(`(?i)\bframing\b`)},
	{"rough-in", regexp.MustCompile(`(?i)\brough(?:[\s-]?in)?\b`)},
	{"finish", regexp.MustCompile(`(?i)\b(?:finish(?:ed|ing)?|trim[\s-]out)\b`)},
	{"punch list", regexp.MustCompile(`(?i)\bpunch[\s-]?list\b`)},
}

var bidAlternateRE = regexp.MustCompile(`(?i)\b(alt(?:ernate)?|option)\.?(?:\s*#\s*|\s+)([0-9]+|[a-z])\b`)

// partitionKey is the aggregation key. Quantities of different classes are
// never summed together.
type partitionKey struct {
	category types.Trade
	phase    string
	alt      string
	class    types.MeasurementClass
}

// Tags is what aggregation infers about a single quantity.
type Tags struct {
	Category     types.Trade
	Phase        string
	BidAlternate string
}

// Tag infers category, phase and bid alternate for q. Keywords are searched
// in the sentence of narration that holds the token when the token's span
// points into narration, and in the token context otherwise.
func (n *Normalizer) Tag(q types.NormalizedQuantity, narration string) Tags {
	tok := q.Token
	text, pos := tok.Context, strings.Index(tok.Context, tok.RawText)
	if narration != "" && tok.HasSpan() && tok.End <= len(narration) && narration[tok.Start:tok.End] == tok.RawText {
		var off int
		text, off = SentenceAt(narration, tok.Start)
		pos = tok.Start - off
	}

	t := Tags{Category: types.TradeGeneral}
	if trade, ok := n.categories.Nearest(text, pos); ok {
		t.Category = trade
	} else if trade, ok := n.categories.Nearest(tok.Context, strings.Index(tok.Context, tok.RawText)); ok {
		t.Category = trade
	}
	for _, r := range phaseRules {
		if r.re.MatchString(text) {
			t.Phase = r.phase
			break
		}
	}
	if m := bidAlternateRE.FindStringSubmatch(text); m != nil {
		label := "Alt"
		if strings.EqualFold(m[1], "option") {
			label = "Option"
		}
		t.BidAlternate = label + " " + strings.ToUpper(m[2])
	}
	return t
}

// aggregate sums non-duplicate quantities per partition, in source order.
func (n *Normalizer) aggregate(qs []types.NormalizedQuantity, dups map[int]duplicate, narration string) []types.AggregatedItem {
	type bucket struct {
		key     partitionKey
		members []int
		notes   []string
	}
	var (
		buckets []*bucket
		byKey   = map[partitionKey]*bucket{}
		owner   = make([]*bucket, len(qs))
	)

	for i, q := range qs {
		if _, gone := dups[i]; gone {
			continue
		}
		tags := n.Tag(q, narration)
		key := partitionKey{category: tags.Category, phase: tags.Phase, alt: tags.BidAlternate, class: q.Class()}
		b, ok := byKey[key]
		if !ok {
			b = &bucket{key: key}
			byKey[key] = b
			buckets = append(buckets, b)
		}
		b.members = append(b.members, i)
		owner[i] = b
	}

	for i := range qs {
		d, gone := dups[i]
		if !gone {
			continue
		}
		if b := owner[d.of]; b != nil {
			b.notes = append(b.notes, d.note)
		}
	}

	items := make([]types.AggregatedItem, 0, len(buckets))
	for k, b := range buckets {
		item := types.AggregatedItem{
			ID:           fmt.Sprintf("a%d", k+1),
			Category:     b.key.category,
			Class:        b.key.class,
			Phase:        b.key.phase,
			BidAlternate: b.key.alt,
			SourceItems:  make([]types.SourceContribution, 0, len(b.members)),
			Notes:        []string{},
		}
		var conf float64
		for _, i := range b.members {
			q := qs[i]
			item.TotalQuantity += q.NormalizedValue
			item.SourceItems = append(item.SourceItems, types.SourceContribution{QuantityID: q.ID, Quantity: q.NormalizedValue})
			conf += q.Confidence
			if item.Unit == "" {
				item.Unit = q.CanonicalUnit
			}
			if q.ValidationStatus != types.StatusValid && len(q.ValidationNotes) > 0 {
				item.Notes = append(item.Notes, q.ID+": "+q.ValidationNotes[0])
			}
		}
		item.Confidence = conf / float64(len(b.members))
		item.Notes = append(item.Notes, b.notes...)

		if len(b.members) == 1 {
			item.Description = strings.TrimSpace(qs[b.members[0]].Token.RawText)
		} else {
			item.Description = fmt.Sprintf("%s (%d measurements)", b.key.category, len(b.members))
		}
		items = append(items, item)
	}
	return items
}
