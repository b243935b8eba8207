package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/pkg/types"
)

const separator = "────────────────────────────────────────────────────────────"

// WriteText renders results as plain text, separated by a rule line.
// Quantities are referred to by the narration they came from, never by ID.
func WriteText(w io.Writer, results ...*analyzer.Result) error {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n" + separator + "\n\n")
		}
		writeResult(&b, r)
	}
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("report: write text: %w", err)
	}
	return nil
}

// textWriter accumulates sections, skipping empty ones.
type textWriter struct {
	b   *strings.Builder
	raw map[string]string // quantity or token ID → raw narration text
}

func (t *textWriter) section(title string, lines []string) {
	if len(lines) == 0 {
		return
	}
	t.b.WriteString(title + "\n")
	for _, l := range lines {
		t.b.WriteString("  " + l + "\n")
	}
	t.b.WriteString("\n")
}

// refs turns IDs into quoted narration snippets.
func (t *textWriter) refs(ids []string) string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if raw, ok := t.raw[id]; ok {
			out = append(out, fmt.Sprintf("%q", raw))
		}
	}
	return strings.Join(out, ", ")
}

func writeResult(b *strings.Builder, r *analyzer.Result) {
	t := &textWriter{b: b, raw: map[string]string{}}
	for _, tok := range r.Measurements {
		t.raw[tok.ID] = tok.RawText
	}
	for _, q := range r.Quantities.NormalizedQuantities {
		t.raw[q.ID] = q.Token.RawText
	}

	t.section("Narration", []string{r.Narration})
	if r.Corrected != r.Narration {
		t.section("Corrected narration", []string{r.Corrected})
	}
	t.section("Corrections", corrections(r))
	if r.TranscriptConfidence > 0 {
		t.section("Transcript", []string{"confidence " + percent(r.TranscriptConfidence)})
	}

	t.section("Measurements", measurements(r.Measurements))
	t.section("Normalized quantities", normalized(r.Quantities.NormalizedQuantities))
	t.section("Dimension checks", t.validations(r.Quantities.DimensionValidations))
	t.section("Ambiguities", t.ambiguities(r.Quantities.Ambiguities))
	t.section("Aggregated totals", t.aggregated(r.Quantities.AggregatedItems))
	t.section("Quality", quality(r.Quantities.QualityMetrics))

	s := r.Analysis.Scope
	t.section("Scope", []string{s.ProjectSummary})
	t.section("Work categories", categories(s.WorkCategories))
	t.section("Materials", materials(s.MaterialSpecs))
	t.section("Labor", labor(s.LaborRequirements))
	t.section("Special considerations", s.SpecialConsiderations)
	t.section("Suggestions", r.Analysis.Suggestions)
	t.section("Warnings", r.Analysis.Warnings)

	summary := []string{
		"Estimated timeline: " + s.EstimatedTimeline,
		"Confidence: " + percent(r.Analysis.Confidence),
	}
	if d := r.ProcessingTime; d > 0 {
		summary = append(summary, "Processing time: "+d.String())
	}
	t.section("Summary", summary)
}

func corrections(r *analyzer.Result) []string {
	var out []string
	for _, c := range r.Corrections {
		out = append(out, fmt.Sprintf("%q → %q (%s, %s)", c.Original, c.Corrected, c.Method, percent(c.Confidence)))
	}
	return out
}

func measurements(tokens []types.MeasurementToken) []string {
	var out []string
	for _, tok := range tokens {
		line := fmt.Sprintf("%s → %s %s (%s)", tok.RawText, types.FormatNumber(tok.Value), tok.Unit, tok.Type)
		if len(tok.Dimensions) > 0 {
			dims := make([]string, len(tok.Dimensions))
			for i, d := range tok.Dimensions {
				dims[i] = types.FormatNumber(d)
			}
			line += fmt.Sprintf(" from %s %s", strings.Join(dims, " × "), tok.DimensionUnit)
		}
		out = append(out, fmt.Sprintf("%s, confidence %s", line, percent(tok.Confidence)))
	}
	return out
}

func normalized(qs []types.NormalizedQuantity) []string {
	var out []string
	for _, q := range qs {
		line := fmt.Sprintf("%s: %s [%s, confidence %s]", q.Token.RawText, q.ConversionTrail, q.ValidationStatus, percent(q.Confidence))
		if !q.UnitRecognized {
			line += " unit not recognised"
		}
		out = append(out, line)
		for _, n := range q.ValidationNotes {
			out = append(out, "  - "+n)
		}
	}
	return out
}

func (t *textWriter) validations(vs []types.DimensionValidation) []string {
	var out []string
	for _, v := range vs {
		dims := make([]string, len(v.Dimensions))
		for i, d := range v.Dimensions {
			dims[i] = types.FormatNumber(d)
		}
		line := fmt.Sprintf("%s [%s]: %s = %s %s", v.Kind, v.ValidationLevel, strings.Join(dims, " × "),
			types.FormatNumber(v.CalculatedTotal), v.ProvidedUnit)
		if v.ProvidedTotal > 0 {
			line += fmt.Sprintf(", stated %s %s, deviation %s (tolerance %s)", types.FormatNumber(v.ProvidedTotal),
				v.ProvidedUnit, percent(v.Deviation), percent(v.Tolerance))
		}
		if refs := t.refs(v.QuantityIDs); refs != "" {
			line += " from " + refs
		}
		out = append(out, line)
		for _, rec := range v.Recommendations {
			out = append(out, "  - "+rec)
		}
	}
	return out
}

func (t *textWriter) ambiguities(as []types.QuantityAmbiguity) []string {
	var out []string
	for _, a := range as {
		line := fmt.Sprintf("[%s] %s", a.Severity, a.Type)
		if refs := t.refs(a.AffectedIDs); refs != "" {
			line += " in " + refs
		}
		if a.RequiresUserConfirmation {
			line += " (needs confirmation)"
		}
		out = append(out, line, "  action: "+a.RecommendedAction)
		for _, in := range a.Interpretations {
			out = append(out, fmt.Sprintf("  - %s %s (%s): %s",
				types.FormatNumber(in.Value), in.Unit, percent(in.Confidence), in.Reasoning))
		}
	}
	return out
}

func (t *textWriter) aggregated(items []types.AggregatedItem) []string {
	var out []string
	for _, it := range items {
		line := fmt.Sprintf("%s: %s %s %s (%s)", it.Category, it.Description,
			types.FormatNumber(it.TotalQuantity), it.Unit, percent(it.Confidence))
		if it.Phase != "" {
			line += ", " + it.Phase
		}
		if it.BidAlternate != "" {
			line += ", " + it.BidAlternate
		}
		out = append(out, line)
		for _, src := range it.SourceItems {
			out = append(out, fmt.Sprintf("  + %s from %q", types.FormatNumber(src.Quantity), t.raw[src.QuantityID]))
		}
		for _, n := range it.Notes {
			out = append(out, "  - "+n)
		}
	}
	return out
}

func quality(m types.QualityMetrics) []string {
	return []string{
		"overall confidence " + percent(m.OverallConfidence),
		"normalization success " + percent(m.NormalizationSuccessRate),
		"completeness " + percent(m.CompletenessScore),
		fmt.Sprintf("validation errors %s, ambiguities %d", types.FormatNumber(m.ValidationErrorCount), m.AmbiguityCount),
	}
}

func categories(cs []types.WorkCategory) []string {
	var out []string
	for _, c := range cs {
		line := fmt.Sprintf("%d. %s (%s, %s risk)", c.SequenceOrder, c.Trade, c.EstimatedDuration, c.RiskLevel)
		if len(c.Prerequisites) > 0 {
			pre := make([]string, len(c.Prerequisites))
			for i, p := range c.Prerequisites {
				pre[i] = string(p)
			}
			line += " after " + strings.Join(pre, ", ")
		}
		out = append(out, line)
		for _, it := range c.Items {
			item := fmt.Sprintf("  - %s [%s]", it.Description, it.Priority)
			if it.Quantity != nil {
				item += fmt.Sprintf(": %s %s", types.FormatNumber(*it.Quantity), it.Unit)
			}
			out = append(out, item)
			for _, n := range it.Notes {
				out = append(out, "      "+n)
			}
		}
	}
	return out
}

func materials(ms []types.MaterialSpec) []string {
	var out []string
	for _, m := range ms {
		line := fmt.Sprintf("%s (%s): %s", m.Name, m.Trade, m.Specification)
		if m.Quantity != nil {
			line += fmt.Sprintf(", %s %s", types.FormatNumber(*m.Quantity), m.Unit)
		}
		out = append(out, line)
	}
	return out
}

func labor(ls []types.LaborRequirement) []string {
	var out []string
	for _, l := range ls {
		line := fmt.Sprintf("%s: %s, %s hours, crew of %d", l.Trade, l.SkillLevel, types.FormatNumber(l.EstimatedHours), l.CrewSize)
		if len(l.Licensing) > 0 {
			line += ", licensing: " + strings.Join(l.Licensing, "; ")
		}
		out = append(out, line)
	}
	return out
}

func percent(v float64) string {
	return types.FormatNumber(v*100) + "%"
}
