package analyzer_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/observe"
	"github.com/MrWong99/sitescope/internal/scope"
	"github.com/MrWong99/sitescope/internal/transcript"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
	"github.com/MrWong99/sitescope/pkg/types"
)

// spoken is the walk-through as a recogniser would deliver it.
const spoken = "Install hardwood flooring in the living room that's about 20 by 15 feet. " +
	"Also frame a new wall using 2x4 studs, twenty-five linear feet. The bathroom needs 3 new outlets."

// newMetrics returns metrics backed by a manual reader.
func newMetrics(t *testing.T) (*observe.Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// steppingClock advances by step on every call.
func steppingClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newAnalyzer(t *testing.T, opts ...analyzer.Option) *analyzer.Analyzer {
	t.Helper()
	m, _ := newMetrics(t)
	return analyzer.New(append([]analyzer.Option{analyzer.WithMetrics(m)}, opts...)...)
}

func TestAnalyze_EndToEnd(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t, analyzer.WithClock(steppingClock(time.Millisecond)))

	res, err := a.Analyze(context.Background(), spoken)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.Narration != spoken {
		t.Errorf("Narration = %q, want the input", res.Narration)
	}
	if !strings.Contains(res.Corrected, "25 linear feet") {
		t.Errorf("Corrected = %q, want spoken number converted", res.Corrected)
	}
	if len(res.Corrections) != 1 || res.Corrections[0].Method != transcript.MethodNumber {
		t.Errorf("Corrections = %+v, want one number correction", res.Corrections)
	}

	wantTokens := []struct {
		class types.MeasurementClass
		value float64
	}{
		{types.ClassSquare, 300},
		{types.ClassLinear, 25},
		{types.ClassCount, 3},
	}
	if len(res.Measurements) != len(wantTokens) {
		t.Fatalf("got %d measurements, want %d: %+v", len(res.Measurements), len(wantTokens), res.Measurements)
	}
	for i, w := range wantTokens {
		got := res.Measurements[i]
		if got.Type != w.class || got.Value != w.value {
			t.Errorf("measurement %d = %s %v, want %s %v", i, got.Type, got.Value, w.class, w.value)
		}
	}

	if n := len(res.Quantities.NormalizedQuantities); n != 3 {
		t.Errorf("got %d normalized quantities, want 3", n)
	}
	if n := len(res.Quantities.Ambiguities); n != 0 {
		t.Errorf("got %d ambiguities, want 0: %+v", n, res.Quantities.Ambiguities)
	}

	sequence := map[types.Trade]int{}
	for _, c := range res.Analysis.Scope.WorkCategories {
		sequence[c.Trade] = c.SequenceOrder
	}
	for _, trade := range []types.Trade{types.TradeFlooring, types.TradeFraming, types.TradeElectrical} {
		if _, ok := sequence[trade]; !ok {
			t.Errorf("missing %s category; got %v", trade, sequence)
		}
	}
	if sequence[types.TradeFraming] >= sequence[types.TradeElectrical] {
		t.Errorf("Framing (%d) must be sequenced before Electrical (%d)",
			sequence[types.TradeFraming], sequence[types.TradeElectrical])
	}
	if res.Analysis.Confidence <= 0.5 {
		t.Errorf("confidence = %v, want > 0.5", res.Analysis.Confidence)
	}
	if len(res.Analysis.Warnings) != 0 {
		t.Errorf("warnings = %v, want none", res.Analysis.Warnings)
	}
	if res.ProcessingTime <= 0 {
		t.Errorf("ProcessingTime = %v, want positive", res.ProcessingTime)
	}
}

func TestAnalyze_Empty(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	res, err := a.Analyze(context.Background(), "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if n := len(res.Analysis.Scope.WorkCategories); n != 0 {
		t.Errorf("got %d categories, want 0", n)
	}
	if !slices.Contains(res.Analysis.Warnings, scope.WarningNoCategories) {
		t.Errorf("warnings = %v, want %q", res.Analysis.Warnings, scope.WarningNoCategories)
	}
	if len(res.Measurements) != 0 || len(res.Quantities.NormalizedQuantities) != 0 {
		t.Error("empty narration produced quantities")
	}
}

func TestAnalyze_InvalidUTF8(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	_, err := a.Analyze(context.Background(), "frame 20 feet \xff\xfe of wall")
	if !errors.Is(err, analyzer.ErrInvalidNarration) {
		t.Fatalf("err = %v, want ErrInvalidNarration", err)
	}
}

func TestAnalyze_Cancelled(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := a.Analyze(ctx, spoken)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestAnalyzeCapture_LowTranscriptConfidence(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t, analyzer.WithMinConfidence(0.6))
	ctx := context.Background()

	confident, err := a.AnalyzeCapture(ctx, analyzer.Capture{
		ID:         "walk-1",
		Transcript: stt.Transcript{Text: spoken, Confidence: 0.92},
	})
	if err != nil {
		t.Fatalf("AnalyzeCapture: %v", err)
	}
	shaky, err := a.AnalyzeCapture(ctx, analyzer.Capture{
		ID:         "walk-2",
		Transcript: stt.Transcript{Text: spoken, Confidence: 0.41},
		Photos:     []string{"living-room.jpg"},
	})
	if err != nil {
		t.Fatalf("AnalyzeCapture: %v", err)
	}

	if confident.ID != "walk-1" || shaky.ID != "walk-2" {
		t.Errorf("IDs = %q, %q", confident.ID, shaky.ID)
	}
	if shaky.TranscriptConfidence != 0.41 {
		t.Errorf("TranscriptConfidence = %v, want 0.41", shaky.TranscriptConfidence)
	}
	if len(confident.Analysis.Warnings) != 0 {
		t.Errorf("confident capture warnings = %v", confident.Analysis.Warnings)
	}
	if len(shaky.Analysis.Warnings) != 1 || !strings.Contains(shaky.Analysis.Warnings[0], "Transcript confidence 0.41") {
		t.Fatalf("shaky capture warnings = %v", shaky.Analysis.Warnings)
	}
	if diff := confident.Analysis.Confidence - shaky.Analysis.Confidence; diff < 0.049 || diff > 0.051 {
		t.Errorf("confidence drop = %v, want 0.05", diff)
	}
	if shaky.Analysis.Scope.Confidence != shaky.Analysis.Confidence {
		t.Error("scope confidence out of sync with result confidence")
	}
	if !strings.Contains(shaky.Analysis.Scope.ProjectSummary, "1 site photos") {
		t.Errorf("summary = %q, want photo count", shaky.Analysis.Scope.ProjectSummary)
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)
	ctx := context.Background()

	first, err := a.Analyze(ctx, spoken)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	second, err := a.Analyze(ctx, spoken)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.Corrected != second.Corrected ||
		len(first.Quantities.AggregatedItems) != len(second.Quantities.AggregatedItems) ||
		first.Analysis.Confidence != second.Analysis.Confidence {
		t.Error("repeated analysis of the same narration differs")
	}
	for i := range first.Quantities.AggregatedItems {
		if first.Quantities.AggregatedItems[i].TotalQuantity != second.Quantities.AggregatedItems[i].TotalQuantity {
			t.Errorf("aggregated item %d differs between runs", i)
		}
	}
}

func TestAnalyze_RecordsMetrics(t *testing.T) {
	t.Parallel()
	m, reader := newMetrics(t)
	a := analyzer.New(analyzer.WithMetrics(m))
	ctx := context.Background()

	if _, err := a.Analyze(ctx, spoken); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := a.Analyze(ctx, ""); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := a.Analyze(ctx, "\xff"); err == nil {
		t.Fatal("expected error for invalid narration")
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}

	captures := counterValues(rm, "sitescope.captures", "status")
	want := map[string]int64{observe.StatusOK: 1, observe.StatusWarning: 1, observe.StatusRejected: 1}
	for status, n := range want {
		if captures[status] != n {
			t.Errorf("captures[%s] = %d, want %d", status, captures[status], n)
		}
	}

	tokens := counterValues(rm, "sitescope.tokens", "class")
	for _, class := range []string{"square", "linear", "count"} {
		if tokens[class] != 1 {
			t.Errorf("tokens[%s] = %d, want 1", class, tokens[class])
		}
	}
	if corrections := counterValues(rm, "sitescope.corrections", "method"); corrections[transcript.MethodNumber] != 1 {
		t.Errorf("number corrections = %d, want 1", corrections[transcript.MethodNumber])
	}
}

// counterValues maps the value of attribute key to the counter value for
// every data point of the named counter.
func counterValues(rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != name {
				continue
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestCorrect(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	got, err := a.Correct(context.Background(), "Frame twenty-five linear feet of wall.")
	if err != nil {
		t.Fatalf("Correct: %v", err)
	}
	if got.Corrected != "Frame 25 linear feet of wall." {
		t.Errorf("Corrected = %q", got.Corrected)
	}
	if _, err := a.Correct(context.Background(), "\xff"); !errors.Is(err, analyzer.ErrInvalidNarration) {
		t.Errorf("err = %v, want ErrInvalidNarration", err)
	}
}

func TestQuantities(t *testing.T) {
	t.Parallel()
	a := newAnalyzer(t)

	q, err := a.Quantities(context.Background(), spoken)
	if err != nil {
		t.Fatalf("Quantities: %v", err)
	}
	full, err := a.Analyze(context.Background(), spoken)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if q.Corrected != full.Corrected || len(q.Measurements) != len(full.Measurements) {
		t.Error("Quantities disagrees with the full analysis")
	}
	if len(q.Quantities.AggregatedItems) != len(full.Quantities.AggregatedItems) {
		t.Errorf("aggregated items = %d, want %d", len(q.Quantities.AggregatedItems), len(full.Quantities.AggregatedItems))
	}
}

func TestHolder(t *testing.T) {
	t.Parallel()
	first := newAnalyzer(t)
	second := newAnalyzer(t)

	h := analyzer.NewHolder(first)
	if h.Load() != first {
		t.Fatal("Load() did not return the initial analyzer")
	}
	h.Store(second)
	if h.Load() != second {
		t.Fatal("Load() did not return the stored analyzer")
	}
}
