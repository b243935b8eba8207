package analyzer_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/sitescope/internal/analyzer"
	"github.com/MrWong99/sitescope/internal/config"
	"github.com/MrWong99/sitescope/internal/transcript"
	"github.com/MrWong99/sitescope/pkg/provider/stt"
)

func boolPtr(b bool) *bool { return &b }

func TestFromConfig_Defaults(t *testing.T) {
	t.Parallel()
	m, _ := newMetrics(t)
	a, err := analyzer.FromConfig(&config.Config{}, analyzer.WithMetrics(m))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	res, err := a.Analyze(context.Background(), spoken)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(res.Measurements) != 3 {
		t.Errorf("got %d measurements, want 3", len(res.Measurements))
	}
	if !strings.Contains(res.Corrected, "25 linear feet") {
		t.Errorf("Corrected = %q", res.Corrected)
	}
}

func TestFromConfig_Terminology(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		terminology config.TerminologyConfig
		narration   string
		contains    string
	}{
		{
			name: "extra lexicon entry",
			terminology: config.TerminologyConfig{
				Lexicon: []transcript.LexiconEntry{{From: "hardy board", To: "HardieBoard"}},
			},
			narration: "Install hardy board siding on the north wall.",
			contains:  "HardieBoard siding",
		},
		{
			name:        "spoken numbers disabled",
			terminology: config.TerminologyConfig{SpokenNumbers: boolPtr(false)},
			narration:   "Frame twenty-five linear feet of wall.",
			contains:    "twenty-five linear feet",
		},
		{
			name: "replaced lexicon",
			terminology: config.TerminologyConfig{
				ReplaceLexicon: true,
				SpokenNumbers:  boolPtr(false),
			},
			narration: "Frame the wall with two by four studs.",
			contains:  "two by four studs",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m, _ := newMetrics(t)
			a, err := analyzer.FromConfig(&config.Config{Terminology: tc.terminology}, analyzer.WithMetrics(m))
			if err != nil {
				t.Fatalf("FromConfig: %v", err)
			}
			res, err := a.Analyze(context.Background(), tc.narration)
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if !strings.Contains(res.Corrected, tc.contains) {
				t.Errorf("Corrected = %q, want it to contain %q", res.Corrected, tc.contains)
			}
		})
	}
}

func TestFromConfig_MinConfidence(t *testing.T) {
	t.Parallel()
	m, _ := newMetrics(t)
	cfg := &config.Config{Transcriber: config.TranscriberConfig{MinConfidence: 0.95}}
	a, err := analyzer.FromConfig(cfg, analyzer.WithMetrics(m))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}

	res, err := a.AnalyzeCapture(context.Background(), analyzer.Capture{
		Transcript: stt.Transcript{Text: spoken, Confidence: 0.9},
	})
	if err != nil {
		t.Fatalf("AnalyzeCapture: %v", err)
	}
	if len(res.Analysis.Warnings) != 1 || !strings.Contains(res.Analysis.Warnings[0], "below 0.95") {
		t.Errorf("warnings = %v, want a low-confidence warning", res.Analysis.Warnings)
	}
}

func TestFromConfig_TablesFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tables.yaml")
	doc := `
advisories:
  - pattern: '\bcrane\b'
    message: Crane lift requires a lift plan
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	m, _ := newMetrics(t)
	cfg := &config.Config{Analysis: config.AnalysisConfig{TablesFile: path}}
	a, err := analyzer.FromConfig(cfg, analyzer.WithMetrics(m))
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	res, err := a.Analyze(context.Background(), "Frame the wall next to the crane pad, 12 linear feet.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	got := res.Analysis.Scope.SpecialConsiderations
	if len(got) != 1 || got[0] != "Crane lift requires a lift plan" {
		t.Errorf("special considerations = %v", got)
	}
}

func TestFromConfig_Errors(t *testing.T) {
	t.Parallel()
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("advisory: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		cfg  *config.Config
	}{
		{
			name: "missing tables file",
			cfg:  &config.Config{Analysis: config.AnalysisConfig{TablesFile: filepath.Join(t.TempDir(), "nope.yaml")}},
		},
		{
			name: "invalid tables file",
			cfg:  &config.Config{Analysis: config.AnalysisConfig{TablesFile: bad}},
		},
		{
			name: "empty lexicon phrase",
			cfg: &config.Config{Terminology: config.TerminologyConfig{
				Lexicon: []transcript.LexiconEntry{{From: "", To: "drywall"}},
			}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := analyzer.FromConfig(tc.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}
