package scope_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/sitescope/internal/scope"
	"github.com/MrWong99/sitescope/pkg/types"
)

func TestLoadTables_ReplacesOnlyGivenSections(t *testing.T) {
	t.Parallel()
	doc := `
advisories:
  - pattern: '\bcrane\b'
    message: Crane lift requires a lift plan
common_trades: [Painting]
`
	tables, err := scope.LoadTables(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if len(tables.Advisories) != 1 || tables.Advisories[0].Message != "Crane lift requires a lift plan" {
		t.Errorf("advisories = %+v", tables.Advisories)
	}
	if len(tables.CommonTrades) != 1 || tables.CommonTrades[0] != types.TradePainting {
		t.Errorf("common trades = %v", tables.CommonTrades)
	}
	if got, want := len(tables.Profiles), len(scope.DefaultTables().Profiles); got != want {
		t.Errorf("profiles = %d, want the %d defaults", got, want)
	}

	o, err := scope.New(scope.WithTables(tables))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res := o.Organize("Frame the wall by the crane pad.", nil, nil)
	if len(res.Scope.SpecialConsiderations) != 1 || res.Scope.SpecialConsiderations[0] != "Crane lift requires a lift plan" {
		t.Errorf("special considerations = %v", res.Scope.SpecialConsiderations)
	}
}

func TestLoadTables_Empty(t *testing.T) {
	t.Parallel()
	tables, err := scope.LoadTables(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadTables: %v", err)
	}
	if len(tables.Profiles) != len(scope.DefaultTables().Profiles) {
		t.Error("empty document should keep the default profiles")
	}
}

func TestLoadTables_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name, doc string
	}{
		{"unknown key", "advisory: []\n"},
		{"profile without trade", "profiles:\n  - sequence: 1\n"},
		{"duplicate trade", "profiles:\n  - trade: Framing\n  - trade: Framing\n"},
		{"item without pattern", "profiles:\n  - trade: Framing\n    items:\n      - description: Frame walls\n"},
		{"material without name", "materials:\n  - pattern: osb\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := scope.LoadTables(strings.NewReader(tc.doc)); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestLoadTablesFile_Missing(t *testing.T) {
	t.Parallel()
	if _, err := scope.LoadTablesFile("/nonexistent/tables.yaml"); err == nil {
		t.Error("expected error, got nil")
	}
}
