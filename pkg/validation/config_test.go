package validation

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/iwvelando/ratio-dashboard/internal/dataset"
)

func TestValidatePercentiles(t *testing.T) {
	tests := []struct {
		name          string
		ranks         []float64
		expectedCount int
		contains      string
	}{
		{name: "Defaults", ranks: []float64{5, 10, 15, 25, 75, 85, 90, 95}, expectedCount: 0},
		{name: "Bounds are valid", ranks: []float64{0, 100}, expectedCount: 0},
		{name: "Above 100", ranks: []float64{101}, expectedCount: 1, contains: "outside [0, 100]"},
		{name: "Negative", ranks: []float64{-1, 50}, expectedCount: 1, contains: "outside"},
		{name: "NaN", ranks: []float64{math.NaN()}, expectedCount: 1, contains: "outside"},
		{name: "Duplicate", ranks: []float64{25, 25}, expectedCount: 1, contains: "more than once"},
		{name: "Empty", ranks: nil, expectedCount: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := ValidatePercentiles(tt.ranks)
			if len(warnings) != tt.expectedCount {
				t.Fatalf("expected %d warnings, got %d: %v", tt.expectedCount, len(warnings), warnings)
			}
			if tt.contains != "" && !strings.Contains(warnings[0], tt.contains) {
				t.Errorf("warning %q does not contain %q", warnings[0], tt.contains)
			}
		})
	}
}

func TestValidateFeatures(t *testing.T) {
	warnings := ValidateFeatures([]dataset.Feature{
		{Column: "npl_gross"},
		{Column: ""},
		{Column: "npl_gross", DisplayName: "NPL again"},
	})
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	if !strings.Contains(warnings[1], "npl_gross") {
		t.Errorf("duplicate warning should name the column: %s", warnings[1])
	}

	if w := ValidateFeatures([]dataset.Feature{{Column: "roa"}, {Column: "roe"}}); len(w) != 0 {
		t.Errorf("unexpected warnings %v", w)
	}
}

func TestValidateSources(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "kbmi1.xlsx")
	b := filepath.Join(dir, "kbmi2.xlsx")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name          string
		sources       []string
		expectedCount int
	}{
		{name: "Two readable files", sources: []string{a, b}, expectedCount: 0},
		{name: "Single source", sources: []string{a}, expectedCount: 1},
		{name: "None", sources: nil, expectedCount: 1},
		{name: "Missing file", sources: []string{a, filepath.Join(dir, "missing.xlsx")}, expectedCount: 1},
		{name: "Directory", sources: []string{a, dir}, expectedCount: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateSources(tt.sources); len(got) != tt.expectedCount {
				t.Errorf("expected %d warnings, got %v", tt.expectedCount, got)
			}
		})
	}
}
