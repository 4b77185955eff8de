// Package validation provides configuration validation utilities.
package validation

import (
	"fmt"
	"math"
	"os"

	"github.com/iwvelando/ratio-dashboard/internal/dataset"
)

// ValidatePercentiles returns warnings for ranks outside [0, 100] and for
// duplicated ranks.
func ValidatePercentiles(ranks []float64) []string {
	var warnings []string
	seen := make(map[float64]struct{}, len(ranks))
	for _, r := range ranks {
		if math.IsNaN(r) || r < 0 || r > 100 {
			warnings = append(warnings, fmt.Sprintf("Percentile rank %g is outside [0, 100] and will be clamped", r))
			continue
		}
		if _, dup := seen[r]; dup {
			warnings = append(warnings, fmt.Sprintf("Percentile rank %g is listed more than once", r))
		}
		seen[r] = struct{}{}
	}
	return warnings
}

// ValidateFeatures returns warnings for empty or duplicated feature columns.
func ValidateFeatures(features []dataset.Feature) []string {
	var warnings []string
	seen := make(map[string]struct{}, len(features))
	for i, f := range features {
		if f.Column == "" {
			warnings = append(warnings, fmt.Sprintf("Feature %d has no column name and will be ignored", i))
			continue
		}
		if _, dup := seen[f.Column]; dup {
			warnings = append(warnings, fmt.Sprintf("Feature '%s' is listed more than once", f.Column))
		}
		seen[f.Column] = struct{}{}
	}
	return warnings
}

// ValidateSources returns warnings for unusable workbook paths. A single
// source is allowed but noted since the loader unions several tier tables.
func ValidateSources(sources []string) []string {
	var warnings []string
	if len(sources) == 0 {
		return []string{"No data sources configured"}
	}
	if len(sources) == 1 {
		warnings = append(warnings, "Only one data source configured; tier tables are usually split across several workbooks")
	}
	for _, s := range sources {
		info, err := os.Stat(s)
		switch {
		case err != nil:
			warnings = append(warnings, fmt.Sprintf("Data source '%s' is not readable: %v", s, err))
		case info.IsDir():
			warnings = append(warnings, fmt.Sprintf("Data source '%s' is a directory", s))
		}
	}
	return warnings
}
