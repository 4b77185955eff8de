// Package mathutil provides common numeric helpers for ratio values.
package mathutil

import (
	"math"

	"github.com/iwvelando/ratio-dashboard/pkg/constants"
)

// IsFinite reports whether val is neither NaN nor infinite. NaN is the
// in-memory representation of a missing ratio.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// WithinTolerance checks if two values are within a specified tolerance
func WithinTolerance(val1, val2, tolerance float64) bool {
	return math.Abs(val1-val2) <= tolerance
}

// Round rounds val to the given number of decimal places.
func Round(val float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(val*scale) / scale
}

// Fraction returns part/total, or 0 when total is zero.
func Fraction(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total)
}

// FromPercent converts a percent-unit value (30) into a fraction (0.30).
func FromPercent(val float64) float64 {
	return val / constants.PercentMultiplier
}

// ToPercent converts a fraction (0.30) into percent units (30).
func ToPercent(val float64) float64 {
	return val * constants.PercentMultiplier
}

// Ptr returns a pointer to val, or nil when val is not finite.
func Ptr(val float64) *float64 {
	if !IsFinite(val) {
		return nil
	}
	return &val
}
