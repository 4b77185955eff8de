// Package filter builds boolean row masks over a dataset from a declarative
// set of predicates and derives the option lists for dependent selectors.
//
// Every predicate except the date range treats an empty selection as "no
// filtering on this dimension": clearing a multi-select must not collapse the
// result to zero rows. The date range is only present in a Spec once it has
// been committed by an explicit apply action (see package view).
package filter

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
	"github.com/samber/lo"
)

// DateRange is an inclusive [Start, End] range of calendar days.
type DateRange struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// ErrReversedRange is returned by NewDateRange when start is after end.
var ErrReversedRange = errors.New("date range start is after end")

// NewDateRange builds the range [start, end], rejecting a reversed range.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if !r.Valid() {
		return DateRange{}, errors.WithHint(
			errors.Wrapf(ErrReversedRange, "%s > %s", datetime.FormatDay(start), datetime.FormatDay(end)),
			"swap the start and end dates")
	}
	return r, nil
}

// Valid reports whether Start is not after End, compared by calendar day.
func (r DateRange) Valid() bool {
	return !datetime.DayBefore(r.End, r.Start)
}

// Contains reports whether t falls within the range, by calendar day.
func (r DateRange) Contains(t time.Time) bool {
	return !datetime.DayBefore(t, r.Start) && !datetime.DayBefore(r.End, t)
}

// Spec is the set of filter predicates. A nil or empty field passes every row.
type Spec struct {
	Companies []string   `json:"companies,omitempty" yaml:"companies,omitempty"`
	Tiers     []string   `json:"tiers,omitempty" yaml:"tiers,omitempty"`
	Years     []int      `json:"years,omitempty" yaml:"years,omitempty"`
	Quarters  []string   `json:"quarters,omitempty" yaml:"quarters,omitempty"`
	DateRange *DateRange `json:"dateRange,omitempty" yaml:"dateRange,omitempty"`
}

// Clone returns a deep copy of s.
func (s Spec) Clone() Spec {
	out := Spec{
		Companies: cloneSlice(s.Companies),
		Tiers:     cloneSlice(s.Tiers),
		Years:     cloneSlice(s.Years),
		Quarters:  cloneSlice(s.Quarters),
	}
	if s.DateRange != nil {
		dr := *s.DateRange
		out.DateRange = &dr
	}
	return out
}

// Mask marks the selected rows of a dataset.
type Mask []bool

// Count returns the number of selected rows.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// Indices returns the positions of the selected rows in ascending order.
func (m Mask) Indices() []int {
	out := make([]int, 0, m.Count())
	for i, v := range m {
		if v {
			out = append(out, i)
		}
	}
	return out
}

// And returns the element-wise conjunction of m and other, which must have
// the same length.
func (m Mask) And(other Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] && other[i]
	}
	return out
}

// All returns a mask selecting every one of n rows.
func All(n int) Mask {
	m := make(Mask, n)
	for i := range m {
		m[i] = true
	}
	return m
}

// BuildMask returns the conjunction of every active predicate in spec.
func BuildMask(ds *dataset.Dataset, spec Spec) Mask {
	mask := All(ds.Len())
	for _, part := range []Mask{
		CompanyMask(ds, spec.Companies),
		TierMask(ds, spec.Tiers),
		YearMask(ds, spec.Years),
		QuarterMask(ds, spec.Quarters),
		DateMask(ds, spec.DateRange),
	} {
		if part != nil {
			mask = mask.And(part)
		}
	}
	return mask
}

// Apply returns the indices of the rows selected by mask. The dataset is
// never modified.
func Apply(ds *dataset.Dataset, mask Mask) []int {
	if len(mask) != ds.Len() {
		return []int{}
	}
	return mask.Indices()
}

// Select is BuildMask followed by Apply.
func Select(ds *dataset.Dataset, spec Spec) []int {
	return Apply(ds, BuildMask(ds, spec))
}

// CompanyMask selects rows whose company is in companies. It returns nil
// (pass-through) for an empty selection.
func CompanyMask(ds *dataset.Dataset, companies []string) Mask {
	return stringMask(ds, companies, func(o *dataset.Observation) string { return o.Company })
}

// TierMask selects rows whose KBMI tier is in tiers; nil for an empty selection.
func TierMask(ds *dataset.Dataset, tiers []string) Mask {
	return stringMask(ds, tiers, func(o *dataset.Observation) string { return o.Tier })
}

// QuarterMask selects rows whose quarter label is in quarters; nil for an
// empty selection.
func QuarterMask(ds *dataset.Dataset, quarters []string) Mask {
	return stringMask(ds, quarters, func(o *dataset.Observation) string { return o.Quarter })
}

// YearMask selects rows whose valid year is in years; nil for an empty
// selection. Rows with a non-numeric year never match.
func YearMask(ds *dataset.Dataset, years []int) Mask {
	if len(years) == 0 {
		return nil
	}
	set := lo.SliceToMap(years, func(y int) (int, struct{}) { return y, struct{}{} })
	mask := make(Mask, ds.Len())
	for i := range mask {
		row := ds.Row(i)
		if !row.YearValid {
			continue
		}
		_, mask[i] = set[row.Year]
	}
	return mask
}

// DateMask selects rows whose posisi lies within r; nil when r is nil. Rows
// without a reporting date never match an active range. A reversed range is
// ignored and passes every row.
func DateMask(ds *dataset.Dataset, r *DateRange) Mask {
	if r == nil || !r.Valid() {
		return nil
	}
	mask := make(Mask, ds.Len())
	for i := range mask {
		if p := ds.Row(i).Posisi; p != nil {
			mask[i] = r.Contains(*p)
		}
	}
	return mask
}

func stringMask(ds *dataset.Dataset, selected []string, field func(*dataset.Observation) string) Mask {
	if len(selected) == 0 {
		return nil
	}
	set := lo.SliceToMap(selected, func(s string) (string, struct{}) { return s, struct{}{} })
	mask := make(Mask, ds.Len())
	for i := range mask {
		_, mask[i] = set[field(ds.Row(i))]
	}
	return mask
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append([]T(nil), in...)
}
