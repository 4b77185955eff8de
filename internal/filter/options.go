package filter

import (
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
)

// OptionSet bundles the selector options valid for the current upstream
// predicates. Every list is sorted ascending.
type OptionSet struct {
	Tiers     []string `json:"tiers"`
	Companies []string `json:"companies"`
	Years     []int    `json:"years"`
	Quarters  []string `json:"quarters"`
	MinDate   string   `json:"minDate,omitempty"`
	MaxDate   string   `json:"maxDate,omitempty"`
}

// ValidCompanies returns the distinct, non-empty companies among rows whose
// tier is in tiers, or every company when tiers is empty.
func ValidCompanies(ds *dataset.Dataset, tiers []string) []string {
	mask := TierMask(ds, tiers)
	var out []string
	for i := 0; i < ds.Len(); i++ {
		if mask != nil && !mask[i] {
			continue
		}
		if c := ds.Row(i).Company; c != "" {
			out = append(out, c)
		}
	}
	return nonNil(dataset.SortedStrings(out))
}

// ValidYears returns the distinct valid years among rows matching the tier
// and company selections. Non-numeric years are excluded.
func ValidYears(ds *dataset.Dataset, tiers, companies []string) []int {
	mask := upstream(ds, TierMask(ds, tiers), CompanyMask(ds, companies))
	var out []int
	for i := 0; i < ds.Len(); i++ {
		if mask != nil && !mask[i] {
			continue
		}
		if row := ds.Row(i); row.YearValid {
			out = append(out, row.Year)
		}
	}
	sorted := dataset.SortedInts(out)
	if sorted == nil {
		return []int{}
	}
	return sorted
}

// ValidQuarters returns the distinct quarter labels among rows matching the
// tier, company and year selections.
func ValidQuarters(ds *dataset.Dataset, tiers, companies []string, years []int) []string {
	mask := upstream(ds, TierMask(ds, tiers), CompanyMask(ds, companies), YearMask(ds, years))
	var out []string
	for i := 0; i < ds.Len(); i++ {
		if mask != nil && !mask[i] {
			continue
		}
		if q := ds.Row(i).Quarter; q != "" {
			out = append(out, q)
		}
	}
	return nonNil(dataset.SortedStrings(out))
}

// Options derives every dependent option list from the upstream predicates
// of spec. It is recomputed on each call and never cached.
func Options(ds *dataset.Dataset, spec Spec) OptionSet {
	set := OptionSet{
		Tiers:     nonNil(ds.Tiers()),
		Companies: ValidCompanies(ds, spec.Tiers),
		Years:     ValidYears(ds, spec.Tiers, spec.Companies),
		Quarters:  ValidQuarters(ds, spec.Tiers, spec.Companies, spec.Years),
	}
	if minDate, maxDate := ds.DateBounds(); minDate != nil && maxDate != nil {
		set.MinDate = datetime.FormatDay(*minDate)
		set.MaxDate = datetime.FormatDay(*maxDate)
	}
	return set
}

// upstream conjoins the non-nil masks, returning nil when all are nil.
func upstream(ds *dataset.Dataset, masks ...Mask) Mask {
	var out Mask
	for _, m := range masks {
		if m == nil {
			continue
		}
		if out == nil {
			out = All(ds.Len())
		}
		out = out.And(m)
	}
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
