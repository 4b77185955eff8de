// Package dataset defines the in-memory, read-only snapshot of quarterly bank
// ratio observations shared by every view in a session.
package dataset

import (
	"math"
	"sort"
	"time"

	"github.com/samber/lo"
)

// Observation is one row of the dataset.
type Observation struct {
	Company     string
	Tier        string
	Year        int
	YearValid   bool
	Quarter     string
	YearQuarter string
	// Posisi is the reporting date; nil when missing or unparseable.
	Posisi *time.Time
	// Ratios holds the numeric ratio columns as fractions. Missing values are
	// absent from the map or stored as NaN.
	Ratios map[string]float64
}

func cloneRows(rows []Observation) []Observation {
	out := make([]Observation, len(rows))
	for i, r := range rows {
		if r.Posisi != nil {
			d := *r.Posisi
			r.Posisi = &d
		}
		if r.Ratios != nil {
			ratios := make(map[string]float64, len(r.Ratios))
			for k, v := range r.Ratios {
				ratios[k] = v
			}
			r.Ratios = ratios
		}
		out[i] = r
	}
	return out
}

// Ratio returns the named ratio, or NaN when it is missing.
func (o Observation) Ratio(column string) float64 {
	v, ok := o.Ratios[column]
	if !ok {
		return math.NaN()
	}
	return v
}

// Feature is a whitelisted ratio column and its display name.
type Feature struct {
	Column      string `json:"column" yaml:"column" mapstructure:"column"`
	DisplayName string `json:"displayName" yaml:"displayName" mapstructure:"displayName"`
}

// Label returns the display name, falling back to the column name.
func (f Feature) Label() string {
	if f.DisplayName != "" {
		return f.DisplayName
	}
	return f.Column
}

// Dataset is an immutable collection of observations. Nothing in the
// repository mutates a Dataset after New returns, so it is safe to share
// across goroutines without locking.
type Dataset struct {
	rows      []Observation
	features  []Feature
	featureIx map[string]int

	companies []string
	tiers     []string
	years     []int
	quarters  []string
	minDate   *time.Time
	maxDate   *time.Time
}

// New builds a Dataset from a deep copy of rows and the configured feature
// whitelist and derives the selector option sets. Later changes to rows do
// not reach the Dataset.
func New(rows []Observation, features []Feature) *Dataset {
	rows = cloneRows(rows)
	ds := &Dataset{
		rows:      rows,
		features:  append([]Feature(nil), features...),
		featureIx: make(map[string]int, len(features)),
	}
	for i, f := range ds.features {
		ds.featureIx[f.Column] = i
	}

	var companies, tiers, quarters []string
	var years []int
	for i := range rows {
		r := &rows[i]
		if r.Company != "" {
			companies = append(companies, r.Company)
		}
		if r.Tier != "" {
			tiers = append(tiers, r.Tier)
		}
		if r.Quarter != "" {
			quarters = append(quarters, r.Quarter)
		}
		if r.YearValid {
			years = append(years, r.Year)
		}
		if r.Posisi != nil {
			if ds.minDate == nil || r.Posisi.Before(*ds.minDate) {
				ds.minDate = r.Posisi
			}
			if ds.maxDate == nil || r.Posisi.After(*ds.maxDate) {
				ds.maxDate = r.Posisi
			}
		}
	}

	ds.companies = SortedStrings(companies)
	ds.tiers = SortedStrings(tiers)
	ds.quarters = SortedStrings(quarters)
	ds.years = SortedInts(years)
	return ds
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Row returns a pointer to row i. Callers must not modify it.
func (d *Dataset) Row(i int) *Observation { return &d.rows[i] }

// Column returns the named ratio for each index, NaN where missing. A nil
// indices slice selects every row.
func (d *Dataset) Column(column string, indices []int) []float64 {
	if indices == nil {
		out := make([]float64, len(d.rows))
		for i := range d.rows {
			out[i] = d.rows[i].Ratio(column)
		}
		return out
	}
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = d.rows[idx].Ratio(column)
	}
	return out
}

// Features returns the feature whitelist in configured order.
func (d *Dataset) Features() []Feature {
	return append([]Feature(nil), d.features...)
}

// HasFeature reports whether column is whitelisted.
func (d *Dataset) HasFeature(column string) bool {
	_, ok := d.featureIx[column]
	return ok
}

// DisplayName returns the display name configured for column.
func (d *Dataset) DisplayName(column string) string {
	if i, ok := d.featureIx[column]; ok {
		return d.features[i].Label()
	}
	return column
}

// Companies returns the distinct company names, sorted ascending.
func (d *Dataset) Companies() []string { return append([]string(nil), d.companies...) }

// Tiers returns the distinct KBMI tiers, sorted ascending.
func (d *Dataset) Tiers() []string { return append([]string(nil), d.tiers...) }

// Years returns the distinct valid years, sorted ascending.
func (d *Dataset) Years() []int { return append([]int(nil), d.years...) }

// Quarters returns the distinct quarter labels, sorted ascending.
func (d *Dataset) Quarters() []string { return append([]string(nil), d.quarters...) }

// DateBounds returns the earliest and latest reporting dates, nil when no row
// has one.
func (d *Dataset) DateBounds() (*time.Time, *time.Time) {
	return d.minDate, d.maxDate
}

// SortedStrings returns the distinct values in ascending order.
func SortedStrings(values []string) []string {
	out := lo.Uniq(values)
	sort.Strings(out)
	return out
}

// SortedInts returns the distinct values in ascending order.
func SortedInts(values []int) []int {
	out := lo.Uniq(values)
	sort.Ints(out)
	return out
}
