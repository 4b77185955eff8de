// Package view combines the filter engine, the statistics calculator and the
// rule evaluator into one queryable chart unit over a shared dataset.
package view

import (
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
	"github.com/iwvelando/ratio-dashboard/pkg/stats"
)

// ErrUnknownFeature is returned when the requested ratio column is not in the
// feature whitelist.
var ErrUnknownFeature = errors.New("feature is not in the configured whitelist")

// Point is one period's value for a company. Value is nil when the ratio is
// missing for that period.
type Point struct {
	Period string   `json:"period"`
	Value  *float64 `json:"value"`
}

// Series is the time series of one company, ordered by period.
type Series struct {
	Company string  `json:"company"`
	Points  []Point `json:"points"`
}

// Result is the outcome of one query.
type Result struct {
	Feature        string       `json:"feature"`
	DisplayName    string       `json:"displayName"`
	Rows           []int        `json:"-"`
	RowCount       int          `json:"rowCount"`
	OrderedPeriods []string     `json:"orderedPeriods"`
	Stats          stats.Block  `json:"stats"`
	Rule           *rule.Result `json:"rule,omitempty"`
	RuleText       string       `json:"ruleText,omitempty"`
	Series         []Series     `json:"series"`
}

// Evaluate runs one full pass (mask, filter, statistics, rule) over ds. A nil
// r skips rule evaluation. Empty ranks select the default percentile set.
func Evaluate(ds *dataset.Dataset, spec filter.Spec, feature string, r *rule.Rule, ranks []float64) (Result, error) {
	if !ds.HasFeature(feature) {
		return Result{}, errors.Wrapf(ErrUnknownFeature, "%q", feature)
	}

	rows := filter.Select(ds, spec)
	labels := make([]string, len(rows))
	for i, idx := range rows {
		labels[i] = ds.Row(idx).YearQuarter
	}
	periods, err := period.Distinct(labels)
	if err != nil {
		return Result{}, err
	}

	values := ds.Column(feature, rows)
	res := Result{
		Feature:        feature,
		DisplayName:    ds.DisplayName(feature),
		Rows:           rows,
		RowCount:       len(rows),
		OrderedPeriods: periods,
		Stats:          stats.Compute(values, ranks...),
		Series:         buildSeries(ds, rows, feature),
	}

	if r != nil {
		if err := r.Validate(); err != nil {
			return Result{}, err
		}
		ruleRes := r.Evaluate(values)
		res.Rule = &ruleRes
		res.RuleText = rule.Describe(feature, *r, ruleRes)
	}

	return res, nil
}

// buildSeries groups rows by company. Points are ordered by period key;
// labels were validated by the caller.
func buildSeries(ds *dataset.Dataset, rows []int, feature string) []Series {
	byCompany := make(map[string][]Point)
	for _, idx := range rows {
		row := ds.Row(idx)
		byCompany[row.Company] = append(byCompany[row.Company], Point{
			Period: row.YearQuarter,
			Value:  mathutil.Ptr(row.Ratio(feature)),
		})
	}

	companies := make([]string, 0, len(byCompany))
	for c := range byCompany {
		companies = append(companies, c)
	}
	sort.Strings(companies)

	out := make([]Series, 0, len(companies))
	for _, c := range companies {
		points := byCompany[c]
		sort.SliceStable(points, func(i, j int) bool {
			return period.MustSortKey(points[i].Period) < period.MustSortKey(points[j].Period)
		})
		out = append(out, Series{Company: c, Points: points})
	}
	return out
}

// View is one independent chart unit. Company, tier, year, quarter, feature
// and rule selections apply immediately; the date range is staged and only
// takes effect after ApplyDateRange.
type View struct {
	mu sync.Mutex

	spec      filter.Spec
	staged    *filter.DateRange
	committed bool
	feature   string
	rule      *rule.Rule
	ranks     []float64
}

// New returns a View for feature with no active predicates.
func New(feature string) *View {
	return &View{feature: feature}
}

// SetCompanies replaces the company selection.
func (v *View) SetCompanies(companies []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spec.Companies = append([]string(nil), companies...)
}

// SetTiers replaces the tier selection.
func (v *View) SetTiers(tiers []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spec.Tiers = append([]string(nil), tiers...)
}

// SetYears replaces the year selection.
func (v *View) SetYears(years []int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spec.Years = append([]int(nil), years...)
}

// SetQuarters replaces the quarter selection.
func (v *View) SetQuarters(quarters []string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spec.Quarters = append([]string(nil), quarters...)
}

// SetFeature selects the ratio column.
func (v *View) SetFeature(feature string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.feature = feature
}

// Feature returns the selected ratio column.
func (v *View) Feature() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.feature
}

// SetPercentiles sets the percentile ranks reported by Query.
func (v *View) SetPercentiles(ranks []float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ranks = append([]float64(nil), ranks...)
}

// SetRule validates and sets the threshold rule. Thresholds are fractions.
func (v *View) SetRule(r rule.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rule = &r
	return nil
}

// ClearRule removes the threshold rule.
func (v *View) ClearRule() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rule = nil
}

// Rule returns a copy of the current rule, or nil.
func (v *View) Rule() *rule.Rule {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.rule == nil {
		return nil
	}
	r := *v.rule
	return &r
}

// StageDateRange records the date widget values. The effective spec is not
// changed until ApplyDateRange.
func (v *View) StageDateRange(start, end time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.staged = &filter.DateRange{Start: start, End: end}
}

// Staged returns the staged date range, or nil.
func (v *View) Staged() *filter.DateRange {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.staged == nil {
		return nil
	}
	r := *v.staged
	return &r
}

// ApplyDateRange commits the staged range. It reports false when nothing is
// staged, leaving the effective spec unchanged.
func (v *View) ApplyDateRange() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.staged == nil {
		return false
	}
	r := *v.staged
	v.spec.DateRange = &r
	v.committed = true
	return true
}

// ClearDateRange removes both the staged and the committed date range.
func (v *View) ClearDateRange() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.staged = nil
	v.spec.DateRange = nil
	v.committed = false
}

// Committed reports whether a date range is currently committed.
func (v *View) Committed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.committed
}

// Spec returns a copy of the effective filter spec.
func (v *View) Spec() filter.Spec {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.spec.Clone()
}

// Query evaluates the view against ds.
func (v *View) Query(ds *dataset.Dataset) (Result, error) {
	v.mu.Lock()
	spec := v.spec.Clone()
	feature := v.feature
	var r *rule.Rule
	if v.rule != nil {
		cp := *v.rule
		r = &cp
	}
	ranks := append([]float64(nil), v.ranks...)
	v.mu.Unlock()

	return Evaluate(ds, spec, feature, r, ranks)
}

// Clone returns an independent deep copy of v.
func (v *View) Clone() *View {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := &View{
		spec:      v.spec.Clone(),
		committed: v.committed,
		feature:   v.feature,
		ranks:     append([]float64(nil), v.ranks...),
	}
	if v.staged != nil {
		s := *v.staged
		out.staged = &s
	}
	if v.rule != nil {
		r := *v.rule
		out.rule = &r
	}
	return out
}

// State is a serializable snapshot of a view.
type State struct {
	Feature     string            `json:"feature" yaml:"feature"`
	Filter      filter.Spec       `json:"filter" yaml:"filter"`
	Staged      *filter.DateRange `json:"stagedDateRange,omitempty" yaml:"stagedDateRange,omitempty"`
	Committed   bool              `json:"committed" yaml:"committed"`
	Rule        *rule.Rule        `json:"rule,omitempty" yaml:"rule,omitempty"`
	Percentiles []float64         `json:"percentiles,omitempty" yaml:"percentiles,omitempty,flow"`
}

// State returns a snapshot of the view's selections.
func (v *View) State() State {
	c := v.Clone()
	return State{
		Feature:     c.feature,
		Filter:      c.spec,
		Staged:      c.staged,
		Committed:   c.committed,
		Rule:        c.rule,
		Percentiles: c.ranks,
	}
}
