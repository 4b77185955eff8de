package filter

import (
	"testing"
	"time"

	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day0(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptrDay(s string) *time.Time {
	t := day0(s)
	return &t
}

func obs(company, tier string, year int, quarter, posisi string) dataset.Observation {
	o := dataset.Observation{
		Company:     company,
		Tier:        tier,
		Year:        year,
		YearValid:   year > 0,
		Quarter:     quarter,
		YearQuarter: "",
		Ratios:      map[string]float64{"npl_gross": 0.01},
	}
	if year > 0 {
		o.YearQuarter = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006") + "_" + quarter
	}
	if posisi != "" {
		o.Posisi = ptrDay(posisi)
	}
	return o
}

func testDataset() *dataset.Dataset {
	return dataset.New([]dataset.Observation{
		obs("co1", "tierA", 2023, "q4", "2023-12-31"), // 0
		obs("co1", "tierA", 2024, "q1", "2024-03-31"), // 1
		obs("co2", "tierB", 2024, "q1", "2024-03-31"), // 2
		obs("co2", "tierB", 2024, "q2", ""),           // 3
		obs("co3", "tierA", 0, "q2", "2024-06-30"),    // 4 non-numeric year
		obs("", "tierB", 2022, "q3", "2022-09-30"),    // 5 missing company
	}, nil)
}

func TestBuildMaskPassThrough(t *testing.T) {
	ds := testDataset()
	mask := BuildMask(ds, Spec{})
	assert.Equal(t, ds.Len(), mask.Count())

	mask = BuildMask(ds, Spec{Companies: []string{}, Tiers: []string{}, Years: []int{}, Quarters: []string{}})
	assert.Equal(t, ds.Len(), mask.Count(), "empty selections pass every row")
}

func TestBuildMaskPredicates(t *testing.T) {
	ds := testDataset()

	tests := []struct {
		name     string
		spec     Spec
		expected []int
	}{
		{name: "Company", spec: Spec{Companies: []string{"co1"}}, expected: []int{0, 1}},
		{name: "Tier", spec: Spec{Tiers: []string{"tierB"}}, expected: []int{2, 3, 5}},
		{name: "Year", spec: Spec{Years: []int{2024}}, expected: []int{1, 2, 3}},
		{name: "Quarter", spec: Spec{Quarters: []string{"q2"}}, expected: []int{3, 4}},
		{name: "Unknown company", spec: Spec{Companies: []string{"nobody"}}, expected: []int{}},
		{name: "Tier and year", spec: Spec{Tiers: []string{"tierA"}, Years: []int{2024}}, expected: []int{1}},
		{
			name:     "Date range inclusive",
			spec:     Spec{DateRange: &DateRange{Start: day0("2024-03-31"), End: day0("2024-06-30")}},
			expected: []int{1, 2, 4},
		},
		{
			name:     "Reversed date range is ignored",
			spec:     Spec{DateRange: &DateRange{Start: day0("2024-06-30"), End: day0("2024-01-01")}},
			expected: []int{0, 1, 2, 3, 4, 5},
		},
		{
			name: "Everything",
			spec: Spec{
				Companies: []string{"co1", "co2"},
				Tiers:     []string{"tierA", "tierB"},
				Years:     []int{2024},
				Quarters:  []string{"q1"},
				DateRange: &DateRange{Start: day0("2024-01-01"), End: day0("2024-12-31")},
			},
			expected: []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Select(ds, tt.spec))
		})
	}
}

func TestBuildMaskIsIntersection(t *testing.T) {
	ds := testDataset()
	companies := []string{"co1", "co2"}
	quarters := []string{"q1", "q2"}

	combined := BuildMask(ds, Spec{Companies: companies, Quarters: quarters})
	expected := CompanyMask(ds, companies).And(QuarterMask(ds, quarters))
	assert.Equal(t, expected, combined)
}

func TestDateMaskExcludesNullPosisi(t *testing.T) {
	ds := testDataset()
	mask := DateMask(ds, &DateRange{Start: day0("2000-01-01"), End: day0("2100-01-01")})
	require.Len(t, mask, ds.Len())
	assert.False(t, mask[3], "rows without posisi never match an active range")
	assert.Equal(t, 5, mask.Count())
	assert.Nil(t, DateMask(ds, nil))
}

func TestDateRangeIgnoresTimeOfDay(t *testing.T) {
	r := DateRange{Start: day0("2024-03-31"), End: day0("2024-03-31")}
	assert.True(t, r.Contains(time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day0("2024-04-01")))
}

func TestNewDateRange(t *testing.T) {
	r, err := NewDateRange(day0("2024-01-01"), day0("2024-03-31"))
	require.NoError(t, err)
	assert.Equal(t, day0("2024-03-31"), r.End)

	_, err = NewDateRange(day0("2024-03-31"), day0("2024-03-31"))
	assert.NoError(t, err, "a single day is a valid range")

	_, err = NewDateRange(day0("2024-03-31"), day0("2024-01-01"))
	assert.ErrorIs(t, err, ErrReversedRange)
}

func TestApplyDoesNotMutate(t *testing.T) {
	ds := testDataset()
	before := ds.Row(0).Company
	idx := Apply(ds, BuildMask(ds, Spec{Companies: []string{"co2"}}))
	assert.Equal(t, []int{2, 3}, idx)
	assert.Equal(t, 6, ds.Len())
	assert.Equal(t, before, ds.Row(0).Company)

	assert.Empty(t, Apply(ds, Mask{true}), "mismatched mask selects nothing")
}

func TestSpecClone(t *testing.T) {
	orig := Spec{Companies: []string{"co1"}, DateRange: &DateRange{Start: day0("2024-01-01"), End: day0("2024-02-01")}}
	clone := orig.Clone()
	clone.Companies[0] = "changed"
	clone.DateRange.Start = day0("1999-01-01")

	assert.Equal(t, "co1", orig.Companies[0])
	assert.Equal(t, day0("2024-01-01"), orig.DateRange.Start)
}

func TestValidCompanies(t *testing.T) {
	ds := dataset.New([]dataset.Observation{
		obs("co1", "tierA", 2024, "q1", ""),
		obs("co2", "tierB", 2024, "q1", ""),
	}, nil)
	assert.Equal(t, []string{"co1"}, ValidCompanies(ds, []string{"tierA"}))
	assert.Equal(t, []string{"co1", "co2"}, ValidCompanies(ds, nil))
	assert.Equal(t, []string{}, ValidCompanies(ds, []string{"tierZ"}))
}

func TestValidCompaniesExcludesEmpty(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []string{"co2"}, ValidCompanies(ds, []string{"tierB"}))
}

func TestValidYears(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []int{2022, 2023, 2024}, ValidYears(ds, nil, nil))
	assert.Equal(t, []int{2023, 2024}, ValidYears(ds, []string{"tierA"}, nil))
	assert.Equal(t, []int{2024}, ValidYears(ds, []string{"tierB"}, []string{"co2"}))
	assert.Equal(t, []int{}, ValidYears(ds, nil, []string{"co3"}), "non-numeric years are excluded")
}

func TestValidQuarters(t *testing.T) {
	ds := testDataset()
	assert.Equal(t, []string{"q1", "q2", "q3", "q4"}, ValidQuarters(ds, nil, nil, nil))
	assert.Equal(t, []string{"q1", "q2"}, ValidQuarters(ds, nil, []string{"co2"}, []int{2024}))
}

func TestOptions(t *testing.T) {
	ds := testDataset()
	set := Options(ds, Spec{Tiers: []string{"tierA"}})
	assert.Equal(t, []string{"tierA", "tierB"}, set.Tiers)
	assert.Equal(t, []string{"co1", "co3"}, set.Companies)
	assert.Equal(t, []int{2023, 2024}, set.Years)
	assert.Equal(t, []string{"q1", "q2", "q4"}, set.Quarters)
	assert.Equal(t, "2022-09-30", set.MinDate)
	assert.Equal(t, "2024-06-30", set.MaxDate)
}
