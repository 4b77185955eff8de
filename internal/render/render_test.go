package render

import (
	"bytes"
	"math"
	"testing"

	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func testDataset() *dataset.Dataset {
	obs := func(company, yq, quarter string, year int, v float64) dataset.Observation {
		return dataset.Observation{
			Company:     company,
			Tier:        "KBMI 1",
			Year:        year,
			YearValid:   true,
			Quarter:     quarter,
			YearQuarter: yq,
			Ratios:      map[string]float64{"npl_gross": v},
		}
	}
	return dataset.New([]dataset.Observation{
		obs("Bank A", "2023_q4", "q4", 2023, 0.021),
		obs("Bank A", "2024_q1", "q1", 2024, 0.024),
		obs("Bank A", "2024_q2", "q2", 2024, math.NaN()),
		obs("Bank A", "2024_q3", "q3", 2024, 0.026),
		obs("Bank B", "2023_q4", "q4", 2023, 0.031),
		obs("Bank B", "2024_q1", "q1", 2024, 0.029),
		obs("Bank C", "2024_q1", "q1", 2024, math.NaN()),
	}, []dataset.Feature{{Column: "npl_gross", DisplayName: "NPL Gross"}})
}

func TestLineChart(t *testing.T) {
	ds := testDataset()
	res, err := view.Evaluate(ds, filter.Spec{}, "npl_gross", nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, LineChart(&buf, "NPL Gross", res, Size{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestLineChartEmpty(t *testing.T) {
	ds := testDataset()
	res, err := view.Evaluate(ds, filter.Spec{Companies: []string{"nobody"}}, "npl_gross", nil, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, LineChart(&buf, "empty", res, DefaultSize))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestSegments(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	position := map[string]float64{"2024_q1": 0, "2024_q2": 1, "2024_q3": 2, "2024_q4": 3}
	got := segments([]view.Point{
		{Period: "2024_q1", Value: v(0.01)},
		{Period: "2024_q2", Value: nil},
		{Period: "2024_q3", Value: v(0.02)},
		{Period: "2024_q4", Value: v(0.03)},
	}, position)

	require.Len(t, got, 2)
	assert.Len(t, got[0], 1)
	assert.Len(t, got[1], 2)
	assert.InDelta(t, 1.0, got[0][0].Y, 1e-12, "values are plotted in percent")
	assert.Equal(t, 3.0, got[1][1].X)
}

func TestStackedHistogram(t *testing.T) {
	ds := testDataset()
	var buf bytes.Buffer
	require.NoError(t, StackedHistogram(&buf, "NPL distribution", ds, filter.Select(ds, filter.Spec{}), "npl_gross", 0, Size{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))

	buf.Reset()
	require.NoError(t, StackedHistogram(&buf, "nothing", ds, []int{}, "npl_gross", 5, Size{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestBoxPlot(t *testing.T) {
	ds := testDataset()
	var buf bytes.Buffer
	require.NoError(t, BoxPlot(&buf, "NPL by bank", ds, filter.Select(ds, filter.Spec{}), "npl_gross", Size{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
}

func TestGroupByCompany(t *testing.T) {
	ds := testDataset()
	groups := groupByCompany(ds, []int{4, 0, 6, 1}, "npl_gross")
	require.Len(t, groups, 3)
	assert.Equal(t, "Bank A", groups[0].company)
	assert.Len(t, groups[0].values, 2)
	assert.Equal(t, "Bank C", groups[2].company)
}
