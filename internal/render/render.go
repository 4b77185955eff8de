// Package render draws PNG charts for query results with gonum/plot.
package render

import (
	"fmt"
	"image/color"
	"io"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
	"github.com/iwvelando/ratio-dashboard/pkg/stats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	_ "gonum.org/v1/plot/vg/vgimg"
)

// Size is the rendered chart size.
type Size struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultSize is used when a zero Size is passed.
var DefaultSize = Size{
	Width:  constants.DefaultChartWidthCm * vg.Centimeter,
	Height: constants.DefaultChartHeightCm * vg.Centimeter,
}

func (s Size) orDefault() Size {
	if s.Width <= 0 || s.Height <= 0 {
		return DefaultSize
	}
	return s
}

// LineChart draws one line per company over the result's ordered periods.
// Missing values break a company's line rather than being interpolated.
func LineChart(w io.Writer, title string, res view.Result, size Size) error {
	p := newPlot(title, "Period", res.DisplayName+" (%)")

	position := make(map[string]float64, len(res.OrderedPeriods))
	for i, label := range res.OrderedPeriods {
		position[label] = float64(i)
	}

	for i, series := range res.Series {
		c := plotutil.Color(i)
		var legend plot.Thumbnailer
		for _, segment := range segments(series.Points, position) {
			line, points, err := plotter.NewLinePoints(segment)
			if err != nil {
				return errors.Wrapf(err, "failed to build line for %s", series.Company)
			}
			line.Color = c
			line.Width = vg.Points(1.5)
			points.GlyphStyle.Color = c
			points.GlyphStyle.Shape = draw.CircleGlyph{}
			points.GlyphStyle.Radius = vg.Points(2)
			p.Add(line, points)
			legend = line
		}
		if legend != nil {
			p.Legend.Add(series.Company, legend)
		}
	}

	if len(res.OrderedPeriods) > 0 {
		p.NominalX(res.OrderedPeriods...)
	}
	p.X.Tick.Label.Rotation = 0.6
	p.X.Tick.Label.XAlign = draw.XRight
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	return write(w, p, size)
}

// segments splits a series into runs of consecutive non-missing points in
// percent units.
func segments(points []view.Point, position map[string]float64) []plotter.XYs {
	var out []plotter.XYs
	var current plotter.XYs
	for _, pt := range points {
		x, ok := position[pt.Period]
		if !ok || pt.Value == nil {
			if len(current) > 0 {
				out = append(out, current)
				current = nil
			}
			continue
		}
		current = append(current, plotter.XY{X: x, Y: mathutil.ToPercent(*pt.Value)})
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// StackedHistogram draws per-company histograms stacked on shared bins, with
// Mean, Median, Q1 and Q3 of the whole selection marked as vertical lines.
func StackedHistogram(w io.Writer, title string, ds *dataset.Dataset, rows []int, column string, bins int, size Size) error {
	if bins <= 0 {
		bins = constants.DefaultHistogramBins
	}
	p := newPlot(title, ds.DisplayName(column)+" (%)", "Count")

	all := ds.Column(column, rows)
	edges := stats.Edges(all, bins)
	if edges == nil {
		return write(w, p, size)
	}

	groups := groupByCompany(ds, rows, column)
	var below *plotter.BarChart
	maxCount := 0.0
	totals := make([]float64, bins)
	for i, g := range groups {
		counts := stats.HistogramWithEdges(g.values, edges)
		values := make(plotter.Values, len(counts))
		for j, b := range counts {
			values[j] = float64(b.Count)
			totals[j] += float64(b.Count)
		}
		bar, err := plotter.NewBarChart(values, vg.Points(8))
		if err != nil {
			return errors.Wrapf(err, "failed to build histogram for %s", g.company)
		}
		bar.Color = plotutil.Color(i)
		bar.LineStyle.Width = vg.Length(0)
		if below != nil {
			bar.StackOn(below)
		}
		below = bar
		p.Add(bar)
		p.Legend.Add(g.company, bar)
	}
	for _, t := range totals {
		if t > maxCount {
			maxCount = t
		}
	}

	labels := make([]string, bins)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.2f", mathutil.ToPercent((edges[i]+edges[i+1])/2))
	}
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = draw.XRight

	block := stats.Compute(all, 25, 75)
	q1, _ := block.Get(25)
	q3, _ := block.Get(75)
	markers := []struct {
		name  string
		value *float64
		color color.Color
	}{
		{name: "Mean", value: block.Mean, color: color.RGBA{R: 200, A: 255}},
		{name: "Median", value: block.Median, color: color.RGBA{G: 140, A: 255}},
		{name: "Q1", value: q1, color: color.RGBA{B: 200, A: 255}},
		{name: "Q3", value: q3, color: color.RGBA{R: 140, B: 140, A: 255}},
	}
	width := (edges[len(edges)-1] - edges[0]) / float64(bins)
	for _, m := range markers {
		if m.value == nil {
			continue
		}
		// bar i is centred on x=i
		x := (*m.value-edges[0])/width - 0.5
		line, err := plotter.NewLine(plotter.XYs{{X: x, Y: 0}, {X: x, Y: maxCount}})
		if err != nil {
			return errors.Wrapf(err, "failed to build %s marker", m.name)
		}
		line.Color = m.color
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s %.2f%%", m.name, mathutil.ToPercent(*m.value)), line)
	}
	p.Legend.Top = true

	return write(w, p, size)
}

// BoxPlot draws one horizontal box per company in sorted company order.
// Companies without any finite value are omitted.
func BoxPlot(w io.Writer, title string, ds *dataset.Dataset, rows []int, column string, size Size) error {
	p := newPlot(title, ds.DisplayName(column)+" (%)", "")

	var names []string
	for _, g := range groupByCompany(ds, rows, column) {
		finite := stats.FiniteValues(g.values)
		if len(finite) == 0 {
			continue
		}
		values := make(plotter.Values, len(finite))
		for i, v := range finite {
			values[i] = mathutil.ToPercent(v)
		}
		box, err := plotter.NewBoxPlot(vg.Points(14), float64(len(names)), values)
		if err != nil {
			return errors.Wrapf(err, "failed to build boxplot for %s", g.company)
		}
		box.Horizontal = true
		box.FillColor = plotutil.Color(len(names))
		p.Add(box)
		names = append(names, g.company)
	}
	if len(names) > 0 {
		p.NominalY(names...)
	}
	p.Add(plotter.NewGrid())

	return write(w, p, size)
}

type companyValues struct {
	company string
	values  []float64
}

func groupByCompany(ds *dataset.Dataset, rows []int, column string) []companyValues {
	byCompany := make(map[string][]float64)
	for _, idx := range rows {
		row := ds.Row(idx)
		byCompany[row.Company] = append(byCompany[row.Company], row.Ratio(column))
	}
	out := make([]companyValues, 0, len(byCompany))
	for c, v := range byCompany {
		out = append(out, companyValues{company: c, values: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].company < out[j].company })
	return out
}

func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.Title.TextStyle.Font.Size = vg.Points(14)
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

func write(w io.Writer, p *plot.Plot, size Size) error {
	size = size.orDefault()
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return errors.Wrap(err, "failed to create png writer")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write png")
	}
	return nil
}
