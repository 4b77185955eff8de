package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/render"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"
)

const (
	chartLine      = "line"
	chartHistogram = "histogram"
	chartBoxPlot   = "boxplot"
)

func chartCmd(a *app) *cobra.Command {
	var (
		f        filterFlags
		kind     string
		feature  string
		out      string
		bins     int
		widthCm  float64
		heightCm float64
	)
	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render a line, histogram or box plot chart to a PNG file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			switch kind {
			case chartLine, chartHistogram, chartBoxPlot:
			default:
				return errors.Newf("invalid chart kind %q: expected line, histogram or boxplot", kind)
			}
			spec, err := f.spec()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			if !ds.HasFeature(feature) {
				return errors.Wrapf(view.ErrUnknownFeature, "%q", feature)
			}
			if bins <= 0 {
				bins = a.conf.Statistics.HistogramBins
			}
			size := render.Size{
				Width:  vg.Length(widthCm) * vg.Centimeter,
				Height: vg.Length(heightCm) * vg.Centimeter,
			}

			file, err := os.Create(out)
			if err != nil {
				return errors.Wrapf(err, "failed to create %s", out)
			}
			defer func() { _ = file.Close() }()

			title := ds.DisplayName(feature)
			switch kind {
			case chartLine:
				var res view.Result
				res, err = view.Evaluate(ds, spec, feature, nil, nil)
				if err == nil {
					err = render.LineChart(file, title, res, size)
				}
			case chartHistogram:
				err = render.StackedHistogram(file, title+" distribution", ds, filter.Select(ds, spec), feature, bins, size)
			case chartBoxPlot:
				err = render.BoxPlot(file, title+" by company", ds, filter.Select(ds, spec), feature, size)
			}
			if err != nil {
				return err
			}

			a.logger.Info("chart written",
				zap.String("op", "main.chart"),
				zap.String("kind", kind),
				zap.String("path", out),
			)
			return file.Close()
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&kind, "kind", chartLine, "chart kind: line, histogram, boxplot")
	cmd.Flags().StringVar(&feature, "feature", "", "ratio column to plot")
	cmd.Flags().StringVar(&out, "out", "chart.png", "output PNG path")
	cmd.Flags().IntVar(&bins, "bins", 0, "histogram bin count (default from statistics.histogramBins)")
	cmd.Flags().Float64Var(&widthCm, "width", 0, "chart width in cm (0 selects the default)")
	cmd.Flags().Float64Var(&heightCm, "height", 0, "chart height in cm (0 selects the default)")
	_ = cmd.MarkFlagRequired("feature")
	return cmd
}
