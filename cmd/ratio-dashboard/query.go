package main

import (
	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/internal/dataset"
	"github.com/iwvelando/ratio-dashboard/internal/filter"
	"github.com/iwvelando/ratio-dashboard/internal/view"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/datetime"
	"github.com/iwvelando/ratio-dashboard/pkg/output"
	"github.com/iwvelando/ratio-dashboard/pkg/period"
	"github.com/iwvelando/ratio-dashboard/pkg/rule"
	"github.com/spf13/cobra"
)

// filterFlags are the selection flags shared by the query subcommands.
type filterFlags struct {
	companies []string
	tiers     []string
	years     []int
	quarters  []string
	from      string
	to        string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.companies, "company", nil, "company to include (repeatable)")
	cmd.Flags().StringSliceVar(&f.tiers, "tier", nil, "tier to include (repeatable)")
	cmd.Flags().IntSliceVar(&f.years, "year", nil, "year to include (repeatable)")
	cmd.Flags().StringSliceVar(&f.quarters, "quarter", nil, "quarter to include, e.g. q1 (repeatable)")
	cmd.Flags().StringVar(&f.from, "from", "", "first reporting date, "+constants.DateLayout)
	cmd.Flags().StringVar(&f.to, "to", "", "last reporting date, "+constants.DateLayout)
}

// spec builds the filter. The date range needs both --from and --to.
func (f *filterFlags) spec() (filter.Spec, error) {
	spec := filter.Spec{
		Companies: f.companies,
		Tiers:     f.tiers,
		Years:     f.years,
		Quarters:  f.quarters,
	}
	if f.from == "" && f.to == "" {
		return spec, nil
	}
	if f.from == "" || f.to == "" {
		return filter.Spec{}, errors.New("--from and --to must be given together")
	}
	start, err := datetime.ParseDay(f.from)
	if err != nil {
		return filter.Spec{}, errors.Wrap(err, "--from")
	}
	end, err := datetime.ParseDay(f.to)
	if err != nil {
		return filter.Spec{}, errors.Wrap(err, "--to")
	}
	dr, err := filter.NewDateRange(start, end)
	if err != nil {
		return filter.Spec{}, err
	}
	spec.DateRange = &dr
	return spec, nil
}

// buildRule parses an operator label and percent-unit thresholds. Between
// takes two values; every other operator takes one.
func buildRule(label string, values []float64) (*rule.Rule, error) {
	op, err := rule.ParseOperator(label)
	if err != nil {
		return nil, err
	}

	var threshold rule.Threshold
	switch {
	case op == rule.Between && len(values) == 2:
		threshold = rule.Range(values[0], values[1])
	case op == rule.Between:
		return nil, errors.Wrapf(rule.ErrInvalidThreshold, "between takes two --value flags, got %d", len(values))
	case len(values) == 1:
		threshold = rule.Single(values[0])
	default:
		return nil, errors.Wrapf(rule.ErrInvalidThreshold, "%s takes one --value flag, got %d", op, len(values))
	}

	r := rule.Rule{Operator: op, Threshold: threshold.FromPercent()}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func optionsCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "options",
		Short: "Print the option lists valid for the current selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := f.spec()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			output.PrettyOptions(cmd.OutOrStdout(), output.SelectorOptions(filter.Options(ds, spec)))
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func statsCmd(a *app) *cobra.Command {
	var (
		f           filterFlags
		feature     string
		percentiles []float64
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print descriptive statistics of a ratio for the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := f.spec()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			ranks := percentiles
			if len(ranks) == 0 {
				ranks = a.conf.Statistics.Percentiles
			}
			res, err := view.Evaluate(ds, spec, feature, nil, ranks)
			if err != nil {
				return err
			}

			if a.conf.Output.Format == constants.OutputFormatCSV {
				return output.CSVStats(cmd.OutOrStdout(), feature, res.Stats)
			}
			output.PrettyStats(cmd.OutOrStdout(), res.DisplayName, res.Stats)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&feature, "feature", "", "ratio column to summarize")
	cmd.Flags().Float64SliceVar(&percentiles, "percentile", nil, "percentile rank to report (repeatable)")
	_ = cmd.MarkFlagRequired("feature")
	return cmd
}

func ruleCmd(a *app) *cobra.Command {
	var (
		f       filterFlags
		feature string
		op      string
		values  []float64
	)
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Count the rows of the selection that satisfy a threshold rule",
		Long: `Count the rows of the selection that satisfy a threshold rule.

Thresholds are given in percent: --op greater --value 5 matches ratios above 0.05.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := buildRule(op, values)
			if err != nil {
				return err
			}
			spec, err := f.spec()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			res, err := view.Evaluate(ds, spec, feature, r, a.conf.Statistics.Percentiles)
			if err != nil {
				return err
			}
			output.PrettyRule(cmd.OutOrStdout(), res.RuleText)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&feature, "feature", "", "ratio column to test")
	cmd.Flags().StringVar(&op, "op", "", "operator: less, less_or_equal, equal, greater_or_equal, greater, between")
	cmd.Flags().Float64SliceVar(&values, "value", nil, "threshold in percent (twice for between)")
	_ = cmd.MarkFlagRequired("feature")
	_ = cmd.MarkFlagRequired("op")
	return cmd
}

func periodsCmd(a *app) *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "periods",
		Short: "Print the chronologically ordered periods of the selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			spec, err := f.spec()
			if err != nil {
				return err
			}
			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			periods, err := orderedPeriods(ds, filter.Select(ds, spec))
			if err != nil {
				return err
			}
			output.PrettyPeriods(cmd.OutOrStdout(), periods)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func orderedPeriods(ds *dataset.Dataset, rows []int) ([]string, error) {
	labels := make([]string, len(rows))
	for i, idx := range rows {
		labels[i] = ds.Row(idx).YearQuarter
	}
	return period.Distinct(labels)
}
