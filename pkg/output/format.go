// Package output provides utilities for formatting and displaying statistics,
// rule results and selector options.
package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
	"github.com/iwvelando/ratio-dashboard/pkg/stats"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotAvailable is printed for undefined statistics.
const NotAvailable = "N/A"

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))

// FormatPercent renders a fraction as a percentage with two decimals, or N/A.
func FormatPercent(v *float64) string {
	if v == nil || !mathutil.IsFinite(*v) {
		return NotAvailable
	}
	p := message.NewPrinter(language.English)
	return p.Sprintf("%.2f%%", mathutil.ToPercent(*v))
}

// PrettyStats outputs a human-readable statistics table for one column.
func PrettyStats(w io.Writer, title string, block stats.Block) {
	p := message.NewPrinter(language.English)
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("--- Statistics for %s ---", title)))
	_, _ = p.Fprintf(w, "Rows with a value: %d\n", block.Count)
	_, _ = fmt.Fprintf(w, "%-8s | %s\n", "Stat", "Value")
	_, _ = fmt.Fprintf(w, "%-8s | %s\n", "____", "_____")
	for _, s := range block.Labeled() {
		_, _ = fmt.Fprintf(w, "%-8s | %s\n", s.Label, FormatPercent(s.Value))
	}
}

// CSVStats outputs the statistics table in comma-separated value format.
// Values are fractions with full precision; undefined values are empty.
func CSVStats(w io.Writer, column string, block stats.Block) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"feature", "stat", "value"}); err != nil {
		return err
	}
	for _, s := range block.Labeled() {
		value := ""
		if s.Value != nil {
			value = strconv.FormatFloat(*s.Value, 'f', -1, 64)
		}
		if err := cw.Write([]string{column, s.Label, value}); err != nil {
			return err
		}
	}
	if err := cw.Write([]string{column, "Count", strconv.Itoa(block.Count)}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// PrettyRule outputs a rule description under a styled header.
func PrettyRule(w io.Writer, description string) {
	_, _ = fmt.Fprintln(w, headerStyle.Render("--- Rule ---"))
	_, _ = fmt.Fprintln(w, description)
}

// SelectorOptions holds the option lists shown for the dashboard selectors.
// MinDate and MaxDate are formatted days; an empty MinDate omits the range.
type SelectorOptions struct {
	Tiers     []string
	Companies []string
	Years     []int
	Quarters  []string
	MinDate   string
	MaxDate   string
}

// PrettyOptions outputs the dependent selector options.
func PrettyOptions(w io.Writer, options SelectorOptions) {
	years := make([]string, len(options.Years))
	for i, y := range options.Years {
		years[i] = strconv.Itoa(y)
	}

	rows := []struct {
		label  string
		values []string
	}{
		{label: "Tiers", values: options.Tiers},
		{label: "Companies", values: options.Companies},
		{label: "Years", values: years},
		{label: "Quarters", values: options.Quarters},
	}
	for _, r := range rows {
		_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%s (%d)", r.label, len(r.values))))
		if len(r.values) == 0 {
			_, _ = fmt.Fprintln(w, "  (none)")
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s\n", strings.Join(r.values, ", "))
	}
	if options.MinDate != "" {
		_, _ = fmt.Fprintln(w, headerStyle.Render("Reporting dates"))
		_, _ = fmt.Fprintf(w, "  %s to %s\n", options.MinDate, options.MaxDate)
	}
}

// PrettyPeriods outputs period labels in the given order, one per line.
func PrettyPeriods(w io.Writer, periods []string) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("--- Periods (%d) ---", len(periods))))
	for _, label := range periods {
		_, _ = fmt.Fprintln(w, label)
	}
}
