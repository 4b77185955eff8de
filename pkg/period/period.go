// Package period converts quarterly period labels such as "2024_q1" into a
// totally ordered sort key.
package period

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// QuartersPerYear is the number of quarters in a fiscal year.
const QuartersPerYear = 4

// ErrFormat is the sentinel matched by every *FormatError.
var ErrFormat = errors.New("malformed period label")

// FormatError reports a period label that does not match <year>_q<quarter>.
type FormatError struct {
	Label  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed period label %q: %s", e.Label, e.Reason)
}

// Unwrap lets errors.Is(err, ErrFormat) match.
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

// SortKey returns year*4 + quarter for a label of the form "<year>_q<quarter>".
func SortKey(label string) (int, error) {
	year, quarter, err := Parse(label)
	if err != nil {
		return 0, err
	}
	return year*QuartersPerYear + quarter, nil
}

// Parse splits a period label into its year and quarter.
func Parse(label string) (int, int, error) {
	trimmed := strings.TrimSpace(label)
	parts := strings.Split(trimmed, "_q")
	if len(parts) != 2 {
		return 0, 0, &FormatError{Label: label, Reason: "expected exactly one \"_q\" separator"}
	}

	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 0 {
		return 0, 0, &FormatError{Label: label, Reason: "year is not a non-negative integer"}
	}

	if len(parts[1]) != 1 {
		return 0, 0, &FormatError{Label: label, Reason: "quarter must be a single digit"}
	}
	quarter := int(parts[1][0] - '0')
	if quarter < 1 || quarter > QuartersPerYear {
		return 0, 0, &FormatError{Label: label, Reason: "quarter must be between 1 and 4"}
	}

	return year, quarter, nil
}

// MustSortKey is SortKey that panics on error.
// This is intended for use in tests where the label is known to be valid.
func MustSortKey(label string) int {
	key, err := SortKey(label)
	if err != nil {
		panic(err)
	}
	return key
}

// Label formats a year and quarter as a period label.
func Label(year, quarter int) string {
	return fmt.Sprintf("%d_q%d", year, quarter)
}

// Sort orders labels chronologically in place. The slice is left untouched if
// any label is malformed.
func Sort(labels []string) error {
	keys := make(map[string]int, len(labels))
	for _, label := range labels {
		if _, seen := keys[label]; seen {
			continue
		}
		key, err := SortKey(label)
		if err != nil {
			return err
		}
		keys[label] = key
	}

	sort.SliceStable(labels, func(i, j int) bool {
		return keys[labels[i]] < keys[labels[j]]
	})
	return nil
}

// Distinct returns the distinct labels in chronological order.
func Distinct(labels []string) ([]string, error) {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	if err := Sort(out); err != nil {
		return nil, err
	}
	return out, nil
}
