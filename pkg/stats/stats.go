// Package stats computes the fixed battery of descriptive statistics shown
// for a ratio column: min, max, mean, median, sample standard deviation and a
// set of linearly interpolated percentiles.
//
// Missing values are represented as NaN. Every non-finite value is dropped
// before computation, so it never contributes to a statistic or to Count.
//
// An empty value set is not an error: Compute returns a Block whose fields
// are all nil so that a renderer can show "N/A". ComputeStrict is available
// for callers that prefer to fail instead.
package stats

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/iwvelando/ratio-dashboard/pkg/constants"
	"github.com/iwvelando/ratio-dashboard/pkg/mathutil"
)

// ErrEmpty is returned by ComputeStrict when no finite values remain.
var ErrEmpty = errors.New("no finite values to compute statistics over")

// Percentile is one requested rank (0-100) and its value.
type Percentile struct {
	Rank  float64  `json:"rank"`
	Value *float64 `json:"value"`
}

// Block holds the descriptive statistics of one column. Nil means undefined.
type Block struct {
	Count       int          `json:"count"`
	Min         *float64     `json:"min"`
	Max         *float64     `json:"max"`
	Mean        *float64     `json:"mean"`
	Median      *float64     `json:"median"`
	StdDev      *float64     `json:"stdDev"`
	Percentiles []Percentile `json:"percentiles"`
}

// Stat is a labeled statistic, in display order.
type Stat struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// Compute returns the statistics block for values. When no ranks are given
// constants.DefaultPercentileRanks is used.
func Compute(values []float64, ranks ...float64) Block {
	if len(ranks) == 0 {
		ranks = constants.DefaultPercentileRanks
	}
	ranks = normalizeRanks(ranks)

	sorted := FiniteValues(values)
	sort.Float64s(sorted)

	block := Block{
		Count:       len(sorted),
		Percentiles: make([]Percentile, 0, len(ranks)),
	}
	for _, rank := range ranks {
		p := Percentile{Rank: rank}
		if len(sorted) > 0 {
			p.Value = ptr(Quantile(sorted, rank))
		}
		block.Percentiles = append(block.Percentiles, p)
	}

	n := len(sorted)
	if n == 0 {
		return block
	}

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	block.Min = ptr(sorted[0])
	block.Max = ptr(sorted[n-1])
	block.Mean = ptr(mean)
	block.Median = ptr(Quantile(sorted, 50))

	if n >= 2 {
		var squares float64
		for _, v := range sorted {
			d := v - mean
			squares += d * d
		}
		block.StdDev = ptr(math.Sqrt(squares / float64(n-1)))
	}

	return block
}

// ComputeStrict is Compute but fails with ErrEmpty when no finite values remain.
func ComputeStrict(values []float64, ranks ...float64) (Block, error) {
	block := Compute(values, ranks...)
	if block.Count == 0 {
		return block, ErrEmpty
	}
	return block, nil
}

// Quantile returns the rank-th percentile (0-100) of an ascending sorted,
// non-empty slice using linear interpolation between the order statistics at
// floor and ceil of rank/100*(n-1).
func Quantile(sorted []float64, rank float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}

	rank = math.Max(0, math.Min(100, rank))
	pos := rank / 100 * float64(n-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*frac
}

// FiniteValues returns a new slice containing only the finite entries.
func FiniteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if mathutil.IsFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// Get returns the value stored for rank, if that rank was computed.
func (b Block) Get(rank float64) (*float64, bool) {
	for _, p := range b.Percentiles {
		if p.Rank == rank {
			return p.Value, true
		}
	}
	return nil, false
}

// Empty reports whether the block was computed over no values.
func (b Block) Empty() bool {
	return b.Count == 0
}

// Labeled returns the statistics in the order of the summary table:
// Min, lower percentiles, Mean, Median, upper percentiles, Max, Std Dev.
func (b Block) Labeled() []Stat {
	out := []Stat{{Label: "Min", Value: b.Min}}
	for _, p := range b.Percentiles {
		if p.Rank < 50 {
			out = append(out, Stat{Label: RankLabel(p.Rank), Value: p.Value})
		}
	}
	out = append(out, Stat{Label: "Mean", Value: b.Mean}, Stat{Label: "Median", Value: b.Median})
	for _, p := range b.Percentiles {
		if p.Rank > 50 {
			out = append(out, Stat{Label: RankLabel(p.Rank), Value: p.Value})
		}
	}
	// A requested 50th percentile duplicates the median and is not repeated.
	out = append(out, Stat{Label: "Max", Value: b.Max}, Stat{Label: "Std Dev", Value: b.StdDev})
	return out
}

// RankLabel names a percentile rank: quartiles get Q1/Q3, others P<rank>.
func RankLabel(rank float64) string {
	switch rank {
	case 25:
		return "Q1"
	case 75:
		return "Q3"
	}
	return fmt.Sprintf("P%s", strconv.FormatFloat(rank, 'f', -1, 64))
}

func normalizeRanks(ranks []float64) []float64 {
	seen := make(map[float64]struct{}, len(ranks))
	out := make([]float64, 0, len(ranks))
	for _, r := range ranks {
		if math.IsNaN(r) {
			continue
		}
		r = math.Max(0, math.Min(100, r))
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Float64s(out)
	return out
}

func ptr(v float64) *float64 {
	return &v
}
