package stats

import (
	"math"

	"github.com/iwvelando/ratio-dashboard/pkg/constants"
)

// Bin is one equal-width histogram bucket, closed on the left. The last bin
// is also closed on the right so that the maximum is counted.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Edges returns bins+1 equal-width edges spanning the finite values, or nil
// when there are none. A degenerate range is widened by half a unit.
func Edges(values []float64, bins int) []float64 {
	if bins <= 0 {
		bins = constants.DefaultHistogramBins
	}
	finite := FiniteValues(values)
	if len(finite) == 0 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range finite {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	edges := make([]float64, bins+1)
	for i := range edges {
		edges[i] = lo + width*float64(i)
	}
	edges[bins] = hi
	return edges
}

// Histogram counts the finite values into bins equal-width buckets.
func Histogram(values []float64, bins int) []Bin {
	return HistogramWithEdges(values, Edges(values, bins))
}

// HistogramWithEdges counts finite values into the buckets defined by edges.
// Values outside the edges are ignored. Sharing edges across groups lets
// per-company histograms stack on the same buckets.
func HistogramWithEdges(values []float64, edges []float64) []Bin {
	if len(edges) < 2 {
		return nil
	}
	out := make([]Bin, len(edges)-1)
	for i := range out {
		out[i] = Bin{Low: edges[i], High: edges[i+1]}
	}

	last := len(out) - 1
	for _, v := range FiniteValues(values) {
		if v < edges[0] || v > edges[len(edges)-1] {
			continue
		}
		idx := last
		for i := range out {
			if v < out[i].High {
				idx = i
				break
			}
		}
		out[idx].Count++
	}
	return out
}
