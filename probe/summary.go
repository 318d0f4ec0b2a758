package probe

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
)

// DefaultCIMultiplier gives a 95% normal-approximation interval.
const DefaultCIMultiplier = 1.96

// Summary aggregates one metric across seeds. Std is the population
// standard deviation and CI the half-width multiplier·Std/√N.
type Summary struct {
	Mean float64
	Std  float64
	CI   float64
	N    int
}

// String formats the summary as "mean ± ci".
func (s Summary) String() string {
	return fmt.Sprintf("%v ± %v", s.Mean, s.CI)
}

// Summarize aggregates every metric key found in results. A metric that is
// NaN for any seed summarises to NaN.
func Summarize(results []Result, ciMultiplier float64) map[string]Summary {
	values := make(map[string]stats.Float64Data)
	for _, r := range results {
		for k, v := range r.Metrics {
			values[k] = append(values[k], v)
		}
	}

	out := make(map[string]Summary, len(values))
	for k, v := range values {
		mean, err := stats.Mean(v)
		if err != nil {
			continue
		}
		std, err := stats.StandardDeviationPopulation(v)
		if err != nil {
			continue
		}
		out[k] = Summary{
			Mean: mean,
			Std:  std,
			CI:   ciMultiplier * std / math.Sqrt(float64(len(v))),
			N:    len(v),
		}
	}
	return out
}

// SummaryKeys returns the metric names of s in sorted order.
func SummaryKeys(s map[string]Summary) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
