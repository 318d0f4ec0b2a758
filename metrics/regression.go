// Package metrics scores probe predictions against held-out targets.
// Undefined values (a single class in the slice, zero variance) are NaN
// rather than errors, so the remaining metrics of a run stay usable.
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Set maps a metric name to its value.
type Set map[string]float64

// Prefixed returns a copy of s with every key written as "<prefix>_<key>".
func (s Set) Prefixed(prefix string) Set {
	out := make(Set, len(s))
	for k, v := range s {
		out[prefix+"_"+k] = v
	}
	return out
}

// Merge copies every entry of o into s.
func (s Set) Merge(o Set) {
	for k, v := range o {
		s[k] = v
	}
}

// Regression metric names.
const (
	MSE      = "mse"
	Pearson  = "pearson"
	Spearman = "spearman"
)

// Regression returns mse, pearson and spearman for predictions against y.
func Regression(y, pred []float64) Set {
	return Set{
		MSE:      MeanSquaredError(y, pred),
		Pearson:  PearsonR(y, pred),
		Spearman: SpearmanR(y, pred),
	}
}

// ---------------------- Error ----------------------

// MeanSquaredError of pred against y. NaN when empty or misaligned.
func MeanSquaredError(y, pred []float64) float64 {
	n := len(y)
	if n == 0 || n != len(pred) {
		return math.NaN()
	}
	var sum float64
	for i := range y {
		d := pred[i] - y[i]
		sum += d * d
	}
	return sum / float64(n)
}

// ---------------------- Correlation ----------------------

// PearsonR is the Pearson correlation of x and y. NaN when fewer than two
// points or either side is constant.
func PearsonR(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) || constant(x) || constant(y) {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

// SpearmanR is the Pearson correlation of average ranks.
func SpearmanR(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return math.NaN()
	}
	return PearsonR(rankify(x), rankify(y))
}

func constant(v []float64) bool {
	for _, x := range v[1:] {
		if x != v[0] {
			return false
		}
	}
	return true
}

// rankify returns the 1-based rank of each value; a run of equal values
// shares the mean of the positions it spans.
func rankify(vals []float64) []float64 {
	n := len(vals)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i + 1
		for j < n && vals[idx[j]] == vals[idx[i]] {
			j++
		}
		// positions i..j-1 hold equal values
		rank := 0.5*float64(i+j-1) + 1.0
		for k := i; k < j; k++ {
			ranks[idx[k]] = rank
		}
		i = j
	}
	return ranks
}
