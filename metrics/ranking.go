package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// AUROC is the area under the ROC curve of score against binary truth.
// Tied scores share one cutoff, which credits them half. NaN unless both
// classes are present.
func AUROC(truth []bool, score []float64) float64 {
	if len(truth) != len(score) {
		return math.NaN()
	}
	var pos, neg int
	for i, t := range truth {
		if math.IsNaN(score[i]) {
			return math.NaN()
		}
		if t {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN()
	}
	y := append([]float64(nil), score...)
	classes := append([]bool(nil), truth...)
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}

// AveragePrecision summarises the precision-recall curve as the
// recall-weighted mean of precision at each distinct score threshold. Tied
// scores form a single threshold. NaN when there are no positives.
func AveragePrecision(truth []bool, score []float64) float64 {
	if len(truth) != len(score) {
		return math.NaN()
	}
	var pos int
	for _, t := range truth {
		if t {
			pos++
		}
	}
	if pos == 0 {
		return math.NaN()
	}

	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })

	var ap, prevRecall float64
	var tp, fp int
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && score[idx[j]] == score[idx[i]] {
			if truth[idx[j]] {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall := float64(tp) / float64(pos)
		precision := float64(tp) / float64(tp+fp)
		ap += (recall - prevRecall) * precision
		prevRecall = recall
		i = j
	}
	return ap
}

// nanMean averages the finite entries of v; NaN if there are none.
func nanMean(v []float64) float64 {
	var sum float64
	var n int
	for _, x := range v {
		if !math.IsNaN(x) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

// f1 from confusion counts; 0 when the label never appears on either side.
func f1(tp, fp, fn int) float64 {
	den := 2*tp + fp + fn
	if den == 0 {
		return 0
	}
	return 2 * float64(tp) / float64(den)
}
