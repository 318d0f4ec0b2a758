package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Classification and multilabel metric names.
const (
	Accuracy   = "accuracy"
	MacroF1    = "macro_f1"
	AUROCKey   = "auroc"
	AUPRCKey   = "auprc"
	MacroAUROC = "macro_auroc"
	MacroAUPRC = "macro_auprc"
	MicroAUROC = "micro_auroc"
	MicroAUPRC = "micro_auprc"
)

// DefaultThreshold turns multilabel probabilities into hard labels.
const DefaultThreshold = 0.5

// Classification scores class probabilities (rows are samples, columns are
// classes) against integer class labels. Predictions are the arg-max
// class. With two classes auroc and auprc score column 1; with more they
// are one-vs-rest macro averages over the classes where they are defined.
func Classification(labels []int, probs mat.Matrix) Set {
	n, k := probs.Dims()
	if n == 0 || n != len(labels) {
		return Set{Accuracy: math.NaN(), MacroF1: math.NaN(), AUROCKey: math.NaN(), AUPRCKey: math.NaN()}
	}

	pred := make([]int, n)
	var correct int
	for i := 0; i < n; i++ {
		best := 0
		for c := 1; c < k; c++ {
			if probs.At(i, c) > probs.At(i, best) {
				best = c
			}
		}
		pred[i] = best
		if best == labels[i] {
			correct++
		}
	}

	out := Set{
		Accuracy: float64(correct) / float64(n),
		MacroF1:  macroF1(labels, pred),
	}

	col := make([]float64, n)
	truth := make([]bool, n)
	if k == 2 {
		for i := 0; i < n; i++ {
			col[i] = probs.At(i, 1)
			truth[i] = labels[i] == 1
		}
		out[AUROCKey] = AUROC(truth, col)
		out[AUPRCKey] = AveragePrecision(truth, col)
		return out
	}

	aurocs := make([]float64, k)
	auprcs := make([]float64, k)
	for c := 0; c < k; c++ {
		for i := 0; i < n; i++ {
			col[i] = probs.At(i, c)
			truth[i] = labels[i] == c
		}
		aurocs[c] = AUROC(truth, col)
		auprcs[c] = AveragePrecision(truth, col)
	}
	out[AUROCKey] = nanMean(aurocs)
	out[AUPRCKey] = nanMean(auprcs)
	return out
}

// macroF1 averages per-class F1 over every label seen in either truth or
// prediction, summing in ascending label order.
func macroF1(truth, pred []int) float64 {
	type counts struct{ tp, fp, fn int }
	per := make(map[int]*counts)
	get := func(c int) *counts {
		if per[c] == nil {
			per[c] = &counts{}
		}
		return per[c]
	}
	for i := range truth {
		if truth[i] == pred[i] {
			get(truth[i]).tp++
			continue
		}
		get(truth[i]).fn++
		get(pred[i]).fp++
	}
	if len(per) == 0 {
		return math.NaN()
	}
	classes := make([]int, 0, len(per))
	for c := range per {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	var sum float64
	for _, c := range classes {
		k := per[c]
		sum += f1(k.tp, k.fp, k.fn)
	}
	return sum / float64(len(per))
}

// Label holds the per-label scores of a multilabel evaluation.
type Label struct {
	AUROC float64
	AUPRC float64
	F1    float64
}

// Multilabel scores independent per-label probabilities against a 0/1
// indicator matrix. Hard labels for macro_f1 are probs >= threshold.
func Multilabel(y, probs mat.Matrix, threshold float64) (Set, []Label) {
	n, k := y.Dims()
	pn, pk := probs.Dims()
	if n == 0 || n != pn || k != pk {
		return Set{
			MacroAUROC: math.NaN(), MacroAUPRC: math.NaN(),
			MicroAUROC: math.NaN(), MicroAUPRC: math.NaN(), MacroF1: math.NaN(),
		}, nil
	}

	labels := make([]Label, k)
	aurocs := make([]float64, k)
	auprcs := make([]float64, k)
	var sumF1 float64

	flatTruth := make([]bool, 0, n*k)
	flatScore := make([]float64, 0, n*k)
	truth := make([]bool, n)
	score := make([]float64, n)
	for j := 0; j < k; j++ {
		var tp, fp, fn int
		for i := 0; i < n; i++ {
			truth[i] = y.At(i, j) >= 0.5
			score[i] = probs.At(i, j)
			hit := score[i] >= threshold
			switch {
			case hit && truth[i]:
				tp++
			case hit:
				fp++
			case truth[i]:
				fn++
			}
		}
		flatTruth = append(flatTruth, truth...)
		flatScore = append(flatScore, score...)

		labels[j] = Label{
			AUROC: AUROC(truth, score),
			AUPRC: AveragePrecision(truth, score),
			F1:    f1(tp, fp, fn),
		}
		aurocs[j] = labels[j].AUROC
		auprcs[j] = labels[j].AUPRC
		sumF1 += labels[j].F1
	}

	return Set{
		MacroAUROC: nanMean(aurocs),
		MacroAUPRC: nanMean(auprcs),
		MicroAUROC: AUROC(flatTruth, flatScore),
		MicroAUPRC: AveragePrecision(flatTruth, flatScore),
		MacroF1:    sumF1 / float64(k),
	}, labels
}
