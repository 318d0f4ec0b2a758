package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestRegression_Scenario(t *testing.T) {
	y := []float64{1.0, 2.0, 3.0, 4.0}
	pred := []float64{1.1, 1.9, 3.2, 3.8}

	m := Regression(y, pred)
	assert.InDelta(t, 0.025, m[MSE], 1e-12)
	assert.InDelta(t, 4.7/math.Sqrt(22.5), m[Pearson], 1e-12)
	assert.InDelta(t, 0.997, m[Pearson], 0.01)
	assert.InDelta(t, 1.0, m[Spearman], 1e-12)
}

func TestRegression_Degenerate(t *testing.T) {
	m := Regression([]float64{1, 2, 3}, []float64{5, 5, 5})
	assert.InDelta(t, (16+9+4)/3.0, m[MSE], 1e-12)
	assert.True(t, math.IsNaN(m[Pearson]))
	assert.True(t, math.IsNaN(m[Spearman]))

	m = Regression(nil, nil)
	assert.True(t, math.IsNaN(m[MSE]))
	assert.True(t, math.IsNaN(m[Pearson]))
}

func TestRankify(t *testing.T) {
	assert.Equal(t, []float64{2.5, 1, 2.5, 4}, rankify([]float64{3, 1, 3, 7}))
}

func TestSpearmanIsRankBased(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{1, 4, 9, 16, 1000}
	assert.InDelta(t, 1.0, SpearmanR(x, y), 1e-12)
	assert.Less(t, PearsonR(x, y), 0.9)
}

func TestAUROC(t *testing.T) {
	tests := []struct {
		name  string
		truth []bool
		score []float64
		want  float64
	}{
		{"perfect", []bool{false, false, true, true}, []float64{0.1, 0.2, 0.8, 0.9}, 1},
		{"inverted", []bool{true, true, false, false}, []float64{0.1, 0.2, 0.8, 0.9}, 0},
		{"one swap", []bool{false, true, false, true}, []float64{0.1, 0.35, 0.4, 0.8}, 0.75},
		{"all tied", []bool{false, true, false, true}, []float64{0.5, 0.5, 0.5, 0.5}, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AUROC(tt.truth, tt.score), 1e-12)
		})
	}
	assert.True(t, math.IsNaN(AUROC([]bool{true, true}, []float64{0.1, 0.2})))
	assert.True(t, math.IsNaN(AUROC([]bool{false}, []float64{0.1})))
}

func TestAveragePrecision(t *testing.T) {
	// Ranked: 0.8(+) 0.4(-) 0.35(+) 0.1(-)
	// AP = 0.5*1 + 0.5*(2/3)
	got := AveragePrecision([]bool{false, true, false, true}, []float64{0.1, 0.35, 0.4, 0.8})
	assert.InDelta(t, 0.5+1.0/3, got, 1e-12)

	assert.InDelta(t, 1.0, AveragePrecision([]bool{true, false}, []float64{0.9, 0.1}), 1e-12)
	// Ties collapse to one threshold.
	assert.InDelta(t, 0.5, AveragePrecision([]bool{true, false}, []float64{0.5, 0.5}), 1e-12)
	assert.True(t, math.IsNaN(AveragePrecision([]bool{false, false}, []float64{0.1, 0.2})))
}

func TestClassification_Binary(t *testing.T) {
	labels := []int{0, 0, 1, 1}
	probs := mat.NewDense(4, 2, []float64{
		0.9, 0.1,
		0.4, 0.6,
		0.3, 0.7,
		0.2, 0.8,
	})
	m := Classification(labels, probs)
	assert.InDelta(t, 0.75, m[Accuracy], 1e-12)
	// class 0: tp1 fn1 fp0 -> 2/3; class 1: tp2 fp1 -> 4/5
	assert.InDelta(t, (2.0/3+0.8)/2, m[MacroF1], 1e-12)
	assert.InDelta(t, 1.0, m[AUROCKey], 1e-12)
	assert.InDelta(t, 1.0, m[AUPRCKey], 1e-12)
}

func TestClassification_SingleClassSlice(t *testing.T) {
	probs := mat.NewDense(3, 2, []float64{0.8, 0.2, 0.6, 0.4, 0.3, 0.7})
	m := Classification([]int{0, 0, 0}, probs)
	assert.InDelta(t, 2.0/3, m[Accuracy], 1e-12)
	assert.True(t, math.IsNaN(m[AUROCKey]))
	assert.True(t, math.IsNaN(m[AUPRCKey]))
}

func TestClassification_Multiclass(t *testing.T) {
	labels := []int{0, 1, 2, 2}
	probs := mat.NewDense(4, 3, []float64{
		0.7, 0.2, 0.1,
		0.1, 0.8, 0.1,
		0.1, 0.1, 0.8,
		0.2, 0.2, 0.6,
	})
	m := Classification(labels, probs)
	assert.InDelta(t, 1.0, m[Accuracy], 1e-12)
	assert.InDelta(t, 1.0, m[MacroF1], 1e-12)
	assert.InDelta(t, 1.0, m[AUROCKey], 1e-12)

	// Class 1 absent from the slice: it is skipped, not NaN-poisoning.
	m = Classification([]int{0, 2}, mat.NewDense(2, 3, []float64{0.6, 0.3, 0.1, 0.1, 0.3, 0.6}))
	assert.InDelta(t, 1.0, m[AUROCKey], 1e-12)
}

func TestMultilabel(t *testing.T) {
	y := mat.NewDense(4, 2, []float64{
		1, 0,
		0, 0,
		1, 1,
		0, 0,
	})
	probs := mat.NewDense(4, 2, []float64{
		0.9, 0.4,
		0.2, 0.1,
		0.7, 0.6,
		0.6, 0.2,
	})
	m, labels := Multilabel(y, probs, DefaultThreshold)
	require.Len(t, labels, 2)

	assert.InDelta(t, 1.0, labels[0].AUROC, 1e-12)
	assert.InDelta(t, 1.0, labels[1].AUROC, 1e-12)
	// label 0: tp2 fp1 -> 0.8; label 1: tp1 -> 1
	assert.InDelta(t, 0.8, labels[0].F1, 1e-12)
	assert.InDelta(t, 1.0, labels[1].F1, 1e-12)
	assert.InDelta(t, 0.9, m[MacroF1], 1e-12)
	assert.InDelta(t, 1.0, m[MacroAUROC], 1e-12)
	assert.False(t, math.IsNaN(m[MicroAUROC]))
	assert.False(t, math.IsNaN(m[MicroAUPRC]))
}

func TestMultilabel_UndefinedLabel(t *testing.T) {
	y := mat.NewDense(3, 2, []float64{1, 0, 0, 0, 1, 0})
	probs := mat.NewDense(3, 2, []float64{0.8, 0.1, 0.3, 0.2, 0.6, 0.3})
	m, labels := Multilabel(y, probs, DefaultThreshold)

	assert.True(t, math.IsNaN(labels[1].AUROC))
	assert.True(t, math.IsNaN(labels[1].AUPRC))
	assert.InDelta(t, labels[0].AUROC, m[MacroAUROC], 1e-12)
}

func TestSetPrefixed(t *testing.T) {
	s := Set{MSE: 1, Pearson: 0.5}
	p := s.Prefixed("test")
	assert.Equal(t, Set{"test_mse": 1, "test_pearson": 0.5}, p)

	p.Merge(Set{"val_mse": 2})
	assert.Len(t, p, 3)
	assert.Len(t, s, 2)
}

func TestAUROC_TiedScoresAcrossClasses(t *testing.T) {
	// Unsorted input with a tie between a positive and a negative.
	truth := []bool{true, false, true, true, false, true}
	score := []float64{8, 0, 6, 7.5, 6, 3}
	// Pairs (pos, neg): 8 beats both, 7.5 both, 6 ties 6 and beats 0,
	// 3 beats 0 and loses to 6 -> (2+2+1.5+1)/8.
	assert.InDelta(t, 6.5/8, AUROC(truth, score), 1e-12)
	assert.Equal(t, []float64{8, 0, 6, 7.5, 6, 3}, score)
	assert.True(t, math.IsNaN(AUROC([]bool{true, false}, []float64{math.NaN(), 0.1})))
}

func TestMacroF1_StableBits(t *testing.T) {
	truth := []int{0, 1, 2, 3, 4, 5, 6, 0, 1, 2, 3, 4, 5, 6, 2, 5}
	pred := []int{0, 2, 2, 3, 1, 5, 4, 6, 1, 0, 3, 4, 6, 6, 2, 1}
	want := math.Float64bits(macroF1(truth, pred))
	for i := 0; i < 500; i++ {
		require.Equal(t, want, math.Float64bits(macroF1(truth, pred)))
	}

	probs := mat.NewDense(len(truth), 7, nil)
	for i, p := range pred {
		probs.Set(i, p, 1)
	}
	first := Classification(truth, probs)
	for i := 0; i < 100; i++ {
		m := Classification(truth, probs)
		require.Equal(t, math.Float64bits(first[MacroF1]), math.Float64bits(m[MacroF1]))
		require.Equal(t, math.Float64bits(first[AUROCKey]), math.Float64bits(m[AUROCKey]))
	}
}
