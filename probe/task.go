package probe

import (
	"math"
	"sort"

	"mrnabench/bencherr"
	"mrnabench/split"
)

// Task names a probing task. The set is closed; see Tasks.
type Task string

const (
	TaskRegression     Task = "regression"
	TaskRidge          Task = "reg_ridge"
	TaskLinear         Task = "reg_lin"
	TaskClassification Task = "classification"
	TaskMultilabel     Task = "multilabel"
)

type taskKind int

const (
	kindRegression taskKind = iota
	kindClassification
	kindMultilabel
)

// taskDef binds a task to its metric family and model factory. classes is
// the class count for classification and ignored otherwise.
type taskDef struct {
	kind  taskKind
	model func(hp Hyperparameters, classes int, seed int64) Model
}

func ridgeCV(hp Hyperparameters, _ int, seed int64) Model {
	return &RidgeCV{Alphas: append([]float64(nil), hp.Alphas...), Folds: hp.Folds, Seed: seed}
}

func (hp Hyperparameters) logistic() func() *Logistic {
	return func() *Logistic { return &Logistic{C: hp.C, MaxIter: hp.MaxIter, Tol: hp.Tol} }
}

var registry = map[Task]taskDef{
	TaskRegression: {kind: kindRegression, model: ridgeCV},
	TaskRidge:      {kind: kindRegression, model: ridgeCV},
	TaskLinear: {kind: kindRegression, model: func(Hyperparameters, int, int64) Model {
		return &OLS{}
	}},
	TaskClassification: {kind: kindClassification, model: func(hp Hyperparameters, classes int, _ int64) Model {
		return &OneVsRest{Classes: classes, New: hp.logistic()}
	}},
	TaskMultilabel: {kind: kindMultilabel, model: func(hp Hyperparameters, _ int, _ int64) Model {
		return &MultiLabel{New: hp.logistic()}
	}},
}

// Tasks lists the supported tasks in sorted order.
func Tasks() []Task {
	out := make([]Task, 0, len(registry))
	for t := range registry {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseTask resolves a task name.
func ParseTask(s string) (Task, error) {
	t := Task(s)
	if _, ok := registry[t]; !ok {
		return "", bencherr.Configuration("unknown task %q (supported: %v)", s, Tasks())
	}
	return t, nil
}

// Hyperparameters configure every task; fields a task does not use are
// ignored. Zero values take the package defaults, except DropMissing.
type Hyperparameters struct {
	Alphas []float64 // ridge penalty grid
	Folds  int       // ridge CV folds

	C       float64 // inverse L2 strength for logistic models
	MaxIter int
	Tol     float64

	Threshold float64 // multilabel decision threshold for macro_f1

	EvalOn      []split.Partition // partitions scored after fitting
	DropMissing bool              // drop rows whose target has a NaN
}

// Default folds for ridge alpha selection.
const DefaultFolds = 5

// DefaultHyperparameters returns the defaults with DropMissing set.
func DefaultHyperparameters() Hyperparameters {
	hp := Hyperparameters{DropMissing: true}
	hp.applyDefaults()
	return hp
}

func (hp *Hyperparameters) applyDefaults() {
	if len(hp.Alphas) == 0 {
		hp.Alphas = append([]float64(nil), DefaultAlphas...)
	}
	if hp.Folds == 0 {
		hp.Folds = DefaultFolds
	}
	if hp.C == 0 {
		hp.C = DefaultC
	}
	if hp.MaxIter == 0 {
		hp.MaxIter = DefaultMaxIter
	}
	if hp.Tol == 0 {
		hp.Tol = DefaultTol
	}
	if hp.Threshold == 0 {
		hp.Threshold = 0.5
	}
	if len(hp.EvalOn) == 0 {
		hp.EvalOn = []split.Partition{split.Test}
	}
}

func (hp Hyperparameters) validate() error {
	for _, a := range hp.Alphas {
		if !(a > 0) || math.IsInf(a, 0) {
			return bencherr.Configuration("ridge alphas must be positive and finite, got %v", hp.Alphas)
		}
	}
	switch {
	case hp.Folds < 2:
		return bencherr.Configuration("ridge cv needs at least 2 folds, got %d", hp.Folds)
	case !(hp.C > 0):
		return bencherr.Configuration("logistic C must be positive, got %v", hp.C)
	case hp.MaxIter < 1:
		return bencherr.Configuration("max iterations must be positive, got %d", hp.MaxIter)
	case !(hp.Tol > 0):
		return bencherr.Configuration("tolerance must be positive, got %v", hp.Tol)
	case !(hp.Threshold > 0 && hp.Threshold < 1):
		return bencherr.Configuration("multilabel threshold must be in (0, 1), got %v", hp.Threshold)
	}
	seen := make(map[split.Partition]bool)
	for _, p := range hp.EvalOn {
		if p > split.Test {
			return bencherr.Configuration("unknown evaluation partition %d", p)
		}
		if seen[p] {
			return bencherr.Configuration("evaluation partition %s listed twice", p)
		}
		seen[p] = true
	}
	return nil
}
