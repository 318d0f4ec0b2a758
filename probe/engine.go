// Package probe fits linear models on frozen embeddings restricted to the
// train partition and scores them on held-out partitions, optionally
// repeating the cycle over several seeds.
package probe

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"mrnabench/bencherr"
	"mrnabench/logging"
	"mrnabench/metrics"
	"mrnabench/split"
)

// Engine runs one task with fixed hyperparameters. It holds no mutable
// state, so a single Engine may run many seeds concurrently.
type Engine struct {
	task Task
	def  taskDef
	hp   Hyperparameters
	log  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New validates the task and hyperparameters.
func New(task Task, hp Hyperparameters, opts ...Option) (*Engine, error) {
	def, ok := registry[task]
	if !ok {
		return nil, bencherr.Configuration("unknown task %q (supported: %v)", task, Tasks())
	}
	hp.Alphas = append([]float64(nil), hp.Alphas...)
	hp.EvalOn = append([]split.Partition(nil), hp.EvalOn...)
	hp.applyDefaults()
	if err := hp.validate(); err != nil {
		return nil, err
	}
	e := &Engine{task: task, def: def, hp: hp}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logging.OrNop(e.log)
	return e, nil
}

// Task returns the engine's task.
func (e *Engine) Task() Task { return e.task }

// Hyperparameters returns the effective hyperparameters, defaults applied.
func (e *Engine) Hyperparameters() Hyperparameters {
	hp := e.hp
	hp.Alphas = append([]float64(nil), e.hp.Alphas...)
	hp.EvalOn = append([]split.Partition(nil), e.hp.EvalOn...)
	return hp
}

// Result is the outcome of one fit/evaluate cycle.
type Result struct {
	Seed    int64
	Task    Task
	Metrics metrics.Set // keyed "<partition>_<metric>"

	// PerLabel holds multilabel per-label scores keyed by partition name.
	PerLabel map[string][]metrics.Label

	Counts  [3]int // rows used per partition, indexed by split.Partition
	Dropped int    // rows removed for missing targets
	Alpha   float64
}

// prepared is the row selection shared by fit and evaluation.
type prepared struct {
	rows    [3][]int
	dropped int
	classes int
}

func (e *Engine) prepare(x mat.Matrix, y [][]float64, a split.Assignment) (prepared, error) {
	var p prepared
	n, _ := x.Dims()
	if n != len(y) {
		return p, bencherr.DataMismatch("embedding matrix has %d rows but there are %d targets", n, len(y))
	}
	if a.Len() != n {
		return p, bencherr.DataMismatch("split assignment covers %d samples but there are %d rows", a.Len(), n)
	}
	width := -1
	for i, t := range y {
		if width < 0 {
			width = len(t)
		}
		if len(t) != width {
			return p, bencherr.DataMismatch("target row %d has width %d, expected %d", i, len(t), width)
		}
	}
	if width == 0 {
		return p, bencherr.DataMismatch("targets are empty")
	}
	if e.def.kind == kindClassification && width != 1 {
		return p, bencherr.DataMismatch("%s expects one target column, got %d", e.task, width)
	}

	maxClass := -1
	for i, t := range y {
		if hasNaN(t) {
			if !e.hp.DropMissing {
				return p, bencherr.DataMismatch("target row %d is missing and dropping is disabled", i)
			}
			p.dropped++
			continue
		}
		if e.def.kind == kindClassification {
			c := t[0]
			if c < 0 || c != math.Trunc(c) {
				return p, bencherr.Configuration("classification target must be a non-negative class index, row %d has %v", i, c)
			}
			if int(c) > maxClass {
				maxClass = int(c)
			}
		}
		part := a.Part(i)
		p.rows[part] = append(p.rows[part], i)
	}
	p.classes = maxClass + 1
	if p.classes < 2 {
		p.classes = 2
	}

	if len(p.rows[split.Train]) == 0 {
		return p, bencherr.InsufficientData("%s: train partition is empty", e.task)
	}
	for _, part := range e.hp.EvalOn {
		if len(p.rows[part]) == 0 {
			return p, bencherr.InsufficientData("%s: %s partition is empty", e.task, part)
		}
	}
	if e.def.kind == kindClassification {
		seen := make(map[float64]bool)
		for _, i := range p.rows[split.Train] {
			seen[y[i][0]] = true
		}
		if len(seen) < 2 {
			return p, bencherr.InsufficientData("classification train partition holds a single class")
		}
	}
	return p, nil
}

func hasNaN(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) {
			return true
		}
	}
	return false
}

func targetRows(y [][]float64, idx []int) *mat.Dense {
	out := mat.NewDense(len(idx), len(y[idx[0]]), nil)
	for k, i := range idx {
		out.SetRow(k, y[i])
	}
	return out
}

// Run fits on the train rows of a and scores each EvalOn partition. The
// seed drives every stochastic choice the model makes (CV fold order).
// x and y are read-only.
func (e *Engine) Run(x mat.Matrix, y [][]float64, a split.Assignment, seed int64) (Result, error) {
	start := time.Now()
	p, err := e.prepare(x, y, a)
	if err != nil {
		return Result{}, err
	}

	train := p.rows[split.Train]
	model := e.def.model(e.hp, p.classes, seed)
	if err := model.Fit(selectRows(x, train), targetRows(y, train)); err != nil {
		return Result{}, errors.Wrapf(err, "%s fit (seed %d)", e.task, seed)
	}

	res := Result{
		Seed:    seed,
		Task:    e.task,
		Metrics: make(metrics.Set),
		Dropped: p.dropped,
	}
	for _, part := range split.Partitions {
		res.Counts[part] = len(p.rows[part])
	}
	if m, ok := model.(interface{ ChosenAlpha() float64 }); ok {
		res.Alpha = m.ChosenAlpha()
	}

	for _, part := range e.hp.EvalOn {
		idx := p.rows[part]
		pred := model.Predict(selectRows(x, idx))
		truth := targetRows(y, idx)

		var set metrics.Set
		switch e.def.kind {
		case kindRegression:
			set = regressionSet(truth, pred)
		case kindClassification:
			labels := make([]int, len(idx))
			for k, i := range idx {
				labels[k] = int(y[i][0])
			}
			set = metrics.Classification(labels, pred)
		case kindMultilabel:
			var perLabel []metrics.Label
			set, perLabel = metrics.Multilabel(truth, pred, e.hp.Threshold)
			if res.PerLabel == nil {
				res.PerLabel = make(map[string][]metrics.Label)
			}
			res.PerLabel[part.String()] = perLabel
		}
		res.Metrics.Merge(set.Prefixed(part.String()))
	}

	e.log.Debug("probe run",
		zap.String(logging.TaskKey, string(e.task)),
		zap.Int64(logging.SeedKey, seed),
		zap.Ints("split.counts", res.Counts[:]),
		zap.Int("targets.dropped", p.dropped),
		zap.Float64(logging.AlphaKey, res.Alpha),
		zap.Duration(logging.DurationKey, time.Since(start)),
	)
	return res, nil
}

// regressionSet scores each output column and averages across columns.
func regressionSet(truth, pred *mat.Dense) metrics.Set {
	_, m := truth.Dims()
	if m == 1 {
		return metrics.Regression(mat.Col(nil, 0, truth), mat.Col(nil, 0, pred))
	}
	sum := make(metrics.Set)
	for j := 0; j < m; j++ {
		for k, v := range metrics.Regression(mat.Col(nil, j, truth), mat.Col(nil, j, pred)) {
			sum[k] += v
		}
	}
	for k := range sum {
		sum[k] /= float64(m)
	}
	return sum
}

// ---------------------- Multi-seed ----------------------

// MultiResult holds one Result per seed, in seed order, and their summary.
type MultiResult struct {
	PerSeed []Result
	Summary map[string]Summary
}

// Seeds returns the seeds in run order.
func (m MultiResult) Seeds() []int64 {
	out := make([]int64, len(m.PerSeed))
	for i, r := range m.PerSeed {
		out[i] = r.Seed
	}
	return out
}

// RunSeeds repeats Run with the same assignment for every seed, in order.
func (e *Engine) RunSeeds(x mat.Matrix, y [][]float64, a split.Assignment, seeds []int64) (MultiResult, error) {
	return e.RunSeedsParallel(context.Background(), x, y, a, seeds, 1)
}

// RunSeedsParallel is RunSeeds with up to workers seeds in flight. The
// result is identical to RunSeeds.
func (e *Engine) RunSeedsParallel(ctx context.Context, x mat.Matrix, y [][]float64, a split.Assignment, seeds []int64, workers int) (MultiResult, error) {
	as := make([]split.Assignment, len(seeds))
	for i := range as {
		as[i] = a
	}
	return e.RunAssignments(ctx, x, y, as, seeds, workers)
}

// RunAssignments runs seed i against assignment i, for callers that rebuild
// the split per seed.
func (e *Engine) RunAssignments(ctx context.Context, x mat.Matrix, y [][]float64, as []split.Assignment, seeds []int64, workers int) (MultiResult, error) {
	if len(seeds) == 0 {
		return MultiResult{}, bencherr.Configuration("no seeds given")
	}
	if len(as) != len(seeds) {
		return MultiResult{}, bencherr.DataMismatch("%d assignments for %d seeds", len(as), len(seeds))
	}
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(seeds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range seeds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := e.Run(x, y, as[i], seeds[i])
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return MultiResult{}, err
	}

	e.log.Info("probe seeds complete",
		zap.String(logging.TaskKey, string(e.task)),
		zap.Int("probe.seeds", len(seeds)),
		zap.Int("probe.workers", workers),
	)
	return MultiResult{PerSeed: results, Summary: Summarize(results, DefaultCIMultiplier)}, nil
}
