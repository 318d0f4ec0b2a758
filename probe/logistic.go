package probe

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Logistic regression defaults.
const (
	DefaultC       = 1.0
	DefaultMaxIter = 100
	DefaultTol     = 1e-6
)

// hessJitter keeps the unpenalised intercept direction invertible.
const hessJitter = 1e-8

// Logistic is a binary L2-regularised logistic regression fit by damped
// Newton-Raphson. The penalty 1/(2C)·‖w‖² applies to the weights, not the
// intercept. Features are standardised internally for conditioning and
// the solution is mapped back to the original scale.
//
// A training column holding a single class yields a constant predictor.
type Logistic struct {
	C       float64
	MaxIter int
	Tol     float64

	coef      []float64
	intercept float64
	constant  float64 // >= 0 when the fit degenerated to a constant
	iters     int
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// softplus is log(1+exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// Fit expects y as a single 0/1 column.
func (l *Logistic) Fit(x, y *mat.Dense) error {
	n, d := x.Dims()
	if n == 0 {
		return errors.New("logistic: no training rows")
	}
	target := make([]float64, n)
	var pos int
	for i := 0; i < n; i++ {
		if y.At(i, 0) >= 0.5 {
			target[i] = 1
			pos++
		}
	}
	l.constant, l.iters = -1, 0
	if pos == 0 || pos == n {
		l.constant = target[0]
		l.coef = make([]float64, d)
		return nil
	}

	// Standardise features; the intercept is the trailing column.
	mean := make([]float64, d)
	std := make([]float64, d)
	for i := 0; i < n; i++ {
		for j, v := range x.RawRowView(i) {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for i := 0; i < n; i++ {
		for j, v := range x.RawRowView(i) {
			dv := v - mean[j]
			std[j] += dv * dv
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / float64(n))
		if std[j] == 0 {
			std[j] = 1
		}
	}
	p := d + 1
	z := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		src := x.RawRowView(i)
		dst := z.RawRowView(i)
		for j, v := range src {
			dst[j] = (v - mean[j]) / std[j]
		}
		dst[d] = 1
	}

	// Penalty on original-scale weights, expressed in standardised space.
	lambda := 1 / l.C
	pen := make([]float64, p)
	for j := 0; j < d; j++ {
		pen[j] = lambda / (std[j] * std[j])
	}

	objective := func(beta []float64) float64 {
		var f float64
		for i := 0; i < n; i++ {
			var eta float64
			for j, v := range z.RawRowView(i) {
				eta += v * beta[j]
			}
			f += softplus(eta) - target[i]*eta
		}
		for j, b := range beta {
			f += 0.5 * pen[j] * b * b
		}
		return f
	}

	beta := make([]float64, p)
	betaVec := mat.NewVecDense(p, beta)
	eta := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	resid := mat.NewVecDense(n, nil)
	zw := mat.NewDense(n, p, nil)
	var hess mat.SymDense
	var chol mat.Cholesky
	var step mat.VecDense
	trial := make([]float64, p)

	fCur := objective(beta)
	for iter := 0; iter < l.MaxIter; iter++ {
		l.iters = iter + 1
		eta.MulVec(z, betaVec)
		for i := 0; i < n; i++ {
			pi := sigmoid(eta.AtVec(i))
			resid.SetVec(i, pi-target[i])
			w := math.Sqrt(math.Max(pi*(1-pi), 1e-12))
			src := z.RawRowView(i)
			dst := zw.RawRowView(i)
			for j, v := range src {
				dst[j] = w * v
			}
		}
		grad.MulVec(z.T(), resid)
		for j := 0; j < p; j++ {
			grad.SetVec(j, grad.AtVec(j)+pen[j]*beta[j])
		}

		hess.SymOuterK(1, zw.T())
		for j := 0; j < p; j++ {
			hess.SetSym(j, j, hess.At(j, j)+pen[j]+hessJitter)
		}
		if ok := chol.Factorize(&hess); !ok {
			return errors.Errorf("logistic: hessian not positive definite at iteration %d", iter)
		}
		if err := chol.SolveVecTo(&step, grad); err != nil {
			return errors.Wrap(err, "logistic: newton step")
		}

		// Backtracking line search on the penalised objective.
		decrease := mat.Dot(grad, &step)
		t := 1.0
		var fNew float64
		for k := 0; k < 30; k++ {
			for j := range trial {
				trial[j] = beta[j] - t*step.AtVec(j)
			}
			fNew = objective(trial)
			if fNew <= fCur-1e-4*t*decrease {
				break
			}
			t *= 0.5
		}
		var maxStep float64
		for j := range beta {
			delta := trial[j] - beta[j]
			maxStep = math.Max(maxStep, math.Abs(delta))
			beta[j] = trial[j]
		}
		fCur = fNew
		if maxStep < l.Tol {
			break
		}
	}

	// Map back: z = b + Σ β_j (x_j - m_j)/s_j.
	l.coef = make([]float64, d)
	l.intercept = beta[d]
	for j := 0; j < d; j++ {
		l.coef[j] = beta[j] / std[j]
		l.intercept -= beta[j] * mean[j] / std[j]
	}
	return nil
}

// Iterations reports how many Newton steps the last Fit took.
func (l *Logistic) Iterations() int { return l.iters }

// Predict returns P(y=1) as a single column.
func (l *Logistic) Predict(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, 1, nil)
	if l.constant >= 0 {
		for i := 0; i < r; i++ {
			out.Set(i, 0, l.constant)
		}
		return out
	}
	var eta mat.VecDense
	eta.MulVec(x, mat.NewVecDense(len(l.coef), l.coef))
	for i := 0; i < r; i++ {
		out.Set(i, 0, sigmoid(eta.AtVec(i)+l.intercept))
	}
	return out
}

// ---------------------- One-vs-rest ----------------------

// OneVsRest fits one Logistic per class on integer labels 0..Classes-1.
// Two classes share a single model on class 1. With more, the per-class
// probabilities are normalised to sum to one.
type OneVsRest struct {
	Classes int
	New     func() *Logistic

	models []*Logistic
}

func (o *OneVsRest) Fit(x, y *mat.Dense) error {
	n, _ := x.Dims()
	if o.Classes < 2 {
		return errors.Errorf("one-vs-rest: need at least 2 classes, got %d", o.Classes)
	}
	fitClass := func(c int) (*Logistic, error) {
		col := mat.NewDense(n, 1, nil)
		for i := 0; i < n; i++ {
			if int(y.At(i, 0)) == c {
				col.Set(i, 0, 1)
			}
		}
		m := o.New()
		if err := m.Fit(x, col); err != nil {
			return nil, errors.Wrapf(err, "class %d", c)
		}
		return m, nil
	}

	if o.Classes == 2 {
		m, err := fitClass(1)
		if err != nil {
			return err
		}
		o.models = []*Logistic{m}
		return nil
	}
	o.models = make([]*Logistic, o.Classes)
	for c := range o.models {
		m, err := fitClass(c)
		if err != nil {
			return err
		}
		o.models[c] = m
	}
	return nil
}

// Predict returns one probability column per class.
func (o *OneVsRest) Predict(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, o.Classes, nil)
	if o.Classes == 2 {
		p := o.models[0].Predict(x)
		for i := 0; i < r; i++ {
			out.Set(i, 0, 1-p.At(i, 0))
			out.Set(i, 1, p.At(i, 0))
		}
		return out
	}
	for c, m := range o.models {
		out.SetCol(c, mat.Col(nil, 0, m.Predict(x)))
	}
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		var sum float64
		for _, v := range row {
			sum += v
		}
		for c := range row {
			if sum > 0 {
				row[c] /= sum
			} else {
				row[c] = 1 / float64(o.Classes)
			}
		}
	}
	return out
}

// ---------------------- Multilabel ----------------------

// MultiLabel fits one independent Logistic per label column.
type MultiLabel struct {
	New func() *Logistic

	models []*Logistic
}

func (m *MultiLabel) Fit(x, y *mat.Dense) error {
	n, labels := y.Dims()
	m.models = make([]*Logistic, labels)
	for j := 0; j < labels; j++ {
		col := mat.NewDense(n, 1, mat.Col(nil, j, y))
		lm := m.New()
		if err := lm.Fit(x, col); err != nil {
			return errors.Wrapf(err, "label %d", j)
		}
		m.models[j] = lm
	}
	return nil
}

// Predict returns one independent probability column per label.
func (m *MultiLabel) Predict(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	out := mat.NewDense(r, len(m.models), nil)
	for j, lm := range m.models {
		out.SetCol(j, mat.Col(nil, 0, lm.Predict(x)))
	}
	return out
}
