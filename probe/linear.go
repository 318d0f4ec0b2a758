package probe

import (
	"math"
	"math/rand/v2"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Model is a linear probe: fit on training rows, predict on any rows.
// For regressors Predict returns one column per target; for classifiers
// it returns class (or label) probabilities.
type Model interface {
	Fit(x, y *mat.Dense) error
	Predict(x mat.Matrix) *mat.Dense
}

// ---------------------- helpers ----------------------

// center returns a column-centered copy of m and the column means.
func center(m *mat.Dense) (*mat.Dense, []float64) {
	r, c := m.Dims()
	mean := make([]float64, c)
	for i := 0; i < r; i++ {
		row := m.RawRowView(i)
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(r)
	}
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		src := m.RawRowView(i)
		dst := out.RawRowView(i)
		for j, v := range src {
			dst[j] = v - mean[j]
		}
	}
	return out, mean
}

// selectRows copies the listed rows of m into a new matrix.
func selectRows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		mat.Row(out.RawRowView(k), i, m)
	}
	return out
}

// affine holds fitted coefficients (features x outputs) and intercepts.
type affine struct {
	coef      *mat.Dense
	intercept []float64
}

func (a *affine) predict(x mat.Matrix) *mat.Dense {
	r, _ := x.Dims()
	var out mat.Dense
	out.Mul(x, a.coef)
	for i := 0; i < r; i++ {
		row := out.RawRowView(i)
		for k := range row {
			row[k] += a.intercept[k]
		}
	}
	return &out
}

// fromCentered recovers intercepts for coefficients fit on centered data.
func fromCentered(w *mat.Dense, xMean, yMean []float64) affine {
	_, m := w.Dims()
	b := make([]float64, m)
	for k := 0; k < m; k++ {
		b[k] = yMean[k]
		for j, xm := range xMean {
			b[k] -= xm * w.At(j, k)
		}
	}
	return affine{coef: w, intercept: b}
}

// ---------------------- Ridge ----------------------

// Ridge is L2-penalised least squares with an unpenalised intercept, fit in
// closed form: (XcᵀXc + αI) W = XcᵀYc on centered data.
type Ridge struct {
	Alpha float64
	fit   affine
}

func (r *Ridge) Fit(x, y *mat.Dense) error {
	xc, xm := center(x)
	yc, ym := center(y)
	_, d := xc.Dims()

	var gram mat.SymDense
	gram.SymOuterK(1, xc.T())
	for j := 0; j < d; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); !ok {
		return errors.Errorf("ridge: normal equations not positive definite at alpha %g", r.Alpha)
	}
	var rhs, w mat.Dense
	rhs.Mul(xc.T(), yc)
	if err := chol.SolveTo(&w, &rhs); err != nil {
		return errors.Wrapf(err, "ridge: solve at alpha %g", r.Alpha)
	}
	r.fit = fromCentered(&w, xm, ym)
	return nil
}

func (r *Ridge) Predict(x mat.Matrix) *mat.Dense { return r.fit.predict(x) }

// ---------------------- Ridge with CV ----------------------

// DefaultAlphas is the ridge penalty grid searched by RidgeCV.
var DefaultAlphas = []float64{1e-3, 1e-2, 1e-1, 1, 10}

const cvStream = 0x63765f66 // "cv_f"

// RidgeCV picks Alpha by seeded k-fold cross-validation on the training
// rows (lowest mean squared error; ties keep the earlier alpha) and refits
// on all of them.
type RidgeCV struct {
	Alphas []float64
	Folds  int
	Seed   int64

	Alpha float64 // chosen penalty, set by Fit
	ridge Ridge
}

func (r *RidgeCV) Fit(x, y *mat.Dense) error {
	if len(r.Alphas) == 0 {
		return errors.New("ridge cv: empty alpha grid")
	}
	n, _ := x.Dims()
	k := r.Folds
	if k > n {
		k = n
	}
	best := r.Alphas[0]
	if k >= 2 && len(r.Alphas) > 1 {
		folds := foldIndices(n, k, r.Seed)
		bestErr := math.Inf(1)
		for _, alpha := range r.Alphas {
			e := cvError(x, y, folds, alpha)
			if e < bestErr {
				best, bestErr = alpha, e
			}
		}
	}
	r.Alpha = best
	r.ridge = Ridge{Alpha: best}
	return r.ridge.Fit(x, y)
}

func (r *RidgeCV) Predict(x mat.Matrix) *mat.Dense { return r.ridge.Predict(x) }

// ChosenAlpha reports the penalty selected by the last Fit.
func (r *RidgeCV) ChosenAlpha() float64 { return r.Alpha }

// foldIndices deals a seeded permutation of [0, n) round-robin into k folds.
func foldIndices(n, k int, seed int64) [][]int {
	rng := rand.New(rand.NewPCG(uint64(seed), cvStream))
	folds := make([][]int, k)
	for pos, i := range rng.Perm(n) {
		folds[pos%k] = append(folds[pos%k], i)
	}
	return folds
}

// cvError is the mean squared held-out error of Ridge{alpha} over folds.
// A fold that cannot be fit scores +Inf.
func cvError(x, y *mat.Dense, folds [][]int, alpha float64) float64 {
	var sse float64
	var count int
	for f, held := range folds {
		var train []int
		for g, fold := range folds {
			if g != f {
				train = append(train, fold...)
			}
		}
		m := Ridge{Alpha: alpha}
		if err := m.Fit(selectRows(x, train), selectRows(y, train)); err != nil {
			return math.Inf(1)
		}
		pred := m.Predict(selectRows(x, held))
		for k, i := range held {
			for j, v := range pred.RawRowView(k) {
				d := v - y.At(i, j)
				sse += d * d
				count++
			}
		}
	}
	return sse / float64(count)
}

// ---------------------- Ordinary least squares ----------------------

// rankTol is the relative singular value cut-off for OLS.
const rankTol = 1e-12

// OLS is unpenalised least squares solved through a thin SVD of the
// centered design, giving the minimum-norm solution when it is rank
// deficient.
type OLS struct {
	fit affine
}

func (o *OLS) Fit(x, y *mat.Dense) error {
	xc, xm := center(x)
	yc, ym := center(y)
	_, d := xc.Dims()
	_, m := yc.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return errors.New("ols: svd did not converge")
	}
	w := mat.NewDense(d, m, nil)
	if rank := svd.Rank(rankTol); rank > 0 {
		svd.SolveTo(w, yc, rank)
	}
	o.fit = fromCentered(w, xm, ym)
	return nil
}

func (o *OLS) Predict(x mat.Matrix) *mat.Dense { return o.fit.predict(x) }
