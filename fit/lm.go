package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by the fitting routines.
var (
	ErrEmptyInput     = errors.New("fit: empty input")
	ErrLengthMismatch = errors.New("fit: x and y must have equal length")
	ErrTooFewSamples  = errors.New("fit: too few samples for fit")
	ErrFitDiverged    = errors.New("fit: fit did not converge")
)

// leastSquares fits model parameters to (xs, ys) by Levenberg-Marquardt
// with a numeric Jacobian, starting from p0. Non-finite solutions count as
// divergence.
func leastSquares(xs, ys, p0 []float64, model func(x float64, p []float64) float64) ([]float64, error) {
	f := func(dst, p []float64) {
		for i := range xs {
			dst[i] = model(xs[i], p) - ys[i]
		}
	}

	jac := lm.NumJac{Func: f}
	prob := lm.LMProblem{
		Dim:        len(p0),
		Size:       len(xs),
		Func:       f,
		Jac:        jac.Jac,
		InitParams: append([]float64(nil), p0...),
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}

	results, err := lm.LM(prob, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitDiverged, err)
	}
	for _, v := range results.X {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, ErrFitDiverged
		}
	}
	return results.X, nil
}

// stdErrors estimates per-parameter standard errors from the residual
// variance and the numeric Jacobian at the solution: diag of
// sigma^2 (J^T J)^-1. Returns NaNs when the problem has no spare degrees
// of freedom or J^T J is singular.
func stdErrors(xs, ys, popt []float64, model func(x float64, p []float64) float64) []float64 {
	m, n := len(xs), len(popt)
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	if m <= n {
		return out
	}

	var rss float64
	for i := range xs {
		r := model(xs[i], popt) - ys[i]
		rss += r * r
	}
	sigma2 := rss / float64(m-n)

	jac := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		h := 1e-6 * math.Abs(popt[j])
		if h < 1e-8 {
			h = 1e-8
		}
		pUp := append([]float64(nil), popt...)
		pDn := append([]float64(nil), popt...)
		pUp[j] += h
		pDn[j] -= h
		for i := 0; i < m; i++ {
			jac.Set(i, j, (model(xs[i], pUp)-model(xs[i], pDn))/(2*h))
		}
	}

	var jtj mat.Dense
	jtj.Mul(jac.T(), jac)

	var inv mat.Dense
	if err := inv.Inverse(&jtj); err != nil {
		return out
	}

	for j := 0; j < n; j++ {
		v := sigma2 * inv.At(j, j)
		if v >= 0 {
			out[j] = math.Sqrt(v)
		}
	}
	return out
}
