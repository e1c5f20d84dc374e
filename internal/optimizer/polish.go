package optimizer

import (
	"log/slog"
	"math"

	"github.com/maorshutman/lm"
)

// polish refines res in place with Levenberg-Marquardt on the residuals of
// r, in normalized coordinates. The refined point replaces res only when it
// stays inside b and lowers f. lm panics on singular steps; that leaves res
// untouched.
func polish(f Function, r Residualer, b Bounds, res *Result, finalRadius float64) {
	defer func() {
		if p := recover(); p != nil {
			slog.Debug("polish abandoned", "reason", p)
		}
	}()

	bx := newBox(b)
	n := r.NPoints()
	if n < len(res.X) {
		return
	}
	u := make([]float64, len(res.X))
	for i, v := range res.X {
		u[i] = (v - bx.lo[i]) / bx.width[i]
	}

	resid := func(dst, guess []float64) {
		x := make([]float64, len(guess))
		penalty := bx.denormalize(x, guess)
		r.Residuals(dst, x)
		if penalty > 0 {
			scale := 1 + math.Sqrt(penalty)
			for i := range dst {
				dst[i] *= scale
			}
		}
	}
	jac := lm.NumJac{Func: resid}
	eps := math.Pow(10, finalRadius)
	out, err := lm.LM(lm.LMProblem{
		Dim:        len(u),
		Size:       n,
		Func:       resid,
		Jac:        jac.Jac,
		InitParams: u,
		Tau:        1e-6,
		Eps1:       eps,
		Eps2:       eps,
	}, &lm.Settings{Iterations: 100, ObjectiveTol: 1e-16})
	if err != nil || out == nil {
		return
	}

	x := make([]float64, len(u))
	if bx.denormalize(x, out.X) > 0 {
		return
	}
	if v := f.Value(x); v < res.F {
		res.X, res.F, res.Polished = x, v, true
	}
}
