// Package optimizer minimizes bounded objective functions with CMA-ES or
// Nelder-Mead from gonum, optionally polished by Levenberg-Marquardt.
//
// Parameters are searched in a normalized box where every bound spans
// [0, 1]. Points the method proposes outside the box are clamped before
// evaluation and charged the squared distance they were moved. Each call
// owns its random source, so concurrent calls with their own Function
// values do not interact.
package optimizer

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"sync"

	"gonum.org/v1/gonum/optimize"
)

// Function is minimized by Minimize. Value must be safe for concurrent use
// when Polish is enabled.
type Function interface {
	Value(par []float64) float64
}

// Residualer is implemented by least squares objectives. Minimize uses it
// to polish the result.
type Residualer interface {
	Residuals(dst, par []float64) []float64
	NPoints() int
}

// Methods.
const (
	CMAES      = "cma-es"
	NelderMead = "nelder-mead"
)

// Settings configures a minimization.
type Settings struct {
	Method string

	// Seed fixes the random source of stochastic methods.
	Seed uint64

	// Tolerance is log10 of the absolute and relative change of the best
	// value below which the search counts as converged.
	Tolerance float64

	// Window is the number of iterations without improvement before the
	// search stops.
	Window int

	MaxIterations  int
	MaxEvaluations int

	// PopulationScale multiplies the standard CMA-ES population
	// round(4 + 3 ln n).
	PopulationScale int

	// Polish runs Levenberg-Marquardt from the best point when the
	// function is a Residualer. FinalRadius is log10 of its step
	// tolerance.
	Polish      bool
	FinalRadius float64
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Method:          CMAES,
		Seed:            1,
		Tolerance:       -5,
		Window:          50,
		MaxIterations:   2000,
		MaxEvaluations:  2000000,
		PopulationScale: 3,
		Polish:          false,
		FinalRadius:     -5,
	}
}

// Result is the outcome of a successful minimization.
type Result struct {
	X           []float64
	F           float64
	Evaluations int
	Iterations  int
	Status      string
	Polished    bool
}

// Population returns the CMA-ES population for n parameters.
func Population(n, scale int) int {
	if scale < 1 {
		scale = 1
	}
	if n < 1 {
		n = 1
	}
	return scale * int(math.Round(4+3*math.Log(float64(n))))
}

// invalid stands in for values that are not finite so that methods keep
// ordering points.
const invalid = 1e300

// Minimize searches for the minimum of f inside b from start. sigma is the
// initial step size in StepUnits, so 20 covers a fifth of every parameter
// range. A failed or panicking search returns ErrFitFailed.
func Minimize(
	f Function,
	start []float64,
	b Bounds,
	sigma float64,
	s Settings,
) (
	res *Result,
	err error,
) {
	n := len(start)
	if err := b.Validate(n); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%v: %w", r, ErrFitFailed)
		}
	}()

	// gonum evaluates on its own goroutines, so panics raised by f are
	// caught there and reported after the run.
	var (
		once  sync.Once
		fault any
	)
	bx := newBox(b)
	problem := optimize.Problem{
		Func: func(u []float64) (v float64) {
			defer func() {
				if r := recover(); r != nil {
					once.Do(func() { fault = r })
					v = invalid
				}
			}()
			x := make([]float64, len(u))
			penalty := bx.denormalize(x, u)
			v = f.Value(x)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return invalid
			}
			return v + penalty
		},
	}

	method, err := newMethod(s, n, sigma)
	if err != nil {
		return nil, err
	}
	tol := math.Pow(10, s.Tolerance)
	settings := &optimize.Settings{
		Converger: &optimize.FunctionConverge{
			Absolute:   tol,
			Relative:   tol,
			Iterations: max(s.Window, 1),
		},
		MajorIterations: s.MaxIterations,
		FuncEvaluations: s.MaxEvaluations,
	}

	out, err := optimize.Minimize(problem, bx.normalize(start), settings, method)
	if fault != nil {
		return nil, fmt.Errorf("%v: %w", fault, ErrFitFailed)
	}
	if out == nil {
		return nil, fmt.Errorf("%v: %w", err, ErrFitFailed)
	}
	switch out.Status {
	case optimize.Failure:
		return nil, fmt.Errorf("%s: %v: %w", s.Method, err, ErrFitFailed)
	case optimize.IterationLimit, optimize.FunctionEvaluationLimit:
		slog.Debug("optimizer stopped at limit", "status", out.Status, "iterations", out.MajorIterations)
	}
	if out.X == nil || out.F >= invalid {
		return nil, fmt.Errorf("no finite value found: %w", ErrFitFailed)
	}

	res = &Result{
		X:           make([]float64, n),
		F:           out.F,
		Evaluations: out.FuncEvaluations,
		Iterations:  out.MajorIterations,
		Status:      out.Status.String(),
	}
	bx.denormalize(res.X, out.X)
	res.F = f.Value(res.X)

	if r, ok := f.(Residualer); ok && s.Polish {
		polish(f, r, b, res, s.FinalRadius)
	}
	return res, nil
}

func newMethod(s Settings, n int, sigma float64) (optimize.Method, error) {
	if sigma <= 0 {
		sigma = 20
	}
	step := sigma / StepUnits
	switch strings.ToLower(s.Method) {
	case "", CMAES:
		return &optimize.CmaEsChol{
			InitStepSize: step,
			Population:   Population(n, s.PopulationScale),
			Src:          rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15),
		}, nil
	case NelderMead:
		return &optimize.NelderMead{SimplexSize: step}, nil
	}
	return nil, fmt.Errorf("%q: %w", s.Method, ErrMethod)
}
