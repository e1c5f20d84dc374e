package optimizer

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type funcOf func([]float64) float64

func (f funcOf) Value(x []float64) float64 { return f(x) }

// line fits y = a·x + b to exact data.
type line struct {
	x, y []float64
}

func (l line) Residuals(dst, par []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(l.x))
	}
	for i := range l.x {
		dst[i] = par[0]*l.x[i] + par[1] - l.y[i]
	}
	return dst
}

func (l line) NPoints() int { return len(l.x) }

func (l line) Value(par []float64) float64 {
	sum := 0.0
	for _, r := range l.Residuals(nil, par) {
		sum += r * r
	}
	return sum
}

func rosenbrock(x []float64) float64 {
	return 100*math.Pow(x[1]-x[0]*x[0], 2) + math.Pow(1-x[0], 2)
}

func TestPopulation(t *testing.T) {
	assert.Equal(t, 12, Population(1, 3))
	assert.Equal(t, 18, Population(2, 3))
	assert.Equal(t, 7, Population(3, 1))
	assert.Equal(t, 4, Population(0, 0))
}

func TestMinimizeQuadratic(t *testing.T) {
	f := funcOf(func(x []float64) float64 {
		return (x[0]-3)*(x[0]-3) + 4*(x[1]+1)*(x[1]+1)
	})
	b := Bounds{Lower: []float64{-10, -10}, Upper: []float64{10, 10}}

	for _, method := range []string{CMAES, NelderMead} {
		t.Run(method, func(t *testing.T) {
			s := DefaultSettings()
			s.Method = method
			s.Tolerance = -10
			res, err := Minimize(f, []float64{0, 0}, b, 20, s)
			require.NoError(t, err)
			assert.InDelta(t, 3, res.X[0], 1e-3)
			assert.InDelta(t, -1, res.X[1], 1e-3)
			assert.True(t, b.Contains(res.X))
		})
	}
}

func TestMinimizeDefaultSettingsReachMinimum(t *testing.T) {
	// A wide box must not end the search while the step size is still
	// large compared to the distance left to the minimum.
	f := funcOf(func(x []float64) float64 {
		return (x[0]-3)*(x[0]-3) + 4*(x[1]+1)*(x[1]+1)
	})
	b := Bounds{Lower: []float64{-10, -10}, Upper: []float64{10, 10}}
	res, err := Minimize(f, []float64{0, 0}, b, 20, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 3, res.X[0], 1e-2)
	assert.InDelta(t, -1, res.X[1], 1e-2)
	assert.Less(t, res.F, 1e-3)
}

func TestBoxRoundTrip(t *testing.T) {
	bx := newBox(Bounds{Lower: []float64{-10, 0}, Upper: []float64{10, 100}})
	u := bx.normalize([]float64{5, 99.9})
	assert.InDelta(t, 0.75, u[0], 1e-12)
	assert.InDelta(t, 0.98, u[1], 1e-12)

	x := make([]float64, 2)
	assert.Zero(t, bx.denormalize(x, []float64{0.75, 0.5}))
	assert.InDelta(t, 5, x[0], 1e-12)
	assert.InDelta(t, 50, x[1], 1e-12)

	penalty := bx.denormalize(x, []float64{-0.1, 1.2})
	assert.InDelta(t, 0.05, penalty, 1e-12)
	assert.Equal(t, []float64{-10, 100}, x)
}

func TestMinimizeRespectsBounds(t *testing.T) {
	// The unconstrained minimum at (1, 1) lies outside the box.
	b := Bounds{Lower: []float64{-2, -2}, Upper: []float64{0.5, 3}}
	res, err := Minimize(funcOf(rosenbrock), []float64{-1, 1}, b, 20, DefaultSettings())
	require.NoError(t, err)
	assert.True(t, b.Contains(res.X))
	assert.InDelta(t, 0.5, res.X[0], 1e-2)
}

func TestMinimizeIsDeterministic(t *testing.T) {
	b := Bounds{Lower: []float64{-2, -1}, Upper: []float64{2, 3}}
	s := DefaultSettings()
	s.Seed = 42
	a, err := Minimize(funcOf(rosenbrock), []float64{-1.5, 2}, b, 20, s)
	require.NoError(t, err)
	c, err := Minimize(funcOf(rosenbrock), []float64{-1.5, 2}, b, 20, s)
	require.NoError(t, err)
	assert.Equal(t, a.X, c.X)
	assert.Equal(t, a.Evaluations, c.Evaluations)
}

func TestMinimizeConcurrentCalls(t *testing.T) {
	b := Bounds{Lower: []float64{-2, -1}, Upper: []float64{2, 3}}
	var wg sync.WaitGroup
	results := make([][]float64, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := DefaultSettings()
			s.Seed = 7
			s.Tolerance = -8
			res, err := Minimize(funcOf(rosenbrock), []float64{-1.5, 2}, b, 20, s)
			if err == nil {
				results[i] = res.X
			}
		}(i)
	}
	wg.Wait()
	for _, x := range results {
		assert.Equal(t, results[0], x)
	}
	require.NotNil(t, results[0])
	assert.InDelta(t, 1, results[0][0], 1e-2)
}

func TestMinimizePenalizesNaN(t *testing.T) {
	f := funcOf(func(x []float64) float64 {
		if x[0] < 0 {
			return math.NaN()
		}
		return (x[0] - 1) * (x[0] - 1)
	})
	b := Bounds{Lower: []float64{-5}, Upper: []float64{5}}
	res, err := Minimize(f, []float64{2}, b, 20, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 1, res.X[0], 1e-3)
}

func TestMinimizeReportsFailure(t *testing.T) {
	b := Bounds{Lower: []float64{0}, Upper: []float64{1}}

	_, err := Minimize(funcOf(func([]float64) float64 { return math.NaN() }), []float64{0.5}, b, 20, DefaultSettings())
	assert.ErrorIs(t, err, ErrFitFailed)

	_, err = Minimize(funcOf(func([]float64) float64 { panic("boom") }), []float64{0.5}, b, 20, DefaultSettings())
	assert.ErrorIs(t, err, ErrFitFailed)

	s := DefaultSettings()
	s.Method = "simulated-annealing"
	_, err = Minimize(funcOf(rosenbrock), []float64{0.5}, b, 20, s)
	assert.ErrorIs(t, err, ErrMethod)
}

func TestBoundsValidate(t *testing.T) {
	assert.NoError(t, Bounds{Lower: []float64{0}, Upper: []float64{1}}.Validate(1))
	assert.ErrorIs(t, Bounds{Lower: []float64{0}, Upper: []float64{1}}.Validate(2), ErrBounds)
	assert.ErrorIs(t, Bounds{Lower: []float64{1}, Upper: []float64{1}}.Validate(1), ErrBounds)
	assert.ErrorIs(t, Bounds{Lower: []float64{math.NaN()}, Upper: []float64{1}}.Validate(1), ErrBounds)
}

func TestPolishImprovesLeastSquares(t *testing.T) {
	l := line{x: []float64{0, 1, 2, 3, 4}, y: []float64{1, 3, 5, 7, 9}}
	b := Bounds{Lower: []float64{-10, -10}, Upper: []float64{10, 10}}
	s := DefaultSettings()
	s.Polish = true
	s.FinalRadius = -10
	res, err := Minimize(l, []float64{0, 0}, b, 20, s)
	require.NoError(t, err)
	assert.InDelta(t, 2, res.X[0], 1e-6)
	assert.InDelta(t, 1, res.X[1], 1e-6)
	assert.Less(t, res.F, 1e-10)
}
