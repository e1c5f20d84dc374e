package uncertainty

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"testing"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/objective"
	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var truth = []float64{100, 50, 2, 4}

var bounds = optimizer.Bounds{
	Lower: []float64{50, 20, 0.5, 1},
	Upper: []float64{200, 100, 8, 10},
}

// noisyDecays returns two decays with unit errors and unit Gaussian noise.
func noisyDecays(t *testing.T) (*objective.Problem, []float64) {
	t.Helper()
	rng := rand.New(rand.NewPCG(7, 7))
	mk := func(id string, a, r float64) dataset.Curve {
		c := dataset.Curve{ID: id, State: []int{0, 0, 0, 0}, Field: 60.8, X: [][]float64{nil}}
		for i := range 30 {
			x := 0.03 * float64(i)
			c.X[0] = append(c.X[0], x)
			c.Y = append(c.Y, a*math.Exp(-r*x)+rng.NormFloat64())
			c.Err = append(c.Err, 1)
		}
		return c
	}
	curves := []dataset.Curve{mk("a", truth[0], truth[2]), mk("b", truth[1], truth[3])}

	eq, err := equation.Lookup(equation.Exp, "EXPAB")
	require.NoError(t, err)
	m, err := parmap.Simple(eq.Layout(), len(curves))
	require.NoError(t, err)
	p, err := objective.New(eq, curves, m, parmap.NPars(m), objective.Options{Weight: true})
	require.NoError(t, err)

	best, err := optimizer.Minimize(p, truth, bounds, 0, optimizer.DefaultSettings())
	require.NoError(t, err)
	return p, best.X
}

func opts(seed uint64) Options {
	return Options{Repeats: 120, Workers: 4, Seed: seed, Settings: optimizer.DefaultSettings()}
}

func TestParametricIsStable(t *testing.T) {
	p, best := noisyDecays(t)

	a, err := Parametric(context.Background(), p, best, best, bounds, 10, opts(1))
	require.NoError(t, err)
	b, err := Parametric(context.Background(), p, best, best, bounds, 10, opts(2))
	require.NoError(t, err)

	assert.Zero(t, a.Failed)
	assert.Len(t, a.Sims, 120)
	require.Len(t, a.SD, 4)
	for i := range a.SD {
		assert.Greater(t, a.SD[i], 0.0)
		ratio := a.SD[i] / b.SD[i]
		assert.True(t, ratio > 0.5 && ratio < 2, "parameter %d: %g vs %g", i, a.SD[i], b.SD[i])
	}
	// Unit noise on 30 points puts the amplitude error near 1.
	assert.InDelta(t, 1, a.SD[0], 0.7)
}

func TestRecoversWithinReportedSD(t *testing.T) {
	p, best := noisyDecays(t)
	est, err := Parametric(context.Background(), p, best, best, bounds, 10, opts(3))
	require.NoError(t, err)
	for i := range truth {
		assert.InDelta(t, truth[i], best[i], 5*est.SD[i], "parameter %d", i)
	}
}

func TestBootstrapAgreesWithParametric(t *testing.T) {
	p, best := noisyDecays(t)

	par, err := Parametric(context.Background(), p, best, best, bounds, 10, opts(4))
	require.NoError(t, err)
	boot, err := Bootstrap(context.Background(), p, best, bounds, 10, opts(4))
	require.NoError(t, err)

	assert.Len(t, boot.Sims, 120)
	for i := range par.SD {
		ratio := boot.SD[i] / par.SD[i]
		assert.True(t, ratio > 0.5 && ratio < 2, "parameter %d: bootstrap %g parametric %g", i, boot.SD[i], par.SD[i])
	}
}

func TestSameSeedSameSims(t *testing.T) {
	p, best := noisyDecays(t)
	o := opts(9)
	o.Repeats = 20

	a, err := Bootstrap(context.Background(), p, best, bounds, 10, o)
	require.NoError(t, err)
	o.Workers = 1
	b, err := Bootstrap(context.Background(), p, best, bounds, 10, o)
	require.NoError(t, err)
	assert.Equal(t, a.Sims, b.Sims)
}

func TestFailuresAreIsolated(t *testing.T) {
	p, best := noisyDecays(t)
	var calls atomic.Int64
	o := opts(5)
	o.Repeats = 30
	o.Derived = func(_ *objective.Problem, par []float64) []float64 {
		if calls.Add(1)%3 == 0 {
			panic("derived quantity exploded")
		}
		return []float64{par[0] + par[1]}
	}

	est, err := Parametric(context.Background(), p, best, best, bounds, 10, o)
	require.NoError(t, err)
	assert.Equal(t, 10, est.Failed)
	assert.Len(t, est.Sims, 20)
	require.Len(t, est.DerivedSD, 1)
	assert.Greater(t, est.DerivedSD[0], 0.0)
}

func TestTooFewRepeats(t *testing.T) {
	p, best := noisyDecays(t)
	o := opts(5)
	o.Repeats = 4
	o.Derived = func(*objective.Problem, []float64) []float64 { panic("always") }

	_, err := Bootstrap(context.Background(), p, best, bounds, 10, o)
	assert.ErrorIs(t, err, ErrTooFewRepeats)
}

func TestCancelled(t *testing.T) {
	p, best := noisyDecays(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parametric(ctx, p, best, best, bounds, 10, opts(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDrawKeepsLength(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	idx := draw(rng, 12, nil)
	assert.Len(t, idx, 12)
	for _, i := range idx {
		assert.True(t, i >= 0 && i < 12)
	}
	assert.Equal(t, 3, distinct([]int{4, 4, 1, 0, 1}))
}
