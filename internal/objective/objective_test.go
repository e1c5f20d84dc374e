package objective

import (
	"math"
	"testing"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decayCurves() []dataset.Curve {
	mk := func(id string, a, r float64) dataset.Curve {
		x := []float64{0, 0.1, 0.2, 0.4, 0.8}
		c := dataset.Curve{ID: id, State: []int{0, 0, 0, 0}, Field: 60.8, X: [][]float64{x}}
		for _, t := range x {
			c.Y = append(c.Y, a*math.Exp(-r*t))
			c.Err = append(c.Err, 0.5)
		}
		return c
	}
	return []dataset.Curve{mk("a", 100, 2), mk("b", 50, 4)}
}

func newDecay(t *testing.T, opts Options) (*Problem, []float64) {
	t.Helper()
	eq, err := equation.Lookup(equation.Exp, "EXPAB")
	require.NoError(t, err)
	curves := decayCurves()
	m, err := parmap.Simple(eq.Layout(), len(curves))
	require.NoError(t, err)
	// Simple lays out A for both curves, then R for both.
	par := []float64{100, 50, 2, 4}
	p, err := New(eq, curves, m, parmap.NPars(m), opts)
	require.NoError(t, err)
	return p, par
}

func TestPerfectFit(t *testing.T) {
	p, par := newDecay(t, Options{Weight: true})
	assert.Equal(t, 10, p.NPoints())
	assert.InDelta(t, 0, p.Value(par), 1e-20)
	assert.InDelta(t, 0, p.RMS(par), 1e-10)

	pred := p.Predicted(par)
	require.Len(t, pred, 2)
	assert.InDeltaSlice(t, p.Curves()[1].Y, pred[1], 1e-12)
}

func TestWeightingAndAbsMode(t *testing.T) {
	off := []float64{101, 50, 2, 4}

	p, _ := newDecay(t, Options{})
	// A shifted by 1 moves the first curve by exp(-2t) at every point.
	want := 0.0
	for _, x := range []float64{0, 0.1, 0.2, 0.4, 0.8} {
		want += math.Exp(-4 * x)
	}
	assert.InDelta(t, want, p.Value(off), 1e-9)
	assert.InDelta(t, want, p.RSS(off), 1e-9)

	w, _ := newDecay(t, Options{Weight: true})
	assert.InDelta(t, want/0.25, w.Value(off), 1e-9)
	assert.InDelta(t, want/0.25/6, w.ReducedChiSq(off), 1e-9)

	a, _ := newDecay(t, Options{AbsMode: true})
	abs := 0.0
	for _, x := range []float64{0, 0.1, 0.2, 0.4, 0.8} {
		abs += math.Exp(-2 * x)
	}
	assert.InDelta(t, abs, a.Value(off), 1e-9)

	r := p.Residuals(nil, off)
	require.Len(t, r, 10)
	assert.InDelta(t, 1, r[0], 1e-12)
	assert.InDelta(t, 0, r[9], 1e-12)
}

func TestNonFiniteValuesArePenalized(t *testing.T) {
	p, _ := newDecay(t, Options{})
	par := []float64{math.NaN(), 50, 2, 4}
	assert.InDelta(t, 5*InvalidPenalty, p.Value(par), 1)
	assert.InDelta(t, math.Sqrt(InvalidPenalty), p.Residuals(nil, par)[0], 1e-6)
}

func TestAICc(t *testing.T) {
	v, ok := AICc(10, 3, 2)
	require.True(t, ok)
	assert.InDelta(t, 10*math.Log(2)+6+24.0/6, v, 1e-12)

	_, ok = AICc(4, 3, 2)
	assert.False(t, ok)
	_, ok = AICc(3, 3, 2)
	assert.False(t, ok)
	_, ok = AICc(10, 3, 0)
	assert.False(t, ok)

	p, par := newDecay(t, Options{})
	off := append([]float64(nil), par...)
	off[0]++
	got, ok := p.AICc(off)
	require.True(t, ok)
	assert.InDelta(t, p.AIC(off)+2*4*5/5.0, got, 1e-12)
}

func TestNewRejectsBadMaps(t *testing.T) {
	eq, err := equation.Lookup(equation.Exp, "EXPAB")
	require.NoError(t, err)
	curves := decayCurves()

	_, err = New(eq, curves, [][]int{{0, 1}}, 4, Options{})
	assert.ErrorIs(t, err, ErrMapRows)

	_, err = New(eq, curves, [][]int{{0, 1, 2}, {0, 1, 2}}, 4, Options{})
	assert.ErrorIs(t, err, ErrRowWidth)

	_, err = New(eq, curves, [][]int{{0, 1}, {2, 9}}, 4, Options{})
	assert.ErrorIs(t, err, parmap.ErrIndexRange)

	curves[0].Err = curves[0].Err[:2]
	_, err = New(eq, curves, [][]int{{0, 1}, {2, 3}}, 4, Options{})
	assert.ErrorIs(t, err, dataset.ErrLengthMismatch)
}

func TestWithYAndResample(t *testing.T) {
	p, par := newDecay(t, Options{})

	y := [][]float64{make([]float64, 5), make([]float64, 5)}
	q, err := p.WithY(y)
	require.NoError(t, err)
	assert.Greater(t, q.Value(par), 0.0)
	assert.InDelta(t, 0, p.Value(par), 1e-20, "original untouched")

	_, err = p.WithY(y[:1])
	assert.ErrorIs(t, err, dataset.ErrLengthMismatch)

	r, err := p.Resample([][]int{{0, 0, 4}, {1, 2}})
	require.NoError(t, err)
	assert.Equal(t, 5, r.NPoints())
	assert.Equal(t, []float64{0, 0, 0.8}, r.Curves()[0].X[0])
	assert.InDelta(t, 0, r.Value(par), 1e-20)

	_, err = p.Resample([][]int{{}, {1}})
	assert.ErrorIs(t, err, ErrResample)
	_, err = p.Resample([][]int{{7}, {1}})
	assert.ErrorIs(t, err, ErrResample)
}
