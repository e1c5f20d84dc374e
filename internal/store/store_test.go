package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sample() []*fit.Result {
	return []*fit.Result{{
		Equation: "CPMGFAST",
		Curves: []fit.CurveResult{
			{ID: "12", State: []int{0, 0, 0, 0}, Values: map[string]float64{"Kex": 950, "Kex.sd": 40, "R2": 10.2}},
			{ID: "12", State: []int{0, 1, 0, 0}, Values: map[string]float64{"Kex": 950, "R2": 12.5, "AICc": math.NaN()}},
		},
	}}
}

func TestSaveAndLoad(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()
	opts := fit.DefaultOptions()
	opts.SampleSize = 77

	id, err := s.SaveRun(ctx, "cpmg", opts, sample())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	rows, err := s.Results(ctx, id)
	require.NoError(t, err)
	// The NaN AICc is not stored.
	require.Len(t, rows, 5)
	assert.Equal(t, Row{Residue: "12", Curve: 0, Equation: "CPMGFAST", Name: "Kex", Value: 950}, rows[0])
	assert.Equal(t, "R2", rows[4].Name)
	assert.Equal(t, 1, rows[4].Curve)
	assert.Equal(t, 12.5, rows[4].Value)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, "cpmg", runs[0].Kind)
	assert.Equal(t, opts, runs[0].Options)
}

func TestRunsAreSeparate(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	a, err := s.SaveRun(ctx, "cpmg", fit.DefaultOptions(), sample())
	require.NoError(t, err)
	b, err := s.SaveRun(ctx, "cpmg", fit.DefaultOptions(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	rows, err := s.Results(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, rows)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunLookup(t *testing.T) {
	s := tempStore(t)
	ctx := context.Background()

	_, err := s.Run(ctx, "")
	assert.ErrorIs(t, err, ErrNoRun)

	first, err := s.SaveRun(ctx, "cpmg", fit.DefaultOptions(), sample())
	require.NoError(t, err)
	second, err := s.SaveRun(ctx, "cest", fit.DefaultOptions(), sample())
	require.NoError(t, err)

	r, err := s.Run(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "cpmg", r.Kind)

	r, err = s.Run(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second, r.ID)

	_, err = s.Run(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoRun)
}
