package plotting

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
	"github.com/HamletTheHamster/relaxfit/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decayFit(t *testing.T) (*fit.Result, []dataset.Curve, equation.Family) {
	t.Helper()
	eq, err := equation.Lookup(equation.Exp, "EXPAB")
	require.NoError(t, err)
	c := dataset.Curve{
		ID:    "4",
		Field: 60.8,
		X:     [][]float64{{0, 0.1, 0.2, 0.4}},
		Y:     []float64{100, 82, 67, 45},
		Err:   []float64{2, 2, 2, 2},
	}
	m, err := parmap.Simple(eq.Layout(), 1)
	require.NoError(t, err)
	return &fit.Result{Equation: "EXPAB", Pars: []float64{100, 2}, Map: m}, []dataset.Curve{c}, eq
}

func TestSplitSeries(t *testing.T) {
	c := dataset.Curve{
		X: [][]float64{
			{-2, -1, 0, -2, -1},
			{25, 25, 25, 50, 50},
		},
		Y:   make([]float64, 5),
		Err: make([]float64, 5),
	}
	s := splitSeries(&c)
	require.Len(t, s, 2)
	assert.Equal(t, []float64{25}, s[0].rest)
	assert.Equal(t, []int{0, 1, 2}, s[0].idx)
	assert.Equal(t, []int{3, 4}, s[1].idx)
}

func TestFitLine(t *testing.T) {
	r, curves, eq := decayFit(t)
	line := fitLine(eq, r.Pars, r.Map[0], curves[0].Field, []float64{0.4, 0}, nil)
	require.Len(t, line, FitPoints)
	assert.Equal(t, 0.0, line[0].X)
	assert.InDelta(t, 0.4, line[FitPoints-1].X, 1e-12)
	assert.InDelta(t, 100, line[0].Y, 1e-9)
}

func TestFitFigureSaves(t *testing.T) {
	r, curves, eq := decayFit(t)
	p, err := FitFigure(r, curves, eq)
	require.NoError(t, err)
	assert.Equal(t, "EXPAB  residue 4", p.Title.Text)

	dir := RunDir(t.TempDir(), time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC))
	assert.True(t, filepath.IsAbs(dir))
	assert.Equal(t, "14:07:09", filepath.Base(dir))
	require.NoError(t, Save(p, dir, "decay"))
	for _, ext := range []string{".png", ".svg", ".pdf"} {
		st, err := os.Stat(filepath.Join(dir, "decay"+ext))
		require.NoError(t, err)
		assert.Greater(t, st.Size(), int64(0))
	}
}

func TestFitFigureMismatch(t *testing.T) {
	r, curves, eq := decayFit(t)
	_, err := FitFigure(r, append(curves, curves[0]), eq)
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestWriteLog(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	require.NoError(t, WriteLog(dir, []string{"a\n", "b\n"}))
	b, err := os.ReadFile(filepath.Join(dir, "log.txt"))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(b))
}

func TestProfiles(t *testing.T) {
	rows := []store.Row{
		{Residue: "12", Curve: 0, Name: "Kex", Value: 950},
		{Residue: "12", Curve: 0, Name: "Kex.sd", Value: 40},
		{Residue: "12", Curve: 1, Name: "R2", Value: 12.5},
		{Residue: "3", Curve: 0, Name: "Kex", Value: 800},
		{Residue: "W5sc", Curve: 0, Name: "Kex", Value: 700},
		{Residue: "3", Curve: 1, Name: "R2", Value: 9},
	}

	all := Profiles(rows, nil)
	require.Len(t, all, 2)
	assert.Equal(t, "Kex curve 0", all[0].Label)
	assert.Equal(t, []float64{3, 12, 13}, all[0].X)
	assert.Equal(t, []float64{800, 950, 700}, all[0].Y)
	assert.Equal(t, "R2 curve 1", all[1].Label)
	assert.Equal(t, []float64{3, 12}, all[1].X)

	sd := Profiles(rows, []string{"Kex.sd"})
	require.Len(t, sd, 1)
	assert.Equal(t, []float64{40}, sd[0].Y)

	assert.Empty(t, Profiles(rows, []string{"dw"}))
}
