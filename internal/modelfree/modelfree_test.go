package modelfree

import (
	"testing"

	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustBuild(t *testing.T, name string, o Options) Model {
	t.Helper()
	m, err := Build(name, o)
	require.NoError(t, err)
	return m
}

func nh600(t *testing.T) *Relax {
	t.Helper()
	r, err := NewRelax(600e6, "H", "N")
	require.NoError(t, err)
	return r
}

func TestOneFastEqualsTwoSlowFastWithRigidSlowMotion(t *testing.T) {
	o := Options{TauM: 8}
	oneF := mustBuild(t, "1f", o)
	twoSF := mustBuild(t, "2sf", o)
	twoF := mustBuild(t, "2f", o)

	omegas := nh600(t).Omegas()
	want := oneF.J(omegas, []float64{0.85, 0.05})
	assert.InDeltaSlice(t, want, twoSF.J(omegas, []float64{0.85, 0.05, 1, 2}), 1e-25)
	assert.InDeltaSlice(t, want, twoF.J(omegas, []float64{0.85, 0.05, 1}), 1e-25)
}

func TestRigidLimit(t *testing.T) {
	m := mustBuild(t, "1", Options{TauM: 8})
	omegas := nh600(t).Omegas()
	j := m.J(omegas, []float64{1})
	// J(0) = 2/5 τm for a rigid rotor.
	assert.InEpsilon(t, 0.4*8e-9, j[0], 1e-12)
}

func TestStartInsideBounds(t *testing.T) {
	for _, fit := range []bool{false, true} {
		for _, ex := range []bool{false, true} {
			for _, name := range Names() {
				m := mustBuild(t, name, Options{TauM: 8, FitTau: fit, IncludeEx: ex})
				start, lo, hi := m.Start(), m.Lower(), m.Upper()
				require.Len(t, lo, len(start))
				require.Len(t, hi, len(start))
				assert.Len(t, m.ParNames(), len(start))
				for i := range start {
					assert.Greater(t, start[i], lo[i], "%s %s", name, m.ParNames()[i])
					assert.Less(t, start[i], hi[i], "%s %s", name, m.ParNames()[i])
				}
				assert.True(t, m.CheckConstraints(start), name)
			}
		}
	}
}

func TestParameterOrder(t *testing.T) {
	m := mustBuild(t, "2s", Options{TauM: 6, FitTau: true, IncludeEx: true})
	assert.Equal(t, []string{"Tau_e", "Sf2", "Tau_s", "Ss2", "Rex"}, m.ParNames())
	assert.Equal(t, 3.5, m.Rex([]float64{6, 0.9, 1, 0.8, 3.5}))
}

func TestBuildErrors(t *testing.T) {
	_, err := Build("3f", Options{TauM: 8})
	assert.ErrorIs(t, err, ErrNoSuchModel)

	_, err = Build("1f", Options{})
	assert.ErrorIs(t, err, ErrTauM)

	_, err = Build("2s", Options{TauM: 0.2})
	assert.ErrorIs(t, err, ErrTauM)

	_, err = NewRelax(600e6, "H", "P")
	assert.ErrorIs(t, err, ErrNucleus)
}

func TestConstraints(t *testing.T) {
	m := mustBuild(t, "1s", Options{TauM: 2, FitTau: true, TauFrac: 0.5})
	assert.True(t, m.CheckConstraints([]float64{2, 0.8, 0.9}))
	assert.False(t, m.CheckConstraints([]float64{1.2, 0.8, 1.5}))
}

func TestRatesArePhysical(t *testing.T) {
	r := nh600(t)
	m := mustBuild(t, "1f", Options{TauM: 8, IncludeEx: true})
	par := []float64{0.85, 0.05, 0}
	j := m.J(r.Omegas(), par)

	r1, r2, noe := r.R1(j), r.R2(j, m.Rex(par)), r.NOE(j)
	assert.True(t, r1 > 0.5 && r1 < 2, "R1 %g", r1)
	assert.True(t, r2 > 8 && r2 < 25, "R2 %g", r2)
	assert.True(t, noe > 0.5 && noe < 0.95, "NOE %g", noe)

	par[2] = 3
	assert.InDelta(t, r2+3, r.R2(j, m.Rex(par)), 1e-12)
}

func synthetic(t *testing.T, m Model, par []float64, fields ...float64) Data {
	t.Helper()
	d := Data{ID: "12", ElemI: "H", ElemS: "N"}
	for _, f := range fields {
		d.Values = append(d.Values, Value{FieldMHz: f})
	}
	calc, err := Calc(m, d, par)
	require.NoError(t, err)
	for i, c := range calc {
		v := &d.Values[i]
		v.R1, v.R2, v.NOE = c[0], c[1], c[2]
		v.R1Err, v.R2Err, v.NOEErr = 0.02*c[0], 0.02*c[1], 0.02
	}
	return d
}

func TestFitRecoversParameters(t *testing.T) {
	m := mustBuild(t, "1f", Options{TauM: 8})
	d := synthetic(t, m, []float64{0.85, 0.05}, 600, 800)

	s := optimizer.DefaultSettings()
	s.Tolerance = -10
	res, err := Fit(m, d, 0, s)
	require.NoError(t, err)
	assert.Equal(t, 6, res.N)
	assert.InDelta(t, 0.85, res.Pars[0], 0.01)
	assert.InDelta(t, 0.05, res.Pars[1], 0.01)
	assert.Less(t, res.ChiSq, 1e-3)
	assert.True(t, res.AICcValid)
}

func TestFitRejectsBadErrors(t *testing.T) {
	m := mustBuild(t, "1", Options{TauM: 8})
	d := synthetic(t, m, []float64{0.85}, 600)
	d.Values[0].NOEErr = 0
	_, err := Fit(m, d, 0, optimizer.DefaultSettings())
	assert.ErrorIs(t, err, ErrData)

	_, err = Fit(m, Data{ID: "x", ElemI: "H", ElemS: "N"}, 0, optimizer.DefaultSettings())
	assert.ErrorIs(t, err, ErrData)
}

func TestSelectIsDeterministic(t *testing.T) {
	o := Options{TauM: 8}
	d := synthetic(t, mustBuild(t, "1f", o), []float64{0.85, 0.05}, 500, 600, 800)

	names := []string{"1", "1f", "2f"}
	first, all, err := Select(names, o, d, 0, optimizer.DefaultSettings())
	require.NoError(t, err)
	assert.Len(t, all, 3)
	// The single parameter model cannot describe fast motion.
	assert.NotEqual(t, "1", first.Model)

	again, _, err := Select(names, o, d, 0, optimizer.DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, first.Model, again.Model)
	assert.Equal(t, first.Pars, again.Pars)
}
