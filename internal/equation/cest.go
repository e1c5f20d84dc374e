package equation

import (
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
)

// intensityFunc returns the CEST intensity of one point after saturating
// for tex seconds.
type intensityFunc func(p twoState, r rotating, tex float64) float64

// fromRate turns an R1rho approximation into a CEST intensity.
func fromRate(rate rateFunc) intensityFunc {
	return func(p twoState, r rotating, tex float64) float64 {
		return r.cos2(p.pb) * math.Exp(-tex*rate(p, r))
	}
}

// B1 inhomogeneity profile: 11 weights over ±2 standard deviations of a
// 20 % spread in field strength.
var (
	sdWeights = normalize([]float64{
		0.022, 0.0444, 0.0777, 0.1159, 0.1473, 0.1596,
		0.1473, 0.1159, 0.0777, 0.0444, 0.0216,
	})
	sdOmega = 0.2
)

func normalize(w []float64) []float64 {
	sum := 0.0
	for _, v := range w {
		sum += v
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

// inhomogeneous averages the Trott-Palmer intensity over the B1 profile.
func inhomogeneous(p twoState, r rotating, tex float64) float64 {
	n := len(sdWeights)
	mag := 0.0
	for i, w := range sdWeights {
		frac := -2*sdOmega + float64(i)*4*sdOmega/float64(n-1)
		ri := r
		ri.ω1 = r.ω1 * (1 + frac)
		mag += w * ri.cos2(p.pb) * math.Exp(-tex*trottPalmer(p, ri))
	}
	return mag
}

func init() {
	register(cestFamily{meta{"TROTT_PALMER", CEST, twoStateLayout("R1")}, fromRate(trottPalmer)})
	register(cestFamily{meta{"SD", CEST, twoStateLayout("R1")}, inhomogeneous})
	register(cestFamily{meta{"BALDWINKAY", CEST, twoStateLayout("R1")}, fromRate(baldwinKay)})
	register(cestFamily{meta{"LAGUERRE", CEST, twoStateLayout("R1", "R2")}, fromRate(laguerre)})
	register(cestFamily{meta{"EIGENEXACT1", CEST, twoStateLayout("R1")}, fromRate(eigenRate)})
	register(cestFamily{meta{"EXACT0", CEST, twoStateLayout()}, exactIntensity})
	register(cestNoEx{meta{"NOEX", CEST, noExLayout}})
}

// cestFamily evaluates two-state exchange for x = (offset ppm, B1 Hz
// [, Tex s]).
type cestFamily struct {
	meta
	intensity intensityFunc
}

func (f cestFamily) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	p := readTwoState(par, row)
	r := rotatingFrame(x[0], x[1], field, p.dA0, p.dB0)
	return f.intensity(p, r, tex(x))
}

func (f cestFamily) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return exchangeGuess(curves, m, CEST)
}

func (f cestFamily) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i, row := range m {
		lo[row[0]], hi[row[0]] = 1, math.Max(4*g[row[0]], 2)
		lo[row[1]], hi[row[1]] = 0.01, 0.25
		for _, j := range row[2:4] {
			lo[j], hi[j] = span(g[j], 1)
		}
		tex := texOf(&curves[i])
		for _, j := range row[4:6] {
			lo[j], hi[j] = r1Boundaries(g[j], tex, 0.1)
		}
		for _, j := range row[6:] {
			lo[j], hi[j] = span(g[j], 1)
		}
	}
	return lo, hi
}

// tex reads the saturation time from x, falling back to DefaultTex.
func tex(x []float64) float64 {
	if len(x) > 2 && x[2] > 0 {
		return x[2]
	}
	return DefaultTex
}

// cestNoEx is a single site without exchange.
type cestNoEx struct{ meta }

func (cestNoEx) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	p := twoState{dA0: par[row[0]], r1A: par[row[1]], r2A: par[row[2]]}
	r := rotatingFrame(x[0], x[1], field, p.dA0, p.dA0)
	return r.cos2(0) * math.Exp(-tex(x)*noExchange(p, r))
}

func (cestNoEx) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return noExGuess(curves, m, CEST)
}

func (cestNoEx) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i, row := range m {
		c := &curves[i]
		w := peakWidths(c, CEST)
		lo[row[0]], hi[row[0]] = g[row[0]]-w[0], g[row[0]]+w[0]
		lo[row[1]], hi[row[1]] = r1Boundaries(g[row[1]], texOf(c), 0.1)
		lo[row[2]], hi[row[2]] = math.Min(0.1, g[row[2]]/2), math.Max(4*g[row[2]], 200)
	}
	return lo, hi
}
