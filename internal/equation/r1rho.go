package equation

import (
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
)

// twoState holds the parameters of two-site exchange between a major state
// A and a minor state B. Shifts are in ppm.
type twoState struct {
	kex, pb  float64
	dA0, dB0 float64
	r1A, r1B float64
	r2A, r2B float64
}

func readTwoState(par []float64, row []int) twoState {
	return twoState{
		kex: par[row[0]], pb: par[row[1]],
		dA0: par[row[2]], dB0: par[row[3]],
		r1A: par[row[4]], r1B: par[row[5]],
		r2A: par[row[6]], r2B: par[row[7]],
	}
}

// rotating holds the angular frequencies of one irradiation point.
type rotating struct {
	ω1     float64 // B1 field
	δA, δB float64 // offsets of the two states from the carrier
}

func rotatingFrame(offset, b1, field, dA0, dB0 float64) rotating {
	return rotating{
		ω1: 2 * math.Pi * b1,
		δA: (dA0 - offset) * field * 2 * math.Pi,
		δB: (dB0 - offset) * field * 2 * math.Pi,
	}
}

// cos2 returns the squared cosine of the effective field tilt for the
// population averaged offset.
func (r rotating) cos2(pb float64) float64 {
	ωBar := (1-pb)*r.δA + pb*r.δB
	we2 := r.ω1*r.ω1 + ωBar*ωBar
	return ωBar * ωBar / we2
}

// rateFunc computes R1rho for one point.
type rateFunc func(p twoState, r rotating) float64

// trottPalmer is the Trott-Palmer perturbation result. It allows R2A and
// R2B to differ.
func trottPalmer(p twoState, r rotating) float64 {
	pa := 1 - p.pb
	k1, km1 := p.pb*p.kex, pa*p.kex
	dR := math.Abs(p.r2B - p.r2A)
	dω := r.δB - r.δA
	ω2 := r.ω1 * r.ω1
	weA2 := ω2 + r.δA*r.δA
	weB2 := ω2 + r.δB*r.δB
	sin2 := ω2 / weA2
	x := (dω*dω+dR*dR)*km1 + dR*(weA2+km1*km1)
	y := km1*(weB2+(km1+dR)*(km1+dR)) + dR*ω2
	return (1-sin2)*p.r1A + sin2*p.r2A + sin2*k1*x/y
}

// noExchange is the single-site rate with the tilt of state A.
func noExchange(p twoState, r rotating) float64 {
	ω2 := r.ω1 * r.ω1
	sin2 := ω2 / (ω2 + r.δA*r.δA)
	return (1-sin2)*p.r1A + sin2*p.r2A
}

// baldwinKay is the Baldwin-Kay first-order eigenvalue approximation.
func baldwinKay(p twoState, r rotating) float64 {
	pa, pb, kex := 1-p.pb, p.pb, p.kex
	dR := p.r2B - p.r2A
	dω := r.δB - r.δA
	ω2 := r.ω1 * r.ω1
	ωBar := pa*r.δA + pb*r.δB
	weA2 := ω2 + r.δA*r.δA
	weB2 := ω2 + r.δB*r.δB
	we2 := ω2 + ωBar*ωBar
	sin2 := ω2 / we2
	cos2 := 1 - sin2
	tan2 := sin2 / cos2

	f1p := pa * pb * dω * dω
	f2p := kex*kex + ω2 + r.δA*r.δA*r.δB*r.δB/(ωBar*ωBar)
	dp := kex*kex + weA2*weB2/we2
	f1 := pb * (weA2 + kex*kex + dR*pa*kex)
	f2 := 2*kex + ω2/kex + dR*pa
	f3 := 3*pb*kex + (2*pa*kex+ω2/kex+dR+dR*pb*pb*kex*kex/weA2)*(weA2/ω2)
	den := dp + dR*f3*sin2
	c1 := (f2p + (f1p+dR*(f3-f2))*tan2) / den
	c2 := (dp/sin2 - f2p/tan2 - f1p + dR*f2) / den
	rex := (f1p*kex + dR*f1) / den
	return c1*p.r1A*cos2 + sin2*(c2*p.r2A+rex)
}

// laguerre is the Miloushev-Palmer second-order approximation. Only the
// population averaged intrinsic rates enter.
func laguerre(p twoState, r rotating) float64 {
	pa, pb, kex := 1-p.pb, p.pb, p.kex
	r1Bar := pa*p.r1A + pb*p.r1B
	r2Bar := pa*p.r2A + pb*p.r2B
	dω := r.δB - r.δA
	ω2 := r.ω1 * r.ω1
	ωBar := pa*r.δA + pb*r.δB
	weA2 := ω2 + r.δA*r.δA
	weB2 := ω2 + r.δB*r.δB
	we2 := ω2 + ωBar*ωBar
	sin2 := ω2 / we2
	x := pa * pb * dω * dω * sin2
	y := weA2*weB2/we2 + kex*kex
	z := x * (1 + 2*kex*kex*(pa*weA2+pb*weB2)/(weA2*weB2+we2*kex*kex))
	return (1-sin2)*r1Bar + sin2*r2Bar + kex*x/(y-z)
}

var twoStateNames = []string{"Kex", "Pb", "deltaA0", "deltaB0", "R1A", "R1B", "R2A", "R2B"}

// twoStateLayout shares Kex and Pb, gives every residue its own shifts and
// rates and ties the named columns to their state A partner.
func twoStateLayout(tie ...string) parmap.Layout {
	l := parmap.Layout{
		{Name: "Kex", Group: true},
		{Name: "Pb", Group: true},
	}
	tied := map[string]string{}
	for _, t := range tie {
		tied[t[:2]+"B"] = t[:2] + "A"
	}
	for _, n := range twoStateNames[2:] {
		c := parmap.Column{Name: n, Dims: []int{dataset.DimResidue}}
		if src, ok := tied[n]; ok {
			c.Dims = nil
			c.Same = src
		}
		l = append(l, c)
	}
	return l
}

var noExLayout = parmap.Layout{
	{Name: "deltaA0", Dims: []int{dataset.DimResidue}},
	{Name: "R1A", Dims: []int{dataset.DimResidue}},
	{Name: "R2A", Dims: []int{dataset.DimResidue}},
}

func init() {
	register(r1rhoFamily{meta{"R1RHO_PERTURBATION", R1rho, twoStateLayout("R1")}, trottPalmer})
	register(r1rhoFamily{meta{"R1RHO_BALDWINKAY", R1rho, twoStateLayout("R1")}, baldwinKay})
	register(r1rhoFamily{meta{"R1RHO_LAGUERRE", R1rho, twoStateLayout("R1", "R2")}, laguerre})
	register(r1rhoFamily{meta{"R1RHO_EXACT", R1rho, twoStateLayout("R1")}, eigenRate})
	register(r1rhoNoEx{meta{"R1RHO_PERTURBATION_NOEX", R1rho, noExLayout}})
}

// r1rhoFamily returns R1rho directly for x = (offset ppm, B1 Hz).
type r1rhoFamily struct {
	meta
	rate rateFunc
}

func (f r1rhoFamily) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	p := readTwoState(par, row)
	return f.rate(p, rotatingFrame(x[0], x[1], field, p.dA0, p.dB0))
}

func (f r1rhoFamily) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return exchangeGuess(curves, m, R1rho)
}

func (f r1rhoFamily) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i, row := range m {
		pk := peakWidths(&curves[i], R1rho)
		lo[row[0]], hi[row[0]] = 1, math.Max(500, 4*g[row[0]])
		lo[row[1]], hi[row[1]] = 0.01, 0.25
		lo[row[2]], hi[row[2]] = g[row[2]]-pk[0], g[row[2]]+pk[0]
		lo[row[3]], hi[row[3]] = g[row[3]]-pk[1], g[row[3]]+pk[1]
		for _, j := range []int{row[4], row[5]} {
			lo[j], hi[j] = span(g[j], 0.1)
		}
		for _, j := range []int{row[6], row[7]} {
			lo[j], hi[j] = math.Min(1, g[j]/2), math.Max(250, 4*g[j])
		}
	}
	return lo, hi
}

type r1rhoNoEx struct{ meta }

func (r1rhoNoEx) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	p := twoState{dA0: par[row[0]], r1A: par[row[1]], r2A: par[row[2]]}
	return noExchange(p, rotatingFrame(x[0], x[1], field, p.dA0, p.dA0))
}

func (r1rhoNoEx) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return noExGuess(curves, m, R1rho)
}

func (r1rhoNoEx) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i, row := range m {
		pk := peakWidths(&curves[i], R1rho)
		lo[row[0]], hi[row[0]] = g[row[0]]-pk[0], g[row[0]]+pk[0]
		lo[row[1]], hi[row[1]] = span(g[row[1]], 0.1)
		lo[row[2]], hi[row[2]] = math.Min(0.1, g[row[2]]/2), math.Max(250, 4*g[row[2]])
	}
	return lo, hi
}
