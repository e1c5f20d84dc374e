package equation

import (
	"math"
	"math/cmplx"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
)

// CPMGMaxFreq caps the exchange rate of CPMG fits, in 1/s.
const CPMGMaxFreq = 3000.0

// kexHalfMax solves the fast exchange dispersion for the pulse rate at which
// half of Rex is refocused.
const kexHalfMax = 1.915

var (
	r2Dims   = []int{dataset.DimResidue, dataset.DimField, dataset.DimNucleus}
	dPPMDims = []int{dataset.DimResidue, dataset.DimNucleus}
)

func init() {
	register(cpmgNoEx{meta{"NOEX", CPMG, parmap.Layout{
		{Name: "R2", Dims: r2Dims},
	}}})
	register(cpmgFast{meta{"CPMGFAST", CPMG, parmap.Layout{
		{Name: "Kex", Group: true},
		{Name: "R2", Dims: r2Dims},
		{Name: "dPPMmin", Dims: dPPMDims},
	}}})
	register(cpmgSlow{meta{"CPMGSLOW", CPMG, parmap.Layout{
		{Name: "Kex", Group: true},
		{Name: "pA", Group: true},
		{Name: "R2", Dims: r2Dims},
		{Name: "dPPM", Dims: dPPMDims},
	}}})
	register(cpmgMQ{meta{"CPMGMQ", CPMG, parmap.Layout{
		{Name: "Kex", Group: true},
		{Name: "pA", Group: true},
		{Name: "R2", Dims: r2Dims},
		{Name: "deltaCPPM", Dims: dPPMDims},
		{Name: "deltaHPPM", Dims: dPPMDims},
	}}})
}

type cpmgNoEx struct{ meta }

func (cpmgNoEx) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	return par[row[0]]
}

func (cpmgNoEx) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	g := make([]float64, nPars(m))
	for i, c := range curves {
		g[m[i][0]] = meanY(c.Y)
	}
	return g, nil
}

func (cpmgNoEx) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i := range g {
		lo[i], hi[i] = span(g[i], 1)
	}
	return lo, hi
}

func (cpmgNoEx) Rex([]float64, []int, float64) float64 { return 0 }

type cpmgFast struct{ meta }

// Calculate is the Luz-Meiboom fast exchange limit. At kEx <= 0 the curve
// is flat at R2.
func (cpmgFast) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	kEx, r2, dPPMmin := par[row[0]], par[row[1]], par[row[2]]
	if kEx <= 0 {
		return r2
	}
	τcp := 1 / (2 * x[0])
	dω := 2 * math.Pi * dPPMmin * field
	rex := dω * dω / 4 / kEx
	return r2 + rex*(1-2*math.Tanh(0.5*kEx*τcp)/(kEx*τcp))
}

func (cpmgFast) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	g := make([]float64, nPars(m))
	kexSum := 0.0
	for i, c := range curves {
		lo, hi := minY(c.Y), maxY(c.Y)
		vMid := midValue(c.Y, c.X[0])
		rex := math.Max(hi-lo, 0)
		τMid := 1 / (2 * vMid)
		kEx := positive(kexHalfMax/(0.5*τMid), 100)
		dPPM := math.Sqrt(4*rex/(c.Field*c.Field)*kEx) / (2 * math.Pi)

		g[m[i][1]] = positive(0.95*lo, 1)
		g[m[i][2]] = positive(dPPM, 0.01)
		kexSum += kEx
	}
	g[m[0][0]] = kexSum / float64(len(curves))
	if g[m[0][0]] > CPMGMaxFreq {
		g[m[0][0]] = 0.9 * CPMGMaxFreq
	}
	return g, nil
}

func (cpmgFast) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for _, row := range m {
		k := row[0]
		lo[k], hi[k] = 0, math.Min(4*g[k], CPMGMaxFreq)
		for _, j := range row[1:] {
			lo[j], hi[j] = span(g[j], 1e-3)
		}
	}
	return lo, hi
}

// Rex is the full exchange contribution dω²/4kEx.
func (cpmgFast) Rex(par []float64, row []int, field float64) float64 {
	kEx := par[row[0]]
	if kEx <= 0 {
		return 0
	}
	dω := 2 * math.Pi * par[row[2]] * field
	return dω * dω / 4 / kEx
}

type cpmgSlow struct{ meta }

// Calculate is the Carver-Richards two-site expression valid at all
// exchange rates.
func (cpmgSlow) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	kEx, pA, r2, dPPM := par[row[0]], par[row[1]], par[row[2]], par[row[3]]
	if kEx <= 0 {
		return r2
	}
	pB := 1 - pA
	pΔ := pA - pB
	dω := dPPM * field * 2 * math.Pi
	τcp := 1 / (2 * x[0])

	psi := (pΔ*kEx)*(pΔ*kEx) - dω*dω + 4*pA*pB*kEx*kEx
	zeta := -2 * dω * kEx * pΔ
	eta1 := math.Sqrt(psi*psi + zeta*zeta)
	etaP := τcp / math.Sqrt2 * math.Sqrt(eta1+psi)
	etaM := τcp / math.Sqrt2 * math.Sqrt(eta1-psi)
	d1 := (psi + 2*dω*dω) / eta1
	dP := 0.5 * (d1 + 1)
	dM := 0.5 * (d1 - 1)
	ch := dP*math.Cosh(etaP) - dM*math.Cos(etaM)
	return r2 + 0.5*(kEx-math.Acosh(ch)/τcp)
}

func (cpmgSlow) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return slowGuess(curves, m, false), nil
}

func (cpmgSlow) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	return slowBounds(g, m)
}

func (f cpmgSlow) Rex(par []float64, row []int, field float64) float64 {
	return f.Calculate(par, row, []float64{10}, field) - f.Calculate(par, row, []float64{1e4}, field)
}

const paGuess = 0.95

func slowGuess(curves []dataset.Curve, m [][]int, mq bool) []float64 {
	g := make([]float64, nPars(m))
	kexSum := 0.0
	for i, c := range curves {
		r2 := positive(0.95*minY(c.Y), 1)
		rex := math.Max(maxY(c.Y)-r2, 0)
		vMid := midValue(c.Y, c.X[0])
		kEx := positive(kexHalfMax/(0.5/(2*vMid)), 100)
		if kEx > CPMGMaxFreq {
			kEx = 0.9 * CPMGMaxFreq
		}
		dω2 := rex / (paGuess * (1 - paGuess)) * kEx
		g[m[i][2]] = r2
		g[m[i][3]] = positive(math.Sqrt(dω2)/(2*math.Pi)/c.Field, 0.01)
		if mq {
			g[m[i][4]] = 0.1
		}
		kexSum += kEx
	}
	g[m[0][0]] = kexSum / float64(len(curves))
	g[m[0][1]] = paGuess
	return g
}

func slowBounds(g []float64, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for _, row := range m {
		k := row[0]
		lo[k], hi[k] = 0, math.Min(4*g[k], CPMGMaxFreq)
		lo[row[1]], hi[row[1]] = 0.5, 0.999
		for _, j := range row[2:] {
			lo[j], hi[j] = span(g[j], 1e-3)
		}
	}
	return lo, hi
}

// cpmgMQ is the multiple-quantum dispersion of Korzhnev et al. (2004) for
// 1H-13C methyl groups. x is (vCPMG Hz, 1H field MHz, constant time s); a
// zero proton field or time drops the corresponding terms.
type cpmgMQ struct{ meta }

func (cpmgMQ) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	kEx, pA, r2 := par[row[0]], par[row[1]], par[row[2]]
	dCPPM, dHPPM := par[row[3]], par[row[4]]
	pB := 1 - pA

	var fieldH, tau float64
	if len(x) > 1 {
		fieldH = x[1]
	}
	if len(x) > 2 {
		tau = x[2]
	}
	dC := 2 * math.Pi * dCPPM * field
	dH := 0.0
	if fieldH > 1e-6 {
		dH = 2 * math.Pi * dHPPM * fieldH
	}
	delta := 1 / (4 * x[0])

	num1 := complex((pA-pB)*kEx, dH)
	zeta := num1 * complex(-2*dC, 0)
	psi := num1*num1 - complex(dC*dC-4*pA*pB*kEx*kEx, 0)
	num2 := cmplx.Sqrt(psi*psi + zeta*zeta)
	etaP := cmplx.Sqrt(num2+psi) * complex(math.Sqrt2*delta, 0)
	etaM := cmplx.Sqrt(num2-psi) * complex(math.Sqrt2*delta, 0)
	ratio := (psi + complex(2*dC*dC, 0)) / num2
	dPlus := (ratio + 1) * 0.5
	dMinus := (ratio - 1) * 0.5
	num3 := dPlus*cmplx.Cosh(etaP) - dMinus*cmplx.Cos(etaM)
	acosh := cmplx.Log(num3 + cmplx.Sqrt(num3+1)*cmplx.Sqrt(num3-1))
	lambda1 := (acosh/complex(-2*delta, 0)+complex(kEx, 0))*0.5 + complex(r2, 0)

	dP := complex(dH+dC, kEx)
	dM := complex(dH+dC, -kEx)
	zP := complex(dH-dC, kEx)
	zM := complex(dH-dC, -kEx)
	num4 := complex(0, kEx*math.Sqrt(pA*pB))
	d := complex(delta, 0)
	twoDC := complex(2*dC, 0)

	mZ := -(dM - twoDC*cmplx.Sin(dM*d)/cmplx.Sin((dM+zM)*d)) * (num4 / (dM * zM))
	mD := (zP + twoDC*cmplx.Sin(zP*d)/cmplx.Sin((dP+zP)*d)) * (num4 / (dP * zP))
	q := real(1 - mD*mD + mD*mZ - mZ*mZ + (mD+mZ)*complex(0.5*math.Sqrt(pB/pA), 0))

	if tau > 1e-6 {
		return real(lambda1) - math.Log(q)/tau
	}
	return real(lambda1)
}

func (cpmgMQ) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	return slowGuess(curves, m, true), nil
}

func (cpmgMQ) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	return slowBounds(g, m)
}

func (f cpmgMQ) Rex(par []float64, row []int, field float64) float64 {
	return f.Calculate(par, row, []float64{10}, field) - f.Calculate(par, row, []float64{1e4}, field)
}
