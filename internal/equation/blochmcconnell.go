package equation

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// blochMcConnell returns the 6x6 rate matrix of two exchanging sites in the
// rotating frame, ordered (Ax, Ay, Az, Bx, By, Bz).
func blochMcConnell(p twoState, r rotating) *mat.Dense {
	k1 := p.pb * p.kex
	km1 := (1 - p.pb) * p.kex
	ω1, δA, δB := r.ω1, r.δA, r.δB
	return mat.NewDense(6, 6, []float64{
		-p.r2A - k1, -δA, 0, km1, 0, 0,
		δA, -p.r2A - k1, -ω1, 0, km1, 0,
		0, ω1, -p.r1A - k1, 0, 0, km1,
		k1, 0, 0, -p.r2B - km1, -δB, 0,
		0, k1, 0, δB, -p.r2B - km1, -ω1,
		0, 0, k1, 0, ω1, -p.r1B - km1,
	})
}

// eigenRate is R1rho taken as the magnitude of the least negative real
// eigenvalue of the Bloch-McConnell matrix. Equal candidates give the same
// rate, so ties need no ordering. Without a real eigenvalue, or if the
// decomposition fails, the rate is NaN.
func eigenRate(p twoState, r rotating) float64 {
	var eig mat.Eigen
	if !eig.Factorize(blochMcConnell(p, r), mat.EigenNone) {
		return math.NaN()
	}
	vals := eig.Values(nil)
	scale := 0.0
	for _, v := range vals {
		scale = math.Max(scale, cmplx.Abs(v))
	}
	best, found := math.Inf(-1), false
	for _, v := range vals {
		if math.Abs(imag(v)) > 1e-10*scale {
			continue
		}
		if real(v) > best {
			best, found = real(v), true
		}
	}
	if !found {
		return math.NaN()
	}
	return math.Abs(best)
}

// exactIntensity propagates the homogeneous 7x7 Bloch-McConnell equations,
// with a thermal equilibrium column, over the saturation time and returns
// the remaining longitudinal magnetization of state A.
func exactIntensity(p twoState, r rotating, tex float64) float64 {
	pa, pb := 1-p.pb, p.pb
	k1 := pb * p.kex
	km1 := pa * p.kex
	ω1, δA, δB := r.ω1, r.δA, r.δB
	z := mat.NewDense(7, 7, []float64{
		0, 0, 0, 0, 0, 0, 0,
		0, -p.r2A - k1, -δA, 0, km1, 0, 0,
		0, δA, -p.r2A - k1, -ω1, 0, km1, 0,
		2 * p.r1A * pa, 0, ω1, -p.r1A - k1, 0, 0, km1,
		0, k1, 0, 0, -p.r2B - km1, -δB, 0,
		0, 0, k1, 0, δB, -p.r2B - km1, -ω1,
		2 * p.r1B * pb, 0, 0, k1, 0, ω1, -p.r1B - km1,
	})
	z.Scale(tex, z)

	var at mat.Dense
	at.Exp(z)

	// Difference of the propagated +z and -z starting vectors, halved.
	m0 := [7]float64{0.5, 0, 0, pa, 0, 0, pb}
	m1 := [7]float64{0.5, 0, 0, -pa, 0, 0, -pb}
	var mag float64
	for _, j := range []int{0, 3, 6} {
		mag += at.At(3, j) * (m0[j] - m1[j])
	}
	return mag / 2
}
