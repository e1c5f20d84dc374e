package modelfree

import (
	"fmt"
	"math"
)

// Physical constants in SI units.
const (
	Mu0    = 4.0e-7 * math.Pi
	GammaH = 2.6752218744e8
	GammaN = -2.7116e7
	GammaC = 6.72828e7
	GammaD = 4.1065e7
	Hbar   = 1.0546e-34
	RNH    = 1.02e-10
	RCH    = 1.09e-10
	CSA    = -172.0e-6
)

var gammas = map[string]float64{"H": GammaH, "N": GammaN, "C": GammaC, "D": GammaD}

var bonds = map[string]float64{"HN": RNH, "NH": RNH, "HC": RCH, "CH": RCH}

// Indices into the frequency list returned by Relax.Omegas.
const (
	j0 = iota
	jS
	jImS
	jI
	jIpS
)

// Relax computes relaxation rates of heteronucleus S coupled to proton I at
// one spectrometer field.
type Relax struct {
	SF             float64 // proton frequency, Hz
	GammaI, GammaS float64
	WI, WS         float64
	D2, C2         float64
}

// NewRelax returns the rate equations for a proton frequency sf in Hz and a
// bonded pair such as "H","N".
func NewRelax(sf float64, elemI, elemS string) (*Relax, error) {
	gI, okI := gammas[elemI]
	gS, okS := gammas[elemS]
	r, okR := bonds[elemI+elemS]
	if !okI || !okS || !okR || elemI != "H" {
		return nil, fmt.Errorf("%s-%s: %w", elemI, elemS, ErrNucleus)
	}
	wI := sf * 2 * math.Pi
	wS := wI * gS / gI
	d := Mu0 * gI * gS * Hbar / (4 * math.Pi * r * r * r)
	c := wS * CSA / math.Sqrt(3)
	return &Relax{SF: sf, GammaI: gI, GammaS: gS, WI: wI, WS: wS, D2: d * d, C2: c * c}, nil
}

// Omegas returns the frequencies 0, ωS, ωI-ωS, ωI and ωI+ωS.
func (r *Relax) Omegas() []float64 {
	return []float64{0, r.WS, r.WI - r.WS, r.WI, r.WI + r.WS}
}

// R1 is the longitudinal rate from the five spectral densities.
func (r *Relax) R1(j []float64) float64 {
	dip := r.D2 / 4 * (j[jImS] + 3*j[jS] + 6*j[jIpS])
	return dip + r.C2*j[jS]
}

// R2 is the transverse rate, plus exchange.
func (r *Relax) R2(j []float64, rex float64) float64 {
	dip := r.D2 / 8 * (4*j[j0] + j[jImS] + 3*j[jS] + 6*j[jI] + 6*j[jIpS])
	csa := r.C2 / 6 * (4*j[j0] + 3*j[jS])
	return dip + csa + rex
}

// NOE is the steady state heteronuclear NOE.
func (r *Relax) NOE(j []float64) float64 {
	return 1 + r.D2/(4*r.R1(j))*(r.GammaI/r.GammaS)*(6*j[jIpS]-j[jImS])
}
