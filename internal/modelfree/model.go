// Package modelfree implements isotropic Lipari-Szabo spectral density
// models and the R1, R2 and heteronuclear NOE rates they predict.
//
// Time constants are in ns. A model's parameter vector is
//
//	[Tau_e] model parameters [Rex]
//
// where Tau_e, the overall correlation time, is present only when it is
// fitted, and Rex only when exchange is included.
package modelfree

import (
	"fmt"
	"sort"
)

// SlowLimit separates fast from slow internal motion, in ns.
const SlowLimit = 0.15

// Model is one spectral density variant.
type Model interface {
	Name() string
	ParNames() []string
	Start() []float64
	Lower() []float64
	Upper() []float64

	// CheckConstraints reports whether internal motions are faster than
	// overall tumbling.
	CheckConstraints(par []float64) bool

	// J returns the spectral density at each angular frequency (rad/s).
	J(omegas, par []float64) []float64

	// Rex returns the exchange contribution, zero without exchange.
	Rex(par []float64) float64
}

// Options configures Build.
type Options struct {
	// FitTau adds the overall correlation time as the first parameter,
	// bounded to TauM·(1 ± TauFrac).
	FitTau  bool    `yaml:"fitTau"`
	TauM    float64 `yaml:"tauM"`
	TauFrac float64 `yaml:"tauFrac"`

	IncludeEx bool `yaml:"includeEx"`
}

type slot int

const (
	slotSf2 slot = iota
	slotTauF
	slotSs2
	slotTauS
)

var slotNames = [...]string{"Sf2", "Tau_f", "Ss2", "Tau_s"}

var models = map[string][]slot{
	"1":   {slotSf2},
	"1f":  {slotSf2, slotTauF},
	"1s":  {slotSs2, slotTauS},
	"2f":  {slotSf2, slotTauF, slotSs2},
	"2s":  {slotSf2, slotTauS, slotSs2},
	"2sf": {slotSf2, slotTauF, slotSs2, slotTauS},
	"1sf": {slotTauF, slotSs2, slotTauS},
}

// Names lists the model names.
func Names() []string {
	names := make([]string, 0, len(models))
	for n := range models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Build returns the named model.
func Build(name string, o Options) (Model, error) {
	slots, ok := models[name]
	if !ok {
		return nil, fmt.Errorf("model %q: %w", name, ErrNoSuchModel)
	}
	if !(o.TauM > 0) {
		return nil, fmt.Errorf("tauM %g: %w", o.TauM, ErrTauM)
	}
	if o.TauFrac <= 0 {
		o.TauFrac = 0.25
	}
	for _, s := range slots {
		if s == slotTauS && o.TauM/2 <= SlowLimit {
			return nil, fmt.Errorf("model %s with tauM %g ns: %w", name, o.TauM, ErrTauM)
		}
	}
	return &iso{name: name, slots: slots, o: o}, nil
}

// iso is an isotropic model defined by the motion slots it fits.
type iso struct {
	name  string
	slots []slot
	o     Options
}

// motion holds every slot; unused ones keep values that switch their term
// off.
type motion struct {
	tauM, sf2, tauF, ss2, tauS, rex float64
}

func (m *iso) read(par []float64) motion {
	mo := motion{tauM: m.o.TauM, sf2: 1, ss2: 1}
	k := 0
	if m.o.FitTau {
		mo.tauM = par[0]
		k = 1
	}
	for _, s := range m.slots {
		v := par[k]
		k++
		switch s {
		case slotSf2:
			mo.sf2 = v
		case slotTauF:
			mo.tauF = v
		case slotSs2:
			mo.ss2 = v
		case slotTauS:
			mo.tauS = v
		}
	}
	if m.o.IncludeEx {
		mo.rex = par[k]
	}
	return mo
}

func (m *iso) Name() string { return m.name }

func (m *iso) ParNames() []string {
	var names []string
	if m.o.FitTau {
		names = append(names, "Tau_e")
	}
	for _, s := range m.slots {
		names = append(names, slotNames[s])
	}
	if m.o.IncludeEx {
		names = append(names, "Rex")
	}
	return names
}

// values builds a parameter vector from per-slot values.
func (m *iso) values(tau float64, slotVal func(slot) float64, rex float64) []float64 {
	var v []float64
	if m.o.FitTau {
		v = append(v, tau)
	}
	for _, s := range m.slots {
		v = append(v, slotVal(s))
	}
	if m.o.IncludeEx {
		v = append(v, rex)
	}
	return v
}

func (m *iso) tauSHigh() float64 { return m.o.TauM / 2 }

func (m *iso) Start() []float64 {
	return m.values(m.o.TauM, func(s slot) float64 {
		switch s {
		case slotTauF:
			return 0.015
		case slotTauS:
			v := m.o.TauM / 5
			if v <= SlowLimit || v >= m.tauSHigh() {
				v = (SlowLimit + m.tauSHigh()) / 2
			}
			return v
		}
		return 0.9
	}, 2)
}

func (m *iso) Lower() []float64 {
	return m.values(m.o.TauM*(1-m.o.TauFrac), func(s slot) float64 {
		switch s {
		case slotTauF:
			return 0.001
		case slotTauS:
			return SlowLimit
		}
		return 0
	}, 0)
}

func (m *iso) Upper() []float64 {
	return m.values(m.o.TauM*(1+m.o.TauFrac), func(s slot) float64 {
		switch s {
		case slotTauF:
			return SlowLimit
		case slotTauS:
			return m.tauSHigh()
		}
		return 1
	}, 100)
}

func (m *iso) CheckConstraints(par []float64) bool {
	mo := m.read(par)
	for _, s := range m.slots {
		switch {
		case s == slotTauF && mo.tauF >= mo.tauM:
			return false
		case s == slotTauS && mo.tauS >= mo.tauM:
			return false
		}
	}
	return true
}

func (m *iso) J(omegas, par []float64) []float64 {
	return spectral(m.read(par), omegas)
}

func (m *iso) Rex(par []float64) float64 {
	return m.read(par).rex
}

func lorentz(ω2, τ float64) float64 {
	return τ / (1 + ω2*τ*τ)
}

// spectral evaluates the extended model-free spectral density
//
//	J(ω) = 2/5 [Sf²Ss² L(τm) + Sf²(1-Ss²) L(τms) + (1-Sf²)Ss² L(τmf) + (1-Sf²)(1-Ss²) L(τmfs)]
//
// with L(τ) = τ/(1+ω²τ²) and the effective times the harmonic combinations
// of τm with τs, τf or both. A zero internal time drops its terms.
func spectral(mo motion, omegas []float64) []float64 {
	tm, tf, ts := mo.tauM*1e-9, mo.tauF*1e-9, mo.tauS*1e-9
	j := make([]float64, len(omegas))
	for i, ω := range omegas {
		ω2 := ω * ω
		v := mo.sf2 * mo.ss2 * lorentz(ω2, tm)
		if ts > 0 {
			v += mo.sf2 * (1 - mo.ss2) * lorentz(ω2, tm*ts/(tm+ts))
		}
		if tf > 0 {
			v += (1 - mo.sf2) * mo.ss2 * lorentz(ω2, tm*tf/(tm+tf))
			if ts > 0 {
				t3 := tm * ts * tf / (tm*ts + tm*tf + ts*tf)
				v += (1 - mo.sf2) * (1 - mo.ss2) * lorentz(ω2, t3)
			}
		}
		j[i] = 0.4 * v
	}
	return j
}
