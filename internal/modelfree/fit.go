package modelfree

import (
	"fmt"
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/objective"
	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
)

// Value is one set of rates measured at one field.
type Value struct {
	FieldMHz float64 `yaml:"fieldMHz"` // proton frequency
	R1       float64 `yaml:"r1"`
	R1Err    float64 `yaml:"r1Err"`
	R2       float64 `yaml:"r2"`
	R2Err    float64 `yaml:"r2Err"`
	NOE      float64 `yaml:"noe"`
	NOEErr   float64 `yaml:"noeErr"`
}

// Data holds the rates of one bond vector.
type Data struct {
	ID     string  `yaml:"id"`
	ElemI  string  `yaml:"elemI"`
	ElemS  string  `yaml:"elemS"`
	Values []Value `yaml:"values"`
}

// Result is a fitted model.
type Result struct {
	ID        string
	Model     string
	ParNames  []string
	Pars      []float64
	ChiSq     float64
	AICc      float64
	AICcValid bool
	N         int
}

// Calc returns the predicted R1, R2 and NOE of model m at each field of d.
func Calc(m Model, d Data, par []float64) ([][3]float64, error) {
	out := make([][3]float64, len(d.Values))
	for i, v := range d.Values {
		r, err := NewRelax(v.FieldMHz*1e6, d.ElemI, d.ElemS)
		if err != nil {
			return nil, err
		}
		j := m.J(r.Omegas(), par)
		out[i] = [3]float64{r.R1(j), r.R2(j, m.Rex(par)), r.NOE(j)}
	}
	return out, nil
}

// problem is the error weighted chi-square of a model against data.
type problem struct {
	m     Model
	d     Data
	relax []*Relax
}

func newProblem(m Model, d Data) (*problem, error) {
	if len(d.Values) == 0 {
		return nil, fmt.Errorf("%s: no values: %w", d.ID, ErrData)
	}
	p := &problem{m: m, d: d}
	for _, v := range d.Values {
		if !(v.R1Err > 0 && v.R2Err > 0 && v.NOEErr > 0) {
			return nil, fmt.Errorf("%s at %g MHz: errors must be positive: %w", d.ID, v.FieldMHz, ErrData)
		}
		r, err := NewRelax(v.FieldMHz*1e6, d.ElemI, d.ElemS)
		if err != nil {
			return nil, err
		}
		p.relax = append(p.relax, r)
	}
	return p, nil
}

func (p *problem) NPoints() int { return 3 * len(p.d.Values) }

func (p *problem) Residuals(dst, par []float64) []float64 {
	if len(dst) < p.NPoints() {
		dst = make([]float64, p.NPoints())
	}
	rex := p.m.Rex(par)
	for i, v := range p.d.Values {
		r := p.relax[i]
		j := p.m.J(r.Omegas(), par)
		dst[3*i] = (r.R1(j) - v.R1) / v.R1Err
		dst[3*i+1] = (r.R2(j, rex) - v.R2) / v.R2Err
		dst[3*i+2] = (r.NOE(j) - v.NOE) / v.NOEErr
	}
	return dst[:p.NPoints()]
}

// Value adds objective.InvalidPenalty when the constraints fail.
func (p *problem) Value(par []float64) float64 {
	sum := 0.0
	for _, d := range p.Residuals(nil, par) {
		if math.IsNaN(d) || math.IsInf(d, 0) {
			sum += objective.InvalidPenalty
			continue
		}
		sum += d * d
	}
	if !p.m.CheckConstraints(par) {
		sum += objective.InvalidPenalty
	}
	return sum
}

// Fit fits m to d. sigma is the initial CMA-ES step in percent of each range.
func Fit(m Model, d Data, sigma float64, s optimizer.Settings) (*Result, error) {
	p, err := newProblem(m, d)
	if err != nil {
		return nil, err
	}
	b := optimizer.Bounds{Lower: m.Lower(), Upper: m.Upper()}
	res, err := optimizer.Minimize(p, m.Start(), b, sigma, s)
	if err != nil {
		return nil, fmt.Errorf("%s model %s: %w", d.ID, m.Name(), err)
	}
	n, k := p.NPoints(), len(res.X)
	aicc, ok := objective.AICc(n, k, res.F)
	return &Result{
		ID:        d.ID,
		Model:     m.Name(),
		ParNames:  m.ParNames(),
		Pars:      res.X,
		ChiSq:     res.F,
		AICc:      aicc,
		AICcValid: ok,
		N:         n,
	}, nil
}

// Select fits every named model and returns the one with the lowest valid
// AICc, ties going to the earlier name, together with all fits.
func Select(names []string, o Options, d Data, sigma float64, s optimizer.Settings) (*Result, []*Result, error) {
	var (
		best *Result
		all  []*Result
	)
	for _, name := range names {
		m, err := Build(name, o)
		if err != nil {
			return nil, nil, err
		}
		r, err := Fit(m, d, sigma, s)
		if err != nil {
			continue
		}
		all = append(all, r)
		if r.AICcValid && (best == nil || r.AICc < best.AICc) {
			best = r
		}
	}
	if best == nil {
		return nil, all, fmt.Errorf("%s: no model with valid AICc: %w", d.ID, optimizer.ErrFitFailed)
	}
	return best, all, nil
}
