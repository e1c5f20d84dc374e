package fit

import (
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/objective"
)

// Result is a fit of one equation to a set of curves. It is not modified
// after Fit returns.
type Result struct {
	Equation string
	Kind     equation.Kind

	Pars []float64
	// Errs is nil when errors were not estimated.
	Errs    []float64
	SimPars [][]float64
	Map     [][]int

	RMS          float64
	AIC          float64
	AICc         float64
	AICcValid    bool
	ReducedChiSq float64

	ExchangeValid bool
	Curves        []CurveResult
}

// CurveResult holds the parameters of one curve by name, with "name.sd"
// entries for their errors and the curve's "RMS", "rChiSq" and, when
// defined, "AICc". CPMG fits add "Rex" and "Rex.sd".
type CurveResult struct {
	ID     string
	State  []int
	Values map[string]float64
}

// Lookup returns the first curve result of residue id.
func (r *Result) Lookup(id string) (CurveResult, bool) {
	for _, c := range r.Curves {
		if c.ID == id {
			return c, true
		}
	}
	return CurveResult{}, false
}

// Value returns one named value of residue id, or NaN.
func (r *Result) Value(id, name string) float64 {
	c, ok := r.Lookup(id)
	if !ok {
		return math.NaN()
	}
	v, ok := c.Values[name]
	if !ok {
		return math.NaN()
	}
	return v
}

func curveResults(
	p *objective.Problem,
	par, errs, rexSD []float64,
) []CurveResult {
	eq := p.Equation()
	names := eq.ParNames()
	rexer, _ := eq.(equation.Rexer)
	pred := p.Predicted(par)

	out := make([]CurveResult, len(p.Curves()))
	for ci, c := range p.Curves() {
		row := p.Map()[ci]
		vals := make(map[string]float64, 2*len(names)+5)
		for j, n := range names {
			vals[n] = par[row[j]]
			if errs != nil {
				vals[n+".sd"] = errs[row[j]]
			}
		}

		rss, chi := 0.0, 0.0
		for i, y := range c.Y {
			d := pred[ci][i] - y
			rss += d * d
			chi += d * d / (c.Err[i] * c.Err[i])
		}
		n, k := c.Len(), distinct(row)
		vals["RMS"] = math.Sqrt(rss / float64(n))
		if n > k {
			vals["rChiSq"] = chi / float64(n-k)
		} else {
			vals["rChiSq"] = math.NaN()
		}
		if aicc, ok := objective.AICc(n, k, rss); ok {
			vals["AICc"] = aicc
		}

		if rexer != nil {
			vals["Rex"] = rexer.Rex(par, row, c.Field)
			if ci < len(rexSD) {
				vals["Rex.sd"] = rexSD[ci]
			}
		}
		out[ci] = CurveResult{ID: c.ID, State: append([]int(nil), c.State...), Values: vals}
	}
	return out
}

func distinct(row []int) int {
	seen := map[int]bool{}
	for _, v := range row {
		seen[v] = true
	}
	return len(seen)
}
