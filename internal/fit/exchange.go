package fit

import (
	"math"
	"strings"

	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/objective"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// exchangeValid reports whether a fit's exchange parameters are supported
// by the data. Fits without exchange are always valid.
func (f *Fitter) exchangeValid(p *objective.Problem, r *Result) bool {
	eq := p.Equation()
	if strings.EqualFold(eq.Name(), "NOEX") || strings.HasSuffix(strings.ToUpper(eq.Name()), "_NOEX") {
		return true
	}
	switch eq.Kind() {
	case equation.CPMG:
		return f.cpmgExchangeValid(p, r)
	case equation.CEST, equation.R1rho:
		return f.shiftsDiffer(p, r)
	}
	return true
}

// cpmgExchangeValid wants some curve's Rex above RexRatio times the RMS and,
// when errors were estimated, a Kex larger than its error and
// significantly above zero across the repeats.
func (f *Fitter) cpmgExchangeValid(p *objective.Problem, r *Result) bool {
	rexer, ok := p.Equation().(equation.Rexer)
	if !ok {
		return true
	}
	big := false
	for ci, c := range p.Curves() {
		if rexer.Rex(r.Pars, p.Map()[ci], c.Field) > f.Options.RexRatio*r.RMS {
			big = true
			break
		}
	}
	if !big {
		return false
	}
	kex := equation.Index(p.Equation(), "Kex")
	if kex < 0 || r.Errs == nil {
		return true
	}
	k := p.Map()[0][kex]
	if !(r.Pars[k] > r.Errs[k]) {
		return false
	}
	return significant(column(r.SimPars, k), f.Options.Alpha)
}

// significant runs a one-sided one-sample t-test of xs against zero.
func significant(xs []float64, alpha float64) bool {
	n := len(xs)
	if n < 2 {
		return true
	}
	mean, sd := stat.MeanStdDev(xs, nil)
	if sd == 0 {
		return mean > 0
	}
	t := mean / (sd / math.Sqrt(float64(n)))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 1)}
	return dist.Survival(t) < alpha
}

func column(rows [][]float64, j int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		out = append(out, r[j])
	}
	return out
}

// shiftsDiffer wants the two states of every curve at least DeltaABDiff
// ppm apart.
func (f *Fitter) shiftsDiffer(p *objective.Problem, r *Result) bool {
	a := equation.Index(p.Equation(), "deltaA0")
	b := equation.Index(p.Equation(), "deltaB0")
	if a < 0 || b < 0 {
		return true
	}
	for _, row := range p.Map() {
		if math.Abs(r.Pars[row[b]]-r.Pars[row[a]]) < f.Options.DeltaABDiff {
			return false
		}
	}
	return true
}
