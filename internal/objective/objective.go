// Package objective evaluates how well an equation with a flat parameter
// vector describes a set of curves.
package objective

import (
	"fmt"
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
)

// InvalidPenalty is added to Value for every point whose model value is not
// finite.
const InvalidPenalty = 1e8

// Options selects the residual measure.
type Options struct {
	// AbsMode sums absolute instead of squared deviations.
	AbsMode bool `yaml:"absMode"`
	// Weight divides every deviation by the point's error.
	Weight bool `yaml:"weight"`
}

// Problem is an equation bound to curves through a parameter map. It is
// immutable and safe for concurrent use.
type Problem struct {
	eq     equation.Family
	curves []dataset.Curve
	m      [][]int
	nPars  int
	opts   Options
	n      int
}

// New validates the curves and map and returns the problem.
func New(
	eq equation.Family,
	curves []dataset.Curve,
	m [][]int,
	nPars int,
	opts Options,
) (
	*Problem, error,
) {
	if err := dataset.ValidateAll(curves); err != nil {
		return nil, err
	}
	if len(m) != len(curves) {
		return nil, fmt.Errorf("%d rows for %d curves: %w", len(m), len(curves), ErrMapRows)
	}
	width := len(eq.ParNames())
	for i, row := range m {
		if len(row) != width {
			return nil, fmt.Errorf("%s row %d: width %d, want %d: %w", eq.Name(), i, len(row), width, ErrRowWidth)
		}
	}
	if err := parmap.Validate(m, width, nPars); err != nil {
		return nil, err
	}
	n := 0
	for i := range curves {
		n += curves[i].Len()
	}
	return &Problem{eq: eq, curves: curves, m: m, nPars: nPars, opts: opts, n: n}, nil
}

// Equation returns the bound equation.
func (p *Problem) Equation() equation.Family { return p.eq }

// Curves returns the curves. Callers must not modify them.
func (p *Problem) Curves() []dataset.Curve { return p.curves }

// Map returns the parameter map.
func (p *Problem) Map() [][]int { return p.m }

// NPars returns the length of the parameter vector.
func (p *Problem) NPars() int { return p.nPars }

// NPoints returns the total number of points.
func (p *Problem) NPoints() int { return p.n }

// Options returns the residual options.
func (p *Problem) Options() Options { return p.opts }

// each calls fn with every point's curve, index and model value.
func (p *Problem) each(par []float64, fn func(c *dataset.Curve, i int, v float64)) {
	var x []float64
	for ci := range p.curves {
		c := &p.curves[ci]
		row := p.m[ci]
		for i := 0; i < c.Len(); i++ {
			x = c.Tuple(x, i)
			fn(c, i, p.eq.Calculate(par, row, x, c.Field))
		}
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Value is the sum of squared, or absolute, deviations over all points,
// divided by the point errors when weighting.
func (p *Problem) Value(par []float64) float64 {
	sum := 0.0
	p.each(par, func(c *dataset.Curve, i int, v float64) {
		if !finite(v) {
			sum += InvalidPenalty
			return
		}
		d := v - c.Y[i]
		if p.opts.Weight {
			d /= c.Err[i]
		}
		if p.opts.AbsMode {
			sum += math.Abs(d)
		} else {
			sum += d * d
		}
	})
	return sum
}

// Residuals writes the signed, optionally weighted, deviations into dst,
// allocating it when it is too short. Non-finite model values give a
// residual of sqrt(InvalidPenalty).
func (p *Problem) Residuals(dst, par []float64) []float64 {
	if len(dst) < p.n {
		dst = make([]float64, p.n)
	}
	dst = dst[:p.n]
	k := 0
	p.each(par, func(c *dataset.Curve, i int, v float64) {
		d := math.Sqrt(InvalidPenalty)
		if finite(v) {
			d = v - c.Y[i]
			if p.opts.Weight {
				d /= c.Err[i]
			}
		}
		dst[k] = d
		k++
	})
	return dst
}

// Predicted returns the model values per curve.
func (p *Problem) Predicted(par []float64) [][]float64 {
	out := make([][]float64, len(p.curves))
	for ci := range p.curves {
		out[ci] = equation.Sample(p.eq, par, p.m[ci], &p.curves[ci])
	}
	return out
}

// RSS is the unweighted residual sum of squares.
func (p *Problem) RSS(par []float64) float64 {
	rss := 0.0
	p.each(par, func(c *dataset.Curve, i int, v float64) {
		d := v - c.Y[i]
		rss += d * d
	})
	return rss
}

// RMS is sqrt(RSS/n).
func (p *Problem) RMS(par []float64) float64 {
	return math.Sqrt(p.RSS(par) / float64(p.n))
}

// AIC is n ln(RSS) + 2k with k the number of parameters.
func (p *Problem) AIC(par []float64) float64 {
	return AIC(p.n, len(par), p.RSS(par))
}

// AICc is the small sample corrected AIC. ok is false when n-k-1 <= 0.
func (p *Problem) AICc(par []float64) (aicc float64, ok bool) {
	return AICc(p.n, len(par), p.RSS(par))
}

// ReducedChiSq is the error weighted sum of squares over n-k. It is NaN
// when there are no degrees of freedom.
func (p *Problem) ReducedChiSq(par []float64) float64 {
	dof := p.n - len(par)
	if dof <= 0 {
		return math.NaN()
	}
	chi := 0.0
	p.each(par, func(c *dataset.Curve, i int, v float64) {
		d := (v - c.Y[i]) / c.Err[i]
		chi += d * d
	})
	return chi / float64(dof)
}

// AIC returns n ln(rss) + 2k.
func AIC(n, k int, rss float64) float64 {
	return float64(n)*math.Log(rss) + 2*float64(k)
}

// AICc returns AIC + 2k(k+1)/(n-k-1). ok is false, and the value NaN, when
// n-k-1 <= 0 or rss is not positive.
func AICc(n, k int, rss float64) (float64, bool) {
	den := n - k - 1
	if den <= 0 || !(rss > 0) || !finite(rss) {
		return math.NaN(), false
	}
	kf := float64(k)
	return AIC(n, k, rss) + 2*kf*(kf+1)/float64(den), true
}
