// Package fit ties the equation library, the optimizer and the uncertainty
// estimator into fits of residues, with model selection by AICc.
package fit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/objective"
	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
	"github.com/HamletTheHamster/relaxfit/internal/uncertainty"
)

// Progress is called after each residue of FitResidues.
type Progress func(done, total int, id string)

// Fitter fits equations of one kind.
type Fitter struct {
	Kind    equation.Kind
	Options Options
}

// New returns a fitter for kind k.
func New(k equation.Kind, o Options) *Fitter {
	return &Fitter{Kind: k, Options: o}
}

// Fit fits the named equation to curves. guesses may be nil, in which case
// the equation derives them from the data.
func (f *Fitter) Fit(
	ctx context.Context,
	curves []dataset.Curve,
	name string,
	guesses []float64,
) (
	*Result, error,
) {
	eq, err := equation.Lookup(f.Kind, name)
	if err != nil {
		return nil, err
	}
	if err := dataset.ValidateAll(curves); err != nil {
		return nil, err
	}
	m, err := indexMap(eq, curves)
	if err != nil {
		return nil, err
	}
	nPars := parmap.NPars(m)
	p, err := objective.New(eq, curves, m, nPars, objective.Options{
		AbsMode: f.Options.AbsMode,
		Weight:  f.Options.Weight,
	})
	if err != nil {
		return nil, err
	}

	start := guesses
	if start == nil {
		if start, err = eq.Guess(curves, m); err != nil {
			return nil, fmt.Errorf("%s: %w", eq.Name(), err)
		}
	} else if len(start) != nPars {
		return nil, fmt.Errorf("%s: %d guesses for %d parameters: %w", eq.Name(), len(start), nPars, ErrGuesses)
	}
	lo, hi := eq.Bounds(start, curves, m)
	b := widen(optimizer.Bounds{Lower: lo, Upper: hi}, start)

	best, err := optimizer.Minimize(p, start, b, f.Options.StartRadius, f.Options.settings(f.Options.Optimizer))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", eq.Name(), err)
	}

	r := &Result{
		Equation:     eq.Name(),
		Kind:         eq.Kind(),
		Pars:         best.X,
		Map:          m,
		RMS:          p.RMS(best.X),
		AIC:          p.AIC(best.X),
		ReducedChiSq: p.ReducedChiSq(best.X),
	}
	r.AICc, r.AICcValid = p.AICc(best.X)

	var rexSD []float64
	if f.Options.CalcErrors {
		est, err := f.estimate(ctx, p, best.X, start, b)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case err != nil:
			slog.Warn("no error estimate", "equation", eq.Name(), "err", err)
		default:
			r.Errs, r.SimPars, rexSD = est.SD, est.Sims, est.DerivedSD
		}
	}

	r.ExchangeValid = f.exchangeValid(p, r)
	r.Curves = curveResults(p, r.Pars, r.Errs, rexSD)
	return r, nil
}

func (f *Fitter) estimate(
	ctx context.Context,
	p *objective.Problem,
	best, start []float64,
	b optimizer.Bounds,
) (
	*uncertainty.Estimate, error,
) {
	o := uncertainty.Options{
		Repeats:  f.Options.SampleSize,
		Workers:  f.Options.Workers,
		Seed:     f.Options.Seed,
		Settings: f.Options.settings(f.Options.BootstrapOptimizer),
	}
	if rexer, ok := p.Equation().(equation.Rexer); ok {
		o.Derived = func(q *objective.Problem, par []float64) []float64 {
			rex := make([]float64, len(q.Curves()))
			for ci, c := range q.Curves() {
				rex[ci] = rexer.Rex(par, q.Map()[ci], c.Field)
			}
			return rex
		}
	}
	sigma := f.Options.StartRadius / 2
	if f.Options.NonParametric {
		return uncertainty.Bootstrap(ctx, p, start, b, sigma, o)
	}
	return uncertainty.Parametric(ctx, p, best, start, b, sigma, o)
}

// Best fits every named equation and returns the valid fit with the lowest
// AICc, together with all successful fits. A fit is valid when its AICc is
// defined and its exchange parameters are supported. Ties go to the earlier
// name.
func (f *Fitter) Best(
	ctx context.Context,
	curves []dataset.Curve,
	names []string,
) (
	*Result, []*Result, error,
) {
	var (
		best *Result
		all  []*Result
	)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, all, err
		}
		r, err := f.Fit(ctx, curves, name, nil)
		switch {
		case errors.Is(err, equation.ErrNoSuchEquation):
			return nil, all, err
		case ctx.Err() != nil:
			return nil, all, ctx.Err()
		case err != nil:
			slog.Debug("fit failed", "equation", name, "err", err)
			continue
		}
		all = append(all, r)
		if !r.AICcValid || !r.ExchangeValid {
			continue
		}
		if best == nil || r.AICc < best.AICc {
			best = r
		}
	}
	if best == nil {
		return nil, all, ErrNoValidFit
	}
	return best, all, nil
}

// FitResidues runs Best on each group of curves in turn. Residues whose fits
// fail are logged and skipped. Once ctx is cancelled or past its deadline the
// loop stops; the results so far are returned with the context's error.
func (f *Fitter) FitResidues(
	ctx context.Context,
	groups [][]dataset.Curve,
	names []string,
	progress Progress,
) (
	[]*Result, error,
) {
	var out []*Result
	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		id := ""
		if len(g) > 0 {
			id = g[0].ID
		}
		best, _, err := f.Best(ctx, g, names)
		switch {
		case errors.Is(err, equation.ErrNoSuchEquation):
			return out, err
		case ctx.Err() != nil:
			return out, ctx.Err()
		case err != nil:
			slog.Warn("skipping residue", "residue", id, "err", err)
		default:
			out = append(out, best)
		}
		if progress != nil {
			progress(i+1, len(groups), id)
		}
	}
	return out, nil
}

// indexMap uses the single-condition map when no curve carries a state and
// the multi-dimensional map when every curve carries a full state vector.
// Anything in between is an error.
func indexMap(eq equation.Family, curves []dataset.Curve) ([][]int, error) {
	stated := 0
	for i, c := range curves {
		if len(c.State) == 0 {
			continue
		}
		if len(c.State) != dataset.NDims {
			return nil, fmt.Errorf("curve %d: %d state dims, want %d: %w", i, len(c.State), dataset.NDims, parmap.ErrStateDims)
		}
		stated++
	}
	if stated == 0 {
		return parmap.Simple(eq.Layout(), len(curves))
	}
	if stated != len(curves) {
		return nil, fmt.Errorf("%d of %d curves carry a state: %w", stated, len(curves), parmap.ErrStateDims)
	}
	re := dataset.Reindex(curves)
	states := make([][]int, len(re))
	for i, c := range re {
		states[i] = c.State
	}
	m, err := parmap.Build(eq.Layout(), dataset.StateCount(re), states)
	if err != nil {
		return nil, err
	}
	return parmap.Compact(m), nil
}

// widen makes every bound a proper interval containing its start value.
func widen(b optimizer.Bounds, start []float64) optimizer.Bounds {
	for i, s := range start {
		lo, hi := b.Lower[i], b.Upper[i]
		lo, hi = math.Min(lo, s), math.Max(hi, s)
		if !(hi > lo) {
			d := math.Max(math.Abs(s)*0.5, 1e-3)
			lo, hi = s-d, s+d
		}
		b.Lower[i], b.Upper[i] = lo, hi
	}
	return b
}
