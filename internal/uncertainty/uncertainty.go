// Package uncertainty estimates parameter standard deviations by refitting
// perturbed copies of a problem many times in parallel.
//
// Parametric repeats add Gaussian noise, scaled by each point's error, to
// the best fit curve. Bootstrap repeats draw the points of every curve with
// replacement. Each repeat owns its random source and its own problem, and
// a repeat that fails or panics is counted and left out of the statistics.
package uncertainty

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"

	"github.com/HamletTheHamster/relaxfit/internal/objective"
	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultRepeats is the number of repeats when Options.Repeats is zero.
const DefaultRepeats = 200

// bootstrapTries bounds the redraws of a degenerate bootstrap sample.
const bootstrapTries = 10

// Options configures an estimate.
type Options struct {
	Repeats int    `yaml:"repeats"`
	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"`

	// Settings are passed to every refit. Its Seed is replaced per repeat.
	Settings optimizer.Settings `yaml:"-"`

	// Derived computes extra quantities from each repeat's parameters;
	// their spread is reported in Estimate.DerivedSD.
	Derived func(p *objective.Problem, par []float64) []float64 `yaml:"-"`
}

// Estimate is the spread of the refitted parameters.
type Estimate struct {
	SD        []float64
	Sims      [][]float64 // successful repeats, in repeat order
	DerivedSD []float64
	Failed    int
}

// refit is one repeat's problem, or an error when none could be drawn.
type refit func(rng *rand.Rand) (*objective.Problem, error)

// Parametric refits noisy copies of the curve predicted at best, each
// starting from start.
func Parametric(
	ctx context.Context,
	p *objective.Problem,
	best, start []float64,
	b optimizer.Bounds,
	sigma float64,
	o Options,
) (
	*Estimate, error,
) {
	pred := p.Predicted(best)
	curves := p.Curves()
	return run(ctx, p.NPars(), start, b, sigma, o, func(rng *rand.Rand) (*objective.Problem, error) {
		y := make([][]float64, len(pred))
		for ci, c := range curves {
			y[ci] = make([]float64, len(pred[ci]))
			for i, v := range pred[ci] {
				noise := distuv.Normal{Mu: 0, Sigma: c.Err[i], Src: rng}
				y[ci][i] = v + noise.Rand()
			}
		}
		return p.WithY(y)
	})
}

// Bootstrap refits copies of p whose curves are drawn from the original
// points with replacement.
func Bootstrap(
	ctx context.Context,
	p *objective.Problem,
	start []float64,
	b optimizer.Bounds,
	sigma float64,
	o Options,
) (
	*Estimate, error,
) {
	curves := p.Curves()
	return run(ctx, p.NPars(), start, b, sigma, o, func(rng *rand.Rand) (*objective.Problem, error) {
		idx := make([][]int, len(curves))
		for try := 0; try < bootstrapTries; try++ {
			ok := true
			for ci := range curves {
				idx[ci] = draw(rng, curves[ci].Len(), idx[ci])
				if curves[ci].Len() > 1 && distinct(idx[ci]) < 2 {
					ok = false
				}
			}
			if ok {
				return p.Resample(idx)
			}
		}
		return nil, ErrDegenerateSample
	})
}

func draw(rng *rand.Rand, n int, dst []int) []int {
	dst = dst[:0]
	for range n {
		dst = append(dst, rng.IntN(n))
	}
	return dst
}

func distinct(idx []int) int {
	seen := make(map[int]struct{}, len(idx))
	for _, i := range idx {
		seen[i] = struct{}{}
	}
	return len(seen)
}

type outcome struct {
	par     []float64
	derived []float64
	err     error
}

func run(
	ctx context.Context,
	nPars int,
	start []float64,
	b optimizer.Bounds,
	sigma float64,
	o Options,
	next refit,
) (
	*Estimate, error,
) {
	repeats := o.Repeats
	if repeats <= 0 {
		repeats = DefaultRepeats
	}
	workers := o.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	out := make([]outcome, repeats)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range repeats {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			out[i] = repeat(i, start, b, sigma, o, next)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return summarize(out, nPars)
}

// repeat runs one refit. Panics are turned into the repeat's error.
func repeat(
	i int,
	start []float64,
	b optimizer.Bounds,
	sigma float64,
	o Options,
	next refit,
) (
	res outcome,
) {
	defer func() {
		if r := recover(); r != nil {
			res = outcome{err: fmt.Errorf("repeat %d: %v: %w", i, r, optimizer.ErrFitFailed)}
		}
	}()
	rng := rand.New(rand.NewPCG(o.Seed, uint64(i)))
	p, err := next(rng)
	if err != nil {
		return outcome{err: err}
	}
	s := o.Settings
	s.Seed = o.Seed + uint64(i) + 1
	fit, err := optimizer.Minimize(p, start, b, sigma, s)
	if err != nil {
		return outcome{err: err}
	}
	res.par = fit.X
	if o.Derived != nil {
		res.derived = o.Derived(p, fit.X)
	}
	return res
}

func summarize(out []outcome, nPars int) (*Estimate, error) {
	est := &Estimate{}
	var derived [][]float64
	for i, r := range out {
		if r.err != nil || r.par == nil {
			est.Failed++
			if r.err != nil {
				slog.Debug("repeat failed", "repeat", i, "err", r.err)
			}
			continue
		}
		est.Sims = append(est.Sims, r.par)
		if r.derived != nil {
			derived = append(derived, r.derived)
		}
	}
	if len(est.Sims) < 2 {
		return nil, fmt.Errorf("%d of %d repeats succeeded: %w", len(est.Sims), len(out), ErrTooFewRepeats)
	}
	if est.Failed > 0 {
		slog.Warn("uncertainty repeats failed", "failed", est.Failed, "total", len(out))
	}
	est.SD = columnSD(est.Sims, nPars)
	if len(derived) >= 2 {
		est.DerivedSD = columnSD(derived, len(derived[0]))
	}
	return est, nil
}

// columnSD returns the sample standard deviation of every column.
func columnSD(rows [][]float64, width int) []float64 {
	sd := make([]float64, width)
	col := make([]float64, 0, len(rows))
	for j := range sd {
		col = col[:0]
		for _, r := range rows {
			if j < len(r) && !math.IsNaN(r[j]) {
				col = append(col, r[j])
			}
		}
		if len(col) < 2 {
			sd[j] = math.NaN()
			continue
		}
		sd[j] = stat.StdDev(col, nil)
	}
	return sd
}
