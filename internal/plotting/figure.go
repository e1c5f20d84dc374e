// Package plotting draws measured curves with their fits.
package plotting

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// FitPoints is the number of points a fitted line is sampled on.
const FitPoints = 200

var ErrMismatch = errors.New("plotting: curves do not match the fit")

type errorPoints struct {
	plotter.XYs
	plotter.YErrors
}

// series are the points of a curve that share every independent variable
// after the first, such as one B1 field of a CEST profile.
type series struct {
	rest []float64
	idx  []int
}

func splitSeries(c *dataset.Curve) []series {
	var out []series
	var x []float64
	for i := 0; i < c.Len(); i++ {
		x = c.Tuple(x, i)
		found := false
		for s := range out {
			if equal(out[s].rest, x[1:]) {
				out[s].idx = append(out[s].idx, i)
				found = true
				break
			}
		}
		if !found {
			out = append(out, series{rest: append([]float64(nil), x[1:]...), idx: []int{i}})
		}
	}
	return out
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func axisLabels(k equation.Kind) (string, string) {
	switch k {
	case equation.CPMG:
		return "νCPMG (Hz)", "R2,eff (1/s)"
	case equation.CEST:
		return "Offset (ppm)", "I/I0"
	case equation.R1rho:
		return "Offset (ppm)", "R1ρ (1/s)"
	}
	return "Delay (s)", "Intensity"
}

// FitFigure plots curves with error bars and the lines of eq at r.Pars.
// curves must be the curves r was fitted to, in the same order.
func FitFigure(
	r *fit.Result,
	curves []dataset.Curve,
	eq equation.Family,
) (
	*plot.Plot, error,
) {
	if len(r.Map) != len(curves) {
		return nil, fmt.Errorf("%d curves, fit has %d: %w", len(curves), len(r.Map), ErrMismatch)
	}
	xlabel, ylabel := axisLabels(eq.Kind())
	title := r.Equation
	if len(curves) > 0 {
		title = fmt.Sprintf("%s  residue %s", r.Equation, curves[0].ID)
	}
	p := prepPlot(title, xlabel, ylabel)

	brush := 0
	for ci := range curves {
		c := &curves[ci]
		for _, s := range splitSeries(c) {
			col := palette(brush)
			brush++

			pts := errorPoints{
				XYs:     make(plotter.XYs, len(s.idx)),
				YErrors: make(plotter.YErrors, len(s.idx)),
			}
			xs := make([]float64, 0, len(s.idx))
			for j, i := range s.idx {
				pts.XYs[j].X, pts.XYs[j].Y = c.X[0][i], c.Y[i]
				pts.YErrors[j].Low, pts.YErrors[j].High = c.Err[i], c.Err[i]
				xs = append(xs, c.X[0][i])
			}

			sc, err := plotter.NewScatter(pts)
			if err != nil {
				return nil, err
			}
			sc.GlyphStyle.Color = col
			sc.GlyphStyle.Radius = vg.Points(5)
			sc.Shape = draw.CircleGlyph{}

			e, err := plotter.NewYErrorBars(pts)
			if err != nil {
				return nil, err
			}
			e.LineStyle.Color = col

			line, err := plotter.NewLine(fitLine(eq, r.Pars, r.Map[ci], c.Field, xs, s.rest))
			if err != nil {
				return nil, err
			}
			line.LineStyle.Color = col
			line.LineStyle.Width = vg.Points(3)

			p.Add(e, sc, line)
			p.Legend.Add(legend(c, s.rest), sc, line)
		}
	}
	return p, nil
}

func legend(c *dataset.Curve, rest []float64) string {
	l := fmt.Sprintf("%.1f MHz", c.Field)
	if len(rest) > 0 {
		l += fmt.Sprintf("  %g", rest[0])
	}
	return l
}

// fitLine samples the model on FitPoints points across the range of xs,
// holding the other independent variables at rest.
func fitLine(
	eq equation.Family,
	par []float64,
	row []int,
	field float64,
	xs, rest []float64,
) (
	plotter.XYs,
) {
	sort.Float64s(xs)
	lo, hi := xs[0], xs[len(xs)-1]
	xy := make(plotter.XYs, 0, FitPoints)
	x := make([]float64, 1+len(rest))
	copy(x[1:], rest)
	for i := 0; i < FitPoints; i++ {
		x[0] = lo + (hi-lo)*float64(i)/(FitPoints-1)
		y := eq.Calculate(par, row, x, field)
		if math.IsNaN(y) || math.IsInf(y, 0) {
			continue
		}
		xy = append(xy, plotter.XY{X: x[0], Y: y})
	}
	return xy
}

func prepPlot(title, xlabel, ylabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.RGBA{A: 0}
	p.Title.Text = title
	p.Title.TextStyle.Font.Typeface = "liberation"
	p.Title.TextStyle.Font.Variant = "Sans"
	p.Title.TextStyle.Font.Size = 50
	p.Title.Padding = font.Length(50)

	p.X.Label.Text = xlabel
	p.X.Label.TextStyle.Font.Variant = "Sans"
	p.X.Label.TextStyle.Font.Size = 36
	p.X.Label.Padding = font.Length(20)
	p.X.LineStyle.Width = vg.Points(1.5)
	p.X.Tick.LineStyle.Width = vg.Points(1.5)
	p.X.Tick.Label.Font.Size = 36
	p.X.Tick.Label.Font.Variant = "Sans"

	p.Y.Label.Text = ylabel
	p.Y.Label.TextStyle.Font.Variant = "Sans"
	p.Y.Label.TextStyle.Font.Size = 36
	p.Y.Label.Padding = font.Length(20)
	p.Y.LineStyle.Width = vg.Points(1.5)
	p.Y.Tick.LineStyle.Width = vg.Points(1.5)
	p.Y.Tick.Label.Font.Size = 36
	p.Y.Tick.Label.Font.Variant = "Sans"

	p.Legend.TextStyle.Font.Size = 36
	p.Legend.TextStyle.Font.Variant = "Sans"
	p.Legend.Top = true
	p.Legend.XOffs = vg.Points(-50)
	p.Legend.YOffs = vg.Points(-50)
	p.Legend.Padding = vg.Points(10)
	p.Legend.ThumbnailWidth = vg.Points(50)
	return p
}

var colors = []color.RGBA{
	{R: 31, G: 211, B: 172, A: 255},
	{R: 255, G: 122, B: 180, A: 255},
	{R: 122, G: 156, B: 255, A: 255},
	{R: 255, G: 193, B: 122, A: 255},
	{R: 188, G: 117, B: 255, A: 255},
	{R: 46, G: 140, B: 60, A: 255},
	{R: 140, G: 46, B: 49, A: 255},
	{R: 27, G: 150, B: 146, A: 255},
}

func palette(brush int) color.RGBA {
	return colors[brush%len(colors)]
}
