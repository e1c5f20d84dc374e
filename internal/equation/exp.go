package equation

import (
	"math"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
)

// curveDims gives a parameter its own value for every measured condition.
var curveDims = []int{dataset.DimResidue, dataset.DimField, dataset.DimTemperature, dataset.DimNucleus}

func init() {
	register(expDecay{meta{"EXPAB", Exp, parmap.Layout{
		{Name: "A", Dims: curveDims},
		{Name: "R", Dims: curveDims},
	}}, false})
	register(expDecay{meta{"EXPABC", Exp, parmap.Layout{
		{Name: "A", Dims: curveDims},
		{Name: "R", Dims: curveDims},
		{Name: "C", Dims: curveDims},
	}}, true})
	register(noeRatio{meta{"NOE", Exp, parmap.Layout{
		{Name: "NOE", Dims: curveDims},
	}}})
}

// expDecay is A·exp(-R·t), plus a constant C when offset is set. x is the
// delay in s.
type expDecay struct {
	meta
	offset bool
}

func (f expDecay) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	v := par[row[0]] * math.Exp(-par[row[1]]*x[0])
	if f.offset {
		v += par[row[2]]
	}
	return v
}

func (f expDecay) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	g := make([]float64, nPars(m))
	for i, c := range curves {
		row := m[i]
		g[row[0]] = positive(maxY(c.Y), 1)
		g[row[1]] = positive(-math.Log(0.5)/midValueZero(c.Y, c.X[0]), 1)
		if f.offset {
			g[row[2]] = minY(c.Y)
		}
	}
	return g, nil
}

func (f expDecay) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for _, row := range m {
		for _, j := range row {
			lo[j], hi[j] = span(g[j], 1e-3)
		}
		if f.offset {
			// C may sit on either side of zero.
			j := row[2]
			a := math.Max(math.Abs(4*g[j]), 0.1*g[row[0]])
			lo[j], hi[j] = -a, a
		}
	}
	return lo, hi
}

// noeRatio is a constant per curve, for steady-state NOE ratios.
type noeRatio struct{ meta }

func (noeRatio) Calculate(par []float64, row []int, x []float64, field float64) float64 {
	return par[row[0]]
}

func (noeRatio) Guess(curves []dataset.Curve, m [][]int) ([]float64, error) {
	g := make([]float64, nPars(m))
	for i, c := range curves {
		g[m[i][0]] = meanY(c.Y)
	}
	return g, nil
}

func (noeRatio) Bounds(g []float64, curves []dataset.Curve, m [][]int) ([]float64, []float64) {
	lo, hi := make([]float64, len(g)), make([]float64, len(g))
	for i := range g {
		lo[i], hi[i] = -1, 1.5
		if g[i] <= lo[i] || g[i] >= hi[i] {
			lo[i], hi[i] = g[i]-1, g[i]+1
		}
	}
	return lo, hi
}
