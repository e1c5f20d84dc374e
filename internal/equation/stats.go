package equation

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func minY(y []float64) float64  { return floats.Min(y) }
func maxY(y []float64) float64  { return floats.Max(y) }
func meanY(y []float64) float64 { return stat.Mean(y, nil) }

// midValue returns the x position where y crosses half way between its
// extremes, interpolating between the nearest points above and below.
func midValue(y, x []float64) float64 {
	return crossing(y, x, (maxY(y)+minY(y))/2)
}

// midValueZero is midValue measured from zero rather than from the minimum.
func midValueZero(y, x []float64) float64 {
	return crossing(y, x, maxY(y)/2)
}

func crossing(y, x []float64, hh float64) float64 {
	deltaUp, deltaDown := math.MaxFloat64, math.MaxFloat64
	var dUp, iUp, dDn, iDn float64
	for i, v := range y {
		d := v - hh
		if d >= 0 && d < deltaUp {
			deltaUp, dUp, iUp = d, v, x[i]
		} else if d < 0 && -d < deltaDown {
			deltaDown, dDn, iDn = -d, v, x[i]
		}
	}
	if dUp == dDn {
		return (iUp + iDn) / 2
	}
	return (hh-dDn)/(dUp-dDn)*(iUp-iDn) + iDn
}

// positive returns v if it is a usable positive number, otherwise def.
func positive(v, def float64) float64 {
	if v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) {
		return v
	}
	return def
}

// span returns bounds from 0 to 4 times g, ordered and never empty.
func span(g, floor float64) (lo, hi float64) {
	lo, hi = math.Min(0, 4*g), math.Max(0, 4*g)
	if hi-lo < floor {
		hi = lo + floor
	}
	return lo, hi
}
