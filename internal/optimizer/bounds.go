package optimizer

import (
	"fmt"
	"math"
)

// StepUnits is how many step-size units span one parameter range: a step
// size of 20 moves a fifth of the way across every bound.
const StepUnits = 100.0

// Bounds holds parallel lower and upper limits.
type Bounds struct {
	Lower []float64
	Upper []float64
}

// Validate checks that both sides have n finite entries with lower < upper.
func (b Bounds) Validate(n int) error {
	if len(b.Lower) != n || len(b.Upper) != n {
		return fmt.Errorf("%d lower, %d upper for %d parameters: %w", len(b.Lower), len(b.Upper), n, ErrBounds)
	}
	for i := range b.Lower {
		lo, hi := b.Lower[i], b.Upper[i]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) || !(lo < hi) {
			return fmt.Errorf("parameter %d: [%g, %g]: %w", i, lo, hi, ErrBounds)
		}
	}
	return nil
}

// Contains reports whether lower <= x <= upper element-wise.
func (b Bounds) Contains(x []float64) bool {
	for i, v := range x {
		if v < b.Lower[i] || v > b.Upper[i] {
			return false
		}
	}
	return true
}

// Clamp returns a copy of x with every entry moved inside the bounds.
func (b Bounds) Clamp(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = math.Max(b.Lower[i], math.Min(b.Upper[i], v))
	}
	return out
}

// box maps between parameter space and the unit cube.
type box struct {
	lo, width []float64
}

func newBox(b Bounds) box {
	w := make([]float64, len(b.Lower))
	for i := range w {
		w[i] = b.Upper[i] - b.Lower[i]
	}
	return box{lo: b.Lower, width: w}
}

// normalize maps x into the box, keeping starts away from the walls.
func (bx box) normalize(x []float64) []float64 {
	u := make([]float64, len(x))
	for i, v := range x {
		u[i] = (v - bx.lo[i]) / bx.width[i]
		u[i] = math.Max(0.02, math.Min(0.98, u[i]))
	}
	return u
}

// denormalize maps u back to parameter space, clamping to the box. It returns the
// squared distance u was moved by the clamp.
func (bx box) denormalize(dst, u []float64) float64 {
	penalty := 0.0
	for i, v := range u {
		switch {
		case v < 0:
			penalty += v * v
			v = 0
		case v > 1:
			penalty += (v - 1) * (v - 1)
			v = 1
		}
		dst[i] = bx.lo[i] + v*bx.width[i]
	}
	return penalty
}
