// Package dataset holds the measured relaxation curves handed to the fitting
// core and a small CSV reader used by the command line tool.
package dataset

import (
	"fmt"
)

// Dimensions of a curve state vector.
const (
	DimResidue = iota
	DimField
	DimTemperature
	DimNucleus
	NDims
)

// Curve is one residue measured under one experimental condition.
//
// X is column major: X[k][i] is the k-th independent variable of point i.
type Curve struct {
	ID    string
	State []int
	Field float64
	X     [][]float64
	Y     []float64
	Err   []float64
}

// Len returns the number of points.
func (c *Curve) Len() int {
	return len(c.Y)
}

// Validate checks that every per-point array has the same, nonzero length
// and that every error is positive.
func (c *Curve) Validate() error {
	n := len(c.Y)
	if n == 0 {
		return fmt.Errorf("curve %q: %w", c.ID, ErrEmptyCurve)
	}
	if len(c.Err) != n {
		return fmt.Errorf("curve %q: %d errors for %d values: %w", c.ID, len(c.Err), n, ErrLengthMismatch)
	}
	if len(c.X) == 0 {
		return fmt.Errorf("curve %q: no independent variables: %w", c.ID, ErrLengthMismatch)
	}
	for k, xs := range c.X {
		if len(xs) != n {
			return fmt.Errorf("curve %q: x[%d] has %d points, y has %d: %w", c.ID, k, len(xs), n, ErrLengthMismatch)
		}
	}
	for i, e := range c.Err {
		if !(e > 0) {
			return fmt.Errorf("curve %q: point %d error %g: %w", c.ID, i, e, ErrNonPositiveError)
		}
	}
	return nil
}

// Tuple copies the independent variables of point i into dst and returns it.
func (c *Curve) Tuple(
	dst []float64,
	i int,
) (
	[]float64,
) {
	dst = dst[:0]
	for _, xs := range c.X {
		dst = append(dst, xs[i])
	}
	return dst
}

// Column returns x column k, or nil when the curve has fewer variables.
func (c *Curve) Column(k int) []float64 {
	if k < len(c.X) {
		return c.X[k]
	}
	return nil
}

// ValidateAll validates each curve in turn.
func ValidateAll(curves []Curve) error {
	if len(curves) == 0 {
		return ErrEmptyCurve
	}
	for i := range curves {
		if err := curves[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// GroupByID splits curves into per-residue groups, keeping first-seen order.
func GroupByID(curves []Curve) [][]Curve {
	var (
		order  []string
		groups = map[string][]Curve{}
	)
	for _, c := range curves {
		if _, ok := groups[c.ID]; !ok {
			order = append(order, c.ID)
		}
		groups[c.ID] = append(groups[c.ID], c)
	}
	out := make([][]Curve, 0, len(order))
	for _, id := range order {
		out = append(out, groups[id])
	}
	return out
}

// StateCount returns, for each state dimension, one more than the largest
// index used by any curve.
func StateCount(curves []Curve) []int {
	var count []int
	for _, c := range curves {
		for len(count) < len(c.State) {
			count = append(count, 0)
		}
		for d, v := range c.State {
			if v+1 > count[d] {
				count[d] = v + 1
			}
		}
	}
	return count
}

// Reindex rewrites the state vectors of curves so every dimension counts
// from zero within the given subset. Curves share the returned backing
// slices with nothing else.
func Reindex(curves []Curve) []Curve {
	if len(curves) == 0 {
		return nil
	}
	nd := len(curves[0].State)
	seen := make([]map[int]int, nd)
	for d := range seen {
		seen[d] = map[int]int{}
	}
	out := make([]Curve, len(curves))
	for i, c := range curves {
		state := make([]int, len(c.State))
		for d, v := range c.State {
			if d >= nd {
				state[d] = v
				continue
			}
			idx, ok := seen[d][v]
			if !ok {
				idx = len(seen[d])
				seen[d][v] = idx
			}
			state[d] = idx
		}
		c.State = state
		out[i] = c
	}
	return out
}
