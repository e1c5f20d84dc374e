package objective

import (
	"fmt"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
)

// WithY returns a problem whose curve values are replaced by y, one slice
// per curve. Independent variables and errors are shared with p.
func (p *Problem) WithY(y [][]float64) (*Problem, error) {
	if len(y) != len(p.curves) {
		return nil, fmt.Errorf("%d value sets for %d curves: %w", len(y), len(p.curves), dataset.ErrLengthMismatch)
	}
	curves := make([]dataset.Curve, len(p.curves))
	for i, c := range p.curves {
		if len(y[i]) != c.Len() {
			return nil, fmt.Errorf("curve %q: %d values for %d points: %w", c.ID, len(y[i]), c.Len(), dataset.ErrLengthMismatch)
		}
		c.Y = y[i]
		curves[i] = c
	}
	q := *p
	q.curves = curves
	return &q, nil
}

// Resample returns a problem in which curve i holds the points idx[i] of
// the original curve, in that order and with repeats allowed.
func (p *Problem) Resample(idx [][]int) (*Problem, error) {
	if len(idx) != len(p.curves) {
		return nil, fmt.Errorf("%d index sets for %d curves: %w", len(idx), len(p.curves), dataset.ErrLengthMismatch)
	}
	curves := make([]dataset.Curve, len(p.curves))
	n := 0
	for ci, c := range p.curves {
		if len(idx[ci]) == 0 {
			return nil, fmt.Errorf("curve %q: %w", c.ID, ErrResample)
		}
		r := dataset.Curve{
			ID:    c.ID,
			State: c.State,
			Field: c.Field,
			X:     make([][]float64, len(c.X)),
			Y:     make([]float64, len(idx[ci])),
			Err:   make([]float64, len(idx[ci])),
		}
		for k := range c.X {
			r.X[k] = make([]float64, len(idx[ci]))
		}
		for j, i := range idx[ci] {
			if i < 0 || i >= c.Len() {
				return nil, fmt.Errorf("curve %q: index %d of %d: %w", c.ID, i, c.Len(), ErrResample)
			}
			for k := range c.X {
				r.X[k][j] = c.X[k][i]
			}
			r.Y[j], r.Err[j] = c.Y[i], c.Err[i]
		}
		curves[ci] = r
		n += r.Len()
	}
	q := *p
	q.curves, q.n = curves, n
	return &q, nil
}
