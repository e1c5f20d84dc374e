// Package parmap builds index maps from curves to a flat parameter vector.
//
// Row i of a map lists, for curve i, the position in the parameter vector of
// each named equation parameter. Shared ("group") parameters appear at the
// same position in every row.
package parmap

import (
	"fmt"
)

// Column describes how one named parameter is spread over curves.
type Column struct {
	Name string

	// Group parameters are shared by every curve of a single-condition fit.
	Group bool

	// Dims lists the state dimensions the parameter varies over in a
	// multi-dimensional fit. Empty means shared by all curves.
	Dims []int

	// Same names an earlier column whose indices this column reuses.
	Same string
}

// Layout is the ordered list of columns of an equation.
type Layout []Column

// Names returns the parameter names in column order.
func (l Layout) Names() []string {
	names := make([]string, len(l))
	for i, c := range l {
		names[i] = c.Name
	}
	return names
}

// NGroup counts group columns.
func (l Layout) NGroup() int {
	n := 0
	for _, c := range l {
		if c.Group {
			n++
		}
	}
	return n
}

// Uniform returns a layout of nPars columns where the first nGroup are group
// parameters and the rest vary per curve.
func Uniform(
	names []string,
	nGroup int,
) (
	Layout,
) {
	l := make(Layout, len(names))
	for i, name := range names {
		l[i] = Column{Name: name, Group: i < nGroup}
		if i >= nGroup {
			l[i].Dims = []int{0}
		}
	}
	return l
}

// MakeMap returns the map for nCurves single-condition curves of an equation
// with nPars parameters of which the first nGroup are shared. Group
// parameters take indices 0..nGroup-1, then each curve gets its own block.
func MakeMap(
	nCurves, nGroup, nPars int,
) (
	[][]int,
) {
	nCurvePars := nPars - nGroup
	m := make([][]int, nCurves)
	for i := range m {
		row := make([]int, nPars)
		for j := 0; j < nGroup; j++ {
			row[j] = j
		}
		for j := nGroup; j < nPars; j++ {
			row[j] = nGroup + i*nCurvePars + (j - nGroup)
		}
		m[i] = row
	}
	return m
}

// MapIndex returns the mixed-radix index of state over the dimensions listed
// in mask. Dimensions earlier in mask vary fastest. The result lies in
// [0, prod(stateCount[d] for d in mask)).
func MapIndex(
	state, stateCount, mask []int,
) (
	int,
) {
	idx, mult := 0, 1
	for _, d := range mask {
		idx += state[d] * mult
		mult *= stateCount[d]
	}
	return idx
}

// BlockSize returns the number of distinct indices a column with the given
// mask occupies.
func BlockSize(stateCount, mask []int) int {
	n := 1
	for _, d := range mask {
		n *= stateCount[d]
	}
	return n
}

// Simple builds the single-condition map for a layout: group columns are
// shared, the others are private to each curve, and tied columns reuse
// their target's indices.
func Simple(
	l Layout,
	nCurves int,
) (
	[][]int, error,
) {
	states := make([][]int, nCurves)
	for i := range states {
		states[i] = []int{i}
	}
	ml := make(Layout, len(l))
	for j, c := range l {
		ml[j] = Column{Name: c.Name, Same: c.Same}
		if !c.Group {
			ml[j].Dims = []int{0}
		}
	}
	return Build(ml, []int{nCurves}, states)
}

// Build returns the multi-dimensional map of the layout for curves with the
// given states. Each untied column is assigned the next free block of
// BlockSize indices; a curve's entry is the block offset plus MapIndex.
func Build(
	l Layout,
	stateCount []int,
	states [][]int,
) (
	[][]int, error,
) {
	for i, s := range states {
		if len(s) != len(stateCount) {
			return nil, fmt.Errorf("curve %d: %d dims, map has %d: %w", i, len(s), len(stateCount), ErrStateDims)
		}
		for d, v := range s {
			if v < 0 || v >= stateCount[d] {
				return nil, fmt.Errorf("curve %d dim %d: %d not in [0,%d): %w", i, d, v, stateCount[d], ErrStateRange)
			}
		}
	}

	col := make(map[string]int, len(l))
	m := make([][]int, len(states))
	for i := range m {
		m[i] = make([]int, len(l))
	}

	offset := 0
	for j, c := range l {
		if c.Same != "" {
			src, ok := col[c.Same]
			if !ok {
				return nil, fmt.Errorf("column %s ties to %q: %w", c.Name, c.Same, ErrLayout)
			}
			for i := range m {
				m[i][j] = m[i][src]
			}
			col[c.Name] = j
			continue
		}
		for _, d := range c.Dims {
			if d < 0 || d >= len(stateCount) {
				return nil, fmt.Errorf("column %s: dim %d: %w", c.Name, d, ErrStateDims)
			}
		}
		for i, s := range states {
			m[i][j] = offset + MapIndex(s, stateCount, c.Dims)
		}
		offset += BlockSize(stateCount, c.Dims)
		col[c.Name] = j
	}
	return m, nil
}

// NPars returns the length of the parameter vector a map addresses.
func NPars(m [][]int) int {
	n := 0
	for _, row := range m {
		for _, v := range row {
			if v+1 > n {
				n = v + 1
			}
		}
	}
	return n
}

// Validate checks that every row has width entries inside [0, nPars).
func Validate(
	m [][]int,
	width, nPars int,
) error {
	for i, row := range m {
		if len(row) != width {
			return fmt.Errorf("row %d: width %d, want %d: %w", i, len(row), width, ErrIndexRange)
		}
		for j, v := range row {
			if v < 0 || v >= nPars {
				return fmt.Errorf("row %d col %d: %d not in [0,%d): %w", i, j, v, nPars, ErrIndexRange)
			}
		}
	}
	return nil
}

// Compact renumbers the indices of m so that only indices used by some row
// remain, in order of first use. Blocks of a multi-dimensional map can leave
// holes when not every state combination is measured.
func Compact(m [][]int) [][]int {
	next := map[int]int{}
	out := make([][]int, len(m))
	for i, row := range m {
		out[i] = make([]int, len(row))
		for j, v := range row {
			k, ok := next[v]
			if !ok {
				k = len(next)
				next[v] = k
			}
			out[i][j] = k
		}
	}
	return out
}
