package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Leading label columns of a curve table: residue, field, temperature and
// nucleus, followed by the observed-nucleus frequency in MHz.
const labelCols = 5

// ReadCSV reads a curve table. The first row is a header. Each following
// row is
//
//	residue,field,temperature,nucleus,field_mhz,x1[,x2...],y,err
//
// Rows sharing the four labels form one curve. State indices are assigned
// per dimension in order of first appearance.
func ReadCSV(
	rs io.ReadSeeker,
) (
	[]Curve, error,
) {
	rows, err := readCSV(rs)
	if err != nil {
		return nil, err
	}

	var (
		curves []Curve
		index  = map[string]int{}
		labels = make([]map[string]int, NDims)
	)
	for d := range labels {
		labels[d] = map[string]int{}
	}

	for n, row := range rows {
		if len(row) < labelCols+3 {
			return nil, fmt.Errorf("row %d: %d columns: %w", n+2, len(row), ErrColumns)
		}
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
		key := strings.Join(row[:NDims], "\x00")
		vals := make([]float64, 0, len(row)-NDims)
		for _, s := range row[NDims:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", n+2, err)
			}
			vals = append(vals, v)
		}
		nX := len(vals) - 3

		ci, ok := index[key]
		if !ok {
			state := make([]int, NDims)
			for d := 0; d < NDims; d++ {
				idx, seen := labels[d][row[d]]
				if !seen {
					idx = len(labels[d])
					labels[d][row[d]] = idx
				}
				state[d] = idx
			}
			curves = append(curves, Curve{
				ID:    row[DimResidue],
				State: state,
				Field: vals[0],
				X:     make([][]float64, nX),
			})
			ci = len(curves) - 1
			index[key] = ci
		}
		c := &curves[ci]
		if len(c.X) != nX {
			return nil, fmt.Errorf("row %d: %d x columns, curve %q has %d: %w", n+2, nX, c.ID, len(c.X), ErrLengthMismatch)
		}
		for k := 0; k < nX; k++ {
			c.X[k] = append(c.X[k], vals[1+k])
		}
		c.Y = append(c.Y, vals[1+nX])
		c.Err = append(c.Err, vals[2+nX])
	}

	if err := ValidateAll(curves); err != nil {
		return nil, err
	}
	return curves, nil
}

func readCSV(
	rs io.ReadSeeker,
) (
	[][]string, error,
) {
	// Skip header row
	row1, err := bufio.NewReader(rs).ReadSlice('\n')
	if err != nil {
		return nil, err
	}
	if _, err = rs.Seek(int64(len(row1)), io.SeekStart); err != nil {
		return nil, err
	}

	r := csv.NewReader(rs)
	r.FieldsPerRecord = -1
	r.Comment = '#'
	return r.ReadAll()
}
