package parmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeMap(t *testing.T) {
	m := MakeMap(3, 1, 3)
	assert.Equal(t, [][]int{{0, 1, 2}, {0, 3, 4}, {0, 5, 6}}, m)
	assert.Equal(t, 7, NPars(m))
	assert.NoError(t, Validate(m, 3, 7))

	noGroup := MakeMap(2, 0, 1)
	assert.Equal(t, [][]int{{0}, {1}}, noGroup)
}

func TestMapIndexMixedRadix(t *testing.T) {
	count := []int{3, 2, 1, 2}
	mask := []int{0, 1, 3}
	seen := map[int]bool{}
	for r := 0; r < 3; r++ {
		for f := 0; f < 2; f++ {
			for n := 0; n < 2; n++ {
				idx := MapIndex([]int{r, f, 0, n}, count, mask)
				assert.GreaterOrEqual(t, idx, 0)
				assert.Less(t, idx, BlockSize(count, mask))
				assert.False(t, seen[idx], "duplicate index %d", idx)
				seen[idx] = true
			}
		}
	}
	assert.Len(t, seen, 12)

	// same residue and nucleus, different field: shared when field is masked out
	a := MapIndex([]int{1, 0, 0, 1}, count, []int{0, 3})
	b := MapIndex([]int{1, 1, 0, 1}, count, []int{0, 3})
	assert.Equal(t, a, b)
}

func TestBuildSharesAcrossMaskedDims(t *testing.T) {
	l := Layout{
		{Name: "Kex", Group: true},
		{Name: "R2", Dims: []int{0, 1}},
		{Name: "dPPM", Dims: []int{0}},
	}
	states := [][]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}}
	m, err := Build(l, []int{2, 2}, states)
	require.NoError(t, err)

	for _, row := range m {
		assert.Equal(t, 0, row[0])
	}
	assert.Equal(t, m[0][2], m[1][2])
	assert.NotEqual(t, m[0][2], m[2][2])
	assert.NotEqual(t, m[0][1], m[1][1])
	assert.Equal(t, 1+4+2, NPars(m))
}

func TestBuildTies(t *testing.T) {
	l := Layout{
		{Name: "Kex", Group: true},
		{Name: "Pb", Group: true},
		{Name: "deltaA0"},
		{Name: "deltaB0"},
		{Name: "R1A"},
		{Name: "R1B", Same: "R1A"},
		{Name: "R2A"},
		{Name: "R2B"},
	}
	m, err := Simple(l, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 4, 6, 6, 8, 10}, m[0])
	assert.Equal(t, []int{0, 1, 3, 5, 7, 7, 9, 11}, m[1])

	c := Compact(m)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 4, 5, 6}, c[0])
	assert.Equal(t, []int{0, 1, 7, 8, 9, 9, 10, 11}, c[1])
	assert.Equal(t, 12, NPars(c))
}

func TestBuildErrors(t *testing.T) {
	l := Uniform([]string{"a", "b"}, 1)

	_, err := Build(l, []int{2}, [][]int{{0}, {0, 1}})
	assert.ErrorIs(t, err, ErrStateDims)

	_, err = Build(l, []int{2}, [][]int{{2}})
	assert.ErrorIs(t, err, ErrStateRange)

	_, err = Build(Layout{{Name: "x", Same: "y"}}, []int{1}, [][]int{{0}})
	assert.ErrorIs(t, err, ErrLayout)

	assert.ErrorIs(t, Validate([][]int{{0, 5}}, 2, 3), ErrIndexRange)
	assert.ErrorIs(t, Validate([][]int{{0}}, 2, 3), ErrIndexRange)
}
