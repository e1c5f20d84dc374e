package equation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/parmap"
)

// Kind groups families by experiment.
type Kind int

const (
	CPMG Kind = iota
	CEST
	R1rho
	Exp
)

func (k Kind) String() string {
	switch k {
	case CPMG:
		return "cpmg"
	case CEST:
		return "cest"
	case R1rho:
		return "r1rho"
	case Exp:
		return "exp"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps "cpmg", "cest", "r1rho" or "exp" to a Kind.
func ParseKind(s string) (Kind, error) {
	for k := CPMG; k <= Exp; k++ {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("kind %q: %w", s, ErrNoSuchEquation)
}

// Family is one equation variant.
//
// Calculate evaluates the model for one independent-variable tuple x of a
// curve whose parameters sit at par[row[j]]. Guess and Bounds work on the
// full parameter vector addressed by the map m, whose rows follow curves.
type Family interface {
	Name() string
	Kind() Kind
	ParNames() []string
	NGroupPars() int
	Layout() parmap.Layout

	Calculate(
		par []float64,
		row []int,
		x []float64,
		field float64,
	) float64

	Guess(
		curves []dataset.Curve,
		m [][]int,
	) ([]float64, error)

	Bounds(
		guess []float64,
		curves []dataset.Curve,
		m [][]int,
	) (lower, upper []float64)
}

// Rexer is implemented by families with an exchange contribution to R2.
type Rexer interface {
	Rex(par []float64, row []int, field float64) float64
}

type meta struct {
	name   string
	kind   Kind
	layout parmap.Layout
}

func (m meta) Name() string          { return m.name }
func (m meta) Kind() Kind            { return m.kind }
func (m meta) Layout() parmap.Layout { return m.layout }
func (m meta) ParNames() []string    { return m.layout.Names() }
func (m meta) NGroupPars() int       { return m.layout.NGroup() }

type key struct {
	kind Kind
	name string
}

var registry = map[key]Family{}

func register(f Family) {
	registry[key{f.Kind(), strings.ToUpper(f.Name())}] = f
}

// Lookup returns the family of kind k with the given name, ignoring case.
// Names are unique within a kind; NOEX exists for several kinds.
func Lookup(k Kind, name string) (Family, error) {
	if f, ok := registry[key{k, strings.ToUpper(strings.TrimSpace(name))}]; ok {
		return f, nil
	}
	return nil, fmt.Errorf("%s equation %q: %w", k, name, ErrNoSuchEquation)
}

// Names returns the registered names of a kind, sorted.
func Names(k Kind) []string {
	var names []string
	for kk, f := range registry {
		if kk.kind == k {
			names = append(names, f.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Index returns the column of the named parameter, or -1.
func Index(f Family, name string) int {
	for i, n := range f.ParNames() {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Sample evaluates f at every point of curve c.
func Sample(
	f Family,
	par []float64,
	row []int,
	c *dataset.Curve,
) (
	[]float64,
) {
	y := make([]float64, c.Len())
	var x []float64
	for i := range y {
		x = c.Tuple(x, i)
		y[i] = f.Calculate(par, row, x, c.Field)
	}
	return y
}

func nPars(m [][]int) int {
	return parmap.NPars(m)
}
