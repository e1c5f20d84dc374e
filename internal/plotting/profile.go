package plotting

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/HamletTheHamster/relaxfit/internal/store"
)

// Profile is one stored parameter along the sequence.
type Profile struct {
	Label string
	X, Y  []float64
}

// Profiles collects the rows of a stored run into one profile per parameter
// name and curve, ordered by residue. Residues whose id is not a number are
// placed by their order of appearance after the numbered ones. With no names,
// every parameter except the ".sd" errors is used.
func Profiles(rows []store.Row, names []string) []Profile {
	if len(names) == 0 {
		seen := map[string]bool{}
		for _, r := range rows {
			if !seen[r.Name] && !strings.HasSuffix(r.Name, ".sd") {
				seen[r.Name] = true
				names = append(names, r.Name)
			}
		}
		sort.Strings(names)
	}

	pos := residuePositions(rows)
	type key struct {
		name  string
		curve int
	}
	points := map[key][][2]float64{}
	var keys []key
	for _, r := range rows {
		k := key{r.Name, r.Curve}
		if _, ok := points[k]; !ok {
			keys = append(keys, k)
		}
		points[k] = append(points[k], [2]float64{pos[r.Residue], r.Value})
	}

	var out []Profile
	for _, n := range names {
		for _, k := range keys {
			if k.name != n {
				continue
			}
			pts := points[k]
			sort.SliceStable(pts, func(i, j int) bool { return pts[i][0] < pts[j][0] })
			p := Profile{Label: fmt.Sprintf("%s curve %d", n, k.curve)}
			for _, xy := range pts {
				p.X = append(p.X, xy[0])
				p.Y = append(p.Y, xy[1])
			}
			out = append(out, p)
		}
	}
	return out
}

func residuePositions(rows []store.Row) map[string]float64 {
	pos := map[string]float64{}
	var named []string
	last := 0.0
	for _, r := range rows {
		if _, ok := pos[r.Residue]; ok {
			continue
		}
		if v, err := strconv.ParseFloat(r.Residue, 64); err == nil {
			pos[r.Residue] = v
			last = max(last, v)
			continue
		}
		pos[r.Residue] = 0
		named = append(named, r.Residue)
	}
	for i, id := range named {
		pos[id] = last + float64(i+1)
	}
	return pos
}
