package equation

import (
	"math"
	"sort"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultTex is the saturation time, in s, assumed for CEST points that do
// not carry one.
const DefaultTex = 0.3

// Peak is a dip in a CEST profile or a maximum in an R1rho profile.
// Widths are full widths in Hz; LB and UB are the half widths below and
// above the centre.
type Peak struct {
	Index    int
	Position float64
	Depth    float64
	Baseline float64

	Width50, Width50LB, Width50UB float64
	Width25, Width25LB, Width25UB float64
	Width75, Width75LB, Width75UB float64
}

// sense is +1 when peaks point down (CEST) and -1 when they point up.
func sense(k Kind) float64 {
	if k == R1rho {
		return -1
	}
	return 1
}

// baseline returns the most extreme mean of an 8 point sliding window, the
// plateau away from any peak, and the standard deviation within it.
func baseline(y []float64, k Kind) (base, sd float64) {
	const win = 8
	if len(y) < win {
		return stat.MeanStdDev(y, nil)
	}
	s := sense(k)
	base = math.Inf(-int(s))
	for i := win; i <= len(y); i++ {
		mean, dev := stat.MeanStdDev(y[i-win:i], nil)
		if s*mean > s*base {
			base, sd = mean, dev
		}
	}
	return base, sd
}

// smoothSize picks the Savitzky-Golay window from the number of points.
func smoothSize(n int) int {
	switch {
	case n < 20:
		return 0
	case n < 30:
		return 5
	case n < 40:
		return 7
	case n < 50:
		return 9
	}
	return 11
}

// savitzkyGolay returns the convolution weights that evaluate a least
// squares polynomial of the given order at the centre of the window.
func savitzkyGolay(size, order int) []float64 {
	h := size / 2
	a := mat.NewDense(size, order+1, nil)
	for i := 0; i < size; i++ {
		t := float64(i - h)
		v := 1.0
		for j := 0; j <= order; j++ {
			a.Set(i, j, v)
			v *= t
		}
	}
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var c mat.Dense
	if err := c.Solve(&ata, a.T()); err != nil {
		return nil
	}
	return mat.Row(nil, 0, &c)
}

// smooth applies a running Savitzky-Golay filter of order 3. Points closer
// than half a window to either end are copied unchanged.
func smooth(y []float64, size int) []float64 {
	out := append([]float64(nil), y...)
	w := savitzkyGolay(size, 3)
	if w == nil {
		return out
	}
	h := size / 2
	for i := h; i < len(y)-h; i++ {
		v := 0.0
		for k, c := range w {
			v += c * y[i-h+k]
		}
		out[i] = v
	}
	return out
}

// findPeaks locates up to two peaks in a profile of offsets x (ppm) and
// intensities y. The most prominent peak comes first.
func findPeaks(x, y []float64, field float64, k Kind) []Peak {
	const nP = 2
	s := sense(k)
	base, sd := baseline(y, k)
	ratio := 3.0
	if k == R1rho {
		ratio = 1.5
	}
	if n := smoothSize(len(y)); k != R1rho && n != 0 {
		y = smooth(y, n)
	}
	threshold := base - s*sd*ratio

	var peaks []Peak
	for i := nP; i < len(y)-nP; i++ {
		if s*y[i] >= s*threshold {
			continue
		}
		ok := true
		for j := i - nP; j <= i+nP; j++ {
			if s*y[i] > s*y[j] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		peaks = append(peaks, measurePeak(x, y, i, base, field, k))
	}

	sort.SliceStable(peaks, func(a, b int) bool {
		return s*peaks[a].Depth < s*peaks[b].Depth
	})

	switch len(peaks) {
	case 0:
		return nil
	case 1:
		// add a shoulder on the wider side
		p := peaks[0]
		q := p
		if p.Width50LB > p.Width50UB {
			q.Position = p.Position + p.Width50LB/field/2
		} else {
			q.Position = p.Position - p.Width50UB/field/2
		}
		q.Depth = (base + p.Depth) / 2
		peaks = append(peaks, q)
	default:
		peaks = peaks[:2]
	}

	if math.Abs(peaks[0].Depth-base) < 0.05 || math.Abs(peaks[1].Depth-base) < 0.05 {
		return peaks[:1]
	}
	return peaks
}

func measurePeak(x, y []float64, iCenter int, base, field float64, k Kind) Peak {
	s := sense(k)
	yc := y[iCenter]
	levels := [3]float64{
		(base-yc)/2 + yc,
		(base-yc)/4 + yc,
		3*(base-yc)/4 + yc,
	}
	if k == R1rho {
		levels = [3]float64{
			(yc-base)/8 + base,
			(yc-base)/16 + base,
			3*(yc-base)/16 + base,
		}
	}

	var (
		pos   [3][2]float64
		found [3][2]bool
	)
	for w, level := range levels {
		for side := 0; side < 2; side++ {
			dir := side*2 - 1
			dIn, dOut := math.MaxFloat64, math.MaxFloat64
			iIn, iOut := 0, 0
			for j := iCenter + dir; j >= 0 && j < len(y); j += dir {
				delta := s * (y[j] - level)
				if delta < 0 {
					if -delta < dIn {
						dIn, iIn = -delta, j
					}
					continue
				}
				if delta < dOut {
					dOut, iOut = delta, j
				}
				break
			}
			found[w][side] = dIn != math.MaxFloat64 && dOut != math.MaxFloat64
			if found[w][side] {
				d := dIn + dOut
				pos[w][side] = x[iOut]*dIn/d + x[iIn]*dOut/d
			}
		}
	}

	xc := x[iCenter]
	var tab [3][3]float64
	for w := range tab {
		switch {
		case found[w][0]:
			tab[w][1] = math.Abs(pos[w][0]-xc) * field
		case found[w][1]:
			tab[w][1] = math.Abs(pos[w][1]-xc) * field
		case w > 0:
			tab[w][1] = tab[w-1][1] * 1.3
		}
		switch {
		case found[w][1]:
			tab[w][2] = math.Abs(pos[w][1]-xc) * field
		case found[w][0]:
			tab[w][2] = math.Abs(pos[w][0]-xc) * field
		case w > 0:
			tab[w][2] = tab[w-1][2] * 1.3
		}
		tab[w][0] = tab[w][1] + tab[w][2]
	}

	p := Peak{Index: iCenter, Position: xc, Depth: yc, Baseline: base}
	p.Width50, p.Width50LB, p.Width50UB = tab[0][0], tab[0][1], tab[0][2]
	p.Width25, p.Width25LB, p.Width25UB = tab[1][0], tab[1][1], tab[1][2]
	p.Width75, p.Width75LB, p.Width75UB = tab[2][0], tab[2][1], tab[2][2]
	return p
}

// prominence is the height of a peak above (or depth below) its baseline.
func (p Peak) prominence(k Kind) float64 {
	return sense(k) * (p.Baseline - p.Depth)
}

// Peaks runs the peak guesser on one curve. The first independent variable
// is the offset; points are split into runs of equal B1 field and the
// peaks of all runs are merged, dropping any that sit within half a width
// of a more prominent one. At most two peaks are returned, the most
// prominent first.
func Peaks(c *dataset.Curve, k Kind) []Peak {
	n := c.Len()
	b1 := c.Column(1)
	var all []Peak
	for start := 0; start < n; {
		end := n
		if b1 != nil {
			end = start + 1
			for end < n && b1[end] == b1[start] {
				end++
			}
		}
		for _, p := range findPeaks(c.X[0][start:end], c.Y[start:end], c.Field, k) {
			p.Index += start
			all = append(all, p)
		}
		start = end
	}
	sort.SliceStable(all, func(a, b int) bool {
		return all[a].prominence(k) > all[b].prominence(k)
	})

	var peaks []Peak
	for _, p := range all {
		distinct := true
		for _, q := range peaks {
			if math.Abs(p.Position-q.Position) < math.Max(q.Width50/c.Field/2, 0.1) {
				distinct = false
				break
			}
		}
		if distinct {
			peaks = append(peaks, p)
		}
		if len(peaks) == 2 {
			break
		}
	}
	return peaks
}

func pbGuess(peaks []Peak, k Kind) float64 {
	if len(peaks) < 2 {
		return 0.1
	}
	factor := 4.0
	if k == R1rho {
		factor = 40
	}
	pb := peaks[1].prominence(k) / peaks[0].prominence(k) / factor
	return math.Max(0.02, math.Min(pb, 0.2))
}

func r2Guess(peaks []Peak, pb float64, k Kind) (r2A, r2B float64) {
	aw := peaks[0].Width50 / (2 * math.Pi)
	if len(peaks) < 2 {
		return aw, aw
	}
	af, bf := 1.0, 1.0
	if k == R1rho {
		af, bf = 12, 6
	}
	bw := peaks[1].Width50 / (2 * math.Pi)
	kex := (aw + bw) / 2
	return math.Abs(aw-(1-pb)*kex) / af, math.Abs(bw-pb*kex) / bf
}

func kexGuess(peaks []Peak, k Kind) float64 {
	factor := 1.0
	if k == R1rho {
		factor = 3
	}
	kex := peaks[0].Width50 / (2 * math.Pi)
	if len(peaks) > 1 {
		kex = (kex + peaks[1].Width50/(2*math.Pi)) / 2
	}
	return kex / factor
}

func r1Guess(base, tex float64, k Kind) float64 {
	if k == R1rho {
		return base
	}
	if tex == 0 {
		return 0
	}
	return -math.Log(base) / tex
}

// r1Boundaries bounds R1 so the plateau intensity exp(-R1·tex) moves by at
// most delta.
func r1Boundaries(r1, tex, delta float64) (lo, hi float64) {
	b := math.Exp(-r1 * tex)
	lo = -math.Log(b+0.1) / tex
	up := math.Max(b-delta, 0.01)
	return lo, -math.Log(up) / tex
}

func texOf(c *dataset.Curve) float64 {
	if xs := c.Column(2); xs != nil && xs[0] > 0 {
		return xs[0]
	}
	return DefaultTex
}

// exchangeGuess fills the eight two-state parameters of every curve from
// its peaks.
func exchangeGuess(curves []dataset.Curve, m [][]int, k Kind) ([]float64, error) {
	g := make([]float64, nPars(m))
	for i := range curves {
		c := &curves[i]
		peaks := Peaks(c, k)
		if len(peaks) == 0 {
			return nil, ErrNoPeaks
		}
		pb := pbGuess(peaks, k)
		r2A, r2B := r2Guess(peaks, pb, k)
		r1 := positive(r1Guess(peaks[0].Baseline, texOf(c), k), 1)
		row := m[i]

		g[row[0]] = math.Max(kexGuess(peaks, k), 2)
		g[row[1]] = pb
		g[row[2]] = peaks[0].Position
		g[row[3]] = peaks[len(peaks)-1].Position
		if len(peaks) == 1 {
			g[row[3]] = peaks[0].Position - 1
		}
		g[row[4]] = r1
		g[row[5]] = r1
		g[row[6]] = positive(r2A, 5)
		g[row[7]] = positive(r2B, 20)
	}
	return g, nil
}

// noExGuess fills deltaA0, R1A and R2A from the main peak.
func noExGuess(curves []dataset.Curve, m [][]int, k Kind) ([]float64, error) {
	g := make([]float64, nPars(m))
	for i := range curves {
		c := &curves[i]
		peaks := Peaks(c, k)
		if len(peaks) == 0 {
			return nil, ErrNoPeaks
		}
		r2A, _ := r2Guess(peaks, pbGuess(peaks, k), k)
		row := m[i]
		g[row[0]] = peaks[0].Position
		g[row[1]] = positive(r1Guess(peaks[0].Baseline, texOf(c), k), 1)
		g[row[2]] = positive(r2A/2, 5)
	}
	return g, nil
}

// peakWidths returns half of the 50 % width, in ppm, of the two leading
// peaks of a curve.
func peakWidths(c *dataset.Curve, k Kind) [2]float64 {
	w := [2]float64{0.5, 0.5}
	peaks := Peaks(c, k)
	for i := 0; i < len(peaks) && i < 2; i++ {
		w[i] = positive(peaks[i].Width50/c.Field/2, 0.5)
	}
	if len(peaks) == 1 {
		w[1] = w[0]
	}
	return w
}
