// Package gnuplot opens stored profiles in a gnuplot window.
//
// Importing it requires gnuplot on PATH: the wrapper it builds on looks the
// binary up when the program starts and panics when it is missing. Only
// commands meant for interactive viewing should import it.
package gnuplot

import (
	"github.com/Arafatk/glot"
	"github.com/HamletTheHamster/relaxfit/internal/plotting"
)

// Show draws profiles in one persistent window.
func Show(title, xlabel, ylabel string, profiles []plotting.Profile) error {
	plot, err := glot.NewPlot(2, true, false)
	if err != nil {
		return err
	}
	plot.SetTitle(title)
	plot.SetXLabel(xlabel)
	plot.SetYLabel(ylabel)

	for _, p := range profiles {
		if len(p.X) == 0 {
			continue
		}
		if err := plot.AddPointGroup(p.Label, "linepoints", [][]float64{p.X, p.Y}); err != nil {
			return err
		}
	}
	return nil
}
