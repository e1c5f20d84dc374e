package fit

import (
	"fmt"
	"os"

	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"gopkg.in/yaml.v3"
)

// Options controls fitting and error estimation.
type Options struct {
	Optimizer          string `yaml:"optimizer"`
	BootstrapOptimizer string `yaml:"bootstrapOptimizer"`

	// StartRadius is the initial step in percent of each range; repeats start
	// with half of it.
	StartRadius float64 `yaml:"startRadius"`
	FinalRadius float64 `yaml:"finalRadius"`
	Tolerance   float64 `yaml:"tolerance"`
	Polish      bool    `yaml:"polish"`

	SampleSize    int  `yaml:"sampleSize"`
	NonParametric bool `yaml:"nonParametric"`
	CalcErrors    bool `yaml:"calcErrors"`

	Weight  bool `yaml:"weight"`
	AbsMode bool `yaml:"absMode"`

	// RexRatio is how many times the RMS some curve's Rex must exceed
	// for CPMG exchange to count.
	RexRatio float64 `yaml:"rexRatio"`
	// DeltaABDiff is the smallest shift difference, in ppm, between the
	// states of a CEST or R1rho fit.
	DeltaABDiff float64 `yaml:"deltaABDiff"`
	// Alpha is the significance level of the Kex t-test.
	Alpha float64 `yaml:"alpha"`

	Workers int    `yaml:"workers"`
	Seed    uint64 `yaml:"seed"`
}

// DefaultOptions returns the defaults.
func DefaultOptions() Options {
	return Options{
		Optimizer:          optimizer.CMAES,
		BootstrapOptimizer: optimizer.CMAES,
		StartRadius:        20,
		FinalRadius:        -5,
		Tolerance:          -5,
		SampleSize:         200,
		CalcErrors:         true,
		Weight:             true,
		RexRatio:           3,
		DeltaABDiff:        0.1,
		Alpha:              0.02,
		Seed:               1,
	}
}

// LoadOptions reads YAML options from path over the defaults.
func LoadOptions(path string) (Options, error) {
	o := DefaultOptions()
	b, err := os.ReadFile(path)
	if err != nil {
		return o, err
	}
	if err := yaml.Unmarshal(b, &o); err != nil {
		return o, fmt.Errorf("%s: %w", path, err)
	}
	return o, nil
}

func (o Options) settings(method string) optimizer.Settings {
	s := optimizer.DefaultSettings()
	if method != "" {
		s.Method = method
	}
	s.Seed = o.Seed
	s.Tolerance = o.Tolerance
	s.Polish = o.Polish
	s.FinalRadius = o.FinalRadius
	return s
}
