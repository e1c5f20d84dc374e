package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"github.com/HamletTheHamster/relaxfit/internal/modelfree"
	"github.com/HamletTheHamster/relaxfit/internal/optimizer"
	"github.com/HamletTheHamster/relaxfit/internal/plotting"
	"gopkg.in/yaml.v3"
)

// modelFreeFile is the -modelfree input.
type modelFreeFile struct {
	Options  modelfree.Options `yaml:"options"`
	Models   []string          `yaml:"models"`
	Residues []modelfree.Data  `yaml:"residues"`
}

func readModelFree(path string) (modelFreeFile, error) {
	var f modelFreeFile
	b, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(b, &f); err != nil {
		return f, fmt.Errorf("%s: %w", path, err)
	}
	if len(f.Models) == 0 {
		f.Models = modelfree.Names()
	}
	return f, nil
}

// runModelFree selects a spectral density model for every residue of the
// -modelfree file.
func runModelFree(ctx context.Context, cfg config, opts fit.Options, now time.Time) error {

	f, err := readModelFree(cfg.modelFree)
	if err != nil {
		return err
	}

	s := optimizer.DefaultSettings()
	s.Method = opts.Optimizer
	s.Seed = opts.Seed
	s.Tolerance = opts.Tolerance

	log := []string{
		fmt.Sprintf("relaxfit model-free %s\n", now.Format(time.RFC3339)),
		fmt.Sprintf("input: %s\ntauM: %g ns\nmodels: %v\n\n", cfg.modelFree, f.Options.TauM, f.Models),
	}
	var (
		results   []*fit.Result
		cancelled bool
	)
	for i, d := range f.Residues {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		best, _, err := modelfree.Select(f.Models, f.Options, d, opts.StartRadius, s)
		if errors.Is(err, modelfree.ErrNoSuchModel) || errors.Is(err, modelfree.ErrTauM) {
			return err
		}
		if err != nil {
			slog.Warn("skipping residue", "residue", d.ID, "err", err)
			continue
		}
		slog.Info("residue done", "residue", d.ID, "model", best.Model, "done", i+1, "total", len(f.Residues))

		values := map[string]float64{"ChiSq": best.ChiSq}
		if best.AICcValid {
			values["AICc"] = best.AICc
		}
		for j, n := range best.ParNames {
			values[n] = best.Pars[j]
		}
		r := &fit.Result{
			Equation:      "MODELFREE_" + best.Model,
			Pars:          best.Pars,
			AICc:          best.AICc,
			AICcValid:     best.AICcValid,
			ExchangeValid: true,
			Curves:        []fit.CurveResult{{ID: d.ID, Values: values}},
		}
		results = append(results, r)
		log = append(log, report(r)...)
	}

	if err := finish(cfg, "modelfree", opts, results, log, plotting.RunDir(cfg.plots, now)); err != nil {
		return err
	}
	if cancelled {
		return ctx.Err()
	}
	return nil
}
