// Command relaxfit fits relaxation dispersion and relaxation rate curves
// residue by residue and reports the best equation of each.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/HamletTheHamster/relaxfit/internal/dataset"
	"github.com/HamletTheHamster/relaxfit/internal/equation"
	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"github.com/HamletTheHamster/relaxfit/internal/plotting"
	"github.com/HamletTheHamster/relaxfit/internal/store"
	"github.com/lmittmann/tint"
)

type config struct {
	in, eqs, kind string
	options       string
	db, plots     string
	modelFree     string
	samples       int
	nonParametric bool
	noErrors      bool
	verbose       bool
}

func main() {

	cfg := flags()

	level := slog.LevelInfo
	if cfg.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, time.Now()); err != nil {
		slog.Error("relaxfit", "err", err)
		os.Exit(1)
	}
}

func flags() config {

	var cfg config

	flag.StringVar(&cfg.in, "in", "", "curve table (CSV)")
	flag.StringVar(&cfg.eqs, "eq", "", "comma separated equations; all of the kind when empty")
	flag.StringVar(&cfg.kind, "kind", "cpmg", "experiment: cpmg, cest, r1rho or exp")
	flag.StringVar(&cfg.options, "config", "", "fit options (YAML)")
	flag.StringVar(&cfg.db, "db", "", "SQLite database for results")
	flag.StringVar(&cfg.plots, "plots", "plots", "directory for figures and the run log; empty for none")
	flag.StringVar(&cfg.modelFree, "modelfree", "", "model-free rates (YAML) instead of curves")
	flag.IntVar(&cfg.samples, "samples", 0, "repeats for error estimation")
	flag.BoolVar(&cfg.nonParametric, "nonparametric", false, "bootstrap errors instead of parametric")
	flag.BoolVar(&cfg.noErrors, "noerrors", false, "skip error estimation")
	flag.BoolVar(&cfg.verbose, "v", false, "debug logging")
	flag.Parse()

	if cfg.in == "" && cfg.modelFree == "" {
		fmt.Fprintln(os.Stderr, "relaxfit: -in or -modelfree is required")
		flag.Usage()
		os.Exit(2)
	}

	return cfg
}

func loadOptions(cfg config) (fit.Options, error) {
	opts := fit.DefaultOptions()
	if cfg.options != "" {
		var err error
		if opts, err = fit.LoadOptions(cfg.options); err != nil {
			return opts, err
		}
	}
	if cfg.samples > 0 {
		opts.SampleSize = cfg.samples
	}
	if cfg.nonParametric {
		opts.NonParametric = true
	}
	if cfg.noErrors {
		opts.CalcErrors = false
	}
	return opts, nil
}

func run(ctx context.Context, cfg config, now time.Time) error {

	opts, err := loadOptions(cfg)
	if err != nil {
		return err
	}
	if cfg.modelFree != "" {
		return runModelFree(ctx, cfg, opts, now)
	}

	kind, err := equation.ParseKind(cfg.kind)
	if err != nil {
		return err
	}
	names := splitNames(cfg.eqs)
	if len(names) == 0 {
		names = equation.Names(kind)
	}
	for _, n := range names {
		if _, err := equation.Lookup(kind, n); err != nil {
			return err
		}
	}

	fh, err := os.Open(cfg.in)
	if err != nil {
		return err
	}
	curves, err := dataset.ReadCSV(fh)
	fh.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.in, err)
	}
	groups := dataset.GroupByID(curves)
	slog.Info("read curves", "file", cfg.in, "curves", len(curves), "residues", len(groups))

	results, err := fit.New(kind, opts).FitResidues(ctx, groups, names,
		func(done, total int, id string) {
			slog.Info("residue done", "residue", id, "done", done, "total", total)
		})
	cancelled := err != nil && ctx.Err() != nil
	if err != nil && !cancelled {
		return err
	}

	byID := map[string][]dataset.Curve{}
	for _, g := range groups {
		byID[g[0].ID] = g
	}

	log := []string{
		fmt.Sprintf("relaxfit %s\n", now.Format(time.RFC3339)),
		fmt.Sprintf("input: %s\nkind: %s\nequations: %s\n\n", cfg.in, kind, strings.Join(names, ", ")),
	}
	dir := plotting.RunDir(cfg.plots, now)
	for _, r := range results {
		log = append(log, report(r)...)
		g := byID[r.Curves[0].ID]
		eq, err := equation.Lookup(kind, r.Equation)
		if err != nil {
			return err
		}
		if cfg.plots != "" {
			p, err := plotting.FitFigure(r, g, eq)
			if err != nil {
				return err
			}
			if err := plotting.Save(p, dir, "residue-"+r.Curves[0].ID); err != nil {
				return err
			}
		}
	}

	if err := finish(cfg, kind.String(), opts, results, log, dir); err != nil {
		return err
	}
	if cancelled {
		return ctx.Err()
	}
	return nil
}

// finish saves results and writes the run log.
func finish(
	cfg config,
	kind string,
	opts fit.Options,
	results []*fit.Result,
	log []string,
	dir string,
) error {
	if cfg.db != "" {
		s, err := store.Open(cfg.db)
		if err != nil {
			return err
		}
		defer s.Close()
		// Results of a cancelled run are still saved.
		id, err := s.SaveRun(context.Background(), kind, opts, results)
		if err != nil {
			return err
		}
		log = append(log, fmt.Sprintf("run id: %s\n", id))
		slog.Info("saved run", "db", cfg.db, "run", id)
	}
	if cfg.plots != "" {
		if err := plotting.WriteLog(dir, log); err != nil {
			return err
		}
		slog.Info("wrote log", "dir", dir)
	}
	return nil
}

func splitNames(s string) []string {
	var out []string
	for _, n := range strings.Split(s, ",") {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func report(r *fit.Result) []string {
	lines := []string{fmt.Sprintf("%s  RMS %.4g  AICc %s  exchange valid %t\n",
		r.Equation, r.RMS, aiccString(r), r.ExchangeValid)}
	for ci, c := range r.Curves {
		names := make([]string, 0, len(c.Values))
		for n := range c.Values {
			if !strings.HasSuffix(n, ".sd") {
				names = append(names, n)
			}
		}
		sort.Strings(names)
		lines = append(lines, fmt.Sprintf("  residue %s curve %d state %v\n", c.ID, ci, c.State))
		for _, n := range names {
			if sd, ok := c.Values[n+".sd"]; ok {
				lines = append(lines, fmt.Sprintf("    %-10s %12.5g ± %.3g\n", n, c.Values[n], sd))
			} else {
				lines = append(lines, fmt.Sprintf("    %-10s %12.5g\n", n, c.Values[n]))
			}
		}
	}
	return append(lines, "\n")
}

func aiccString(r *fit.Result) string {
	if !r.AICcValid {
		return "n/a"
	}
	return fmt.Sprintf("%.4g", r.AICc)
}
