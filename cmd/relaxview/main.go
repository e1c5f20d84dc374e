// Command relaxview shows the parameters of a run saved by relaxfit in a
// gnuplot window, one line per parameter and curve along the sequence.
//
// It needs gnuplot on PATH.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/HamletTheHamster/relaxfit/internal/plotting"
	"github.com/HamletTheHamster/relaxfit/internal/plotting/gnuplot"
	"github.com/HamletTheHamster/relaxfit/internal/store"
	"github.com/lmittmann/tint"
)

func main() {

	db := flag.String("db", "", "SQLite database written by relaxfit")
	runID := flag.String("run", "", "run id; the newest run when empty")
	pars := flag.String("par", "", "comma separated parameters; all when empty")
	list := flag.Bool("list", false, "list saved runs and exit")
	flag.Parse()

	slog.SetDefault(slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{TimeFormat: "15:04:05"}),
	))

	if *db == "" {
		fmt.Fprintln(os.Stderr, "relaxview: -db is required")
		flag.Usage()
		os.Exit(2)
	}
	if err := view(context.Background(), *db, *runID, *pars, *list); err != nil {
		slog.Error("relaxview", "err", err)
		os.Exit(1)
	}
}

func view(ctx context.Context, db, runID, pars string, list bool) error {
	s, err := store.Open(db)
	if err != nil {
		return err
	}
	defer s.Close()

	if list {
		runs, err := s.Runs(ctx)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Kind)
		}
		return nil
	}

	run, err := s.Run(ctx, runID)
	if err != nil {
		return err
	}
	rows, err := s.Results(ctx, run.ID)
	if err != nil {
		return err
	}

	var names []string
	for _, n := range strings.Split(pars, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	profiles := plotting.Profiles(rows, names)
	slog.Info("showing run", "run", run.ID, "kind", run.Kind, "profiles", len(profiles))
	return gnuplot.Show(fmt.Sprintf("%s run %s", run.Kind, run.ID[:8]), "Residue", "Value", profiles)
}
