// Package store persists fit runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/HamletTheHamster/relaxfit/internal/fit"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	kind        TEXT NOT NULL,
	options     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	residue     TEXT NOT NULL,
	curve       INTEGER NOT NULL,
	equation    TEXT NOT NULL,
	name        TEXT NOT NULL,
	value       REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS results_run ON results(run_id, residue);
`

// stampFormat keeps every fraction digit so stamps sort as text.
const stampFormat = "2006-01-02T15:04:05.000000000Z07:00"

var ErrNoRun = errors.New("store: no such run")

// Store holds fit runs.
type Store struct {
	db *sql.DB
}

// Run describes one saved run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Kind      string
	Options   fit.Options
}

// Row is one stored value.
type Row struct {
	Residue  string
	Curve    int
	Equation string
	Name     string
	Value    float64
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores the results of one run under a new id. Values that are not
// finite are left out.
func (s *Store) SaveRun(
	ctx context.Context,
	kind string,
	opts fit.Options,
	results []*fit.Result,
) (
	string, error,
) {
	id := uuid.New().String()
	y, err := yaml.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("marshal options: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, kind, options) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().Format(stampFormat), kind, string(y),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (run_id, residue, curve, equation, name, value) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		for ci, c := range r.Curves {
			names := make([]string, 0, len(c.Values))
			for n := range c.Values {
				names = append(names, n)
			}
			sort.Strings(names)
			for _, n := range names {
				v := c.Values[n]
				if math.IsNaN(v) || math.IsInf(v, 0) {
					continue
				}
				if _, err := stmt.ExecContext(ctx, id, c.ID, ci, r.Equation, n, v); err != nil {
					return "", fmt.Errorf("insert %s %s: %w", c.ID, n, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// Runs lists saved runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, created_at, kind, options FROM runs ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r       Run
			created string
			opts    string
		)
		if err := rows.Scan(&r.ID, &created, &r.Kind, &opts); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("run %s: %w", r.ID, err)
		}
		if err := yaml.Unmarshal([]byte(opts), &r.Options); err != nil {
			return nil, fmt.Errorf("run %s options: %w", r.ID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Run returns the run with id, or the newest run when id is empty.
func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	runs, err := s.Runs(ctx)
	if err != nil {
		return Run{}, err
	}
	for _, r := range runs {
		if id == "" || r.ID == id {
			return r, nil
		}
	}
	if id == "" {
		return Run{}, fmt.Errorf("empty database: %w", ErrNoRun)
	}
	return Run{}, fmt.Errorf("%s: %w", id, ErrNoRun)
}

// Results returns the values of a run in insertion order.
func (s *Store) Results(ctx context.Context, runID string) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT residue, curve, equation, name, value FROM results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.Residue, &r.Curve, &r.Equation, &r.Name, &r.Value); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
