// Package results stores scenario run outcomes in a SQLite database.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/bufgrind/harness"
)

// ErrNoRuns indicates no run has been recorded for the scenario.
var ErrNoRuns = errors.New("no runs recorded")

// Store keeps one row per scenario run.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the results database at path, creating it and its schema
// if needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		device TEXT NOT NULL,
		started TEXT NOT NULL,
		finished TEXT NOT NULL,
		pass INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		report BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Run is one recorded scenario run.
type Run struct {
	ID       string
	Scenario string
	Device   string
	Started  time.Time
	Finished time.Time
	Pass     bool
	Error    string
	Report   *harness.RunReport
}

// Record stores the outcome of one scenario run. A nil runErr records
// a pass.
func (s *Store) Record(scenario string, rep *harness.RunReport, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := harness.MarshalReport(rep)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	pass := 1
	errText := ""
	if runErr != nil {
		pass = 0
		errText = runErr.Error()
	}

	_, err = s.db.Exec(
		`INSERT INTO runs (id, scenario, device, started, finished, pass, error, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rep.ID, scenario, rep.Device,
		rep.Started.Format(time.RFC3339Nano), rep.Finished.Format(time.RFC3339Nano),
		pass, errText, blob,
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// LastRun returns the most recently recorded run of the scenario.
func (s *Store) LastRun(scenario string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, scenario, device, started, finished, pass, error, report
		 FROM runs WHERE scenario = ? ORDER BY rowid DESC LIMIT 1`, scenario)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scenario %s: %w", scenario, ErrNoRuns)
	}
	if err != nil {
		return nil, fmt.Errorf("loading last run: %w", err)
	}
	return run, nil
}

// History returns all recorded runs of the scenario, newest first.
func (s *Store) History(scenario string) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, scenario, device, started, finished, pass, error, report
		 FROM runs WHERE scenario = ? ORDER BY rowid DESC`, scenario)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("loading run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	return runs, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var started, finished string
	var pass int
	var blob []byte

	if err := sc.Scan(&r.ID, &r.Scenario, &r.Device, &started, &finished, &pass, &r.Error, &blob); err != nil {
		return nil, err
	}

	var err error
	if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parsing started time: %w", err)
	}
	if r.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("parsing finished time: %w", err)
	}
	r.Pass = pass != 0
	if r.Report, err = harness.UnmarshalReport(blob); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &r, nil
}
