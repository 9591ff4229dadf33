// Package history records program runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("c0vm.history")

// timeLayout is fixed-width so that started_at sorts chronologically as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

// Run is one execution of a program.
type Run struct {
	ID          string
	ProgramHash string
	File        string
	StartedAt   time.Time
	Duration    time.Duration
	Steps       uint64
	Result      int32
	ErrorKind   string // empty when the program returned normally
	ErrorMsg    string
}

// Failed reports whether the run ended in an error.
func (r *Run) Failed() bool {
	return r.ErrorKind != ""
}

// Store handles SQLite storage for runs
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

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
		program_hash TEXT NOT NULL,
		file TEXT NOT NULL,
		started_at TEXT NOT NULL,
		duration_ns INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		result INTEGER NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		error_msg TEXT NOT NULL DEFAULT ''
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	log.Infof("opened run history %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores r, assigning an ID if it has none, and returns the ID.
func (s *Store) Record(ctx context.Context, r *Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, program_hash, file, started_at, duration_ns, steps, result, error_kind, error_msg)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProgramHash, r.File, r.StartedAt.UTC().Format(timeLayout),
		int64(r.Duration), int64(r.Steps), r.Result, r.ErrorKind, r.ErrorMsg,
	)
	if err != nil {
		return "", fmt.Errorf("saving run: %w", err)
	}

	log.Debugf("recorded run %s of %s", r.ID, r.File)
	return r.ID, nil
}

const selectRuns = `SELECT id, program_hash, file, started_at, duration_ns, steps, result, error_kind, error_msg FROM runs`

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRuns+" WHERE id = ?", id)
	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return r, nil
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+" ORDER BY started_at DESC, rowid DESC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ForProgram returns every run of the program with the given hash, newest first.
func (s *Store) ForProgram(ctx context.Context, hash string) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectRuns+" WHERE program_hash = ? ORDER BY started_at DESC, rowid DESC", hash)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var (
		r        Run
		started  string
		duration int64
		steps    int64
	)
	if err := sc.Scan(&r.ID, &r.ProgramHash, &r.File, &started, &duration, &steps, &r.Result, &r.ErrorKind, &r.ErrorMsg); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, started)
	if err != nil {
		return nil, fmt.Errorf("bad timestamp %q: %w", started, err)
	}
	r.StartedAt = t
	r.Duration = time.Duration(duration)
	r.Steps = uint64(steps)
	return &r, nil
}
