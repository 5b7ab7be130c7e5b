// Package history records program runs in a SQLite database.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
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

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

var log = commonlog.GetLogger("stackvm.history")

// Run is one recorded program execution.
type Run struct {
	ID           string
	CreatedAt    time.Time
	ProgramHash  string
	Program      string
	Result       int64
	Output       string
	FaultKind    string // empty for a clean run
	FaultMessage string
	Steps        int64
}

// Failed reports whether the run ended in a fault or abort.
func (r *Run) Failed() bool {
	return r.FaultKind != ""
}

// Store handles SQLite storage for runs
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("history: creating directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: opening database: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		program_hash TEXT NOT NULL,
		program TEXT NOT NULL,
		result INTEGER NOT NULL,
		output TEXT NOT NULL,
		fault_kind TEXT NOT NULL DEFAULT '',
		fault_message TEXT NOT NULL DEFAULT '',
		steps INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS runs_created ON runs (created_at)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: creating index: %w", err)
	}

	log.Debugf("opened run history at %s", path)
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path the store was opened with.
func (s *Store) Path() string {
	return s.path
}

// HashProgram returns the hex SHA-256 of program text.
func HashProgram(program string) string {
	sum := sha256.Sum256([]byte(program))
	return hex.EncodeToString(sum[:])
}

// Record stores a run and returns its id. ID, CreatedAt and ProgramHash are
// filled in when empty.
func (s *Store) Record(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.ProgramHash == "" {
		r.ProgramHash = HashProgram(r.Program)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, program_hash, program, result, output, fault_kind, fault_message, steps)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.ProgramHash, r.Program, r.Result, r.Output,
		r.FaultKind, r.FaultMessage, r.Steps)
	if err != nil {
		return "", fmt.Errorf("history: recording run: %w", err)
	}
	return r.ID, nil
}

const selectRun = `SELECT id, created_at, program_hash, program, result, output, fault_kind, fault_message, steps FROM runs`

// Get loads a single run by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("history: loading run %s: %w", id, err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Count returns the number of recorded runs.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("history: counting runs: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var created int64
	err := sc.Scan(&r.ID, &created, &r.ProgramHash, &r.Program, &r.Result, &r.Output,
		&r.FaultKind, &r.FaultMessage, &r.Steps)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	return &r, nil
}
