package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jmoiron/sqlx"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Store owns the SQLite database holding the current session slot, the
// session history, the answer statistics log and the LLM request log.
type Store struct {
	db  *sqlx.DB
	seq *sequenceCounter
}

// Open creates a new Store connected to the SQLite database at dsn.
// It applies recommended pragmas and creates the schema.
func Open(dsn string) (*Store, error) {
	raw, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps writes serialized and makes
	// shared-cache in-memory databases behave like a file.
	raw.SetMaxOpenConns(1)

	if err := applyPragmas(raw); err != nil {
		raw.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	db := sqlx.NewDb(raw, "sqlite")
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seq, err := newSequenceCounter(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, seq: seq}, nil
}

// DB returns the underlying database handle for raw queries.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SessionRepo returns the session slot and history repository.
func (s *Store) SessionRepo() SessionRepo {
	return &sessionRepo{db: s.db, seq: s.seq}
}

// StatsRepo returns the answer statistics repository.
func (s *Store) StatsRepo() StatsRepo {
	return &statsRepo{db: s.db, seq: s.seq}
}

// EventRepo returns the LLM request event repository.
func (s *Store) EventRepo() EventRepo {
	return &eventRepo{db: s.db, seq: s.seq}
}

// builder returns an SQLite flavoured ent query builder.
func builder() *entsql.DialectBuilder {
	return entsql.Dialect(dialect.SQLite)
}

// applyPragmas configures SQLite for optimal single-user performance.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS session_slot (
		slot       TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS session_history (
		session_id TEXT PRIMARY KEY,
		sequence   INTEGER NOT NULL,
		status     TEXT NOT NULL,
		data       TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS session_history_sequence ON session_history (sequence)`,
	`CREATE TABLE IF NOT EXISTS answer_statistics (
		sequence         INTEGER PRIMARY KEY,
		session_id       TEXT NOT NULL,
		assessment       TEXT NOT NULL,
		primary_class_cd TEXT NOT NULL,
		skill_cd         TEXT NOT NULL,
		question_id      TEXT NOT NULL,
		external_id      TEXT NOT NULL DEFAULT '',
		ibn              TEXT NOT NULL DEFAULT '',
		answer           TEXT NOT NULL,
		is_correct       INTEGER NOT NULL,
		time_ms          INTEGER NOT NULL,
		recorded_at      INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS answer_statistics_skill ON answer_statistics (skill_cd)`,
	`CREATE TABLE IF NOT EXISTS llm_requests (
		sequence      INTEGER PRIMARY KEY,
		provider      TEXT NOT NULL,
		model         TEXT NOT NULL,
		purpose       TEXT NOT NULL,
		input_tokens  INTEGER NOT NULL,
		output_tokens INTEGER NOT NULL,
		latency_ms    INTEGER NOT NULL,
		success       INTEGER NOT NULL,
		error_message TEXT NOT NULL DEFAULT '',
		recorded_at   INTEGER NOT NULL
	)`,
}

func migrate(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. SATPREP_DB environment variable
// 2. $XDG_DATA_HOME/satprep/satprep.db
// 3. ~/.local/share/satprep/satprep.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("SATPREP_DB"); p != "" {
		return p, EnsureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "satprep", "satprep.db")
	return p, EnsureDir(p)
}

// EnsureDir creates the parent directory of path if it doesn't exist.
func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
