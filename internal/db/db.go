package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/casekeep/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the base directory.
const FileName = "casekeep.db"

// Init opens the SQLite database at baseDir/casekeep.db and ensures its schema.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.casekeep.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	_ = os.Chmod(baseDir, 0700)

	db, err := Open(filepath.Join(baseDir, FileName))
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(filepath.Join(baseDir, FileName), 0600)

	return db, nil
}

// Open opens the database file with WAL and busy_timeout pragmas in the connection
// string (applies to all pooled connections). It does not touch the schema.
func Open(dbPath string) (*sql.DB, error) {
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migration is one schema step; version is the user_version it leaves behind.
type migration struct {
	version int
	stmts   []string
}

var migrations = []migration{
	// 1: the three base relations. Column layout matches databases written by
	// earlier tooling so those files open without rewriting.
	{version: 1, stmts: []string{
		`CREATE TABLE IF NOT EXISTS chat_history (
		  id        INTEGER PRIMARY KEY AUTOINCREMENT,
		  question  TEXT NOT NULL,
		  answer    TEXT NOT NULL,
		  timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS case_state (
		  id               INTEGER PRIMARY KEY AUTOINCREMENT,
		  session_id       TEXT NOT NULL,
		  company          TEXT,
		  industry         TEXT,
		  geography        TEXT,
		  hypothesis_tree  TEXT,
		  current_question TEXT,
		  last_updated     DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS feedback_logs (
		  id               INTEGER PRIMARY KEY AUTOINCREMENT,
		  session_id       TEXT NOT NULL,
		  timestamp        DATETIME DEFAULT CURRENT_TIMESTAMP,
		  user_input       TEXT,
		  ai_response      TEXT,
		  feedback_type    TEXT,
		  feedback_details TEXT
		)`,
	}},
	// 2: session scoping for chat history and the one-row-per-session index.
	// Duplicate case_state rows (possible under the old check-then-insert writer)
	// collapse to the newest before the unique index is built.
	{version: 2, stmts: []string{
		`ALTER TABLE chat_history ADD COLUMN session_id TEXT`,
		`CREATE INDEX IF NOT EXISTS idx_chat_history_session
		 ON chat_history(session_id, id)
		 WHERE session_id IS NOT NULL`,
		`DELETE FROM case_state
		 WHERE id NOT IN (SELECT MAX(id) FROM case_state GROUP BY session_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_case_state_session
		 ON case_state(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_logs_session
		 ON feedback_logs(session_id, id)`,
	}},
}

// EnsureSchema applies pending migrations based on user_version.
// Safe to call on every start, including from several processes at once:
// pending migrations run under one write lock and the version is re-read
// after the lock is held, so only the first starter applies them.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}
	if version >= CurrentSchemaVersion {
		return nil
	}

	// BEGIN IMMEDIATE needs a single connection for the whole transaction.
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migration: acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("migration: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := conn.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("failed to get user_version: %w", err)
	}

	for _, m := range migrations {
		if version >= m.version {
			continue
		}
		if err := applyMigration(ctx, conn, m); err != nil {
			return err
		}
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("migration: commit: %w", err)
	}
	committed = true
	return nil
}

// applyMigration runs one migration and bumps user_version inside the
// caller's open transaction.
func applyMigration(ctx context.Context, conn *sql.Conn, m migration) error {
	for _, stmt := range m.stmts {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
	}
	if _, err := conn.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version=%d", m.version)); err != nil {
		return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
	}
	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
