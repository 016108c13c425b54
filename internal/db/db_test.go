package db

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(tmpDir, FileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file not created at %s", dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	for _, table := range []string{"chat_history", "case_state", "feedback_logs"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("%s table not found: %v", table, err)
		}
	}
}

func TestInit_CreatesDirectories(t *testing.T) {
	tmpDir := t.TempDir()
	baseDir := filepath.Join(tmpDir, "nested", "path", ".casekeep")

	db, err := Init(baseDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	// Verify nested directories were created
	if _, err := os.Stat(baseDir); os.IsNotExist(err) {
		t.Errorf("base directory not created at %s", baseDir)
	}
}

func TestUserVersion(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	// After Init, version should be CurrentSchemaVersion (migration ran)
	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after Init = %d, want %d", version, CurrentSchemaVersion)
	}

	// Test setting a higher version
	if err := SetUserVersion(db, 99); err != nil {
		t.Fatalf("SetUserVersion() error = %v", err)
	}

	// Verify version was set
	version, err = GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != 99 {
		t.Errorf("user_version = %d, want 99", version)
	}
}

func TestInit_MigrationIdempotent(t *testing.T) {
	tmpDir := t.TempDir()

	// First Init
	db1, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("first Init() error = %v", err)
	}
	db1.Close()

	// Second Init on same DB should succeed (migrations skip if already applied)
	db2, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("second Init() error = %v", err)
	}
	defer db2.Close()

	// Version should still be CurrentSchemaVersion
	version, err := GetUserVersion(db2)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version after second Init = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_SchemaIndexes(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	indexes := []string{
		"idx_chat_history_session",
		"idx_case_state_session",
		"idx_feedback_logs_session",
	}

	for _, idx := range indexes {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&name)
		if err != nil {
			t.Errorf("index %s not found: %v", idx, err)
		}
	}
}

func TestEnsureSchema_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	for i := 0; i < 3; i++ {
		if err := EnsureSchema(context.Background(), db); err != nil {
			t.Fatalf("EnsureSchema() call %d error = %v", i, err)
		}
	}
}

// TestInit_ConcurrentFreshDatabase starts several openers on one new file;
// exactly one applies the migrations and the rest see them applied.
func TestInit_ConcurrentFreshDatabase(t *testing.T) {
	const openers = 4

	for round := 0; round < 10; round++ {
		tmpDir := t.TempDir()

		var wg sync.WaitGroup
		errs := make(chan error, openers)
		for i := 0; i < openers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				db, err := Init(tmpDir)
				if err != nil {
					errs <- err
					return
				}
				db.Close()
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			t.Errorf("round %d: concurrent Init() error = %v", round, err)
		}

		db, err := Init(tmpDir)
		if err != nil {
			t.Fatalf("round %d: Init() after race error = %v", round, err)
		}
		version, err := GetUserVersion(db)
		db.Close()
		if err != nil {
			t.Fatalf("GetUserVersion() error = %v", err)
		}
		if version != CurrentSchemaVersion {
			t.Errorf("round %d: user_version = %d, want %d", round, version, CurrentSchemaVersion)
		}
	}
}

// TestEnsureSchema_UpgradesLegacyDatabase opens a file laid out the way the
// earlier tooling wrote it (no session_id on chat_history, duplicate case rows).
func TestEnsureSchema_UpgradesLegacyDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, FileName)

	legacy, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	stmts := []string{
		`CREATE TABLE chat_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP)`,
		`INSERT INTO chat_history (question, answer) VALUES ('What is chunking?', 'Splitting text.')`,
		`CREATE TABLE case_state (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			company TEXT, industry TEXT, geography TEXT,
			hypothesis_tree TEXT, current_question TEXT,
			last_updated DATETIME DEFAULT CURRENT_TIMESTAMP)`,
		`INSERT INTO case_state (session_id, company) VALUES ('s1', 'old')`,
		`INSERT INTO case_state (session_id, company) VALUES ('s1', 'new')`,
	}
	for _, stmt := range stmts {
		if _, err := legacy.Exec(stmt); err != nil {
			t.Fatalf("seed legacy schema: %v", err)
		}
	}
	legacy.Close()

	db, err := Init(tmpDir)
	if err != nil {
		t.Fatalf("Init() on legacy db error = %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	turns, err := ListTurns(ctx, db, nil, 0, 0)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if len(turns) != 1 || turns[0].Question != "What is chunking?" {
		t.Fatalf("turns = %+v, want the legacy turn", turns)
	}
	if turns[0].Timestamp.IsZero() {
		t.Error("legacy CURRENT_TIMESTAMP value should parse")
	}

	cs, err := GetCaseState(ctx, db, "s1")
	if err != nil {
		t.Fatalf("GetCaseState() error = %v", err)
	}
	if cs.Company == nil || *cs.Company != "new" {
		t.Errorf("Company = %v, want newest duplicate kept", cs.Company)
	}

	n, err := CountCaseStates(ctx, db)
	if err != nil {
		t.Fatalf("CountCaseStates() error = %v", err)
	}
	if n != 1 {
		t.Errorf("case_state rows = %d, want 1 after dedup", n)
	}
}
