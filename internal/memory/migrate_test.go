package memory

import (
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestRunMigrations_FreshDB(t *testing.T) {
	db := testDB(t)

	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Errorf("expected schema version %d, got %d", schemaVersion, version)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	logger := testLogger()

	if err := RunMigrations(db, logger); err != nil {
		t.Fatalf("first migration failed: %v", err)
	}
	if err := RunMigrations(db, logger); err != nil {
		t.Fatalf("second migration failed: %v", err)
	}

	var rows int
	db.QueryRow("SELECT COUNT(*) FROM schema_version").Scan(&rows)
	if rows != len(migrations) {
		t.Errorf("expected %d schema_version rows, got %d", len(migrations), rows)
	}
}

func TestRunMigrations_CreatesExpectedTables(t *testing.T) {
	db := testDB(t)

	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatal(err)
	}

	for _, table := range []string{"conversations", "messages", "search_cache", "schema_version"} {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestRunMigrations_V2_SearchCache(t *testing.T) {
	db := testDB(t)

	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatal(err)
	}

	_, err := db.Exec(
		"INSERT INTO search_cache (query, response, created_at, expires_at) VALUES (?, ?, ?, ?)",
		"what is go", `{"content":"x"}`, 1, 2,
	)
	if err != nil {
		t.Fatalf("insert into search_cache failed: %v", err)
	}

	// query is the primary key
	_, err = db.Exec(
		"INSERT INTO search_cache (query, response, created_at, expires_at) VALUES (?, ?, ?, ?)",
		"what is go", `{"content":"y"}`, 1, 2,
	)
	if err == nil {
		t.Error("expected duplicate query to be rejected")
	}
}

func TestGetSchemaVersion_NoTable(t *testing.T) {
	db := testDB(t)
	version, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != 0 {
		t.Errorf("expected version 0 for empty db, got %d", version)
	}
}

func TestSplitSQL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"single", "CREATE TABLE t (id INT)", 1},
		{"multiple", "CREATE TABLE t1 (id INT); CREATE TABLE t2 (id INT)", 2},
		{"trailing semicolon", "CREATE TABLE t (id INT);", 1},
		{"whitespace", "  CREATE TABLE t (id INT)  ;  ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitSQL(tt.input)
			if len(result) != tt.expected {
				t.Errorf("expected %d statements, got %d: %v", tt.expected, len(result), result)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := truncate("0123456789abc", 10); len(got) <= 10 || got[:10] != "0123456789" {
		t.Errorf("got %q", got)
	}
}
