package memory

import (
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
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
		t.Fatalf("second migration (idempotent) failed: %v", err)
	}

	version, err := GetSchemaVersion(db)
	if err != nil {
		t.Fatal(err)
	}
	if version != schemaVersion {
		t.Errorf("expected schema version %d, got %d", schemaVersion, version)
	}
}

func TestRunMigrations_UpgradesUnversionedDB(t *testing.T) {
	db := testDB(t)

	// A database written before schema tracking already has every column.
	if _, err := db.Exec(`
		CREATE TABLE transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			command TEXT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user TEXT NOT NULL DEFAULT 'user',
			role TEXT NOT NULL DEFAULT 'user'
		)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO transcriptions (text, user, role) VALUES ('bonjour', 'alice', 'user')`); err != nil {
		t.Fatal(err)
	}

	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM transcriptions WHERE user = 'alice'").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected existing row to survive, got %d rows", count)
	}
}

func TestRunMigrations_RoleCheckConstraint(t *testing.T) {
	db := testDB(t)
	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatal(err)
	}

	_, err := db.Exec(`INSERT INTO transcriptions (text, user, role) VALUES ('x', 'u', 'assistant')`)
	if err == nil {
		t.Fatal("expected CHECK constraint to reject role 'assistant'")
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

func TestAlreadyApplied(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"SQL logic error: duplicate column name: user (1)", true},
		{"index idx_transcriptions_user already exists", true},
		{"no such table: transcriptions", false},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			if got := alreadyApplied(errors.New(tt.msg)); got != tt.want {
				t.Errorf("alreadyApplied(%q) = %v, want %v", tt.msg, got, tt.want)
			}
		})
	}
}

func TestRunMigrations_PartialLegacySchema(t *testing.T) {
	db := testDB(t)

	// user column present, role column missing.
	if _, err := db.Exec(`
		CREATE TABLE transcriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			text TEXT NOT NULL,
			command TEXT,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			user TEXT NOT NULL DEFAULT 'user'
		)`); err != nil {
		t.Fatal(err)
	}

	if err := RunMigrations(db, testLogger()); err != nil {
		t.Fatalf("upgrade failed: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO transcriptions (text, user, role) VALUES ('salut', 'bob', 'bot')`); err != nil {
		t.Fatalf("role column should exist after upgrade: %v", err)
	}
}
