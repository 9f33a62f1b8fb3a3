package memory

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// schemaVersion is the version a fully migrated database reports.
const schemaVersion = 2

type migration struct {
	Version     int
	Description string
	Statements  []string
}

// migrations run in order, each at most once, recorded in schema_version.
var migrations = []migration{
	{
		Version:     1,
		Description: "transcriptions table",
		Statements: []string{
			`CREATE TABLE IF NOT EXISTS transcriptions (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				text        TEXT NOT NULL,
				command     TEXT,
				timestamp   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			)`,
		},
	},
	{
		Version:     2,
		Description: "per-user transcripts with user/bot role",
		Statements: []string{
			`ALTER TABLE transcriptions ADD COLUMN user TEXT NOT NULL DEFAULT 'user'`,
			`ALTER TABLE transcriptions ADD COLUMN role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'bot'))`,
			`CREATE INDEX IF NOT EXISTS idx_transcriptions_user ON transcriptions(user, id)`,
		},
	},
}

// RunMigrations brings db up to schemaVersion. A database written before
// versioning already has some columns; statements that fail only because the
// object exists are skipped so such databases upgrade in place.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version     INTEGER PRIMARY KEY,
		description TEXT,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := GetSchemaVersion(db)
	if err != nil {
		return fmt.Errorf("query schema version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		if err := applyMigration(db, m, logger); err != nil {
			return err
		}
		logger.Info("migration applied", "version", m.Version, "description", m.Description)
	}
	return nil
}

func applyMigration(db *sql.DB, m migration, logger *slog.Logger) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration v%d: %w", m.Version, err)
	}
	defer tx.Rollback()

	for _, stmt := range m.Statements {
		if _, err := tx.Exec(stmt); err != nil {
			if alreadyApplied(err) {
				logger.Debug("migration statement skipped", "version", m.Version, "err", err)
				continue
			}
			return fmt.Errorf("migration v%d: %w", m.Version, err)
		}
	}
	if _, err := tx.Exec(
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.Version, m.Description,
	); err != nil {
		return fmt.Errorf("record migration v%d: %w", m.Version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration v%d: %w", m.Version, err)
	}
	return nil
}

func alreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// GetSchemaVersion reports the highest applied migration, or 0 for a database
// that has never been migrated.
func GetSchemaVersion(db *sql.DB) (int, error) {
	var exists int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'",
	).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}
