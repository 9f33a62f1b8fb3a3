package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"voicebot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.TranscriptStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ domain.TranscriptStore = (*SQLiteStore)(nil)

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

// Append inserts a new transcript row. It never updates existing rows.
func (s *SQLiteStore) Append(ctx context.Context, entry domain.TranscriptEntry) (domain.TranscriptEntry, error) {
	if entry.Role == "" {
		entry.Role = domain.RoleUser
	}
	if _, ok := domain.ParseRole(string(entry.Role)); !ok {
		return domain.TranscriptEntry{}, domain.Errorf(domain.KindStorage, "append transcript", "invalid role %q", entry.Role)
	}
	if entry.User == "" {
		entry.User = domain.DefaultUser
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	var command sql.NullString
	if entry.Command != nil {
		command = sql.NullString{String: *entry.Command, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (text, command, timestamp, user, role)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.Text, command, entry.Timestamp, entry.User, string(entry.Role),
	)
	if err != nil {
		return domain.TranscriptEntry{}, domain.Wrap(domain.KindStorage, "append transcript", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.TranscriptEntry{}, domain.Wrap(domain.KindStorage, "append transcript", err)
	}
	entry.ID = id

	s.logger.Debug("transcript appended", "id", id, "user", entry.User, "role", entry.Role)
	return entry, nil
}

// ListByUser returns the user's transcript in insertion order. Timestamps may
// collide, so ordering is by row id.
func (s *SQLiteStore) ListByUser(ctx context.Context, user string) ([]domain.TranscriptEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, command, timestamp, user, role
		 FROM transcriptions WHERE user = ?
		 ORDER BY id ASC`, user,
	)
	if err != nil {
		return nil, domain.Wrap(domain.KindStorage, "list transcripts", err)
	}
	defer rows.Close()

	entries := make([]domain.TranscriptEntry, 0)
	for rows.Next() {
		var e domain.TranscriptEntry
		var command sql.NullString
		var role string
		if err := rows.Scan(&e.ID, &e.Text, &command, &e.Timestamp, &e.User, &role); err != nil {
			return nil, domain.Wrap(domain.KindStorage, "scan transcript", err)
		}
		if command.Valid {
			c := command.String
			e.Command = &c
		}
		e.Role = domain.Role(role)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindStorage, "list transcripts", err)
	}
	return entries, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
