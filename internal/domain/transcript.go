package domain

import (
	"context"
	"time"
)

// Role identifies who produced a persisted conversation turn.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// DefaultUser is the user identifier applied when the caller supplies none.
const DefaultUser = "user"

// Roles lists every valid transcript role.
var Roles = []Role{RoleUser, RoleBot}

// ParseRole validates a caller-supplied role.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// TranscriptEntry is one persisted conversation turn.
type TranscriptEntry struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Command   *string   `json:"command"` // legacy category, always nullable
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Role      Role      `json:"role"`
}

// TranscriptStore is the append-only persistence of conversation turns.
type TranscriptStore interface {
	// Append inserts a new entry and returns it with its assigned ID.
	Append(ctx context.Context, entry TranscriptEntry) (TranscriptEntry, error)

	// ListByUser returns every entry of the user in insertion order.
	ListByUser(ctx context.Context, user string) ([]TranscriptEntry, error)

	Close() error
}
