// Package history keeps an append-only log of dialogue milestones, for
// the admin portal and after-the-fact debugging of booking flows.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Entry is one recorded milestone.
type Entry struct {
	ID        int64     `json:"id"`
	ClientID  string    `json:"client_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store appends and reads booking events. A nil store records nothing,
// so callers never have to guard the optional dependency.
type Store struct {
	db     *sql.DB
	logger *logging.Logger
}

func NewStore(db *sql.DB, logger *logging.Logger) *Store {
	if db == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{db: db, logger: logger}
}

// Record appends one milestone.
func (s *Store) Record(ctx context.Context, clientID, kind, detail string) error {
	if s == nil || s.db == nil {
		return nil
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO booking_events (client_id, kind, detail, created_at) VALUES ($1, $2, $3, now())`,
		clientID, kind, detail,
	)
	if err != nil {
		return fmt.Errorf("history: record event: %w", err)
	}
	return nil
}

// ListRecent returns the newest events, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, kind, detail, created_at FROM booking_events ORDER BY created_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("history: list events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ClientID, &e.Kind, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("history: scan event: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterate events: %w", err)
	}
	return entries, nil
}
