package booking

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okhlopkov/salon-assistant/internal/schedule"
)

// pgxDB is the subset of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type pgxDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository persists bookings in Postgres. A partial unique index on
// (date, slot) for non-cancelled rows makes Append a conditional insert.
type PostgresRepository struct {
	db pgxDB
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db pgxDB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts a booking unless the slot is already held by an active one.
func (r *PostgresRepository) Append(ctx context.Context, b Booking) error {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO bookings (id, client_id, client_name, procedure, date, slot, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (date, slot) WHERE cancelled_at IS NULL DO NOTHING
	`, b.ID, b.ClientID, b.ClientName, b.Procedure, b.Date, string(b.Slot), b.CreatedAt)
	if err != nil {
		return fmt.Errorf("booking: insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotTaken
	}
	return nil
}

// ListActive returns active bookings, optionally filtered to one date,
// ordered by date and slot.
func (r *PostgresRepository) ListActive(ctx context.Context, date string) ([]Booking, error) {
	query := `
		SELECT id, client_id, client_name, procedure, date, slot, created_at
		FROM bookings
		WHERE cancelled_at IS NULL
	`
	args := []any{}
	if date != "" {
		query += " AND date = $1"
		args = append(args, date)
	}
	query += " ORDER BY date, slot"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("booking: list active: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var slot string
		if err := rows.Scan(&b.ID, &b.ClientID, &b.ClientName, &b.Procedure, &b.Date, &slot, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("booking: scan row: %w", err)
		}
		b.Slot = schedule.Slot(slot)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("booking: iterate rows: %w", err)
	}
	return bookings, nil
}

// RemoveByClient soft-deletes all active bookings for the exact client id.
// Matching is strict equality; substring matches would let one client's id
// cancel another's booking.
func (r *PostgresRepository) RemoveByClient(ctx context.Context, clientID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings SET cancelled_at = now()
		WHERE client_id = $1 AND cancelled_at IS NULL
	`, clientID)
	if err != nil {
		return false, fmt.Errorf("booking: remove by client: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ Repository = (*PostgresRepository)(nil)
