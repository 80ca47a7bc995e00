package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/okhlopkov/salon-assistant/internal/schedule"
)

// ErrSlotTaken means another client holds the (date, slot) pair. The caller
// re-presents refreshed availability instead of overwriting.
var ErrSlotTaken = errors.New("booking: slot already taken")

// Booking is a persisted reservation. Immutable once created; cancellation
// is the only mutation and removes it from the active set.
type Booking struct {
	ID         uuid.UUID     `json:"id"`
	ClientID   string        `json:"client_id"`
	ClientName string        `json:"client_name"`
	Procedure  string        `json:"procedure"`
	Date       string        `json:"date"` // schedule.DateLayout
	Slot       schedule.Slot `json:"slot"`
	CreatedAt  time.Time     `json:"created_at"`
}

// AppointmentTime combines Date and Slot into a concrete time in loc.
func (b Booking) AppointmentTime(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(schedule.DateLayout+" 15:04", b.Date+" "+string(b.Slot), loc)
}

// Repository is the persistence boundary for bookings.
//
// Append is conditional: it must fail with ErrSlotTaken when an active
// booking already holds the same (date, slot), making the read-check-write
// sequence for a slot effectively atomic.
type Repository interface {
	Append(ctx context.Context, b Booking) error
	ListActive(ctx context.Context, date string) ([]Booking, error)
	RemoveByClient(ctx context.Context, clientID string) (bool, error)
}
