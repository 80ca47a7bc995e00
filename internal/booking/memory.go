package booking

import (
	"context"
	"sort"
	"sync"

	"github.com/okhlopkov/salon-assistant/internal/schedule"
)

// MemoryRepository keeps bookings in memory, serializing the
// read-check-write sequence behind one mutex. Used for development, demos
// and tests; the Postgres repository covers production.
type MemoryRepository struct {
	mu       sync.Mutex
	bySlot   map[string]Booking // "date|slot" -> booking
	byClient map[string][]string
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		bySlot:   make(map[string]Booking),
		byClient: make(map[string][]string),
	}
}

func slotKey(date string, slot schedule.Slot) string {
	return date + "|" + string(slot)
}

// Append stores the booking unless the slot is already held.
func (r *MemoryRepository) Append(_ context.Context, b Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := slotKey(b.Date, b.Slot)
	if _, taken := r.bySlot[key]; taken {
		return ErrSlotTaken
	}
	r.bySlot[key] = b
	r.byClient[b.ClientID] = append(r.byClient[b.ClientID], key)
	return nil
}

// ListActive returns active bookings ordered by date and slot.
func (r *MemoryRepository) ListActive(_ context.Context, date string) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var bookings []Booking
	for _, b := range r.bySlot {
		if date != "" && b.Date != date {
			continue
		}
		bookings = append(bookings, b)
	}
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Date != bookings[j].Date {
			return bookings[i].Date < bookings[j].Date
		}
		return bookings[i].Slot < bookings[j].Slot
	})
	return bookings, nil
}

// RemoveByClient drops all bookings whose client id is exactly clientID.
func (r *MemoryRepository) RemoveByClient(_ context.Context, clientID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, ok := r.byClient[clientID]
	if !ok || len(keys) == 0 {
		return false, nil
	}
	for _, key := range keys {
		delete(r.bySlot, key)
	}
	delete(r.byClient, clientID)
	return true, nil
}

var _ Repository = (*MemoryRepository)(nil)
