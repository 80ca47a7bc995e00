package booking

import (
	"context"

	"github.com/okhlopkov/salon-assistant/internal/schedule"
	"github.com/okhlopkov/salon-assistant/pkg/logging"
)

// Availability answers free-slot queries against the booking store.
//
// Store failures degrade to "no information available": the resolver returns
// an empty slot list and logs the condition, and the conversation layer asks
// the user to try another date rather than crashing their flow.
type Availability struct {
	repo   Repository
	grid   schedule.Grid
	logger *logging.Logger
}

// NewAvailability creates an availability resolver over the repository.
func NewAvailability(repo Repository, grid schedule.Grid, logger *logging.Logger) *Availability {
	if repo == nil {
		panic("booking: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Availability{repo: repo, grid: grid, logger: logger}
}

// Grid exposes the configured slot grid.
func (a *Availability) Grid() schedule.Grid {
	return a.grid
}

// FreeSlotsFor returns the ordered free slots for a date, computed from one
// snapshot read of the store.
func (a *Availability) FreeSlotsFor(ctx context.Context, date string) []schedule.Slot {
	free, ok := a.snapshot(ctx, date)
	if !ok {
		return nil
	}
	return free
}

// IsAvailable reports whether the slot is free on the date. Membership is
// derived from the same snapshot read as the free-slot list, so the check
// window is no wider than a single store read.
func (a *Availability) IsAvailable(ctx context.Context, date string, slot schedule.Slot) bool {
	free, ok := a.snapshot(ctx, date)
	if !ok {
		return false
	}
	for _, s := range free {
		if s == slot {
			return true
		}
	}
	return false
}

func (a *Availability) snapshot(ctx context.Context, date string) ([]schedule.Slot, bool) {
	active, err := a.repo.ListActive(ctx, date)
	if err != nil {
		a.logger.Warn("availability unknown: store unreachable", "date", date, "error", err)
		return nil, false
	}

	occupied := make(map[schedule.Slot]struct{}, len(active))
	for _, b := range active {
		occupied[b.Slot] = struct{}{}
	}
	return schedule.FreeSlots(a.grid.Slots(), occupied), true
}
