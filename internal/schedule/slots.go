package schedule

import "fmt"

// Slot is a bookable point on the day's time grid, formatted "HH:MM".
type Slot string

// Grid describes the fixed grid of bookable slots for a working day.
type Grid struct {
	OpenHour    int
	CloseHour   int
	StepMinutes int
}

// DefaultGrid is the salon's standard working day: hourly slots 09:00-17:00.
// The closing hour itself is never bookable, so an appointment cannot start
// at closing time.
var DefaultGrid = Grid{OpenHour: 9, CloseHour: 18, StepMinutes: 60}

// Slots generates the ordered slot sequence for the grid, starting at
// OpenHour:00 inclusive and ending before CloseHour:00 (exclusive).
func (g Grid) Slots() []Slot {
	step := g.StepMinutes
	if step <= 0 {
		step = 60
	}
	if g.CloseHour <= g.OpenHour {
		return nil
	}

	var slots []Slot
	for m := g.OpenHour * 60; m < g.CloseHour*60; m += step {
		slots = append(slots, Slot(fmt.Sprintf("%02d:%02d", m/60, m%60)))
	}
	return slots
}

// Contains reports whether the slot lies on the grid.
func (g Grid) Contains(s Slot) bool {
	for _, candidate := range g.Slots() {
		if candidate == s {
			return true
		}
	}
	return false
}

// FreeSlots returns all slots from the grid order that are not in booked.
func FreeSlots(all []Slot, booked map[Slot]struct{}) []Slot {
	free := make([]Slot, 0, len(all))
	for _, s := range all {
		if _, taken := booked[s]; taken {
			continue
		}
		free = append(free, s)
	}
	return free
}

// FilterByInterval keeps only slots within [from, to], both "HH:MM" strings
// compared lexicographically (safe for zero-padded 24h times).
func FilterByInterval(slots []Slot, from, to string) []Slot {
	if from == "" && to == "" {
		return slots
	}
	filtered := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if from != "" && string(s) < from {
			continue
		}
		if to != "" && string(s) > to {
			continue
		}
		filtered = append(filtered, s)
	}
	return filtered
}
