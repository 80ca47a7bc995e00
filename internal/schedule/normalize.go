package schedule

import (
	"errors"
	"strings"
	"time"
)

// ErrUnrecognizedDate means the input is neither a supported date format nor
// a known weekday name. Callers re-prompt the user instead of guessing.
var ErrUnrecognizedDate = errors.New("schedule: unrecognized date")

// DateLayout is the canonical date format used throughout the system.
const DateLayout = "2006-01-02"

// weekdays maps lowercase weekday names (Ukrainian and English) to time.Weekday.
var weekdays = map[string]time.Weekday{
	"понеділок": time.Monday,
	"вівторок":  time.Tuesday,
	"середа":    time.Wednesday,
	"четвер":    time.Thursday,
	"п'ятниця":  time.Friday,
	"пятниця":   time.Friday,
	"субота":    time.Saturday,
	"неділя":    time.Sunday,

	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// intervals maps spoken time-of-day ranges to slot boundaries.
var intervals = map[string][2]string{
	"ранком":      {"08:00", "12:00"},
	"зранку":      {"08:00", "12:00"},
	"після обіду": {"13:00", "17:00"},
	"ввечері":     {"17:00", "20:00"},
	"morning":     {"08:00", "12:00"},
	"afternoon":   {"13:00", "17:00"},
	"evening":     {"17:00", "20:00"},
}

// Normalize maps a user-supplied date expression to a concrete calendar date.
//
// Accepted forms:
//   - ISO "2006-01-02", returned as-is (parsed);
//   - "02-01-2006" (the DD-MM-YYYY form the booking prompt offers);
//   - a weekday name, resolved to the next occurrence strictly after today —
//     naming today's weekday books next week, never today.
//
// Anything else fails with ErrUnrecognizedDate.
func Normalize(raw string, today time.Time) (time.Time, error) {
	input := strings.ToLower(strings.TrimSpace(raw))
	if input == "" {
		return time.Time{}, ErrUnrecognizedDate
	}

	if parsed, err := time.ParseInLocation(DateLayout, input, today.Location()); err == nil {
		return parsed, nil
	}
	if parsed, err := time.ParseInLocation("02-01-2006", input, today.Location()); err == nil {
		return parsed, nil
	}

	if target, ok := weekdays[input]; ok {
		days := (int(target) - int(today.Weekday()) + 7) % 7
		if days == 0 {
			days = 7
		}
		next := today.AddDate(0, 0, days)
		return time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, today.Location()), nil
	}

	return time.Time{}, ErrUnrecognizedDate
}

// ResolveInterval maps expressions like "після обіду" to a slot-time range.
func ResolveInterval(raw string) (from, to string, ok bool) {
	bounds, ok := intervals[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", "", false
	}
	return bounds[0], bounds[1], true
}
