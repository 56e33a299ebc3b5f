// Package schedule resolves recurrence rules to concrete run timestamps.
package schedule

import (
	"strconv"
	"strings"
	"time"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/model"
)

const (
	defaultHour   = 9
	defaultMinute = 0
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Resolve returns the next run timestamp strictly after ref for the given
// rule, or nil when the frequency is unknown (callers treat nil as "not
// scheduled", never as an error). When ref falls exactly on a slot the result
// advances by one full period. Pure; safe to call repeatedly for display.
func Resolve(s model.Schedule, ref time.Time) *time.Time {
	hour, minute := parseTimeOfDay(s.TimeOfDay)

	switch s.Frequency {
	case model.FreqDaily:
		next := daily(ref, hour, minute)
		return &next
	case model.FreqWeekly:
		next := onWeekday(ref, parseWeekday(s.Day), hour, minute, 7)
		return &next
	case model.FreqBiweekly:
		next := onWeekday(ref, parseWeekday(s.Day), hour, minute, 14)
		return &next
	case model.FreqMonthly:
		next := monthly(ref, parseDayOfMonth(s.Day), hour, minute)
		return &next
	}
	return nil
}

func daily(ref time.Time, hour, minute int) time.Time {
	candidate := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	if !candidate.After(ref) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// onWeekday finds the next occurrence of the weekday strictly after ref.
// When ref is exactly a slot, the result is ref plus the full period, which
// for weekly rules coincides with the next natural occurrence but for
// biweekly rules skips one.
func onWeekday(ref time.Time, day time.Weekday, hour, minute, periodDays int) time.Time {
	candidate := time.Date(ref.Year(), ref.Month(), ref.Day(), hour, minute, 0, 0, ref.Location())
	for candidate.Weekday() != day {
		candidate = candidate.AddDate(0, 0, 1)
	}
	if candidate.Equal(ref) {
		return candidate.AddDate(0, 0, periodDays)
	}
	if candidate.Before(ref) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

func monthly(ref time.Time, day, hour, minute int) time.Time {
	candidate := monthSlot(ref.Year(), ref.Month(), day, hour, minute, ref.Location())
	if !candidate.After(ref) {
		// Advance the month index, not ref itself: AddDate on a late ref
		// date normalizes (Jan 31 + 1 month = Mar 3) and would skip the
		// clamped February slot.
		candidate = monthSlot(ref.Year(), ref.Month()+1, day, hour, minute, ref.Location())
	}
	return candidate
}

// monthSlot clamps the requested day to the month's length so a rule for the
// 31st still fires in February.
func monthSlot(year int, month time.Month, day, hour, minute int, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, hour, minute, 0, 0, loc)
}

// parseTimeOfDay parses "HH:MM"; malformed strings fall back to 09:00 rather
// than failing.
func parseTimeOfDay(s string) (int, int) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return defaultHour, defaultMinute
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return defaultHour, defaultMinute
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return defaultHour, defaultMinute
	}
	return hour, minute
}

func parseWeekday(s string) time.Weekday {
	if d, ok := weekdays[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d
	}
	return time.Monday
}

// parseDayOfMonth accepts "1", "1st", "15th" and similar; anything else
// defaults to the 1st.
func parseDayOfMonth(s string) int {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "st")
	s = strings.TrimSuffix(s, "nd")
	s = strings.TrimSuffix(s, "rd")
	s = strings.TrimSuffix(s, "th")
	day, err := strconv.Atoi(s)
	if err != nil || day < 1 || day > 31 {
		return 1
	}
	return day
}
