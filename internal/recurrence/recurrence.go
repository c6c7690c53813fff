// Package recurrence expands schedule recurrence rules into concrete
// occurrence windows and decides whether a schedule is active at an instant.
// Evaluation is pure: enumeration is bounded to a small neighborhood of
// cycles around the reference instant, so cost does not grow with schedule
// age.
package recurrence

import (
	"strings"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// Occurrence is one concrete instantiation of a schedule's recurrence rule.
type Occurrence struct {
	Start time.Time
	End   time.Time
}

// dateFormat is the calendar-date form used to match exceptions.
const dateFormat = "2006-01-02"

// dayIndex maps day-of-week names to offsets from Monday.
var dayIndex = map[string]int{
	"mon": 0,
	"tue": 1,
	"wed": 2,
	"thu": 3,
	"fri": 4,
	"sat": 5,
	"sun": 6,
}

// Supported reports whether the evaluator understands the recurrence type.
// Unsupported types yield no occurrences; callers should log them.
func Supported(t domain.RecurrenceType) bool {
	switch t {
	case domain.RecurrenceOneShot, domain.RecurrenceDaily, domain.RecurrenceWeekly, domain.RecurrenceMonthly:
		return true
	}
	return false
}

// IsActive reports whether the schedule has a resolved, unskipped occurrence
// containing now. Occurrences are evaluated in loc.
func IsActive(s *domain.DeviceSchedule, now time.Time, loc *time.Location) bool {
	now = now.In(loc)
	for _, occ := range Occurrences(s, now, loc) {
		if occurrenceActive(occ, now, s, loc) {
			return true
		}
	}
	return false
}

// Occurrences enumerates the occurrence windows near now implied by the
// schedule's recurrence rule, before exception resolution. Unsupported
// recurrence types produce no occurrences.
func Occurrences(s *domain.DeviceSchedule, now time.Time, loc *time.Location) []Occurrence {
	switch s.Recurrence.Type {
	case domain.RecurrenceOneShot:
		return []Occurrence{{Start: s.Window.Start.In(loc), End: s.Window.End.In(loc)}}
	case domain.RecurrenceDaily:
		return dailyOccurrences(s, now, loc)
	case domain.RecurrenceWeekly:
		return weeklyOccurrences(s, now, loc)
	case domain.RecurrenceMonthly:
		return monthlyOccurrences(s, now, loc)
	}
	return nil
}

func interval(s *domain.DeviceSchedule) int {
	if s.Recurrence.Interval < 1 {
		return 1
	}
	return s.Recurrence.Interval
}

// withinUntil reports whether the occurrence start respects the recurrence
// cutoff.
func withinUntil(rec domain.ScheduleRecurrence, start time.Time, loc *time.Location) bool {
	if rec.Until == nil {
		return true
	}
	return !start.After(rec.Until.In(loc))
}

func dailyOccurrences(s *domain.DeviceSchedule, now time.Time, loc *time.Location) []Occurrence {
	baseStart := s.Window.Start.In(loc)
	baseEnd := s.Window.End.In(loc)
	duration := baseEnd.Sub(baseStart)
	step := interval(s)

	// Enumerate the previous, current, and next cycles only; an occurrence
	// started further back cannot still contain now unless its window spans
	// more than a full cycle, which the data model does not allow.
	var cycles []int
	if now.Before(baseStart) {
		cycles = []int{0}
	} else {
		elapsedDays := int(now.Sub(baseStart) / (24 * time.Hour))
		cycle := elapsedDays / step
		if cycle < 0 {
			cycle = 0
		}
		first := cycle - 1
		if first < 0 {
			first = 0
		}
		for c := first; c <= cycle+1; c++ {
			cycles = append(cycles, c)
		}
	}

	out := make([]Occurrence, 0, len(cycles))
	for _, c := range cycles {
		start := baseStart.AddDate(0, 0, step*c)
		if !withinUntil(s.Recurrence, start, loc) {
			continue
		}
		out = append(out, Occurrence{Start: start, End: start.Add(duration)})
	}
	return out
}

func weeklyOccurrences(s *domain.DeviceSchedule, now time.Time, loc *time.Location) []Occurrence {
	baseStart := s.Window.Start.In(loc)
	baseEnd := s.Window.End.In(loc)
	duration := baseEnd.Sub(baseStart)
	step := interval(s)

	indices := weekdayIndices(s.Recurrence.DaysOfWeek, baseStart)
	if len(indices) == 0 {
		return nil
	}

	// Anchor to the Monday of the base window's week; week offsets count from
	// there so interval alignment is stable regardless of when we evaluate.
	anchor := startOfWeek(baseStart, loc)
	currentWeek := 0
	if now.After(anchor) {
		currentWeek = int(now.Sub(anchor) / (7 * 24 * time.Hour))
	}
	firstWeek := currentWeek - 2*step
	if firstWeek < 0 {
		firstWeek = 0
	}

	var out []Occurrence
	for week := firstWeek; week <= currentWeek+step; week++ {
		if week%step != 0 {
			continue
		}
		weekStart := anchor.AddDate(0, 0, 7*week)
		for _, idx := range indices {
			day := weekStart.AddDate(0, 0, idx)
			start := atClock(day, baseStart, loc)
			if !withinUntil(s.Recurrence, start, loc) {
				continue
			}
			out = append(out, Occurrence{Start: start, End: start.Add(duration)})
		}
	}
	return out
}

func monthlyOccurrences(s *domain.DeviceSchedule, now time.Time, loc *time.Location) []Occurrence {
	baseStart := s.Window.Start.In(loc)
	baseEnd := s.Window.End.In(loc)
	duration := baseEnd.Sub(baseStart)
	step := interval(s)

	day := s.Recurrence.DayOfMonth
	if day < 1 {
		day = baseStart.Day()
	}

	elapsedMonths := monthsBetween(baseStart, now)
	cycle := elapsedMonths / step
	if cycle < 0 {
		cycle = 0
	}
	first := cycle - 1
	if first < 0 {
		first = 0
	}

	var out []Occurrence
	for c := first; c <= cycle+1; c++ {
		// Step the calendar month directly. AddDate would normalize a day-31
		// anchor past short months and land in the wrong cycle.
		months := int(baseStart.Month()) - 1 + step*c
		year := baseStart.Year() + months/12
		month := time.Month(months%12 + 1)
		dom := day
		if last := daysInMonth(year, month); dom > last {
			dom = last
		}
		start := time.Date(year, month, dom,
			baseStart.Hour(), baseStart.Minute(), baseStart.Second(), baseStart.Nanosecond(), loc)
		if !withinUntil(s.Recurrence, start, loc) {
			continue
		}
		out = append(out, Occurrence{Start: start, End: start.Add(duration)})
	}
	return out
}

// occurrenceActive resolves exceptions for one occurrence and reports whether
// it contains now. Degenerate occurrences get their end recomputed from the
// schedule's canonical window duration.
func occurrenceActive(occ Occurrence, now time.Time, s *domain.DeviceSchedule, loc *time.Location) bool {
	start, end := occ.Start, occ.End
	if !end.After(start) {
		end = start.Add(s.Window.Duration())
	}
	resolved, skipped := applyExceptions(start, end, s.Exceptions, loc)
	if skipped {
		return false
	}
	return !now.Before(resolved.Start) && now.Before(resolved.End)
}

// applyExceptions matches exceptions by the occurrence's calendar start date.
// A matching skip suppresses the occurrence; a matching override substitutes
// its window, preserving the original duration when the override is
// degenerate.
func applyExceptions(start, end time.Time, exceptions []domain.ScheduleException, loc *time.Location) (Occurrence, bool) {
	occDate := start.In(loc).Format(dateFormat)
	for _, exc := range exceptions {
		if exc.Date != occDate {
			continue
		}
		if exc.Skip {
			return Occurrence{}, true
		}
		if exc.OverrideWindow != nil {
			overrideStart := exc.OverrideWindow.Start.In(loc)
			overrideEnd := exc.OverrideWindow.End.In(loc)
			if !overrideEnd.After(overrideStart) {
				overrideEnd = overrideStart.Add(end.Sub(start))
			}
			return Occurrence{Start: overrideStart, End: overrideEnd}, false
		}
	}
	return Occurrence{Start: start, End: end}, false
}

// weekdayIndices converts configured day names to Monday-based offsets,
// defaulting to the base window's own weekday when none are configured.
func weekdayIndices(days []string, baseStart time.Time) []int {
	if len(days) == 0 {
		return []int{mondayOffset(baseStart.Weekday())}
	}
	out := make([]int, 0, len(days))
	for _, day := range days {
		name := strings.ToLower(strings.TrimSpace(day))
		if len(name) > 3 {
			name = name[:3]
		}
		if idx, ok := dayIndex[name]; ok {
			out = append(out, idx)
		}
	}
	return out
}

// mondayOffset converts Go's Sunday-based weekday to a Monday-based offset.
func mondayOffset(d time.Weekday) int {
	return (int(d) + 6) % 7
}

// startOfWeek returns midnight on the Monday of t's week.
func startOfWeek(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	day := t.AddDate(0, 0, -mondayOffset(t.Weekday()))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
}

// atClock places the base window's time-of-day onto the given date.
func atClock(day, template time.Time, loc *time.Location) time.Time {
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, template.Hour(), template.Minute(), template.Second(), template.Nanosecond(), loc)
}

func monthsBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	// The current cycle has not elapsed until the day-of-month (and clock)
	// comes around again.
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
