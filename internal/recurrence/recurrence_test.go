package recurrence

import (
	"testing"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	if err != nil {
		t.Fatalf("load location %s: %v", name, err)
	}
	return loc
}

func schedule(window domain.ScheduleWindow, rec domain.ScheduleRecurrence) *domain.DeviceSchedule {
	return &domain.DeviceSchedule{
		ID:         "test",
		Scope:      domain.ScopeGlobal,
		Action:     domain.ActionLock,
		Window:     window,
		Recurrence: rec,
		Enabled:    true,
	}
}

func TestDailyOvernightWindow(t *testing.T) {
	loc := mustLoc(t, "America/Chicago")
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 21, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 6, 6, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1},
	)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"before first start", time.Date(2026, 1, 5, 20, 59, 0, 0, loc), false},
		{"late evening", time.Date(2026, 1, 10, 23, 0, 0, 0, loc), true},
		{"after midnight", time.Date(2026, 1, 11, 2, 30, 0, 0, loc), true},
		{"just before end", time.Date(2026, 1, 11, 5, 59, 59, 0, loc), true},
		{"at end", time.Date(2026, 1, 11, 6, 0, 0, 0, loc), false},
		{"midday", time.Date(2026, 1, 11, 12, 0, 0, 0, loc), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsActive(s, tc.now, loc); got != tc.want {
				t.Errorf("IsActive(%s) = %v, want %v", tc.now, got, tc.want)
			}
		})
	}
}

func TestDailyInterval(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 3, 2, 10, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 3},
	)

	if !IsActive(s, time.Date(2026, 3, 5, 9, 30, 0, 0, loc), loc) {
		t.Error("expected active on day 3 of a 3-day interval")
	}
	if IsActive(s, time.Date(2026, 3, 4, 9, 30, 0, 0, loc), loc) {
		t.Error("expected inactive on an off-cycle day")
	}
}

func TestWeeklyConfiguredDays(t *testing.T) {
	loc := time.UTC
	// Base window is a Monday; only Friday is configured.
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 18, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 20, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceWeekly, Interval: 1, DaysOfWeek: []string{"Fri"}},
	)

	friday := time.Date(2026, 1, 9, 19, 0, 0, 0, loc)
	if !IsActive(s, friday, loc) {
		t.Error("expected active on configured Friday")
	}
	monday := time.Date(2026, 1, 12, 19, 0, 0, 0, loc)
	if IsActive(s, monday, loc) {
		t.Error("expected inactive on unconfigured Monday")
	}
}

func TestWeeklyDefaultsToBaseWeekday(t *testing.T) {
	loc := time.UTC
	// Wednesday base window, no daysOfWeek.
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 7, 8, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 7, 9, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceWeekly, Interval: 1},
	)

	if !IsActive(s, time.Date(2026, 1, 21, 8, 30, 0, 0, loc), loc) {
		t.Error("expected active on a later Wednesday")
	}
	if IsActive(s, time.Date(2026, 1, 22, 8, 30, 0, 0, loc), loc) {
		t.Error("expected inactive on Thursday")
	}
}

func TestWeeklyInterval(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 11, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceWeekly, Interval: 2, DaysOfWeek: []string{"mon"}},
	)

	if !IsActive(s, time.Date(2026, 1, 19, 10, 30, 0, 0, loc), loc) {
		t.Error("expected active two weeks after base")
	}
	if IsActive(s, time.Date(2026, 1, 12, 10, 30, 0, 0, loc), loc) {
		t.Error("expected inactive on the off week")
	}
}

func TestMonthlyClampsToShortMonths(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 31, 20, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 31, 22, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceMonthly, Interval: 1, DayOfMonth: 31},
	)

	// February 2026 has 28 days; the occurrence lands on the 28th.
	if !IsActive(s, time.Date(2026, 2, 28, 21, 0, 0, 0, loc), loc) {
		t.Error("expected occurrence clamped to Feb 28")
	}
	if IsActive(s, time.Date(2026, 2, 27, 21, 0, 0, 0, loc), loc) {
		t.Error("expected inactive on Feb 27")
	}
	if !IsActive(s, time.Date(2026, 3, 31, 21, 0, 0, 0, loc), loc) {
		t.Error("expected active on Mar 31")
	}

	// Every cycle lands in its own calendar month; a day-31 anchor must not
	// roll past February into a duplicate March occurrence.
	months := make(map[time.Month]int)
	for _, occ := range Occurrences(s, time.Date(2026, 2, 28, 21, 0, 0, 0, loc), loc) {
		months[occ.Start.Month()]++
	}
	if months[time.February] != 1 {
		t.Errorf("February occurrences = %d, want 1", months[time.February])
	}
	for m, n := range months {
		if n > 1 {
			t.Errorf("%s enumerated %d times", m, n)
		}
	}
}

func TestOneShot(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 6, 1, 12, 0, 0, 0, loc),
			End:   time.Date(2026, 6, 1, 13, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceOneShot},
	)

	if !IsActive(s, time.Date(2026, 6, 1, 12, 30, 0, 0, loc), loc) {
		t.Error("expected active inside the single window")
	}
	if IsActive(s, time.Date(2026, 6, 2, 12, 30, 0, 0, loc), loc) {
		t.Error("one_shot must not repeat")
	}
}

func TestUntilCutoff(t *testing.T) {
	loc := time.UTC
	until := time.Date(2026, 1, 10, 0, 0, 0, 0, loc)
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1, Until: &until},
	)

	if !IsActive(s, time.Date(2026, 1, 9, 9, 30, 0, 0, loc), loc) {
		t.Error("expected active before the cutoff")
	}
	if IsActive(s, time.Date(2026, 1, 11, 9, 30, 0, 0, loc), loc) {
		t.Error("expected inactive after the cutoff")
	}
}

func TestExceptionSkip(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1},
	)
	s.Exceptions = []domain.ScheduleException{{Date: "2026-01-08", Skip: true, Reason: "holiday"}}

	if IsActive(s, time.Date(2026, 1, 8, 9, 30, 0, 0, loc), loc) {
		t.Error("expected skipped occurrence to be inactive")
	}
	if !IsActive(s, time.Date(2026, 1, 9, 9, 30, 0, 0, loc), loc) {
		t.Error("expected the next day unaffected")
	}
}

func TestExceptionOverrideWindow(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1},
	)
	s.Exceptions = []domain.ScheduleException{{
		Date: "2026-01-08",
		OverrideWindow: &domain.ScheduleWindow{
			Start: time.Date(2026, 1, 8, 14, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 8, 15, 0, 0, 0, loc),
		},
	}}

	if IsActive(s, time.Date(2026, 1, 8, 9, 30, 0, 0, loc), loc) {
		t.Error("original window should be replaced by the override")
	}
	if !IsActive(s, time.Date(2026, 1, 8, 14, 30, 0, 0, loc), loc) {
		t.Error("expected active inside the override window")
	}
}

func TestExceptionOverridePreservesDurationWhenDegenerate(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 11, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1},
	)
	// Override end precedes its start; the two hour duration carries over.
	s.Exceptions = []domain.ScheduleException{{
		Date: "2026-01-08",
		OverrideWindow: &domain.ScheduleWindow{
			Start: time.Date(2026, 1, 8, 14, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 8, 13, 0, 0, 0, loc),
		},
	}}

	if !IsActive(s, time.Date(2026, 1, 8, 15, 30, 0, 0, loc), loc) {
		t.Error("expected override to inherit the canonical duration")
	}
	if IsActive(s, time.Date(2026, 1, 8, 16, 30, 0, 0, loc), loc) {
		t.Error("expected inactive after the inherited duration elapses")
	}
}

func TestUnknownRecurrenceTypeYieldsNothing(t *testing.T) {
	loc := time.UTC
	s := schedule(
		domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 9, 0, 0, 0, loc),
			End:   time.Date(2026, 1, 5, 10, 0, 0, 0, loc),
		},
		domain.ScheduleRecurrence{Type: "yearly", Interval: 1},
	)

	if Supported(s.Recurrence.Type) {
		t.Error("yearly must not be reported as supported")
	}
	if occ := Occurrences(s, time.Date(2026, 1, 5, 9, 30, 0, 0, loc), loc); len(occ) != 0 {
		t.Errorf("expected no occurrences, got %d", len(occ))
	}
	if IsActive(s, time.Date(2026, 1, 5, 9, 30, 0, 0, loc), loc) {
		t.Error("unsupported recurrence must never be active")
	}
}
