package validation

import (
	"errors"
	"testing"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

func TestValidateMAC(t *testing.T) {
	tests := []struct {
		mac     string
		wantErr bool
	}{
		{"aa:bb:cc:dd:ee:ff", false},
		{"AA:BB:CC:DD:EE:FF", false},
		{"aa-bb-cc-dd-ee-ff", false},
		{" aa:bb:cc:dd:ee:ff ", false},
		{"aa:bb:cc:dd:ee", true},
		{"aabbccddeeff", true},
		{"gg:bb:cc:dd:ee:ff", true},
		{"", true},
	}
	for _, tc := range tests {
		err := ValidateMAC(tc.mac)
		if (err != nil) != tc.wantErr {
			t.Errorf("ValidateMAC(%q) error = %v, wantErr %v", tc.mac, err, tc.wantErr)
		}
	}
}

func TestNormalizeMAC(t *testing.T) {
	if got := NormalizeMAC(" AA-BB-CC-DD-EE-FF "); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("NormalizeMAC = %q", got)
	}
}

func validCreateRequest() *domain.ScheduleCreateRequest {
	return &domain.ScheduleCreateRequest{
		Scope:  domain.ScopeGlobal,
		Label:  "bedtime",
		Action: domain.ActionLock,
		Window: domain.ScheduleWindow{
			Start: time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC),
		},
		Recurrence: domain.ScheduleRecurrence{Type: domain.RecurrenceDaily, Interval: 1},
		Targets:    domain.ScheduleTargets{Devices: []string{"aa:bb:cc:dd:ee:ff"}},
	}
}

func TestValidateScheduleCreate(t *testing.T) {
	if err := ValidateScheduleCreate(validCreateRequest()); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*domain.ScheduleCreateRequest)
	}{
		{"empty label", func(r *domain.ScheduleCreateRequest) { r.Label = " " }},
		{"owner scope without owner key", func(r *domain.ScheduleCreateRequest) { r.Scope = domain.ScopeOwner }},
		{"global scope with owner key", func(r *domain.ScheduleCreateRequest) { r.OwnerKey = "alice" }},
		{"unknown scope", func(r *domain.ScheduleCreateRequest) { r.Scope = "tenant" }},
		{"unknown action", func(r *domain.ScheduleCreateRequest) { r.Action = "reboot" }},
		{"bad end action", func(r *domain.ScheduleCreateRequest) { r.EndAction = "reboot" }},
		{"window end not after start", func(r *domain.ScheduleCreateRequest) { r.Window.End = r.Window.Start }},
		{"unknown recurrence type", func(r *domain.ScheduleCreateRequest) { r.Recurrence.Type = "yearly" }},
		{"bad day of week", func(r *domain.ScheduleCreateRequest) {
			r.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceWeekly, Interval: 1, DaysOfWeek: []string{"blursday"}}
		}},
		{"day of month out of range", func(r *domain.ScheduleCreateRequest) {
			r.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceMonthly, Interval: 1, DayOfMonth: 40}
		}},
		{"negative interval", func(r *domain.ScheduleCreateRequest) { r.Recurrence.Interval = -1 }},
		{"bad exception date", func(r *domain.ScheduleCreateRequest) {
			r.Exceptions = []domain.ScheduleException{{Date: "tomorrow", Skip: true}}
		}},
		{"skip with override", func(r *domain.ScheduleCreateRequest) {
			r.Exceptions = []domain.ScheduleException{{
				Date: "2026-01-08",
				Skip: true,
				OverrideWindow: &domain.ScheduleWindow{
					Start: time.Date(2026, 1, 8, 9, 0, 0, 0, time.UTC),
					End:   time.Date(2026, 1, 8, 10, 0, 0, 0, time.UTC),
				},
			}}
		}},
		{"bad target MAC", func(r *domain.ScheduleCreateRequest) { r.Targets.Devices = []string{"not-a-mac"} }},
		{"empty tag", func(r *domain.ScheduleCreateRequest) { r.Targets.Tags = []string{""} }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest()
			tc.mutate(req)
			if err := ValidateScheduleCreate(req); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestValidateScheduleUpdateIgnoresAbsentFields(t *testing.T) {
	if err := ValidateScheduleUpdate(&domain.ScheduleUpdateRequest{}); err != nil {
		t.Fatalf("empty update rejected: %v", err)
	}

	bad := domain.ScheduleAction("reboot")
	if err := ValidateScheduleUpdate(&domain.ScheduleUpdateRequest{Action: &bad}); err == nil {
		t.Error("expected error for bad action")
	}
}

func TestValidateGroupCreate(t *testing.T) {
	if err := ValidateGroupCreate(&domain.GroupCreateRequest{Name: "school-days"}); err != nil {
		t.Fatalf("valid group rejected: %v", err)
	}
	if err := ValidateGroupCreate(&domain.GroupCreateRequest{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestValidateMonthlyDayOfMonthBounds(t *testing.T) {
	for _, dom := range []int{0, 1, 31} {
		req := validCreateRequest()
		req.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceMonthly, Interval: 1, DayOfMonth: dom}
		if err := ValidateScheduleCreate(req); err != nil {
			t.Errorf("dayOfMonth %d rejected: %v", dom, err)
		}
	}
}

func TestFieldErrorsAggregate(t *testing.T) {
	req := validCreateRequest()
	req.Label = ""
	req.Action = "reboot"
	err := ValidateScheduleCreate(req)
	errs, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %T", err)
	}
	if len(errs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Error("field errors should unwrap to ErrInvalidInput")
	}
}
