// Package validation provides validation functions for schedules, groups, and
// device identifiers before they reach the store.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

var macPattern = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)

// NormalizeMAC lowercases a MAC address and converts hyphen separators to
// colons. It does not check validity; use ValidateMAC for that.
func NormalizeMAC(mac string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mac)), "-", ":")
}

// ValidateMAC checks that the value normalizes to a colon-separated MAC
// address.
func ValidateMAC(mac string) error {
	if !macPattern.MatchString(NormalizeMAC(mac)) {
		return fmt.Errorf("must be a MAC address in aa:bb:cc:dd:ee:ff form")
	}
	return nil
}

func validAction(a domain.ScheduleAction) bool {
	return a == domain.ActionLock || a == domain.ActionUnlock
}

func validateWindow(errs *FieldErrors, field string, w domain.ScheduleWindow) {
	if w.Start.IsZero() {
		errs.Add(field+".start", "", "start is required")
	}
	if w.End.IsZero() {
		errs.Add(field+".end", "", "end is required")
	}
	if !w.Start.IsZero() && !w.End.IsZero() && !w.End.After(w.Start) {
		errs.Add(field+".end", w.End.Format(time.RFC3339), "end must be after start")
	}
}

func validateRecurrence(errs *FieldErrors, rec domain.ScheduleRecurrence) {
	switch rec.Type {
	case domain.RecurrenceOneShot, domain.RecurrenceDaily:
	case domain.RecurrenceWeekly:
		for _, day := range rec.DaysOfWeek {
			name := strings.ToLower(strings.TrimSpace(day))
			if len(name) > 3 {
				name = name[:3]
			}
			switch name {
			case "mon", "tue", "wed", "thu", "fri", "sat", "sun":
			default:
				errs.Add("recurrence.daysOfWeek", day, "unknown day of week")
			}
		}
	case domain.RecurrenceMonthly:
		if rec.DayOfMonth < 0 || rec.DayOfMonth > 31 {
			errs.Add("recurrence.dayOfMonth", fmt.Sprintf("%d", rec.DayOfMonth), "must be between 1 and 31, or 0 for the window's day")
		}
	default:
		errs.Add("recurrence.type", string(rec.Type), "must be one_shot, daily, weekly, or monthly")
	}
	if rec.Interval < 0 {
		errs.Add("recurrence.interval", fmt.Sprintf("%d", rec.Interval), "must not be negative")
	}
}

func validateExceptions(errs *FieldErrors, exceptions []domain.ScheduleException) {
	for i, exc := range exceptions {
		field := fmt.Sprintf("exceptions[%d]", i)
		if _, err := time.Parse("2006-01-02", exc.Date); err != nil {
			errs.Add(field+".date", exc.Date, "must be a YYYY-MM-DD date")
		}
		if exc.Skip && exc.OverrideWindow != nil {
			errs.Add(field, exc.Date, "skip and overrideWindow are mutually exclusive")
		}
		if exc.OverrideWindow != nil {
			if exc.OverrideWindow.Start.IsZero() || exc.OverrideWindow.End.IsZero() {
				errs.Add(field+".overrideWindow", "", "override start and end are required")
			}
		}
	}
}

func validateTargets(errs *FieldErrors, targets domain.ScheduleTargets) {
	for _, mac := range targets.Devices {
		if err := ValidateMAC(mac); err != nil {
			errs.Add("targets.devices", mac, err.Error())
		}
	}
	for _, tag := range targets.Tags {
		if strings.TrimSpace(tag) == "" {
			errs.Add("targets.tags", tag, "tag must not be empty")
		}
	}
}

func validateScope(errs *FieldErrors, scope domain.ScheduleScope, ownerKey string) {
	switch scope {
	case domain.ScopeOwner:
		if strings.TrimSpace(ownerKey) == "" {
			errs.Add("ownerKey", ownerKey, "required for owner-scoped schedules")
		}
	case domain.ScopeGlobal:
		if ownerKey != "" {
			errs.Add("ownerKey", ownerKey, "must be empty for global schedules")
		}
	default:
		errs.Add("scope", string(scope), "must be owner or global")
	}
}

// ValidateScheduleCreate validates a schedule creation request.
func ValidateScheduleCreate(req *domain.ScheduleCreateRequest) error {
	var errs FieldErrors
	if strings.TrimSpace(req.Label) == "" {
		errs.Add("label", req.Label, "label is required")
	}
	validateScope(&errs, req.Scope, req.OwnerKey)
	if !validAction(req.Action) {
		errs.Add("action", string(req.Action), "must be lock or unlock")
	}
	if req.EndAction != "" && !validAction(req.EndAction) {
		errs.Add("endAction", string(req.EndAction), "must be lock or unlock")
	}
	validateWindow(&errs, "window", req.Window)
	validateRecurrence(&errs, req.Recurrence)
	validateExceptions(&errs, req.Exceptions)
	validateTargets(&errs, req.Targets)
	return errs.AsError()
}

// ValidateScheduleUpdate validates the fields present in a partial update.
func ValidateScheduleUpdate(req *domain.ScheduleUpdateRequest) error {
	var errs FieldErrors
	if req.Label != nil && strings.TrimSpace(*req.Label) == "" {
		errs.Add("label", *req.Label, "label must not be empty")
	}
	if req.Scope != nil && *req.Scope != domain.ScopeOwner && *req.Scope != domain.ScopeGlobal {
		errs.Add("scope", string(*req.Scope), "must be owner or global")
	}
	if req.Action != nil && !validAction(*req.Action) {
		errs.Add("action", string(*req.Action), "must be lock or unlock")
	}
	if req.EndAction != nil && *req.EndAction != "" && !validAction(*req.EndAction) {
		errs.Add("endAction", string(*req.EndAction), "must be lock or unlock")
	}
	if req.Window != nil {
		validateWindow(&errs, "window", *req.Window)
	}
	if req.Recurrence != nil {
		validateRecurrence(&errs, *req.Recurrence)
	}
	if req.Exceptions != nil {
		validateExceptions(&errs, *req.Exceptions)
	}
	if req.Targets != nil {
		validateTargets(&errs, *req.Targets)
	}
	return errs.AsError()
}

// ValidateGroupCreate validates a group creation request.
func ValidateGroupCreate(req *domain.GroupCreateRequest) error {
	var errs FieldErrors
	if strings.TrimSpace(req.Name) == "" {
		errs.Add("name", req.Name, "name is required")
	}
	return errs.AsError()
}

// ValidateGroupUpdate validates a partial group update.
func ValidateGroupUpdate(req *domain.GroupUpdateRequest) error {
	var errs FieldErrors
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		errs.Add("name", *req.Name, "name must not be empty")
	}
	return errs.AsError()
}
