package domain

import "time"

// ScheduleScope determines whether a schedule belongs to a single owner or to
// the entire fleet.
type ScheduleScope string

const (
	ScopeOwner  ScheduleScope = "owner"
	ScopeGlobal ScheduleScope = "global"
)

// ScheduleAction is the lock state applied to target devices.
type ScheduleAction string

const (
	ActionLock   ScheduleAction = "lock"
	ActionUnlock ScheduleAction = "unlock"
)

// RecurrenceType enumerates supported recurrence rules.
type RecurrenceType string

const (
	RecurrenceOneShot RecurrenceType = "one_shot"
	RecurrenceDaily   RecurrenceType = "daily"
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// ScheduleWindow is a start/end pair describing the reference occurrence.
// The wall-clock time of Start/End is reused for every generated occurrence.
type ScheduleWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the window length. Windows crossing midnight are stored
// with End on the following day, so this is normally positive.
func (w ScheduleWindow) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// ScheduleRecurrence describes how the reference window repeats.
type ScheduleRecurrence struct {
	Type RecurrenceType `json:"type"`
	// Interval is the cycle length in units of the recurrence type
	// (days, weeks, or months). Values below 1 are treated as 1.
	Interval   int        `json:"interval"`
	DaysOfWeek []string   `json:"daysOfWeek,omitempty"`
	DayOfMonth int        `json:"dayOfMonth,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

// ScheduleException overrides the occurrence landing on one calendar date.
// Date uses the YYYY-MM-DD form, interpreted in the evaluation timezone.
type ScheduleException struct {
	Date           string          `json:"date"`
	Reason         string          `json:"reason,omitempty"`
	Skip           bool            `json:"skip,omitempty"`
	OverrideWindow *ScheduleWindow `json:"overrideWindow,omitempty"`
}

// ScheduleTargets names the devices a schedule acts on: literal MAC addresses
// plus symbolic tags ("all-devices", "<owner>-all", or a bare owner key)
// resolved against the inventory at execution time.
type ScheduleTargets struct {
	Devices []string `json:"devices"`
	Tags    []string `json:"tags"`
}

// DeviceSchedule is the unit of automation: a recurring time window mapped to
// a lock/unlock action for a set of devices.
type DeviceSchedule struct {
	ID          string             `json:"id"`
	Scope       ScheduleScope      `json:"scope"`
	OwnerKey    string             `json:"ownerKey,omitempty"`
	GroupIDs    []string           `json:"groupIds"`
	Label       string             `json:"label"`
	Description string             `json:"description,omitempty"`
	Targets     ScheduleTargets    `json:"targets"`
	Action      ScheduleAction     `json:"action"`
	// EndAction, when set, is applied as the schedule goes inactive.
	EndAction  ScheduleAction      `json:"endAction,omitempty"`
	Window     ScheduleWindow      `json:"window"`
	Recurrence ScheduleRecurrence  `json:"recurrence"`
	Exceptions []ScheduleException `json:"exceptions"`
	Enabled    bool                `json:"enabled"`
	CreatedAt  time.Time           `json:"createdAt"`
	UpdatedAt  time.Time           `json:"updatedAt"`
}

// Clone returns a deep copy of the schedule.
func (s *DeviceSchedule) Clone() *DeviceSchedule {
	out := *s
	out.GroupIDs = append([]string(nil), s.GroupIDs...)
	out.Targets.Devices = append([]string(nil), s.Targets.Devices...)
	out.Targets.Tags = append([]string(nil), s.Targets.Tags...)
	out.Recurrence.DaysOfWeek = append([]string(nil), s.Recurrence.DaysOfWeek...)
	if s.Recurrence.Until != nil {
		until := *s.Recurrence.Until
		out.Recurrence.Until = &until
	}
	out.Exceptions = make([]ScheduleException, len(s.Exceptions))
	for i, exc := range s.Exceptions {
		out.Exceptions[i] = exc
		if exc.OverrideWindow != nil {
			window := *exc.OverrideWindow
			out.Exceptions[i].OverrideWindow = &window
		}
	}
	return &out
}

// ScheduleMetadata is singleton configuration shared by all schedules.
// GeneratedAt is a last-write watermark bumped on every store mutation.
type ScheduleMetadata struct {
	Timezone    string    `json:"timezone" db:"timezone"`
	GeneratedAt time.Time `json:"generatedAt" db:"generated_at"`
}

// ScheduleListFilter narrows List queries. Zero values mean "no filter".
type ScheduleListFilter struct {
	Scope   ScheduleScope
	Owner   string
	Enabled *bool
}

// ScheduleCreateRequest is the request body for creating a schedule.
type ScheduleCreateRequest struct {
	Scope       ScheduleScope       `json:"scope"`
	OwnerKey    string              `json:"ownerKey,omitempty"`
	Label       string              `json:"label"`
	Description string              `json:"description,omitempty"`
	Targets     ScheduleTargets     `json:"targets"`
	Action      ScheduleAction      `json:"action"`
	EndAction   ScheduleAction      `json:"endAction,omitempty"`
	Window      ScheduleWindow      `json:"window"`
	Recurrence  ScheduleRecurrence  `json:"recurrence"`
	Exceptions  []ScheduleException `json:"exceptions,omitempty"`
	Enabled     *bool               `json:"enabled,omitempty"`
	GroupIDs    []string            `json:"groupIds,omitempty"`
}

// ScheduleUpdateRequest carries a partial update; nil fields keep their prior
// value.
type ScheduleUpdateRequest struct {
	Scope       *ScheduleScope       `json:"scope,omitempty"`
	OwnerKey    *string              `json:"ownerKey,omitempty"`
	Label       *string              `json:"label,omitempty"`
	Description *string              `json:"description,omitempty"`
	Targets     *ScheduleTargets     `json:"targets,omitempty"`
	Action      *ScheduleAction      `json:"action,omitempty"`
	EndAction   *ScheduleAction      `json:"endAction,omitempty"`
	Window      *ScheduleWindow      `json:"window,omitempty"`
	Recurrence  *ScheduleRecurrence  `json:"recurrence,omitempty"`
	Exceptions  *[]ScheduleException `json:"exceptions,omitempty"`
	Enabled     *bool                `json:"enabled,omitempty"`
	GroupIDs    *[]string            `json:"groupIds,omitempty"`
}

// ScheduleCloneRequest clones a schedule into an owner's scope.
type ScheduleCloneRequest struct {
	TargetOwner string `json:"targetOwner"`
}

// CopyMode selects how cloned schedules combine with the target owner's
// existing ones.
type CopyMode string

const (
	CopyModeMerge   CopyMode = "merge"
	CopyModeReplace CopyMode = "replace"
)

// OwnerScheduleCopyRequest copies every owner-scope schedule to another owner.
type OwnerScheduleCopyRequest struct {
	TargetOwner string   `json:"targetOwner"`
	Mode        CopyMode `json:"mode,omitempty"`
}
