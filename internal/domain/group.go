package domain

import "time"

// ScheduleGroup is a mutual-exclusion scope over a set of schedules. At most
// one group per owner scope (global counts as its own scope) is active at a
// time; activating a group enables its member schedules and disables every
// schedule that belongs only to inactive groups.
type ScheduleGroup struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	OwnerKey    string    `json:"ownerKey,omitempty" db:"owner_key"` // empty = global group
	Description string    `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"isActive" db:"is_active"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time `json:"updatedAt" db:"updated_at"`
}

// GroupMembership links a schedule to a group (many-to-many).
type GroupMembership struct {
	GroupID    string    `json:"groupId" db:"group_id"`
	ScheduleID string    `json:"scheduleId" db:"schedule_id"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// GroupWithSchedules pairs a group with its current member schedules.
type GroupWithSchedules struct {
	Group     ScheduleGroup     `json:"group"`
	Schedules []*DeviceSchedule `json:"schedules"`
}

// GroupCreateRequest is the request body for creating a schedule group.
type GroupCreateRequest struct {
	Name        string   `json:"name"`
	OwnerKey    string   `json:"ownerKey,omitempty"`
	Description string   `json:"description,omitempty"`
	ScheduleIDs []string `json:"scheduleIds,omitempty"`
	IsActive    bool     `json:"isActive,omitempty"`
}

// GroupUpdateRequest carries a partial group update; nil fields are unchanged.
type GroupUpdateRequest struct {
	Name        *string   `json:"name,omitempty"`
	Description *string   `json:"description,omitempty"`
	ScheduleIDs *[]string `json:"scheduleIds,omitempty"`
	IsActive    *bool     `json:"isActive,omitempty"`
}
