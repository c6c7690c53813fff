package storage

import (
	"context"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// Storage defines the interface for the storage layer.
// Implementations must be safe for concurrent use.
type Storage interface {
	// Close closes the storage connection.
	Close() error

	// Schedules
	CreateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error
	GetSchedule(ctx context.Context, id string) (*domain.DeviceSchedule, error)
	ListSchedules(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error)
	UpdateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error
	DeleteSchedule(ctx context.Context, id string) error

	// Schedule groups
	CreateGroup(ctx context.Context, group *domain.ScheduleGroup) error
	GetGroup(ctx context.Context, id string) (*domain.ScheduleGroup, error)
	ListGroups(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error)
	ListAllGroups(ctx context.Context) ([]*domain.ScheduleGroup, error)
	UpdateGroup(ctx context.Context, group *domain.ScheduleGroup) error
	DeleteGroup(ctx context.Context, id string) error

	// Group memberships
	AddMembership(ctx context.Context, groupID, scheduleID string) error
	RemoveMembership(ctx context.Context, groupID, scheduleID string) error
	ListMembershipsForGroup(ctx context.Context, groupID string) ([]*domain.GroupMembership, error)
	ListMembershipsForSchedule(ctx context.Context, scheduleID string) ([]*domain.GroupMembership, error)
	DeleteMembershipsForSchedule(ctx context.Context, scheduleID string) error
	DeleteMembershipsForGroup(ctx context.Context, groupID string) error

	// Metadata
	GetMetadata(ctx context.Context) (*domain.ScheduleMetadata, error)
	SetMetadata(ctx context.Context, meta *domain.ScheduleMetadata) error

	// Device inventory
	UpsertDevice(ctx context.Context, device *domain.Device) error
	GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error)
	ListDevices(ctx context.Context) ([]*domain.Device, error)
	DeleteDevice(ctx context.Context, mac string) error

	// Owners
	UpsertOwner(ctx context.Context, owner *domain.Owner) error
	GetOwner(ctx context.Context, key string) (*domain.Owner, error)
	ListOwners(ctx context.Context) ([]*domain.Owner, error)

	// Audit events. ListEvents returns newest first; a limit <= 0
	// defaults to 100.
	AppendEvent(ctx context.Context, event *domain.AuditEvent) error
	ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error)

	// Transaction support
	BeginTx(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Storage
	Commit() error
	Rollback() error
}
