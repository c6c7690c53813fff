package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/storage"
)

// Store is an in-memory implementation of the storage interface for testing
// and for running without a database.
type Store struct {
	mu sync.RWMutex

	schedules   map[string]*domain.DeviceSchedule
	groups      map[string]*domain.ScheduleGroup
	memberships map[string]*domain.GroupMembership // key: groupID:scheduleID
	devices     map[string]*domain.Device          // key: mac
	owners      map[string]*domain.Owner           // key: owner key
	events      []*domain.AuditEvent
	metadata    domain.ScheduleMetadata
	nextEventID int64
}

// New creates a new in-memory store with default metadata.
func New() *Store {
	return &Store{
		schedules:   make(map[string]*domain.DeviceSchedule),
		groups:      make(map[string]*domain.ScheduleGroup),
		memberships: make(map[string]*domain.GroupMembership),
		devices:     make(map[string]*domain.Device),
		owners:      make(map[string]*domain.Owner),
		metadata: domain.ScheduleMetadata{
			Timezone:    "America/Chicago",
			GeneratedAt: time.Now().UTC(),
		},
		nextEventID: 1,
	}
}

func (s *Store) Close() error { return nil }

func membershipKey(groupID, scheduleID string) string {
	return groupID + ":" + scheduleID
}

// Schedules

func (s *Store) CreateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[schedule.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.schedules[schedule.ID] = schedule.Clone()
	return nil
}

func (s *Store) GetSchedule(ctx context.Context, id string) (*domain.DeviceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return schedule.Clone(), nil
}

func (s *Store) ListSchedules(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.DeviceSchedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		if filter.Scope != "" && schedule.Scope != filter.Scope {
			continue
		}
		if filter.Owner != "" && schedule.OwnerKey != filter.Owner {
			continue
		}
		if filter.Enabled != nil && schedule.Enabled != *filter.Enabled {
			continue
		}
		out = append(out, schedule.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[schedule.ID]; !ok {
		return domain.ErrNotFound
	}
	s.schedules[schedule.ID] = schedule.Clone()
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.schedules, id)
	return nil
}

// Schedule groups

func (s *Store) CreateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; ok {
		return domain.ErrAlreadyExists
	}
	copied := *group
	s.groups[group.ID] = &copied
	return nil
}

func (s *Store) GetGroup(ctx context.Context, id string) (*domain.ScheduleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	group, ok := s.groups[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *group
	return &copied, nil
}

func (s *Store) ListGroups(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ScheduleGroup, 0, len(s.groups))
	for _, group := range s.groups {
		if group.OwnerKey != ownerKey {
			continue
		}
		copied := *group
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListAllGroups(ctx context.Context) ([]*domain.ScheduleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.ScheduleGroup, 0, len(s.groups))
	for _, group := range s.groups {
		copied := *group
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[group.ID]; !ok {
		return domain.ErrNotFound
	}
	copied := *group
	s.groups[group.ID] = &copied
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

// Group memberships

func (s *Store) AddMembership(ctx context.Context, groupID, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(groupID, scheduleID)
	if _, ok := s.memberships[key]; ok {
		return nil
	}
	s.memberships[key] = &domain.GroupMembership{
		GroupID:    groupID,
		ScheduleID: scheduleID,
		CreatedAt:  time.Now().UTC(),
	}
	return nil
}

func (s *Store) RemoveMembership(ctx context.Context, groupID, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.memberships, membershipKey(groupID, scheduleID))
	return nil
}

func (s *Store) ListMembershipsForGroup(ctx context.Context, groupID string) ([]*domain.GroupMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.GroupMembership
	for _, m := range s.memberships {
		if m.GroupID == groupID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduleID < out[j].ScheduleID })
	return out, nil
}

func (s *Store) ListMembershipsForSchedule(ctx context.Context, scheduleID string) ([]*domain.GroupMembership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.GroupMembership
	for _, m := range s.memberships {
		if m.ScheduleID == scheduleID {
			copied := *m
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GroupID < out[j].GroupID })
	return out, nil
}

func (s *Store) DeleteMembershipsForSchedule(ctx context.Context, scheduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.memberships {
		if m.ScheduleID == scheduleID {
			delete(s.memberships, key)
		}
	}
	return nil
}

func (s *Store) DeleteMembershipsForGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, m := range s.memberships {
		if m.GroupID == groupID {
			delete(s.memberships, key)
		}
	}
	return nil
}

// Metadata

func (s *Store) GetMetadata(ctx context.Context) (*domain.ScheduleMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta := s.metadata
	return &meta, nil
}

func (s *Store) SetMetadata(ctx context.Context, meta *domain.ScheduleMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = *meta
	return nil
}

// Device inventory

func (s *Store) UpsertDevice(ctx context.Context, device *domain.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *device
	copied.MAC = strings.ToLower(copied.MAC)
	s.devices[copied.MAC] = &copied
	return nil
}

func (s *Store) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	device, ok := s.devices[strings.ToLower(mac)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *device
	return &copied, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Device, 0, len(s.devices))
	for _, device := range s.devices {
		copied := *device
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MAC < out[j].MAC })
	return out, nil
}

func (s *Store) DeleteDevice(ctx context.Context, mac string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mac = strings.ToLower(mac)
	if _, ok := s.devices[mac]; !ok {
		return domain.ErrNotFound
	}
	delete(s.devices, mac)
	return nil
}

// Owners

func (s *Store) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *owner
	s.owners[copied.Key] = &copied
	return nil
}

func (s *Store) GetOwner(ctx context.Context, key string) (*domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.owners[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	copied := *owner
	return &copied, nil
}

func (s *Store) ListOwners(ctx context.Context) ([]*domain.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Owner, 0, len(s.owners))
	for _, owner := range s.owners {
		copied := *owner
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Audit events

func (s *Store) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *event
	copied.ID = s.nextEventID
	s.nextEventID++
	event.ID = copied.ID
	s.events = append(s.events, &copied)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Newest first.
	total := len(s.events)
	if offset >= total {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	out := make([]*domain.AuditEvent, 0, limit)
	for i := total - 1 - offset; i >= 0 && len(out) < limit; i-- {
		copied := *s.events[i]
		out = append(out, &copied)
	}
	return out, nil
}

func (s *Store) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return &Tx{store: s}, nil
}

// Tx is a no-op transaction for the in-memory store.
type Tx struct {
	store *Store
}

func (t *Tx) Commit() error   { return nil }
func (t *Tx) Rollback() error { return nil }
func (t *Tx) Close() error    { return nil }
func (t *Tx) BeginTx(ctx context.Context) (storage.Transaction, error) {
	return nil, domain.ErrInvalidInput
}

// Forward all Tx methods to the underlying store
func (t *Tx) CreateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return t.store.CreateSchedule(ctx, schedule)
}
func (t *Tx) GetSchedule(ctx context.Context, id string) (*domain.DeviceSchedule, error) {
	return t.store.GetSchedule(ctx, id)
}
func (t *Tx) ListSchedules(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	return t.store.ListSchedules(ctx, filter)
}
func (t *Tx) UpdateSchedule(ctx context.Context, schedule *domain.DeviceSchedule) error {
	return t.store.UpdateSchedule(ctx, schedule)
}
func (t *Tx) DeleteSchedule(ctx context.Context, id string) error {
	return t.store.DeleteSchedule(ctx, id)
}
func (t *Tx) CreateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return t.store.CreateGroup(ctx, group)
}
func (t *Tx) GetGroup(ctx context.Context, id string) (*domain.ScheduleGroup, error) {
	return t.store.GetGroup(ctx, id)
}
func (t *Tx) ListGroups(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error) {
	return t.store.ListGroups(ctx, ownerKey)
}
func (t *Tx) ListAllGroups(ctx context.Context) ([]*domain.ScheduleGroup, error) {
	return t.store.ListAllGroups(ctx)
}
func (t *Tx) UpdateGroup(ctx context.Context, group *domain.ScheduleGroup) error {
	return t.store.UpdateGroup(ctx, group)
}
func (t *Tx) DeleteGroup(ctx context.Context, id string) error {
	return t.store.DeleteGroup(ctx, id)
}
func (t *Tx) AddMembership(ctx context.Context, groupID, scheduleID string) error {
	return t.store.AddMembership(ctx, groupID, scheduleID)
}
func (t *Tx) RemoveMembership(ctx context.Context, groupID, scheduleID string) error {
	return t.store.RemoveMembership(ctx, groupID, scheduleID)
}
func (t *Tx) ListMembershipsForGroup(ctx context.Context, groupID string) ([]*domain.GroupMembership, error) {
	return t.store.ListMembershipsForGroup(ctx, groupID)
}
func (t *Tx) ListMembershipsForSchedule(ctx context.Context, scheduleID string) ([]*domain.GroupMembership, error) {
	return t.store.ListMembershipsForSchedule(ctx, scheduleID)
}
func (t *Tx) DeleteMembershipsForSchedule(ctx context.Context, scheduleID string) error {
	return t.store.DeleteMembershipsForSchedule(ctx, scheduleID)
}
func (t *Tx) DeleteMembershipsForGroup(ctx context.Context, groupID string) error {
	return t.store.DeleteMembershipsForGroup(ctx, groupID)
}
func (t *Tx) GetMetadata(ctx context.Context) (*domain.ScheduleMetadata, error) {
	return t.store.GetMetadata(ctx)
}
func (t *Tx) SetMetadata(ctx context.Context, meta *domain.ScheduleMetadata) error {
	return t.store.SetMetadata(ctx, meta)
}
func (t *Tx) UpsertDevice(ctx context.Context, device *domain.Device) error {
	return t.store.UpsertDevice(ctx, device)
}
func (t *Tx) GetDeviceByMAC(ctx context.Context, mac string) (*domain.Device, error) {
	return t.store.GetDeviceByMAC(ctx, mac)
}
func (t *Tx) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	return t.store.ListDevices(ctx)
}
func (t *Tx) DeleteDevice(ctx context.Context, mac string) error {
	return t.store.DeleteDevice(ctx, mac)
}
func (t *Tx) UpsertOwner(ctx context.Context, owner *domain.Owner) error {
	return t.store.UpsertOwner(ctx, owner)
}
func (t *Tx) GetOwner(ctx context.Context, key string) (*domain.Owner, error) {
	return t.store.GetOwner(ctx, key)
}
func (t *Tx) ListOwners(ctx context.Context) ([]*domain.Owner, error) {
	return t.store.ListOwners(ctx)
}
func (t *Tx) AppendEvent(ctx context.Context, event *domain.AuditEvent) error {
	return t.store.AppendEvent(ctx, event)
}
func (t *Tx) ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	return t.store.ListEvents(ctx, limit, offset)
}
