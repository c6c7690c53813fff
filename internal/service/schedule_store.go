// Package service implements the schedule store and the scheduler loop on
// top of the storage layer.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/storage"
	"github.com/netcurfew/netcurfew/internal/validation"
)

// ScheduleStore is the mutation layer for schedules and groups. Every write
// goes through a transaction and leaves the group activation invariant intact:
// a schedule that belongs to at least one group is enabled exactly when one of
// its groups is active.
type ScheduleStore struct {
	store storage.Storage
	log   zerolog.Logger

	// mu serializes mutations so invariant recomputation never races with a
	// concurrent write on stores without real transaction isolation.
	mu sync.Mutex
}

// NewScheduleStore creates a new ScheduleStore.
func NewScheduleStore(store storage.Storage, log zerolog.Logger) *ScheduleStore {
	return &ScheduleStore{store: store, log: log.With().Str("component", "schedule_store").Logger()}
}

// inTx runs fn inside a transaction, rolling back on error.
func (s *ScheduleStore) inTx(ctx context.Context, fn func(tx storage.Transaction) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	return tx.Commit()
}

// touchMetadata bumps the generated-at watermark after a successful mutation.
func touchMetadata(ctx context.Context, tx storage.Transaction) error {
	meta, err := tx.GetMetadata(ctx)
	if err == domain.ErrNotFound {
		meta = &domain.ScheduleMetadata{Timezone: "America/Chicago"}
	} else if err != nil {
		return err
	}
	meta.GeneratedAt = time.Now().UTC()
	return tx.SetMetadata(ctx, meta)
}

func recordEvent(ctx context.Context, tx storage.Transaction, actor, action, subjectType, subjectID string, metadata map[string]any) error {
	return tx.AppendEvent(ctx, &domain.AuditEvent{
		Timestamp:   time.Now().UTC(),
		Action:      action,
		Actor:       actor,
		SubjectType: subjectType,
		SubjectID:   subjectID,
		Metadata:    metadata,
	})
}

// enforceActivation recomputes the enabled flag for every schedule that has
// at least one group membership. Schedules without memberships keep whatever
// enabled state they were given directly.
func enforceActivation(ctx context.Context, tx storage.Transaction) error {
	groups, err := tx.ListAllGroups(ctx)
	if err != nil {
		return err
	}
	active := make(map[string]bool, len(groups))
	scheduleGroups := make(map[string][]string)
	for _, group := range groups {
		active[group.ID] = group.IsActive
		memberships, err := tx.ListMembershipsForGroup(ctx, group.ID)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			scheduleGroups[m.ScheduleID] = append(scheduleGroups[m.ScheduleID], group.ID)
		}
	}
	for scheduleID, groupIDs := range scheduleGroups {
		enabled := false
		for _, groupID := range groupIDs {
			if active[groupID] {
				enabled = true
				break
			}
		}
		schedule, err := tx.GetSchedule(ctx, scheduleID)
		if err != nil {
			return err
		}
		if schedule.Enabled != enabled {
			schedule.Enabled = enabled
			schedule.UpdatedAt = time.Now().UTC()
			if err := tx.UpdateSchedule(ctx, schedule); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkGroupScope verifies a schedule may belong to a group. Owner-scoped
// groups only accept schedules of the same owner; global groups accept
// anything.
func checkGroupScope(group *domain.ScheduleGroup, schedule *domain.DeviceSchedule) error {
	if group.OwnerKey == "" {
		return nil
	}
	if schedule.Scope != domain.ScopeOwner || schedule.OwnerKey != group.OwnerKey {
		return fmt.Errorf("%w: schedule %s does not belong to owner %s",
			domain.ErrOwnerMismatch, schedule.ID, group.OwnerKey)
	}
	return nil
}

// List returns schedules matching the filter.
func (s *ScheduleStore) List(ctx context.Context, filter domain.ScheduleListFilter) ([]*domain.DeviceSchedule, error) {
	schedules, err := s.store.ListSchedules(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.attachGroupIDs(ctx, schedules)
}

func (s *ScheduleStore) attachGroupIDs(ctx context.Context, schedules []*domain.DeviceSchedule) ([]*domain.DeviceSchedule, error) {
	for _, schedule := range schedules {
		memberships, err := s.store.ListMembershipsForSchedule(ctx, schedule.ID)
		if err != nil {
			return nil, err
		}
		schedule.GroupIDs = make([]string, 0, len(memberships))
		for _, m := range memberships {
			schedule.GroupIDs = append(schedule.GroupIDs, m.GroupID)
		}
	}
	return schedules, nil
}

// Get returns one schedule by id.
func (s *ScheduleStore) Get(ctx context.Context, id string) (*domain.DeviceSchedule, error) {
	schedule, err := s.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	schedules, err := s.attachGroupIDs(ctx, []*domain.DeviceSchedule{schedule})
	if err != nil {
		return nil, err
	}
	return schedules[0], nil
}

// ListForOwner returns the owner's schedules together with the global ones
// that also apply to them.
func (s *ScheduleStore) ListForOwner(ctx context.Context, ownerKey string) (owned, global []*domain.DeviceSchedule, err error) {
	owned, err = s.List(ctx, domain.ScheduleListFilter{Scope: domain.ScopeOwner, Owner: ownerKey})
	if err != nil {
		return nil, nil, err
	}
	global, err = s.List(ctx, domain.ScheduleListFilter{Scope: domain.ScopeGlobal})
	if err != nil {
		return nil, nil, err
	}
	return owned, global, nil
}

// Create validates and stores a new schedule. Group memberships are resolved
// before anything is written, so an unknown group leaves no partial state.
func (s *ScheduleStore) Create(ctx context.Context, req *domain.ScheduleCreateRequest, actor string) (*domain.DeviceSchedule, error) {
	if err := validation.ValidateScheduleCreate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	schedule := &domain.DeviceSchedule{
		ID:          uuid.New().String(),
		Scope:       req.Scope,
		OwnerKey:    req.OwnerKey,
		Label:       req.Label,
		Description: req.Description,
		Targets:     normalizeTargets(req.Targets),
		Action:      req.Action,
		EndAction:   req.EndAction,
		Window:      req.Window,
		Recurrence:  req.Recurrence,
		Exceptions:  req.Exceptions,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Enabled != nil {
		schedule.Enabled = *req.Enabled
	}
	if schedule.Exceptions == nil {
		schedule.Exceptions = []domain.ScheduleException{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		if schedule.Scope == domain.ScopeOwner {
			if _, err := tx.GetOwner(ctx, schedule.OwnerKey); err == domain.ErrNotFound {
				return fmt.Errorf("%w: %s", domain.ErrOwnerNotFound, schedule.OwnerKey)
			} else if err != nil {
				return err
			}
		}
		for _, groupID := range req.GroupIDs {
			group, err := tx.GetGroup(ctx, groupID)
			if err == domain.ErrNotFound {
				return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
			}
			if err != nil {
				return err
			}
			if err := checkGroupScope(group, schedule); err != nil {
				return err
			}
		}
		if err := tx.CreateSchedule(ctx, schedule); err != nil {
			return err
		}
		for _, groupID := range req.GroupIDs {
			if err := tx.AddMembership(ctx, groupID, schedule.ID); err != nil {
				return err
			}
		}
		if len(req.GroupIDs) > 0 {
			if err := enforceActivation(ctx, tx); err != nil {
				return err
			}
		}
		if err := recordEvent(ctx, tx, actor, "schedule.create", "schedule", schedule.ID,
			map[string]any{"label": schedule.Label}); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, schedule.ID)
}

// Update applies a partial update. Fields left nil keep their prior value;
// supplying groupIds replaces the membership set.
func (s *ScheduleStore) Update(ctx context.Context, id string, req *domain.ScheduleUpdateRequest, actor string) (*domain.DeviceSchedule, error) {
	if err := validation.ValidateScheduleUpdate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		schedule, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}

		if req.Scope != nil {
			schedule.Scope = *req.Scope
		}
		if req.OwnerKey != nil {
			schedule.OwnerKey = *req.OwnerKey
		}
		if req.Label != nil {
			schedule.Label = *req.Label
		}
		if req.Description != nil {
			schedule.Description = *req.Description
		}
		if req.Targets != nil {
			schedule.Targets = normalizeTargets(*req.Targets)
		}
		if req.Action != nil {
			schedule.Action = *req.Action
		}
		if req.EndAction != nil {
			schedule.EndAction = *req.EndAction
		}
		if req.Window != nil {
			schedule.Window = *req.Window
		}
		if req.Recurrence != nil {
			schedule.Recurrence = *req.Recurrence
		}
		if req.Exceptions != nil {
			schedule.Exceptions = *req.Exceptions
		}
		if req.Enabled != nil {
			schedule.Enabled = *req.Enabled
		}

		// Scope and owner key must still agree after the merge.
		switch schedule.Scope {
		case domain.ScopeOwner:
			if schedule.OwnerKey == "" {
				return fmt.Errorf("%w: owner-scoped schedule requires ownerKey", domain.ErrInvalidInput)
			}
			if req.Scope != nil || req.OwnerKey != nil {
				if _, err := tx.GetOwner(ctx, schedule.OwnerKey); err == domain.ErrNotFound {
					return fmt.Errorf("%w: %s", domain.ErrOwnerNotFound, schedule.OwnerKey)
				} else if err != nil {
					return err
				}
			}
		case domain.ScopeGlobal:
			schedule.OwnerKey = ""
		}

		membershipsChanged := false
		if req.GroupIDs != nil {
			current, err := tx.ListMembershipsForSchedule(ctx, id)
			if err != nil {
				return err
			}
			currentSet := make(map[string]bool, len(current))
			for _, m := range current {
				currentSet[m.GroupID] = true
			}
			wantSet := make(map[string]bool, len(*req.GroupIDs))
			for _, groupID := range *req.GroupIDs {
				group, err := tx.GetGroup(ctx, groupID)
				if err == domain.ErrNotFound {
					return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, groupID)
				}
				if err != nil {
					return err
				}
				if err := checkGroupScope(group, schedule); err != nil {
					return err
				}
				wantSet[groupID] = true
			}
			for groupID := range currentSet {
				if !wantSet[groupID] {
					if err := tx.RemoveMembership(ctx, groupID, id); err != nil {
						return err
					}
					membershipsChanged = true
				}
			}
			for groupID := range wantSet {
				if !currentSet[groupID] {
					if err := tx.AddMembership(ctx, groupID, id); err != nil {
						return err
					}
					membershipsChanged = true
				}
			}
		}

		schedule.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return err
		}
		if membershipsChanged {
			if err := enforceActivation(ctx, tx); err != nil {
				return err
			}
		}
		if err := recordEvent(ctx, tx, actor, "schedule.update", "schedule", id, nil); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a schedule and its group memberships.
func (s *ScheduleStore) Delete(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx storage.Transaction) error {
		if _, err := tx.GetSchedule(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteMembershipsForSchedule(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteSchedule(ctx, id); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "schedule.delete", "schedule", id, nil); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
}

// SetEnabled flips a schedule's enabled flag directly.
func (s *ScheduleStore) SetEnabled(ctx context.Context, id string, enabled bool, actor string) (*domain.DeviceSchedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		schedule, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		if schedule.Enabled == enabled {
			return nil
		}
		schedule.Enabled = enabled
		schedule.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateSchedule(ctx, schedule); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "schedule.set_enabled", "schedule", id,
			map[string]any{"enabled": enabled}); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// cloneForOwner builds a fresh owner-scoped copy of the source schedule.
// Group memberships are not carried over and the copy starts enabled.
func cloneForOwner(source *domain.DeviceSchedule, ownerKey string, now time.Time) *domain.DeviceSchedule {
	copied := source.Clone()
	copied.ID = uuid.New().String()
	copied.Scope = domain.ScopeOwner
	copied.OwnerKey = ownerKey
	copied.GroupIDs = nil
	copied.Enabled = true
	copied.CreatedAt = now
	copied.UpdatedAt = now
	return copied
}

// CloneToOwner copies one schedule into the target owner's scope.
func (s *ScheduleStore) CloneToOwner(ctx context.Context, id string, req *domain.ScheduleCloneRequest, actor string) (*domain.DeviceSchedule, error) {
	if req.TargetOwner == "" {
		return nil, fmt.Errorf("%w: targetOwner is required", domain.ErrInvalidInput)
	}

	var cloned *domain.DeviceSchedule
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		if _, err := tx.GetOwner(ctx, req.TargetOwner); err == domain.ErrNotFound {
			return fmt.Errorf("%w: %s", domain.ErrOwnerNotFound, req.TargetOwner)
		} else if err != nil {
			return err
		}
		source, err := tx.GetSchedule(ctx, id)
		if err != nil {
			return err
		}
		cloned = cloneForOwner(source, req.TargetOwner, time.Now().UTC())
		if err := tx.CreateSchedule(ctx, cloned); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "schedule.clone", "schedule", cloned.ID,
			map[string]any{"source": id, "targetOwner": req.TargetOwner}); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, cloned.ID)
}

// CopyOwnerSchedules copies every owner-scoped schedule from one owner to
// another. In replace mode the target's existing owner-scoped schedules are
// removed first; the returned count says how many were replaced.
func (s *ScheduleStore) CopyOwnerSchedules(ctx context.Context, sourceOwner string, req *domain.OwnerScheduleCopyRequest, actor string) (created []*domain.DeviceSchedule, replaced int, err error) {
	if req.TargetOwner == "" {
		return nil, 0, fmt.Errorf("%w: targetOwner is required", domain.ErrInvalidInput)
	}
	if sourceOwner == req.TargetOwner {
		return nil, 0, fmt.Errorf("%w: source and target owner are the same", domain.ErrInvalidInput)
	}
	mode := req.Mode
	if mode == "" {
		mode = domain.CopyModeMerge
	}
	if mode != domain.CopyModeMerge && mode != domain.CopyModeReplace {
		return nil, 0, fmt.Errorf("%w: unknown copy mode %q", domain.ErrInvalidInput, req.Mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err = s.inTx(ctx, func(tx storage.Transaction) error {
		if _, err := tx.GetOwner(ctx, req.TargetOwner); err == domain.ErrNotFound {
			return fmt.Errorf("%w: %s", domain.ErrOwnerNotFound, req.TargetOwner)
		} else if err != nil {
			return err
		}
		sources, err := tx.ListSchedules(ctx, domain.ScheduleListFilter{
			Scope: domain.ScopeOwner, Owner: sourceOwner,
		})
		if err != nil {
			return err
		}

		if mode == domain.CopyModeReplace {
			existing, err := tx.ListSchedules(ctx, domain.ScheduleListFilter{
				Scope: domain.ScopeOwner, Owner: req.TargetOwner,
			})
			if err != nil {
				return err
			}
			for _, schedule := range existing {
				if err := tx.DeleteMembershipsForSchedule(ctx, schedule.ID); err != nil {
					return err
				}
				if err := tx.DeleteSchedule(ctx, schedule.ID); err != nil {
					return err
				}
			}
			replaced = len(existing)
		}

		now := time.Now().UTC()
		for _, source := range sources {
			copied := cloneForOwner(source, req.TargetOwner, now)
			if err := tx.CreateSchedule(ctx, copied); err != nil {
				return err
			}
			created = append(created, copied)
		}

		if err := recordEvent(ctx, tx, actor, "schedule.copy_owner", "owner", req.TargetOwner,
			map[string]any{"source": sourceOwner, "mode": string(mode),
				"created": len(created), "replaced": replaced}); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, 0, err
	}
	return created, replaced, nil
}

// Metadata returns the shared schedule metadata.
func (s *ScheduleStore) Metadata(ctx context.Context) (*domain.ScheduleMetadata, error) {
	meta, err := s.store.GetMetadata(ctx)
	if err == domain.ErrNotFound {
		return &domain.ScheduleMetadata{Timezone: "America/Chicago"}, nil
	}
	return meta, err
}
