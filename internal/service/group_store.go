package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/storage"
	"github.com/netcurfew/netcurfew/internal/validation"
)

// groupWithSchedules loads a group's member schedules.
func groupWithSchedules(ctx context.Context, store storage.Storage, group *domain.ScheduleGroup) (*domain.GroupWithSchedules, error) {
	memberships, err := store.ListMembershipsForGroup(ctx, group.ID)
	if err != nil {
		return nil, err
	}
	out := &domain.GroupWithSchedules{Group: *group, Schedules: make([]*domain.DeviceSchedule, 0, len(memberships))}
	for _, m := range memberships {
		schedule, err := store.GetSchedule(ctx, m.ScheduleID)
		if err != nil {
			return nil, err
		}
		out.Schedules = append(out.Schedules, schedule)
	}
	return out, nil
}

// CreateGroup creates a schedule group, optionally with initial members.
// Member schedules must exist and match the group's owner scope.
func (s *ScheduleStore) CreateGroup(ctx context.Context, req *domain.GroupCreateRequest, actor string) (*domain.GroupWithSchedules, error) {
	if err := validation.ValidateGroupCreate(req); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	group := &domain.ScheduleGroup{
		ID:          uuid.New().String(),
		Name:        req.Name,
		OwnerKey:    req.OwnerKey,
		Description: req.Description,
		IsActive:    req.IsActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		for _, scheduleID := range req.ScheduleIDs {
			schedule, err := tx.GetSchedule(ctx, scheduleID)
			if err != nil {
				return err
			}
			if err := checkGroupScope(group, schedule); err != nil {
				return err
			}
		}
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		for _, scheduleID := range req.ScheduleIDs {
			if err := tx.AddMembership(ctx, group.ID, scheduleID); err != nil {
				return err
			}
		}
		if group.IsActive {
			if err := deactivateSiblings(ctx, tx, group); err != nil {
				return err
			}
		}
		if err := enforceActivation(ctx, tx); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "group.create", "group", group.ID,
			map[string]any{"name": group.Name}); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, group.ID)
}

// GetGroup returns a group with its member schedules.
func (s *ScheduleStore) GetGroup(ctx context.Context, id string) (*domain.GroupWithSchedules, error) {
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	return groupWithSchedules(ctx, s.store, group)
}

// ListGroups returns every group across all owner scopes.
func (s *ScheduleStore) ListGroups(ctx context.Context) ([]*domain.ScheduleGroup, error) {
	return s.store.ListAllGroups(ctx)
}

// ListGroupsForOwner returns groups in the given owner scope. An empty key
// selects global groups.
func (s *ScheduleStore) ListGroupsForOwner(ctx context.Context, ownerKey string) ([]*domain.ScheduleGroup, error) {
	return s.store.ListGroups(ctx, ownerKey)
}

// UpdateGroup applies a partial group update. Supplying scheduleIds replaces
// the membership set.
func (s *ScheduleStore) UpdateGroup(ctx context.Context, id string, req *domain.GroupUpdateRequest, actor string) (*domain.GroupWithSchedules, error) {
	if err := validation.ValidateGroupUpdate(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		group, err := tx.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if req.Name != nil {
			group.Name = *req.Name
		}
		if req.Description != nil {
			group.Description = *req.Description
		}

		if req.ScheduleIDs != nil {
			current, err := tx.ListMembershipsForGroup(ctx, id)
			if err != nil {
				return err
			}
			currentSet := make(map[string]bool, len(current))
			for _, m := range current {
				currentSet[m.ScheduleID] = true
			}
			wantSet := make(map[string]bool, len(*req.ScheduleIDs))
			for _, scheduleID := range *req.ScheduleIDs {
				schedule, err := tx.GetSchedule(ctx, scheduleID)
				if err != nil {
					return err
				}
				if err := checkGroupScope(group, schedule); err != nil {
					return err
				}
				wantSet[scheduleID] = true
			}
			for scheduleID := range currentSet {
				if !wantSet[scheduleID] {
					if err := tx.RemoveMembership(ctx, id, scheduleID); err != nil {
						return err
					}
				}
			}
			for scheduleID := range wantSet {
				if !currentSet[scheduleID] {
					if err := tx.AddMembership(ctx, id, scheduleID); err != nil {
						return err
					}
				}
			}
		}

		if req.IsActive != nil && *req.IsActive != group.IsActive {
			group.IsActive = *req.IsActive
			if group.IsActive {
				if err := deactivateSiblings(ctx, tx, group); err != nil {
					return err
				}
			}
		}

		group.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		if err := enforceActivation(ctx, tx); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "group.update", "group", id, nil); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, id)
}

// DeleteGroup removes a group and its memberships. Member schedules keep
// their current enabled state once they belong to no group.
func (s *ScheduleStore) DeleteGroup(ctx context.Context, id, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inTx(ctx, func(tx storage.Transaction) error {
		if _, err := tx.GetGroup(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteMembershipsForGroup(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteGroup(ctx, id); err != nil {
			return err
		}
		if err := enforceActivation(ctx, tx); err != nil {
			return err
		}
		if err := recordEvent(ctx, tx, actor, "group.delete", "group", id, nil); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
}

// deactivateSiblings turns off every other active group in the same owner
// scope. Activating a group is exclusive within its scope.
func deactivateSiblings(ctx context.Context, tx storage.Transaction, group *domain.ScheduleGroup) error {
	siblings, err := tx.ListGroups(ctx, group.OwnerKey)
	if err != nil {
		return err
	}
	for _, sibling := range siblings {
		if sibling.ID == group.ID || !sibling.IsActive {
			continue
		}
		sibling.IsActive = false
		sibling.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateGroup(ctx, sibling); err != nil {
			return err
		}
	}
	return nil
}

// ActivateGroup marks the group active, deactivates its scope siblings, and
// recomputes member schedule enablement.
func (s *ScheduleStore) ActivateGroup(ctx context.Context, id, actor string) (*domain.GroupWithSchedules, error) {
	return s.setGroupActive(ctx, id, true, actor)
}

// DeactivateGroup marks the group inactive and recomputes member schedule
// enablement.
func (s *ScheduleStore) DeactivateGroup(ctx context.Context, id, actor string) (*domain.GroupWithSchedules, error) {
	return s.setGroupActive(ctx, id, false, actor)
}

func (s *ScheduleStore) setGroupActive(ctx context.Context, id string, active bool, actor string) (*domain.GroupWithSchedules, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.inTx(ctx, func(tx storage.Transaction) error {
		group, err := tx.GetGroup(ctx, id)
		if err != nil {
			if err == domain.ErrNotFound {
				return fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
			}
			return err
		}
		group.IsActive = active
		group.UpdatedAt = time.Now().UTC()
		if active {
			if err := deactivateSiblings(ctx, tx, group); err != nil {
				return err
			}
		}
		if err := tx.UpdateGroup(ctx, group); err != nil {
			return err
		}
		if err := enforceActivation(ctx, tx); err != nil {
			return err
		}
		action := "group.deactivate"
		if active {
			action = "group.activate"
		}
		if err := recordEvent(ctx, tx, actor, action, "group", id, nil); err != nil {
			return err
		}
		return touchMetadata(ctx, tx)
	})
	if err != nil {
		return nil, err
	}
	return s.GetGroup(ctx, id)
}
