package service

import (
	"context"
	"strings"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/validation"
)

// allDevicesTag targets the entire inventory.
const allDevicesTag = "all-devices"

// ownerAllSuffix targets one owner's whole inventory, e.g. "kade-all".
const ownerAllSuffix = "-all"

// normalizeTargets canonicalizes MAC addresses and trims tag whitespace
// before storing.
func normalizeTargets(targets domain.ScheduleTargets) domain.ScheduleTargets {
	out := domain.ScheduleTargets{
		Devices: make([]string, 0, len(targets.Devices)),
		Tags:    make([]string, 0, len(targets.Tags)),
	}
	for _, mac := range targets.Devices {
		out.Devices = append(out.Devices, validation.NormalizeMAC(mac))
	}
	for _, tag := range targets.Tags {
		out.Tags = append(out.Tags, strings.ToLower(strings.TrimSpace(tag)))
	}
	return out
}

// ResolveTargets expands a schedule's targets against the device inventory.
// Literal MACs unknown to the inventory resolve to a placeholder device so
// unregistered clients can still be locked. Tags are matched case-insensitively
// and select inventory slices: "all-devices" selects everything, "<owner>-all"
// or a bare owner key selects that owner's devices, and anything else is logged
// and skipped. Owner tags resolve against the owner directory, so an owner with
// no registered devices is still a valid (empty) target. The result is
// deduplicated by MAC.
func (s *ScheduleStore) ResolveTargets(ctx context.Context, targets domain.ScheduleTargets) ([]*domain.Device, error) {
	seen := make(map[string]bool)
	var out []*domain.Device

	add := func(device *domain.Device) {
		mac := strings.ToLower(device.MAC)
		if seen[mac] {
			return
		}
		seen[mac] = true
		out = append(out, device)
	}

	for _, raw := range targets.Devices {
		mac := validation.NormalizeMAC(raw)
		device, err := s.store.GetDeviceByMAC(ctx, mac)
		if err == domain.ErrNotFound {
			add(&domain.Device{
				Name:  mac,
				MAC:   mac,
				Type:  domain.UnknownDeviceType,
				Owner: domain.UnregisteredOwner,
			})
			continue
		}
		if err != nil {
			return nil, err
		}
		add(device)
	}

	if len(targets.Tags) == 0 {
		return out, nil
	}

	devices, err := s.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	directory, err := s.store.ListOwners(ctx)
	if err != nil {
		return nil, err
	}
	owners := make(map[string]bool)
	for _, owner := range directory {
		owners[strings.ToLower(owner.Key)] = true
	}

	for _, tag := range targets.Tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		switch {
		case tag == allDevicesTag:
			for _, device := range devices {
				add(device)
			}
		case strings.HasSuffix(tag, ownerAllSuffix) && owners[strings.TrimSuffix(tag, ownerAllSuffix)]:
			owner := strings.TrimSuffix(tag, ownerAllSuffix)
			for _, device := range devices {
				if strings.EqualFold(device.Owner, owner) {
					add(device)
				}
			}
		case owners[tag]:
			for _, device := range devices {
				if strings.EqualFold(device.Owner, tag) {
					add(device)
				}
			}
		default:
			s.log.Warn().Str("tag", tag).Msg("skipping unresolvable target tag")
		}
	}
	return out, nil
}
