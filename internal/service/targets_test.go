package service

import (
	"context"
	"testing"

	"github.com/netcurfew/netcurfew/internal/domain"
)

func macsOf(devices []*domain.Device) map[string]bool {
	out := make(map[string]bool, len(devices))
	for _, device := range devices {
		out[device.MAC] = true
	}
	return out
}

func TestResolveTargetsLiteralMAC(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	devices, err := store.ResolveTargets(ctx, domain.ScheduleTargets{
		Devices: []string{"28:16:A8:AE:27:57"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].Owner != "kade" {
		t.Errorf("owner = %q, want inventory device", devices[0].Owner)
	}
}

func TestResolveTargetsUnknownMACGetsPlaceholder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	devices, err := store.ResolveTargets(ctx, domain.ScheduleTargets{
		Devices: []string{"ff:ff:ff:00:00:01"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("got %d devices, want 1", len(devices))
	}
	if devices[0].Owner != domain.UnregisteredOwner || devices[0].Type != domain.UnknownDeviceType {
		t.Errorf("placeholder = %+v", devices[0])
	}
}

func TestResolveTargetsTags(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		tags     []string
		wantMACs []string
	}{
		{
			name:     "all devices",
			tags:     []string{"all-devices"},
			wantMACs: []string{"28:16:a8:ae:27:57", "28:16:a8:ae:27:59", "18:c0:4d:a9:97:48", "bc:83:85:6f:38:01", "04:7c:16:7e:ea:d0", "38:c8:04:a3:4e:85"},
		},
		{
			name:     "owner-all suffix",
			tags:     []string{"jayce-all"},
			wantMACs: []string{"bc:83:85:6f:38:01", "04:7c:16:7e:ea:d0"},
		},
		{
			name:     "bare owner key",
			tags:     []string{"jayce"},
			wantMACs: []string{"bc:83:85:6f:38:01", "04:7c:16:7e:ea:d0"},
		},
		{
			name:     "tags match case-insensitively",
			tags:     []string{"JAYCE-all"},
			wantMACs: []string{"bc:83:85:6f:38:01", "04:7c:16:7e:ea:d0"},
		},
		{
			name:     "unknown tag skipped",
			tags:     []string{"no-such-tag"},
			wantMACs: nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			devices, err := store.ResolveTargets(ctx, domain.ScheduleTargets{Tags: tc.tags})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			got := macsOf(devices)
			if len(got) != len(tc.wantMACs) {
				t.Fatalf("got %d devices, want %d", len(got), len(tc.wantMACs))
			}
			for _, mac := range tc.wantMACs {
				if !got[mac] {
					t.Errorf("missing %s", mac)
				}
			}
		})
	}
}

func TestResolveTargetsOwnerWithoutDevices(t *testing.T) {
	store, mem := newTestStore(t)
	ctx := context.Background()

	if err := mem.UpsertOwner(ctx, &domain.Owner{Key: "newkid", DisplayName: "New Kid"}); err != nil {
		t.Fatalf("upsert owner: %v", err)
	}

	// A directory entry with no registered devices is a valid, empty target.
	devices, err := store.ResolveTargets(ctx, domain.ScheduleTargets{Tags: []string{"newkid-all"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("got %d devices, want 0", len(devices))
	}
}

func TestResolveTargetsDeduplicates(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	devices, err := store.ResolveTargets(ctx, domain.ScheduleTargets{
		Devices: []string{"bc:83:85:6f:38:01"},
		Tags:    []string{"jayce-all", "jayce"},
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("got %d devices, want 2 after dedupe", len(devices))
	}
}
