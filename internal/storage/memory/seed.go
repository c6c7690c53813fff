package memory

import (
	"context"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// SeedDefaults loads a small starter inventory so a memory-backed server is
// usable out of the box.
func (s *Store) SeedDefaults(ctx context.Context) error {
	owners := []*domain.Owner{
		{Key: "kade", DisplayName: "Kade"},
		{Key: "jayce", DisplayName: "Jayce"},
		{Key: "shared", DisplayName: "Shared"},
	}
	devices := []*domain.Device{
		{Name: "Kade's Xbox Wired", MAC: "28:16:a8:ae:27:57", Type: "xbox", Owner: "kade"},
		{Name: "Kade's Xbox Wi-Fi", MAC: "28:16:a8:ae:27:59", Type: "xbox", Owner: "kade"},
		{Name: "Kade's Computer", MAC: "18:c0:4d:a9:97:48", Type: "computer", Owner: "kade"},
		{Name: "Jayce's Xbox Wired", MAC: "bc:83:85:6f:38:01", Type: "xbox", Owner: "jayce"},
		{Name: "Jayce's Computer", MAC: "04:7c:16:7e:ea:d0", Type: "computer", Owner: "jayce"},
		{Name: "Living Room TV", MAC: "38:c8:04:a3:4e:85", Type: "tv", Owner: "shared"},
	}
	for _, owner := range owners {
		if err := s.UpsertOwner(ctx, owner); err != nil {
			return err
		}
	}
	for _, device := range devices {
		if err := s.UpsertDevice(ctx, device); err != nil {
			return err
		}
	}
	return nil
}
