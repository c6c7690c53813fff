package unifi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/netcurfew/netcurfew/internal/domain"
)

// FileShim is a testing implementation that records lock state in a JSON
// file instead of talking to a controller.
type FileShim struct {
	filePath string
	mu       sync.Mutex
}

// Ensure FileShim implements ActionClient.
var _ ActionClient = (*FileShim)(nil)

// NewFileShim creates a new file-based shim.
func NewFileShim(filePath string) *FileShim {
	return &FileShim{filePath: filePath}
}

type shimState struct {
	Locked map[string]shimEntry `json:"locked"`
}

type shimEntry struct {
	Name     string    `json:"name"`
	LockedAt time.Time `json:"lockedAt"`
	LockedBy string    `json:"lockedBy,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

func (f *FileShim) load() (*shimState, error) {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &shimState{Locked: make(map[string]shimEntry)}, nil
		}
		return nil, fmt.Errorf("reading lock state file: %w", err)
	}
	var state shimState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing lock state file: %w", err)
	}
	if state.Locked == nil {
		state.Locked = make(map[string]shimEntry)
	}
	return &state, nil
}

func (f *FileShim) save(state *shimState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing lock state file: %w", err)
	}
	return nil
}

// Apply records the requested lock state in the file. Devices already in the
// requested state are reported as skipped, matching the controller client.
func (f *FileShim) Apply(ctx context.Context, action domain.ScheduleAction, devices []*domain.Device, actor, reason string) ([]domain.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := f.load()
	if err != nil {
		return nil, err
	}

	results := make([]domain.ActionResult, 0, len(devices))
	for _, device := range devices {
		mac := strings.ToLower(device.MAC)
		_, locked := state.Locked[mac]

		switch action {
		case domain.ActionLock:
			if locked {
				results = append(results, domain.ActionResult{
					MAC: mac, Locked: true, Status: domain.ActionStatusSkipped,
					Message: "already locked",
				})
				continue
			}
			state.Locked[mac] = shimEntry{
				Name:     device.Name,
				LockedAt: time.Now().UTC(),
				LockedBy: actor,
				Reason:   reason,
			}
			results = append(results, domain.ActionResult{
				MAC: mac, Locked: true, Status: domain.ActionStatusSuccess,
			})
		case domain.ActionUnlock:
			if !locked {
				results = append(results, domain.ActionResult{
					MAC: mac, Locked: false, Status: domain.ActionStatusSkipped,
					Message: "already unlocked",
				})
				continue
			}
			delete(state.Locked, mac)
			results = append(results, domain.ActionResult{
				MAC: mac, Locked: false, Status: domain.ActionStatusSuccess,
			})
		default:
			results = append(results, domain.ActionResult{
				MAC: mac, Status: domain.ActionStatusError,
				Message: fmt.Sprintf("unknown action %q", action),
			})
		}
	}

	if err := f.save(state); err != nil {
		return nil, err
	}
	return results, nil
}

// LockedMACs returns the set of currently locked devices, for tests.
func (f *FileShim) LockedMACs() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, err := f.load()
	if err != nil {
		return nil, err
	}
	macs := make([]string, 0, len(state.Locked))
	for mac := range state.Locked {
		macs = append(macs, mac)
	}
	return macs, nil
}
