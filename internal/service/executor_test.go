package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/domain"
)

type gatewayCall struct {
	action domain.ScheduleAction
	macs   []string
	actor  string
	reason string
}

// fakeGateway records every Apply call.
type fakeGateway struct {
	mu    sync.Mutex
	calls []gatewayCall
}

func (f *fakeGateway) Apply(ctx context.Context, action domain.ScheduleAction, devices []*domain.Device, actor, reason string) ([]domain.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := gatewayCall{action: action, actor: actor, reason: reason}
	results := make([]domain.ActionResult, 0, len(devices))
	for _, device := range devices {
		call.macs = append(call.macs, device.MAC)
		results = append(results, domain.ActionResult{
			MAC: device.MAC, Locked: action == domain.ActionLock,
			Status: domain.ActionStatusSuccess,
		})
	}
	f.calls = append(f.calls, call)
	return results, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) lastCall() gatewayCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func newTestExecutor(t *testing.T) (*Executor, *ScheduleStore, *fakeGateway) {
	t.Helper()
	store, mem := newTestStore(t)
	gateway := &fakeGateway{}
	executor := NewExecutor(store, mem, gateway, time.Minute, zerolog.Nop())
	return executor, store, gateway
}

func TestExecutorFiresOnActivityEdges(t *testing.T) {
	executor, store, gateway := newTestExecutor(t)
	ctx := context.Background()

	req := createRequest(domain.ScopeGlobal, "", "bedtime")
	req.EndAction = domain.ActionUnlock
	req.Window = domain.ScheduleWindow{
		Start: time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC),
	}
	req.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceOneShot}
	created, err := store.Create(ctx, req, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// The memory store metadata defaults to America/Chicago; pass instants
	// in UTC and let evaluation convert.
	before := time.Date(2026, 1, 5, 20, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, before); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 0 {
		t.Fatalf("expected no calls before the window, got %d", gateway.callCount())
	}

	inside := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, inside); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected one lock call on the rising edge, got %d", gateway.callCount())
	}
	if call := gateway.lastCall(); call.action != domain.ActionLock {
		t.Errorf("action = %s, want lock", call.action)
	} else {
		if call.actor != "schedule:"+created.ID {
			t.Errorf("actor = %q, want schedule:%s", call.actor, created.ID)
		}
		if call.reason != "bedtime" {
			t.Errorf("reason = %q, want schedule label", call.reason)
		}
	}

	// Still inside the window: no repeat.
	stillInside := time.Date(2026, 1, 5, 23, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, stillInside); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected no repeat while active, got %d calls", gateway.callCount())
	}

	after := time.Date(2026, 1, 6, 7, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, after); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 2 {
		t.Fatalf("expected end action on the falling edge, got %d calls", gateway.callCount())
	}
	if call := gateway.lastCall(); call.action != domain.ActionUnlock {
		t.Errorf("end action = %s, want unlock", call.action)
	}

	// Long after: no further transitions.
	later := time.Date(2026, 1, 7, 12, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, later); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 2 {
		t.Fatalf("expected no calls after the falling edge, got %d", gateway.callCount())
	}
}

func TestExecutorSkipsEndActionWhenUnset(t *testing.T) {
	executor, store, gateway := newTestExecutor(t)
	ctx := context.Background()

	req := createRequest(domain.ScopeGlobal, "", "lock-only")
	req.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceOneShot}
	if _, err := store.Create(ctx, req, "tester"); err != nil {
		t.Fatalf("create: %v", err)
	}

	inside := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)
	after := time.Date(2026, 1, 6, 7, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, inside); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := executor.EvaluateOnce(ctx, after); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected only the lock call, got %d", gateway.callCount())
	}
}

func TestExecutorDisabledScheduleDropsWithoutAction(t *testing.T) {
	executor, store, gateway := newTestExecutor(t)
	ctx := context.Background()

	req := createRequest(domain.ScopeGlobal, "", "bedtime")
	req.EndAction = domain.ActionUnlock
	req.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceOneShot}
	created, err := store.Create(ctx, req, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inside := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, inside); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("expected the lock call, got %d", gateway.callCount())
	}

	// Disabling mid-window removes the schedule from consideration; the loop
	// must not fire the end action for it.
	if _, err := store.SetEnabled(ctx, created.ID, false, "tester"); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if err := executor.EvaluateOnce(ctx, inside.Add(time.Minute)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("disabled schedule must not fire, got %d calls", gateway.callCount())
	}
	executor.mu.Lock()
	_, tracked := executor.lastKnownActive[created.ID]
	executor.mu.Unlock()
	if tracked {
		t.Error("disabled schedule should drop out of activity tracking")
	}
}

func TestExecutorCleansUpDeletedSchedules(t *testing.T) {
	executor, store, gateway := newTestExecutor(t)
	ctx := context.Background()

	req := createRequest(domain.ScopeGlobal, "", "bedtime")
	req.Recurrence = domain.ScheduleRecurrence{Type: domain.RecurrenceOneShot}
	created, err := store.Create(ctx, req, "tester")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	inside := time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)
	if err := executor.EvaluateOnce(ctx, inside); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if err := store.Delete(ctx, created.ID, "tester"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := executor.EvaluateOnce(ctx, inside.Add(time.Minute)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if gateway.callCount() != 1 {
		t.Fatalf("deleted schedule must not fire, got %d calls", gateway.callCount())
	}
	executor.mu.Lock()
	_, tracked := executor.lastKnownActive[created.ID]
	executor.mu.Unlock()
	if tracked {
		t.Error("deleted schedule should drop out of activity tracking")
	}
}

func TestExecutorStartStop(t *testing.T) {
	executor, _, _ := newTestExecutor(t)
	executor.Start()
	executor.Stop()
}
