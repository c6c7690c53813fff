package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/api"
	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/service"
	"github.com/netcurfew/netcurfew/internal/storage/memory"
	"github.com/netcurfew/netcurfew/internal/unifi"
)

// testServer creates a test server with in-memory storage and the file shim
// gateway.
type testServer struct {
	handler http.Handler
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	if err := store.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	gateway := unifi.NewFileShim(t.TempDir() + "/locks.json")
	schedules := service.NewScheduleStore(store, zerolog.Nop())
	devices := service.NewDeviceService(store, gateway, zerolog.Nop())
	handler := api.NewRouter(schedules, devices, zerolog.Nop())

	return &testServer{handler: handler, store: store}
}

func (ts *testServer) request(method, path string, body any) *httptest.ResponseRecorder {
	var reqBody io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		reqBody = bytes.NewReader(jsonBytes)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func scheduleBody(label string) map[string]any {
	return map[string]any{
		"scope":  "global",
		"label":  label,
		"action": "lock",
		"window": map[string]string{
			"start": time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"end":   time.Date(2026, 1, 6, 6, 0, 0, 0, time.UTC).Format(time.RFC3339),
		},
		"recurrence": map[string]any{"type": "daily", "interval": 1},
		"targets":    map[string]any{"devices": []string{"aa:bb:cc:dd:ee:ff"}, "tags": []string{}},
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var resp map[string]string
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["status"] != "ok" {
		t.Errorf("Expected status ok, got %s", resp["status"])
	}
}

func TestScheduleCRUD(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/schedules", scheduleBody("bedtime"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created domain.DeviceSchedule
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding create response: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected id in create response")
	}

	rr = ts.request("GET", "/api/v1/schedules/"+created.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}

	rr = ts.request("PATCH", "/api/v1/schedules/"+created.ID, map[string]any{"label": "lights out"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var updated domain.DeviceSchedule
	_ = json.Unmarshal(rr.Body.Bytes(), &updated)
	if updated.Label != "lights out" {
		t.Errorf("label = %q", updated.Label)
	}

	rr = ts.request("GET", "/api/v1/schedules", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	var list []domain.DeviceSchedule
	_ = json.Unmarshal(rr.Body.Bytes(), &list)
	if len(list) != 1 {
		t.Errorf("list returned %d schedules", len(list))
	}

	rr = ts.request("DELETE", "/api/v1/schedules/"+created.ID, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rr.Code)
	}
	rr = ts.request("GET", "/api/v1/schedules/"+created.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", rr.Code)
	}
}

func TestScheduleValidationError(t *testing.T) {
	ts := newTestServer(t)

	body := scheduleBody("bad")
	body["action"] = "reboot"
	rr := ts.request("POST", "/api/v1/schedules", body)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestGroupActivationEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/schedules", scheduleBody("member"))
	var schedule domain.DeviceSchedule
	_ = json.Unmarshal(rr.Body.Bytes(), &schedule)

	rr = ts.request("POST", "/api/v1/groups", map[string]any{
		"name":        "school-days",
		"scheduleIds": []string{schedule.ID},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create group: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var group domain.GroupWithSchedules
	_ = json.Unmarshal(rr.Body.Bytes(), &group)

	// Member of an inactive group is disabled.
	rr = ts.request("GET", "/api/v1/schedules/"+schedule.ID, nil)
	var got domain.DeviceSchedule
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Enabled {
		t.Error("member of inactive group should be disabled")
	}

	rr = ts.request("POST", "/api/v1/groups/"+group.Group.ID+"/activate", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rr = ts.request("GET", "/api/v1/schedules/"+schedule.ID, nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &got)
	if !got.Enabled {
		t.Error("member of active group should be enabled")
	}
}

func TestManualDeviceLock(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("POST", "/api/v1/devices/lock", map[string]any{
		"devices": []string{"28:16:a8:ae:27:57"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("lock: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var results []domain.ActionResult
	_ = json.Unmarshal(rr.Body.Bytes(), &results)
	if len(results) != 1 || results[0].Status != domain.ActionStatusSuccess || !results[0].Locked {
		t.Errorf("results = %+v", results)
	}

	// Locking again reports skipped.
	rr = ts.request("POST", "/api/v1/devices/lock", map[string]any{
		"devices": []string{"28:16:a8:ae:27:57"},
	})
	_ = json.Unmarshal(rr.Body.Bytes(), &results)
	if len(results) != 1 || results[0].Status != domain.ActionStatusSkipped {
		t.Errorf("repeat results = %+v", results)
	}
}

func TestOwnerEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request("GET", "/api/v1/owners", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("owners: expected 200, got %d", rr.Code)
	}
	var owners []domain.Owner
	_ = json.Unmarshal(rr.Body.Bytes(), &owners)
	if len(owners) != 2 {
		t.Errorf("expected seeded owners, got %d", len(owners))
	}

	rr = ts.request("POST", "/api/v1/owners/kade/lock", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("owner lock: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var results []domain.ActionResult
	_ = json.Unmarshal(rr.Body.Bytes(), &results)
	if len(results) != 3 {
		t.Errorf("expected 3 kade devices locked, got %d", len(results))
	}

	rr = ts.request("POST", "/api/v1/owners/nobody/lock", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("unknown owner: expected 404, got %d", rr.Code)
	}
}

func TestEventsRecorded(t *testing.T) {
	ts := newTestServer(t)

	ts.request("POST", "/api/v1/schedules", scheduleBody("audited"))

	rr := ts.request("GET", "/api/v1/events", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", rr.Code)
	}
	var events []domain.AuditEvent
	_ = json.Unmarshal(rr.Body.Bytes(), &events)
	if len(events) == 0 {
		t.Fatal("expected at least one audit event")
	}
	if events[0].Action != "schedule.create" {
		t.Errorf("latest event action = %q", events[0].Action)
	}
}
