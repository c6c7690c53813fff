package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/service"
)

// DeviceHandler handles inventory, owner, manual action, and event routes.
type DeviceHandler struct {
	devices *service.DeviceService
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(devices *service.DeviceService) *DeviceHandler {
	return &DeviceHandler{devices: devices}
}

// List handles GET /devices.
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.ListDevices(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, devices)
}

// Get handles GET /devices/{mac}.
func (h *DeviceHandler) Get(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetDevice(r.Context(), chi.URLParam(r, "mac"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, device)
}

// actionRequest is the body for manual lock/unlock calls.
type actionRequest struct {
	Devices []string `json:"devices"`
}

func (h *DeviceHandler) applyToMACs(w http.ResponseWriter, r *http.Request, action domain.ScheduleAction) {
	var req actionRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	results, err := h.devices.ApplyToMACs(r.Context(), action, req.Devices, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// Lock handles POST /devices/lock.
func (h *DeviceHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.applyToMACs(w, r, domain.ActionLock)
}

// Unlock handles POST /devices/unlock.
func (h *DeviceHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.applyToMACs(w, r, domain.ActionUnlock)
}

// ListOwners handles GET /owners.
func (h *DeviceHandler) ListOwners(w http.ResponseWriter, r *http.Request) {
	owners, err := h.devices.ListOwners(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, owners)
}

func (h *DeviceHandler) applyToOwner(w http.ResponseWriter, r *http.Request, action domain.ScheduleAction) {
	results, err := h.devices.ApplyToOwner(r.Context(), action, chi.URLParam(r, "key"), actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// LockOwner handles POST /owners/{key}/lock.
func (h *DeviceHandler) LockOwner(w http.ResponseWriter, r *http.Request) {
	h.applyToOwner(w, r, domain.ActionLock)
}

// UnlockOwner handles POST /owners/{key}/unlock.
func (h *DeviceHandler) UnlockOwner(w http.ResponseWriter, r *http.Request) {
	h.applyToOwner(w, r, domain.ActionUnlock)
}

// ListEvents handles GET /events with limit and offset query parameters.
func (h *DeviceHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	events, err := h.devices.ListEvents(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}
	if events == nil {
		events = []*domain.AuditEvent{}
	}
	respondJSON(w, http.StatusOK, events)
}
