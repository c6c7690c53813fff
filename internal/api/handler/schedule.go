package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/service"
)

// ScheduleHandler handles schedule CRUD and lifecycle routes.
type ScheduleHandler struct {
	schedules *service.ScheduleStore
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleStore) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// List handles GET /schedules with optional scope, owner, and enabled
// filters.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.ScheduleListFilter{
		Scope: domain.ScheduleScope(r.URL.Query().Get("scope")),
		Owner: r.URL.Query().Get("owner"),
	}
	if raw := r.URL.Query().Get("enabled"); raw != "" {
		enabled := raw == "true"
		filter.Enabled = &enabled
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedules)
}

// Create handles POST /schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.ScheduleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	schedule, err := h.schedules.Create(r.Context(), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, schedule)
}

// Get handles GET /schedules/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedule)
}

// Update handles PATCH /schedules/{id} with a partial body.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.ScheduleUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	schedule, err := h.schedules.Update(r.Context(), chi.URLParam(r, "id"), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedule)
}

// Delete handles DELETE /schedules/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.schedules.Delete(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// SetEnabled handles PUT /schedules/{id}/enabled.
func (h *ScheduleHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	schedule, err := h.schedules.SetEnabled(r.Context(), chi.URLParam(r, "id"), req.Enabled, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, schedule)
}

// Clone handles POST /schedules/{id}/clone.
func (h *ScheduleHandler) Clone(w http.ResponseWriter, r *http.Request) {
	var req domain.ScheduleCloneRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	schedule, err := h.schedules.CloneToOwner(r.Context(), chi.URLParam(r, "id"), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, schedule)
}

// ResolveTargets handles GET /schedules/{id}/targets, returning the devices
// the schedule would act on right now.
func (h *ScheduleHandler) ResolveTargets(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	devices, err := h.schedules.ResolveTargets(r.Context(), schedule.Targets)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, devices)
}

// ListForOwner handles GET /owners/{key}/schedules.
func (h *ScheduleHandler) ListForOwner(w http.ResponseWriter, r *http.Request) {
	owned, global, err := h.schedules.ListForOwner(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"owner":  owned,
		"global": global,
	})
}

// CopyOwnerSchedules handles POST /owners/{key}/schedules/copy.
func (h *ScheduleHandler) CopyOwnerSchedules(w http.ResponseWriter, r *http.Request) {
	var req domain.OwnerScheduleCopyRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	created, replaced, err := h.schedules.CopyOwnerSchedules(r.Context(), chi.URLParam(r, "key"), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"created":  created,
		"replaced": replaced,
	})
}

// Metadata handles GET /metadata.
func (h *ScheduleHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	meta, err := h.schedules.Metadata(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, meta)
}
