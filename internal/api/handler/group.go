package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/service"
)

// GroupHandler handles schedule group routes.
type GroupHandler struct {
	schedules *service.ScheduleStore
}

// NewGroupHandler creates a new GroupHandler.
func NewGroupHandler(schedules *service.ScheduleStore) *GroupHandler {
	return &GroupHandler{schedules: schedules}
}

// List handles GET /groups with an optional owner filter.
func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("owner") {
		groups, err := h.schedules.ListGroupsForOwner(r.Context(), query.Get("owner"))
		if err != nil {
			handleError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, groups)
		return
	}
	groups, err := h.schedules.ListGroups(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, groups)
}

// Create handles POST /groups.
func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.GroupCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	group, err := h.schedules.CreateGroup(r.Context(), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, group)
}

// Get handles GET /groups/{id}.
func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	group, err := h.schedules.GetGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Update handles PATCH /groups/{id}.
func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req domain.GroupUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, err)
		return
	}
	group, err := h.schedules.UpdateGroup(r.Context(), chi.URLParam(r, "id"), &req, actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Delete handles DELETE /groups/{id}.
func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.schedules.DeleteGroup(r.Context(), chi.URLParam(r, "id"), actor(r)); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Activate handles POST /groups/{id}/activate.
func (h *GroupHandler) Activate(w http.ResponseWriter, r *http.Request) {
	group, err := h.schedules.ActivateGroup(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}

// Deactivate handles POST /groups/{id}/deactivate.
func (h *GroupHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	group, err := h.schedules.DeactivateGroup(r.Context(), chi.URLParam(r, "id"), actor(r))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, group)
}
