// Package api wires the HTTP surface: routing, middleware, and handlers.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/api/handler"
	"github.com/netcurfew/netcurfew/internal/api/middleware"
	"github.com/netcurfew/netcurfew/internal/service"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(schedules *service.ScheduleStore, devices *service.DeviceService, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ContentType)

		scheduleHandler := handler.NewScheduleHandler(schedules)
		r.Get("/metadata", scheduleHandler.Metadata)

		// Schedules
		r.Get("/schedules", scheduleHandler.List)
		r.Post("/schedules", scheduleHandler.Create)
		r.Get("/schedules/{id}", scheduleHandler.Get)
		r.Patch("/schedules/{id}", scheduleHandler.Update)
		r.Delete("/schedules/{id}", scheduleHandler.Delete)
		r.Put("/schedules/{id}/enabled", scheduleHandler.SetEnabled)
		r.Post("/schedules/{id}/clone", scheduleHandler.Clone)
		r.Get("/schedules/{id}/targets", scheduleHandler.ResolveTargets)

		// Schedule groups
		groupHandler := handler.NewGroupHandler(schedules)
		r.Get("/groups", groupHandler.List)
		r.Post("/groups", groupHandler.Create)
		r.Get("/groups/{id}", groupHandler.Get)
		r.Patch("/groups/{id}", groupHandler.Update)
		r.Delete("/groups/{id}", groupHandler.Delete)
		r.Post("/groups/{id}/activate", groupHandler.Activate)
		r.Post("/groups/{id}/deactivate", groupHandler.Deactivate)

		// Devices and manual actions
		deviceHandler := handler.NewDeviceHandler(devices)
		r.Get("/devices", deviceHandler.List)
		r.Post("/devices/lock", deviceHandler.Lock)
		r.Post("/devices/unlock", deviceHandler.Unlock)
		r.Get("/devices/{mac}", deviceHandler.Get)

		// Owners
		r.Get("/owners", deviceHandler.ListOwners)
		r.Get("/owners/{key}/schedules", scheduleHandler.ListForOwner)
		r.Post("/owners/{key}/schedules/copy", scheduleHandler.CopyOwnerSchedules)
		r.Post("/owners/{key}/lock", deviceHandler.LockOwner)
		r.Post("/owners/{key}/unlock", deviceHandler.UnlockOwner)

		r.Get("/events", deviceHandler.ListEvents)
	})

	return r
}
