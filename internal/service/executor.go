package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/recurrence"
	"github.com/netcurfew/netcurfew/internal/storage"
	"github.com/netcurfew/netcurfew/internal/unifi"
)

// Executor polls schedule state on a fixed interval and applies lock actions
// on activity edges. An action fires at most once per transition: once when a
// schedule becomes active, and once (the end action, when configured) when it
// becomes inactive again.
type Executor struct {
	schedules *ScheduleStore
	store     storage.Storage
	gateway   unifi.ActionClient
	interval  time.Duration
	log       zerolog.Logger

	mu              sync.Mutex
	lastKnownActive map[string]bool

	stop chan struct{}
	done chan struct{}
}

// NewExecutor creates a new Executor.
func NewExecutor(schedules *ScheduleStore, store storage.Storage, gateway unifi.ActionClient, interval time.Duration, log zerolog.Logger) *Executor {
	return &Executor{
		schedules:       schedules,
		store:           store,
		gateway:         gateway,
		interval:        interval,
		log:             log.With().Str("component", "executor").Logger(),
		lastKnownActive: make(map[string]bool),
	}
}

// Start launches the polling loop. Call Stop to shut it down.
func (e *Executor) Start() {
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		e.log.Info().Dur("interval", e.interval).Msg("scheduler started")
		for {
			select {
			case <-e.stop:
				e.log.Info().Msg("scheduler stopped")
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), e.interval)
				if err := e.EvaluateOnce(ctx, time.Now()); err != nil {
					e.log.Error().Err(err).Msg("evaluation pass failed")
				}
				cancel()
			}
		}
	}()
}

// Stop halts the polling loop and waits for the current pass to finish.
func (e *Executor) Stop() {
	if e.stop == nil {
		return
	}
	close(e.stop)
	<-e.done
	e.stop = nil
}

// EvaluateOnce runs a single evaluation pass at the given instant. It is the
// unit the loop repeats and is exported so tests can drive time directly.
// Only enabled schedules are considered; one that was disabled or deleted
// since the last pass drops out of tracking without firing anything.
func (e *Executor) EvaluateOnce(ctx context.Context, now time.Time) error {
	loc := e.location(ctx)

	enabled := true
	schedules, err := e.schedules.List(ctx, domain.ScheduleListFilter{Enabled: &enabled})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current := make(map[string]bool, len(schedules))
	for _, schedule := range schedules {
		active := false
		if recurrence.Supported(schedule.Recurrence.Type) {
			active = recurrence.IsActive(schedule, now, loc)
		} else {
			e.log.Warn().
				Str("schedule", schedule.ID).
				Str("type", string(schedule.Recurrence.Type)).
				Msg("unsupported recurrence type, treating as inactive")
		}
		current[schedule.ID] = active

		was := e.lastKnownActive[schedule.ID]
		switch {
		case active && !was:
			e.fire(ctx, schedule, schedule.Action, "start")
		case !active && was:
			if schedule.EndAction != "" {
				e.fire(ctx, schedule, schedule.EndAction, "end")
			}
		}
	}

	e.lastKnownActive = current
	return nil
}

// location resolves the evaluation timezone from schedule metadata, falling
// back to UTC.
func (e *Executor) location(ctx context.Context) *time.Location {
	meta, err := e.schedules.Metadata(ctx)
	if err != nil {
		e.log.Warn().Err(err).Msg("loading metadata, falling back to UTC")
		return time.UTC
	}
	loc, err := time.LoadLocation(meta.Timezone)
	if err != nil {
		e.log.Warn().Str("timezone", meta.Timezone).Msg("unknown timezone, falling back to UTC")
		return time.UTC
	}
	return loc
}

// fire resolves the schedule's targets and applies the action through the
// gateway. Gateway calls are attributed to the schedule itself, with its
// label as the reason. Failures are logged; a missed edge is not retried.
func (e *Executor) fire(ctx context.Context, schedule *domain.DeviceSchedule, action domain.ScheduleAction, phase string) {
	devices, err := e.schedules.ResolveTargets(ctx, schedule.Targets)
	if err != nil {
		e.log.Error().Err(err).Str("schedule", schedule.ID).Msg("resolving targets")
		return
	}
	if len(devices) == 0 {
		e.log.Warn().Str("schedule", schedule.ID).Msg("schedule has no resolvable targets")
		return
	}

	actor := "schedule:" + schedule.ID
	results, err := e.gateway.Apply(ctx, action, devices, actor, schedule.Label)
	if err != nil {
		e.log.Error().Err(err).
			Str("schedule", schedule.ID).
			Str("action", string(action)).
			Msg("gateway call failed")
		return
	}

	applied, skipped, failed := 0, 0, 0
	for _, result := range results {
		switch result.Status {
		case domain.ActionStatusSuccess:
			applied++
		case domain.ActionStatusSkipped:
			skipped++
		case domain.ActionStatusError:
			failed++
			e.log.Error().
				Str("schedule", schedule.ID).
				Str("mac", result.MAC).
				Str("message", result.Message).
				Msg("device action failed")
		}
	}
	e.log.Info().
		Str("schedule", schedule.ID).
		Str("label", schedule.Label).
		Str("action", string(action)).
		Str("phase", phase).
		Int("applied", applied).
		Int("skipped", skipped).
		Int("failed", failed).
		Msg("schedule action applied")

	if err := e.store.AppendEvent(ctx, &domain.AuditEvent{
		Timestamp:   time.Now().UTC(),
		Action:      "scheduler." + string(action),
		Actor:       actor,
		SubjectType: "schedule",
		SubjectID:   schedule.ID,
		Reason:      schedule.Label,
		Metadata: map[string]any{
			"phase":        phase,
			"action":       string(action),
			"device_count": len(devices),
			"applied":      applied,
			"skipped":      skipped,
			"failed":       failed,
		},
	}); err != nil {
		e.log.Error().Err(err).Msg("recording scheduler event")
	}
}
