package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/netcurfew/netcurfew/internal/domain"
	"github.com/netcurfew/netcurfew/internal/storage"
	"github.com/netcurfew/netcurfew/internal/unifi"
	"github.com/netcurfew/netcurfew/internal/validation"
)

// DeviceService answers inventory queries and applies manual lock actions
// outside the scheduler.
type DeviceService struct {
	store   storage.Storage
	gateway unifi.ActionClient
	log     zerolog.Logger
}

// NewDeviceService creates a new DeviceService.
func NewDeviceService(store storage.Storage, gateway unifi.ActionClient, log zerolog.Logger) *DeviceService {
	return &DeviceService{
		store:   store,
		gateway: gateway,
		log:     log.With().Str("component", "device_service").Logger(),
	}
}

// ListDevices returns the device inventory.
func (d *DeviceService) ListDevices(ctx context.Context) ([]*domain.Device, error) {
	return d.store.ListDevices(ctx)
}

// GetDevice returns one inventory device by MAC.
func (d *DeviceService) GetDevice(ctx context.Context, mac string) (*domain.Device, error) {
	return d.store.GetDeviceByMAC(ctx, validation.NormalizeMAC(mac))
}

// ListOwners returns all registered owners.
func (d *DeviceService) ListOwners(ctx context.Context) ([]*domain.Owner, error) {
	return d.store.ListOwners(ctx)
}

// ApplyToMACs locks or unlocks the given MAC addresses immediately. Unknown
// MACs are treated as unregistered clients and still acted on.
func (d *DeviceService) ApplyToMACs(ctx context.Context, action domain.ScheduleAction, macs []string, actor string) ([]domain.ActionResult, error) {
	if len(macs) == 0 {
		return nil, fmt.Errorf("%w: no devices given", domain.ErrInvalidInput)
	}
	devices := make([]*domain.Device, 0, len(macs))
	for _, raw := range macs {
		if err := validation.ValidateMAC(raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, raw, err)
		}
		mac := validation.NormalizeMAC(raw)
		device, err := d.store.GetDeviceByMAC(ctx, mac)
		if err == domain.ErrNotFound {
			device = &domain.Device{
				Name:  mac,
				MAC:   mac,
				Type:  domain.UnknownDeviceType,
				Owner: domain.UnregisteredOwner,
			}
		} else if err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	return d.apply(ctx, action, devices, actor, "manual device action")
}

// ApplyToOwner locks or unlocks every device registered to the owner.
func (d *DeviceService) ApplyToOwner(ctx context.Context, action domain.ScheduleAction, ownerKey, actor string) ([]domain.ActionResult, error) {
	if _, err := d.store.GetOwner(ctx, ownerKey); err == domain.ErrNotFound {
		return nil, fmt.Errorf("%w: %s", domain.ErrOwnerNotFound, ownerKey)
	} else if err != nil {
		return nil, err
	}
	all, err := d.store.ListDevices(ctx)
	if err != nil {
		return nil, err
	}
	var devices []*domain.Device
	for _, device := range all {
		if device.Owner == ownerKey {
			devices = append(devices, device)
		}
	}
	if len(devices) == 0 {
		return []domain.ActionResult{}, nil
	}
	return d.apply(ctx, action, devices, actor, "manual owner action")
}

func (d *DeviceService) apply(ctx context.Context, action domain.ScheduleAction, devices []*domain.Device, actor, reason string) ([]domain.ActionResult, error) {
	results, err := d.gateway.Apply(ctx, action, devices, actor, reason)
	if err != nil {
		return nil, err
	}
	macs := make([]string, 0, len(devices))
	for _, device := range devices {
		macs = append(macs, device.MAC)
	}
	if err := d.store.AppendEvent(ctx, &domain.AuditEvent{
		Timestamp:   time.Now().UTC(),
		Action:      "manual." + string(action),
		Actor:       actor,
		SubjectType: "devices",
		Reason:      reason,
		Metadata:    map[string]any{"macs": macs},
	}); err != nil {
		d.log.Error().Err(err).Msg("recording manual action event")
	}
	return results, nil
}

// ListEvents returns recent audit events, newest first.
func (d *DeviceService) ListEvents(ctx context.Context, limit, offset int) ([]*domain.AuditEvent, error) {
	return d.store.ListEvents(ctx, limit, offset)
}
