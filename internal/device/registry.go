package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache
	logger  Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Device),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// UpsertDevice creates or updates a device from a cloud snapshot.
// Cloud metadata (name, account, producer, boiler type) replaces the
// stored values; state and health are left to SetDeviceState and
// SetDeviceHealth, which the poll loop calls separately.
func (r *Registry) UpsertDevice(ctx context.Context, device *Device) error {
	if device.ID == "" {
		return ErrInvalidID
	}

	existing, err := r.repo.GetByID(ctx, device.ID)
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		if err := r.repo.Create(ctx, device); err != nil {
			return err
		}
		r.logger.Info("device registered", "id", device.ID, "name", device.Name)

	case err != nil:
		return err

	default:
		// Preserve state/health fields owned by the poll loop
		device.State = existing.State
		device.StateUpdatedAt = existing.StateUpdatedAt
		device.HealthStatus = existing.HealthStatus
		device.HealthLastSeen = existing.HealthLastSeen
		device.CreatedAt = existing.CreatedAt

		if err := r.repo.Update(ctx, device); err != nil {
			return err
		}
		r.logger.Debug("device metadata updated", "id", device.ID)
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	return nil
}

// SetDeviceState merges state fields into the device's state.
// This is optimised for frequent updates from the poll loop.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State) error {
	if err := r.repo.UpdateState(ctx, id, state); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Create a deep copy with merged state (atomic replacement)
		updated := cached.DeepCopy()
		if updated.State == nil {
			updated.State = make(State, len(state))
		}
		for k, v := range state {
			updated.State[k] = deepCopyValue(v)
		}
		now := time.Now().UTC()
		updated.StateUpdatedAt = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)
	return nil
}

// SetDeviceHealth updates the health status of a device.
func (r *Registry) SetDeviceHealth(ctx context.Context, id string, status HealthStatus) error {
	now := time.Now().UTC()
	if err := r.repo.UpdateHealth(ctx, id, status, now); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Create a deep copy with updated health (atomic replacement)
		updated := cached.DeepCopy()
		updated.HealthStatus = status
		updated.HealthLastSeen = &now
		r.cache[id] = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device health updated", "id", id, "status", status)
	return nil
}

// RecordAlarm appends an alarm occurrence for a device.
func (r *Registry) RecordAlarm(ctx context.Context, alarm *Alarm) error {
	if err := r.repo.RecordAlarm(ctx, alarm); err != nil {
		return err
	}

	r.logger.Info("alarm recorded",
		"device_id", alarm.DeviceID,
		"code", alarm.Code,
		"active", alarm.Active,
	)
	return nil
}

// ListAlarms retrieves the most recent alarms for a device, newest first.
func (r *Registry) ListAlarms(ctx context.Context, deviceID string, limit int) ([]Alarm, error) {
	return r.repo.ListAlarms(ctx, deviceID, limit)
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// GetDevicesByHealthStatus retrieves all devices with a specific health status.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByHealthStatus(_ context.Context, status HealthStatus) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if d.HealthStatus == status {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices   int
	ByBoilerType   map[BoilerType]int
	ByHealthStatus map[HealthStatus]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices:   len(r.cache),
		ByBoilerType:   make(map[BoilerType]int),
		ByHealthStatus: make(map[HealthStatus]int),
	}

	for _, d := range r.cache {
		stats.ByBoilerType[d.BoilerType]++
		stats.ByHealthStatus[d.HealthStatus]++
	}

	return stats
}
