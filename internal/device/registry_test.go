package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// MockRepository is a test implementation of Repository.
type MockRepository struct {
	mu      sync.Mutex
	devices map[string]*Device
	alarms  map[string][]Alarm
	// For testing error paths
	createErr       error
	updateErr       error
	deleteErr       error
	updateStateErr  error
	updateHealthErr error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		devices: make(map[string]*Device),
		alarms:  make(map[string][]Alarm),
	}
}

func (m *MockRepository) GetByID(_ context.Context, id string) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.devices[id]; ok {
		return d.DeepCopy(), nil
	}
	return nil, ErrDeviceNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	devices := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, *d.DeepCopy())
	}
	return devices, nil
}

func (m *MockRepository) Create(_ context.Context, device *Device) error {
	if m.createErr != nil {
		return m.createErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[device.ID]; exists {
		return ErrDeviceExists
	}

	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	m.devices[device.ID] = device.DeepCopy()
	return nil
}

func (m *MockRepository) Update(_ context.Context, device *Device) error {
	if m.updateErr != nil {
		return m.updateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[device.ID]; !exists {
		return ErrDeviceNotFound
	}

	device.UpdatedAt = time.Now().UTC()
	m.devices[device.ID] = device.DeepCopy()
	return nil
}

func (m *MockRepository) Delete(_ context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.devices[id]; !exists {
		return ErrDeviceNotFound
	}
	delete(m.devices, id)
	return nil
}

func (m *MockRepository) UpdateState(_ context.Context, id string, state State) error {
	if m.updateStateErr != nil {
		return m.updateStateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}

	if d.State == nil {
		d.State = make(State, len(state))
	}
	for k, v := range state {
		d.State[k] = v
	}
	now := time.Now().UTC()
	d.StateUpdatedAt = &now
	return nil
}

func (m *MockRepository) UpdateHealth(_ context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	if m.updateHealthErr != nil {
		return m.updateHealthErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.devices[id]
	if !ok {
		return ErrDeviceNotFound
	}

	d.HealthStatus = status
	d.HealthLastSeen = &lastSeen
	return nil
}

func (m *MockRepository) RecordAlarm(_ context.Context, alarm *Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alarm.ID == "" {
		alarm.ID = "mock-alarm"
	}
	m.alarms[alarm.DeviceID] = append(m.alarms[alarm.DeviceID], *alarm)
	return nil
}

func (m *MockRepository) ListAlarms(_ context.Context, deviceID string, limit int) ([]Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alarms := m.alarms[deviceID]
	if limit > 0 && len(alarms) > limit {
		alarms = alarms[:limit]
	}
	out := make([]Alarm, len(alarms))
	copy(out, alarms)
	return out, nil
}

func TestRegistry_UpsertDevice_Creates(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	dev := &Device{ID: "MODULE_B1", Name: "Basement Boiler", BoilerType: BoilerTypePellet}
	if err := registry.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	got, err := registry.GetDevice(ctx, "MODULE_B1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "Basement Boiler" {
		t.Errorf("Name = %q, want %q", got.Name, "Basement Boiler")
	}

	if registry.GetDeviceCount() != 1 {
		t.Errorf("GetDeviceCount() = %d, want 1", registry.GetDeviceCount())
	}
}

func TestRegistry_UpsertDevice_PreservesStateAndHealth(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	dev := &Device{ID: "MODULE_B1", Name: "Basement Boiler"}
	if err := registry.UpsertDevice(ctx, dev); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	if err := registry.SetDeviceState(ctx, "MODULE_B1", State{"boiler_temperature": 61.5}); err != nil {
		t.Fatalf("SetDeviceState() error = %v", err)
	}
	if err := registry.SetDeviceHealth(ctx, "MODULE_B1", HealthStatusOnline); err != nil {
		t.Fatalf("SetDeviceHealth() error = %v", err)
	}

	// A later cloud snapshot carries no state; the stored state must survive
	update := &Device{ID: "MODULE_B1", Name: "Renamed Boiler"}
	if err := registry.UpsertDevice(ctx, update); err != nil {
		t.Fatalf("UpsertDevice() update error = %v", err)
	}

	got, err := registry.GetDevice(ctx, "MODULE_B1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "Renamed Boiler" {
		t.Errorf("Name = %q, want %q", got.Name, "Renamed Boiler")
	}
	if temp, ok := got.State["boiler_temperature"].(float64); !ok || temp != 61.5 {
		t.Errorf("State[boiler_temperature] = %v, want 61.5 (preserved)", got.State["boiler_temperature"])
	}
	if got.HealthStatus != HealthStatusOnline {
		t.Errorf("HealthStatus = %q, want %q (preserved)", got.HealthStatus, HealthStatusOnline)
	}
}

func TestRegistry_UpsertDevice_EmptyID(t *testing.T) {
	registry := NewRegistry(NewMockRepository())

	err := registry.UpsertDevice(context.Background(), &Device{Name: "No ID"})
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("UpsertDevice() error = %v, want ErrInvalidID", err)
	}
}

func TestRegistry_GetDevice_CacheAndFallback(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	// Device exists only in the repository (not yet cached)
	repo.devices["MODULE_B1"] = &Device{ID: "MODULE_B1", Name: "Basement Boiler"}

	got, err := registry.GetDevice(ctx, "MODULE_B1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}
	if got.Name != "Basement Boiler" {
		t.Errorf("Name = %q, want %q", got.Name, "Basement Boiler")
	}

	// Now cached
	if registry.GetDeviceCount() != 1 {
		t.Errorf("GetDeviceCount() = %d, want 1 after fallback caching", registry.GetDeviceCount())
	}

	// Mutating the returned copy must not affect the cache
	got.Name = "Mutated"
	again, _ := registry.GetDevice(ctx, "MODULE_B1")
	if again.Name != "Basement Boiler" {
		t.Errorf("cache was mutated through returned copy: Name = %q", again.Name)
	}
}

func TestRegistry_GetDevice_NotFound(t *testing.T) {
	registry := NewRegistry(NewMockRepository())

	_, err := registry.GetDevice(context.Background(), "missing")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestRegistry_RefreshCache(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	repo.devices["MODULE_B1"] = &Device{ID: "MODULE_B1", Name: "One"}
	repo.devices["MODULE_B2"] = &Device{ID: "MODULE_B2", Name: "Two"}

	if err := registry.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}

	if registry.GetDeviceCount() != 2 {
		t.Errorf("GetDeviceCount() = %d, want 2", registry.GetDeviceCount())
	}

	devices, err := registry.ListDevices(ctx)
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 {
		t.Errorf("ListDevices() returned %d devices, want 2", len(devices))
	}
}

func TestRegistry_DeleteDevice(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if err := registry.UpsertDevice(ctx, &Device{ID: "MODULE_B1", Name: "One"}); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	if err := registry.DeleteDevice(ctx, "MODULE_B1"); err != nil {
		t.Fatalf("DeleteDevice() error = %v", err)
	}

	if registry.GetDeviceCount() != 0 {
		t.Errorf("GetDeviceCount() = %d, want 0 after delete", registry.GetDeviceCount())
	}
}

func TestRegistry_SetDeviceState_UpdatesCache(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	if err := registry.UpsertDevice(ctx, &Device{
		ID:    "MODULE_B1",
		Name:  "Basement Boiler",
		State: State{"feeder_operates": true},
	}); err != nil {
		t.Fatalf("UpsertDevice() error = %v", err)
	}

	if err := registry.SetDeviceState(ctx, "MODULE_B1", State{"boiler_temperature": 64.0}); err != nil {
		t.Fatalf("SetDeviceState() error = %v", err)
	}

	got, err := registry.GetDevice(ctx, "MODULE_B1")
	if err != nil {
		t.Fatalf("GetDevice() error = %v", err)
	}

	if temp, ok := got.State["boiler_temperature"].(float64); !ok || temp != 64.0 {
		t.Errorf("State[boiler_temperature] = %v, want 64.0", got.State["boiler_temperature"])
	}
	if operates, ok := got.State["feeder_operates"].(bool); !ok || !operates {
		t.Errorf("State[feeder_operates] = %v, want true (merged)", got.State["feeder_operates"])
	}
	if got.StateUpdatedAt == nil {
		t.Error("StateUpdatedAt should be set")
	}
}

func TestRegistry_SetDeviceHealth_ErrorPath(t *testing.T) {
	repo := NewMockRepository()
	repo.updateHealthErr = errors.New("disk full")
	registry := NewRegistry(repo)

	err := registry.SetDeviceHealth(context.Background(), "MODULE_B1", HealthStatusOffline)
	if err == nil {
		t.Error("SetDeviceHealth() expected error, got nil")
	}
}

func TestRegistry_Alarms(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	alarm := &Alarm{DeviceID: "MODULE_B1", Code: 4, Message: "no fuel", Active: true}
	if err := registry.RecordAlarm(ctx, alarm); err != nil {
		t.Fatalf("RecordAlarm() error = %v", err)
	}

	alarms, err := registry.ListAlarms(ctx, "MODULE_B1", 10)
	if err != nil {
		t.Fatalf("ListAlarms() error = %v", err)
	}
	if len(alarms) != 1 {
		t.Fatalf("ListAlarms() returned %d alarms, want 1", len(alarms))
	}
	if alarms[0].Code != 4 || alarms[0].Message != "no fuel" {
		t.Errorf("ListAlarms()[0] = %+v, want code 4, message %q", alarms[0], "no fuel")
	}
}

func TestRegistry_GetDevicesByHealthStatus(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	for _, dev := range []*Device{
		{ID: "MODULE_B1", Name: "One", HealthStatus: HealthStatusOnline},
		{ID: "MODULE_B2", Name: "Two", HealthStatus: HealthStatusOffline},
		{ID: "MODULE_B3", Name: "Three", HealthStatus: HealthStatusOnline},
	} {
		if err := registry.UpsertDevice(ctx, dev); err != nil {
			t.Fatalf("UpsertDevice(%s) error = %v", dev.ID, err)
		}
	}

	online, err := registry.GetDevicesByHealthStatus(ctx, HealthStatusOnline)
	if err != nil {
		t.Fatalf("GetDevicesByHealthStatus() error = %v", err)
	}
	if len(online) != 2 {
		t.Errorf("GetDevicesByHealthStatus(online) returned %d, want 2", len(online))
	}
}

func TestRegistry_GetStats(t *testing.T) {
	repo := NewMockRepository()
	registry := NewRegistry(repo)
	ctx := context.Background()

	for _, dev := range []*Device{
		{ID: "MODULE_B1", BoilerType: BoilerTypePellet, HealthStatus: HealthStatusOnline},
		{ID: "MODULE_B2", BoilerType: BoilerTypePellet, HealthStatus: HealthStatusOffline},
		{ID: "MODULE_B3", BoilerType: BoilerTypeFeeder, HealthStatus: HealthStatusOnline},
	} {
		if err := registry.UpsertDevice(ctx, dev); err != nil {
			t.Fatalf("UpsertDevice(%s) error = %v", dev.ID, err)
		}
	}

	stats := registry.GetStats()
	if stats.TotalDevices != 3 {
		t.Errorf("TotalDevices = %d, want 3", stats.TotalDevices)
	}
	if stats.ByBoilerType[BoilerTypePellet] != 2 {
		t.Errorf("ByBoilerType[pellet] = %d, want 2", stats.ByBoilerType[BoilerTypePellet])
	}
	if stats.ByHealthStatus[HealthStatusOnline] != 2 {
		t.Errorf("ByHealthStatus[online] = %d, want 2", stats.ByHealthStatus[HealthStatusOnline])
	}
}

func TestDevice_DeepCopy(t *testing.T) {
	shared := "neighbour@example.com"
	now := time.Now().UTC()
	orig := &Device{
		ID:         "MODULE_B1",
		Name:       "Basement Boiler",
		SharedFrom: &shared,
		State: State{
			"boiler_temperature": 61.5,
			"nested":             map[string]any{"a": 1},
		},
		StateUpdatedAt: &now,
	}

	cpy := orig.DeepCopy()

	cpy.State["boiler_temperature"] = 99.0
	if nested, ok := cpy.State["nested"].(map[string]any); ok {
		nested["a"] = 2
	}

	if orig.State["boiler_temperature"] != 61.5 {
		t.Error("DeepCopy did not isolate top-level state")
	}
	if nested := orig.State["nested"].(map[string]any); nested["a"] != 1 {
		t.Error("DeepCopy did not isolate nested maps")
	}

	var nilDevice *Device
	if nilDevice.DeepCopy() != nil {
		t.Error("DeepCopy of nil should return nil")
	}
}
