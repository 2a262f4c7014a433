package bridge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marpi82/bragerconnect-core/internal/brager"
	"github.com/marpi82/bragerconnect-core/internal/device"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/config"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		QoS:      qos,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

func (m *MockMQTTClient) ClearPublished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}

// FindPublished returns the last publish on a topic, if any.
func (m *MockMQTTClient) FindPublished(topic string) (mockPublish, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.published) - 1; i >= 0; i-- {
		if m.published[i].Topic == topic {
			return m.published[i], true
		}
	}
	return mockPublish{}, false
}

// MockCloudClient implements CloudClient for testing.
type MockCloudClient struct {
	mu        sync.Mutex
	devices   []*brager.Device
	fetchErr  error
	writeErr  error
	writes    []poolWrite
	connected bool
	stats     brager.Stats
}

type poolWrite struct {
	DeviceID string
	Ref      brager.FieldRef
	Value    any
}

func NewMockCloudClient(devices ...*brager.Device) *MockCloudClient {
	return &MockCloudClient{
		devices:   devices,
		connected: true,
	}
}

func (m *MockCloudClient) FetchDevices(ctx context.Context) ([]*brager.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.devices, nil
}

func (m *MockCloudClient) SetPoolField(ctx context.Context, deviceID string, ref brager.FieldRef, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, poolWrite{DeviceID: deviceID, Ref: ref, Value: value})
	return nil
}

func (m *MockCloudClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockCloudClient) Stats() brager.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

func (m *MockCloudClient) SetDevices(devices []*brager.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices = devices
}

func (m *MockCloudClient) SetFetchError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *MockCloudClient) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

func (m *MockCloudClient) GetWrites() []poolWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// MockRegistry implements DeviceRegistry for testing.
type MockRegistry struct {
	mu       sync.Mutex
	upserts  []*device.Device
	states   map[string]device.State
	health   map[string]device.HealthStatus
	alarms   []*device.Alarm
	upsertEr error
}

func NewMockRegistry() *MockRegistry {
	return &MockRegistry{
		states: make(map[string]device.State),
		health: make(map[string]device.HealthStatus),
	}
}

func (m *MockRegistry) UpsertDevice(ctx context.Context, d *device.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertEr != nil {
		return m.upsertEr
	}
	m.upserts = append(m.upserts, d)
	return nil
}

func (m *MockRegistry) SetDeviceState(ctx context.Context, id string, state device.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = state
	return nil
}

func (m *MockRegistry) SetDeviceHealth(ctx context.Context, id string, status device.HealthStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[id] = status
	return nil
}

func (m *MockRegistry) RecordAlarm(ctx context.Context, alarm *device.Alarm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alarms = append(m.alarms, alarm)
	return nil
}

func (m *MockRegistry) GetUpserts() []*device.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upserts
}

func (m *MockRegistry) GetHealth(id string) device.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.health[id]
}

func (m *MockRegistry) GetState(id string) device.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[id]
}

func (m *MockRegistry) GetAlarms() []*device.Alarm {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alarms
}

// MockMetricsWriter implements MetricsWriter for testing.
type MockMetricsWriter struct {
	mu      sync.Mutex
	samples []metricSample
	power   []float64
	fuel    []fuelSample
}

type metricSample struct {
	DeviceID string
	ObjectID string
	Value    float64
}

type fuelSample struct {
	ConsumedKg   float64
	LevelPercent float64
}

func (m *MockMetricsWriter) WriteFieldSample(deviceID, objectID string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, metricSample{deviceID, objectID, value})
}

func (m *MockMetricsWriter) WritePowerMetric(deviceID string, powerKW float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.power = append(m.power, powerKW)
}

func (m *MockMetricsWriter) WriteFuelMetric(deviceID string, consumedKg, levelPercent float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fuel = append(m.fuel, fuelSample{consumedKg, levelPercent})
}

func (m *MockMetricsWriter) GetSamples() []metricSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

func (m *MockMetricsWriter) GetFuel() []fuelSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fuel
}

func (m *MockMetricsWriter) GetPower() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.power
}

// createTestConfig returns a config suitable for bridge tests. The poll
// interval is long so tests drive pollOnce() directly.
func createTestConfig() *config.Config {
	return &config.Config{
		Cloud: config.CloudConfig{
			Host:         "wss://cloud.bragerconnect.com",
			Username:     "marpi82",
			Password:     "secret",
			PollInterval: 3600,
			CallTimeout:  10,
		},
		MQTT: config.MQTTConfig{QoS: 1},
		Discovery: config.DiscoveryConfig{
			Enabled: true,
			Prefix:  "homeassistant",
			Retain:  true,
		},
	}
}

// createTestDevice returns a minimal pellet boiler snapshot.
func createTestDevice(devID string) *brager.Device {
	pool := brager.NewPool()
	pool.Set(4, 0, brager.ChannelStatus, 0)
	pool.Set(4, 0, brager.ChannelValue, 61.5)
	pool.Set(5, 0, brager.ChannelStatus, 1)
	pool.Set(5, 5, brager.ChannelStatus, 1<<8)
	pool.Set(5, 39, brager.ChannelStatus, 1)

	return &brager.Device{
		Info: brager.DeviceInfo{
			DevID:        devID,
			Username:     "marpi82",
			Name:         "Boiler house",
			ProducerCode: 67,
			PermGroupID:  4,
		},
		Pool: pool,
	}
}

func createTestBridge(t *testing.T, opts Options) *Bridge {
	t.Helper()
	b, err := New(opts)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return b
}

func TestNewBridge(t *testing.T) {
	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  NewMockCloudClient(),
		MQTT:   NewMockMQTTClient(),
	})
	if b.health == nil {
		t.Error("New() did not create health reporter")
	}
}

func TestNewBridgeMissingConfig(t *testing.T) {
	_, err := New(Options{
		Cloud: NewMockCloudClient(),
		MQTT:  NewMockMQTTClient(),
	})
	if err == nil {
		t.Error("New() expected error for nil config")
	}
}

func TestNewBridgeMissingCloud(t *testing.T) {
	_, err := New(Options{
		Config: createTestConfig(),
		MQTT:   NewMockMQTTClient(),
	})
	if err == nil {
		t.Error("New() expected error for nil cloud client")
	}
}

func TestNewBridgeMissingMQTT(t *testing.T) {
	_, err := New(Options{
		Config: createTestConfig(),
		Cloud:  NewMockCloudClient(),
	})
	if err == nil {
		t.Error("New() expected error for nil MQTT client")
	}
}

func TestBridgeStartStop(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	subs := mqtt.GetSubscriptions()
	if len(subs) != 1 {
		t.Fatalf("Expected 1 subscription, got %d", len(subs))
	}
	if subs[0].Topic != "bragerconnect/set/+/+" {
		t.Errorf("Subscription topic = %q, want bragerconnect/set/+/+", subs[0].Topic)
	}

	// The initial poll runs on the bridge goroutine
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B1"); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected availability to be published on first poll")
		}
		time.Sleep(10 * time.Millisecond)
	}

	b.Stop()
	// Calling Stop again should be safe (sync.Once)
	b.Stop()
}

func TestBridgePollPublishesState(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()

	p, ok := mqtt.FindPublished("bragerconnect/state/MODULE_B1/boiler_temperature")
	if !ok {
		t.Fatal("Expected boiler_temperature state to be published")
	}
	if string(p.Payload) != "61.5" {
		t.Errorf("State payload = %q, want 61.5", p.Payload)
	}
	if !p.Retained {
		t.Error("State publish should be retained")
	}

	p, ok = mqtt.FindPublished("bragerconnect/availability/MODULE_B1")
	if !ok {
		t.Fatal("Expected availability to be published")
	}
	if string(p.Payload) != "online" {
		t.Errorf("Availability payload = %q, want online", p.Payload)
	}
}

func TestBridgePollPublishesDiscovery(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()

	p, ok := mqtt.FindPublished("homeassistant/sensor/MODULE_B1/boiler_temperature/config")
	if !ok {
		t.Fatal("Expected discovery config to be published")
	}
	var doc map[string]any
	if err := json.Unmarshal(p.Payload, &doc); err != nil {
		t.Fatalf("Failed to unmarshal discovery payload: %v", err)
	}
	if doc["state_topic"] != "bragerconnect/state/MODULE_B1/boiler_temperature" {
		t.Errorf("state_topic = %v", doc["state_topic"])
	}

	// Second poll with identical catalogue must not re-announce
	mqtt.ClearPublished()
	b.pollOnce()
	if _, ok := mqtt.FindPublished("homeassistant/sensor/MODULE_B1/boiler_temperature/config"); ok {
		t.Error("Discovery should not be republished for unchanged catalogue")
	}
}

func TestBridgeDiscoveryDisabled(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))
	cfg := createTestConfig()
	cfg.Discovery.Enabled = false

	b := createTestBridge(t, Options{
		Config: cfg,
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()

	for _, p := range mqtt.GetPublished() {
		if strings.HasPrefix(p.Topic, "homeassistant/") {
			t.Fatalf("Discovery publish to %s despite discovery disabled", p.Topic)
		}
	}
}

func TestBridgeStateChangeDetection(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	cloud := NewMockCloudClient(dev)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()
	mqtt.ClearPublished()

	// Same snapshot, no state should republish
	b.pollOnce()
	if _, ok := mqtt.FindPublished("bragerconnect/state/MODULE_B1/boiler_temperature"); ok {
		t.Error("Expected no publish for unchanged state")
	}

	// Changed value republishes
	dev.Pool.Set(4, 0, brager.ChannelValue, 62.0)
	b.pollOnce()
	p, ok := mqtt.FindPublished("bragerconnect/state/MODULE_B1/boiler_temperature")
	if !ok {
		t.Fatal("Expected publish for changed state")
	}
	if string(p.Payload) != "62.0" {
		t.Errorf("State payload = %q, want 62.0", p.Payload)
	}
}

func TestBridgeDeviceFilter(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(
		createTestDevice("MODULE_B1"),
		createTestDevice("MODULE_B2"),
	)
	cfg := createTestConfig()
	cfg.Cloud.DeviceIDs = []string{"MODULE_B1"}

	b := createTestBridge(t, Options{
		Config: cfg,
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()

	if _, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B1"); !ok {
		t.Error("Expected MODULE_B1 to be polled")
	}
	if _, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B2"); ok {
		t.Error("MODULE_B2 should be filtered out")
	}
}

func TestBridgeFailedPollMarksOffline(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))
	reg := NewMockRegistry()

	b := createTestBridge(t, Options{
		Config:   createTestConfig(),
		Cloud:    cloud,
		MQTT:     mqtt,
		Registry: reg,
	})

	b.pollOnce()
	mqtt.ClearPublished()

	cloud.SetFetchError(errors.New("connection lost"))
	b.pollOnce()

	p, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B1")
	if !ok {
		t.Fatal("Expected availability to be published after failed poll")
	}
	if string(p.Payload) != "offline" {
		t.Errorf("Availability payload = %q, want offline", p.Payload)
	}
	if reg.GetHealth("MODULE_B1") != device.HealthStatusOffline {
		t.Error("Expected registry health offline after failed poll")
	}
}

func TestBridgePollBackoff(t *testing.T) {
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   NewMockMQTTClient(),
	})

	if err := b.pollOnce(); err != nil {
		t.Fatalf("pollOnce() error: %v", err)
	}

	cloud.SetFetchError(errors.New("connection lost"))
	if err := b.pollOnce(); err == nil {
		t.Fatal("pollOnce() should report fetch failure")
	}

	interval := b.cfg.GetPollInterval()
	delay := b.nextPollDelay(interval)
	if delay <= interval {
		t.Errorf("Delay after failure = %v, want > %v", delay, interval)
	}

	// Repeated failures stay within the cap
	for i := 0; i < 20; i++ {
		delay = b.nextPollDelay(delay)
	}
	if delay != maxPollBackoff {
		t.Errorf("Capped delay = %v, want %v", delay, maxPollBackoff)
	}

	cloud.SetFetchError(nil)
	if err := b.pollOnce(); err != nil {
		t.Errorf("pollOnce() after recovery error: %v", err)
	}
}

func TestBridgeDeviceDisappears(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(
		createTestDevice("MODULE_B1"),
		createTestDevice("MODULE_B2"),
	)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()
	mqtt.ClearPublished()

	cloud.SetDevices([]*brager.Device{createTestDevice("MODULE_B1")})
	b.pollOnce()

	p, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B2")
	if !ok {
		t.Fatal("Expected offline availability for vanished device")
	}
	if string(p.Payload) != "offline" {
		t.Errorf("Availability payload = %q, want offline", p.Payload)
	}

	// Discovery configs retract with empty retained payloads
	p, ok = mqtt.FindPublished("homeassistant/sensor/MODULE_B2/boiler_temperature/config")
	if !ok {
		t.Fatal("Expected discovery retraction for vanished device")
	}
	if len(p.Payload) != 0 {
		t.Errorf("Retraction payload = %q, want empty", p.Payload)
	}
	if !p.Retained {
		t.Error("Retraction must be retained")
	}
}

func TestBridgeRegistryPersistence(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))
	reg := NewMockRegistry()

	b := createTestBridge(t, Options{
		Config:   createTestConfig(),
		Cloud:    cloud,
		MQTT:     mqtt,
		Registry: reg,
	})

	b.pollOnce()

	upserts := reg.GetUpserts()
	if len(upserts) != 1 {
		t.Fatalf("Expected 1 upsert, got %d", len(upserts))
	}
	rec := upserts[0]
	if rec.ID != "MODULE_B1" {
		t.Errorf("ID = %q, want MODULE_B1", rec.ID)
	}
	if rec.Name != "Boiler house" {
		t.Errorf("Name = %q, want Boiler house", rec.Name)
	}
	if rec.BoilerType != device.BoilerTypePellet {
		t.Errorf("BoilerType = %q, want %q", rec.BoilerType, device.BoilerTypePellet)
	}

	state := reg.GetState("MODULE_B1")
	if state == nil {
		t.Fatal("Expected device state to be stored")
	}
	if got, ok := state["boiler_temperature"].(float64); !ok || got != 61.5 {
		t.Errorf("State[boiler_temperature] = %v, want 61.5", state["boiler_temperature"])
	}
	if reg.GetHealth("MODULE_B1") != device.HealthStatusOnline {
		t.Error("Expected registry health online")
	}
}

func TestBridgeAlarmTransitions(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	cloud := NewMockCloudClient(dev)
	reg := NewMockRegistry()

	b := createTestBridge(t, Options{
		Config:   createTestConfig(),
		Cloud:    cloud,
		MQTT:     mqtt,
		Registry: reg,
	})

	b.pollOnce()
	if len(reg.GetAlarms()) != 0 {
		t.Fatalf("Expected no alarm records, got %d", len(reg.GetAlarms()))
	}

	// Alarm raises
	dev.Alarms = []brager.Alarm{{Name: "ERROR_BRAK_PALIWA", Raised: true}}
	b.pollOnce()

	alarms := reg.GetAlarms()
	if len(alarms) != 1 {
		t.Fatalf("Expected 1 alarm record, got %d", len(alarms))
	}
	if alarms[0].Message != "ERROR_BRAK_PALIWA" || !alarms[0].Active {
		t.Errorf("Alarm record = %+v, want active ERROR_BRAK_PALIWA", alarms[0])
	}

	p, ok := mqtt.FindPublished("bragerconnect/alarm/MODULE_B1")
	if !ok {
		t.Fatal("Expected alarm message to be published")
	}
	var msg AlarmMessage
	if err := json.Unmarshal(p.Payload, &msg); err != nil {
		t.Fatalf("Failed to unmarshal alarm message: %v", err)
	}
	if len(msg.Active) != 1 || msg.Active[0] != "ERROR_BRAK_PALIWA" {
		t.Errorf("Active alarms = %v, want [ERROR_BRAK_PALIWA]", msg.Active)
	}

	// Same alarm again, no new record
	b.pollOnce()
	if len(reg.GetAlarms()) != 1 {
		t.Errorf("Expected no duplicate record, got %d", len(reg.GetAlarms()))
	}

	// Alarm clears
	dev.Alarms = []brager.Alarm{{Name: "ERROR_BRAK_PALIWA", Raised: false}}
	b.pollOnce()

	alarms = reg.GetAlarms()
	if len(alarms) != 2 {
		t.Fatalf("Expected 2 alarm records, got %d", len(alarms))
	}
	if alarms[1].Active {
		t.Error("Expected clearing record to be inactive")
	}
}

// TestBridgeFirstPollRecordsRaisedAlarm runs against a real SQLite
// registry with foreign keys enforced. The alarm insert references the
// device row, so the device must be upserted within the same poll
// before its transitions are recorded.
func TestBridgeFirstPollRecordsRaisedAlarm(t *testing.T) {
	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	// In-memory SQLite is per connection; keep the pool on one.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE devices (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			username TEXT NOT NULL DEFAULT '',
			shared_from TEXT,
			producer_code INTEGER NOT NULL DEFAULT 0,
			permission_group INTEGER NOT NULL DEFAULT 0,
			alert INTEGER NOT NULL DEFAULT 0,
			boiler_type TEXT NOT NULL DEFAULT 'unknown',
			state TEXT NOT NULL DEFAULT '{}',
			state_updated_at TEXT,
			health_status TEXT NOT NULL DEFAULT 'unknown',
			health_last_seen TEXT,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
			updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE TABLE device_alarms (
			id TEXT PRIMARY KEY,
			device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
			code INTEGER NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			active INTEGER NOT NULL DEFAULT 1,
			occurred_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
	`
	if _, execErr := db.Exec(schema); execErr != nil {
		t.Fatalf("failed to create test schema: %v", execErr)
	}

	reg := device.NewRegistry(device.NewSQLiteRepository(db))
	if err := reg.RefreshCache(context.Background()); err != nil {
		t.Fatalf("RefreshCache: %v", err)
	}

	dev := createTestDevice("MODULE_B1")
	dev.Alarms = []brager.Alarm{{Name: "ERROR_BRAK_PALIWA", Raised: true}}

	b := createTestBridge(t, Options{
		Config:   createTestConfig(),
		Cloud:    NewMockCloudClient(dev),
		MQTT:     NewMockMQTTClient(),
		Registry: reg,
	})

	b.pollOnce()
	b.pollOnce()

	alarms, err := reg.ListAlarms(context.Background(), "MODULE_B1", 10)
	if err != nil {
		t.Fatalf("ListAlarms() error: %v", err)
	}
	if len(alarms) != 1 {
		t.Fatalf("Expected 1 alarm record after first poll, got %d", len(alarms))
	}
	if !alarms[0].Active || alarms[0].Message != "ERROR_BRAK_PALIWA" {
		t.Errorf("Alarm record = %+v, want active ERROR_BRAK_PALIWA", alarms[0])
	}
}

func TestBridgeTelemetry(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	// Burner block with power and fuel counters
	dev.Pool.Set(4, 14, brager.ChannelStatus, 0)
	dev.Pool.Set(4, 14, brager.ChannelValue, 155)
	dev.Pool.Set(4, 61, brager.ChannelStatus, 0)
	dev.Pool.Set(4, 61, brager.ChannelValue, 1234)
	dev.Pool.Set(4, 62, brager.ChannelValue, 0)
	dev.Pool.Set(5, 10, brager.ChannelStatus, 0)
	dev.Pool.Set(6, 34, brager.ChannelValue, 62)
	cloud := NewMockCloudClient(dev)
	metrics := &MockMetricsWriter{}

	b := createTestBridge(t, Options{
		Config:  createTestConfig(),
		Cloud:   cloud,
		MQTT:    mqtt,
		Metrics: metrics,
	})

	b.pollOnce()

	found := false
	for _, s := range metrics.GetSamples() {
		if s.ObjectID == "boiler_temperature" && s.Value == 61.5 {
			found = true
		}
		if s.ObjectID == "fuel_level" {
			t.Error("fuel_level must go through the fuel metric, not field samples")
		}
	}
	if !found {
		t.Error("Expected boiler_temperature field sample")
	}

	power := metrics.GetPower()
	if len(power) != 1 || power[0] != 15.5 {
		t.Errorf("Power samples = %v, want [15.5]", power)
	}

	fuel := metrics.GetFuel()
	if len(fuel) != 1 {
		t.Fatalf("Expected 1 fuel sample, got %d", len(fuel))
	}
	if fuel[0].ConsumedKg != 1234 {
		t.Errorf("ConsumedKg = %v, want 1234", fuel[0].ConsumedKg)
	}
	if fuel[0].LevelPercent != 62 {
		t.Errorf("LevelPercent = %v, want 62", fuel[0].LevelPercent)
	}
}

func TestBridgeCommandAccepted(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	dev.Pool.Set(6, 0, brager.ChannelStatus, 1<<4) // remote switchable
	dev.Pool.Set(6, 0, brager.ChannelValue, 0)
	cloud := NewMockCloudClient(dev)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()
	mqtt.ClearPublished()

	b.handleCommand("bragerconnect/set/MODULE_B1/boiler_active", []byte("ON"))

	writes := cloud.GetWrites()
	if len(writes) != 1 {
		t.Fatalf("Expected 1 cloud write, got %d", len(writes))
	}
	want := brager.FieldRef{Pool: 6, Channel: brager.ChannelValue, Field: 0}
	if writes[0].Ref != want {
		t.Errorf("Write ref = %+v, want %+v", writes[0].Ref, want)
	}
	if writes[0].Value != 1 {
		t.Errorf("Write value = %v, want 1", writes[0].Value)
	}

	p, ok := mqtt.FindPublished("bragerconnect/ack/MODULE_B1/boiler_active")
	if !ok {
		t.Fatal("Expected ack to be published")
	}
	var ack AckMessage
	if err := json.Unmarshal(p.Payload, &ack); err != nil {
		t.Fatalf("Failed to unmarshal ack: %v", err)
	}
	if ack.Status != AckAccepted {
		t.Errorf("Ack status = %v, want %v", ack.Status, AckAccepted)
	}
	if ack.ID == "" {
		t.Error("Ack ID must be set")
	}

	// Optimistic state echo
	p, ok = mqtt.FindPublished("bragerconnect/state/MODULE_B1/boiler_active")
	if !ok {
		t.Fatal("Expected optimistic state publish")
	}
	if string(p.Payload) != "ON" {
		t.Errorf("Optimistic state = %q, want ON", p.Payload)
	}
}

func TestBridgeCommandRejections(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	dev.Pool.Set(6, 0, brager.ChannelStatus, 1<<4)
	dev.Pool.Set(6, 0, brager.ChannelValue, 0)
	cloud := NewMockCloudClient(dev)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()

	tests := []struct {
		name     string
		topic    string
		payload  string
		wantCode string
	}{
		{
			name:     "unknown device",
			topic:    "bragerconnect/set/NOBODY/boiler_active",
			payload:  "ON",
			wantCode: ErrCodeUnknownDevice,
		},
		{
			name:     "unknown entity",
			topic:    "bragerconnect/set/MODULE_B1/warp_drive",
			payload:  "ON",
			wantCode: ErrCodeUnknownEntity,
		},
		{
			name:     "read-only entity",
			topic:    "bragerconnect/set/MODULE_B1/boiler_temperature",
			payload:  "70",
			wantCode: ErrCodeNotWritable,
		},
		{
			name:     "bad payload",
			topic:    "bragerconnect/set/MODULE_B1/boiler_active",
			payload:  "maybe",
			wantCode: ErrCodeInvalidPayload,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mqtt.ClearPublished()
			b.handleCommand(tt.topic, []byte(tt.payload))

			if len(cloud.GetWrites()) != 0 {
				t.Fatalf("Expected no cloud writes, got %d", len(cloud.GetWrites()))
			}

			var found bool
			for _, p := range mqtt.GetPublished() {
				var ack AckMessage
				if err := json.Unmarshal(p.Payload, &ack); err != nil {
					continue
				}
				if ack.Status != AckFailed {
					t.Errorf("Ack status = %v, want %v", ack.Status, AckFailed)
				}
				if ack.Error == nil || ack.Error.Code != tt.wantCode {
					t.Errorf("Ack error = %+v, want code %s", ack.Error, tt.wantCode)
				}
				found = true
			}
			if !found {
				t.Error("Expected failed ack to be published")
			}
		})
	}
}

func TestBridgeCommandCloudError(t *testing.T) {
	mqtt := NewMockMQTTClient()
	dev := createTestDevice("MODULE_B1")
	dev.Pool.Set(6, 0, brager.ChannelStatus, 1<<4)
	dev.Pool.Set(6, 0, brager.ChannelValue, 0)
	cloud := NewMockCloudClient(dev)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	b.pollOnce()
	mqtt.ClearPublished()
	cloud.SetWriteError(errors.New("socket closed"))

	b.handleCommand("bragerconnect/set/MODULE_B1/boiler_active", []byte("OFF"))

	p, ok := mqtt.FindPublished("bragerconnect/ack/MODULE_B1/boiler_active")
	if !ok {
		t.Fatal("Expected ack to be published")
	}
	var ack AckMessage
	if err := json.Unmarshal(p.Payload, &ack); err != nil {
		t.Fatalf("Failed to unmarshal ack: %v", err)
	}
	if ack.Status != AckFailed || ack.Error == nil || ack.Error.Code != ErrCodeCloudUnreachable {
		t.Errorf("Ack = %+v, want failed with %s", ack, ErrCodeCloudUnreachable)
	}
}

func TestBridgeWriteParameter(t *testing.T) {
	dev := createTestDevice("MODULE_B1")
	dev.Pool.Set(6, 0, brager.ChannelStatus, 1<<4)
	dev.Pool.Set(6, 0, brager.ChannelValue, 0)
	cloud := NewMockCloudClient(dev)

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   NewMockMQTTClient(),
	})

	b.pollOnce()

	if err := b.WriteParameter(context.Background(), "MODULE_B1", "P6.v0", 1); err != nil {
		t.Fatalf("WriteParameter() error: %v", err)
	}

	writes := cloud.GetWrites()
	if len(writes) != 1 {
		t.Fatalf("Expected 1 write, got %d", len(writes))
	}
	want := brager.FieldRef{Pool: 6, Channel: brager.ChannelValue, Field: 0}
	if writes[0].Ref != want {
		t.Errorf("Write ref = %+v, want %+v", writes[0].Ref, want)
	}

	if err := b.WriteParameter(context.Background(), "MODULE_B1", "garbage", 1); !errors.Is(err, brager.ErrInvalidFieldRef) {
		t.Errorf("WriteParameter(garbage) error = %v, want ErrInvalidFieldRef", err)
	}
}

func TestBridgeWriteParameterUnknownDevice(t *testing.T) {
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   NewMockMQTTClient(),
	})

	// No poll has run, so no device has an entity catalogue yet.
	err := b.WriteParameter(context.Background(), "MODULE_B1", "P6.v0", 1)
	if !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("WriteParameter() error = %v, want ErrUnknownDevice", err)
	}
	if len(cloud.GetWrites()) != 0 {
		t.Error("Expected no cloud writes for unknown device")
	}
}

func TestBridgeWriteParameterNotWritable(t *testing.T) {
	// P6.s0 lacks the remote-control bit, so no writable entity
	// targets P6.v0.
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   NewMockMQTTClient(),
	})

	b.pollOnce()

	err := b.WriteParameter(context.Background(), "MODULE_B1", "P6.v0", 1)
	if !errors.Is(err, ErrNotWritable) {
		t.Errorf("WriteParameter() error = %v, want ErrNotWritable", err)
	}
	if len(cloud.GetWrites()) != 0 {
		t.Error("Expected no cloud writes for read-only field")
	}
}

func TestBridgeGetMetrics(t *testing.T) {
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))
	cloud.stats = brager.Stats{FramesTx: 10, FramesRx: 20, ReconnectsTotal: 1}

	b := createTestBridge(t, Options{
		Config: createTestConfig(),
		Cloud:  cloud,
		MQTT:   NewMockMQTTClient(),
	})

	b.pollOnce()

	m := b.GetMetrics()
	if !m.CloudConnected {
		t.Error("CloudConnected = false, want true")
	}
	if m.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", m.Status)
	}
	if m.DevicesManaged != 1 {
		t.Errorf("DevicesManaged = %d, want 1", m.DevicesManaged)
	}
	if !m.LastPollOK {
		t.Error("LastPollOK = false, want true")
	}
	if m.FramesTx != 10 || m.FramesRx != 20 || m.Reconnects != 1 {
		t.Errorf("Frame counters = %d/%d/%d, want 10/20/1", m.FramesTx, m.FramesRx, m.Reconnects)
	}
	if m.LastPoll.IsZero() {
		t.Error("LastPoll should be set")
	}
}

func TestParseCommandPayload(t *testing.T) {
	tests := []struct {
		input   string
		want    any
		wantErr bool
	}{
		{"ON", 1, false},
		{"on", 1, false},
		{"OFF", 0, false},
		{"60", 60.0, false},
		{"61.5", 61.5, false},
		{"-3", -3.0, false},
		{"maybe", nil, true},
		{"", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseCommandPayload(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseCommandPayload(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCommandPayload(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("parseCommandPayload(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestBridgePollLoopTicks(t *testing.T) {
	mqtt := NewMockMQTTClient()
	cloud := NewMockCloudClient(createTestDevice("MODULE_B1"))
	cfg := createTestConfig()
	cfg.Cloud.PollInterval = 1

	b := createTestBridge(t, Options{
		Config: cfg,
		Cloud:  cloud,
		MQTT:   mqtt,
	})

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer b.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := mqtt.FindPublished("bragerconnect/availability/MODULE_B1"); ok {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("Poll loop never published availability")
}
