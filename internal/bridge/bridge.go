package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marpi82/bragerconnect-core/internal/brager"
	"github.com/marpi82/bragerconnect-core/internal/device"
	"github.com/marpi82/bragerconnect-core/internal/hass"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/config"
	imqtt "github.com/marpi82/bragerconnect-core/internal/infrastructure/mqtt"
)

// Bridge operation constants.
const (
	// commandTimeout bounds a single parameter write to the cloud.
	commandTimeout = 10 * time.Second

	// pollTimeout bounds one full account refresh.
	pollTimeout = 60 * time.Second

	// maxPollBackoff caps the stretched poll delay while the cloud is
	// unreachable.
	maxPollBackoff = 5 * time.Minute
)

// Sentinel errors returned by WriteParameter. Callers distinguish them
// with errors.Is to decide how to report the failure.
var (
	// ErrUnknownDevice indicates the bridge has no entity catalogue for
	// the device, either because it does not exist or has not been
	// polled yet.
	ErrUnknownDevice = errors.New("device not known")

	// ErrNotWritable indicates the referenced field is not exposed as a
	// writable entity, per the status bits from the last poll.
	ErrNotWritable = errors.New("parameter not writable")
)

// Bridge orchestrates the poll cycle between the BragerConnect cloud
// and MQTT. It handles:
//   - Polling device snapshots and publishing state changes
//   - Home Assistant discovery publication and removal
//   - Receiving entity commands from MQTT and writing them to the cloud
//   - Alarm notifications, registry persistence and health reporting
//
// Thread Safety: All methods are safe for concurrent use.
type Bridge struct {
	cfg     *config.Config
	cloud   CloudClient
	mqtt    MQTTClient
	metrics MetricsWriter  // Optional time-series sink
	reg     DeviceRegistry // Optional device registry for persistence
	health  *HealthReporter

	// Entity catalogues per device, rebuilt on every poll
	entities   map[string][]hass.Entity
	entitiesMu sync.RWMutex

	// Rendered state cache for change detection
	stateCache   map[string]map[string]string
	stateCacheMu sync.Mutex

	// Discovery topics published per device, for unpublishing
	discovered   map[string]map[string]string // devid -> object_id -> platform
	discoveredMu sync.Mutex

	// Raised alarm names per device, for transition recording
	alarmCache   map[string]map[string]bool
	alarmCacheMu sync.Mutex

	// Poll bookkeeping
	lastPoll     time.Time
	lastPollErr  error
	pollDuration time.Duration
	pollMu       sync.RWMutex

	// Shutdown coordination
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc

	// Logger
	logger   Logger
	loggerMu sync.RWMutex
}

// Logger is the minimal logging interface the bridge needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// CloudClient is the interface to the BragerConnect cloud connection.
// Satisfied by *brager.Client; narrowed for mocking in tests.
type CloudClient interface {
	// FetchDevices retrieves full snapshots for every account device.
	FetchDevices(ctx context.Context) ([]*brager.Device, error)

	// SetPoolField writes one parameter value on a device.
	SetPoolField(ctx context.Context, deviceID string, ref brager.FieldRef, value any) error

	// IsConnected returns true if the WebSocket session is up.
	IsConnected() bool

	// Stats returns connection statistics.
	Stats() brager.Stats
}

// MQTTClient is the interface for MQTT operations.
// This allows mocking in tests and flexibility in implementation.
type MQTTClient interface {
	// Publish sends a message to a topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// Subscribe registers a handler for a topic pattern.
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error

	// IsConnected returns true if connected to the broker.
	IsConnected() bool
}

// DeviceRegistry persists device records, states and alarm history.
// This interface is satisfied by *device.Registry. It is optional;
// if nil, the bridge operates without persistence.
type DeviceRegistry interface {
	// UpsertDevice creates or updates a device record.
	UpsertDevice(ctx context.Context, d *device.Device) error

	// SetDeviceState updates the stored entity states of a device.
	SetDeviceState(ctx context.Context, id string, state device.State) error

	// SetDeviceHealth updates the health status of a device.
	SetDeviceHealth(ctx context.Context, id string, status device.HealthStatus) error

	// RecordAlarm appends one alarm transition.
	RecordAlarm(ctx context.Context, alarm *device.Alarm) error
}

// MetricsWriter sends telemetry samples to the time-series store.
// Satisfied by *influxdb.Client. Optional; if nil, no samples are written.
type MetricsWriter interface {
	WriteFieldSample(deviceID, objectID string, value float64)
	WritePowerMetric(deviceID string, powerKW float64)
	WriteFuelMetric(deviceID string, consumedKg, levelPercent float64)
}

// Options holds configuration for creating a bridge.
type Options struct {
	// Config is the loaded service configuration.
	Config *config.Config

	// Cloud is the BragerConnect cloud client.
	Cloud CloudClient

	// MQTT is the MQTT client implementation.
	MQTT MQTTClient

	// Registry is optional device persistence.
	Registry DeviceRegistry

	// Metrics is optional time-series telemetry.
	Metrics MetricsWriter

	// Logger is optional structured logging.
	Logger Logger

	// Version is the service version reported in health messages.
	Version string
}

// New creates a new bridge instance.
// Call Start() to begin operation.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.Cloud == nil {
		return nil, fmt.Errorf("cloud client is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	// Bridge-level context aborts in-flight cloud calls on Stop()
	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        opts.Config,
		cloud:      opts.Cloud,
		mqtt:       opts.MQTT,
		reg:        opts.Registry, // May be nil (optional)
		metrics:    opts.Metrics,  // May be nil (optional)
		entities:   make(map[string][]hass.Entity),
		stateCache: make(map[string]map[string]string),
		discovered: make(map[string]map[string]string),
		alarmCache: make(map[string]map[string]bool),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
		logger:     opts.Logger,
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		Version:   opts.Version,
		Address:   opts.Config.Cloud.Host,
		Publisher: mqttHealthAdapter{opts.MQTT},
		Cloud:     opts.Cloud,
	})
	if opts.Logger != nil {
		b.health.SetLogger(opts.Logger)
	}

	return b, nil
}

// mqttHealthAdapter narrows MQTTClient to the HealthPublisher interface.
type mqttHealthAdapter struct{ MQTTClient }

// Start begins bridge operation: subscribes to command topics, starts
// health reporting and launches the poll loop.
func (b *Bridge) Start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logError("failed to publish starting status", err)
	}

	commandTopic := imqtt.Topics{}.AllCommands()
	if err := b.mqtt.Subscribe(commandTopic, byte(b.cfg.MQTT.QoS), b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logInfo("subscribed to commands", "topic", commandTopic)

	b.health.Start(ctx)

	b.wg.Add(1)
	go b.pollLoop()

	b.logInfo("bridge started",
		"poll_interval", b.cfg.GetPollInterval().String(),
		"discovery", b.cfg.Discovery.Enabled)

	return nil
}

// Stop gracefully shuts down the bridge.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.health.Stop()
		b.wg.Wait()
		b.logInfo("bridge stopped")
	})
}

// =============================================================================
// Poll Loop
// =============================================================================

// pollLoop refreshes all devices on the configured interval. The first
// refresh runs immediately so entities appear without waiting a full
// interval after startup. Consecutive failures stretch the interval
// exponentially so a dead cloud link is not hammered at full rate; a
// successful poll resets it.
func (b *Bridge) pollLoop() {
	defer b.wg.Done()

	interval := b.cfg.GetPollInterval()
	delay := interval

	if err := b.pollOnce(); err != nil {
		delay = b.nextPollDelay(delay)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-b.done:
			return
		case <-timer.C:
			if err := b.pollOnce(); err != nil {
				delay = b.nextPollDelay(delay)
			} else {
				delay = interval
			}
			timer.Reset(delay)
		}
	}
}

// nextPollDelay grows the poll delay after a failure, capped at
// maxPollBackoff.
func (b *Bridge) nextPollDelay(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * 1.5)
	if next > maxPollBackoff {
		next = maxPollBackoff
	}
	b.logDebug("poll backing off", "next_delay", next.String())
	return next
}

// pollOnce performs one full account refresh.
func (b *Bridge) pollOnce() error {
	ctx, cancel := context.WithTimeout(b.ctx, pollTimeout)
	defer cancel()

	start := time.Now()
	devices, err := b.cloud.FetchDevices(ctx)
	duration := time.Since(start)

	b.pollMu.Lock()
	b.lastPoll = start
	b.lastPollErr = err
	b.pollDuration = duration
	b.pollMu.Unlock()

	if err != nil {
		b.logError("device poll failed", err)
		b.markAllOffline()
		return err
	}

	seen := make(map[string]bool, len(devices))
	for _, dev := range devices {
		if !b.devicePolled(dev.Info.DevID) {
			continue
		}
		seen[dev.Info.DevID] = true
		b.processDevice(ctx, dev)
	}

	b.retireMissing(seen)
	b.health.SetDeviceCount(len(seen))

	b.logDebug("poll complete",
		"devices", len(seen),
		"duration_ms", duration.Milliseconds())
	return nil
}

// devicePolled applies the optional device ID filter from config.
func (b *Bridge) devicePolled(deviceID string) bool {
	ids := b.cfg.Cloud.DeviceIDs
	if len(ids) == 0 {
		return true
	}
	for _, id := range ids {
		if id == deviceID {
			return true
		}
	}
	return false
}

// processDevice publishes one device's discovery, availability, state,
// alarms, telemetry and registry updates.
func (b *Bridge) processDevice(ctx context.Context, dev *brager.Device) {
	devID := dev.Info.DevID
	entities := hass.Catalogue(dev)

	b.entitiesMu.Lock()
	b.entities[devID] = entities
	b.entitiesMu.Unlock()

	if b.cfg.Discovery.Enabled {
		b.syncDiscovery(dev.Info, entities)
	}

	b.publishAvailability(devID, true)
	states := b.publishStates(dev, entities)
	// The device row must exist before alarm rows reference it.
	b.persistDevice(ctx, dev, states)
	b.publishAlarms(ctx, dev)
	b.writeTelemetry(dev, entities)
}

// syncDiscovery publishes config payloads for new entities and removes
// entities that dropped out of the catalogue.
func (b *Bridge) syncDiscovery(info brager.DeviceInfo, entities []hass.Entity) {
	b.discoveredMu.Lock()
	defer b.discoveredMu.Unlock()

	devID := info.DevID
	previous := b.discovered[devID]
	current := make(map[string]string, len(entities))

	for _, e := range entities {
		current[e.ObjectID] = e.Platform
		if previous[e.ObjectID] == e.Platform {
			continue // already announced
		}

		topic, payload, err := hass.DiscoveryPayload(b.cfg.Discovery.Prefix, info, e, b.health.version)
		if err != nil {
			b.logError("failed to build discovery payload", err)
			continue
		}
		if err := b.mqtt.Publish(topic, payload, byte(b.cfg.MQTT.QoS), b.cfg.Discovery.Retain); err != nil {
			b.logError("failed to publish discovery", err)
			continue
		}
		b.logDebug("announced entity", "device", devID, "object", e.ObjectID)
	}

	// Empty retained payload removes the entity from Home Assistant
	for objectID, platform := range previous {
		if _, ok := current[objectID]; ok {
			continue
		}
		topic := hass.ConfigTopic(b.cfg.Discovery.Prefix, platform, devID, objectID)
		if err := b.mqtt.Publish(topic, nil, byte(b.cfg.MQTT.QoS), true); err != nil {
			b.logError("failed to unpublish discovery", err)
		}
	}

	b.discovered[devID] = current
}

// publishStates renders every entity and publishes values that changed
// since the previous poll. Returns the full rendered state set.
func (b *Bridge) publishStates(dev *brager.Device, entities []hass.Entity) map[string]string {
	devID := dev.Info.DevID
	topics := imqtt.Topics{}
	states := make(map[string]string, len(entities))

	b.stateCacheMu.Lock()
	cache := b.stateCache[devID]
	if cache == nil {
		cache = make(map[string]string)
		b.stateCache[devID] = cache
	}
	b.stateCacheMu.Unlock()

	for _, e := range entities {
		value, ok := e.StateValue(dev)
		if !ok {
			continue
		}
		states[e.ObjectID] = value

		b.stateCacheMu.Lock()
		unchanged := cache[e.ObjectID] == value
		if !unchanged {
			cache[e.ObjectID] = value
		}
		b.stateCacheMu.Unlock()

		if unchanged {
			continue
		}

		topic := topics.DeviceState(devID, e.ObjectID)
		if err := b.mqtt.Publish(topic, []byte(value), byte(b.cfg.MQTT.QoS), true); err != nil {
			b.logError("failed to publish state", err)
		}
	}

	return states
}

// publishAlarms publishes the retained alarm set and records alarm
// transitions in the registry.
func (b *Bridge) publishAlarms(ctx context.Context, dev *brager.Device) {
	devID := dev.Info.DevID

	msg := NewAlarmMessage(devID, dev.Alarms)
	payload, err := json.Marshal(msg)
	if err != nil {
		b.logError("failed to marshal alarms", err)
		return
	}
	topic := imqtt.Topics{}.DeviceAlarm(devID)
	if err := b.mqtt.Publish(topic, payload, byte(b.cfg.MQTT.QoS), true); err != nil {
		b.logError("failed to publish alarms", err)
	}

	// Record transitions against the previous poll's raised set
	b.alarmCacheMu.Lock()
	previous := b.alarmCache[devID]
	current := make(map[string]bool, len(dev.Alarms))
	for _, a := range dev.Alarms {
		if a.Raised {
			current[a.Name] = true
		}
	}
	b.alarmCache[devID] = current
	b.alarmCacheMu.Unlock()

	if b.reg == nil {
		return
	}
	now := time.Now().UTC()
	for name := range current {
		if !previous[name] {
			b.recordAlarm(ctx, devID, name, true, now)
		}
	}
	for name := range previous {
		if !current[name] {
			b.recordAlarm(ctx, devID, name, false, now)
		}
	}
}

func (b *Bridge) recordAlarm(ctx context.Context, devID, name string, active bool, at time.Time) {
	alarm := &device.Alarm{
		ID:         uuid.NewString(),
		DeviceID:   devID,
		Message:    name,
		Active:     active,
		OccurredAt: at,
	}
	if err := b.reg.RecordAlarm(ctx, alarm); err != nil {
		b.logError("failed to record alarm transition", err)
	}
}

// writeTelemetry sends numeric samples to the time-series store.
// Every poll writes a full sample set; retention is the store's concern.
func (b *Bridge) writeTelemetry(dev *brager.Device, entities []hass.Entity) {
	if b.metrics == nil {
		return
	}
	devID := dev.Info.DevID

	fuelConsumedKg := -1.0
	fuelLevel := -1.0

	for _, e := range entities {
		value, ok := e.StateValue(dev)
		if !ok {
			continue
		}
		switch e.Kind {
		case hass.ValueNumber:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				if e.ObjectID == "fuel_level" {
					fuelLevel = f
				} else {
					b.metrics.WriteFieldSample(devID, e.ObjectID, f)
				}
			}
		case hass.ValuePower:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				b.metrics.WritePowerMetric(devID, f)
			}
		case hass.ValueFuelTotal:
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				fuelConsumedKg = f * 1000 // tonnes to kilograms
			}
		}
	}

	if fuelConsumedKg >= 0 {
		b.metrics.WriteFuelMetric(devID, fuelConsumedKg, fuelLevel)
	}
}

// persistDevice upserts the registry record for a polled device.
func (b *Bridge) persistDevice(ctx context.Context, dev *brager.Device, states map[string]string) {
	if b.reg == nil {
		return
	}

	rec := &device.Device{
		ID:              dev.Info.DevID,
		Name:            dev.Info.DisplayName(),
		Description:     dev.Info.Description,
		Username:        dev.Info.Username,
		ProducerCode:    dev.Info.ProducerCode,
		PermissionGroup: dev.Info.PermGroupID,
		Alert:           dev.Info.Alert,
		BoilerType:      registryBoilerType(dev.BoilerType()),
		HealthStatus:    device.HealthStatusOnline,
	}
	if dev.Info.SharedFromName != "" {
		shared := dev.Info.SharedFromName
		rec.SharedFrom = &shared
	}

	if err := b.reg.UpsertDevice(ctx, rec); err != nil {
		b.logDebug("registry upsert skipped", "device", rec.ID, "reason", err.Error())
		return
	}

	state := make(device.State, len(states))
	for objectID, value := range states {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			state[objectID] = f
		} else {
			state[objectID] = value
		}
	}
	if err := b.reg.SetDeviceState(ctx, rec.ID, state); err != nil {
		b.logDebug("registry state update skipped", "device", rec.ID, "reason", err.Error())
		return
	}
	if err := b.reg.SetDeviceHealth(ctx, rec.ID, device.HealthStatusOnline); err != nil {
		b.logDebug("registry health update skipped", "device", rec.ID, "reason", err.Error())
	}
}

// registryBoilerType maps the pool classification onto the registry's
// string enum.
func registryBoilerType(t brager.BoilerType) device.BoilerType {
	switch t {
	case brager.BoilerPellet:
		return device.BoilerTypePellet
	case brager.BoilerFeeder:
		return device.BoilerTypeFeeder
	default:
		return device.BoilerTypeBasic
	}
}

// publishAvailability publishes the retained availability flag.
func (b *Bridge) publishAvailability(devID string, online bool) {
	payload := hass.PayloadOffline
	if online {
		payload = hass.PayloadOnline
	}
	topic := imqtt.Topics{}.DeviceAvailability(devID)
	if err := b.mqtt.Publish(topic, []byte(payload), byte(b.cfg.MQTT.QoS), true); err != nil {
		b.logError("failed to publish availability", err)
	}
}

// markAllOffline flags every known device unavailable after a failed
// poll so Home Assistant greys the entities out.
func (b *Bridge) markAllOffline() {
	b.entitiesMu.RLock()
	ids := make([]string, 0, len(b.entities))
	for id := range b.entities {
		ids = append(ids, id)
	}
	b.entitiesMu.RUnlock()

	for _, id := range ids {
		b.publishAvailability(id, false)
		if b.reg != nil {
			if err := b.reg.SetDeviceHealth(b.ctx, id, device.HealthStatusOffline); err != nil {
				b.logDebug("registry health update skipped", "device", id, "reason", err.Error())
			}
		}
	}
}

// retireMissing handles devices that were present on a previous poll
// but vanished from the account: unpublish discovery, mark offline.
func (b *Bridge) retireMissing(seen map[string]bool) {
	b.entitiesMu.Lock()
	var missing []string
	for id := range b.entities {
		if !seen[id] {
			missing = append(missing, id)
			delete(b.entities, id)
		}
	}
	b.entitiesMu.Unlock()

	for _, id := range missing {
		b.logInfo("device disappeared from account", "device", id)
		b.publishAvailability(id, false)

		b.discoveredMu.Lock()
		for objectID, platform := range b.discovered[id] {
			topic := hass.ConfigTopic(b.cfg.Discovery.Prefix, platform, id, objectID)
			if err := b.mqtt.Publish(topic, nil, byte(b.cfg.MQTT.QoS), true); err != nil {
				b.logError("failed to unpublish discovery", err)
			}
		}
		delete(b.discovered, id)
		b.discoveredMu.Unlock()

		b.stateCacheMu.Lock()
		delete(b.stateCache, id)
		b.stateCacheMu.Unlock()

		if b.reg != nil {
			if err := b.reg.SetDeviceHealth(b.ctx, id, device.HealthStatusOffline); err != nil {
				b.logDebug("registry health update skipped", "device", id, "reason", err.Error())
			}
		}
	}
}

// =============================================================================
// Command Handling
// =============================================================================

// handleCommand processes one entity command from MQTT. Commands carry
// plain payloads ("ON", "OFF", or a number); every command is answered
// with exactly one ack, accepted or failed.
func (b *Bridge) handleCommand(topic string, payload []byte) {
	deviceID, objectID, ok := imqtt.ParseCommandTopic(topic)
	if !ok {
		b.logError("invalid command topic", fmt.Errorf("topic: %s", topic))
		return
	}

	cmdID := uuid.NewString()
	raw := strings.TrimSpace(string(payload))

	b.logInfo("received command",
		"command_id", cmdID,
		"device", deviceID,
		"object", objectID,
		"payload", raw)

	b.entitiesMu.RLock()
	entities, known := b.entities[deviceID]
	b.entitiesMu.RUnlock()

	if !known {
		b.publishAck(NewAckError(cmdID, deviceID, objectID, raw,
			ErrCodeUnknownDevice, fmt.Sprintf("device %s not known", deviceID)))
		return
	}

	entity, found := hass.FindEntity(entities, objectID)
	if !found {
		b.publishAck(NewAckError(cmdID, deviceID, objectID, raw,
			ErrCodeUnknownEntity, fmt.Sprintf("entity %s not known on %s", objectID, deviceID)))
		return
	}
	if !entity.Writable() {
		b.publishAck(NewAckError(cmdID, deviceID, objectID, raw,
			ErrCodeNotWritable, fmt.Sprintf("entity %s is read-only", objectID)))
		return
	}

	value, err := parseCommandPayload(raw)
	if err != nil {
		b.publishAck(NewAckError(cmdID, deviceID, objectID, raw,
			ErrCodeInvalidPayload, err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	if err := b.cloud.SetPoolField(ctx, deviceID, *entity.Command, value); err != nil {
		b.publishAck(NewAckError(cmdID, deviceID, objectID, raw,
			ErrCodeCloudUnreachable, err.Error()))
		return
	}

	b.publishAck(NewAckMessage(cmdID, deviceID, objectID, raw))

	// Optimistic state echo; the next poll confirms or corrects it
	stateTopic := imqtt.Topics{}.DeviceState(deviceID, objectID)
	if err := b.mqtt.Publish(stateTopic, []byte(raw), byte(b.cfg.MQTT.QoS), true); err != nil {
		b.logError("failed to publish optimistic state", err)
	}
}

// parseCommandPayload converts a command payload to the pool value.
// ON/OFF map to 1/0; anything else must parse as a number.
func parseCommandPayload(raw string) (any, error) {
	switch strings.ToUpper(raw) {
	case hass.PayloadOn:
		return 1, nil
	case hass.PayloadOff:
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("payload %q is neither ON/OFF nor a number", raw)
	}
	return f, nil
}

// publishAck publishes a command acknowledgment.
func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logError("failed to marshal ack", err)
		return
	}

	topic := imqtt.Topics{}.DeviceAck(ack.DeviceID, ack.ObjectID)
	if err := b.mqtt.Publish(topic, payload, byte(b.cfg.MQTT.QoS), false); err != nil {
		b.logError("failed to publish ack", err)
	}

	if ack.Error != nil {
		b.logError("command failed",
			fmt.Errorf("code=%s message=%s", ack.Error.Code, ack.Error.Message))
	}
}

// WriteParameter validates and executes a parameter write on behalf of
// the admin API. ref uses the pool notation, e.g. "P6.v0". The ref must
// resolve to a writable entity from the device's last poll: the cloud
// status bits gate writes here exactly as on the MQTT command path.
func (b *Bridge) WriteParameter(ctx context.Context, deviceID, ref string, value float64) error {
	fieldRef, err := brager.ParseFieldRef(ref)
	if err != nil {
		return err
	}

	b.entitiesMu.RLock()
	entities, known := b.entities[deviceID]
	b.entitiesMu.RUnlock()
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}

	writable := false
	for _, e := range entities {
		if e.Writable() && *e.Command == fieldRef {
			writable = true
			break
		}
	}
	if !writable {
		return fmt.Errorf("%w: %s on %s", ErrNotWritable, ref, deviceID)
	}

	writeCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	return b.cloud.SetPoolField(writeCtx, deviceID, fieldRef, value)
}

// =============================================================================
// Metrics
// =============================================================================

// Metrics contains bridge metrics for the API metrics endpoint.
type Metrics struct {
	CloudConnected bool
	Status         string
	FramesTx       uint64
	FramesRx       uint64
	Reconnects     uint64
	DevicesManaged int
	LastPoll       time.Time
	LastPollOK     bool
	PollDurationMS int64
}

// GetMetrics returns current bridge metrics for the API metrics endpoint.
func (b *Bridge) GetMetrics() Metrics {
	b.entitiesMu.RLock()
	deviceCount := len(b.entities)
	b.entitiesMu.RUnlock()

	b.pollMu.RLock()
	lastPoll := b.lastPoll
	lastErr := b.lastPollErr
	duration := b.pollDuration
	b.pollMu.RUnlock()

	connected := b.cloud.IsConnected()
	stats := b.cloud.Stats()
	status := "disconnected"
	if connected {
		status = "healthy"
	}

	return Metrics{
		CloudConnected: connected,
		Status:         status,
		FramesTx:       stats.FramesTx,
		FramesRx:       stats.FramesRx,
		Reconnects:     stats.ReconnectsTotal,
		DevicesManaged: deviceCount,
		LastPoll:       lastPoll,
		LastPollOK:     lastErr == nil && !lastPoll.IsZero(),
		PollDurationMS: duration.Milliseconds(),
	}
}

// SetLogger sets the logger for the bridge.
func (b *Bridge) SetLogger(logger Logger) {
	b.loggerMu.Lock()
	b.logger = logger
	b.loggerMu.Unlock()

	if b.health != nil {
		b.health.SetLogger(logger)
	}
}

// logInfo logs an info message if logger is set.
func (b *Bridge) logInfo(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (b *Bridge) logError(msg string, err error) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}

// logDebug logs a debug message if logger is set.
func (b *Bridge) logDebug(msg string, keysAndValues ...any) {
	b.loggerMu.RLock()
	logger := b.logger
	b.loggerMu.RUnlock()

	if logger != nil {
		logger.Debug(msg, keysAndValues...)
	}
}
