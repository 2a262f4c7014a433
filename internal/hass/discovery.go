package hass

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/marpi82/bragerconnect-core/internal/brager"
	"github.com/marpi82/bragerconnect-core/internal/infrastructure/mqtt"
)

// DefaultDiscoveryPrefix is Home Assistant's out-of-the-box discovery
// prefix.
const DefaultDiscoveryPrefix = "homeassistant"

// Entity platforms understood by the discovery layer.
const (
	PlatformSensor       = "sensor"
	PlatformBinarySensor = "binary_sensor"
	PlatformSwitch       = "switch"
)

// Availability payloads shared by every entity.
const (
	PayloadOnline  = "online"
	PayloadOffline = "offline"
)

// Binary state payloads shared by binary sensors and switches.
const (
	PayloadOn  = "ON"
	PayloadOff = "OFF"
)

// Config is one entity's discovery payload.
type Config struct {
	Name                string      `json:"name"`
	UniqueID            string      `json:"unique_id"`
	ObjectID            string      `json:"object_id,omitempty"`
	StateTopic          string      `json:"state_topic"`
	CommandTopic        string      `json:"command_topic,omitempty"`
	AvailabilityTopic   string      `json:"availability_topic"`
	PayloadAvailable    string      `json:"payload_available"`
	PayloadNotAvailable string      `json:"payload_not_available"`
	DeviceClass         string      `json:"device_class,omitempty"`
	StateClass          string      `json:"state_class,omitempty"`
	UnitOfMeasurement   string      `json:"unit_of_measurement,omitempty"`
	Icon                string      `json:"icon,omitempty"`
	PayloadOn           string      `json:"payload_on,omitempty"`
	PayloadOff          string      `json:"payload_off,omitempty"`
	QOS                 int         `json:"qos,omitempty"`
	Device              DeviceBlock `json:"device"`
}

// DeviceBlock groups all of a controller's entities under one device in
// the Home Assistant UI.
type DeviceBlock struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

// ConfigTopic returns the retained discovery topic for one entity.
func ConfigTopic(prefix, platform, deviceID, objectID string) string {
	if prefix == "" {
		prefix = DefaultDiscoveryPrefix
	}
	return fmt.Sprintf("%s/%s/%s/%s/config", prefix, platform, deviceID, objectID)
}

// NewDeviceBlock builds the shared device block from account metadata.
func NewDeviceBlock(info brager.DeviceInfo, swVersion string) DeviceBlock {
	return DeviceBlock{
		Identifiers:  []string{info.DevID},
		Name:         info.DisplayName(),
		Manufacturer: "Brager",
		Model:        producerModel(info.ProducerCode),
		SWVersion:    swVersion,
	}
}

// DiscoveryPayload builds the retained config JSON for one entity of a
// device. The returned topic carries the payload; republishing an empty
// retained payload on the same topic removes the entity.
func DiscoveryPayload(prefix string, info brager.DeviceInfo, e Entity, swVersion string) (topic string, payload []byte, err error) {
	topics := mqtt.Topics{}

	cfg := Config{
		Name:                e.Name,
		UniqueID:            uniqueID(info.DevID, e.ObjectID),
		ObjectID:            uniqueID(info.DevID, e.ObjectID),
		StateTopic:          topics.DeviceState(info.DevID, e.ObjectID),
		AvailabilityTopic:   topics.DeviceAvailability(info.DevID),
		PayloadAvailable:    PayloadOnline,
		PayloadNotAvailable: PayloadOffline,
		DeviceClass:         e.DeviceClass,
		StateClass:          e.StateClass,
		UnitOfMeasurement:   e.Unit,
		Icon:                e.Icon,
		Device:              NewDeviceBlock(info, swVersion),
	}

	switch e.Platform {
	case PlatformSwitch:
		cfg.CommandTopic = topics.DeviceCommand(info.DevID, e.ObjectID)
		cfg.PayloadOn = PayloadOn
		cfg.PayloadOff = PayloadOff
	case PlatformBinarySensor:
		cfg.PayloadOn = PayloadOn
		cfg.PayloadOff = PayloadOff
	case PlatformSensor:
		// state topic only
	default:
		return "", nil, fmt.Errorf("hass: unknown platform %q", e.Platform)
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return "", nil, fmt.Errorf("hass: marshal config for %s: %w", e.ObjectID, err)
	}
	return ConfigTopic(prefix, e.Platform, info.DevID, e.ObjectID), data, nil
}

// uniqueID namespaces an object ID with its device so entity IDs stay
// stable across installations with several controllers.
func uniqueID(deviceID, objectID string) string {
	return strings.ToLower(fmt.Sprintf("bragerconnect_%s_%s", deviceID, objectID))
}

// producerModel maps the numeric producer code from the device list to
// a model label. Unknown codes keep the number visible for support.
func producerModel(code int) string {
	switch code {
	case 67:
		return "Brager controller (type 67)"
	case 0:
		return "Brager controller"
	default:
		return fmt.Sprintf("Brager controller (type %d)", code)
	}
}
