package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the BragerConnect MQTT namespace.
//
// All service topics use the flat scheme: bragerconnect/{category}/{devid}/{object_id}
// This matches what the bridge publishes and what Home Assistant entities
// are configured to consume via discovery.
const (
	// TopicPrefix is the base for all service topics.
	// Flat scheme: bragerconnect/{category}/{devid}/{object_id}
	TopicPrefix = "bragerconnect"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "bragerconnect/system"
)

// Topics provides builders for BragerConnect MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("MODULE_B1", "boiler_temperature")
//	// Returns: "bragerconnect/state/MODULE_B1/boiler_temperature"
type Topics struct{}

// =============================================================================
// Device Topics
// =============================================================================

// DeviceState returns the topic for a single entity's state.
//
// Example: bragerconnect/state/MODULE_B1/boiler_temperature
func (Topics) DeviceState(deviceID, objectID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, deviceID, objectID)
}

// DeviceAvailability returns the availability topic for a device.
// The bridge publishes "online"/"offline" here, retained.
//
// Example: bragerconnect/availability/MODULE_B1
func (Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/availability/%s", TopicPrefix, deviceID)
}

// DeviceCommand returns the topic Home Assistant publishes commands to.
//
// Example: bragerconnect/set/MODULE_B1/boiler_active
func (Topics) DeviceCommand(deviceID, objectID string) string {
	return fmt.Sprintf("%s/set/%s/%s", TopicPrefix, deviceID, objectID)
}

// DeviceAck returns the topic for command acknowledgements.
//
// Example: bragerconnect/ack/MODULE_B1/boiler_active
func (Topics) DeviceAck(deviceID, objectID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, deviceID, objectID)
}

// DeviceAlarm returns the topic for alarm notifications of a device.
//
// Example: bragerconnect/alarm/MODULE_B1
func (Topics) DeviceAlarm(deviceID string) string {
	return fmt.Sprintf("%s/alarm/%s", TopicPrefix, deviceID)
}

// =============================================================================
// Service Topics
// =============================================================================

// Health returns the topic for service health reports.
//
// Example: bragerconnect/health
func (Topics) Health() string {
	return fmt.Sprintf("%s/health", TopicPrefix)
}

// SystemStatus returns the system status topic used for LWT and
// graceful shutdown notices.
//
// Example: bragerconnect/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllCommands returns a pattern matching every entity command topic.
//
// Pattern: bragerconnect/set/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/set/+/+", TopicPrefix)
}

// AllStates returns a pattern matching every entity state topic.
//
// Pattern: bragerconnect/state/+/+
func (Topics) AllStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefix)
}

// AllAvailability returns a pattern matching every availability topic.
//
// Pattern: bragerconnect/availability/+
func (Topics) AllAvailability() string {
	return fmt.Sprintf("%s/availability/+", TopicPrefix)
}

// AllTopics returns a pattern matching all BragerConnect topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: bragerconnect/#
func (Topics) AllTopics() string {
	return "bragerconnect/#"
}

// ParseCommandTopic extracts the device ID and object ID from a command
// topic. Returns ok=false when the topic is not a command topic.
func ParseCommandTopic(topic string) (deviceID, objectID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "set" ||
		parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
