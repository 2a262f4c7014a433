package device

import "time"

// Device represents a heating appliance known to the cloud account.
// One record per cloud device identifier (devid), persisted so the
// service can serve queries and alarm history while the cloud is down.
type Device struct {
	// Identity
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`

	// Account context reported by the cloud
	Username   string  `json:"username"`
	SharedFrom *string `json:"shared_from,omitempty"`

	// Manufacturer metadata
	ProducerCode    int  `json:"producer_code"`
	PermissionGroup int  `json:"permission_group"`
	Alert           bool `json:"alert"`

	// Classification derived from controller pool data
	BoilerType BoilerType `json:"boiler_type"`

	// Current entity states keyed by object ID
	// (e.g. "boiler_temperature", "feeder_operates")
	State          State      `json:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty"`

	// Health monitoring
	HealthStatus   HealthStatus `json:"health_status"`
	HealthLastSeen *time.Time   `json:"health_last_seen,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeepCopy creates a complete independent copy of the Device.
// The state map is cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	cpy.State = deepCopyMap(d.State)

	// Pointer fields (*string, *time.Time) don't need deep copy
	// because strings and time.Time are immutable in Go

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// State holds the current entity states as a JSON map.
//
// Examples:
//   - {"boiler_temperature": 61.5, "boiler_status": "working"}
//   - {"feeder_operates": true, "pump_dhw": false}
type State map[string]any

// BoilerType classifies the controller's fuel handling.
type BoilerType string

// BoilerType constants.
const (
	// BoilerTypePellet indicates a pellet burner is fitted.
	BoilerTypePellet BoilerType = "pellet"

	// BoilerTypeFeeder indicates a screw feeder without a pellet burner.
	BoilerTypeFeeder BoilerType = "feeder"

	// BoilerTypeBasic indicates a manually stoked boiler.
	BoilerTypeBasic BoilerType = "basic"

	// BoilerTypeUnknown is used before pool data has been read.
	BoilerTypeUnknown BoilerType = "unknown"
)

// AllBoilerTypes returns all valid boiler type values.
func AllBoilerTypes() []BoilerType {
	return []BoilerType{
		BoilerTypePellet, BoilerTypeFeeder, BoilerTypeBasic, BoilerTypeUnknown,
	}
}

// HealthStatus represents the device health state.
type HealthStatus string

// HealthStatus constants.
const (
	HealthStatusOnline  HealthStatus = "online"
	HealthStatusOffline HealthStatus = "offline"
	HealthStatusUnknown HealthStatus = "unknown"
)

// AllHealthStatuses returns all valid health status values.
func AllHealthStatuses() []HealthStatus {
	return []HealthStatus{
		HealthStatusOnline, HealthStatusOffline, HealthStatusUnknown,
	}
}

// Alarm is a single alarm occurrence recorded for a device.
// Rows are append-only; the cloud reports active alarms each poll and
// the bridge records transitions.
type Alarm struct {
	ID         string    `json:"id"`
	DeviceID   string    `json:"device_id"`
	Code       int       `json:"code"`
	Message    string    `json:"message"`
	Active     bool      `json:"active"`
	OccurredAt time.Time `json:"occurred_at"`
	CreatedAt  time.Time `json:"created_at"`
}
