package brager

import (
	"fmt"
	"strconv"
)

// DeviceInfo holds the account-level record for one controller as
// returned by s_getMyDevIdList.
type DeviceInfo struct {
	DevID               string
	Username            string
	SharedFromName      string
	DistrGroup          string
	PermGroupID         int
	PermissionsEnabled  bool
	Accepted            bool
	Verified            bool
	Name                string
	Description         string
	ProducerPermissions int
	ProducerCode        int
	WarrantyVoid        *bool
	LastActivityTime    int
	Alert               bool
}

// ParseDeviceInfo converts one s_getMyDevIdList record. The devid and
// username are mandatory; the cloud sends empty strings for unset
// names which are normalised away.
func ParseDeviceInfo(data map[string]any) (DeviceInfo, error) {
	if len(data) == 0 {
		return DeviceInfo{}, fmt.Errorf("%w: empty device record", ErrInvalidResponse)
	}

	devid := asString(data["devid"])
	username := asString(data["username"])
	if devid == "" || username == "" {
		return DeviceInfo{}, fmt.Errorf("%w: device record missing devid or username", ErrInvalidResponse)
	}

	info := DeviceInfo{
		DevID:               devid,
		Username:            username,
		SharedFromName:      asString(data["sharedfrom_name"]),
		DistrGroup:          asString(data["distr_group"]),
		PermGroupID:         asIntOrZero(data["id_perm_group"]),
		PermissionsEnabled:  asBool(data["permissions_enabled"]),
		Accepted:            asBool(data["accepted"]),
		Verified:            asBool(data["verified"]),
		Name:                asString(data["name"]),
		Description:         asString(data["description"]),
		ProducerPermissions: asIntOrZero(data["producer_permissions"]),
		ProducerCode:        asIntOrZero(data["producer_code"]),
		LastActivityTime:    asIntOrZero(data["last_activity_time"]),
		Alert:               asBool(data["alert"]),
	}

	if v, ok := data["warranty_void"]; ok && v != nil {
		b := asBool(v)
		info.WarrantyVoid = &b
	}

	return info, nil
}

// DisplayName returns the user-assigned name, falling back to the
// device identifier.
func (i DeviceInfo) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.DevID
}

// Task is one entry of the controller's task queue.
type Task struct {
	ID              int
	ModuleID        int
	Type            string
	State           int
	ResultSent      int
	UserOwner       string
	ProducerApp     int
	CreateTimestamp int64
	StartTimestamp  int64
	EndTimestamp    int64
	EndCause        int
	Nr              int
	Value           int
	Name            string
	StartedAt       string
	FinishedAt      string
	CreatedAt       string
	UpdatedAt       string
}

// ParseTask converts one task queue record.
func ParseTask(data map[string]any) (Task, error) {
	if len(data) == 0 {
		return Task{}, fmt.Errorf("%w: empty task record", ErrInvalidResponse)
	}
	return Task{
		ID:              asIntOrZero(data["id"]),
		ModuleID:        asIntOrZero(data["module_id"]),
		Type:            asString(data["type"]),
		State:           asIntOrZero(data["state"]),
		ResultSent:      asIntOrZero(data["result_sent"]),
		UserOwner:       asString(data["user_owner"]),
		ProducerApp:     asIntOrZero(data["producerApp"]),
		CreateTimestamp: int64(asIntOrZero(data["create_timestamp"])),
		StartTimestamp:  int64(asIntOrZero(data["start_timestamp"])),
		EndTimestamp:    int64(asIntOrZero(data["end_timestamp"])),
		EndCause:        asIntOrZero(data["end_cause"]),
		Nr:              asIntOrZero(data["nr"]),
		Value:           asIntOrZero(data["value"]),
		Name:            asString(data["name"]),
		StartedAt:       asString(data["started_at"]),
		FinishedAt:      asString(data["finished_at"]),
		CreatedAt:       asString(data["created_at"]),
		UpdatedAt:       asString(data["updated_at"]),
	}, nil
}

// Alarm is one entry of the controller's extended alarm list.
type Alarm struct {
	Name      string
	Raised    bool
	Timestamp int64
}

// ParseAlarm converts one alarm list record.
func ParseAlarm(data map[string]any) (Alarm, error) {
	if len(data) == 0 {
		return Alarm{}, fmt.Errorf("%w: empty alarm record", ErrInvalidResponse)
	}
	name := asString(data["name"])
	if name == "" {
		return Alarm{}, fmt.Errorf("%w: alarm record missing name", ErrInvalidResponse)
	}
	return Alarm{
		Name:      name,
		Raised:    asBool(data["value"]),
		Timestamp: int64(asIntOrZero(data["timestamp"])),
	}, nil
}

// Device is a full snapshot of one controller: its account record,
// parameter pools, task queue and alarms.
type Device struct {
	Info   DeviceInfo
	Pool   *Pool
	Tasks  []Task
	Alarms []Alarm
}

// BoilerType classifies the snapshot's boiler.
func (d *Device) BoilerType() BoilerType {
	if d.Pool == nil {
		return BoilerOther
	}
	return DetectBoilerType(d.Pool)
}

// ActiveAlarms returns the alarms currently raised.
func (d *Device) ActiveAlarms() []Alarm {
	var active []Alarm
	for _, a := range d.Alarms {
		if a.Raised {
			active = append(active, a)
		}
	}
	return active
}

// asString normalises cloud string fields: nil and non-strings
// become "".
func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asBool interprets the cloud's mixed bool/0/1 encoding.
func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case float64:
		return b != 0
	case int:
		return b != 0
	default:
		return false
	}
}

// asIntOrZero coerces numeric and numeric-string fields
// (producer_code arrives as "67") to int.
func asIntOrZero(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}
