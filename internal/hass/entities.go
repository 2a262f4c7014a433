package hass

import (
	"strconv"

	"github.com/marpi82/bragerconnect-core/internal/brager"
)

// ValueKind selects how an entity's state is derived from the pool.
type ValueKind int

const (
	// ValueNumber reads a value-channel field, scales and rounds it.
	ValueNumber ValueKind = iota
	// ValueRunning decodes a status-channel field as on/off activity.
	ValueRunning
	// ValueBoilerState renders the boiler status word.
	ValueBoilerState
	// ValuePelletState renders the pellet burner status word.
	ValuePelletState
	// ValueFuelTotal combines the 16-bit fuel counter pair into tonnes.
	ValueFuelTotal
	// ValuePower reads the boiler power field with its dynamic scale.
	ValuePower
	// ValueProblem raises when the device has any active alarm.
	ValueProblem
	// ValueOnOff renders a value-channel field as ON when non-zero.
	ValueOnOff
)

// Entity describes one Home Assistant entity derived from a device's
// parameter pool.
type Entity struct {
	Platform    string
	ObjectID    string
	Name        string
	DeviceClass string
	StateClass  string
	Unit        string
	Icon        string

	Kind   ValueKind
	Source brager.FieldRef
	// Command is the pool field a switch writes to; nil otherwise.
	Command *brager.FieldRef
	// Scale multiplies numeric readings; zero means 1.
	Scale float64
	// Decimals rounds numeric readings; negative keeps full precision.
	Decimals int
}

// Writable reports whether the entity accepts commands.
func (e Entity) Writable() bool {
	return e.Command != nil
}

// StateValue renders the entity's current state from the device
// snapshot. ok is false when the backing field is missing or
// undecodable, in which case nothing should be published.
func (e Entity) StateValue(dev *brager.Device) (string, bool) {
	if dev == nil || dev.Pool == nil {
		return "", false
	}
	pool := dev.Pool

	switch e.Kind {
	case ValueNumber:
		v, ok := pool.GetNumber(e.Source.Pool, e.Source.Field, brager.ChannelValue)
		if !ok {
			return "", false
		}
		return formatNumber(applyScale(v, e.Scale), e.Decimals), true

	case ValuePower:
		v, ok := pool.GetNumber(e.Source.Pool, e.Source.Field, brager.ChannelValue)
		if !ok {
			return "", false
		}
		_, multiplier := brager.PowerScale(pool)
		return formatNumber(v*multiplier, 1), true

	case ValueRunning:
		raw, ok := pool.Get(e.Source.Pool, e.Source.Field, brager.ChannelStatus)
		if !ok {
			return "", false
		}
		ts, ok := brager.DecodeTestStatus(raw)
		if !ok {
			return "", false
		}
		return onOff(ts.Running()), true

	case ValueBoilerState:
		raw, ok := pool.Get(e.Source.Pool, e.Source.Field, brager.ChannelStatus)
		if !ok {
			return "", false
		}
		bs, ok := brager.DecodeBoilerStatus(raw)
		if !ok {
			return "", false
		}
		return bs.String(), true

	case ValuePelletState:
		raw, ok := pool.Get(e.Source.Pool, e.Source.Field, brager.ChannelStatus)
		if !ok {
			return "", false
		}
		ps, ok := brager.DecodePelletStatus(raw)
		if !ok {
			return "", false
		}
		return ps.String(), true

	case ValueFuelTotal:
		low, okLow := pool.GetNumber(4, 61, brager.ChannelValue)
		high, okHigh := pool.GetNumber(4, 62, brager.ChannelValue)
		if !okLow || !okHigh {
			return "", false
		}
		return strconv.FormatFloat(brager.FuelConsumedTotal(low, high), 'f', 3, 64), true

	case ValueProblem:
		return onOff(len(dev.ActiveAlarms()) > 0), true

	case ValueOnOff:
		v, ok := pool.GetNumber(e.Source.Pool, e.Source.Field, brager.ChannelValue)
		if !ok {
			return "", false
		}
		return onOff(v != 0), true
	}

	return "", false
}

func applyScale(v, scale float64) float64 {
	if scale == 0 {
		return v
	}
	return v * scale
}

func formatNumber(v float64, decimals int) string {
	if decimals < 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func onOff(b bool) string {
	if b {
		return PayloadOn
	}
	return PayloadOff
}

// valveBlock holds the per-valve parameter layout. Sixth entry is the
// auxiliary 1.2 circuit present on some controllers.
type valveBlock struct {
	label       string
	temperature int // P4 value/status
	valve       int // P5 status
	valvePump   int // P5 status
	mode        int // P6 enable parameter
}

var valveBlocks = []valveBlock{
	{"valve_1", 5, 20, 21, 52},
	{"valve_2", 9, 25, 26, 79},
	{"valve_3", 10, 28, 29, 91},
	{"valve_4", 11, 31, 32, 103},
	{"valve_5", 12, 34, 35, 115},
	{"valve_1_2", 46, 51, 52, 305},
}

// Catalogue derives the entity set for one device snapshot. Entities
// whose backing hardware reports absent or inactive are left out, so
// the set can change between polls when modules are added or removed.
func Catalogue(dev *brager.Device) []Entity {
	if dev == nil || dev.Pool == nil {
		return nil
	}
	pool := dev.Pool

	present := func(poolNo, fieldNo int) bool {
		raw, ok := pool.Get(poolNo, fieldNo, brager.ChannelStatus)
		if !ok {
			return false
		}
		return brager.DetectPresence(raw).Available()
	}

	var out []Entity

	// fieldUnit resolves the pool's unit channel for a field, falling
	// back to the catalogue default when the controller sends none.
	fieldUnit := func(poolNo, fieldNo int, fallback string) string {
		if n, ok := pool.GetNumber(poolNo, fieldNo, brager.ChannelUnit); ok {
			if name := UnitName(int(n)); name != "" {
				return name
			}
		}
		return fallback
	}

	temp := func(objectID, name string, poolNo, fieldNo int) {
		out = append(out, Entity{
			Platform:    PlatformSensor,
			ObjectID:    objectID,
			Name:        name,
			DeviceClass: "temperature",
			StateClass:  "measurement",
			Unit:        fieldUnit(poolNo, fieldNo, "°C"),
			Kind:        ValueNumber,
			Source:      brager.FieldRef{Pool: poolNo, Channel: brager.ChannelValue, Field: fieldNo},
			Decimals:    1,
		})
	}
	running := func(objectID, name string, fieldNo int) {
		out = append(out, Entity{
			Platform:    PlatformBinarySensor,
			ObjectID:    objectID,
			Name:        name,
			DeviceClass: "running",
			Kind:        ValueRunning,
			Source:      brager.FieldRef{Pool: 5, Channel: brager.ChannelStatus, Field: fieldNo},
		})
	}

	// Outdoor sensor has no status gate; only the reading shows it.
	if _, ok := pool.GetNumber(4, 4, brager.ChannelValue); ok {
		temp("external_temperature", "External temperature", 4, 4)
	}

	if present(4, 0) {
		temp("boiler_temperature", "Boiler temperature", 4, 0)
		if present(4, 3) {
			temp("feeder_temperature", "Feeder temperature", 4, 3)
		}
		out = append(out, Entity{
			Platform: PlatformSensor,
			ObjectID: "boiler_state",
			Name:     "Boiler state",
			Icon:     "mdi:fire",
			Kind:     ValueBoilerState,
			Source:   brager.FieldRef{Pool: 5, Channel: brager.ChannelStatus, Field: 0},
		})
		switch dev.BoilerType() {
		case brager.BoilerPellet:
			out = append(out, Entity{
				Platform: PlatformSensor,
				ObjectID: "pellet_state",
				Name:     "Pellet burner state",
				Icon:     "mdi:fire-circle",
				Kind:     ValuePelletState,
				Source:   brager.FieldRef{Pool: 5, Channel: brager.ChannelStatus, Field: 5},
			})
		case brager.BoilerFeeder:
			running("feeder", "Feeder", 10)
			running("feeder_2", "Feeder 2", 13)
		}
	}

	if present(4, 14) {
		unit, _ := brager.PowerScale(pool)
		out = append(out, Entity{
			Platform:    PlatformSensor,
			ObjectID:    "boiler_power",
			Name:        "Boiler power",
			DeviceClass: "power",
			StateClass:  "measurement",
			Unit:        unit,
			Kind:        ValuePower,
			Source:      brager.FieldRef{Pool: 4, Channel: brager.ChannelValue, Field: 14},
		})
		if present(4, 61) {
			out = append(out, Entity{
				Platform:   PlatformSensor,
				ObjectID:   "fuel_consumed_total",
				Name:       "Fuel consumed",
				StateClass: "total_increasing",
				Unit:       fieldUnit(4, 61, "t"),
				Icon:       "mdi:weight",
				Kind:       ValueFuelTotal,
			})
		}
		running("burner", "Burner", 10)
	}

	if _, ok := brager.FuelLevel(pool); ok {
		out = append(out, Entity{
			Platform:   PlatformSensor,
			ObjectID:   "fuel_level",
			Name:       "Fuel level",
			StateClass: "measurement",
			Unit:       fieldUnit(6, 34, "%"),
			Icon:       "mdi:gauge",
			Kind:       ValueNumber,
			Source:     brager.FieldRef{Pool: 6, Channel: brager.ChannelValue, Field: 34},
			Decimals:   0,
		})
	}

	if present(4, 1) {
		temp("return_temperature", "Return temperature", 4, 1)
		running("return_pump", "Return pump", 12)
	}

	if present(4, 6) {
		temp("buffer_top_temperature", "Buffer top temperature", 4, 6)
		if present(4, 30) {
			temp("buffer_bottom_temperature", "Buffer bottom temperature", 4, 30)
		}
		running("buffer_pump", "Buffer pump", 23)
	}

	if present(4, 2) {
		temp("dhw_temperature", "Hot water temperature", 4, 2)
		running("dhw_pump", "Hot water pump", 11)
	}

	for _, vb := range valveBlocks {
		if !present(4, vb.temperature) {
			continue
		}
		temp(vb.label+"_temperature", entityLabel(vb.label)+" temperature", 4, vb.temperature)
		running(vb.label, entityLabel(vb.label), vb.valve)
		running(vb.label+"_pump", entityLabel(vb.label)+" pump", vb.valvePump)

		if raw, ok := pool.Get(6, vb.mode, brager.ChannelStatus); ok &&
			brager.DetectParamAccess(raw) == brager.ParamWritable {
			cmd := brager.FieldRef{Pool: 6, Channel: brager.ChannelValue, Field: vb.mode}
			out = append(out, Entity{
				Platform: PlatformSwitch,
				ObjectID: vb.label + "_active",
				Name:     entityLabel(vb.label) + " active",
				Icon:     "mdi:valve",
				Kind:     ValueOnOff,
				Source:   cmd,
				Command:  &cmd,
			})
		}
	}

	if present(4, 28) {
		temp("circuit_temperature", "Heating circuit temperature", 4, 28)
		if present(4, 25) {
			temp("circuit_2_temperature", "Heating circuit 2 temperature", 4, 25)
		}
	}

	if present(17, 0) {
		temp("thermostat_temperature", "Thermostat temperature", 17, 0)
	}

	// Alarm indicator is unconditional; every controller reports alarms.
	out = append(out, Entity{
		Platform:    PlatformBinarySensor,
		ObjectID:    "alarm",
		Name:        "Alarm",
		DeviceClass: "problem",
		Kind:        ValueProblem,
	})

	if raw, ok := pool.Get(6, 0, brager.ChannelStatus); ok && brager.RemoteSwitchable(raw) {
		cmd := brager.FieldRef{Pool: 6, Channel: brager.ChannelValue, Field: 0}
		out = append(out, Entity{
			Platform: PlatformSwitch,
			ObjectID: "boiler_active",
			Name:     "Boiler active",
			Icon:     "mdi:power",
			Kind:     ValueOnOff,
			Source:   cmd,
			Command:  &cmd,
		})
	}

	return out
}

// FindEntity returns the catalogue entry with the given object ID.
func FindEntity(entities []Entity, objectID string) (Entity, bool) {
	for _, e := range entities {
		if e.ObjectID == objectID {
			return e, true
		}
	}
	return Entity{}, false
}

// entityLabel turns an object ID fragment into a display label, e.g.
// "valve_1_2" becomes "Valve 1.2".
func entityLabel(id string) string {
	switch id {
	case "valve_1_2":
		return "Valve 1.2"
	case "valve_1", "valve_2", "valve_3", "valve_4", "valve_5":
		return "Valve " + id[len(id)-1:]
	}
	return id
}
