package brager

import "math"

// Presence describes whether a parameter block is fitted and active.
// Derived from the parameter's status bits: bit 1 set means the block
// is absent, bit 2 set means fitted but inactive.
type Presence int

const (
	PresenceAbsent   Presence = 0
	PresencePresent  Presence = 1
	PresenceInactive Presence = 3
)

// DetectPresence decodes the presence of a parameter from its status
// channel. A missing status reads as absent.
func DetectPresence(status any) Presence {
	s, ok := toInt(status)
	if !ok || s&(1<<1) != 0 {
		return PresenceAbsent
	}
	if s&(1<<2) != 0 {
		return PresenceInactive
	}
	return PresencePresent
}

// Available reports whether the block should be exposed at all
// (present or inactive, but fitted).
func (p Presence) Available() bool {
	return p != PresenceAbsent
}

// ParamAccess describes whether a parameter may be written.
type ParamAccess int

const (
	ParamHidden   ParamAccess = 0
	ParamWritable ParamAccess = 1
	ParamBlocked  ParamAccess = 2
)

// DetectParamAccess decodes write access from a parameter's status
// bits: bit 0 hides the parameter, bit 1 blocks writes.
func DetectParamAccess(status any) ParamAccess {
	s, ok := toInt(status)
	if !ok {
		return ParamHidden
	}
	if s&(1<<0) != 0 {
		return ParamHidden
	}
	if s&(1<<1) != 0 {
		return ParamBlocked
	}
	return ParamWritable
}

// RemoteSwitchable reports whether the parameter supports remote
// on/off control (bit 4 of its status).
func RemoteSwitchable(status any) bool {
	s, ok := toInt(status)
	return ok && s&(1<<4) != 0
}

// PumpRunning decodes a pump run indication (bit 1 or bit 3).
func PumpRunning(status any) bool {
	s, ok := toInt(status)
	return ok && (s&(1<<1) != 0 || s&(1<<3) != 0)
}

// BoilerType classifies the controller's boiler.
type BoilerType int

const (
	BoilerOther  BoilerType = 0
	BoilerFeeder BoilerType = 1
	BoilerPellet BoilerType = 2
)

// String returns the boiler type name used in MQTT payloads and the
// device registry.
func (t BoilerType) String() string {
	switch t {
	case BoilerPellet:
		return "pellet"
	case BoilerFeeder:
		return "feeder"
	default:
		return "other"
	}
}

// DetectBoilerType classifies the boiler from the P5 status block:
// P5.s39 bit 0 marks a pellet boiler, P5.s13 bit 0 a feeder boiler.
func DetectBoilerType(pool *Pool) BoilerType {
	if statusBitSet(pool, 5, 39) {
		return BoilerPellet
	}
	if statusBitSet(pool, 5, 13) {
		return BoilerFeeder
	}
	return BoilerOther
}

func statusBitSet(pool *Pool, poolNo, fieldNo int) bool {
	s, ok := pool.GetInt(poolNo, fieldNo, ChannelStatus)
	return ok && s&1 == 1
}

// BoilerStatus is the operating state decoded from P5.s0.
type BoilerStatus int

const (
	BoilerStopped         BoilerStatus = 0
	BoilerWorking         BoilerStatus = 1
	BoilerManual          BoilerStatus = 2
	BoilerError           BoilerStatus = 3
	BoilerLighting        BoilerStatus = 4
	BoilerDHWPriority     BoilerStatus = 5
	BoilerTest            BoilerStatus = 6
	BoilerDHWPreparation  BoilerStatus = 7
	BoilerNoStatus        BoilerStatus = 8
	BoilerDHWDisinfection BoilerStatus = 9
	BoilerNoFuel          BoilerStatus = 10
)

// String returns the status name published on state topics.
func (s BoilerStatus) String() string {
	switch s {
	case BoilerStopped:
		return "stopped"
	case BoilerWorking:
		return "working"
	case BoilerManual:
		return "manual"
	case BoilerError:
		return "error"
	case BoilerLighting:
		return "lighting"
	case BoilerDHWPriority:
		return "dhw_priority"
	case BoilerTest:
		return "test"
	case BoilerDHWPreparation:
		return "dhw_preparation"
	case BoilerNoStatus:
		return "no_status"
	case BoilerDHWDisinfection:
		return "dhw_disinfection"
	case BoilerNoFuel:
		return "no_fuel"
	default:
		return "unknown"
	}
}

// DecodeBoilerStatus decodes the boiler state word. The lowest set
// bit wins, matching the controller's priority ordering.
func DecodeBoilerStatus(status any) (BoilerStatus, bool) {
	s, ok := toInt(status)
	if !ok {
		return 0, false
	}
	if s == 0 {
		return BoilerStopped, true
	}
	bits := []struct {
		bit    uint
		status BoilerStatus
	}{
		{0, BoilerWorking},
		{1, BoilerManual},
		{2, BoilerError},
		{3, BoilerLighting},
		{4, BoilerDHWPriority},
		{5, BoilerTest},
		{6, BoilerDHWPreparation},
		{7, BoilerNoStatus},
		{9, BoilerDHWDisinfection},
		{10, BoilerNoFuel},
	}
	for _, b := range bits {
		if s&(1<<b.bit) != 0 {
			return b.status, true
		}
	}
	return 0, false
}

// PelletStatus is the burner state for pellet boilers, carried in the
// 3-bit group starting at bit 8 of the status word.
type PelletStatus int

const (
	PelletStopped    PelletStatus = 0
	PelletCleaning   PelletStatus = 1
	PelletLighting   PelletStatus = 2
	PelletWorking    PelletStatus = 3
	PelletPuttingOut PelletStatus = 4
	PelletStop       PelletStatus = 5
	PelletSustaining PelletStatus = 6
)

// String returns the status name published on state topics.
func (s PelletStatus) String() string {
	switch s {
	case PelletStopped:
		return "stopped"
	case PelletCleaning:
		return "cleaning"
	case PelletLighting:
		return "lighting"
	case PelletWorking:
		return "working"
	case PelletPuttingOut:
		return "putting_out"
	case PelletStop:
		return "stop"
	case PelletSustaining:
		return "sustaining"
	default:
		return "unknown"
	}
}

// DecodePelletStatus extracts the pellet burner state. Only valid for
// pellet boilers; the caller gates on DetectBoilerType.
func DecodePelletStatus(status any) (PelletStatus, bool) {
	s, ok := toInt(status)
	if !ok {
		return 0, false
	}
	group := (s >> 8) & 0x7
	if s == 0 {
		return PelletStopped, true
	}
	if group > int(PelletSustaining) {
		return 0, false
	}
	return PelletStatus(group), true
}

// TestStatus is the generic run state of pumps, valves and external
// I/O decoded from their status words.
type TestStatus int

const (
	TestOff       TestStatus = 0
	TestOn        TestStatus = 1
	TestAvailable TestStatus = 3
	TestClosing   TestStatus = 4
	TestError     TestStatus = 5
	TestZones     TestStatus = 6
	TestNoStatus  TestStatus = 7
)

// String returns the status name published on state topics.
func (s TestStatus) String() string {
	switch s {
	case TestOff:
		return "off"
	case TestOn:
		return "on"
	case TestAvailable:
		return "available"
	case TestClosing:
		return "closing"
	case TestError:
		return "error"
	case TestZones:
		return "zones"
	case TestNoStatus:
		return "no_status"
	default:
		return "unknown"
	}
}

// Running reports whether the state counts as actively running.
func (s TestStatus) Running() bool {
	return s == TestOn || s == TestClosing
}

// DecodeTestStatus decodes a pump/valve/IO status word. Bit priority
// follows the controller: closing beats on beats available.
func DecodeTestStatus(status any) (TestStatus, bool) {
	s, ok := toInt(status)
	if !ok {
		return 0, false
	}
	switch {
	case s == 0:
		return TestOff, true
	case s&(1<<2) != 0:
		return TestClosing, true
	case s&(1<<1) != 0:
		return TestOn, true
	case s&(1<<3) != 0:
		return TestOn, true
	case s&(1<<0) != 0:
		return TestAvailable, true
	case s&(1<<4) != 0:
		return TestClosing, true
	case s&(1<<5) != 0:
		return TestError, true
	case s&(1<<6) != 0:
		return TestZones, true
	case s&(1<<7) != 0:
		return TestNoStatus, true
	default:
		return 0, false
	}
}

// PowerScale returns the unit and multiplier for the boiler power
// parameter P4.14. Controllers report kW directly when P4.s14 is 31
// or P6.s152 is set; older firmware reports tenths of a kW.
func PowerScale(pool *Pool) (unit string, multiplier float64) {
	s14, _ := pool.GetInt(4, 14, ChannelStatus)
	s152, _ := pool.GetInt(6, 152, ChannelStatus)
	if s14 == 31 || s152 != 0 {
		return "kW", 1
	}
	return "kW", 0.1
}

// FuelConsumedTotal computes the lifetime fuel consumption in tonnes
// from the 16-bit low word P4.v61 and high word P4.v62. The low word
// wraps as a signed 16-bit value on some controllers.
func FuelConsumedTotal(low, high float64) float64 {
	if low < 0 {
		low += 65536
	}
	total := (low + 65536*high) / 1000
	return math.Round(total*1000) / 1000
}

// FuelLevel returns the pellet hopper level percentage (P6.v34).
func FuelLevel(pool *Pool) (float64, bool) {
	return pool.GetNumber(6, 34, ChannelValue)
}

// toInt coerces a JSON scalar to int for bit testing.
func toInt(v any) (int, bool) {
	f, ok := asNumber(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
