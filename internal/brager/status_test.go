package brager

import "testing"

// =============================================================================
// Presence Tests
// =============================================================================

func TestDetectPresence(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		expected Presence
	}{
		{"nil status", nil, PresenceAbsent},
		{"absent bit set", float64(1 << 1), PresenceAbsent},
		{"absent wins over inactive", float64(1<<1 | 1<<2), PresenceAbsent},
		{"inactive bit set", float64(1 << 2), PresenceInactive},
		{"zero status", float64(0), PresencePresent},
		{"present with other bits", float64(1 << 4), PresencePresent},
		{"non numeric", "x", PresenceAbsent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectPresence(tt.status); got != tt.expected {
				t.Errorf("DetectPresence(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestPresenceAvailable(t *testing.T) {
	if PresenceAbsent.Available() {
		t.Error("PresenceAbsent.Available() = true")
	}
	if !PresencePresent.Available() {
		t.Error("PresencePresent.Available() = false")
	}
	if !PresenceInactive.Available() {
		t.Error("PresenceInactive.Available() = false")
	}
}

// =============================================================================
// Parameter Access Tests
// =============================================================================

func TestDetectParamAccess(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		expected ParamAccess
	}{
		{"nil status", nil, ParamHidden},
		{"hidden bit", float64(1 << 0), ParamHidden},
		{"hidden wins over blocked", float64(1<<0 | 1<<1), ParamHidden},
		{"blocked bit", float64(1 << 1), ParamBlocked},
		{"writable", float64(0), ParamWritable},
		{"writable with remote bit", float64(1 << 4), ParamWritable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectParamAccess(tt.status); got != tt.expected {
				t.Errorf("DetectParamAccess(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestRemoteSwitchable(t *testing.T) {
	if !RemoteSwitchable(float64(1 << 4)) {
		t.Error("RemoteSwitchable(bit4) = false, want true")
	}
	if RemoteSwitchable(float64(0)) {
		t.Error("RemoteSwitchable(0) = true, want false")
	}
	if RemoteSwitchable(nil) {
		t.Error("RemoteSwitchable(nil) = true, want false")
	}
}

func TestPumpRunning(t *testing.T) {
	if !PumpRunning(float64(1 << 1)) {
		t.Error("PumpRunning(bit1) = false, want true")
	}
	if !PumpRunning(float64(1 << 3)) {
		t.Error("PumpRunning(bit3) = false, want true")
	}
	if PumpRunning(float64(1 << 2)) {
		t.Error("PumpRunning(bit2) = true, want false")
	}
}

// =============================================================================
// Boiler Type Tests
// =============================================================================

func TestDetectBoilerType(t *testing.T) {
	tests := []struct {
		name     string
		s39      any
		s13      any
		expected BoilerType
	}{
		{"pellet", float64(1), nil, BoilerPellet},
		{"pellet wins over feeder", float64(1), float64(1), BoilerPellet},
		{"feeder", float64(0), float64(1), BoilerFeeder},
		{"other", float64(0), float64(0), BoilerOther},
		{"no status fields", nil, nil, BoilerOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool()
			if tt.s39 != nil {
				pool.Set(5, 39, ChannelStatus, tt.s39)
			}
			if tt.s13 != nil {
				pool.Set(5, 13, ChannelStatus, tt.s13)
			}
			if got := DetectBoilerType(pool); got != tt.expected {
				t.Errorf("DetectBoilerType() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBoilerTypeString(t *testing.T) {
	tests := []struct {
		boilerType BoilerType
		expected   string
	}{
		{BoilerPellet, "pellet"},
		{BoilerFeeder, "feeder"},
		{BoilerOther, "other"},
	}
	for _, tt := range tests {
		if got := tt.boilerType.String(); got != tt.expected {
			t.Errorf("BoilerType(%d).String() = %q, want %q", int(tt.boilerType), got, tt.expected)
		}
	}
}

// =============================================================================
// Boiler Status Tests
// =============================================================================

func TestDecodeBoilerStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		expected BoilerStatus
		ok       bool
	}{
		{"stopped", float64(0), BoilerStopped, true},
		{"working", float64(1 << 0), BoilerWorking, true},
		{"manual", float64(1 << 1), BoilerManual, true},
		{"error", float64(1 << 2), BoilerError, true},
		{"lighting", float64(1 << 3), BoilerLighting, true},
		{"dhw priority", float64(1 << 4), BoilerDHWPriority, true},
		{"test", float64(1 << 5), BoilerTest, true},
		{"dhw preparation", float64(1 << 6), BoilerDHWPreparation, true},
		{"no status", float64(1 << 7), BoilerNoStatus, true},
		{"dhw disinfection", float64(1 << 9), BoilerDHWDisinfection, true},
		{"no fuel", float64(1 << 10), BoilerNoFuel, true},
		{"low bit wins", float64(1<<0 | 1<<10), BoilerWorking, true},
		{"bit 8 unassigned", float64(1 << 8), 0, false},
		{"non numeric", "x", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeBoilerStatus(tt.status)
			if ok != tt.ok {
				t.Fatalf("DecodeBoilerStatus(%v) ok = %v, want %v", tt.status, ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("DecodeBoilerStatus(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestBoilerStatusString(t *testing.T) {
	if got := BoilerDHWPriority.String(); got != "dhw_priority" {
		t.Errorf("String() = %q, want dhw_priority", got)
	}
	if got := BoilerNoFuel.String(); got != "no_fuel" {
		t.Errorf("String() = %q, want no_fuel", got)
	}
}

// =============================================================================
// Pellet Status Tests
// =============================================================================

func TestDecodePelletStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		expected PelletStatus
		ok       bool
	}{
		{"stopped at zero", float64(0), PelletStopped, true},
		{"cleaning", float64(1 << 8), PelletCleaning, true},
		{"lighting", float64(2 << 8), PelletLighting, true},
		{"working", float64(3 << 8), PelletWorking, true},
		{"putting out", float64(4 << 8), PelletPuttingOut, true},
		{"stop", float64(5 << 8), PelletStop, true},
		{"sustaining", float64(6 << 8), PelletSustaining, true},
		{"group out of range", float64(7 << 8), 0, false},
		{"low bits ignored", float64(3<<8 | 1), PelletWorking, true},
		{"non numeric", "x", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodePelletStatus(tt.status)
			if ok != tt.ok {
				t.Fatalf("DecodePelletStatus(%v) ok = %v, want %v", tt.status, ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("DecodePelletStatus(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

// =============================================================================
// Test Status Tests
// =============================================================================

func TestDecodeTestStatus(t *testing.T) {
	tests := []struct {
		name     string
		status   any
		expected TestStatus
		ok       bool
	}{
		{"off", float64(0), TestOff, true},
		{"closing bit2 wins", float64(1<<2 | 1<<1), TestClosing, true},
		{"on bit1", float64(1 << 1), TestOn, true},
		{"on bit3", float64(1 << 3), TestOn, true},
		{"available", float64(1 << 0), TestAvailable, true},
		{"closing bit4", float64(1 << 4), TestClosing, true},
		{"error", float64(1 << 5), TestError, true},
		{"zones", float64(1 << 6), TestZones, true},
		{"no status", float64(1 << 7), TestNoStatus, true},
		{"non numeric", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DecodeTestStatus(tt.status)
			if ok != tt.ok {
				t.Fatalf("DecodeTestStatus(%v) ok = %v, want %v", tt.status, ok, tt.ok)
			}
			if ok && got != tt.expected {
				t.Errorf("DecodeTestStatus(%v) = %v, want %v", tt.status, got, tt.expected)
			}
		})
	}
}

func TestTestStatusRunning(t *testing.T) {
	if !TestOn.Running() {
		t.Error("TestOn.Running() = false")
	}
	if !TestClosing.Running() {
		t.Error("TestClosing.Running() = false")
	}
	if TestOff.Running() {
		t.Error("TestOff.Running() = true")
	}
	if TestAvailable.Running() {
		t.Error("TestAvailable.Running() = true")
	}
}

// =============================================================================
// Derived Value Tests
// =============================================================================

func TestPowerScale(t *testing.T) {
	tests := []struct {
		name       string
		s14        any
		s152       any
		multiplier float64
	}{
		{"direct kW via s14", float64(31), nil, 1},
		{"direct kW via s152", float64(0), float64(1), 1},
		{"tenths of kW", float64(0), float64(0), 0.1},
		{"no status fields", nil, nil, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := NewPool()
			if tt.s14 != nil {
				pool.Set(4, 14, ChannelStatus, tt.s14)
			}
			if tt.s152 != nil {
				pool.Set(6, 152, ChannelStatus, tt.s152)
			}
			unit, mult := PowerScale(pool)
			if unit != "kW" {
				t.Errorf("unit = %q, want kW", unit)
			}
			if mult != tt.multiplier {
				t.Errorf("multiplier = %v, want %v", mult, tt.multiplier)
			}
		})
	}
}

func TestFuelConsumedTotal(t *testing.T) {
	tests := []struct {
		name     string
		low      float64
		high     float64
		expected float64
	}{
		{"simple", 1234, 0, 1.234},
		{"with high word", 1000, 2, 132.072},
		{"negative low wraps", -1000, 1, 130.072},
		{"zero", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FuelConsumedTotal(tt.low, tt.high)
			if got != tt.expected {
				t.Errorf("FuelConsumedTotal(%v, %v) = %v, want %v", tt.low, tt.high, got, tt.expected)
			}
		})
	}
}

func TestFuelLevel(t *testing.T) {
	pool := NewPool()
	pool.Set(6, 34, ChannelValue, 62.0)

	level, ok := FuelLevel(pool)
	if !ok || level != 62.0 {
		t.Errorf("FuelLevel() = %v (%v), want 62.0", level, ok)
	}

	empty := NewPool()
	if _, ok := FuelLevel(empty); ok {
		t.Error("FuelLevel() ok = true for empty pool")
	}
}
