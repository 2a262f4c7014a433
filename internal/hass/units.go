package hass

// unitNames maps the unit channel number from a parameter pool to an
// English unit string. The cloud serves localised unit files per
// language; this table covers the units the entity catalogue uses.
var unitNames = map[int]string{
	0: "",
	1: "°C",
	2: "%",
	3: "kW",
	4: "h",
	5: "kg",
	6: "t",
}

// UnitName returns the display unit for a pool unit number. Unknown
// numbers return an empty string so entities fall back to unitless.
func UnitName(unit int) string {
	return unitNames[unit]
}
