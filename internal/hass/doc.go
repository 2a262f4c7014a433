// Package hass renders BragerConnect devices as Home Assistant MQTT
// discovery entities.
//
// Home Assistant learns about entities from retained config payloads
// published under its discovery prefix:
//
//	homeassistant/<platform>/<devid>/<object_id>/config
//
// Each config points Home Assistant at the bridge's own topics for
// state, availability and (for switches) commands:
//
//	┌───────────────┐  config   ┌────────────────┐
//	│ bridge (this) │──────────▶│ Home Assistant │
//	└───────┬───────┘           └───────┬────────┘
//	        │ state/availability        │ set
//	        ▼                           ▼
//	  bragerconnect/state/...    bragerconnect/set/...
//
// # Key Responsibilities
//
//   - Entity catalogue: derive the set of sensors, binary sensors and
//     switches a controller exposes from its parameter pool, using the
//     per-parameter status bits to skip absent or inactive hardware.
//   - Discovery payloads: build the retained config JSON for each
//     entity, including the shared device block and availability topic.
//   - State rendering: turn raw pool values into the strings published
//     on state topics (scaled numbers, on/off, status words).
//
// # Thread Safety
//
// All functions are pure over their inputs. Entities and payloads are
// value types; callers may use them from any goroutine.
package hass
