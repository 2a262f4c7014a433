// Package bridge connects the BragerConnect cloud to MQTT.
//
// The bridge is the service core. It polls full device snapshots from
// the cloud on a fixed interval and translates them into retained MQTT
// state, Home Assistant discovery documents, availability flags and
// alarm notifications. In the opposite direction it subscribes to the
// command topic tree, validates each command against the entity
// catalogue and writes accepted values back to the controller.
//
// Architecture:
//
//	┌─────────────┐   poll    ┌────────────┐  publish  ┌────────────┐
//	│ Brager cloud│──────────>│   Bridge   │──────────>│MQTT broker │
//	│  (wrkfnc)   │<──────────│            │<──────────│            │
//	└─────────────┘  writes   └─────┬──────┘  commands └────────────┘
//	                                │
//	                   ┌────────────┼────────────┐
//	                   v            v            v
//	              device reg.   InfluxDB    health topic
//
// Key Responsibilities:
//   - Poll loop with change detection (only changed states republish)
//   - Discovery synchronisation (announce new entities, retract removed)
//   - Command handling with one ack per command, accepted or failed
//   - Alarm transition recording and retained alarm sets
//   - Telemetry samples for numeric, power and fuel entities
//   - Periodic health reports with cloud connection statistics
//
// Thread Safety: the Bridge is safe for concurrent use. Command
// handlers run on the MQTT client's goroutine while the poll loop runs
// on its own; shared caches are mutex guarded.
package bridge
