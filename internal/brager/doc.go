// Package brager implements the BragerConnect cloud protocol client.
//
// BragerConnect is the cloud service for Brager heating controllers.
// This package maintains the WebSocket session with the service,
// fetches device snapshots and decodes the controller's parameter
// pools into typed values.
//
// # Architecture
//
//	┌─────────────────┐             ┌─────────────────┐
//	│    Bridge       │   Fetch /   │  Cloud Client   │   wss
//	│   Coordinator   │◄───────────►│   (this pkg)    │◄────────► cloud.bragerconnect.com
//	└─────────────────┘   Write     └─────────────────┘
//
// # Wire Protocol
//
// Every message is a JSON "wrkfnc" frame:
//
//	{"wrkfnc": true, "type": 2, "name": "s_getAllPoolData", "nr": 7, "args": []}
//
// After connecting, the server sends a READY_SIGNAL frame which the
// client echoes back before the session is usable. Calls carry a
// monotonically increasing nr; the server answers with FUNCTION_RESP
// or EXCEPTION frames carrying the same nr. Frames without an nr are
// unsolicited pushes (PORT_MESSAGE pool updates).
//
// # Parameter Pools
//
// Controller state lives in numbered pools of numbered parameters.
// Each parameter has up to three channels: value ("v"), status bits
// ("s") and unit number ("u"). The wire key "P4" names pool 4 and
// "v0" the value channel of parameter 0; FieldRef renders the pair
// as "P4.v0".
//
// Status bits carry presence (fitted/active), write access, remote
// switchability and run states for the boiler, burner, pumps and
// valves; see status.go for the decoders.
//
// # Key Responsibilities
//
//   - Maintain the WebSocket session (handshake, login, language)
//   - Correlate calls and responses, enforce call timeouts
//   - Reconnect with exponential backoff and re-authenticate
//   - Assemble full device snapshots (info, pools, tasks, alarms)
//   - Write parameter values for the command plane
//
// # Thread Safety
//
// All exported methods of Client are safe for concurrent use from
// multiple goroutines.
package brager
