// Package api implements the local admin HTTP API for BragerConnect Core.
//
// This package provides:
//   - REST endpoints for device inspection, state and alarm history
//   - Validated parameter writes routed through the bridge to the cloud
//   - System metrics (runtime, cloud link, MQTT, registry, database)
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Static API-key authentication and TLS support
//
// # Architecture
//
// The API server sits beside the bridge: reads come from the device
// registry cache, writes go through the bridge's parameter validation
// and on to the cloud. It never talks to the cloud socket directly.
//
// # Security
//
// Requests to protected routes must present the configured key in the
// X-API-Key header. An empty key disables authentication, intended for
// local development only. Health and metrics are unauthenticated for
// monitoring scrapes.
//
// # Graceful Degradation
//
// The server operates without the bridge or database wired in: device
// reads still work from the registry, only parameter writes and the
// affected metric sections are unavailable.
package api
