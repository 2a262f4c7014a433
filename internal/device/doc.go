// Package device provides the device registry for BragerConnect Core.
//
// The registry is the local catalogue of heating appliances seen on the
// cloud account. It persists device metadata, last known entity states,
// health, and alarm history so the REST API can answer queries while the
// cloud connection is down, and so alarm history survives restarts.
//
// # Architecture
//
//	┌─────────────────────────────────────────────────────────┐
//	│                      Device Registry                     │
//	│                                                          │
//	│  ┌──────────────────┐         ┌──────────────────┐       │
//	│  │     Registry     │         │    Repository    │       │
//	│  │   (registry.go)  │────────▶│  (repository.go) │       │
//	│  │                  │         │                  │       │
//	│  │ • Upsert/query   │         │ • SQLite queries │       │
//	│  │ • In-memory cache│         │ • JSON marshal   │       │
//	│  │ • Thread safety  │         │ • Alarm history  │       │
//	│  └──────────────────┘         └──────────────────┘       │
//	│           ▲                            │                 │
//	└───────────│────────────────────────────│─────────────────┘
//	            │                            ▼
//	┌──────────────────────┐       ┌──────────────────────┐
//	│  Poll loop / REST API│       │   SQLite Database    │
//	└──────────────────────┘       └──────────────────────┘
//
// # Key Types
//
//   - Device: A heating appliance keyed by its cloud identifier
//   - BoilerType: Fuel handling classification (pellet, feeder, basic)
//   - HealthStatus: Reachability of the appliance (online, offline, unknown)
//   - Alarm: A recorded alarm occurrence
//
// # Usage
//
//	repo := device.NewSQLiteRepository(db)
//	registry := device.NewRegistry(repo)
//	registry.SetLogger(log)
//
//	// Load devices into cache on startup
//	if err := registry.RefreshCache(ctx); err != nil {
//	    return err
//	}
//
//	// Absorb a cloud snapshot
//	registry.UpsertDevice(ctx, &device.Device{ID: "MODULE_B1", Name: "Boiler"})
//
//	// Update state from the poll loop
//	registry.SetDeviceState(ctx, "MODULE_B1", device.State{"boiler_temperature": 61.5})
//
// # Thread Safety
//
// The Registry is safe for concurrent use. All operations are protected by
// a read-write mutex. The Repository implementation must also be thread-safe.
package device
