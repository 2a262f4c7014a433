// Package influxdb provides InfluxDB connectivity for BragerConnect Core.
//
// It wraps the official influxdb-client-go v2 library with BragerConnect-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Heating telemetry (temperatures, setpoints, boiler power)
//   - Fuel consumption tracking for pellet boilers
//   - Poll loop statistics
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "bragerconnect",
//	    Bucket: "heating",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write parameter samples
//	client.WriteFieldSample("MODULE_B1", "boiler_temperature", 61.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency telemetry data.
package influxdb
