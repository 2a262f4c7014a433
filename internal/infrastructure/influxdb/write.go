package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFieldSample writes a single parameter sample to InfluxDB.
//
// This is the primary method for recording heating telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "MODULE_B1")
//   - objectID: The entity being sampled (e.g., "boiler_temperature")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteFieldSample("MODULE_B1", "boiler_temperature", 61.5)
//	client.WriteFieldSample("MODULE_B1", "external_temperature", -3.0)
func (c *Client) WriteFieldSample(deviceID string, objectID string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"heating",
		map[string]string{
			"device_id": deviceID,
			"object_id": objectID,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePowerMetric writes a boiler power measurement.
//
// Used for tracking heat output over time.
//
// Parameters:
//   - deviceID: Device identifier
//   - powerKW: Current boiler output in kilowatts
func (c *Client) WritePowerMetric(deviceID string, powerKW float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"power",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"power_kw": powerKW,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFuelMetric writes fuel feeder measurements for pellet boilers.
//
// Parameters:
//   - deviceID: Device identifier
//   - consumedKg: Cumulative fuel consumption in kilograms
//   - levelPercent: Remaining fuel level as a percentage (use -1 if unknown)
func (c *Client) WriteFuelMetric(deviceID string, consumedKg float64, levelPercent float64) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"consumed_kg": consumedKg,
	}
	if levelPercent >= 0 {
		fields["level_percent"] = levelPercent
	}

	point := write.NewPoint(
		"fuel",
		map[string]string{
			"device_id": deviceID,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("poll_stats",
//	    map[string]string{"device_id": "MODULE_B1"},
//	    map[string]interface{}{"duration_ms": 412.0, "fields_changed": 7})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
