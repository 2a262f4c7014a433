package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeMetrics  `json:"runtime"`
	MQTT          MQTTMetrics     `json:"mqtt"`
	Cloud         *CloudMetrics   `json:"cloud,omitempty"`
	Devices       DeviceMetrics   `json:"devices"`
	Database      DatabaseMetrics `json:"database"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// CloudMetrics contains cloud bridge statistics.
type CloudMetrics struct {
	Connected      bool   `json:"connected"`
	Status         string `json:"status"`
	FramesTx       uint64 `json:"frames_tx"`
	FramesRx       uint64 `json:"frames_rx"`
	Reconnects     uint64 `json:"reconnects"`
	DevicesManaged int    `json:"devices_managed"`
	LastPoll       string `json:"last_poll,omitempty"`
	LastPollOK     bool   `json:"last_poll_ok"`
	PollDurationMS int64  `json:"poll_duration_ms"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total        int            `json:"total"`
	ByHealth     map[string]int `json:"by_health"`
	ByBoilerType map[string]int `json:"by_boiler_type"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns comprehensive system metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	// MQTT broker status (if wired)
	if s.mqtt != nil {
		metrics.MQTT = MQTTMetrics{
			Connected: s.mqtt.IsConnected(),
		}
	}

	// Cloud bridge metrics (if wired)
	if s.bridge != nil {
		bm := s.bridge.GetMetrics()
		cloud := &CloudMetrics{
			Connected:      bm.CloudConnected,
			Status:         bm.Status,
			FramesTx:       bm.FramesTx,
			FramesRx:       bm.FramesRx,
			Reconnects:     bm.Reconnects,
			DevicesManaged: bm.DevicesManaged,
			LastPollOK:     bm.LastPollOK,
			PollDurationMS: bm.PollDurationMS,
		}
		if !bm.LastPoll.IsZero() {
			cloud.LastPoll = bm.LastPoll.UTC().Format(time.RFC3339)
		}
		metrics.Cloud = cloud
	}

	// Device registry stats
	regStats := s.registry.GetStats()
	metrics.Devices = DeviceMetrics{
		Total:        regStats.TotalDevices,
		ByHealth:     make(map[string]int),
		ByBoilerType: make(map[string]int),
	}
	for health, count := range regStats.ByHealthStatus {
		metrics.Devices.ByHealth[string(health)] = count
	}
	for bt, count := range regStats.ByBoilerType {
		metrics.Devices.ByBoilerType[string(bt)] = count
	}

	// Database stats (if wired)
	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
