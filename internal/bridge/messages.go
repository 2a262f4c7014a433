package bridge

import (
	"time"

	"github.com/marpi82/bragerconnect-core/internal/brager"
)

// MQTT message types published by the bridge. Commands themselves
// arrive as plain payloads ("ON", "OFF", or a number) on the set
// topics, Home Assistant style; everything the bridge emits is JSON.

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was validated and sent to the cloud.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on the ack topic after every command,
// whether it was accepted or rejected.
// Topic: bragerconnect/ack/{devid}/{object_id}
type AckMessage struct {
	// ID uniquely identifies this command execution.
	ID string `json:"id"`

	// Timestamp is when the acknowledgment was sent (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// DeviceID is the cloud device identifier.
	DeviceID string `json:"device_id"`

	// ObjectID names the entity the command addressed.
	ObjectID string `json:"object_id"`

	// Payload echoes the raw command payload.
	Payload string `json:"payload"`

	// Status indicates the acknowledgment status.
	Status AckStatus `json:"status"`

	// Error contains details if status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "UNKNOWN_ENTITY", "NOT_WRITABLE").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeUnknownEntity    = "UNKNOWN_ENTITY"
	ErrCodeNotWritable      = "NOT_WRITABLE"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeCloudUnreachable = "CLOUD_UNREACHABLE"
	ErrCodeWriteRejected    = "WRITE_REJECTED"
	ErrCodeUnknownDevice    = "UNKNOWN_DEVICE"
)

// AlarmMessage carries a device's active alarms.
// Topic: bragerconnect/alarm/{devid}
// QoS: 1, Retained: Yes
type AlarmMessage struct {
	// DeviceID is the cloud device identifier.
	DeviceID string `json:"device_id"`

	// Timestamp is when the alarm set was observed (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Active lists the currently raised alarm names.
	Active []string `json:"active"`
}

// HealthStatus represents the operational status of the service.
type HealthStatus string

const (
	// HealthHealthy indicates cloud and broker are both connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates the service runs with a connection down.
	HealthDegraded HealthStatus = "degraded"

	// HealthStarting indicates the service is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the service is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports operational status.
// Topic: bragerconnect/health
// QoS: 1, Retained: Yes
type HealthMessage struct {
	// Service is the service identifier ("bragerconnect").
	Service string `json:"service"`

	// Timestamp is when the health status was generated (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// Status indicates the current operational status.
	Status HealthStatus `json:"status"`

	// Version is the service software version.
	Version string `json:"version"`

	// UptimeSeconds is how long the service has been running.
	UptimeSeconds int64 `json:"uptime_seconds"`

	// Connection contains cloud connection details.
	Connection *ConnectionStatus `json:"connection,omitempty"`

	// Statistics contains operational metrics.
	Statistics *CloudStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of devices seen on the account.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for degraded).
	Reason string `json:"reason,omitempty"`
}

// ConnectionStatus describes the cloud connection state.
type ConnectionStatus struct {
	// Status is the connection status ("connected", "disconnected").
	Status string `json:"status"`

	// Address is the cloud endpoint.
	Address string `json:"address"`

	// LoggedIn reports whether the session is authenticated.
	LoggedIn bool `json:"logged_in"`
}

// CloudStatistics contains cloud link metrics.
type CloudStatistics struct {
	// FramesReceived is the total number of frames received.
	FramesReceived uint64 `json:"frames_received"`

	// FramesSent is the total number of frames sent.
	FramesSent uint64 `json:"frames_sent"`

	// Errors is the total number of errors encountered.
	Errors uint64 `json:"errors"`

	// Reconnects is the number of reconnections performed.
	Reconnects uint64 `json:"reconnects"`
}

// NewAckMessage creates an acknowledgment for an accepted command.
func NewAckMessage(id, deviceID, objectID, payload string) AckMessage {
	return AckMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		ObjectID:  objectID,
		Payload:   payload,
		Status:    AckAccepted,
	}
}

// NewAckError creates an acknowledgment with error details.
func NewAckError(id, deviceID, objectID, payload, code, message string) AckMessage {
	return AckMessage{
		ID:        id,
		Timestamp: time.Now().UTC(),
		DeviceID:  deviceID,
		ObjectID:  objectID,
		Payload:   payload,
		Status:    AckFailed,
		Error: &AckError{
			Code:    code,
			Message: message,
		},
	}
}

// NewAlarmMessage creates an alarm message from a device's alarm list.
func NewAlarmMessage(deviceID string, alarms []brager.Alarm) AlarmMessage {
	active := make([]string, 0, len(alarms))
	for _, a := range alarms {
		if a.Raised {
			active = append(active, a.Name)
		}
	}
	return AlarmMessage{
		DeviceID:  deviceID,
		Timestamp: time.Now().UTC(),
		Active:    active,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(version string, status HealthStatus, stats brager.Stats, deviceCount int, startTime time.Time) HealthMessage {
	msg := HealthMessage{
		Service:        "bragerconnect",
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		DevicesManaged: deviceCount,
	}

	connStatus := "disconnected"
	if stats.Connected {
		connStatus = "connected"
	}
	msg.Connection = &ConnectionStatus{
		Status:   connStatus,
		LoggedIn: stats.LoggedIn,
	}

	msg.Statistics = &CloudStatistics{
		FramesReceived: stats.FramesRx,
		FramesSent:     stats.FramesTx,
		Errors:         stats.ErrorsTotal,
		Reconnects:     stats.ReconnectsTotal,
	}

	return msg
}
