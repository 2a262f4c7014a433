package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marpi82/bragerconnect-core/internal/brager"
	"github.com/marpi82/bragerconnect-core/internal/bridge"
	"github.com/marpi82/bragerconnect-core/internal/device"
)

// defaultAlarmLimit caps an alarm history response when no limit is given.
const defaultAlarmLimit = 50

// handleListDevices returns all devices, with an optional health filter.
//
// Query parameters:
//   - health: filter by health status (online, offline, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if healthStr := r.URL.Query().Get("health"); healthStr != "" {
		devices, err := s.registry.GetDevicesByHealthStatus(ctx, device.HealthStatus(healthStr))
		if err != nil {
			writeInternalError(w, "failed to list devices")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
		return
	}

	devices, err := s.registry.ListDevices(ctx)
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, dev)
}

// handleDeleteDevice removes a device record by ID. The device will be
// re-created on the next poll if it is still attached to the account;
// deletion is for cleaning up controllers that left the account.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.registry.DeleteDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to delete device")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleDeviceStats returns device registry statistics.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, stats)
}

// handleGetDeviceState returns the current entity states of a device.
func (s *Server) handleGetDeviceState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":        dev.ID,
		"state":            dev.State,
		"state_updated_at": dev.StateUpdatedAt,
		"health_status":    dev.HealthStatus,
	})
}

// handleListDeviceAlarms returns the alarm history of a device.
//
// Query parameters:
//   - limit: maximum records to return (default 50)
func (s *Server) handleListDeviceAlarms(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	limit := defaultAlarmLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	alarms, err := s.registry.ListAlarms(r.Context(), id, limit)
	if err != nil {
		writeInternalError(w, "failed to list alarms")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"alarms":    alarms,
		"count":     len(alarms),
	})
}

// ParameterWrite is the request body for a parameter write.
type ParameterWrite struct {
	Value float64 `json:"value"`
}

// handleWriteParameter writes one controller parameter through the
// bridge. The ref path segment uses pool notation, e.g. "P6.v0".
// The write is synchronous: a 200 means the cloud accepted it.
func (s *Server) handleWriteParameter(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ref := chi.URLParam(r, "ref")

	if s.bridge == nil {
		writeServiceUnavailable(w, "bridge not available")
		return
	}

	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		writeInternalError(w, "failed to get device")
		return
	}

	var body ParameterWrite
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.bridge.WriteParameter(r.Context(), id, ref, body.Value); err != nil {
		switch {
		case errors.Is(err, brager.ErrInvalidFieldRef), errors.Is(err, bridge.ErrNotWritable):
			writeBadRequest(w, err.Error())
			return
		case errors.Is(err, bridge.ErrUnknownDevice):
			// Registered but never polled, so no entity catalogue yet.
			writeServiceUnavailable(w, err.Error())
			return
		}
		s.logger.Warn("parameter write failed",
			"device_id", id,
			"ref", ref,
			"error", err,
		)
		writeBadGateway(w, "cloud write failed")
		return
	}

	s.logger.Info("parameter written",
		"device_id", id,
		"ref", ref,
		"value", body.Value,
	)

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": id,
		"ref":       ref,
		"value":     body.Value,
		"status":    "written",
	})
}
