package device

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its cloud identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices.
	List(ctx context.Context) ([]Device, error)

	// Create inserts a new device.
	// Returns ErrDeviceExists if a device with the same ID already exists.
	Create(ctx context.Context, device *Device) error

	// Update modifies an existing device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Update(ctx context.Context, device *Device) error

	// Delete removes a device by ID.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// UpdateState merges the given state fields into the device's state.
	// This is optimised for frequent state changes from the poll loop.
	UpdateState(ctx context.Context, id string, state State) error

	// UpdateHealth updates the health status and last seen timestamp.
	UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error

	// RecordAlarm appends an alarm occurrence for a device.
	RecordAlarm(ctx context.Context, alarm *Alarm) error

	// ListAlarms retrieves the most recent alarms for a device,
	// newest first. A limit of 0 means no limit.
	ListAlarms(ctx context.Context, deviceID string, limit int) ([]Alarm, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `id, name, description, username, shared_from,
	producer_code, permission_group, alert, boiler_type,
	state, state_updated_at, health_status, health_last_seen,
	created_at, updated_at`

// GetByID retrieves a device by its cloud identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device by id: %w", err)
	}
	return device, nil
}

// List retrieves all devices.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		device, err := scanDeviceRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}

	return devices, nil
}

// Create inserts a new device.
func (r *SQLiteRepository) Create(ctx context.Context, device *Device) error {
	if device.ID == "" {
		return ErrInvalidID
	}

	stateJSON, err := json.Marshal(device.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	// Set timestamps if not set
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now

	if device.HealthStatus == "" {
		device.HealthStatus = HealthStatusUnknown
	}
	if device.BoilerType == "" {
		device.BoilerType = BoilerTypeUnknown
	}

	query := `
		INSERT INTO devices (` + deviceColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.Description,
		device.Username,
		nullableString(device.SharedFrom),
		device.ProducerCode,
		device.PermissionGroup,
		boolToInt(device.Alert),
		string(device.BoilerType),
		string(stateJSON),
		nullableTime(device.StateUpdatedAt),
		string(device.HealthStatus),
		nullableTime(device.HealthLastSeen),
		device.CreatedAt.Format(time.RFC3339),
		device.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		// Check for unique constraint violation
		if isUniqueConstraintError(err) {
			return ErrDeviceExists
		}
		return fmt.Errorf("inserting device: %w", err)
	}

	return nil
}

// Update modifies an existing device.
func (r *SQLiteRepository) Update(ctx context.Context, device *Device) error {
	stateJSON, err := json.Marshal(device.State)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	device.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE devices SET
			name = ?, description = ?, username = ?, shared_from = ?,
			producer_code = ?, permission_group = ?, alert = ?, boiler_type = ?,
			state = ?, state_updated_at = ?,
			health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		device.Name,
		device.Description,
		device.Username,
		nullableString(device.SharedFrom),
		device.ProducerCode,
		device.PermissionGroup,
		boolToInt(device.Alert),
		string(device.BoilerType),
		string(stateJSON),
		nullableTime(device.StateUpdatedAt),
		string(device.HealthStatus),
		nullableTime(device.HealthLastSeen),
		device.UpdatedAt.Format(time.RFC3339),
		device.ID,
	)
	if err != nil {
		return fmt.Errorf("updating device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// Delete removes a device by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateState merges the given state fields into the device's existing state.
// This allows partial updates (e.g., updating "boiler_temperature" without
// losing "feeder_operates").
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state State) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshalling state: %w", err)
	}

	now := time.Now().UTC()
	// Use json_patch to merge new state into existing state.
	// json_patch(target, patch) applies patch keys to target, preserving
	// existing keys not present in patch.
	query := `
		UPDATE devices
		SET state = json_patch(COALESCE(state, '{}'), ?),
		    state_updated_at = ?,
		    updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(stateJSON),
		now.Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// UpdateHealth updates the health status and last seen timestamp.
func (r *SQLiteRepository) UpdateHealth(ctx context.Context, id string, status HealthStatus, lastSeen time.Time) error {
	now := time.Now().UTC()
	query := `
		UPDATE devices
		SET health_status = ?, health_last_seen = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		string(status),
		lastSeen.UTC().Format(time.RFC3339),
		now.Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating device health: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrDeviceNotFound
	}

	return nil
}

// RecordAlarm appends an alarm occurrence for a device.
// The alarm ID is generated if not provided.
func (r *SQLiteRepository) RecordAlarm(ctx context.Context, alarm *Alarm) error {
	if alarm.DeviceID == "" {
		return ErrInvalidID
	}
	if alarm.ID == "" {
		alarm.ID = uuid.NewString()
	}

	now := time.Now().UTC()
	if alarm.CreatedAt.IsZero() {
		alarm.CreatedAt = now
	}
	if alarm.OccurredAt.IsZero() {
		alarm.OccurredAt = now
	}

	query := `
		INSERT INTO device_alarms (id, device_id, code, message, active, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		alarm.ID,
		alarm.DeviceID,
		alarm.Code,
		alarm.Message,
		boolToInt(alarm.Active),
		alarm.OccurredAt.UTC().Format(time.RFC3339),
		alarm.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting alarm: %w", err)
	}

	return nil
}

// ListAlarms retrieves the most recent alarms for a device, newest first.
func (r *SQLiteRepository) ListAlarms(ctx context.Context, deviceID string, limit int) ([]Alarm, error) {
	query := `
		SELECT id, device_id, code, message, active, occurred_at, created_at
		FROM device_alarms
		WHERE device_id = ?
		ORDER BY occurred_at DESC, created_at DESC`
	args := []any{deviceID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying alarms: %w", err)
	}
	defer rows.Close()

	var alarms []Alarm
	for rows.Next() {
		var a Alarm
		var active int
		var occurredAt, createdAt string

		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Code, &a.Message, &active, &occurredAt, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alarm: %w", err)
		}

		a.Active = active != 0
		if a.OccurredAt, err = time.Parse(time.RFC3339, occurredAt); err != nil {
			return nil, fmt.Errorf("parsing occurred_at: %w", err)
		}
		if a.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}

		alarms = append(alarms, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alarms: %w", err)
	}

	return alarms, nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var sharedFrom sql.NullString
	var stateUpdatedAt, healthLastSeen sql.NullString
	var alert int
	var boilerType, healthStatus string
	var stateJSON string
	var createdAt, updatedAt string

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Description,
		&d.Username,
		&sharedFrom,
		&d.ProducerCode,
		&d.PermissionGroup,
		&alert,
		&boilerType,
		&stateJSON,
		&stateUpdatedAt,
		&healthStatus,
		&healthLastSeen,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Alert = alert != 0
	d.BoilerType = BoilerType(boilerType)
	d.HealthStatus = HealthStatus(healthStatus)

	if sharedFrom.Valid {
		d.SharedFrom = &sharedFrom.String
	}

	// Parse timestamps
	if stateUpdatedAt.Valid {
		t, err := time.Parse(time.RFC3339, stateUpdatedAt.String)
		if err == nil {
			d.StateUpdatedAt = &t
		}
	}
	if healthLastSeen.Valid {
		t, err := time.Parse(time.RFC3339, healthLastSeen.String)
		if err == nil {
			d.HealthLastSeen = &t
		}
	}

	var parseErr error
	d.CreatedAt, parseErr = time.Parse(time.RFC3339, createdAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing created_at: %w", parseErr)
	}
	d.UpdatedAt, parseErr = time.Parse(time.RFC3339, updatedAt)
	if parseErr != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", parseErr)
	}

	if err := json.Unmarshal([]byte(stateJSON), &d.State); err != nil {
		return nil, fmt.Errorf("unmarshalling state: %w", err)
	}

	return &d, nil
}

// nullableString returns a sql.NullString for optional string pointers.
func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullableTime returns a sql.NullString for optional time pointers (as RFC3339 strings).
func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
