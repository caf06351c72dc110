package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tvcastd/tvcast/internal/atv"
)

// Repository defines the interface for device persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a device by its unique identifier.
	// Returns ErrDeviceNotFound if the device does not exist.
	GetByID(ctx context.Context, id string) (*Device, error)

	// List retrieves all devices, ordered by name.
	List(ctx context.Context) ([]Device, error)

	// Upsert inserts a device or refreshes the discovery fields (name,
	// address, protocols, last seen) of an existing one. Credentials are
	// never touched by Upsert.
	Upsert(ctx context.Context, device *Device) error

	// UpdateDetails changes the mutable name and address of a device.
	// Returns ErrDeviceNotFound if the device does not exist.
	UpdateDetails(ctx context.Context, id, name, address string) error

	// Delete removes a device by ID. The default pointer is cleared if it
	// referenced the deleted device.
	// Returns ErrDeviceNotFound if the device does not exist.
	Delete(ctx context.Context, id string) error

	// SetCredential stores the credential blob for one protocol, merging
	// it into the device's existing credential map. Written only by
	// completed pairing.
	SetCredential(ctx context.Context, id string, protocol atv.Protocol, credential string) error

	// GetDefault retrieves the default dispatch target.
	// Returns ErrNoDefaultDevice if no default is set.
	GetDefault(ctx context.Context) (*Device, error)

	// SetDefault points the default at the given device.
	// Returns ErrDeviceNotFound if the device does not exist.
	SetDefault(ctx context.Context, id string) error

	// ClearDefault removes the default pointer. Not an error if unset.
	ClearDefault(ctx context.Context) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with foreign keys
// enabled; default-pointer clearing on delete relies on ON DELETE CASCADE.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a device by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	query := `
		SELECT id, name, address, protocols, credentials, created_at, last_seen
		FROM devices
		WHERE id = ?`

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
	query := `
		SELECT id, name, address, protocols, credentials, created_at, last_seen
		FROM devices
		ORDER BY name`

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

// Upsert inserts a device or refreshes its discovery fields.
func (r *SQLiteRepository) Upsert(ctx context.Context, device *Device) error {
	protocolsJSON, err := json.Marshal(device.Protocols)
	if err != nil {
		return fmt.Errorf("marshalling protocols: %w", err)
	}

	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now().UTC()
	}

	// Credentials are set only on insert; the conflict branch leaves them
	// alone so a rescan can never un-pair a device.
	credentialsJSON := []byte("{}")
	if device.Credentials != nil {
		credentialsJSON, err = json.Marshal(device.Credentials)
		if err != nil {
			return fmt.Errorf("marshalling credentials: %w", err)
		}
	}

	query := `
		INSERT INTO devices (id, name, address, protocols, credentials, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address,
			protocols = excluded.protocols,
			last_seen = COALESCE(excluded.last_seen, devices.last_seen)`

	_, err = r.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.Address,
		string(protocolsJSON),
		string(credentialsJSON),
		device.CreatedAt.Format(time.RFC3339),
		nullableTime(device.LastSeen),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}

	return nil
}

// UpdateDetails changes the mutable name and address of a device.
func (r *SQLiteRepository) UpdateDetails(ctx context.Context, id, name, address string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE devices SET name = ?, address = ? WHERE id = ?",
		name, address, id,
	)
	if err != nil {
		return fmt.Errorf("updating device details: %w", err)
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

// Delete removes a device by ID. The default_device row cascades away
// with the device, so the pointer never dangles.
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

// SetCredential merges one protocol credential into the device's
// credential map. json_patch preserves credentials for other protocols,
// so readers never observe a partial credential state.
func (r *SQLiteRepository) SetCredential(ctx context.Context, id string, protocol atv.Protocol, credential string) error {
	patch, err := json.Marshal(map[atv.Protocol]string{protocol: credential})
	if err != nil {
		return fmt.Errorf("marshalling credential patch: %w", err)
	}

	query := `
		UPDATE devices
		SET credentials = json_patch(COALESCE(credentials, '{}'), ?)
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, string(patch), id)
	if err != nil {
		return fmt.Errorf("storing credential: %w", err)
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

// GetDefault retrieves the default dispatch target.
func (r *SQLiteRepository) GetDefault(ctx context.Context) (*Device, error) {
	query := `
		SELECT d.id, d.name, d.address, d.protocols, d.credentials, d.created_at, d.last_seen
		FROM devices d
		JOIN default_device dd ON dd.device_id = d.id`

	row := r.db.QueryRowContext(ctx, query)
	device, err := scanDeviceRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoDefaultDevice
		}
		return nil, fmt.Errorf("querying default device: %w", err)
	}
	return device, nil
}

// SetDefault points the default at the given device.
func (r *SQLiteRepository) SetDefault(ctx context.Context, id string) error {
	query := `
		INSERT INTO default_device (row_id, device_id)
		VALUES (1, ?)
		ON CONFLICT(row_id) DO UPDATE SET device_id = excluded.device_id`

	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		// A foreign key violation means the target device does not exist
		if isForeignKeyError(err) {
			return ErrDeviceNotFound
		}
		return fmt.Errorf("setting default device: %w", err)
	}

	return nil
}

// ClearDefault removes the default pointer.
func (r *SQLiteRepository) ClearDefault(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM default_device"); err != nil {
		return fmt.Errorf("clearing default device: %w", err)
	}
	return nil
}

// rowScanner is an interface that sql.Row and sql.Rows both implement.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDeviceRow scans a row or rows result into a Device.
func scanDeviceRow(scanner rowScanner) (*Device, error) {
	var d Device
	var protocolsJSON, credentialsJSON string
	var createdAt string
	var lastSeen sql.NullString

	err := scanner.Scan(
		&d.ID,
		&d.Name,
		&d.Address,
		&protocolsJSON,
		&credentialsJSON,
		&createdAt,
		&lastSeen,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(protocolsJSON), &d.Protocols); err != nil {
		return nil, fmt.Errorf("unmarshalling protocols: %w", err)
	}
	if err := json.Unmarshal([]byte(credentialsJSON), &d.Credentials); err != nil {
		return nil, fmt.Errorf("unmarshalling credentials: %w", err)
	}

	d.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	if lastSeen.Valid {
		t, err := time.Parse(time.RFC3339, lastSeen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen: %w", err)
		}
		d.LastSeen = &t
	}

	return &d, nil
}

// nullableTime converts a *time.Time to a nullable RFC3339 string.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// isForeignKeyError checks if an error is a SQLite foreign key violation.
func isForeignKeyError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
