package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/location"
)

const maxNameLength = 50

// Repository persists devices. Deletion is owned by the cascade package.
type Repository interface {
	Create(ctx context.Context, d *Device) error
	GetByID(ctx context.Context, id int64) (*Device, error)
	List(ctx context.Context) ([]Device, error)
	ListUnassigned(ctx context.Context) ([]Device, error)
	ListByFloor(ctx context.Context, floorID int64) ([]Device, error)
	ListBySites(ctx context.Context, siteIDs []int64) ([]Device, error)
	Update(ctx context.Context, d *Device) error
	SetIgnored(ctx context.Context, id int64, ignored bool) (*Device, error)
}

// SQLiteRepository implements Repository.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a Repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const deviceColumns = `id, name, label, position_x, position_y, floor_id, is_ignored, created_at, updated_at`

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var name, label sql.NullString
	var floorID sql.NullInt64
	var createdAt, updatedAt string
	if err := s.Scan(&d.ID, &name, &label, &d.Position.X, &d.Position.Y, &floorID, &d.IsIgnored,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if name.Valid {
		d.Name = &name.String
	}
	if label.Valid {
		d.Label = &label.String
	}
	if floorID.Valid {
		d.FloorID = &floorID.Int64
	}
	d.CreatedAt = database.ParseTime(createdAt)
	d.UpdatedAt = database.ParseTime(updatedAt)
	return &d, nil
}

func validateDevice(d *Device) error {
	if d.ID <= 0 {
		return fault.Validation("device id must be positive")
	}
	if d.Name != nil {
		n := strings.TrimSpace(*d.Name)
		if n == "" {
			return fault.Validation("name cannot be blank")
		}
		if len(n) > maxNameLength {
			return fault.Validation("name exceeds %d characters", maxNameLength)
		}
		d.Name = &n
	}
	if d.Label != nil && len(*d.Label) > maxNameLength {
		return fault.Validation("label exceeds %d characters", maxNameLength)
	}
	return nil
}

func checkFloor(ctx context.Context, q database.Querier, floorID *int64) error {
	if floorID == nil {
		return nil
	}
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM floors WHERE id = ?`, *floorID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return location.ErrFloorNotFound
	}
	if err != nil {
		return fmt.Errorf("checking floor %d: %w", *floorID, err)
	}
	return nil
}

func classifyDeviceWrite(err error) error {
	var msg string
	if err != nil {
		msg = err.Error()
	}
	switch {
	case fault.IsUniqueViolation(err) && strings.Contains(msg, "devices.name"):
		return ErrDeviceNameTaken
	case fault.IsUniqueViolation(err):
		return ErrDeviceExists
	default:
		return fault.FromSQL(err)
	}
}

// Create inserts a device with a caller-supplied id.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) error {
	if err := validateDevice(d); err != nil {
		return err
	}
	if err := checkFloor(ctx, r.db, d.FloorID); err != nil {
		return err
	}
	created, err := insertDevice(ctx, r.db, d)
	if err != nil {
		return err
	}
	*d = *created
	return nil
}

func insertDevice(ctx context.Context, q database.Querier, d *Device) (*Device, error) {
	const query = `INSERT INTO devices (id, name, label, position_x, position_y, floor_id, is_ignored)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING ` + deviceColumns
	created, err := scanDevice(q.QueryRowContext(ctx, query,
		d.ID, nullString(d.Name), nullString(d.Label), d.Position.X, d.Position.Y,
		nullInt(d.FloorID), d.IsIgnored))
	if err != nil {
		return nil, fmt.Errorf("inserting device %d: %w", d.ID, classifyDeviceWrite(err))
	}
	return created, nil
}

// GetByID returns one device.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*Device, error) {
	return getDevice(ctx, r.db, id)
}

func getDevice(ctx context.Context, q database.Querier, id int64) (*Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	d, err := scanDevice(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting device %d: %w", id, err)
	}
	return d, nil
}

// List returns every device ordered by id.
func (r *SQLiteRepository) List(ctx context.Context) ([]Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices ORDER BY id`
	return r.queryDevices(ctx, query)
}

// ListUnassigned returns devices without a floor.
func (r *SQLiteRepository) ListUnassigned(ctx context.Context) ([]Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices WHERE floor_id IS NULL ORDER BY id`
	return r.queryDevices(ctx, query)
}

// ListByFloor returns the devices placed on a floor.
func (r *SQLiteRepository) ListByFloor(ctx context.Context, floorID int64) ([]Device, error) {
	const query = `SELECT ` + deviceColumns + ` FROM devices WHERE floor_id = ? ORDER BY id`
	return r.queryDevices(ctx, query, floorID)
}

// ListBySites returns the devices on any floor of the given sites.
func (r *SQLiteRepository) ListBySites(ctx context.Context, siteIDs []int64) ([]Device, error) {
	if len(siteIDs) == 0 {
		return []Device{}, nil
	}
	query := `SELECT ` + prefixed("d.", deviceColumns) + `
		FROM devices d
		JOIN floors f ON f.id = d.floor_id
		JOIN buildings b ON b.id = f.building_id
		WHERE b.site_id IN (` + placeholders(len(siteIDs)) + `)
		ORDER BY d.id`
	args := make([]any, len(siteIDs))
	for i, id := range siteIDs {
		args[i] = id
	}
	return r.queryDevices(ctx, query, args...)
}

func (r *SQLiteRepository) queryDevices(ctx context.Context, query string, args ...any) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// Update replaces name, label, position, floor and ignore flag.
// A nil FloorID unassigns the device.
func (r *SQLiteRepository) Update(ctx context.Context, d *Device) error {
	if err := validateDevice(d); err != nil {
		return err
	}
	if err := checkFloor(ctx, r.db, d.FloorID); err != nil {
		return err
	}
	const query = `UPDATE devices SET name = ?, label = ?, position_x = ?, position_y = ?,
		floor_id = ?, is_ignored = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + deviceColumns
	updated, err := scanDevice(r.db.QueryRowContext(ctx, query,
		nullString(d.Name), nullString(d.Label), d.Position.X, d.Position.Y,
		nullInt(d.FloorID), d.IsIgnored, d.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDeviceNotFound
	}
	if err != nil {
		return fmt.Errorf("updating device %d: %w", d.ID, classifyDeviceWrite(err))
	}
	*d = *updated
	return nil
}

// SetIgnored toggles whether the device is hidden from alarm views.
func (r *SQLiteRepository) SetIgnored(ctx context.Context, id int64, ignored bool) (*Device, error) {
	const query = `UPDATE devices SET is_ignored = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + deviceColumns
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, ignored, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("setting ignore flag on device %d: %w", id, err)
	}
	return d, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// prefixed qualifies every column in a comma-separated list.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, p := range parts {
		parts[i] = alias + p
	}
	return strings.Join(parts, ", ")
}
