package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// StatusRepository reads and deletes statuses. Appends and acknowledgment
// writes go through the Engine.
type StatusRepository interface {
	GetByID(ctx context.Context, id int64) (*Status, error)
	List(ctx context.Context) ([]Status, error)
	ListByDevice(ctx context.Context, deviceID int64) ([]Status, error)
	ListAfter(ctx context.Context, since time.Time) ([]Status, error)
	ListAcknowledged(ctx context.Context) ([]Status, error)
	ListByFloor(ctx context.Context, floorID int64) ([]Status, error)
	ListBySite(ctx context.Context, siteID int64) ([]Status, error)
	LatestOverall(ctx context.Context) (*Status, error)
	LatestByDevices(ctx context.Context, deviceIDs []int64) (map[int64]*Status, error)
	LatestBySite(ctx context.Context, siteID int64) ([]Status, error)
	Delete(ctx context.Context, id int64) error
}

// SQLiteStatusRepository implements StatusRepository.
type SQLiteStatusRepository struct {
	db *sql.DB
}

// NewSQLiteStatusRepository returns a StatusRepository backed by db.
func NewSQLiteStatusRepository(db *sql.DB) *SQLiteStatusRepository {
	return &SQLiteStatusRepository{db: db}
}

// statusFields is selected from a statuses row aliased s joined to users u.
const statusFields = `s.id, s.device_id, s.error_code, s.is_solved, s.temperature, s.vibration,
	s.acknowledged_by_user_id, u.login, s.acknowledged_at, s.timestamp, s.updated_at`

const statusSelect = `SELECT ` + statusFields + `
	FROM statuses s LEFT JOIN users u ON u.id = s.acknowledged_by_user_id`

const siteDevicesJoin = `JOIN devices d ON d.id = st.device_id
	JOIN floors f ON f.id = d.floor_id
	JOIN buildings b ON b.id = f.building_id`

// latestQuery selects the newest status of each device matched by filter,
// which may join and filter the statuses table aliased st.
func latestQuery(filter string) string {
	return `WITH ranked AS (
		SELECT st.*, ROW_NUMBER() OVER (
			PARTITION BY st.device_id ORDER BY st.timestamp DESC, st.id DESC) AS rn
		FROM statuses st ` + filter + `)
	SELECT ` + statusFields + `
	FROM ranked s LEFT JOIN users u ON u.id = s.acknowledged_by_user_id
	WHERE s.rn = 1
	ORDER BY s.device_id`
}

func scanStatus(sc scanner) (*Status, error) {
	var st Status
	var temperature sql.NullFloat64
	var ackBy sql.NullInt64
	var ackLogin, ackAt sql.NullString
	var timestamp, updatedAt string
	if err := sc.Scan(&st.ID, &st.DeviceID, &st.ErrorCode, &st.IsSolved, &temperature, &st.Vibration,
		&ackBy, &ackLogin, &ackAt, &timestamp, &updatedAt); err != nil {
		return nil, err
	}
	if temperature.Valid {
		st.Temperature = &temperature.Float64
	}
	if ackBy.Valid {
		st.AcknowledgedByUserID = &ackBy.Int64
	}
	if ackLogin.Valid {
		st.AcknowledgedByLogin = &ackLogin.String
	}
	if ackAt.Valid {
		t := database.ParseTime(ackAt.String)
		st.AcknowledgedAt = &t
	}
	st.Timestamp = database.ParseTime(timestamp)
	st.UpdatedAt = database.ParseTime(updatedAt)
	return &st, nil
}

func getStatus(ctx context.Context, q database.Querier, id int64) (*Status, error) {
	st, err := scanStatus(q.QueryRowContext(ctx, statusSelect+` WHERE s.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting status %d: %w", id, err)
	}
	return st, nil
}

func queryStatuses(ctx context.Context, q database.Querier, query string, args ...any) ([]Status, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying statuses: %w", err)
	}
	defer rows.Close()

	statuses := []Status{}
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning status row: %w", err)
		}
		statuses = append(statuses, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating status rows: %w", err)
	}
	return statuses, nil
}

// latestForDevice returns nil, nil when the device has no statuses.
func latestForDevice(ctx context.Context, q database.Querier, deviceID int64) (*Status, error) {
	query := statusSelect + ` WHERE s.device_id = ? ORDER BY s.timestamp DESC, s.id DESC LIMIT 1`
	st, err := scanStatus(q.QueryRowContext(ctx, query, deviceID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest status of device %d: %w", deviceID, err)
	}
	return st, nil
}

// GetByID returns one status.
func (r *SQLiteStatusRepository) GetByID(ctx context.Context, id int64) (*Status, error) {
	return getStatus(ctx, r.db, id)
}

// List returns every status ordered by id.
func (r *SQLiteStatusRepository) List(ctx context.Context) ([]Status, error) {
	return queryStatuses(ctx, r.db, statusSelect+` ORDER BY s.id`)
}

// ListByDevice returns a device's timeline, newest first.
func (r *SQLiteStatusRepository) ListByDevice(ctx context.Context, deviceID int64) ([]Status, error) {
	return queryStatuses(ctx, r.db,
		statusSelect+` WHERE s.device_id = ? ORDER BY s.timestamp DESC, s.id DESC`, deviceID)
}

// ListAfter returns statuses changed at or after since, oldest change first.
func (r *SQLiteStatusRepository) ListAfter(ctx context.Context, since time.Time) ([]Status, error) {
	return queryStatuses(ctx, r.db,
		statusSelect+` WHERE s.updated_at >= ? ORDER BY s.updated_at, s.id`, database.FormatTime(since))
}

// ListAcknowledged returns statuses that carry an acknowledging user.
func (r *SQLiteStatusRepository) ListAcknowledged(ctx context.Context) ([]Status, error) {
	return queryStatuses(ctx, r.db,
		statusSelect+` WHERE s.acknowledged_by_user_id IS NOT NULL ORDER BY s.id`)
}

// ListByFloor returns every status of the devices on a floor.
func (r *SQLiteStatusRepository) ListByFloor(ctx context.Context, floorID int64) ([]Status, error) {
	return queryStatuses(ctx, r.db, statusSelect+`
		JOIN devices d ON d.id = s.device_id
		WHERE d.floor_id = ? ORDER BY s.device_id, s.id`, floorID)
}

// ListBySite returns every status of the devices of a site, grouped by
// device and oldest first.
func (r *SQLiteStatusRepository) ListBySite(ctx context.Context, siteID int64) ([]Status, error) {
	return queryStatuses(ctx, r.db, statusSelect+`
		JOIN devices d ON d.id = s.device_id
		JOIN floors f ON f.id = d.floor_id
		JOIN buildings b ON b.id = f.building_id
		WHERE b.site_id = ? ORDER BY s.device_id, s.timestamp, s.id`, siteID)
}

// LatestOverall returns the most recently changed status.
func (r *SQLiteStatusRepository) LatestOverall(ctx context.Context) (*Status, error) {
	st, err := scanStatus(r.db.QueryRowContext(ctx,
		statusSelect+` ORDER BY s.updated_at DESC, s.id DESC LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrStatusNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting latest status: %w", err)
	}
	return st, nil
}

// LatestByDevices returns the latest status of each listed device.
// Devices without statuses are absent from the map.
func (r *SQLiteStatusRepository) LatestByDevices(ctx context.Context, deviceIDs []int64) (map[int64]*Status, error) {
	latest := make(map[int64]*Status, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return latest, nil
	}
	args := make([]any, len(deviceIDs))
	for i, id := range deviceIDs {
		args[i] = id
	}
	statuses, err := queryStatuses(ctx, r.db,
		latestQuery(`WHERE st.device_id IN (`+placeholders(len(deviceIDs))+`)`), args...)
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		latest[statuses[i].DeviceID] = &statuses[i]
	}
	return latest, nil
}

// LatestBySite returns the latest status of every device of a site that
// has at least one status.
func (r *SQLiteStatusRepository) LatestBySite(ctx context.Context, siteID int64) ([]Status, error) {
	return queryStatuses(ctx, r.db, latestQuery(siteDevicesJoin+` WHERE b.site_id = ?`), siteID)
}

// Delete removes one status.
func (r *SQLiteStatusRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM statuses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting status %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrStatusNotFound
	}
	return nil
}
