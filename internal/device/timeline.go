package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/infrastructure/influxdb"
	"github.com/baes-monitor/baes-core/internal/location"
)

// Telemetry receives a copy of every ingested status.
type Telemetry interface {
	WriteStatus(s influxdb.StatusSample)
}

// SummaryCache stores per-site summaries between reads.
type SummaryCache interface {
	Load(ctx context.Context, siteID int64, dst any) (bool, error)
	Store(ctx context.Context, siteID int64, v any) error
	Invalidate(ctx context.Context, siteID int64) error
	InvalidateAll(ctx context.Context) error
}

// Engine owns the status write path and the derived views.
type Engine struct {
	db        *sql.DB
	statuses  *SQLiteStatusRepository
	telemetry Telemetry
	cache     SummaryCache
	logger    Logger
	now       func() time.Time
}

// NewEngine returns an Engine on db without telemetry or caching.
func NewEngine(db *sql.DB) *Engine {
	return &Engine{
		db:       db,
		statuses: NewSQLiteStatusRepository(db),
		logger:   noopLogger{},
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger.
func (e *Engine) SetLogger(logger Logger) {
	if logger != nil {
		e.logger = logger
	}
}

// SetTelemetry enables export of ingested statuses.
func (e *Engine) SetTelemetry(t Telemetry) {
	e.telemetry = t
}

// SetSummaryCache enables the read-through summary cache.
func (e *Engine) SetSummaryCache(c SummaryCache) {
	e.cache = c
}

// Ingest appends one status. An unknown device is created first, with the
// request's name (or BAES-<id>), its label, position (0,0) and no floor.
// Both writes share one transaction.
func (e *Engine) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	if req.DeviceID <= 0 {
		return nil, fault.Validation("device id must be a positive integer")
	}

	var res IngestResult
	err := database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		dev, err := getDevice(ctx, tx, req.DeviceID)
		if errors.Is(err, ErrDeviceNotFound) {
			dev, err = insertDevice(ctx, tx, placeholderDevice(req))
			res.Created = true
		}
		if err != nil {
			return err
		}

		st, err := e.appendStatus(ctx, tx, req)
		if err != nil {
			return err
		}
		res.Status = st
		res.Device = dev.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Created {
		e.logger.Info("device auto-provisioned", "device_id", req.DeviceID)
	}
	e.logger.Debug("status ingested", "device_id", req.DeviceID, "status_id", res.Status.ID, "error_code", req.ErrorCode)

	if e.telemetry != nil {
		e.telemetry.WriteStatus(influxdb.StatusSample{
			DeviceID:    res.Status.DeviceID,
			ErrorCode:   res.Status.ErrorCode,
			Temperature: res.Status.Temperature,
			Vibration:   res.Status.Vibration,
			Timestamp:   res.Status.Timestamp,
		})
	}
	e.invalidateDeviceSite(ctx, req.DeviceID)
	return &res, nil
}

func placeholderDevice(req IngestRequest) *Device {
	name := "BAES-" + strconv.FormatInt(req.DeviceID, 10)
	if req.Name != nil && *req.Name != "" {
		name = *req.Name
	}
	return &Device{ID: req.DeviceID, Name: &name, Label: req.Label}
}

func (e *Engine) appendStatus(ctx context.Context, tx *sql.Tx, req IngestRequest) (*Status, error) {
	solved := req.Solved != nil && *req.Solved
	vibration := req.Vibration != nil && *req.Vibration
	ts := database.FormatTime(e.now())

	var temperature sql.NullFloat64
	if req.Temperature != nil {
		temperature = sql.NullFloat64{Float64: *req.Temperature, Valid: true}
	}

	const query = `INSERT INTO statuses (device_id, error_code, is_solved, temperature, vibration, timestamp, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, query, req.DeviceID, req.ErrorCode, solved, temperature, vibration, ts, ts)
	if err != nil {
		return nil, fmt.Errorf("appending status for device %d: %w", req.DeviceID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading status id: %w", err)
	}
	return getStatus(ctx, tx, id)
}

// Acknowledge sets the solved flag of a status. The acknowledgment fields
// change only when the flag actually changes; they then record the actor
// (session user, else explicit user, else nobody) and the current time.
// An explicit user id that matches no user is recorded as nobody.
func (e *Engine) Acknowledge(ctx context.Context, statusID int64, solved bool, actor Actor) (*Status, error) {
	var out *Status
	err := database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		st, err := getStatus(ctx, tx, statusID)
		if err != nil {
			return err
		}
		if st.IsSolved == solved {
			out = st
			return nil
		}

		by, err := resolveActor(ctx, tx, actor)
		if err != nil {
			return err
		}
		now := database.FormatTime(e.now())
		const query = `UPDATE statuses SET is_solved = ?, acknowledged_by_user_id = ?,
			acknowledged_at = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, solved, by, now, now, statusID); err != nil {
			return fmt.Errorf("acknowledging status %d: %w", statusID, err)
		}
		out, err = getStatus(ctx, tx, statusID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func resolveActor(ctx context.Context, q database.Querier, actor Actor) (sql.NullInt64, error) {
	candidate := actor.SessionUserID
	if candidate == nil {
		candidate = actor.ExplicitUserID
	}
	if candidate == nil {
		return sql.NullInt64{}, nil
	}
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM users WHERE id = ?`, *candidate).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.NullInt64{}, nil
	}
	if err != nil {
		return sql.NullInt64{}, fmt.Errorf("resolving acknowledging user: %w", err)
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// UpdateMeasurements patches the oldest status of a device carrying
// errorCode. Acknowledgment fields are never touched.
func (e *Engine) UpdateMeasurements(ctx context.Context, deviceID int64, errorCode int, patch MeasurementPatch) (*Status, error) {
	var out *Status
	err := database.WithTx(ctx, e.db, func(tx *sql.Tx) error {
		if _, err := getDevice(ctx, tx, deviceID); err != nil {
			return err
		}
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM statuses WHERE device_id = ? AND error_code = ? ORDER BY id LIMIT 1`,
			deviceID, errorCode).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrStatusNotFound
		}
		if err != nil {
			return fmt.Errorf("finding status of device %d code %d: %w", deviceID, errorCode, err)
		}

		st, err := getStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.Solved != nil {
			st.IsSolved = *patch.Solved
		}
		if patch.SetTemperature {
			st.Temperature = patch.Temperature
		}
		if patch.Vibration != nil {
			st.Vibration = *patch.Vibration
		}

		var temperature sql.NullFloat64
		if st.Temperature != nil {
			temperature = sql.NullFloat64{Float64: *st.Temperature, Valid: true}
		}
		const query = `UPDATE statuses SET is_solved = ?, temperature = ?, vibration = ?, updated_at = ?
			WHERE id = ?`
		if _, err := tx.ExecContext(ctx, query, st.IsSolved, temperature, st.Vibration,
			database.FormatTime(e.now()), id); err != nil {
			return fmt.Errorf("updating status %d: %w", id, err)
		}
		out, err = getStatus(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Latest returns the newest status of a device, or nil when it has none.
func (e *Engine) Latest(ctx context.Context, deviceID int64) (*Status, error) {
	if _, err := getDevice(ctx, e.db, deviceID); err != nil {
		return nil, err
	}
	return latestForDevice(ctx, e.db, deviceID)
}

// DeleteStatus removes one status and drops the cached summary it fed.
func (e *Engine) DeleteStatus(ctx context.Context, statusID int64) error {
	st, err := e.statuses.GetByID(ctx, statusID)
	if err != nil {
		return err
	}
	if err := e.statuses.Delete(ctx, statusID); err != nil {
		return err
	}
	e.invalidateDeviceSite(ctx, st.DeviceID)
	return nil
}

// SummaryBySite counts the devices on the site's floors by latest status.
// A device without statuses counts as unknown.
func (e *Engine) SummaryBySite(ctx context.Context, siteID int64) (*Summary, error) {
	if _, err := location.GetSiteTx(ctx, e.db, siteID); err != nil {
		return nil, err
	}

	if e.cache != nil {
		var cached Summary
		hit, err := e.cache.Load(ctx, siteID, &cached)
		if err != nil {
			e.logger.Warn("summary cache read failed", "site_id", siteID, "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	summary, err := e.computeSummary(ctx, siteID)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Store(ctx, siteID, summary); err != nil {
			e.logger.Warn("summary cache write failed", "site_id", siteID, "error", err)
		}
	}
	return summary, nil
}

func (e *Engine) computeSummary(ctx context.Context, siteID int64) (*Summary, error) {
	const query = `SELECT d.id FROM devices d
		JOIN floors f ON f.id = d.floor_id
		JOIN buildings b ON b.id = f.building_id
		WHERE b.site_id = ? ORDER BY d.id`
	rows, err := e.db.QueryContext(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("listing devices of site %d: %w", siteID, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device ids: %w", err)
	}

	latest, err := e.statuses.LatestByDevices(ctx, ids)
	if err != nil {
		return nil, err
	}
	summary := &Summary{}
	for _, id := range ids {
		summary.Add(latest[id])
	}
	return summary, nil
}

// InvalidateSummaries drops every cached summary. Call after changes that
// move devices between sites.
func (e *Engine) InvalidateSummaries(ctx context.Context) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateAll(ctx); err != nil {
		e.logger.Warn("summary cache invalidation failed", "error", err)
	}
}

func (e *Engine) invalidateDeviceSite(ctx context.Context, deviceID int64) {
	if e.cache == nil {
		return
	}
	const query = `SELECT b.site_id FROM devices d
		JOIN floors f ON f.id = d.floor_id
		JOIN buildings b ON b.id = f.building_id
		WHERE d.id = ? AND b.site_id IS NOT NULL`
	var siteID int64
	err := e.db.QueryRowContext(ctx, query, deviceID).Scan(&siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return
	}
	if err != nil {
		e.logger.Warn("resolving device site failed", "device_id", deviceID, "error", err)
		return
	}
	if err := e.cache.Invalidate(ctx, siteID); err != nil {
		e.logger.Warn("summary cache invalidation failed", "site_id", siteID, "error", err)
	}
}
