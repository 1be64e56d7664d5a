package location

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

const mapColumns = `id, path, site_id, floor_id, center_lat, center_lng, zoom, created_at, updated_at`

func scanMap(s scanner) (*Map, error) {
	var m Map
	var siteID, floorID sql.NullInt64
	var createdAt, updatedAt string
	if err := s.Scan(&m.ID, &m.Path, &siteID, &floorID, &m.CenterLat, &m.CenterLng, &m.Zoom,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if siteID.Valid {
		m.SiteID = &siteID.Int64
	}
	if floorID.Valid {
		m.FloorID = &floorID.Int64
	}
	m.CreatedAt = database.ParseTime(createdAt)
	m.UpdatedAt = database.ParseTime(updatedAt)
	return &m, nil
}

func (r *SQLiteRepository) checkMapOwner(ctx context.Context, siteID, floorID *int64) error {
	if err := ValidateMapOwner(siteID, floorID); err != nil {
		return err
	}
	if siteID != nil {
		_, err := r.GetSite(ctx, *siteID)
		return err
	}
	_, err := r.GetFloor(ctx, *floorID)
	return err
}

// CreateMap inserts a map for a site or a floor. Zoom defaults to 1.
func (r *SQLiteRepository) CreateMap(ctx context.Context, m *Map) error {
	if strings.TrimSpace(m.Path) == "" {
		return fault.Validation("path is required")
	}
	if err := r.checkMapOwner(ctx, m.SiteID, m.FloorID); err != nil {
		return err
	}
	zoom := m.Zoom
	if zoom == 0 {
		zoom = 1
	}
	const query = `INSERT INTO maps (path, site_id, floor_id, center_lat, center_lng, zoom)
		VALUES (?, ?, ?, ?, ?, ?) RETURNING ` + mapColumns
	created, err := scanMap(r.db.QueryRowContext(ctx, query,
		m.Path, nullInt(m.SiteID), nullInt(m.FloorID), m.CenterLat, m.CenterLng, zoom))
	if err != nil {
		if fault.IsUniqueViolation(err) {
			return ErrMapExists
		}
		return fmt.Errorf("inserting map: %w", fault.FromSQL(err))
	}
	*m = *created
	return nil
}

func (r *SQLiteRepository) getMapWhere(ctx context.Context, where string, arg int64) (*Map, error) {
	query := `SELECT ` + mapColumns + ` FROM maps WHERE ` + where
	m, err := scanMap(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting map: %w", err)
	}
	return m, nil
}

// GetMap returns one map.
func (r *SQLiteRepository) GetMap(ctx context.Context, id int64) (*Map, error) {
	return r.getMapWhere(ctx, "id = ?", id)
}

// GetMapBySite returns the map owned by a site.
func (r *SQLiteRepository) GetMapBySite(ctx context.Context, siteID int64) (*Map, error) {
	return r.getMapWhere(ctx, "site_id = ?", siteID)
}

// GetMapByFloor returns the map owned by a floor.
func (r *SQLiteRepository) GetMapByFloor(ctx context.Context, floorID int64) (*Map, error) {
	return r.getMapWhere(ctx, "floor_id = ?", floorID)
}

// ListMaps returns every map ordered by id.
func (r *SQLiteRepository) ListMaps(ctx context.Context) ([]Map, error) {
	const query = `SELECT ` + mapColumns + ` FROM maps ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying maps: %w", err)
	}
	defer rows.Close()

	maps := []Map{}
	for rows.Next() {
		m, err := scanMap(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning map row: %w", err)
		}
		maps = append(maps, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating map rows: %w", err)
	}
	return maps, nil
}

// UpdateMap changes the image path and viewport of a map.
func (r *SQLiteRepository) UpdateMap(ctx context.Context, id int64, u MapUpdate) (*Map, error) {
	m, err := r.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Path != nil {
		if strings.TrimSpace(*u.Path) == "" {
			return nil, fault.Validation("path is required")
		}
		m.Path = *u.Path
	}
	if u.CenterLat != nil {
		m.CenterLat = *u.CenterLat
	}
	if u.CenterLng != nil {
		m.CenterLng = *u.CenterLng
	}
	if u.Zoom != nil {
		m.Zoom = *u.Zoom
	}

	const query = `UPDATE maps SET path = ?, center_lat = ?, center_lng = ?, zoom = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + mapColumns
	updated, err := scanMap(r.db.QueryRowContext(ctx, query, m.Path, m.CenterLat, m.CenterLng, m.Zoom, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating map %d: %w", id, err)
	}
	return updated, nil
}

// AssignMap gives an ownerless map to a site or a floor. A map that
// already has an owner is rejected with ErrMapAssigned.
func (r *SQLiteRepository) AssignMap(ctx context.Context, id int64, siteID, floorID *int64) (*Map, error) {
	if err := r.checkMapOwner(ctx, siteID, floorID); err != nil {
		return nil, err
	}
	m, err := r.GetMap(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.SiteID != nil || m.FloorID != nil {
		return nil, ErrMapAssigned
	}

	const query = `UPDATE maps SET site_id = ?, floor_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + mapColumns
	updated, err := scanMap(r.db.QueryRowContext(ctx, query, nullInt(siteID), nullInt(floorID), id))
	if err != nil {
		if fault.IsUniqueViolation(err) {
			return nil, ErrMapExists
		}
		return nil, fmt.Errorf("assigning map %d: %w", id, fault.FromSQL(err))
	}
	return updated, nil
}
