package location

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// Repository persists sites, buildings, floors and maps.
type Repository interface {
	CreateSite(ctx context.Context, site *Site) error
	GetSite(ctx context.Context, id int64) (*Site, error)
	ListSites(ctx context.Context) ([]Site, error)
	UpdateSite(ctx context.Context, site *Site) error

	CreateBuilding(ctx context.Context, b *Building) error
	GetBuilding(ctx context.Context, id int64) (*Building, error)
	ListBuildings(ctx context.Context) ([]Building, error)
	ListBuildingsBySite(ctx context.Context, siteID int64) ([]Building, error)
	UpdateBuilding(ctx context.Context, b *Building) error

	CreateFloor(ctx context.Context, f *Floor) error
	GetFloor(ctx context.Context, id int64) (*Floor, error)
	ListFloors(ctx context.Context) ([]Floor, error)
	ListFloorsByBuilding(ctx context.Context, buildingID int64) ([]Floor, error)
	UpdateFloor(ctx context.Context, f *Floor) error
	SiteOfFloor(ctx context.Context, floorID int64) (*int64, error)

	CreateMap(ctx context.Context, m *Map) error
	GetMap(ctx context.Context, id int64) (*Map, error)
	ListMaps(ctx context.Context) ([]Map, error)
	GetMapBySite(ctx context.Context, siteID int64) (*Map, error)
	GetMapByFloor(ctx context.Context, floorID int64) (*Map, error)
	UpdateMap(ctx context.Context, id int64, u MapUpdate) (*Map, error)
	AssignMap(ctx context.Context, id int64, siteID, floorID *int64) (*Map, error)
}

// SQLiteRepository implements Repository on the shared database handle.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository returns a Repository backed by db.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// scanner is the common subset of *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// ---- sites ----------------------------------------------------------------

const siteColumns = `id, name, created_at, updated_at`

func scanSite(s scanner) (*Site, error) {
	var site Site
	var createdAt, updatedAt string
	if err := s.Scan(&site.ID, &site.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	site.CreatedAt = database.ParseTime(createdAt)
	site.UpdatedAt = database.ParseTime(updatedAt)
	return &site, nil
}

// CreateSite inserts a site and fills its id and timestamps.
func (r *SQLiteRepository) CreateSite(ctx context.Context, site *Site) error {
	name, err := ValidateName(site.Name)
	if err != nil {
		return err
	}
	const query = `INSERT INTO sites (name) VALUES (?) RETURNING ` + siteColumns
	created, err := scanSite(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if fault.IsUniqueViolation(err) {
			return ErrSiteNameTaken
		}
		return fmt.Errorf("inserting site: %w", err)
	}
	*site = *created
	return nil
}

// GetSite returns one site.
func (r *SQLiteRepository) GetSite(ctx context.Context, id int64) (*Site, error) {
	return GetSiteTx(ctx, r.db, id)
}

// GetSiteTx is GetSite on an arbitrary querier, for use inside transactions.
func GetSiteTx(ctx context.Context, q database.Querier, id int64) (*Site, error) {
	const query = `SELECT ` + siteColumns + ` FROM sites WHERE id = ?`
	site, err := scanSite(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting site %d: %w", id, err)
	}
	return site, nil
}

// ListSites returns all sites ordered by id.
func (r *SQLiteRepository) ListSites(ctx context.Context) ([]Site, error) {
	const query = `SELECT ` + siteColumns + ` FROM sites ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying sites: %w", err)
	}
	defer rows.Close()

	sites := []Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning site row: %w", err)
		}
		sites = append(sites, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating site rows: %w", err)
	}
	return sites, nil
}

// UpdateSite renames a site.
func (r *SQLiteRepository) UpdateSite(ctx context.Context, site *Site) error {
	name, err := ValidateName(site.Name)
	if err != nil {
		return err
	}
	const query = `UPDATE sites SET name = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + siteColumns
	updated, err := scanSite(r.db.QueryRowContext(ctx, query, name, site.ID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrSiteNotFound
	case fault.IsUniqueViolation(err):
		return ErrSiteNameTaken
	case err != nil:
		return fmt.Errorf("updating site %d: %w", site.ID, err)
	}
	*site = *updated
	return nil
}

// ---- buildings ------------------------------------------------------------

const buildingColumns = `id, name, polygon_points, site_id, created_at, updated_at`

func scanBuilding(s scanner) (*Building, error) {
	var b Building
	var polygon sql.NullString
	var siteID sql.NullInt64
	var createdAt, updatedAt string
	if err := s.Scan(&b.ID, &b.Name, &polygon, &siteID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if polygon.Valid && polygon.String != "" {
		b.PolygonPoints = json.RawMessage(polygon.String)
	}
	if siteID.Valid {
		b.SiteID = &siteID.Int64
	}
	b.CreatedAt = database.ParseTime(createdAt)
	b.UpdatedAt = database.ParseTime(updatedAt)
	return &b, nil
}

func polygonArg(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 || string(raw) == "null" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func (r *SQLiteRepository) checkBuildingInput(ctx context.Context, b *Building) (string, error) {
	name, err := ValidateName(b.Name)
	if err != nil {
		return "", err
	}
	if err := ValidatePolygon(b.PolygonPoints); err != nil {
		return "", err
	}
	if b.SiteID != nil {
		if _, err := r.GetSite(ctx, *b.SiteID); err != nil {
			return "", err
		}
	}
	return name, nil
}

// CreateBuilding inserts a building. A non-nil SiteID must exist.
func (r *SQLiteRepository) CreateBuilding(ctx context.Context, b *Building) error {
	name, err := r.checkBuildingInput(ctx, b)
	if err != nil {
		return err
	}
	const query = `INSERT INTO buildings (name, polygon_points, site_id)
		VALUES (?, ?, ?) RETURNING ` + buildingColumns
	created, err := scanBuilding(r.db.QueryRowContext(ctx, query, name, polygonArg(b.PolygonPoints), nullInt(b.SiteID)))
	if err != nil {
		return fmt.Errorf("inserting building: %w", fault.FromSQL(err))
	}
	*b = *created
	return nil
}

// GetBuilding returns one building.
func (r *SQLiteRepository) GetBuilding(ctx context.Context, id int64) (*Building, error) {
	const query = `SELECT ` + buildingColumns + ` FROM buildings WHERE id = ?`
	b, err := scanBuilding(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBuildingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting building %d: %w", id, err)
	}
	return b, nil
}

// ListBuildings returns all buildings ordered by id.
func (r *SQLiteRepository) ListBuildings(ctx context.Context) ([]Building, error) {
	const query = `SELECT ` + buildingColumns + ` FROM buildings ORDER BY id`
	return r.queryBuildings(ctx, query)
}

// ListBuildingsBySite returns the buildings of one site.
func (r *SQLiteRepository) ListBuildingsBySite(ctx context.Context, siteID int64) ([]Building, error) {
	const query = `SELECT ` + buildingColumns + ` FROM buildings WHERE site_id = ? ORDER BY id`
	return r.queryBuildings(ctx, query, siteID)
}

func (r *SQLiteRepository) queryBuildings(ctx context.Context, query string, args ...any) ([]Building, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying buildings: %w", err)
	}
	defer rows.Close()

	buildings := []Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning building row: %w", err)
		}
		buildings = append(buildings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating building rows: %w", err)
	}
	return buildings, nil
}

// UpdateBuilding replaces name, polygon and site of a building.
func (r *SQLiteRepository) UpdateBuilding(ctx context.Context, b *Building) error {
	name, err := r.checkBuildingInput(ctx, b)
	if err != nil {
		return err
	}
	const query = `UPDATE buildings SET name = ?, polygon_points = ?, site_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + buildingColumns
	updated, err := scanBuilding(r.db.QueryRowContext(ctx, query,
		name, polygonArg(b.PolygonPoints), nullInt(b.SiteID), b.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrBuildingNotFound
	}
	if err != nil {
		return fmt.Errorf("updating building %d: %w", b.ID, fault.FromSQL(err))
	}
	*b = *updated
	return nil
}

// ---- floors ---------------------------------------------------------------

const floorColumns = `id, name, building_id, created_at, updated_at`

func scanFloor(s scanner) (*Floor, error) {
	var f Floor
	var createdAt, updatedAt string
	if err := s.Scan(&f.ID, &f.Name, &f.BuildingID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = database.ParseTime(createdAt)
	f.UpdatedAt = database.ParseTime(updatedAt)
	return &f, nil
}

// CreateFloor inserts a floor. The building must exist.
func (r *SQLiteRepository) CreateFloor(ctx context.Context, f *Floor) error {
	name, err := ValidateName(f.Name)
	if err != nil {
		return err
	}
	if _, err := r.GetBuilding(ctx, f.BuildingID); err != nil {
		return err
	}
	const query = `INSERT INTO floors (name, building_id) VALUES (?, ?) RETURNING ` + floorColumns
	created, err := scanFloor(r.db.QueryRowContext(ctx, query, name, f.BuildingID))
	if err != nil {
		return fmt.Errorf("inserting floor: %w", fault.FromSQL(err))
	}
	*f = *created
	return nil
}

// GetFloor returns one floor.
func (r *SQLiteRepository) GetFloor(ctx context.Context, id int64) (*Floor, error) {
	const query = `SELECT ` + floorColumns + ` FROM floors WHERE id = ?`
	f, err := scanFloor(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFloorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting floor %d: %w", id, err)
	}
	return f, nil
}

// ListFloors returns all floors ordered by id.
func (r *SQLiteRepository) ListFloors(ctx context.Context) ([]Floor, error) {
	const query = `SELECT ` + floorColumns + ` FROM floors ORDER BY id`
	return r.queryFloors(ctx, query)
}

// ListFloorsByBuilding returns the floors of one building.
func (r *SQLiteRepository) ListFloorsByBuilding(ctx context.Context, buildingID int64) ([]Floor, error) {
	const query = `SELECT ` + floorColumns + ` FROM floors WHERE building_id = ? ORDER BY id`
	return r.queryFloors(ctx, query, buildingID)
}

func (r *SQLiteRepository) queryFloors(ctx context.Context, query string, args ...any) ([]Floor, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying floors: %w", err)
	}
	defer rows.Close()

	floors := []Floor{}
	for rows.Next() {
		f, err := scanFloor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning floor row: %w", err)
		}
		floors = append(floors, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating floor rows: %w", err)
	}
	return floors, nil
}

// UpdateFloor renames a floor or moves it to another building.
func (r *SQLiteRepository) UpdateFloor(ctx context.Context, f *Floor) error {
	name, err := ValidateName(f.Name)
	if err != nil {
		return err
	}
	if _, err := r.GetBuilding(ctx, f.BuildingID); err != nil {
		return err
	}
	const query = `UPDATE floors SET name = ?, building_id = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + floorColumns
	updated, err := scanFloor(r.db.QueryRowContext(ctx, query, name, f.BuildingID, f.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return ErrFloorNotFound
	}
	if err != nil {
		return fmt.Errorf("updating floor %d: %w", f.ID, fault.FromSQL(err))
	}
	*f = *updated
	return nil
}

// SiteOfFloor returns the site a floor belongs to through its building,
// or nil when the building has no site.
func (r *SQLiteRepository) SiteOfFloor(ctx context.Context, floorID int64) (*int64, error) {
	const query = `SELECT b.site_id FROM floors f
		JOIN buildings b ON b.id = f.building_id WHERE f.id = ?`
	var siteID sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, floorID).Scan(&siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFloorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolving site of floor %d: %w", floorID, err)
	}
	if !siteID.Valid {
		return nil, nil
	}
	return &siteID.Int64, nil
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
