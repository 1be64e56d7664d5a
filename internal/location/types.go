package location

import (
	"encoding/json"
	"time"
)

// Site is the root of the physical hierarchy and the unit of access control.
type Site struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Building belongs to at most one site. PolygonPoints is the outline as
// drawn on the site map, kept as opaque JSON.
type Building struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	PolygonPoints json.RawMessage `json:"polygon_points,omitempty"`
	SiteID        *int64          `json:"site_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Floor belongs to exactly one building.
type Floor struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	BuildingID int64     `json:"building_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Map is a plan image owned by either a site or a floor, never both.
type Map struct {
	ID        int64     `json:"id"`
	Path      string    `json:"path"`
	SiteID    *int64    `json:"site_id"`
	FloorID   *int64    `json:"floor_id"`
	CenterLat float64   `json:"center_lat"`
	CenterLng float64   `json:"center_lng"`
	Zoom      float64   `json:"zoom"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MapUpdate carries the mutable fields of a map. Nil fields are kept.
type MapUpdate struct {
	Path      *string
	CenterLat *float64
	CenterLng *float64
	Zoom      *float64
}
