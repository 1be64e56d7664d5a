package visibility

import (
	"context"
	"database/sql"
	"errors"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/location"
)

// Service builds visibility views from the stores.
type Service struct {
	access    *access.Resolver
	locations *location.SQLiteRepository
	devices   *device.SQLiteRepository
	statuses  *device.SQLiteStatusRepository
}

// NewService returns a Service reading from db.
func NewService(db *sql.DB) *Service {
	return &Service{
		access:    access.NewResolver(db),
		locations: location.NewSQLiteRepository(db),
		devices:   device.NewSQLiteRepository(db),
		statuses:  device.NewSQLiteStatusRepository(db),
	}
}

// GetVisibleHierarchy returns the trees of the user's accessible sites in
// first-granted order plus the unassigned devices.
func (s *Service) GetVisibleHierarchy(ctx context.Context, userID int64, opts Options) (*Hierarchy, error) {
	ua, err := s.access.ResolveUserAccess(ctx, userID)
	if err != nil {
		return nil, err
	}

	h := &Hierarchy{Sites: make([]SiteView, 0, len(ua.AccessibleSites))}
	for _, site := range ua.AccessibleSites {
		view, err := s.siteView(ctx, site, opts)
		if err != nil {
			return nil, err
		}
		h.Sites = append(h.Sites, *view)
	}

	unassigned, err := s.devices.ListUnassigned(ctx)
	if err != nil {
		return nil, err
	}
	if h.Unassigned, err = s.deviceViews(ctx, unassigned, opts); err != nil {
		return nil, err
	}
	return h, nil
}

// GetVisibleDevicesFlat returns the devices under the user's sites and
// every unassigned device, once each, with their latest status.
func (s *Service) GetVisibleDevicesFlat(ctx context.Context, userID int64) ([]DeviceView, error) {
	ua, err := s.access.ResolveUserAccess(ctx, userID)
	if err != nil {
		return nil, err
	}
	scoped, err := s.devices.ListBySites(ctx, ua.SiteIDs())
	if err != nil {
		return nil, err
	}
	unassigned, err := s.devices.ListUnassigned(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool, len(scoped)+len(unassigned))
	merged := make([]device.Device, 0, len(scoped)+len(unassigned))
	for _, group := range [][]device.Device{scoped, unassigned} {
		for _, d := range group {
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			merged = append(merged, d)
		}
	}
	return s.deviceViews(ctx, merged, Options{})
}

// GetSiteFull returns one site tree regardless of who asks.
func (s *Service) GetSiteFull(ctx context.Context, siteID int64, opts Options) (*SiteView, error) {
	site, err := s.locations.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	return s.siteView(ctx, *site, opts)
}

// GetBuildingFull returns a building with its floors and every device's
// full history.
func (s *Service) GetBuildingFull(ctx context.Context, buildingID int64) (*BuildingView, error) {
	b, err := s.locations.GetBuilding(ctx, buildingID)
	if err != nil {
		return nil, err
	}
	return s.buildingView(ctx, *b, Options{History: true})
}

// FloorDevices returns the devices of one floor.
func (s *Service) FloorDevices(ctx context.Context, floorID int64, opts Options) ([]DeviceView, error) {
	if _, err := s.locations.GetFloor(ctx, floorID); err != nil {
		return nil, err
	}
	devices, err := s.devices.ListByFloor(ctx, floorID)
	if err != nil {
		return nil, err
	}
	return s.deviceViews(ctx, devices, opts)
}

func (s *Service) siteView(ctx context.Context, site location.Site, opts Options) (*SiteView, error) {
	view := &SiteView{Site: site}
	m, err := optionalMap(s.locations.GetMapBySite(ctx, site.ID))
	if err != nil {
		return nil, err
	}
	view.Map = m

	buildings, err := s.locations.ListBuildingsBySite(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	view.Buildings = make([]BuildingView, 0, len(buildings))
	for _, b := range buildings {
		bv, err := s.buildingView(ctx, b, opts)
		if err != nil {
			return nil, err
		}
		view.Buildings = append(view.Buildings, *bv)
	}
	return view, nil
}

func (s *Service) buildingView(ctx context.Context, b location.Building, opts Options) (*BuildingView, error) {
	floors, err := s.locations.ListFloorsByBuilding(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	view := &BuildingView{Building: b, Floors: make([]FloorView, 0, len(floors))}
	for _, f := range floors {
		fv := FloorView{Floor: f}
		if fv.Map, err = optionalMap(s.locations.GetMapByFloor(ctx, f.ID)); err != nil {
			return nil, err
		}
		devices, err := s.devices.ListByFloor(ctx, f.ID)
		if err != nil {
			return nil, err
		}
		if fv.Devices, err = s.deviceViews(ctx, devices, opts); err != nil {
			return nil, err
		}
		view.Floors = append(view.Floors, fv)
	}
	return view, nil
}

func (s *Service) deviceViews(ctx context.Context, devices []device.Device, opts Options) ([]DeviceView, error) {
	ids := make([]int64, len(devices))
	for i, d := range devices {
		ids[i] = d.ID
	}
	latest, err := s.statuses.LatestByDevices(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]DeviceView, len(devices))
	for i, d := range devices {
		views[i] = DeviceView{Device: d, LatestStatus: latest[d.ID]}
		if opts.History {
			if views[i].Statuses, err = s.statuses.ListByDevice(ctx, d.ID); err != nil {
				return nil, err
			}
		}
	}
	return views, nil
}

func optionalMap(m *location.Map, err error) (*location.Map, error) {
	if errors.Is(err, location.ErrMapNotFound) {
		return nil, nil
	}
	return m, err
}
