package visibility

import (
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/location"
)

// Options selects how much status data views carry.
type Options struct {
	// History includes every status of each device, newest first.
	History bool
}

// DeviceView is a device with its latest status (nil when it has none).
type DeviceView struct {
	device.Device
	LatestStatus *device.Status  `json:"latest_status"`
	Statuses     []device.Status `json:"statuses,omitempty"`
}

// FloorView is a floor with its map and devices.
type FloorView struct {
	location.Floor
	Map     *location.Map `json:"map"`
	Devices []DeviceView  `json:"devices"`
}

// BuildingView is a building with its floors.
type BuildingView struct {
	location.Building
	Floors []FloorView `json:"floors"`
}

// SiteView is a site with its map and buildings.
type SiteView struct {
	location.Site
	Map       *location.Map  `json:"map"`
	Buildings []BuildingView `json:"buildings"`
}

// Hierarchy is everything a user can see. Unassigned is always present.
type Hierarchy struct {
	Sites      []SiteView   `json:"sites"`
	Unassigned []DeviceView `json:"unassigned"`
}
