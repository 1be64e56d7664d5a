package location

import (
	"fmt"

	"github.com/baes-monitor/baes-core/internal/fault"
)

var (
	// ErrSiteNotFound is returned when a site id does not exist.
	ErrSiteNotFound = fmt.Errorf("location: site %w", fault.ErrNotFound)

	// ErrBuildingNotFound is returned when a building id does not exist.
	ErrBuildingNotFound = fmt.Errorf("location: building %w", fault.ErrNotFound)

	// ErrFloorNotFound is returned when a floor id does not exist.
	ErrFloorNotFound = fmt.Errorf("location: floor %w", fault.ErrNotFound)

	// ErrMapNotFound is returned when no map matches the id or owner.
	ErrMapNotFound = fmt.Errorf("location: map %w", fault.ErrNotFound)

	// ErrSiteNameTaken is returned when a site name is already used.
	ErrSiteNameTaken = fmt.Errorf("location: site name already exists: %w", fault.ErrConflict)

	// ErrMapExists is returned when the site or floor already owns a map.
	ErrMapExists = fmt.Errorf("location: owner already has a map: %w", fault.ErrConflict)

	// ErrMapOwner is returned unless exactly one of site and floor is set.
	ErrMapOwner = fmt.Errorf("%w: map must belong to exactly one of site or floor", fault.ErrValidation)

	// ErrMapAssigned is returned when assigning a map that already has an owner.
	ErrMapAssigned = fmt.Errorf("location: map already assigned to a site or floor: %w", fault.ErrConflict)

	// ErrFloorNotInSite is returned when a floor is addressed through the wrong site.
	ErrFloorNotInSite = fmt.Errorf("%w: floor does not belong to site", fault.ErrValidation)
)
