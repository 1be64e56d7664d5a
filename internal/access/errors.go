package access

import (
	"fmt"

	"github.com/baes-monitor/baes-core/internal/fault"
)

var (
	// ErrUserNotFound is returned when a user id does not exist.
	ErrUserNotFound = fmt.Errorf("access: user %w", fault.ErrNotFound)

	// ErrRoleNotFound is returned when a role id or name does not exist.
	ErrRoleNotFound = fmt.Errorf("access: role %w", fault.ErrNotFound)

	// ErrAssociationNotFound is returned when no association matches.
	ErrAssociationNotFound = fmt.Errorf("access: association %w", fault.ErrNotFound)

	// ErrRoleExists is returned when creating a role with a taken name.
	ErrRoleExists = fmt.Errorf("access: role name already exists: %w", fault.ErrConflict)

	// ErrRoleInUse is returned when deleting a role that associations reference.
	ErrRoleInUse = fmt.Errorf("access: role is still assigned: %w", fault.ErrConflict)

	// ErrAssociationExists is returned for a duplicate (user, site, role).
	ErrAssociationExists = fmt.Errorf("access: association already exists: %w", fault.ErrConflict)
)
