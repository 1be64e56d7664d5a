package device

import (
	"fmt"

	"github.com/baes-monitor/baes-core/internal/fault"
)

var (
	// ErrDeviceNotFound is returned when a device id does not exist.
	ErrDeviceNotFound = fmt.Errorf("device: %w", fault.ErrNotFound)

	// ErrStatusNotFound is returned when no status matches.
	ErrStatusNotFound = fmt.Errorf("device: status %w", fault.ErrNotFound)

	// ErrDeviceExists is returned when creating a device with a taken id.
	ErrDeviceExists = fmt.Errorf("device: id already exists: %w", fault.ErrConflict)

	// ErrDeviceNameTaken is returned when another device already uses the name.
	ErrDeviceNameTaken = fmt.Errorf("device: name already exists: %w", fault.ErrConflict)
)
