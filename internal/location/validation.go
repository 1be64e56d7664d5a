package location

import (
	"encoding/json"
	"strings"

	"github.com/baes-monitor/baes-core/internal/fault"
)

const maxNameLength = 100

// ValidateName trims name and checks it is non-empty and at most 100 bytes.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fault.Validation("name is required")
	}
	if len(name) > maxNameLength {
		return "", fault.Validation("name exceeds %d characters", maxNameLength)
	}
	return name, nil
}

// ValidatePolygon accepts an empty value or a JSON array.
func ValidatePolygon(raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var points []json.RawMessage
	if err := json.Unmarshal(raw, &points); err != nil {
		return fault.Validation("polygon_points must be a JSON array")
	}
	return nil
}

// ValidateMapOwner checks that exactly one owner is set.
func ValidateMapOwner(siteID, floorID *int64) error {
	if (siteID == nil) == (floorID == nil) {
		return ErrMapOwner
	}
	return nil
}
