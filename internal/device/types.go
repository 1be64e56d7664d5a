package device

import "time"

// Error codes reported by the units.
const (
	CodeConnection = 0 // unit unreachable
	CodeBattery    = 4 // battery fault
	CodeOK         = 6 // healthy
)

// Position is the unit's location on its floor map, in map pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Device is one emergency-lighting unit. The id is the hardware id and is
// supplied by the caller. A nil FloorID means the unit is unassigned.
type Device struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name"`
	Label     *string   `json:"label"`
	Position  Position  `json:"position"`
	FloorID   *int64    `json:"floor_id"`
	IsIgnored bool      `json:"is_ignored"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot is the short device form returned with an ingested status.
type Snapshot struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Label *string `json:"label"`
}

// Snapshot returns the short form of d.
func (d *Device) Snapshot() Snapshot {
	return Snapshot{ID: d.ID, Name: d.Name, Label: d.Label}
}

// Status is one entry of a device's timeline. Rows are only ever appended
// by ingestion; later writes touch the solved, acknowledgment and
// measurement fields.
type Status struct {
	ID                   int64      `json:"id"`
	DeviceID             int64      `json:"device_id"`
	ErrorCode            int        `json:"error_code"`
	IsSolved             bool       `json:"is_solved"`
	Temperature          *float64   `json:"temperature"`
	Vibration            bool       `json:"vibration"`
	AcknowledgedByUserID *int64     `json:"acknowledged_by_user_id"`
	AcknowledgedByLogin  *string    `json:"acknowledged_by_login"`
	AcknowledgedAt       *time.Time `json:"acknowledged_at"`
	Timestamp            time.Time  `json:"timestamp"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IngestRequest is one reading from a gateway.
type IngestRequest struct {
	DeviceID    int64
	ErrorCode   int
	Temperature *float64
	Vibration   *bool
	Solved      *bool
	Name        *string // used only when the device is auto-created
	Label       *string // used only when the device is auto-created
}

// IngestResult is the appended status and the device it belongs to.
type IngestResult struct {
	Status  *Status  `json:"status"`
	Device  Snapshot `json:"device"`
	Created bool     `json:"device_created"`
}

// Actor identifies who acknowledges a status. SessionUserID comes from the
// authenticated session and wins over ExplicitUserID from the request body.
type Actor struct {
	SessionUserID  *int64
	ExplicitUserID *int64
}

// MeasurementPatch updates the measurement fields of a status. Nil fields
// are kept. SetTemperature with a nil Temperature clears the reading.
type MeasurementPatch struct {
	Solved         *bool
	SetTemperature bool
	Temperature    *float64
	Vibration      *bool
}

// Summary counts a site's devices by the error code of their latest status.
type Summary struct {
	ConnectionErrors int `json:"connection_errors"`
	BatteryErrors    int `json:"battery_errors"`
	OK               int `json:"ok"`
	Unknown          int `json:"unknown"`
}

// Add counts one device whose latest status is st (nil for none).
func (s *Summary) Add(st *Status) {
	if st == nil {
		s.Unknown++
		return
	}
	switch st.ErrorCode {
	case CodeConnection:
		s.ConnectionErrors++
	case CodeBattery:
		s.BatteryErrors++
	case CodeOK:
		s.OK++
	default:
		s.Unknown++
	}
}
