package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementStatus is the measurement every status point is written to.
const MeasurementStatus = "baes_status"

// StatusSample is one ingested status reading.
type StatusSample struct {
	DeviceID    int64
	ErrorCode   int
	Temperature *float64
	Vibration   bool
	Timestamp   time.Time
}

// WriteStatus queues one status point. No-op when the client is closed
// or nil, so callers can hold an optional *Client.
func (c *Client) WriteStatus(s StatusSample) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(statusPoint(s))
}

func statusPoint(s StatusSample) *write.Point {
	fields := map[string]interface{}{
		"error_code": s.ErrorCode,
		"vibration":  s.Vibration,
	}
	if s.Temperature != nil {
		fields["temperature"] = *s.Temperature
	}
	ts := s.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(MeasurementStatus,
		map[string]string{"device_id": strconv.FormatInt(s.DeviceID, 10)},
		fields, ts)
}
