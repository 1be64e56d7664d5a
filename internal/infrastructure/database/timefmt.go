package database

import "time"

// TimeLayout is the UTC text form used for every timestamp column. It
// matches strftime('%Y-%m-%dT%H:%M:%fZ') so rows written by SQL defaults
// and by Go sort together.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime reads a timestamp column. It accepts TimeLayout and plain
// RFC 3339 (with or without fractional seconds); unparseable input yields
// the zero time.
func ParseTime(s string) time.Time {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
