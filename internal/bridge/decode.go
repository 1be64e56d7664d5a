package bridge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/baes-monitor/baes-core/internal/device"
)

var (
	// ErrMissingID is returned when a frame has no baes_id.
	ErrMissingID = errors.New("bridge: frame has no baes_id")

	// ErrInvalidID is returned when baes_id is not a hex string.
	ErrInvalidID = errors.New("bridge: baes_id is not hexadecimal")

	// ErrIDOutOfRange is returned for identifiers above the signed 64-bit range.
	ErrIDOutOfRange = errors.New("bridge: baes_id exceeds the signed 64-bit range")
)

// Reading is the body posted to the ingestion endpoint.
type Reading struct {
	DeviceID    int64    `json:"baes_id"`
	ErrorCode   int      `json:"erreur"`
	Temperature *float64 `json:"temperature,omitempty"`
	Vibration   *bool    `json:"vibration,omitempty"`
}

type frame struct {
	ID          *string         `json:"baes_id"`
	State       json.RawMessage `json:"baes_state"`
	Error       json.RawMessage `json:"erreur"`
	Temperature json.RawMessage `json:"temperature"`
	Vibration   json.RawMessage `json:"vibration"`
}

// Decode parses a gateway frame.
//
// baes_id is a hex string, optionally colon separated ("00:1A:2B"). The
// error code comes from baes_state, then erreur, and defaults to healthy
// when absent or not an integer. A temperature of "nan" is dropped.
func Decode(payload []byte) (*Reading, error) {
	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("bridge: decoding frame: %w", err)
	}
	if f.ID == nil || strings.TrimSpace(*f.ID) == "" {
		return nil, ErrMissingID
	}
	id, err := ParseID(*f.ID)
	if err != nil {
		return nil, err
	}

	r := &Reading{DeviceID: id, ErrorCode: device.CodeOK}
	if code, ok := parseCode(f.State); ok {
		r.ErrorCode = code
	} else if code, ok := parseCode(f.Error); ok && len(f.State) == 0 {
		r.ErrorCode = code
	}
	r.Temperature = parseTemperature(f.Temperature)
	r.Vibration = parseFlag(f.Vibration)
	return r, nil
}

// ParseID converts a colon separated hex identifier to a device id.
func ParseID(raw string) (int64, error) {
	hex := strings.ReplaceAll(strings.TrimSpace(raw), ":", "")
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, fmt.Errorf("%w: %q", ErrIDOutOfRange, raw)
		}
		return 0, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q", ErrIDOutOfRange, raw)
	}
	return int64(v), nil
}

// parseCode accepts a JSON number or a string of digits.
func parseCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n), true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if code, err := strconv.Atoi(s); err == nil && code >= 0 {
			return code, true
		}
	}
	return 0, false
}

func parseTemperature(raw json.RawMessage) *float64 {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return nil
		}
		if v, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
			return nil
		}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseFlag accepts booleans, numbers and the strings 1/true/yes/on.
func parseFlag(raw json.RawMessage) *bool {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &b
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		b = n != 0
		return &b
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "on":
			b = true
		}
		return &b
	}
	return nil
}
