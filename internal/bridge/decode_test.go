package bridge

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		wantID   int64
		wantCode int
		wantTemp *float64
		wantVib  *bool
	}{
		{"state wins", `{"baes_id":"00:1A","baes_state":4,"erreur":0}`, 26, 4, nil, nil},
		{"erreur fallback", `{"baes_id":"1a","erreur":0}`, 26, 0, nil, nil},
		{"default code", `{"baes_id":"ff"}`, 255, 6, nil, nil},
		{"digit string", `{"baes_id":"01","baes_state":"4"}`, 1, 4, nil, nil},
		{"non numeric state", `{"baes_id":"01","baes_state":"bad","erreur":0}`, 1, 6, nil, nil},
		{"float code", `{"baes_id":"01","erreur":4.0}`, 1, 4, nil, nil},
		{"temperature", `{"baes_id":"01","temperature":21.5}`, 1, 6, f64(21.5), nil},
		{"temperature string", `{"baes_id":"01","temperature":"19.25"}`, 1, 6, f64(19.25), nil},
		{"temperature nan", `{"baes_id":"01","temperature":"nan"}`, 1, 6, nil, nil},
		{"vibration bool", `{"baes_id":"01","vibration":true}`, 1, 6, nil, b(true)},
		{"vibration number", `{"baes_id":"01","vibration":0}`, 1, 6, nil, b(false)},
		{"vibration string", `{"baes_id":"01","vibration":"on"}`, 1, 6, nil, b(true)},
		{"max int64", `{"baes_id":"7f:ff:ff:ff:ff:ff:ff:ff"}`, 1<<63 - 1, 6, nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got.DeviceID != tt.wantID || got.ErrorCode != tt.wantCode {
				t.Errorf("Decode() = id %d code %d, want %d %d", got.DeviceID, got.ErrorCode, tt.wantID, tt.wantCode)
			}
			if !equalF(got.Temperature, tt.wantTemp) {
				t.Errorf("Temperature = %v, want %v", got.Temperature, tt.wantTemp)
			}
			if !equalB(got.Vibration, tt.wantVib) {
				t.Errorf("Vibration = %v, want %v", got.Vibration, tt.wantVib)
			}
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    error
	}{
		{"missing id", `{"erreur":4}`, ErrMissingID},
		{"empty id", `{"baes_id":" "}`, ErrMissingID},
		{"not hex", `{"baes_id":"zz:01"}`, ErrInvalidID},
		{"above int64", `{"baes_id":"80:00:00:00:00:00:00:00"}`, ErrIDOutOfRange},
		{"above uint64", `{"baes_id":"01:00:00:00:00:00:00:00:00"}`, ErrIDOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode([]byte(tt.payload)); !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Decode([]byte("not json")); err == nil {
		t.Error("Decode(garbage) should fail")
	}
}

func f64(v float64) *float64 { return &v }
func b(v bool) *bool         { return &v }

func equalF(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalB(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
