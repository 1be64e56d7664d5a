package api

import (
	"encoding/json"
	"net/http"

	"github.com/baes-monitor/baes-core/internal/device"
)

type createDeviceRequest struct {
	ID        int64            `json:"id"`
	Name      *string          `json:"name"`
	Label     *string          `json:"label"`
	Position  *device.Position `json:"position"`
	FloorID   *int64           `json:"floor_id"`
	IsIgnored bool             `json:"is_ignored"`
}

// updateDeviceRequest keeps absent fields. floor_id: null unassigns.
type updateDeviceRequest struct {
	Name      *string          `json:"name"`
	Label     *string          `json:"label"`
	Position  *device.Position `json:"position"`
	FloorID   json.RawMessage  `json:"floor_id"`
	IsIgnored *bool            `json:"is_ignored"`
}

func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("devices", devices, len(devices)))
}

func (s *Server) handleListUnassignedDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.devices.ListUnassigned(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("devices", devices, len(devices)))
}

// handleCreateDevice registers a device under a caller-chosen id. The
// position on the floor map is required.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Position == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "position is required")
		return
	}
	d := &device.Device{
		ID:        req.ID,
		Name:      req.Name,
		Label:     req.Label,
		Position:  *req.Position,
		FloorID:   req.FloorID,
		IsIgnored: req.IsIgnored,
	}
	if err := s.devices.Create(r.Context(), d); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.engine.InvalidateSummaries(r.Context())
	writeJSON(w, http.StatusCreated, d)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	d, err := s.devices.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req updateDeviceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != nil {
		d.Name = req.Name
	}
	if req.Label != nil {
		d.Label = req.Label
	}
	if req.Position != nil {
		d.Position = *req.Position
	}
	if req.IsIgnored != nil {
		d.IsIgnored = *req.IsIgnored
	}
	if req.FloorID != nil {
		var floorID *int64
		if err := json.Unmarshal(req.FloorID, &floorID); err != nil {
			writeBadRequest(w, "floor_id must be an integer or null")
			return
		}
		d.FloorID = floorID
	}

	if err := s.devices.Update(r.Context(), d); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.engine.InvalidateSummaries(r.Context())
	writeJSON(w, http.StatusOK, d)
}

// handleDeleteDevice removes the device and its whole status history.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	s.deleteWith(w, r, "device", s.cascade.DeleteDevice)
}

type ignoreRequest struct {
	IsIgnored *bool `json:"is_ignored"`
}

func (s *Server) handleSetDeviceIgnored(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req ignoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsIgnored == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "is_ignored is required")
		return
	}
	d, err := s.devices.SetIgnored(r.Context(), id, *req.IsIgnored)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}
