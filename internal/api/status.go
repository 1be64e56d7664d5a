package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/baes-monitor/baes-core/internal/audit"
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

type ingestRequest struct {
	DeviceID    *int64   `json:"baes_id"`
	ErrorCode   *int     `json:"erreur"`
	Temperature *float64 `json:"temperature"`
	Vibration   *bool    `json:"vibration"`
	Solved      *bool    `json:"is_solved"`
	Name        *string  `json:"name"`
	Label       *string  `json:"label"`
}

// handleIngestStatus appends a reading, creating the device on first sight.
func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.DeviceID == nil || req.ErrorCode == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "baes_id and erreur are required")
		return
	}

	result, err := s.engine.Ingest(r.Context(), device.IngestRequest{
		DeviceID:    *req.DeviceID,
		ErrorCode:   *req.ErrorCode,
		Temperature: req.Temperature,
		Vibration:   req.Vibration,
		Solved:      req.Solved,
		Name:        req.Name,
		Label:       req.Label,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleListStatuses(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.statuses.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

func (s *Server) handleGetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	st, err := s.statuses.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListStatusesAfter returns statuses changed after the timestamp,
// given as RFC 3339 or the stored layout.
func (s *Server) handleListStatusesAfter(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "timestamp")
	since, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		if since, err = time.Parse(database.TimeLayout, raw); err != nil {
			writeBadRequest(w, "timestamp must be RFC 3339")
			return
		}
	}
	statuses, err := s.statuses.ListAfter(r.Context(), since)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

func (s *Server) handleListDeviceStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := s.devices.GetByID(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	statuses, err := s.statuses.ListByDevice(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

func (s *Server) handleListAcknowledged(w http.ResponseWriter, r *http.Request) {
	statuses, err := s.statuses.ListAcknowledged(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

func (s *Server) handleListFloorStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := s.locations.GetFloor(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	statuses, err := s.statuses.ListByFloor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

// handleListUserStatuses returns each device the user can see, unassigned
// ones included, with its latest status.
func (s *Server) handleListUserStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.selfOrAdmin(w, r, id) {
		return
	}
	views, err := s.visibility.GetVisibleDevicesFlat(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("devices", views, len(views)))
}

func (s *Server) handleLatestStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.statuses.LatestOverall(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleLatestSiteStatuses(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.requireSiteAccess(w, r, id) {
		return
	}
	if _, err := s.locations.GetSite(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	statuses, err := s.statuses.LatestBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("statuses", statuses, len(statuses)))
}

func (s *Server) handleSiteSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.requireSiteAccess(w, r, id) {
		return
	}
	summary, err := s.engine.SummaryBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type acknowledgeRequest struct {
	Solved *bool  `json:"is_solved"`
	UserID *int64 `json:"user_id"`
}

// handleAcknowledge sets or clears the solved flag. The session user wins
// over a user_id in the body.
func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req acknowledgeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Solved == nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "is_solved is required")
		return
	}

	actor := device.Actor{ExplicitUserID: req.UserID}
	if uid, ok := sessionUserID(r); ok {
		actor.SessionUserID = &uid
	}
	st, err := s.engine.Acknowledge(r.Context(), id, *req.Solved, actor)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionAcknowledge, "status", id, map[string]any{
		"is_solved": st.IsSolved,
		"device_id": st.DeviceID,
	})
	writeJSON(w, http.StatusOK, st)
}

// handleUpdateMeasurements patches the first status of a device with the
// given error code. A JSON null temperature clears the reading.
func (s *Server) handleUpdateMeasurements(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	code, err := strconv.Atoi(chi.URLParam(r, "code"))
	if err != nil {
		writeBadRequest(w, "invalid error code")
		return
	}

	var raw map[string]any
	if !decodeBody(w, r, &raw) {
		return
	}
	patch := device.MeasurementPatch{}
	if v, ok := raw["is_solved"].(bool); ok {
		patch.Solved = &v
	}
	if v, present := raw["temperature"]; present {
		patch.SetTemperature = true
		if f, ok := v.(float64); ok {
			patch.Temperature = &f
		} else if v != nil {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "temperature must be a number")
			return
		}
	}
	if v, present := raw["vibration"]; present && v != nil {
		b := coerceBool(v)
		patch.Vibration = &b
	}

	st, err := s.engine.UpdateMeasurements(r.Context(), id, code, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// coerceBool accepts booleans, numbers and 1/true/yes/on.
func coerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "1", "true", "yes", "on":
			return true
		}
	}
	return false
}

func (s *Server) handleDeleteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.engine.DeleteStatus(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, "status", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
