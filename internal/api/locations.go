package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/baes-monitor/baes-core/internal/audit"
	"github.com/baes-monitor/baes-core/internal/cascade"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/visibility"
)

type siteRequest struct {
	Name string `json:"name"`
}

type buildingRequest struct {
	Name          string          `json:"name"`
	PolygonPoints json.RawMessage `json:"polygon_points"`
	SiteID        *int64          `json:"site_id"`
}

type floorRequest struct {
	Name       string `json:"name"`
	BuildingID int64  `json:"building_id"`
}

func (s *Server) handleListSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.locations.ListSites(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("sites", sites, len(sites)))
}

func (s *Server) handleCreateSite(w http.ResponseWriter, r *http.Request) {
	var req siteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	site := &location.Site{Name: req.Name}
	if err := s.locations.CreateSite(r.Context(), site); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, site)
}

func (s *Server) handleGetSite(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	site, err := s.locations.GetSite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

func (s *Server) handleUpdateSite(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req siteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	site := &location.Site{ID: id, Name: req.Name}
	if err := s.locations.UpdateSite(r.Context(), site); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, site)
}

// handleDeleteSite cascades over the site's buildings and floors and
// returns what was removed.
func (s *Server) handleDeleteSite(w http.ResponseWriter, r *http.Request) {
	s.deleteWith(w, r, "site", s.cascade.DeleteSite)
}

func (s *Server) handleGetSiteFull(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.requireSiteAccess(w, r, id) {
		return
	}
	view, err := s.visibility.GetSiteFull(r.Context(), id, visibility.Options{History: wantHistory(r)})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListSiteBuildings(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := s.locations.GetSite(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	buildings, err := s.locations.ListBuildingsBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("buildings", buildings, len(buildings)))
}

func (s *Server) handleListBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := s.locations.ListBuildings(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("buildings", buildings, len(buildings)))
}

func (s *Server) handleCreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req buildingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	b := &location.Building{Name: req.Name, PolygonPoints: req.PolygonPoints, SiteID: req.SiteID}
	if err := s.locations.CreateBuilding(r.Context(), b); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (s *Server) handleGetBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	b, err := s.locations.GetBuilding(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleUpdateBuilding(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	b, err := s.locations.GetBuilding(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req buildingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	// Absent fields keep their current value.
	if req.Name != "" {
		b.Name = req.Name
	}
	if req.PolygonPoints != nil {
		b.PolygonPoints = req.PolygonPoints
	}
	if req.SiteID != nil {
		b.SiteID = req.SiteID
	}
	if err := s.locations.UpdateBuilding(r.Context(), b); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.engine.InvalidateSummaries(r.Context())
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleDeleteBuilding(w http.ResponseWriter, r *http.Request) {
	s.deleteWith(w, r, "building", s.cascade.DeleteBuilding)
}

func (s *Server) handleListBuildingFloors(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := s.locations.GetBuilding(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	floors, err := s.locations.ListFloorsByBuilding(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("floors", floors, len(floors)))
}

// handleBuildingAllData returns a building with its floors, their maps and
// devices with their latest status.
func (s *Server) handleBuildingAllData(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	view, err := s.visibility.GetBuildingFull(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleListFloors(w http.ResponseWriter, r *http.Request) {
	floors, err := s.locations.ListFloors(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("floors", floors, len(floors)))
}

func (s *Server) handleCreateFloor(w http.ResponseWriter, r *http.Request) {
	var req floorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f := &location.Floor{Name: req.Name, BuildingID: req.BuildingID}
	if err := s.locations.CreateFloor(r.Context(), f); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFloor(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	f, err := s.locations.GetFloor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleUpdateFloor(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	f, err := s.locations.GetFloor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	var req floorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Name != "" {
		f.Name = req.Name
	}
	if req.BuildingID != 0 {
		f.BuildingID = req.BuildingID
	}
	if err := s.locations.UpdateFloor(r.Context(), f); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.engine.InvalidateSummaries(r.Context())
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFloor(w http.ResponseWriter, r *http.Request) {
	s.deleteWith(w, r, "floor", s.cascade.DeleteFloor)
}

// handleListFloorDevices returns the floor's devices with their latest
// status, and every status with ?history=true.
func (s *Server) handleListFloorDevices(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	devices, err := s.visibility.FloorDevices(r.Context(), id, visibility.Options{History: wantHistory(r)})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("devices", devices, len(devices)))
}

// deleteWith runs a cascading delete on {id}, audits it and returns the
// deletion report.
func (s *Server) deleteWith(w http.ResponseWriter, r *http.Request, entity string,
	del func(context.Context, int64) (*cascade.DeletionReport, error),
) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	report, err := del(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, entity, id, map[string]any{
		"buildings_deleted":      report.BuildingsDeleted,
		"floors_deleted":         report.FloorsDeleted,
		"devices_detached":       report.DevicesDetached,
		"statuses_deleted":       report.StatusesDeleted,
		"maps_deleted":           report.MapsDeleted,
		"associations_preserved": report.AssociationsPreserved,
	})
	writeJSON(w, http.StatusOK, report)
}
