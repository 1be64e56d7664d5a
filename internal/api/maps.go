package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/location"
)

const defaultMaxUploadMB = 16

type mapRequest struct {
	CenterLat *float64 `json:"center_lat"`
	CenterLng *float64 `json:"center_lng"`
	Zoom      *float64 `json:"zoom"`
}

type assignMapRequest struct {
	SiteID  *int64 `json:"site_id"`
	FloorID *int64 `json:"floor_id"`
}

func (s *Server) handleListMaps(w http.ResponseWriter, r *http.Request) {
	maps, err := s.locations.ListMaps(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("maps", maps, len(maps)))
}

func (s *Server) handleGetMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	m, err := s.locations.GetMap(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	s.updateMap(w, r, id)
}

func (s *Server) updateMap(w http.ResponseWriter, r *http.Request, id int64) {
	var req mapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := s.locations.UpdateMap(r.Context(), id, location.MapUpdate{
		CenterLat: req.CenterLat,
		CenterLng: req.CenterLng,
		Zoom:      req.Zoom,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleAssignMap attaches a map without an owner to a site or a floor.
func (s *Server) handleAssignMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req assignMapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	m, err := s.locations.AssignMap(r.Context(), id, req.SiteID, req.FloorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleGetSiteMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	m, err := s.locations.GetMapBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateSiteMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	m, err := s.locations.GetMapBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.updateMap(w, r, m.ID)
}

// handleUpdateSiteFloorMap updates a floor's map addressed through its
// site. The floor must belong to the site.
func (s *Server) handleUpdateSiteFloorMap(w http.ResponseWriter, r *http.Request) {
	siteID, ok := withID(w, r)
	if !ok {
		return
	}
	floorID, err := idParam(r, "floorID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	if _, err := s.locations.GetSite(r.Context(), siteID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	owner, err := s.locations.SiteOfFloor(r.Context(), floorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if owner == nil || *owner != siteID {
		s.writeServiceError(w, r, location.ErrFloorNotInSite)
		return
	}
	m, err := s.locations.GetMapByFloor(r.Context(), floorID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.updateMap(w, r, m.ID)
}

func (s *Server) handleGetFloorMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	m, err := s.locations.GetMapByFloor(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUploadSiteMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	s.uploadMap(w, r, &id, nil)
}

func (s *Server) handleUploadFloorMap(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	s.uploadMap(w, r, nil, &id)
}

// uploadMap stores the multipart "file" under a random name and creates
// the map row. Optional form fields center_lat, center_lng and zoom set
// the viewport.
func (s *Server) uploadMap(w http.ResponseWriter, r *http.Request, siteID, floorID *int64) {
	maxMB := s.cfg.Uploads.MaxSizeMB
	if maxMB <= 0 {
		maxMB = defaultMaxUploadMB
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxMB)<<20)
	if err := r.ParseMultipartForm(int64(maxMB) << 20); err != nil {
		writeBadRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "file is required")
		return
	}
	defer file.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !s.allowedExtension(ext) {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, fmt.Sprintf("file type %q not allowed", ext))
		return
	}

	m := &location.Map{SiteID: siteID, FloorID: floorID}
	if m.CenterLat, err = formFloat(r, "center_lat"); err == nil {
		if m.CenterLng, err = formFloat(r, "center_lng"); err == nil {
			m.Zoom, err = formFloat(r, "zoom")
		}
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	// Owner checks run before the file is written so a rejected upload
	// leaves nothing behind.
	if err := location.ValidateMapOwner(siteID, floorID); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	name := uuid.NewString() + "." + ext
	if err := s.saveUpload(file, name); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	m.Path = name
	if err := s.locations.CreateMap(r.Context(), m); err != nil {
		os.Remove(filepath.Join(s.cfg.Uploads.Dir, name)) //nolint:errcheck // best-effort cleanup
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) allowedExtension(ext string) bool {
	for _, allowed := range s.cfg.Uploads.AllowedExtensions {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}

func (s *Server) saveUpload(src io.Reader, name string) error {
	if err := os.MkdirAll(s.cfg.Uploads.Dir, 0o750); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}
	dst, err := os.OpenFile(filepath.Join(s.cfg.Uploads.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("creating upload file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck // already failing
		return fmt.Errorf("writing upload file: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing upload file: %w", err)
	}
	return nil
}

func formFloat(r *http.Request, key string) (float64, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fault.Validation("%s must be a number", key)
	}
	return f, nil
}

// handleServeMapFile streams an uploaded map image.
func (s *Server) handleServeMapFile(w http.ResponseWriter, r *http.Request) {
	name := filepath.Base(chi.URLParam(r, "name"))
	if name == "." || name == "/" || strings.HasPrefix(name, "..") {
		writeBadRequest(w, "invalid file name")
		return
	}
	path := filepath.Join(s.cfg.Uploads.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeNotFound(w, "file not found")
			return
		}
		s.writeServiceError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}
