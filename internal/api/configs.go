package api

import (
	"net/http"

	"github.com/baes-monitor/baes-core/internal/audit"
	"github.com/go-chi/chi/v5"
)

type configRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.settings.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("configs", entries, len(entries)))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	e, err := s.settings.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleGetConfigByKey(w http.ResponseWriter, r *http.Request) {
	e, err := s.settings.GetByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := s.settings.Create(r.Context(), req.Key, req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req configRequest
	if !decodeBody(w, r, &req) {
		return
	}
	e, err := s.settings.Update(r.Context(), id, req.Key, req.Value)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.settings.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, "config", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
