package api

import (
	"net/http"
	"strconv"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/audit"
)

type associationRequest struct {
	UserID int64  `json:"user_id"`
	SiteID *int64 `json:"site_id"`
	RoleID int64  `json:"role_id"`
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.roles.List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("roles", roles, len(roles)))
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var role access.Role
	if !decodeBody(w, r, &role) {
		return
	}
	role.ID = 0
	if err := s.roles.Create(r.Context(), &role); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, role)
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	role, err := s.roles.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, role)
}

// handleDeleteRole refuses with 409 while any association holds the role.
func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.roles.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, "role", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleListAssociations filters by user_id, site_id and role_id query
// parameters; global=true keeps only global roles.
func (s *Server) handleListAssociations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f access.Filter
	for key, dst := range map[string]**int64{"user_id": &f.UserID, "site_id": &f.SiteID, "role_id": &f.RoleID} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeBadRequest(w, "invalid "+key)
			return
		}
		*dst = &id
	}
	f.GlobalOnly, _ = strconv.ParseBool(q.Get("global")) //nolint:errcheck // absent or invalid means false

	list, err := s.associations.List(r.Context(), f)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("associations", list, len(list)))
}

// handleCreateAssociation grants a role. A null or -1 site_id grants it
// globally.
func (s *Server) handleCreateAssociation(w http.ResponseWriter, r *http.Request) {
	var req associationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a := &access.Association{UserID: req.UserID, SiteID: req.SiteID, RoleID: req.RoleID}
	if err := s.associations.Create(r.Context(), a); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) handleGetAssociation(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	a, err := s.associations.GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleUpdateAssociation(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req associationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a := &access.Association{ID: id, UserID: req.UserID, SiteID: req.SiteID, RoleID: req.RoleID}
	if err := s.associations.Update(r.Context(), a); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDeleteAssociation(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.associations.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, "user_site_role", id, nil)
	w.WriteHeader(http.StatusNoContent)
}
