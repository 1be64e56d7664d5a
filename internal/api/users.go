package api

import (
	"net/http"

	"github.com/baes-monitor/baes-core/internal/audit"
	"github.com/baes-monitor/baes-core/internal/auth"
	"github.com/baes-monitor/baes-core/internal/visibility"
)

type createUserRequest struct {
	Login       string          `json:"login"`
	Password    string          `json:"password"`
	RolesBySite map[int64]int64 `json:"rolesBySite"`
	GlobalRoles []int64         `json:"global_roles"`
}

type updateUserRequest struct {
	Login       *string         `json:"login"`
	Password    *string         `json:"password"`
	RolesBySite map[int64]int64 `json:"rolesBySite"`
	Replace     bool            `json:"replace"`
}

type roleRequest struct {
	RoleID int64 `json:"role_id"`
}

type userSiteRequest struct {
	SiteID int64 `json:"site_id"`
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.Users().List(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("users", users, len(users)))
}

// handleCreateUser creates a user with its site and global roles in one
// transaction.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.auth.CreateUser(r.Context(), auth.UserInput{
		Login:       req.Login,
		Password:    req.Password,
		RolesBySite: req.RolesBySite,
		GlobalRoles: req.GlobalRoles,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.selfOrAdmin(w, r, id) {
		return
	}
	user, err := s.auth.Users().GetByID(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// handleUpdateUser changes login or password and merges or replaces the
// user's site roles.
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	user, err := s.auth.UpdateUser(r.Context(), id, auth.RelationsUpdate{
		Login:       req.Login,
		Password:    req.Password,
		RolesBySite: req.RolesBySite,
		Replace:     req.Replace,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if err := s.auth.Users().Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.auditLog(r, audit.ActionDelete, "user", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// handleUserHierarchy returns the sites the user can see down to device
// level plus the unassigned devices.
func (s *Server) handleUserHierarchy(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.selfOrAdmin(w, r, id) {
		return
	}
	h, err := s.visibility.GetVisibleHierarchy(r.Context(), id, visibility.Options{History: wantHistory(r)})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUserDevices(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.selfOrAdmin(w, r, id) {
		return
	}
	devices, err := s.visibility.GetVisibleDevicesFlat(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("devices", devices, len(devices)))
}

// handleUserPermissions returns the user's resolved global and per-site roles.
func (s *Server) handleUserPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok || !s.selfOrAdmin(w, r, id) {
		return
	}
	ua, err := s.resolver.ResolveUserAccess(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ua)
}

func (s *Server) handleAssignGlobalRole(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.auth.AssignGlobalRole(r.Context(), id, req.RoleID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleAddUserSite grants the default role on a site.
func (s *Server) handleAddUserSite(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	var req userSiteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := s.auth.AddSite(r.Context(), id, req.SiteID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// handleRemoveUserSite drops every role the user holds on the site.
func (s *Server) handleRemoveUserSite(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	siteID, err := idParam(r, "siteID")
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}
	n, err := s.associations.DeleteUserSite(r.Context(), id, siteID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) handleListSiteUsers(w http.ResponseWriter, r *http.Request) {
	id, ok := withID(w, r)
	if !ok {
		return
	}
	if _, err := s.locations.GetSite(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	users, err := s.auth.Users().ListBySite(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("users", users, len(users)))
}
