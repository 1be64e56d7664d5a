package api

import (
	"net/http"

	"github.com/baes-monitor/baes-core/internal/audit"
)

type loginRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// handleLogin checks credentials and returns a token with the user's
// roles grouped per site.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	login := req.Login
	if login == "" {
		login = req.Username
	}

	session, err := s.auth.Login(r.Context(), login, req.Password)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeAudit(r.Context(), &audit.Entry{
		Action:     audit.ActionLogin,
		EntityType: "user",
		EntityID:   formatID(session.User.ID),
		UserID:     &session.User.ID,
	})
	writeJSON(w, http.StatusOK, session)
}

// handleLogout revokes the caller's session. It always succeeds.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Logout(r.Context(), claimsFrom(r))
	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleMe returns the caller's profile.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, ok := sessionUserID(r)
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	profile, err := s.auth.Profile(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// handleMySites returns the sites the caller can access.
func (s *Server) handleMySites(w http.ResponseWriter, r *http.Request) {
	uid, ok := sessionUserID(r)
	if !ok {
		writeUnauthorized(w, "authentication required")
		return
	}
	ua, err := s.resolver.ResolveUserAccess(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse("sites", ua.AccessibleSites, len(ua.AccessibleSites)))
}

// selfOrAdmin allows a caller to read their own records; anything else
// needs an admin role.
func (s *Server) selfOrAdmin(w http.ResponseWriter, r *http.Request, userID int64) bool {
	uid, ok := sessionUserID(r)
	if !ok {
		writeUnauthorized(w, "authentication required")
		return false
	}
	if uid == userID {
		return true
	}
	ua, err := s.resolver.ResolveUserAccess(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return false
	}
	if !hasAnyRole(ua, adminRoles) {
		writeForbidden(w, "insufficient role")
		return false
	}
	return true
}

// requireSiteAccess lets global admins through and otherwise requires the
// session user to have a role on siteID.
func (s *Server) requireSiteAccess(w http.ResponseWriter, r *http.Request, siteID int64) bool {
	uid, ok := sessionUserID(r)
	if !ok {
		writeUnauthorized(w, "authentication required")
		return false
	}
	ua, err := s.resolver.ResolveUserAccess(r.Context(), uid)
	if err != nil {
		s.writeServiceError(w, r, err)
		return false
	}
	if !hasAnyRole(ua, adminRoles) && !ua.CanAccessSite(siteID) {
		writeForbidden(w, "no access to site")
		return false
	}
	return true
}
