package access

import (
	"time"

	"github.com/baes-monitor/baes-core/internal/location"
)

// GlobalSiteSentinel is the legacy marker some clients send for a global
// role. It is normalised to a nil site before storage.
const GlobalSiteSentinel int64 = -1

// Role is a named permission bundle.
type Role struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Association grants a role to a user on one site, or on every site when
// SiteID is nil.
type Association struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	SiteID    *int64    `json:"site_id"`
	RoleID    int64     `json:"role_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsGlobal reports whether the association applies across all sites.
func (a *Association) IsGlobal() bool {
	return a.SiteID == nil
}

// Filter narrows an association listing. Nil fields match everything.
type Filter struct {
	UserID     *int64
	SiteID     *int64
	RoleID     *int64
	GlobalOnly bool
}

// UserAccess is a user's resolved roles.
type UserAccess struct {
	UserID          int64            `json:"user_id"`
	GlobalRoles     []Role           `json:"global_roles"`
	SiteRoles       map[int64][]Role `json:"site_roles"`
	AccessibleSites []location.Site  `json:"accessible_sites"`
}

// SiteIDs returns the accessible site ids in first-seen order.
func (u *UserAccess) SiteIDs() []int64 {
	ids := make([]int64, len(u.AccessibleSites))
	for i, s := range u.AccessibleSites {
		ids[i] = s.ID
	}
	return ids
}

// HasRole reports whether the user holds the named role globally.
func (u *UserAccess) HasRole(name string) bool {
	return containsRole(u.GlobalRoles, name)
}

// HasSiteRole reports whether the user holds the named role on siteID.
// Global roles are not consulted.
func (u *UserAccess) HasSiteRole(siteID int64, name string) bool {
	return containsRole(u.SiteRoles[siteID], name)
}

// CanAccessSite reports whether siteID is among the accessible sites.
func (u *UserAccess) CanAccessSite(siteID int64) bool {
	_, ok := u.SiteRoles[siteID]
	return ok
}

func containsRole(roles []Role, name string) bool {
	for _, r := range roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// NormalizeSiteID maps the legacy global sentinel to nil.
func NormalizeSiteID(siteID *int64) *int64 {
	if siteID == nil || *siteID == GlobalSiteSentinel {
		return nil
	}
	return siteID
}
