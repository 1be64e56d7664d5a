// Package access holds roles, the user/site/role associations and the
// resolver that turns them into a user's effective access.
//
// An association with a nil site is a global role and applies across all
// sites. Roles are flat: holding "admin" says nothing about "user", so
// callers check every acceptable role name themselves.
//
//	access, err := resolver.ResolveUserAccess(ctx, userID)
//	if access.HasRole("admin") || access.HasSiteRole(siteID, "technician") {
//	    // allowed
//	}
package access
