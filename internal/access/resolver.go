package access

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/location"
)

// Resolver computes a user's effective access from the association table.
type Resolver struct {
	db *sql.DB
}

// NewResolver returns a Resolver on db.
func NewResolver(db *sql.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveUserAccess partitions the user's associations into global roles
// and per-site roles, deduplicating roles by id in first-seen order. The
// referenced sites are collected into AccessibleSites in the same order.
// A user without associations resolves to empty access, not an error.
func (r *Resolver) ResolveUserAccess(ctx context.Context, userID int64) (*UserAccess, error) {
	return ResolveTx(ctx, r.db, userID)
}

// ResolveTx is ResolveUserAccess on an explicit querier.
func ResolveTx(ctx context.Context, q database.Querier, userID int64) (*UserAccess, error) {
	if err := userExists(ctx, q, userID); err != nil {
		return nil, err
	}

	const query = `SELECT usr.site_id, r.id, r.name, r.created_at, r.updated_at,
			s.name, s.created_at, s.updated_at
		FROM user_site_roles usr
		JOIN roles r ON r.id = usr.role_id
		LEFT JOIN sites s ON s.id = usr.site_id
		WHERE usr.user_id = ?
		ORDER BY usr.id`
	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("resolving access of user %d: %w", userID, err)
	}
	defer rows.Close()

	access := &UserAccess{
		UserID:          userID,
		GlobalRoles:     []Role{},
		SiteRoles:       map[int64][]Role{},
		AccessibleSites: []location.Site{},
	}
	globalSeen := map[int64]bool{}
	siteSeen := map[int64]map[int64]bool{}

	for rows.Next() {
		var siteID sql.NullInt64
		var role Role
		var roleCreated, roleUpdated string
		var siteName, siteCreated, siteUpdated sql.NullString
		if err := rows.Scan(&siteID, &role.ID, &role.Name, &roleCreated, &roleUpdated,
			&siteName, &siteCreated, &siteUpdated); err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		role.CreatedAt = database.ParseTime(roleCreated)
		role.UpdatedAt = database.ParseTime(roleUpdated)

		if !siteID.Valid {
			if !globalSeen[role.ID] {
				globalSeen[role.ID] = true
				access.GlobalRoles = append(access.GlobalRoles, role)
			}
			continue
		}

		sid := siteID.Int64
		seen, ok := siteSeen[sid]
		if !ok {
			seen = map[int64]bool{}
			siteSeen[sid] = seen
			access.SiteRoles[sid] = []Role{}
			access.AccessibleSites = append(access.AccessibleSites, location.Site{
				ID:        sid,
				Name:      siteName.String,
				CreatedAt: database.ParseTime(siteCreated.String),
				UpdatedAt: database.ParseTime(siteUpdated.String),
			})
		}
		if !seen[role.ID] {
			seen[role.ID] = true
			access.SiteRoles[sid] = append(access.SiteRoles[sid], role)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating associations: %w", err)
	}
	return access, nil
}
