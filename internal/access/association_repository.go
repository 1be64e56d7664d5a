package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/location"
)

// AssociationRepository persists user/site/role associations.
type AssociationRepository interface {
	Create(ctx context.Context, a *Association) error
	GetByID(ctx context.Context, id int64) (*Association, error)
	List(ctx context.Context, f Filter) ([]Association, error)
	ListByUser(ctx context.Context, userID int64) ([]Association, error)
	ListBySite(ctx context.Context, siteID int64) ([]Association, error)
	Update(ctx context.Context, a *Association) error
	Delete(ctx context.Context, id int64) error
	DeleteUserSite(ctx context.Context, userID, siteID int64) (int64, error)
	CountByRole(ctx context.Context, roleID int64) (int, error)
}

// SQLiteAssociationRepository implements AssociationRepository.
type SQLiteAssociationRepository struct {
	db *sql.DB
}

// NewAssociationRepository returns an AssociationRepository backed by db.
func NewAssociationRepository(db *sql.DB) *SQLiteAssociationRepository {
	return &SQLiteAssociationRepository{db: db}
}

const associationColumns = `id, user_id, site_id, role_id, created_at, updated_at`

func scanAssociation(s scanner) (*Association, error) {
	var a Association
	var siteID sql.NullInt64
	var createdAt, updatedAt string
	if err := s.Scan(&a.ID, &a.UserID, &siteID, &a.RoleID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if siteID.Valid {
		a.SiteID = &siteID.Int64
	}
	a.CreatedAt = database.ParseTime(createdAt)
	a.UpdatedAt = database.ParseTime(updatedAt)
	return &a, nil
}

// Create inserts an association. User and role must exist; a non-nil site
// must exist too. The legacy -1 site is stored as a global role.
func (r *SQLiteAssociationRepository) Create(ctx context.Context, a *Association) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return CreateTx(ctx, tx, a)
	})
}

// CreateTx is Create inside the caller's transaction.
func CreateTx(ctx context.Context, q database.Querier, a *Association) error {
	a.SiteID = NormalizeSiteID(a.SiteID)
	if err := checkReferences(ctx, q, a); err != nil {
		return err
	}
	if err := checkDuplicate(ctx, q, a); err != nil {
		return err
	}

	const query = `INSERT INTO user_site_roles (user_id, site_id, role_id) VALUES (?, ?, ?)
		RETURNING ` + associationColumns
	created, err := scanAssociation(q.QueryRowContext(ctx, query, a.UserID, nullInt(a.SiteID), a.RoleID))
	if fault.IsUniqueViolation(err) {
		return ErrAssociationExists
	}
	if err != nil {
		return fmt.Errorf("creating association: %w", fault.FromSQL(err))
	}
	*a = *created
	return nil
}

func checkReferences(ctx context.Context, q database.Querier, a *Association) error {
	if err := userExists(ctx, q, a.UserID); err != nil {
		return err
	}
	if _, err := getRole(ctx, q, `id = ?`, a.RoleID); err != nil {
		return err
	}
	if a.SiteID != nil {
		if _, err := location.GetSiteTx(ctx, q, *a.SiteID); err != nil {
			return err
		}
	}
	return nil
}

// checkDuplicate covers global associations, which the unique index
// leaves alone.
func checkDuplicate(ctx context.Context, q database.Querier, a *Association) error {
	const query = `SELECT COUNT(*) FROM user_site_roles
		WHERE user_id = ? AND role_id = ? AND site_id IS ? AND id <> ?`
	var n int
	if err := q.QueryRowContext(ctx, query, a.UserID, a.RoleID, nullInt(a.SiteID), a.ID).Scan(&n); err != nil {
		return fmt.Errorf("checking duplicate association: %w", err)
	}
	if n > 0 {
		return ErrAssociationExists
	}
	return nil
}

func userExists(ctx context.Context, q database.Querier, userID int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("checking user %d: %w", userID, err)
	}
	return nil
}

// GetByID returns one association.
func (r *SQLiteAssociationRepository) GetByID(ctx context.Context, id int64) (*Association, error) {
	return getAssociation(ctx, r.db, id)
}

func getAssociation(ctx context.Context, q database.Querier, id int64) (*Association, error) {
	const query = `SELECT ` + associationColumns + ` FROM user_site_roles WHERE id = ?`
	a, err := scanAssociation(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAssociationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting association %d: %w", id, err)
	}
	return a, nil
}

// List returns associations matching f ordered by id.
func (r *SQLiteAssociationRepository) List(ctx context.Context, f Filter) ([]Association, error) {
	return listAssociations(ctx, r.db, f)
}

// ListByUser returns every association of a user ordered by id.
func (r *SQLiteAssociationRepository) ListByUser(ctx context.Context, userID int64) ([]Association, error) {
	return listAssociations(ctx, r.db, Filter{UserID: &userID})
}

// ListBySite returns the associations scoped to a site.
func (r *SQLiteAssociationRepository) ListBySite(ctx context.Context, siteID int64) ([]Association, error) {
	return listAssociations(ctx, r.db, Filter{SiteID: &siteID})
}

func listAssociations(ctx context.Context, q database.Querier, f Filter) ([]Association, error) {
	var where []string
	var args []any
	if f.UserID != nil {
		where = append(where, "user_id = ?")
		args = append(args, *f.UserID)
	}
	if site := NormalizeSiteID(f.SiteID); site != nil {
		where = append(where, "site_id = ?")
		args = append(args, *site)
	} else if f.GlobalOnly || f.SiteID != nil {
		where = append(where, "site_id IS NULL")
	}
	if f.RoleID != nil {
		where = append(where, "role_id = ?")
		args = append(args, *f.RoleID)
	}

	query := `SELECT ` + associationColumns + ` FROM user_site_roles`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing associations: %w", err)
	}
	defer rows.Close()

	out := []Association{}
	for rows.Next() {
		a, err := scanAssociation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning association: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating associations: %w", err)
	}
	return out, nil
}

// Update replaces user, site and role of an association, with the same
// checks as Create.
func (r *SQLiteAssociationRepository) Update(ctx context.Context, a *Association) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := getAssociation(ctx, tx, a.ID); err != nil {
			return err
		}
		a.SiteID = NormalizeSiteID(a.SiteID)
		if err := checkReferences(ctx, tx, a); err != nil {
			return err
		}
		if err := checkDuplicate(ctx, tx, a); err != nil {
			return err
		}

		const query = `UPDATE user_site_roles SET user_id = ?, site_id = ?, role_id = ?,
			updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
			WHERE id = ? RETURNING ` + associationColumns
		updated, err := scanAssociation(tx.QueryRowContext(ctx, query, a.UserID, nullInt(a.SiteID), a.RoleID, a.ID))
		if fault.IsUniqueViolation(err) {
			return ErrAssociationExists
		}
		if err != nil {
			return fmt.Errorf("updating association %d: %w", a.ID, fault.FromSQL(err))
		}
		*a = *updated
		return nil
	})
}

// Delete removes one association.
func (r *SQLiteAssociationRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM user_site_roles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting association %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrAssociationNotFound
	}
	return nil
}

// DeleteUserSite removes every association of a user on one site and
// returns how many were removed.
func (r *SQLiteAssociationRepository) DeleteUserSite(ctx context.Context, userID, siteID int64) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_site_roles WHERE user_id = ? AND site_id = ?`, userID, siteID)
	if err != nil {
		return 0, fmt.Errorf("deleting associations of user %d on site %d: %w", userID, siteID, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return 0, ErrAssociationNotFound
	}
	return n, nil
}

// DeleteUserTx removes every association of a user.
func DeleteUserTx(ctx context.Context, q database.Querier, userID int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM user_site_roles WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("clearing associations of user %d: %w", userID, err)
	}
	return nil
}

// DemoteSiteTx turns every association on siteID into a global one and
// returns how many were demoted. Used while deleting the site.
func DemoteSiteTx(ctx context.Context, q database.Querier, siteID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `UPDATE user_site_roles SET site_id = NULL,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE site_id = ?`, siteID)
	if err != nil {
		return 0, fmt.Errorf("demoting associations of site %d: %w", siteID, fault.FromSQL(err))
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

// CountByRole returns how many associations hold a role.
func (r *SQLiteAssociationRepository) CountByRole(ctx context.Context, roleID int64) (int, error) {
	return countByRole(ctx, r.db, roleID)
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
