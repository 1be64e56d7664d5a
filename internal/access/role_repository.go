package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

const maxRoleNameLength = 50

// RoleRepository persists roles.
type RoleRepository interface {
	Create(ctx context.Context, role *Role) error
	GetByID(ctx context.Context, id int64) (*Role, error)
	GetByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]Role, error)
	Delete(ctx context.Context, id int64) error
}

// SQLiteRoleRepository implements RoleRepository.
type SQLiteRoleRepository struct {
	db *sql.DB
}

// NewRoleRepository returns a RoleRepository backed by db.
func NewRoleRepository(db *sql.DB) *SQLiteRoleRepository {
	return &SQLiteRoleRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const roleColumns = `id, name, created_at, updated_at`

func scanRole(s scanner) (*Role, error) {
	var r Role
	var createdAt, updatedAt string
	if err := s.Scan(&r.ID, &r.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	r.CreatedAt = database.ParseTime(createdAt)
	r.UpdatedAt = database.ParseTime(updatedAt)
	return &r, nil
}

// Create inserts a role. The name is trimmed and must be unique.
func (r *SQLiteRoleRepository) Create(ctx context.Context, role *Role) error {
	name := strings.TrimSpace(role.Name)
	if name == "" {
		return fault.Validation("role name is required")
	}
	if len(name) > maxRoleNameLength {
		return fault.Validation("role name exceeds %d characters", maxRoleNameLength)
	}

	const query = `INSERT INTO roles (name) VALUES (?) RETURNING ` + roleColumns
	created, err := scanRole(r.db.QueryRowContext(ctx, query, name))
	if fault.IsUniqueViolation(err) {
		return ErrRoleExists
	}
	if err != nil {
		return fmt.Errorf("creating role: %w", fault.FromSQL(err))
	}
	*role = *created
	return nil
}

// GetByID returns one role.
func (r *SQLiteRoleRepository) GetByID(ctx context.Context, id int64) (*Role, error) {
	return getRole(ctx, r.db, `id = ?`, id)
}

// GetByName returns the role with the exact name.
func (r *SQLiteRoleRepository) GetByName(ctx context.Context, name string) (*Role, error) {
	return getRole(ctx, r.db, `name = ?`, name)
}

func getRole(ctx context.Context, q database.Querier, where string, arg any) (*Role, error) {
	role, err := scanRole(q.QueryRowContext(ctx, `SELECT `+roleColumns+` FROM roles WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRoleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting role: %w", err)
	}
	return role, nil
}

// List returns every role ordered by id.
func (r *SQLiteRoleRepository) List(ctx context.Context) ([]Role, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	defer rows.Close()

	roles := []Role{}
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating roles: %w", err)
	}
	return roles, nil
}

// Delete removes a role. A role still held by any association cannot be
// deleted; remove the associations first.
func (r *SQLiteRoleRepository) Delete(ctx context.Context, id int64) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := getRole(ctx, tx, `id = ?`, id); err != nil {
			return err
		}
		n, err := countByRole(ctx, tx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w (%d associations)", ErrRoleInUse, n)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting role %d: %w", id, fault.FromSQL(err))
		}
		return nil
	})
}

func countByRole(ctx context.Context, q database.Querier, roleID int64) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_site_roles WHERE role_id = ?`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting associations of role %d: %w", roleID, err)
	}
	return n, nil
}
