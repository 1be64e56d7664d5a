package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// UserRepository persists user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	List(ctx context.Context) ([]User, error)
	ListBySite(ctx context.Context, siteID int64) ([]User, error)
	UpdateLogin(ctx context.Context, id int64, login string) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)
}

// SQLiteUserRepository implements UserRepository.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewUserRepository returns a UserRepository backed by db.
func NewUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, login, password_hash, created_at, updated_at`

func scanUser(s scanner) (*User, error) {
	var u User
	var createdAt, updatedAt string
	if err := s.Scan(&u.ID, &u.Login, &u.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = database.ParseTime(createdAt)
	u.UpdatedAt = database.ParseTime(updatedAt)
	return &u, nil
}

// Create inserts a user. PasswordHash must already be set.
func (r *SQLiteUserRepository) Create(ctx context.Context, user *User) error {
	return insertUser(ctx, r.db, user)
}

func insertUser(ctx context.Context, q database.Querier, user *User) error {
	login, err := ValidateLogin(user.Login)
	if err != nil {
		return err
	}
	if user.PasswordHash == "" {
		return fault.Validation("password is required")
	}

	const query = `INSERT INTO users (login, password_hash) VALUES (?, ?) RETURNING ` + userColumns
	created, err := scanUser(q.QueryRowContext(ctx, query, login, user.PasswordHash))
	if fault.IsUniqueViolation(err) {
		return ErrLoginExists
	}
	if err != nil {
		return fmt.Errorf("creating user: %w", fault.FromSQL(err))
	}
	*user = *created
	return nil
}

// GetByID returns one user.
func (r *SQLiteUserRepository) GetByID(ctx context.Context, id int64) (*User, error) {
	return getUser(ctx, r.db, `id = ?`, id)
}

// GetByLogin returns the user with the exact login.
func (r *SQLiteUserRepository) GetByLogin(ctx context.Context, login string) (*User, error) {
	return getUser(ctx, r.db, `login = ?`, login)
}

func getUser(ctx context.Context, q database.Querier, where string, arg any) (*User, error) {
	u, err := scanUser(q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

// List returns every user ordered by id.
func (r *SQLiteUserRepository) List(ctx context.Context) ([]User, error) {
	return r.queryUsers(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
}

// ListBySite returns the users holding any role on siteID.
func (r *SQLiteUserRepository) ListBySite(ctx context.Context, siteID int64) ([]User, error) {
	const query = `SELECT ` + userColumns + ` FROM users
		WHERE id IN (SELECT user_id FROM user_site_roles WHERE site_id = ?)
		ORDER BY id`
	return r.queryUsers(ctx, query, siteID)
}

func (r *SQLiteUserRepository) queryUsers(ctx context.Context, query string, args ...any) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

// UpdateLogin renames a user.
func (r *SQLiteUserRepository) UpdateLogin(ctx context.Context, id int64, login string) (*User, error) {
	return updateLogin(ctx, r.db, id, login)
}

func updateLogin(ctx context.Context, q database.Querier, id int64, login string) (*User, error) {
	login, err := ValidateLogin(login)
	if err != nil {
		return nil, err
	}
	const query = `UPDATE users SET login = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE id = ? RETURNING ` + userColumns
	u, err := scanUser(q.QueryRowContext(ctx, query, login, id))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, ErrUserNotFound
	case fault.IsUniqueViolation(err):
		return nil, ErrLoginExists
	case err != nil:
		return nil, fmt.Errorf("updating user %d: %w", id, fault.FromSQL(err))
	}
	return u, nil
}

// UpdatePassword stores a new password hash.
func (r *SQLiteUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return updatePassword(ctx, r.db, id, passwordHash)
}

func updatePassword(ctx context.Context, q database.Querier, id int64, passwordHash string) error {
	result, err := q.ExecContext(ctx, `UPDATE users SET password_hash = ?,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE id = ?`, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating password of user %d: %w", id, err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user. Its associations go with it; statuses it
// acknowledged keep the acknowledgment time but lose the user.
func (r *SQLiteUserRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting user %d: %w", id, fault.FromSQL(err))
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Count returns the number of users.
func (r *SQLiteUserRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
