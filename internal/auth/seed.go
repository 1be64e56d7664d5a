package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
)

// DefaultRoles are created on first boot.
var DefaultRoles = []string{"user", "technicien", "admin", "super-admin"}

// SuperAdminRole is held globally by the seeded account.
const SuperAdminRole = "super-admin"

const seedPasswordBytes = 16

// SeedSuperAdmin creates the default roles and, when no user exists yet, a
// super-admin account holding SuperAdminRole globally. An empty password
// is replaced by a random one, which is returned so the caller can show it
// once. It returns "" when seeding was skipped.
func SeedSuperAdmin(ctx context.Context, db *sql.DB, login, password string, logger Logger) (string, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if login == "" {
		login = "superadmin"
	}

	generated := password == ""
	if generated {
		b := make([]byte, seedPasswordBytes)
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generating seed password: %w", err)
		}
		password = hex.EncodeToString(b)
	}

	var seeded bool
	err := database.WithTx(ctx, db, func(tx *sql.Tx) error {
		for _, name := range DefaultRoles {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO roles (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
				return fmt.Errorf("seeding role %s: %w", name, err)
			}
		}

		var users int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
			return fmt.Errorf("counting users: %w", err)
		}
		if users > 0 {
			return nil
		}

		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		user := &User{Login: login, PasswordHash: hash}
		if err := insertUser(ctx, tx, user); err != nil {
			return err
		}
		var roleID int64
		if err := tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, SuperAdminRole).Scan(&roleID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return access.ErrRoleNotFound
			}
			return fmt.Errorf("reading %s role: %w", SuperAdminRole, err)
		}
		if err := access.CreateTx(ctx, tx, &access.Association{UserID: user.ID, RoleID: roleID}); err != nil {
			return err
		}
		seeded = true
		return nil
	})
	if err != nil {
		return "", err
	}
	if !seeded {
		logger.Info("users exist, skipping super-admin seed")
		return "", nil
	}

	if generated {
		logger.Warn("super-admin account created",
			"login", login,
			"password", password,
			"action_required", "change this password immediately",
		)
	} else {
		logger.Info("super-admin account created", "login", login)
	}
	return password, nil
}
