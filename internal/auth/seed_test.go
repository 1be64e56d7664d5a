package auth

import (
	"context"
	"testing"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func TestSeedSuperAdmin_EmptyDatabase(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	password, err := SeedSuperAdmin(ctx, db, "", "", nil)
	if err != nil {
		t.Fatalf("SeedSuperAdmin() error = %v", err)
	}
	if password == "" {
		t.Fatal("SeedSuperAdmin() should return the generated password")
	}
	if n := testutil.Count(t, db, "roles", ""); n != len(DefaultRoles) {
		t.Errorf("roles = %d, want %d", n, len(DefaultRoles))
	}

	user, err := NewUserRepository(db).GetByLogin(ctx, "superadmin")
	if err != nil {
		t.Fatalf("GetByLogin() error = %v", err)
	}
	if ok, _ := VerifyPassword(password, user.PasswordHash); !ok {
		t.Error("returned password does not match stored hash")
	}

	ua, err := access.NewResolver(db).ResolveUserAccess(ctx, user.ID)
	if err != nil {
		t.Fatalf("ResolveUserAccess() error = %v", err)
	}
	if !ua.HasRole(SuperAdminRole) {
		t.Errorf("global roles = %+v, want %s", ua.GlobalRoles, SuperAdminRole)
	}
}

func TestSeedSuperAdmin_SkipsWhenUsersExist(t *testing.T) {
	db := testutil.OpenDB(t)
	testutil.SeedUser(t, db, "someone")

	password, err := SeedSuperAdmin(context.Background(), db, "root", "configured", nil)
	if err != nil {
		t.Fatalf("SeedSuperAdmin() error = %v", err)
	}
	if password != "" {
		t.Errorf("password = %q, want empty when skipped", password)
	}
	if n := testutil.Count(t, db, "users", ""); n != 1 {
		t.Errorf("users = %d, want 1", n)
	}
	if n := testutil.Count(t, db, "roles", ""); n != len(DefaultRoles) {
		t.Errorf("roles = %d, want defaults created anyway", n)
	}
}
