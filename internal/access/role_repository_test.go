package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func TestRoleRepository_CreateAndGet(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	role := &Role{Name: " technician "}
	require.NoError(t, repo.Create(ctx, role))
	assert.NotZero(t, role.ID)
	assert.Equal(t, "technician", role.Name)

	byName, err := repo.GetByName(ctx, "technician")
	require.NoError(t, err)
	assert.Equal(t, role.ID, byName.ID)

	assert.ErrorIs(t, repo.Create(ctx, &Role{Name: "technician"}), fault.ErrConflict)
	assert.ErrorIs(t, repo.Create(ctx, &Role{Name: "  "}), fault.ErrValidation)

	_, err = repo.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrRoleNotFound)

	roles, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, roles, 1)
}

func TestRoleRepository_DeleteBlockedWhileAssigned(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewRoleRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "alice")
	used := testutil.SeedRole(t, db, "admin")
	unused := testutil.SeedRole(t, db, "viewer")
	assoc := testutil.SeedAssociation(t, db, user, 0, used)

	err := repo.Delete(ctx, used)
	assert.ErrorIs(t, err, ErrRoleInUse)
	assert.Equal(t, fault.KindConflict, fault.Classify(err))
	assert.Equal(t, 1, testutil.Count(t, db, "roles", "id = ?", used))

	require.NoError(t, repo.Delete(ctx, unused))
	assert.ErrorIs(t, repo.Delete(ctx, unused), ErrRoleNotFound)

	testutil.Exec(t, db, "DELETE FROM user_site_roles WHERE id = ?", assoc)
	assert.NoError(t, repo.Delete(ctx, used))
}
