package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func int64Ptr(v int64) *int64 { return &v }

func TestAssociation_Create(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "alice")
	role := testutil.SeedRole(t, db, "admin")
	site := testutil.SeedSite(t, db, "Paris")

	scoped := &Association{UserID: user, SiteID: &site, RoleID: role}
	require.NoError(t, repo.Create(ctx, scoped))
	assert.NotZero(t, scoped.ID)
	assert.False(t, scoped.IsGlobal())

	legacy := &Association{UserID: user, SiteID: int64Ptr(GlobalSiteSentinel), RoleID: role}
	require.NoError(t, repo.Create(ctx, legacy))
	assert.True(t, legacy.IsGlobal(), "-1 must be stored as a global role")

	tests := []struct {
		name string
		a    Association
		want error
	}{
		{"duplicate scoped", Association{UserID: user, SiteID: &site, RoleID: role}, ErrAssociationExists},
		{"duplicate global", Association{UserID: user, RoleID: role}, ErrAssociationExists},
		{"missing user", Association{UserID: 999, RoleID: role}, ErrUserNotFound},
		{"missing role", Association{UserID: user, RoleID: 999}, ErrRoleNotFound},
		{"missing site", Association{UserID: user, SiteID: int64Ptr(999), RoleID: role}, location.ErrSiteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.a
			assert.ErrorIs(t, repo.Create(ctx, &a), tt.want)
		})
	}
	assert.Equal(t, 2, testutil.Count(t, db, "user_site_roles", ""))
}

func TestAssociation_ListAndFilter(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	bob := testutil.SeedUser(t, db, "bob")
	admin := testutil.SeedRole(t, db, "admin")
	user := testutil.SeedRole(t, db, "user")
	paris := testutil.SeedSite(t, db, "Paris")

	testutil.SeedAssociation(t, db, alice, 0, admin)
	testutil.SeedAssociation(t, db, alice, paris, user)
	testutil.SeedAssociation(t, db, bob, paris, user)

	all, err := repo.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byUser, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	bySite, err := repo.ListBySite(ctx, paris)
	require.NoError(t, err)
	assert.Len(t, bySite, 2)

	global, err := repo.List(ctx, Filter{GlobalOnly: true})
	require.NoError(t, err)
	require.Len(t, global, 1)
	assert.Equal(t, admin, global[0].RoleID)

	legacyGlobal, err := repo.List(ctx, Filter{SiteID: int64Ptr(GlobalSiteSentinel)})
	require.NoError(t, err)
	assert.Len(t, legacyGlobal, 1)

	byRole, err := repo.List(ctx, Filter{RoleID: &user, UserID: &bob})
	require.NoError(t, err)
	assert.Len(t, byRole, 1)

	n, err := repo.CountByRole(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	empty, err := repo.ListByUser(ctx, 999)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestAssociation_UpdateAndDelete(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	admin := testutil.SeedRole(t, db, "admin")
	viewer := testutil.SeedRole(t, db, "viewer")
	paris := testutil.SeedSite(t, db, "Paris")
	first := testutil.SeedAssociation(t, db, alice, paris, admin)
	second := testutil.SeedAssociation(t, db, alice, paris, viewer)

	a, err := repo.GetByID(ctx, second)
	require.NoError(t, err)
	a.RoleID = admin
	assert.ErrorIs(t, repo.Update(ctx, a), fault.ErrConflict)

	a.SiteID = nil
	require.NoError(t, repo.Update(ctx, a))
	assert.True(t, a.IsGlobal())

	assert.ErrorIs(t, repo.Update(ctx, &Association{ID: 999, UserID: alice, RoleID: admin}), ErrAssociationNotFound)

	require.NoError(t, repo.Delete(ctx, first))
	assert.ErrorIs(t, repo.Delete(ctx, first), ErrAssociationNotFound)

	_, err = repo.DeleteUserSite(ctx, alice, paris)
	assert.ErrorIs(t, err, ErrAssociationNotFound)
}

func TestAssociation_DeleteUserSite(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewAssociationRepository(db)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	admin := testutil.SeedRole(t, db, "admin")
	viewer := testutil.SeedRole(t, db, "viewer")
	paris := testutil.SeedSite(t, db, "Paris")
	testutil.SeedAssociation(t, db, alice, paris, admin)
	testutil.SeedAssociation(t, db, alice, paris, viewer)
	testutil.SeedAssociation(t, db, alice, 0, viewer)

	n, err := repo.DeleteUserSite(ctx, alice, paris)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, testutil.Count(t, db, "user_site_roles", "user_id = ?", alice))
}

func TestDemoteSiteTx_KeepsEveryAssociation(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()

	alice := testutil.SeedUser(t, db, "alice")
	admin := testutil.SeedRole(t, db, "admin")
	paris := testutil.SeedSite(t, db, "Paris")
	testutil.SeedAssociation(t, db, alice, 0, admin)
	testutil.SeedAssociation(t, db, alice, paris, admin)

	n, err := DemoteSiteTx(ctx, db, paris)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 2, testutil.Count(t, db, "user_site_roles", "site_id IS NULL"))
}
