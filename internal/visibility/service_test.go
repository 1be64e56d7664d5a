package visibility

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

type fixture struct {
	db                    *sql.DB
	user, stranger        int64
	paris, lyon           int64
	parisFloor, lyonFloor int64
	building              int64
}

// newFixture seeds two sites with one device each, one unassigned device,
// and a user who can see only Paris.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &fixture{db: db}

	f.user = testutil.SeedUser(t, db, "alice")
	f.stranger = testutil.SeedUser(t, db, "nobody")
	role := testutil.SeedRole(t, db, "user")

	f.paris = testutil.SeedSite(t, db, "Paris")
	f.lyon = testutil.SeedSite(t, db, "Lyon")
	f.building = testutil.SeedBuilding(t, db, f.paris, "A")
	f.parisFloor = testutil.SeedFloor(t, db, f.building, "RDC")
	f.lyonFloor = testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, f.lyon, "B"), "1")
	testutil.SeedMap(t, db, f.paris, 0)
	testutil.SeedMap(t, db, 0, f.parisFloor)

	testutil.SeedDevice(t, db, 1, f.parisFloor)
	testutil.SeedDevice(t, db, 2, f.lyonFloor)
	testutil.SeedDevice(t, db, 3, 0)
	testutil.SeedStatus(t, db, 1, device.CodeOK, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 1, device.CodeBattery, "2026-03-01T11:00:00.000Z")
	testutil.SeedStatus(t, db, 3, device.CodeConnection, "2026-03-01T10:00:00.000Z")

	testutil.SeedAssociation(t, db, f.user, f.paris, role)
	return f
}

func deviceIDs(views []DeviceView) []int64 {
	ids := make([]int64, len(views))
	for i, v := range views {
		ids[i] = v.ID
	}
	return ids
}

func TestGetVisibleHierarchy(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.db)

	h, err := s.GetVisibleHierarchy(context.Background(), f.user, Options{})
	require.NoError(t, err)

	require.Len(t, h.Sites, 1)
	site := h.Sites[0]
	assert.Equal(t, f.paris, site.ID)
	require.NotNil(t, site.Map)
	require.Len(t, site.Buildings, 1)
	require.Len(t, site.Buildings[0].Floors, 1)

	floor := site.Buildings[0].Floors[0]
	assert.NotNil(t, floor.Map)
	require.Len(t, floor.Devices, 1)
	require.NotNil(t, floor.Devices[0].LatestStatus)
	assert.Equal(t, device.CodeBattery, floor.Devices[0].LatestStatus.ErrorCode)
	assert.Nil(t, floor.Devices[0].Statuses, "history only on request")

	assert.Equal(t, []int64{3}, deviceIDs(h.Unassigned))
}

func TestGetVisibleHierarchy_History(t *testing.T) {
	f := newFixture(t)
	h, err := NewService(f.db).GetVisibleHierarchy(context.Background(), f.user, Options{History: true})
	require.NoError(t, err)

	dev := h.Sites[0].Buildings[0].Floors[0].Devices[0]
	require.Len(t, dev.Statuses, 2)
	assert.Equal(t, device.CodeBattery, dev.Statuses[0].ErrorCode, "newest first")
}

func TestGetVisibleHierarchy_NoAccessStillSeesUnassigned(t *testing.T) {
	f := newFixture(t)
	h, err := NewService(f.db).GetVisibleHierarchy(context.Background(), f.stranger, Options{})
	require.NoError(t, err)

	assert.NotNil(t, h.Sites)
	assert.Empty(t, h.Sites)
	assert.Equal(t, []int64{3}, deviceIDs(h.Unassigned))

	raw, err := json.Marshal(h)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sites":[]`)
}

func TestGetVisibleHierarchy_UnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := NewService(f.db).GetVisibleHierarchy(context.Background(), 999, Options{})
	assert.ErrorIs(t, err, fault.ErrNotFound)
}

func TestGetVisibleDevicesFlat(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.db)
	ctx := context.Background()

	views, err := s.GetVisibleDevicesFlat(ctx, f.user)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 3}, deviceIDs(views))

	views, err = s.GetVisibleDevicesFlat(ctx, f.stranger)
	require.NoError(t, err)
	assert.Equal(t, []int64{3}, deviceIDs(views))
	require.NotNil(t, views[0].LatestStatus)
	assert.Equal(t, device.CodeConnection, views[0].LatestStatus.ErrorCode)
}

func TestGetSiteFull(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.db)
	ctx := context.Background()

	view, err := s.GetSiteFull(ctx, f.lyon, Options{})
	require.NoError(t, err)
	assert.Nil(t, view.Map)
	require.Len(t, view.Buildings, 1)
	dev := view.Buildings[0].Floors[0].Devices[0]
	assert.Equal(t, int64(2), dev.ID)
	assert.Nil(t, dev.LatestStatus)

	_, err = s.GetSiteFull(ctx, 999, Options{})
	assert.ErrorIs(t, err, location.ErrSiteNotFound)
}

func TestGetBuildingFullAndFloorDevices(t *testing.T) {
	f := newFixture(t)
	s := NewService(f.db)
	ctx := context.Background()

	b, err := s.GetBuildingFull(ctx, f.building)
	require.NoError(t, err)
	require.Len(t, b.Floors, 1)
	assert.Len(t, b.Floors[0].Devices[0].Statuses, 2)

	_, err = s.GetBuildingFull(ctx, 999)
	assert.ErrorIs(t, err, location.ErrBuildingNotFound)

	devices, err := s.FloorDevices(ctx, f.lyonFloor, Options{})
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, deviceIDs(devices))

	_, err = s.FloorDevices(ctx, 999, Options{})
	assert.ErrorIs(t, err, location.ErrFloorNotFound)
}
