package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baes-monitor/baes-core/internal/testutil"
)

func TestListByDevice_NewestFirst(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	testutil.SeedDevice(t, db, 1, 0)

	older := testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	newer := testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T11:00:00.000Z")

	got, err := repo.ListByDevice(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListByDevice() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != newer || got[1].ID != older {
		t.Errorf("ListByDevice() = %+v", got)
	}
}

func TestLatestByDevices_TieBreaksOnID(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	testutil.SeedDevice(t, db, 1, 0)
	testutil.SeedDevice(t, db, 2, 0)
	testutil.SeedDevice(t, db, 3, 0)

	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	second := testutil.SeedStatus(t, db, 1, CodeConnection, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 2, CodeBattery, "2026-03-02T10:00:00.000Z")
	testutil.SeedStatus(t, db, 2, CodeOK, "2026-03-01T10:00:00.000Z")

	latest, err := repo.LatestByDevices(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("LatestByDevices() error = %v", err)
	}
	if latest[1] == nil || latest[1].ID != second {
		t.Errorf("device 1 latest = %+v, want status %d", latest[1], second)
	}
	if latest[2] == nil || latest[2].ErrorCode != CodeBattery {
		t.Errorf("device 2 latest = %+v, want battery by timestamp", latest[2])
	}
	if _, ok := latest[3]; ok {
		t.Error("device without statuses should be absent")
	}
}

func TestLatestBySite(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)

	site := testutil.SeedSite(t, db, "Paris")
	other := testutil.SeedSite(t, db, "Lyon")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, site, "A"), "1")
	otherFloor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, other, "B"), "1")
	testutil.SeedDevice(t, db, 1, floor)
	testutil.SeedDevice(t, db, 2, otherFloor)
	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T12:00:00.000Z")
	testutil.SeedStatus(t, db, 2, CodeOK, "2026-03-01T12:00:00.000Z")

	got, err := repo.LatestBySite(context.Background(), site)
	if err != nil {
		t.Fatalf("LatestBySite() error = %v", err)
	}
	if len(got) != 1 || got[0].DeviceID != 1 || got[0].ErrorCode != CodeBattery {
		t.Errorf("LatestBySite() = %+v", got)
	}

	all, err := repo.ListBySite(context.Background(), site)
	if err != nil || len(all) != 2 {
		t.Errorf("ListBySite() = %d statuses, %v", len(all), err)
	}
}

func TestLatestOverall(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()

	if _, err := repo.LatestOverall(ctx); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("LatestOverall() on empty table error = %v", err)
	}

	testutil.SeedDevice(t, db, 1, 0)
	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	want := testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T09:00:00.000Z")
	testutil.Exec(t, db, "UPDATE statuses SET updated_at = '2026-03-02T00:00:00.000Z' WHERE id = ?", want)

	got, err := repo.LatestOverall(ctx)
	if err != nil {
		t.Fatalf("LatestOverall() error = %v", err)
	}
	if got.ID != want {
		t.Errorf("LatestOverall().ID = %d, want most recently changed %d", got.ID, want)
	}
}

func TestListAfter(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	testutil.SeedDevice(t, db, 1, 0)
	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")
	recent := testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T12:00:00.000Z")

	since := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	got, err := repo.ListAfter(context.Background(), since)
	if err != nil {
		t.Fatalf("ListAfter() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != recent {
		t.Errorf("ListAfter() = %+v, want only status %d", got, recent)
	}
}

func TestListAcknowledgedAndFloor(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()

	user := testutil.SeedUser(t, db, "alice")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, 0, "A"), "1")
	testutil.SeedDevice(t, db, 1, floor)
	acked := testutil.SeedStatus(t, db, 1, CodeBattery, "2026-03-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T11:00:00.000Z")
	testutil.Exec(t, db, "UPDATE statuses SET acknowledged_by_user_id = ? WHERE id = ?", user, acked)

	got, err := repo.ListAcknowledged(ctx)
	if err != nil {
		t.Fatalf("ListAcknowledged() error = %v", err)
	}
	if len(got) != 1 || got[0].AcknowledgedByLogin == nil || *got[0].AcknowledgedByLogin != "alice" {
		t.Errorf("ListAcknowledged() = %+v", got)
	}

	onFloor, err := repo.ListByFloor(ctx, floor)
	if err != nil || len(onFloor) != 2 {
		t.Errorf("ListByFloor() = %d statuses, %v", len(onFloor), err)
	}
}

func TestDeleteStatus(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteStatusRepository(db)
	ctx := context.Background()
	testutil.SeedDevice(t, db, 1, 0)
	id := testutil.SeedStatus(t, db, 1, CodeOK, "2026-03-01T10:00:00.000Z")

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, id); !errors.Is(err, ErrStatusNotFound) {
		t.Errorf("second Delete() error = %v, want ErrStatusNotFound", err)
	}
}
