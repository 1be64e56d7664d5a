package device

import (
	"context"
	"errors"
	"testing"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func strPtr(s string) *string { return &s }
func int64Ptr(v int64) *int64 { return &v }

func TestCreateDevice(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	site := testutil.SeedSite(t, db, "Paris")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, site, "A"), "RDC")

	d := &Device{ID: 1001, Name: strPtr("  Hall  "), Position: Position{X: 12.5, Y: 40}, FloorID: &floor}
	if err := repo.Create(ctx, d); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if *d.Name != "Hall" {
		t.Errorf("Name = %q, want trimmed", *d.Name)
	}
	if d.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	got, err := repo.GetByID(ctx, 1001)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Position.X != 12.5 || got.FloorID == nil || *got.FloorID != floor {
		t.Errorf("GetByID() = %+v", got)
	}
}

func TestCreateDevice_Errors(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{ID: 1, Name: strPtr("A")}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name   string
		device Device
		want   error
	}{
		{"zero id", Device{ID: 0}, fault.ErrValidation},
		{"blank name", Device{ID: 2, Name: strPtr("  ")}, fault.ErrValidation},
		{"long label", Device{ID: 2, Label: strPtr(string(make([]byte, 51)))}, fault.ErrValidation},
		{"duplicate id", Device{ID: 1}, ErrDeviceExists},
		{"duplicate name", Device{ID: 2, Name: strPtr("A")}, ErrDeviceNameTaken},
		{"missing floor", Device{ID: 3, FloorID: int64Ptr(99)}, location.ErrFloorNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.device
			if err := repo.Create(ctx, &d); !errors.Is(err, tt.want) {
				t.Errorf("Create() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGetByID_NotFound(t *testing.T) {
	repo := NewSQLiteRepository(testutil.OpenDB(t))
	if _, err := repo.GetByID(context.Background(), 7); !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want not found", err)
	}
}

func TestListings(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	paris := testutil.SeedSite(t, db, "Paris")
	lyon := testutil.SeedSite(t, db, "Lyon")
	fParis := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, paris, "A"), "1")
	fLyon := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, lyon, "B"), "1")

	testutil.SeedDevice(t, db, 1, fParis)
	testutil.SeedDevice(t, db, 2, fLyon)
	testutil.SeedDevice(t, db, 3, 0)

	all, err := repo.List(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("List() = %d devices, %v", len(all), err)
	}

	unassigned, err := repo.ListUnassigned(ctx)
	if err != nil || len(unassigned) != 1 || unassigned[0].ID != 3 {
		t.Errorf("ListUnassigned() = %+v, %v", unassigned, err)
	}

	onFloor, err := repo.ListByFloor(ctx, fLyon)
	if err != nil || len(onFloor) != 1 || onFloor[0].ID != 2 {
		t.Errorf("ListByFloor() = %+v, %v", onFloor, err)
	}

	bySites, err := repo.ListBySites(ctx, []int64{paris, lyon})
	if err != nil || len(bySites) != 2 {
		t.Errorf("ListBySites() = %+v, %v", bySites, err)
	}

	none, err := repo.ListBySites(ctx, nil)
	if err != nil || none == nil || len(none) != 0 {
		t.Errorf("ListBySites(nil) = %#v, %v; want empty non-nil", none, err)
	}
}

func TestUpdateDevice(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()

	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, 0, "A"), "1")
	testutil.SeedDevice(t, db, 5, floor)

	d, err := repo.GetByID(ctx, 5)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	d.Label = strPtr("Stairwell")
	d.FloorID = nil
	if err := repo.Update(ctx, d); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if d.FloorID != nil || d.Label == nil || *d.Label != "Stairwell" {
		t.Errorf("Update() = %+v", d)
	}

	if err := repo.Update(ctx, &Device{ID: 404}); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Update(missing) error = %v", err)
	}
}

func TestSetIgnored(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	testutil.SeedDevice(t, db, 9, 0)

	d, err := repo.SetIgnored(ctx, 9, true)
	if err != nil {
		t.Fatalf("SetIgnored() error = %v", err)
	}
	if !d.IsIgnored {
		t.Error("IsIgnored = false after SetIgnored(true)")
	}
	if _, err := repo.SetIgnored(ctx, 10, true); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("SetIgnored(missing) error = %v", err)
	}
}
