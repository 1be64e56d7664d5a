package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func TestCreateAndList(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewSQLiteRepository(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	admin := testutil.SeedUser(t, db, "admin")
	entries := []*Entry{
		{Action: ActionDelete, EntityType: "site", EntityID: "1", UserID: &admin,
			Details: map[string]any{"buildings_deleted": 2}, CreatedAt: base},
		{Action: ActionAcknowledge, EntityType: "status", EntityID: "9", CreatedAt: base.Add(time.Minute)},
		{Action: ActionDelete, EntityType: "device", EntityID: "42", UserID: &admin, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() did not assign an id")
		}
	}

	all, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if all.Total != 3 || len(all.Entries) != 3 || all.Limit != 50 {
		t.Fatalf("List() total=%d len=%d limit=%d", all.Total, len(all.Entries), all.Limit)
	}
	if all.Entries[0].EntityType != "device" {
		t.Errorf("first entry = %s, want newest (device)", all.Entries[0].EntityType)
	}
	last := all.Entries[2]
	if last.UserID == nil || *last.UserID != admin {
		t.Errorf("UserID = %v, want %d", last.UserID, admin)
	}
	if last.Details["buildings_deleted"] != float64(2) {
		t.Errorf("Details = %v", last.Details)
	}
	if !last.CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", last.CreatedAt, base)
	}

	deletes, err := repo.List(ctx, Filter{Action: ActionDelete, UserID: &admin, Limit: 1})
	if err != nil {
		t.Fatalf("List(filtered) error = %v", err)
	}
	if deletes.Total != 2 || len(deletes.Entries) != 1 {
		t.Errorf("List(filtered) total=%d len=%d, want 2/1", deletes.Total, len(deletes.Entries))
	}

	status, err := repo.List(ctx, Filter{EntityType: "status", EntityID: "9"})
	if err != nil {
		t.Fatalf("List(status) error = %v", err)
	}
	if status.Total != 1 || status.Entries[0].UserID != nil {
		t.Errorf("List(status) = %+v", status.Entries)
	}
}

func TestCreate_Validation(t *testing.T) {
	repo := NewSQLiteRepository(testutil.OpenDB(t))
	err := repo.Create(context.Background(), &Entry{Action: ActionDelete})
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("Create() error = %v, want ErrValidation", err)
	}
}

func TestList_Empty(t *testing.T) {
	repo := NewSQLiteRepository(testutil.OpenDB(t))
	got, err := repo.List(context.Background(), Filter{Limit: 500, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Entries == nil || got.Limit != 200 || got.Offset != 0 {
		t.Errorf("List() = %+v", got)
	}
}
