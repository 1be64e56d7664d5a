package location

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func newRepo(t *testing.T) (*SQLiteRepository, context.Context) {
	t.Helper()
	return NewSQLiteRepository(testutil.OpenDB(t)), context.Background()
}

func int64Ptr(v int64) *int64 { return &v }

func TestCreateSite(t *testing.T) {
	repo, ctx := newRepo(t)

	site := &Site{Name: "  Hospital North  "}
	if err := repo.CreateSite(ctx, site); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}
	if site.ID == 0 {
		t.Fatal("CreateSite() did not set id")
	}
	if site.Name != "Hospital North" {
		t.Errorf("Name = %q, want trimmed", site.Name)
	}
	if site.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}

	got, err := repo.GetSite(ctx, site.ID)
	if err != nil {
		t.Fatalf("GetSite() error = %v", err)
	}
	if got.Name != "Hospital North" {
		t.Errorf("GetSite().Name = %q", got.Name)
	}
}

func TestCreateSite_Errors(t *testing.T) {
	repo, ctx := newRepo(t)

	if err := repo.CreateSite(ctx, &Site{Name: "A"}); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}

	tests := []struct {
		name string
		site Site
		want error
	}{
		{"empty name", Site{Name: "   "}, fault.ErrValidation},
		{"duplicate name", Site{Name: "A"}, fault.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := repo.CreateSite(ctx, &tt.site)
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateSite() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGetSite_NotFound(t *testing.T) {
	repo, ctx := newRepo(t)
	if _, err := repo.GetSite(ctx, 99); !errors.Is(err, ErrSiteNotFound) {
		t.Fatalf("GetSite() error = %v, want ErrSiteNotFound", err)
	}
}

func TestUpdateSite(t *testing.T) {
	repo, ctx := newRepo(t)
	a := &Site{Name: "A"}
	b := &Site{Name: "B"}
	for _, s := range []*Site{a, b} {
		if err := repo.CreateSite(ctx, s); err != nil {
			t.Fatalf("CreateSite() error = %v", err)
		}
	}

	a.Name = "A2"
	if err := repo.UpdateSite(ctx, a); err != nil {
		t.Fatalf("UpdateSite() error = %v", err)
	}
	if a.Name != "A2" {
		t.Errorf("Name = %q", a.Name)
	}

	b.Name = "A2"
	if err := repo.UpdateSite(ctx, b); !errors.Is(err, fault.ErrConflict) {
		t.Errorf("UpdateSite(duplicate) error = %v, want conflict", err)
	}
	if err := repo.UpdateSite(ctx, &Site{ID: 404, Name: "X"}); !errors.Is(err, ErrSiteNotFound) {
		t.Errorf("UpdateSite(missing) error = %v, want not found", err)
	}
}

func TestListSites(t *testing.T) {
	repo, ctx := newRepo(t)

	sites, err := repo.ListSites(ctx)
	if err != nil {
		t.Fatalf("ListSites() error = %v", err)
	}
	if sites == nil || len(sites) != 0 {
		t.Fatalf("ListSites() = %v, want empty non-nil", sites)
	}

	for _, n := range []string{"S1", "S2"} {
		if err := repo.CreateSite(ctx, &Site{Name: n}); err != nil {
			t.Fatalf("CreateSite() error = %v", err)
		}
	}
	sites, _ = repo.ListSites(ctx)
	if len(sites) != 2 || sites[0].Name != "S1" || sites[1].Name != "S2" {
		t.Errorf("ListSites() = %+v", sites)
	}
}

func TestBuildings(t *testing.T) {
	repo, ctx := newRepo(t)
	site := &Site{Name: "S"}
	if err := repo.CreateSite(ctx, site); err != nil {
		t.Fatalf("CreateSite() error = %v", err)
	}

	b := &Building{
		Name:          "Block A",
		SiteID:        &site.ID,
		PolygonPoints: json.RawMessage(`[[0,0],[0,1],[1,1]]`),
	}
	if err := repo.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("CreateBuilding() error = %v", err)
	}
	loose := &Building{Name: "Annex"}
	if err := repo.CreateBuilding(ctx, loose); err != nil {
		t.Fatalf("CreateBuilding(no site) error = %v", err)
	}
	if loose.SiteID != nil {
		t.Errorf("SiteID = %v, want nil", *loose.SiteID)
	}

	got, err := repo.GetBuilding(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBuilding() error = %v", err)
	}
	if string(got.PolygonPoints) != `[[0,0],[0,1],[1,1]]` {
		t.Errorf("PolygonPoints = %s", got.PolygonPoints)
	}

	bySite, err := repo.ListBuildingsBySite(ctx, site.ID)
	if err != nil {
		t.Fatalf("ListBuildingsBySite() error = %v", err)
	}
	if len(bySite) != 1 || bySite[0].ID != b.ID {
		t.Errorf("ListBuildingsBySite() = %+v", bySite)
	}
	all, _ := repo.ListBuildings(ctx)
	if len(all) != 2 {
		t.Errorf("ListBuildings() len = %d, want 2", len(all))
	}

	loose.SiteID = &site.ID
	loose.Name = "Annex B"
	if err := repo.UpdateBuilding(ctx, loose); err != nil {
		t.Fatalf("UpdateBuilding() error = %v", err)
	}
	if loose.SiteID == nil || *loose.SiteID != site.ID {
		t.Error("UpdateBuilding() did not move building to site")
	}
}

func TestCreateBuilding_Errors(t *testing.T) {
	repo, ctx := newRepo(t)

	tests := []struct {
		name string
		b    Building
		want error
	}{
		{"missing name", Building{}, fault.ErrValidation},
		{"unknown site", Building{Name: "B", SiteID: int64Ptr(9)}, ErrSiteNotFound},
		{"bad polygon", Building{Name: "B", PolygonPoints: json.RawMessage(`{"x":1}`)}, fault.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.CreateBuilding(ctx, &tt.b); !errors.Is(err, tt.want) {
				t.Errorf("CreateBuilding() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFloors(t *testing.T) {
	repo, ctx := newRepo(t)
	site := &Site{Name: "S"}
	_ = repo.CreateSite(ctx, site)
	b := &Building{Name: "B", SiteID: &site.ID}
	if err := repo.CreateBuilding(ctx, b); err != nil {
		t.Fatalf("CreateBuilding() error = %v", err)
	}

	f := &Floor{Name: "Ground", BuildingID: b.ID}
	if err := repo.CreateFloor(ctx, f); err != nil {
		t.Fatalf("CreateFloor() error = %v", err)
	}
	if err := repo.CreateFloor(ctx, &Floor{Name: "X", BuildingID: 77}); !errors.Is(err, ErrBuildingNotFound) {
		t.Errorf("CreateFloor(unknown building) error = %v", err)
	}

	floors, err := repo.ListFloorsByBuilding(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListFloorsByBuilding() error = %v", err)
	}
	if len(floors) != 1 || floors[0].Name != "Ground" {
		t.Errorf("ListFloorsByBuilding() = %+v", floors)
	}

	siteID, err := repo.SiteOfFloor(ctx, f.ID)
	if err != nil {
		t.Fatalf("SiteOfFloor() error = %v", err)
	}
	if siteID == nil || *siteID != site.ID {
		t.Errorf("SiteOfFloor() = %v, want %d", siteID, site.ID)
	}
	if _, err := repo.SiteOfFloor(ctx, 500); !errors.Is(err, ErrFloorNotFound) {
		t.Errorf("SiteOfFloor(missing) error = %v", err)
	}

	f.Name = "Level 0"
	if err := repo.UpdateFloor(ctx, f); err != nil {
		t.Fatalf("UpdateFloor() error = %v", err)
	}
	got, _ := repo.GetFloor(ctx, f.ID)
	if got.Name != "Level 0" {
		t.Errorf("GetFloor().Name = %q", got.Name)
	}
	if _, err := repo.GetFloor(ctx, 404); !errors.Is(err, ErrFloorNotFound) {
		t.Errorf("GetFloor(missing) error = %v", err)
	}
}
