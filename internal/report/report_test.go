package report

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/testutil"
)

func readRows(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	return rows
}

func TestExportSite(t *testing.T) {
	db := testutil.OpenDB(t)
	site := testutil.SeedSite(t, db, "Paris")
	other := testutil.SeedSite(t, db, "Lyon")
	floor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, site, "A"), "RDC")
	otherFloor := testutil.SeedFloor(t, db, testutil.SeedBuilding(t, db, other, "B"), "RDC")

	testutil.SeedDevice(t, db, 10, floor)
	testutil.SeedDevice(t, db, 20, otherFloor)
	testutil.Exec(t, db, "UPDATE devices SET name = 'BAES-10', label = 'Hall' WHERE id = 10")
	testutil.SeedStatus(t, db, 10, 0, "2026-01-01T10:00:00.000Z")
	testutil.SeedStatus(t, db, 10, 6, "2026-01-02T10:00:00.000Z")
	testutil.SeedStatus(t, db, 20, 4, "2026-01-01T10:00:00.000Z")

	var buf bytes.Buffer
	got, err := NewExporter(db).ExportSite(context.Background(), site, &buf)
	if err != nil {
		t.Fatalf("ExportSite() error = %v", err)
	}
	if got.Name != "Paris" {
		t.Errorf("site = %q", got.Name)
	}

	rows := readRows(t, &buf)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "Device ID" || rows[0][11] != "Timestamp" {
		t.Errorf("header = %v", rows[0])
	}
	first := rows[1]
	if first[0] != "10" || first[1] != "BAES-10" || first[2] != "Hall" || first[5] != "connection" {
		t.Errorf("first row = %v", first)
	}
	if first[11] != "2026-01-01T10:00:00.000Z" {
		t.Errorf("timestamp = %q", first[11])
	}
	if rows[2][5] != "ok" {
		t.Errorf("second state = %q, want ok", rows[2][5])
	}
}

func TestExportSite_NotFound(t *testing.T) {
	var buf bytes.Buffer
	_, err := NewExporter(testutil.OpenDB(t)).ExportSite(context.Background(), 404, &buf)
	if !errors.Is(err, location.ErrSiteNotFound) {
		t.Errorf("ExportSite() error = %v, want ErrSiteNotFound", err)
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for a missing site")
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	rows := readRows(t, &buf)
	if len(rows) != 1 || len(rows[0]) != len(Header) {
		t.Errorf("rows = %v, want header only", rows)
	}
}

func TestStateName(t *testing.T) {
	tests := map[int]string{0: "connection", 4: "battery", 6: "ok", 9: "unknown"}
	for code, want := range tests {
		if got := StateName(code); got != want {
			t.Errorf("StateName(%d) = %q, want %q", code, got, want)
		}
	}
}
