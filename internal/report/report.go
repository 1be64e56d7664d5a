// Package report renders a site's status history as an XLSX workbook.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/location"
)

// SheetName is the worksheet holding the history.
const SheetName = "Statuses"

// Header is the first row of the sheet.
var Header = []string{
	"Device ID",
	"Device Name",
	"Label",
	"Floor ID",
	"Error Code",
	"State",
	"Solved",
	"Temperature",
	"Vibration",
	"Acknowledged By",
	"Acknowledged At",
	"Timestamp",
}

var columnWidths = []float64{12, 20, 20, 10, 12, 14, 10, 14, 12, 20, 26, 26}

// Exporter loads a site's history from the database and writes it out.
type Exporter struct {
	sites    *location.SQLiteRepository
	devices  *device.SQLiteRepository
	statuses *device.SQLiteStatusRepository
}

// NewExporter returns an Exporter on db.
func NewExporter(db *sql.DB) *Exporter {
	return &Exporter{
		sites:    location.NewSQLiteRepository(db),
		devices:  device.NewSQLiteRepository(db),
		statuses: device.NewSQLiteStatusRepository(db),
	}
}

// ExportSite writes every status of the devices on siteID to w. It returns
// the site so callers can name the download.
func (e *Exporter) ExportSite(ctx context.Context, siteID int64, w io.Writer) (*location.Site, error) {
	site, err := e.sites.GetSite(ctx, siteID)
	if err != nil {
		return nil, err
	}
	devices, err := e.devices.ListBySites(ctx, []int64{siteID})
	if err != nil {
		return nil, err
	}
	statuses, err := e.statuses.ListBySite(ctx, siteID)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]device.Device, len(devices))
	for _, d := range devices {
		byID[d.ID] = d
	}
	if err := Write(w, statuses, byID); err != nil {
		return nil, err
	}
	return site, nil
}

// Write renders statuses as a single-sheet workbook. Devices supply the
// name, label and floor columns and may be missing.
func Write(w io.Writer, statuses []device.Status, devices map[int64]device.Device) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if err := f.SetSheetRow(SheetName, "A1", &Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Header), 1)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	for i, width := range columnWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("converting column number: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, width); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	for i := range statuses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("converting coordinates: %w", err)
		}
		row := statusRow(&statuses[i], devices)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func statusRow(st *device.Status, devices map[int64]device.Device) []any {
	row := make([]any, len(Header))
	row[0] = st.DeviceID
	if d, ok := devices[st.DeviceID]; ok {
		row[1] = deref(d.Name)
		row[2] = deref(d.Label)
		if d.FloorID != nil {
			row[3] = *d.FloorID
		}
	}
	row[4] = st.ErrorCode
	row[5] = StateName(st.ErrorCode)
	row[6] = yesNo(st.IsSolved)
	if st.Temperature != nil {
		row[7] = *st.Temperature
	}
	row[8] = yesNo(st.Vibration)
	row[9] = deref(st.AcknowledgedByLogin)
	if st.AcknowledgedAt != nil {
		row[10] = database.FormatTime(*st.AcknowledgedAt)
	}
	row[11] = database.FormatTime(st.Timestamp)
	return row
}

// StateName is the human label of an error code.
func StateName(code int) string {
	switch code {
	case device.CodeConnection:
		return "connection"
	case device.CodeBattery:
		return "battery"
	case device.CodeOK:
		return "ok"
	default:
		return "unknown"
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
