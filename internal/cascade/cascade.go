// Package cascade deletes sites, buildings, floors and devices together
// with what hangs off them.
//
// Every call is one transaction. Devices under a deleted floor are
// detached, not deleted, so their history survives; associations on a
// deleted site are demoted to global roles. Only DeleteDevice removes
// statuses.
package cascade

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/fault"
	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	"github.com/baes-monitor/baes-core/internal/location"
)

// DeletionReport counts what one deletion touched.
type DeletionReport struct {
	BuildingsDeleted      int64 `json:"buildings_deleted"`
	FloorsDeleted         int64 `json:"floors_deleted"`
	DevicesDetached       int64 `json:"devices_detached"`
	StatusesDeleted       int64 `json:"statuses_deleted"`
	MapsDeleted           int64 `json:"maps_deleted"`
	AssociationsPreserved int64 `json:"associations_preserved"`
}

// Logger is the logging surface the coordinator needs.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

// SummaryInvalidator drops cached site summaries after structural changes.
type SummaryInvalidator interface {
	InvalidateSummaries(ctx context.Context)
}

// Coordinator runs cascading deletions.
type Coordinator struct {
	db          *sql.DB
	logger      Logger
	invalidator SummaryInvalidator
}

// New returns a Coordinator on db.
func New(db *sql.DB) *Coordinator {
	return &Coordinator{db: db, logger: noopLogger{}}
}

// SetLogger sets the logger.
func (c *Coordinator) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// SetSummaryInvalidator registers who to tell when devices move.
func (c *Coordinator) SetSummaryInvalidator(inv SummaryInvalidator) {
	c.invalidator = inv
}

// DeleteSite removes the site's map, its buildings with their floors and
// floor maps, detaches the devices on those floors, demotes the site's
// associations to global and finally removes the site.
func (c *Coordinator) DeleteSite(ctx context.Context, siteID int64) (*DeletionReport, error) {
	return c.run(ctx, "site", siteID, func(tx *sql.Tx, report *DeletionReport) error {
		if err := exists(ctx, tx, `SELECT 1 FROM sites WHERE id = ?`, siteID, location.ErrSiteNotFound); err != nil {
			return err
		}
		n, err := exec(ctx, tx, `DELETE FROM maps WHERE site_id = ?`, siteID)
		if err != nil {
			return err
		}
		report.MapsDeleted += n

		buildings, err := childIDs(ctx, tx, `SELECT id FROM buildings WHERE site_id = ? ORDER BY id`, siteID)
		if err != nil {
			return err
		}
		for _, id := range buildings {
			if err := deleteBuilding(ctx, tx, id, report); err != nil {
				return err
			}
		}

		if report.AssociationsPreserved, err = access.DemoteSiteTx(ctx, tx, siteID); err != nil {
			return err
		}
		_, err = exec(ctx, tx, `DELETE FROM sites WHERE id = ?`, siteID)
		return err
	})
}

// DeleteBuilding removes a building and its floors, detaching their
// devices. Associations are untouched.
func (c *Coordinator) DeleteBuilding(ctx context.Context, buildingID int64) (*DeletionReport, error) {
	return c.run(ctx, "building", buildingID, func(tx *sql.Tx, report *DeletionReport) error {
		if err := exists(ctx, tx, `SELECT 1 FROM buildings WHERE id = ?`, buildingID, location.ErrBuildingNotFound); err != nil {
			return err
		}
		return deleteBuilding(ctx, tx, buildingID, report)
	})
}

// DeleteFloor removes a floor and its map, detaching its devices.
func (c *Coordinator) DeleteFloor(ctx context.Context, floorID int64) (*DeletionReport, error) {
	return c.run(ctx, "floor", floorID, func(tx *sql.Tx, report *DeletionReport) error {
		if err := exists(ctx, tx, `SELECT 1 FROM floors WHERE id = ?`, floorID, location.ErrFloorNotFound); err != nil {
			return err
		}
		return deleteFloor(ctx, tx, floorID, report)
	})
}

// DeleteDevice removes a device and all of its statuses.
func (c *Coordinator) DeleteDevice(ctx context.Context, deviceID int64) (*DeletionReport, error) {
	return c.run(ctx, "device", deviceID, func(tx *sql.Tx, report *DeletionReport) error {
		if err := exists(ctx, tx, `SELECT 1 FROM devices WHERE id = ?`, deviceID, device.ErrDeviceNotFound); err != nil {
			return err
		}
		n, err := exec(ctx, tx, `DELETE FROM statuses WHERE device_id = ?`, deviceID)
		if err != nil {
			return err
		}
		report.StatusesDeleted = n
		_, err = exec(ctx, tx, `DELETE FROM devices WHERE id = ?`, deviceID)
		return err
	})
}

func (c *Coordinator) run(ctx context.Context, kind string, id int64, fn func(*sql.Tx, *DeletionReport) error) (*DeletionReport, error) {
	report := &DeletionReport{}
	if err := database.WithTx(ctx, c.db, func(tx *sql.Tx) error {
		return fn(tx, report)
	}); err != nil {
		return nil, err
	}

	c.logger.Info(kind+" deleted",
		"id", id,
		"buildings_deleted", report.BuildingsDeleted,
		"floors_deleted", report.FloorsDeleted,
		"devices_detached", report.DevicesDetached,
		"statuses_deleted", report.StatusesDeleted,
		"maps_deleted", report.MapsDeleted,
		"associations_preserved", report.AssociationsPreserved,
	)
	if c.invalidator != nil {
		c.invalidator.InvalidateSummaries(ctx)
	}
	return report, nil
}

func deleteBuilding(ctx context.Context, tx *sql.Tx, buildingID int64, report *DeletionReport) error {
	floors, err := childIDs(ctx, tx, `SELECT id FROM floors WHERE building_id = ? ORDER BY id`, buildingID)
	if err != nil {
		return err
	}
	for _, id := range floors {
		if err := deleteFloor(ctx, tx, id, report); err != nil {
			return err
		}
	}
	if _, err := exec(ctx, tx, `DELETE FROM buildings WHERE id = ?`, buildingID); err != nil {
		return err
	}
	report.BuildingsDeleted++
	return nil
}

func deleteFloor(ctx context.Context, tx *sql.Tx, floorID int64, report *DeletionReport) error {
	n, err := exec(ctx, tx, `DELETE FROM maps WHERE floor_id = ?`, floorID)
	if err != nil {
		return err
	}
	report.MapsDeleted += n

	n, err = exec(ctx, tx, `UPDATE devices SET floor_id = NULL,
		updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now') WHERE floor_id = ?`, floorID)
	if err != nil {
		return err
	}
	report.DevicesDetached += n

	if _, err := exec(ctx, tx, `DELETE FROM floors WHERE id = ?`, floorID); err != nil {
		return err
	}
	report.FloorsDeleted++
	return nil
}

func exists(ctx context.Context, tx *sql.Tx, query string, id int64, notFound error) error {
	var one int
	err := tx.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("checking %d: %w", id, err)
	}
	return nil
}

func exec(ctx context.Context, tx *sql.Tx, query string, args ...any) (int64, error) {
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("cascade step failed: %w", fault.FromSQL(err))
	}
	n, _ := result.RowsAffected() //nolint:errcheck // SQLite always supports RowsAffected
	return n, nil
}

func childIDs(ctx context.Context, tx *sql.Tx, query string, parentID int64) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing children of %d: %w", parentID, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning child id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating child ids: %w", err)
	}
	return ids, nil
}
