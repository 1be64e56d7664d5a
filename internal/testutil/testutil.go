// Package testutil builds migrated in-memory databases and seed rows for
// the store packages' tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/baes-monitor/baes-core/internal/infrastructure/database"
	_ "github.com/baes-monitor/baes-core/migrations" // registers the schema
)

// OpenDB returns an in-memory database with the full schema applied.
// It is closed when the test ends.
func OpenDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db.DB
}

// Exec runs a seed statement and returns the inserted row id.
func Exec(t testing.TB, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	res, err := db.ExecContext(context.Background(), query, args...)
	if err != nil {
		t.Fatalf("seed %q: %v", query, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("seed %q: last insert id: %v", query, err)
	}
	return id
}

// Count returns SELECT COUNT(*) for the given table and optional WHERE clause.
func Count(t testing.TB, db *sql.DB, table, where string, args ...any) int {
	t.Helper()
	query := "SELECT COUNT(*) FROM " + table
	if where != "" {
		query += " WHERE " + where
	}
	var n int
	if err := db.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

// SeedUser inserts a user with a placeholder hash.
func SeedUser(t testing.TB, db *sql.DB, login string) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO users (login, password_hash) VALUES (?, 'x')", login)
}

// SeedRole inserts a role.
func SeedRole(t testing.TB, db *sql.DB, name string) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO roles (name) VALUES (?)", name)
}

// SeedSite inserts a site.
func SeedSite(t testing.TB, db *sql.DB, name string) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO sites (name) VALUES (?)", name)
}

// SeedBuilding inserts a building under siteID (0 for none).
func SeedBuilding(t testing.TB, db *sql.DB, siteID int64, name string) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO buildings (name, site_id) VALUES (?, ?)", name, nullID(siteID))
}

// SeedFloor inserts a floor under buildingID.
func SeedFloor(t testing.TB, db *sql.DB, buildingID int64, name string) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO floors (name, building_id) VALUES (?, ?)", name, buildingID)
}

// SeedDevice inserts a device with the given id on floorID (0 for unassigned).
func SeedDevice(t testing.TB, db *sql.DB, id, floorID int64) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO devices (id, floor_id) VALUES (?, ?)", id, nullID(floorID))
}

// SeedStatus appends a status with an explicit timestamp.
func SeedStatus(t testing.TB, db *sql.DB, deviceID int64, code int, timestamp string) int64 {
	t.Helper()
	return Exec(t, db,
		"INSERT INTO statuses (device_id, error_code, timestamp, updated_at) VALUES (?, ?, ?, ?)",
		deviceID, code, timestamp, timestamp)
}

// SeedMap inserts a map owned by a site or a floor (pass 0 for the other).
func SeedMap(t testing.TB, db *sql.DB, siteID, floorID int64) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO maps (path, site_id, floor_id) VALUES ('map.png', ?, ?)",
		nullID(siteID), nullID(floorID))
}

// SeedAssociation inserts a user/site/role association (siteID 0 = global).
func SeedAssociation(t testing.TB, db *sql.DB, userID, siteID, roleID int64) int64 {
	t.Helper()
	return Exec(t, db, "INSERT INTO user_site_roles (user_id, site_id, role_id) VALUES (?, ?, ?)",
		userID, nullID(siteID), roleID)
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
