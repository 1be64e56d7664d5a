// Package database owns the SQLite connection and the schema migrations.
//
// Every store package (location, device, access, auth, setting, audit)
// shares the *sql.DB exposed by DB. Foreign keys are enforced on every
// connection and the pool is capped at one connection, so multi-statement
// operations such as cascade deletions are serialised by SQLite itself.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// Migrations are embedded *.up.sql / *.down.sql pairs registered by the
// migrations package (see MigrationsFS).
package database
