// Package database provides SQLite connectivity for vhtoggle.
//
// The database holds the persisted device state slot and the state
// transition history. It is a single local file; one CLI invocation or one
// watch process uses it at a time.
//
// This package manages:
//   - Opening the database (directory creation, WAL mode, busy timeout)
//   - Applying embedded up-only schema migrations
//   - Health checks and lifecycle management
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS, "."); err != nil {
//	    return err
//	}
//
// Migration files are named YYYYMMDD_HHMMSS_description.up.sql and are applied
// in version order, each in its own transaction.
package database
