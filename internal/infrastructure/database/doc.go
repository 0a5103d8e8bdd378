// Package database provides the SQLite layer backing event history.
//
// The bridge keeps a single SQLite file holding webhook events, state
// transitions, and discovery records. WAL mode lets the history API read
// while the recorder writes; STRICT tables and a busy timeout keep the
// single-writer model honest.
//
// Schema changes ship as embedded, additive-only migrations:
//   - New columns must be NULLABLE or carry a DEFAULT
//   - Columns are never dropped or renamed
//   - Every migration has a matching .down.sql for development rollback
//
// Usage:
//
//	db, err := database.Open(cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// All queries use parameterised statements, and the database file is
// created with 0600 permissions.
package database
