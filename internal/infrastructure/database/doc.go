// Package database provides SQLite persistence for Hub Core.
//
// This package manages:
//   - Opening the database with WAL mode and busy-timeout pragmas
//   - Schema migrations embedded in the binary
//   - Connection lifecycle and health checks
//
// Hub Core stores config entries (pairing results) and related hub state
// in a single SQLite file. SQLite is used with a single writer connection,
// which matches its locking model.
//
// # Usage
//
//	db, err := database.Open(database.Config{Path: "./data/hubcore.db", WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
