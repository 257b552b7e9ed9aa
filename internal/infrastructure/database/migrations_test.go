package database

import (
	"context"
	"embed"
	"testing"
)

//go:embed testdata/*.sql
var testMigrationsFS embed.FS

// withTestMigrations points the package at the testdata fixtures and
// restores the previous registration when the test finishes.
func withTestMigrations(t *testing.T) {
	t.Helper()
	prevFS, prevDir := MigrationsFS, MigrationsDir
	MigrationsFS = testMigrationsFS
	MigrationsDir = "testdata"
	t.Cleanup(func() {
		MigrationsFS = prevFS
		MigrationsDir = prevDir
	})
}

func TestMigrate_AppliesPendingInOrder(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// Second migration adds the color column, so both must have run.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO widgets (name, color) VALUES ('dial', 'red')",
	); err != nil {
		t.Fatalf("inserting into migrated table: %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 2 || len(pending) != 0 {
		t.Errorf("status = %d applied, %d pending, want 2 applied, 0 pending",
			len(applied), len(pending))
	}
	if applied[0].Version != "20260301_100000" || applied[1].Version != "20260302_090000" {
		t.Errorf("applied order = %s, %s", applied[0].Version, applied[1].Version)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM schema_migrations",
	).Scan(&count); err != nil {
		t.Fatalf("counting migration records: %v", err)
	}
	if count != 2 {
		t.Errorf("schema_migrations rows = %d, want 2", count)
	}
}

func TestMigrateDown_RollsBackLatest(t *testing.T) {
	withTestMigrations(t)
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("status = %d applied, %d pending, want 1 applied, 1 pending",
			len(applied), len(pending))
	}

	// The color column from the rolled-back migration must be gone.
	if _, err := db.ExecContext(ctx,
		"INSERT INTO widgets (name, color) VALUES ('dial', 'red')",
	); err == nil {
		t.Error("insert with rolled-back column succeeded, want error")
	}
}
