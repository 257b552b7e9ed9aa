package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func TestOpen_CreatesFileAndDirectory(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestOpen_ForeignKeysEnabled(t *testing.T) {
	db := openTestDB(t)

	var enabled int
	if err := db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled); err != nil {
		t.Fatalf("querying foreign_keys pragma: %v", err)
	}
	if enabled != 1 {
		t.Error("foreign keys not enabled")
	}
}

func TestClose_Idempotent(t *testing.T) {
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Errorf("first Close() error = %v", err)
	}
	// Second close on the wrapped handle must not panic
	_ = db.Close()
}

func TestMigrate_AppliesSchema(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	// Without embedded migrations loaded, Migrate is a no-op.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	// schema_migrations table must exist either way.
	var name string
	err := db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name='schema_migrations'",
	).Scan(&name)
	if err != nil {
		t.Fatalf("schema_migrations table missing: %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		wantVersion string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_100000_initial_schema.up.sql", "20260301_100000", true, true},
		{"20260301_100000_initial_schema.down.sql", "20260301_100000", false, true},
		{"README.md", "", false, false},
		{"notes.sql", "", false, false},
	}

	for _, tt := range tests {
		version, isUp, ok := parseMigrationFilename(tt.name)
		if ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %v, want %v", tt.name, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion || isUp != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = (%q, %v), want (%q, %v)",
				tt.name, version, isUp, tt.wantVersion, tt.wantUp)
		}
	}
}
