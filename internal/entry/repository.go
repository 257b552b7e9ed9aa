package entry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for config-entry persistence.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves an entry by ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	GetByID(ctx context.Context, id string) (*Entry, error)

	// List retrieves all entries.
	List(ctx context.Context) ([]Entry, error)

	// ListByDomain retrieves all entries for an integration domain.
	ListByDomain(ctx context.Context, domain string) ([]Entry, error)

	// HasUniqueID reports whether an entry with the unique ID exists for the domain.
	HasUniqueID(ctx context.Context, domain, uniqueID string) (bool, error)

	// Create inserts a new entry.
	// Returns ErrUniqueIDTaken if the (domain, unique_id) pair exists.
	Create(ctx context.Context, e *Entry) error

	// UpdateData replaces an entry's data map (token refresh, reauth).
	// Returns ErrEntryNotFound if the entry does not exist.
	UpdateData(ctx context.Context, id string, data map[string]any) error

	// Delete removes an entry by ID.
	// Returns ErrEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// config_entries migration applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = "id, domain, title, unique_id, data, created_at, updated_at"

// GetByID retrieves an entry by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Entry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries WHERE id = ?"

	e, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("querying entry by id: %w", err)
	}
	return e, nil
}

// List retrieves all entries ordered by creation time.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries ORDER BY created_at"
	return r.queryEntries(ctx, query)
}

// ListByDomain retrieves all entries for an integration domain.
func (r *SQLiteRepository) ListByDomain(ctx context.Context, domain string) ([]Entry, error) {
	query := "SELECT " + entryColumns + " FROM config_entries WHERE domain = ? ORDER BY created_at"
	return r.queryEntries(ctx, query, domain)
}

// HasUniqueID reports whether an entry with the unique ID exists for the domain.
func (r *SQLiteRepository) HasUniqueID(ctx context.Context, domain, uniqueID string) (bool, error) {
	if uniqueID == "" {
		return false, nil
	}

	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM config_entries WHERE domain = ? AND unique_id = ?",
		domain, uniqueID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking unique id: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new entry.
func (r *SQLiteRepository) Create(ctx context.Context, e *Entry) error {
	if e.UniqueID != "" {
		taken, err := r.HasUniqueID(ctx, e.Domain, e.UniqueID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUniqueIDTaken
		}
	}

	data, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshalling entry data: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO config_entries (id, domain, title, unique_id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		e.ID, e.Domain, e.Title, e.UniqueID, string(data),
		e.CreatedAt.UTC().Format(time.RFC3339),
		e.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

// UpdateData replaces an entry's data map.
func (r *SQLiteRepository) UpdateData(ctx context.Context, id string, data map[string]any) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshalling entry data: %w", err)
	}

	result, err := r.db.ExecContext(ctx,
		"UPDATE config_entries SET data = ?, updated_at = ? WHERE id = ?",
		string(encoded), time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("updating entry data: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// Delete removes an entry by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM config_entries WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrEntryNotFound
	}
	return nil
}

// queryEntries runs a multi-row entry query.
func (r *SQLiteRepository) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry scans one config_entries row.
func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var data, createdAt, updatedAt string

	if err := row.Scan(&e.ID, &e.Domain, &e.Title, &e.UniqueID, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return nil, fmt.Errorf("unmarshalling entry data: %w", err)
	}

	// Timestamps are written by us in RFC3339; parse errors leave zero times.
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // Format is controlled
	e.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt) //nolint:errcheck // Format is controlled

	return &e, nil
}
