package taskstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	id         TEXT PRIMARY KEY,
	fields     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
)`

// SQLiteStore is a local RecordStore that keeps each record's columns as
// a JSON document, mirroring the shape of the hosted table.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// One connection keeps :memory: databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(recordsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating records table: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Create inserts a record with a generated id.
func (s *SQLiteStore) Create(ctx context.Context, fields Fields) (string, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshaling fields: %w", err)
	}

	id := "rec" + strings.ReplaceAll(uuid.New().String(), "-", "")
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO records (id, fields, created_at, updated_at) VALUES (?, ?, ?, ?)",
		id, string(data), now, now,
	); err != nil {
		return "", fmt.Errorf("inserting record: %w", err)
	}
	return id, nil
}

type recordRow struct {
	ID     string `db:"id"`
	Fields string `db:"fields"`
}

// Search returns every record in insertion order.
func (s *SQLiteStore) Search(ctx context.Context) ([]Record, error) {
	var rows []recordRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT id, fields FROM records ORDER BY created_at, rowid"); err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		var f Fields
		if err := json.Unmarshal([]byte(row.Fields), &f); err != nil {
			return nil, fmt.Errorf("decoding record %s: %w", row.ID, err)
		}
		records = append(records, Record{ID: row.ID, Fields: f})
	}
	return records, nil
}

// Update merges fields into the record's existing columns.
func (s *SQLiteStore) Update(ctx context.Context, id string, fields Fields) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw string
	if err := tx.GetContext(ctx, &raw, "SELECT fields FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("loading record %s: %w", id, err)
	}

	current := Fields{}
	if err := json.Unmarshal([]byte(raw), &current); err != nil {
		return fmt.Errorf("decoding record %s: %w", id, err)
	}
	for k, v := range fields {
		current[k] = v
	}

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("marshaling fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE records SET fields = ?, updated_at = ? WHERE id = ?",
		string(data), s.now().UTC(), id,
	); err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	return tx.Commit()
}
