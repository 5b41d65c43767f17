package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sophialabs/apitrail/internal/domain/group"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

var _ group.Repository = (*EventRepository)(nil)

// EventRepository stores event records in a SQLite database.
type EventRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*EventRepository, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open event db: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set event db journal mode: %w", err)
		}
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set event db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS app_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	serial TEXT NOT NULL,
	event_type TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	event_data TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize app_events schema: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_app_events_serial ON app_events(serial)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize app_events index: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_app_events_created ON app_events(created_at)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize app_events index: %w", err)
	}

	return &EventRepository{db: db}, nil
}

func (r *EventRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *EventRepository) Append(ctx context.Context, rec group.Record) (group.Record, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO app_events (serial, event_type, description, event_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.Serial, string(rec.EventType), rec.Description, rec.EventData, rec.CreatedAt.UnixNano(),
	)
	if err != nil {
		return group.Record{}, fmt.Errorf("insert event %q: %w", rec.Serial, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return group.Record{}, fmt.Errorf("read inserted event id: %w", err)
	}
	rec.ID = id
	return rec, nil
}

func (r *EventRepository) FindBySerial(ctx context.Context, serial string) ([]group.Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, serial, event_type, description, event_data, created_at
		 FROM app_events WHERE serial = ? ORDER BY created_at ASC, id ASC`, serial)
	if err != nil {
		return nil, fmt.Errorf("query events for %q: %w", serial, err)
	}
	return scanRecords(rows)
}

func (r *EventRepository) FindRecent(ctx context.Context, limit int) ([]group.Record, error) {
	if limit <= 0 {
		return []group.Record{}, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, serial, event_type, description, event_data, created_at
		 FROM app_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	return scanRecords(rows)
}

func (r *EventRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM app_events`); err != nil {
		return fmt.Errorf("delete events: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]group.Record, error) {
	defer rows.Close()

	out := make([]group.Record, 0)
	for rows.Next() {
		var rec group.Record
		var eventType string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Serial, &eventType, &rec.Description, &rec.EventData, &createdAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		rec.EventType = group.EventType(eventType)
		rec.CreatedAt = time.Unix(0, createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return out, nil
}
