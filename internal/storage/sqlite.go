// Package storage implements the document store and the user store on a
// local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"budget/internal/docstore"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Ensure interface conformance
var (
	_ docstore.DocumentStore = (*SQLiteStore)(nil)
	_ docstore.Putter        = (*SQLiteStore)(nil)
	_ docstore.Pinger        = (*SQLiteStore)(nil)
)

// SQLiteStore keeps every collection in one documents table, with the record
// body serialized as JSON.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w: %v", docstore.ErrUnavailable, err)
	}
	return nil
}

// Add implements docstore.Adder
func (s *SQLiteStore) Add(ctx context.Context, collection string, rec docstore.Record) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)`,
		collection, id, string(body))
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	slog.DebugContext(ctx, "Document saved to SQLite", "collection", collection, "id", id)
	return id, nil
}

// Put implements docstore.Putter
func (s *SQLiteStore) Put(ctx context.Context, collection, id string, rec docstore.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(body))
	if err != nil {
		return fmt.Errorf("upsert document %s: %w", id, err)
	}
	return nil
}

// List implements docstore.Lister
func (s *SQLiteStore) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = ? ORDER BY created_at, rowid`,
		collection)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var out []docstore.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		var rec docstore.Record
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			// Keep the document; the caller decides what a bad body means.
			slog.WarnContext(ctx, "Undecodable document body", "collection", collection, "id", id, "error", err)
			rec = docstore.Record{}
		}
		out = append(out, docstore.Document{ID: id, Data: rec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// Delete implements docstore.Deleter
func (s *SQLiteStore) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete %s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}
