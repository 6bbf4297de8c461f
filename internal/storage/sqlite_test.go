package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/auth"
	"budget/internal/docstore"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "budget.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreDocuments(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}

	first, err := s.Add(ctx, "expenses", docstore.Record{"title": "Rent", "amount": 1000.0, "dueDate": "2024-01-01"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	second, err := s.Add(ctx, "expenses", docstore.Record{"title": "Gym", "amount": 50.5})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct ids")
	}
	if _, err := s.Add(ctx, "notes", docstore.Record{"text": "x"}); err != nil {
		t.Fatalf("add other collection: %v", err)
	}

	docs, err := s.List(ctx, "expenses")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != first || docs[0].Data["title"] != "Rent" || docs[0].Data["amount"] != 1000.0 {
		t.Fatalf("unexpected first document: %+v", docs[0])
	}

	if err := s.Delete(ctx, "expenses", first); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(ctx, "expenses", first); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// Deleting by id in the wrong collection is a miss
	if err := s.Delete(ctx, "notes", second); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across collections, got %v", err)
	}
}

func TestSQLiteStorePut(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Put(ctx, "expenses", "abc", docstore.Record{"title": "a"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Put(ctx, "expenses", "abc", docstore.Record{"title": "b"}); err != nil {
		t.Fatalf("put again: %v", err)
	}
	docs, err := s.List(ctx, "expenses")
	if err != nil || len(docs) != 1 || docs[0].ID != "abc" || docs[0].Data["title"] != "b" {
		t.Fatalf("unexpected docs: %+v err=%v", docs, err)
	}
}

func TestSQLiteStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u := auth.User{ID: "u1", Email: "alice@example.com", PasswordHash: "hash", CreatedAt: time.Now()}
	if err := s.CreateUser(ctx, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	u.ID = "u2"
	u.Email = "ALICE@example.com"
	if err := s.CreateUser(ctx, u); !errors.Is(err, auth.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
	got, err := s.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != "u1" || got.PasswordHash != "hash" {
		t.Fatalf("unexpected user %+v err=%v", got, err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, auth.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second run: %v", err)
	}
}
