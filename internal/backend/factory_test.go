package backend

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"budget/internal/auth"
	"budget/internal/config"
	"budget/internal/docstore"
)

func testFactory() Factory {
	return NewFactory(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:         "sqlite",
		SQLiteDBPath:        "./x.db",
		ExpensesCollection:  "expenses",
		AMQPURL:             "amqp://localhost/",
		AMQPExchange:        "budget",
		AMQPQueue:           "events",
		GoogleSpreadsheetID: "sheet",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bc.Type != SQLiteBackend || bc.SQLiteDBPath != "./x.db" || bc.Google.SpreadsheetID != "sheet" {
		t.Fatalf("unexpected backend config %+v", bc)
	}
	if bc.Google.Options().SpreadsheetID != "sheet" {
		t.Fatalf("options lost spreadsheet id")
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "bogus"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"memory", Config{Type: MemoryBackend}, ""},
		{"sqlite without path", Config{Type: SQLiteBackend}, "SQLite database path"},
		{"sheets without id", Config{Type: SheetsBackend}, "Spreadsheet ID"},
		{"amqp without queue", Config{Type: MemoryBackend, AMQPURL: "amqp://x/", AMQPExchange: "e"}, "exchange and queue"},
		{"invalid type", Config{Type: "nope"}, "invalid backend type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCreateMemoryBackend(t *testing.T) {
	ctx := context.Background()
	res, err := testFactory().CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Close()

	if res.Publisher != nil {
		t.Fatal("publisher should be nil without AMQP")
	}
	if _, err := res.Store.Add(ctx, "expenses", docstore.Record{"title": "x"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := res.Users.CreateUser(ctx, auth.User{ID: "1", Email: "a@b.c", PasswordHash: "h"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestCreateMemoryBackendWithSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.jsonl")
	seed := `{"title":"Rent","amount":1000,"advancePaid":200,"dueDate":"2024-01-01"}` + "\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	res, err := testFactory().CreateBackend(ctx, Config{Type: MemoryBackend, SeedFile: path, Collection: "expenses"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	docs, err := res.Store.List(ctx, "expenses")
	if err != nil || len(docs) != 1 {
		t.Fatalf("expected one seeded document, got %d (%v)", len(docs), err)
	}
}

func TestCreateSQLiteBackend(t *testing.T) {
	ctx := context.Background()
	res, err := testFactory().CreateBackend(ctx, Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "budget.db"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer res.Close()

	if _, ok := res.Store.(docstore.Pinger); !ok {
		t.Fatal("sqlite store should support readiness pings")
	}
	if err := res.Users.CreateUser(ctx, auth.User{ID: "1", Email: "a@b.c", PasswordHash: "h"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func TestCreateSheetsBackendRequiresCredentials(t *testing.T) {
	_, err := testFactory().CreateBackend(context.Background(), Config{
		Type:   SheetsBackend,
		Google: GoogleConfig{SpreadsheetID: "sheet"},
	})
	if err == nil || !strings.Contains(err.Error(), "missing credentials") {
		t.Fatalf("expected missing credentials error, got %v", err)
	}
}
