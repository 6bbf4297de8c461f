package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/docstore"
	"budget/internal/docstore/memory"
	"budget/internal/expenses"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func rent() core.ExpenseInput {
	return core.ExpenseInput{
		Title:       "Rent",
		Amount:      core.Money{Cents: 100000},
		AdvancePaid: core.Money{Cents: 20000},
		DueDate:     core.NewDate(2024, 1, 1),
	}
}

func TestHandleEventCreatedAndDeleted(t *testing.T) {
	ctx := context.Background()
	mirror := memory.New()
	w := NewMirrorWorker(nil, mirror, "expenses", nil, discard)

	e := core.Expense{ID: "abc", ExpenseInput: rent()}
	if err := w.HandleEvent(ctx, amqp.NewExpenseCreated("expenses", e)); err != nil {
		t.Fatalf("created: %v", err)
	}
	// Redelivery is idempotent
	if err := w.HandleEvent(ctx, amqp.NewExpenseCreated("expenses", e)); err != nil {
		t.Fatalf("created again: %v", err)
	}
	docs, _ := mirror.List(ctx, "expenses")
	if len(docs) != 1 || docs[0].ID != "abc" {
		t.Fatalf("unexpected mirror docs %+v", docs)
	}
	got, err := expenses.FromDocument(docs[0])
	if err != nil || got != e {
		t.Fatalf("mirrored expense %+v err=%v, want %+v", got, err, e)
	}

	if err := w.HandleEvent(ctx, amqp.NewExpenseDeleted("expenses", "abc")); err != nil {
		t.Fatalf("deleted: %v", err)
	}
	if err := w.HandleEvent(ctx, amqp.NewExpenseDeleted("expenses", "abc")); err != nil {
		t.Fatalf("deleting a missing mirror row should succeed: %v", err)
	}
	if docs, _ := mirror.List(ctx, "expenses"); len(docs) != 0 {
		t.Fatalf("expected empty mirror, got %+v", docs)
	}

	if err := w.HandleEvent(ctx, &amqp.ExpenseEvent{Type: "expense.updated", ID: "x"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

type failingMirror struct {
	*memory.Store
}

func (failingMirror) Put(context.Context, string, string, docstore.Record) error {
	return docstore.ErrUnavailable
}

func TestHandleEventSurfacesMirrorFailure(t *testing.T) {
	w := NewMirrorWorker(nil, failingMirror{memory.New()}, "", nil, discard)
	err := w.HandleEvent(context.Background(), amqp.NewExpenseCreated("", core.Expense{ID: "a", ExpenseInput: rent()}))
	if !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	primary := memory.New()
	mirror := memory.New()
	client := expenses.NewClient(primary, "expenses", discard)

	keep, err := client.Create(ctx, rent())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	changed, err := client.Create(ctx, core.ExpenseInput{Title: "Gym", Amount: core.Money{Cents: 5000}, DueDate: core.NewDate(2024, 3, 1)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := primary.Add(ctx, "expenses", docstore.Record{"title": "broken"}); err != nil {
		t.Fatalf("seed malformed: %v", err)
	}

	// Mirror starts with one matching row, one stale row, one orphan
	if err := mirror.Put(ctx, "expenses", keep, expenses.ToRecord(rent())); err != nil {
		t.Fatal(err)
	}
	if err := mirror.Put(ctx, "expenses", changed, docstore.Record{"title": "Gym", "amount": 10.0, "advancePaid": 0.0, "dueDate": "2024-03-01"}); err != nil {
		t.Fatal(err)
	}
	if err := mirror.Put(ctx, "expenses", "orphan", expenses.ToRecord(rent())); err != nil {
		t.Fatal(err)
	}

	w := NewMirrorWorker(primary, mirror, "expenses", nil, discard)
	res, err := w.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Upserted != 1 || res.Deleted != 1 || res.Skipped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	mirrorClient := expenses.NewClient(mirror, "expenses", discard)
	want, _ := client.ListAll(ctx)
	got, _ := mirrorClient.ListAll(ctx)
	if len(got) != len(want) {
		t.Fatalf("mirror has %d expenses, primary %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mirror row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// A second pass has nothing to do
	res, err = w.Reconcile(ctx)
	if err != nil || res.Upserted != 0 || res.Deleted != 0 {
		t.Fatalf("second pass %+v err=%v", res, err)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewMirrorWorker(memory.New(), memory.New(), "", nil, discard)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, time.Hour) }()
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}
