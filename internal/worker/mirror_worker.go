// Package worker keeps a mirror document store in step with the primary one,
// from change events and by periodic reconciliation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/docstore"
	"budget/internal/expenses"
	"budget/internal/metrics"
)

// Mirror is a store that accepts documents under the primary's IDs.
type Mirror interface {
	docstore.Lister
	docstore.Putter
	docstore.Deleter
}

// ReconcileResult counts the changes a reconciliation pass made.
type ReconcileResult struct {
	Upserted int
	Deleted  int
	Skipped  int
}

type MirrorWorker struct {
	primary    docstore.Lister
	mirror     Mirror
	collection string
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// NewMirrorWorker mirrors collection from primary into mirror. primary may be
// nil, in which case only events are applied and Reconcile is a no-op.
func NewMirrorWorker(primary docstore.Lister, mirror Mirror, collection string, m *metrics.Metrics, logger *slog.Logger) *MirrorWorker {
	if collection == "" {
		collection = expenses.DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MirrorWorker{primary: primary, mirror: mirror, collection: collection, metrics: m, logger: logger}
}

// HandleEvent applies one change event to the mirror. Deleting a document the
// mirror never had is not an error.
func (w *MirrorWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	collection := ev.Collection
	if collection == "" {
		collection = w.collection
	}

	var err error
	switch ev.Type {
	case amqp.EventExpenseCreated:
		err = w.mirror.Put(ctx, collection, ev.ID, ev.Record())
	case amqp.EventExpenseDeleted:
		err = w.mirror.Delete(ctx, collection, ev.ID)
		if errors.Is(err, docstore.ErrNotFound) {
			w.logger.InfoContext(ctx, "Mirror already lacks deleted expense", "id", ev.ID)
			err = nil
		}
	default:
		err = fmt.Errorf("unknown event type %q", ev.Type)
	}
	w.metrics.EventMirrored(string(ev.Type), err)
	if err != nil {
		return fmt.Errorf("mirror %s %s: %w", ev.Type, ev.ID, err)
	}

	w.logger.InfoContext(ctx, "Mirrored expense event", "type", ev.Type, "id", ev.ID, "collection", collection)
	return nil
}

// Reconcile makes the mirror equal to the primary: missing or differing
// expenses are written, extra ones removed. Malformed primary documents are
// left out of the mirror.
func (w *MirrorWorker) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var res ReconcileResult
	if w.primary == nil {
		return res, nil
	}
	primaryDocs, err := w.primary.List(ctx, w.collection)
	if err != nil {
		return res, fmt.Errorf("list primary: %w", err)
	}
	mirrorDocs, err := w.mirror.List(ctx, w.collection)
	if err != nil {
		return res, fmt.Errorf("list mirror: %w", err)
	}

	mirrored := make(map[string]core.Expense, len(mirrorDocs))
	for _, d := range mirrorDocs {
		e, err := expenses.FromDocument(d)
		if err != nil {
			// Unreadable mirror rows are rewritten or removed below
			mirrored[d.ID] = core.Expense{}
			continue
		}
		mirrored[d.ID] = e
	}

	wanted := make(map[string]struct{}, len(primaryDocs))
	for _, d := range primaryDocs {
		e, err := expenses.FromDocument(d)
		if err != nil {
			res.Skipped++
			continue
		}
		wanted[e.ID] = struct{}{}
		if have, ok := mirrored[e.ID]; ok && have == e {
			continue
		}
		if err := w.mirror.Put(ctx, w.collection, e.ID, expenses.ToRecord(e.ExpenseInput)); err != nil {
			return res, fmt.Errorf("put %s: %w", e.ID, err)
		}
		res.Upserted++
	}

	for id := range mirrored {
		if _, ok := wanted[id]; ok {
			continue
		}
		if err := w.mirror.Delete(ctx, w.collection, id); err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return res, fmt.Errorf("delete %s: %w", id, err)
		}
		res.Deleted++
	}

	w.logger.InfoContext(ctx, "Mirror reconciled",
		"collection", w.collection,
		"primary", len(primaryDocs),
		"upserted", res.Upserted,
		"deleted", res.Deleted,
		"skipped", res.Skipped)
	return res, nil
}

// Run reconciles once immediately and then every interval until ctx ends.
// Failed passes are logged and retried on the next tick.
func (w *MirrorWorker) Run(ctx context.Context, interval time.Duration) error {
	if w.primary == nil {
		w.logger.InfoContext(ctx, "No primary store readable by the worker, periodic reconciliation disabled")
		<-ctx.Done()
		return ctx.Err()
	}
	if _, err := w.Reconcile(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Startup reconciliation failed", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Reconcile(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Periodic reconciliation failed", "error", err)
			}
		}
	}
}
