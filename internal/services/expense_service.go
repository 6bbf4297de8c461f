package services

import (
	"context"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/expenses"
	"budget/internal/metrics"
)

// EventPublisher sends expense change events. *amqp.Client implements it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
}

// ExpenseService orchestrates expense operations: the store client does the
// work, then a change event is published and metrics are recorded. Event
// publication never fails a request.
type ExpenseService struct {
	client    *expenses.Client
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewExpenseService wires the client with an optional publisher and metrics.
func NewExpenseService(client *expenses.Client, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger) *ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseService{client: client, publisher: publisher, metrics: m, logger: logger}
}

// CreateExpense stores in and returns the new expense.
func (s *ExpenseService) CreateExpense(ctx context.Context, in core.ExpenseInput) (core.Expense, error) {
	id, err := s.client.Create(ctx, in)
	if err != nil {
		s.metrics.ObserveError("create", err)
		return core.Expense{}, err
	}
	s.metrics.ExpenseCreated()
	e := core.Expense{ID: id, ExpenseInput: in}

	s.publish(ctx, amqp.NewExpenseCreated(s.client.Collection(), e))
	return e, nil
}

// ListExpenses returns the ordered expense list.
func (s *ExpenseService) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	list, err := s.client.ListAll(ctx)
	if err != nil {
		s.metrics.ObserveError("list", err)
		return nil, err
	}
	return list, nil
}

// Overview lists every expense and aggregates it.
func (s *ExpenseService) Overview(ctx context.Context) (core.Overview, []core.Expense, error) {
	list, err := s.ListExpenses(ctx)
	if err != nil {
		return core.Overview{}, nil, err
	}
	return core.NewOverview(list), list, nil
}

// DeleteExpense removes one expense by ID.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id string) error {
	if err := s.client.DeleteByID(ctx, id); err != nil {
		s.metrics.ObserveError("delete", err)
		return err
	}
	s.metrics.ExpenseDeleted()

	s.publish(ctx, amqp.NewExpenseDeleted(s.client.Collection(), id))
	return nil
}

func (s *ExpenseService) publish(ctx context.Context, ev *amqp.ExpenseEvent) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishEvent(ctx, ev)
	s.metrics.EventPublished(string(ev.Type), err)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			"type", ev.Type, "id", ev.ID, "error", err)
	}
}

// Close releases the publisher when it holds a connection.
func (s *ExpenseService) Close() error {
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close publisher: %w", err)
		}
	}
	return nil
}
