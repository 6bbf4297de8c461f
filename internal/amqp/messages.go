package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"
	"budget/internal/docstore"
)

// EventType names a change to the expense collection.
type EventType string

const (
	EventExpenseCreated EventType = "expense.created"
	EventExpenseDeleted EventType = "expense.deleted"
)

// ExpensePayload is the wire shape of an expense inside an event.
type ExpensePayload struct {
	Title       string  `json:"title"`
	Amount      float64 `json:"amount"`
	AdvancePaid float64 `json:"advancePaid"`
	DueDate     string  `json:"dueDate"`
}

// ExpenseEvent is published after a successful create or delete. Deleted
// events carry only the ID.
type ExpenseEvent struct {
	Type       EventType       `json:"type"`
	Collection string          `json:"collection"`
	ID         string          `json:"id"`
	Expense    *ExpensePayload `json:"expense,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NewExpenseCreated builds the event for a stored expense.
func NewExpenseCreated(collection string, e core.Expense) *ExpenseEvent {
	return &ExpenseEvent{
		Type:       EventExpenseCreated,
		Collection: collection,
		ID:         e.ID,
		Expense: &ExpensePayload{
			Title:       e.Title,
			Amount:      e.Amount.Number(),
			AdvancePaid: e.AdvancePaid.Number(),
			DueDate:     e.DueDate.String(),
		},
		Timestamp: time.Now().UTC(),
	}
}

func NewExpenseDeleted(collection, id string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:       EventExpenseDeleted,
		Collection: collection,
		ID:         id,
		Timestamp:  time.Now().UTC(),
	}
}

// Record returns the document body carried by a created event.
func (e *ExpenseEvent) Record() docstore.Record {
	if e.Expense == nil {
		return nil
	}
	return docstore.Record{
		core.FieldTitle:       e.Expense.Title,
		core.FieldAmount:      e.Expense.Amount,
		core.FieldAdvancePaid: e.Expense.AdvancePaid,
		core.FieldDueDate:     e.Expense.DueDate,
	}
}

// Validate checks that the event can be applied.
func (e *ExpenseEvent) Validate() error {
	if e.ID == "" {
		return errors.New("event without id")
	}
	switch e.Type {
	case EventExpenseCreated:
		if e.Expense == nil {
			return errors.New("created event without expense payload")
		}
	case EventExpenseDeleted:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}

// ToJSON converts the event to JSON bytes
func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ExpenseEventFromJSON decodes and validates an event.
func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var ev ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return &ev, nil
}
