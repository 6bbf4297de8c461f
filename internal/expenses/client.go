// Package expenses is the expense store client: it maps expenses onto
// documents of one collection and normalizes store failures.
package expenses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"budget/internal/core"
	"budget/internal/docstore"
)

// DefaultCollection is the collection expenses live in unless configured.
const DefaultCollection = "expenses"

var errMalformed = errors.New("malformed expense document")

// Client performs expense CRUD against a document store.
type Client struct {
	store      docstore.DocumentStore
	collection string
	logger     *slog.Logger
}

func NewClient(store docstore.DocumentStore, collection string, logger *slog.Logger) *Client {
	if collection == "" {
		collection = DefaultCollection
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{store: store, collection: collection, logger: logger}
}

// Collection returns the collection name the client writes to.
func (c *Client) Collection() string { return c.collection }

// Create validates in and appends it to the collection, returning the
// store-assigned ID. Invalid input never reaches the store.
func (c *Client) Create(ctx context.Context, in core.ExpenseInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	id, err := c.store.Add(ctx, c.collection, ToRecord(in))
	if err != nil {
		return "", normalizeErr("create", "", err)
	}
	return id, nil
}

// ListAll returns every well-formed expense, ordered by due date then title
// then ID. Malformed documents are logged and skipped.
func (c *Client) ListAll(ctx context.Context) ([]core.Expense, error) {
	docs, err := c.store.List(ctx, c.collection)
	if err != nil {
		return nil, normalizeErr("list", "", err)
	}
	out := make([]core.Expense, 0, len(docs))
	for _, d := range docs {
		e, err := FromDocument(d)
		if err != nil {
			c.logger.WarnContext(ctx, "Skipping malformed expense document",
				"collection", c.collection, "id", d.ID, "error", err)
			continue
		}
		out = append(out, e)
	}
	core.SortByDueDate(out)
	return out, nil
}

// DeleteByID removes one expense. A missing ID fails with a not_found
// StoreError, including on a second delete of the same ID.
func (c *Client) DeleteByID(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &core.StoreError{Op: "delete", Kind: core.StoreNotFound, Err: errors.New("empty id")}
	}
	if err := c.store.Delete(ctx, c.collection, id); err != nil {
		return normalizeErr("delete", id, err)
	}
	return nil
}

// ToRecord is the wire shape of an expense: amounts as numbers in major
// units, the due date as YYYY-MM-DD.
func ToRecord(in core.ExpenseInput) docstore.Record {
	return docstore.Record{
		core.FieldTitle:       in.Title,
		core.FieldAmount:      in.Amount.Number(),
		core.FieldAdvancePaid: in.AdvancePaid.Number(),
		core.FieldDueDate:     in.DueDate.String(),
	}
}

// FromDocument maps a stored document back to an Expense. A missing advance
// reads as zero; every other field is required.
func FromDocument(d docstore.Document) (core.Expense, error) {
	if d.ID == "" {
		return core.Expense{}, fmt.Errorf("%w: missing id", errMalformed)
	}
	title, ok := d.Data[core.FieldTitle].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return core.Expense{}, fmt.Errorf("%w: title", errMalformed)
	}
	amount, err := moneyField(d.Data, core.FieldAmount, true)
	if err != nil {
		return core.Expense{}, err
	}
	advance, err := moneyField(d.Data, core.FieldAdvancePaid, false)
	if err != nil {
		return core.Expense{}, err
	}
	rawDate, _ := d.Data[core.FieldDueDate].(string)
	due, err := core.ParseDate(rawDate)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: %s: %v", errMalformed, core.FieldDueDate, err)
	}
	return core.Expense{
		ID: d.ID,
		ExpenseInput: core.ExpenseInput{
			Title:       title,
			Amount:      amount,
			AdvancePaid: advance,
			DueDate:     due,
		},
	}, nil
}

func moneyField(rec docstore.Record, field string, required bool) (core.Money, error) {
	v, ok := rec[field]
	if !ok || v == nil {
		if required {
			return core.Money{}, fmt.Errorf("%w: missing %s", errMalformed, field)
		}
		return core.Money{}, nil
	}
	switch n := v.(type) {
	case float64:
		return moneyFromNumber(field, n)
	case float32:
		return moneyFromNumber(field, float64(n))
	case int:
		return moneyFromText(field, strconv.Itoa(n))
	case int64:
		return moneyFromText(field, strconv.FormatInt(n, 10))
	case json.Number:
		return moneyFromText(field, n.String())
	case string:
		return moneyFromText(field, n)
	}
	return core.Money{}, fmt.Errorf("%w: %s has type %T", errMalformed, field, v)
}

func moneyFromNumber(field string, v float64) (core.Money, error) {
	m, err := core.MoneyFromNumber(v)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %s: %v", errMalformed, field, err)
	}
	return m, nil
}

func moneyFromText(field, s string) (core.Money, error) {
	m, err := core.MoneyFromString(s)
	if err != nil {
		return core.Money{}, fmt.Errorf("%w: %s: %v", errMalformed, field, err)
	}
	return m, nil
}

// normalizeErr turns a raw store error into a *core.StoreError.
func normalizeErr(op, id string, err error) error {
	var serr *core.StoreError
	if errors.As(err, &serr) {
		return serr
	}
	kind := core.StoreInternal
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		kind = core.StoreNotFound
	case errors.Is(err, docstore.ErrPermissionDenied):
		kind = core.StorePermissionDenied
	case errors.Is(err, docstore.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		kind = core.StoreUnavailable
	}
	return &core.StoreError{Op: op, Kind: kind, ID: id, Err: err}
}
