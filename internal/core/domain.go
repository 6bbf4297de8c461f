package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire and form representation of a due date.
const DateLayout = "2006-01-02"

// Form and document field names.
const (
	FieldTitle       = "title"
	FieldAmount      = "amount"
	FieldAdvancePaid = "advancePaid"
	FieldDueDate     = "dueDate"
)

const maxTitleLength = 200

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// ExpenseInput is an expense as submitted, before the store assigns an ID.
	ExpenseInput struct {
		Title       string
		Amount      Money
		AdvancePaid Money
		DueDate     Date
	}

	Expense struct {
		ID string // assigned by the document store
		ExpenseInput
	}
)

var (
	ErrEmptyTitle           = errors.New("title is required")
	ErrTitleTooLong         = errors.New("title too long (max 200 characters)")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrAmountTooLarge       = fmt.Errorf("%w: above 90071992547409.92", ErrInvalidAmount)
	ErrInvalidAdvance       = errors.New("advance paid cannot be negative")
	ErrAdvanceExceedsAmount = errors.New("advance paid exceeds amount")
	ErrMissingDueDate       = errors.New("due date is required")
	ErrInvalidDate          = errors.New("invalid date")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. No timezone handling: the result is UTC midnight.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDueDate
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	if m.Cents > MaxCents {
		return ErrAmountTooLarge
	}
	return nil
}

// Validate checks the entry rules: non-blank title, positive amount,
// a due date, and 0 <= advance paid <= amount. Every violated field is
// reported in the returned *ValidationError.
func (in ExpenseInput) Validate() error {
	verr := &ValidationError{}

	switch {
	case strings.TrimSpace(in.Title) == "":
		verr.Add(FieldTitle, ErrEmptyTitle)
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		verr.Add(FieldTitle, ErrTitleTooLong)
	}

	if err := in.Amount.Validate(); err != nil {
		verr.Add(FieldAmount, err)
	}

	if in.DueDate.IsEmpty() {
		verr.Add(FieldDueDate, ErrMissingDueDate)
	}

	if in.AdvancePaid.Cents < 0 {
		verr.Add(FieldAdvancePaid, ErrInvalidAdvance)
	} else if in.AdvancePaid.Cents > in.Amount.Cents {
		verr.Add(FieldAdvancePaid, ErrAdvanceExceedsAmount)
	}

	return verr.OrNil()
}

// Remaining is amount minus advance paid. It is not clamped: a row whose
// advance exceeds its amount yields a negative value.
func (in ExpenseInput) Remaining() Money {
	return in.Amount.Sub(in.AdvancePaid)
}
