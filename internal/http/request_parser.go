// Package http provides HTTP server and handler implementations.
//
// This file parses request bodies (form-encoded or JSON, both sent by HTMX)
// and turns expense submissions into validated domain input.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"budget/internal/core"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 64 << 10

var errAdvanceNotNumber = errors.New("advance paid must be a number")

// FieldGetter is anything that yields form values by name.
type FieldGetter interface {
	Get(key string) string
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body     []byte
	jsonData map[string]any
	formData url.Values
	clean    func(string) string
	parsed   bool
	err      error
}

// NewRequestBodyParser reads the body once; clean is applied to every value
// returned by Get and may be nil.
func NewRequestBodyParser(r *http.Request, clean func(string) string) *RequestBodyParser {
	p := &RequestBodyParser{clean: clean}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := strings.TrimSpace(string(p.body))
	if trimmed == "" {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal([]byte(trimmed), &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(trimmed)
	return p.err
}

// Get returns a trimmed value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	var v string
	switch {
	case p.jsonData != nil:
		v = stringValue(p.jsonData[key])
	case p.formData != nil:
		v = p.formData.Get(key)
	}
	if p.clean != nil {
		v = p.clean(v)
	}
	return strings.TrimSpace(v)
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ExpenseForm holds the submitted strings so an invalid form can be rendered
// back exactly as typed.
type ExpenseForm struct {
	Title       string
	Amount      string
	AdvancePaid string
	DueDate     string
	Errors      *core.ValidationError
}

// Error returns the message for field, or "".
func (f ExpenseForm) Error(field string) string {
	return f.Errors.Message(field)
}

// ParseExpenseForm converts submitted values into an ExpenseInput. Every
// unparsable or invalid field is reported in one *core.ValidationError; a
// blank advance paid means zero.
func ParseExpenseForm(values FieldGetter) (core.ExpenseInput, ExpenseForm, error) {
	form := ExpenseForm{
		Title:       values.Get(core.FieldTitle),
		Amount:      values.Get(core.FieldAmount),
		AdvancePaid: values.Get(core.FieldAdvancePaid),
		DueDate:     values.Get(core.FieldDueDate),
	}
	verr := &core.ValidationError{}
	in := core.ExpenseInput{Title: form.Title}

	if cents, err := core.ParseDecimalToCents(form.Amount); err != nil {
		verr.Add(core.FieldAmount, core.ErrInvalidAmount)
	} else {
		in.Amount = core.Money{Cents: cents}
	}

	if cents, err := core.ParseOptionalDecimalToCents(form.AdvancePaid); err != nil {
		switch {
		case strings.HasPrefix(form.AdvancePaid, "-"):
			verr.Add(core.FieldAdvancePaid, core.ErrInvalidAdvance)
		case errors.Is(err, core.ErrAmountTooLarge):
			verr.Add(core.FieldAdvancePaid, core.ErrAdvanceExceedsAmount)
		default:
			verr.Add(core.FieldAdvancePaid, errAdvanceNotNumber)
		}
	} else {
		in.AdvancePaid = core.Money{Cents: cents}
	}

	if d, err := core.ParseDate(form.DueDate); err != nil {
		verr.Add(core.FieldDueDate, err)
	} else {
		in.DueDate = d
	}

	var rules *core.ValidationError
	if errors.As(in.Validate(), &rules) {
		for field, err := range rules.Fields {
			// An amount that failed to parse is zero; its advance is not comparable.
			if field == core.FieldAdvancePaid && verr.Has(core.FieldAmount) && errors.Is(err, core.ErrAdvanceExceedsAmount) {
				continue
			}
			verr.Add(field, err)
		}
	}

	if err := verr.OrNil(); err != nil {
		form.Errors = verr
		return core.ExpenseInput{}, form, err
	}
	return in, form, nil
}
