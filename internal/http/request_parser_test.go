package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"budget/internal/core"
)

func TestRequestBodyParser_JSON(t *testing.T) {
	body := `{"title": "Rent", "amount": 1000, "advancePaid": 12.5, "dueDate": "2024-01-01"}`
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	parser := NewRequestBodyParser(req, nil)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}

	tests := map[string]string{
		"title":       "Rent",
		"amount":      "1000",
		"advancePaid": "12.5",
		"dueDate":     "2024-01-01",
		"missing":     "",
	}
	for key, want := range tests {
		if got := parser.Get(key); got != want {
			t.Errorf("Get(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	body := "title=Car+insurance&amount=+250.00+"
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	parser := NewRequestBodyParser(req, nil)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if got := parser.Get("title"); got != "Car insurance" {
		t.Errorf("Get('title') = %q", got)
	}
	if got := parser.Get("amount"); got != "250.00" {
		t.Errorf("Get('amount') = %q, want trimmed value", got)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(""))

	parser := NewRequestBodyParser(req, nil)
	if err := parser.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if val := parser.Get("title"); val != "" {
		t.Errorf("Get('title') = %q, want empty string", val)
	}
}

func TestRequestBodyParser_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"title":`))
	parser := NewRequestBodyParser(req, nil)
	if err := parser.Parse(); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
	// A second call reports the same failure.
	if err := parser.Parse(); err == nil {
		t.Fatal("expected Parse to remember the error")
	}
}

func TestRequestBodyParser_Clean(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader("title=%3Ci%3ERent%3C%2Fi%3E"))
	p := newSanitizer()
	parser := NewRequestBodyParser(req, func(s string) string { return sanitizeInput(p, s) })
	if err := parser.Parse(); err != nil {
		t.Fatal(err)
	}
	if got := parser.Get("title"); got != "Rent" {
		t.Fatalf("Get('title') = %q", got)
	}
}

func TestParseExpenseForm(t *testing.T) {
	tests := []struct {
		name    string
		values  url.Values
		want    core.ExpenseInput
		invalid map[string]error
	}{
		{
			name:   "valid with advance",
			values: url.Values{"title": {"Rent"}, "amount": {"1000"}, "advancePaid": {"200"}, "dueDate": {"2024-01-01"}},
			want: core.ExpenseInput{
				Title:       "Rent",
				Amount:      core.Money{Cents: 100000},
				AdvancePaid: core.Money{Cents: 20000},
				DueDate:     core.NewDate(2024, 1, 1),
			},
		},
		{
			name:   "blank advance is zero",
			values: url.Values{"title": {"Gym"}, "amount": {"35,50"}, "dueDate": {"2024-02-29"}},
			want: core.ExpenseInput{
				Title:   "Gym",
				Amount:  core.Money{Cents: 3550},
				DueDate: core.NewDate(2024, 2, 29),
			},
		},
		{
			name:    "advance exceeds amount",
			values:  url.Values{"title": {"Deposit"}, "amount": {"100"}, "advancePaid": {"150"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{core.FieldAdvancePaid: core.ErrAdvanceExceedsAmount},
		},
		{
			name:    "advance not a number",
			values:  url.Values{"title": {"x"}, "amount": {"1"}, "advancePaid": {"lots"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{core.FieldAdvancePaid: errAdvanceNotNumber},
		},
		{
			name:    "negative advance",
			values:  url.Values{"title": {"x"}, "amount": {"1"}, "advancePaid": {"-1"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{core.FieldAdvancePaid: core.ErrInvalidAdvance},
		},
		{
			name:    "amount above limit",
			values:  url.Values{"title": {"x"}, "amount": {"92233720368547758.07"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{core.FieldAmount: core.ErrInvalidAmount},
		},
		{
			name:    "advance above limit",
			values:  url.Values{"title": {"x"}, "amount": {"1"}, "advancePaid": {"90071992547409.93"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{core.FieldAdvancePaid: core.ErrAdvanceExceedsAmount},
		},
		{
			name:   "bad amount does not also flag advance",
			values: url.Values{"title": {"x"}, "amount": {"abc"}, "advancePaid": {"5"}, "dueDate": {"2024-01-01"}},
			invalid: map[string]error{
				core.FieldAmount: core.ErrInvalidAmount,
			},
		},
		{
			name:   "everything wrong",
			values: url.Values{"amount": {"0"}, "dueDate": {"tomorrow"}},
			invalid: map[string]error{
				core.FieldTitle:   core.ErrEmptyTitle,
				core.FieldAmount:  core.ErrInvalidAmount,
				core.FieldDueDate: core.ErrInvalidDate,
			},
		},
		{
			name:    "impossible date",
			values:  url.Values{"title": {"x"}, "amount": {"1"}, "dueDate": {"2023-02-30"}},
			invalid: map[string]error{core.FieldDueDate: core.ErrInvalidDate},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, form, err := ParseExpenseForm(tt.values)
			if form.Title != tt.values.Get("title") || form.Amount != tt.values.Get("amount") {
				t.Errorf("form should keep submitted strings, got %+v", form)
			}

			if tt.invalid == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				if in.Title != tt.want.Title || in.Amount != tt.want.Amount ||
					in.AdvancePaid != tt.want.AdvancePaid || !in.DueDate.Equal(tt.want.DueDate.Time) {
					t.Fatalf("got %+v, want %+v", in, tt.want)
				}
				return
			}

			var verr *core.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *core.ValidationError, got %v", err)
			}
			if len(verr.Fields) != len(tt.invalid) {
				t.Errorf("invalid fields = %v, want %v", verr.Fields, tt.invalid)
			}
			for field, want := range tt.invalid {
				if !errors.Is(verr.Fields[field], want) {
					t.Errorf("%s: got %v, want %v", field, verr.Fields[field], want)
				}
				if form.Error(field) == "" {
					t.Errorf("form.Error(%q) is empty", field)
				}
			}
		})
	}
}
