package http

import (
	"errors"
	"net/http"
	"strings"

	"budget/internal/core"
	"budget/internal/log"
)

// expensesView is the expense list page: rows, totals and the inline form.
type expensesView struct {
	Expenses []core.Expense
	Overview core.Overview
	Form     ExpenseForm
	Error    string
}

func (s *Server) clean(v string) string {
	return sanitizeInput(s.sanitizer, v)
}

// listView loads the list page. A store failure leaves the list empty and
// carries the message.
func (s *Server) listView(r *http.Request) (expensesView, int) {
	ov, list, err := s.expenses.Overview(r.Context())
	if err != nil {
		code, msg := StoreErrorStatus(err)
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Failed to list expenses", err, log.OpList, nil)
		return expensesView{Error: msg}, code
	}
	return expensesView{Expenses: list, Overview: ov}, http.StatusOK
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	view, code := s.listView(r)
	s.render(w, r, code, "expenses.html", "Expenses", view)
}

// handleExpenseRows renders the table body, reloaded by htmx after a create.
func (s *Server) handleExpenseRows(w http.ResponseWriter, r *http.Request) {
	view, code := s.listView(r)
	s.renderPartial(w, r, code, "expenses.html", "expense_rows", view)
}

func (s *Server) handleNewExpense(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "expense_new.html", "New expense", ExpenseForm{})
}

// handleCreateExpense validates the submission and stores it. Invalid input
// is answered with 422 and the form rendered back with its messages.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sl := log.NewStructuredLogger(log.FromContext(ctx))

	parser := NewRequestBodyParser(r, s.clean)
	if err := parser.Parse(); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Unreadable expense submission",
			log.FieldError, err, log.FieldErrorType, log.ErrorTypeValidation)
		BadRequestError("Invalid request format").Write(w)
		return
	}

	in, form, err := ParseExpenseForm(parser)
	if err != nil {
		s.metrics.ObserveError("create", err)
		log.FromContext(ctx).InfoContext(ctx, "Expense rejected",
			log.FieldError, err, log.FieldOperation, log.OpCreate,
			log.FieldErrorType, log.ErrorTypeValidation)
		s.renderInvalidForm(w, r, form)
		return
	}

	e, err := s.expenses.CreateExpense(ctx, in)
	if err != nil {
		var verr *core.ValidationError
		if errors.As(err, &verr) {
			form.Errors = verr
			s.renderInvalidForm(w, r, form)
			return
		}
		sl.LogError(ctx, "Failed to create expense", err, log.OpCreate,
			log.NewFields().WithExpense("", in.Title, in.Amount.Cents, in.AdvancePaid.Cents, in.DueDate.String()))
		s.writeStoreError(w, r, err)
		return
	}
	sl.LogExpenseCreated(ctx, e)

	if !isHTMX(r.Header) {
		http.Redirect(w, r, "/expenses", http.StatusSeeOther)
		return
	}
	NewHTMXResponse().
		TriggerExpenseCreated(e.ID).
		TriggerFormReset().
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Saved " + e.Title).
		ApplyHeaders(w)
	s.renderPartial(w, r, http.StatusCreated, "expense_new.html", "expense_form", ExpenseForm{})
}

// renderInvalidForm answers 422: the form fragment for htmx, the full page
// otherwise.
func (s *Server) renderInvalidForm(w http.ResponseWriter, r *http.Request, form ExpenseForm) {
	if isHTMX(r.Header) {
		s.renderPartial(w, r, http.StatusUnprocessableEntity, "expense_new.html", "expense_form", form)
		return
	}
	s.render(w, r, http.StatusUnprocessableEntity, "expense_new.html", "New expense", form)
}

// handleDeleteExpense serves both DELETE /expenses/{id} (htmx) and the
// POST fallback used without JavaScript.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		BadRequestError("Missing expense id").Write(w)
		return
	}

	if err := s.expenses.DeleteExpense(ctx, id); err != nil {
		log.NewStructuredLogger(log.FromContext(ctx)).
			LogError(ctx, "Failed to delete expense", err, log.OpDelete,
				log.NewFields().WithExpense(id, "", 0, 0, ""))
		s.writeStoreError(w, r, err)
		return
	}
	log.NewStructuredLogger(log.FromContext(ctx)).LogExpenseDeleted(ctx, id)

	if !isHTMX(r.Header) {
		http.Redirect(w, r, "/expenses", http.StatusSeeOther)
		return
	}
	// Empty body: htmx swaps the row out.
	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerOverviewRefresh().
		TriggerSuccessNotification("Expense deleted").
		Write(w)
}

// writeStoreError leaves the page as it is for htmx and shows a
// notification. Plain requests get the list page with the error on it.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if isHTMX(r.Header) {
		StoreErrorResponse(err).Write(w)
		return
	}
	code, msg := StoreErrorStatus(err)
	view, _ := s.listView(r)
	if view.Error == "" {
		view.Error = msg
	}
	s.render(w, r, code, "expenses.html", "Expenses", view)
}
