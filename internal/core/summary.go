package core

import (
	"slices"
	"strings"
)

// Totals sums amount and advance paid independently over a list of expenses.
type Totals struct {
	Amount      Money
	AdvancePaid Money
}

// Overview is what the budget overview page shows.
type Overview struct {
	Count     int
	Totals    Totals
	Remaining Money
}

// ComputeTotals reduces expenses into their sums. An empty list yields zero totals.
func ComputeTotals(expenses []Expense) Totals {
	var t Totals
	for _, e := range expenses {
		t.Amount = t.Amount.Add(e.Amount)
		t.AdvancePaid = t.AdvancePaid.Add(e.AdvancePaid)
	}
	return t
}

// Remaining is total amount minus total advance paid; may be negative.
func (t Totals) Remaining() Money {
	return t.Amount.Sub(t.AdvancePaid)
}

func NewOverview(expenses []Expense) Overview {
	t := ComputeTotals(expenses)
	return Overview{
		Count:     len(expenses),
		Totals:    t,
		Remaining: t.Remaining(),
	}
}

// SortByDueDate orders expenses by due date, then title, then ID, in place.
func SortByDueDate(expenses []Expense) {
	slices.SortStableFunc(expenses, func(a, b Expense) int {
		if c := a.DueDate.Compare(b.DueDate.Time); c != 0 {
			return c
		}
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
