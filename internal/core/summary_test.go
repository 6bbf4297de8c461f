package core

import (
	"math"
	"testing"
)

func exp(id string, amount, advance int64) Expense {
	return Expense{ID: id, ExpenseInput: ExpenseInput{
		Title:       id,
		Amount:      Money{Cents: amount},
		AdvancePaid: Money{Cents: advance},
		DueDate:     NewDate(2024, 1, 1),
	}}
}

func TestComputeTotals(t *testing.T) {
	cases := []struct {
		name      string
		in        []Expense
		amount    int64
		advance   int64
		remaining int64
	}{
		{"empty", nil, 0, 0, 0},
		{"single", []Expense{exp("a", 100000, 20000)}, 100000, 20000, 80000},
		{"two rows", []Expense{exp("a", 100000, 20000), exp("b", 50000, 50000)}, 150000, 70000, 80000},
		{"advance exceeds in aggregate", []Expense{exp("a", 100, 300), exp("b", 100, 0)}, 200, 300, -100},
		{"sums saturate", []Expense{exp("a", 9e18, 0), exp("b", 9e18, 0)}, math.MaxInt64, 0, math.MaxInt64},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeTotals(tc.in)
			if got.Amount.Cents != tc.amount || got.AdvancePaid.Cents != tc.advance {
				t.Fatalf("totals = %+v, want {%d %d}", got, tc.amount, tc.advance)
			}
			if got.Remaining().Cents != tc.remaining {
				t.Fatalf("remaining = %d, want %d", got.Remaining().Cents, tc.remaining)
			}
		})
	}
}

func TestTotalsMatchRowSums(t *testing.T) {
	rows := []Expense{exp("a", 1, 0), exp("b", 999, 12), exp("c", 123456, 123456), exp("d", 7, 9)}
	var amount, advance, remaining int64
	for _, r := range rows {
		amount += r.Amount.Cents
		advance += r.AdvancePaid.Cents
		remaining += r.Remaining().Cents
	}
	got := ComputeTotals(rows)
	if got.Amount.Cents != amount || got.AdvancePaid.Cents != advance {
		t.Fatalf("totals %+v do not match row sums %d/%d", got, amount, advance)
	}
	if got.Remaining().Cents != remaining {
		t.Fatalf("aggregate remaining %d != sum of row remaining %d", got.Remaining().Cents, remaining)
	}
}

func TestNewOverview(t *testing.T) {
	ov := NewOverview([]Expense{exp("a", 100000, 20000), exp("b", 50000, 50000)})
	if ov.Count != 2 || ov.Remaining.Cents != 80000 || ov.Totals.Amount.Cents != 150000 {
		t.Fatalf("unexpected overview %+v", ov)
	}
}

func TestSortByDueDate(t *testing.T) {
	a := exp("a", 1, 0)
	a.DueDate = NewDate(2024, 3, 1)
	b := exp("b", 1, 0)
	b.DueDate = NewDate(2024, 1, 1)
	c := exp("c", 1, 0)
	c.DueDate = NewDate(2024, 1, 1)
	c.Title = "a-first"

	list := []Expense{a, b, c}
	SortByDueDate(list)
	if list[0].ID != "c" || list[1].ID != "b" || list[2].ID != "a" {
		t.Fatalf("unexpected order: %s %s %s", list[0].ID, list[1].ID, list[2].ID)
	}
}
