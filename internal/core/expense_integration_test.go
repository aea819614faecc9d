package core_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"cafe-ledger/internal/core"
)

func TestExpenseService_CRUD(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	expenses := core.NewExpenseService(pool)
	ctx := context.Background()

	created, err := expenses.CreateExpense(ctx, core.CreateExpenseRequest{
		Day:         "2026-06-10",
		Category:    "Supplies",
		Description: "napkins",
		Amount:      5000,
	})
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if created.Day != "2026-06-10" || created.Amount != 5000 || created.IsRecurring || created.Frequency != nil {
		t.Errorf("unexpected created expense: %+v", created)
	}

	newAmount := int64(6500)
	updated, err := expenses.UpdateExpense(ctx, created.ID, core.UpdateExpenseRequest{Amount: &newAmount})
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	if updated.Amount != 6500 || updated.Category != "Supplies" {
		t.Errorf("unexpected updated expense: %+v", updated)
	}

	if err := expenses.DeleteExpense(ctx, created.ID); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	var nfErr *core.NotFoundError
	if _, err := expenses.GetExpense(ctx, created.ID); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
	if err := expenses.DeleteExpense(ctx, created.ID); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError on double delete, got %v", err)
	}
}

func TestExpenseService_Validation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	expenses := core.NewExpenseService(pool)
	ctx := context.Background()
	var valErr *core.ValidationError

	cases := []core.CreateExpenseRequest{
		{Day: "2026-06-01", Category: "", Amount: 100},
		{Day: "2026-06-01", Category: "Rent", Amount: 0},
		{Day: "2026-06-01", Category: "Rent", Amount: -50},
		{Day: "not-a-day", Category: "Rent", Amount: 100},
		{Day: "2026-06-01", Category: "Rent", Amount: 100, IsRecurring: true},
	}
	for i, req := range cases {
		if _, err := expenses.CreateExpense(ctx, req); !errors.As(err, &valErr) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}

	bogus := core.ExpenseFrequency("weekly")
	_, err := expenses.CreateExpense(ctx, core.CreateExpenseRequest{
		Day: "2026-06-01", Category: "Rent", Amount: 100, IsRecurring: true, Frequency: &bogus,
	})
	if !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for unknown frequency, got %v", err)
	}

	if _, err := expenses.ListExpenses(ctx, "2026-06-30", "2026-06-01"); !errors.As(err, &valErr) {
		t.Errorf("expected ValidationError for inverted window, got %v", err)
	}
}

func TestExpenseService_WindowAllocation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	expenses := core.NewExpenseService(pool)
	ctx := context.Background()

	monthly := core.ExpenseMonthly
	daily := core.ExpenseDaily

	seed := []core.CreateExpenseRequest{
		{Day: "2026-06-10", Category: "Supplies", Description: "napkins", Amount: 5000},
		{Day: "2026-05-20", Category: "Supplies", Description: "outside window", Amount: 9999},
		{Day: "2026-01-01", Category: "Rent", Amount: 90000, IsRecurring: true, Frequency: &monthly},
		{Day: "2026-06-16", Category: "Salary", Description: "part-timer", Amount: 1000, IsRecurring: true, Frequency: &daily},
		{Day: "2026-07-01", Category: "Rent", Description: "starts after window", Amount: 50000, IsRecurring: true, Frequency: &monthly},
	}
	for _, req := range seed {
		if _, err := expenses.CreateExpense(ctx, req); err != nil {
			t.Fatalf("CreateExpense(%s %s) failed: %v", req.Day, req.Category, err)
		}
	}

	// June: the one-off counts as is, rent allocates 90000/30 per day for all
	// 30 days, and the daily salary runs from its start on the 16th.
	summary, err := expenses.ListExpenses(ctx, "2026-06-01", "2026-06-30")
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if summary.Total != 5000+90000+15000 {
		t.Errorf("expected total 110000, got %d", summary.Total)
	}
	wantByCategory := map[string]int64{"Supplies": 5000, "Rent": 90000, "Salary": 15000}
	if !reflect.DeepEqual(summary.ByCategory, wantByCategory) {
		t.Errorf("expected by-category %v, got %v", wantByCategory, summary.ByCategory)
	}
	if len(summary.Items) != 3 {
		t.Fatalf("expected 3 window items, got %d", len(summary.Items))
	}
	for _, item := range summary.Items {
		switch item.Category {
		case "Supplies":
			if item.Day != "2026-06-10" || item.AllocatedDaily != nil {
				t.Errorf("unexpected one-off item: %+v", item)
			}
		case "Rent":
			if item.Day != "2026-06-01" || item.AllocatedDaily == nil || *item.AllocatedDaily != 3000 {
				t.Errorf("unexpected rent item: %+v", item)
			}
		case "Salary":
			if item.Day != "2026-06-01" || item.Amount != 15000 || item.AllocatedDaily == nil || *item.AllocatedDaily != 1000 {
				t.Errorf("unexpected salary item: %+v", item)
			}
		}
	}

	// A single day inside the window charges one day of each running
	// recurring expense and no one-offs from other days.
	daySummary, err := expenses.ListExpenses(ctx, "2026-06-20", "2026-06-20")
	if err != nil {
		t.Fatalf("ListExpenses single day failed: %v", err)
	}
	if daySummary.Total != 3000+1000 {
		t.Errorf("expected single-day total 4000, got %d", daySummary.Total)
	}
}

func TestSettingsService_ExpenseCategories(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	settings := core.NewSettingsService(pool)
	ctx := context.Background()

	categories, err := settings.ExpenseCategories(ctx)
	if err != nil {
		t.Fatalf("ExpenseCategories failed: %v", err)
	}
	if !reflect.DeepEqual(categories, core.DefaultExpenseCategories) {
		t.Errorf("expected defaults %v, got %v", core.DefaultExpenseCategories, categories)
	}

	categories, err = settings.AddExpenseCategory(ctx, "Marketing")
	if err != nil {
		t.Fatalf("AddExpenseCategory failed: %v", err)
	}
	if len(categories) != len(core.DefaultExpenseCategories)+1 {
		t.Errorf("expected %d categories after add, got %v", len(core.DefaultExpenseCategories)+1, categories)
	}

	// Adding an existing category is a no-op.
	again, err := settings.AddExpenseCategory(ctx, "Marketing")
	if err != nil {
		t.Fatalf("duplicate AddExpenseCategory failed: %v", err)
	}
	if !reflect.DeepEqual(again, categories) {
		t.Errorf("expected duplicate add to be a no-op, got %v", again)
	}

	categories, err = settings.RemoveExpenseCategory(ctx, "Misc")
	if err != nil {
		t.Fatalf("RemoveExpenseCategory failed: %v", err)
	}
	for _, c := range categories {
		if c == "Misc" {
			t.Errorf("expected Misc removed, got %v", categories)
		}
	}
}
