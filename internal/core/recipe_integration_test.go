package core_test

import (
	"context"
	"errors"
	"testing"

	"cafe-ledger/internal/core"

	"github.com/shopspring/decimal"
)

func TestRecipeService_UpsertRecomputesCost(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	recipes := core.NewRecipeService(pool)
	catalog := core.NewCatalogService(pool)

	// Replace the latte recipe: 250 ml milk (5/ml) + 20 g beans (30/g).
	_, err := recipes.Upsert(ctx, 3, []core.RecipeComponentInput{
		{IngredientID: 1, QuantityPerUnit: decimal.NewFromInt(250), Unit: "ml"},
		{IngredientID: 2, QuantityPerUnit: decimal.NewFromInt(20), Unit: "g"},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	item, err := catalog.GetItem(ctx, 3)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.CostPrice != 250*5+20*30 {
		t.Errorf("expected cost price 1850, got %d", item.CostPrice)
	}

	// Raising an ingredient's cost and recomputing updates the menu item.
	newCost := int64(10)
	if _, err := catalog.UpdateItem(ctx, 1, core.UpdateItemRequest{CostPrice: &newCost}); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	cost, err := recipes.RecomputeCostFromRecipe(ctx, 3)
	if err != nil {
		t.Fatalf("RecomputeCostFromRecipe failed: %v", err)
	}
	if cost != 250*10+20*30 {
		t.Errorf("expected recomputed cost 3100, got %d", cost)
	}
}

func TestRecipeService_UpsertValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	recipes := core.NewRecipeService(pool)

	var vErr *core.ValidationError
	if _, err := recipes.Upsert(ctx, 3, nil); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for empty component list, got %v", err)
	}

	// An ingredient cannot carry a recipe.
	if _, err := recipes.Upsert(ctx, 1, []core.RecipeComponentInput{
		{IngredientID: 2, QuantityPerUnit: decimal.NewFromInt(1), Unit: "g"},
	}); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for recipe on ingredient, got %v", err)
	}

	// Components must themselves be ingredients.
	if _, err := recipes.Upsert(ctx, 3, []core.RecipeComponentInput{
		{IngredientID: 4, QuantityPerUnit: decimal.NewFromInt(1), Unit: "pcs"},
	}); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for non-ingredient component, got %v", err)
	}

	// Quantities must be positive.
	if _, err := recipes.Upsert(ctx, 3, []core.RecipeComponentInput{
		{IngredientID: 1, QuantityPerUnit: decimal.NewFromInt(-5), Unit: "ml"},
	}); !errors.As(err, &vErr) {
		t.Errorf("expected ValidationError for negative quantity, got %v", err)
	}
}

func TestRecipeService_DeleteGuardedBySales(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	recipes := core.NewRecipeService(pool)

	day := "2026-03-01"
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 100, day); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}
	if _, err := sales.CreateSale(ctx, core.CreateSaleRequest{ItemID: 4, Quantity: 1, Day: day}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}

	// The espresso recipe backs a recorded sale; deleting it would orphan
	// historical COGS context.
	err := recipes.Delete(ctx, 4)
	var cErr *core.ConflictError
	if !errors.As(err, &cErr) {
		t.Errorf("expected ConflictError deleting recipe with sales history, got %v", err)
	}

	// The latte recipe has no sales and deletes cleanly.
	if err := recipes.Delete(ctx, 3); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	rec, err := recipes.GetByMenuItem(ctx, 3)
	if err != nil {
		t.Fatalf("GetByMenuItem failed: %v", err)
	}
	if rec != nil {
		t.Errorf("expected recipe gone, got %+v", rec)
	}
}

func TestCatalogService_DeleteItemGuardedByHistory(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	catalog := core.NewCatalogService(pool)

	// Milk has stock history and appears in a recipe.
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 100, "2026-03-01"); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	err := catalog.DeleteItem(ctx, 1)
	var cErr *core.ConflictError
	if !errors.As(err, &cErr) {
		t.Errorf("expected ConflictError deleting referenced item, got %v", err)
	}

	// A fresh unreferenced item deletes cleanly.
	item, err := catalog.CreateItem(ctx, core.CreateItemRequest{
		Name: "Juice", Category: "Drinks", Unit: "pcs", SellingPrice: 150,
	})
	if err != nil {
		t.Fatalf("CreateItem failed: %v", err)
	}
	if err := catalog.DeleteItem(ctx, item.ID); err != nil {
		t.Fatalf("DeleteItem failed: %v", err)
	}
	var nfErr *core.NotFoundError
	if _, err := catalog.GetItem(ctx, item.ID); !errors.As(err, &nfErr) {
		t.Errorf("expected NotFoundError after delete, got %v", err)
	}
}
