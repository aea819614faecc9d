package core_test

import (
	"context"
	"testing"
	"time"

	"cafe-ledger/internal/core"
)

func TestSettingsService_GetSet(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	settings := core.NewSettingsService(pool)

	val, err := settings.Get(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "" {
		t.Errorf("expected empty value for unset key, got %q", val)
	}

	if err := settings.Set(ctx, "receipt_footer", "Thank you!"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := settings.Set(ctx, "receipt_footer", "Visit again"); err != nil {
		t.Fatalf("Set (overwrite) failed: %v", err)
	}
	val, err = settings.Get(ctx, "receipt_footer")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if val != "Visit again" {
		t.Errorf("expected upserted value, got %q", val)
	}
}

func TestSettingsService_AllowSaleWithoutStock_DefaultsOff(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	settings := core.NewSettingsService(pool)

	allow, err := settings.AllowSaleWithoutStock(ctx)
	if err != nil {
		t.Fatalf("AllowSaleWithoutStock failed: %v", err)
	}
	if allow {
		t.Error("expected override to default to false")
	}

	if err := settings.SetAllowSaleWithoutStock(ctx, true); err != nil {
		t.Fatalf("SetAllowSaleWithoutStock failed: %v", err)
	}
	allow, err = settings.AllowSaleWithoutStock(ctx)
	if err != nil {
		t.Fatalf("AllowSaleWithoutStock failed: %v", err)
	}
	if !allow {
		t.Error("expected override to be on after set")
	}
}

func TestSettingsService_LabelsAndCategories(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	settings := core.NewSettingsService(pool)

	labels, err := settings.AddLabel(ctx, "staff")
	if err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}
	labels, err = settings.AddLabel(ctx, "takeaway")
	if err != nil {
		t.Fatalf("AddLabel failed: %v", err)
	}
	if len(labels) != 2 {
		t.Errorf("expected 2 labels, got %v", labels)
	}

	// Adding a duplicate is a no-op.
	labels, err = settings.AddLabel(ctx, "staff")
	if err != nil {
		t.Fatalf("duplicate AddLabel failed: %v", err)
	}
	if len(labels) != 2 {
		t.Errorf("expected duplicate add to be a no-op, got %v", labels)
	}

	labels, err = settings.RemoveLabel(ctx, "staff")
	if err != nil {
		t.Fatalf("RemoveLabel failed: %v", err)
	}
	if len(labels) != 1 || labels[0] != "takeaway" {
		t.Errorf("expected [takeaway], got %v", labels)
	}

	// Categories start from the built-in defaults.
	cats, err := settings.ConfiguredCategories(ctx)
	if err != nil {
		t.Fatalf("ConfiguredCategories failed: %v", err)
	}
	if len(cats) != len(core.DefaultCategories) {
		t.Errorf("expected default categories %v, got %v", core.DefaultCategories, cats)
	}
	cats, err = settings.AddCategory(ctx, "Desserts")
	if err != nil {
		t.Fatalf("AddCategory failed: %v", err)
	}
	if len(cats) != len(core.DefaultCategories)+1 {
		t.Errorf("expected added category, got %v", cats)
	}
}

func TestReportingService_LowStock(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	reporting := core.NewReportingService(pool)

	// Milk min_stock is 500; stock it below that. Beans min_stock is 100;
	// stock them above it.
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 200, "2026-03-01"); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 300, "2026-03-01"); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	entries, err := reporting.GetLowStock(ctx, "2026-03-02")
	if err != nil {
		t.Fatalf("GetLowStock failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 low stock entry, got %d", len(entries))
	}
	if entries[0].ItemID != 1 || entries[0].ClosingStock != 200 || entries[0].MinStock != 500 {
		t.Errorf("unexpected entry: %+v", entries[0])
	}
}

func TestReportingService_DashboardExcludesOpenOrders(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	orders := core.NewOrderService(pool)
	reporting := core.NewReportingService(pool)

	day := core.DayOf(time.Now())
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 1000, day); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 200, day); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	// One settled walk-in sale and one line parked on an open order.
	if _, err := sales.CreateSale(ctx, core.CreateSaleRequest{ItemID: 3, Quantity: 1}); err != nil {
		t.Fatalf("CreateSale failed: %v", err)
	}
	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 4, Quantity: 2}); err != nil {
		t.Fatalf("AddItemToOrder failed: %v", err)
	}

	stats, err := reporting.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats failed: %v", err)
	}
	if stats.DailySales != 600 {
		t.Errorf("expected daily sales 600 (open order excluded), got %d", stats.DailySales)
	}
	if len(stats.TopItems) != 1 || stats.TopItems[0].ItemID != 3 {
		t.Errorf("expected latte as the only top item, got %+v", stats.TopItems)
	}

	// Closing the order folds its lines into the aggregates.
	if _, err := orders.CloseOrder(ctx, order.ID, core.PaymentCard, nil, sales); err != nil {
		t.Fatalf("CloseOrder failed: %v", err)
	}
	stats, err = reporting.GetDashboardStats(ctx)
	if err != nil {
		t.Fatalf("GetDashboardStats failed: %v", err)
	}
	if stats.DailySales != 600+2*400 {
		t.Errorf("expected daily sales 1400 after close, got %d", stats.DailySales)
	}
}
