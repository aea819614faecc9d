package core_test

import (
	"context"
	"errors"
	"testing"

	"cafe-ledger/internal/core"
)

func TestOrderService_OneOpenOrderPerTable(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	orders := core.NewOrderService(pool)

	first, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("first CreateOrder failed: %v", err)
	}
	if first.Status != core.OrderOpen {
		t.Errorf("expected OPEN order, got %s", first.Status)
	}

	_, err = orders.CreateOrder(ctx, 1)
	var cErr *core.ConflictError
	if !errors.As(err, &cErr) {
		t.Errorf("expected ConflictError for second open order on table 1, got %v", err)
	}

	// Another table is unaffected.
	if _, err := orders.CreateOrder(ctx, 2); err != nil {
		t.Errorf("CreateOrder on table 2 failed: %v", err)
	}

	// Closing frees the table for a new order.
	if _, err := orders.CancelOrder(ctx, first.ID); err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if _, err := orders.CreateOrder(ctx, 1); err != nil {
		t.Errorf("CreateOrder after cancel failed: %v", err)
	}
}

func TestOrderService_CloseOrder_Settles(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	orders := core.NewOrderService(pool)

	day := "2026-03-01"
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 1000, day); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 100, day); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 2}); err != nil {
		t.Fatalf("failed to add latte: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 4, Quantity: 1}); err != nil {
		t.Fatalf("failed to add espresso: %v", err)
	}

	// No stock has moved while the order is open.
	milk, _ := stock.GetOrInit(ctx, 1, day)
	if milk.Sold != 0 {
		t.Fatalf("expected no consumption before close, milk sold=%d", milk.Sold)
	}

	closed, err := orders.CloseOrder(ctx, order.ID, core.PaymentCash, nil, sales)
	if err != nil {
		t.Fatalf("CloseOrder failed: %v", err)
	}
	if closed.Status != core.OrderClosed {
		t.Errorf("expected CLOSED, got %s", closed.Status)
	}
	// 2 lattes at 600 plus 1 espresso at 400.
	if closed.Total != 1600 {
		t.Errorf("expected total 1600, got %d", closed.Total)
	}

	// Cumulative demand: milk 2×200, beans 2×18 + 1×18.
	milk, err = stock.GetOrInit(ctx, 1, day)
	if err != nil {
		t.Fatalf("failed to read milk stock: %v", err)
	}
	if milk.Sold != 400 {
		t.Errorf("expected milk sold=400, got %d", milk.Sold)
	}
	beans, err := stock.GetOrInit(ctx, 2, day)
	if err != nil {
		t.Fatalf("failed to read beans stock: %v", err)
	}
	if beans.Sold != 54 {
		t.Errorf("expected beans sold=54, got %d", beans.Sold)
	}

	// Each line carries its COGS snapshot after close.
	for _, line := range closed.Lines {
		if line.COGS.IsZero() {
			t.Errorf("line %d: expected non-zero cogs after close", line.ID)
		}
	}

	// The table is free again.
	tables, err := orders.GetTables(ctx)
	if err != nil {
		t.Fatalf("GetTables failed: %v", err)
	}
	for _, tbl := range tables {
		if tbl.ID == 1 && tbl.Status != core.TableEmpty {
			t.Errorf("expected table 1 empty after close, got %s", tbl.Status)
		}
	}
}

func TestOrderService_CloseOrder_AllOrNothing(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	orders := core.NewOrderService(pool)

	day := "2026-03-01"
	// Milk covers the latte, but beans cover neither line fully: cumulative
	// demand is 2×18 + 1×18 = 54 against 40 on hand.
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 1000, day); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 40, day); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 2}); err != nil {
		t.Fatalf("failed to add latte: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 4, Quantity: 1}); err != nil {
		t.Fatalf("failed to add espresso: %v", err)
	}

	_, err = orders.CloseOrder(ctx, order.ID, core.PaymentCash, nil, sales)
	var insErr *core.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insErr.IngredientID != 2 || insErr.Required != 54 || insErr.Available != 40 {
		t.Errorf("unexpected error detail: %+v", insErr)
	}

	// Nothing moved: order still open, no ingredient consumed, cogs untouched.
	got, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != core.OrderOpen {
		t.Errorf("expected order still OPEN, got %s", got.Status)
	}
	for _, itemID := range []int{1, 2} {
		rec, err := stock.GetOrInit(ctx, itemID, day)
		if err != nil {
			t.Fatalf("failed to read stock for item %d: %v", itemID, err)
		}
		if rec.Sold != 0 {
			t.Errorf("item %d: expected sold=0 after failed close, got %d", itemID, rec.Sold)
		}
	}
	for _, line := range got.Lines {
		if !line.COGS.IsZero() {
			t.Errorf("line %d: expected zero cogs after failed close, got %s", line.ID, line.COGS)
		}
	}
}

func TestOrderService_CloseOrder_CumulativeAcrossDays(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	orders := core.NewOrderService(pool)

	// 300ml of milk recorded on the 1st; nothing recorded on the 2nd, so its
	// ledger day derives a 300ml closing until the 1st actually consumes.
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 300, "2026-03-01"); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 100, "2026-03-01"); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	lineA, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 1})
	if err != nil {
		t.Fatalf("failed to add first latte: %v", err)
	}
	lineB, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 1})
	if err != nil {
		t.Fatalf("failed to add second latte: %v", err)
	}

	// A table order can stay open across midnight, leaving its lines on
	// different ledger days. Re-date the lines to pin the scenario.
	if _, err := pool.Exec(ctx, "UPDATE sales SET day = '2026-03-01' WHERE id = $1", lineA.ID); err != nil {
		t.Fatalf("failed to re-date first line: %v", err)
	}
	if _, err := pool.Exec(ctx, "UPDATE sales SET day = '2026-03-02' WHERE id = $1", lineB.ID); err != nil {
		t.Fatalf("failed to re-date second line: %v", err)
	}

	// Each latte needs 200ml. The 2nd's derived closing of 300 would pass a
	// point-in-time check, but the 1st's 200ml demand propagates forward and
	// leaves only 100 for the 2nd.
	_, err = orders.CloseOrder(ctx, order.ID, core.PaymentCash, nil, sales)
	var insErr *core.InsufficientStockError
	if !errors.As(err, &insErr) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if insErr.IngredientID != 1 || insErr.Day != "2026-03-02" || insErr.Available != 100 || insErr.Required != 200 {
		t.Errorf("unexpected error detail: %+v", insErr)
	}

	got, err := orders.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("GetOrder failed: %v", err)
	}
	if got.Status != core.OrderOpen {
		t.Errorf("expected order still OPEN, got %s", got.Status)
	}
	for _, day := range []string{"2026-03-01", "2026-03-02"} {
		rec, err := stock.GetOrInit(ctx, 1, day)
		if err != nil {
			t.Fatalf("failed to read milk stock for %s: %v", day, err)
		}
		if rec.Sold != 0 {
			t.Errorf("%s: expected sold=0 after failed close, got %d", day, rec.Sold)
		}
	}

	// With 400ml on hand the batch clears and each day consumes its share.
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 100, "2026-03-01"); err != nil {
		t.Fatalf("failed to top up milk: %v", err)
	}
	if _, err := orders.CloseOrder(ctx, order.ID, core.PaymentCash, nil, sales); err != nil {
		t.Fatalf("CloseOrder after top-up failed: %v", err)
	}
	day1, err := stock.GetOrInit(ctx, 1, "2026-03-01")
	if err != nil {
		t.Fatalf("failed to read milk stock: %v", err)
	}
	day2, err := stock.GetOrInit(ctx, 1, "2026-03-02")
	if err != nil {
		t.Fatalf("failed to read milk stock: %v", err)
	}
	if day1.Sold != 200 || day1.ClosingStock != 200 {
		t.Errorf("day 1: expected sold=200 closing=200, got sold=%d closing=%d", day1.Sold, day1.ClosingStock)
	}
	if day2.OpeningStock != 200 || day2.Sold != 200 || day2.ClosingStock != 0 {
		t.Errorf("day 2: expected opening=200 sold=200 closing=0, got opening=%d sold=%d closing=%d",
			day2.OpeningStock, day2.Sold, day2.ClosingStock)
	}
}

func TestOrderService_CloseCredit_ReceivableLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	settings := core.NewSettingsService(pool)
	sales := core.NewSalesService(pool, stock, settings)
	orders := core.NewOrderService(pool)
	receivables := core.NewReceivableService(pool, settings)

	day := "2026-03-01"
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 1000, day); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}
	if _, err := stock.ApplyTransaction(ctx, 2, core.StockPurchase, 100, day); err != nil {
		t.Fatalf("failed to stock beans: %v", err)
	}

	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 1}); err != nil {
		t.Fatalf("failed to add latte: %v", err)
	}

	// CREDIT without a customer is rejected.
	var vErr *core.ValidationError
	if _, err := orders.CloseOrder(ctx, order.ID, core.PaymentCredit, nil, sales); !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError closing on credit without customer, got %v", err)
	}

	customerID := 1
	if _, err := orders.CloseOrder(ctx, order.ID, core.PaymentCredit, &customerID, sales); err != nil {
		t.Fatalf("CloseOrder on credit failed: %v", err)
	}

	open := core.ReceivableOpen
	list, err := receivables.GetReceivables(ctx, &open)
	if err != nil {
		t.Fatalf("GetReceivables failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 open receivable, got %d", len(list))
	}
	rcv := list[0]
	if rcv.Amount != 600 || rcv.Outstanding != 600 {
		t.Fatalf("expected amount=outstanding=600, got amount=%d outstanding=%d", rcv.Amount, rcv.Outstanding)
	}

	// Partial payment leaves the receivable open.
	rcvAfter, err := receivables.RecordPayment(ctx, rcv.ID, 500, core.PaymentCash)
	if err != nil {
		t.Fatalf("first RecordPayment failed: %v", err)
	}
	if rcvAfter.Outstanding != 100 || rcvAfter.Status != core.ReceivableOpen {
		t.Errorf("expected outstanding=100 OPEN, got outstanding=%d %s", rcvAfter.Outstanding, rcvAfter.Status)
	}

	// Overpayment clamps at zero and settles.
	rcvAfter, err = receivables.RecordPayment(ctx, rcv.ID, 500, core.PaymentCard)
	if err != nil {
		t.Fatalf("second RecordPayment failed: %v", err)
	}
	if rcvAfter.Outstanding != 0 || rcvAfter.Status != core.ReceivableSettled {
		t.Errorf("expected outstanding=0 SETTLED, got outstanding=%d %s", rcvAfter.Outstanding, rcvAfter.Status)
	}

	// Each payment landed in its till.
	cash, err := settings.CashBalance(ctx)
	if err != nil {
		t.Fatalf("CashBalance failed: %v", err)
	}
	if cash != 500 {
		t.Errorf("expected cash balance 500, got %d", cash)
	}
	bank, err := settings.BankBalance(ctx)
	if err != nil {
		t.Fatalf("BankBalance failed: %v", err)
	}
	if bank != 500 {
		t.Errorf("expected bank balance 500, got %d", bank)
	}

	payments, err := receivables.GetPayments(ctx, rcv.ID)
	if err != nil {
		t.Fatalf("GetPayments failed: %v", err)
	}
	if len(payments) != 2 {
		t.Errorf("expected 2 payment rows, got %d", len(payments))
	}
}

func TestOrderService_CancelOrder_NoConsumption(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	stock := core.NewStockService(pool)
	orders := core.NewOrderService(pool)

	day := "2026-03-01"
	if _, err := stock.ApplyTransaction(ctx, 1, core.StockPurchase, 1000, day); err != nil {
		t.Fatalf("failed to stock milk: %v", err)
	}

	order, err := orders.CreateOrder(ctx, 1)
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := orders.AddItemToOrder(ctx, order.ID, core.AddOrderLineRequest{ItemID: 3, Quantity: 1}); err != nil {
		t.Fatalf("failed to add latte: %v", err)
	}

	cancelled, err := orders.CancelOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("CancelOrder failed: %v", err)
	}
	if cancelled.Status != core.OrderCancelled {
		t.Errorf("expected CANCELLED, got %s", cancelled.Status)
	}

	milk, err := stock.GetOrInit(ctx, 1, day)
	if err != nil {
		t.Fatalf("failed to read milk stock: %v", err)
	}
	if milk.Sold != 0 {
		t.Errorf("expected no consumption after cancel, got sold=%d", milk.Sold)
	}

	// A closed lifecycle order cannot be closed again.
	var cErr *core.ConflictError
	if _, err := orders.CancelOrder(ctx, order.ID); !errors.As(err, &cErr) {
		t.Errorf("expected ConflictError cancelling twice, got %v", err)
	}
}
