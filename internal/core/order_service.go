package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AddOrderLineRequest describes one item added to an open order.
type AddOrderLineRequest struct {
	ItemID    int      `json:"item_id"`
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"` // 0 = item's current selling price
	Labels    []string `json:"labels"`
}

// OrderService runs the table/order state machine and the customer and table
// master data that belongs to it. Adding or removing lines on an OPEN order
// never touches the stock ledger; the whole settlement is deferred to
// CloseOrder, which validates and consumes every line atomically.
type OrderService interface {
	// Master data
	CreateTable(ctx context.Context, number, capacity int) (*Table, error)
	GetTables(ctx context.Context) ([]Table, error)
	CreateCustomer(ctx context.Context, name, phone string) (*Customer, error)
	GetCustomers(ctx context.Context) ([]Customer, error)

	// Order lifecycle
	CreateOrder(ctx context.Context, tableID int) (*Order, error)
	AddItemToOrder(ctx context.Context, orderID int, req AddOrderLineRequest) (*Sale, error)
	RemoveItemFromOrder(ctx context.Context, saleID int) error
	// CloseOrder settles every line of the order in one transaction: stock
	// sufficiency is validated across all lines before any consumption, COGS
	// is snapshotted per line, the table is freed, and a CREDIT close creates
	// the receivable. On any failure the order stays OPEN and stock untouched.
	CloseOrder(ctx context.Context, orderID int, paymentType PaymentType, customerID *int, sales SalesService) (*Order, error)
	CancelOrder(ctx context.Context, orderID int) (*Order, error)

	// Queries
	GetOrder(ctx context.Context, orderID int) (*Order, error)
	GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error)
}

type orderService struct {
	pool *pgxpool.Pool
}

func NewOrderService(pool *pgxpool.Pool) OrderService {
	return &orderService{pool: pool}
}

// ── Master data ──────────────────────────────────────────────────────────────

func (s *orderService) CreateTable(ctx context.Context, number, capacity int) (*Table, error) {
	if number <= 0 {
		return nil, Validationf("table number must be positive, got %d", number)
	}
	if capacity <= 0 {
		return nil, Validationf("table capacity must be positive, got %d", capacity)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM cafe_tables WHERE number = $1)", number,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check table number %d: %w", number, err)
	}
	if exists {
		return nil, Conflictf("table number %d already exists", number)
	}

	var t Table
	err := s.pool.QueryRow(ctx, `
		INSERT INTO cafe_tables (number, capacity) VALUES ($1, $2)
		RETURNING id, number, capacity, status, created_at
	`, number, capacity).Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &t, nil
}

func (s *orderService) GetTables(ctx context.Context) ([]Table, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, number, capacity, status, created_at FROM cafe_tables ORDER BY number")
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Number, &t.Capacity, &t.Status, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (s *orderService) CreateCustomer(ctx context.Context, name, phone string) (*Customer, error) {
	if name == "" {
		return nil, Validationf("customer name is required")
	}
	var c Customer
	err := s.pool.QueryRow(ctx, `
		INSERT INTO customers (name, phone) VALUES ($1, $2)
		RETURNING id, name, phone, created_at
	`, name, phone).Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	return &c, nil
}

func (s *orderService) GetCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, "SELECT id, name, phone, created_at FROM customers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// ── Order lifecycle ──────────────────────────────────────────────────────────

func (s *orderService) CreateOrder(ctx context.Context, tableID int) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status TableStatus
	err = tx.QueryRow(ctx, "SELECT status FROM cafe_tables WHERE id = $1 FOR UPDATE", tableID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("table %d not found", tableID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch table %d: %w", tableID, err)
	}

	var openCount int
	if err := tx.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE table_id = $1 AND status = $2", tableID, OrderOpen,
	).Scan(&openCount); err != nil {
		return nil, fmt.Errorf("failed to check open orders for table %d: %w", tableID, err)
	}
	if openCount > 0 {
		return nil, Conflictf("table %d already has an open order", tableID)
	}

	var orderID int
	if err := tx.QueryRow(ctx, `
		INSERT INTO orders (table_id, status, total) VALUES ($1, $2, 0)
		RETURNING id
	`, tableID, OrderOpen).Scan(&orderID); err != nil {
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE cafe_tables SET status = $1 WHERE id = $2", TableOccupied, tableID,
	); err != nil {
		return nil, fmt.Errorf("failed to occupy table %d: %w", tableID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order creation: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) AddItemToOrder(ctx context.Context, orderID int, req AddOrderLineRequest) (*Sale, error) {
	if req.Quantity <= 0 {
		return nil, Validationf("line quantity must be positive, got %d", req.Quantity)
	}
	if req.UnitPrice < 0 {
		return nil, Validationf("unit price must be non-negative")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := s.lockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if status != OrderOpen {
		return nil, Conflictf("order %d is %s; items can only be added to an open order", orderID, status)
	}

	var isIngredient, isActive bool
	var sellingPrice int64
	err = tx.QueryRow(ctx,
		"SELECT is_ingredient, is_active, selling_price FROM items WHERE id = $1", req.ItemID,
	).Scan(&isIngredient, &isActive, &sellingPrice)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("item %d not found", req.ItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %d: %w", req.ItemID, err)
	}
	if isIngredient {
		return nil, Validationf("item %d is an ingredient and cannot be sold", req.ItemID)
	}
	if !isActive {
		return nil, Validationf("item %d is inactive", req.ItemID)
	}

	unitPrice := req.UnitPrice
	if unitPrice == 0 {
		unitPrice = sellingPrice
	}
	labels := req.Labels
	if labels == nil {
		labels = []string{}
	}
	total := unitPrice * int64(req.Quantity)

	// COGS stays 0 and stock untouched until the order is closed.
	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (order_id, item_id, day, quantity, unit_price, total, cogs, labels)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		RETURNING id
	`, orderID, req.ItemID, DayOf(timeNow()), req.Quantity, unitPrice, total, labels).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert order line: %w", err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE orders SET total = total + $1 WHERE id = $2", total, orderID,
	); err != nil {
		return nil, fmt.Errorf("failed to update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order line: %w", err)
	}

	var sale Sale
	err = scanSale(s.pool.QueryRow(ctx,
		"SELECT "+saleColumns+" FROM sales s JOIN items i ON i.id = s.item_id WHERE s.id = $1", saleID,
	), &sale)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order line %d: %w", saleID, err)
	}
	return &sale, nil
}

func (s *orderService) RemoveItemFromOrder(ctx context.Context, saleID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID *int
	var total int64
	err = tx.QueryRow(ctx, "SELECT order_id, total FROM sales WHERE id = $1 FOR UPDATE", saleID).Scan(&orderID, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFoundf("sale %d not found", saleID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch sale %d: %w", saleID, err)
	}
	if orderID == nil {
		return Conflictf("sale %d is a walk-in sale, not an order line", saleID)
	}

	status, err := s.lockOrderTx(ctx, tx, *orderID)
	if err != nil {
		return err
	}
	if status != OrderOpen {
		return Conflictf("order %d is %s; lines can only be removed from an open order", *orderID, status)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM sales WHERE id = $1", saleID); err != nil {
		return fmt.Errorf("failed to delete sale %d: %w", saleID, err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE orders SET total = total - $1 WHERE id = $2", total, *orderID,
	); err != nil {
		return fmt.Errorf("failed to update order total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit line removal: %w", err)
	}
	return nil
}

func (s *orderService) CloseOrder(ctx context.Context, orderID int, paymentType PaymentType, customerID *int, sales SalesService) (*Order, error) {
	switch paymentType {
	case PaymentCash, PaymentCard, PaymentCredit:
	default:
		return nil, Validationf("unknown payment type %q", paymentType)
	}
	if paymentType == PaymentCredit && customerID == nil {
		return nil, Validationf("credit payment requires a customer")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status OrderStatus
	var tableID int
	var total int64
	err = tx.QueryRow(ctx,
		"SELECT status, table_id, total FROM orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&status, &tableID, &total)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("order %d not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if status != OrderOpen {
		return nil, Conflictf("order %d is already %s", orderID, status)
	}

	if paymentType == PaymentCredit {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM customers WHERE id = $1)", *customerID,
		).Scan(&exists); err != nil {
			return nil, fmt.Errorf("failed to check customer %d: %w", *customerID, err)
		}
		if !exists {
			return nil, NotFoundf("customer %d not found", *customerID)
		}
	}

	lines, err := s.fetchSettleLinesTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}

	// The whole order settles as one unit: any shortfall aborts the close
	// with the order still OPEN and no stock consumed.
	if err := sales.SettleLinesTx(ctx, tx, lines); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status = $1, payment_type = $2, closed_at = NOW() WHERE id = $3
	`, OrderClosed, paymentType, orderID); err != nil {
		return nil, fmt.Errorf("failed to close order %d: %w", orderID, err)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE cafe_tables SET status = $1 WHERE id = $2", TableEmpty, tableID,
	); err != nil {
		return nil, fmt.Errorf("failed to free table %d: %w", tableID, err)
	}

	if paymentType == PaymentCredit {
		if _, err := tx.Exec(ctx, `
			INSERT INTO receivables (order_id, customer_id, amount, outstanding, status)
			VALUES ($1, $2, $3, $3, $4)
		`, orderID, *customerID, total, ReceivableOpen); err != nil {
			return nil, fmt.Errorf("failed to create receivable for order %d: %w", orderID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order close: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

func (s *orderService) CancelOrder(ctx context.Context, orderID int) (*Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var status OrderStatus
	var tableID int
	err = tx.QueryRow(ctx,
		"SELECT status, table_id FROM orders WHERE id = $1 FOR UPDATE", orderID,
	).Scan(&status, &tableID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("order %d not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	if status != OrderOpen {
		return nil, Conflictf("order %d is already %s", orderID, status)
	}

	if _, err := tx.Exec(ctx,
		"UPDATE orders SET status = $1, closed_at = NOW() WHERE id = $2", OrderCancelled, orderID,
	); err != nil {
		return nil, fmt.Errorf("failed to cancel order %d: %w", orderID, err)
	}
	if _, err := tx.Exec(ctx,
		"UPDATE cafe_tables SET status = $1 WHERE id = $2", TableEmpty, tableID,
	); err != nil {
		return nil, fmt.Errorf("failed to free table %d: %w", tableID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit order cancel: %w", err)
	}
	return s.GetOrder(ctx, orderID)
}

// ── Queries ──────────────────────────────────────────────────────────────────

const orderColumns = `o.id, o.table_id, t.number, o.status, o.total, o.payment_type, o.created_at, o.closed_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.TableID, &o.TableNumber, &o.Status, &o.Total,
		&o.PaymentType, &o.CreatedAt, &o.ClosedAt)
}

func (s *orderService) GetOrder(ctx context.Context, orderID int) (*Order, error) {
	var o Order
	err := scanOrder(s.pool.QueryRow(ctx,
		"SELECT "+orderColumns+" FROM orders o JOIN cafe_tables t ON t.id = o.table_id WHERE o.id = $1",
		orderID,
	), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("order %d not found", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT "+saleColumns+" FROM sales s JOIN items i ON i.id = s.item_id WHERE s.order_id = $1 ORDER BY s.id",
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sl Sale
		if err := scanSale(rows, &sl); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		o.Lines = append(o.Lines, sl)
	}
	return &o, rows.Err()
}

func (s *orderService) GetOrders(ctx context.Context, status *OrderStatus) ([]Order, error) {
	query := "SELECT " + orderColumns + " FROM orders o JOIN cafe_tables t ON t.id = o.table_id"
	args := []any{}
	if status != nil {
		query += " WHERE o.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY o.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ── Internals ────────────────────────────────────────────────────────────────

func (s *orderService) lockOrderTx(ctx context.Context, tx pgx.Tx, orderID int) (OrderStatus, error) {
	var status OrderStatus
	err := tx.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1 FOR UPDATE", orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", NotFoundf("order %d not found", orderID)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch order %d: %w", orderID, err)
	}
	return status, nil
}

func (s *orderService) fetchSettleLinesTx(ctx context.Context, tx pgx.Tx, orderID int) ([]SettleLine, error) {
	rows, err := tx.Query(ctx,
		"SELECT id, item_id, day::text, quantity FROM sales WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	var lines []SettleLine
	for rows.Next() {
		var l SettleLine
		if err := rows.Scan(&l.SaleID, &l.ItemID, &l.Day, &l.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
