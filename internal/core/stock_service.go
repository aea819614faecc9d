package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockService maintains the per-item daily stock ledger. Records are created
// on first access to an (item, day) pair, never proactively, so days without
// activity have no row. Continuity across recorded days is repaired lazily:
// every access recomputes the expected opening from the previous recorded
// day's closing, heals a mismatch, and propagates the corrected closing
// through all later recorded days.
type StockService interface {
	// GetOrInit returns the ledger record for (itemID, day), creating or
	// healing it as needed.
	GetOrInit(ctx context.Context, itemID int, day string) (*DailyStockRecord, error)
	// GetStock lists all ledger records for a day, joined with item data.
	GetStock(ctx context.Context, day string) ([]StockEntry, error)
	// ApplyTransaction records a manual purchase, wastage, or opening-stock
	// override and propagates the resulting closing value forward.
	ApplyTransaction(ctx context.Context, itemID int, txType StockTransactionType, quantity int, day string) (*DailyStockRecord, error)
	// AvailableStock returns the closing stock of (itemID, day) after healing.
	AvailableStock(ctx context.Context, itemID int, day string) (int, error)
	// Reconcile is the standalone repair job: it walks every recorded day of
	// the item in date order, restores continuity and the balance equation,
	// and returns how many rows it corrected.
	Reconcile(ctx context.Context, itemID int) (int, error)

	// TX-scoped operations, used by settlement to keep multi-ingredient
	// consumption atomic with the order/sale state change.

	// GetOrInitTx is GetOrInit within a caller-provided transaction. The
	// returned record's row is locked FOR UPDATE.
	GetOrInitTx(ctx context.Context, tx pgx.Tx, itemID int, day string) (*DailyStockRecord, error)
	// ConsumeTx adds quantity to the day's sold counter and propagates
	// forward. Callers must invoke it exactly once per settlement event.
	ConsumeTx(ctx context.Context, tx pgx.Tx, itemID int, day string, quantity int) error
}

type stockService struct {
	pool *pgxpool.Pool
}

func NewStockService(pool *pgxpool.Pool) StockService {
	return &stockService{pool: pool}
}

const stockDayColumns = "id, item_id, day::text, opening_stock, purchased, sold, wastage, closing_stock, created_at"

func scanStockDay(row pgx.Row, rec *DailyStockRecord) error {
	return row.Scan(&rec.ID, &rec.ItemID, &rec.Day, &rec.OpeningStock, &rec.Purchased,
		&rec.Sold, &rec.Wastage, &rec.ClosingStock, &rec.CreatedAt)
}

// ── Standalone operations ─────────────────────────────────────────────────────

func (s *stockService) GetOrInit(ctx context.Context, itemID int, day string) (*DailyStockRecord, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := s.GetOrInitTx(ctx, tx, itemID, day)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit ledger access: %w", err)
	}
	return rec, nil
}

func (s *stockService) GetStock(ctx context.Context, day string) ([]StockEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT sd.id, sd.item_id, sd.day::text, sd.opening_stock, sd.purchased,
		       sd.sold, sd.wastage, sd.closing_stock, sd.created_at,
		       i.name, i.unit, i.min_stock
		FROM stock_days sd
		JOIN items i ON i.id = sd.item_id
		WHERE sd.day = $1
		ORDER BY i.name
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock for %s: %w", day, err)
	}
	defer rows.Close()

	var entries []StockEntry
	for rows.Next() {
		var e StockEntry
		if err := rows.Scan(&e.ID, &e.ItemID, &e.Day, &e.OpeningStock, &e.Purchased,
			&e.Sold, &e.Wastage, &e.ClosingStock, &e.CreatedAt,
			&e.ItemName, &e.ItemUnit, &e.MinStock); err != nil {
			return nil, fmt.Errorf("failed to scan stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *stockService) ApplyTransaction(ctx context.Context, itemID int, txType StockTransactionType, quantity int, day string) (*DailyStockRecord, error) {
	switch txType {
	case StockPurchase, StockWastage:
		if quantity <= 0 {
			return nil, Validationf("%s quantity must be positive, got %d", txType, quantity)
		}
	case StockOpening:
		if quantity < 0 {
			return nil, Validationf("opening stock cannot be negative, got %d", quantity)
		}
	default:
		return nil, Validationf("unknown stock transaction type %q", txType)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)", itemID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check item %d: %w", itemID, err)
	}
	if !exists {
		return nil, NotFoundf("item %d not found", itemID)
	}

	rec, err := s.GetOrInitTx(ctx, tx, itemID, day)
	if err != nil {
		return nil, err
	}

	switch txType {
	case StockPurchase:
		rec.Purchased += quantity
	case StockWastage:
		rec.Wastage += quantity
	case StockOpening:
		// Manual correction: overrides the continuity-derived opening for
		// this one record. A later back-dated change re-derives it.
		rec.OpeningStock = quantity
	}
	rec.ClosingStock = rec.OpeningStock + rec.Purchased - rec.Sold - rec.Wastage

	if err := s.updateAndPropagateTx(ctx, tx, rec); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit stock transaction: %w", err)
	}
	return rec, nil
}

func (s *stockService) AvailableStock(ctx context.Context, itemID int, day string) (int, error) {
	rec, err := s.GetOrInit(ctx, itemID, day)
	if err != nil {
		return 0, err
	}
	return rec.ClosingStock, nil
}

func (s *stockService) Reconcile(ctx context.Context, itemID int) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	records, err := s.fetchForwardTx(ctx, tx, itemID, "") // all recorded days, ascending
	if err != nil {
		return 0, err
	}

	fixed := 0
	prevClosing := 0
	for i := range records {
		r := &records[i]
		opening := r.OpeningStock
		if i > 0 {
			opening = prevClosing
		}
		closing := opening + r.Purchased - r.Sold - r.Wastage
		if opening != r.OpeningStock || closing != r.ClosingStock {
			if _, err := tx.Exec(ctx,
				"UPDATE stock_days SET opening_stock = $1, closing_stock = $2 WHERE id = $3",
				opening, closing, r.ID,
			); err != nil {
				return 0, fmt.Errorf("failed to reconcile stock day %d: %w", r.ID, err)
			}
			fixed++
		}
		prevClosing = closing
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit reconcile: %w", err)
	}
	return fixed, nil
}

// ── TX-scoped operations ──────────────────────────────────────────────────────

func (s *stockService) GetOrInitTx(ctx context.Context, tx pgx.Tx, itemID int, day string) (*DailyStockRecord, error) {
	var rec DailyStockRecord
	err := scanStockDay(tx.QueryRow(ctx,
		"SELECT "+stockDayColumns+" FROM stock_days WHERE item_id = $1 AND day = $2 FOR UPDATE",
		itemID, day,
	), &rec)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fetch stock day (%d, %s): %w", itemID, day, err)
	}
	found := err == nil

	// Expected opening: the closing of the most recent recorded day before
	// this one, or 0 if the item has no earlier history.
	var expected int
	err = tx.QueryRow(ctx, `
		SELECT closing_stock FROM stock_days
		WHERE item_id = $1 AND day < $2
		ORDER BY day DESC
		LIMIT 1
	`, itemID, day).Scan(&expected)
	hasPrior := err == nil
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to fetch prior stock day for (%d, %s): %w", itemID, day, err)
	}

	if !found {
		err = scanStockDay(tx.QueryRow(ctx, `
			INSERT INTO stock_days (item_id, day, opening_stock, purchased, sold, wastage, closing_stock)
			VALUES ($1, $2, $3, 0, 0, 0, $3)
			RETURNING `+stockDayColumns,
			itemID, day, expected,
		), &rec)
		if err != nil {
			return nil, fmt.Errorf("failed to init stock day (%d, %s): %w", itemID, day, err)
		}
		return &rec, nil
	}

	// The earliest recorded day keeps its own opening: it may hold a manual
	// override, and there is no prior closing to derive it from.
	if hasPrior && rec.OpeningStock != expected {
		// An earlier day was back-dated or corrected after this record was
		// created. Heal this record and push the new closing forward.
		rec.OpeningStock = expected
		rec.ClosingStock = expected + rec.Purchased - rec.Sold - rec.Wastage
		if err := s.updateAndPropagateTx(ctx, tx, &rec); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (s *stockService) ConsumeTx(ctx context.Context, tx pgx.Tx, itemID int, day string, quantity int) error {
	if quantity <= 0 {
		return Validationf("consume quantity must be positive, got %d", quantity)
	}
	rec, err := s.GetOrInitTx(ctx, tx, itemID, day)
	if err != nil {
		return err
	}
	rec.Sold += quantity
	rec.ClosingStock = rec.OpeningStock + rec.Purchased - rec.Sold - rec.Wastage
	return s.updateAndPropagateTx(ctx, tx, rec)
}

// ── Internals ────────────────────────────────────────────────────────────────

// updateAndPropagateTx persists rec and walks every later recorded day of the
// item in ascending date order, re-deriving each opening from the previous
// closing. The walk stops when the ledger runs out of records; idle days are
// never materialized.
func (s *stockService) updateAndPropagateTx(ctx context.Context, tx pgx.Tx, rec *DailyStockRecord) error {
	if _, err := tx.Exec(ctx,
		"UPDATE stock_days SET opening_stock = $1, purchased = $2, sold = $3, wastage = $4, closing_stock = $5 WHERE id = $6",
		rec.OpeningStock, rec.Purchased, rec.Sold, rec.Wastage, rec.ClosingStock, rec.ID,
	); err != nil {
		return fmt.Errorf("failed to update stock day %d: %w", rec.ID, err)
	}

	later, err := s.fetchForwardTx(ctx, tx, rec.ItemID, rec.Day)
	if err != nil {
		return err
	}

	anchor := rec.ClosingStock
	for i := range later {
		r := &later[i]
		closing := anchor + r.Purchased - r.Sold - r.Wastage
		if r.OpeningStock != anchor || r.ClosingStock != closing {
			if _, err := tx.Exec(ctx,
				"UPDATE stock_days SET opening_stock = $1, closing_stock = $2 WHERE id = $3",
				anchor, closing, r.ID,
			); err != nil {
				return fmt.Errorf("failed to propagate to stock day %d: %w", r.ID, err)
			}
		}
		anchor = closing
	}
	return nil
}

// fetchForwardTx returns the item's recorded days strictly after day (all of
// them when day is empty), ascending, with their rows locked.
func (s *stockService) fetchForwardTx(ctx context.Context, tx pgx.Tx, itemID int, day string) ([]DailyStockRecord, error) {
	query := "SELECT " + stockDayColumns + " FROM stock_days WHERE item_id = $1"
	args := []any{itemID}
	if day != "" {
		query += " AND day > $2"
		args = append(args, day)
	}
	query += " ORDER BY day FOR UPDATE"

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stock days for item %d: %w", itemID, err)
	}
	defer rows.Close()

	var records []DailyStockRecord
	for rows.Next() {
		var r DailyStockRecord
		if err := scanStockDay(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan stock day: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
