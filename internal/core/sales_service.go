package core

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CreateSaleRequest describes a walk-in (direct) sale. UnitPrice zero means
// "use the item's current selling price".
type CreateSaleRequest struct {
	ItemID    int      `json:"item_id"`
	Quantity  int      `json:"quantity"`
	UnitPrice int64    `json:"unit_price"`
	Day       string   `json:"day"` // YYYY-MM-DD, empty = today
	Labels    []string `json:"labels"`
}

// UpdateSaleRequest edits a sale line. Settled lines (direct sales and lines
// of CLOSED orders) accept label changes only; quantity and price edits are
// limited to lines of OPEN orders, where stock has not been touched yet.
type UpdateSaleRequest struct {
	Quantity  *int      `json:"quantity"`
	UnitPrice *int64    `json:"unit_price"`
	Labels    *[]string `json:"labels"`
}

// SettleLine is one sale line handed to the settlement pass.
type SettleLine struct {
	SaleID   int
	ItemID   int
	Day      string
	Quantity int
}

// SalesService creates and settles sale lines. A settlement derives the
// ingredient demand of each line from the menu item's recipe, verifies the
// whole batch against the stock ledger before touching anything, snapshots
// COGS per line, and consumes the ingredients.
type SalesService interface {
	GetSales(ctx context.Context, day string, limit int) ([]Sale, error)
	GetSale(ctx context.Context, id int) (*Sale, error)
	// CreateSale records and immediately settles a walk-in sale.
	CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error)
	UpdateSale(ctx context.Context, id int, req UpdateSaleRequest) (*Sale, error)
	// SettleLinesTx runs the validate-then-consume pass for a batch of lines
	// within the caller's transaction, updating each sale row's COGS.
	// Sufficiency is checked cumulatively across the batch before any
	// consumption, so the batch lands entirely or not at all.
	SettleLinesTx(ctx context.Context, tx pgx.Tx, lines []SettleLine) error
}

type salesService struct {
	pool     *pgxpool.Pool
	stock    StockService
	settings SettingsService
}

func NewSalesService(pool *pgxpool.Pool, stock StockService, settings SettingsService) SalesService {
	return &salesService{pool: pool, stock: stock, settings: settings}
}

const saleColumns = `s.id, s.order_id, s.item_id, i.name, s.day::text, s.quantity,
	s.unit_price, s.total, s.cogs, s.labels, s.created_at`

func scanSale(row pgx.Row, sale *Sale) error {
	return row.Scan(&sale.ID, &sale.OrderID, &sale.ItemID, &sale.ItemName, &sale.Day,
		&sale.Quantity, &sale.UnitPrice, &sale.Total, &sale.COGS, &sale.Labels, &sale.CreatedAt)
}

func (s *salesService) GetSales(ctx context.Context, day string, limit int) ([]Sale, error) {
	if limit <= 0 {
		limit = 50
	}
	query := "SELECT " + saleColumns + " FROM sales s JOIN items i ON i.id = s.item_id"
	args := []any{}
	if day != "" {
		query += " WHERE s.day = $1"
		args = append(args, day)
	}
	query += fmt.Sprintf(" ORDER BY s.id DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sales: %w", err)
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		var sl Sale
		if err := scanSale(rows, &sl); err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sl)
	}
	return sales, rows.Err()
}

func (s *salesService) GetSale(ctx context.Context, id int) (*Sale, error) {
	var sale Sale
	err := scanSale(s.pool.QueryRow(ctx,
		"SELECT "+saleColumns+" FROM sales s JOIN items i ON i.id = s.item_id WHERE s.id = $1", id,
	), &sale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("sale %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sale %d: %w", id, err)
	}
	return &sale, nil
}

func (s *salesService) CreateSale(ctx context.Context, req CreateSaleRequest) (*Sale, error) {
	if req.Quantity <= 0 {
		return nil, Validationf("sale quantity must be positive, got %d", req.Quantity)
	}
	if req.UnitPrice < 0 {
		return nil, Validationf("unit price must be non-negative")
	}
	day := req.Day
	if day == "" {
		day = DayOf(timeNow())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

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

	var saleID int
	err = tx.QueryRow(ctx, `
		INSERT INTO sales (order_id, item_id, day, quantity, unit_price, total, cogs, labels)
		VALUES (NULL, $1, $2, $3, $4, $5, 0, $6)
		RETURNING id
	`, req.ItemID, day, req.Quantity, unitPrice, unitPrice*int64(req.Quantity), labels).Scan(&saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert sale: %w", err)
	}

	line := SettleLine{SaleID: saleID, ItemID: req.ItemID, Day: day, Quantity: req.Quantity}
	if err := s.SettleLinesTx(ctx, tx, []SettleLine{line}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}
	return s.GetSale(ctx, saleID)
}

func (s *salesService) UpdateSale(ctx context.Context, id int, req UpdateSaleRequest) (*Sale, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var sale Sale
	err = scanSale(tx.QueryRow(ctx,
		"SELECT "+saleColumns+" FROM sales s JOIN items i ON i.id = s.item_id WHERE s.id = $1 FOR UPDATE OF s", id,
	), &sale)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("sale %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sale %d: %w", id, err)
	}

	// Settled lines have consumed stock and snapshotted COGS; only lines of
	// an OPEN order are still freely editable.
	editable := false
	if sale.OrderID != nil {
		var status OrderStatus
		if err := tx.QueryRow(ctx,
			"SELECT status FROM orders WHERE id = $1 FOR UPDATE", *sale.OrderID,
		).Scan(&status); err != nil {
			return nil, fmt.Errorf("failed to fetch order %d: %w", *sale.OrderID, err)
		}
		editable = status == OrderOpen
	}

	if (req.Quantity != nil || req.UnitPrice != nil) && !editable {
		return nil, Conflictf("sale %d is settled; only labels can be changed", id)
	}

	oldTotal := sale.Total
	if req.Quantity != nil {
		if *req.Quantity <= 0 {
			return nil, Validationf("sale quantity must be positive, got %d", *req.Quantity)
		}
		sale.Quantity = *req.Quantity
	}
	if req.UnitPrice != nil {
		if *req.UnitPrice < 0 {
			return nil, Validationf("unit price must be non-negative")
		}
		sale.UnitPrice = *req.UnitPrice
	}
	sale.Total = sale.UnitPrice * int64(sale.Quantity)
	if req.Labels != nil {
		sale.Labels = *req.Labels
	}
	if sale.Labels == nil {
		sale.Labels = []string{}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE sales SET quantity = $1, unit_price = $2, total = $3, labels = $4 WHERE id = $5",
		sale.Quantity, sale.UnitPrice, sale.Total, sale.Labels, id,
	); err != nil {
		return nil, fmt.Errorf("failed to update sale %d: %w", id, err)
	}

	// Keep the owning order's running total in sync with the edited line.
	if sale.OrderID != nil && sale.Total != oldTotal {
		if _, err := tx.Exec(ctx,
			"UPDATE orders SET total = total + $1 WHERE id = $2",
			sale.Total-oldTotal, *sale.OrderID,
		); err != nil {
			return nil, fmt.Errorf("failed to adjust order total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit sale update: %w", err)
	}
	return s.GetSale(ctx, id)
}

// ── Settlement ───────────────────────────────────────────────────────────────

// recipeLine is a resolved recipe component used during settlement.
type recipeLine struct {
	ingredientID   int
	ingredientName string
	quantityPer    decimal.Decimal
	costPrice      int64
}

// ingredientDemand accumulates how much of one ingredient the batch needs on
// one ledger day.
type ingredientDemand struct {
	itemID int
	name   string
	day    string
	needed int
}

func (s *salesService) SettleLinesTx(ctx context.Context, tx pgx.Tx, lines []SettleLine) error {
	if len(lines) == 0 {
		return nil
	}

	allowWithoutStock, err := s.settings.AllowSaleWithoutStock(ctx)
	if err != nil {
		return err
	}

	// Resolve each distinct menu item's recipe once.
	recipes := make(map[int][]recipeLine)
	for _, line := range lines {
		if line.Quantity <= 0 {
			return Validationf("sale %d has non-positive quantity %d", line.SaleID, line.Quantity)
		}
		if _, ok := recipes[line.ItemID]; ok {
			continue
		}
		rl, err := s.fetchRecipeLinesTx(ctx, tx, line.ItemID)
		if err != nil {
			return err
		}
		recipes[line.ItemID] = rl
	}

	// Aggregate ingredient demand across the whole batch, per ledger day.
	type demandKey struct {
		itemID int
		day    string
	}
	demand := make(map[demandKey]*ingredientDemand)
	for _, line := range lines {
		for _, rl := range recipes[line.ItemID] {
			needed := int(rl.quantityPer.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(0).IntPart())
			key := demandKey{itemID: rl.ingredientID, day: line.Day}
			d, ok := demand[key]
			if !ok {
				d = &ingredientDemand{itemID: rl.ingredientID, name: rl.ingredientName, day: line.Day}
				demand[key] = d
			}
			d.needed += needed
		}
	}

	// Deterministic ledger-row lock order across concurrent settlements.
	demands := make([]*ingredientDemand, 0, len(demand))
	for _, d := range demand {
		demands = append(demands, d)
	}
	sort.Slice(demands, func(i, j int) bool {
		if demands[i].itemID != demands[j].itemID {
			return demands[i].itemID < demands[j].itemID
		}
		return demands[i].day < demands[j].day
	})

	// Validation pass: every demand must be satisfiable before anything is
	// consumed. GetOrInitTx only materializes/heals ledger rows, which is a
	// permitted read side effect. A closing stock is read before this batch's
	// own consumption ran, so demand on an earlier day of the same ingredient
	// propagates forward and must be subtracted from what a later day sees.
	// The (itemID, day) sort guarantees earlier days are accumulated first.
	if !allowWithoutStock {
		upstream := make(map[int]int)
		for _, d := range demands {
			rec, err := s.stock.GetOrInitTx(ctx, tx, d.itemID, d.day)
			if err != nil {
				return err
			}
			available := rec.ClosingStock - upstream[d.itemID]
			if available < d.needed {
				return &InsufficientStockError{
					IngredientID:   d.itemID,
					IngredientName: d.name,
					Day:            d.day,
					Available:      available,
					Required:       d.needed,
				}
			}
			upstream[d.itemID] += d.needed
		}
	}

	// COGS snapshot per line.
	for _, line := range lines {
		perUnit := decimal.Zero
		for _, rl := range recipes[line.ItemID] {
			perUnit = perUnit.Add(rl.quantityPer.Mul(decimal.NewFromInt(rl.costPrice)))
		}
		cogs := perUnit.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if _, err := tx.Exec(ctx, "UPDATE sales SET cogs = $1 WHERE id = $2", cogs, line.SaleID); err != nil {
			return fmt.Errorf("failed to snapshot COGS for sale %d: %w", line.SaleID, err)
		}
	}

	// Consumption pass.
	for _, d := range demands {
		if d.needed == 0 {
			continue
		}
		if err := s.stock.ConsumeTx(ctx, tx, d.itemID, d.day, d.needed); err != nil {
			return err
		}
	}
	return nil
}

func (s *salesService) fetchRecipeLinesTx(ctx context.Context, tx pgx.Tx, menuItemID int) ([]recipeLine, error) {
	rows, err := tx.Query(ctx, `
		SELECT rc.ingredient_id, i.name, rc.quantity_per_unit, i.cost_price
		FROM recipes r
		JOIN recipe_components rc ON rc.recipe_id = r.id
		JOIN items i ON i.id = rc.ingredient_id
		WHERE r.menu_item_id = $1
		ORDER BY rc.ingredient_id
	`, menuItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe for item %d: %w", menuItemID, err)
	}
	defer rows.Close()

	var lines []recipeLine
	for rows.Next() {
		var rl recipeLine
		if err := rows.Scan(&rl.ingredientID, &rl.ingredientName, &rl.quantityPer, &rl.costPrice); err != nil {
			return nil, fmt.Errorf("failed to scan recipe line: %w", err)
		}
		lines = append(lines, rl)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		var name string
		if err := tx.QueryRow(ctx, "SELECT name FROM items WHERE id = $1", menuItemID).Scan(&name); err != nil {
			name = fmt.Sprintf("item %d", menuItemID)
		}
		return nil, Validationf("recipe required: %s has no recipe and cannot be sold", name)
	}
	return lines, nil
}
