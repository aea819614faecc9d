package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreateItemRequest carries the writable fields of a catalog item.
type CreateItemRequest struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Unit         string `json:"unit"`
	IsIngredient bool   `json:"is_ingredient"`
	CostPrice    int64  `json:"cost_price"`
	SellingPrice int64  `json:"selling_price"`
	MinStock     int    `json:"min_stock"`
}

// UpdateItemRequest is a partial update; nil fields are left unchanged.
type UpdateItemRequest struct {
	Name         *string `json:"name"`
	Category     *string `json:"category"`
	Unit         *string `json:"unit"`
	CostPrice    *int64  `json:"cost_price"`
	SellingPrice *int64  `json:"selling_price"`
	MinStock     *int    `json:"min_stock"`
	IsActive     *bool   `json:"is_active"`
}

// CatalogService manages item master data: menu items and raw ingredients.
// A menu item's cost price is derived from its recipe (see RecipeService);
// a direct edit here survives only until the next recipe save.
type CatalogService interface {
	GetItems(ctx context.Context) ([]Item, error)
	GetItem(ctx context.Context, id int) (*Item, error)
	CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error)
	UpdateItem(ctx context.Context, id int, req UpdateItemRequest) (*Item, error)
	// DeleteItem removes an item without history. Items referenced by sales,
	// stock records, or recipes cannot be deleted.
	DeleteItem(ctx context.Context, id int) error
}

type catalogService struct {
	pool *pgxpool.Pool
}

func NewCatalogService(pool *pgxpool.Pool) CatalogService {
	return &catalogService{pool: pool}
}

const itemColumns = "id, name, category, unit, is_ingredient, cost_price, selling_price, min_stock, is_active, created_at"

func scanItem(row pgx.Row, it *Item) error {
	return row.Scan(&it.ID, &it.Name, &it.Category, &it.Unit, &it.IsIngredient,
		&it.CostPrice, &it.SellingPrice, &it.MinStock, &it.IsActive, &it.CreatedAt)
}

func (s *catalogService) GetItems(ctx context.Context) ([]Item, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+itemColumns+" FROM items ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := scanItem(rows, &it); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *catalogService) GetItem(ctx context.Context, id int) (*Item, error) {
	var it Item
	err := scanItem(s.pool.QueryRow(ctx, "SELECT "+itemColumns+" FROM items WHERE id = $1", id), &it)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %d: %w", id, err)
	}
	return &it, nil
}

func (s *catalogService) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	if req.Name == "" {
		return nil, Validationf("item name is required")
	}
	if req.Category == "" {
		return nil, Validationf("item category is required")
	}
	if !ValidUnits[req.Unit] {
		return nil, Validationf("unknown unit %q, want ml, g, or pcs", req.Unit)
	}
	if req.CostPrice < 0 || req.SellingPrice < 0 || req.MinStock < 0 {
		return nil, Validationf("cost price, selling price, and min stock must be non-negative")
	}

	var it Item
	err := scanItem(s.pool.QueryRow(ctx, `
		INSERT INTO items (name, category, unit, is_ingredient, cost_price, selling_price, min_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+itemColumns,
		req.Name, req.Category, req.Unit, req.IsIngredient, req.CostPrice, req.SellingPrice, req.MinStock,
	), &it)
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return &it, nil
}

func (s *catalogService) UpdateItem(ctx context.Context, id int, req UpdateItemRequest) (*Item, error) {
	it, err := s.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if *req.Name == "" {
			return nil, Validationf("item name cannot be empty")
		}
		it.Name = *req.Name
	}
	if req.Category != nil {
		if *req.Category == "" {
			return nil, Validationf("item category cannot be empty")
		}
		it.Category = *req.Category
	}
	if req.Unit != nil {
		if !ValidUnits[*req.Unit] {
			return nil, Validationf("unknown unit %q, want ml, g, or pcs", *req.Unit)
		}
		it.Unit = *req.Unit
	}
	if req.CostPrice != nil {
		if *req.CostPrice < 0 {
			return nil, Validationf("cost price must be non-negative")
		}
		it.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		if *req.SellingPrice < 0 {
			return nil, Validationf("selling price must be non-negative")
		}
		it.SellingPrice = *req.SellingPrice
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return nil, Validationf("min stock must be non-negative")
		}
		it.MinStock = *req.MinStock
	}
	if req.IsActive != nil {
		it.IsActive = *req.IsActive
	}

	err = scanItem(s.pool.QueryRow(ctx, `
		UPDATE items
		SET name = $1, category = $2, unit = $3, cost_price = $4, selling_price = $5, min_stock = $6, is_active = $7
		WHERE id = $8
		RETURNING `+itemColumns,
		it.Name, it.Category, it.Unit, it.CostPrice, it.SellingPrice, it.MinStock, it.IsActive, id,
	), it)
	if err != nil {
		return nil, fmt.Errorf("failed to update item %d: %w", id, err)
	}
	return it, nil
}

func (s *catalogService) DeleteItem(ctx context.Context, id int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM items WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check item %d: %w", id, err)
	}
	if !exists {
		return NotFoundf("item %d not found", id)
	}

	var salesCount, stockCount, recipeCount int
	err = tx.QueryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM sales WHERE item_id = $1),
		       (SELECT COUNT(*) FROM stock_days WHERE item_id = $1),
		       (SELECT COUNT(*) FROM recipe_components WHERE ingredient_id = $1)
		       + (SELECT COUNT(*) FROM recipes WHERE menu_item_id = $1)
	`, id).Scan(&salesCount, &stockCount, &recipeCount)
	if err != nil {
		return fmt.Errorf("failed to check references for item %d: %w", id, err)
	}
	if salesCount > 0 || stockCount > 0 || recipeCount > 0 {
		return Conflictf("item %d has history (%d sales, %d stock days, %d recipe references) and cannot be deleted; deactivate it instead",
			id, salesCount, stockCount, recipeCount)
	}

	if _, err := tx.Exec(ctx, "DELETE FROM items WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit item delete: %w", err)
	}
	return nil
}
