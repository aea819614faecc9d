package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// RecipeComponentInput is one ingredient line of a recipe save.
type RecipeComponentInput struct {
	IngredientID    int             `json:"ingredient_id"`
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	Unit            string          `json:"unit"`
}

// RecipeService manages the bill of materials of menu items. Saving a recipe
// re-derives the menu item's cost price in the same transaction, so catalog
// cost and recipe never drift apart.
type RecipeService interface {
	// GetByMenuItem returns the recipe for a menu item, or nil when none exists.
	GetByMenuItem(ctx context.Context, menuItemID int) (*Recipe, error)
	// Upsert replaces the menu item's recipe components (delete-then-insert)
	// and recomputes its derived cost price.
	Upsert(ctx context.Context, menuItemID int, components []RecipeComponentInput) (*Recipe, error)
	// Delete removes the recipe. Blocked while any sale references the menu item.
	Delete(ctx context.Context, menuItemID int) error
	// RecomputeCostFromRecipe re-derives the menu item's cost price from its
	// current recipe and persists it, returning the new value. This is the
	// explicit form of the derivation Upsert performs implicitly.
	RecomputeCostFromRecipe(ctx context.Context, menuItemID int) (int64, error)
}

type recipeService struct {
	pool *pgxpool.Pool
}

func NewRecipeService(pool *pgxpool.Pool) RecipeService {
	return &recipeService{pool: pool}
}

func (s *recipeService) GetByMenuItem(ctx context.Context, menuItemID int) (*Recipe, error) {
	var r Recipe
	err := s.pool.QueryRow(ctx,
		"SELECT id, menu_item_id FROM recipes WHERE menu_item_id = $1", menuItemID,
	).Scan(&r.ID, &r.MenuItemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch recipe for item %d: %w", menuItemID, err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT rc.id, rc.ingredient_id, i.name, rc.quantity_per_unit, rc.unit
		FROM recipe_components rc
		JOIN items i ON i.id = rc.ingredient_id
		WHERE rc.recipe_id = $1
		ORDER BY rc.id
	`, r.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipe components: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c RecipeComponent
		if err := rows.Scan(&c.ID, &c.IngredientID, &c.IngredientName, &c.QuantityPerUnit, &c.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan recipe component: %w", err)
		}
		r.Components = append(r.Components, c)
	}
	return &r, rows.Err()
}

func (s *recipeService) Upsert(ctx context.Context, menuItemID int, components []RecipeComponentInput) (*Recipe, error) {
	if len(components) == 0 {
		return nil, Validationf("recipe must have at least one component")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// The target must be a menu item, not an ingredient.
	var isIngredient bool
	err = tx.QueryRow(ctx, "SELECT is_ingredient FROM items WHERE id = $1", menuItemID).Scan(&isIngredient)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("item %d not found", menuItemID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch item %d: %w", menuItemID, err)
	}
	if isIngredient {
		return nil, Validationf("item %d is an ingredient and cannot have a recipe", menuItemID)
	}

	for _, c := range components {
		if c.QuantityPerUnit.LessThanOrEqual(decimal.Zero) {
			return nil, Validationf("component quantity for ingredient %d must be positive", c.IngredientID)
		}
		var ok bool
		err = tx.QueryRow(ctx,
			"SELECT is_ingredient FROM items WHERE id = $1", c.IngredientID,
		).Scan(&ok)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NotFoundf("ingredient %d not found", c.IngredientID)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to fetch ingredient %d: %w", c.IngredientID, err)
		}
		if !ok {
			return nil, Validationf("item %d is not an ingredient", c.IngredientID)
		}
	}

	var recipeID int
	err = tx.QueryRow(ctx, `
		INSERT INTO recipes (menu_item_id) VALUES ($1)
		ON CONFLICT (menu_item_id) DO UPDATE SET menu_item_id = EXCLUDED.menu_item_id
		RETURNING id
	`, menuItemID).Scan(&recipeID)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert recipe for item %d: %w", menuItemID, err)
	}

	// Replace all components.
	if _, err := tx.Exec(ctx, "DELETE FROM recipe_components WHERE recipe_id = $1", recipeID); err != nil {
		return nil, fmt.Errorf("failed to clear recipe components: %w", err)
	}
	for _, c := range components {
		if _, err := tx.Exec(ctx, `
			INSERT INTO recipe_components (recipe_id, ingredient_id, quantity_per_unit, unit)
			VALUES ($1, $2, $3, $4)
		`, recipeID, c.IngredientID, c.QuantityPerUnit, c.Unit); err != nil {
			return nil, fmt.Errorf("failed to insert recipe component: %w", err)
		}
	}

	if _, err := s.recomputeCostTx(ctx, tx, menuItemID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit recipe upsert: %w", err)
	}
	return s.GetByMenuItem(ctx, menuItemID)
}

func (s *recipeService) Delete(ctx context.Context, menuItemID int) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var recipeID int
	err = tx.QueryRow(ctx, "SELECT id FROM recipes WHERE menu_item_id = $1 FOR UPDATE", menuItemID).Scan(&recipeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return NotFoundf("no recipe for item %d", menuItemID)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch recipe for item %d: %w", menuItemID, err)
	}

	var saleCount int
	if err := tx.QueryRow(ctx, "SELECT COUNT(*) FROM sales WHERE item_id = $1", menuItemID).Scan(&saleCount); err != nil {
		return fmt.Errorf("failed to count sales for item %d: %w", menuItemID, err)
	}
	if saleCount > 0 {
		return Conflictf("item %d has %d recorded sales; its recipe cannot be deleted", menuItemID, saleCount)
	}

	// recipe_components cascade on recipe delete
	if _, err := tx.Exec(ctx, "DELETE FROM recipes WHERE id = $1", recipeID); err != nil {
		return fmt.Errorf("failed to delete recipe %d: %w", recipeID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit recipe delete: %w", err)
	}
	return nil
}

func (s *recipeService) RecomputeCostFromRecipe(ctx context.Context, menuItemID int) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	cost, err := s.recomputeCostTx(ctx, tx, menuItemID)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit cost recompute: %w", err)
	}
	return cost, nil
}

// recomputeCostTx derives cost = Σ(quantity_per_unit × ingredient cost price),
// rounded to the nearest minor unit, and persists it on the menu item.
func (s *recipeService) recomputeCostTx(ctx context.Context, tx pgx.Tx, menuItemID int) (int64, error) {
	rows, err := tx.Query(ctx, `
		SELECT rc.quantity_per_unit, i.cost_price
		FROM recipes r
		JOIN recipe_components rc ON rc.recipe_id = r.id
		JOIN items i ON i.id = rc.ingredient_id
		WHERE r.menu_item_id = $1
	`, menuItemID)
	if err != nil {
		return 0, fmt.Errorf("failed to query recipe cost inputs: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	found := false
	for rows.Next() {
		var qty decimal.Decimal
		var costPrice int64
		if err := rows.Scan(&qty, &costPrice); err != nil {
			return 0, fmt.Errorf("failed to scan recipe cost input: %w", err)
		}
		total = total.Add(qty.Mul(decimal.NewFromInt(costPrice)))
		found = true
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, Validationf("item %d has no recipe to derive cost from", menuItemID)
	}

	cost := total.Round(0).IntPart()
	if _, err := tx.Exec(ctx, "UPDATE items SET cost_price = $1 WHERE id = $2", cost, menuItemID); err != nil {
		return 0, fmt.Errorf("failed to persist derived cost for item %d: %w", menuItemID, err)
	}
	return cost, nil
}
