package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is a catalog row: either a sellable menu item or a raw ingredient.
// Prices are integer minor currency units. A menu item's CostPrice is derived
// from its recipe and overwritten whenever the recipe is saved.
type Item struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	Category     string    `json:"category"`
	Unit         string    `json:"unit"` // ml | g | pcs
	IsIngredient bool      `json:"is_ingredient"`
	CostPrice    int64     `json:"cost_price"`
	SellingPrice int64     `json:"selling_price"`
	MinStock     int       `json:"min_stock"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Recipe is the bill of materials for one menu item.
type Recipe struct {
	ID         int               `json:"id"`
	MenuItemID int               `json:"menu_item_id"`
	Components []RecipeComponent `json:"components"`
}

// RecipeComponent is one ingredient line of a recipe: how much of the
// ingredient one sold unit of the menu item consumes.
type RecipeComponent struct {
	ID              int             `json:"id"`
	IngredientID    int             `json:"ingredient_id"`
	IngredientName  string          `json:"ingredient_name"` // joined from items
	QuantityPerUnit decimal.Decimal `json:"quantity_per_unit"`
	Unit            string          `json:"unit"`
}

type TableStatus string

const (
	TableEmpty    TableStatus = "empty"
	TableOccupied TableStatus = "occupied"
)

// Table is a physical café table.
type Table struct {
	ID        int         `json:"id"`
	Number    int         `json:"number"`
	Capacity  int         `json:"capacity"`
	Status    TableStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Customer is master data for credit sales.
type Customer struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Well-known settings keys.
const (
	SettingAllowSaleWithoutStock = "allow_sale_without_stock"
	SettingCashBalance           = "cash_balance"
	SettingBankBalance           = "bank_balance"
	SettingConfiguredLabels      = "configured_labels"
	SettingConfiguredCategories  = "configured_categories"

	SettingConfiguredExpenseCategories = "configured_expense_categories"
)

// ValidUnits are the stock-keeping units the catalog accepts.
var ValidUnits = map[string]bool{"ml": true, "g": true, "pcs": true}

// timeNow is swappable in tests.
var timeNow = time.Now
