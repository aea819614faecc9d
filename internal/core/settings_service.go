package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsService is the typed facade over the key-value settings table:
// feature flags, running till balances, and configured label/category lists.
// The generic Get/Set pair stays exposed for the HTTP settings endpoints.
type SettingsService interface {
	Get(ctx context.Context, key string) (string, error) // "" when unset
	Set(ctx context.Context, key, value string) error

	AllowSaleWithoutStock(ctx context.Context) (bool, error)
	SetAllowSaleWithoutStock(ctx context.Context, allow bool) error

	CashBalance(ctx context.Context) (int64, error)
	BankBalance(ctx context.Context) (int64, error)
	// AddToBalanceTx adds amount to the cash or bank running balance within
	// the caller's transaction, so a payment and its till update land
	// together or not at all.
	AddToBalanceTx(ctx context.Context, tx pgx.Tx, method PaymentType, amount int64) error

	ConfiguredLabels(ctx context.Context) ([]string, error)
	AddLabel(ctx context.Context, label string) ([]string, error)
	RemoveLabel(ctx context.Context, label string) ([]string, error)
	ConfiguredCategories(ctx context.Context) ([]string, error)
	AddCategory(ctx context.Context, category string) ([]string, error)
	RemoveCategory(ctx context.Context, category string) ([]string, error)
	ExpenseCategories(ctx context.Context) ([]string, error)
	AddExpenseCategory(ctx context.Context, category string) ([]string, error)
	RemoveExpenseCategory(ctx context.Context, category string) ([]string, error)
}

// DefaultCategories seed the category list until an operator configures it.
var DefaultCategories = []string{"Snacks", "Drinks", "Main"}

// DefaultExpenseCategories seed the expense category list.
var DefaultExpenseCategories = []string{"Rent", "Salary", "Utilities", "Supplies", "Maintenance", "Misc"}

type settingsService struct {
	pool *pgxpool.Pool
}

func NewSettingsService(pool *pgxpool.Pool) SettingsService {
	return &settingsService{pool: pool}
}

func (s *settingsService) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, "SELECT value FROM settings WHERE key = $1", key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

func (s *settingsService) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return Validationf("setting key is required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

func (s *settingsService) AllowSaleWithoutStock(ctx context.Context) (bool, error) {
	v, err := s.Get(ctx, SettingAllowSaleWithoutStock)
	if err != nil {
		return false, err
	}
	return v == "true", nil
}

func (s *settingsService) SetAllowSaleWithoutStock(ctx context.Context, allow bool) error {
	return s.Set(ctx, SettingAllowSaleWithoutStock, strconv.FormatBool(allow))
}

func (s *settingsService) CashBalance(ctx context.Context) (int64, error) {
	return s.intSetting(ctx, SettingCashBalance)
}

func (s *settingsService) BankBalance(ctx context.Context) (int64, error) {
	return s.intSetting(ctx, SettingBankBalance)
}

func (s *settingsService) intSetting(ctx context.Context, key string) (int64, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("setting %s holds non-numeric value %q: %w", key, v, err)
	}
	return n, nil
}

func (s *settingsService) AddToBalanceTx(ctx context.Context, tx pgx.Tx, method PaymentType, amount int64) error {
	key := SettingCashBalance
	if method == PaymentCard {
		key = SettingBankBalance
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2::text)
		ON CONFLICT (key) DO UPDATE SET value = ((settings.value)::bigint + $2)::text
	`, key, amount)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	return nil
}

// ── Configured lists (JSON arrays in the settings table) ─────────────────────

func (s *settingsService) ConfiguredLabels(ctx context.Context) ([]string, error) {
	return s.listSetting(ctx, SettingConfiguredLabels, nil)
}

func (s *settingsService) AddLabel(ctx context.Context, label string) ([]string, error) {
	return s.addToList(ctx, SettingConfiguredLabels, nil, label)
}

func (s *settingsService) RemoveLabel(ctx context.Context, label string) ([]string, error) {
	return s.removeFromList(ctx, SettingConfiguredLabels, nil, label)
}

func (s *settingsService) ConfiguredCategories(ctx context.Context) ([]string, error) {
	return s.listSetting(ctx, SettingConfiguredCategories, DefaultCategories)
}

func (s *settingsService) AddCategory(ctx context.Context, category string) ([]string, error) {
	return s.addToList(ctx, SettingConfiguredCategories, DefaultCategories, category)
}

func (s *settingsService) RemoveCategory(ctx context.Context, category string) ([]string, error) {
	return s.removeFromList(ctx, SettingConfiguredCategories, DefaultCategories, category)
}

func (s *settingsService) ExpenseCategories(ctx context.Context) ([]string, error) {
	return s.listSetting(ctx, SettingConfiguredExpenseCategories, DefaultExpenseCategories)
}

func (s *settingsService) AddExpenseCategory(ctx context.Context, category string) ([]string, error) {
	return s.addToList(ctx, SettingConfiguredExpenseCategories, DefaultExpenseCategories, category)
}

func (s *settingsService) RemoveExpenseCategory(ctx context.Context, category string) ([]string, error) {
	return s.removeFromList(ctx, SettingConfiguredExpenseCategories, DefaultExpenseCategories, category)
}

func (s *settingsService) listSetting(ctx context.Context, key string, defaults []string) ([]string, error) {
	v, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if v == "" {
		return append([]string(nil), defaults...), nil
	}
	var list []string
	if err := json.Unmarshal([]byte(v), &list); err != nil {
		return nil, fmt.Errorf("setting %s holds malformed list %q: %w", key, v, err)
	}
	return list, nil
}

func (s *settingsService) addToList(ctx context.Context, key string, defaults []string, entry string) ([]string, error) {
	if entry == "" {
		return nil, Validationf("value is required")
	}
	list, err := s.listSetting(ctx, key, defaults)
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		if e == entry {
			return list, nil
		}
	}
	list = append(list, entry)
	return list, s.storeList(ctx, key, list)
}

func (s *settingsService) removeFromList(ctx context.Context, key string, defaults []string, entry string) ([]string, error) {
	list, err := s.listSetting(ctx, key, defaults)
	if err != nil {
		return nil, err
	}
	kept := list[:0]
	for _, e := range list {
		if e != entry {
			kept = append(kept, e)
		}
	}
	return kept, s.storeList(ctx, key, kept)
}

func (s *settingsService) storeList(ctx context.Context, key string, list []string) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("failed to encode setting %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}
