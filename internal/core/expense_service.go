package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ExpenseFrequency is how often a recurring expense repeats.
type ExpenseFrequency string

const (
	ExpenseDaily   ExpenseFrequency = "daily"
	ExpenseMonthly ExpenseFrequency = "monthly"
	ExpenseYearly  ExpenseFrequency = "yearly"
)

func (f ExpenseFrequency) valid() bool {
	return f == ExpenseDaily || f == ExpenseMonthly || f == ExpenseYearly
}

// Expense is a cost entry outside the stock ledger: rent, salaries, utilities.
// One-off expenses land on a single day; recurring ones repeat at a fixed
// frequency from their start day and are allocated across reporting windows.
type Expense struct {
	ID          int               `json:"id"`
	Day         string            `json:"day"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Amount      int64             `json:"amount"`
	IsRecurring bool              `json:"is_recurring"`
	Frequency   *ExpenseFrequency `json:"frequency,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ExpenseWindowItem is an expense as it appears in a windowed listing. A
// recurring expense surfaces with the window start as its day, the amount
// allocated to the window, and its per-day allocation rate.
type ExpenseWindowItem struct {
	Expense
	AllocatedDaily *int64 `json:"allocated_daily,omitempty"`
}

// ExpenseSummary is the windowed expense report: the total charged to the
// window, a per-category breakdown, and the contributing entries.
type ExpenseSummary struct {
	Total      int64               `json:"total"`
	ByCategory map[string]int64    `json:"by_category"`
	Items      []ExpenseWindowItem `json:"items"`
}

type CreateExpenseRequest struct {
	Day         string            `json:"day"`
	Category    string            `json:"category"`
	Description string            `json:"description"`
	Amount      int64             `json:"amount"`
	IsRecurring bool              `json:"is_recurring"`
	Frequency   *ExpenseFrequency `json:"frequency"`
}

// UpdateExpenseRequest is a partial update; nil fields are left unchanged.
type UpdateExpenseRequest struct {
	Day         *string           `json:"day"`
	Category    *string           `json:"category"`
	Description *string           `json:"description"`
	Amount      *int64            `json:"amount"`
	IsRecurring *bool             `json:"is_recurring"`
	Frequency   *ExpenseFrequency `json:"frequency"`
}

type ExpenseService interface {
	GetExpense(ctx context.Context, id int) (*Expense, error)
	CreateExpense(ctx context.Context, req CreateExpenseRequest) (*Expense, error)
	UpdateExpense(ctx context.Context, id int, req UpdateExpenseRequest) (*Expense, error)
	DeleteExpense(ctx context.Context, id int) error
	// ListExpenses reports the expenses charged to the inclusive [from, to]
	// window. One-off expenses count when their day falls inside the window;
	// recurring expenses contribute their per-day rate for each window day on
	// or after their start day.
	ListExpenses(ctx context.Context, from, to string) (*ExpenseSummary, error)
}

type expenseService struct {
	pool *pgxpool.Pool
}

func NewExpenseService(pool *pgxpool.Pool) ExpenseService {
	return &expenseService{pool: pool}
}

const expenseColumns = "id, day::text, category, description, amount, is_recurring, frequency, created_at"

func scanExpense(row pgx.Row, e *Expense) error {
	return row.Scan(&e.ID, &e.Day, &e.Category, &e.Description, &e.Amount,
		&e.IsRecurring, &e.Frequency, &e.CreatedAt)
}

func (s *expenseService) GetExpense(ctx context.Context, id int) (*Expense, error) {
	var e Expense
	err := scanExpense(s.pool.QueryRow(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = $1", id), &e)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("expense %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch expense %d: %w", id, err)
	}
	return &e, nil
}

func (s *expenseService) CreateExpense(ctx context.Context, req CreateExpenseRequest) (*Expense, error) {
	day := req.Day
	if day == "" {
		day = DayOf(timeNow())
	} else {
		var err error
		if day, err = ParseDay(day); err != nil {
			return nil, err
		}
	}
	if req.Category == "" {
		return nil, Validationf("expense category is required")
	}
	if req.Amount <= 0 {
		return nil, Validationf("expense amount must be positive")
	}
	freq, err := normalizeFrequency(req.IsRecurring, req.Frequency)
	if err != nil {
		return nil, err
	}

	var e Expense
	err = scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (day, category, description, amount, is_recurring, frequency)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+expenseColumns,
		day, req.Category, req.Description, req.Amount, req.IsRecurring, freq,
	), &e)
	if err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}
	return &e, nil
}

func (s *expenseService) UpdateExpense(ctx context.Context, id int, req UpdateExpenseRequest) (*Expense, error) {
	e, err := s.GetExpense(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Day != nil {
		day, err := ParseDay(*req.Day)
		if err != nil {
			return nil, err
		}
		e.Day = day
	}
	if req.Category != nil {
		if *req.Category == "" {
			return nil, Validationf("expense category cannot be empty")
		}
		e.Category = *req.Category
	}
	if req.Description != nil {
		e.Description = *req.Description
	}
	if req.Amount != nil {
		if *req.Amount <= 0 {
			return nil, Validationf("expense amount must be positive")
		}
		e.Amount = *req.Amount
	}
	if req.IsRecurring != nil {
		e.IsRecurring = *req.IsRecurring
	}
	if req.Frequency != nil {
		e.Frequency = req.Frequency
	}
	freq, err := normalizeFrequency(e.IsRecurring, e.Frequency)
	if err != nil {
		return nil, err
	}
	e.Frequency = freq

	err = scanExpense(s.pool.QueryRow(ctx, `
		UPDATE expenses
		SET day = $1, category = $2, description = $3, amount = $4, is_recurring = $5, frequency = $6
		WHERE id = $7
		RETURNING `+expenseColumns,
		e.Day, e.Category, e.Description, e.Amount, e.IsRecurring, e.Frequency, id,
	), e)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense %d: %w", id, err)
	}
	return e, nil
}

func (s *expenseService) DeleteExpense(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM expenses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return NotFoundf("expense %d not found", id)
	}
	return nil
}

func normalizeFrequency(recurring bool, freq *ExpenseFrequency) (*ExpenseFrequency, error) {
	if !recurring {
		return nil, nil
	}
	if freq == nil {
		return nil, Validationf("recurring expense needs a frequency: daily, monthly, or yearly")
	}
	if !freq.valid() {
		return nil, Validationf("unknown frequency %q, want daily, monthly, or yearly", *freq)
	}
	return freq, nil
}

func (s *expenseService) ListExpenses(ctx context.Context, from, to string) (*ExpenseSummary, error) {
	from, err := ParseDay(from)
	if err != nil {
		return nil, err
	}
	to, err = ParseDay(to)
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, Validationf("window start %s is after end %s", from, to)
	}

	// One-off expenses inside the window, plus every recurring expense that
	// started on or before the window end.
	rows, err := s.pool.Query(ctx, `
		SELECT `+expenseColumns+`
		FROM expenses
		WHERE (NOT is_recurring AND day >= $1 AND day <= $2)
		   OR (is_recurring AND day <= $2)
		ORDER BY day, id
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query expenses %s..%s: %w", from, to, err)
	}
	defer rows.Close()

	summary := &ExpenseSummary{ByCategory: make(map[string]int64)}
	for rows.Next() {
		var e Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}

		item := ExpenseWindowItem{Expense: e}
		charged := e.Amount
		if e.IsRecurring {
			perDay := dailyAllocation(e.Amount, *e.Frequency)
			days := windowDays(maxDay(from, e.Day), to)
			charged = perDay.Mul(decimal.NewFromInt(int64(days))).Round(0).IntPart()
			allocated := perDay.Round(0).IntPart()
			item.AllocatedDaily = &allocated
			item.Day = from
			item.Amount = charged
		}
		if charged == 0 {
			continue
		}
		summary.Total += charged
		summary.ByCategory[e.Category] += charged
		summary.Items = append(summary.Items, item)
	}
	return summary, rows.Err()
}

// dailyAllocation flattens a recurring amount to a per-day rate. Monthly and
// yearly amounts spread over nominal 30 and 365 day periods.
func dailyAllocation(amount int64, freq ExpenseFrequency) decimal.Decimal {
	a := decimal.NewFromInt(amount)
	switch freq {
	case ExpenseMonthly:
		return a.Div(decimal.NewFromInt(30))
	case ExpenseYearly:
		return a.Div(decimal.NewFromInt(365))
	default:
		return a
	}
}

// windowDays counts the inclusive days between two well-formed day strings.
func windowDays(from, to string) int {
	if from > to {
		return 0
	}
	f, _ := time.Parse("2006-01-02", from)
	t, _ := time.Parse("2006-01-02", to)
	return int(t.Sub(f).Hours()/24) + 1
}

func maxDay(a, b string) string {
	if a > b {
		return a
	}
	return b
}
