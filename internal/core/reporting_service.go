package core

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Calendar window starts. Weeks start on Sunday.
func startOfWeek(t time.Time) string {
	return DayOf(t.AddDate(0, 0, -int(t.Weekday())))
}

func startOfMonth(t time.Time) string {
	return DayOf(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()))
}

func startOfQuarter(t time.Time) string {
	qm := time.Month((int(t.Month())-1)/3*3 + 1)
	return DayOf(time.Date(t.Year(), qm, 1, 0, 0, 0, 0, t.Location()))
}

// TopItem is a menu item ranked by revenue over the stats window.
type TopItem struct {
	ItemID   int    `json:"item_id"`
	ItemName string `json:"item_name"`
	Quantity int    `json:"quantity"`
	Revenue  int64  `json:"revenue"`
}

// DashboardStats aggregates settled revenue over calendar windows containing
// today: the current day, week, month, and quarter. Lines on still-open orders
// are excluded; cancelled orders never settle so they never count.
type DashboardStats struct {
	DailySales     int64           `json:"daily_sales"`
	WeeklySales    int64           `json:"weekly_sales"`
	MonthlySales   int64           `json:"monthly_sales"`
	QuarterlySales int64           `json:"quarterly_sales"`
	MonthlyCOGS    decimal.Decimal `json:"monthly_cogs"`
	TopItems       []TopItem       `json:"top_items"`
}

// LowStockEntry is an item whose most recent closing stock is below its
// minimum threshold.
type LowStockEntry struct {
	ItemID       int    `json:"item_id"`
	ItemName     string `json:"item_name"`
	Unit         string `json:"unit"`
	ClosingStock int    `json:"closing_stock"`
	MinStock     int    `json:"min_stock"`
	Day          string `json:"day"`
}

type ReportingService interface {
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)
	// GetLowStock reports items whose latest recorded closing stock on or
	// before the given day sits below their configured minimum.
	GetLowStock(ctx context.Context, day string) ([]LowStockEntry, error)
}

type reportingService struct {
	pool *pgxpool.Pool
}

func NewReportingService(pool *pgxpool.Pool) ReportingService {
	return &reportingService{pool: pool}
}

// settledSalesFilter restricts aggregates to lines that actually settled:
// walk-in sales (no order) and lines of closed orders.
const settledSalesFilter = `(s.order_id IS NULL OR EXISTS (
	SELECT 1 FROM orders o WHERE o.id = s.order_id AND o.status = 'CLOSED'))`

func (s *reportingService) sumRevenue(ctx context.Context, from, to string) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(s.quantity * s.unit_price), 0)
		FROM sales s
		WHERE s.day >= $1 AND s.day <= $2 AND `+settledSalesFilter,
		from, to,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum revenue %s..%s: %w", from, to, err)
	}
	return total, nil
}

func (s *reportingService) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := timeNow()
	today := DayOf(now)

	stats := &DashboardStats{}
	var err error

	if stats.DailySales, err = s.sumRevenue(ctx, today, today); err != nil {
		return nil, err
	}
	if stats.WeeklySales, err = s.sumRevenue(ctx, startOfWeek(now), today); err != nil {
		return nil, err
	}
	monthStart := startOfMonth(now)
	if stats.MonthlySales, err = s.sumRevenue(ctx, monthStart, today); err != nil {
		return nil, err
	}
	if stats.QuarterlySales, err = s.sumRevenue(ctx, startOfQuarter(now), today); err != nil {
		return nil, err
	}

	var cogs decimal.Decimal
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(s.cogs), 0)
		FROM sales s
		WHERE s.day >= $1 AND s.day <= $2 AND `+settledSalesFilter,
		monthStart, today,
	).Scan(&cogs)
	if err != nil {
		return nil, fmt.Errorf("failed to sum monthly cogs: %w", err)
	}
	stats.MonthlyCOGS = cogs

	rows, err := s.pool.Query(ctx, `
		SELECT s.item_id, i.name, SUM(s.quantity)::int, SUM(s.quantity * s.unit_price)
		FROM sales s
		JOIN items i ON i.id = s.item_id
		WHERE s.day >= $1 AND s.day <= $2 AND `+settledSalesFilter+`
		GROUP BY s.item_id, i.name
		ORDER BY SUM(s.quantity * s.unit_price) DESC
		LIMIT 5
	`, monthStart, today)
	if err != nil {
		return nil, fmt.Errorf("failed to query top items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t TopItem
		if err := rows.Scan(&t.ItemID, &t.ItemName, &t.Quantity, &t.Revenue); err != nil {
			return nil, fmt.Errorf("failed to scan top item: %w", err)
		}
		stats.TopItems = append(stats.TopItems, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *reportingService) GetLowStock(ctx context.Context, day string) ([]LowStockEntry, error) {
	if day == "" {
		day = DayOf(timeNow())
	} else if _, err := ParseDay(day); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT i.id, i.name, i.unit, sd.closing_stock, i.min_stock, sd.day::text
		FROM items i
		JOIN LATERAL (
			SELECT closing_stock, day
			FROM stock_days
			WHERE item_id = i.id AND day <= $1
			ORDER BY day DESC
			LIMIT 1
		) sd ON true
		WHERE i.is_active AND sd.closing_stock < i.min_stock
		ORDER BY i.name
	`, day)
	if err != nil {
		return nil, fmt.Errorf("failed to query low stock: %w", err)
	}
	defer rows.Close()

	var entries []LowStockEntry
	for rows.Next() {
		var e LowStockEntry
		if err := rows.Scan(&e.ItemID, &e.ItemName, &e.Unit, &e.ClosingStock, &e.MinStock, &e.Day); err != nil {
			return nil, fmt.Errorf("failed to scan low stock entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
