package core

import "time"

// StockTransactionType classifies a manual ledger mutation.
type StockTransactionType string

const (
	StockPurchase StockTransactionType = "purchase"
	StockWastage  StockTransactionType = "wastage"
	StockOpening  StockTransactionType = "opening" // manual opening-stock override
)

// DailyStockRecord is one row of the sparse per-item daily ledger.
// Two invariants hold after every mutation:
//
//	ClosingStock = OpeningStock + Purchased − Sold − Wastage
//	OpeningStock = ClosingStock of the item's previous recorded day
//
// The second (continuity) is enforced lazily: back-dated corrections are
// healed on the next access and propagated forward.
type DailyStockRecord struct {
	ID           int       `json:"id"`
	ItemID       int       `json:"item_id"`
	Day          string    `json:"day"` // YYYY-MM-DD
	OpeningStock int       `json:"opening_stock"`
	Purchased    int       `json:"purchased"`
	Sold         int       `json:"sold"`
	Wastage      int       `json:"wastage"`
	ClosingStock int       `json:"closing_stock"`
	CreatedAt    time.Time `json:"created_at"`
}

// StockEntry is a read view of a DailyStockRecord joined with its item.
type StockEntry struct {
	DailyStockRecord
	ItemName string `json:"item_name"`
	ItemUnit string `json:"item_unit"`
	MinStock int    `json:"min_stock"`
}

// DayOf formats t as the ledger day key using the process-local calendar.
func DayOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// ParseDay validates a YYYY-MM-DD ledger day key.
func ParseDay(s string) (string, error) {
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return "", Validationf("invalid date %q, want YYYY-MM-DD", s)
	}
	return DayOf(t), nil
}
