package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderOpen      OrderStatus = "OPEN"
	OrderClosed    OrderStatus = "CLOSED"
	OrderCancelled OrderStatus = "CANCELLED"
)

type PaymentType string

const (
	PaymentCash   PaymentType = "CASH"
	PaymentCard   PaymentType = "CARD"
	PaymentCredit PaymentType = "CREDIT"
)

// Sale is one sale line, either a walk-in sale (OrderID nil) or a line of a
// table order. COGS is a snapshot computed at settlement time: immediately
// for walk-in sales, at order close for order lines (zero until then).
type Sale struct {
	ID        int             `json:"id"`
	OrderID   *int            `json:"order_id,omitempty"`
	ItemID    int             `json:"item_id"`
	ItemName  string          `json:"item_name"` // joined from items
	Day       string          `json:"day"`       // YYYY-MM-DD
	Quantity  int             `json:"quantity"`
	UnitPrice int64           `json:"unit_price"` // price snapshot, minor units
	Total     int64           `json:"total"`
	COGS      decimal.Decimal `json:"cogs"`
	Labels    []string        `json:"labels"`
	CreatedAt time.Time       `json:"created_at"`
}

// Order is a table order aggregating sale lines. Total is the running sum of
// the lines' totals, maintained as lines are added and removed.
//
//	OPEN → CLOSED  (settlement: validate stock, consume, snapshot COGS)
//	OPEN → CANCELLED (no settlement)
type Order struct {
	ID          int          `json:"id"`
	TableID     int          `json:"table_id"`
	TableNumber int          `json:"table_number"` // joined from cafe_tables
	Status      OrderStatus  `json:"status"`
	Total       int64        `json:"total"`
	PaymentType *PaymentType `json:"payment_type,omitempty"` // set on close
	Lines       []Sale       `json:"lines"`
	CreatedAt   time.Time    `json:"created_at"`
	ClosedAt    *time.Time   `json:"closed_at,omitempty"`
}

type ReceivableStatus string

const (
	ReceivableOpen    ReceivableStatus = "OPEN"
	ReceivableSettled ReceivableStatus = "SETTLED"
)

// Receivable is the outstanding balance of a credit order, created exactly
// once when an order closes with CREDIT payment.
type Receivable struct {
	ID           int              `json:"id"`
	OrderID      int              `json:"order_id"`
	CustomerID   int              `json:"customer_id"`
	CustomerName string           `json:"customer_name"` // joined from customers
	Amount       int64            `json:"amount"`
	Outstanding  int64            `json:"outstanding"`
	Status       ReceivableStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Payment is one settlement against a receivable. The ledger is append-only.
type Payment struct {
	ID           int         `json:"id"`
	ReceivableID int         `json:"receivable_id"`
	Amount       int64       `json:"amount"`
	Method       PaymentType `json:"method"` // CASH | CARD
	Day          string      `json:"day"`
	CreatedAt    time.Time   `json:"created_at"`
}
