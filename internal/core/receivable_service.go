package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReceivableService tracks outstanding credit balances and their payment
// history. Payments are append-only; the receivable's outstanding balance is
// clamped at zero (overpayment is not tracked as customer credit).
type ReceivableService interface {
	GetReceivables(ctx context.Context, status *ReceivableStatus) ([]Receivable, error)
	GetReceivable(ctx context.Context, id int) (*Receivable, error)
	GetPayments(ctx context.Context, receivableID int) ([]Payment, error)
	// RecordPayment appends a payment, reduces the outstanding balance, marks
	// the receivable SETTLED when it reaches exactly zero, and adds the amount
	// to the cash or bank till balance — all in one transaction.
	RecordPayment(ctx context.Context, receivableID int, amount int64, method PaymentType) (*Receivable, error)
}

type receivableService struct {
	pool     *pgxpool.Pool
	settings SettingsService
}

func NewReceivableService(pool *pgxpool.Pool, settings SettingsService) ReceivableService {
	return &receivableService{pool: pool, settings: settings}
}

const receivableColumns = `r.id, r.order_id, r.customer_id, c.name, r.amount, r.outstanding, r.status, r.created_at`

func scanReceivable(row pgx.Row, r *Receivable) error {
	return row.Scan(&r.ID, &r.OrderID, &r.CustomerID, &r.CustomerName,
		&r.Amount, &r.Outstanding, &r.Status, &r.CreatedAt)
}

func (s *receivableService) GetReceivables(ctx context.Context, status *ReceivableStatus) ([]Receivable, error) {
	query := "SELECT " + receivableColumns + " FROM receivables r JOIN customers c ON c.id = r.customer_id"
	args := []any{}
	if status != nil {
		query += " WHERE r.status = $1"
		args = append(args, *status)
	}
	query += " ORDER BY r.id DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receivables: %w", err)
	}
	defer rows.Close()

	var receivables []Receivable
	for rows.Next() {
		var r Receivable
		if err := scanReceivable(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan receivable: %w", err)
		}
		receivables = append(receivables, r)
	}
	return receivables, rows.Err()
}

func (s *receivableService) GetReceivable(ctx context.Context, id int) (*Receivable, error) {
	var r Receivable
	err := scanReceivable(s.pool.QueryRow(ctx,
		"SELECT "+receivableColumns+" FROM receivables r JOIN customers c ON c.id = r.customer_id WHERE r.id = $1", id,
	), &r)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("receivable %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receivable %d: %w", id, err)
	}
	return &r, nil
}

func (s *receivableService) GetPayments(ctx context.Context, receivableID int) ([]Payment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, receivable_id, amount, method, day::text, created_at
		FROM payments
		WHERE receivable_id = $1
		ORDER BY id
	`, receivableID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.ReceivableID, &p.Amount, &p.Method, &p.Day, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *receivableService) RecordPayment(ctx context.Context, receivableID int, amount int64, method PaymentType) (*Receivable, error) {
	if amount <= 0 {
		return nil, Validationf("payment amount must be positive, got %d", amount)
	}
	if method != PaymentCash && method != PaymentCard {
		return nil, Validationf("payment method must be CASH or CARD, got %q", method)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var outstanding int64
	err = tx.QueryRow(ctx,
		"SELECT outstanding FROM receivables WHERE id = $1 FOR UPDATE", receivableID,
	).Scan(&outstanding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, NotFoundf("receivable %d not found", receivableID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch receivable %d: %w", receivableID, err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO payments (receivable_id, amount, method, day)
		VALUES ($1, $2, $3, $4)
	`, receivableID, amount, method, DayOf(timeNow())); err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	remaining := outstanding - amount
	if remaining < 0 {
		remaining = 0 // overpayment clamps, it does not go negative
	}
	status := ReceivableOpen
	if remaining == 0 {
		status = ReceivableSettled
	}

	if _, err := tx.Exec(ctx,
		"UPDATE receivables SET outstanding = $1, status = $2 WHERE id = $3",
		remaining, status, receivableID,
	); err != nil {
		return nil, fmt.Errorf("failed to update receivable %d: %w", receivableID, err)
	}

	if err := s.settings.AddToBalanceTx(ctx, tx, method, amount); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return s.GetReceivable(ctx, receivableID)
}
