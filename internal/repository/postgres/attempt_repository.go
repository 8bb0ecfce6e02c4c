package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tokoraya/checkout/internal/domain/checkout"
	"github.com/tokoraya/checkout/internal/service"
)

// AttemptRepository is the append-only checkout attempt log. The back
// office reads it; the checkout flow only writes, best effort.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Record appends one attempt.
func (r *AttemptRepository) Record(ctx context.Context, a service.Attempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO checkout_attempts
		 (id, invoice_id, method, bank, outcome, error_code, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.New(), a.InvoiceID, string(a.Method), a.Bank, a.Outcome, a.ErrorCode, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// ListByInvoice returns the attempts for an invoice, newest first.
func (r *AttemptRepository) ListByInvoice(ctx context.Context, invoiceID string, limit int) ([]service.Attempt, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT invoice_id, method, bank, outcome, error_code, created_at
		 FROM checkout_attempts
		 WHERE invoice_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		invoiceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []service.Attempt
	for rows.Next() {
		var a service.Attempt
		var method string
		var createdAt time.Time
		if err := rows.Scan(&a.InvoiceID, &method, &a.Bank, &a.Outcome, &a.ErrorCode, &createdAt); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		a.Method = checkout.Method(method)
		a.CreatedAt = createdAt
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
