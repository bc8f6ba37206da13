package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CreditRepository reads customer credits. Credits are only ever written
// inside a cancellation.
type CreditRepository interface {
	ListActive(ctx context.Context, customerID string, now time.Time) ([]domain.CustomerCredit, error)
}

type PGCreditRepository struct {
	db *pgxpool.Pool
}

func NewCreditRepository(db *pgxpool.Pool) CreditRepository {
	return &PGCreditRepository{db: db}
}

func (r *PGCreditRepository) ListActive(ctx context.Context, customerID string, now time.Time) ([]domain.CustomerCredit, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, amount_cents, reason, booking_id, expires_at, created_at
		FROM customer_credits
		WHERE customer_id = $1 AND expires_at > $2
		ORDER BY expires_at`, customerID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := make([]domain.CustomerCredit, 0)
	for rows.Next() {
		var c domain.CustomerCredit
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.AmountCents, &c.Reason, &c.BookingID, &c.ExpiresAt, &c.CreatedAt); err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

func insertCredit(ctx context.Context, db execer, c *domain.CustomerCredit) error {
	_, err := db.Exec(ctx, `
		INSERT INTO customer_credits (id, customer_id, amount_cents, reason, booking_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.CustomerID, c.AmountCents, c.Reason, c.BookingID, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert customer credit: %w", err)
	}
	return nil
}

var _ CreditRepository = (*PGCreditRepository)(nil)
