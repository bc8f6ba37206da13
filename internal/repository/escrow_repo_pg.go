package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EscrowRepository persists payments and the saga ops that move their money.
type EscrowRepository interface {
	GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error)
	GetOp(ctx context.Context, idempotencyKey string) (*domain.EscrowOp, error)
	// BeginRelease moves a held payment to release_pending and records the
	// release op. If the op already exists it is returned unchanged.
	BeginRelease(ctx context.Context, op *domain.EscrowOp, lease time.Duration) (*domain.EscrowOp, error)
	// SaveProgress stores processor references as soon as each step succeeds.
	SaveProgress(ctx context.Context, op *domain.EscrowOp) error
	// Complete marks the op done and moves the payment to its terminal status.
	Complete(ctx context.Context, op *domain.EscrowOp, to domain.PaymentStatus) (*domain.Payment, error)
	MarkFailed(ctx context.Context, opID, cause string, maxAttempts int, retryAfter time.Duration) (*domain.EscrowOp, error)
	// ClaimPending leases up to limit due ops to the caller.
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.EscrowOp, error)
}

type PGEscrowRepository struct {
	db *pgxpool.Pool
}

func NewEscrowRepository(db *pgxpool.Pool) EscrowRepository {
	return &PGEscrowRepository{db: db}
}

const paymentColumns = `id, booking_id, customer_id, pilot_id, amount_cents, platform_fee_cents, pilot_payout_cents, status,
	hold_ref, transfer_ref, refund_ref, refund_amount_cents, refund_reason, released_at, refunded_at, created_at, updated_at`

const escrowOpColumns = `id, booking_id, kind, idempotency_key, status, refund_cents, pilot_fee_cents, platform_fee_cents,
	payout_cents, reason, refund_ref, transfer_ref, attempts, last_error, created_at, updated_at`

func (r *PGEscrowRepository) GetPayment(ctx context.Context, bookingID string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`, bookingID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment for booking %s: %w", bookingID, domain.ErrNotFound)
		}
		return nil, err
	}
	return p, nil
}

func (r *PGEscrowRepository) GetOp(ctx context.Context, idempotencyKey string) (*domain.EscrowOp, error) {
	op, err := scanEscrowOp(r.db.QueryRow(ctx, `SELECT `+escrowOpColumns+` FROM escrow_ops WHERE idempotency_key = $1`, idempotencyKey))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("escrow op %s: %w", idempotencyKey, domain.ErrNotFound)
		}
		return nil, err
	}
	return op, nil
}

func (r *PGEscrowRepository) BeginRelease(ctx context.Context, op *domain.EscrowOp, lease time.Duration) (*domain.EscrowOp, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	existing, err := scanEscrowOp(tx.QueryRow(ctx,
		`SELECT `+escrowOpColumns+` FROM escrow_ops WHERE idempotency_key = $1 FOR UPDATE`, op.IdempotencyKey))
	switch {
	case err == nil:
		return existing, tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE payments SET status = $3, updated_at = now()
		WHERE booking_id = $1 AND status = $2`,
		op.BookingID, domain.PaymentStatusHeld, domain.PaymentStatusReleasePending)
	if err != nil {
		return nil, fmt.Errorf("mark payment release pending: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: payment for booking %s is not held", domain.ErrInvalidTransition, op.BookingID)
	}

	if err := insertEscrowOp(ctx, tx, op, lease); err != nil {
		return nil, err
	}
	return op, tx.Commit(ctx)
}

func (r *PGEscrowRepository) SaveProgress(ctx context.Context, op *domain.EscrowOp) error {
	_, err := r.db.Exec(ctx, `
		UPDATE escrow_ops SET refund_ref = COALESCE($2, refund_ref), transfer_ref = COALESCE($3, transfer_ref), updated_at = now()
		WHERE id = $1`, op.ID, op.RefundRef, op.TransferRef)
	return err
}

func (r *PGEscrowRepository) Complete(ctx context.Context, op *domain.EscrowOp, to domain.PaymentStatus) (*domain.Payment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	from := domain.PaymentStatusRefundPending
	if op.Kind == domain.EscrowOpRelease {
		from = domain.PaymentStatusReleasePending
	}

	if _, err := tx.Exec(ctx, `
		UPDATE escrow_ops SET status = $2, refund_ref = $3, transfer_ref = $4, last_error = NULL, updated_at = now()
		WHERE id = $1`, op.ID, domain.EscrowOpDone, op.RefundRef, op.TransferRef); err != nil {
		return nil, fmt.Errorf("complete escrow op: %w", err)
	}

	var refundAmount *int64
	if op.RefundCents > 0 {
		refundAmount = &op.RefundCents
	}

	p, err := scanPayment(tx.QueryRow(ctx, `
		UPDATE payments SET status = $3,
			transfer_ref = COALESCE($4, transfer_ref),
			refund_ref = COALESCE($5, refund_ref),
			refund_amount_cents = COALESCE($6, refund_amount_cents),
			released_at = CASE WHEN $3 = 'released' THEN now() ELSE released_at END,
			refunded_at = CASE WHEN $3 IN ('refunded', 'cancelled') THEN now() ELSE refunded_at END,
			updated_at = now()
		WHERE booking_id = $1 AND status = $2
		RETURNING `+paymentColumns,
		op.BookingID, from, to, op.TransferRef, op.RefundRef, refundAmount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment for booking %s is not %s", domain.ErrInvalidTransition, op.BookingID, from)
		}
		return nil, err
	}

	return p, tx.Commit(ctx)
}

func (r *PGEscrowRepository) MarkFailed(ctx context.Context, opID, cause string, maxAttempts int, retryAfter time.Duration) (*domain.EscrowOp, error) {
	op, err := scanEscrowOp(r.db.QueryRow(ctx, `
		UPDATE escrow_ops SET attempts = attempts + 1, last_error = $2,
			status = CASE WHEN attempts + 1 >= $3 THEN 'stuck' ELSE status END,
			next_attempt_at = now() + make_interval(secs => $4),
			updated_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING `+escrowOpColumns, opID, cause, maxAttempts, retryAfter.Seconds()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pending escrow op %s: %w", opID, domain.ErrNotFound)
		}
		return nil, err
	}
	return op, nil
}

func (r *PGEscrowRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]domain.EscrowOp, error) {
	rows, err := r.db.Query(ctx, `
		WITH due AS (
			SELECT id FROM escrow_ops
			WHERE status = 'pending' AND next_attempt_at <= now()
			ORDER BY next_attempt_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE escrow_ops SET next_attempt_at = now() + make_interval(secs => $2), updated_at = now()
		WHERE id IN (SELECT id FROM due)
		RETURNING `+escrowOpColumns, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("claim escrow ops: %w", err)
	}
	defer rows.Close()

	var ops []domain.EscrowOp
	for rows.Next() {
		op, err := scanEscrowOp(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	return ops, rows.Err()
}

func insertEscrowOp(ctx context.Context, db execer, op *domain.EscrowOp, lease time.Duration) error {
	op.Status = domain.EscrowOpPending
	_, err := db.Exec(ctx, `
		INSERT INTO escrow_ops (id, booking_id, kind, idempotency_key, status, refund_cents, pilot_fee_cents,
			platform_fee_cents, payout_cents, reason, next_attempt_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now() + make_interval(secs => $11))`,
		op.ID, op.BookingID, op.Kind, op.IdempotencyKey, op.Status, op.RefundCents, op.PilotFeeCents,
		op.PlatformFeeCents, op.PayoutCents, op.Reason, lease.Seconds())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already started", domain.ErrInvalidTransition, op.IdempotencyKey)
		}
		return fmt.Errorf("insert escrow op: %w", err)
	}
	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	if err := row.Scan(&p.ID, &p.BookingID, &p.CustomerID, &p.PilotID, &p.Amount, &p.PlatformFee, &p.PilotPayout, &p.Status,
		&p.HoldRef, &p.TransferRef, &p.RefundRef, &p.RefundAmount, &p.RefundReason, &p.ReleasedAt, &p.RefundedAt,
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanEscrowOp(row pgx.Row) (*domain.EscrowOp, error) {
	var op domain.EscrowOp
	if err := row.Scan(&op.ID, &op.BookingID, &op.Kind, &op.IdempotencyKey, &op.Status, &op.RefundCents, &op.PilotFeeCents,
		&op.PlatformFeeCents, &op.PayoutCents, &op.Reason, &op.RefundRef, &op.TransferRef, &op.Attempts, &op.LastError,
		&op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, err
	}
	return &op, nil
}

var _ EscrowRepository = (*PGEscrowRepository)(nil)
