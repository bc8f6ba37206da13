package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DirectoryRepository looks up the reference data bookings point at.
type DirectoryRepository interface {
	GetAirport(ctx context.Context, code string) (*domain.Airport, error)
	PayoutDestination(ctx context.Context, pilotID string) (string, error)
}

type PGDirectoryRepository struct {
	db *pgxpool.Pool
}

func NewDirectoryRepository(db *pgxpool.Pool) DirectoryRepository {
	return &PGDirectoryRepository{db: db}
}

func (r *PGDirectoryRepository) GetAirport(ctx context.Context, code string) (*domain.Airport, error) {
	var a domain.Airport
	err := r.db.QueryRow(ctx, `SELECT code, name, latitude, longitude FROM airports WHERE code = $1`,
		strings.ToUpper(code)).Scan(&a.Code, &a.Name, &a.Latitude, &a.Longitude)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("airport %s: %w", code, domain.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

// PayoutDestination returns the pilot's connected payout account, or
// ErrNoPayoutDestination when none is on file.
func (r *PGDirectoryRepository) PayoutDestination(ctx context.Context, pilotID string) (string, error) {
	var account *string
	err := r.db.QueryRow(ctx, `SELECT payout_account_id FROM pilots WHERE id = $1`, pilotID).Scan(&account)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("pilot %s: %w", pilotID, domain.ErrNotFound)
		}
		return "", err
	}
	if account == nil || *account == "" {
		return "", domain.ErrNoPayoutDestination
	}
	return *account, nil
}

var _ DirectoryRepository = (*PGDirectoryRepository)(nil)
