package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewBookingRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewBookingRepository(pool)
	assert.NotNil(t, repo)
}

func TestNewEscrowRepository(t *testing.T) {
	assert.NotNil(t, NewEscrowRepository(&pgxpool.Pool{}))
}

func TestNewCreditRepository(t *testing.T) {
	assert.NotNil(t, NewCreditRepository(&pgxpool.Pool{}))
}

func TestNewDirectoryRepository(t *testing.T) {
	assert.NotNil(t, NewDirectoryRepository(&pgxpool.Pool{}))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("boom")))
}
