package repository

import (
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
)

func TestNewFlightEventRepository(t *testing.T) {
	pool := &pgxpool.Pool{}
	repo := NewFlightEventRepository(pool)
	assert.NotNil(t, repo)
}
