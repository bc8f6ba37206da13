package cache

import (
	"testing"
	"time"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache(t *testing.T) {
	c := NewRedisCache(config.RedisConfig{Addr: "localhost:6379"}, 4*time.Minute)
	defer c.Close()

	assert.NotNil(t, c.client)
	assert.Equal(t, 4*time.Minute, c.weatherTTL)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cache:weather:PAFA", weatherKey("pafa"))
	assert.Equal(t, "lock:booking:b-1:escrow", bookingLockKey("b-1"))
}

func TestNewLockToken(t *testing.T) {
	a, b := newLockToken(), newLockToken()

	_, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
