package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/bushcharter/config"
	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	weatherTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, weatherTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		weatherTTL,
	)
}

func NewRedisCacheWithClient(client *redis.Client, weatherTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, weatherTTL: weatherTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetWeather returns nil, nil on a miss.
func (c *RedisCache) GetWeather(ctx context.Context, airport string) (*domain.WeatherReport, error) {
	data, err := c.client.Get(ctx, weatherKey(airport)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var report domain.WeatherReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *RedisCache) SetWeather(ctx context.Context, report *domain.WeatherReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, weatherKey(report.Airport), payload, c.weatherTTL).Err()
}

// AcquireBookingLock takes an exclusive, expiring lock on the booking's
// money movements. The returned token must be passed to ReleaseBookingLock.
func (c *RedisCache) AcquireBookingLock(ctx context.Context, bookingID string, ttl time.Duration) (string, bool, error) {
	token := newLockToken()
	ok, err := c.client.SetNX(ctx, bookingLockKey(bookingID), token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// ReleaseBookingLock deletes the lock only if it is still held by token.
func (c *RedisCache) ReleaseBookingLock(ctx context.Context, bookingID, token string) error {
	return releaseScript.Run(ctx, c.client, []string{bookingLockKey(bookingID)}, token).Err()
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// newLockToken identifies one lock holder across API and worker processes.
func newLockToken() string {
	return uuid.NewString()
}

func weatherKey(airport string) string {
	return "cache:weather:" + strings.ToUpper(airport)
}

func bookingLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s:escrow", bookingID)
}
