package hedger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krobus00/meta-exchange/internal/constant"
	"github.com/redis/go-redis/v9"
)

const defaultRequestGuardTTL = 24 * time.Hour

var releaseRequestGuardScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
    return redis.call("DEL", KEYS[1])
else
    return 0
end
`)

type guardClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
}

// RedisRequestGuard makes sure a transaction request id is processed once, so
// a redelivered request never reduces the ledger twice.
type RedisRequestGuard struct {
	client guardClient
	ttl    time.Duration
	owner  string
}

func NewRedisRequestGuard(client guardClient, ttl time.Duration, owner string) *RedisRequestGuard {
	if ttl <= 0 {
		ttl = defaultRequestGuardTTL
	}

	return &RedisRequestGuard{
		client: client,
		ttl:    ttl,
		owner:  owner,
	}
}

// NewRedisClient builds a client from a redis:// URL.
func NewRedisClient(cacheDSN string) (*redis.Client, error) {
	if cacheDSN == "" {
		return nil, errors.New("redis cache_dsn is required")
	}

	options, err := redis.ParseURL(cacheDSN)
	if err != nil {
		return nil, fmt.Errorf("parse redis cache_dsn: %w", err)
	}

	return redis.NewClient(options), nil
}

func (g *RedisRequestGuard) Acquire(ctx context.Context, requestID string) (bool, error) {
	acquired, err := g.client.SetNX(ctx, requestGuardKey(requestID), g.owner, g.ttl).Result()
	if err != nil {
		return false, err
	}

	return acquired, nil
}

// Release frees a request id held by this guard so the request can be retried.
func (g *RedisRequestGuard) Release(ctx context.Context, requestID string) error {
	_, err := releaseRequestGuardScript.Run(ctx, g.client, []string{requestGuardKey(requestID)}, g.owner).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	return nil
}

func requestGuardKey(requestID string) string {
	return constant.RequestGuardKeyPrefix + requestID
}
