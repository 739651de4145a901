package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned when another instance holds the lock
var ErrLockHeld = errors.New("lock held by another instance")

// Locker grants a short-lived exclusive lease on key
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX and a token-checked release
type RedisLocker struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisLocker creates a locker whose keys are prefixed with prefix
func NewRedisLocker(rdb goredis.UniversalClient, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

// Acquire takes the lock or returns ErrLockHeld
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis setnx %s: %w", fullKey, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.rdb, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			return fmt.Errorf("redis release %s: %w", fullKey, err)
		}
		return nil
	}
	return release, nil
}

// NewRedisClient connects to addr and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
