package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

// Open returns a RedisNotifier when redisURL is set and a LogNotifier otherwise.
// The returned close func releases the Redis connection.
func Open(ctx context.Context, redisURL, stream string, log *slog.Logger) (Notifier, func() error, error) {
	if redisURL == "" {
		log.Info("REDIS_URL not set, notifications are logged only")
		return NewLogNotifier(log), func() error { return nil }, nil
	}

	rdb, err := NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info("push notifications go to redis stream", slog.String("stream", stream))
	return NewRedisNotifier(rdb, stream, AllowAll{}, log), rdb.Close, nil
}
