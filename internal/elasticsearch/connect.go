package elasticsearch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ConnectOptions bound the startup retry loop.
type ConnectOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	MaxDelay   time.Duration
}

func (o ConnectOptions) withDefaults() ConnectOptions {
	if o.MaxRetries <= 0 {
		o.MaxRetries = 10
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	return o
}

// Connect creates a client and waits, with exponential backoff, until the
// cluster answers a ping and the indices exist.
func Connect(ctx context.Context, addr, prefix string, pageSize int, log *slog.Logger, opts ConnectOptions) (*Client, error) {
	opts = opts.withDefaults()
	retryDelay := opts.RetryDelay

	var lastErr error
	for i := 0; i < opts.MaxRetries; i++ {
		client, err := New(addr, prefix, pageSize, log)
		if err != nil {
			return nil, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = client.Ping(pingCtx)
		if lastErr == nil {
			lastErr = client.EnsureIndices(pingCtx)
		}
		cancel()
		if lastErr == nil {
			return client, nil
		}

		log.Warn("elasticsearch not ready, retrying",
			slog.Any("err", lastErr),
			slog.Int("attempt", i+1),
			slog.Int("max_retries", opts.MaxRetries),
			slog.Duration("retry_in", retryDelay),
		)

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, errors.Join(ctx.Err(), lastErr)
		}
		retryDelay *= 2
		if retryDelay > opts.MaxDelay {
			retryDelay = opts.MaxDelay
		}
	}

	return nil, fmt.Errorf("connect to elasticsearch after %d attempts: %w", opts.MaxRetries, lastErr)
}
