package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options configures the Redis client shared by locks and the job queue.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// ClientOptions maps Options onto go-redis options.
func (o Options) ClientOptions() *redis.Options {
	return &redis.Options{Addr: o.Addr, Password: o.Password, DB: o.DB}
}

// New creates a Redis client and pings it. A failed ping still returns the
// client so callers can decide whether Redis is optional.
func New(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(opts.ClientOptions())

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return client, fmt.Errorf("platform/cache: ping %s: %w", opts.Addr, err)
	}

	return client, nil
}

// Connect pings Redis and wraps the client in a Locker. When Redis is
// unreachable the client is closed and returned as nil, and the Locker is the
// no-op variant; the ping error is still returned for logging.
func Connect(ctx context.Context, opts Options) (*redis.Client, *Locker, error) {
	client, err := New(ctx, opts)
	if err != nil {
		_ = client.Close()
		return nil, NewLocker(nil), err
	}
	return client, NewLocker(client), nil
}
