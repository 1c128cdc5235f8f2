package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// DefaultTimeout bounds each store call when no timeout is configured.
const DefaultTimeout = 3 * time.Second

// RedisOptions describes how to reach the shared Redis instance.
type RedisOptions struct {
	Addr     string
	Username string
	Password string
	DB       int
	Timeout  time.Duration
}

// NewRedisClient dials Redis and verifies the connection. The returned client
// is meant to be created once at startup and shared process-wide.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.Username,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
	})

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Mark(errors.Wrapf(err, "ping redis at %s", opts.Addr), ErrStoreUnavailable)
	}
	return client, nil
}

// RedisStore implements Store with plain string keys: GET, SET EX and DEL.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

var _ Store = (*RedisStore)(nil)

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithTimeout sets the per-call timeout. Defaults to DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedisStore wraps a shared client. Close releases the client, so the
// store should be owned by the process composition root.
func NewRedisStore(client *redis.Client, opts ...Option) *RedisStore {
	s := &RedisStore{client: client, timeout: DefaultTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *RedisStore) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	val, err := s.client.Get(qctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Mark(errors.Wrapf(err, "get %s", key), ErrStoreUnavailable)
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Set(qctx, key, value, ttl).Err(); err != nil {
		return errors.Mark(errors.Wrapf(err, "set %s", key), ErrStoreWrite)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Del(qctx, key).Err(); err != nil {
		return errors.Mark(errors.Wrapf(err, "delete %s", key), ErrStoreUnavailable)
	}
	return nil
}

// Ping reports whether the backing store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	qctx, cancel := s.queryCtx(ctx)
	defer cancel()
	if err := s.client.Ping(qctx).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "ping"), ErrStoreUnavailable)
	}
	return nil
}

// Close releases the shared client. Call once at process shutdown.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
