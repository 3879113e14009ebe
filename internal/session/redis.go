package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "triagem:session:"
	// maxUpdateAttempts bounds optimistic retries of Update.
	maxUpdateAttempts = 16
)

// RedisStore keeps sessions in Redis so several API instances can share
// them. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to url and verifies the connection with PING.
func NewRedisStore(ctx context.Context, url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func sessionKey(id string) string { return keyPrefix + id }

func (r *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	b, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	return b, nil
}

func (r *RedisStore) Put(ctx context.Context, id string, data []byte) error {
	if err := r.client.Set(ctx, sessionKey(id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Update runs fn inside a WATCH transaction and retries when another client
// writes the key between the read and the EXEC.
func (r *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) ([]byte, error) {
	key := sessionKey(id)
	var out []byte
	txf := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("redis get session: %w", err)
		}
		next, err := fn(cur)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}

	for range maxUpdateAttempts {
		err := r.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return nil, ErrConflict
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

// Health checks if the Redis connection is healthy.
func (r *RedisStore) Health(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// New selects the session backend by name ("memory" or "redis").
func New(ctx context.Context, kind, redisURL string, ttl time.Duration) (Store, error) {
	switch kind {
	case "memory":
		return NewMemoryStore(ttl, nil), nil
	case "redis":
		return NewRedisStore(ctx, redisURL, ttl)
	default:
		return nil, fmt.Errorf("unsupported session store: %s", kind)
	}
}
