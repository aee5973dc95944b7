package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/platform/cache"
)

const redisKeyPrefix = "wealthbuilder:session:"

// RedisStore keeps the record in Redis so several client processes on one
// machine (CLI and monitor daemon) share a login.
type RedisStore struct {
	cache *cache.Cache
	key   string
}

// NewRedisStore creates a store under wealthbuilder:session:<name>.
func NewRedisStore(c *cache.Cache, name string) (*RedisStore, error) {
	if c == nil {
		return nil, fmt.Errorf("cache is nil")
	}
	if name == "" {
		name = "default"
	}
	return &RedisStore{cache: c, key: redisKeyPrefix + name}, nil
}

func (r *RedisStore) Load(ctx context.Context) (Record, error) {
	var rec Record
	err := r.cache.GetJSON(ctx, r.key, &rec)
	if errors.Is(err, cache.ErrMiss) {
		return Record{}, ErrNoRecord
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return Record{}, fmt.Errorf("%w: %w", ErrUnreadable, err)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (r *RedisStore) Save(ctx context.Context, rec Record) error {
	return r.cache.SetJSON(ctx, r.key, rec, 0)
}

func (r *RedisStore) Clear(ctx context.Context) error {
	return r.cache.Delete(ctx, r.key)
}
