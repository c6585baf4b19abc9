package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReadCache is a versioned TTL cache fronting ad hoc listing queries.
// Writes bump a per-company version so stale entries fall out immediately
// instead of waiting for the TTL. It is never consulted on posting,
// uniqueness or idempotency paths and provides no consistency guarantee
// beyond "no older than TTL".
type ReadCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewReadCache instantiates the cache helper. A nil client degrades to a
// pass-through loader, which keeps test composition simple.
func NewReadCache(client *redis.Client, prefix string, ttl time.Duration) *ReadCache {
	return &ReadCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *ReadCache) versionKey(tenantID, companyID int64) string {
	return fmt.Sprintf("%s:%d:%d:version", c.prefix, tenantID, companyID)
}

// Version returns the current cache version for a company namespace,
// initialising it when missing.
func (c *ReadCache) Version(ctx context.Context, tenantID, companyID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}
	key := c.versionKey(tenantID, companyID)
	ver, err := c.client.Get(ctx, key).Int64()
	if err == redis.Nil {
		if err := c.client.Set(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

// BuildKey composes a cache key under the current company version.
func (c *ReadCache) BuildKey(ctx context.Context, tenantID, companyID int64, parts ...string) (string, error) {
	joined := strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.Version(ctx, tenantID, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:%d:%d:%s", c.prefix, tenantID, companyID, ver, joined), nil
}

// FetchJSON loads a cached value or populates it using the loader.
func (c *ReadCache) FetchJSON(ctx context.Context, key string, dest any, loader func(context.Context) (any, error)) error {
	if loader == nil {
		return errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		value, err := loader(ctx)
		if err != nil {
			return err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(raw, dest)
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		return json.Unmarshal(payload, dest)
	}
	if err != redis.Nil {
		return err
	}
	value, err := loader(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// Bump invalidates every cached entry for a company by incrementing its
// version. Called after writes that change listing results.
func (c *ReadCache) Bump(ctx context.Context, tenantID, companyID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, c.versionKey(tenantID, companyID)).Err()
}
