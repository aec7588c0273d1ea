package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

const (
	productKeyPrefix  = "tax:product:"
	customerKeyPrefix = "tax:customer:"
)

var _ Repository = (*CachedRepository)(nil)

// CachedRepository serves tax profiles from Redis and falls back to the
// wrapped repository on a miss. Redis failures are logged and bypassed.
type CachedRepository struct {
	next   Repository
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

// NewCachedRepository wraps next with a Redis cache.
func NewCachedRepository(next Repository, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{next: next, client: client, ttl: ttl, logger: logger}
}

func productKey(id int64) string { return fmt.Sprintf("%s%d", productKeyPrefix, id) }
func customerKey(id int64) string { return fmt.Sprintf("%s%d", customerKeyPrefix, id) }

// GetProduct returns the product, loading it at most once per key across
// concurrent callers.
func (c *CachedRepository) GetProduct(ctx context.Context, id int64) (tax.Product, error) {
	var p tax.Product
	err := c.fetch(ctx, productKey(id), &p, func(ctx context.Context) (any, error) {
		return c.next.GetProduct(ctx, id)
	})
	return p, err
}

// GetCustomer returns the customer, loading it at most once per key across
// concurrent callers.
func (c *CachedRepository) GetCustomer(ctx context.Context, id int64) (tax.Customer, error) {
	var cust tax.Customer
	err := c.fetch(ctx, customerKey(id), &cust, func(ctx context.Context) (any, error) {
		return c.next.GetCustomer(ctx, id)
	})
	return cust, err
}

// GetProducts reads all cached products in one round trip and loads the
// misses from the wrapped repository.
func (c *CachedRepository) GetProducts(ctx context.Context, ids []int64) (map[int64]tax.Product, error) {
	out := make(map[int64]tax.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	if c.client == nil {
		return c.next.GetProducts(ctx, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	values, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.Warn("catalog cache mget", slog.Any("error", err))
		return c.next.GetProducts(ctx, ids)
	}

	var misses []int64
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			misses = append(misses, ids[i])
			continue
		}
		var p tax.Product
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			misses = append(misses, ids[i])
			continue
		}
		out[ids[i]] = p
	}
	if len(misses) == 0 {
		return out, nil
	}

	loaded, err := c.next.GetProducts(ctx, misses)
	if err != nil {
		return nil, err
	}
	pipe := c.client.Pipeline()
	for id, p := range loaded {
		out[id] = p
		if raw, err := json.Marshal(p); err == nil {
			pipe.Set(ctx, productKey(id), raw, c.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("catalog cache fill", slog.Any("error", err))
	}
	return out, nil
}

// InvalidateProduct drops the cached product.
func (c *CachedRepository) InvalidateProduct(ctx context.Context, id int64) error {
	_, err := NewInvalidator(c.client).Invalidate(ctx, []int64{id}, nil)
	return err
}

// InvalidateCustomer drops the cached customer.
func (c *CachedRepository) InvalidateCustomer(ctx context.Context, id int64) error {
	_, err := NewInvalidator(c.client).Invalidate(ctx, nil, []int64{id})
	return err
}

func (c *CachedRepository) fetch(ctx context.Context, key string, dest any, load func(context.Context) (any, error)) error {
	if c.client != nil {
		payload, err := c.client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(payload, dest); err == nil {
				return nil
			}
		case !errors.Is(err, redis.Nil):
			c.logger.Warn("catalog cache get", slog.String("key", key), slog.Any("error", err))
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		value, err := load(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		if c.client != nil {
			if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("catalog cache set", slog.String("key", key), slog.Any("error", err))
			}
		}
		return raw, nil
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return res.Err
		}
		return json.Unmarshal(res.Val.([]byte), dest)
	}
}
