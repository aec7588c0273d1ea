package catalog

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Invalidator drops cached tax profiles after catalog rows change outside
// the service.
type Invalidator struct {
	client *redis.Client
}

// NewInvalidator returns an invalidator for the cache behind client. A nil
// client makes every call a no-op.
func NewInvalidator(client *redis.Client) *Invalidator {
	return &Invalidator{client: client}
}

// Invalidate deletes the cached products and customers in one round trip and
// reports how many entries were removed.
func (i *Invalidator) Invalidate(ctx context.Context, productIDs, customerIDs []int64) (int64, error) {
	if i == nil || i.client == nil {
		return 0, nil
	}
	keys := make([]string, 0, len(productIDs)+len(customerIDs))
	for _, id := range productIDs {
		keys = append(keys, productKey(id))
	}
	for _, id := range customerIDs {
		keys = append(keys, customerKey(id))
	}
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := i.client.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("catalog: invalidate: %w", err)
	}
	return removed, nil
}
