package catalog

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tax/internal/tax"
)

type mockRepo struct {
	mu            sync.Mutex
	products      map[int64]tax.Product
	customers     map[int64]tax.Customer
	productCalls  int
	batchCalls    int
	batchIDs      [][]int64
	customerCalls int
}

func (m *mockRepo) GetProduct(ctx context.Context, id int64) (tax.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.productCalls++
	p, ok := m.products[id]
	if !ok {
		return tax.Product{}, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return p, nil
}

func (m *mockRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]tax.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batchCalls++
	m.batchIDs = append(m.batchIDs, append([]int64(nil), ids...))
	out := make(map[int64]tax.Product, len(ids))
	for _, id := range ids {
		p, ok := m.products[id]
		if !ok {
			return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
		}
		out[id] = p
	}
	return out, nil
}

func (m *mockRepo) GetCustomer(ctx context.Context, id int64) (tax.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customerCalls++
	c, ok := m.customers[id]
	if !ok {
		return tax.Customer{}, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	return c, nil
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		products: map[int64]tax.Product{
			1: {ID: 1, TaxRate: tax.Rate(5)},
			2: {ID: 2, CategoryTaxRate: tax.Rate(15)},
			3: {ID: 3},
		},
		customers: map[int64]tax.Customer{
			7: {ID: 7, TaxExempt: true, ExemptionReason: "diplomatic"},
		},
	}
}

func newTestCache(t *testing.T, repo Repository) (*CachedRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCachedRepository(repo, client, time.Minute, nil), mr
}

func TestCachedRepositoryGetProductCaches(t *testing.T) {
	repo := newMockRepo()
	cache, mr := newTestCache(t, repo)
	ctx := context.Background()

	first, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, first.TaxRate)
	assert.Equal(t, 5.0, *first.TaxRate)
	assert.True(t, mr.Exists("tax:product:1"))

	second, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.productCalls)

	ttl := mr.TTL("tax:product:1")
	assert.Equal(t, time.Minute, ttl)
}

func TestCachedRepositoryGetCustomerCaches(t *testing.T) {
	repo := newMockRepo()
	cache, _ := newTestCache(t, repo)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cust, err := cache.GetCustomer(ctx, 7)
		require.NoError(t, err)
		assert.True(t, cust.TaxExempt)
		assert.Equal(t, "diplomatic", cust.ExemptionReason)
	}
	assert.Equal(t, 1, repo.customerCalls)
}

func TestCachedRepositoryNotFoundIsNotCached(t *testing.T) {
	repo := newMockRepo()
	cache, mr := newTestCache(t, repo)
	ctx := context.Background()

	_, err := cache.GetCustomer(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = cache.GetCustomer(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 2, repo.customerCalls)
	assert.False(t, mr.Exists("tax:customer:99"))
}

func TestCachedRepositoryGetProductsLoadsOnlyMisses(t *testing.T) {
	repo := newMockRepo()
	cache, _ := newTestCache(t, repo)
	ctx := context.Background()

	_, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)

	got, err := cache.GetProducts(ctx, []int64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 15.0, *got[2].CategoryTaxRate)
	assert.Nil(t, got[3].TaxRate)
	require.Equal(t, 1, repo.batchCalls)
	assert.ElementsMatch(t, []int64{2, 3}, repo.batchIDs[0])

	again, err := cache.GetProducts(ctx, []int64{3, 2, 1})
	require.NoError(t, err)
	assert.Equal(t, got, again)
	assert.Equal(t, 1, repo.batchCalls, "second batch is served from redis")
}

func TestCachedRepositoryGetProductsPropagatesNotFound(t *testing.T) {
	repo := newMockRepo()
	cache, _ := newTestCache(t, repo)

	_, err := cache.GetProducts(context.Background(), []int64{1, 42})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedRepositoryGetProductsEmpty(t *testing.T) {
	repo := newMockRepo()
	cache, _ := newTestCache(t, repo)

	got, err := cache.GetProducts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, repo.batchCalls)
}

func TestCachedRepositoryInvalidate(t *testing.T) {
	repo := newMockRepo()
	cache, mr := newTestCache(t, repo)
	ctx := context.Background()

	_, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	_, err = cache.GetCustomer(ctx, 7)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.products[1] = tax.Product{ID: 1, TaxRate: tax.Rate(11)}
	repo.mu.Unlock()

	require.NoError(t, cache.InvalidateProduct(ctx, 1))
	require.NoError(t, cache.InvalidateCustomer(ctx, 7))
	assert.False(t, mr.Exists("tax:product:1"))
	assert.False(t, mr.Exists("tax:customer:7"))

	p, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 11.0, *p.TaxRate)
	assert.Equal(t, 2, repo.productCalls)
}

func TestCachedRepositoryFallsBackWhenRedisDown(t *testing.T) {
	repo := newMockRepo()
	cache, mr := newTestCache(t, repo)
	mr.Close()
	ctx := context.Background()

	p, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5.0, *p.TaxRate)

	got, err := cache.GetProducts(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, repo.batchCalls)
}

func TestCachedRepositoryWithoutClient(t *testing.T) {
	repo := newMockRepo()
	cache := NewCachedRepository(repo, nil, time.Minute, nil)
	ctx := context.Background()

	_, err := cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	_, err = cache.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.productCalls)
	require.NoError(t, cache.InvalidateProduct(ctx, 1))
}
