package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// CacheInvalidator is implemented by *catalog.Invalidator.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, productIDs, customerIDs []int64) (int64, error)
}

// WithCache attaches the catalog cache used by the cache command.
func (c *JobsCLI) WithCache(cache CacheInvalidator) *JobsCLI {
	c.cache = cache
	return c
}

// InvalidateCache drops cached tax profiles so the next calculation reads
// the catalog rows again.
func (c *JobsCLI) InvalidateCache(ctx context.Context, productIDs, customerIDs []int64) (int64, error) {
	if c == nil || c.cache == nil {
		return 0, errors.New("jobs cli: cache not configured")
	}
	return c.cache.Invalidate(ctx, productIDs, customerIDs)
}

// idList is a comma separated list of positive ids.
type idList []int64

func (l *idList) String() string {
	parts := make([]string, len(*l))
	for i, id := range *l {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return fmt.Errorf("invalid id %q", part)
		}
		*l = append(*l, id)
	}
	return nil
}

func (c *JobsCLI) cacheCommand(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] != "invalidate" {
		_, _ = fmt.Fprintln(stderr, "cache: usage: cache invalidate [-product IDS] [-customer IDS]")
		return 2
	}
	fs := flag.NewFlagSet("cache invalidate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var products, customers idList
	fs.Var(&products, "product", "comma separated product ids")
	fs.Var(&customers, "customer", "comma separated customer ids")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if len(products) == 0 && len(customers) == 0 {
		_, _ = fmt.Fprintln(stderr, "cache: at least one -product or -customer id is required")
		return 2
	}
	removed, err := c.InvalidateCache(ctx, products, customers)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "cache: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "removed %d cached entries\n", removed)
	return 0
}
