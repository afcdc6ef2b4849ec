package cache

import (
	"context"
	"time"
)

// DisplayIndexKey is where the manual display order of orders is cached.
const DisplayIndexKey = "orders:display-index"

// OrderIndexCache fronts the persisted display order index so page fetches
// do not re-read the config row on every request.
type OrderIndexCache interface {
	Get(ctx context.Context) ([]string, bool, error)
	Set(ctx context.Context, ids []string, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopOrderIndexCache struct{}

func (NoopOrderIndexCache) Get(_ context.Context) ([]string, bool, error) {
	return nil, false, nil
}

func (NoopOrderIndexCache) Set(_ context.Context, _ []string, _ time.Duration) error {
	return nil
}

func (NoopOrderIndexCache) Invalidate(_ context.Context) error {
	return nil
}
