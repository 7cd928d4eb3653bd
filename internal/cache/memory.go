package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

type memoryCache struct {
	store *gocache.Cache
}

// NewMemory returns a process-local cache keeping rates for retention.
func NewMemory(retention time.Duration) RateCache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &memoryCache{store: gocache.New(retention, retention/2)}
}

func (c *memoryCache) Get(_ context.Context, from, to money.Currency) (ratedomain.ExchangeRate, bool, error) {
	v, ok := c.store.Get(cacheKey(from, to))
	if !ok {
		return ratedomain.ExchangeRate{}, false, nil
	}
	rate, ok := v.(ratedomain.ExchangeRate)
	return rate, ok, nil
}

func (c *memoryCache) Set(_ context.Context, rate ratedomain.ExchangeRate) error {
	c.store.SetDefault(cacheKey(rate.From, rate.To), rate)
	return nil
}
