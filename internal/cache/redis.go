package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

const redisKeyPrefix = "invoicecalc:fx:"

type redisCache struct {
	client    *redis.Client
	retention time.Duration
}

type redisRate struct {
	From       string          `json:"from"`
	To         string          `json:"to"`
	Rate       decimal.Decimal `json:"rate"`
	ObservedAt time.Time       `json:"observed_at"`
	Source     string          `json:"source"`
}

// NewRedis returns a cache shared by every worker using client.
func NewRedis(client *redis.Client, retention time.Duration) (RateCache, error) {
	if client == nil {
		return nil, errors.New("redis client not configured")
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &redisCache{client: client, retention: retention}, nil
}

func (c *redisCache) Get(ctx context.Context, from, to money.Currency) (ratedomain.ExchangeRate, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+cacheKey(from, to)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ratedomain.ExchangeRate{}, false, nil
	}
	if err != nil {
		return ratedomain.ExchangeRate{}, false, fmt.Errorf("read cached rate: %w", err)
	}

	var stored redisRate
	if err := json.Unmarshal(raw, &stored); err != nil {
		return ratedomain.ExchangeRate{}, false, fmt.Errorf("decode cached rate: %w", err)
	}
	return ratedomain.ExchangeRate{
		From:       money.Currency(stored.From),
		To:         money.Currency(stored.To),
		Rate:       stored.Rate,
		ObservedAt: stored.ObservedAt.UTC(),
		Source:     stored.Source,
	}, true, nil
}

func (c *redisCache) Set(ctx context.Context, rate ratedomain.ExchangeRate) error {
	payload, err := json.Marshal(redisRate{
		From:       rate.From.String(),
		To:         rate.To.String(),
		Rate:       rate.Rate,
		ObservedAt: rate.ObservedAt.UTC(),
		Source:     rate.Source,
	})
	if err != nil {
		return fmt.Errorf("encode rate: %w", err)
	}
	return c.client.Set(ctx, redisKeyPrefix+cacheKey(rate.From, rate.To), payload, c.retention).Err()
}
