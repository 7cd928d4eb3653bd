// Package cache stores fetched exchange rates. Entries are kept past their
// freshness window so callers can inspect the last known rate; whether a
// cached rate is still usable is decided by the converter from ObservedAt.
package cache

import (
	"context"
	"strings"
	"time"

	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

const (
	KindMemory = "memory"
	KindRedis  = "redis"

	DefaultRetention = 7 * 24 * time.Hour
)

// RateCache is safe for concurrent use.
type RateCache interface {
	Get(ctx context.Context, from, to money.Currency) (ratedomain.ExchangeRate, bool, error)
	Set(ctx context.Context, rate ratedomain.ExchangeRate) error
}

func cacheKey(from, to money.Currency) string {
	return strings.ToUpper(from.String()) + "|" + strings.ToUpper(to.String())
}
