package service

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/clock"
	ratecache "github.com/smallbiznis/invoicecalc/internal/cache"
	currencydomain "github.com/smallbiznis/invoicecalc/internal/currency/domain"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	obsmetrics "github.com/smallbiznis/invoicecalc/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ServiceParam struct {
	fx.In

	Provider ratedomain.Provider
	Cache    ratecache.RateCache
	Clock    clock.Clock
	Log      *zap.Logger
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

// fetchTimeout bounds a shared fetch, which outlives the caller that started it.
const fetchTimeout = 30 * time.Second

type Service struct {
	provider ratedomain.Provider
	cache    ratecache.RateCache
	clock    clock.Clock
	log      *zap.Logger
	metrics  *obsmetrics.Metrics

	inflight singleflight.Group
}

func NewService(p ServiceParam) currencydomain.Converter {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		provider: p.Provider,
		cache:    p.Cache,
		clock:    clk,
		log:      log.Named("currency.converter"),
		metrics:  p.Metrics,
	}
}

func (s *Service) Convert(ctx context.Context, m money.Money, to money.Currency, opts currencydomain.Options) (money.Money, error) {
	if !m.Currency.Valid() || !to.Valid() {
		return money.Money{}, calcerr.Validation("invalid conversion %q -> %q", m.Currency, to)
	}
	if m.Currency == to {
		return m, nil
	}
	opts = opts.WithDefaults()

	rate, err := s.resolveRate(ctx, m.Currency, to, opts)
	if err != nil {
		s.metrics.RecordConversion(ctx, "failed", calcerr.Kind(err))
		return money.Money{}, err
	}

	converted, err := s.ConvertWithRate(m, rate)
	if err != nil {
		s.metrics.RecordConversion(ctx, "failed", calcerr.Kind(err))
		return money.Money{}, err
	}
	s.metrics.RecordConversion(ctx, "ok", "")
	return converted, nil
}

func (s *Service) ConvertWithRate(m money.Money, rate ratedomain.ExchangeRate) (money.Money, error) {
	if rate.From != m.Currency {
		return money.Money{}, fmt.Errorf("%w: rate %s->%s for %s", currencydomain.ErrRateMismatch, rate.From, rate.To, m.Currency)
	}
	if err := ratedomain.CheckPlausible(rate.Rate); err != nil {
		return money.Money{}, err
	}
	out := money.Money{Amount: m.Amount.Mul(rate.Rate), Currency: rate.To}
	return out.RoundMinor(), nil
}

func (s *Service) LastKnownRate(ctx context.Context, from, to money.Currency) (ratedomain.ExchangeRate, bool, error) {
	if s.cache == nil {
		return ratedomain.ExchangeRate{}, false, nil
	}
	return s.cache.Get(ctx, from, to)
}

// resolveRate prefers a fresh cached rate and otherwise fetches once.
// Concurrent requests for the same pair share one fetch; no lock is held
// while the provider blocks. The shared fetch runs detached from any one
// caller, so a canceled caller only abandons its own wait.
func (s *Service) resolveRate(ctx context.Context, from, to money.Currency, opts currencydomain.Options) (ratedomain.ExchangeRate, error) {
	if cached, ok := s.freshFromCache(ctx, from, to, opts); ok {
		return cached, nil
	}

	key := from.String() + "|" + to.String()
	ch := s.inflight.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return s.fetch(fetchCtx, from, to)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ratedomain.ExchangeRate{}, fmt.Errorf("%w: %s->%s: %w", calcerr.ErrConversionUnavailable, from, to, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return ratedomain.ExchangeRate{}, fmt.Errorf("%w: %s->%s: %w", calcerr.ErrConversionUnavailable, from, to, res.Err)
	}
	rate := res.Val.(ratedomain.ExchangeRate)

	if age := rate.Age(s.clock.Now()); age > opts.StaleAfter {
		s.log.Warn("fetched rate is stale",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Time("observed_at", rate.ObservedAt),
			zap.Duration("age", age),
		)
		return ratedomain.ExchangeRate{}, fmt.Errorf("%w: %s->%s observed %s", currencydomain.ErrStaleRate, from, to, rate.ObservedAt.Format("2006-01-02T15:04:05Z"))
	}
	return rate, nil
}

func (s *Service) freshFromCache(ctx context.Context, from, to money.Currency, opts currencydomain.Options) (ratedomain.ExchangeRate, bool) {
	if s.cache == nil {
		return ratedomain.ExchangeRate{}, false
	}
	cached, ok, err := s.cache.Get(ctx, from, to)
	if err != nil {
		s.log.Warn("rate cache read failed", zap.Error(err))
		s.metrics.RecordRateCacheLookup(ctx, "error")
		return ratedomain.ExchangeRate{}, false
	}
	if !ok {
		s.metrics.RecordRateCacheLookup(ctx, "miss")
		return ratedomain.ExchangeRate{}, false
	}
	if cached.Age(s.clock.Now()) > opts.StaleAfter {
		s.metrics.RecordRateCacheLookup(ctx, "stale")
		return ratedomain.ExchangeRate{}, false
	}
	s.metrics.RecordRateCacheLookup(ctx, "hit")
	return cached, true
}

func (s *Service) fetch(ctx context.Context, from, to money.Currency) (ratedomain.ExchangeRate, error) {
	if s.provider == nil {
		return ratedomain.ExchangeRate{}, calcerr.Network(nil, "no rate provider configured")
	}

	rate, err := s.provider.GetRate(ctx, from, to, money.Zero(from).Amount)
	if err != nil {
		s.metrics.RecordRateFetch(ctx, s.provider.Name(), calcerr.Kind(err))
		s.log.Warn("exchange rate unavailable",
			zap.String("provider", s.provider.Name()),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		return ratedomain.ExchangeRate{}, err
	}
	if rate.From != from || rate.To != to {
		s.metrics.RecordRateFetch(ctx, s.provider.Name(), "mismatch")
		return ratedomain.ExchangeRate{}, calcerr.Parse("provider answered %s->%s for %s->%s", rate.From, rate.To, from, to)
	}
	s.metrics.RecordRateFetch(ctx, s.provider.Name(), "ok")

	if s.cache != nil {
		if err := s.cache.Set(ctx, rate); err != nil {
			s.log.Warn("rate cache write failed", zap.Error(err))
		}
	}
	return rate, nil
}
