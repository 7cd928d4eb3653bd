package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/invoicecalc/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config selects the rate cache backend.
type Config struct {
	Kind      string
	RedisAddr string
	RedisDB   int
	Password  string
	Retention time.Duration
}

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    Config
	Log       *zap.Logger
}

// Provide builds the configured RateCache. The redis backend pings once at
// startup so a misconfigured address fails the process early.
func Provide(p Params) (RateCache, error) {
	kind := strings.ToLower(strings.TrimSpace(p.Config.Kind))
	switch kind {
	case "", KindMemory:
		return NewMemory(p.Config.Retention), nil
	case KindRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     p.Config.RedisAddr,
			DB:       p.Config.RedisDB,
			Password: p.Config.Password,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect redis rate cache %s: %w", p.Config.RedisAddr, err)
		}
		if p.Lifecycle != nil {
			p.Lifecycle.Append(fx.Hook{
				OnStop: func(context.Context) error { return client.Close() },
			})
		}
		if p.Log != nil {
			p.Log.Info("rate cache initialized", zap.String("backend", KindRedis), zap.String("addr", p.Config.RedisAddr))
		}
		return NewRedis(client, p.Config.Retention)
	default:
		return nil, fmt.Errorf("unsupported rate cache %q", p.Config.Kind)
	}
}

var Module = fx.Module("rate.cache",
	fx.Provide(provideConfig),
	fx.Provide(Provide),
)

func provideConfig(cfg config.Config) Config {
	return Config{
		Kind:      cfg.RateCacheBackend,
		RedisAddr: cfg.RedisAddr,
		RedisDB:   cfg.RedisDB,
		Password:  cfg.RedisPassword,
		Retention: cfg.RateCacheRetention,
	}
}
