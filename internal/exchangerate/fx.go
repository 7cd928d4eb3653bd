package exchangerate

import (
	"github.com/smallbiznis/invoicecalc/internal/config"
	"github.com/smallbiznis/invoicecalc/internal/exchangerate/provider"
	"go.uber.org/fx"
)

var Module = fx.Module("exchangerate.provider",
	fx.Provide(provideConfig),
	fx.Provide(provider.New),
)

func provideConfig(cfg config.Config) provider.Config {
	return provider.Config{
		Kind:              cfg.RateProvider,
		Endpoint:          cfg.RateEndpoint,
		Timeout:           cfg.RateTimeout,
		SourceTimeZone:    cfg.RateSourceZone,
		RequestsPerSecond: cfg.RateRequestsPerSec,
		Burst:             cfg.RateBurst,
		UserAgent:         cfg.RateUserAgent,
	}
}
