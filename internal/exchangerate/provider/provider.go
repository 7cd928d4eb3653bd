package provider

import (
	"fmt"
	"net/http"
	"time"

	"github.com/smallbiznis/invoicecalc/internal/clock"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config    Config
	Clock     clock.Clock
	Log       *zap.Logger
	Transport http.RoundTripper `optional:"true"`
}

// New builds the provider variant named by Config.Kind.
func New(p Params) (ratedomain.Provider, error) {
	cfg := p.Config.withDefaults()

	endpoint, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	fetch := newFetcher(cfg, p.Transport)

	switch cfg.Kind {
	case KindJSON:
		clk := p.Clock
		if clk == nil {
			clk = clock.New()
		}
		return &JSONQuote{
			endpoint: endpoint,
			fetch:    fetch,
			clock:    clk,
			log:      log.Named("exchangerate.json"),
		}, nil
	case KindCSV:
		loc, err := time.LoadLocation(cfg.SourceTimeZone)
		if err != nil {
			return nil, fmt.Errorf("invalid rate source time zone %q: %w", cfg.SourceTimeZone, err)
		}
		return &CSVQuote{
			endpoint: endpoint,
			fetch:    fetch,
			location: loc,
			log:      log.Named("exchangerate.csv"),
		}, nil
	default:
		return nil, fmt.Errorf("unsupported rate provider %q", cfg.Kind)
	}
}
