package domain

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

// DefaultStaleAfter is the rate age beyond which a rate is rejected.
const DefaultStaleAfter = 24 * time.Hour

// Options are the explicit policy values for one conversion.
type Options struct {
	StaleAfter time.Duration
}

func (o Options) WithDefaults() Options {
	if o.StaleAfter <= 0 {
		o.StaleAfter = DefaultStaleAfter
	}
	return o
}

// Converter converts money between currencies. It fails closed: when no
// fresh rate is obtainable it returns an error wrapping
// calcerr.ErrConversionUnavailable and never substitutes a value.
type Converter interface {
	Convert(ctx context.Context, m money.Money, to money.Currency, opts Options) (money.Money, error)
	// ConvertWithRate converts with a rate the caller chose explicitly,
	// such as a stored rate accepted during manual review.
	ConvertWithRate(m money.Money, rate ratedomain.ExchangeRate) (money.Money, error)
	// LastKnownRate returns the most recent cached rate, fresh or not.
	LastKnownRate(ctx context.Context, from, to money.Currency) (ratedomain.ExchangeRate, bool, error)
}

var (
	ErrStaleRate    = fmt.Errorf("%w: stale_rate", calcerr.ErrConversionUnavailable)
	ErrRateMismatch = fmt.Errorf("%w: rate_pair_mismatch", calcerr.ErrValidation)
)
