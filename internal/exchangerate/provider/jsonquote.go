package provider

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/clock"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	"go.uber.org/zap"
)

// JSONQuote reads {"rate": "..."} from GET endpoint?from=X&to=Y&amount=A.
type JSONQuote struct {
	endpoint *url.URL
	fetch    *fetcher
	clock    clock.Clock
	log      *zap.Logger
}

type jsonQuotePayload struct {
	Rate json.RawMessage `json:"rate"`
}

func (p *JSONQuote) Name() string { return KindJSON }

func (p *JSONQuote) GetRate(ctx context.Context, from, to money.Currency, amount decimal.Decimal) (ratedomain.ExchangeRate, error) {
	amount, err := ratedomain.ValidatePair(from, to, amount)
	if err != nil {
		return ratedomain.ExchangeRate{}, err
	}

	u := *p.endpoint
	q := u.Query()
	q.Set("from", from.String())
	q.Set("to", to.String())
	q.Set("amount", amount.String())
	u.RawQuery = q.Encode()

	body, err := p.fetch.get(ctx, &u)
	if err != nil {
		p.log.Warn("rate quote failed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
			zap.Error(err),
		)
		return ratedomain.ExchangeRate{}, err
	}

	var payload jsonQuotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return ratedomain.ExchangeRate{}, calcerr.Parse("decode quote: %v", err)
	}
	raw, err := rawRate(payload.Rate)
	if err != nil {
		return ratedomain.ExchangeRate{}, err
	}
	rate, err := ratedomain.ParseRate(raw)
	if err != nil {
		return ratedomain.ExchangeRate{}, err
	}

	return ratedomain.ExchangeRate{
		From:       from,
		To:         to,
		Rate:       rate,
		ObservedAt: p.clock.Now().UTC(),
		Source:     p.Name(),
	}, nil
}

// rawRate accepts the rate as a JSON string or number.
func rawRate(field json.RawMessage) (string, error) {
	if len(field) == 0 || string(field) == "null" {
		return "", calcerr.Parse("quote has no rate field")
	}
	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(field, &n); err == nil {
		if _, convErr := strconv.ParseFloat(n.String(), 64); convErr == nil {
			return n.String(), nil
		}
	}
	return "", calcerr.Parse("quote rate %s is neither string nor number", string(field))
}
