package provider

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	ratedomain "github.com/smallbiznis/invoicecalc/internal/exchangerate/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	"go.uber.org/zap"
)

const csvTimestampLayout = "1/2/2006 3:04pm"

// CSVQuote reads one row "symbol","rate","date","time" from a ticker-style
// endpoint. The timestamp is local to the source zone and returned in UTC.
type CSVQuote struct {
	endpoint *url.URL
	fetch    *fetcher
	location *time.Location
	log      *zap.Logger
}

func (p *CSVQuote) Name() string { return KindCSV }

func (p *CSVQuote) GetRate(ctx context.Context, from, to money.Currency, amount decimal.Decimal) (ratedomain.ExchangeRate, error) {
	if _, err := ratedomain.ValidatePair(from, to, amount); err != nil {
		return ratedomain.ExchangeRate{}, err
	}

	symbol := tickerSymbol(from, to)
	u := *p.endpoint
	u.RawQuery = "s=" + symbol + "&f=sl1d1t1"

	body, err := p.fetch.get(ctx, &u)
	if err != nil {
		p.log.Warn("rate quote failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return ratedomain.ExchangeRate{}, err
	}

	fields, err := readQuoteRow(body)
	if err != nil {
		return ratedomain.ExchangeRate{}, err
	}

	if !strings.EqualFold(fields[0], symbol) {
		return ratedomain.ExchangeRate{}, calcerr.Parse("quote symbol %q does not match %q", fields[0], symbol)
	}
	rate, err := ratedomain.ParseRate(fields[1])
	if err != nil {
		return ratedomain.ExchangeRate{}, err
	}
	observed, err := time.ParseInLocation(csvTimestampLayout, fields[2]+" "+strings.ToLower(fields[3]), p.location)
	if err != nil {
		return ratedomain.ExchangeRate{}, calcerr.Parse("quote timestamp %q %q: %v", fields[2], fields[3], err)
	}

	return ratedomain.ExchangeRate{
		From:       from,
		To:         to,
		Rate:       rate,
		ObservedAt: observed.UTC(),
		Source:     p.Name(),
	}, nil
}

func tickerSymbol(from, to money.Currency) string {
	return from.String() + to.String() + "=X"
}

// readQuoteRow returns the four trimmed fields of the first non-empty row.
func readQuoteRow(body []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(bytes.TrimSpace(body)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	record, err := r.Read()
	if err == io.EOF {
		return nil, calcerr.Parse("empty quote")
	}
	if err != nil {
		return nil, calcerr.Parse("read quote: %v", err)
	}
	if len(record) != 4 {
		return nil, calcerr.Parse("quote has %d fields, want 4", len(record))
	}

	fields := make([]string, len(record))
	for i, f := range record {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return fields, nil
}
