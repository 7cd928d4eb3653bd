package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const maxBodyBytes = 64 << 10

// fetcher performs one throttled GET with an explicit timeout.
type fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newFetcher(cfg Config, transport http.RoundTripper) *fetcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter:   rate.NewLimiter(limit, cfg.Burst),
		userAgent: cfg.UserAgent,
	}
}

func (f *fetcher) get(ctx context.Context, u *url.URL) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, calcerr.Network(err, "quote throttled")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, calcerr.Network(err, "build request")
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, calcerr.Network(err, "GET %s", u.Host)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, calcerr.Network(nil, "GET %s: status %d", u.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, calcerr.Network(err, "read body")
	}
	return body, nil
}

func parseEndpoint(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, errors.New("rate provider endpoint is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid rate provider endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid rate provider endpoint scheme %q", u.Scheme)
	}
	return u, nil
}
