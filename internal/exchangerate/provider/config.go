package provider

import (
	"strings"
	"time"
)

const (
	KindJSON = "json"
	KindCSV  = "csv"

	DefaultTimeout        = 30 * time.Second
	DefaultSourceTimeZone = "America/New_York"
)

// Config selects and configures the quote source.
type Config struct {
	Kind           string
	Endpoint       string
	Timeout        time.Duration
	SourceTimeZone string
	// RequestsPerSecond throttles outbound quotes. Zero disables throttling.
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

func (c Config) withDefaults() Config {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" {
		c.Kind = KindJSON
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if strings.TrimSpace(c.SourceTimeZone) == "" {
		c.SourceTimeZone = DefaultSourceTimeZone
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = "invoicecalc-rates/1.0"
	}
	return c
}
