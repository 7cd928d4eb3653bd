package billingrun

import (
	"time"

	"github.com/smallbiznis/invoicecalc/internal/config"
)

// Config controls when runs fire and how many invoices are computed at once.
type Config struct {
	Schedule    string
	TimeZone    string
	Concurrency int
	RunOnStart  bool
}

func DefaultConfig() Config {
	return Config{
		Schedule:    "0 2 * * *",
		TimeZone:    "UTC",
		Concurrency: 4,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Schedule == "" {
		c.Schedule = defaults.Schedule
	}
	if c.TimeZone == "" {
		c.TimeZone = defaults.TimeZone
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	return c
}

func (c Config) location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Schedule:    cfg.BatchSchedule,
		TimeZone:    cfg.BatchTimeZone,
		Concurrency: cfg.BatchConcurrency,
		RunOnStart:  cfg.BatchRunOnStart,
	}
}
