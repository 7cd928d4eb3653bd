package domain

import (
	"time"

	"github.com/smallbiznis/invoicecalc/internal/money"
)

// Calculator prorates a per-period price over a date window.
type Calculator interface {
	Compute(unitPrice money.Money, window Window, opts Options) (Result, error)
	PeriodFor(start time.Time, period Period) (DateRange, error)
}
