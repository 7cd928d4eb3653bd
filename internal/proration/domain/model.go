package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

// Kind labels a prorated amount on the invoice.
type Kind string

const (
	KindAddition Kind = "addition"
	KindCredit   Kind = "credit"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool { return k == KindAddition || k == KindCredit }

// PeriodUnit is the unit of a billing term.
type PeriodUnit string

const (
	UnitDay   PeriodUnit = "day"
	UnitWeek  PeriodUnit = "week"
	UnitMonth PeriodUnit = "month"
	UnitYear  PeriodUnit = "year"
)

// ParsePeriodUnit accepts singular or plural unit names.
func ParsePeriodUnit(raw string) (PeriodUnit, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(raw)), "s") {
	case "day":
		return UnitDay, nil
	case "week":
		return UnitWeek, nil
	case "month":
		return UnitMonth, nil
	case "year":
		return UnitYear, nil
	default:
		return "", ErrInvalidPeriod
	}
}

// Period is a billing term such as 1 month or 3 years.
type Period struct {
	Term int
	Unit PeriodUnit
}

// Window is the overlap of a mid-cycle change with its billing period.
// All bounds are inclusive calendar dates; the time of day is ignored.
// Start == End+1 day is the zero-length window.
type Window struct {
	Start       time.Time
	End         time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
	Direction   Kind
}

// DateRange is an inclusive calendar range.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Result is a prorated charge or credit. Amount is never negative;
// Kind carries the direction.
type Result struct {
	Amount      money.Money
	Kind        Kind
	Range       DateRange
	OverlapDays int64
	PeriodDays  int64
}

// Options are the explicit policy values for one computation.
type Options struct {
	// Precision is the number of fractional digits of the prorated amount.
	// Zero rounds to whole units.
	Precision int32
}

func DefaultOptions() Options {
	return Options{Precision: money.PresentationPrecision}
}

func (o Options) Validate() error {
	if o.Precision < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPrecision, o.Precision)
	}
	return nil
}

var (
	ErrInvalidWindow    = fmt.Errorf("%w: invalid_proration_window", calcerr.ErrValidation)
	ErrInvalidUnitPrice = fmt.Errorf("%w: invalid_unit_price", calcerr.ErrValidation)
	ErrInvalidKind      = fmt.Errorf("%w: invalid_proration_kind", calcerr.ErrValidation)
	ErrInvalidPeriod    = fmt.Errorf("%w: invalid_billing_period", calcerr.ErrValidation)
	ErrInvalidPrecision = fmt.Errorf("%w: invalid_proration_precision", calcerr.ErrValidation)
)
