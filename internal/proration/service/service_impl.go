package service

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/money"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
)

type calculator struct{}

func NewCalculator() prorationdomain.Calculator {
	return &calculator{}
}

// Compute prorates unitPrice by overlap days over period days.
// Day counts are integers taken from calendar dates, and the price is
// multiplied before dividing, so a full window returns unitPrice exactly.
func (c *calculator) Compute(unitPrice money.Money, window prorationdomain.Window, opts prorationdomain.Options) (prorationdomain.Result, error) {
	if err := opts.Validate(); err != nil {
		return prorationdomain.Result{}, err
	}
	if unitPrice.IsNegative() || !unitPrice.Currency.Valid() {
		return prorationdomain.Result{}, prorationdomain.ErrInvalidUnitPrice
	}
	if !window.Direction.Valid() {
		return prorationdomain.Result{}, prorationdomain.ErrInvalidKind
	}

	start := dayNumber(window.Start)
	end := dayNumber(window.End)
	periodStart := dayNumber(window.PeriodStart)
	periodEnd := dayNumber(window.PeriodEnd)

	if periodStart > periodEnd || start > end+1 || end > periodEnd {
		return prorationdomain.Result{}, prorationdomain.ErrInvalidWindow
	}

	periodDays := periodEnd - periodStart + 1
	rangeStart := window.Start
	if start < periodStart {
		start = periodStart
		rangeStart = window.PeriodStart
	}
	overlapDays := end - start + 1
	if overlapDays < 0 {
		overlapDays = 0
	}

	var amount decimal.Decimal
	switch {
	case overlapDays == 0:
		amount = decimal.Zero
	case overlapDays >= periodDays:
		overlapDays = periodDays
		amount = unitPrice.Amount
	default:
		amount = unitPrice.Amount.
			Mul(decimal.NewFromInt(overlapDays)).
			Div(decimal.NewFromInt(periodDays)).
			Round(opts.Precision)
	}

	return prorationdomain.Result{
		Amount: money.Money{Amount: amount, Currency: unitPrice.Currency},
		Kind:   window.Direction,
		Range: prorationdomain.DateRange{
			Start: civilDate(rangeStart),
			End:   civilDate(window.End),
		},
		OverlapDays: overlapDays,
		PeriodDays:  periodDays,
	}, nil
}

// PeriodFor returns the inclusive billing period that starts on start.
// Month and year terms clamp to the last day of a shorter target month.
func (c *calculator) PeriodFor(start time.Time, period prorationdomain.Period) (prorationdomain.DateRange, error) {
	if period.Term <= 0 {
		return prorationdomain.DateRange{}, prorationdomain.ErrInvalidPeriod
	}

	first := civilDate(start)
	var next time.Time
	switch period.Unit {
	case prorationdomain.UnitDay:
		next = first.AddDate(0, 0, period.Term)
	case prorationdomain.UnitWeek:
		next = first.AddDate(0, 0, 7*period.Term)
	case prorationdomain.UnitMonth:
		next = addMonthsClamped(first, period.Term)
	case prorationdomain.UnitYear:
		next = addMonthsClamped(first, 12*period.Term)
	default:
		return prorationdomain.DateRange{}, prorationdomain.ErrInvalidPeriod
	}

	return prorationdomain.DateRange{Start: first, End: next.AddDate(0, 0, -1)}, nil
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, day := t.Date()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	last := target.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(target.Year(), target.Month(), day, 0, 0, 0, 0, time.UTC)
}

// civilDate drops the time of day, keeping the calendar date as seen in
// t's own location.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayNumber(t time.Time) int64 {
	return civilDate(t).Unix() / 86400
}
