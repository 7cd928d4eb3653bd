package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
)

var ErrInvalidRow = fmt.Errorf("%w: invalid_line_row", calcerr.ErrValidation)

// PeriodResolver computes the natural billing period starting at a date.
type PeriodResolver interface {
	PeriodFor(start time.Time, period prorationdomain.Period) (prorationdomain.DateRange, error)
}

// Builder turns stored rows into line items.
type Builder struct {
	periods PeriodResolver
}

func NewBuilder(periods PeriodResolver) *Builder {
	return &Builder{periods: periods}
}

// Build assembles the line item for row from its tax assignments. Rows for
// other lines are ignored.
func (b *Builder) Build(row RawLine, taxes []RawTaxAssignment) (pricingdomain.LineItem, error) {
	currency, err := money.ParseCurrency(row.Currency)
	if err != nil {
		return pricingdomain.LineItem{}, rowErr(row, "currency %q", row.Currency)
	}

	unit, err := prorationdomain.ParsePeriodUnit(row.Unit)
	if err != nil {
		return pricingdomain.LineItem{}, rowErr(row, "period unit %q", row.Unit)
	}
	term := row.Term
	if term <= 0 {
		term = 1
	}

	item := pricingdomain.LineItem{
		ID: row.ID.String(),
		Description: pricingdomain.DescriptionRef{
			Entity: strings.TrimSpace(row.Entity),
			Params: stringParams(row.DescriptionParams),
			Nested: row.Nested,
		},
		UnitPrice: money.Money{Amount: row.UnitPrice, Currency: currency},
		Quantity:  row.Quantity,
		Period:    prorationdomain.Period{Term: term, Unit: unit},
	}

	for _, t := range taxes {
		if t.LineID != row.ID {
			continue
		}
		item.TaxRates = append(item.TaxRates, taxdomain.TaxRate{
			Name:         t.Name,
			Level:        t.Level,
			Rate:         t.Rate,
			Jurisdiction: taxdomain.Jurisdiction{Country: t.Country, State: t.State},
			Cascade:      t.Cascade,
		})
	}

	if window, err := b.window(row, item.Period); err != nil {
		return pricingdomain.LineItem{}, err
	} else if window != nil {
		item.Proration = window
		if item.Description.Entity == "" {
			item.Description.Entity = "proration_" + string(window.Direction)
		}
	}

	if discount, err := discountFromRow(row, currency); err != nil {
		return pricingdomain.LineItem{}, err
	} else if discount != nil {
		item.Discount = discount
	}

	if item.Description.Entity == "" {
		return pricingdomain.LineItem{}, rowErr(row, "missing description entity")
	}
	if err := item.Validate(); err != nil {
		return pricingdomain.LineItem{}, fmt.Errorf("line %s: %w", row.ID, err)
	}
	return item, nil
}

// window builds the proration window of row. Missing period bounds are
// derived from the proration start and the line's billing term.
func (b *Builder) window(row RawLine, period prorationdomain.Period) (*prorationdomain.Window, error) {
	if row.ProrationStart == nil && row.ProrationEnd == nil {
		return nil, nil
	}
	if row.ProrationStart == nil || row.ProrationEnd == nil {
		return nil, rowErr(row, "proration needs both start and end")
	}

	direction := prorationdomain.Kind(strings.ToLower(strings.TrimSpace(row.Direction)))
	if direction == "" {
		direction = prorationdomain.KindAddition
	}
	if !direction.Valid() {
		return nil, rowErr(row, "proration direction %q", row.Direction)
	}

	w := &prorationdomain.Window{
		Start:     *row.ProrationStart,
		End:       *row.ProrationEnd,
		Direction: direction,
	}
	switch {
	case row.PeriodStart != nil && row.PeriodEnd != nil:
		w.PeriodStart, w.PeriodEnd = *row.PeriodStart, *row.PeriodEnd
	case row.PeriodStart == nil && row.PeriodEnd == nil:
		if b.periods == nil {
			return nil, rowErr(row, "missing billing period bounds")
		}
		r, err := b.periods.PeriodFor(*row.ProrationStart, period)
		if err != nil {
			return nil, fmt.Errorf("line %s: %w", row.ID, err)
		}
		w.PeriodStart, w.PeriodEnd = r.Start, r.End
	default:
		return nil, rowErr(row, "billing period needs both start and end")
	}
	return w, nil
}

func discountFromRow(row RawLine, currency money.Currency) (*pricingdomain.Discount, error) {
	kind := strings.ToLower(strings.TrimSpace(row.DiscountKind))
	if kind == "" {
		return nil, nil
	}
	if !row.DiscountValue.Valid {
		return nil, rowErr(row, "discount %q has no value", kind)
	}

	d := &pricingdomain.Discount{Code: strings.TrimSpace(row.DiscountCode)}
	switch pricingdomain.DiscountKind(kind) {
	case pricingdomain.DiscountFlat:
		d.Kind = pricingdomain.DiscountFlat
		d.Amount = money.Money{Amount: row.DiscountValue.Decimal, Currency: currency}
	case pricingdomain.DiscountPercent:
		d.Kind = pricingdomain.DiscountPercent
		d.Percent = row.DiscountValue.Decimal
	default:
		return nil, rowErr(row, "discount kind %q", row.DiscountKind)
	}
	return d, nil
}

func stringParams(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

func rowErr(row RawLine, format string, args ...any) error {
	return fmt.Errorf("%w: line %s: %s", ErrInvalidRow, row.ID, fmt.Sprintf(format, args...))
}
