package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	currencydomain "github.com/smallbiznis/invoicecalc/internal/currency/domain"
	"github.com/smallbiznis/invoicecalc/internal/money"
	pricingdomain "github.com/smallbiznis/invoicecalc/internal/pricing/domain"
	prorationdomain "github.com/smallbiznis/invoicecalc/internal/proration/domain"
	taxdomain "github.com/smallbiznis/invoicecalc/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

type ServiceParam struct {
	fx.In

	Log       *zap.Logger
	Tax       taxdomain.Calculator
	Proration prorationdomain.Calculator
	Converter currencydomain.Converter
}

type Service struct {
	log       *zap.Logger
	tax       taxdomain.Calculator
	proration prorationdomain.Calculator
	converter currencydomain.Converter
}

func NewService(p ServiceParam) pricingdomain.Pricer {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		log:       log.Named("pricing.service"),
		tax:       p.Tax,
		proration: p.Proration,
		converter: p.Converter,
	}
}

func (s *Service) Price(ctx context.Context, item pricingdomain.LineItem, invoiceCurrency money.Currency, opts pricingdomain.Options) (pricingdomain.PricedLine, error) {
	fail := func(step pricingdomain.Step, err error) (pricingdomain.PricedLine, error) {
		return pricingdomain.PricedLine{}, &pricingdomain.StepError{ItemID: item.ID, Step: step, Err: err}
	}

	if !invoiceCurrency.Valid() {
		return fail(pricingdomain.StepValidate, pricingdomain.ErrInvalidCurrency)
	}
	if err := item.Validate(); err != nil {
		return fail(pricingdomain.StepValidate, err)
	}

	line := pricingdomain.PricedLine{
		ItemID:      item.ID,
		Description: item.Description,
		Kind:        prorationdomain.KindAddition,
	}

	// 1. unit price x quantity
	line.Extended = money.Money{
		Amount:   item.UnitPrice.Amount.Mul(item.Quantity),
		Currency: item.UnitPrice.Currency,
	}.Round(money.InternalPrecision)
	amount := line.Extended

	// 2. proration replaces the extended amount
	if item.Proration != nil {
		if s.proration == nil {
			return fail(pricingdomain.StepProrate, fmt.Errorf("no proration calculator configured"))
		}
		result, err := s.proration.Compute(line.Extended, *item.Proration, opts.Proration)
		if err != nil {
			return fail(pricingdomain.StepProrate, err)
		}
		line.Prorated = &result
		line.Kind = result.Kind
		amount = result.Amount
	}

	// 3. discount on the post-proration amount, clamped at zero
	discount, err := discountFor(item.Discount, amount)
	if err != nil {
		return fail(pricingdomain.StepDiscount, err)
	}
	line.Discount = discount
	amount = money.Money{Amount: amount.Amount.Sub(discount.Amount), Currency: amount.Currency}

	// 4. conversion to the invoice currency
	taxable := amount
	if amount.Currency != invoiceCurrency {
		if s.converter == nil {
			return fail(pricingdomain.StepConvert, fmt.Errorf("no currency converter configured"))
		}
		taxable, err = s.converter.Convert(ctx, amount, invoiceCurrency, opts.Currency)
		if err != nil {
			s.log.Warn("line conversion failed",
				zap.String("item_id", item.ID),
				zap.String("from", amount.Currency.String()),
				zap.String("to", invoiceCurrency.String()),
				zap.Error(err),
			)
			return fail(pricingdomain.StepConvert, err)
		}
	}

	// 5. tax on the post-discount, post-conversion amount
	if s.tax == nil {
		return fail(pricingdomain.StepTax, fmt.Errorf("no tax calculator configured"))
	}
	levels, err := s.tax.ComputeLevels(taxable.Amount, item.TaxRates, opts.Tax)
	if err != nil {
		return fail(pricingdomain.StepTax, err)
	}
	result := taxdomain.NewTaxResult(levels)

	line.Taxable = taxable
	line.Level1Tax = money.Money{Amount: result.Level1Amount, Currency: invoiceCurrency}
	line.Level2Tax = money.Money{Amount: result.Level2Amount, Currency: invoiceCurrency}
	line.Taxes = result.Levels

	if line.IsCredit() {
		line = negate(line)
	}
	return line, nil
}

// discountFor returns the discount taken from amount. Percentages are
// rounded to internal precision; the result never exceeds amount.
func discountFor(d *pricingdomain.Discount, amount money.Money) (money.Money, error) {
	if d == nil {
		return money.Zero(amount.Currency), nil
	}

	var off decimal.Decimal
	switch d.Kind {
	case pricingdomain.DiscountFlat:
		if d.Amount.Currency != amount.Currency {
			return money.Money{}, fmt.Errorf("%w: discount in %s on a %s amount", pricingdomain.ErrInvalidDiscount, d.Amount.Currency, amount.Currency)
		}
		off = d.Amount.Amount
	case pricingdomain.DiscountPercent:
		off = amount.Amount.Mul(d.Percent).Div(hundred).Round(money.InternalPrecision)
	default:
		return money.Money{}, pricingdomain.ErrInvalidDiscount
	}

	if off.GreaterThan(amount.Amount) {
		off = amount.Amount
	}
	return money.Money{Amount: off, Currency: amount.Currency}, nil
}

// negate signs every invoice-facing amount of a credit line. Tax was
// computed on the magnitude.
func negate(line pricingdomain.PricedLine) pricingdomain.PricedLine {
	line.Taxable = line.Taxable.Neg()
	line.Level1Tax = line.Level1Tax.Neg()
	line.Level2Tax = line.Level2Tax.Neg()

	taxes := make([]taxdomain.LevelAmount, len(line.Taxes))
	for i, l := range line.Taxes {
		l.Base = l.Base.Neg()
		l.Amount = l.Amount.Neg()
		taxes[i] = l
	}
	line.Taxes = taxes
	return line
}
