// Package format renders the human-readable label of every computed line.
// Rendering is pure: amounts arrive already computed and are only printed.
package format

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/invoicecalc/internal/calcerr"
	"github.com/smallbiznis/invoicecalc/internal/money"
)

// Kind is the entity a label describes.
type Kind string

const (
	KindPackage           Kind = "package"
	KindService           Kind = "service"
	KindOption            Kind = "option"
	KindSetupFee          Kind = "setup_fee"
	KindCancelFee         Kind = "cancel_fee"
	KindCoupon            Kind = "coupon"
	KindTax               Kind = "tax"
	KindProrationAddition Kind = "proration_addition"
	KindProrationCredit   Kind = "proration_credit"
)

// Template keys for the two coupon variants.
const (
	TemplateCouponFlat    = "coupon_flat"
	TemplateCouponPercent = "coupon_percent"
)

// Coupon discount kinds.
const (
	DiscountFlat    = "flat"
	DiscountPercent = "percent"
)

const (
	DefaultNestingGlyph = "└ "
	DefaultDateLayout   = "01/02/2006"
)

// DefaultTemplates maps template keys to their text. Placeholders are
// {name}; a placeholder without a value is left in place.
func DefaultTemplates() map[string]string {
	return map[string]string{
		string(KindPackage):           "{package}",
		string(KindService):           "{package} - {service}",
		string(KindOption):            "{option}: {value}",
		string(KindSetupFee):          "Setup Fee for {name}",
		string(KindCancelFee):         "Cancellation Fee for {name}",
		TemplateCouponFlat:            "Coupon {code} ({amount})",
		TemplateCouponPercent:         "Coupon {code} ({percent}%)",
		string(KindTax):               "{name} ({rate}%)",
		string(KindProrationAddition): "Prorated Addition of {name} ({start} - {end})",
		string(KindProrationCredit):   "Prorated Credit of {name} ({start} - {end})",
	}
}

// required lists the values each template key cannot render without.
var required = map[string][]string{
	string(KindPackage):           {"package"},
	string(KindService):           {"package", "service"},
	string(KindOption):            {"option"},
	string(KindSetupFee):          {"name"},
	string(KindCancelFee):         {"name"},
	TemplateCouponFlat:            {"code", "amount"},
	TemplateCouponPercent:         {"code", "percent"},
	string(KindTax):               {"name", "rate"},
	string(KindProrationAddition): {"name", "start", "end"},
	string(KindProrationCredit):   {"name", "start", "end"},
}

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

var (
	ErrUnknownKind     = fmt.Errorf("%w: unknown_description_kind", calcerr.ErrValidation)
	ErrMissingValue    = fmt.Errorf("%w: missing_description_value", calcerr.ErrValidation)
	ErrUnknownDiscount = fmt.Errorf("%w: unknown_discount_kind", calcerr.ErrValidation)
)

// Options configure rendering. Templates override DefaultTemplates per key.
type Options struct {
	Templates    map[string]string
	NestingGlyph string
	DateLayout   string
}

// DescribeContext carries the values substituted into a template.
type DescribeContext struct {
	// Values holds plain text placeholders such as package, service,
	// option, value, name and code.
	Values map[string]string
	// Nested prefixes the label with the nesting glyph. Nesting is one
	// level deep.
	Nested bool

	// DiscountKind selects the coupon variant: flat or percent.
	DiscountKind string
	Amount       *money.Money
	Percent      *decimal.Decimal

	// Rate is the tax percentage.
	Rate *decimal.Decimal

	Start time.Time
	End   time.Time
}

// Formatter renders labels. It is immutable and safe for concurrent use.
type Formatter struct {
	templates map[string]string
	glyph     string
	layout    string
}

// New builds a Formatter from opts over the defaults.
func New(opts Options) *Formatter {
	templates := DefaultTemplates()
	for k, v := range opts.Templates {
		if strings.TrimSpace(v) != "" {
			templates[k] = v
		}
	}
	glyph := opts.NestingGlyph
	if glyph == "" {
		glyph = DefaultNestingGlyph
	}
	layout := opts.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return &Formatter{templates: templates, glyph: glyph, layout: layout}
}

// NewFormatter returns a Formatter with the default templates.
func NewFormatter() *Formatter {
	return New(Options{})
}

// Describe renders the label for kind.
func (f *Formatter) Describe(kind Kind, dctx DescribeContext) (string, error) {
	key, err := templateKey(kind, dctx)
	if err != nil {
		return "", err
	}
	tmpl, ok := f.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	values := f.values(kind, dctx)
	for _, name := range required[key] {
		if strings.TrimSpace(values[name]) == "" {
			return "", fmt.Errorf("%w: %s needs {%s}", ErrMissingValue, key, name)
		}
	}

	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := values[name]; ok {
			return v
		}
		return m
	})

	if dctx.Nested {
		out = f.glyph + out
	}
	return out, nil
}

func templateKey(kind Kind, dctx DescribeContext) (string, error) {
	if kind != KindCoupon {
		return string(kind), nil
	}
	switch dctx.DiscountKind {
	case DiscountFlat:
		return TemplateCouponFlat, nil
	case DiscountPercent:
		return TemplateCouponPercent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDiscount, dctx.DiscountKind)
	}
}

func (f *Formatter) values(kind Kind, dctx DescribeContext) map[string]string {
	values := make(map[string]string, len(dctx.Values)+4)
	for k, v := range dctx.Values {
		values[k] = v
	}
	if dctx.Amount != nil {
		values["amount"] = formatMoney(*dctx.Amount)
	}
	if dctx.Percent != nil {
		values["percent"] = dctx.Percent.String()
	}
	if dctx.Rate != nil {
		values["rate"] = dctx.Rate.String()
	}
	if kind == KindProrationAddition || kind == KindProrationCredit {
		if !dctx.Start.IsZero() {
			values["start"] = dctx.Start.Format(f.layout)
		}
		if !dctx.End.IsZero() {
			values["end"] = dctx.End.Format(f.layout)
		}
	}
	return values
}

// formatMoney prints an amount at its currency's minor unit.
func formatMoney(m money.Money) string {
	return m.Amount.StringFixed(m.Currency.MinorUnits()) + " " + m.Currency.String()
}
