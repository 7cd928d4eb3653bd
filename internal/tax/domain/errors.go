package domain

import (
	"fmt"

	"github.com/smallbiznis/invoicecalc/internal/calcerr"
)

var (
	ErrInvalidTaxRate       = fmt.Errorf("%w: invalid_tax_rate", calcerr.ErrValidation)
	ErrInvalidTaxLevel      = fmt.Errorf("%w: invalid_tax_level", calcerr.ErrValidation)
	ErrDuplicateTaxLevel    = fmt.Errorf("%w: duplicate_tax_level", calcerr.ErrValidation)
	ErrInvalidTaxableAmount = fmt.Errorf("%w: invalid_taxable_amount", calcerr.ErrValidation)
	ErrInvalidJurisdiction  = fmt.Errorf("%w: invalid_jurisdiction", calcerr.ErrValidation)
)
