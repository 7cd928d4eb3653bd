package proration

import (
	"github.com/smallbiznis/invoicecalc/internal/proration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("proration.service",
	fx.Provide(service.NewCalculator),
)
